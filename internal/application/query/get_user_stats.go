package query

import (
	"context"

	"github.com/civic-hub/civic-sim-hub/internal/domain/profile"
)

// GetUserStats fetches the gamification summary of one user.
type GetUserStats struct {
	UserID string
}

// EarnedAchievement is one unlocked achievement with its catalog data.
type EarnedAchievement struct {
	ID       string
	Title    string
	Points   int
	EarnedAt string
}

// UserStats is the profile read model.
type UserStats struct {
	UserID               string
	Points               int
	Level                int
	Streak               int
	CompletedLessons     int
	CompletedSimulations int
	Achievements         []EarnedAchievement
}

// GetUserStatsHandler assembles the profile read model.
type GetUserStatsHandler struct {
	profiles     profile.ProfileRepository
	achievements profile.AchievementRepository
	catalog      []profile.Achievement
}

// NewGetUserStatsHandler creates a new GetUserStatsHandler.
func NewGetUserStatsHandler(
	profiles profile.ProfileRepository,
	achievements profile.AchievementRepository,
	catalog []profile.Achievement,
) *GetUserStatsHandler {
	return &GetUserStatsHandler{
		profiles:     profiles,
		achievements: achievements,
		catalog:      catalog,
	}
}

// Handle returns the user's profile and earned achievements. A user with
// no history gets a fresh zero-valued profile, never NotFound.
func (h *GetUserStatsHandler) Handle(ctx context.Context, q GetUserStats) (*UserStats, error) {
	u, err := h.profiles.GetOrCreate(ctx, q.UserID)
	if err != nil {
		return nil, err
	}

	earned, err := h.achievements.ListEarned(ctx, q.UserID)
	if err != nil {
		return nil, err
	}

	stats := &UserStats{
		UserID:               u.UserID,
		Points:               int(u.Points),
		Level:                int(u.Level),
		Streak:               u.Streak,
		CompletedLessons:     u.CompletedLessons,
		CompletedSimulations: u.CompletedSimulations,
		Achievements:         make([]EarnedAchievement, 0, len(earned)),
	}

	for _, ua := range earned {
		row := EarnedAchievement{
			ID:       string(ua.AchievementID),
			EarnedAt: ua.EarnedAt.UTC().Format("2006-01-02"),
		}
		for _, def := range h.catalog {
			if def.ID == ua.AchievementID {
				row.Title = def.Title
				row.Points = def.Points
				break
			}
		}
		stats.Achievements = append(stats.Achievements, row)
	}

	return stats, nil
}
