// Package saga contains complex business processes that orchestrate
// multiple domain operations in a coordinated manner.
package saga

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/civic-hub/civic-sim-hub/internal/domain/profile"
	"github.com/civic-hub/civic-sim-hub/internal/domain/shared"
	"github.com/civic-hub/civic-sim-hub/pkg/logger"
	"github.com/civic-hub/civic-sim-hub/pkg/retry"
)

// ══════════════════════════════════════════════════════════════════════════════
// REWARD FLOW SAGA
// The single entry point translating a completion event into profile updates.
// Flow: Idempotency Check → Append Activity Log → Apply Points & Level
//
//	Ratchet → Update Streak → Evaluate Achievements → Record Completion →
//	Update Leaderboard Cache → Publish Events
//
// Every step is safe to re-drive. The activity-log entry carries an ID
// derived from the activity descriptor and is written before the base-points
// credit; its conditional insert marks the credit as applied, so a re-driven
// flow never credits the base points twice. Achievement bonuses hang off the
// conditional achievement insert the same way, and the completion record is
// written last so a partially applied flow keeps being re-driven until every
// step landed. Partial failures surface as warnings on an otherwise
// successful result - the simulation outcome itself is never rolled back.
// ══════════════════════════════════════════════════════════════════════════════

// IDGenerator derives activity-log entry identifiers. The same key must map
// to the same ID so a re-driven append lands on the existing row.
type IDGenerator interface {
	EntryID(key string) string
}

// LeaderboardCache is a best-effort points cache feeding the leaderboard.
// Failures are logged, never surfaced.
type LeaderboardCache interface {
	AddPoints(ctx context.Context, userID string, points int) error
}

// RewardInput describes one completion event.
type RewardInput struct {
	// Descriptor uniquely identifies the completed activity (idempotency key).
	Descriptor profile.ActivityDescriptor

	// PointsEarned is the score the activity itself awards.
	PointsEarned int

	// Title is the human-readable activity title (for the activity log).
	Title string

	// OccurredAt is when the completion happened (defaults to now if zero).
	OccurredAt time.Time
}

// Validate checks if the input is valid.
func (i RewardInput) Validate() error {
	if err := i.Descriptor.Validate(); err != nil {
		return err
	}
	if i.PointsEarned < 0 {
		return errors.New("reward_flow: points earned must be non-negative")
	}
	return nil
}

// RewardOutcome contains the result of reward processing.
type RewardOutcome struct {
	// AlreadyApplied is true when this exact activity was rewarded before;
	// the prior outcome is returned unchanged and nothing is re-awarded.
	AlreadyApplied bool

	// PointsEarned is the base score credited to the profile.
	PointsEarned int

	// NewAchievements lists achievements unlocked by this completion.
	NewAchievements []profile.Achievement

	// Profile is the profile after the flow (nil when the points step failed).
	Profile *profile.UserProfile

	// Warnings describes reward steps that could not be applied.
	// The completion result stays valid; rewards are re-driven on retry.
	Warnings []string

	// ProcessedAt is when the flow completed.
	ProcessedAt time.Time
}

// RewardFlowSaga orchestrates the complete reward application process.
type RewardFlowSaga struct {
	profiles     profile.ProfileRepository
	achievements profile.AchievementRepository
	activityLog  profile.ActivityLogRepository
	completions  profile.CompletionRepository
	checker      *profile.AchievementChecker
	catalog      []profile.Achievement
	leaderboard  LeaderboardCache
	events       shared.EventPublisher
	ids          IDGenerator
	log          *logger.Logger

	casRetry retry.Config
}

// NewRewardFlowSaga creates a new reward flow saga with all dependencies.
// leaderboard and events may be nil (the steps are skipped).
func NewRewardFlowSaga(
	profiles profile.ProfileRepository,
	achievements profile.AchievementRepository,
	activityLog profile.ActivityLogRepository,
	completions profile.CompletionRepository,
	achievementCatalog []profile.Achievement,
	leaderboard LeaderboardCache,
	events shared.EventPublisher,
	ids IDGenerator,
	log *logger.Logger,
) *RewardFlowSaga {
	casRetry := retry.DefaultConfig()
	casRetry.MaxAttempts = 5
	casRetry.InitialDelay = 10 * time.Millisecond
	casRetry.MaxDelay = 200 * time.Millisecond
	casRetry.RetryIf = shared.IsConcurrencyConflict

	return &RewardFlowSaga{
		profiles:     profiles,
		achievements: achievements,
		activityLog:  activityLog,
		completions:  completions,
		checker:      profile.NewAchievementChecker(achievementCatalog),
		catalog:      achievementCatalog,
		leaderboard:  leaderboard,
		events:       events,
		ids:          ids,
		log:          log,
		casRetry:     casRetry,
	}
}

// Execute runs the reward flow for one completion event.
// It returns an error only for invalid input or when the idempotency check
// itself cannot be performed; every later failure degrades to a warning.
func (s *RewardFlowSaga) Execute(ctx context.Context, input RewardInput) (*RewardOutcome, error) {
	if err := input.Validate(); err != nil {
		return nil, err
	}

	occurredAt := input.OccurredAt
	if occurredAt.IsZero() {
		occurredAt = time.Now().UTC()
	}

	// Step 1: idempotency re-check. A completion record means every reward
	// for this activity has been fully applied before.
	prior, err := s.completions.Find(ctx, input.Descriptor)
	if err != nil {
		return nil, shared.WrapError("reward", "Execute", shared.ErrPersistence, "idempotency check failed", err)
	}
	if prior != nil {
		return s.priorOutcome(ctx, input, prior)
	}

	outcome := &RewardOutcome{PointsEarned: input.PointsEarned}

	// Step 2: conditional activity-log append. The entry ID is derived from
	// the descriptor, so exactly one drive of the flow inserts it; that
	// insert doubles as the applied-marker for the base-points credit.
	credited, err := s.appendLogEntry(ctx, input, occurredAt)
	if err != nil {
		s.log.Error("reward flow: activity log append failed",
			logger.String("user_id", input.Descriptor.UserID),
			logger.Err(err))
		outcome.Warnings = append(outcome.Warnings,
			"activity log entry was not written; rewards will be retried")
		outcome.ProcessedAt = time.Now().UTC()
		return outcome, nil
	}

	// Step 3+4: points, level ratchet, streak, and completion counters in one
	// CAS write. Skipped when a prior drive already owns the log entry: the
	// credit went through on that drive (or was lost with a warning there).
	if credited {
		updated, err := s.applyToProfile(ctx, input.Descriptor.UserID, func(u *profile.UserProfile) error {
			if err := u.AddPoints(input.PointsEarned); err != nil {
				return retry.Permanent(err)
			}
			u.RecordActivityDay(occurredAt)
			u.RecordCompletion(input.Descriptor.Kind)
			return nil
		})
		if err != nil {
			s.log.Error("reward flow: points step failed",
				logger.String("user_id", input.Descriptor.UserID),
				logger.Err(err))
			outcome.Warnings = append(outcome.Warnings,
				"points, streak and level were not applied")
			outcome.ProcessedAt = time.Now().UTC()
			return outcome, nil
		}
		outcome.Profile = updated
	} else {
		current, err := s.profiles.GetOrCreate(ctx, input.Descriptor.UserID)
		if err != nil {
			s.log.Error("reward flow: profile load failed",
				logger.String("user_id", input.Descriptor.UserID),
				logger.Err(err))
			outcome.Warnings = append(outcome.Warnings,
				"profile could not be loaded; rewards will be retried")
			outcome.ProcessedAt = time.Now().UTC()
			return outcome, nil
		}
		outcome.Profile = current
	}

	// Step 5: achievement evaluation against the updated counters.
	outcome.NewAchievements, outcome.Warnings = s.evaluateAchievements(ctx, input, outcome.Profile, outcome.Warnings)

	// Re-read the profile when achievement bonuses were added.
	if len(outcome.NewAchievements) > 0 {
		if fresh, err := s.profiles.GetOrCreate(ctx, input.Descriptor.UserID); err == nil {
			outcome.Profile = fresh
		}
	}

	// Record the completion last: its presence asserts the whole flow ran.
	if len(outcome.Warnings) == 0 {
		if err := s.recordCompletion(ctx, input, outcome, occurredAt); err != nil {
			s.log.Warn("reward flow: completion record failed", logger.Err(err))
			outcome.Warnings = append(outcome.Warnings, "completion was not recorded; rewards may be re-driven")
		}
	}

	// Best-effort side effects: leaderboard cache and domain events.
	s.updateLeaderboard(ctx, input, outcome, credited)
	s.publishEvents(ctx, input, outcome)

	outcome.ProcessedAt = time.Now().UTC()
	return outcome, nil
}

// priorOutcome reconstructs the outcome of an already-rewarded completion.
func (s *RewardFlowSaga) priorOutcome(ctx context.Context, input RewardInput, rec *profile.CompletionRecord) (*RewardOutcome, error) {
	outcome := &RewardOutcome{
		AlreadyApplied: true,
		PointsEarned:   rec.PointsEarned,
		ProcessedAt:    rec.CompletedAt,
	}

	for _, id := range rec.AchievementIDs {
		for _, def := range s.catalog {
			if string(def.ID) == id {
				outcome.NewAchievements = append(outcome.NewAchievements, def)
				break
			}
		}
	}

	if u, err := s.profiles.GetOrCreate(ctx, input.Descriptor.UserID); err == nil {
		outcome.Profile = u
	}
	return outcome, nil
}

// applyToProfile runs mutate on a freshly loaded profile and saves it with a
// bounded CAS retry loop.
func (s *RewardFlowSaga) applyToProfile(ctx context.Context, userID string, mutate func(*profile.UserProfile) error) (*profile.UserProfile, error) {
	var result *profile.UserProfile

	err := retry.Do(ctx, s.casRetry, func(ctx context.Context) error {
		u, err := s.profiles.GetOrCreate(ctx, userID)
		if err != nil {
			return retry.Permanent(err)
		}
		if err := mutate(u); err != nil {
			return err
		}
		if err := s.profiles.Update(ctx, u); err != nil {
			return err
		}
		result = u
		return nil
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

// evaluateAchievements checks the catalog against the updated profile and
// awards every newly satisfied achievement exactly once.
func (s *RewardFlowSaga) evaluateAchievements(ctx context.Context, input RewardInput, u *profile.UserProfile, warnings []string) ([]profile.Achievement, []string) {
	earned, err := s.achievements.ListEarned(ctx, input.Descriptor.UserID)
	if err != nil {
		s.log.Warn("reward flow: listing achievements failed", logger.Err(err))
		return nil, append(warnings, "achievements were not evaluated")
	}

	var granted []profile.Achievement
	for _, def := range s.checker.CheckNewAchievements(u, input.Descriptor.Kind, earned) {
		inserted, err := s.achievements.Award(ctx, profile.UserAchievement{
			UserID:        input.Descriptor.UserID,
			AchievementID: def.ID,
			EarnedAt:      time.Now().UTC(),
		})
		if err != nil {
			s.log.Warn("reward flow: achievement award failed",
				logger.String("achievement_id", string(def.ID)),
				logger.Err(err))
			warnings = append(warnings, fmt.Sprintf("achievement %s was not awarded", def.ID))
			continue
		}
		if !inserted {
			// Lost the race to a concurrent completion: the row exists, the
			// other flow credits the bonus.
			continue
		}

		granted = append(granted, def)

		if def.Points > 0 {
			if _, err := s.applyToProfile(ctx, input.Descriptor.UserID, func(u *profile.UserProfile) error {
				return u.AddPoints(def.Points)
			}); err != nil {
				s.log.Warn("reward flow: achievement bonus failed",
					logger.String("achievement_id", string(def.ID)),
					logger.Err(err))
				warnings = append(warnings, fmt.Sprintf("bonus points for %s were not applied", def.ID))
			}
		}

		if s.events != nil {
			event := shared.NewAchievementUnlockedEvent(input.Descriptor.UserID, string(def.ID), def.Points)
			if err := s.events.Publish(ctx, event); err != nil {
				s.log.Warn("reward flow: achievement event publish failed", logger.Err(err))
			}
		}
	}
	return granted, warnings
}

// appendLogEntry writes the log entry for this completion. The reported
// inserted flag tells the caller whether this drive owns the base credit.
func (s *RewardFlowSaga) appendLogEntry(ctx context.Context, input RewardInput, occurredAt time.Time) (bool, error) {
	return s.activityLog.Append(ctx, profile.ActivityEntry{
		ID:          s.ids.EntryID(input.Descriptor.Key()),
		UserID:      input.Descriptor.UserID,
		Kind:        input.Descriptor.Kind,
		ActivityID:  input.Descriptor.ActivityID,
		Points:      input.PointsEarned,
		Description: fmt.Sprintf("completed %s %q", input.Descriptor.Kind, input.Title),
		OccurredAt:  occurredAt,
	})
}

func (s *RewardFlowSaga) recordCompletion(ctx context.Context, input RewardInput, outcome *RewardOutcome, occurredAt time.Time) error {
	ids := make([]string, 0, len(outcome.NewAchievements))
	for _, a := range outcome.NewAchievements {
		ids = append(ids, string(a.ID))
	}

	return s.completions.Record(ctx, profile.CompletionRecord{
		Descriptor:     input.Descriptor,
		PointsEarned:   input.PointsEarned,
		AchievementIDs: ids,
		CompletedAt:    occurredAt,
	})
}

// updateLeaderboard mirrors this drive's credits into the points cache.
// Base points count only on the drive that owns the log entry, so a re-drive
// does not inflate the cached score.
func (s *RewardFlowSaga) updateLeaderboard(ctx context.Context, input RewardInput, outcome *RewardOutcome, credited bool) {
	if s.leaderboard == nil || outcome.Profile == nil {
		return
	}

	total := 0
	if credited {
		total += input.PointsEarned
	}
	for _, a := range outcome.NewAchievements {
		total += a.Points
	}
	if total == 0 {
		return
	}
	if err := s.leaderboard.AddPoints(ctx, input.Descriptor.UserID, total); err != nil {
		s.log.Warn("reward flow: leaderboard cache update failed", logger.Err(err))
	}
}

func (s *RewardFlowSaga) publishEvents(ctx context.Context, input RewardInput, outcome *RewardOutcome) {
	if s.events == nil || outcome.Profile == nil {
		return
	}

	event := shared.NewPointsAwardedEvent(
		input.Descriptor.UserID,
		input.PointsEarned,
		int(outcome.Profile.Points),
		int(outcome.Profile.Level),
	)
	if err := s.events.Publish(ctx, event); err != nil {
		s.log.Warn("reward flow: points event publish failed", logger.Err(err))
	}
}
