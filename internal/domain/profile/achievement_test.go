package profile

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAchievementConditions_SatisfiedBy(t *testing.T) {
	u, _ := NewUserProfile("user-1")
	u.CompletedSimulations = 3
	u.Points = 150
	u.Streak = 4
	u.Level = CalculateLevel(u.Points)

	assert.True(t, AchievementConditions{MinSimulations: 3}.SatisfiedBy(u))
	assert.False(t, AchievementConditions{MinSimulations: 4}.SatisfiedBy(u))
	assert.True(t, AchievementConditions{MinPoints: 100, MinStreak: 4}.SatisfiedBy(u))
	assert.False(t, AchievementConditions{MinPoints: 100, MinStreak: 5}.SatisfiedBy(u))
	assert.True(t, AchievementConditions{}.SatisfiedBy(u))
}

func TestAchievementChecker_NewlySatisfiedOnly(t *testing.T) {
	catalog := []Achievement{
		{ID: "first-simulation", Kind: ActivitySimulation, Conditions: AchievementConditions{MinSimulations: 1}, Points: 20},
		{ID: "five-simulations", Kind: ActivitySimulation, Conditions: AchievementConditions{MinSimulations: 5}, Points: 100},
		{ID: "first-lesson", Kind: ActivityLesson, Conditions: AchievementConditions{MinLessons: 1}, Points: 10},
		{ID: "week-streak", Conditions: AchievementConditions{MinStreak: 7}, Points: 70},
	}
	checker := NewAchievementChecker(catalog)

	u, _ := NewUserProfile("user-1")
	u.CompletedSimulations = 1
	u.Streak = 7

	got := checker.CheckNewAchievements(u, ActivitySimulation, nil)

	// first-lesson отфильтрован по виду активности, five-simulations не выполнен
	require.Len(t, got, 2)
	assert.Equal(t, AchievementID("first-simulation"), got[0].ID)
	assert.Equal(t, AchievementID("week-streak"), got[1].ID)
}

func TestAchievementChecker_ExistingNotReissued(t *testing.T) {
	checker := NewAchievementChecker(DefaultAchievements())

	u, _ := NewUserProfile("user-1")
	u.CompletedSimulations = 1

	existing := []UserAchievement{
		{UserID: "user-1", AchievementID: "first-simulation", EarnedAt: time.Now().UTC()},
	}

	got := checker.CheckNewAchievements(u, ActivitySimulation, existing)
	for _, a := range got {
		assert.NotEqual(t, AchievementID("first-simulation"), a.ID)
	}
}

func TestDefaultAchievements_UniqueIDs(t *testing.T) {
	seen := make(map[AchievementID]bool)
	for _, a := range DefaultAchievements() {
		assert.False(t, seen[a.ID], "duplicate achievement id %s", a.ID)
		seen[a.ID] = true
		assert.NotEmpty(t, a.Title)
	}
}
