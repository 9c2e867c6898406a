package query

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/civic-hub/civic-sim-hub/internal/domain/profile"
	"github.com/civic-hub/civic-sim-hub/internal/domain/shared"
	"github.com/civic-hub/civic-sim-hub/internal/domain/simulation"
	"github.com/civic-hub/civic-sim-hub/internal/infrastructure/persistence/memory"
)

func testCatalog(t *testing.T) *simulation.Catalog {
	t.Helper()
	catalog, err := simulation.NewCatalog([]*simulation.SimulationDefinition{
		{
			ID:          "sim-budget",
			Title:       "Городской бюджет",
			Description: "Распределите бюджет района",
			Steps: []simulation.ScenarioStep{
				{
					Number:      1,
					Description: "Куда направить бюджет?",
					Choices: []simulation.Choice{
						{ID: "a", Text: "Опросить жителей", PointsDelta: 10, NextStep: 2},
						{ID: "b", Text: "Решить самостоятельно", PointsDelta: -5, NextStep: 2},
					},
				},
				{
					Number:      2,
					Description: "Как отчитаться?",
					Choices: []simulation.Choice{
						{ID: "a", Text: "Открытый отчёт", PointsDelta: 20, IsComplete: true},
						{ID: "b", Text: "Без отчёта", PointsDelta: 0, IsComplete: true},
					},
				},
			},
		},
	})
	require.NoError(t, err)
	return catalog
}

func TestListSimulations(t *testing.T) {
	h := NewListSimulationsHandler(testCatalog(t))

	got := h.Handle()
	require.Len(t, got, 1)
	assert.Equal(t, "sim-budget", got[0].ID)
	assert.Equal(t, 2, got[0].StepCount)
	assert.Equal(t, 30, got[0].MaxPossibleScore)
}

func TestGetScenario(t *testing.T) {
	h := NewGetScenarioHandler(testCatalog(t))

	step, err := h.Handle(GetScenario{SimulationID: "sim-budget", Step: 2})
	require.NoError(t, err)
	assert.Equal(t, "Как отчитаться?", step.Description)

	_, err = h.Handle(GetScenario{SimulationID: "sim-budget", Step: 9})
	assert.True(t, shared.IsNotFound(err))

	_, err = h.Handle(GetScenario{SimulationID: "sim-missing", Step: 1})
	assert.True(t, shared.IsNotFound(err))
}

func TestGetProgress_InProgress(t *testing.T) {
	catalog := testCatalog(t)
	store := memory.NewProgressStore()
	machine := simulation.NewMachine(catalog)

	p, err := machine.Start("sim-budget", "user-1")
	require.NoError(t, err)
	p, _, err = machine.ApplyChoice(p, "a")
	require.NoError(t, err)
	require.NoError(t, store.Save(context.Background(), p))

	h := NewGetProgressHandler(catalog, store, memory.NewCompletionStore(), profile.DefaultAchievements())
	view, err := h.Handle(context.Background(), GetProgress{UserID: "user-1", SimulationID: "sim-budget"})
	require.NoError(t, err)

	assert.Equal(t, simulation.StatusInProgress, view.Status)
	assert.Equal(t, simulation.StepNumber(2), view.Step)
	assert.Equal(t, 10, view.TotalScore)
	require.NotNil(t, view.Scenario)
	assert.Nil(t, view.Result)
}

func TestGetProgress_CompletedReturnsRecordedOutcome(t *testing.T) {
	catalog := testCatalog(t)
	store := memory.NewProgressStore()
	completions := memory.NewCompletionStore()
	machine := simulation.NewMachine(catalog)
	ctx := context.Background()

	p, err := machine.Start("sim-budget", "user-1")
	require.NoError(t, err)
	p, _, err = machine.ApplyChoice(p, "a")
	require.NoError(t, err)
	p, _, err = machine.ApplyChoice(p, "a")
	require.NoError(t, err)
	require.NoError(t, store.Save(ctx, p))

	require.NoError(t, completions.Record(ctx, profile.CompletionRecord{
		Descriptor: profile.ActivityDescriptor{
			UserID:     "user-1",
			Kind:       profile.ActivitySimulation,
			ActivityID: "sim-budget",
		},
		PointsEarned:   100,
		AchievementIDs: []string{"first-simulation"},
		CompletedAt:    time.Now().UTC(),
	}))

	h := NewGetProgressHandler(catalog, store, completions, profile.DefaultAchievements())
	view, err := h.Handle(ctx, GetProgress{UserID: "user-1", SimulationID: "sim-budget"})
	require.NoError(t, err)

	assert.Equal(t, simulation.StatusCompleted, view.Status)
	require.NotNil(t, view.Result)
	assert.Equal(t, 100, view.Result.FinalScore)
	assert.Equal(t, 100, view.Result.PointsEarned)
	require.Len(t, view.Result.NewAchievements, 1)
	assert.Equal(t, "first-simulation", view.Result.NewAchievements[0].ID)
	assert.Empty(t, view.Result.RewardWarnings)
}

func TestGetProgress_NoProgress(t *testing.T) {
	h := NewGetProgressHandler(testCatalog(t), memory.NewProgressStore(), memory.NewCompletionStore(), nil)

	_, err := h.Handle(context.Background(), GetProgress{UserID: "user-1", SimulationID: "sim-budget"})
	assert.True(t, shared.IsNotFound(err))
}

func TestGetUserStats(t *testing.T) {
	profiles := memory.NewProfileStore()
	awards := memory.NewAchievementStore()
	ctx := context.Background()

	u, err := profiles.GetOrCreate(ctx, "user-1")
	require.NoError(t, err)
	require.NoError(t, u.AddPoints(230))
	u.Streak = 3
	u.CompletedSimulations = 2
	require.NoError(t, profiles.Update(ctx, u))

	_, err = awards.Award(ctx, profile.UserAchievement{
		UserID:        "user-1",
		AchievementID: "first-simulation",
		EarnedAt:      time.Date(2026, 8, 15, 12, 0, 0, 0, time.UTC),
	})
	require.NoError(t, err)

	h := NewGetUserStatsHandler(profiles, awards, profile.DefaultAchievements())
	stats, err := h.Handle(ctx, GetUserStats{UserID: "user-1"})
	require.NoError(t, err)

	assert.Equal(t, 230, stats.Points)
	assert.Equal(t, 3, stats.Level)
	assert.Equal(t, 3, stats.Streak)
	assert.Equal(t, 2, stats.CompletedSimulations)
	require.Len(t, stats.Achievements, 1)
	assert.Equal(t, "first-simulation", stats.Achievements[0].ID)
	assert.NotEmpty(t, stats.Achievements[0].Title)
	assert.Equal(t, "2026-08-15", stats.Achievements[0].EarnedAt)
}

func TestGetUserStats_FreshUser(t *testing.T) {
	h := NewGetUserStatsHandler(memory.NewProfileStore(), memory.NewAchievementStore(), profile.DefaultAchievements())

	stats, err := h.Handle(context.Background(), GetUserStats{UserID: "user-new"})
	require.NoError(t, err)

	assert.Equal(t, 0, stats.Points)
	assert.Equal(t, 1, stats.Level)
	assert.Empty(t, stats.Achievements)
}
