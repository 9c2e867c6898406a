package simulation

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/civic-hub/civic-sim-hub/internal/domain/shared"
)

func newTestMachine(t *testing.T) *Machine {
	t.Helper()
	catalog, err := NewCatalog([]*SimulationDefinition{localBudgetDefinition()})
	require.NoError(t, err)
	return NewMachine(catalog)
}

func TestMachine_Start(t *testing.T) {
	m := newTestMachine(t)

	p, err := m.Start("local-budget", "user-1")
	require.NoError(t, err)
	assert.Equal(t, StepNumber(1), p.CurrentStep)
	assert.Equal(t, 0, p.TotalScore)
	assert.Empty(t, p.Records)
	assert.Equal(t, StatusInProgress, p.Status)
}

func TestMachine_Start_UnknownSimulation(t *testing.T) {
	m := newTestMachine(t)

	_, err := m.Start("no-such-sim", "user-1")
	assert.ErrorIs(t, err, shared.ErrNotFound)
}

// Сценарий из каталога: старт, выбор A, выбор B → totalScore=30,
// finalScore=100 (30 - лучший путь), статус completed.
func TestMachine_FullWalkthrough(t *testing.T) {
	m := newTestMachine(t)

	p, err := m.Start("local-budget", "user-1")
	require.NoError(t, err)

	p, tr, err := m.ApplyChoice(p, "A")
	require.NoError(t, err)
	assert.False(t, tr.IsComplete)
	assert.Equal(t, StepNumber(2), p.CurrentStep)
	assert.Equal(t, 10, p.TotalScore)

	p, tr, err = m.ApplyChoice(p, "B")
	require.NoError(t, err)
	assert.True(t, tr.IsComplete)
	assert.Equal(t, StatusCompleted, p.Status)
	assert.Equal(t, 30, p.TotalScore)
	require.NotNil(t, p.CompletedAt)

	res, err := m.Results(p)
	require.NoError(t, err)
	assert.Equal(t, 100, res.FinalScore)
	assert.Equal(t, 30, res.TotalScore)
	assert.Equal(t, 2, res.CorrectAnswers)
	require.Len(t, res.StepResults, 2)
	assert.True(t, res.StepResults[0].IsBest)
	assert.Equal(t, "Участие жителей - основа решения.", res.StepResults[0].Feedback)

	require.NoError(t, p.CheckInvariants())
}

func TestMachine_ApplyChoice_UnknownChoice(t *testing.T) {
	m := newTestMachine(t)

	p, err := m.Start("local-budget", "user-1")
	require.NoError(t, err)

	_, _, err = m.ApplyChoice(p, "Z")
	assert.ErrorIs(t, err, shared.ErrInvalidChoice)

	// Счёт и шаг исходного прогресса не тронуты
	assert.Equal(t, 0, p.TotalScore)
	assert.Equal(t, StepNumber(1), p.CurrentStep)
	assert.Empty(t, p.Records)
}

func TestMachine_ApplyChoice_CompletedIsImmutable(t *testing.T) {
	m := newTestMachine(t)

	p, _ := m.Start("local-budget", "user-1")
	p, _, err := m.ApplyChoice(p, "A")
	require.NoError(t, err)
	p, _, err = m.ApplyChoice(p, "B")
	require.NoError(t, err)
	require.Equal(t, StatusCompleted, p.Status)

	_, _, err = m.ApplyChoice(p, "B")
	assert.ErrorIs(t, err, shared.ErrInvalidState)
}

func TestMachine_ApplyChoice_DoesNotMutateInput(t *testing.T) {
	m := newTestMachine(t)

	p, _ := m.Start("local-budget", "user-1")
	next, _, err := m.ApplyChoice(p, "A")
	require.NoError(t, err)

	assert.Equal(t, 0, p.TotalScore)
	assert.Equal(t, 10, next.TotalScore)
	assert.NotSame(t, p, next)
}

func TestMachine_CurrentScenario_Resume(t *testing.T) {
	m := newTestMachine(t)

	// Возобновление прогресса на шаге 2 без повторения выбора шага 1
	p := &SimulationProgress{
		UserID:       "user-1",
		SimulationID: "local-budget",
		CurrentStep:  2,
		TotalScore:   10,
		Records: []ChoiceRecord{
			{Step: 1, ChoiceID: "A", PointsDelta: 10, Timestamp: time.Now().UTC()},
		},
		Status:    StatusInProgress,
		StartedAt: time.Now().UTC(),
		UpdatedAt: time.Now().UTC(),
	}
	require.NoError(t, p.CheckInvariants())

	step, err := m.CurrentScenario(p)
	require.NoError(t, err)
	assert.Equal(t, StepNumber(2), step.Number)
	assert.Equal(t, "Итоговое голосование.", step.Description)
}

func TestMachine_CurrentScenario_Completed(t *testing.T) {
	m := newTestMachine(t)

	now := time.Now().UTC()
	p := &SimulationProgress{
		UserID:       "user-1",
		SimulationID: "local-budget",
		CurrentStep:  2,
		Status:       StatusCompleted,
		CompletedAt:  &now,
	}

	_, err := m.CurrentScenario(p)
	assert.ErrorIs(t, err, shared.ErrInvalidState)
}

func TestMachine_Results_NotCompleted(t *testing.T) {
	m := newTestMachine(t)

	p, _ := m.Start("local-budget", "user-1")
	_, err := m.Results(p)
	assert.ErrorIs(t, err, shared.ErrInvalidState)
}

func TestProgress_CheckInvariants_ScoreMismatch(t *testing.T) {
	p := &SimulationProgress{
		UserID:       "user-1",
		SimulationID: "local-budget",
		CurrentStep:  2,
		TotalScore:   99,
		Records: []ChoiceRecord{
			{Step: 1, ChoiceID: "A", PointsDelta: 10},
		},
		Status: StatusInProgress,
	}

	err := p.CheckInvariants()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "does not match")
}

func TestNormalizeScore(t *testing.T) {
	tests := []struct {
		name  string
		total int
		max   int
		want  int
	}{
		{"perfect", 30, 30, 100},
		{"half", 15, 30, 50},
		{"rounding", 10, 30, 33},
		{"negative total clamps to zero", -5, 30, 0},
		{"above max clamps to hundred", 40, 30, 100},
		{"non-positive max", 10, 0, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, normalizeScore(tt.total, tt.max))
		})
	}
}
