package command

import (
	"context"
	"io"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/civic-hub/civic-sim-hub/internal/application/saga"
	"github.com/civic-hub/civic-sim-hub/internal/domain/profile"
	"github.com/civic-hub/civic-sim-hub/internal/domain/shared"
	"github.com/civic-hub/civic-sim-hub/internal/domain/simulation"
	"github.com/civic-hub/civic-sim-hub/internal/infrastructure/persistence/memory"
	"github.com/civic-hub/civic-sim-hub/pkg/logger"
)

func budgetDefinition() *simulation.SimulationDefinition {
	return &simulation.SimulationDefinition{
		ID:          "sim-budget",
		Title:       "Городской бюджет",
		Description: "Распределите бюджет района",
		Steps: []simulation.ScenarioStep{
			{
				Number:      1,
				Description: "Куда направить основную часть бюджета?",
				Choices: []simulation.Choice{
					{ID: "a", Text: "Опросить жителей", PointsDelta: 10, Feedback: "Жители благодарны", NextStep: 2},
					{ID: "b", Text: "Решить самостоятельно", PointsDelta: -5, Feedback: "Жители недовольны", NextStep: 2},
				},
			},
			{
				Number:      2,
				Description: "Как отчитаться о расходах?",
				Choices: []simulation.Choice{
					{ID: "a", Text: "Открытый отчёт", PointsDelta: 20, Feedback: "Доверие выросло", IsComplete: true},
					{ID: "b", Text: "Без отчёта", PointsDelta: 0, Feedback: "Доверие упало", IsComplete: true},
				},
			},
		},
	}
}

type stubNotifier struct {
	calls chan string
}

func (n *stubNotifier) NotifyCompletion(_ context.Context, userID, title string, score int) error {
	n.calls <- userID
	return nil
}

type handlerFixture struct {
	catalog  *simulation.Catalog
	progress *memory.ProgressStore
	profiles *memory.ProfileStore
	notifier *stubNotifier

	start  *StartSimulationHandler
	apply  *ApplyChoiceHandler
	resume *ResumeSimulationHandler
}

type fixedIDGen struct{}

func (fixedIDGen) EntryID(key string) string { return "entry-" + key }

func newHandlerFixture(t *testing.T) *handlerFixture {
	t.Helper()

	catalog, err := simulation.NewCatalog([]*simulation.SimulationDefinition{budgetDefinition()})
	require.NoError(t, err)

	log := logger.New(io.Discard, logger.LevelError)
	f := &handlerFixture{
		catalog:  catalog,
		progress: memory.NewProgressStore(),
		profiles: memory.NewProfileStore(),
		notifier: &stubNotifier{calls: make(chan string, 4)},
	}

	rewards := saga.NewRewardFlowSaga(
		f.profiles,
		memory.NewAchievementStore(),
		memory.NewActivityLog(),
		memory.NewCompletionStore(),
		profile.DefaultAchievements(),
		nil, nil, fixedIDGen{}, log,
	)

	f.start = NewStartSimulationHandler(catalog, f.progress, nil, log)
	f.apply = NewApplyChoiceHandler(catalog, f.progress, rewards, f.notifier, nil, log)
	f.resume = NewResumeSimulationHandler(catalog, f.progress)
	return f
}

func TestStartSimulation(t *testing.T) {
	f := newHandlerFixture(t)

	res, err := f.start.Handle(context.Background(), StartSimulation{UserID: "user-1", SimulationID: "sim-budget"})
	require.NoError(t, err)

	assert.Equal(t, "Городской бюджет", res.Title)
	assert.Equal(t, simulation.StepNumber(1), res.Scenario.Number)
	assert.Equal(t, 0, res.Progress.TotalScore)
	assert.Equal(t, simulation.StatusInProgress, res.Progress.Status)
}

func TestStartSimulation_UnknownID(t *testing.T) {
	f := newHandlerFixture(t)

	_, err := f.start.Handle(context.Background(), StartSimulation{UserID: "user-1", SimulationID: "sim-missing"})
	assert.True(t, shared.IsNotFound(err))
}

func TestStartSimulation_RestartResetsUnfinishedWalk(t *testing.T) {
	f := newHandlerFixture(t)
	ctx := context.Background()

	_, err := f.start.Handle(ctx, StartSimulation{UserID: "user-1", SimulationID: "sim-budget"})
	require.NoError(t, err)
	_, err = f.apply.Handle(ctx, ApplyChoice{UserID: "user-1", SimulationID: "sim-budget", ChoiceID: "a"})
	require.NoError(t, err)

	res, err := f.start.Handle(ctx, StartSimulation{UserID: "user-1", SimulationID: "sim-budget"})
	require.NoError(t, err)

	assert.Equal(t, simulation.StepNumber(1), res.Progress.CurrentStep)
	assert.Equal(t, 0, res.Progress.TotalScore)
	assert.Empty(t, res.Progress.Records)
}

func TestStartSimulation_CompletedWalkIsImmutable(t *testing.T) {
	f := newHandlerFixture(t)
	ctx := context.Background()

	completeWalk(t, f, "user-1")

	_, err := f.start.Handle(ctx, StartSimulation{UserID: "user-1", SimulationID: "sim-budget"})
	assert.True(t, shared.IsInvalidState(err))
}

func TestApplyChoice_NotStarted(t *testing.T) {
	f := newHandlerFixture(t)

	_, err := f.apply.Handle(context.Background(), ApplyChoice{UserID: "user-1", SimulationID: "sim-budget", ChoiceID: "a"})
	assert.True(t, shared.IsInvalidState(err))
}

func TestApplyChoice_UnknownChoice(t *testing.T) {
	f := newHandlerFixture(t)
	ctx := context.Background()

	_, err := f.start.Handle(ctx, StartSimulation{UserID: "user-1", SimulationID: "sim-budget"})
	require.NoError(t, err)

	_, err = f.apply.Handle(ctx, ApplyChoice{UserID: "user-1", SimulationID: "sim-budget", ChoiceID: "z"})
	assert.True(t, shared.IsInvalidChoice(err))
}

func TestApplyChoice_AdvancesStep(t *testing.T) {
	f := newHandlerFixture(t)
	ctx := context.Background()

	_, err := f.start.Handle(ctx, StartSimulation{UserID: "user-1", SimulationID: "sim-budget"})
	require.NoError(t, err)

	res, err := f.apply.Handle(ctx, ApplyChoice{UserID: "user-1", SimulationID: "sim-budget", ChoiceID: "a"})
	require.NoError(t, err)

	assert.False(t, res.IsComplete)
	assert.Equal(t, "Жители благодарны", res.Feedback)
	require.NotNil(t, res.Scenario)
	assert.Equal(t, simulation.StepNumber(2), res.Scenario.Number)
	assert.Equal(t, 10, res.Progress.TotalScore)
	assert.Nil(t, res.Result)
}

func TestApplyChoice_CompletionRewardsAndNotifies(t *testing.T) {
	f := newHandlerFixture(t)
	res := completeWalk(t, f, "user-1")

	assert.True(t, res.IsComplete)
	require.NotNil(t, res.Result)
	assert.Equal(t, 100, res.Result.FinalScore)
	assert.Equal(t, 30, res.Result.TotalScore)
	assert.Equal(t, 2, res.Result.CorrectAnswers)
	assert.Equal(t, 100, res.Result.PointsEarned)
	assert.Empty(t, res.Result.RewardWarnings)

	var ids []string
	for _, a := range res.Result.NewAchievements {
		ids = append(ids, a.ID)
	}
	assert.Contains(t, ids, "first-simulation")

	// profile credited with the normalized score plus achievement bonuses
	u, err := f.profiles.GetOrCreate(context.Background(), "user-1")
	require.NoError(t, err)
	assert.GreaterOrEqual(t, int(u.Points), 100)
	assert.Equal(t, 1, u.CompletedSimulations)

	select {
	case userID := <-f.notifier.calls:
		assert.Equal(t, "user-1", userID)
	case <-time.After(time.Second):
		t.Fatal("completion notification was not sent")
	}
}

func TestApplyChoice_CompletedProgressIsImmutable(t *testing.T) {
	f := newHandlerFixture(t)
	completeWalk(t, f, "user-1")

	_, err := f.apply.Handle(context.Background(), ApplyChoice{UserID: "user-1", SimulationID: "sim-budget", ChoiceID: "a"})
	assert.True(t, shared.IsInvalidState(err))
}

// conflictingProgressRepo loses every optimistic write.
type conflictingProgressRepo struct {
	simulation.ProgressRepository
	mu    sync.Mutex
	saves int
}

func (r *conflictingProgressRepo) Save(context.Context, *simulation.SimulationProgress) error {
	r.mu.Lock()
	r.saves++
	r.mu.Unlock()
	return shared.NewDomainError("simulation", "Save", shared.ErrConcurrencyConflict, "version mismatch")
}

func TestApplyChoice_ConflictRetriesExhausted(t *testing.T) {
	f := newHandlerFixture(t)
	ctx := context.Background()

	_, err := f.start.Handle(ctx, StartSimulation{UserID: "user-1", SimulationID: "sim-budget"})
	require.NoError(t, err)

	repo := &conflictingProgressRepo{ProgressRepository: f.progress}
	log := logger.New(io.Discard, logger.LevelError)
	apply := NewApplyChoiceHandler(f.catalog, repo, nil, nil, nil, log)

	_, err = apply.Handle(ctx, ApplyChoice{UserID: "user-1", SimulationID: "sim-budget", ChoiceID: "a"})
	assert.True(t, shared.IsConcurrencyConflict(err))
	assert.Equal(t, maxWriteAttempts, repo.saves)
}

func TestResumeSimulation(t *testing.T) {
	f := newHandlerFixture(t)
	ctx := context.Background()

	_, err := f.start.Handle(ctx, StartSimulation{UserID: "user-1", SimulationID: "sim-budget"})
	require.NoError(t, err)
	_, err = f.apply.Handle(ctx, ApplyChoice{UserID: "user-1", SimulationID: "sim-budget", ChoiceID: "a"})
	require.NoError(t, err)

	res, err := f.resume.Handle(ctx, ResumeSimulation{UserID: "user-1", SimulationID: "sim-budget"})
	require.NoError(t, err)

	assert.Equal(t, simulation.StepNumber(2), res.Scenario.Number)
	assert.Equal(t, 10, res.Progress.TotalScore)
}

func TestResumeSimulation_NothingToResume(t *testing.T) {
	f := newHandlerFixture(t)
	ctx := context.Background()

	_, err := f.resume.Handle(ctx, ResumeSimulation{UserID: "user-1", SimulationID: "sim-budget"})
	assert.True(t, shared.IsInvalidState(err))

	completeWalk(t, f, "user-2")
	_, err = f.resume.Handle(ctx, ResumeSimulation{UserID: "user-2", SimulationID: "sim-budget"})
	assert.True(t, shared.IsInvalidState(err))
}

// completeWalk drives the best path: a (+10) then a (+20, terminal).
func completeWalk(t *testing.T, f *handlerFixture, userID string) *ApplyChoiceResult {
	t.Helper()
	ctx := context.Background()

	_, err := f.start.Handle(ctx, StartSimulation{UserID: userID, SimulationID: "sim-budget"})
	require.NoError(t, err)
	_, err = f.apply.Handle(ctx, ApplyChoice{UserID: userID, SimulationID: "sim-budget", ChoiceID: "a"})
	require.NoError(t, err)
	res, err := f.apply.Handle(ctx, ApplyChoice{UserID: userID, SimulationID: "sim-budget", ChoiceID: "a"})
	require.NoError(t, err)
	return res
}
