package query

import (
	"context"

	"github.com/civic-hub/civic-sim-hub/internal/domain/profile"
	"github.com/civic-hub/civic-sim-hub/internal/domain/shared"
	"github.com/civic-hub/civic-sim-hub/internal/domain/simulation"
)

// GetProgress fetches the state of one user's walk.
type GetProgress struct {
	UserID       string
	SimulationID string
}

// ProgressView is the read model of a walk. Scenario is set while the walk
// is in progress; Result is set once it is completed.
type ProgressView struct {
	Title      string
	Status     simulation.Status
	Step       simulation.StepNumber
	TotalScore int
	Scenario   *simulation.ScenarioStep
	Result     *simulation.SimulationResult
}

// GetProgressHandler assembles the progress read model.
type GetProgressHandler struct {
	catalog      *simulation.Catalog
	progress     simulation.ProgressRepository
	completions  profile.CompletionRepository
	achievements []profile.Achievement
}

// NewGetProgressHandler creates a new GetProgressHandler.
func NewGetProgressHandler(
	catalog *simulation.Catalog,
	progress simulation.ProgressRepository,
	completions profile.CompletionRepository,
	achievements []profile.Achievement,
) *GetProgressHandler {
	return &GetProgressHandler{
		catalog:      catalog,
		progress:     progress,
		completions:  completions,
		achievements: achievements,
	}
}

// Handle returns the walk state. For a completed walk the result is
// reassembled from immutable progress and the recorded reward outcome;
// nothing is recomputed against the ledger and nothing is re-awarded.
func (h *GetProgressHandler) Handle(ctx context.Context, q GetProgress) (*ProgressView, error) {
	simID := simulation.SimulationID(q.SimulationID)

	def, err := h.catalog.GetSimulation(simID)
	if err != nil {
		return nil, err
	}

	p, err := h.progress.Load(ctx, q.UserID, simID)
	if err != nil {
		return nil, err
	}
	if p == nil {
		return nil, shared.NewDomainError(
			"simulation", "GetProgress",
			shared.ErrNotFound,
			"no progress for this simulation",
		)
	}

	view := &ProgressView{
		Title:      def.Title,
		Status:     p.Status,
		Step:       p.CurrentStep,
		TotalScore: p.TotalScore,
	}

	if !p.IsCompleted() {
		scenario, err := h.catalog.GetStep(simID, p.CurrentStep)
		if err != nil {
			return nil, err
		}
		view.Scenario = &scenario
		return view, nil
	}

	reward, err := h.recordedReward(ctx, q)
	if err != nil {
		return nil, err
	}
	view.Result = simulation.BuildResult(p, def, reward)
	return view, nil
}

// recordedReward replays the reward outcome stored at completion time.
func (h *GetProgressHandler) recordedReward(ctx context.Context, q GetProgress) (simulation.RewardOutcome, error) {
	rec, err := h.completions.Find(ctx, profile.ActivityDescriptor{
		UserID:     q.UserID,
		Kind:       profile.ActivitySimulation,
		ActivityID: q.SimulationID,
	})
	if err != nil {
		return simulation.RewardOutcome{}, err
	}
	if rec == nil {
		// Completion persisted but rewards were never recorded: the next
		// completion event re-drives them.
		return simulation.RewardOutcome{
			Warnings: []string{"rewards may not have been fully applied"},
		}, nil
	}

	grants := make([]simulation.AchievementGrant, 0, len(rec.AchievementIDs))
	for _, id := range rec.AchievementIDs {
		for _, def := range h.achievements {
			if string(def.ID) == id {
				grants = append(grants, simulation.AchievementGrant{
					ID:     id,
					Title:  def.Title,
					Points: def.Points,
				})
				break
			}
		}
	}

	return simulation.RewardOutcome{
		PointsEarned:    rec.PointsEarned,
		NewAchievements: grants,
	}, nil
}
