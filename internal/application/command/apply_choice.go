package command

import (
	"context"
	"time"

	"github.com/civic-hub/civic-sim-hub/internal/application/saga"
	"github.com/civic-hub/civic-sim-hub/internal/domain/profile"
	"github.com/civic-hub/civic-sim-hub/internal/domain/shared"
	"github.com/civic-hub/civic-sim-hub/internal/domain/simulation"
	"github.com/civic-hub/civic-sim-hub/pkg/logger"
)

// maxWriteAttempts bounds the reload-and-retry loop around optimistic writes.
// Exhausting it surfaces as ConcurrencyConflict.
const maxWriteAttempts = 3

// notifyTimeout caps the fire-and-forget completion notification.
const notifyTimeout = 10 * time.Second

// CompletionNotifier delivers a completion notification to the user.
// Delivery is best-effort: errors never fail the completion itself.
type CompletionNotifier interface {
	NotifyCompletion(ctx context.Context, userID, title string, score int) error
}

// ApplyChoice submits one choice on the user's current step.
type ApplyChoice struct {
	UserID       string
	SimulationID string
	ChoiceID     string
}

// ApplyChoiceResult carries the transition outcome. Exactly one of
// Scenario (walk continues) or Result (walk completed) is set.
type ApplyChoiceResult struct {
	Feedback   string
	IsComplete bool
	Progress   *simulation.SimulationProgress
	Scenario   *simulation.ScenarioStep
	Result     *simulation.SimulationResult
}

// ApplyChoiceHandler handles the ApplyChoice command: the read-transition-CAS
// write loop, plus the reward flow on terminal transitions.
type ApplyChoiceHandler struct {
	catalog  *simulation.Catalog
	machine  *simulation.Machine
	progress simulation.ProgressRepository
	rewards  *saga.RewardFlowSaga
	notifier CompletionNotifier
	events   shared.EventPublisher
	log      *logger.Logger
}

// NewApplyChoiceHandler creates a new ApplyChoiceHandler.
// notifier and events may be nil.
func NewApplyChoiceHandler(
	catalog *simulation.Catalog,
	progress simulation.ProgressRepository,
	rewards *saga.RewardFlowSaga,
	notifier CompletionNotifier,
	events shared.EventPublisher,
	log *logger.Logger,
) *ApplyChoiceHandler {
	return &ApplyChoiceHandler{
		catalog:  catalog,
		machine:  simulation.NewMachine(catalog),
		progress: progress,
		rewards:  rewards,
		notifier: notifier,
		events:   events,
		log:      log,
	}
}

// Handle applies the choice against freshly loaded progress and saves the
// result with a version check. On a lost race the state is reloaded and the
// transition recomputed; two submissions never both apply against the same
// prior state.
func (h *ApplyChoiceHandler) Handle(ctx context.Context, cmd ApplyChoice) (*ApplyChoiceResult, error) {
	simID := simulation.SimulationID(cmd.SimulationID)

	for attempt := 0; attempt < maxWriteAttempts; attempt++ {
		p, err := h.progress.Load(ctx, cmd.UserID, simID)
		if err != nil {
			return nil, err
		}
		if p == nil {
			return nil, shared.NewDomainError(
				"simulation", "ApplyChoice",
				shared.ErrInvalidState,
				"simulation was not started",
			)
		}

		next, transition, err := h.machine.ApplyChoice(p, cmd.ChoiceID)
		if err != nil {
			return nil, err
		}

		if err := h.progress.Save(ctx, next); err != nil {
			if shared.IsConcurrencyConflict(err) {
				h.log.Debug("apply choice: lost optimistic write, reloading",
					logger.String("user_id", cmd.UserID),
					logger.String("simulation_id", cmd.SimulationID),
					logger.Int("attempt", attempt+1))
				continue
			}
			return nil, err
		}

		if transition.IsComplete {
			return h.finalize(ctx, next, transition)
		}

		scenario, err := h.catalog.GetStep(simID, next.CurrentStep)
		if err != nil {
			return nil, err
		}
		return &ApplyChoiceResult{
			Feedback: transition.Choice.Feedback,
			Progress: next,
			Scenario: &scenario,
		}, nil
	}

	return nil, shared.NewDomainError(
		"simulation", "ApplyChoice",
		shared.ErrConcurrencyConflict,
		"concurrent submissions exhausted retries",
	)
}

// finalize runs the terminal-transition side of the command: score the walk,
// apply rewards through the ledger, assemble the result, publish and notify.
func (h *ApplyChoiceHandler) finalize(ctx context.Context, p *simulation.SimulationProgress, transition *simulation.Transition) (*ApplyChoiceResult, error) {
	def, err := h.catalog.GetSimulation(p.SimulationID)
	if err != nil {
		return nil, err
	}

	// The normalized score is what the walk credits to the profile.
	base := simulation.BuildResult(p, def, simulation.RewardOutcome{})

	outcome, err := h.rewards.Execute(ctx, saga.RewardInput{
		Descriptor: profile.ActivityDescriptor{
			UserID:     p.UserID,
			Kind:       profile.ActivitySimulation,
			ActivityID: string(p.SimulationID),
		},
		PointsEarned: base.FinalScore,
		Title:        def.Title,
	})
	if err != nil {
		// The transition is already persisted; report the result with a
		// warning instead of failing the completion.
		h.log.Error("apply choice: reward flow failed",
			logger.String("user_id", p.UserID),
			logger.Err(err))
		outcome = &saga.RewardOutcome{
			PointsEarned: base.FinalScore,
			Warnings:     []string{"rewards were not applied and will be retried"},
		}
	}

	result := simulation.BuildResult(p, def, rewardOutcomeOf(outcome))

	h.publishCompleted(ctx, p, def, result)
	h.notifyCompleted(p.UserID, def.Title, result.FinalScore)

	return &ApplyChoiceResult{
		Feedback:   transition.Choice.Feedback,
		IsComplete: true,
		Progress:   p,
		Result:     result,
	}, nil
}

// rewardOutcomeOf translates the ledger outcome into the result's view of it.
func rewardOutcomeOf(o *saga.RewardOutcome) simulation.RewardOutcome {
	grants := make([]simulation.AchievementGrant, 0, len(o.NewAchievements))
	for _, a := range o.NewAchievements {
		grants = append(grants, simulation.AchievementGrant{
			ID:     string(a.ID),
			Title:  a.Title,
			Points: a.Points,
		})
	}
	return simulation.RewardOutcome{
		PointsEarned:    o.PointsEarned,
		NewAchievements: grants,
		Warnings:        o.Warnings,
	}
}

func (h *ApplyChoiceHandler) publishCompleted(ctx context.Context, p *simulation.SimulationProgress, def *simulation.SimulationDefinition, result *simulation.SimulationResult) {
	if h.events == nil {
		return
	}
	event := shared.NewSimulationCompletedEvent(
		p.UserID, string(p.SimulationID), def.Title,
		result.FinalScore, result.PointsEarned,
	)
	if err := h.events.Publish(ctx, event); err != nil {
		h.log.Warn("apply choice: completion event publish failed", logger.Err(err))
	}
}

// notifyCompleted delivers the completion notification in the background.
// The request context is not used: the response must not wait on delivery.
func (h *ApplyChoiceHandler) notifyCompleted(userID, title string, score int) {
	if h.notifier == nil {
		return
	}
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), notifyTimeout)
		defer cancel()
		if err := h.notifier.NotifyCompletion(ctx, userID, title, score); err != nil {
			h.log.Warn("apply choice: completion notification failed",
				logger.String("user_id", userID),
				logger.Err(err))
		}
	}()
}
