// Package command contains write-side application handlers. Each handler is
// a stateless orchestration over the domain: load fresh state, run the pure
// state machine, write back with optimistic concurrency control.
package command

import (
	"context"

	"github.com/civic-hub/civic-sim-hub/internal/domain/shared"
	"github.com/civic-hub/civic-sim-hub/internal/domain/simulation"
	"github.com/civic-hub/civic-sim-hub/pkg/logger"
)

// StartSimulation begins (or restarts) a simulation walk for a user.
type StartSimulation struct {
	UserID       string
	SimulationID string
}

// StartSimulationResult is what the user sees after starting.
type StartSimulationResult struct {
	Title    string
	Scenario simulation.ScenarioStep
	Progress *simulation.SimulationProgress
}

// StartSimulationHandler handles the StartSimulation command.
type StartSimulationHandler struct {
	catalog  *simulation.Catalog
	machine  *simulation.Machine
	progress simulation.ProgressRepository
	events   shared.EventPublisher
	log      *logger.Logger
}

// NewStartSimulationHandler creates a new StartSimulationHandler.
func NewStartSimulationHandler(
	catalog *simulation.Catalog,
	progress simulation.ProgressRepository,
	events shared.EventPublisher,
	log *logger.Logger,
) *StartSimulationHandler {
	return &StartSimulationHandler{
		catalog:  catalog,
		machine:  simulation.NewMachine(catalog),
		progress: progress,
		events:   events,
		log:      log,
	}
}

// Handle creates fresh progress at step 1 and persists it.
// Restarting an unfinished walk resets it; a completed walk is immutable
// and returns InvalidState.
func (h *StartSimulationHandler) Handle(ctx context.Context, cmd StartSimulation) (*StartSimulationResult, error) {
	simID := simulation.SimulationID(cmd.SimulationID)

	def, err := h.catalog.GetSimulation(simID)
	if err != nil {
		return nil, err
	}

	for attempt := 0; attempt < maxWriteAttempts; attempt++ {
		existing, err := h.progress.Load(ctx, cmd.UserID, simID)
		if err != nil {
			return nil, err
		}
		if existing != nil && existing.IsCompleted() {
			return nil, shared.NewDomainError(
				"simulation", "StartSimulation",
				shared.ErrInvalidState,
				"completed simulation cannot be restarted",
			)
		}

		fresh, err := h.machine.Start(simID, cmd.UserID)
		if err != nil {
			return nil, err
		}
		if existing != nil {
			// Replace the abandoned walk in place: carry its version so the
			// CAS write detects a concurrent submission.
			fresh.Version = existing.Version
		}

		if err := h.progress.Save(ctx, fresh); err != nil {
			if shared.IsConcurrencyConflict(err) {
				continue
			}
			return nil, err
		}

		scenario, err := h.machine.CurrentScenario(fresh)
		if err != nil {
			return nil, err
		}

		h.publishStarted(ctx, cmd)

		return &StartSimulationResult{
			Title:    def.Title,
			Scenario: scenario,
			Progress: fresh,
		}, nil
	}

	return nil, shared.NewDomainError(
		"simulation", "StartSimulation",
		shared.ErrConcurrencyConflict,
		"could not start simulation after repeated conflicts",
	)
}

func (h *StartSimulationHandler) publishStarted(ctx context.Context, cmd StartSimulation) {
	if h.events == nil {
		return
	}
	event := shared.NewSimulationStartedEvent(cmd.UserID, cmd.SimulationID)
	if err := h.events.Publish(ctx, event); err != nil {
		h.log.Warn("start simulation: event publish failed", logger.Err(err))
	}
}
