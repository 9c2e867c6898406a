package command

import (
	"context"

	"github.com/civic-hub/civic-sim-hub/internal/domain/shared"
	"github.com/civic-hub/civic-sim-hub/internal/domain/simulation"
)

// ResumeSimulation reopens an unfinished walk at its saved step.
type ResumeSimulation struct {
	UserID       string
	SimulationID string
}

// ResumeSimulationResult is what the user sees after resuming.
type ResumeSimulationResult struct {
	Title    string
	Scenario simulation.ScenarioStep
	Progress *simulation.SimulationProgress
}

// ResumeSimulationHandler handles the ResumeSimulation command.
type ResumeSimulationHandler struct {
	catalog  *simulation.Catalog
	machine  *simulation.Machine
	progress simulation.ProgressRepository
}

// NewResumeSimulationHandler creates a new ResumeSimulationHandler.
func NewResumeSimulationHandler(
	catalog *simulation.Catalog,
	progress simulation.ProgressRepository,
) *ResumeSimulationHandler {
	return &ResumeSimulationHandler{
		catalog:  catalog,
		machine:  simulation.NewMachine(catalog),
		progress: progress,
	}
}

// Handle reconstructs the current scenario from saved progress without
// replaying the choice history. InvalidState when there is nothing to
// resume: no saved progress, or the walk is already completed.
func (h *ResumeSimulationHandler) Handle(ctx context.Context, cmd ResumeSimulation) (*ResumeSimulationResult, error) {
	simID := simulation.SimulationID(cmd.SimulationID)

	def, err := h.catalog.GetSimulation(simID)
	if err != nil {
		return nil, err
	}

	p, err := h.progress.Load(ctx, cmd.UserID, simID)
	if err != nil {
		return nil, err
	}
	if p == nil {
		return nil, shared.NewDomainError(
			"simulation", "ResumeSimulation",
			shared.ErrInvalidState,
			"no saved progress to resume",
		)
	}

	scenario, err := h.machine.CurrentScenario(p)
	if err != nil {
		return nil, err
	}

	return &ResumeSimulationResult{
		Title:    def.Title,
		Scenario: scenario,
		Progress: p,
	}, nil
}
