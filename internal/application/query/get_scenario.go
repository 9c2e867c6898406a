package query

import (
	"github.com/civic-hub/civic-sim-hub/internal/domain/simulation"
)

// GetScenario fetches one step of a simulation definition.
type GetScenario struct {
	SimulationID string
	Step         int
}

// GetScenarioHandler reads scenario steps straight from the catalog.
type GetScenarioHandler struct {
	catalog *simulation.Catalog
}

// NewGetScenarioHandler creates a new GetScenarioHandler.
func NewGetScenarioHandler(catalog *simulation.Catalog) *GetScenarioHandler {
	return &GetScenarioHandler{catalog: catalog}
}

// Handle returns the requested step. NotFound covers both an unknown
// simulation and a step number outside the definition.
func (h *GetScenarioHandler) Handle(q GetScenario) (simulation.ScenarioStep, error) {
	return h.catalog.GetStep(simulation.SimulationID(q.SimulationID), simulation.StepNumber(q.Step))
}
