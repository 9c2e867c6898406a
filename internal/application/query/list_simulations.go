// Package query contains read-side application handlers. Queries never
// mutate state and never trigger rewards.
package query

import (
	"github.com/civic-hub/civic-sim-hub/internal/domain/simulation"
)

// SimulationSummary is a catalog listing row.
type SimulationSummary struct {
	ID               string
	Title            string
	Description      string
	StepCount        int
	MaxPossibleScore int
}

// ListSimulationsHandler lists every simulation in the catalog.
type ListSimulationsHandler struct {
	catalog *simulation.Catalog
}

// NewListSimulationsHandler creates a new ListSimulationsHandler.
func NewListSimulationsHandler(catalog *simulation.Catalog) *ListSimulationsHandler {
	return &ListSimulationsHandler{catalog: catalog}
}

// Handle returns catalog summaries in stable ID order.
func (h *ListSimulationsHandler) Handle() []SimulationSummary {
	defs := h.catalog.List()
	out := make([]SimulationSummary, 0, len(defs))
	for _, d := range defs {
		out = append(out, SimulationSummary{
			ID:               string(d.ID),
			Title:            d.Title,
			Description:      d.Description,
			StepCount:        len(d.Steps),
			MaxPossibleScore: d.MaxPossibleScore(),
		})
	}
	return out
}
