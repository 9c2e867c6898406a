package simulation

import (
	"fmt"
	"sort"

	"github.com/civic-hub/civic-sim-hub/internal/domain/shared"
)

// ══════════════════════════════════════════════════════════════════════════════
// SCENARIO CATALOG
// ══════════════════════════════════════════════════════════════════════════════

// Catalog - неизменяемый каталог симуляций.
// Строится один раз при старте процесса и после этого только читается,
// поэтому безопасен для конкурентного доступа без синхронизации.
type Catalog struct {
	byID  map[SimulationID]*SimulationDefinition
	order []SimulationID
}

// NewCatalog строит каталог из определений, валидируя каждое.
// Любое нарушение целостности приводит к ошибке MalformedDefinition -
// каталог с невалидными определениями не создаётся вовсе.
func NewCatalog(defs []*SimulationDefinition) (*Catalog, error) {
	byID := make(map[SimulationID]*SimulationDefinition, len(defs))
	order := make([]SimulationID, 0, len(defs))

	for _, def := range defs {
		if err := def.Validate(); err != nil {
			return nil, err
		}
		if _, dup := byID[def.ID]; dup {
			return nil, shared.WrapError(
				"catalog", "Load",
				shared.ErrMalformedDefinition,
				"duplicate simulation id",
				fmt.Errorf("simulation %q defined twice", def.ID),
			)
		}
		byID[def.ID] = def
		order = append(order, def.ID)
	}

	sort.Slice(order, func(i, j int) bool { return order[i] < order[j] })

	return &Catalog{byID: byID, order: order}, nil
}

// GetSimulation возвращает определение симуляции по идентификатору.
func (c *Catalog) GetSimulation(id SimulationID) (*SimulationDefinition, error) {
	def, ok := c.byID[id]
	if !ok {
		return nil, shared.NewDomainError(
			"catalog", "GetSimulation",
			shared.ErrNotFound,
			fmt.Sprintf("simulation %q not found", id),
		)
	}
	return def, nil
}

// GetStep возвращает шаг симуляции по номеру.
func (c *Catalog) GetStep(id SimulationID, n StepNumber) (ScenarioStep, error) {
	def, err := c.GetSimulation(id)
	if err != nil {
		return ScenarioStep{}, err
	}
	step, ok := def.Step(n)
	if !ok {
		return ScenarioStep{}, shared.NewDomainError(
			"catalog", "GetStep",
			shared.ErrNotFound,
			fmt.Sprintf("simulation %q has no step %d", id, n),
		)
	}
	return step, nil
}

// List возвращает все определения в стабильном порядке (по идентификатору).
func (c *Catalog) List() []*SimulationDefinition {
	defs := make([]*SimulationDefinition, 0, len(c.order))
	for _, id := range c.order {
		defs = append(defs, c.byID[id])
	}
	return defs
}

// Len возвращает количество симуляций в каталоге.
func (c *Catalog) Len() int {
	return len(c.byID)
}
