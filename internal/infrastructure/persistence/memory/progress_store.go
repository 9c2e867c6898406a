// Package memory implements in-memory persistence for the engine.
// Used in development mode and in tests. Every store is safe for concurrent
// use and mirrors the optimistic-concurrency contract of the Postgres layer,
// so races lost in tests fail the same way they would in production.
package memory

import (
	"context"
	"fmt"
	"sync"

	"github.com/civic-hub/civic-sim-hub/internal/domain/shared"
	"github.com/civic-hub/civic-sim-hub/internal/domain/simulation"
)

// ProgressStore implements simulation.ProgressRepository in memory.
type ProgressStore struct {
	mu   sync.RWMutex
	rows map[string]*simulation.SimulationProgress
}

// NewProgressStore creates an empty ProgressStore.
func NewProgressStore() *ProgressStore {
	return &ProgressStore{rows: make(map[string]*simulation.SimulationProgress)}
}

func progressKey(userID string, simulationID simulation.SimulationID) string {
	return userID + "|" + string(simulationID)
}

// Load returns the stored progress for (userID, simulationID), or (nil, nil).
func (s *ProgressStore) Load(ctx context.Context, userID string, simulationID simulation.SimulationID) (*simulation.SimulationProgress, error) {
	if err := ctx.Err(); err != nil {
		return nil, shared.WrapError("progress", "Load", shared.ErrPersistence, "context cancelled", err)
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	p, ok := s.rows[progressKey(userID, simulationID)]
	if !ok {
		return nil, nil
	}
	if err := p.CheckInvariants(); err != nil {
		return nil, shared.WrapError("progress", "Load", shared.ErrPersistence,
			"stored progress violates invariants", err)
	}
	return p.Clone(), nil
}

// Save upserts progress with a compare-and-swap on Version.
func (s *ProgressStore) Save(ctx context.Context, p *simulation.SimulationProgress) error {
	if err := ctx.Err(); err != nil {
		return shared.WrapError("progress", "Save", shared.ErrPersistence, "context cancelled", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	key := progressKey(p.UserID, p.SimulationID)
	stored, exists := s.rows[key]

	if exists && stored.Version != p.Version {
		return shared.NewDomainError(
			"progress", "Save",
			shared.ErrConcurrencyConflict,
			fmt.Sprintf("version mismatch: stored %d, read %d", stored.Version, p.Version),
		)
	}
	if !exists && p.Version != 0 {
		return shared.NewDomainError(
			"progress", "Save",
			shared.ErrConcurrencyConflict,
			"progress row was deleted concurrently",
		)
	}

	p.Version++
	s.rows[key] = p.Clone()
	return nil
}
