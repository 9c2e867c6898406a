package memory

import (
	"context"
	"fmt"
	"sync"

	"github.com/civic-hub/civic-sim-hub/internal/domain/profile"
	"github.com/civic-hub/civic-sim-hub/internal/domain/shared"
)

// ProfileStore implements profile.ProfileRepository in memory.
type ProfileStore struct {
	mu   sync.RWMutex
	rows map[string]*profile.UserProfile
}

// NewProfileStore creates an empty ProfileStore.
func NewProfileStore() *ProfileStore {
	return &ProfileStore{rows: make(map[string]*profile.UserProfile)}
}

// GetOrCreate returns the profile for userID, creating an empty one first time.
func (s *ProfileStore) GetOrCreate(ctx context.Context, userID string) (*profile.UserProfile, error) {
	if err := ctx.Err(); err != nil {
		return nil, shared.WrapError("profile", "GetOrCreate", shared.ErrPersistence, "context cancelled", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if u, ok := s.rows[userID]; ok {
		return u.Clone(), nil
	}

	u, err := profile.NewUserProfile(userID)
	if err != nil {
		return nil, err
	}
	s.rows[userID] = u.Clone()
	return u, nil
}

// Update saves the profile with a compare-and-swap on Version.
func (s *ProfileStore) Update(ctx context.Context, u *profile.UserProfile) error {
	if err := ctx.Err(); err != nil {
		return shared.WrapError("profile", "Update", shared.ErrPersistence, "context cancelled", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	stored, ok := s.rows[u.UserID]
	if !ok {
		return shared.NewDomainError("profile", "Update", shared.ErrNotFound, "profile not found")
	}
	if stored.Version != u.Version {
		return shared.NewDomainError(
			"profile", "Update",
			shared.ErrConcurrencyConflict,
			fmt.Sprintf("version mismatch: stored %d, read %d", stored.Version, u.Version),
		)
	}

	u.Version++
	s.rows[u.UserID] = u.Clone()
	return nil
}
