package memory

import (
	"context"
	"sync"

	"github.com/civic-hub/civic-sim-hub/internal/domain/profile"
	"github.com/civic-hub/civic-sim-hub/internal/domain/shared"
)

// AchievementStore implements profile.AchievementRepository in memory.
type AchievementStore struct {
	mu   sync.Mutex
	rows map[string]profile.UserAchievement // key: userID|achievementID
}

// NewAchievementStore creates an empty AchievementStore.
func NewAchievementStore() *AchievementStore {
	return &AchievementStore{rows: make(map[string]profile.UserAchievement)}
}

func awardKey(userID string, id profile.AchievementID) string {
	return userID + "|" + string(id)
}

// ListEarned returns all achievements of the user.
func (s *AchievementStore) ListEarned(ctx context.Context, userID string) ([]profile.UserAchievement, error) {
	if err := ctx.Err(); err != nil {
		return nil, shared.WrapError("achievement", "ListEarned", shared.ErrPersistence, "context cancelled", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	var earned []profile.UserAchievement
	for _, ua := range s.rows {
		if ua.UserID == userID {
			earned = append(earned, ua)
		}
	}
	return earned, nil
}

// Award inserts the row if absent. The check and the insert run under one
// lock, so concurrent awards of the same achievement yield exactly one row.
func (s *AchievementStore) Award(ctx context.Context, ua profile.UserAchievement) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, shared.WrapError("achievement", "Award", shared.ErrPersistence, "context cancelled", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	key := awardKey(ua.UserID, ua.AchievementID)
	if _, exists := s.rows[key]; exists {
		return false, nil
	}
	s.rows[key] = ua
	return true, nil
}

// ActivityLog implements profile.ActivityLogRepository in memory.
type ActivityLog struct {
	mu      sync.Mutex
	entries []profile.ActivityEntry
}

// NewActivityLog creates an empty ActivityLog.
func NewActivityLog() *ActivityLog {
	return &ActivityLog{}
}

// Append adds an entry to the log. A second append with the same entry ID
// is a no-op and reports inserted=false.
func (l *ActivityLog) Append(ctx context.Context, entry profile.ActivityEntry) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, shared.WrapError("activity", "Append", shared.ErrPersistence, "context cancelled", err)
	}

	l.mu.Lock()
	defer l.mu.Unlock()
	for _, e := range l.entries {
		if e.ID == entry.ID {
			return false, nil
		}
	}
	l.entries = append(l.entries, entry)
	return true, nil
}

// Entries returns a snapshot of the log (test helper).
func (l *ActivityLog) Entries() []profile.ActivityEntry {
	l.mu.Lock()
	defer l.mu.Unlock()
	out := make([]profile.ActivityEntry, len(l.entries))
	copy(out, l.entries)
	return out
}

// CompletionStore implements profile.CompletionRepository in memory.
type CompletionStore struct {
	mu   sync.Mutex
	rows map[string]profile.CompletionRecord
}

// NewCompletionStore creates an empty CompletionStore.
func NewCompletionStore() *CompletionStore {
	return &CompletionStore{rows: make(map[string]profile.CompletionRecord)}
}

// Find returns the completion record for the descriptor, or (nil, nil).
func (s *CompletionStore) Find(ctx context.Context, d profile.ActivityDescriptor) (*profile.CompletionRecord, error) {
	if err := ctx.Err(); err != nil {
		return nil, shared.WrapError("completion", "Find", shared.ErrPersistence, "context cancelled", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	rec, ok := s.rows[d.Key()]
	if !ok {
		return nil, nil
	}
	out := rec
	return &out, nil
}

// Record stores the completion record; repeated calls keep the first record.
func (s *CompletionStore) Record(ctx context.Context, rec profile.CompletionRecord) error {
	if err := ctx.Err(); err != nil {
		return shared.WrapError("completion", "Record", shared.ErrPersistence, "context cancelled", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	key := rec.Descriptor.Key()
	if _, exists := s.rows[key]; exists {
		return nil
	}
	s.rows[key] = rec
	return nil
}
