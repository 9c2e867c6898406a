package memory

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/civic-hub/civic-sim-hub/internal/domain/profile"
)

func TestActivityLog_AppendDeduplicatesByID(t *testing.T) {
	l := NewActivityLog()
	ctx := context.Background()

	entry := profile.ActivityEntry{
		ID:         "entry-user-1:simulation:sim-budget",
		UserID:     "user-1",
		Kind:       profile.ActivitySimulation,
		ActivityID: "sim-budget",
		Points:     85,
		OccurredAt: time.Date(2026, 8, 15, 12, 0, 0, 0, time.UTC),
	}

	inserted, err := l.Append(ctx, entry)
	require.NoError(t, err)
	assert.True(t, inserted)

	inserted, err = l.Append(ctx, entry)
	require.NoError(t, err)
	assert.False(t, inserted)

	require.Len(t, l.Entries(), 1)
}
