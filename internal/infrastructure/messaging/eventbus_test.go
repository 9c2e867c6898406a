package messaging

import (
	"context"
	"errors"
	"io"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/civic-hub/civic-sim-hub/internal/domain/shared"
	"github.com/civic-hub/civic-sim-hub/pkg/logger"
)

func syncBus() *InMemoryEventBus {
	return NewInMemoryEventBus(Config{
		AsyncMode: false,
		Logger:    logger.New(io.Discard, logger.LevelError),
	})
}

func TestEventBus_DeliversToTypeSubscriber(t *testing.T) {
	bus := syncBus()
	defer bus.Close()

	var got []shared.Event
	bus.Subscribe(shared.EventSimulationCompleted, func(_ context.Context, e shared.Event) error {
		got = append(got, e)
		return nil
	})

	event := shared.NewSimulationCompletedEvent("user-1", "local-budget", "Бюджет района", 88, 88)
	require.NoError(t, bus.Publish(context.Background(), event))
	require.NoError(t, bus.Publish(context.Background(), shared.NewSimulationStartedEvent("user-1", "local-budget")))

	// only the subscribed type is delivered
	require.Len(t, got, 1)
	assert.Equal(t, shared.EventSimulationCompleted, got[0].EventType())
	assert.Equal(t, "user-1", got[0].AggregateID())
}

func TestEventBus_SubscribeAllSeesEverything(t *testing.T) {
	bus := syncBus()
	defer bus.Close()

	var count int
	bus.SubscribeAll(func(context.Context, shared.Event) error {
		count++
		return nil
	})

	require.NoError(t, bus.Publish(context.Background(), shared.NewSimulationStartedEvent("user-1", "local-budget")))
	require.NoError(t, bus.Publish(context.Background(), shared.NewPointsAwardedEvent("user-1", 50, 50, 1)))
	assert.Equal(t, 2, count)
}

func TestEventBus_HandlerErrorDoesNotFailPublish(t *testing.T) {
	bus := syncBus()
	defer bus.Close()

	bus.Subscribe(shared.EventPointsAwarded, func(context.Context, shared.Event) error {
		return errors.New("handler down")
	})

	assert.NoError(t, bus.Publish(context.Background(), shared.NewPointsAwardedEvent("user-1", 50, 50, 1)))
}

func TestEventBus_ClosedRejectsPublish(t *testing.T) {
	bus := syncBus()
	require.NoError(t, bus.Close())

	err := bus.Publish(context.Background(), shared.NewSimulationStartedEvent("user-1", "local-budget"))
	assert.ErrorIs(t, err, ErrEventBusClosed)
}

func TestEventBus_AsyncDelivery(t *testing.T) {
	bus := NewInMemoryEventBus(Config{
		AsyncMode:      true,
		WorkerPoolSize: 2,
		Logger:         logger.New(io.Discard, logger.LevelError),
	})

	var (
		mu    sync.Mutex
		count int
	)
	bus.SubscribeAll(func(context.Context, shared.Event) error {
		mu.Lock()
		count++
		mu.Unlock()
		return nil
	})

	for i := 0; i < 5; i++ {
		require.NoError(t, bus.Publish(context.Background(), shared.NewPointsAwardedEvent("user-1", 10, 10, 1)))
	}

	// Close waits for in-flight handlers
	require.NoError(t, bus.Close())

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, 5, count)
}
