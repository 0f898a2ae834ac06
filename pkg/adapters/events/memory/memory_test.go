package memory

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kestrelorch/kestrel/pkg/domain"
)

func TestPublishDeliversInOrder(t *testing.T) {
	bus := NewInMemoryEventBus()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var mu sync.Mutex
	var got []string
	require.NoError(t, bus.Subscribe(ctx, "test", func(ctx context.Context, event domain.ControlEvent) error {
		mu.Lock()
		defer mu.Unlock()
		got = append(got, event.Message)
		return nil
	}))

	const n = 100
	want := make([]string, n)
	for i := 0; i < n; i++ {
		event := domain.NewControlEvent(domain.EventNodeWarning, "run-1", "node")
		event.Message = fmt.Sprintf("event-%03d", i)
		want[i] = event.Message
		require.NoError(t, bus.Publish(ctx, "test", event))
	}

	require.Eventually(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return len(got) == n
	}, 2*time.Second, 5*time.Millisecond)

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, want, got)
}

func TestEachSubscriberReceivesEveryEvent(t *testing.T) {
	bus := NewInMemoryEventBus()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var mu sync.Mutex
	counts := make(map[int]int)
	for i := 0; i < 3; i++ {
		id := i
		require.NoError(t, bus.Subscribe(ctx, "test", func(ctx context.Context, event domain.ControlEvent) error {
			mu.Lock()
			defer mu.Unlock()
			counts[id]++
			return nil
		}))
	}

	for i := 0; i < 10; i++ {
		require.NoError(t, bus.Publish(ctx, "test", domain.NewControlEvent(domain.EventNodeRunning, "run-1", "node")))
	}

	require.Eventually(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return counts[0] == 10 && counts[1] == 10 && counts[2] == 10
	}, 2*time.Second, 5*time.Millisecond)
}

func TestTopicsAreIsolated(t *testing.T) {
	bus := NewInMemoryEventBus()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var mu sync.Mutex
	var got []string
	require.NoError(t, bus.Subscribe(ctx, "a", func(ctx context.Context, event domain.ControlEvent) error {
		mu.Lock()
		defer mu.Unlock()
		got = append(got, event.Node)
		return nil
	}))

	require.NoError(t, bus.Publish(ctx, "b", domain.NewControlEvent(domain.EventNodeRunning, "run-1", "other")))
	require.NoError(t, bus.Publish(ctx, "a", domain.NewControlEvent(domain.EventNodeRunning, "run-1", "mine")))

	require.Eventually(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return len(got) == 1
	}, time.Second, 5*time.Millisecond)

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, []string{"mine"}, got)
}

func TestCancelledSubscriptionStopsDelivery(t *testing.T) {
	bus := NewInMemoryEventBus()
	ctx, cancel := context.WithCancel(context.Background())

	var mu sync.Mutex
	count := 0
	require.NoError(t, bus.Subscribe(ctx, "test", func(ctx context.Context, event domain.ControlEvent) error {
		mu.Lock()
		defer mu.Unlock()
		count++
		return nil
	}))

	cancel()
	require.Eventually(t, func() bool {
		// Publishing after cancellation must not block forever.
		done := make(chan struct{})
		go func() {
			_ = bus.Publish(context.Background(), "test", domain.NewControlEvent(domain.EventNodeRunning, "run-1", "node"))
			close(done)
		}()
		select {
		case <-done:
			return true
		case <-time.After(100 * time.Millisecond):
			return false
		}
	}, 2*time.Second, 10*time.Millisecond)
}

func TestCloseDropsSubscribers(t *testing.T) {
	bus := NewInMemoryEventBus()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	require.NoError(t, bus.Subscribe(ctx, "test", func(ctx context.Context, event domain.ControlEvent) error {
		return nil
	}))
	require.NoError(t, bus.Close())

	// Publish to a closed bus is a no-op, not a hang.
	require.NoError(t, bus.Publish(ctx, "test", domain.NewControlEvent(domain.EventNodeRunning, "run-1", "node")))
}
