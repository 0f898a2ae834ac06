package memory

import (
	"context"
	"sync"

	"github.com/kestrelorch/kestrel/pkg/domain"
	"github.com/kestrelorch/kestrel/pkg/ports"
)

const subscriberQueueSize = 256

// subscription is one subscriber's serial delivery queue. A dedicated
// goroutine drains it so events reach the handler in publish order
// without blocking the publisher.
type subscription struct {
	handler ports.EventHandler
	queue   chan domain.ControlEvent
	ctx     context.Context
}

func (s *subscription) deliver() {
	for {
		select {
		case <-s.ctx.Done():
			return
		case event := <-s.queue:
			// Handler errors are the subscriber's problem; the memory
			// bus has no redelivery.
			_ = s.handler(s.ctx, event)
		}
	}
}

// InMemoryEventBus implements EventBus without external infrastructure.
// Each subscriber gets its own ordered queue, so subscribers never block
// each other and per-publisher ordering is preserved.
type InMemoryEventBus struct {
	mu          sync.RWMutex
	subscribers map[string][]*subscription
}

// NewInMemoryEventBus creates a new in-memory event bus.
func NewInMemoryEventBus() *InMemoryEventBus {
	return &InMemoryEventBus{
		subscribers: make(map[string][]*subscription),
	}
}

// Publish enqueues an event on every subscriber of the topic. It blocks
// only when a subscriber's queue is full.
func (e *InMemoryEventBus) Publish(ctx context.Context, topic string, event domain.ControlEvent) error {
	e.mu.RLock()
	subs := make([]*subscription, len(e.subscribers[topic]))
	copy(subs, e.subscribers[topic])
	e.mu.RUnlock()

	for _, sub := range subs {
		select {
		case sub.queue <- event:
		case <-sub.ctx.Done():
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	return nil
}

// Subscribe registers a handler for a topic. The subscription lives until
// the given context is cancelled.
func (e *InMemoryEventBus) Subscribe(ctx context.Context, topic string, handler ports.EventHandler) error {
	sub := &subscription{
		handler: handler,
		queue:   make(chan domain.ControlEvent, subscriberQueueSize),
		ctx:     ctx,
	}

	e.mu.Lock()
	e.subscribers[topic] = append(e.subscribers[topic], sub)
	e.mu.Unlock()

	go sub.deliver()
	go func() {
		<-ctx.Done()
		e.remove(topic, sub)
	}()

	return nil
}

// Close drops all subscriptions.
func (e *InMemoryEventBus) Close() error {
	e.mu.Lock()
	defer e.mu.Unlock()

	e.subscribers = make(map[string][]*subscription)
	return nil
}

func (e *InMemoryEventBus) remove(topic string, sub *subscription) {
	e.mu.Lock()
	defer e.mu.Unlock()

	subs := e.subscribers[topic]
	for i, s := range subs {
		if s == sub {
			e.subscribers[topic] = append(subs[:i], subs[i+1:]...)
			return
		}
	}
}
