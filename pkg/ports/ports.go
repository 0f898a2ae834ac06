// Package ports declares the interfaces the orchestration kernel expects
// from its adapters: the event/control bus, run-state storage and metrics.
package ports

import (
	"context"
	"time"

	"github.com/kestrelorch/kestrel/pkg/domain"
)

// Bus topics. Node transitions and warnings go to TopicNodeEvents, run
// lifecycle events to TopicRunEvents and inbound commands to TopicCommands.
const (
	TopicNodeEvents = "node.events"
	TopicRunEvents  = "run.events"
	TopicCommands   = "run.commands"
)

// EventHandler consumes one ControlEvent. Returning an error leaves the
// event unacknowledged on buses that support redelivery.
type EventHandler func(ctx context.Context, event domain.ControlEvent) error

// EventBus is the shared publish/subscribe channel of a run. Delivery is
// at-least-once per subscriber and ordered per publisher; subscribers are
// independent of each other.
type EventBus interface {
	Publish(ctx context.Context, topic string, event domain.ControlEvent) error
	Subscribe(ctx context.Context, topic string, handler EventHandler) error
	Close() error
}

// StateStorage persists run snapshots for the status API.
type StateStorage interface {
	SaveRun(ctx context.Context, state *domain.RunState) error
	GetRun(ctx context.Context, runID string) (*domain.RunState, error)
	DeleteRun(ctx context.Context, runID string) error
	ListRuns(ctx context.Context) ([]*domain.RunState, error)
}

// MetricsCollector records orchestration metrics.
type MetricsCollector interface {
	RecordRunSubmitted(status string)
	RecordRunFinished(status string, duration time.Duration)
	RecordNodeTransition(to string)
	ObserveHookDuration(hook string, duration time.Duration)
	RecordRestartAttempt()
	SetActiveRuns(count int)
}

// NopMetrics discards all metrics. Used in tests and by embedders that do
// not scrape.
type NopMetrics struct{}

func (NopMetrics) RecordRunSubmitted(string)                  {}
func (NopMetrics) RecordRunFinished(string, time.Duration)    {}
func (NopMetrics) RecordNodeTransition(string)                {}
func (NopMetrics) ObserveHookDuration(string, time.Duration)  {}
func (NopMetrics) RecordRestartAttempt()                      {}
func (NopMetrics) SetActiveRuns(int)                          {}
