package domain

import (
	"time"

	"github.com/google/uuid"
)

// EventKind classifies a ControlEvent. Node and run kinds record state
// transitions; command kinds are inbound imperative overrides delivered
// through the same bus.
type EventKind string

const (
	EventRunSubmitted EventKind = "run.submitted"
	EventRunDraining  EventKind = "run.draining"
	EventRunFinished  EventKind = "run.finished"

	EventNodeStarting EventKind = "node.starting"
	EventNodeRunning  EventKind = "node.running"
	EventNodeDegraded EventKind = "node.degraded"
	EventNodeStopping EventKind = "node.stopping"
	EventNodeStopped  EventKind = "node.stopped"
	EventNodeFailed   EventKind = "node.failed"
	EventNodeWarning  EventKind = "node.warning"

	CommandPause   EventKind = "command.pause"
	CommandResume  EventKind = "command.resume"
	CommandRestart EventKind = "command.restart"
	CommandCancel  EventKind = "command.cancel"
)

// Command reports whether the kind is an inbound imperative command.
func (k EventKind) Command() bool {
	switch k {
	case CommandPause, CommandResume, CommandRestart, CommandCancel:
		return true
	default:
		return false
	}
}

// KindForStatus maps a node status to the event kind published when an
// instance enters that status.
func KindForStatus(s NodeStatus) EventKind {
	switch s {
	case StatusStarting:
		return EventNodeStarting
	case StatusRunning:
		return EventNodeRunning
	case StatusDegraded:
		return EventNodeDegraded
	case StatusStopping:
		return EventNodeStopping
	case StatusStopped:
		return EventNodeStopped
	case StatusFailed:
		return EventNodeFailed
	default:
		return EventNodeWarning
	}
}

// ControlEvent is the immutable record of a state transition, a warning or
// an inbound command. The event stream is the single source of truth for
// everything that happens inside a run.
type ControlEvent struct {
	ID        string     `json:"id"`
	Kind      EventKind  `json:"kind"`
	RunID     string     `json:"run_id"`
	Node      string     `json:"node,omitempty"`
	From      NodeStatus `json:"from,omitempty"`
	To        NodeStatus `json:"to,omitempty"`
	Timestamp time.Time  `json:"timestamp"`
	Error     string     `json:"error,omitempty"`
	Message   string     `json:"message,omitempty"`
}

// NewControlEvent builds an event with a fresh ID and timestamp.
func NewControlEvent(kind EventKind, runID, node string) ControlEvent {
	return ControlEvent{
		ID:        uuid.New().String(),
		Kind:      kind,
		RunID:     runID,
		Node:      node,
		Timestamp: time.Now(),
	}
}
