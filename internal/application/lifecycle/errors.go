package lifecycle

import (
	"fmt"

	"github.com/kestrelorch/kestrel/pkg/domain"
)

// Hook kinds used in HookError.
const (
	HookStart  = "start"
	HookStop   = "stop"
	HookHealth = "health_check"
)

// IllegalTransitionError means the requested transition is not legal per
// the node state machine.
type IllegalTransitionError struct {
	Node string
	From domain.NodeStatus
	To   domain.NodeStatus
}

func (e *IllegalTransitionError) Error() string {
	return fmt.Sprintf("illegal transition for node %q: %s -> %s", e.Node, e.From, e.To)
}

// HookError wraps a failed or timed-out hook invocation.
type HookError struct {
	Node  string
	Hook  string
	Cause error
}

func (e *HookError) Error() string {
	return fmt.Sprintf("%s hook failed for node %q: %v", e.Hook, e.Node, e.Cause)
}

func (e *HookError) Unwrap() error {
	return e.Cause
}
