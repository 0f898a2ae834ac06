package lifecycle

import (
	"context"
	"sync"
	"time"

	"github.com/kestrelorch/kestrel/pkg/domain"
)

// Instance is the runtime counterpart of one NodeSpec. Its state is
// mutated only through the manager's transition operation; waiters are
// notified on every change.
type Instance struct {
	spec  *domain.NodeSpec
	runID string

	// hookMu serializes hook execution for this instance.
	hookMu sync.Mutex

	// pubMu is held across a state change and the publish of its
	// ControlEvent, so subscribers observe transitions in the order
	// they were applied.
	pubMu sync.Mutex

	mu             sync.Mutex
	status         domain.NodeStatus
	retries        int
	lastErr        error
	lastTransition time.Time
	paused         bool
	cancelled      bool
	changed        chan struct{}
}

func newInstance(runID string, spec *domain.NodeSpec) *Instance {
	return &Instance{
		spec:           spec,
		runID:          runID,
		status:         domain.StatusNotStarted,
		lastTransition: time.Now(),
		changed:        make(chan struct{}),
	}
}

// Spec returns the non-owning back-reference to the NodeSpec.
func (i *Instance) Spec() *domain.NodeSpec {
	return i.spec
}

// Name returns the node identity.
func (i *Instance) Name() string {
	return i.spec.Name
}

// Status returns the current lifecycle state.
func (i *Instance) Status() domain.NodeStatus {
	i.mu.Lock()
	defer i.mu.Unlock()
	return i.status
}

// Retries returns the number of restart attempts made so far.
func (i *Instance) Retries() int {
	i.mu.Lock()
	defer i.mu.Unlock()
	return i.retries
}

// LastError returns the most recent hook or scheduling error, if any.
func (i *Instance) LastError() error {
	i.mu.Lock()
	defer i.mu.Unlock()
	return i.lastErr
}

// SetPaused marks or unmarks the instance's pending start as paused.
func (i *Instance) SetPaused(paused bool) {
	i.mu.Lock()
	defer i.mu.Unlock()
	i.paused = paused
}

// Paused reports whether admission of this instance is deferred.
func (i *Instance) Paused() bool {
	i.mu.Lock()
	defer i.mu.Unlock()
	return i.paused
}

// MarkCancelled requests that an in-flight start settles in Stopped.
func (i *Instance) MarkCancelled() {
	i.mu.Lock()
	defer i.mu.Unlock()
	i.cancelled = true
}

// Cancelled reports whether a cancel was requested.
func (i *Instance) Cancelled() bool {
	i.mu.Lock()
	defer i.mu.Unlock()
	return i.cancelled
}

// Snapshot returns the persisted view of the instance.
func (i *Instance) Snapshot() *domain.NodeState {
	i.mu.Lock()
	defer i.mu.Unlock()

	ns := &domain.NodeState{
		Name:           i.spec.Name,
		Status:         i.status,
		Retries:        i.retries,
		LastTransition: i.lastTransition,
	}
	if i.lastErr != nil {
		ns.LastError = i.lastErr.Error()
	}
	return ns
}

func (i *Instance) incRetries() {
	i.mu.Lock()
	defer i.mu.Unlock()
	i.retries++
}

// WaitFor blocks until the status satisfies pred or the context ends.
func (i *Instance) WaitFor(ctx context.Context, pred func(domain.NodeStatus) bool) error {
	for {
		i.mu.Lock()
		status := i.status
		changed := i.changed
		i.mu.Unlock()

		if pred(status) {
			return nil
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-changed:
		}
	}
}
