package orchestrator

import (
	"sync"
	"time"

	"github.com/kestrelorch/kestrel/internal/application/lifecycle"
	"github.com/kestrelorch/kestrel/pkg/domain"
)

// Run is the top-level aggregate of one orchestration session. It
// exclusively owns its graph and instances; submitting the same spec set
// twice produces two fully independent runs.
type Run struct {
	id        string
	graph     *Graph
	policy    domain.SchedulingPolicy
	instances map[string]*lifecycle.Instance

	// state is written by the scheduler goroutine only.
	state *domain.RunState

	drainOnce sync.Once
	drainCh   chan struct{}
	done      chan struct{}
}

func newRun(id string, graph *Graph, policy domain.SchedulingPolicy, lcm *lifecycle.Manager) *Run {
	run := &Run{
		id:        id,
		graph:     graph,
		policy:    policy,
		instances: make(map[string]*lifecycle.Instance, graph.set.Len()),
		drainCh:   make(chan struct{}),
		done:      make(chan struct{}),
	}

	run.state = &domain.RunState{
		RunID:       id,
		Status:      domain.RunPending,
		SubmittedAt: time.Now(),
		Nodes:       make(map[string]*domain.NodeState, graph.set.Len()),
	}
	for _, name := range graph.set.Names() {
		inst := lcm.NewInstance(id, graph.set.Get(name))
		run.instances[name] = inst
		run.state.Nodes[name] = inst.Snapshot()
	}
	return run
}

// ID returns the run identity.
func (r *Run) ID() string {
	return r.id
}

// Graph returns the immutable dependency graph of the run.
func (r *Run) Graph() *Graph {
	return r.graph
}

// Instance returns the runtime state for a node name, or nil.
func (r *Run) Instance(name string) *lifecycle.Instance {
	return r.instances[name]
}

// RequestDrain asks the scheduler to start an orderly shutdown. Safe to
// call more than once.
func (r *Run) RequestDrain() {
	r.drainOnce.Do(func() {
		close(r.drainCh)
	})
}

// Done is closed once every instance has reached a terminal state and
// the run is finalized.
func (r *Run) Done() <-chan struct{} {
	return r.done
}
