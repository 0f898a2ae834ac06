package orchestrator

import (
	"context"
	"fmt"
	"sync"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/kestrelorch/kestrel/internal/application/lifecycle"
	"github.com/kestrelorch/kestrel/pkg/domain"
	"github.com/kestrelorch/kestrel/pkg/ports"
)

// Manager is the entry point of the orchestration kernel. It validates
// and admits spec sets, owns the live runs and routes inbound commands
// onto the bus.
type Manager struct {
	bus       ports.EventBus
	storage   ports.StateStorage
	metrics   ports.MetricsCollector
	validator *Validator
	logger    *zap.Logger
	defaults  domain.SchedulingPolicy

	mu   sync.Mutex
	runs map[string]*Run
}

// NewManager creates the orchestration manager. The defaults policy fills
// any zero fields of per-run policies.
func NewManager(bus ports.EventBus, storage ports.StateStorage, metrics ports.MetricsCollector, logger *zap.Logger, defaults domain.SchedulingPolicy) *Manager {
	return &Manager{
		bus:       bus,
		storage:   storage,
		metrics:   metrics,
		validator: NewValidator(),
		logger:    logger,
		defaults:  defaults.Normalize(domain.DefaultPolicy()),
		runs:      make(map[string]*Run),
	}
}

// SubmitSpecs validates a spec set, resolves its dependency graph and
// starts a new run. The returned run ID identifies the run on the status
// API and the event bus. Resolution is pure; no hook runs before this
// method returns.
func (m *Manager) SubmitSpecs(ctx context.Context, specs []domain.NodeSpec, policy domain.SchedulingPolicy) (string, error) {
	set, err := m.validator.Validate(specs)
	if err != nil {
		m.metrics.RecordRunSubmitted("rejected")
		return "", fmt.Errorf("invalid spec set: %w", err)
	}

	graph, err := BuildGraph(set)
	if err != nil {
		m.metrics.RecordRunSubmitted("rejected")
		return "", fmt.Errorf("unresolvable spec set: %w", err)
	}

	runID := uuid.New().String()
	policy = policy.Normalize(m.defaults)
	lcm := lifecycle.NewManager(m.bus, m.metrics, m.logger, policy)
	run := newRun(runID, graph, policy, lcm)

	if err := m.storage.SaveRun(ctx, run.state.Clone()); err != nil {
		return "", fmt.Errorf("failed to save run state: %w", err)
	}

	runCtx, cancel := context.WithCancel(context.Background())
	sched := newScheduler(run, lcm, m.bus, m.storage, m.metrics, m.logger)
	if err := m.bus.Subscribe(runCtx, ports.TopicNodeEvents, sched.enqueue); err != nil {
		cancel()
		return "", fmt.Errorf("failed to subscribe to node events: %w", err)
	}
	if err := m.bus.Subscribe(runCtx, ports.TopicCommands, sched.enqueue); err != nil {
		cancel()
		return "", fmt.Errorf("failed to subscribe to commands: %w", err)
	}

	m.mu.Lock()
	m.runs[runID] = run
	active := len(m.runs)
	m.mu.Unlock()

	m.metrics.RecordRunSubmitted("accepted")
	m.metrics.SetActiveRuns(active)

	event := domain.NewControlEvent(domain.EventRunSubmitted, runID, "")
	event.Message = fmt.Sprintf("%d node(s)", set.Len())
	if err := m.bus.Publish(ctx, ports.TopicRunEvents, event); err != nil {
		m.logger.Error("failed to publish run submitted event",
			zap.String("run_id", runID),
			zap.Error(err))
	}

	m.logger.Info("run submitted",
		zap.String("run_id", runID),
		zap.Int("nodes", set.Len()),
		zap.Strings("order", graph.TopoOrder()))

	go sched.loop(runCtx)
	go func() {
		<-run.Done()
		cancel()
		m.mu.Lock()
		delete(m.runs, runID)
		active := len(m.runs)
		m.mu.Unlock()
		m.metrics.SetActiveRuns(active)
	}()

	return runID, nil
}

// GetState returns the latest persisted snapshot of a run. Snapshots of
// finished runs stay readable until the storage TTL expires.
func (m *Manager) GetState(ctx context.Context, runID string) (*domain.RunState, error) {
	state, err := m.storage.GetRun(ctx, runID)
	if err != nil {
		return nil, &RunNotFoundError{RunID: runID}
	}
	return state, nil
}

// ListRuns returns the persisted snapshots of all known runs.
func (m *Manager) ListRuns(ctx context.Context) ([]*domain.RunState, error) {
	return m.storage.ListRuns(ctx)
}

// GraphDOT renders the dependency graph of a live run in DOT format.
func (m *Manager) GraphDOT(runID string) (string, error) {
	m.mu.Lock()
	run, ok := m.runs[runID]
	m.mu.Unlock()
	if !ok {
		return "", &RunNotFoundError{RunID: runID}
	}
	return run.Graph().DOT(), nil
}

// Drain asks a live run to shut down in reverse dependency order. It
// returns immediately; completion is observable through the run events
// topic and the status API.
func (m *Manager) Drain(runID string) error {
	m.mu.Lock()
	run, ok := m.runs[runID]
	m.mu.Unlock()
	if !ok {
		return &RunNotFoundError{RunID: runID}
	}
	run.RequestDrain()
	return nil
}

// Command publishes an imperative node command onto the bus. The
// scheduler owning the run applies commands in receipt order.
func (m *Manager) Command(ctx context.Context, runID, node string, kind domain.EventKind) error {
	if !kind.Command() {
		return fmt.Errorf("unknown command kind %q", kind)
	}
	m.mu.Lock()
	run, ok := m.runs[runID]
	m.mu.Unlock()
	if !ok {
		return &RunNotFoundError{RunID: runID}
	}
	if run.Instance(node) == nil {
		return fmt.Errorf("unknown node %q in run %s", node, runID)
	}
	return m.bus.Publish(ctx, ports.TopicCommands, domain.NewControlEvent(kind, runID, node))
}

// Shutdown drains every live run concurrently and waits for all of them
// to finalize, bounded by the context.
func (m *Manager) Shutdown(ctx context.Context) error {
	m.mu.Lock()
	live := make([]*Run, 0, len(m.runs))
	for _, run := range m.runs {
		live = append(live, run)
	}
	m.mu.Unlock()

	if len(live) == 0 {
		return nil
	}
	m.logger.Info("shutting down", zap.Int("live_runs", len(live)))

	g, ctx := errgroup.WithContext(ctx)
	for _, run := range live {
		run := run
		g.Go(func() error {
			run.RequestDrain()
			select {
			case <-run.Done():
				return nil
			case <-ctx.Done():
				return fmt.Errorf("run %s did not finish draining: %w", run.ID(), ctx.Err())
			}
		})
	}
	return g.Wait()
}
