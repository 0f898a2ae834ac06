package lifecycle

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/kestrelorch/kestrel/pkg/domain"
	"github.com/kestrelorch/kestrel/pkg/ports"
)

// Manager executes hooks and applies state transitions for the instances
// of one orchestration run.
type Manager struct {
	bus     ports.EventBus
	metrics ports.MetricsCollector
	logger  *zap.Logger
	policy  domain.SchedulingPolicy
}

// NewManager creates a lifecycle manager bound to one run's policy.
func NewManager(bus ports.EventBus, metrics ports.MetricsCollector, logger *zap.Logger, policy domain.SchedulingPolicy) *Manager {
	return &Manager{
		bus:     bus,
		metrics: metrics,
		logger:  logger,
		policy:  policy,
	}
}

// NewInstance creates the runtime state for one NodeSpec.
func (m *Manager) NewInstance(runID string, spec *domain.NodeSpec) *Instance {
	return newInstance(runID, spec)
}

// Transition validates and applies one state change, publishing exactly
// one ControlEvent before returning. The publish happens under the
// instance's publish lock so racing transitions cannot emit events in an
// order that contradicts the state changes.
func (m *Manager) Transition(ctx context.Context, inst *Instance, to domain.NodeStatus, cause error) error {
	inst.pubMu.Lock()
	defer inst.pubMu.Unlock()

	inst.mu.Lock()
	from := inst.status
	if !legalTransition(from, to) {
		inst.mu.Unlock()
		return &IllegalTransitionError{Node: inst.spec.Name, From: from, To: to}
	}
	inst.status = to
	inst.lastTransition = time.Now()
	if cause != nil {
		inst.lastErr = cause
	}
	close(inst.changed)
	inst.changed = make(chan struct{})
	inst.mu.Unlock()

	m.metrics.RecordNodeTransition(string(to))
	m.publishTransition(ctx, inst, from, to, cause)
	return nil
}

// ForceFail moves a non-terminal instance straight to Failed, bypassing
// the transition table. Used for failure propagation and drain timeouts.
// If the node was up, its stop hook is fired in the background so the
// external process is not orphaned.
func (m *Manager) ForceFail(ctx context.Context, inst *Instance, cause error) {
	inst.pubMu.Lock()
	defer inst.pubMu.Unlock()

	inst.mu.Lock()
	from := inst.status
	if from.Terminal() {
		inst.mu.Unlock()
		return
	}
	inst.status = domain.StatusFailed
	inst.lastTransition = time.Now()
	inst.lastErr = cause
	close(inst.changed)
	inst.changed = make(chan struct{})
	inst.mu.Unlock()

	m.metrics.RecordNodeTransition(string(domain.StatusFailed))
	m.publishTransition(ctx, inst, from, domain.StatusFailed, cause)

	if (from == domain.StatusRunning || from == domain.StatusDegraded) && inst.spec.Hooks.Stop != nil {
		go func() {
			inst.hookMu.Lock()
			defer inst.hookMu.Unlock()
			if err := m.invokeHook(context.Background(), inst, HookStop, m.policy.StopTimeout, inst.spec.Hooks.Stop); err != nil {
				m.logger.Warn("best-effort stop after forced failure",
					zap.String("run_id", inst.runID),
					zap.String("node", inst.spec.Name),
					zap.Error(err))
			}
		}()
	}
}

// Start drives an instance from NotStarted to Running, executing the
// start hook. A cancel observed before or during the start hook settles
// the instance in Stopped; Running is never observed by subscribers.
func (m *Manager) Start(ctx context.Context, inst *Instance) error {
	inst.hookMu.Lock()
	defer inst.hookMu.Unlock()

	if inst.Cancelled() {
		if inst.Status().Terminal() {
			return nil
		}
		return m.Transition(ctx, inst, domain.StatusStopped, nil)
	}
	if err := m.Transition(ctx, inst, domain.StatusStarting, nil); err != nil {
		return err
	}

	if err := m.invokeHook(ctx, inst, HookStart, m.policy.HookTimeout, inst.spec.Hooks.Start); err != nil {
		herr := &HookError{Node: inst.spec.Name, Hook: HookStart, Cause: err}
		if terr := m.Transition(ctx, inst, domain.StatusFailed, herr); terr != nil {
			m.logTransitionLost(inst, terr)
		}
		return herr
	}

	if inst.Cancelled() {
		if inst.Status().Terminal() {
			return nil
		}
		return m.Transition(ctx, inst, domain.StatusStopped, nil)
	}
	if err := m.Transition(ctx, inst, domain.StatusRunning, nil); err != nil {
		// The instance was forced to a terminal state while its start
		// hook ran; nothing more to do.
		m.logTransitionLost(inst, err)
		return nil
	}

	if inst.spec.Hooks.HealthCheck != nil {
		go m.watchHealth(ctx, inst)
	}
	return nil
}

// Stop drives an up instance to Stopped, executing the stop hook bounded
// by the stop timeout. A hook failure or timeout fails the instance.
func (m *Manager) Stop(ctx context.Context, inst *Instance) error {
	inst.hookMu.Lock()
	defer inst.hookMu.Unlock()

	status := inst.Status()
	if status.Terminal() {
		return nil
	}
	if status == domain.StatusNotStarted {
		return m.Transition(ctx, inst, domain.StatusStopped, nil)
	}

	if err := m.Transition(ctx, inst, domain.StatusStopping, nil); err != nil {
		return err
	}
	if inst.spec.Hooks.Stop != nil {
		if err := m.invokeHook(ctx, inst, HookStop, m.policy.StopTimeout, inst.spec.Hooks.Stop); err != nil {
			herr := &HookError{Node: inst.spec.Name, Hook: HookStop, Cause: err}
			if terr := m.Transition(ctx, inst, domain.StatusFailed, herr); terr != nil {
				m.logTransitionLost(inst, terr)
			}
			return herr
		}
	}
	return m.Transition(ctx, inst, domain.StatusStopped, nil)
}

// Restart stops and starts a Running instance in place. Dependents are
// not restarted; they only observe the published transitions.
func (m *Manager) Restart(ctx context.Context, inst *Instance) error {
	inst.hookMu.Lock()
	defer inst.hookMu.Unlock()

	if status := inst.Status(); status != domain.StatusRunning {
		return &IllegalTransitionError{Node: inst.spec.Name, From: status, To: domain.StatusStarting}
	}
	if err := m.Transition(ctx, inst, domain.StatusStarting, nil); err != nil {
		return err
	}

	if inst.spec.Hooks.Stop != nil {
		if err := m.invokeHook(ctx, inst, HookStop, m.policy.StopTimeout, inst.spec.Hooks.Stop); err != nil {
			m.logger.Warn("stop hook during restart",
				zap.String("run_id", inst.runID),
				zap.String("node", inst.spec.Name),
				zap.Error(err))
		}
	}
	if err := m.invokeHook(ctx, inst, HookStart, m.policy.HookTimeout, inst.spec.Hooks.Start); err != nil {
		herr := &HookError{Node: inst.spec.Name, Hook: HookStart, Cause: err}
		if terr := m.Transition(ctx, inst, domain.StatusFailed, herr); terr != nil {
			m.logTransitionLost(inst, terr)
		}
		return herr
	}
	if inst.Cancelled() {
		return m.Transition(ctx, inst, domain.StatusStopped, nil)
	}
	return m.Transition(ctx, inst, domain.StatusRunning, nil)
}

// Cancel cancels a pending or in-flight start. A pending start settles in
// Stopped immediately; an in-flight start settles once its hook returns.
func (m *Manager) Cancel(ctx context.Context, inst *Instance) error {
	inst.mu.Lock()
	status := inst.status
	inst.mu.Unlock()

	switch status {
	case domain.StatusNotStarted:
		inst.MarkCancelled()
		return m.Transition(ctx, inst, domain.StatusStopped, nil)
	case domain.StatusStarting:
		inst.MarkCancelled()
		return nil
	default:
		return &IllegalTransitionError{Node: inst.spec.Name, From: status, To: domain.StatusStopped}
	}
}

// watchHealth probes a running instance and drives degraded recovery.
func (m *Manager) watchHealth(ctx context.Context, inst *Instance) {
	ticker := time.NewTicker(m.policy.HealthInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}

		status := inst.Status()
		if status.Terminal() {
			return
		}
		if status != domain.StatusRunning {
			continue
		}

		cause := m.probe(ctx, inst)
		if cause == nil {
			continue
		}

		herr := &HookError{Node: inst.spec.Name, Hook: HookHealth, Cause: cause}
		if err := m.Transition(ctx, inst, domain.StatusDegraded, herr); err != nil {
			m.logTransitionLost(inst, err)
			continue
		}
		m.logger.Warn("node degraded",
			zap.String("run_id", inst.runID),
			zap.String("node", inst.spec.Name),
			zap.Error(cause))

		if !m.recoverDegraded(ctx, inst) {
			return
		}
	}
}

// probe runs the health hook once; a nil return means healthy.
func (m *Manager) probe(ctx context.Context, inst *Instance) error {
	inst.hookMu.Lock()
	defer inst.hookMu.Unlock()

	// The instance may have been stopped while we waited for the lock.
	if inst.Status() != domain.StatusRunning {
		return nil
	}

	var health domain.HealthStatus
	err := m.invokeHook(ctx, inst, HookHealth, m.policy.HookTimeout, func(hctx context.Context) error {
		var herr error
		health, herr = inst.spec.Hooks.HealthCheck(hctx)
		return herr
	})
	if err != nil {
		return err
	}
	if health != domain.HealthHealthy {
		return errors.New("health check reported unhealthy")
	}
	return nil
}

// recoverDegraded makes up to MaxRestarts restart attempts with backoff.
// It returns true when the instance is Running again and false once it
// has been failed or taken over by a drain.
func (m *Manager) recoverDegraded(ctx context.Context, inst *Instance) bool {
	for attempt := 1; attempt <= m.policy.MaxRestarts; attempt++ {
		select {
		case <-ctx.Done():
			return false
		case <-time.After(m.policy.RestartBackoff):
		}

		inst.hookMu.Lock()
		if inst.Status() != domain.StatusDegraded {
			// A drain or forced failure took over.
			running := inst.Status() == domain.StatusRunning
			inst.hookMu.Unlock()
			return running
		}

		m.metrics.RecordRestartAttempt()
		inst.incRetries()
		m.logger.Info("restart attempt",
			zap.String("run_id", inst.runID),
			zap.String("node", inst.spec.Name),
			zap.Int("attempt", attempt),
			zap.Int("max", m.policy.MaxRestarts))

		if err := m.Transition(ctx, inst, domain.StatusStarting, nil); err != nil {
			inst.hookMu.Unlock()
			m.logTransitionLost(inst, err)
			return false
		}
		if inst.spec.Hooks.Stop != nil {
			if err := m.invokeHook(ctx, inst, HookStop, m.policy.StopTimeout, inst.spec.Hooks.Stop); err != nil {
				m.logger.Warn("stop hook during restart attempt",
					zap.String("run_id", inst.runID),
					zap.String("node", inst.spec.Name),
					zap.Error(err))
			}
		}

		err := m.invokeHook(ctx, inst, HookStart, m.policy.HookTimeout, inst.spec.Hooks.Start)
		if err == nil && !inst.Cancelled() {
			terr := m.Transition(ctx, inst, domain.StatusRunning, nil)
			inst.hookMu.Unlock()
			if terr != nil {
				m.logTransitionLost(inst, terr)
				return false
			}
			return true
		}
		if inst.Cancelled() {
			_ = m.Transition(ctx, inst, domain.StatusStopped, nil)
			inst.hookMu.Unlock()
			return false
		}
		herr := &HookError{Node: inst.spec.Name, Hook: HookStart, Cause: err}
		if terr := m.Transition(ctx, inst, domain.StatusDegraded, herr); terr != nil {
			inst.hookMu.Unlock()
			m.logTransitionLost(inst, terr)
			return false
		}
		inst.hookMu.Unlock()
	}

	inst.hookMu.Lock()
	defer inst.hookMu.Unlock()
	if inst.Status() == domain.StatusDegraded {
		cause := fmt.Errorf("restart attempts exhausted after %d tries", m.policy.MaxRestarts)
		if err := m.Transition(ctx, inst, domain.StatusFailed, cause); err != nil {
			m.logTransitionLost(inst, err)
		}
	}
	return false
}

// invokeHook runs one hook bounded by timeout. A hook that outlives its
// context is abandoned; the invocation is reported as failed either way.
func (m *Manager) invokeHook(ctx context.Context, inst *Instance, kind string, timeout time.Duration, fn func(context.Context) error) error {
	hctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	start := time.Now()
	done := make(chan error, 1)
	go func() {
		done <- fn(hctx)
	}()

	var err error
	select {
	case err = <-done:
	case <-hctx.Done():
		err = fmt.Errorf("%s hook timed out after %s: %w", kind, timeout, hctx.Err())
	}
	m.metrics.ObserveHookDuration(kind, time.Since(start))
	return err
}

// publishTransition emits the single ControlEvent for one state change.
func (m *Manager) publishTransition(ctx context.Context, inst *Instance, from, to domain.NodeStatus, cause error) {
	event := domain.NewControlEvent(domain.KindForStatus(to), inst.runID, inst.spec.Name)
	event.From = from
	event.To = to
	if cause != nil {
		event.Error = cause.Error()
	}

	if err := m.bus.Publish(ctx, ports.TopicNodeEvents, event); err != nil {
		m.logger.Error("failed to publish transition event",
			zap.String("run_id", inst.runID),
			zap.String("node", inst.spec.Name),
			zap.String("kind", string(event.Kind)),
			zap.Error(err))
	}
}

func (m *Manager) logTransitionLost(inst *Instance, err error) {
	m.logger.Debug("transition superseded",
		zap.String("run_id", inst.runID),
		zap.String("node", inst.spec.Name),
		zap.Error(err))
}
