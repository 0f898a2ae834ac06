package orchestrator

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/kestrelorch/kestrel/internal/application/lifecycle"
	"github.com/kestrelorch/kestrel/pkg/domain"
	"github.com/kestrelorch/kestrel/pkg/ports"
)

const eventQueueSize = 1024

// scheduler drives one run: it reacts to bus events, admits nodes whose
// dependencies are ready, propagates failures and executes the drain.
// All run state is owned by the single loop goroutine.
type scheduler struct {
	run       *Run
	lifecycle *lifecycle.Manager
	bus       ports.EventBus
	storage   ports.StateStorage
	metrics   ports.MetricsCollector
	logger    *zap.Logger

	events   chan domain.ControlEvent
	admitted map[string]bool
}

func newScheduler(run *Run, lcm *lifecycle.Manager, bus ports.EventBus, storage ports.StateStorage, metrics ports.MetricsCollector, logger *zap.Logger) *scheduler {
	return &scheduler{
		run:       run,
		lifecycle: lcm,
		bus:       bus,
		storage:   storage,
		metrics:   metrics,
		logger:    logger,
		events:    make(chan domain.ControlEvent, eventQueueSize),
		admitted:  make(map[string]bool, len(run.instances)),
	}
}

// enqueue is the bus subscription handler feeding the loop. Events for
// other runs are ignored; a full queue drops the event with a warning,
// the loop resynchronizes from instance state on the next event.
func (s *scheduler) enqueue(ctx context.Context, event domain.ControlEvent) error {
	if event.RunID != s.run.id {
		return nil
	}
	select {
	case s.events <- event:
	default:
		s.logger.Warn("scheduler event queue full, dropping event",
			zap.String("run_id", s.run.id),
			zap.String("event_id", event.ID),
			zap.String("kind", string(event.Kind)))
	}
	return nil
}

// loop is the reactive scheduling loop: it blocks on published events and
// inbound commands, never polls.
func (s *scheduler) loop(ctx context.Context) {
	defer close(s.run.done)

	s.run.state.Status = domain.RunRunning
	s.persist(ctx)
	s.dispatch(ctx)
	if s.allTerminal() {
		s.finalize()
		return
	}

	for {
		select {
		case <-ctx.Done():
			s.drain()
			s.finalize()
			return
		case <-s.run.drainCh:
			s.drain()
			s.finalize()
			return
		case event := <-s.events:
			s.handle(ctx, event)
			if s.allTerminal() {
				s.finalize()
				return
			}
		}
	}
}

func (s *scheduler) handle(ctx context.Context, event domain.ControlEvent) {
	if event.Kind.Command() {
		s.applyCommand(ctx, event)
		return
	}

	switch event.Kind {
	case domain.EventNodeFailed:
		s.propagateTermination(ctx, event.Node, "failed")
		s.warnSoftDependents(ctx, event.Node)
	case domain.EventNodeStopped:
		// A stopped event reaching the loop means a cancel settled: the
		// node never ran, so its hard dependents can never become ready.
		s.propagateTermination(ctx, event.Node, "was cancelled")
	case domain.EventNodeRunning:
		// A dependency became ready and may unblock admissions.
	}
	s.dispatch(ctx)
	s.persist(ctx)
}

// dispatch admits every node whose readiness gate is open: all hard
// dependencies Running, soft dependencies Running or terminal. A terminal
// soft dependency is recorded as a warning, never as a blocker.
func (s *scheduler) dispatch(ctx context.Context) {
	for _, name := range s.run.graph.TopoOrder() {
		inst := s.run.instances[name]
		if s.admitted[name] || inst.Paused() || inst.Status() != domain.StatusNotStarted {
			continue
		}

		ready := true
		var downSoftDeps []string
		for _, dep := range s.run.graph.Dependencies(name) {
			depStatus := s.run.instances[dep.Name].Status()
			if depStatus == domain.StatusRunning {
				continue
			}
			if dep.Soft && depStatus.Terminal() {
				downSoftDeps = append(downSoftDeps, dep.Name)
				continue
			}
			ready = false
			break
		}
		if !ready {
			continue
		}

		s.admitted[name] = true
		for _, dep := range downSoftDeps {
			s.publishWarning(ctx, name, fmt.Sprintf("starting despite unavailable soft dependency %q", dep))
		}

		s.logger.Info("admitting node",
			zap.String("run_id", s.run.id),
			zap.String("node", name))
		go func(inst *lifecycle.Instance) {
			if err := s.lifecycle.Start(ctx, inst); err != nil {
				s.logger.Warn("node start failed",
					zap.String("run_id", s.run.id),
					zap.String("node", inst.Name()),
					zap.Error(err))
			}
		}(inst)
	}
}

// propagateTermination fails every transitive hard dependent of a node
// that reached a terminal state without being Running: pending dependents
// are failed without ever starting, running ones are forced down.
func (s *scheduler) propagateTermination(ctx context.Context, from, reason string) {
	for _, name := range s.run.graph.TransitiveHardDependents(from) {
		inst := s.run.instances[name]
		if inst.Status().Terminal() {
			continue
		}
		cause := fmt.Errorf("hard dependency %q %s", from, reason)
		s.logger.Warn("propagating failure",
			zap.String("run_id", s.run.id),
			zap.String("failed", from),
			zap.String("node", name))
		s.admitted[name] = true
		inst.MarkCancelled()
		s.lifecycle.ForceFail(ctx, inst, cause)
	}
}

// warnSoftDependents answers a node failure with a warning for every
// direct soft dependent that is still up. Soft edges never propagate the
// failure itself.
func (s *scheduler) warnSoftDependents(ctx context.Context, failed string) {
	for _, name := range s.run.graph.SoftDependents(failed) {
		if s.run.instances[name].Status().Terminal() {
			continue
		}
		s.publishWarning(ctx, name, fmt.Sprintf("soft dependency %q failed", failed))
	}
}

// applyCommand applies one inbound imperative override in receipt order.
// Commands that cannot apply to the node's current state are answered
// with a warning event rather than silently dropped.
func (s *scheduler) applyCommand(ctx context.Context, event domain.ControlEvent) {
	inst := s.run.instances[event.Node]
	if inst == nil {
		s.publishWarning(ctx, event.Node, fmt.Sprintf("command %s for unknown node", event.Kind))
		return
	}

	switch event.Kind {
	case domain.CommandPause:
		if inst.Status() != domain.StatusNotStarted || s.admitted[event.Node] {
			s.publishWarning(ctx, event.Node, "pause ignored: start is no longer pending")
			return
		}
		inst.SetPaused(true)
		s.logger.Info("node paused",
			zap.String("run_id", s.run.id),
			zap.String("node", event.Node))

	case domain.CommandResume:
		inst.SetPaused(false)
		s.dispatch(ctx)

	case domain.CommandRestart:
		if inst.Status() != domain.StatusRunning {
			s.publishWarning(ctx, event.Node, "restart ignored: node is not running")
			return
		}
		go func() {
			if err := s.lifecycle.Restart(ctx, inst); err != nil {
				s.logger.Warn("restart failed",
					zap.String("run_id", s.run.id),
					zap.String("node", inst.Name()),
					zap.Error(err))
			}
		}()

	case domain.CommandCancel:
		if err := s.lifecycle.Cancel(ctx, inst); err != nil {
			s.publishWarning(ctx, event.Node, "cancel ignored: start already completed")
		}
	}
	s.persist(ctx)
}

// drain stops nodes in reverse topological order, waiting for each stop
// bounded by the per-node timeout; a timeout forces the instance to
// Failed and the drain moves on. A fresh context is used so stop hooks
// still run when the run context is gone.
func (s *scheduler) drain() {
	dctx := context.Background()

	s.run.state.Status = domain.RunDraining
	s.persist(dctx)
	event := domain.NewControlEvent(domain.EventRunDraining, s.run.id, "")
	if err := s.bus.Publish(dctx, ports.TopicRunEvents, event); err != nil {
		s.logger.Error("failed to publish drain event", zap.String("run_id", s.run.id), zap.Error(err))
	}

	for _, name := range s.run.graph.StopOrder() {
		inst := s.run.instances[name]
		status := inst.Status()
		if status.Terminal() {
			continue
		}
		s.admitted[name] = true

		if status == domain.StatusNotStarted {
			if err := s.lifecycle.Cancel(dctx, inst); err != nil {
				s.logger.Debug("cancel pending start during drain",
					zap.String("run_id", s.run.id),
					zap.String("node", name),
					zap.Error(err))
			}
			s.persist(dctx)
			continue
		}
		if status == domain.StatusStarting {
			inst.MarkCancelled()
		}

		done := make(chan error, 1)
		go func() {
			done <- s.lifecycle.Stop(dctx, inst)
		}()
		// The stop hook itself is bounded by StopTimeout inside Stop; the
		// extra HookTimeout covers waiting for the instance's hook lock
		// when a start or health hook is still in flight. The per-node
		// drain deadline is therefore StopTimeout + HookTimeout.
		select {
		case err := <-done:
			if err != nil {
				s.logger.Warn("node stop failed during drain",
					zap.String("run_id", s.run.id),
					zap.String("node", name),
					zap.Error(err))
			}
		case <-time.After(s.run.policy.StopTimeout + s.run.policy.HookTimeout):
			s.lifecycle.ForceFail(dctx, inst, &StopTimeoutError{Node: name, Timeout: s.run.policy.StopTimeout})
		}
		s.persist(dctx)
	}
}

// finalize records the terminal run state and publishes the last event of
// the run's stream.
func (s *scheduler) finalize() {
	ctx := context.Background()

	status := domain.RunFinished
	var failed []string
	for name, inst := range s.run.instances {
		if inst.Status() == domain.StatusFailed {
			failed = append(failed, name)
		}
	}
	if len(failed) > 0 {
		status = domain.RunFailed
	}

	now := time.Now()
	s.run.state.Status = status
	s.run.state.CompletedAt = &now
	if len(failed) > 0 {
		s.run.state.Error = fmt.Sprintf("%d node(s) failed", len(failed))
	}
	s.persist(ctx)

	event := domain.NewControlEvent(domain.EventRunFinished, s.run.id, "")
	event.Message = string(status)
	if s.run.state.Error != "" {
		event.Error = s.run.state.Error
	}
	if err := s.bus.Publish(ctx, ports.TopicRunEvents, event); err != nil {
		s.logger.Error("failed to publish run finished event", zap.String("run_id", s.run.id), zap.Error(err))
	}

	s.metrics.RecordRunFinished(string(status), now.Sub(s.run.state.SubmittedAt))
	s.logger.Info("run finished",
		zap.String("run_id", s.run.id),
		zap.String("status", string(status)),
		zap.Int("failed_nodes", len(failed)))
}

func (s *scheduler) allTerminal() bool {
	for _, inst := range s.run.instances {
		if !inst.Status().Terminal() {
			return false
		}
	}
	return true
}

// persist refreshes the run snapshot from instance state and saves it.
func (s *scheduler) persist(ctx context.Context) {
	for name, inst := range s.run.instances {
		s.run.state.Nodes[name] = inst.Snapshot()
	}
	if err := s.storage.SaveRun(ctx, s.run.state.Clone()); err != nil {
		s.logger.Error("failed to save run state",
			zap.String("run_id", s.run.id),
			zap.Error(err))
	}
}

func (s *scheduler) publishWarning(ctx context.Context, node, message string) {
	event := domain.NewControlEvent(domain.EventNodeWarning, s.run.id, node)
	event.Message = message
	if err := s.bus.Publish(ctx, ports.TopicNodeEvents, event); err != nil {
		s.logger.Error("failed to publish warning event",
			zap.String("run_id", s.run.id),
			zap.String("node", node),
			zap.Error(err))
	}
}
