// Package command provides the built-in "command" driver: each node is a
// long-running OS process started from a shell command line.
package command

import (
	"context"
	"fmt"
	"os/exec"
	"sync"
	"syscall"
	"time"

	"github.com/kestrelorch/kestrel/pkg/domain"
	"github.com/kestrelorch/kestrel/pkg/hooks"
)

// DriverName is the registry name of this driver.
const DriverName = "command"

// Register adds the command driver to a registry.
func Register(registry *hooks.Registry) {
	registry.MustRegister(DriverName, Factory)
}

// process tracks one spawned command across the hook set. The lifecycle
// manager serializes hook invocations per node, the mutex only guards
// against the exit watcher.
type process struct {
	mu     sync.Mutex
	cmd    *exec.Cmd
	exited bool
	err    error
}

// Factory builds hooks from a command driver config. Recognized keys:
//
//	command  shell command line to run (required)
//	dir      working directory
func Factory(config map[string]string) (domain.HookSet, error) {
	cmdline := config["command"]
	if cmdline == "" {
		return domain.HookSet{}, fmt.Errorf("command driver requires a \"command\" config key")
	}
	dir := config["dir"]

	p := &process{}

	return domain.HookSet{
		Start:       p.start(cmdline, dir),
		Stop:        p.stop,
		HealthCheck: p.health,
	}, nil
}

func (p *process) start(cmdline, dir string) domain.StartHook {
	return func(ctx context.Context) error {
		p.mu.Lock()
		defer p.mu.Unlock()

		cmd := exec.Command("/bin/sh", "-c", cmdline)
		cmd.Dir = dir
		// Own process group, so stop signals do not hit the orchestrator.
		cmd.SysProcAttr = &syscall.SysProcAttr{Setpgid: true}

		if err := cmd.Start(); err != nil {
			return fmt.Errorf("failed to start command: %w", err)
		}

		p.cmd = cmd
		p.exited = false
		p.err = nil

		go func() {
			err := cmd.Wait()
			p.mu.Lock()
			p.exited = true
			p.err = err
			p.mu.Unlock()
		}()

		return nil
	}
}

// stop signals SIGTERM to the process group and escalates to SIGKILL
// when the context expires first.
func (p *process) stop(ctx context.Context) error {
	p.mu.Lock()
	cmd := p.cmd
	exited := p.exited
	p.mu.Unlock()

	if cmd == nil || exited {
		return nil
	}

	if err := syscall.Kill(-cmd.Process.Pid, syscall.SIGTERM); err != nil {
		return fmt.Errorf("failed to signal process: %w", err)
	}

	ticker := time.NewTicker(50 * time.Millisecond)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			_ = syscall.Kill(-cmd.Process.Pid, syscall.SIGKILL)
			return fmt.Errorf("process did not exit in time: %w", ctx.Err())
		case <-ticker.C:
			p.mu.Lock()
			exited := p.exited
			p.mu.Unlock()
			if exited {
				return nil
			}
		}
	}
}

func (p *process) health(ctx context.Context) (domain.HealthStatus, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.cmd == nil {
		return domain.HealthUnhealthy, fmt.Errorf("process never started")
	}
	if p.exited {
		if p.err != nil {
			return domain.HealthUnhealthy, fmt.Errorf("process exited: %w", p.err)
		}
		return domain.HealthUnhealthy, fmt.Errorf("process exited")
	}
	return domain.HealthHealthy, nil
}
