package domain

import "time"

// SchedulingPolicy carries the numeric knobs of one orchestration run.
// Edge softness is declared on the NodeSpec dependencies, not here.
type SchedulingPolicy struct {
	// MaxRestarts bounds the restart attempts made while a node is
	// degraded before it is failed.
	MaxRestarts int `json:"max_restarts"`
	// RestartBackoff is the delay before each restart attempt.
	RestartBackoff time.Duration `json:"restart_backoff"`
	// HookTimeout bounds a single start/stop/health hook invocation.
	HookTimeout time.Duration `json:"hook_timeout"`
	// StopTimeout bounds one drain step; exceeding it fails the
	// instance and the drain moves on.
	StopTimeout time.Duration `json:"stop_timeout"`
	// HealthInterval is the period between health-check probes.
	HealthInterval time.Duration `json:"health_interval"`
}

// DefaultPolicy returns the policy used when a submission carries none.
func DefaultPolicy() SchedulingPolicy {
	return SchedulingPolicy{
		MaxRestarts:    3,
		RestartBackoff: 5 * time.Second,
		HookTimeout:    30 * time.Second,
		StopTimeout:    30 * time.Second,
		HealthInterval: 15 * time.Second,
	}
}

// Normalize fills zero fields from the given defaults.
func (p SchedulingPolicy) Normalize(defaults SchedulingPolicy) SchedulingPolicy {
	if p.MaxRestarts <= 0 {
		p.MaxRestarts = defaults.MaxRestarts
	}
	if p.RestartBackoff <= 0 {
		p.RestartBackoff = defaults.RestartBackoff
	}
	if p.HookTimeout <= 0 {
		p.HookTimeout = defaults.HookTimeout
	}
	if p.StopTimeout <= 0 {
		p.StopTimeout = defaults.StopTimeout
	}
	if p.HealthInterval <= 0 {
		p.HealthInterval = defaults.HealthInterval
	}
	return p
}
