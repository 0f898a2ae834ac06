package domain

import "context"

// HealthStatus is the result of a health-check hook.
type HealthStatus string

const (
	HealthHealthy   HealthStatus = "healthy"
	HealthUnhealthy HealthStatus = "unhealthy"
)

// StartHook brings the node's external process or resource up. It returns
// once the node is serving; a long-running process is started, not awaited.
type StartHook func(ctx context.Context) error

// StopHook tears the node down.
type StopHook func(ctx context.Context) error

// HealthHook probes a running node.
type HealthHook func(ctx context.Context) (HealthStatus, error)

// HookSet is the imperative side of a NodeSpec. Hooks are data attached to
// the spec, supplied by the protocol layer either directly or resolved from
// Driver by a hook registry. Start is mandatory; Stop and HealthCheck are
// optional.
type HookSet struct {
	Start       StartHook
	Stop        StopHook
	HealthCheck HealthHook
}

// Dependency is one declared "depends-on" edge. A soft dependency does not
// block the dependent when the dependency fails.
type Dependency struct {
	Name string `json:"name"`
	Soft bool   `json:"soft,omitempty"`
}

// NodeSpec is the declarative description of one orchestrable unit.
//
// The wire form carries Driver and Config; Hooks is populated in-process,
// either by the caller or by resolving Driver against a hooks.Registry.
type NodeSpec struct {
	Name      string            `json:"name"`
	DependsOn []Dependency      `json:"depends_on,omitempty"`
	Driver    string            `json:"driver,omitempty"`
	Config    map[string]string `json:"config,omitempty"`

	Hooks HookSet `json:"-"`
}
