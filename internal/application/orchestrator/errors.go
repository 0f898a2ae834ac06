package orchestrator

import (
	"fmt"
	"strings"
	"time"
)

// DuplicateNameError means the same node name appears more than once in a
// submitted spec set.
type DuplicateNameError struct {
	Name string
}

func (e *DuplicateNameError) Error() string {
	return fmt.Sprintf("duplicate node name: %q", e.Name)
}

// UnknownDependencyError means a declared dependency does not resolve to a
// spec in the same submitted set.
type UnknownDependencyError struct {
	Node       string
	Dependency string
}

func (e *UnknownDependencyError) Error() string {
	return fmt.Sprintf("node %q depends on unknown node %q", e.Node, e.Dependency)
}

// MissingHookError means a spec lacks a mandatory hook.
type MissingHookError struct {
	Node string
	Hook string
}

func (e *MissingHookError) Error() string {
	return fmt.Sprintf("node %q is missing its %s hook", e.Node, e.Hook)
}

// CycleError means the declared dependencies form a cycle; Path names it.
type CycleError struct {
	Path []string
}

func (e *CycleError) Error() string {
	if len(e.Path) == 0 {
		return "dependency cycle detected"
	}
	return "dependency cycle detected: " + strings.Join(e.Path, " -> ")
}

// RunNotFoundError means no active run matches the given ID.
type RunNotFoundError struct {
	RunID string
}

func (e *RunNotFoundError) Error() string {
	return fmt.Sprintf("run not found: %s", e.RunID)
}

// StopTimeoutError means one drain step exceeded its per-node timeout.
type StopTimeoutError struct {
	Node    string
	Timeout time.Duration
}

func (e *StopTimeoutError) Error() string {
	return fmt.Sprintf("node %q did not stop within %s", e.Node, e.Timeout)
}
