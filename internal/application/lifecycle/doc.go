// Package lifecycle owns the runtime state of node instances.
//
// The lifecycle manager:
//   - Validates and applies state transitions per the node state machine
//   - Executes start/stop/health hooks with per-invocation timeouts
//   - Runs the health-check loop and bounded degraded-restart recovery
//   - Publishes exactly one ControlEvent per transition
//
// Hooks for a single instance never run concurrently; independent
// instances run concurrently.
package lifecycle
