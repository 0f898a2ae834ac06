// Package domain holds the shared types of the orchestration kernel:
// node specifications, lifecycle states, control events, run snapshots
// and the scheduling policy.
//
// Everything except hook functions is JSON-serializable so that specs
// and events can cross process boundaries.
package domain
