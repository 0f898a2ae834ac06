// Package orchestrator implements the core orchestration logic for node graphs.
//
// The orchestrator manager coordinates runs by:
//   - Validating spec sets and building the dependency graph
//   - Managing run lifecycle (submit, drain, shutdown)
//   - Driving the per-run scheduler off the event/control bus
//   - Snapshotting run state via state storage
//
// The validator ensures spec sets are well-formed; the graph resolver
// rejects cycles and fixes the start/stop order.
package orchestrator
