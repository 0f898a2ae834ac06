package lifecycle

import "github.com/kestrelorch/kestrel/pkg/domain"

// legalTransition reports whether the state machine allows from -> to.
//
// Running -> Starting is the imperative restart edge; Degraded -> Starting
// and Starting -> Degraded carry the bounded restart attempts made while a
// node is unhealthy.
func legalTransition(from, to domain.NodeStatus) bool {
	switch from {
	case domain.StatusNotStarted:
		return to == domain.StatusStarting || to == domain.StatusStopped || to == domain.StatusFailed
	case domain.StatusStarting:
		return to == domain.StatusRunning || to == domain.StatusDegraded ||
			to == domain.StatusStopped || to == domain.StatusFailed
	case domain.StatusRunning:
		return to == domain.StatusDegraded || to == domain.StatusStopping ||
			to == domain.StatusStarting || to == domain.StatusFailed
	case domain.StatusDegraded:
		return to == domain.StatusStarting || to == domain.StatusStopping || to == domain.StatusFailed
	case domain.StatusStopping:
		return to == domain.StatusStopped || to == domain.StatusFailed
	default:
		// Stopped and Failed are terminal.
		return false
	}
}
