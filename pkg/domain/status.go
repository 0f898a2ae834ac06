package domain

// NodeStatus is the lifecycle state of one node instance.
type NodeStatus string

const (
	StatusNotStarted NodeStatus = "not_started"
	StatusStarting   NodeStatus = "starting"
	StatusRunning    NodeStatus = "running"
	StatusDegraded   NodeStatus = "degraded"
	StatusStopping   NodeStatus = "stopping"
	StatusStopped    NodeStatus = "stopped"
	StatusFailed     NodeStatus = "failed"
)

// Terminal reports whether the status is final for the instance.
func (s NodeStatus) Terminal() bool {
	return s == StatusStopped || s == StatusFailed
}

// RunStatus is the lifecycle state of one orchestration run.
type RunStatus string

const (
	RunPending  RunStatus = "pending"
	RunRunning  RunStatus = "running"
	RunDraining RunStatus = "draining"
	RunFinished RunStatus = "finished"
	RunFailed   RunStatus = "failed"
)

// Terminal reports whether the run has reached a final status.
func (s RunStatus) Terminal() bool {
	return s == RunFinished || s == RunFailed
}
