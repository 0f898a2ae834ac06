package domain

import "time"

// NodeState is the persisted snapshot of one node instance.
type NodeState struct {
	Name           string     `json:"name"`
	Status         NodeStatus `json:"status"`
	Retries        int        `json:"retries"`
	LastError      string     `json:"last_error,omitempty"`
	LastTransition time.Time  `json:"last_transition"`
}

// RunState is the persisted snapshot of one orchestration run, updated by
// the scheduler after every transition and read by the status API.
type RunState struct {
	RunID       string                `json:"run_id"`
	Status      RunStatus             `json:"status"`
	SubmittedAt time.Time             `json:"submitted_at"`
	CompletedAt *time.Time            `json:"completed_at,omitempty"`
	Error       string                `json:"error,omitempty"`
	Nodes       map[string]*NodeState `json:"nodes"`
}

// Clone returns a deep copy so storage adapters and API handlers never
// share mutable state with the scheduler.
func (s *RunState) Clone() *RunState {
	if s == nil {
		return nil
	}
	out := *s
	if s.CompletedAt != nil {
		t := *s.CompletedAt
		out.CompletedAt = &t
	}
	out.Nodes = make(map[string]*NodeState, len(s.Nodes))
	for name, ns := range s.Nodes {
		copied := *ns
		out.Nodes[name] = &copied
	}
	return &out
}
