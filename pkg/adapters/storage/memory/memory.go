package memory

import (
	"context"
	"fmt"
	"sync"

	"github.com/kestrelorch/kestrel/pkg/domain"
)

// StateStorage implements run-state storage in process memory. Snapshots
// are deep-copied on both save and load, callers never share state.
type StateStorage struct {
	mu   sync.RWMutex
	runs map[string]*domain.RunState
}

// NewStateStorage creates a new in-memory state storage
func NewStateStorage() *StateStorage {
	return &StateStorage{
		runs: make(map[string]*domain.RunState),
	}
}

// SaveRun stores a snapshot of the run state.
func (s *StateStorage) SaveRun(ctx context.Context, state *domain.RunState) error {
	if state == nil || state.RunID == "" {
		return fmt.Errorf("run state must have a run ID")
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.runs[state.RunID] = state.Clone()
	return nil
}

// GetRun returns a copy of the stored snapshot for a run.
func (s *StateStorage) GetRun(ctx context.Context, runID string) (*domain.RunState, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	state, ok := s.runs[runID]
	if !ok {
		return nil, fmt.Errorf("run not found: %s", runID)
	}
	return state.Clone(), nil
}

// DeleteRun removes the stored snapshot for a run.
func (s *StateStorage) DeleteRun(ctx context.Context, runID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	delete(s.runs, runID)
	return nil
}

// ListRuns returns copies of all stored snapshots.
func (s *StateStorage) ListRuns(ctx context.Context) ([]*domain.RunState, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	states := make([]*domain.RunState, 0, len(s.runs))
	for _, state := range s.runs {
		states = append(states, state.Clone())
	}
	return states, nil
}
