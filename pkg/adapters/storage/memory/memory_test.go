package memory

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kestrelorch/kestrel/pkg/domain"
)

func sampleState(runID string) *domain.RunState {
	return &domain.RunState{
		RunID:       runID,
		Status:      domain.RunRunning,
		SubmittedAt: time.Now(),
		Nodes: map[string]*domain.NodeState{
			"db": {Name: "db", Status: domain.StatusRunning},
		},
	}
}

func TestSaveAndGetRun(t *testing.T) {
	s := NewStateStorage()
	ctx := context.Background()

	require.NoError(t, s.SaveRun(ctx, sampleState("run-1")))

	got, err := s.GetRun(ctx, "run-1")
	require.NoError(t, err)
	assert.Equal(t, "run-1", got.RunID)
	assert.Equal(t, domain.RunRunning, got.Status)
	require.Contains(t, got.Nodes, "db")
}

func TestGetRunNotFound(t *testing.T) {
	s := NewStateStorage()

	_, err := s.GetRun(context.Background(), "missing")
	require.Error(t, err)
}

func TestSaveRejectsEmptyID(t *testing.T) {
	s := NewStateStorage()

	require.Error(t, s.SaveRun(context.Background(), &domain.RunState{}))
	require.Error(t, s.SaveRun(context.Background(), nil))
}

func TestSnapshotsAreIndependent(t *testing.T) {
	s := NewStateStorage()
	ctx := context.Background()

	original := sampleState("run-1")
	require.NoError(t, s.SaveRun(ctx, original))

	// Mutating the caller's copy after save changes nothing stored.
	original.Nodes["db"].Status = domain.StatusFailed

	got, err := s.GetRun(ctx, "run-1")
	require.NoError(t, err)
	assert.Equal(t, domain.StatusRunning, got.Nodes["db"].Status)

	// Mutating a loaded copy changes nothing stored either.
	got.Nodes["db"].Status = domain.StatusFailed
	again, err := s.GetRun(ctx, "run-1")
	require.NoError(t, err)
	assert.Equal(t, domain.StatusRunning, again.Nodes["db"].Status)
}

func TestDeleteRun(t *testing.T) {
	s := NewStateStorage()
	ctx := context.Background()

	require.NoError(t, s.SaveRun(ctx, sampleState("run-1")))
	require.NoError(t, s.DeleteRun(ctx, "run-1"))

	_, err := s.GetRun(ctx, "run-1")
	require.Error(t, err)

	// Deleting an unknown run is a no-op.
	require.NoError(t, s.DeleteRun(ctx, "run-1"))
}

func TestListRuns(t *testing.T) {
	s := NewStateStorage()
	ctx := context.Background()

	require.NoError(t, s.SaveRun(ctx, sampleState("run-1")))
	require.NoError(t, s.SaveRun(ctx, sampleState("run-2")))

	runs, err := s.ListRuns(ctx)
	require.NoError(t, err)
	assert.Len(t, runs, 2)

	ids := map[string]bool{}
	for _, run := range runs {
		ids[run.RunID] = true
	}
	assert.True(t, ids["run-1"])
	assert.True(t, ids["run-2"])
}
