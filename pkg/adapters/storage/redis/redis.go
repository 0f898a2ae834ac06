package redis

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/kestrelorch/kestrel/pkg/domain"
)

// StateStorage implements run-state storage using Redis
type StateStorage struct {
	client *redis.Client
	logger *zap.Logger
	ttl    time.Duration
}

// NewStateStorage creates a new Redis state storage
func NewStateStorage(client *redis.Client, ttl time.Duration, logger *zap.Logger) *StateStorage {
	return &StateStorage{
		client: client,
		logger: logger,
		ttl:    ttl,
	}
}

// SaveRun persists a run snapshot as JSON with the configured TTL.
// Finished runs stay readable until the TTL expires.
func (s *StateStorage) SaveRun(ctx context.Context, state *domain.RunState) error {
	key := getRunKey(state.RunID)

	data, err := json.Marshal(state)
	if err != nil {
		return fmt.Errorf("failed to marshal run state: %w", err)
	}

	if err := s.client.Set(ctx, key, data, s.ttl).Err(); err != nil {
		return fmt.Errorf("failed to save run state: %w", err)
	}

	s.logger.Debug("run state saved",
		zap.String("run_id", state.RunID),
		zap.String("status", string(state.Status)))

	return nil
}

// GetRun retrieves a run snapshot from Redis
func (s *StateStorage) GetRun(ctx context.Context, runID string) (*domain.RunState, error) {
	key := getRunKey(runID)

	data, err := s.client.Get(ctx, key).Bytes()
	if err != nil {
		if err == redis.Nil {
			return nil, fmt.Errorf("run not found: %s", runID)
		}
		return nil, fmt.Errorf("failed to get run state: %w", err)
	}

	var state domain.RunState
	if err := json.Unmarshal(data, &state); err != nil {
		return nil, fmt.Errorf("failed to unmarshal run state: %w", err)
	}

	return &state, nil
}

// DeleteRun removes a run snapshot from Redis
func (s *StateStorage) DeleteRun(ctx context.Context, runID string) error {
	key := getRunKey(runID)

	if err := s.client.Del(ctx, key).Err(); err != nil {
		return fmt.Errorf("failed to delete run state: %w", err)
	}

	s.logger.Debug("run state deleted", zap.String("run_id", runID))

	return nil
}

// ListRuns returns all stored run snapshots.
func (s *StateStorage) ListRuns(ctx context.Context) ([]*domain.RunState, error) {
	pattern := "kestrel:run:*"

	var cursor uint64
	var keys []string

	for {
		var batch []string
		var err error

		batch, cursor, err = s.client.Scan(ctx, cursor, pattern, 100).Result()
		if err != nil {
			return nil, fmt.Errorf("failed to scan keys: %w", err)
		}

		keys = append(keys, batch...)

		if cursor == 0 {
			break
		}
	}

	states := make([]*domain.RunState, 0, len(keys))
	for _, key := range keys {
		data, err := s.client.Get(ctx, key).Bytes()
		if err != nil {
			// Key may have expired between SCAN and GET
			continue
		}

		var state domain.RunState
		if err := json.Unmarshal(data, &state); err != nil {
			continue
		}

		states = append(states, &state)
	}

	return states, nil
}

// getRunKey returns the Redis key for a run snapshot
func getRunKey(runID string) string {
	return fmt.Sprintf("kestrel:run:%s", runID)
}
