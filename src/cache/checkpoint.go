package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"tradingbot/src/engine"
	"tradingbot/src/streak"

	"github.com/redis/go-redis/v9"
)

var ErrNoCheckpoint = errors.New("no checkpoint stored")

// Checkpoint is everything a live run needs to resume after a restart.
type Checkpoint struct {
	RunName string                    `json:"run_name"`
	RunID   string                    `json:"run_id"`
	SavedAt time.Time                 `json:"saved_at"`
	Session engine.SessionState       `json:"session"`
	Streak  streak.State              `json:"streak"`
	Streams []engine.StreamCheckpoint `json:"streams"`
}

// CheckpointStore keeps one JSON checkpoint per run name.
type CheckpointStore struct {
	client *Client
}

func NewCheckpointStore(c *Client) *CheckpointStore {
	return &CheckpointStore{client: c}
}

func (s *CheckpointStore) checkpointKey(runName string) string {
	return s.client.key("checkpoint", runName)
}

func (s *CheckpointStore) Save(ctx context.Context, cp Checkpoint) error {
	data, err := json.Marshal(cp)
	if err != nil {
		return fmt.Errorf("redis: marshal checkpoint %s: %w", cp.RunName, err)
	}
	if err := s.client.rdb.Set(ctx, s.checkpointKey(cp.RunName), data, 0).Err(); err != nil {
		return fmt.Errorf("redis: save checkpoint %s: %w", cp.RunName, err)
	}
	return nil
}

// Load returns ErrNoCheckpoint when nothing was saved for the run.
func (s *CheckpointStore) Load(ctx context.Context, runName string) (Checkpoint, error) {
	data, err := s.client.rdb.Get(ctx, s.checkpointKey(runName)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return Checkpoint{}, ErrNoCheckpoint
		}
		return Checkpoint{}, fmt.Errorf("redis: load checkpoint %s: %w", runName, err)
	}

	var cp Checkpoint
	if err := json.Unmarshal(data, &cp); err != nil {
		return Checkpoint{}, fmt.Errorf("redis: unmarshal checkpoint %s: %w", runName, err)
	}
	return cp, nil
}

func (s *CheckpointStore) Delete(ctx context.Context, runName string) error {
	if err := s.client.rdb.Del(ctx, s.checkpointKey(runName)).Err(); err != nil {
		return fmt.Errorf("redis: delete checkpoint %s: %w", runName, err)
	}
	return nil
}
