package redis

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/coumap/crawler/internal/core/domain"
)

// checkpointTTL bounds how stale a resumable position may be. A checkpoint
// older than this refers to widget state that has likely changed.
const checkpointTTL = 24 * time.Hour

// Checkpoint is the last fully persisted position in the region traversal.
type Checkpoint struct {
	Province  string          `json:"province"`
	District  string          `json:"district"`
	Town      string          `json:"town"`
	SavedAt   time.Time       `json:"saved_at"`
	Stats     domain.RunStats `json:"stats"`
	Completed bool            `json:"completed"`
}

// CheckpointStore persists the crawl position so an interrupted run can be
// resumed near where it stopped.
type CheckpointStore struct {
	rdb     *redis.Client
	runName string
}

// NewCheckpointStore creates a Redis-backed checkpoint store.
func NewCheckpointStore(client *Client, runName string) *CheckpointStore {
	return &CheckpointStore{
		rdb:     client.rdb,
		runName: runName,
	}
}

func (s *CheckpointStore) key() string {
	return fmt.Sprintf("crawl_checkpoint:%s", s.runName)
}

// Save overwrites the checkpoint with the given position.
func (s *CheckpointStore) Save(ctx context.Context, cp *Checkpoint) error {
	cp.SavedAt = time.Now()

	data, err := json.Marshal(cp)
	if err != nil {
		return fmt.Errorf("failed to marshal checkpoint: %w", err)
	}
	if err := s.rdb.Set(ctx, s.key(), data, checkpointTTL).Err(); err != nil {
		return fmt.Errorf("failed to save checkpoint: %w", err)
	}
	return nil
}

// Load returns the stored checkpoint, or nil when none exists.
func (s *CheckpointStore) Load(ctx context.Context) (*Checkpoint, error) {
	data, err := s.rdb.Get(ctx, s.key()).Bytes()
	if err == redis.Nil {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load checkpoint: %w", err)
	}

	var cp Checkpoint
	if err := json.Unmarshal(data, &cp); err != nil {
		return nil, fmt.Errorf("failed to unmarshal checkpoint: %w", err)
	}
	return &cp, nil
}

// Clear removes the checkpoint after a completed run.
func (s *CheckpointStore) Clear(ctx context.Context) error {
	return s.rdb.Del(ctx, s.key()).Err()
}
