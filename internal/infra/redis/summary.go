package redis

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/coumap/crawler/internal/core/domain"
)

// summaryTTL keeps run summaries around for a month of history.
const summaryTTL = 30 * 24 * time.Hour

// RunSummary is the end-of-run record pushed to Redis for later inspection.
type RunSummary struct {
	RunName    string          `json:"run_name"`
	StartedAt  time.Time       `json:"started_at"`
	FinishedAt time.Time       `json:"finished_at"`
	Stats      domain.RunStats `json:"stats"`
	Err        string          `json:"error,omitempty"`
}

// SummaryStore records one summary per run, indexed by start time.
type SummaryStore struct {
	rdb     *redis.Client
	runName string
}

// NewSummaryStore creates a Redis-backed run summary store.
func NewSummaryStore(client *Client, runName string) *SummaryStore {
	return &SummaryStore{
		rdb:     client.rdb,
		runName: runName,
	}
}

func (s *SummaryStore) indexKey() string {
	return fmt.Sprintf("run_summaries:%s", s.runName)
}

func (s *SummaryStore) entryKey(startedAt time.Time) string {
	return fmt.Sprintf("run_summary:%s:%d", s.runName, startedAt.UnixMilli())
}

// Record stores a run summary.
func (s *SummaryStore) Record(ctx context.Context, summary *RunSummary) error {
	summary.RunName = s.runName

	data, err := json.Marshal(summary)
	if err != nil {
		return fmt.Errorf("failed to marshal run summary: %w", err)
	}

	key := s.entryKey(summary.StartedAt)
	if err := s.rdb.Set(ctx, key, data, summaryTTL).Err(); err != nil {
		return fmt.Errorf("failed to set run summary: %w", err)
	}
	if err := s.rdb.ZAdd(ctx, s.indexKey(), redis.Z{
		Score:  float64(summary.StartedAt.UnixMilli()),
		Member: key,
	}).Err(); err != nil {
		return fmt.Errorf("failed to index run summary: %w", err)
	}
	return nil
}

// Recent returns the most recent n run summaries, newest first.
func (s *SummaryStore) Recent(ctx context.Context, n int) ([]*RunSummary, error) {
	keys, err := s.rdb.ZRevRange(ctx, s.indexKey(), 0, int64(n-1)).Result()
	if err != nil {
		return nil, fmt.Errorf("zrevrange failed: %w", err)
	}

	summaries := make([]*RunSummary, 0, len(keys))
	for _, key := range keys {
		data, err := s.rdb.Get(ctx, key).Bytes()
		if err == redis.Nil {
			continue
		}
		if err != nil {
			return nil, fmt.Errorf("failed to get run summary: %w", err)
		}

		var summary RunSummary
		if err := json.Unmarshal(data, &summary); err != nil {
			continue
		}
		summaries = append(summaries, &summary)
	}
	return summaries, nil
}
