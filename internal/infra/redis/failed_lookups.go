package redis

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/coumap/crawler/internal/core/domain"
	"github.com/coumap/crawler/internal/metrics"
)

// failedLookupTTL keeps failed lookups around long enough to inspect and
// retry manually, then lets them expire.
const failedLookupTTL = 7 * 24 * time.Hour

// FailedLookupSink implements the failed-geocode side channel using Redis.
// Entries are deduplicated by (store name, address) so repeated runs over the
// same region do not pile up duplicates.
type FailedLookupSink struct {
	rdb     *redis.Client
	runName string
}

// NewFailedLookupSink creates a Redis-backed failed lookup sink. runName
// namespaces the keys so concurrent crawls of different issuers do not mix.
func NewFailedLookupSink(client *Client, runName string) *FailedLookupSink {
	return &FailedLookupSink{
		rdb:     client.rdb,
		runName: runName,
	}
}

// Key helpers
func (s *FailedLookupSink) indexKey() string {
	return fmt.Sprintf("failed_lookups:%s", s.runName)
}

func (s *FailedLookupSink) entryKey(dedupKey string) string {
	return fmt.Sprintf("failed_lookup:%s:%s", s.runName, dedupKey)
}

// Add records a failed lookup. A lookup already present under the same
// deduplication key is overwritten, not duplicated.
func (s *FailedLookupSink) Add(ctx context.Context, fl *domain.FailedLookup) error {
	if fl.Timestamp.IsZero() {
		fl.Timestamp = time.Now()
	}

	data, err := json.Marshal(fl)
	if err != nil {
		return fmt.Errorf("failed to marshal failed lookup: %w", err)
	}

	key := fl.Key()
	if err := s.rdb.Set(ctx, s.entryKey(key), data, failedLookupTTL).Err(); err != nil {
		return fmt.Errorf("failed to set failed lookup: %w", err)
	}

	// Sorted by first-seen time so GetAll returns them in crawl order.
	added, err := s.rdb.ZAddNX(ctx, s.indexKey(), redis.Z{
		Score:  float64(fl.Timestamp.UnixMilli()),
		Member: key,
	}).Result()
	if err != nil {
		return fmt.Errorf("failed to index failed lookup: %w", err)
	}
	if added > 0 {
		metrics.FailedLookups.Inc()
	}

	return nil
}

// AddAll flushes a batch of failed lookups.
func (s *FailedLookupSink) AddAll(ctx context.Context, lookups []*domain.FailedLookup) error {
	for _, fl := range lookups {
		if err := s.Add(ctx, fl); err != nil {
			return err
		}
	}
	return nil
}

// GetAll retrieves all recorded failed lookups, oldest first.
func (s *FailedLookupSink) GetAll(ctx context.Context) ([]*domain.FailedLookup, error) {
	keys, err := s.rdb.ZRange(ctx, s.indexKey(), 0, -1).Result()
	if err != nil {
		return nil, fmt.Errorf("zrange failed: %w", err)
	}

	lookups := make([]*domain.FailedLookup, 0, len(keys))
	for _, key := range keys {
		data, err := s.rdb.Get(ctx, s.entryKey(key)).Bytes()
		if err == redis.Nil {
			continue
		}
		if err != nil {
			return nil, fmt.Errorf("failed to get failed lookup: %w", err)
		}

		var fl domain.FailedLookup
		if err := json.Unmarshal(data, &fl); err != nil {
			continue
		}
		lookups = append(lookups, &fl)
	}

	return lookups, nil
}

// Count returns the number of recorded failed lookups.
func (s *FailedLookupSink) Count(ctx context.Context) (int, error) {
	count, err := s.rdb.ZCard(ctx, s.indexKey()).Result()
	if err != nil {
		return 0, fmt.Errorf("zcard failed: %w", err)
	}
	return int(count), nil
}

// Clear removes all recorded failed lookups.
func (s *FailedLookupSink) Clear(ctx context.Context) error {
	keys, err := s.rdb.ZRange(ctx, s.indexKey(), 0, -1).Result()
	if err != nil {
		return fmt.Errorf("zrange failed: %w", err)
	}
	for _, key := range keys {
		if err := s.rdb.Del(ctx, s.entryKey(key)).Err(); err != nil {
			return fmt.Errorf("failed to delete failed lookup: %w", err)
		}
	}
	return s.rdb.Del(ctx, s.indexKey()).Err()
}
