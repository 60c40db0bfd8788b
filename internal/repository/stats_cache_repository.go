package repository

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/campus-cloud/storage-api/internal/models"
	appErrors "github.com/campus-cloud/storage-api/pkg/errors"
)

// StatsCacheRepository caches per-assignment submission statistics in Redis.
// A nil client disables caching entirely; every lookup then misses.
type StatsCacheRepository struct {
	client *redis.Client
	ttl    time.Duration
	logger *zap.Logger
}

// NewStatsCacheRepository constructs a statistics cache.
func NewStatsCacheRepository(client *redis.Client, ttl time.Duration, logger *zap.Logger) *StatsCacheRepository {
	if logger == nil {
		logger = zap.NewNop()
	}
	if ttl <= 0 {
		ttl = 5 * time.Minute
	}
	return &StatsCacheRepository{client: client, ttl: ttl, logger: logger}
}

func statsKey(assignmentID string) string {
	return fmt.Sprintf("stats:assignment:%s", assignmentID)
}

// Get retrieves cached statistics, returning ErrCacheMiss when absent.
func (r *StatsCacheRepository) Get(ctx context.Context, assignmentID string) (*models.SubmissionStatistics, error) {
	if r.client == nil {
		return nil, appErrors.ErrCacheMiss
	}

	raw, err := r.client.Get(ctx, statsKey(assignmentID)).Bytes()
	if err != nil {
		if err == redis.Nil {
			return nil, appErrors.ErrCacheMiss
		}
		return nil, fmt.Errorf("redis get stats for %s: %w", assignmentID, err)
	}

	var stats models.SubmissionStatistics
	if err := json.Unmarshal(raw, &stats); err != nil {
		return nil, fmt.Errorf("unmarshal cached stats for %s: %w", assignmentID, err)
	}
	return &stats, nil
}

// Set stores statistics under the configured TTL.
func (r *StatsCacheRepository) Set(ctx context.Context, assignmentID string, stats *models.SubmissionStatistics) error {
	if r.client == nil {
		return nil
	}

	payload, err := json.Marshal(stats)
	if err != nil {
		return fmt.Errorf("marshal stats for %s: %w", assignmentID, err)
	}
	if err := r.client.Set(ctx, statsKey(assignmentID), payload, r.ttl).Err(); err != nil {
		return fmt.Errorf("redis set stats for %s: %w", assignmentID, err)
	}
	return nil
}

// Invalidate drops the cached statistics after a submit or grade. Failures
// only shorten cache freshness, so they are logged and swallowed.
func (r *StatsCacheRepository) Invalidate(ctx context.Context, assignmentID string) {
	if r.client == nil {
		return
	}
	if err := r.client.Del(ctx, statsKey(assignmentID)).Err(); err != nil {
		r.logger.Warn("invalidate stats cache",
			zap.String("assignment_id", assignmentID),
			zap.Error(err))
	}
}
