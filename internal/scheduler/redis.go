package scheduler

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/jwalitptl/deadline-tracker/pkg/logger"
	"github.com/jwalitptl/deadline-tracker/pkg/metrics"
)

const scheduleKey = "reminders:schedule"

// RedisAdapter stores armed reminders in a sorted set scored by fire time.
// Multiple workers can poll the same set; the ZREM result decides which
// worker owns a due member, so each fires at most once per arming.
type RedisAdapter struct {
	client       *redis.Client
	fire         FireFunc
	logger       *logger.Logger
	metrics      *metrics.Metrics
	pollInterval time.Duration
	batchSize    int
}

type RedisAdapterConfig struct {
	PollInterval time.Duration
	BatchSize    int
}

func NewRedisAdapter(url string, fire FireFunc, cfg RedisAdapterConfig, log *logger.Logger, m *metrics.Metrics) (*RedisAdapter, error) {
	opts, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("failed to parse Redis URL: %w", err)
	}

	client := redis.NewClient(opts)
	if err := client.Ping(context.Background()).Err(); err != nil {
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}

	if cfg.PollInterval <= 0 {
		cfg.PollInterval = 5 * time.Second
	}
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = 100
	}

	return &RedisAdapter{
		client:       client,
		fire:         fire,
		logger:       log,
		metrics:      m,
		pollInterval: cfg.PollInterval,
		batchSize:    cfg.BatchSize,
	}, nil
}

func (a *RedisAdapter) Schedule(ctx context.Context, reminderID uuid.UUID, at time.Time) error {
	// ZADD replaces the score of an existing member, which is exactly the
	// idempotent re-arm semantics callers rely on.
	return a.client.ZAdd(ctx, scheduleKey, redis.Z{
		Score:  float64(at.UnixMilli()),
		Member: reminderID.String(),
	}).Err()
}

func (a *RedisAdapter) Cancel(ctx context.Context, reminderID uuid.UUID) error {
	return a.client.ZRem(ctx, scheduleKey, reminderID.String()).Err()
}

func (a *RedisAdapter) EnqueueNow(ctx context.Context, reminderID uuid.UUID) error {
	return a.Schedule(ctx, reminderID, time.Now())
}

// Start polls for due members until ctx is cancelled.
func (a *RedisAdapter) Start(ctx context.Context) {
	ticker := time.NewTicker(a.pollInterval)
	defer ticker.Stop()

	a.logger.Info("starting reminder scheduler poll loop")

	for {
		select {
		case <-ctx.Done():
			a.logger.Info("shutting down reminder scheduler")
			return
		case <-ticker.C:
			if err := a.pollOnce(ctx); err != nil {
				a.logger.Error(err, "scheduler poll failed")
			}
		}
	}
}

func (a *RedisAdapter) pollOnce(ctx context.Context) error {
	a.metrics.SchedulerPolls.Inc()

	now := time.Now().UnixMilli()
	members, err := a.client.ZRangeByScore(ctx, scheduleKey, &redis.ZRangeBy{
		Min:   "-inf",
		Max:   fmt.Sprintf("%d", now),
		Count: int64(a.batchSize),
	}).Result()
	if err != nil {
		return fmt.Errorf("failed to read due reminders: %w", err)
	}

	for _, member := range members {
		// Claim the member; losing the race means another worker owns it.
		removed, err := a.client.ZRem(ctx, scheduleKey, member).Result()
		if err != nil {
			return fmt.Errorf("failed to claim reminder %s: %w", member, err)
		}
		if removed == 0 {
			continue
		}

		id, err := uuid.Parse(member)
		if err != nil {
			a.logger.Error(err, "dropping malformed reminder id", "member", member)
			continue
		}
		a.fire(ctx, id)
	}

	if size, err := a.client.ZCard(ctx, scheduleKey).Result(); err == nil {
		a.metrics.SchedulerQueueSize.Set(float64(size))
	}
	return nil
}

func (a *RedisAdapter) Close() error {
	return a.client.Close()
}
