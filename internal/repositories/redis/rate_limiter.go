package redis

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/pharmaplace/pharmacy-commerce-platform/internal/config"
	"github.com/redis/go-redis/v9"
)

// RateLimiter is injected wherever request throttling is needed, so the
// counter lives in a shared store and never in process-local state.
type RateLimiter interface {
	// Allow returns whether the request may proceed, the remaining budget,
	// and the seconds to wait when denied.
	Allow(ctx context.Context, key string) (bool, int, int, error)
}

type SlidingWindowLimiter struct {
	client      *redis.Client
	maxAttempts int64
	window      time.Duration
	now         func() time.Time
}

func NewClient(cfg *config.Config) (*redis.Client, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.RedisConnect.Host,
		Username: cfg.RedisConnect.Username,
		Password: cfg.RedisConnect.Password,
		DB:       cfg.RedisConnect.DB,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("failed to connect to redis: %w", err)
	}

	return client, nil
}

func NewSlidingWindowLimiter(client *redis.Client, cfg *config.RateConfig) *SlidingWindowLimiter {
	return &SlidingWindowLimiter{
		client:      client,
		maxAttempts: cfg.MaxAttempts,
		window:      cfg.WindowSize,
		now:         time.Now,
	}
}

// Allow keeps one sorted set per key, scored by unix timestamp: trim the
// window, record the attempt, count, expire — all in one pipeline.
func (l *SlidingWindowLimiter) Allow(ctx context.Context, key string) (bool, int, int, error) {
	redisKey := fmt.Sprintf("rate:%s", key)

	now := l.now().Unix()
	windowStart := now - int64(l.window.Seconds())

	pipe := l.client.Pipeline()

	pipe.ZRemRangeByScore(ctx, redisKey, "0", strconv.FormatInt(windowStart, 10))
	pipe.ZAdd(ctx, redisKey, redis.Z{Score: float64(now), Member: now})
	count := pipe.ZCard(ctx, redisKey)
	pipe.Expire(ctx, redisKey, l.window)

	if _, err := pipe.Exec(ctx); err != nil {
		return false, 0, 0, err
	}

	attempts := count.Val()
	remaining := l.maxAttempts - attempts

	if attempts >= l.maxAttempts {
		oldest, err := l.client.ZRange(ctx, redisKey, 0, 0).Result()
		if err != nil || len(oldest) == 0 {
			return false, 0, 0, err
		}

		oldestTime, err := strconv.ParseInt(oldest[0], 10, 64)
		if err != nil {
			return false, 0, 0, err
		}

		retryAfter := int64(l.window.Seconds()) - (now - oldestTime)

		return false, 0, int(retryAfter), nil
	}

	return true, int(remaining), 0, nil
}
