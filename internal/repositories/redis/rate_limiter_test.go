package redis

import (
	"context"
	"strconv"
	"testing"
	"time"

	"github.com/go-redis/redismock/v9"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func fixedLimiter(client *redis.Client, maxAttempts int64, window time.Duration, now time.Time) *SlidingWindowLimiter {
	return &SlidingWindowLimiter{
		client:      client,
		maxAttempts: maxAttempts,
		window:      window,
		now:         func() time.Time { return now },
	}
}

func TestSlidingWindowAllow(t *testing.T) {
	now := time.Date(2025, 6, 15, 12, 0, 0, 0, time.UTC)
	window := time.Minute
	key := "rate:10.0.0.1"
	windowStart := strconv.FormatInt(now.Unix()-60, 10)

	t.Run("Allowed - Budget Remaining", func(t *testing.T) {
		db, mock := redismock.NewClientMock()
		limiter := fixedLimiter(db, 5, window, now)

		mock.ExpectZRemRangeByScore(key, "0", windowStart).SetVal(0)
		mock.ExpectZAdd(key, redis.Z{Score: float64(now.Unix()), Member: now.Unix()}).SetVal(1)
		mock.ExpectZCard(key).SetVal(2)
		mock.ExpectExpire(key, window).SetVal(true)

		allowed, remaining, retryAfter, err := limiter.Allow(context.Background(), "10.0.0.1")

		require.NoError(t, err)
		assert.True(t, allowed)
		assert.Equal(t, 3, remaining)
		assert.Equal(t, 0, retryAfter)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("Denied - Window Full Reports Retry After", func(t *testing.T) {
		db, mock := redismock.NewClientMock()
		limiter := fixedLimiter(db, 5, window, now)

		oldest := now.Unix() - 40

		mock.ExpectZRemRangeByScore(key, "0", windowStart).SetVal(0)
		mock.ExpectZAdd(key, redis.Z{Score: float64(now.Unix()), Member: now.Unix()}).SetVal(1)
		mock.ExpectZCard(key).SetVal(5)
		mock.ExpectExpire(key, window).SetVal(true)
		mock.ExpectZRange(key, 0, 0).SetVal([]string{strconv.FormatInt(oldest, 10)})

		allowed, remaining, retryAfter, err := limiter.Allow(context.Background(), "10.0.0.1")

		require.NoError(t, err)
		assert.False(t, allowed)
		assert.Equal(t, 0, remaining)
		assert.Equal(t, 20, retryAfter, "60s window minus 40s elapsed since the oldest attempt")
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("Redis Failure Propagates", func(t *testing.T) {
		db, mock := redismock.NewClientMock()
		limiter := fixedLimiter(db, 5, window, now)

		mock.ExpectZRemRangeByScore(key, "0", windowStart).SetErr(assert.AnError)

		allowed, _, _, err := limiter.Allow(context.Background(), "10.0.0.1")

		assert.False(t, allowed)
		assert.Error(t, err)
	})
}
