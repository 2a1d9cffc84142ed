package redis

import (
	"context"
	"fmt"
	"time"

	"github.com/qtu11/SipMart-sub003/internal/core/ports"

	goredis "github.com/redis/go-redis/v9"
)

// CounterStore implements ports.WindowCounter using Redis. The same store
// backs HTTP rate limiting and the per-user daily withdrawal count.
type CounterStore struct {
	client *goredis.Client
	prefix string
}

// NewCounterStore creates a Redis-backed fixed-window counter.
func NewCounterStore(client *goredis.Client) *CounterStore {
	return &CounterStore{
		client: client,
		prefix: "counter:",
	}
}

// Allow increments the counter for the current window and reports whether
// the limit is exceeded. Fixed-window: INCR + EXPIRE on a key scoped by
// windowID, computed as time / windowDuration.
func (s *CounterStore) Allow(ctx context.Context, key string, limit int64, window time.Duration) (*ports.CounterResult, error) {
	now := time.Now()
	windowID := now.Unix() / int64(window.Seconds())
	redisKey := fmt.Sprintf("%s%s:%d", s.prefix, key, windowID)

	count, err := s.client.Incr(ctx, redisKey).Result()
	if err != nil {
		return nil, fmt.Errorf("redis counter incr: %w", err)
	}

	// Set expiry only on first increment (new window)
	if count == 1 {
		s.client.Expire(ctx, redisKey, window+time.Second) // +1s safety margin
	}

	resetAt := (windowID + 1) * int64(window.Seconds())
	remaining := limit - count
	if remaining < 0 {
		remaining = 0
	}

	return &ports.CounterResult{
		Allowed:   count <= limit,
		Limit:     limit,
		Remaining: remaining,
		ResetAt:   resetAt,
	}, nil
}
