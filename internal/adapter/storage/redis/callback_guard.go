package redis

import (
	"context"
	"fmt"
	"time"

	goredis "github.com/redis/go-redis/v9"
)

// CallbackGuard implements ports.CallbackGuard using Redis. It is the
// fast-path replay filter for gateway callbacks; the database terminal-status
// transition stays authoritative when this cache is cold or unavailable.
type CallbackGuard struct {
	client *goredis.Client
	prefix string
}

// NewCallbackGuard creates a Redis-backed callback guard.
func NewCallbackGuard(client *goredis.Client) *CallbackGuard {
	return &CallbackGuard{
		client: client,
		prefix: "callback:",
	}
}

// Seen reports whether the external code was already processed.
func (g *CallbackGuard) Seen(ctx context.Context, externalCode string) (bool, error) {
	n, err := g.client.Exists(ctx, g.prefix+externalCode).Result()
	if err != nil {
		return false, fmt.Errorf("redis callback exists: %w", err)
	}
	return n == 1, nil
}

// MarkSeen records the external code as processed for the given TTL.
func (g *CallbackGuard) MarkSeen(ctx context.Context, externalCode string, ttl time.Duration) error {
	if err := g.client.Set(ctx, g.prefix+externalCode, "1", ttl).Err(); err != nil {
		return fmt.Errorf("redis callback set: %w", err)
	}
	return nil
}
