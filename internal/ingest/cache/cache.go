// Package cache provides a best-effort fingerprint fast path. The store's
// uniqueness constraint remains the correctness backstop; a cache miss or a
// cache outage only costs a database round trip.
package cache

import (
	"context"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"
)

const keyPrefix = "pathfinder:fp:"

// FingerprintCache answers "was this fingerprint seen recently".
type FingerprintCache interface {
	Seen(ctx context.Context, fingerprint string) bool
	Remember(ctx context.Context, fingerprint string)
}

// RedisCache backs the fast path with Redis.
type RedisCache struct {
	client *redis.Client
	ttl    time.Duration
	logger *slog.Logger
}

func NewRedisCache(client *redis.Client, ttl time.Duration, logger *slog.Logger) *RedisCache {
	return &RedisCache{client: client, ttl: ttl, logger: logger}
}

func (c *RedisCache) Seen(ctx context.Context, fingerprint string) bool {
	exists, err := c.client.Exists(ctx, keyPrefix+fingerprint).Result()
	if err != nil {
		c.logger.WarnContext(ctx, "fingerprint cache lookup failed", "error", err.Error())
		return false
	}
	return exists > 0
}

func (c *RedisCache) Remember(ctx context.Context, fingerprint string) {
	if err := c.client.Set(ctx, keyPrefix+fingerprint, 1, c.ttl).Err(); err != nil {
		c.logger.WarnContext(ctx, "fingerprint cache write failed", "error", err.Error())
	}
}
