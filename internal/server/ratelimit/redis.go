package ratelimit

import (
	"context"
	"errors"
	"fmt"

	"github.com/redis/go-redis/v9"
)

// ErrUnavailable indicates the limiter backend is unreachable.
var ErrUnavailable = errors.New("rate limit backend unavailable")

// RedisLimiter is a fixed-window limiter shared across service replicas.
// The counter key carries the window TTL, so entries clean themselves up.
type RedisLimiter struct {
	redis  redis.UniversalClient
	config Config
}

// NewRedisLimiter creates a limiter over the given Redis client.
func NewRedisLimiter(redisClient redis.UniversalClient, cfg Config) *RedisLimiter {
	return &RedisLimiter{redis: redisClient, config: cfg}
}

func (l *RedisLimiter) key(k string) string {
	return "rl:" + k
}

// Allow counts one request under key and reports whether it fits the window.
func (l *RedisLimiter) Allow(ctx context.Context, key string) (bool, error) {
	count, err := l.redis.Incr(ctx, l.key(key)).Result()
	if err != nil {
		return false, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}

	if count == 1 {
		// Set TTL on the first hit so the window resets on its own.
		if err := l.redis.Expire(ctx, l.key(key), l.config.Window).Err(); err != nil {
			return false, fmt.Errorf("%w: %v", ErrUnavailable, err)
		}
	}

	return count <= int64(l.config.Limit), nil
}
