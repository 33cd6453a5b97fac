// Package ratelimit provides fixed-window request limiters keyed by an
// arbitrary string (typically route + client IP). A Redis-backed limiter is
// used when the service runs behind several replicas; a mutex-guarded
// in-process limiter serves single-instance deployments and tests.
package ratelimit

import (
	"context"
	"time"
)

// Limiter decides whether one more request under key may proceed within the
// current window. Implementations count the request as a side effect.
type Limiter interface {
	Allow(ctx context.Context, key string) (bool, error)
}

// Config holds the window parameters for one limited route.
type Config struct {
	Limit  int
	Window time.Duration
}

// Default per-route limits.
var (
	RegisterLimit = Config{Limit: 3, Window: 15 * time.Minute}
	LoginLimit    = Config{Limit: 5, Window: 15 * time.Minute}
)
