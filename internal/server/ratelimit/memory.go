package ratelimit

import (
	"context"
	"sync"
	"time"
)

type windowRecord struct {
	count       int
	windowStart time.Time
}

// MemoryLimiter is a mutex-guarded in-process fixed-window limiter. State is
// per replica, so limits are effectively multiplied by the replica count;
// use the Redis limiter when that matters.
type MemoryLimiter struct {
	mu      sync.Mutex
	config  Config
	records map[string]*windowRecord
	now     func() time.Time
}

// NewMemoryLimiter creates an in-process limiter.
func NewMemoryLimiter(cfg Config) *MemoryLimiter {
	return &MemoryLimiter{
		config:  cfg,
		records: make(map[string]*windowRecord),
		now:     time.Now,
	}
}

// Allow counts one request under key and reports whether it fits the window.
func (l *MemoryLimiter) Allow(ctx context.Context, key string) (bool, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()

	rec, ok := l.records[key]
	if !ok || now.Sub(rec.windowStart) >= l.config.Window {
		l.records[key] = &windowRecord{count: 1, windowStart: now}
		return true, nil
	}

	rec.count++
	return rec.count <= l.config.Limit, nil
}

// Sweep removes expired windows. Call periodically from a background
// goroutine to bound memory on long-running processes.
func (l *MemoryLimiter) Sweep() {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	for key, rec := range l.records {
		if now.Sub(rec.windowStart) >= l.config.Window {
			delete(l.records, key)
		}
	}
}
