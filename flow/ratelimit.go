package flow

import (
	"context"
	"sync"
	"time"
)

// RateLimiter bounds verification attempts per key.
type RateLimiter interface {
	// Allow checks if the request should be allowed. remaining indicates
	// how many requests are left in the current window.
	Allow(ctx context.Context, key string, limit int, window time.Duration) (allowed bool, remaining int, err error)

	// Reset clears the counter for the given key.
	Reset(ctx context.Context, key string) error
}

type fixedWindowEntry struct {
	count     int
	expiresAt time.Time
}

// MemoryRateLimiter implements rate limiting using fixed time windows held
// in memory. Multi-instance deployments need a shared implementation behind
// the RateLimiter interface.
type MemoryRateLimiter struct {
	mu      sync.Mutex
	entries map[string]*fixedWindowEntry
}

// NewMemoryRateLimiter creates a new fixed-window in-memory limiter.
func NewMemoryRateLimiter() *MemoryRateLimiter {
	return &MemoryRateLimiter{entries: make(map[string]*fixedWindowEntry)}
}

func (r *MemoryRateLimiter) Allow(_ context.Context, key string, limit int, window time.Duration) (bool, int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	now := time.Now()
	entry, exists := r.entries[key]

	if !exists || now.After(entry.expiresAt) {
		r.entries[key] = &fixedWindowEntry{
			count:     1,
			expiresAt: now.Add(window),
		}
		return true, limit - 1, nil
	}

	if entry.count >= limit {
		return false, 0, nil
	}

	entry.count++
	return true, limit - entry.count, nil
}

func (r *MemoryRateLimiter) Reset(_ context.Context, key string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.entries, key)
	return nil
}
