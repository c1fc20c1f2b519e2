// Package ratelimit implements fixed-window admission counters keyed by
// caller identity and route class, with in-memory and Redis backends.
package ratelimit

import (
	"context"
	"sync"
	"time"
)

// Decision is the outcome of one admission check. A denied call consumes no
// quota; Remaining and ResetAt carry everything needed for a 429 response.
type Decision struct {
	Allowed    bool
	Remaining  int
	ResetAt    time.Time
	RetryAfter time.Duration
}

// Limiter admits or denies one unit of work against a fixed window.
type Limiter interface {
	Admit(ctx context.Context, key string, limit int, window time.Duration) (Decision, error)
}

type fixedWindow struct {
	count       int
	windowStart time.Time
}

// MemoryLimiter is a Limiter for single-instance deployments. Counters live
// in a map cleaned up lazily on access.
type MemoryLimiter struct {
	mu          sync.Mutex
	store       map[string]*fixedWindow
	nextCleanup time.Time
	nowF        func() time.Time
}

// NewMemoryLimiter returns an empty in-memory limiter.
func NewMemoryLimiter() *MemoryLimiter {
	now := time.Now().UTC()
	return &MemoryLimiter{
		store:       make(map[string]*fixedWindow),
		nextCleanup: now.Add(time.Minute),
		nowF:        func() time.Time { return time.Now().UTC() },
	}
}

// Admit starts a new window when none exists or the current one has elapsed,
// otherwise increments and compares against limit. Denials do not increment.
func (l *MemoryLimiter) Admit(ctx context.Context, key string, limit int, window time.Duration) (Decision, error) {
	now := l.nowF()
	l.mu.Lock()
	defer l.mu.Unlock()

	if now.After(l.nextCleanup) {
		for k, w := range l.store {
			if now.Sub(w.windowStart) > 2*window {
				delete(l.store, k)
			}
		}
		l.nextCleanup = now.Add(window)
	}

	w, ok := l.store[key]
	if !ok || now.Sub(w.windowStart) >= window {
		l.store[key] = &fixedWindow{count: 1, windowStart: now}
		return Decision{
			Allowed:   true,
			Remaining: limit - 1,
			ResetAt:   now.Add(window),
		}, nil
	}

	resetAt := w.windowStart.Add(window)
	if w.count >= limit {
		retryAfter := resetAt.Sub(now)
		if retryAfter < 0 {
			retryAfter = 0
		}
		return Decision{
			Allowed:    false,
			Remaining:  0,
			ResetAt:    resetAt,
			RetryAfter: retryAfter,
		}, nil
	}
	w.count++
	return Decision{
		Allowed:   true,
		Remaining: limit - w.count,
		ResetAt:   resetAt,
	}, nil
}
