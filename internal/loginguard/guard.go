// Package loginguard throttles brute-force logins by tracking failed attempts
// per identifier within a sliding window.
package loginguard

import (
	"strings"
	"sync"
	"time"
)

// Defaults match the historical policy: five failures lock an identifier out
// for the remainder of a fifteen-minute window.
const (
	DefaultThreshold = 5
	DefaultWindow    = 15 * time.Minute
)

type record struct {
	failures      int
	lastFailureAt time.Time
}

// Guard tracks failed-login counts per identifier. Lockout is decided before
// any credential comparison so a locked identifier cannot authenticate even
// with correct credentials.
type Guard struct {
	mu        sync.Mutex
	m         map[string]*record
	threshold int
	window    time.Duration
	nowF      func() time.Time
	done      chan struct{}
	closed    sync.Once
}

// New returns a Guard with its sweep task started. Non-positive threshold or
// window fall back to the defaults. Callers must Close it at shutdown.
func New(threshold int, window time.Duration) *Guard {
	if threshold <= 0 {
		threshold = DefaultThreshold
	}
	if window <= 0 {
		window = DefaultWindow
	}
	g := &Guard{
		m:         make(map[string]*record),
		threshold: threshold,
		window:    window,
		nowF:      func() time.Time { return time.Now().UTC() },
		done:      make(chan struct{}),
	}
	go g.sweepLoop(window)
	return g
}

// normalize maps an identifier to its tracking key so failure and success for
// the same submitted username/email address the same record.
func normalize(identifier string) string {
	return strings.ToLower(strings.TrimSpace(identifier))
}

// IsBlocked reports whether identifier has reached the failure threshold
// within the window. Stale records are lazily dropped.
func (g *Guard) IsBlocked(identifier string) bool {
	key := normalize(identifier)
	now := g.nowF()
	g.mu.Lock()
	defer g.mu.Unlock()
	r, ok := g.m[key]
	if !ok {
		return false
	}
	if now.Sub(r.lastFailureAt) > g.window {
		delete(g.m, key)
		return false
	}
	return r.failures >= g.threshold
}

// RecordFailure increments the failure count for identifier, creating the
// record on first failure.
func (g *Guard) RecordFailure(identifier string) {
	key := normalize(identifier)
	now := g.nowF()
	g.mu.Lock()
	defer g.mu.Unlock()
	r, ok := g.m[key]
	if !ok || now.Sub(r.lastFailureAt) > g.window {
		g.m[key] = &record{failures: 1, lastFailureAt: now}
		return
	}
	r.failures++
	r.lastFailureAt = now
}

// RecordSuccess deletes the record for identifier, returning it to clean state.
func (g *Guard) RecordSuccess(identifier string) {
	key := normalize(identifier)
	g.mu.Lock()
	delete(g.m, key)
	g.mu.Unlock()
}

// Failures returns the current failure count for identifier. Used for
// operational visibility and tests.
func (g *Guard) Failures(identifier string) int {
	key := normalize(identifier)
	g.mu.Lock()
	defer g.mu.Unlock()
	if r, ok := g.m[key]; ok {
		return r.failures
	}
	return 0
}

func (g *Guard) sweepLoop(interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			g.sweep()
		case <-g.done:
			return
		}
	}
}

// sweep snapshots stale keys and then deletes them.
func (g *Guard) sweep() {
	now := g.nowF()
	g.mu.Lock()
	var stale []string
	for k, r := range g.m {
		if now.Sub(r.lastFailureAt) > g.window {
			stale = append(stale, k)
		}
	}
	for _, k := range stale {
		delete(g.m, k)
	}
	g.mu.Unlock()
}

// Close stops the sweep task.
func (g *Guard) Close() error {
	g.closed.Do(func() { close(g.done) })
	return nil
}
