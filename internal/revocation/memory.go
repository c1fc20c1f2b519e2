package revocation

import (
	"context"
	"sync"
	"time"

	"sessiongate/internal/security"
)

// sweepInterval bounds memory even if per-entry timers are missed, e.g. after
// process suspend/resume.
const sweepInterval = 5 * time.Minute

type memEntry struct {
	until time.Time
	timer *time.Timer
}

// MemoryStore is an in-memory Store for single-instance deployments. Each
// entry self-removes at its expiry; a periodic sweep catches stragglers.
type MemoryStore struct {
	mu     sync.Mutex
	m      map[string]*memEntry
	nowF   func() time.Time
	done   chan struct{}
	closed sync.Once
}

// NewMemoryStore returns a MemoryStore with its sweep task started. Callers
// must Close it at shutdown.
func NewMemoryStore() *MemoryStore {
	s := &MemoryStore{
		m:    make(map[string]*memEntry),
		nowF: func() time.Time { return time.Now().UTC() },
		done: make(chan struct{}),
	}
	go s.sweepLoop(sweepInterval)
	return s
}

func (s *MemoryStore) sweepLoop(interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			s.sweep()
		case <-s.done:
			return
		}
	}
}

// sweep snapshots expired keys and then deletes them, so concurrent readers
// never observe iteration over a mutating map.
func (s *MemoryStore) sweep() {
	now := s.nowF()
	s.mu.Lock()
	var expired []string
	for k, e := range s.m {
		if !e.until.After(now) {
			expired = append(expired, k)
		}
	}
	for _, k := range expired {
		if e := s.m[k]; e.timer != nil {
			e.timer.Stop()
		}
		delete(s.m, k)
	}
	s.mu.Unlock()
}

// Add records the token as revoked until the given time.
func (s *MemoryStore) Add(ctx context.Context, token string, until time.Time) error {
	now := s.nowF()
	if !until.After(now) {
		return nil
	}
	key := security.HashToken(token)
	s.mu.Lock()
	defer s.mu.Unlock()
	if old, ok := s.m[key]; ok && old.timer != nil {
		old.timer.Stop()
	}
	e := &memEntry{until: until}
	e.timer = time.AfterFunc(until.Sub(now), func() { s.expire(key) })
	s.m[key] = e
	return nil
}

func (s *MemoryStore) expire(key string) {
	s.mu.Lock()
	delete(s.m, key)
	s.mu.Unlock()
}

// IsRevoked reports whether a live entry exists for token.
func (s *MemoryStore) IsRevoked(ctx context.Context, token string) (bool, error) {
	key := security.HashToken(token)
	now := s.nowF()
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.m[key]
	if !ok {
		return false, nil
	}
	if !e.until.After(now) {
		if e.timer != nil {
			e.timer.Stop()
		}
		delete(s.m, key)
		return false, nil
	}
	return true, nil
}

// Remove deletes the entry for token, if any.
func (s *MemoryStore) Remove(ctx context.Context, token string) error {
	key := security.HashToken(token)
	s.mu.Lock()
	defer s.mu.Unlock()
	if e, ok := s.m[key]; ok {
		if e.timer != nil {
			e.timer.Stop()
		}
		delete(s.m, key)
	}
	return nil
}

// Clear removes all entries.
func (s *MemoryStore) Clear(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for k, e := range s.m {
		if e.timer != nil {
			e.timer.Stop()
		}
		delete(s.m, k)
	}
	return nil
}

// Stats returns the live entry count.
func (s *MemoryStore) Stats(ctx context.Context) (Stats, error) {
	now := s.nowF()
	s.mu.Lock()
	defer s.mu.Unlock()
	count := 0
	for _, e := range s.m {
		if e.until.After(now) {
			count++
		}
	}
	return Stats{Count: count}, nil
}

// Close stops the sweep task and all per-entry timers.
func (s *MemoryStore) Close() error {
	s.closed.Do(func() { close(s.done) })
	return s.Clear(context.Background())
}
