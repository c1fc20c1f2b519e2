package revocation

import (
	"context"
	"time"

	"go.uber.org/zap"
)

// FailMode controls the answer IsRevoked gives when the external backend is
// unreachable and the in-memory shadow has no entry either.
type FailMode string

const (
	// FailOpen treats backend errors as "not revoked". This matches the
	// historical behavior; a Redis outage keeps valid sessions working at the
	// cost of honoring revocations recorded only in the lost backend.
	FailOpen FailMode = "fail_open"
	// FailClosed treats backend errors as "revoked": a Redis outage logs
	// everyone out rather than accepting a possibly revoked token.
	FailClosed FailMode = "fail_closed"
)

// FallbackStore decorates an external Store with an in-memory shadow. Writes
// that fail against the backend land in the shadow so revocations issued by
// this process survive an outage; reads degrade per the configured FailMode.
type FallbackStore struct {
	primary Store
	shadow  *MemoryStore
	mode    FailMode
	log     *zap.Logger
}

// NewFallbackStore wraps primary. mode defaults to FailOpen; log may not be nil.
func NewFallbackStore(primary Store, mode FailMode, log *zap.Logger) *FallbackStore {
	if mode != FailClosed {
		mode = FailOpen
	}
	return &FallbackStore{
		primary: primary,
		shadow:  NewMemoryStore(),
		mode:    mode,
		log:     log,
	}
}

// Add records in the backend; on failure it logs and records in the shadow so
// the revocation still holds within this process.
func (s *FallbackStore) Add(ctx context.Context, token string, until time.Time) error {
	if err := s.primary.Add(ctx, token, until); err != nil {
		s.log.Warn("revocation backend add failed, using in-memory shadow",
			zap.Error(err), zap.Time("until", until))
		return s.shadow.Add(ctx, token, until)
	}
	return nil
}

// IsRevoked consults the backend, then the shadow. A backend error never
// propagates: the shadow answer wins when it says revoked, otherwise the
// configured FailMode decides.
func (s *FallbackStore) IsRevoked(ctx context.Context, token string) (bool, error) {
	revoked, err := s.primary.IsRevoked(ctx, token)
	if err == nil {
		return revoked, nil
	}
	s.log.Warn("revocation backend check failed, degrading per fail mode",
		zap.Error(err), zap.String("mode", string(s.mode)))
	shadowRevoked, _ := s.shadow.IsRevoked(ctx, token)
	if shadowRevoked {
		return true, nil
	}
	return s.mode == FailClosed, nil
}

// Remove deletes from both backend and shadow.
func (s *FallbackStore) Remove(ctx context.Context, token string) error {
	_ = s.shadow.Remove(ctx, token)
	return s.primary.Remove(ctx, token)
}

// Clear clears both backend and shadow.
func (s *FallbackStore) Clear(ctx context.Context) error {
	_ = s.shadow.Clear(ctx)
	return s.primary.Clear(ctx)
}

// Stats returns backend stats, falling back to the shadow on error.
func (s *FallbackStore) Stats(ctx context.Context) (Stats, error) {
	st, err := s.primary.Stats(ctx)
	if err != nil {
		return s.shadow.Stats(ctx)
	}
	return st, nil
}

// Close closes the shadow and the backend.
func (s *FallbackStore) Close() error {
	_ = s.shadow.Close()
	return s.primary.Close()
}
