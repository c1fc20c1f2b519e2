package revocation

import (
	"context"
	"errors"
	"testing"
	"time"

	"go.uber.org/zap"
)

var errBackendDown = errors.New("backend unavailable")

// brokenStore fails every call, standing in for an unreachable backend.
type brokenStore struct{}

func (brokenStore) Add(ctx context.Context, token string, until time.Time) error {
	return errBackendDown
}
func (brokenStore) IsRevoked(ctx context.Context, token string) (bool, error) {
	return false, errBackendDown
}
func (brokenStore) Remove(ctx context.Context, token string) error { return errBackendDown }
func (brokenStore) Clear(ctx context.Context) error                { return errBackendDown }
func (brokenStore) Stats(ctx context.Context) (Stats, error)       { return Stats{}, errBackendDown }
func (brokenStore) Close() error                                   { return nil }

func TestFallbackStore_HealthyBackendPassesThrough(t *testing.T) {
	primary := NewMemoryStore()
	s := NewFallbackStore(primary, FailOpen, zap.NewNop())
	defer s.Close()
	ctx := context.Background()

	if err := s.Add(ctx, "tok", time.Now().UTC().Add(time.Hour)); err != nil {
		t.Fatalf("Add: %v", err)
	}
	if revoked, _ := primary.IsRevoked(ctx, "tok"); !revoked {
		t.Error("Add did not reach the primary store")
	}
	revoked, err := s.IsRevoked(ctx, "tok")
	if err != nil {
		t.Fatalf("IsRevoked: %v", err)
	}
	if !revoked {
		t.Error("revoked token reported live")
	}
}

func TestFallbackStore_AddFallsBackToShadow(t *testing.T) {
	s := NewFallbackStore(brokenStore{}, FailOpen, zap.NewNop())
	defer s.Close()
	ctx := context.Background()

	if err := s.Add(ctx, "tok", time.Now().UTC().Add(time.Hour)); err != nil {
		t.Fatalf("Add should not surface backend error: %v", err)
	}
	// The revocation recorded by this process must still hold.
	revoked, err := s.IsRevoked(ctx, "tok")
	if err != nil {
		t.Fatalf("IsRevoked: %v", err)
	}
	if !revoked {
		t.Error("shadow revocation lost")
	}
}

func TestFallbackStore_FailOpen(t *testing.T) {
	s := NewFallbackStore(brokenStore{}, FailOpen, zap.NewNop())
	defer s.Close()

	revoked, err := s.IsRevoked(context.Background(), "unknown")
	if err != nil {
		t.Fatalf("IsRevoked must not surface backend error: %v", err)
	}
	if revoked {
		t.Error("fail-open treated unknown token as revoked")
	}
}

func TestFallbackStore_FailClosed(t *testing.T) {
	s := NewFallbackStore(brokenStore{}, FailClosed, zap.NewNop())
	defer s.Close()

	revoked, err := s.IsRevoked(context.Background(), "unknown")
	if err != nil {
		t.Fatalf("IsRevoked must not surface backend error: %v", err)
	}
	if !revoked {
		t.Error("fail-closed accepted a token while the backend was down")
	}
}

func TestNewFallbackStore_DefaultsToFailOpen(t *testing.T) {
	s := NewFallbackStore(brokenStore{}, FailMode("bogus"), zap.NewNop())
	defer s.Close()
	if s.mode != FailOpen {
		t.Errorf("mode = %q, want %q", s.mode, FailOpen)
	}
}
