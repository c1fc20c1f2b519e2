package revocation

import (
	"context"
	"testing"
	"time"
)

func TestMemoryStore_AddAndIsRevoked(t *testing.T) {
	s := NewMemoryStore()
	defer s.Close()
	ctx := context.Background()

	if err := s.Add(ctx, "tok", time.Now().UTC().Add(time.Hour)); err != nil {
		t.Fatalf("Add: %v", err)
	}
	revoked, err := s.IsRevoked(ctx, "tok")
	if err != nil {
		t.Fatalf("IsRevoked: %v", err)
	}
	if !revoked {
		t.Error("token not revoked after Add")
	}
	revoked, err = s.IsRevoked(ctx, "other")
	if err != nil {
		t.Fatalf("IsRevoked: %v", err)
	}
	if revoked {
		t.Error("unrelated token reported revoked")
	}
}

func TestMemoryStore_EntryDiesAtUntil(t *testing.T) {
	s := NewMemoryStore()
	defer s.Close()
	ctx := context.Background()

	base := time.Now().UTC()
	s.nowF = func() time.Time { return base }
	if err := s.Add(ctx, "tok", base.Add(time.Minute)); err != nil {
		t.Fatalf("Add: %v", err)
	}

	s.nowF = func() time.Time { return base.Add(2 * time.Minute) }
	revoked, err := s.IsRevoked(ctx, "tok")
	if err != nil {
		t.Fatalf("IsRevoked: %v", err)
	}
	if revoked {
		t.Error("entry still live past until")
	}
}

func TestMemoryStore_AddPastUntilIsNoop(t *testing.T) {
	s := NewMemoryStore()
	defer s.Close()
	ctx := context.Background()

	if err := s.Add(ctx, "tok", time.Now().UTC().Add(-time.Minute)); err != nil {
		t.Fatalf("Add: %v", err)
	}
	revoked, _ := s.IsRevoked(ctx, "tok")
	if revoked {
		t.Error("expired Add produced a live entry")
	}
	st, _ := s.Stats(ctx)
	if st.Count != 0 {
		t.Errorf("Count = %d, want 0", st.Count)
	}
}

func TestMemoryStore_RemoveAndClear(t *testing.T) {
	s := NewMemoryStore()
	defer s.Close()
	ctx := context.Background()
	until := time.Now().UTC().Add(time.Hour)

	_ = s.Add(ctx, "a", until)
	_ = s.Add(ctx, "b", until)
	if err := s.Remove(ctx, "a"); err != nil {
		t.Fatalf("Remove: %v", err)
	}
	if revoked, _ := s.IsRevoked(ctx, "a"); revoked {
		t.Error("removed token still revoked")
	}
	if revoked, _ := s.IsRevoked(ctx, "b"); !revoked {
		t.Error("untouched token lost")
	}

	if err := s.Clear(ctx); err != nil {
		t.Fatalf("Clear: %v", err)
	}
	st, _ := s.Stats(ctx)
	if st.Count != 0 {
		t.Errorf("Count after Clear = %d, want 0", st.Count)
	}
}

func TestMemoryStore_SweepRemovesExpired(t *testing.T) {
	s := NewMemoryStore()
	defer s.Close()
	ctx := context.Background()

	base := time.Now().UTC()
	s.nowF = func() time.Time { return base }
	_ = s.Add(ctx, "stale", base.Add(time.Minute))
	_ = s.Add(ctx, "fresh", base.Add(time.Hour))

	// Simulate missed per-entry timers by advancing the clock and sweeping.
	s.nowF = func() time.Time { return base.Add(10 * time.Minute) }
	s.sweep()

	s.mu.Lock()
	n := len(s.m)
	s.mu.Unlock()
	if n != 1 {
		t.Errorf("entries after sweep = %d, want 1", n)
	}
	if revoked, _ := s.IsRevoked(ctx, "fresh"); !revoked {
		t.Error("fresh entry swept")
	}
}

func TestMemoryStore_Stats(t *testing.T) {
	s := NewMemoryStore()
	defer s.Close()
	ctx := context.Background()
	until := time.Now().UTC().Add(time.Hour)

	for _, tok := range []string{"a", "b", "c"} {
		_ = s.Add(ctx, tok, until)
	}
	st, err := s.Stats(ctx)
	if err != nil {
		t.Fatalf("Stats: %v", err)
	}
	if st.Count != 3 {
		t.Errorf("Count = %d, want 3", st.Count)
	}
}
