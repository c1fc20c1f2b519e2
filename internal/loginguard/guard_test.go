package loginguard

import (
	"testing"
	"time"
)

func TestGuard_BlocksAtThreshold(t *testing.T) {
	g := New(5, 15*time.Minute)
	defer g.Close()

	for i := 0; i < 4; i++ {
		g.RecordFailure("bob")
		if g.IsBlocked("bob") {
			t.Fatalf("blocked after %d failures, threshold is 5", i+1)
		}
	}
	g.RecordFailure("bob")
	if !g.IsBlocked("bob") {
		t.Error("not blocked after 5 failures")
	}
}

func TestGuard_SuccessResets(t *testing.T) {
	g := New(5, 15*time.Minute)
	defer g.Close()

	for i := 0; i < 5; i++ {
		g.RecordFailure("bob")
	}
	if !g.IsBlocked("bob") {
		t.Fatal("not blocked after 5 failures")
	}
	g.RecordSuccess("bob")
	if g.IsBlocked("bob") {
		t.Error("still blocked after RecordSuccess")
	}
	if g.Failures("bob") != 0 {
		t.Errorf("failures = %d, want 0", g.Failures("bob"))
	}
}

func TestGuard_WindowExpiryUnblocks(t *testing.T) {
	g := New(5, 15*time.Minute)
	defer g.Close()

	base := time.Now().UTC()
	g.nowF = func() time.Time { return base }
	for i := 0; i < 5; i++ {
		g.RecordFailure("bob")
	}
	if !g.IsBlocked("bob") {
		t.Fatal("not blocked after 5 failures")
	}

	g.nowF = func() time.Time { return base.Add(16 * time.Minute) }
	if g.IsBlocked("bob") {
		t.Error("still blocked after the window elapsed")
	}
	// A failure after expiry starts a fresh record at count 1.
	g.RecordFailure("bob")
	if g.Failures("bob") != 1 {
		t.Errorf("failures after stale reset = %d, want 1", g.Failures("bob"))
	}
}

func TestGuard_IdentifierNormalization(t *testing.T) {
	g := New(5, 15*time.Minute)
	defer g.Close()

	for i := 0; i < 5; i++ {
		g.RecordFailure("  Bob@Example.COM ")
	}
	if !g.IsBlocked("bob@example.com") {
		t.Error("normalized identifier not blocked")
	}
	g.RecordSuccess("BOB@example.com")
	if g.IsBlocked("bob@example.com") {
		t.Error("success with differently-cased identifier did not reset")
	}
}

func TestGuard_IdentifiersIndependent(t *testing.T) {
	g := New(5, 15*time.Minute)
	defer g.Close()

	for i := 0; i < 5; i++ {
		g.RecordFailure("bob")
	}
	if g.IsBlocked("alice") {
		t.Error("alice blocked by bob's failures")
	}
}

func TestGuard_SweepDropsStaleRecords(t *testing.T) {
	g := New(5, 15*time.Minute)
	defer g.Close()

	base := time.Now().UTC()
	g.nowF = func() time.Time { return base }
	g.RecordFailure("stale")
	g.RecordFailure("fresh")

	g.nowF = func() time.Time { return base.Add(20 * time.Minute) }
	g.RecordFailure("fresh")
	g.sweep()

	g.mu.Lock()
	_, staleKept := g.m["stale"]
	_, freshKept := g.m["fresh"]
	g.mu.Unlock()
	if staleKept {
		t.Error("stale record survived sweep")
	}
	if !freshKept {
		t.Error("fresh record swept")
	}
}

func TestNew_Defaults(t *testing.T) {
	g := New(0, 0)
	defer g.Close()
	if g.threshold != DefaultThreshold || g.window != DefaultWindow {
		t.Errorf("defaults = %d/%v, want %d/%v", g.threshold, g.window, DefaultThreshold, DefaultWindow)
	}
}
