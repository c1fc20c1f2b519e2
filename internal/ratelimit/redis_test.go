package ratelimit

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
)

func newRedisLimiter(t *testing.T) (*RedisLimiter, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return NewRedisLimiter(client, "rl"), mr
}

func TestRedisLimiter_AllowsUpToLimit(t *testing.T) {
	l, _ := newRedisLimiter(t)
	ctx := context.Background()

	for i := 0; i < 5; i++ {
		d, err := l.Admit(ctx, "k", 5, time.Minute)
		if err != nil {
			t.Fatalf("Admit: %v", err)
		}
		if !d.Allowed {
			t.Fatalf("call %d denied, limit is 5", i+1)
		}
		if d.Remaining != 5-(i+1) {
			t.Fatalf("call %d: remaining = %d, want %d", i+1, d.Remaining, 5-(i+1))
		}
	}
	d, err := l.Admit(ctx, "k", 5, time.Minute)
	if err != nil {
		t.Fatalf("Admit: %v", err)
	}
	if d.Allowed {
		t.Error("6th call allowed")
	}
	if d.Remaining != 0 {
		t.Errorf("denied remaining = %d, want 0", d.Remaining)
	}
	if d.RetryAfter <= 0 {
		t.Errorf("retryAfter = %v, want > 0", d.RetryAfter)
	}
}

func TestRedisLimiter_DenialConsumesNoQuota(t *testing.T) {
	l, mr := newRedisLimiter(t)
	ctx := context.Background()

	for i := 0; i < 2; i++ {
		if d, _ := l.Admit(ctx, "k", 2, time.Minute); !d.Allowed {
			t.Fatalf("call %d denied", i+1)
		}
	}
	for i := 0; i < 10; i++ {
		if d, _ := l.Admit(ctx, "k", 2, time.Minute); d.Allowed {
			t.Fatal("over-limit call allowed")
		}
	}
	got, err := mr.Get("rl:k")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if got != "2" {
		t.Errorf("counter after denials = %q, want \"2\"", got)
	}
}

func TestRedisLimiter_WindowReset(t *testing.T) {
	l, mr := newRedisLimiter(t)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		l.Admit(ctx, "k", 3, time.Minute)
	}
	if d, _ := l.Admit(ctx, "k", 3, time.Minute); d.Allowed {
		t.Fatal("over-limit call allowed")
	}

	mr.FastForward(time.Minute + time.Millisecond)
	d, err := l.Admit(ctx, "k", 3, time.Minute)
	if err != nil {
		t.Fatalf("Admit: %v", err)
	}
	if !d.Allowed {
		t.Error("call after window elapsed denied")
	}
	if d.Remaining != 2 {
		t.Errorf("remaining after reset = %d, want 2", d.Remaining)
	}
}

func TestRedisLimiter_BackendDown(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	l := NewRedisLimiter(client, "rl")

	mr.Close()
	if _, err := l.Admit(context.Background(), "k", 5, time.Minute); err == nil {
		t.Error("Admit with backend down: want error")
	}
}
