package ratelimit

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// Atomic fixed-window check. Reads the counter first so a denied call never
// increments; the first increment of a window sets its expiry.
var redisAdmitScript = redis.NewScript(`
local limit = tonumber(ARGV[1])
local window_ms = tonumber(ARGV[2])

local count = tonumber(redis.call("GET", KEYS[1]) or "0")
if count >= limit then
  local ttl = redis.call("PTTL", KEYS[1])
  if ttl < 0 then
    ttl = window_ms
  end
  return {0, 0, ttl}
end

count = redis.call("INCR", KEYS[1])
if count == 1 then
  redis.call("PEXPIRE", KEYS[1], window_ms)
end
local ttl = redis.call("PTTL", KEYS[1])
if ttl < 0 then
  ttl = window_ms
end
return {1, limit - count, ttl}
`)

// RedisLimiter is a Limiter backed by a shared Redis, giving replicas one
// common counter per key.
type RedisLimiter struct {
	client redis.UniversalClient
	prefix string
	nowF   func() time.Time
}

// NewRedisLimiter returns a RedisLimiter using the given client. The client
// is owned by the caller. prefix defaults to "rl".
func NewRedisLimiter(client redis.UniversalClient, prefix string) *RedisLimiter {
	if prefix == "" {
		prefix = "rl"
	}
	return &RedisLimiter{
		client: client,
		prefix: prefix,
		nowF:   func() time.Time { return time.Now().UTC() },
	}
}

// Admit runs the fixed-window script for key.
func (l *RedisLimiter) Admit(ctx context.Context, key string, limit int, window time.Duration) (Decision, error) {
	windowMS := window.Milliseconds()
	if windowMS <= 0 {
		windowMS = 1000
	}
	raw, err := redisAdmitScript.Run(ctx, l.client, []string{l.prefix + ":" + key}, limit, windowMS).Result()
	if err != nil {
		return Decision{}, err
	}
	values, ok := raw.([]interface{})
	if !ok || len(values) != 3 {
		return Decision{}, fmt.Errorf("unexpected redis script response")
	}
	allowed, err := redisInt64(values[0])
	if err != nil {
		return Decision{}, err
	}
	remaining, err := redisInt64(values[1])
	if err != nil {
		return Decision{}, err
	}
	ttlMS, err := redisInt64(values[2])
	if err != nil {
		return Decision{}, err
	}
	if remaining < 0 {
		remaining = 0
	}
	now := l.nowF()
	d := Decision{
		Allowed:   allowed == 1,
		Remaining: int(remaining),
		ResetAt:   now.Add(time.Duration(ttlMS) * time.Millisecond),
	}
	if !d.Allowed {
		d.RetryAfter = time.Duration(ttlMS) * time.Millisecond
	}
	return d, nil
}

func redisInt64(v interface{}) (int64, error) {
	switch n := v.(type) {
	case int64:
		return n, nil
	case int:
		return int64(n), nil
	default:
		return 0, fmt.Errorf("unexpected redis response type %T", v)
	}
}
