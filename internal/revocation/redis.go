package revocation

import (
	"context"
	"time"

	"github.com/redis/go-redis/v9"

	"sessiongate/internal/security"
)

// RedisStore is a Store backed by a shared Redis, for multi-replica
// deployments. Each entry is a short-TTL marker; Redis expires them itself.
type RedisStore struct {
	client redis.UniversalClient
	prefix string
	nowF   func() time.Time
}

// NewRedisStore returns a RedisStore using the given client. The client is
// owned by the caller. prefix defaults to "revoked".
func NewRedisStore(client redis.UniversalClient, prefix string) *RedisStore {
	if prefix == "" {
		prefix = "revoked"
	}
	return &RedisStore{
		client: client,
		prefix: prefix,
		nowF:   func() time.Time { return time.Now().UTC() },
	}
}

func (s *RedisStore) key(token string) string {
	return s.prefix + ":" + security.HashToken(token)
}

// Add writes a marker with TTL = until - now.
func (s *RedisStore) Add(ctx context.Context, token string, until time.Time) error {
	ttl := until.Sub(s.nowF())
	if ttl <= 0 {
		return nil
	}
	return s.client.Set(ctx, s.key(token), "1", ttl).Err()
}

// IsRevoked is a single existence check.
func (s *RedisStore) IsRevoked(ctx context.Context, token string) (bool, error) {
	n, err := s.client.Exists(ctx, s.key(token)).Result()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

// Remove deletes the marker for token.
func (s *RedisStore) Remove(ctx context.Context, token string) error {
	return s.client.Del(ctx, s.key(token)).Err()
}

// Clear removes every marker under the store's prefix.
func (s *RedisStore) Clear(ctx context.Context) error {
	var cursor uint64
	for {
		keys, next, err := s.client.Scan(ctx, cursor, s.prefix+":*", 100).Result()
		if err != nil {
			return err
		}
		if len(keys) > 0 {
			if err := s.client.Del(ctx, keys...).Err(); err != nil {
				return err
			}
		}
		cursor = next
		if cursor == 0 {
			return nil
		}
	}
}

// Stats counts markers under the store's prefix.
func (s *RedisStore) Stats(ctx context.Context) (Stats, error) {
	var cursor uint64
	count := 0
	for {
		keys, next, err := s.client.Scan(ctx, cursor, s.prefix+":*", 100).Result()
		if err != nil {
			return Stats{}, err
		}
		count += len(keys)
		cursor = next
		if cursor == 0 {
			return Stats{Count: count}, nil
		}
	}
}

// Close is a no-op; the Redis client belongs to the caller.
func (s *RedisStore) Close() error { return nil }
