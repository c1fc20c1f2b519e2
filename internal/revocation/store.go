// Package revocation implements the token denylist. A live entry makes a
// token unconditionally invalid regardless of signature validity.
package revocation

import (
	"context"
	"time"
)

// Stats reports the number of live revocation entries.
type Stats struct {
	Count int
}

// Store records revoked tokens until their expiry. Implementations key
// entries by a hash of the token, never the raw string.
type Store interface {
	// Add marks token revoked until the given time. Entries whose until has
	// already passed are not stored.
	Add(ctx context.Context, token string, until time.Time) error
	// IsRevoked reports whether a live entry exists for token.
	IsRevoked(ctx context.Context, token string) (bool, error)
	// Remove deletes the entry for token, if any.
	Remove(ctx context.Context, token string) error
	// Clear removes all entries.
	Clear(ctx context.Context) error
	// Stats returns the live entry count.
	Stats(ctx context.Context) (Stats, error)
	// Close releases timers and background tasks.
	Close() error
}
