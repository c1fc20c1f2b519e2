package repository

import (
	"context"
	"time"

	"sessiongate/internal/user/domain"
)

// Repository defines persistence for principals.
type Repository interface {
	GetByID(ctx context.Context, id string) (*domain.Principal, error)
	// GetByIdentifier looks up a principal by username or email.
	GetByIdentifier(ctx context.Context, identifier string) (*domain.Principal, error)
	Create(ctx context.Context, p *domain.Principal) error
	UpdateLastLogin(ctx context.Context, id string, at time.Time) error
	UpdatePasswordHash(ctx context.Context, id, hash string, at time.Time) error
}
