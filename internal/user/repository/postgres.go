package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"sessiongate/internal/user/domain"
)

const (
	qGetByID = `
SELECT id, username, email, display_name, roles, password_hash, status, last_login_at, created_at, updated_at
FROM principals
WHERE id = $1;
`
	qGetByIdentifier = `
SELECT id, username, email, display_name, roles, password_hash, status, last_login_at, created_at, updated_at
FROM principals
WHERE username = $1 OR email = $1
LIMIT 1;
`
	qCreate = `
INSERT INTO principals (id, username, email, display_name, roles, password_hash, status, created_at, updated_at)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9);
`
	qUpdateLastLogin = `
UPDATE principals SET last_login_at = $2, updated_at = $2 WHERE id = $1;
`
	qUpdatePasswordHash = `
UPDATE principals SET password_hash = $2, updated_at = $3 WHERE id = $1;
`
)

// PostgresRepository persists principals in Postgres via pgx.
type PostgresRepository struct {
	pool *pgxpool.Pool
}

// NewPostgresRepository returns a principal repository backed by pool.
func NewPostgresRepository(pool *pgxpool.Pool) *PostgresRepository {
	return &PostgresRepository{pool: pool}
}

// GetByID returns the principal for id, or nil if not found. Errors are
// database failures only, never missing rows.
func (r *PostgresRepository) GetByID(ctx context.Context, id string) (*domain.Principal, error) {
	return r.scanOne(r.pool.QueryRow(ctx, qGetByID, id))
}

// GetByIdentifier returns the principal whose username or email matches
// identifier, or nil if not found.
func (r *PostgresRepository) GetByIdentifier(ctx context.Context, identifier string) (*domain.Principal, error) {
	return r.scanOne(r.pool.QueryRow(ctx, qGetByIdentifier, identifier))
}

func (r *PostgresRepository) scanOne(row pgx.Row) (*domain.Principal, error) {
	var p domain.Principal
	err := row.Scan(&p.ID, &p.Username, &p.Email, &p.DisplayName, &p.Roles,
		&p.PasswordHash, &p.Status, &p.LastLoginAt, &p.CreatedAt, &p.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("query principal: %w", err)
	}
	return &p, nil
}

// Create persists the principal. The principal must have ID set; it is not
// assigned by this method.
func (r *PostgresRepository) Create(ctx context.Context, p *domain.Principal) error {
	_, err := r.pool.Exec(ctx, qCreate,
		p.ID, p.Username, p.Email, p.DisplayName, p.Roles, p.PasswordHash,
		p.Status, p.CreatedAt, p.UpdatedAt)
	if err != nil {
		return fmt.Errorf("create principal: %w", err)
	}
	return nil
}

// UpdateLastLogin stamps the principal's last successful login.
func (r *PostgresRepository) UpdateLastLogin(ctx context.Context, id string, at time.Time) error {
	_, err := r.pool.Exec(ctx, qUpdateLastLogin, id, at)
	if err != nil {
		return fmt.Errorf("update last login: %w", err)
	}
	return nil
}

// UpdatePasswordHash replaces the stored password hash.
func (r *PostgresRepository) UpdatePasswordHash(ctx context.Context, id, hash string, at time.Time) error {
	_, err := r.pool.Exec(ctx, qUpdatePasswordHash, id, hash, at)
	if err != nil {
		return fmt.Errorf("update password hash: %w", err)
	}
	return nil
}
