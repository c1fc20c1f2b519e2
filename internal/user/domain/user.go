// Package domain holds the principal entity gating token verification.
package domain

import (
	"errors"
	"time"
)

// Principal is the authenticated subject: the minimal user record the session
// service needs for login and for the liveness check on verification.
type Principal struct {
	ID           string
	Username     string
	Email        string
	DisplayName  string
	Roles        []string
	PasswordHash string
	Status       Status
	LastLoginAt  *time.Time
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

type Status string

const (
	StatusActive   Status = "active"
	StatusDisabled Status = "disabled"
)

// IsActive reports whether the principal may hold a valid session.
func (p *Principal) IsActive() bool {
	return p != nil && p.Status == StatusActive
}

// Validate validates the principal for persistence. Returns an error
// describing the first validation failure.
func (p *Principal) Validate() error {
	if p.Username == "" && p.Email == "" {
		return errors.New("username or email is required")
	}
	if p.PasswordHash == "" {
		return errors.New("password hash is required")
	}
	if p.Status == "" {
		p.Status = StatusActive
	}
	return nil
}
