package session

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"sessiongate/internal/events"
	"sessiongate/internal/loginguard"
	"sessiongate/internal/revocation"
	"sessiongate/internal/security"
	userdomain "sessiongate/internal/user/domain"
)

// ValidationError marks input problems the HTTP layer should report as 400.
type ValidationError string

func (e ValidationError) Error() string { return string(e) }

// Sentinel errors for the session service; the HTTP layer maps them to status codes.
var (
	ErrIdentifierTaken    = errors.New("username or email already registered")
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrTooManyAttempts    = errors.New("too many failed login attempts")
	ErrTokenRevoked       = errors.New("token has been revoked")
	ErrNotRefreshToken    = errors.New("token is not a refresh token")
	ErrPrincipalInactive  = errors.New("principal is missing or inactive")
)

// UserStore is the minimal principal repository needed by the session service.
type UserStore interface {
	GetByID(ctx context.Context, id string) (*userdomain.Principal, error)
	GetByIdentifier(ctx context.Context, identifier string) (*userdomain.Principal, error)
	Create(ctx context.Context, p *userdomain.Principal) error
	UpdateLastLogin(ctx context.Context, id string, at time.Time) error
	UpdatePasswordHash(ctx context.Context, id, hash string, at time.Time) error
}

// Options tunes the session service.
type Options struct {
	AccessTTL  time.Duration
	RefreshTTL time.Duration
	// SkipLivenessCheck disables the per-verification principal status lookup.
	SkipLivenessCheck bool
	// RotateRevokesPrior revokes the presented refresh token after a successful rotation.
	RotateRevokesPrior bool
	// RevokeOnPasswordChange revokes the token presented with a password change.
	RevokeOnPasswordChange bool
}

// AuthResult holds the outcome of Register, Login, or Refresh.
type AuthResult struct {
	AccessToken  string
	RefreshToken string
	ExpiresAt    time.Time
	Subject      string
	Roles        []string
}

// RegisterInput carries the fields of a registration request.
type RegisterInput struct {
	Username    string
	Email       string
	DisplayName string
	Password    string
	Roles       []string
}

// Service orchestrates registration, login, token verification, refresh,
// password changes, and logout.
type Service struct {
	users   UserStore
	codec   *security.TokenCodec
	revoked revocation.Store
	guard   *loginguard.Guard
	hasher  *security.Hasher
	emitter events.Emitter
	log     *zap.Logger
	opts    Options

	nowF func() time.Time
}

// NewService returns a Service with the given dependencies. emitter may be nil.
func NewService(
	users UserStore,
	codec *security.TokenCodec,
	revoked revocation.Store,
	guard *loginguard.Guard,
	hasher *security.Hasher,
	emitter events.Emitter,
	log *zap.Logger,
	opts Options,
) *Service {
	if opts.AccessTTL <= 0 {
		opts.AccessTTL = 15 * time.Minute
	}
	if opts.RefreshTTL <= 0 {
		opts.RefreshTTL = 7 * 24 * time.Hour
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &Service{
		users:   users,
		codec:   codec,
		revoked: revoked,
		guard:   guard,
		hasher:  hasher,
		emitter: emitter,
		log:     log,
		opts:    opts,
		nowF:    func() time.Time { return time.Now().UTC() },
	}
}

// Register creates an active principal and returns a fresh token pair.
func (s *Service) Register(ctx context.Context, in RegisterInput) (*AuthResult, error) {
	username := strings.TrimSpace(strings.ToLower(in.Username))
	email := strings.TrimSpace(strings.ToLower(in.Email))
	if username == "" {
		return nil, ValidationError("username is required")
	}
	if err := validateEmail(email); err != nil {
		return nil, err
	}
	if err := validatePassword(in.Password); err != nil {
		return nil, err
	}
	for _, key := range []string{username, email} {
		existing, err := s.users.GetByIdentifier(ctx, key)
		if err != nil {
			return nil, fmt.Errorf("lookup principal: %w", err)
		}
		if existing != nil {
			return nil, ErrIdentifierTaken
		}
	}
	hashed, err := s.hasher.Hash([]byte(in.Password))
	if err != nil {
		return nil, err
	}
	now := s.nowF()
	roles := in.Roles
	if len(roles) == 0 {
		roles = []string{"user"}
	}
	p := &userdomain.Principal{
		ID:           uuid.New().String(),
		Username:     username,
		Email:        email,
		DisplayName:  strings.TrimSpace(in.DisplayName),
		Roles:        roles,
		PasswordHash: hashed,
		Status:       userdomain.StatusActive,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if err := p.Validate(); err != nil {
		return nil, err
	}
	if err := s.users.Create(ctx, p); err != nil {
		return nil, fmt.Errorf("create principal: %w", err)
	}
	return s.issue(p)
}

// Login authenticates an identifier/password pair and returns a fresh token pair.
// Lockout is checked before credentials so a blocked identifier leaks nothing
// about whether the password was correct.
func (s *Service) Login(ctx context.Context, identifier, password string) (*AuthResult, error) {
	identifier = strings.TrimSpace(strings.ToLower(identifier))
	if identifier == "" || password == "" {
		return nil, ErrInvalidCredentials
	}
	if s.guard.IsBlocked(identifier) {
		s.emit(ctx, events.Event{Type: events.TypeLoginLockout, Identifier: identifier, At: s.nowF()})
		return nil, ErrTooManyAttempts
	}
	p, err := s.users.GetByIdentifier(ctx, identifier)
	if err != nil {
		return nil, fmt.Errorf("lookup principal: %w", err)
	}
	if p == nil || !p.IsActive() {
		s.recordFailure(ctx, identifier)
		return nil, ErrInvalidCredentials
	}
	if err := s.hasher.Compare(p.PasswordHash, []byte(password)); err != nil {
		s.recordFailure(ctx, identifier)
		return nil, ErrInvalidCredentials
	}
	s.guard.RecordSuccess(identifier)
	now := s.nowF()
	if err := s.users.UpdateLastLogin(ctx, p.ID, now); err != nil {
		s.log.Warn("update last login", zap.String("principal_id", p.ID), zap.Error(err))
	}
	s.emit(ctx, events.Event{Type: events.TypeLoginSuccess, Subject: p.ID, Identifier: identifier, At: now})
	return s.issue(p)
}

// Verify checks signature, expiry, revocation, and principal liveness for a
// token, in that order. It returns the claims on success.
func (s *Service) Verify(ctx context.Context, token string) (*security.SessionClaims, error) {
	claims, err := s.codec.Verify(token)
	if err != nil {
		return nil, err
	}
	revoked, err := s.revoked.IsRevoked(ctx, token)
	if err != nil {
		return nil, fmt.Errorf("revocation check: %w", err)
	}
	if revoked {
		return nil, ErrTokenRevoked
	}
	if !s.opts.SkipLivenessCheck {
		p, err := s.users.GetByID(ctx, claims.Subject)
		if err != nil {
			return nil, fmt.Errorf("liveness check: %w", err)
		}
		if p == nil || !p.IsActive() {
			return nil, ErrPrincipalInactive
		}
	}
	return claims, nil
}

// Refresh exchanges a valid refresh token for a fresh pair with a new
// fingerprint. When RotateRevokesPrior is set the presented token is revoked
// for the remainder of its lifetime.
func (s *Service) Refresh(ctx context.Context, refreshToken string) (*AuthResult, error) {
	claims, err := s.Verify(ctx, refreshToken)
	if err != nil {
		return nil, err
	}
	if claims.TokenUse != security.TokenUseRefresh {
		return nil, ErrNotRefreshToken
	}
	ident := security.Identity{
		Subject:     claims.Subject,
		DisplayName: claims.DisplayName,
		Roles:       claims.Roles,
	}
	if !s.opts.SkipLivenessCheck {
		// Roles may have changed since the refresh token was minted.
		if p, err := s.users.GetByID(ctx, claims.Subject); err == nil && p != nil {
			ident.DisplayName = p.DisplayName
			ident.Roles = p.Roles
		}
	}
	pair, err := s.codec.IssuePair(ident, s.opts.AccessTTL, s.opts.RefreshTTL)
	if err != nil {
		return nil, err
	}
	if s.opts.RotateRevokesPrior && claims.ExpiresAt != nil {
		if err := s.revoked.Add(ctx, refreshToken, claims.ExpiresAt.Time); err != nil {
			s.log.Warn("revoke rotated refresh token", zap.Error(err))
		}
	}
	return &AuthResult{
		AccessToken:  pair.AccessToken,
		RefreshToken: pair.RefreshToken,
		ExpiresAt:    pair.AccessExpiresAt,
		Subject:      ident.Subject,
		Roles:        ident.Roles,
	}, nil
}

// ChangePassword verifies the current password and stores a hash of the new
// one. presentedToken, when non-empty and RevokeOnPasswordChange is set, is
// revoked so the session that made the change must log in again.
func (s *Service) ChangePassword(ctx context.Context, principalID, current, next, presentedToken string) error {
	p, err := s.users.GetByID(ctx, principalID)
	if err != nil {
		return fmt.Errorf("lookup principal: %w", err)
	}
	if p == nil || !p.IsActive() {
		return ErrPrincipalInactive
	}
	if err := s.hasher.Compare(p.PasswordHash, []byte(current)); err != nil {
		return ErrInvalidCredentials
	}
	if err := validatePassword(next); err != nil {
		return err
	}
	hashed, err := s.hasher.Hash([]byte(next))
	if err != nil {
		return err
	}
	now := s.nowF()
	if err := s.users.UpdatePasswordHash(ctx, p.ID, hashed, now); err != nil {
		return fmt.Errorf("update password hash: %w", err)
	}
	if s.opts.RevokeOnPasswordChange && presentedToken != "" {
		s.revokeToken(ctx, presentedToken)
	}
	s.emit(ctx, events.Event{Type: events.TypePasswordChanged, Subject: p.ID, At: now})
	return nil
}

// Logout revokes the presented token for the remainder of its lifetime.
// Tokens that do not decode are a no-op; there is nothing to revoke.
func (s *Service) Logout(ctx context.Context, token string) error {
	if token == "" {
		return nil
	}
	s.revokeToken(ctx, token)
	return nil
}

func (s *Service) revokeToken(ctx context.Context, token string) {
	claims, ok := s.codec.DecodeUnverified(token)
	if !ok {
		return
	}
	until := s.nowF().Add(s.opts.RefreshTTL)
	if claims.ExpiresAt != nil {
		until = claims.ExpiresAt.Time
	}
	if err := s.revoked.Add(ctx, token, until); err != nil {
		s.log.Warn("revoke token", zap.Error(err))
		return
	}
	s.emit(ctx, events.Event{Type: events.TypeTokenRevoked, Subject: claims.Subject, At: s.nowF()})
}

func (s *Service) recordFailure(ctx context.Context, identifier string) {
	s.guard.RecordFailure(identifier)
	now := s.nowF()
	s.emit(ctx, events.Event{Type: events.TypeLoginFailure, Identifier: identifier, At: now})
	if s.guard.IsBlocked(identifier) {
		s.emit(ctx, events.Event{Type: events.TypeLoginLockout, Identifier: identifier, At: now})
	}
}

func (s *Service) emit(ctx context.Context, ev events.Event) {
	if s.emitter == nil {
		return
	}
	s.emitter.Emit(ctx, ev)
}

func (s *Service) issue(p *userdomain.Principal) (*AuthResult, error) {
	pair, err := s.codec.IssuePair(security.Identity{
		Subject:     p.ID,
		DisplayName: p.DisplayName,
		Roles:       p.Roles,
	}, s.opts.AccessTTL, s.opts.RefreshTTL)
	if err != nil {
		return nil, err
	}
	return &AuthResult{
		AccessToken:  pair.AccessToken,
		RefreshToken: pair.RefreshToken,
		ExpiresAt:    pair.AccessExpiresAt,
		Subject:      p.ID,
		Roles:        p.Roles,
	}, nil
}

func validateEmail(email string) error {
	if email == "" {
		return ValidationError("email is required")
	}
	const simpleEmail = `^[a-zA-Z0-9._%+-]+@[a-zA-Z0-9.-]+\.[a-zA-Z]{2,}$`
	ok, _ := regexp.MatchString(simpleEmail, email)
	if !ok {
		return ValidationError("invalid email format")
	}
	return nil
}

func validatePassword(password string) error {
	if len(password) < 8 {
		return ValidationError("password must be at least 8 characters")
	}
	var hasLetter, hasNumber bool
	for _, r := range password {
		switch {
		case r >= 'A' && r <= 'Z' || r >= 'a' && r <= 'z':
			hasLetter = true
		case r >= '0' && r <= '9':
			hasNumber = true
		}
	}
	if !hasLetter {
		return ValidationError("password must contain at least one letter")
	}
	if !hasNumber {
		return ValidationError("password must contain at least one number")
	}
	return nil
}
