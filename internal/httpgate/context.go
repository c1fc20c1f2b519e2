package httpgate

import (
	"context"

	"sessiongate/internal/security"
)

type ctxKey int

const (
	identityKey ctxKey = iota
	tokenKey
)

// WithIdentity stores the verified claims and the raw token on the context.
func WithIdentity(ctx context.Context, claims *security.SessionClaims, token string) context.Context {
	ctx = context.WithValue(ctx, identityKey, claims)
	return context.WithValue(ctx, tokenKey, token)
}

// IdentityFrom returns the verified claims set by the auth middleware.
func IdentityFrom(ctx context.Context) (*security.SessionClaims, bool) {
	claims, ok := ctx.Value(identityKey).(*security.SessionClaims)
	return claims, ok && claims != nil
}

// TokenFrom returns the raw token the auth middleware verified.
func TokenFrom(ctx context.Context) (string, bool) {
	token, ok := ctx.Value(tokenKey).(string)
	return token, ok && token != ""
}
