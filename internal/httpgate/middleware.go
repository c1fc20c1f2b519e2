package httpgate

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"go.uber.org/zap"

	"sessiongate/internal/authz"
	"sessiongate/internal/security"
	"sessiongate/internal/session"
)

// Verifier validates a token and returns its claims.
type Verifier interface {
	Verify(ctx context.Context, token string) (*security.SessionClaims, error)
}

// ExtractToken pulls the credential from the Authorization Bearer header,
// falling back to X-Token. Returns "" when neither is present.
func ExtractToken(r *http.Request) string {
	if auth := r.Header.Get("Authorization"); auth != "" {
		parts := strings.SplitN(auth, " ", 2)
		if len(parts) == 2 && strings.EqualFold(parts[0], "Bearer") {
			return strings.TrimSpace(parts[1])
		}
		return ""
	}
	return strings.TrimSpace(r.Header.Get("X-Token"))
}

// Authenticate verifies the request token and stores the claims on the
// context. Verification failures end the request with 401; unexpected
// verifier errors end it with 500, never with access.
func Authenticate(verifier Verifier, log *zap.Logger) func(http.Handler) http.Handler {
	if log == nil {
		log = zap.NewNop()
	}
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			token := ExtractToken(r)
			if token == "" {
				writeError(w, r, http.StatusUnauthorized, CodeUnauthorized, "missing credential")
				return
			}
			claims, err := verifier.Verify(r.Context(), token)
			if err != nil {
				status, code, msg := mapVerifyError(err)
				if status == http.StatusInternalServerError {
					log.Error("token verification", zap.Error(err))
				}
				writeError(w, r, status, code, msg)
				return
			}
			next.ServeHTTP(w, r.WithContext(WithIdentity(r.Context(), claims, token)))
		})
	}
}

// Authorize evaluates the role policy for an authenticated request. Requests
// without an identity or with a failing policy evaluation are denied.
func Authorize(evaluator *authz.Evaluator, log *zap.Logger) func(http.Handler) http.Handler {
	if log == nil {
		log = zap.NewNop()
	}
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			claims, ok := IdentityFrom(r.Context())
			if !ok {
				writeError(w, r, http.StatusUnauthorized, CodeUnauthorized, "missing credential")
				return
			}
			allowed, err := evaluator.Allow(r.Context(), authz.Input{
				Subject: claims.Subject,
				Roles:   claims.Roles,
				Method:  r.Method,
				Path:    r.URL.Path,
			})
			if err != nil {
				log.Error("authz evaluation", zap.Error(err))
				writeError(w, r, http.StatusInternalServerError, CodeInternal, "authorization unavailable")
				return
			}
			if !allowed {
				writeError(w, r, http.StatusForbidden, CodeForbidden, "insufficient role")
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

func mapVerifyError(err error) (int, string, string) {
	switch {
	case errors.Is(err, security.ErrTokenExpired):
		return http.StatusUnauthorized, CodeTokenExpired, "token expired"
	case errors.Is(err, security.ErrTokenMalformed):
		return http.StatusUnauthorized, CodeUnauthorized, "invalid token"
	case errors.Is(err, session.ErrTokenRevoked):
		return http.StatusUnauthorized, CodeTokenRevoked, "token revoked"
	case errors.Is(err, session.ErrPrincipalInactive):
		return http.StatusUnauthorized, CodeUnauthorized, "principal inactive"
	default:
		return http.StatusInternalServerError, CodeInternal, "verification unavailable"
	}
}
