package httpgate

import (
	"net"
	"net/http"
	"strconv"
	"time"

	"go.uber.org/zap"

	"sessiongate/internal/ratelimit"
)

// RateLimitConfig wires the tiered limiter into the HTTP layer.
type RateLimitConfig struct {
	Tiers   ratelimit.Tiers
	Limiter ratelimit.Limiter
	// FailOpen lets requests through when the limiter backend errors.
	// When false such requests get 503.
	FailOpen bool
	Log      *zap.Logger
}

// RateLimit admits or rejects requests per the tiered policy. Authenticated
// requests are keyed by subject, anonymous ones by client IP. A denied
// request consumes no quota.
func RateLimit(cfg RateLimitConfig) func(http.Handler) http.Handler {
	log := cfg.Log
	if log == nil {
		log = zap.NewNop()
	}
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			caller := ratelimit.Caller{IP: clientIP(r)}
			if claims, ok := IdentityFrom(r.Context()); ok {
				caller.Subject = claims.Subject
				caller.Roles = claims.Roles
			}
			res := cfg.Tiers.Resolve(ratelimit.ClassifyRoute(r.Method, r.URL.Path), caller)
			if res.Bypass {
				next.ServeHTTP(w, r)
				return
			}
			d, err := cfg.Limiter.Admit(r.Context(), res.Key, res.Rule.Limit, res.Rule.Window)
			if err != nil {
				log.Warn("rate limiter backend", zap.Error(err))
				if cfg.FailOpen {
					next.ServeHTTP(w, r)
					return
				}
				writeError(w, r, http.StatusServiceUnavailable, CodeDependencyUnready, "rate limiter unavailable")
				return
			}
			w.Header().Set("X-RateLimit-Limit", strconv.Itoa(res.Rule.Limit))
			w.Header().Set("X-RateLimit-Remaining", strconv.Itoa(d.Remaining))
			w.Header().Set("X-RateLimit-Reset", strconv.FormatInt(d.ResetAt.Unix(), 10))
			if !d.Allowed {
				w.Header().Set("Retry-After", strconv.Itoa(retryAfterSeconds(d.RetryAfter)))
				writeError(w, r, http.StatusTooManyRequests, CodeRateLimited, "rate limit exceeded")
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

func retryAfterSeconds(d time.Duration) int {
	secs := int((d + time.Second - 1) / time.Second)
	if secs < 1 {
		secs = 1
	}
	return secs
}

func clientIP(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
