package httpgate

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"

	"sessiongate/internal/authz"
	"sessiongate/internal/health"
	"sessiongate/internal/ratelimit"
	"sessiongate/internal/session"
)

// RouterConfig holds everything the HTTP surface needs.
type RouterConfig struct {
	Sessions        *session.Service
	Authz           *authz.Evaluator
	Tiers           ratelimit.Tiers
	Limiter         ratelimit.Limiter
	LimiterFailOpen bool
	LockoutWindow   time.Duration
	// Health backs /readyz; nil leaves only the liveness route.
	Health *health.Checker
	Log    *zap.Logger
}

// NewRouter assembles the full route tree. Public auth routes are rate
// limited by client IP; protected routes authenticate first so the limiter
// keys by subject, then authorize against the role policy.
func NewRouter(cfg RouterConfig) http.Handler {
	log := cfg.Log
	if log == nil {
		log = zap.NewNop()
	}
	h := NewAuthHandler(cfg.Sessions, log, cfg.LockoutWindow)
	limit := RateLimit(RateLimitConfig{
		Tiers:    cfg.Tiers,
		Limiter:  cfg.Limiter,
		FailOpen: cfg.LimiterFailOpen,
		Log:      log,
	})

	r := chi.NewRouter()
	r.Use(chimiddleware.RequestID)
	r.Use(chimiddleware.RealIP)
	r.Use(requestLogger(log))
	r.Use(chimiddleware.Recoverer)

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, r, http.StatusOK, map[string]string{"status": "ok"})
	})
	if cfg.Health != nil {
		r.Get("/readyz", func(w http.ResponseWriter, r *http.Request) {
			ok, results := cfg.Health.Run(r.Context())
			status := http.StatusOK
			if !ok {
				status = http.StatusServiceUnavailable
			}
			writeJSON(w, r, status, map[string]any{"healthy": ok, "checks": results})
		})
	}

	r.Route("/v1", func(r chi.Router) {
		r.Group(func(r chi.Router) {
			r.Use(limit)
			r.Post("/auth/register", h.Register)
			r.Post("/auth/login", h.Login)
			r.Post("/auth/refresh", h.Refresh)
		})
		r.Group(func(r chi.Router) {
			r.Use(Authenticate(cfg.Sessions, log))
			r.Use(limit)
			r.Use(Authorize(cfg.Authz, log))
			r.Get("/auth/me", h.Me)
			r.Post("/auth/logout", h.Logout)
			r.Post("/auth/password", h.ChangePassword)
			r.Post("/admin/revoke", h.RevokeToken)
		})
	})
	return r
}

func requestLogger(log *zap.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			ww := chimiddleware.NewWrapResponseWriter(w, r.ProtoMajor)
			next.ServeHTTP(ww, r)
			log.Info("http request",
				zap.String("method", r.Method),
				zap.String("path", r.URL.Path),
				zap.Int("status", ww.Status()),
				zap.Duration("duration", time.Since(start)),
				zap.String("request_id", chimiddleware.GetReqID(r.Context())),
			)
		})
	}
}
