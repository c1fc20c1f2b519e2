// server runs the authentication and admission-control HTTP service.
package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"sessiongate/internal/authz"
	"sessiongate/internal/config"
	"sessiongate/internal/db"
	"sessiongate/internal/events"
	"sessiongate/internal/health"
	"sessiongate/internal/httpgate"
	"sessiongate/internal/loginguard"
	"sessiongate/internal/obs"
	"sessiongate/internal/ratelimit"
	"sessiongate/internal/revocation"
	"sessiongate/internal/security"
	"sessiongate/internal/session"
	userrepo "sessiongate/internal/user/repository"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config: %v", err)
	}

	logger, err := obs.NewLogger(obs.LogConfig{
		Level:  cfg.LogLevel,
		Pretty: cfg.Env != "production",
		App:    "sessiongate",
		Env:    cfg.Env,
	})
	if err != nil {
		log.Fatalf("logger: %v", err)
	}
	defer func() { _ = logger.Sync() }()

	ctx := context.Background()

	providers, err := obs.NewProviders(ctx, cfg.OTLPEndpoint, "sessiongate", false)
	if err != nil {
		logger.Fatal("telemetry", zap.Error(err))
	}
	providers.SetGlobal()
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = providers.Shutdown(shutdownCtx)
	}()

	codec, err := buildCodec(cfg)
	if err != nil {
		logger.Fatal("token codec", zap.Error(err))
	}

	if cfg.DatabaseURL == "" {
		logger.Fatal("DATABASE_URL is required")
	}
	pool, err := db.OpenPool(ctx, cfg.DatabaseURL)
	if err != nil {
		logger.Fatal("postgres", zap.Error(err))
	}
	defer pool.Close()
	users := userrepo.NewPostgresRepository(pool)

	var redisClient redis.UniversalClient
	if cfg.RedisAddr != "" {
		redisClient = redis.NewClient(&redis.Options{
			Addr:     cfg.RedisAddr,
			Password: cfg.RedisPassword,
		})
		defer func() { _ = redisClient.Close() }()
	}

	var revoked revocation.Store
	var limiter ratelimit.Limiter
	if redisClient != nil {
		mode := revocation.FailOpen
		if cfg.RevocationFailMode == "fail_closed" {
			mode = revocation.FailClosed
		}
		revoked = revocation.NewFallbackStore(revocation.NewRedisStore(redisClient, "revoked"), mode, logger)
		limiter = ratelimit.NewRedisLimiter(redisClient, "rl")
		logger.Info("admission backends", zap.String("backend", "redis"), zap.String("addr", cfg.RedisAddr))
	} else {
		revoked = revocation.NewMemoryStore()
		limiter = ratelimit.NewMemoryLimiter()
		logger.Info("admission backends", zap.String("backend", "memory"))
	}
	defer func() { _ = revoked.Close() }()

	guard := loginguard.New(cfg.LockoutThreshold, cfg.LockoutWindowDuration())
	defer func() { _ = guard.Close() }()

	var emitter events.Emitter
	if brokers := cfg.KafkaBrokersList(); len(brokers) > 0 {
		kafkaEmitter := events.NewKafkaEmitter(brokers, cfg.KafkaEventsTopic)
		defer func() { _ = kafkaEmitter.Close() }()
		emitter = kafkaEmitter
		logger.Info("event emission enabled", zap.Strings("brokers", brokers), zap.String("topic", cfg.KafkaEventsTopic))
	}

	svc := session.NewService(users, codec, revoked, guard, security.NewHasher(cfg.BcryptCost), emitter, logger, session.Options{
		AccessTTL:              cfg.AccessTTL(),
		RefreshTTL:             cfg.RefreshTTL(),
		SkipLivenessCheck:      cfg.SkipLivenessCheck,
		RotateRevokesPrior:     cfg.RotateRevokesPrior,
		RevokeOnPasswordChange: cfg.RevokeOnPasswordChange,
	})

	evaluator, err := authz.NewFromFile(ctx, cfg.AuthzPolicyPath)
	if err != nil {
		logger.Fatal("authz policy", zap.Error(err))
	}

	checker := health.New(0)
	checker.Register("postgres", pool.Ping)
	if redisClient != nil {
		checker.Register("redis", func(ctx context.Context) error {
			return redisClient.Ping(ctx).Err()
		})
	}

	tiers := ratelimit.Tiers{
		General:           ratelimit.Rule{Limit: cfg.RateGeneralLimit, Window: cfg.RateGeneralWindowDuration()},
		ReadOnly:          ratelimit.Rule{Limit: cfg.RateReadOnlyLimit, Window: cfg.RateReadOnlyWindowDuration()},
		Login:             ratelimit.Rule{Limit: cfg.RateLoginLimit, Window: cfg.RateLoginWindowDuration()},
		Upload:            ratelimit.Rule{Limit: cfg.RateUploadLimit, Window: cfg.RateUploadWindowDuration()},
		AdminMultiplier:   cfg.RateAdminMultiplier,
		PremiumMultiplier: cfg.RatePremiumMultiplier,
	}
	cidrs, err := ratelimit.ParseCIDRs(cfg.TrustedCIDRsList())
	if err != nil {
		logger.Fatal("trusted CIDRs", zap.Error(err))
	}
	tiers.TrustedCIDRs = cidrs

	router := httpgate.NewRouter(httpgate.RouterConfig{
		Sessions:        svc,
		Authz:           evaluator,
		Tiers:           tiers,
		Limiter:         limiter,
		LimiterFailOpen: cfg.RateLimitFailOpen,
		LockoutWindow:   cfg.LockoutWindowDuration(),
		Health:          checker,
		Log:             logger,
	})

	srv := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		logger.Info("HTTP server listening", zap.String("addr", cfg.HTTPAddr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal("serve", zap.Error(err))
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)
	<-quit

	logger.Info("shutting down HTTP server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("shutdown", zap.Error(err))
	}
	logger.Info("HTTP server stopped")
}

func buildCodec(cfg *config.Config) (*security.TokenCodec, error) {
	if cfg.JWTSecret != "" {
		return security.NewHMACCodec([]byte(cfg.JWTSecret), cfg.JWTIssuer, cfg.JWTAudience)
	}
	priv, err := security.ParsePrivateKey(cfg.JWTPrivateKey)
	if err != nil {
		return nil, err
	}
	pub, err := security.ParsePublicKey(cfg.JWTPublicKey)
	if err != nil {
		return nil, err
	}
	return security.NewKeyPairCodec(priv, pub, cfg.JWTIssuer, cfg.JWTAudience)
}
