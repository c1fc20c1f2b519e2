// Package config loads and validates app config from env and an optional .env file using Viper.
package config

import (
	"errors"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config holds application configuration loaded from the environment.
type Config struct {
	// HTTPAddr is the address the HTTP server listens on (e.g. :8080).
	HTTPAddr string `mapstructure:"HTTP_ADDR"`
	// DatabaseURL is the Postgres DSN; empty runs without a database.
	DatabaseURL string `mapstructure:"DATABASE_URL"`
	// RedisAddr enables the Redis revocation and rate-limit backends when set.
	RedisAddr string `mapstructure:"REDIS_ADDR"`
	// RedisPassword is the optional Redis AUTH password.
	RedisPassword string `mapstructure:"REDIS_PASSWORD"`

	// JWTSecret is the HMAC signing secret (min 32 bytes). Mutually exclusive with the key pair.
	JWTSecret string `mapstructure:"JWT_SECRET"`
	// JWTPrivateKey is the PEM-encoded private key (RSA or ECDSA) or path to file; used with JWT_PUBLIC_KEY.
	JWTPrivateKey string `mapstructure:"JWT_PRIVATE_KEY"`
	// JWTPublicKey is the PEM-encoded public key or path to file; used with JWT_PRIVATE_KEY.
	JWTPublicKey string `mapstructure:"JWT_PUBLIC_KEY"`
	// JWTIssuer is the iss claim.
	JWTIssuer string `mapstructure:"JWT_ISSUER"`
	// JWTAudience is the aud claim.
	JWTAudience string `mapstructure:"JWT_AUDIENCE"`
	// JWTAccessTTL is the access token lifetime (e.g. "15m").
	JWTAccessTTL string `mapstructure:"JWT_ACCESS_TTL"`
	// JWTRefreshTTL is the refresh token lifetime (e.g. "168h").
	JWTRefreshTTL string `mapstructure:"JWT_REFRESH_TTL"`
	// BcryptCost is the bcrypt cost factor (4-31); default 12.
	BcryptCost int `mapstructure:"BCRYPT_COST"`

	// SkipLivenessCheck disables the per-verification principal lookup. Must
	// not be true when Env is production.
	SkipLivenessCheck bool `mapstructure:"SKIP_LIVENESS_CHECK"`
	// RotateRevokesPrior revokes the presented refresh token after rotation.
	RotateRevokesPrior bool `mapstructure:"ROTATE_REVOKES_PRIOR"`
	// RevokeOnPasswordChange revokes the token presented with a password change.
	RevokeOnPasswordChange bool `mapstructure:"REVOKE_ON_PASSWORD_CHANGE"`
	// RevocationFailMode is "fail_open" or "fail_closed" for revocation backend errors.
	RevocationFailMode string `mapstructure:"REVOCATION_FAIL_MODE"`
	// RateLimitFailOpen admits requests when the rate limiter backend errors.
	RateLimitFailOpen bool `mapstructure:"RATE_LIMIT_FAIL_OPEN"`

	// LockoutThreshold is the failed-login count that trips the guard.
	LockoutThreshold int `mapstructure:"LOCKOUT_THRESHOLD"`
	// LockoutWindow is how long the guard remembers failures (e.g. "15m").
	LockoutWindow string `mapstructure:"LOCKOUT_WINDOW"`

	// RateGeneralLimit caps mutating non-upload requests per caller per window.
	RateGeneralLimit int `mapstructure:"RATE_GENERAL_LIMIT"`
	// RateGeneralWindow is the general window (e.g. "15m").
	RateGeneralWindow string `mapstructure:"RATE_GENERAL_WINDOW"`
	// RateReadOnlyLimit caps GET/HEAD requests per caller per window.
	RateReadOnlyLimit int `mapstructure:"RATE_READONLY_LIMIT"`
	// RateReadOnlyWindow is the read-only window.
	RateReadOnlyWindow string `mapstructure:"RATE_READONLY_WINDOW"`
	// RateLoginLimit caps login/register attempts per identity per window.
	RateLoginLimit int `mapstructure:"RATE_LOGIN_LIMIT"`
	// RateLoginWindow is the login window.
	RateLoginWindow string `mapstructure:"RATE_LOGIN_WINDOW"`
	// RateUploadLimit caps uploads per caller per window, on its own clock.
	RateUploadLimit int `mapstructure:"RATE_UPLOAD_LIMIT"`
	// RateUploadWindow is the upload window (e.g. "1h").
	RateUploadWindow string `mapstructure:"RATE_UPLOAD_WINDOW"`
	// RateAdminMultiplier scales the general/read-only ceilings for admins.
	RateAdminMultiplier int `mapstructure:"RATE_ADMIN_MULTIPLIER"`
	// RatePremiumMultiplier scales the general/read-only ceilings for premium callers.
	RatePremiumMultiplier int `mapstructure:"RATE_PREMIUM_MULTIPLIER"`
	// RateTrustedCIDRs is a comma-separated allow-list whose login traffic skips throttling.
	RateTrustedCIDRs string `mapstructure:"RATE_TRUSTED_CIDRS"`

	// AuthzPolicyPath optionally overrides the built-in Rego policy.
	AuthzPolicyPath string `mapstructure:"AUTHZ_POLICY_PATH"`

	// KafkaBrokers is a comma-separated broker list for security events; empty disables emission.
	KafkaBrokers string `mapstructure:"KAFKA_BROKERS"`
	// KafkaEventsTopic is the topic security events are written to.
	KafkaEventsTopic string `mapstructure:"KAFKA_EVENTS_TOPIC"`
	// KafkaGroupID is the consumer group ID for the audit worker.
	KafkaGroupID string `mapstructure:"KAFKA_GROUP_ID"`

	// OTLPEndpoint is the OTLP gRPC collector endpoint; empty disables export.
	OTLPEndpoint string `mapstructure:"OTEL_EXPORTER_OTLP_ENDPOINT"`

	// Env is the application environment (e.g. "development", "production").
	Env string `mapstructure:"APP_ENV"`
	// LogLevel is the zap level ("debug", "info", "warn", "error").
	LogLevel string `mapstructure:"LOG_LEVEL"`
}

// Load reads .env (if present), then builds and validates Config from the environment via Viper.
// Missing .env is ignored (e.g. in CI). Env vars override .env.
func Load() (*Config, error) {
	v := viper.New()

	v.SetConfigFile(".env")
	v.SetConfigType("env")
	_ = v.ReadInConfig() // ignore ErrConfigFileNotFound

	v.AutomaticEnv()

	v.SetDefault("HTTP_ADDR", ":8080")
	v.SetDefault("DATABASE_URL", "")
	v.SetDefault("REDIS_ADDR", "")
	v.SetDefault("REDIS_PASSWORD", "")
	v.SetDefault("JWT_SECRET", "")
	v.SetDefault("JWT_PRIVATE_KEY", "")
	v.SetDefault("JWT_PUBLIC_KEY", "")
	v.SetDefault("JWT_ISSUER", "sessiongate-auth")
	v.SetDefault("JWT_AUDIENCE", "sessiongate-api")
	v.SetDefault("JWT_ACCESS_TTL", "15m")
	v.SetDefault("JWT_REFRESH_TTL", "168h") // 7d
	v.SetDefault("BCRYPT_COST", 12)
	v.SetDefault("SKIP_LIVENESS_CHECK", false)
	v.SetDefault("ROTATE_REVOKES_PRIOR", false)
	v.SetDefault("REVOKE_ON_PASSWORD_CHANGE", false)
	v.SetDefault("REVOCATION_FAIL_MODE", "fail_open")
	v.SetDefault("RATE_LIMIT_FAIL_OPEN", true)
	v.SetDefault("LOCKOUT_THRESHOLD", 5)
	v.SetDefault("LOCKOUT_WINDOW", "15m")
	v.SetDefault("RATE_GENERAL_LIMIT", 100)
	v.SetDefault("RATE_GENERAL_WINDOW", "15m")
	v.SetDefault("RATE_READONLY_LIMIT", 300)
	v.SetDefault("RATE_READONLY_WINDOW", "15m")
	v.SetDefault("RATE_LOGIN_LIMIT", 5)
	v.SetDefault("RATE_LOGIN_WINDOW", "15m")
	v.SetDefault("RATE_UPLOAD_LIMIT", 20)
	v.SetDefault("RATE_UPLOAD_WINDOW", "1h")
	v.SetDefault("RATE_ADMIN_MULTIPLIER", 5)
	v.SetDefault("RATE_PREMIUM_MULTIPLIER", 2)
	v.SetDefault("RATE_TRUSTED_CIDRS", "")
	v.SetDefault("AUTHZ_POLICY_PATH", "")
	v.SetDefault("KAFKA_BROKERS", "")
	v.SetDefault("KAFKA_EVENTS_TOPIC", "sessiongate-events")
	v.SetDefault("KAFKA_GROUP_ID", "sessiongate-audit-worker")
	v.SetDefault("OTEL_EXPORTER_OTLP_ENDPOINT", "")
	v.SetDefault("APP_ENV", "")
	v.SetDefault("LOG_LEVEL", "info")

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, err
	}

	if cfg.HTTPAddr == "" {
		return nil, errors.New("config: HTTP_ADDR must be set")
	}

	hasSecret := cfg.JWTSecret != ""
	hasKeyPair := cfg.JWTPrivateKey != "" && cfg.JWTPublicKey != ""
	if hasSecret && hasKeyPair {
		return nil, errors.New("config: JWT_SECRET and JWT_PRIVATE_KEY/JWT_PUBLIC_KEY are mutually exclusive")
	}
	if !hasSecret && !hasKeyPair {
		return nil, errors.New("config: either JWT_SECRET or JWT_PRIVATE_KEY/JWT_PUBLIC_KEY must be set")
	}

	if cfg.SkipLivenessCheck && cfg.Env == "production" {
		return nil, errors.New("config: SKIP_LIVENESS_CHECK must not be true when APP_ENV=production")
	}

	switch cfg.RevocationFailMode {
	case "fail_open", "fail_closed":
	default:
		return nil, errors.New("config: REVOCATION_FAIL_MODE must be fail_open or fail_closed")
	}

	if cfg.BcryptCost == 0 {
		cfg.BcryptCost = 12
	}
	if cfg.BcryptCost < 4 || cfg.BcryptCost > 31 {
		return nil, errors.New("config: BCRYPT_COST must be between 4 and 31")
	}

	if cfg.LockoutThreshold < 1 {
		return nil, errors.New("config: LOCKOUT_THRESHOLD must be at least 1")
	}

	for name, limit := range map[string]int{
		"RATE_GENERAL_LIMIT":  cfg.RateGeneralLimit,
		"RATE_READONLY_LIMIT": cfg.RateReadOnlyLimit,
		"RATE_LOGIN_LIMIT":    cfg.RateLoginLimit,
		"RATE_UPLOAD_LIMIT":   cfg.RateUploadLimit,
	} {
		if limit < 1 {
			return nil, errors.New("config: " + name + " must be at least 1")
		}
	}
	if cfg.RateAdminMultiplier < 1 || cfg.RatePremiumMultiplier < 1 {
		return nil, errors.New("config: rate multipliers must be at least 1")
	}

	return &cfg, nil
}

// AccessTTL parses JWTAccessTTL as a time.Duration. Returns 15m if unset or invalid.
func (c *Config) AccessTTL() time.Duration {
	d, err := time.ParseDuration(c.JWTAccessTTL)
	if err != nil || d <= 0 {
		return 15 * time.Minute
	}
	return d
}

// RefreshTTL parses JWTRefreshTTL as a time.Duration. Returns 168h if unset or invalid.
func (c *Config) RefreshTTL() time.Duration {
	d, err := time.ParseDuration(c.JWTRefreshTTL)
	if err != nil || d <= 0 {
		return 168 * time.Hour
	}
	return d
}

// LockoutWindowDuration parses LockoutWindow. Returns 15m if unset or invalid.
func (c *Config) LockoutWindowDuration() time.Duration {
	d, err := time.ParseDuration(c.LockoutWindow)
	if err != nil || d <= 0 {
		return 15 * time.Minute
	}
	return d
}

// RateGeneralWindowDuration parses RateGeneralWindow. Returns 15m if unset or invalid.
func (c *Config) RateGeneralWindowDuration() time.Duration {
	return durationOr(c.RateGeneralWindow, 15*time.Minute)
}

// RateReadOnlyWindowDuration parses RateReadOnlyWindow. Returns 15m if unset or invalid.
func (c *Config) RateReadOnlyWindowDuration() time.Duration {
	return durationOr(c.RateReadOnlyWindow, 15*time.Minute)
}

// RateLoginWindowDuration parses RateLoginWindow. Returns 15m if unset or invalid.
func (c *Config) RateLoginWindowDuration() time.Duration {
	return durationOr(c.RateLoginWindow, 15*time.Minute)
}

// RateUploadWindowDuration parses RateUploadWindow. Returns 1h if unset or invalid.
func (c *Config) RateUploadWindowDuration() time.Duration {
	return durationOr(c.RateUploadWindow, time.Hour)
}

func durationOr(s string, fallback time.Duration) time.Duration {
	d, err := time.ParseDuration(s)
	if err != nil || d <= 0 {
		return fallback
	}
	return d
}

// KafkaBrokersList returns broker addresses from the comma-separated config.
// Used to decide if event emission is enabled (non-empty list).
func (c *Config) KafkaBrokersList() []string {
	return splitCSV(c.KafkaBrokers)
}

// TrustedCIDRsList returns the configured CIDR allow-list entries.
func (c *Config) TrustedCIDRsList() []string {
	return splitCSV(c.RateTrustedCIDRs)
}

func splitCSV(s string) []string {
	if s == "" {
		return nil
	}
	parts := strings.Split(s, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if v := strings.TrimSpace(p); v != "" {
			out = append(out, v)
		}
	}
	return out
}
