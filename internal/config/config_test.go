package config

import (
	"os"
	"testing"
	"time"
)

const testSecret = "0123456789abcdef0123456789abcdef"

func setBaseEnv(t *testing.T) {
	t.Helper()
	os.Clearenv()
	os.Setenv("HTTP_ADDR", ":8080")
	os.Setenv("JWT_SECRET", testSecret)
}

func TestLoad_Defaults(t *testing.T) {
	setBaseEnv(t)

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.HTTPAddr != ":8080" {
		t.Errorf("HTTPAddr = %q, want %q", cfg.HTTPAddr, ":8080")
	}
	if cfg.JWTIssuer != "sessiongate-auth" {
		t.Errorf("JWTIssuer = %q, want %q", cfg.JWTIssuer, "sessiongate-auth")
	}
	if cfg.JWTAudience != "sessiongate-api" {
		t.Errorf("JWTAudience = %q, want %q", cfg.JWTAudience, "sessiongate-api")
	}
	if cfg.BcryptCost != 12 {
		t.Errorf("BcryptCost = %d, want 12", cfg.BcryptCost)
	}
	if cfg.RevocationFailMode != "fail_open" {
		t.Errorf("RevocationFailMode = %q, want fail_open", cfg.RevocationFailMode)
	}
	if !cfg.RateLimitFailOpen {
		t.Error("RateLimitFailOpen should default to true")
	}
	if cfg.LockoutThreshold != 5 {
		t.Errorf("LockoutThreshold = %d, want 5", cfg.LockoutThreshold)
	}
	if cfg.SkipLivenessCheck {
		t.Error("SkipLivenessCheck should default to false")
	}
	if cfg.RotateRevokesPrior {
		t.Error("RotateRevokesPrior should default to false")
	}
	if cfg.RevokeOnPasswordChange {
		t.Error("RevokeOnPasswordChange should default to false")
	}
}

func TestLoad_EnvVarOverride(t *testing.T) {
	setBaseEnv(t)
	os.Setenv("HTTP_ADDR", ":9090")
	os.Setenv("JWT_ISSUER", "custom-issuer")
	os.Setenv("BCRYPT_COST", "14")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.HTTPAddr != ":9090" {
		t.Errorf("HTTPAddr = %q, want %q", cfg.HTTPAddr, ":9090")
	}
	if cfg.JWTIssuer != "custom-issuer" {
		t.Errorf("JWTIssuer = %q, want %q", cfg.JWTIssuer, "custom-issuer")
	}
	if cfg.BcryptCost != 14 {
		t.Errorf("BcryptCost = %d, want 14", cfg.BcryptCost)
	}
}

func TestLoad_KeyMaterialRequired(t *testing.T) {
	os.Clearenv()
	os.Setenv("HTTP_ADDR", ":8080")

	if _, err := Load(); err == nil {
		t.Fatal("Load should fail without JWT_SECRET or key pair")
	}
}

func TestLoad_KeyMaterialMutuallyExclusive(t *testing.T) {
	setBaseEnv(t)
	os.Setenv("JWT_PRIVATE_KEY", "key.pem")
	os.Setenv("JWT_PUBLIC_KEY", "key.pub")

	if _, err := Load(); err == nil {
		t.Fatal("Load should fail with both JWT_SECRET and a key pair")
	}
}

func TestLoad_KeyPairOnly(t *testing.T) {
	os.Clearenv()
	os.Setenv("HTTP_ADDR", ":8080")
	os.Setenv("JWT_PRIVATE_KEY", "key.pem")
	os.Setenv("JWT_PUBLIC_KEY", "key.pub")

	if _, err := Load(); err != nil {
		t.Fatalf("Load with key pair: %v", err)
	}
}

func TestLoad_SkipLivenessCheckProduction(t *testing.T) {
	setBaseEnv(t)
	os.Setenv("SKIP_LIVENESS_CHECK", "true")
	os.Setenv("APP_ENV", "production")

	if _, err := Load(); err == nil {
		t.Fatal("Load should fail with SKIP_LIVENESS_CHECK=true in production")
	}
}

func TestLoad_SkipLivenessCheckDevelopment(t *testing.T) {
	setBaseEnv(t)
	os.Setenv("SKIP_LIVENESS_CHECK", "true")
	os.Setenv("APP_ENV", "development")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if !cfg.SkipLivenessCheck {
		t.Error("SkipLivenessCheck should be true")
	}
}

func TestLoad_RevocationFailModeValidated(t *testing.T) {
	setBaseEnv(t)
	os.Setenv("REVOCATION_FAIL_MODE", "explode")

	if _, err := Load(); err == nil {
		t.Fatal("Load should reject unknown REVOCATION_FAIL_MODE")
	}
}

func TestLoad_BcryptCostRange(t *testing.T) {
	testCases := []struct {
		name  string
		value string
		want  int
		err   bool
	}{
		{"valid min", "4", 4, false},
		{"valid max", "31", 31, false},
		{"too low", "3", 0, true},
		{"too high", "32", 0, true},
		{"zero defaults", "0", 12, false},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			setBaseEnv(t)
			os.Setenv("BCRYPT_COST", tc.value)

			cfg, err := Load()
			if tc.err {
				if err == nil {
					t.Fatal("Load should return error")
				}
				return
			}
			if err != nil {
				t.Fatalf("Load: %v", err)
			}
			if cfg.BcryptCost != tc.want {
				t.Errorf("BcryptCost = %d, want %d", cfg.BcryptCost, tc.want)
			}
		})
	}
}

func TestAccessTTL(t *testing.T) {
	setBaseEnv(t)
	os.Setenv("JWT_ACCESS_TTL", "30m")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if got := cfg.AccessTTL(); got != 30*time.Minute {
		t.Errorf("AccessTTL = %v, want %v", got, 30*time.Minute)
	}
}

func TestAccessTTL_InvalidFallsBack(t *testing.T) {
	setBaseEnv(t)
	os.Setenv("JWT_ACCESS_TTL", "invalid")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if got := cfg.AccessTTL(); got != 15*time.Minute {
		t.Errorf("AccessTTL = %v, want %v (default)", got, 15*time.Minute)
	}
}

func TestRefreshTTL_InvalidFallsBack(t *testing.T) {
	setBaseEnv(t)
	os.Setenv("JWT_REFRESH_TTL", "-1h")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if got := cfg.RefreshTTL(); got != 168*time.Hour {
		t.Errorf("RefreshTTL = %v, want %v (default)", got, 168*time.Hour)
	}
}

func TestKafkaBrokersList(t *testing.T) {
	setBaseEnv(t)
	os.Setenv("KAFKA_BROKERS", "localhost:9092, broker2:9092 ,")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	got := cfg.KafkaBrokersList()
	if len(got) != 2 || got[0] != "localhost:9092" || got[1] != "broker2:9092" {
		t.Errorf("KafkaBrokersList = %v", got)
	}
}

func TestTrustedCIDRsList_Empty(t *testing.T) {
	setBaseEnv(t)

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if got := cfg.TrustedCIDRsList(); got != nil {
		t.Errorf("TrustedCIDRsList = %v, want nil", got)
	}
}

func TestLoad_RateTierDefaults(t *testing.T) {
	setBaseEnv(t)

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.RateGeneralLimit != 100 || cfg.RateGeneralWindowDuration() != 15*time.Minute {
		t.Errorf("general tier = %d/%v, want 100/15m", cfg.RateGeneralLimit, cfg.RateGeneralWindowDuration())
	}
	if cfg.RateReadOnlyLimit != 300 || cfg.RateReadOnlyWindowDuration() != 15*time.Minute {
		t.Errorf("readonly tier = %d/%v, want 300/15m", cfg.RateReadOnlyLimit, cfg.RateReadOnlyWindowDuration())
	}
	if cfg.RateLoginLimit != 5 || cfg.RateLoginWindowDuration() != 15*time.Minute {
		t.Errorf("login tier = %d/%v, want 5/15m", cfg.RateLoginLimit, cfg.RateLoginWindowDuration())
	}
	if cfg.RateUploadLimit != 20 || cfg.RateUploadWindowDuration() != time.Hour {
		t.Errorf("upload tier = %d/%v, want 20/1h", cfg.RateUploadLimit, cfg.RateUploadWindowDuration())
	}
	if cfg.RateAdminMultiplier != 5 || cfg.RatePremiumMultiplier != 2 {
		t.Errorf("multipliers = %d/%d, want 5/2", cfg.RateAdminMultiplier, cfg.RatePremiumMultiplier)
	}
}

func TestLoad_RateTierOverrides(t *testing.T) {
	setBaseEnv(t)
	os.Setenv("RATE_GENERAL_LIMIT", "50")
	os.Setenv("RATE_GENERAL_WINDOW", "5m")
	os.Setenv("RATE_LOGIN_LIMIT", "10")
	os.Setenv("RATE_LOGIN_WINDOW", "1m")
	os.Setenv("RATE_UPLOAD_LIMIT", "3")
	os.Setenv("RATE_UPLOAD_WINDOW", "30m")
	os.Setenv("RATE_ADMIN_MULTIPLIER", "10")
	os.Setenv("RATE_PREMIUM_MULTIPLIER", "4")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.RateGeneralLimit != 50 || cfg.RateGeneralWindowDuration() != 5*time.Minute {
		t.Errorf("general tier = %d/%v, want 50/5m", cfg.RateGeneralLimit, cfg.RateGeneralWindowDuration())
	}
	if cfg.RateLoginLimit != 10 || cfg.RateLoginWindowDuration() != time.Minute {
		t.Errorf("login tier = %d/%v, want 10/1m", cfg.RateLoginLimit, cfg.RateLoginWindowDuration())
	}
	if cfg.RateUploadLimit != 3 || cfg.RateUploadWindowDuration() != 30*time.Minute {
		t.Errorf("upload tier = %d/%v, want 3/30m", cfg.RateUploadLimit, cfg.RateUploadWindowDuration())
	}
	if cfg.RateAdminMultiplier != 10 || cfg.RatePremiumMultiplier != 4 {
		t.Errorf("multipliers = %d/%d, want 10/4", cfg.RateAdminMultiplier, cfg.RatePremiumMultiplier)
	}
}

func TestLoad_RateTierValidation(t *testing.T) {
	testCases := []struct {
		name  string
		key   string
		value string
	}{
		{"zero general limit", "RATE_GENERAL_LIMIT", "0"},
		{"negative login limit", "RATE_LOGIN_LIMIT", "-1"},
		{"zero upload limit", "RATE_UPLOAD_LIMIT", "0"},
		{"zero admin multiplier", "RATE_ADMIN_MULTIPLIER", "0"},
		{"zero premium multiplier", "RATE_PREMIUM_MULTIPLIER", "0"},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			setBaseEnv(t)
			os.Setenv(tc.key, tc.value)

			if _, err := Load(); err == nil {
				t.Fatalf("Load should reject %s=%s", tc.key, tc.value)
			}
		})
	}
}

func TestRateWindowDuration_InvalidFallsBack(t *testing.T) {
	setBaseEnv(t)
	os.Setenv("RATE_GENERAL_WINDOW", "invalid")
	os.Setenv("RATE_UPLOAD_WINDOW", "-5m")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if got := cfg.RateGeneralWindowDuration(); got != 15*time.Minute {
		t.Errorf("RateGeneralWindowDuration = %v, want %v (default)", got, 15*time.Minute)
	}
	if got := cfg.RateUploadWindowDuration(); got != time.Hour {
		t.Errorf("RateUploadWindowDuration = %v, want %v (default)", got, time.Hour)
	}
}

func TestLockoutWindowDuration(t *testing.T) {
	setBaseEnv(t)
	os.Setenv("LOCKOUT_WINDOW", "30m")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if got := cfg.LockoutWindowDuration(); got != 30*time.Minute {
		t.Errorf("LockoutWindowDuration = %v, want %v", got, 30*time.Minute)
	}
}
