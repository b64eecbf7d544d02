package config

import (
	"strings"
	"testing"
	"time"
)

func setBaseEnv(t *testing.T) {
	t.Helper()
	t.Setenv("APP_ENV", "test")
	t.Setenv("DATABASE_URL", "file:config_test?mode=memory&cache=shared")
	t.Setenv("SESSION_SIGNING_KEY", "abcdefghijklmnopqrstuvwxyz123456")
}

func TestLoadDefaults(t *testing.T) {
	setBaseEnv(t)

	cfg, err := Load()
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.RateLimitWindowSize != 50 || cfg.RateLimitThreshold != 20 || cfg.RateLimitInterval != 10*time.Second {
		t.Fatalf("unexpected rate limit defaults: size=%d threshold=%d interval=%s", cfg.RateLimitWindowSize, cfg.RateLimitThreshold, cfg.RateLimitInterval)
	}
	if cfg.SessionSigningAlg != "HS256" {
		t.Fatalf("expected HS256 default, got %q", cfg.SessionSigningAlg)
	}
	if cfg.RateLimitBackend != RateLimitBackendLocal || cfg.RateLimitFailureMode != FailureModeOpen {
		t.Fatalf("unexpected backend defaults: %q %q", cfg.RateLimitBackend, cfg.RateLimitFailureMode)
	}
	if cfg.MetricsPrometheusEnabled {
		t.Fatal("prometheus endpoint must be opt-in")
	}
	if cfg.IsProduction() {
		t.Fatal("test profile must not be production")
	}
}

func TestLoadNormalizesAdminEmail(t *testing.T) {
	setBaseEnv(t)
	t.Setenv("AUTH_ADMIN_EMAIL", "  Admin@Example.COM ")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.AuthAdminEmail != "admin@example.com" {
		t.Fatalf("expected normalized admin email, got %q", cfg.AuthAdminEmail)
	}
}

func TestLoadParseError(t *testing.T) {
	setBaseEnv(t)
	t.Setenv("RATE_LIMIT_INTERVAL", "ten seconds")

	_, err := Load()
	if err == nil {
		t.Fatal("expected parse error")
	}
	if got := classifyConfigLoadError(err); got != "parse" {
		t.Fatalf("expected parse classification, got %q (%v)", got, err)
	}
}

func TestValidateCollectsAllErrors(t *testing.T) {
	cfg := &Config{
		SessionSigningAlg:    "HS256",
		RateLimitWindowSize:  10,
		RateLimitThreshold:   20,
		RateLimitInterval:    time.Second,
		RateLimitBackend:     RateLimitBackendRedis,
		RateLimitFailureMode: "sometimes",
		RoleCacheBackend:     "memory",
	}
	err := cfg.Validate()
	if err == nil {
		t.Fatal("expected validation error")
	}
	msg := err.Error()
	for _, want := range []string{
		"DATABASE_URL is required",
		"SESSION_SIGNING_KEY is required",
		"RATE_LIMIT_THRESHOLD",
		"REDIS_ADDR is required",
		"RATE_LIMIT_FAILURE_MODE",
	} {
		if !strings.Contains(msg, want) {
			t.Fatalf("expected %q in %q", want, msg)
		}
	}
	if classifyConfigLoadError(err) != "validation" {
		t.Fatalf("expected validation classification for %q", msg)
	}
}

func TestProductionRequiresSecureCookies(t *testing.T) {
	setBaseEnv(t)
	t.Setenv("APP_ENV", "production")
	t.Setenv("COOKIE_SECURE", "false")

	if _, err := Load(); err == nil || !strings.Contains(err.Error(), "COOKIE_SECURE") {
		t.Fatalf("expected cookie validation error, got %v", err)
	}
}

func TestSplitCSV(t *testing.T) {
	got := splitCSV(" identify, ,email ,")
	if len(got) != 2 || got[0] != "identify" || got[1] != "email" {
		t.Fatalf("unexpected split: %v", got)
	}
}
