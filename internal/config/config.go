package config

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

const (
	RateLimitBackendLocal = "local"
	RateLimitBackendRedis = "redis"

	FailureModeOpen   = "fail_open"
	FailureModeClosed = "fail_closed"
)

type Config struct {
	Env      string
	HTTPPort string

	DatabaseURL string
	RedisAddr   string

	SessionSigningAlg string
	SessionSigningKey string
	SessionVerifyKey  string
	AuthAdminEmail    string

	CookieDomain   string
	CookieSecure   bool
	CookieSameSite string
	BcryptCost     int

	RateLimitWindowSize  int
	RateLimitThreshold   int
	RateLimitInterval    time.Duration
	RateLimitBackend     string
	RateLimitFailureMode string

	RoleCacheTTL     time.Duration
	RoleCacheBackend string

	OAuthClientID     string
	OAuthClientSecret string
	OAuthAuthURL      string
	OAuthTokenURL     string
	OAuthUserInfoURL  string
	OAuthRedirectURL  string
	OAuthScopes       []string

	LogLevel        string
	ShutdownTimeout time.Duration

	OTELServiceName           string
	OTELEnvironment           string
	OTELExporterOTLPEndpoint  string
	OTELExporterOTLPInsecure  bool
	OTELMetricsEnabled        bool
	MetricsPrometheusEnabled  bool
	OTELTracingEnabled        bool
	OTELLogsEnabled           bool
	OTELMetricsExportInterval time.Duration
	OTELTraceSamplingRatio    float64
}

// Load reads configuration from the environment. A .env file in the working
// directory is applied first; variables already set in the environment win.
func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("load .env: %w", err)
	}
	cfg, err := load()
	profile := getEnv("APP_ENV", "development")
	if err != nil {
		recordConfigValidationEvent(context.Background(), profile, "failure", classifyConfigLoadError(err))
		return nil, err
	}
	recordConfigValidationEvent(context.Background(), profile, "success", "none")
	return cfg, nil
}

func load() (*Config, error) {
	cfg := &Config{
		Env:                      strings.ToLower(getEnv("APP_ENV", "development")),
		HTTPPort:                 getEnv("HTTP_PORT", "8080"),
		DatabaseURL:              getEnv("DATABASE_URL", "file:session_guard.db?cache=shared"),
		RedisAddr:                os.Getenv("REDIS_ADDR"),
		SessionSigningAlg:        strings.ToUpper(getEnv("SESSION_SIGNING_ALG", "HS256")),
		SessionSigningKey:        os.Getenv("SESSION_SIGNING_KEY"),
		SessionVerifyKey:         os.Getenv("SESSION_VERIFY_KEY"),
		AuthAdminEmail:           strings.TrimSpace(strings.ToLower(os.Getenv("AUTH_ADMIN_EMAIL"))),
		CookieDomain:             os.Getenv("COOKIE_DOMAIN"),
		CookieSecure:             getEnvBool("COOKIE_SECURE", true),
		CookieSameSite:           strings.ToLower(getEnv("COOKIE_SAMESITE", "lax")),
		BcryptCost:               getEnvInt("BCRYPT_COST", 12),
		RateLimitWindowSize:      getEnvInt("RATE_LIMIT_WINDOW_SIZE", 50),
		RateLimitThreshold:       getEnvInt("RATE_LIMIT_THRESHOLD", 20),
		RateLimitBackend:         strings.ToLower(getEnv("RATE_LIMIT_BACKEND", RateLimitBackendLocal)),
		RateLimitFailureMode:     strings.ToLower(getEnv("RATE_LIMIT_FAILURE_MODE", FailureModeOpen)),
		RoleCacheBackend:         strings.ToLower(getEnv("ROLE_CACHE_BACKEND", "memory")),
		OAuthClientID:            os.Getenv("OAUTH_CLIENT_ID"),
		OAuthClientSecret:        os.Getenv("OAUTH_CLIENT_SECRET"),
		OAuthAuthURL:             os.Getenv("OAUTH_AUTH_URL"),
		OAuthTokenURL:            os.Getenv("OAUTH_TOKEN_URL"),
		OAuthUserInfoURL:         os.Getenv("OAUTH_USERINFO_URL"),
		OAuthRedirectURL:         getEnv("OAUTH_REDIRECT_URL", "http://localhost:8080/api/v1/auth/oauth/callback"),
		OAuthScopes:              splitCSV(getEnv("OAUTH_SCOPES", "identify,email")),
		LogLevel:                 getEnv("LOG_LEVEL", "info"),
		OTELServiceName:          getEnv("OTEL_SERVICE_NAME", "session-guard"),
		OTELEnvironment:          getEnv("OTEL_ENVIRONMENT", "development"),
		OTELExporterOTLPEndpoint: getEnv("OTEL_EXPORTER_OTLP_ENDPOINT", "localhost:4317"),
		OTELExporterOTLPInsecure: getEnvBool("OTEL_EXPORTER_OTLP_INSECURE", true),
		OTELMetricsEnabled:       getEnvBool("OTEL_METRICS_ENABLED", false),
		MetricsPrometheusEnabled: getEnvBool("METRICS_PROMETHEUS_ENABLED", false),
		OTELTracingEnabled:       getEnvBool("OTEL_TRACING_ENABLED", false),
		OTELLogsEnabled:          getEnvBool("OTEL_LOGS_ENABLED", false),
	}

	var err error
	if cfg.RateLimitInterval, err = getEnvDuration("RATE_LIMIT_INTERVAL", 10*time.Second); err != nil {
		return nil, err
	}
	if cfg.RoleCacheTTL, err = getEnvDuration("ROLE_CACHE_TTL", 30*time.Second); err != nil {
		return nil, err
	}
	if cfg.ShutdownTimeout, err = getEnvDuration("SHUTDOWN_TIMEOUT", 10*time.Second); err != nil {
		return nil, err
	}
	if cfg.OTELMetricsExportInterval, err = getEnvDuration("OTEL_METRICS_EXPORT_INTERVAL", 30*time.Second); err != nil {
		return nil, err
	}
	ratio, err := strconv.ParseFloat(getEnv("OTEL_TRACE_SAMPLING_RATIO", "1.0"), 64)
	if err != nil {
		return nil, fmt.Errorf("parse OTEL_TRACE_SAMPLING_RATIO: %w", err)
	}
	cfg.OTELTraceSamplingRatio = ratio

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// IsProduction selects packed session ids and strict validation.
func (c *Config) IsProduction() bool {
	return c.Env == "production" || c.Env == "prod"
}

func (c *Config) OAuthEnabled() bool {
	return c.OAuthClientID != "" && c.OAuthAuthURL != "" && c.OAuthTokenURL != "" && c.OAuthUserInfoURL != ""
}

func (c *Config) Validate() error {
	var errs []error
	if c.DatabaseURL == "" {
		errs = append(errs, errors.New("DATABASE_URL is required"))
	}
	if c.SessionSigningKey == "" {
		errs = append(errs, errors.New("SESSION_SIGNING_KEY is required"))
	}
	if strings.HasPrefix(c.SessionSigningAlg, "HS") && len(c.SessionSigningKey) < 32 {
		errs = append(errs, errors.New("SESSION_SIGNING_KEY must be at least 32 chars for HMAC algorithms"))
	}
	if c.RateLimitWindowSize <= 0 {
		errs = append(errs, errors.New("RATE_LIMIT_WINDOW_SIZE must be > 0"))
	}
	if c.RateLimitThreshold <= 0 || c.RateLimitThreshold >= c.RateLimitWindowSize {
		errs = append(errs, errors.New("RATE_LIMIT_THRESHOLD must be > 0 and below RATE_LIMIT_WINDOW_SIZE"))
	}
	if c.RateLimitInterval <= 0 {
		errs = append(errs, errors.New("RATE_LIMIT_INTERVAL must be > 0"))
	}
	switch c.RateLimitBackend {
	case RateLimitBackendLocal:
	case RateLimitBackendRedis:
		if c.RedisAddr == "" {
			errs = append(errs, errors.New("REDIS_ADDR is required when RATE_LIMIT_BACKEND=redis"))
		}
	default:
		errs = append(errs, fmt.Errorf("RATE_LIMIT_BACKEND must be local or redis, got %q", c.RateLimitBackend))
	}
	if c.RateLimitFailureMode != FailureModeOpen && c.RateLimitFailureMode != FailureModeClosed {
		errs = append(errs, fmt.Errorf("RATE_LIMIT_FAILURE_MODE must be fail_open or fail_closed, got %q", c.RateLimitFailureMode))
	}
	switch c.RoleCacheBackend {
	case "none", "memory":
	case "redis":
		if c.RedisAddr == "" {
			errs = append(errs, errors.New("REDIS_ADDR is required when ROLE_CACHE_BACKEND=redis"))
		}
	default:
		errs = append(errs, fmt.Errorf("ROLE_CACHE_BACKEND must be none, memory or redis, got %q", c.RoleCacheBackend))
	}
	if c.RoleCacheTTL < 0 {
		errs = append(errs, errors.New("ROLE_CACHE_TTL must be >= 0"))
	}
	if c.IsProduction() && !c.CookieSecure {
		errs = append(errs, errors.New("COOKIE_SECURE must be true in production"))
	}
	if c.OTELTraceSamplingRatio < 0 || c.OTELTraceSamplingRatio > 1 {
		errs = append(errs, errors.New("OTEL_TRACE_SAMPLING_RATIO must be within [0,1]"))
	}
	if len(errs) > 0 {
		return fmt.Errorf("validate config: %w", errors.Join(errs...))
	}
	return nil
}

func getEnv(key, def string) string {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	return v
}

func getEnvBool(key string, def bool) bool {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return def
	}
	return b
}

func getEnvInt(key string, def int) int {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return def
	}
	return n
}

func getEnvDuration(key string, def time.Duration) (time.Duration, error) {
	v := os.Getenv(key)
	if v == "" {
		return def, nil
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return 0, fmt.Errorf("parse %s: %w", key, err)
	}
	return d, nil
}

func splitCSV(v string) []string {
	parts := strings.Split(v, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		trim := strings.TrimSpace(p)
		if trim != "" {
			out = append(out, trim)
		}
	}
	return out
}
