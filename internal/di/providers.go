package di

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/google/wire"
	"github.com/redis/go-redis/v9"
	sdklog "go.opentelemetry.io/otel/sdk/log"
	"gorm.io/gorm"

	"github.com/sandeepkv93/session-guard/internal/app"
	"github.com/sandeepkv93/session-guard/internal/config"
	"github.com/sandeepkv93/session-guard/internal/database"
	"github.com/sandeepkv93/session-guard/internal/http/handler"
	"github.com/sandeepkv93/session-guard/internal/http/router"
	"github.com/sandeepkv93/session-guard/internal/observability"
	"github.com/sandeepkv93/session-guard/internal/ratelimit"
	"github.com/sandeepkv93/session-guard/internal/repository"
	"github.com/sandeepkv93/session-guard/internal/security"
	"github.com/sandeepkv93/session-guard/internal/service"
	"github.com/sandeepkv93/session-guard/internal/session"
)

var ConfigSet = wire.NewSet(config.Load)

var ObservabilitySet = wire.NewSet(
	provideLogging,
	provideLogger,
	provideObservabilityRuntime,
)

var RuntimeInfraSet = wire.NewSet(
	provideOpenDB,
	provideRedisClient,
)

var RepositorySet = wire.NewSet(
	repository.NewSessionRepository,
	repository.NewUserRepository,
	repository.NewRoleRepository,
)

var SecuritySet = wire.NewSet(
	provideTokenCodec,
	provideCookieManager,
	provideIDGenerator,
	wire.Bind(new(service.TokenIssuer), new(*security.TokenCodec)),
	wire.Bind(new(service.TokenDecoder), new(*security.TokenCodec)),
)

var ServiceSet = wire.NewSet(
	provideRoleCacheStore,
	provideRoleResolver,
	wire.Bind(new(service.RoleResolver), new(*service.CachedRoleResolver)),
	wire.Bind(new(service.RoleWriter), new(*service.CachedRoleResolver)),
	provideGuard,
	service.NewSessionResolver,
	service.NewSessionService,
	provideUserService,
	provideIdentityProvider,
	service.NewOAuthService,
	provideRateLimiter,
)

var HTTPSet = wire.NewSet(
	handler.NewAuthHandler,
	handler.NewSessionHandler,
	provideAdminHandler,
	provideRouterDependencies,
	router.NewRouter,
	provideHTTPServer,
)

var AppSet = wire.NewSet(app.New)

// logging carries the slog logger together with the OTel log provider backing it,
// so the provider can be shut down with the rest of the runtime.
type logging struct {
	logger   *slog.Logger
	provider *sdklog.LoggerProvider
}

func provideLogging(cfg *config.Config) (*logging, error) {
	logger, lp, err := observability.NewLogger(context.Background(), cfg)
	if err != nil {
		return nil, err
	}
	slog.SetDefault(logger)
	return &logging{logger: logger, provider: lp}, nil
}

func provideLogger(l *logging) *slog.Logger {
	return l.logger
}

func provideObservabilityRuntime(cfg *config.Config, l *logging) (*observability.Runtime, error) {
	return observability.InitRuntime(context.Background(), cfg, l.logger, l.provider)
}

func provideOpenDB(cfg *config.Config) (*gorm.DB, error) {
	return database.Open(cfg)
}

// provideRedisClient returns nil when no Redis address is configured; every Redis
// consumer treats a nil client as "backend not in use".
func provideRedisClient(cfg *config.Config) (redis.UniversalClient, error) {
	if cfg.RedisAddr == "" {
		return nil, nil
	}
	client := redis.NewClient(&redis.Options{Addr: cfg.RedisAddr})
	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("ping redis: %w", err)
	}
	return client, nil
}

func provideTokenCodec(cfg *config.Config) (*security.TokenCodec, error) {
	return security.NewTokenCodec(cfg.SessionSigningAlg, cfg.SessionSigningKey, cfg.SessionVerifyKey)
}

func provideCookieManager(cfg *config.Config) *security.CookieManager {
	return security.NewCookieManager(cfg.CookieDomain, cfg.CookieSecure, cfg.CookieSameSite)
}

func provideIDGenerator(cfg *config.Config) *session.IDGenerator {
	if cfg.IsProduction() {
		return session.NewIDGenerator(session.IDModeProduction)
	}
	return session.NewIDGenerator(session.IDModeDevelopment)
}

func provideRoleCacheStore(cfg *config.Config, rdb redis.UniversalClient) service.RoleCacheStore {
	switch cfg.RoleCacheBackend {
	case "redis":
		if rdb != nil {
			return service.NewRedisRoleCacheStore(rdb, "role_cache")
		}
	case "none":
		return service.NewNoopRoleCacheStore()
	}
	return service.NewInMemoryRoleCacheStore()
}

func provideRoleResolver(cfg *config.Config, store service.RoleCacheStore, roles repository.RoleRepository) *service.CachedRoleResolver {
	return service.NewCachedRoleResolver(store, roles, cfg.RoleCacheTTL)
}

func provideGuard(cfg *config.Config, roles service.RoleResolver) *service.Guard {
	return service.NewGuard(roles, cfg.AuthAdminEmail)
}

func provideUserService(cfg *config.Config, users repository.UserRepository, roles service.RoleWriter) *service.UserService {
	return service.NewUserService(users, roles, cfg.BcryptCost)
}

// provideIdentityProvider leaves OAuth login disabled unless every endpoint is
// configured.
func provideIdentityProvider(cfg *config.Config) service.IdentityProvider {
	if !cfg.OAuthEnabled() {
		return nil
	}
	return service.NewOAuth2Provider(
		"oauth2",
		cfg.OAuthClientID,
		cfg.OAuthClientSecret,
		cfg.OAuthAuthURL,
		cfg.OAuthTokenURL,
		cfg.OAuthUserInfoURL,
		cfg.OAuthRedirectURL,
		cfg.OAuthScopes,
	)
}

func provideRateLimiter(cfg *config.Config, rdb redis.UniversalClient) (*ratelimit.Limiter, error) {
	policy := ratelimit.Policy{
		WindowSize: cfg.RateLimitWindowSize,
		Threshold:  cfg.RateLimitThreshold,
		Interval:   cfg.RateLimitInterval,
	}
	mode := ratelimit.ParseFailureMode(cfg.RateLimitFailureMode)
	switch cfg.RateLimitBackend {
	case config.RateLimitBackendRedis:
		if rdb == nil {
			return nil, errors.New("redis rate limit backend requires REDIS_ADDR")
		}
		return ratelimit.NewLimiter(ratelimit.NewRedisTracker(rdb, "rl", policy), policy, mode, config.RateLimitBackendRedis), nil
	default:
		return ratelimit.NewLimiter(ratelimit.NewLocalTracker(policy), policy, mode, config.RateLimitBackendLocal), nil
	}
}

func provideAdminHandler(users *service.UserService, sessions *service.SessionService, cookies *security.CookieManager, db *gorm.DB) *handler.AdminHandler {
	migrate := func(ctx context.Context) error {
		return database.Migrate(db.WithContext(ctx))
	}
	return handler.NewAdminHandler(users, sessions, cookies, migrate)
}

func provideRouterDependencies(
	authHandler *handler.AuthHandler,
	sessionHandler *handler.SessionHandler,
	adminHandler *handler.AdminHandler,
	resolver *service.SessionResolver,
	guard *service.Guard,
	limiter *ratelimit.Limiter,
	db *gorm.DB,
	rdb redis.UniversalClient,
	rt *observability.Runtime,
	cfg *config.Config,
) router.Dependencies {
	dep := router.Dependencies{
		AuthHandler:       authHandler,
		SessionHandler:    sessionHandler,
		AdminHandler:      adminHandler,
		Guard:             guard,
		RateLimitInterval: cfg.RateLimitInterval,
		Readiness:         readinessProbe(db, rdb),
		EnableOTelHTTP:    cfg.OTELTracingEnabled || cfg.OTELMetricsEnabled,
	}
	if resolver != nil {
		dep.SessionResolver = resolver
	}
	if limiter != nil {
		dep.RateLimiter = limiter
	}
	if rt != nil && rt.MetricsHandler != nil {
		dep.MetricsHandler = rt.MetricsHandler
	}
	return dep
}

func readinessProbe(db *gorm.DB, rdb redis.UniversalClient) router.ReadinessFunc {
	return func(ctx context.Context) error {
		if db != nil {
			sqlDB, err := db.DB()
			if err != nil {
				return err
			}
			if err := sqlDB.PingContext(ctx); err != nil {
				return fmt.Errorf("database: %w", err)
			}
		}
		if rdb != nil {
			if err := rdb.Ping(ctx).Err(); err != nil {
				return fmt.Errorf("redis: %w", err)
			}
		}
		return nil
	}
}

func provideHTTPServer(cfg *config.Config, h http.Handler) *http.Server {
	return &http.Server{
		Addr:              ":" + cfg.HTTPPort,
		Handler:           h,
		ReadTimeout:       10 * time.Second,
		ReadHeaderTimeout: 5 * time.Second,
		WriteTimeout:      15 * time.Second,
		IdleTimeout:       60 * time.Second,
	}
}

// MigrationRunner applies the schema without starting the server.
type MigrationRunner struct {
	db *gorm.DB
}

func NewMigrationRunner(db *gorm.DB) *MigrationRunner {
	return &MigrationRunner{db: db}
}

func (m *MigrationRunner) Run(ctx context.Context) error {
	return database.Migrate(m.db.WithContext(ctx))
}
