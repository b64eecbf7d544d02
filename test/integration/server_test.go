package integration

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/cookiejar"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/sandeepkv93/session-guard/internal/database"
	"github.com/sandeepkv93/session-guard/internal/http/handler"
	"github.com/sandeepkv93/session-guard/internal/http/router"
	"github.com/sandeepkv93/session-guard/internal/ratelimit"
	"github.com/sandeepkv93/session-guard/internal/repository"
	"github.com/sandeepkv93/session-guard/internal/security"
	"github.com/sandeepkv93/session-guard/internal/service"
	"github.com/sandeepkv93/session-guard/internal/session"
)

const testAdminEmail = "root@example.com"

type serverOptions struct {
	redis    redis.UniversalClient
	provider func(baseURL string) service.IdentityProvider
}

type testServer struct {
	URL      string
	db       *gorm.DB
	codec    *security.TokenCodec
	users    *service.UserService
	sessions repository.SessionRepository
}

func newTestServer(t *testing.T, opts serverOptions) *testServer {
	t.Helper()
	dsn := fmt.Sprintf("file:it_%s?mode=memory&cache=shared", strings.ReplaceAll(t.Name(), "/", "_"))
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{Logger: logger.Default.LogMode(logger.Silent)})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	if err := database.Migrate(db); err != nil {
		t.Fatalf("migrate: %v", err)
	}

	codec, err := security.NewTokenCodec("HS256", "integration-signing-key-0123456789abcdef", "")
	if err != nil {
		t.Fatalf("codec: %v", err)
	}

	policy := ratelimit.Policy{WindowSize: 50, Threshold: 20, Interval: 10 * time.Second}
	var (
		cacheStore service.RoleCacheStore = service.NewInMemoryRoleCacheStore()
		tracker    ratelimit.Tracker      = ratelimit.NewLocalTracker(policy)
		backend                           = "local"
	)
	if opts.redis != nil {
		cacheStore = service.NewRedisRoleCacheStore(opts.redis, "it_role_cache")
		tracker = ratelimit.NewRedisTracker(opts.redis, "it_rl", policy)
		backend = "redis"
	}

	sessionRepo := repository.NewSessionRepository(db)
	roles := service.NewCachedRoleResolver(cacheStore, repository.NewRoleRepository(db), time.Minute)
	users := service.NewUserService(repository.NewUserRepository(db), roles, bcrypt.MinCost)
	sessions := service.NewSessionService(sessionRepo, session.NewIDGenerator(session.IDModeProduction), codec, roles)
	cookies := security.NewCookieManager("", false, "lax")

	dep := router.Dependencies{
		SessionHandler:    handler.NewSessionHandler(sessions),
		AdminHandler:      handler.NewAdminHandler(users, sessions, cookies, func(ctx context.Context) error { return database.Migrate(db.WithContext(ctx)) }),
		SessionResolver:   service.NewSessionResolver(codec, sessionRepo),
		Guard:             service.NewGuard(roles, testAdminEmail),
		RateLimiter:       ratelimit.NewLimiter(tracker, policy, ratelimit.FailOpen, backend),
		RateLimitInterval: policy.Interval,
		Readiness: func(ctx context.Context) error {
			sqlDB, err := db.DB()
			if err != nil {
				return err
			}
			return sqlDB.PingContext(ctx)
		},
	}

	mux := http.NewServeMux()
	srv := httptest.NewServer(mux)
	var provider service.IdentityProvider
	if opts.provider != nil {
		provider = opts.provider(srv.URL)
	}
	dep.AuthHandler = handler.NewAuthHandler(users, sessions, service.NewOAuthService(provider, users, sessions), cookies)
	mux.Handle("/", router.NewRouter(dep))

	t.Cleanup(func() {
		srv.Close()
		if sqlDB, err := db.DB(); err == nil {
			_ = sqlDB.Close()
		}
	})
	return &testServer{URL: srv.URL, db: db, codec: codec, users: users, sessions: sessionRepo}
}

// newClient keeps cookies and never follows redirects so tests can inspect them.
func newClient(t *testing.T) *http.Client {
	t.Helper()
	jar, err := cookiejar.New(nil)
	if err != nil {
		t.Fatalf("cookie jar: %v", err)
	}
	return &http.Client{
		Jar:     jar,
		Timeout: 5 * time.Second,
		CheckRedirect: func(*http.Request, []*http.Request) error {
			return http.ErrUseLastResponse
		},
	}
}

type apiEnvelope struct {
	Success bool            `json:"success"`
	Data    json.RawMessage `json:"data"`
	Error   *struct {
		Code    string `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
}

func doJSON(t *testing.T, client *http.Client, method, url, bearer string, body any) (*http.Response, apiEnvelope) {
	t.Helper()
	var reader io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		if err != nil {
			t.Fatalf("marshal body: %v", err)
		}
		reader = strings.NewReader(string(raw))
	}
	req, err := http.NewRequest(method, url, reader)
	if err != nil {
		t.Fatalf("new request: %v", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if bearer != "" {
		req.Header.Set("Authorization", "Bearer "+bearer)
	}
	resp, err := client.Do(req)
	if err != nil {
		t.Fatalf("%s %s: %v", method, url, err)
	}
	defer resp.Body.Close()
	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		t.Fatalf("read body: %v", err)
	}
	var env apiEnvelope
	if len(raw) > 0 && strings.HasPrefix(resp.Header.Get("Content-Type"), "application/json") {
		if err := json.Unmarshal(raw, &env); err != nil {
			t.Fatalf("decode %s: %v", string(raw), err)
		}
	}
	return resp, env
}

func decodeData[T any](t *testing.T, env apiEnvelope) T {
	t.Helper()
	var out T
	if err := json.Unmarshal(env.Data, &out); err != nil {
		t.Fatalf("decode data %s: %v", string(env.Data), err)
	}
	return out
}

type loginData struct {
	Token   string              `json:"token"`
	Session service.SessionView `json:"session"`
}

func (s *testServer) register(t *testing.T, client *http.Client, username string) int64 {
	t.Helper()
	resp, env := doJSON(t, client, http.MethodPost, s.URL+"/api/v1/auth/register", "", map[string]string{
		"username": username,
		"password": "s3cret-pass",
		"email":    username + "@example.com",
	})
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("register %s: expected 201, got %d", username, resp.StatusCode)
	}
	return decodeData[struct {
		ID int64 `json:"id"`
	}](t, env).ID
}

func (s *testServer) login(t *testing.T, client *http.Client, username string) loginData {
	t.Helper()
	resp, env := doJSON(t, client, http.MethodPost, s.URL+"/api/v1/auth/login", "", map[string]string{
		"username": username,
		"password": "s3cret-pass",
	})
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("login %s: expected 200, got %d", username, resp.StatusCode)
	}
	return decodeData[loginData](t, env)
}
