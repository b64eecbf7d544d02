package router

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"github.com/sandeepkv93/session-guard/internal/http/handler"
	"github.com/sandeepkv93/session-guard/internal/http/middleware"
	"github.com/sandeepkv93/session-guard/internal/http/response"
	"github.com/sandeepkv93/session-guard/internal/service"
)

type Dependencies struct {
	AuthHandler       *handler.AuthHandler
	SessionHandler    *handler.SessionHandler
	AdminHandler      *handler.AdminHandler
	SessionResolver   middleware.SessionResolver
	Guard             *service.Guard
	RateLimiter       middleware.RequestLimiter
	RateLimitInterval time.Duration
	Readiness         ReadinessFunc
	MetricsHandler    http.Handler
	EnableOTelHTTP    bool
}

// ReadinessFunc reports whether backing stores are reachable.
type ReadinessFunc func(ctx context.Context) error

func NewRouter(dep Dependencies) http.Handler {
	r := chi.NewRouter()
	r.Use(chimiddleware.RequestID)
	r.Use(chimiddleware.RealIP)
	r.Use(chimiddleware.Recoverer)

	r.Get("/health/live", func(w http.ResponseWriter, r *http.Request) {
		response.JSON(w, r, http.StatusOK, map[string]string{"status": "ok"})
	})
	r.Get("/health/ready", func(w http.ResponseWriter, r *http.Request) {
		if dep.Readiness == nil {
			response.JSON(w, r, http.StatusOK, map[string]string{"status": "ready"})
			return
		}
		if err := dep.Readiness(r.Context()); err != nil {
			response.Error(w, r, http.StatusServiceUnavailable, "DEPENDENCY_UNREADY", "dependencies are not ready", map[string]string{"error": err.Error()})
			return
		}
		response.JSON(w, r, http.StatusOK, map[string]string{"status": "ready"})
	})

	if dep.MetricsHandler != nil {
		r.Method(http.MethodGet, "/metrics", dep.MetricsHandler)
	}

	r.Route("/api/v1", func(r chi.Router) {
		r.Use(middleware.SessionMiddleware(dep.SessionResolver))
		if dep.RateLimiter != nil {
			r.Use(middleware.RateLimitMiddleware(dep.RateLimiter, dep.RateLimitInterval))
		}

		r.With(middleware.RequireSession).Get("/session", dep.SessionHandler.Current)
		r.With(middleware.RequireSession).Get("/session/all", dep.SessionHandler.List)

		r.Route("/auth", func(r chi.Router) {
			r.Post("/register", dep.AuthHandler.Register)
			r.Post("/login", dep.AuthHandler.Login)
			r.With(middleware.RequireSession).Post("/logout", dep.AuthHandler.Logout)
			r.Get("/oauth/login", dep.AuthHandler.OAuthLogin)
			r.Get("/oauth/callback", dep.AuthHandler.OAuthCallback)
		})

		r.Route("/admin", func(r chi.Router) {
			r.Use(middleware.RequireRoles(dep.Guard.RequireRoles(service.RoleAdmin)))
			r.Get("/ping", dep.AdminHandler.Ping)
			r.Post("/bootstrap", dep.AdminHandler.Bootstrap)
			r.Put("/users/{id}/roles", dep.AdminHandler.SetUserRoles)
			r.Put("/users/{id}/ban", dep.AdminHandler.SetBanned)
			r.Delete("/sessions/{id}", dep.AdminHandler.RevokeSession)
		})
	})

	var h http.Handler = r
	if dep.EnableOTelHTTP {
		h = otelhttp.NewHandler(r, "http.server")
	}
	return h
}
