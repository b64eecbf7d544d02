package middleware

import (
	"context"
	"net/http"

	"github.com/sandeepkv93/session-guard/internal/security"
	"github.com/sandeepkv93/session-guard/internal/session"
)

type contextKey string

const (
	SessionContextKey contextKey = "session"
	SourceContextKey  contextKey = "credential_source"
)

const (
	SourceNone   = "none"
	SourceCookie = "cookie"
	SourceBearer = "bearer"
)

type SessionResolver interface {
	Resolve(ctx context.Context, token string) *session.Session
}

// SessionMiddleware resolves the caller's session from the session cookie or a
// bearer token and stores it on the request context. It never rejects; policy
// middleware further down decides.
func SessionMiddleware(resolver SessionResolver) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			raw := security.GetCookie(r, security.SessionCookieName)
			source := SourceCookie
			if raw == "" {
				raw = security.BearerToken(r)
				source = SourceBearer
			}
			if raw == "" {
				source = SourceNone
			}
			sess := resolver.Resolve(r.Context(), raw)
			ctx := context.WithValue(r.Context(), SessionContextKey, sess)
			ctx = context.WithValue(ctx, SourceContextKey, source)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

func SessionFromContext(ctx context.Context) (*session.Session, bool) {
	s, ok := ctx.Value(SessionContextKey).(*session.Session)
	return s, ok && s != nil
}

func CredentialSource(ctx context.Context) string {
	if v, ok := ctx.Value(SourceContextKey).(string); ok {
		return v
	}
	return SourceNone
}
