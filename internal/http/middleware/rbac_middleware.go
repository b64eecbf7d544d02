package middleware

import (
	"net/http"

	"github.com/sandeepkv93/session-guard/internal/http/response"
	"github.com/sandeepkv93/session-guard/internal/service"
	"github.com/sandeepkv93/session-guard/internal/session"
)

// RequireRoles admits the request only when the resolved session satisfies policy.
func RequireRoles(policy service.Policy) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			sess, _ := SessionFromContext(r.Context())
			d := policy.Evaluate(r.Context(), sess)
			if !d.Allowed {
				writeDenied(w, r, d, map[string]any{"required": policy.Roles()})
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// RequireSession admits any non-empty, unrevoked session.
func RequireSession(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		sess, ok := SessionFromContext(r.Context())
		switch {
		case !ok || sess.Empty():
			writeDenied(w, r, service.Decision{Status: http.StatusUnauthorized, Code: "UNAUTHORIZED", Reason: service.ReasonNoSession}, nil)
		case sess.Revoked():
			writeDenied(w, r, service.Decision{Status: http.StatusUnauthorized, Code: "UNAUTHORIZED", Reason: service.ReasonSessionRevoked}, nil)
		default:
			next.ServeHTTP(w, r)
		}
	})
}

func writeDenied(w http.ResponseWriter, r *http.Request, d service.Decision, details any) {
	if d.Status == http.StatusUnauthorized && CredentialSource(r.Context()) == SourceBearer {
		w.Header().Set("WWW-Authenticate", "Bearer")
	}
	response.Error(w, r, d.Status, d.Code, d.Reason, details)
}

// currentSession is used by handlers behind SessionMiddleware.
func currentSession(r *http.Request) *session.Session {
	if sess, ok := SessionFromContext(r.Context()); ok {
		return sess
	}
	return session.NewEmpty()
}
