package observability

import (
	"log/slog"
	"net/http"

	chimiddleware "github.com/go-chi/chi/v5/middleware"
)

// Audit logs a security-relevant session event (login, logout, revocation, role
// change) with the request it came from.
func Audit(r *http.Request, event string, attrs ...any) {
	base := make([]any, 0, 8+len(attrs))
	base = append(base,
		"event", event,
		"method", r.Method,
		"path", r.URL.Path,
		"remote_addr", r.RemoteAddr,
	)
	if id := chimiddleware.GetReqID(r.Context()); id != "" {
		base = append(base, "request_id", id)
	}
	slog.InfoContext(r.Context(), "audit", append(base, attrs...)...)
}
