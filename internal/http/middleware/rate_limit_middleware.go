package middleware

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/sandeepkv93/session-guard/internal/http/response"
	"github.com/sandeepkv93/session-guard/internal/observability"
	"github.com/sandeepkv93/session-guard/internal/session"
)

const tooManyRequests = "Too Many Requests"

type RequestLimiter interface {
	OnRequest(ctx context.Context, key string) (bool, error)
}

// RateLimitMiddleware applies the limiter per persisted session. A session that
// trips the limit is revoked and synced before the 429 is written, so the next
// request with the same credential is already unauthenticated. Requests without a
// persisted session are not limited here.
func RateLimitMiddleware(limiter RequestLimiter, interval time.Duration) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			sess := currentSession(r)
			block, err := limiter.OnRequest(r.Context(), SessionRateLimitKey(sess))
			if err != nil {
				slog.Warn("rate limiter backend unavailable", "error", err.Error(), "blocking", block)
			}
			if !block {
				next.ServeHTTP(w, r)
				return
			}
			if err == nil {
				revokeForRateLimit(r.Context(), sess)
			}
			w.Header().Set("Retry-After", retryAfterHeader(interval))
			response.Detail(w, http.StatusTooManyRequests, tooManyRequests)
		})
	}
}

// SessionRateLimitKey is empty for requests that carry no persisted session.
func SessionRateLimitKey(sess *session.Session) string {
	if sess == nil || !sess.IsPersisted() {
		return ""
	}
	return "sid:" + strconv.FormatInt(sess.ID(), 10)
}

func revokeForRateLimit(ctx context.Context, sess *session.Session) {
	sess.Revoke()
	if err := sess.Sync(ctx); err != nil {
		observability.RecordSessionSync(ctx, "error")
		slog.Error("failed to revoke rate limited session", "session_id", sess.ID(), "error", err)
		return
	}
	observability.RecordSessionSync(ctx, "success")
	slog.Warn("session revoked for exceeding rate limit", "session_id", sess.ID())
}

func retryAfterHeader(d time.Duration) string {
	if d <= 0 {
		return "1"
	}
	seconds := int(d.Round(time.Second).Seconds())
	if seconds <= 0 {
		seconds = 1
	}
	return fmt.Sprintf("%d", seconds)
}
