package service

import (
	"context"
	"errors"
	"log/slog"

	"github.com/sandeepkv93/session-guard/internal/observability"
	"github.com/sandeepkv93/session-guard/internal/repository"
	"github.com/sandeepkv93/session-guard/internal/security"
	"github.com/sandeepkv93/session-guard/internal/session"
)

type TokenDecoder interface {
	Claims(token string) map[string]any
}

// SessionResolver turns a raw credential into a session. It never fails: anything
// it cannot resolve becomes an empty session.
type SessionResolver struct {
	decoder  TokenDecoder
	sessions repository.SessionRepository
}

func NewSessionResolver(decoder TokenDecoder, sessions repository.SessionRepository) *SessionResolver {
	return &SessionResolver{decoder: decoder, sessions: sessions}
}

func (r *SessionResolver) Resolve(ctx context.Context, token string) *session.Session {
	if token == "" {
		observability.RecordSessionResolve(ctx, "empty", "no_credential")
		return session.NewEmpty()
	}
	claims := r.decoder.Claims(token)
	if len(claims) == 0 {
		observability.RecordSessionResolve(ctx, "empty", "invalid_token")
		return session.NewEmpty()
	}

	id, ok := security.SessionIDFromClaims(claims)
	if security.IsBootstrapClaims(claims) || !ok {
		observability.RecordSessionResolve(ctx, session.KindBootstrap.String(), "claims")
		return session.NewBootstrap(claims)
	}

	row, err := r.sessions.Get(ctx, id)
	if err != nil {
		if errors.Is(err, repository.ErrSessionNotFound) {
			observability.RecordSessionResolve(ctx, "empty", "not_found")
		} else {
			slog.Warn("session store unavailable", "session_id", id, "error", err)
			observability.RecordSessionResolve(ctx, "empty", "store_error")
		}
		return session.NewEmpty()
	}

	values, err := session.DecodeValues(row.Values)
	if err != nil {
		slog.Warn("discarding undecodable session values", "session_id", id, "error", err)
		values = nil
	}
	observability.RecordSessionResolve(ctx, session.KindPersisted.String(), "found")
	return session.Hydrate(r.sessions, row.ID, row.UserID, row.Revoked, row.CreatedAt, values)
}
