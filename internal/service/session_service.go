package service

import (
	"context"
	"errors"
	"time"

	"github.com/sandeepkv93/session-guard/internal/domain"
	"github.com/sandeepkv93/session-guard/internal/observability"
	"github.com/sandeepkv93/session-guard/internal/repository"
	"github.com/sandeepkv93/session-guard/internal/session"
)

var ErrSessionUnavailable = errors.New("session unavailable")

type TokenIssuer interface {
	Encode(claims map[string]any) (string, error)
	IssueSessionToken(sessionID int64) (string, error)
	IssueBootstrapToken(username, email, accessToken string) (string, error)
}

type SessionView struct {
	ID        int64          `json:"id"`
	UserID    int64          `json:"user_id"`
	Kind      string         `json:"kind"`
	Revoked   bool           `json:"revoked"`
	CreatedAt time.Time      `json:"created_at"`
	Values    map[string]any `json:"values"`
	IsCurrent bool           `json:"is_current,omitempty"`
}

func NewSessionView(sess *session.Session) SessionView {
	values := make(map[string]any, sess.Len())
	for k, v := range sess.Values() {
		values[k] = v.Any()
	}
	return SessionView{
		ID:        sess.ID(),
		UserID:    sess.UserID(),
		Kind:      sess.Kind().String(),
		Revoked:   sess.Revoked(),
		CreatedAt: sess.Created(),
		Values:    values,
	}
}

type SessionService struct {
	sessionRepo repository.SessionRepository
	ids         *session.IDGenerator
	tokens      TokenIssuer
	roles       RoleResolver
}

func NewSessionService(sessionRepo repository.SessionRepository, ids *session.IDGenerator, tokens TokenIssuer, roles RoleResolver) *SessionService {
	return &SessionService{sessionRepo: sessionRepo, ids: ids, tokens: tokens, roles: roles}
}

// StartGuest persists a fresh guest session and returns it with its token.
func (s *SessionService) StartGuest(ctx context.Context) (*session.Session, string, error) {
	id := s.ids.Next()
	row, err := s.sessionRepo.Create(ctx, id, session.GuestUserID, nil)
	if err != nil {
		return nil, "", errors.Join(ErrSessionUnavailable, err)
	}
	sess := session.Hydrate(s.sessionRepo, row.ID, row.UserID, row.Revoked, row.CreatedAt, nil)
	token, err := s.tokens.IssueSessionToken(row.ID)
	if err != nil {
		return nil, "", err
	}
	return sess, token, nil
}

// Login binds user to sess and caches the username and roles in its values. Only a
// live session already owned by user is kept; any other persisted session is revoked
// and, like a missing or bootstrap one, replaced by a new guest session so that an id
// known before login never becomes authenticated.
func (s *SessionService) Login(ctx context.Context, sess *session.Session, user *domain.User) (*session.Session, string, error) {
	reusable := sess != nil && sess.IsPersisted() && !sess.Revoked() && sess.UserID() == user.ID
	if !reusable {
		if sess != nil && sess.IsPersisted() && !sess.Revoked() {
			sess.Revoke()
			if err := s.Sync(ctx, sess); err != nil {
				return nil, "", err
			}
		}
		fresh, _, err := s.StartGuest(ctx)
		if err != nil {
			return nil, "", err
		}
		sess = fresh
	}

	sess.SetUserID(user.ID)
	sess.Set("username", session.String(user.Username))
	if s.roles != nil {
		roles, err := s.roles.RolesForUser(ctx, user.ID)
		if err != nil {
			return nil, "", err
		}
		sess.Set("roles", session.Strings(roles))
	}
	if err := s.Sync(ctx, sess); err != nil {
		return nil, "", err
	}
	token, err := s.IssueToken(sess)
	if err != nil {
		return nil, "", err
	}
	observability.RecordAuthLogin("password", "success")
	return sess, token, nil
}

func (s *SessionService) Logout(ctx context.Context, sess *session.Session) error {
	if sess == nil {
		observability.RecordAuthLogout("no_session")
		return nil
	}
	sess.Revoke()
	if err := s.Sync(ctx, sess); err != nil {
		observability.RecordAuthLogout("failure")
		return err
	}
	observability.RecordAuthLogout("success")
	return nil
}

// Sync flushes sess and records the outcome.
func (s *SessionService) Sync(ctx context.Context, sess *session.Session) error {
	if !sess.Dirty() {
		return nil
	}
	if err := sess.Sync(ctx); err != nil {
		observability.RecordSessionSync(ctx, "error")
		return err
	}
	observability.RecordSessionSync(ctx, "success")
	return nil
}

// IssueToken returns the credential that reproduces sess on a later request.
func (s *SessionService) IssueToken(sess *session.Session) (string, error) {
	if sess.IsPersisted() {
		return s.tokens.IssueSessionToken(sess.ID())
	}
	return s.tokens.Encode(sess.Claims())
}

func (s *SessionService) IssueBootstrapToken(username, email, accessToken string) (string, error) {
	return s.tokens.IssueBootstrapToken(username, email, accessToken)
}

func (s *SessionService) ListForUser(ctx context.Context, userID, currentSessionID int64) ([]SessionView, error) {
	rows, err := s.sessionRepo.ListByUser(ctx, userID)
	if err != nil {
		return nil, err
	}
	views := make([]SessionView, 0, len(rows))
	for _, row := range rows {
		values, err := session.DecodeValues(row.Values)
		if err != nil {
			values = nil
		}
		view := NewSessionView(session.Hydrate(nil, row.ID, row.UserID, row.Revoked, row.CreatedAt, values))
		view.IsCurrent = row.ID == currentSessionID
		views = append(views, view)
	}
	return views, nil
}

// RevokeByID revokes a stored session without loading it.
func (s *SessionService) RevokeByID(ctx context.Context, id int64) error {
	return s.sessionRepo.Revoke(ctx, id)
}
