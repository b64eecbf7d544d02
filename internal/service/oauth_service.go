package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/google/uuid"

	"github.com/sandeepkv93/session-guard/internal/observability"
	"github.com/sandeepkv93/session-guard/internal/session"
)

const (
	oauthStateKey = "state"

	RedirectHome       = "/"
	RedirectAdminSetup = "/admin/setup"
)

var (
	ErrOAuthDisabled      = errors.New("oauth login is not configured")
	ErrOAuthStateMismatch = errors.New("oauth state mismatch")
	ErrInvalidUserInfo    = errors.New("missing required userinfo fields")
)

// OAuthResult is what the callback hands back to the transport: the session to
// bind, the token to set and where to send the browser.
type OAuthResult struct {
	Session  *session.Session
	Token    string
	Redirect string
}

type OAuthService struct {
	provider IdentityProvider
	users    *UserService
	sessions *SessionService
}

func NewOAuthService(provider IdentityProvider, users *UserService, sessions *SessionService) *OAuthService {
	return &OAuthService{provider: provider, users: users, sessions: sessions}
}

func (s *OAuthService) Enabled() bool {
	return s != nil && s.provider != nil
}

// BeginLogin stores a fresh state nonce on the caller's session and returns the
// provider URL. Callers without a usable persisted session get a guest session, or
// a claims-only session when the store is down.
func (s *OAuthService) BeginLogin(ctx context.Context, sess *session.Session) (*OAuthResult, error) {
	if !s.Enabled() {
		return nil, ErrOAuthDisabled
	}
	if sess == nil || !sess.IsPersisted() || sess.Revoked() {
		fresh, _, err := s.sessions.StartGuest(ctx)
		if err != nil {
			slog.Warn("session store unavailable, falling back to bootstrap session", "error", err)
			fresh = session.NewEmpty()
		}
		sess = fresh
	}

	state := uuid.NewString()
	sess.Set(oauthStateKey, session.String(state))
	if err := s.sessions.Sync(ctx, sess); err != nil {
		return nil, err
	}
	token, err := s.sessions.IssueToken(sess)
	if err != nil {
		return nil, err
	}
	return &OAuthResult{Session: sess, Token: token, Redirect: s.provider.AuthCodeURL(state)}, nil
}

// HandleCallback completes the code exchange. When the user directory cannot be
// written the identity is carried forward in a bootstrap token instead.
func (s *OAuthService) HandleCallback(ctx context.Context, sess *session.Session, code, state string) (*OAuthResult, error) {
	if !s.Enabled() {
		return nil, ErrOAuthDisabled
	}
	provider := s.provider.Name()
	if sess == nil || state == "" || sess.GetString(oauthStateKey) != state {
		observability.RecordAuthLogin(provider, "state_mismatch")
		return nil, ErrOAuthStateMismatch
	}

	token, err := s.provider.Exchange(ctx, code)
	if err != nil {
		observability.RecordAuthLogin(provider, classifyOAuthError(err))
		return nil, fmt.Errorf("exchange code: %w", err)
	}
	identity, err := s.provider.FetchUser(ctx, token)
	if err != nil {
		observability.RecordAuthLogin(provider, classifyOAuthError(err))
		return nil, fmt.Errorf("fetch user: %w", err)
	}
	if identity == nil || strings.TrimSpace(identity.Email) == "" || strings.TrimSpace(identity.Username) == "" {
		observability.RecordAuthLogin(provider, classifyOAuthError(ErrInvalidUserInfo))
		return nil, ErrInvalidUserInfo
	}

	sess.Delete(oauthStateKey)
	user, err := s.users.FindOrCreateOAuthUser(ctx, identity)
	if errors.Is(err, ErrUserBanned) {
		observability.RecordAuthLogin(provider, "banned")
		return nil, err
	}
	if err != nil {
		slog.Warn("user directory unavailable, issuing bootstrap token", "email", identity.Email, "error", err)
		bootstrap, tokenErr := s.sessions.IssueBootstrapToken(identity.Username, identity.Email, token.AccessToken)
		if tokenErr != nil {
			return nil, tokenErr
		}
		observability.RecordAuthLogin(provider, "bootstrap")
		return &OAuthResult{
			Session:  session.NewBootstrap(map[string]any{"username": identity.Username, "email": identity.Email}),
			Token:    bootstrap,
			Redirect: RedirectAdminSetup,
		}, nil
	}

	bound, sessionToken, err := s.sessions.Login(ctx, sess, user)
	if err != nil {
		observability.RecordAuthLogin(provider, "session_error")
		return nil, err
	}
	observability.RecordAuthLogin(provider, "success")
	return &OAuthResult{Session: bound, Token: sessionToken, Redirect: RedirectHome}, nil
}

func classifyOAuthError(err error) string {
	switch {
	case err == nil:
		return "none"
	case errors.Is(err, context.Canceled):
		return "context_canceled"
	case errors.Is(err, context.DeadlineExceeded):
		return "timeout"
	}
	msg := err.Error()
	switch {
	case strings.Contains(msg, "userinfo status"):
		return "userinfo_status"
	case strings.Contains(msg, "missing required userinfo fields"):
		return "invalid_userinfo"
	case strings.Contains(msg, "oauth2:"):
		return "oauth2_exchange"
	default:
		return "provider_error"
	}
}
