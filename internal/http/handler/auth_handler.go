package handler

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/sandeepkv93/session-guard/internal/http/response"
	"github.com/sandeepkv93/session-guard/internal/observability"
	"github.com/sandeepkv93/session-guard/internal/repository"
	"github.com/sandeepkv93/session-guard/internal/security"
	"github.com/sandeepkv93/session-guard/internal/service"
)

type AuthHandler struct {
	users    *service.UserService
	sessions *service.SessionService
	oauth    *service.OAuthService
	cookies  *security.CookieManager
}

func NewAuthHandler(users *service.UserService, sessions *service.SessionService, oauth *service.OAuthService, cookies *security.CookieManager) *AuthHandler {
	return &AuthHandler{users: users, sessions: sessions, oauth: oauth, cookies: cookies}
}

type registerRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
	Email    string `json:"email"`
}

type loginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

func (h *AuthHandler) Register(w http.ResponseWriter, r *http.Request) {
	var req registerRequest
	if err := decodeJSON(r, &req); err != nil {
		response.Error(w, r, http.StatusBadRequest, "BAD_REQUEST", "invalid payload", nil)
		return
	}
	user, err := h.users.Register(r.Context(), req.Username, req.Password, req.Email)
	switch {
	case errors.Is(err, service.ErrInvalidUserInput):
		response.Error(w, r, http.StatusBadRequest, "BAD_REQUEST", err.Error(), nil)
		return
	case errors.Is(err, repository.ErrUserExists):
		response.Error(w, r, http.StatusConflict, "CONFLICT", "user already exists", nil)
		return
	case err != nil:
		response.Error(w, r, http.StatusInternalServerError, "INTERNAL", "failed to register", nil)
		return
	}
	observability.Audit(r, "user.register", "user_id", user.ID)
	response.JSON(w, r, http.StatusCreated, user)
}

// Login binds the authenticated user to the caller's session, starting one if the
// caller has none.
func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := decodeJSON(r, &req); err != nil {
		response.Error(w, r, http.StatusBadRequest, "BAD_REQUEST", "invalid payload", nil)
		return
	}
	user, err := h.users.Authenticate(r.Context(), req.Username, req.Password)
	switch {
	case errors.Is(err, service.ErrInvalidCredentials):
		observability.RecordAuthLogin("password", "invalid_credentials")
		response.Error(w, r, http.StatusUnauthorized, "UNAUTHORIZED", "invalid credentials", nil)
		return
	case errors.Is(err, service.ErrUserBanned):
		observability.RecordAuthLogin("password", "banned")
		response.Error(w, r, http.StatusForbidden, "FORBIDDEN", "user is banned", nil)
		return
	case err != nil:
		observability.RecordAuthLogin("password", "error")
		response.Error(w, r, http.StatusServiceUnavailable, "UNAVAILABLE", "user directory unavailable", nil)
		return
	}

	sess, token, err := h.sessions.Login(r.Context(), currentSession(r), user)
	if err != nil {
		slog.Warn("session login failed", "user_id", user.ID, "error", err)
		response.Error(w, r, http.StatusServiceUnavailable, "UNAVAILABLE", "session store unavailable", nil)
		return
	}
	h.cookies.SetSessionCookie(w, token)
	observability.Audit(r, "session.login", "user_id", user.ID, "session_id", sess.ID())
	response.JSON(w, r, http.StatusOK, map[string]any{"token": token, "session": service.NewSessionView(sess)})
}

func (h *AuthHandler) Logout(w http.ResponseWriter, r *http.Request) {
	sess := currentSession(r)
	if err := h.sessions.Logout(r.Context(), sess); err != nil {
		slog.Warn("logout sync failed", "session_id", sess.ID(), "error", err)
		response.Error(w, r, http.StatusServiceUnavailable, "UNAVAILABLE", "session store unavailable", nil)
		return
	}
	h.cookies.ClearSessionCookie(w)
	observability.Audit(r, "session.logout", "session_id", sess.ID())
	response.JSON(w, r, http.StatusOK, map[string]string{"status": "logged_out"})
}

func (h *AuthHandler) OAuthLogin(w http.ResponseWriter, r *http.Request) {
	result, err := h.oauth.BeginLogin(r.Context(), currentSession(r))
	if errors.Is(err, service.ErrOAuthDisabled) {
		response.Error(w, r, http.StatusNotFound, "NOT_FOUND", "oauth login is not configured", nil)
		return
	}
	if err != nil {
		response.Error(w, r, http.StatusServiceUnavailable, "UNAVAILABLE", "failed to start oauth login", nil)
		return
	}
	h.cookies.SetSessionCookie(w, result.Token)
	http.Redirect(w, r, result.Redirect, http.StatusFound)
}

func (h *AuthHandler) OAuthCallback(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	result, err := h.oauth.HandleCallback(r.Context(), currentSession(r), q.Get("code"), q.Get("state"))
	switch {
	case errors.Is(err, service.ErrOAuthDisabled):
		response.Error(w, r, http.StatusNotFound, "NOT_FOUND", "oauth login is not configured", nil)
		return
	case errors.Is(err, service.ErrOAuthStateMismatch):
		response.Error(w, r, http.StatusForbidden, "FORBIDDEN", "invalid oauth state", nil)
		return
	case errors.Is(err, service.ErrUserBanned):
		response.Error(w, r, http.StatusForbidden, "FORBIDDEN", "user is banned", nil)
		return
	case err != nil:
		slog.Warn("oauth callback failed", "error", err)
		response.Error(w, r, http.StatusBadGateway, "OAUTH_FAILED", "oauth login failed", nil)
		return
	}
	h.cookies.SetSessionCookie(w, result.Token)
	observability.Audit(r, "session.oauth_login", "session_id", result.Session.ID(), "user_id", result.Session.UserID())
	http.Redirect(w, r, result.Redirect, http.StatusFound)
}
