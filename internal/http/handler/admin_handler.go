package handler

import (
	"context"
	"errors"
	"net/http"

	"github.com/sandeepkv93/session-guard/internal/http/response"
	"github.com/sandeepkv93/session-guard/internal/observability"
	"github.com/sandeepkv93/session-guard/internal/repository"
	"github.com/sandeepkv93/session-guard/internal/security"
	"github.com/sandeepkv93/session-guard/internal/service"
)

// Migrator applies the schema. The bootstrap flow runs it before the first
// administrator exists.
type Migrator func(ctx context.Context) error

type AdminHandler struct {
	users    *service.UserService
	sessions *service.SessionService
	cookies  *security.CookieManager
	migrate  Migrator
}

func NewAdminHandler(users *service.UserService, sessions *service.SessionService, cookies *security.CookieManager, migrate Migrator) *AdminHandler {
	return &AdminHandler{users: users, sessions: sessions, cookies: cookies, migrate: migrate}
}

func (h *AdminHandler) Ping(w http.ResponseWriter, r *http.Request) {
	sess := currentSession(r)
	response.JSON(w, r, http.StatusOK, map[string]any{"status": "ok", "user_id": sess.UserID(), "kind": sess.Kind().String()})
}

// Bootstrap turns a bootstrap session into the first administrator: the schema
// is migrated, the account is created from the session's identity and granted
// ADMIN, and a persisted session token replaces the bootstrap one.
func (h *AdminHandler) Bootstrap(w http.ResponseWriter, r *http.Request) {
	sess := currentSession(r)
	if !sess.IsBootstrap() {
		response.Error(w, r, http.StatusConflict, "CONFLICT", "session is already bound to a user", nil)
		return
	}
	if h.migrate != nil {
		if err := h.migrate(r.Context()); err != nil {
			response.Error(w, r, http.StatusServiceUnavailable, "UNAVAILABLE", "schema migration failed", nil)
			return
		}
	}
	user, err := h.users.BootstrapAdmin(r.Context(), sess.GetString("username"), sess.GetString("email"))
	if err != nil {
		if errors.Is(err, service.ErrInvalidUserInput) {
			response.Error(w, r, http.StatusBadRequest, "BAD_REQUEST", "bootstrap session carries no email", nil)
			return
		}
		response.Error(w, r, http.StatusServiceUnavailable, "UNAVAILABLE", "failed to create administrator", nil)
		return
	}
	bound, token, err := h.sessions.Login(r.Context(), nil, user)
	if err != nil {
		response.Error(w, r, http.StatusServiceUnavailable, "UNAVAILABLE", "session store unavailable", nil)
		return
	}
	h.cookies.SetSessionCookie(w, token)
	observability.Audit(r, "admin.bootstrap", "user_id", user.ID, "session_id", bound.ID())
	response.JSON(w, r, http.StatusCreated, map[string]any{"token": token, "user": user})
}

type setRolesRequest struct {
	Roles []string `json:"roles"`
}

func (h *AdminHandler) SetUserRoles(w http.ResponseWriter, r *http.Request) {
	userID, err := int64Param(r, "id")
	if err != nil {
		response.Error(w, r, http.StatusBadRequest, "BAD_REQUEST", "invalid user id", nil)
		return
	}
	var req setRolesRequest
	if err := decodeJSON(r, &req); err != nil {
		response.Error(w, r, http.StatusBadRequest, "BAD_REQUEST", "invalid payload", nil)
		return
	}
	if err := h.users.SetRoles(r.Context(), userID, req.Roles); err != nil {
		response.Error(w, r, http.StatusInternalServerError, "INTERNAL", "failed to set roles", nil)
		return
	}
	observability.Audit(r, "admin.roles.set", "user_id", userID, "roles", req.Roles)
	response.JSON(w, r, http.StatusOK, map[string]any{"user_id": userID, "roles": req.Roles})
}

func (h *AdminHandler) RevokeSession(w http.ResponseWriter, r *http.Request) {
	sessionID, err := int64Param(r, "id")
	if err != nil {
		response.Error(w, r, http.StatusBadRequest, "BAD_REQUEST", "invalid session id", nil)
		return
	}
	if err := h.sessions.RevokeByID(r.Context(), sessionID); err != nil {
		if errors.Is(err, repository.ErrSessionNotFound) {
			response.Error(w, r, http.StatusNotFound, "NOT_FOUND", "session not found", nil)
			return
		}
		response.Error(w, r, http.StatusInternalServerError, "INTERNAL", "failed to revoke session", nil)
		return
	}
	observability.Audit(r, "admin.session.revoke", "session_id", sessionID)
	response.JSON(w, r, http.StatusOK, map[string]any{"session_id": sessionID, "revoked": true})
}

type banRequest struct {
	Banned bool `json:"banned"`
}

func (h *AdminHandler) SetBanned(w http.ResponseWriter, r *http.Request) {
	userID, err := int64Param(r, "id")
	if err != nil {
		response.Error(w, r, http.StatusBadRequest, "BAD_REQUEST", "invalid user id", nil)
		return
	}
	var req banRequest
	if err := decodeJSON(r, &req); err != nil {
		response.Error(w, r, http.StatusBadRequest, "BAD_REQUEST", "invalid payload", nil)
		return
	}
	if err := h.users.SetBanned(r.Context(), userID, req.Banned); err != nil {
		if errors.Is(err, repository.ErrUserNotFound) {
			response.Error(w, r, http.StatusNotFound, "NOT_FOUND", "user not found", nil)
			return
		}
		response.Error(w, r, http.StatusInternalServerError, "INTERNAL", "failed to update user", nil)
		return
	}
	observability.Audit(r, "admin.user.ban", "user_id", userID, "banned", req.Banned)
	response.JSON(w, r, http.StatusOK, map[string]any{"user_id": userID, "banned": req.Banned})
}
