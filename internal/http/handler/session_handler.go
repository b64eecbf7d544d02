package handler

import (
	"net/http"

	"github.com/sandeepkv93/session-guard/internal/http/response"
	"github.com/sandeepkv93/session-guard/internal/service"
	"github.com/sandeepkv93/session-guard/internal/session"
)

type SessionHandler struct {
	sessions *service.SessionService
}

func NewSessionHandler(sessions *service.SessionService) *SessionHandler {
	return &SessionHandler{sessions: sessions}
}

func (h *SessionHandler) Current(w http.ResponseWriter, r *http.Request) {
	response.JSON(w, r, http.StatusOK, service.NewSessionView(currentSession(r)))
}

// List returns every stored session of the current user.
func (h *SessionHandler) List(w http.ResponseWriter, r *http.Request) {
	sess := currentSession(r)
	if sess.UserID() == session.GuestUserID {
		response.Error(w, r, http.StatusForbidden, "FORBIDDEN", "no user bound to session", nil)
		return
	}
	views, err := h.sessions.ListForUser(r.Context(), sess.UserID(), sess.ID())
	if err != nil {
		response.Error(w, r, http.StatusInternalServerError, "INTERNAL", "failed to list sessions", nil)
		return
	}
	response.JSON(w, r, http.StatusOK, views)
}
