package middleware

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/sandeepkv93/session-guard/internal/service"
	"github.com/sandeepkv93/session-guard/internal/session"
)

func withSession(req *http.Request, sess *session.Session, source string) *http.Request {
	ctx := context.WithValue(req.Context(), SessionContextKey, sess)
	ctx = context.WithValue(ctx, SourceContextKey, source)
	return req.WithContext(ctx)
}

func TestRequireRolesDecisions(t *testing.T) {
	guard := service.NewGuard(stubRoles{roles: map[int64][]string{7: {"ADMIN"}, 8: {"USER"}}}, "root@example.com")
	h := RequireRoles(guard.RequireRoles("admin"))(okHandler())

	revoked := persisted(newRecordingStore(), 3, 7, nil)
	revoked.Revoke()

	cases := []struct {
		name   string
		sess   *session.Session
		source string
		want   int
		header string
	}{
		{"no session via bearer", session.NewEmpty(), SourceBearer, http.StatusUnauthorized, "Bearer"},
		{"no session via cookie", session.NewEmpty(), SourceCookie, http.StatusUnauthorized, ""},
		{"revoked", revoked, SourceBearer, http.StatusUnauthorized, "Bearer"},
		{"admin", persisted(newRecordingStore(), 1, 7, nil), SourceCookie, http.StatusOK, ""},
		{"plain user", persisted(newRecordingStore(), 2, 8, nil), SourceCookie, http.StatusForbidden, ""},
		{"bootstrap admin email", session.NewBootstrap(map[string]any{"email": "Root@Example.com"}), SourceBearer, http.StatusOK, ""},
		{"bootstrap other email", session.NewBootstrap(map[string]any{"email": "eve@example.com"}), SourceBearer, http.StatusForbidden, ""},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			req := withSession(httptest.NewRequest(http.MethodGet, "/admin", nil), tc.sess, tc.source)
			rr := serve(h, req)
			if rr.Code != tc.want {
				t.Fatalf("expected %d, got %d body=%s", tc.want, rr.Code, rr.Body.String())
			}
			if got := rr.Header().Get("WWW-Authenticate"); got != tc.header {
				t.Fatalf("expected WWW-Authenticate %q, got %q", tc.header, got)
			}
		})
	}
}

func TestRequireRolesDeniedBodyListsRequiredRoles(t *testing.T) {
	guard := service.NewGuard(stubRoles{}, "")
	h := RequireRoles(guard.RequireRoles("admin", "auditor"))(okHandler())
	req := withSession(httptest.NewRequest(http.MethodGet, "/", nil), persisted(newRecordingStore(), 1, 5, nil), SourceCookie)

	rr := serve(h, req)
	var body struct {
		Error struct {
			Code    string `json:"code"`
			Details struct {
				Required []string `json:"required"`
			} `json:"details"`
		} `json:"error"`
	}
	if err := json.Unmarshal(rr.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if body.Error.Code != "FORBIDDEN" || len(body.Error.Details.Required) != 2 || body.Error.Details.Required[0] != "ADMIN" {
		t.Fatalf("unexpected denial body: %s", rr.Body.String())
	}
}

func TestRequireRolesRoleLookupFailure(t *testing.T) {
	guard := service.NewGuard(stubRoles{err: errBackendDown}, "")
	h := RequireRoles(guard.RequireRoles("admin"))(okHandler())
	req := withSession(httptest.NewRequest(http.MethodGet, "/", nil), persisted(newRecordingStore(), 1, 5, nil), SourceCookie)
	if rr := serve(h, req); rr.Code != http.StatusServiceUnavailable {
		t.Fatalf("expected 503, got %d", rr.Code)
	}
}

func TestRequireSession(t *testing.T) {
	h := RequireSession(okHandler())

	if rr := serve(h, httptest.NewRequest(http.MethodGet, "/", nil)); rr.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 without session on context, got %d", rr.Code)
	}

	guest := persisted(newRecordingStore(), 4, session.GuestUserID, map[string]session.Value{"state": session.String("x")})
	req := withSession(httptest.NewRequest(http.MethodGet, "/", nil), guest, SourceCookie)
	if rr := serve(h, req); rr.Code != http.StatusOK {
		t.Fatalf("expected guest session with values to pass, got %d", rr.Code)
	}
}
