package service

import (
	"context"
	"errors"
	"net/http"
	"testing"
	"time"

	"github.com/sandeepkv93/session-guard/internal/session"
)

func persistedSession(userID int64, revoked bool) *session.Session {
	return session.Hydrate(nil, 100, userID, revoked, time.Now(), map[string]session.Value{
		"username": session.String("alice"),
	})
}

func TestPolicyEvaluate(t *testing.T) {
	roles := newStubRoleRepository()
	roles.roles[1] = []string{"admin"}
	roles.roles[2] = []string{"USER"}
	guard := NewGuard(roles, " Admin@Example.com ")
	policy := guard.RequireRoles("ADMIN")

	cases := []struct {
		name   string
		sess   *session.Session
		allow  bool
		status int
		reason string
	}{
		{"nil session", nil, false, http.StatusUnauthorized, ReasonNoSession},
		{"empty session", session.NewEmpty(), false, http.StatusUnauthorized, ReasonNoSession},
		{"revoked admin", persistedSession(1, true), false, http.StatusUnauthorized, ReasonSessionRevoked},
		{"admin role case insensitive", persistedSession(1, false), true, 0, ReasonAllowed},
		{"missing role", persistedSession(2, false), false, http.StatusForbidden, ReasonInsufficientRole},
		{"guest with values", persistedSession(session.GuestUserID, false), false, http.StatusForbidden, ReasonInsufficientRole},
		{
			"bootstrap admin email",
			session.NewBootstrap(map[string]any{"type": "bootstrap", "email": "admin@example.com"}),
			true, 0, ReasonBootstrapAdminPass,
		},
		{
			"bootstrap other email",
			session.NewBootstrap(map[string]any{"type": "bootstrap", "email": "mallory@example.com"}),
			false, http.StatusForbidden, ReasonInsufficientRole,
		},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			d := policy.Evaluate(context.Background(), tc.sess)
			if d.Allowed != tc.allow {
				t.Fatalf("expected allowed=%v, got %+v", tc.allow, d)
			}
			if d.Status != tc.status || d.Reason != tc.reason {
				t.Fatalf("expected status=%d reason=%q, got %+v", tc.status, tc.reason, d)
			}
		})
	}
}

func TestPolicyEvaluateEmailPathIgnoredOnceUserBound(t *testing.T) {
	roles := newStubRoleRepository()
	guard := NewGuard(roles, "admin@example.com")
	sess := session.Hydrate(nil, 5, 9, false, time.Now(), map[string]session.Value{
		"email": session.String("admin@example.com"),
	})

	if d := guard.RequireRoles("ADMIN").Evaluate(context.Background(), sess); d.Allowed {
		t.Fatalf("expected role lookup to decide for bound users, got %+v", d)
	}
}

func TestPolicyEvaluateBootstrapEmailOnlyStandsInForAdmin(t *testing.T) {
	guard := NewGuard(newStubRoleRepository(), "admin@example.com")
	sess := session.NewBootstrap(map[string]any{"type": "bootstrap", "email": "admin@example.com"})

	d := guard.RequireRoles("MODERATOR").Evaluate(context.Background(), sess)
	if d.Allowed || d.Status != http.StatusForbidden || d.Reason != ReasonInsufficientRole {
		t.Fatalf("expected 403 for non-admin policy, got %+v", d)
	}
	if d := guard.RequireRoles("moderator", "admin").Evaluate(context.Background(), sess); !d.Allowed {
		t.Fatalf("expected allowance when policy accepts admin, got %+v", d)
	}
}

func TestPolicyEvaluateBootstrapWithoutConfiguredAdmin(t *testing.T) {
	guard := NewGuard(newStubRoleRepository(), "")
	sess := session.NewBootstrap(map[string]any{"email": "admin@example.com"})
	if d := guard.RequireRoles("ADMIN").Evaluate(context.Background(), sess); d.Allowed {
		t.Fatal("expected deny when no admin email is configured")
	}
}

func TestPolicyEvaluateRoleLookupFailure(t *testing.T) {
	roles := newStubRoleRepository()
	roles.err = errors.New("db down")
	guard := NewGuard(roles, "")

	d := guard.RequireRoles("ADMIN").Evaluate(context.Background(), persistedSession(1, false))
	if d.Allowed || d.Status != http.StatusServiceUnavailable || d.Code != "RBAC_UNAVAILABLE" {
		t.Fatalf("expected 503 RBAC_UNAVAILABLE, got %+v", d)
	}
}

func TestPolicyEvaluateDoesNotWrite(t *testing.T) {
	store := newInMemorySessionRepo()
	row, _ := store.Create(context.Background(), 11, 1, nil)
	store.calls = nil
	roles := newStubRoleRepository()
	roles.roles[1] = []string{"ADMIN"}
	sess := session.Hydrate(store, row.ID, row.UserID, false, row.CreatedAt, map[string]session.Value{"k": session.Int(1)})

	NewGuard(roles, "").RequireRoles("ADMIN", "MODERATOR").Evaluate(context.Background(), sess)
	if sess.Dirty() || len(store.calls) != 0 {
		t.Fatalf("expected no writes, dirty=%v calls=%v", sess.Dirty(), store.calls)
	}
}
