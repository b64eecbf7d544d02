package service

import (
	"context"
	"log/slog"
	"net/http"
	"strings"

	"github.com/sandeepkv93/session-guard/internal/observability"
	"github.com/sandeepkv93/session-guard/internal/session"
)

const (
	ReasonNoSession          = "no session"
	ReasonSessionRevoked     = "session revoked"
	ReasonInsufficientRole   = "insufficient role"
	ReasonRoleLookupFailed   = "role lookup unavailable"
	ReasonAllowed            = "allowed"
	ReasonBootstrapAdminPass = "bootstrap admin"
)

// Decision is the outcome of evaluating a policy. Status and Code are only set when
// the request is denied.
type Decision struct {
	Allowed bool
	Status  int
	Code    string
	Reason  string
}

func allow(reason string) Decision {
	return Decision{Allowed: true, Reason: reason}
}

func deny(status int, code, reason string) Decision {
	return Decision{Status: status, Code: code, Reason: reason}
}

// Guard evaluates role requirements against resolved sessions.
type Guard struct {
	roles      RoleResolver
	adminEmail string
}

func NewGuard(roles RoleResolver, adminEmail string) *Guard {
	return &Guard{
		roles:      roles,
		adminEmail: normalizeEmail(adminEmail),
	}
}

type Policy struct {
	guard *Guard
	roles []string
}

func (g *Guard) RequireRoles(roles ...string) Policy {
	normalized := make([]string, 0, len(roles))
	for _, r := range roles {
		r = strings.ToUpper(strings.TrimSpace(r))
		if r != "" {
			normalized = append(normalized, r)
		}
	}
	return Policy{guard: g, roles: normalized}
}

func (p Policy) Roles() []string {
	return append([]string(nil), p.roles...)
}

// Evaluate decides whether sess satisfies the policy. It performs no writes.
func (p Policy) Evaluate(ctx context.Context, sess *session.Session) Decision {
	d := p.evaluate(ctx, sess)
	outcome := "allowed"
	if !d.Allowed {
		outcome = "denied"
	}
	observability.RecordAuthzDecision(ctx, outcome, d.Reason)
	return d
}

func (p Policy) evaluate(ctx context.Context, sess *session.Session) Decision {
	if sess == nil || sess.Empty() {
		return deny(http.StatusUnauthorized, "UNAUTHORIZED", ReasonNoSession)
	}
	if sess.Revoked() {
		return deny(http.StatusUnauthorized, "UNAUTHORIZED", ReasonSessionRevoked)
	}

	if sess.UserID() == session.GuestUserID {
		email := sess.GetString("email")
		if p.requiresAdmin() && email != "" && p.guard.adminEmail != "" && normalizeEmail(email) == p.guard.adminEmail {
			return allow(ReasonBootstrapAdminPass)
		}
		return deny(http.StatusForbidden, "FORBIDDEN", ReasonInsufficientRole)
	}

	if p.guard.roles == nil {
		return deny(http.StatusServiceUnavailable, "RBAC_UNAVAILABLE", ReasonRoleLookupFailed)
	}
	held, err := p.guard.roles.RolesForUser(ctx, sess.UserID())
	if err != nil {
		slog.Warn("role lookup failed", "user_id", sess.UserID(), "error", err)
		return deny(http.StatusServiceUnavailable, "RBAC_UNAVAILABLE", ReasonRoleLookupFailed)
	}
	for _, h := range held {
		h = strings.ToUpper(strings.TrimSpace(h))
		for _, want := range p.roles {
			if h == want {
				return allow(ReasonAllowed)
			}
		}
	}
	return deny(http.StatusForbidden, "FORBIDDEN", ReasonInsufficientRole)
}

// requiresAdmin reports whether the policy accepts ADMIN. The bootstrap email
// allowance only ever stands in for that role.
func (p Policy) requiresAdmin() bool {
	for _, r := range p.roles {
		if r == RoleAdmin {
			return true
		}
	}
	return false
}

func normalizeEmail(v string) string {
	return strings.ToLower(strings.TrimSpace(v))
}
