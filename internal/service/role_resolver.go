package service

import (
	"context"
	"log/slog"
	"time"

	"github.com/sandeepkv93/session-guard/internal/observability"
	"github.com/sandeepkv93/session-guard/internal/repository"
)

// CachedRoleResolver reads roles through a TTL cache and invalidates the user's
// entry whenever their roles are written through it.
type CachedRoleResolver struct {
	cacheStore RoleCacheStore
	roles      repository.RoleRepository
	ttl        time.Duration
}

func NewCachedRoleResolver(cacheStore RoleCacheStore, roles repository.RoleRepository, ttl time.Duration) *CachedRoleResolver {
	return &CachedRoleResolver{
		cacheStore: cacheStore,
		roles:      roles,
		ttl:        ttl,
	}
}

func (r *CachedRoleResolver) RolesForUser(ctx context.Context, userID int64) ([]string, error) {
	if r.cacheStore != nil && r.ttl > 0 {
		cached, ok, err := r.cacheStore.Get(ctx, userID)
		switch {
		case err != nil:
			observability.RecordRoleCacheEvent(ctx, "error")
			slog.Warn("role cache read failed, falling back to store", "user_id", userID, "error", err)
		case ok:
			observability.RecordRoleCacheEvent(ctx, "hit")
			return cached, nil
		default:
			observability.RecordRoleCacheEvent(ctx, "miss")
		}
	}

	roles, err := r.roles.RolesForUser(ctx, userID)
	if err != nil {
		return nil, err
	}
	if r.cacheStore != nil && r.ttl > 0 {
		if err := r.cacheStore.Set(ctx, userID, roles, r.ttl); err != nil {
			slog.Warn("role cache write failed", "user_id", userID, "error", err)
		}
	}
	return roles, nil
}

func (r *CachedRoleResolver) SetRoles(ctx context.Context, userID int64, roles []string) error {
	if err := r.roles.SetRoles(ctx, userID, roles); err != nil {
		return err
	}
	return r.InvalidateUser(ctx, userID)
}

func (r *CachedRoleResolver) InvalidateUser(ctx context.Context, userID int64) error {
	if r.cacheStore == nil {
		return nil
	}
	return r.cacheStore.InvalidateUser(ctx, userID)
}

func (r *CachedRoleResolver) InvalidateAll(ctx context.Context) error {
	if r.cacheStore == nil {
		return nil
	}
	return r.cacheStore.InvalidateAll(ctx)
}
