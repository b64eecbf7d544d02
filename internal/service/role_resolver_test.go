package service

import (
	"context"
	"errors"
	"testing"
	"time"
)

func TestCachedRoleResolverCachesByUser(t *testing.T) {
	repo := newStubRoleRepository()
	repo.roles[42] = []string{"ADMIN"}
	resolver := NewCachedRoleResolver(NewInMemoryRoleCacheStore(), repo, time.Minute)

	for i := 0; i < 3; i++ {
		roles, err := resolver.RolesForUser(context.Background(), 42)
		if err != nil {
			t.Fatalf("resolve roles: %v", err)
		}
		if len(roles) != 1 || roles[0] != "ADMIN" {
			t.Fatalf("unexpected roles: %v", roles)
		}
	}
	if got := repo.lookups(); got != 1 {
		t.Fatalf("expected one store lookup, got %d", got)
	}
}

func TestCachedRoleResolverSetRolesInvalidates(t *testing.T) {
	ctx := context.Background()
	repo := newStubRoleRepository()
	repo.roles[7] = []string{"USER"}
	resolver := NewCachedRoleResolver(NewInMemoryRoleCacheStore(), repo, time.Minute)

	if _, err := resolver.RolesForUser(ctx, 7); err != nil {
		t.Fatalf("resolve roles: %v", err)
	}
	if err := resolver.SetRoles(ctx, 7, []string{"ADMIN"}); err != nil {
		t.Fatalf("set roles: %v", err)
	}
	roles, err := resolver.RolesForUser(ctx, 7)
	if err != nil {
		t.Fatalf("resolve roles after set: %v", err)
	}
	if len(roles) != 1 || roles[0] != "ADMIN" {
		t.Fatalf("expected fresh roles after SetRoles, got %v", roles)
	}
	if got := repo.lookups(); got != 2 {
		t.Fatalf("expected two store lookups, got %d", got)
	}
}

func TestCachedRoleResolverFallsBackWhenCacheFails(t *testing.T) {
	server, client := newRedisClientForTest(t)
	repo := newStubRoleRepository()
	repo.roles[1] = []string{"ADMIN"}
	resolver := NewCachedRoleResolver(NewRedisRoleCacheStore(client, "roles"), repo, time.Minute)
	server.Close()

	roles, err := resolver.RolesForUser(context.Background(), 1)
	if err != nil {
		t.Fatalf("expected cache failure to fall back to store, got %v", err)
	}
	if len(roles) != 1 {
		t.Fatalf("unexpected roles: %v", roles)
	}
}

func TestCachedRoleResolverPropagatesStoreError(t *testing.T) {
	repo := newStubRoleRepository()
	repo.err = errors.New("db down")
	resolver := NewCachedRoleResolver(NewNoopRoleCacheStore(), repo, time.Minute)

	if _, err := resolver.RolesForUser(context.Background(), 1); !errors.Is(err, repo.err) {
		t.Fatalf("expected store error, got %v", err)
	}
}
