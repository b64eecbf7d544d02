package repository

import (
	"context"
	"testing"

	"github.com/sandeepkv93/session-guard/internal/domain"
)

func TestRoleRepositorySetRolesDiff(t *testing.T) {
	db := newTestDB(t, &domain.Role{})
	repo := NewRoleRepository(db)
	ctx := context.Background()

	if err := repo.SetRoles(ctx, 1, []string{"admin", "user"}); err != nil {
		t.Fatalf("set roles: %v", err)
	}
	var before domain.Role
	if err := db.Where("user_id = ? AND type = ?", 1, "USER").First(&before).Error; err != nil {
		t.Fatalf("load USER role: %v", err)
	}

	if err := repo.SetRoles(ctx, 1, []string{"USER", "moderator", ""}); err != nil {
		t.Fatalf("set roles again: %v", err)
	}
	roles, err := repo.RolesForUser(ctx, 1)
	if err != nil {
		t.Fatalf("roles for user: %v", err)
	}
	if len(roles) != 2 || roles[0] != "MODERATOR" || roles[1] != "USER" {
		t.Fatalf("unexpected roles: %v", roles)
	}

	var after domain.Role
	if err := db.Where("user_id = ? AND type = ?", 1, "USER").First(&after).Error; err != nil {
		t.Fatalf("load USER role: %v", err)
	}
	if after.ID != before.ID {
		t.Fatalf("unchanged role must keep its row: before=%d after=%d", before.ID, after.ID)
	}
}

func TestRoleRepositoryUnknownUserHasNoRoles(t *testing.T) {
	repo := NewRoleRepository(newTestDB(t, &domain.Role{}))
	roles, err := repo.RolesForUser(context.Background(), 77)
	if err != nil {
		t.Fatalf("roles for user: %v", err)
	}
	if len(roles) != 0 {
		t.Fatalf("expected no roles, got %v", roles)
	}
}
