package repository

import (
	"context"
	"sort"
	"strings"

	"gorm.io/gorm"

	"github.com/sandeepkv93/session-guard/internal/domain"
	"github.com/sandeepkv93/session-guard/internal/observability"
)

type RoleRepository interface {
	RolesForUser(ctx context.Context, userID int64) ([]string, error)
	SetRoles(ctx context.Context, userID int64, roles []string) error
}

type GormRoleRepository struct{ db *gorm.DB }

func NewRoleRepository(db *gorm.DB) RoleRepository { return &GormRoleRepository{db: db} }

func (r *GormRoleRepository) RolesForUser(ctx context.Context, userID int64) ([]string, error) {
	var roles []string
	err := r.db.WithContext(ctx).Model(&domain.Role{}).
		Where("user_id = ?", userID).
		Order("type ASC").
		Pluck("type", &roles).Error
	if err != nil {
		observability.RecordRepositoryOperation(ctx, "role", "roles_for_user", "error")
		return nil, err
	}
	observability.RecordRepositoryOperation(ctx, "role", "roles_for_user", "success")
	return roles, nil
}

// SetRoles makes the user's role set equal to roles, adding and removing only the
// difference. Role strings are stored upper-cased.
func (r *GormRoleRepository) SetRoles(ctx context.Context, userID int64, roles []string) error {
	want := normalizeRoles(roles)
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var existing []domain.Role
		if err := tx.Where("user_id = ?", userID).Find(&existing).Error; err != nil {
			return err
		}
		have := make(map[string]int64, len(existing))
		for _, role := range existing {
			have[role.Type] = role.ID
		}

		var remove []int64
		for typ, id := range have {
			if _, ok := want[typ]; !ok {
				remove = append(remove, id)
			}
		}
		if len(remove) > 0 {
			if err := tx.Where("id IN ?", remove).Delete(&domain.Role{}).Error; err != nil {
				return err
			}
		}

		add := make([]domain.Role, 0, len(want))
		for typ := range want {
			if _, ok := have[typ]; !ok {
				add = append(add, domain.Role{Type: typ, UserID: userID})
			}
		}
		sort.Slice(add, func(i, j int) bool { return add[i].Type < add[j].Type })
		if len(add) > 0 {
			if err := tx.Create(&add).Error; err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		observability.RecordRepositoryOperation(ctx, "role", "set_roles", "error")
		return err
	}
	observability.RecordRepositoryOperation(ctx, "role", "set_roles", "success")
	return nil
}

func normalizeRoles(roles []string) map[string]struct{} {
	out := make(map[string]struct{}, len(roles))
	for _, role := range roles {
		role = strings.ToUpper(strings.TrimSpace(role))
		if role != "" {
			out[role] = struct{}{}
		}
	}
	return out
}
