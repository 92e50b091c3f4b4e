package store

import (
	"context"
	"errors"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/cmorg789/vox/pkg/models"
	"github.com/cmorg789/vox/pkg/permissions"
)

// ============================================================================
// Role Operations
// ============================================================================

// CreateRole inserts a new role.
func (s *GORMStore) CreateRole(ctx context.Context, role *models.Role) error {
	return createRecord(ctx, s.db, role, models.ErrDuplicateRole)
}

// GetRole retrieves a role by ID.
func (s *GORMStore) GetRole(ctx context.Context, id int64) (*models.Role, error) {
	return getByField[models.Role](ctx, s.db, "id", id, models.ErrRoleNotFound)
}

// GetEveryoneRole retrieves the @everyone role (position 0).
func (s *GORMStore) GetEveryoneRole(ctx context.Context) (*models.Role, error) {
	return getByField[models.Role](ctx, s.db, "position", 0, models.ErrRoleNotFound)
}

// ListRoles retrieves all roles ordered by position, highest first.
func (s *GORMStore) ListRoles(ctx context.Context) ([]*models.Role, error) {
	return listAll[models.Role](ctx, s.db, "position DESC, id ASC")
}

// UpdateRole persists changes to a role. The @everyone role keeps its
// position regardless of the requested value.
func (s *GORMStore) UpdateRole(ctx context.Context, role *models.Role) error {
	updates := map[string]any{
		"name":        role.Name,
		"color":       role.Color,
		"position":    role.Position,
		"permissions": role.Permissions,
	}
	existing, err := s.GetRole(ctx, role.ID)
	if err != nil {
		return err
	}
	if existing.IsEveryone() {
		delete(updates, "position")
	}
	return s.db.WithContext(ctx).Model(&models.Role{ID: role.ID}).Updates(updates).Error
}

// DeleteRole removes a role, its memberships, and any overrides targeting
// it. The @everyone role cannot be deleted.
func (s *GORMStore) DeleteRole(ctx context.Context, id int64) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var role models.Role
		if err := tx.First(&role, id).Error; err != nil {
			return convertNotFoundError(err, models.ErrRoleNotFound)
		}
		if role.IsEveryone() {
			return errors.New("the everyone role cannot be deleted")
		}
		if err := tx.Where("role_id = ?", id).Delete(&models.RoleMember{}).Error; err != nil {
			return err
		}
		if err := tx.Where("target_type = ? AND target_id = ?", permissions.TargetRole, id).
			Delete(&models.PermissionOverride{}).Error; err != nil {
			return err
		}
		return tx.Delete(&models.Role{}, id).Error
	})
}

// AssignRole adds a user to a role. Idempotent.
func (s *GORMStore) AssignRole(ctx context.Context, roleID, userID int64) error {
	return upsertIgnore(ctx, s.db, &models.RoleMember{RoleID: roleID, UserID: userID})
}

// RevokeRole removes a user from a role.
func (s *GORMStore) RevokeRole(ctx context.Context, roleID, userID int64) error {
	return s.db.WithContext(ctx).
		Where("role_id = ? AND user_id = ?", roleID, userID).
		Delete(&models.RoleMember{}).Error
}

// ListUserRoles retrieves every role a user is a member of.
func (s *GORMStore) ListUserRoles(ctx context.Context, userID int64) ([]*models.Role, error) {
	var roles []*models.Role
	err := s.db.WithContext(ctx).
		Joins("JOIN role_members ON role_members.role_id = roles.id").
		Where("role_members.user_id = ?", userID).
		Order("roles.position DESC").
		Find(&roles).Error
	if err != nil {
		return nil, err
	}
	return roles, nil
}

// ListRoleMemberIDs returns the user IDs holding a role.
func (s *GORMStore) ListRoleMemberIDs(ctx context.Context, roleID int64) ([]int64, error) {
	var ids []int64
	err := s.db.WithContext(ctx).Model(&models.RoleMember{}).
		Where("role_id = ?", roleID).
		Pluck("user_id", &ids).Error
	return ids, err
}

// ============================================================================
// Permission Override Operations
// ============================================================================

// SetPermissionOverride creates or replaces the override for a target within
// a space.
func (s *GORMStore) SetPermissionOverride(ctx context.Context, override *models.PermissionOverride) error {
	return s.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns: []clause.Column{
				{Name: "space_type"}, {Name: "space_id"},
				{Name: "target_type"}, {Name: "target_id"},
			},
			DoUpdates: clause.AssignmentColumns([]string{"allow", "deny"}),
		}).
		Create(override).Error
}

// DeletePermissionOverride removes the override for a target within a space.
func (s *GORMStore) DeletePermissionOverride(ctx context.Context, spaceType string, spaceID int64, targetType string, targetID int64) error {
	return s.db.WithContext(ctx).
		Where("space_type = ? AND space_id = ? AND target_type = ? AND target_id = ?",
			spaceType, spaceID, targetType, targetID).
		Delete(&models.PermissionOverride{}).Error
}

// ListSpaceOverrideRows retrieves all override rows scoped to a space.
func (s *GORMStore) ListSpaceOverrideRows(ctx context.Context, spaceType string, spaceID int64) ([]*models.PermissionOverride, error) {
	var overrides []*models.PermissionOverride
	err := s.db.WithContext(ctx).
		Where("space_type = ? AND space_id = ?", spaceType, spaceID).
		Order("id ASC").
		Find(&overrides).Error
	if err != nil {
		return nil, err
	}
	return overrides, nil
}

// ============================================================================
// Permission Source
// ============================================================================

// The store doubles as the data source for the permission resolver.

// EveryoneRole returns the @everyone role in resolver form, or nil when the
// server has none.
func (s *GORMStore) EveryoneRole(ctx context.Context) (*permissions.Role, error) {
	role, err := s.GetEveryoneRole(ctx)
	if errors.Is(err, models.ErrRoleNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &permissions.Role{
		ID:          role.ID,
		Position:    role.Position,
		Permissions: permissions.Bits(role.Permissions),
	}, nil
}

// UserRoles returns the resolver view of a user's role memberships.
func (s *GORMStore) UserRoles(ctx context.Context, userID int64) ([]permissions.Role, error) {
	roles, err := s.ListUserRoles(ctx, userID)
	if err != nil {
		return nil, err
	}
	out := make([]permissions.Role, 0, len(roles))
	for _, role := range roles {
		out = append(out, permissions.Role{
			ID:          role.ID,
			Position:    role.Position,
			Permissions: permissions.Bits(role.Permissions),
		})
	}
	return out, nil
}

// MemberRoles returns role memberships for a batch of users in one query.
func (s *GORMStore) MemberRoles(ctx context.Context, userIDs []int64) (map[int64][]permissions.Role, error) {
	out := make(map[int64][]permissions.Role, len(userIDs))
	if len(userIDs) == 0 {
		return out, nil
	}

	type memberRole struct {
		UserID      int64
		ID          int64
		Position    int
		Permissions int64
	}
	var rows []memberRole
	err := s.db.WithContext(ctx).Model(&models.Role{}).
		Select("role_members.user_id, roles.id, roles.position, roles.permissions").
		Joins("JOIN role_members ON role_members.role_id = roles.id").
		Where("role_members.user_id IN ?", userIDs).
		Scan(&rows).Error
	if err != nil {
		return nil, err
	}

	for _, row := range rows {
		out[row.UserID] = append(out[row.UserID], permissions.Role{
			ID:          row.ID,
			Position:    row.Position,
			Permissions: permissions.Bits(row.Permissions),
		})
	}
	return out, nil
}

// SpaceOverrides returns the resolver view of a space's overrides.
func (s *GORMStore) SpaceOverrides(ctx context.Context, spaceType permissions.SpaceType, spaceID int64) ([]permissions.Override, error) {
	rows, err := s.ListSpaceOverrideRows(ctx, string(spaceType), spaceID)
	if err != nil {
		return nil, err
	}
	out := make([]permissions.Override, 0, len(rows))
	for _, row := range rows {
		out = append(out, permissions.Override{
			TargetType: row.TargetType,
			TargetID:   row.TargetID,
			Allow:      permissions.Bits(row.Allow),
			Deny:       permissions.Bits(row.Deny),
		})
	}
	return out, nil
}
