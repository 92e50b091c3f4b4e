package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/cmorg789/vox/pkg/models"
	"github.com/cmorg789/vox/pkg/permissions"
)

// ============================================================================
// User Operations
// ============================================================================

// CreateUser inserts a new user and enrols it in the @everyone role.
func (s *GORMStore) CreateUser(ctx context.Context, user *models.User) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(user).Error; err != nil {
			if isUniqueConstraintError(err) {
				return models.ErrDuplicateUser
			}
			return err
		}

		// Every user belongs to @everyone. The role may not exist yet
		// during bootstrap; membership is then added by EnsureDefaultRoles.
		var everyone models.Role
		err := tx.Where("position = ?", 0).First(&everyone).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil
		}
		if err != nil {
			return err
		}
		return tx.Clauses(clause.OnConflict{DoNothing: true}).
			Create(&models.RoleMember{RoleID: everyone.ID, UserID: user.ID}).Error
	})
}

// GetUserByID retrieves a user by its ID.
func (s *GORMStore) GetUserByID(ctx context.Context, id int64) (*models.User, error) {
	return getByField[models.User](ctx, s.db, "id", id, models.ErrUserNotFound)
}

// GetUserByUsername retrieves a local user by username.
func (s *GORMStore) GetUserByUsername(ctx context.Context, username string) (*models.User, error) {
	var user models.User
	err := s.db.WithContext(ctx).
		Where("username = ? AND home_domain = ?", username, "").
		First(&user).Error
	if err != nil {
		return nil, convertNotFoundError(err, models.ErrUserNotFound)
	}
	return &user, nil
}

// GetUserByAddress retrieves a federated user by username and home domain.
func (s *GORMStore) GetUserByAddress(ctx context.Context, username, domain string) (*models.User, error) {
	var user models.User
	err := s.db.WithContext(ctx).
		Where("username = ? AND home_domain = ?", username, domain).
		First(&user).Error
	if err != nil {
		return nil, convertNotFoundError(err, models.ErrUserNotFound)
	}
	return &user, nil
}

// EnsureFederatedUser returns the shadow row for a remote user, creating it
// on first contact. The display name is refreshed when the remote side
// reports a different one.
func (s *GORMStore) EnsureFederatedUser(ctx context.Context, username, domain, displayName string) (*models.User, error) {
	user, err := s.GetUserByAddress(ctx, username, domain)
	if err == nil {
		if displayName != "" && user.DisplayName != displayName {
			user.DisplayName = displayName
			if err := s.db.WithContext(ctx).Model(user).Update("display_name", displayName).Error; err != nil {
				return nil, err
			}
		}
		return user, nil
	}
	if !errors.Is(err, models.ErrUserNotFound) {
		return nil, err
	}

	user = &models.User{
		Username:    username,
		HomeDomain:  domain,
		DisplayName: displayName,
		Federated:   true,
		Active:      true,
	}
	if err := s.CreateUser(ctx, user); err != nil {
		// Lost a race against a concurrent inbound delivery.
		if errors.Is(err, models.ErrDuplicateUser) {
			return s.GetUserByAddress(ctx, username, domain)
		}
		return nil, err
	}
	return user, nil
}

// ListUsers retrieves all users ordered by ID.
func (s *GORMStore) ListUsers(ctx context.Context) ([]*models.User, error) {
	return listAll[models.User](ctx, s.db, "id ASC")
}

// ListLocalUserIDs returns the IDs of all active local users.
func (s *GORMStore) ListLocalUserIDs(ctx context.Context) ([]int64, error) {
	var ids []int64
	err := s.db.WithContext(ctx).Model(&models.User{}).
		Where("home_domain = ? AND active = ?", "", true).
		Pluck("id", &ids).Error
	return ids, err
}

// UpdateUser persists changes to an existing user.
func (s *GORMStore) UpdateUser(ctx context.Context, user *models.User) error {
	result := s.db.WithContext(ctx).Model(user).Updates(map[string]any{
		"display_name": user.DisplayName,
		"avatar":       user.Avatar,
		"bio":          user.Bio,
		"nickname":     user.Nickname,
	})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return models.ErrUserNotFound
	}
	return nil
}

// SetUserActive marks a user active or deactivated. Deactivation also
// removes every session the user holds.
func (s *GORMStore) SetUserActive(ctx context.Context, id int64, active bool) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		result := tx.Model(&models.User{}).Where("id = ?", id).Update("active", active)
		if result.Error != nil {
			return result.Error
		}
		if result.RowsAffected == 0 {
			return models.ErrUserNotFound
		}
		if !active {
			return tx.Where("user_id = ?", id).Delete(&models.Session{}).Error
		}
		return nil
	})
}

// UpdatePassword replaces a user's password hash.
func (s *GORMStore) UpdatePassword(ctx context.Context, id int64, passwordHash string) error {
	result := s.db.WithContext(ctx).Model(&models.User{}).
		Where("id = ?", id).
		Update("password_hash", passwordHash)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return models.ErrUserNotFound
	}
	return nil
}

// UpdateLastLogin records a successful login time.
func (s *GORMStore) UpdateLastLogin(ctx context.Context, id int64, at time.Time) error {
	return s.db.WithContext(ctx).Model(&models.User{}).
		Where("id = ?", id).
		Update("last_login", at).Error
}

// ValidateCredentials checks a username and password pair for a local user.
// The password check runs even when the user does not exist so lookup
// failures are not distinguishable by timing.
func (s *GORMStore) ValidateCredentials(ctx context.Context, username, password string) (*models.User, error) {
	user, err := s.GetUserByUsername(ctx, username)
	if err != nil {
		models.BurnPasswordCheck(password)
		return nil, models.ErrInvalidCredentials
	}

	if !models.VerifyPassword(password, user.PasswordHash) {
		return nil, models.ErrInvalidCredentials
	}

	if !user.Active {
		return nil, models.ErrUserInactive
	}
	return user, nil
}

// ============================================================================
// Session Operations
// ============================================================================

// CreateSession inserts a new session row.
func (s *GORMStore) CreateSession(ctx context.Context, session *models.Session) error {
	return s.db.WithContext(ctx).Create(session).Error
}

// GetSessionByTokenHash retrieves a session by token hash. Expired sessions
// are deleted on access and reported as expired.
func (s *GORMStore) GetSessionByTokenHash(ctx context.Context, tokenHash string) (*models.Session, error) {
	session, err := getByField[models.Session](ctx, s.db, "token_hash", tokenHash, models.ErrSessionNotFound)
	if err != nil {
		return nil, err
	}
	if session.Expired(time.Now()) {
		_ = s.db.WithContext(ctx).Delete(session).Error
		return nil, models.ErrSessionExpired
	}
	return session, nil
}

// DeleteSessionByTokenHash removes a single session.
func (s *GORMStore) DeleteSessionByTokenHash(ctx context.Context, tokenHash string) error {
	return deleteByField[models.Session](ctx, s.db, "token_hash", tokenHash)
}

// DeleteUserSessions removes all sessions for a user.
func (s *GORMStore) DeleteUserSessions(ctx context.Context, userID int64) error {
	return deleteByField[models.Session](ctx, s.db, "user_id", userID)
}

// DeleteExpiredSessions removes sessions past their expiry and reports how
// many were removed.
func (s *GORMStore) DeleteExpiredSessions(ctx context.Context) (int64, error) {
	return deleteWhere[models.Session](ctx, s.db, "expires_at < ?", time.Now())
}

// ============================================================================
// Bootstrap
// ============================================================================

// EnsureDefaultRoles creates the @everyone and Admin roles when missing and
// backfills @everyone membership for existing users. It is safe to call on
// every startup.
func (s *GORMStore) EnsureDefaultRoles(ctx context.Context) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var everyone models.Role
		err := tx.Where("position = ?", 0).First(&everyone).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			everyone = models.Role{
				Name:        "everyone",
				Position:    0,
				Permissions: int64(permissions.EveryoneDefaults),
			}
			if err := tx.Create(&everyone).Error; err != nil {
				return fmt.Errorf("failed to create everyone role: %w", err)
			}
		} else if err != nil {
			return err
		}

		var admin models.Role
		err = tx.Where("name = ? AND position <> ?", "Admin", 0).First(&admin).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			admin = models.Role{
				Name:        "Admin",
				Position:    1,
				Permissions: int64(permissions.Administrator),
			}
			if err := tx.Create(&admin).Error; err != nil {
				return fmt.Errorf("failed to create admin role: %w", err)
			}
		} else if err != nil {
			return err
		}

		var userIDs []int64
		if err := tx.Model(&models.User{}).Pluck("id", &userIDs).Error; err != nil {
			return err
		}
		for _, id := range userIDs {
			member := models.RoleMember{RoleID: everyone.ID, UserID: id}
			if err := tx.Clauses(clause.OnConflict{DoNothing: true}).Create(&member).Error; err != nil {
				return err
			}
		}
		return nil
	})
}

// EnsureAdminUser creates the admin user on first startup and grants it the
// Admin role. Returns the generated initial password when the user was
// created, or empty when it already existed.
func (s *GORMStore) EnsureAdminUser(ctx context.Context) (string, error) {
	if err := s.EnsureDefaultRoles(ctx); err != nil {
		return "", err
	}

	_, err := s.GetUserByUsername(ctx, models.AdminUsername)
	if err == nil {
		return "", nil
	}
	if !errors.Is(err, models.ErrUserNotFound) {
		return "", err
	}

	password, err := models.GetOrGenerateAdminPassword()
	if err != nil {
		return "", fmt.Errorf("failed to generate admin password: %w", err)
	}

	hash, err := models.HashPassword(password)
	if err != nil {
		return "", fmt.Errorf("failed to hash admin password: %w", err)
	}

	admin := models.DefaultAdminUser(hash)
	if err := s.CreateUser(ctx, admin); err != nil {
		// Another replica created it between our check and insert.
		if errors.Is(err, models.ErrDuplicateUser) {
			return "", nil
		}
		return "", fmt.Errorf("failed to create admin user: %w", err)
	}

	var adminRole models.Role
	if err := s.db.WithContext(ctx).Where("name = ? AND position <> ?", "Admin", 0).First(&adminRole).Error; err != nil {
		return "", fmt.Errorf("failed to look up admin role: %w", err)
	}
	if err := s.AssignRole(ctx, adminRole.ID, admin.ID); err != nil {
		return "", fmt.Errorf("failed to assign admin role: %w", err)
	}

	return password, nil
}
