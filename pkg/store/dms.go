package store

import (
	"context"
	"errors"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/cmorg789/vox/pkg/models"
)

// ============================================================================
// DM Operations
// ============================================================================

// CreateDM inserts a conversation with its initial participants.
func (s *GORMStore) CreateDM(ctx context.Context, dm *models.DM, participantIDs []int64) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(dm).Error; err != nil {
			return err
		}
		for _, userID := range participantIDs {
			p := models.DMParticipant{DMID: dm.ID, UserID: userID}
			if err := tx.Clauses(clause.OnConflict{DoNothing: true}).Create(&p).Error; err != nil {
				return err
			}
		}
		return nil
	})
}

// GetDM retrieves a conversation by ID.
func (s *GORMStore) GetDM(ctx context.Context, id int64) (*models.DM, error) {
	return getByField[models.DM](ctx, s.db, "id", id, models.ErrDMNotFound)
}

// FindDirectDM locates the existing 1:1 conversation between two users, if
// any. Group conversations never match.
func (s *GORMStore) FindDirectDM(ctx context.Context, userA, userB int64) (*models.DM, error) {
	var dm models.DM
	err := s.db.WithContext(ctx).
		Joins("JOIN dm_participants a ON a.dm_id = dms.id AND a.user_id = ?", userA).
		Joins("JOIN dm_participants b ON b.dm_id = dms.id AND b.user_id = ?", userB).
		Where("dms.is_group = ?", false).
		First(&dm).Error
	if err != nil {
		return nil, convertNotFoundError(err, models.ErrDMNotFound)
	}
	return &dm, nil
}

// ListUserDMs retrieves every conversation a user participates in, newest
// first.
func (s *GORMStore) ListUserDMs(ctx context.Context, userID int64) ([]*models.DM, error) {
	var dms []*models.DM
	err := s.db.WithContext(ctx).
		Joins("JOIN dm_participants ON dm_participants.dm_id = dms.id").
		Where("dm_participants.user_id = ?", userID).
		Order("dms.id DESC").
		Find(&dms).Error
	if err != nil {
		return nil, err
	}
	return dms, nil
}

// UpdateDM persists name and icon changes to a group conversation.
func (s *GORMStore) UpdateDM(ctx context.Context, dm *models.DM) error {
	result := s.db.WithContext(ctx).Model(dm).Updates(map[string]any{
		"name": dm.Name,
		"icon": dm.Icon,
	})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return models.ErrDMNotFound
	}
	return nil
}

// ListDMParticipantIDs returns the members of a conversation.
func (s *GORMStore) ListDMParticipantIDs(ctx context.Context, dmID int64) ([]int64, error) {
	var ids []int64
	err := s.db.WithContext(ctx).Model(&models.DMParticipant{}).
		Where("dm_id = ?", dmID).
		Pluck("user_id", &ids).Error
	return ids, err
}

// IsDMParticipant reports whether a user belongs to a conversation.
func (s *GORMStore) IsDMParticipant(ctx context.Context, dmID, userID int64) (bool, error) {
	var count int64
	err := s.db.WithContext(ctx).Model(&models.DMParticipant{}).
		Where("dm_id = ? AND user_id = ?", dmID, userID).
		Count(&count).Error
	return count > 0, err
}

// AddDMParticipant adds a user to a group conversation. Idempotent.
func (s *GORMStore) AddDMParticipant(ctx context.Context, dmID, userID int64) error {
	return upsertIgnore(ctx, s.db, &models.DMParticipant{DMID: dmID, UserID: userID})
}

// RemoveDMParticipant removes a user from a group conversation.
func (s *GORMStore) RemoveDMParticipant(ctx context.Context, dmID, userID int64) error {
	result := s.db.WithContext(ctx).
		Where("dm_id = ? AND user_id = ?", dmID, userID).
		Delete(&models.DMParticipant{})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return models.ErrNotParticipant
	}
	return nil
}

// GetDMSettings retrieves a user's DM privacy settings, falling back to the
// default when none are stored.
func (s *GORMStore) GetDMSettings(ctx context.Context, userID int64) (*models.DMSettings, error) {
	settings, err := getByField[models.DMSettings](ctx, s.db, "user_id", userID, models.ErrSettingNotFound)
	if errors.Is(err, models.ErrSettingNotFound) {
		return &models.DMSettings{UserID: userID, DMPermission: models.DMPermissionEveryone}, nil
	}
	if err != nil {
		return nil, err
	}
	return settings, nil
}

// SetDMSettings stores a user's DM privacy settings.
func (s *GORMStore) SetDMSettings(ctx context.Context, settings *models.DMSettings) error {
	return s.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "user_id"}},
			DoUpdates: clause.AssignmentColumns([]string{"dm_permission"}),
		}).
		Create(settings).Error
}
