package store

import (
	"context"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/cmorg789/vox/pkg/models"
)

// ============================================================================
// Device Operations
// ============================================================================

// RegisterDevice inserts a new E2EE device.
func (s *GORMStore) RegisterDevice(ctx context.Context, device *models.Device) error {
	return createRecord(ctx, s.db, device, models.ErrDuplicateDevice)
}

// GetDevice retrieves a device by ID.
func (s *GORMStore) GetDevice(ctx context.Context, id string) (*models.Device, error) {
	return getByField[models.Device](ctx, s.db, "id", id, models.ErrDeviceNotFound)
}

// ListUserDevices retrieves a user's registered devices.
func (s *GORMStore) ListUserDevices(ctx context.Context, userID int64) ([]*models.Device, error) {
	return listByField[models.Device](ctx, s.db, "user_id", userID, "created_at ASC")
}

// CountUserDevices returns how many devices a user has registered.
func (s *GORMStore) CountUserDevices(ctx context.Context, userID int64) (int64, error) {
	var count int64
	err := s.db.WithContext(ctx).Model(&models.Device{}).
		Where("user_id = ?", userID).
		Count(&count).Error
	return count, err
}

// DeleteDevice removes a device and its key material.
func (s *GORMStore) DeleteDevice(ctx context.Context, id string) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		result := tx.Where("id = ?", id).Delete(&models.Device{})
		if result.Error != nil {
			return result.Error
		}
		if result.RowsAffected == 0 {
			return models.ErrDeviceNotFound
		}
		if err := tx.Where("device_id = ?", id).Delete(&models.Prekey{}).Error; err != nil {
			return err
		}
		return tx.Where("device_id = ?", id).Delete(&models.OneTimePrekey{}).Error
	})
}

// ============================================================================
// Prekey Operations
// ============================================================================

// SetPrekeys stores or replaces a device's long-lived key bundle.
func (s *GORMStore) SetPrekeys(ctx context.Context, prekey *models.Prekey) error {
	return s.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "device_id"}},
			DoUpdates: clause.AssignmentColumns([]string{"identity_key", "signed_prekey"}),
		}).
		Create(prekey).Error
}

// GetPrekeys retrieves a device's long-lived key bundle.
func (s *GORMStore) GetPrekeys(ctx context.Context, deviceID string) (*models.Prekey, error) {
	return getByField[models.Prekey](ctx, s.db, "device_id", deviceID, models.ErrPrekeyNotFound)
}

// AddOneTimePrekeys appends a batch of single-use keys for a device.
func (s *GORMStore) AddOneTimePrekeys(ctx context.Context, deviceID string, keys []string) error {
	if len(keys) == 0 {
		return nil
	}
	rows := make([]models.OneTimePrekey, 0, len(keys))
	for _, key := range keys {
		rows = append(rows, models.OneTimePrekey{DeviceID: deviceID, KeyData: key})
	}
	return s.db.WithContext(ctx).Create(&rows).Error
}

// ClaimOneTimePrekey atomically removes and returns one single-use key for
// a device. Returns ErrPrekeyNotFound when the device has none left.
func (s *GORMStore) ClaimOneTimePrekey(ctx context.Context, deviceID string) (string, error) {
	var claimed models.OneTimePrekey
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		err := tx.Where("device_id = ?", deviceID).
			Order("id ASC").
			First(&claimed).Error
		if err != nil {
			return convertNotFoundError(err, models.ErrPrekeyNotFound)
		}
		return tx.Delete(&models.OneTimePrekey{}, claimed.ID).Error
	})
	if err != nil {
		return "", err
	}
	return claimed.KeyData, nil
}

// CountOneTimePrekeys returns how many single-use keys a device has left.
func (s *GORMStore) CountOneTimePrekeys(ctx context.Context, deviceID string) (int64, error) {
	var count int64
	err := s.db.WithContext(ctx).Model(&models.OneTimePrekey{}).
		Where("device_id = ?", deviceID).
		Count(&count).Error
	return count, err
}

// ============================================================================
// Key Backup Operations
// ============================================================================

// SetKeyBackup stores or replaces a user's encrypted key backup.
func (s *GORMStore) SetKeyBackup(ctx context.Context, userID int64, blob string) error {
	backup := models.KeyBackup{UserID: userID, EncryptedBlob: blob}
	return s.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "user_id"}},
			DoUpdates: clause.AssignmentColumns([]string{"encrypted_blob"}),
		}).
		Create(&backup).Error
}

// GetKeyBackup retrieves a user's encrypted key backup.
func (s *GORMStore) GetKeyBackup(ctx context.Context, userID int64) (string, error) {
	backup, err := getByField[models.KeyBackup](ctx, s.db, "user_id", userID, models.ErrBackupNotFound)
	if err != nil {
		return "", err
	}
	return backup.EncryptedBlob, nil
}

// DeleteKeyBackup removes a user's encrypted key backup.
func (s *GORMStore) DeleteKeyBackup(ctx context.Context, userID int64) error {
	return deleteByField[models.KeyBackup](ctx, s.db, "user_id", userID)
}
