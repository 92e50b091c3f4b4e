package store

import (
	"context"

	"gorm.io/gorm/clause"

	"github.com/cmorg789/vox/pkg/models"
)

// ============================================================================
// Settings Operations
// ============================================================================

// GetSetting retrieves a configuration value by key.
func (s *GORMStore) GetSetting(ctx context.Context, key string) (string, error) {
	setting, err := getByField[models.Setting](ctx, s.db, "key", key, models.ErrSettingNotFound)
	if err != nil {
		return "", err
	}
	return setting.Value, nil
}

// SetSetting stores a configuration value, replacing any existing value for
// the key.
func (s *GORMStore) SetSetting(ctx context.Context, key, value string) error {
	setting := models.Setting{Key: key, Value: value}
	return s.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "key"}},
			DoUpdates: clause.AssignmentColumns([]string{"value", "updated_at"}),
		}).
		Create(&setting).Error
}

// DeleteSetting removes a configuration value. Deleting a missing key is not
// an error.
func (s *GORMStore) DeleteSetting(ctx context.Context, key string) error {
	return deleteByField[models.Setting](ctx, s.db, "key", key)
}

// ListSettings retrieves all configuration rows with sensitive values
// redacted. Used by the admin settings endpoint.
func (s *GORMStore) ListSettings(ctx context.Context) (map[string]string, error) {
	settings, err := listAll[models.Setting](ctx, s.db, "key ASC")
	if err != nil {
		return nil, err
	}
	out := make(map[string]string, len(settings))
	for _, setting := range settings {
		if _, sensitive := models.SensitiveSettings[setting.Key]; sensitive {
			out[setting.Key] = "[redacted]"
			continue
		}
		out[setting.Key] = setting.Value
	}
	return out, nil
}
