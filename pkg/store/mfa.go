package store

import (
	"context"
	"errors"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/cmorg789/vox/pkg/models"
)

// ============================================================================
// TOTP Operations
// ============================================================================

// SetTOTPSecret stores a pending TOTP seed for a user, replacing any
// unconfirmed one.
func (s *GORMStore) SetTOTPSecret(ctx context.Context, userID int64, secret string) error {
	row := models.TOTPSecret{UserID: userID, Secret: secret, Enabled: false}
	return s.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "user_id"}},
			DoUpdates: clause.AssignmentColumns([]string{"secret", "enabled"}),
		}).
		Create(&row).Error
}

// GetTOTPSecret retrieves a user's TOTP record.
func (s *GORMStore) GetTOTPSecret(ctx context.Context, userID int64) (*models.TOTPSecret, error) {
	return getByField[models.TOTPSecret](ctx, s.db, "user_id", userID, models.ErrSettingNotFound)
}

// EnableTOTP marks a user's TOTP setup as confirmed.
func (s *GORMStore) EnableTOTP(ctx context.Context, userID int64) error {
	result := s.db.WithContext(ctx).Model(&models.TOTPSecret{}).
		Where("user_id = ?", userID).
		Update("enabled", true)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return models.ErrSettingNotFound
	}
	return nil
}

// DeleteTOTPSecret removes a user's TOTP seed and recovery codes.
func (s *GORMStore) DeleteTOTPSecret(ctx context.Context, userID int64) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("user_id = ?", userID).Delete(&models.TOTPSecret{}).Error; err != nil {
			return err
		}
		return tx.Where("user_id = ?", userID).Delete(&models.RecoveryCode{}).Error
	})
}

// ============================================================================
// WebAuthn Operations
// ============================================================================

// CreateWebAuthnCredential registers a passkey.
func (s *GORMStore) CreateWebAuthnCredential(ctx context.Context, cred *models.WebAuthnCredential) error {
	return s.db.WithContext(ctx).Create(cred).Error
}

// GetWebAuthnCredential retrieves a passkey by credential ID.
func (s *GORMStore) GetWebAuthnCredential(ctx context.Context, credentialID string) (*models.WebAuthnCredential, error) {
	return getByField[models.WebAuthnCredential](ctx, s.db, "credential_id", credentialID, models.ErrSettingNotFound)
}

// ListWebAuthnCredentials retrieves a user's passkeys.
func (s *GORMStore) ListWebAuthnCredentials(ctx context.Context, userID int64) ([]*models.WebAuthnCredential, error) {
	return listByField[models.WebAuthnCredential](ctx, s.db, "user_id", userID, "registered_at ASC")
}

// UpdateWebAuthnSignCount records a successful assertion.
func (s *GORMStore) UpdateWebAuthnSignCount(ctx context.Context, credentialID string, signCount int) error {
	now := time.Now()
	return s.db.WithContext(ctx).Model(&models.WebAuthnCredential{}).
		Where("credential_id = ?", credentialID).
		Updates(map[string]any{"sign_count": signCount, "last_used_at": now}).Error
}

// DeleteWebAuthnCredential removes a passkey.
func (s *GORMStore) DeleteWebAuthnCredential(ctx context.Context, credentialID string) error {
	return deleteByField[models.WebAuthnCredential](ctx, s.db, "credential_id", credentialID)
}

// CreateWebAuthnChallenge stores a pending ceremony.
func (s *GORMStore) CreateWebAuthnChallenge(ctx context.Context, challenge *models.WebAuthnChallenge) error {
	return s.db.WithContext(ctx).Create(challenge).Error
}

// ConsumeWebAuthnChallenge retrieves and deletes a pending ceremony.
// Expired challenges are deleted and reported as missing.
func (s *GORMStore) ConsumeWebAuthnChallenge(ctx context.Context, id string) (*models.WebAuthnChallenge, error) {
	var challenge models.WebAuthnChallenge
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("id = ?", id).First(&challenge).Error; err != nil {
			return convertNotFoundError(err, models.ErrSettingNotFound)
		}
		if err := tx.Delete(&models.WebAuthnChallenge{}, "id = ?", id).Error; err != nil {
			return err
		}
		if time.Now().After(challenge.ExpiresAt) {
			return models.ErrSettingNotFound
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &challenge, nil
}

// DeleteExpiredChallenges removes ceremonies past their expiry.
func (s *GORMStore) DeleteExpiredChallenges(ctx context.Context) (int64, error) {
	return deleteWhere[models.WebAuthnChallenge](ctx, s.db, "expires_at < ?", time.Now())
}

// ============================================================================
// Recovery Code Operations
// ============================================================================

// ReplaceRecoveryCodes swaps a user's recovery codes for a new hashed set.
func (s *GORMStore) ReplaceRecoveryCodes(ctx context.Context, userID int64, codeHashes []string) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("user_id = ?", userID).Delete(&models.RecoveryCode{}).Error; err != nil {
			return err
		}
		for _, hash := range codeHashes {
			row := models.RecoveryCode{UserID: userID, CodeHash: hash}
			if err := tx.Create(&row).Error; err != nil {
				return err
			}
		}
		return nil
	})
}

// ConsumeRecoveryCode marks an unused recovery code as spent. Returns
// ErrInvalidCredentials when no unused code matches the hash.
func (s *GORMStore) ConsumeRecoveryCode(ctx context.Context, userID int64, codeHash string) error {
	result := s.db.WithContext(ctx).Model(&models.RecoveryCode{}).
		Where("user_id = ? AND code_hash = ? AND used = ?", userID, codeHash, false).
		Update("used", true)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return models.ErrInvalidCredentials
	}
	return nil
}

// CountUnusedRecoveryCodes returns how many recovery codes a user has left.
func (s *GORMStore) CountUnusedRecoveryCodes(ctx context.Context, userID int64) (int64, error) {
	var count int64
	err := s.db.WithContext(ctx).Model(&models.RecoveryCode{}).
		Where("user_id = ? AND used = ?", userID, false).
		Count(&count).Error
	return count, err
}

// MFAStatus reports which second factors a user has active.
func (s *GORMStore) MFAStatus(ctx context.Context, userID int64) (totp bool, webauthn bool, err error) {
	secret, err := s.GetTOTPSecret(ctx, userID)
	if err != nil && !errors.Is(err, models.ErrSettingNotFound) {
		return false, false, err
	}
	totp = err == nil && secret.Enabled

	var credCount int64
	err = s.db.WithContext(ctx).Model(&models.WebAuthnCredential{}).
		Where("user_id = ?", userID).
		Count(&credCount).Error
	if err != nil {
		return false, false, err
	}
	return totp, credCount > 0, nil
}
