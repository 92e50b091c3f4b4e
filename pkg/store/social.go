package store

import (
	"context"

	"gorm.io/gorm"

	"github.com/cmorg789/vox/pkg/models"
)

// ============================================================================
// Friend Operations
// ============================================================================

// CreateFriendRequest records a pending request from one user to another.
// Fails when a relation in either direction already exists.
func (s *GORMStore) CreateFriendRequest(ctx context.Context, userID, friendID int64) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var count int64
		err := tx.Model(&models.Friend{}).
			Where("(user_id = ? AND friend_id = ?) OR (user_id = ? AND friend_id = ?)",
				userID, friendID, friendID, userID).
			Count(&count).Error
		if err != nil {
			return err
		}
		if count > 0 {
			return models.ErrDuplicateFriend
		}
		row := models.Friend{UserID: userID, FriendID: friendID, Status: models.FriendStatusPending}
		return tx.Create(&row).Error
	})
}

// AcceptFriendRequest flips a pending request to accepted and mirrors the
// reverse row so both directions read as friends.
func (s *GORMStore) AcceptFriendRequest(ctx context.Context, userID, requesterID int64) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		result := tx.Model(&models.Friend{}).
			Where("user_id = ? AND friend_id = ? AND status = ?",
				requesterID, userID, models.FriendStatusPending).
			Update("status", models.FriendStatusAccepted)
		if result.Error != nil {
			return result.Error
		}
		if result.RowsAffected == 0 {
			return models.ErrUserNotFound
		}
		mirror := models.Friend{UserID: userID, FriendID: requesterID, Status: models.FriendStatusAccepted}
		return tx.Where("user_id = ? AND friend_id = ?", userID, requesterID).
			FirstOrCreate(&mirror).Error
	})
}

// RemoveFriend deletes the relation in both directions. Also used to reject
// a pending request.
func (s *GORMStore) RemoveFriend(ctx context.Context, userID, friendID int64) error {
	return s.db.WithContext(ctx).
		Where("(user_id = ? AND friend_id = ?) OR (user_id = ? AND friend_id = ?)",
			userID, friendID, friendID, userID).
		Delete(&models.Friend{}).Error
}

// ListFriends retrieves a user's accepted friend relations.
func (s *GORMStore) ListFriends(ctx context.Context, userID int64) ([]*models.Friend, error) {
	var rows []*models.Friend
	err := s.db.WithContext(ctx).
		Where("user_id = ? AND status = ?", userID, models.FriendStatusAccepted).
		Order("friend_id ASC").
		Find(&rows).Error
	if err != nil {
		return nil, err
	}
	return rows, nil
}

// ListPendingFriendRequests retrieves requests awaiting the user's answer.
func (s *GORMStore) ListPendingFriendRequests(ctx context.Context, userID int64) ([]*models.Friend, error) {
	var rows []*models.Friend
	err := s.db.WithContext(ctx).
		Where("friend_id = ? AND status = ?", userID, models.FriendStatusPending).
		Order("created_at ASC").
		Find(&rows).Error
	if err != nil {
		return nil, err
	}
	return rows, nil
}

// AreFriends reports whether two users have an accepted relation.
func (s *GORMStore) AreFriends(ctx context.Context, userA, userB int64) (bool, error) {
	var count int64
	err := s.db.WithContext(ctx).Model(&models.Friend{}).
		Where("user_id = ? AND friend_id = ? AND status = ?",
			userA, userB, models.FriendStatusAccepted).
		Count(&count).Error
	return count > 0, err
}

// ============================================================================
// Block Operations
// ============================================================================

// AddBlock records a block. Idempotent. Any friend relation between the two
// users is removed at the same time.
func (s *GORMStore) AddBlock(ctx context.Context, userID, blockedID int64) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		err := tx.Create(&models.Block{UserID: userID, BlockedID: blockedID}).Error
		if err != nil && !isUniqueConstraintError(err) {
			return err
		}
		return tx.Where("(user_id = ? AND friend_id = ?) OR (user_id = ? AND friend_id = ?)",
			userID, blockedID, blockedID, userID).
			Delete(&models.Friend{}).Error
	})
}

// RemoveBlock deletes a block.
func (s *GORMStore) RemoveBlock(ctx context.Context, userID, blockedID int64) error {
	return s.db.WithContext(ctx).
		Where("user_id = ? AND blocked_id = ?", userID, blockedID).
		Delete(&models.Block{}).Error
}

// ListBlockedIDs returns the users a user has blocked.
func (s *GORMStore) ListBlockedIDs(ctx context.Context, userID int64) ([]int64, error) {
	var ids []int64
	err := s.db.WithContext(ctx).Model(&models.Block{}).
		Where("user_id = ?", userID).
		Order("blocked_id ASC").
		Pluck("blocked_id", &ids).Error
	return ids, err
}

// IsBlocked reports whether either user has blocked the other.
func (s *GORMStore) IsBlocked(ctx context.Context, userA, userB int64) (bool, error) {
	var count int64
	err := s.db.WithContext(ctx).Model(&models.Block{}).
		Where("(user_id = ? AND blocked_id = ?) OR (user_id = ? AND blocked_id = ?)",
			userA, userB, userB, userA).
		Count(&count).Error
	return count > 0, err
}
