package store

import (
	"context"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/cmorg789/vox/pkg/models"
)

// ============================================================================
// Category Operations
// ============================================================================

// CreateCategory inserts a new category.
func (s *GORMStore) CreateCategory(ctx context.Context, category *models.Category) error {
	return s.db.WithContext(ctx).Create(category).Error
}

// GetCategory retrieves a category by ID.
func (s *GORMStore) GetCategory(ctx context.Context, id int64) (*models.Category, error) {
	return getByField[models.Category](ctx, s.db, "id", id, models.ErrCategoryNotFound)
}

// ListCategories retrieves all categories ordered by position.
func (s *GORMStore) ListCategories(ctx context.Context) ([]*models.Category, error) {
	return listAll[models.Category](ctx, s.db, "position ASC, id ASC")
}

// UpdateCategory persists changes to a category.
func (s *GORMStore) UpdateCategory(ctx context.Context, category *models.Category) error {
	result := s.db.WithContext(ctx).Model(category).Updates(map[string]any{
		"name":     category.Name,
		"position": category.Position,
	})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return models.ErrCategoryNotFound
	}
	return nil
}

// DeleteCategory removes a category. Feeds and rooms in it are detached
// rather than deleted.
func (s *GORMStore) DeleteCategory(ctx context.Context, id int64) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Model(&models.Feed{}).Where("category_id = ?", id).Update("category_id", nil).Error; err != nil {
			return err
		}
		if err := tx.Model(&models.Room{}).Where("category_id = ?", id).Update("category_id", nil).Error; err != nil {
			return err
		}
		result := tx.Delete(&models.Category{}, id)
		if result.Error != nil {
			return result.Error
		}
		if result.RowsAffected == 0 {
			return models.ErrCategoryNotFound
		}
		return nil
	})
}

// ============================================================================
// Feed Operations
// ============================================================================

// CreateFeed inserts a new feed.
func (s *GORMStore) CreateFeed(ctx context.Context, feed *models.Feed) error {
	return s.db.WithContext(ctx).Create(feed).Error
}

// GetFeed retrieves a feed by ID.
func (s *GORMStore) GetFeed(ctx context.Context, id int64) (*models.Feed, error) {
	return getByField[models.Feed](ctx, s.db, "id", id, models.ErrChannelNotFound)
}

// ListFeeds retrieves all feeds ordered by position.
func (s *GORMStore) ListFeeds(ctx context.Context) ([]*models.Feed, error) {
	return listAll[models.Feed](ctx, s.db, "position ASC, id ASC")
}

// UpdateFeed persists changes to a feed.
func (s *GORMStore) UpdateFeed(ctx context.Context, feed *models.Feed) error {
	result := s.db.WithContext(ctx).Model(feed).Updates(map[string]any{
		"name":        feed.Name,
		"topic":       feed.Topic,
		"category_id": feed.CategoryID,
		"position":    feed.Position,
	})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return models.ErrChannelNotFound
	}
	return nil
}

// DeleteFeed removes a feed together with its dependent rows.
func (s *GORMStore) DeleteFeed(ctx context.Context, id int64) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		result := tx.Delete(&models.Feed{}, id)
		if result.Error != nil {
			return result.Error
		}
		if result.RowsAffected == 0 {
			return models.ErrChannelNotFound
		}
		if err := tx.Where("feed_id = ?", id).Delete(&models.Thread{}).Error; err != nil {
			return err
		}
		if err := tx.Where("feed_id = ?", id).Delete(&models.FeedReadState{}).Error; err != nil {
			return err
		}
		if err := tx.Where("feed_id = ?", id).Delete(&models.FeedSubscriber{}).Error; err != nil {
			return err
		}
		return tx.Where("space_type = ? AND space_id = ?", "feed", id).
			Delete(&models.PermissionOverride{}).Error
	})
}

// ============================================================================
// Room Operations
// ============================================================================

// CreateRoom inserts a new room.
func (s *GORMStore) CreateRoom(ctx context.Context, room *models.Room) error {
	return s.db.WithContext(ctx).Create(room).Error
}

// GetRoom retrieves a room by ID.
func (s *GORMStore) GetRoom(ctx context.Context, id int64) (*models.Room, error) {
	return getByField[models.Room](ctx, s.db, "id", id, models.ErrChannelNotFound)
}

// ListRooms retrieves all rooms ordered by position.
func (s *GORMStore) ListRooms(ctx context.Context) ([]*models.Room, error) {
	return listAll[models.Room](ctx, s.db, "position ASC, id ASC")
}

// UpdateRoom persists changes to a room.
func (s *GORMStore) UpdateRoom(ctx context.Context, room *models.Room) error {
	result := s.db.WithContext(ctx).Model(room).Updates(map[string]any{
		"name":        room.Name,
		"topic":       room.Topic,
		"category_id": room.CategoryID,
		"position":    room.Position,
	})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return models.ErrChannelNotFound
	}
	return nil
}

// DeleteRoom removes a room, evicting anyone connected to it.
func (s *GORMStore) DeleteRoom(ctx context.Context, id int64) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		result := tx.Delete(&models.Room{}, id)
		if result.Error != nil {
			return result.Error
		}
		if result.RowsAffected == 0 {
			return models.ErrChannelNotFound
		}
		if err := tx.Where("room_id = ?", id).Delete(&models.VoiceState{}).Error; err != nil {
			return err
		}
		if err := tx.Where("room_id = ?", id).Delete(&models.StageSpeaker{}).Error; err != nil {
			return err
		}
		return tx.Where("space_type = ? AND space_id = ?", "room", id).
			Delete(&models.PermissionOverride{}).Error
	})
}

// ============================================================================
// Voice State Operations
// ============================================================================

// UpsertVoiceState records a user's room membership, replacing any previous
// row. A user can only ever be in one room.
func (s *GORMStore) UpsertVoiceState(ctx context.Context, state *models.VoiceState) error {
	return s.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns: []clause.Column{{Name: "user_id"}},
			DoUpdates: clause.AssignmentColumns([]string{
				"room_id", "self_mute", "self_deaf", "video", "streaming",
			}),
		}).
		Create(state).Error
}

// GetVoiceState retrieves a user's voice state.
func (s *GORMStore) GetVoiceState(ctx context.Context, userID int64) (*models.VoiceState, error) {
	return getByField[models.VoiceState](ctx, s.db, "user_id", userID, models.ErrVoiceStateMissing)
}

// RemoveVoiceState deletes a user's voice state. Removing a state that does
// not exist is not an error; disconnect paths call this unconditionally.
func (s *GORMStore) RemoveVoiceState(ctx context.Context, userID int64) error {
	return deleteByField[models.VoiceState](ctx, s.db, "user_id", userID)
}

// SetServerVoiceFlags applies moderator mute/deafen to a user's voice state.
func (s *GORMStore) SetServerVoiceFlags(ctx context.Context, userID int64, mute, deaf bool) error {
	result := s.db.WithContext(ctx).Model(&models.VoiceState{}).
		Where("user_id = ?", userID).
		Updates(map[string]any{"server_mute": mute, "server_deaf": deaf})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return models.ErrVoiceStateMissing
	}
	return nil
}

// ListRoomVoiceStates retrieves all voice states in a room.
func (s *GORMStore) ListRoomVoiceStates(ctx context.Context, roomID int64) ([]*models.VoiceState, error) {
	return listByField[models.VoiceState](ctx, s.db, "room_id", roomID, "joined_at ASC")
}

// ListRoomMemberIDs returns the user IDs currently in a room.
func (s *GORMStore) ListRoomMemberIDs(ctx context.Context, roomID int64) ([]int64, error) {
	var ids []int64
	err := s.db.WithContext(ctx).Model(&models.VoiceState{}).
		Where("room_id = ?", roomID).
		Pluck("user_id", &ids).Error
	return ids, err
}

// ============================================================================
// Stage Speaker Operations
// ============================================================================

// AddStageSpeaker grants a user the floor in a stage room. Idempotent.
func (s *GORMStore) AddStageSpeaker(ctx context.Context, roomID, userID int64) error {
	return upsertIgnore(ctx, s.db, &models.StageSpeaker{RoomID: roomID, UserID: userID})
}

// RemoveStageSpeaker revokes a user's floor grant.
func (s *GORMStore) RemoveStageSpeaker(ctx context.Context, roomID, userID int64) error {
	return s.db.WithContext(ctx).
		Where("room_id = ? AND user_id = ?", roomID, userID).
		Delete(&models.StageSpeaker{}).Error
}

// ListStageSpeakerIDs returns the users holding the floor in a stage room.
func (s *GORMStore) ListStageSpeakerIDs(ctx context.Context, roomID int64) ([]int64, error) {
	var ids []int64
	err := s.db.WithContext(ctx).Model(&models.StageSpeaker{}).
		Where("room_id = ?", roomID).
		Order("granted_at ASC").
		Pluck("user_id", &ids).Error
	return ids, err
}

// ============================================================================
// Thread Operations
// ============================================================================

// CreateThread inserts a new thread.
func (s *GORMStore) CreateThread(ctx context.Context, thread *models.Thread) error {
	return s.db.WithContext(ctx).Create(thread).Error
}

// GetThread retrieves a thread by ID.
func (s *GORMStore) GetThread(ctx context.Context, id int64) (*models.Thread, error) {
	return getByField[models.Thread](ctx, s.db, "id", id, models.ErrThreadNotFound)
}

// ListFeedThreads retrieves threads rooted in a feed, newest first.
func (s *GORMStore) ListFeedThreads(ctx context.Context, feedID int64, includeArchived bool) ([]*models.Thread, error) {
	var threads []*models.Thread
	query := s.db.WithContext(ctx).Where("feed_id = ?", feedID)
	if !includeArchived {
		query = query.Where("archived = ?", false)
	}
	if err := query.Order("id DESC").Find(&threads).Error; err != nil {
		return nil, err
	}
	return threads, nil
}

// UpdateThread persists changes to a thread.
func (s *GORMStore) UpdateThread(ctx context.Context, thread *models.Thread) error {
	result := s.db.WithContext(ctx).Model(thread).Updates(map[string]any{
		"name":     thread.Name,
		"archived": thread.Archived,
		"locked":   thread.Locked,
	})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return models.ErrThreadNotFound
	}
	return nil
}

// DeleteThread removes a thread and its subscriber rows.
func (s *GORMStore) DeleteThread(ctx context.Context, id int64) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		result := tx.Delete(&models.Thread{}, id)
		if result.Error != nil {
			return result.Error
		}
		if result.RowsAffected == 0 {
			return models.ErrThreadNotFound
		}
		return tx.Where("thread_id = ?", id).Delete(&models.ThreadSubscriber{}).Error
	})
}
