package store

import (
	"context"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/cmorg789/vox/pkg/models"
)

// ============================================================================
// Message Operations
// ============================================================================

// CreateMessage inserts a message. The caller assigns the snowflake ID and
// timestamp before insert.
func (s *GORMStore) CreateMessage(ctx context.Context, msg *models.Message) error {
	return s.db.WithContext(ctx).Create(msg).Error
}

// GetMessage retrieves a message by ID.
func (s *GORMStore) GetMessage(ctx context.Context, id int64) (*models.Message, error) {
	return getByField[models.Message](ctx, s.db, "id", id, models.ErrMessageNotFound)
}

// MessageQuery selects a message page. Exactly one of FeedID, DMID, or
// ThreadID scopes the query; Before and After page by snowflake ID.
type MessageQuery struct {
	FeedID   *int64
	DMID     *int64
	ThreadID *int64
	Before   int64
	After    int64
	Limit    int
}

// ListMessages retrieves a page of messages, newest first.
func (s *GORMStore) ListMessages(ctx context.Context, q MessageQuery) ([]*models.Message, error) {
	query := s.db.WithContext(ctx).Model(&models.Message{})

	switch {
	case q.ThreadID != nil:
		query = query.Where("thread_id = ?", *q.ThreadID)
	case q.FeedID != nil:
		// Top-level feed history excludes messages that live in threads.
		query = query.Where("feed_id = ? AND thread_id IS NULL", *q.FeedID)
	case q.DMID != nil:
		query = query.Where("dm_id = ?", *q.DMID)
	}

	if q.Before > 0 {
		query = query.Where("id < ?", q.Before)
	}
	if q.After > 0 {
		query = query.Where("id > ?", q.After)
	}

	limit := q.Limit
	if limit <= 0 {
		limit = 50
	}

	var msgs []*models.Message
	if err := query.Order("id DESC").Limit(limit).Find(&msgs).Error; err != nil {
		return nil, err
	}
	return msgs, nil
}

// UpdateMessageBody replaces a message body and records the edit time.
func (s *GORMStore) UpdateMessageBody(ctx context.Context, id int64, body *string, editTimestamp int64) error {
	result := s.db.WithContext(ctx).Model(&models.Message{}).
		Where("id = ?", id).
		Updates(map[string]any{"body": body, "edit_timestamp": editTimestamp})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return models.ErrMessageNotFound
	}
	return nil
}

// DeleteMessage removes a message and its reactions, pins, and attachment
// links.
func (s *GORMStore) DeleteMessage(ctx context.Context, id int64) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		result := tx.Delete(&models.Message{}, id)
		if result.Error != nil {
			return result.Error
		}
		if result.RowsAffected == 0 {
			return models.ErrMessageNotFound
		}
		return deleteMessageRefs(tx, []int64{id})
	})
}

// BulkDeleteMessages removes a batch of messages from one feed and reports
// which of them actually existed there.
func (s *GORMStore) BulkDeleteMessages(ctx context.Context, feedID int64, ids []int64) ([]int64, error) {
	if len(ids) == 0 {
		return nil, nil
	}

	var deleted []int64
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Model(&models.Message{}).
			Where("feed_id = ? AND id IN ?", feedID, ids).
			Pluck("id", &deleted).Error; err != nil {
			return err
		}
		if len(deleted) == 0 {
			return nil
		}
		if err := tx.Where("id IN ?", deleted).Delete(&models.Message{}).Error; err != nil {
			return err
		}
		return deleteMessageRefs(tx, deleted)
	})
	if err != nil {
		return nil, err
	}
	return deleted, nil
}

func deleteMessageRefs(tx *gorm.DB, ids []int64) error {
	if err := tx.Where("msg_id IN ?", ids).Delete(&models.Reaction{}).Error; err != nil {
		return err
	}
	if err := tx.Where("msg_id IN ?", ids).Delete(&models.Pin{}).Error; err != nil {
		return err
	}
	return tx.Where("msg_id IN ?", ids).Delete(&models.MessageAttachment{}).Error
}

// SearchMessages finds messages whose body contains the query text,
// optionally scoped to a feed or author, newest first.
func (s *GORMStore) SearchMessages(ctx context.Context, text string, feedID, authorID *int64, limit int) ([]*models.Message, error) {
	query := s.db.WithContext(ctx).Model(&models.Message{}).
		Where("body LIKE ?", "%"+text+"%")
	if feedID != nil {
		query = query.Where("feed_id = ?", *feedID)
	}
	if authorID != nil {
		query = query.Where("author_id = ?", *authorID)
	}
	if limit <= 0 {
		limit = 25
	}

	var msgs []*models.Message
	if err := query.Order("id DESC").Limit(limit).Find(&msgs).Error; err != nil {
		return nil, err
	}
	return msgs, nil
}

// ============================================================================
// Reaction Operations
// ============================================================================

// AddReaction records a user's reaction. Idempotent.
func (s *GORMStore) AddReaction(ctx context.Context, msgID, userID int64, emoji string) error {
	return upsertIgnore(ctx, s.db, &models.Reaction{MsgID: msgID, UserID: userID, Emoji: emoji})
}

// RemoveReaction deletes a user's reaction.
func (s *GORMStore) RemoveReaction(ctx context.Context, msgID, userID int64, emoji string) error {
	return s.db.WithContext(ctx).
		Where("msg_id = ? AND user_id = ? AND emoji = ?", msgID, userID, emoji).
		Delete(&models.Reaction{}).Error
}

// ListMessageReactions retrieves all reactions on a message.
func (s *GORMStore) ListMessageReactions(ctx context.Context, msgID int64) ([]*models.Reaction, error) {
	return listByField[models.Reaction](ctx, s.db, "msg_id", msgID, "emoji ASC")
}

// ============================================================================
// Pin Operations
// ============================================================================

// PinMessage marks a message as pinned in a feed. Idempotent.
func (s *GORMStore) PinMessage(ctx context.Context, feedID, msgID int64) error {
	return upsertIgnore(ctx, s.db, &models.Pin{FeedID: feedID, MsgID: msgID})
}

// UnpinMessage removes a pin.
func (s *GORMStore) UnpinMessage(ctx context.Context, feedID, msgID int64) error {
	return s.db.WithContext(ctx).
		Where("feed_id = ? AND msg_id = ?", feedID, msgID).
		Delete(&models.Pin{}).Error
}

// ListFeedPins retrieves the pinned messages of a feed, newest pin first.
func (s *GORMStore) ListFeedPins(ctx context.Context, feedID int64) ([]*models.Message, error) {
	var msgs []*models.Message
	err := s.db.WithContext(ctx).Model(&models.Message{}).
		Joins("JOIN pins ON pins.msg_id = messages.id").
		Where("pins.feed_id = ?", feedID).
		Order("pins.pinned_at DESC").
		Find(&msgs).Error
	if err != nil {
		return nil, err
	}
	return msgs, nil
}

// ============================================================================
// Read State Operations
// ============================================================================

// UpsertFeedReadState advances a user's read marker in a feed.
func (s *GORMStore) UpsertFeedReadState(ctx context.Context, userID, feedID, lastReadMsgID int64) error {
	return s.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "user_id"}, {Name: "feed_id"}},
			DoUpdates: clause.AssignmentColumns([]string{"last_read_msg_id"}),
		}).
		Create(&models.FeedReadState{UserID: userID, FeedID: feedID, LastReadMsgID: lastReadMsgID}).Error
}

// UpsertDMReadState advances a user's read marker in a DM.
func (s *GORMStore) UpsertDMReadState(ctx context.Context, userID, dmID, lastReadMsgID int64) error {
	return s.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "user_id"}, {Name: "dm_id"}},
			DoUpdates: clause.AssignmentColumns([]string{"last_read_msg_id"}),
		}).
		Create(&models.DMReadState{UserID: userID, DMID: dmID, LastReadMsgID: lastReadMsgID}).Error
}

// ListFeedReadStates retrieves all of a user's feed read markers.
func (s *GORMStore) ListFeedReadStates(ctx context.Context, userID int64) ([]*models.FeedReadState, error) {
	return listByField[models.FeedReadState](ctx, s.db, "user_id", userID, "feed_id ASC")
}

// ListDMReadStates retrieves all of a user's DM read markers.
func (s *GORMStore) ListDMReadStates(ctx context.Context, userID int64) ([]*models.DMReadState, error) {
	return listByField[models.DMReadState](ctx, s.db, "user_id", userID, "dm_id ASC")
}

// ============================================================================
// Subscription Operations
// ============================================================================

// SubscribeFeed opts a user into notifications for a feed. Idempotent.
func (s *GORMStore) SubscribeFeed(ctx context.Context, feedID, userID int64) error {
	return upsertIgnore(ctx, s.db, &models.FeedSubscriber{FeedID: feedID, UserID: userID})
}

// UnsubscribeFeed removes a feed subscription.
func (s *GORMStore) UnsubscribeFeed(ctx context.Context, feedID, userID int64) error {
	return s.db.WithContext(ctx).
		Where("feed_id = ? AND user_id = ?", feedID, userID).
		Delete(&models.FeedSubscriber{}).Error
}

// ListFeedSubscriberIDs returns the users subscribed to a feed.
func (s *GORMStore) ListFeedSubscriberIDs(ctx context.Context, feedID int64) ([]int64, error) {
	var ids []int64
	err := s.db.WithContext(ctx).Model(&models.FeedSubscriber{}).
		Where("feed_id = ?", feedID).
		Pluck("user_id", &ids).Error
	return ids, err
}

// SubscribeThread opts a user into notifications for a thread. Idempotent.
func (s *GORMStore) SubscribeThread(ctx context.Context, threadID, userID int64) error {
	return upsertIgnore(ctx, s.db, &models.ThreadSubscriber{ThreadID: threadID, UserID: userID})
}

// UnsubscribeThread removes a thread subscription.
func (s *GORMStore) UnsubscribeThread(ctx context.Context, threadID, userID int64) error {
	return s.db.WithContext(ctx).
		Where("thread_id = ? AND user_id = ?", threadID, userID).
		Delete(&models.ThreadSubscriber{}).Error
}

// ListThreadSubscriberIDs returns the users subscribed to a thread.
func (s *GORMStore) ListThreadSubscriberIDs(ctx context.Context, threadID int64) ([]int64, error) {
	var ids []int64
	err := s.db.WithContext(ctx).Model(&models.ThreadSubscriber{}).
		Where("thread_id = ?", threadID).
		Pluck("user_id", &ids).Error
	return ids, err
}

// ============================================================================
// Attachment Operations
// ============================================================================

// CreateAttachment records an uploaded file.
func (s *GORMStore) CreateAttachment(ctx context.Context, file *models.Attachment) error {
	return s.db.WithContext(ctx).Create(file).Error
}

// GetAttachment retrieves a file record by ID.
func (s *GORMStore) GetAttachment(ctx context.Context, id string) (*models.Attachment, error) {
	return getByField[models.Attachment](ctx, s.db, "id", id, models.ErrAttachmentNotFound)
}

// LinkAttachments associates uploaded files with a message.
func (s *GORMStore) LinkAttachments(ctx context.Context, msgID int64, fileIDs []string) error {
	for _, fileID := range fileIDs {
		link := models.MessageAttachment{MsgID: msgID, FileID: fileID}
		if err := upsertIgnore(ctx, s.db, &link); err != nil {
			return err
		}
	}
	return nil
}

// ListMessageAttachments retrieves the files attached to a message.
func (s *GORMStore) ListMessageAttachments(ctx context.Context, msgID int64) ([]*models.Attachment, error) {
	var files []*models.Attachment
	err := s.db.WithContext(ctx).Model(&models.Attachment{}).
		Joins("JOIN message_attachments ON message_attachments.file_id = files.id").
		Where("message_attachments.msg_id = ?", msgID).
		Find(&files).Error
	if err != nil {
		return nil, err
	}
	return files, nil
}
