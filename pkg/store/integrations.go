package store

import (
	"context"

	"gorm.io/gorm"

	"github.com/cmorg789/vox/pkg/models"
)

// ============================================================================
// Webhook Operations
// ============================================================================

// CreateWebhook inserts a new webhook.
func (s *GORMStore) CreateWebhook(ctx context.Context, webhook *models.Webhook) error {
	return s.db.WithContext(ctx).Create(webhook).Error
}

// GetWebhook retrieves a webhook by ID.
func (s *GORMStore) GetWebhook(ctx context.Context, id int64) (*models.Webhook, error) {
	return getByField[models.Webhook](ctx, s.db, "id", id, models.ErrWebhookNotFound)
}

// GetWebhookByTokenHash authenticates an execution request by token hash.
func (s *GORMStore) GetWebhookByTokenHash(ctx context.Context, tokenHash string) (*models.Webhook, error) {
	return getByField[models.Webhook](ctx, s.db, "token_hash", tokenHash, models.ErrWebhookNotFound)
}

// ListFeedWebhooks retrieves the webhooks posting into a feed.
func (s *GORMStore) ListFeedWebhooks(ctx context.Context, feedID int64) ([]*models.Webhook, error) {
	return listByField[models.Webhook](ctx, s.db, "feed_id", feedID, "id ASC")
}

// UpdateWebhook persists name and avatar changes.
func (s *GORMStore) UpdateWebhook(ctx context.Context, webhook *models.Webhook) error {
	result := s.db.WithContext(ctx).Model(webhook).Updates(map[string]any{
		"name":   webhook.Name,
		"avatar": webhook.Avatar,
	})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return models.ErrWebhookNotFound
	}
	return nil
}

// DeleteWebhook removes a webhook.
func (s *GORMStore) DeleteWebhook(ctx context.Context, id int64) error {
	result := s.db.WithContext(ctx).Delete(&models.Webhook{}, id)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return models.ErrWebhookNotFound
	}
	return nil
}

// ============================================================================
// Bot Operations
// ============================================================================

// CreateBot inserts a bot record. The bot's user account must already
// exist.
func (s *GORMStore) CreateBot(ctx context.Context, bot *models.Bot) error {
	return s.db.WithContext(ctx).Create(bot).Error
}

// GetBot retrieves a bot by ID.
func (s *GORMStore) GetBot(ctx context.Context, id int64) (*models.Bot, error) {
	return getByField[models.Bot](ctx, s.db, "id", id, models.ErrBotNotFound)
}

// GetBotByUserID retrieves the bot owning a user account.
func (s *GORMStore) GetBotByUserID(ctx context.Context, userID int64) (*models.Bot, error) {
	return getByField[models.Bot](ctx, s.db, "user_id", userID, models.ErrBotNotFound)
}

// ListBots retrieves all bots.
func (s *GORMStore) ListBots(ctx context.Context) ([]*models.Bot, error) {
	return listAll[models.Bot](ctx, s.db, "id ASC")
}

// UpdateBotInteractionURL points a bot at a new outbound endpoint.
func (s *GORMStore) UpdateBotInteractionURL(ctx context.Context, id int64, url string) error {
	result := s.db.WithContext(ctx).Model(&models.Bot{}).
		Where("id = ?", id).
		Update("interaction_url", url)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return models.ErrBotNotFound
	}
	return nil
}

// DeleteBot removes a bot, its commands, and deactivates its user account.
func (s *GORMStore) DeleteBot(ctx context.Context, id int64) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var bot models.Bot
		if err := tx.First(&bot, id).Error; err != nil {
			return convertNotFoundError(err, models.ErrBotNotFound)
		}
		if err := tx.Where("bot_id = ?", id).Delete(&models.BotCommand{}).Error; err != nil {
			return err
		}
		if err := tx.Delete(&models.Bot{}, id).Error; err != nil {
			return err
		}
		return tx.Model(&models.User{}).Where("id = ?", bot.UserID).Update("active", false).Error
	})
}

// ReplaceBotCommands swaps a bot's registered slash commands for a new set.
func (s *GORMStore) ReplaceBotCommands(ctx context.Context, botID int64, commands []*models.BotCommand) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("bot_id = ?", botID).Delete(&models.BotCommand{}).Error; err != nil {
			return err
		}
		for _, cmd := range commands {
			cmd.BotID = botID
			if err := tx.Create(cmd).Error; err != nil {
				return err
			}
		}
		return nil
	})
}

// ListBotCommands retrieves a bot's registered slash commands.
func (s *GORMStore) ListBotCommands(ctx context.Context, botID int64) ([]*models.BotCommand, error) {
	return listByField[models.BotCommand](ctx, s.db, "bot_id", botID, "name ASC")
}

// FindCommand resolves a slash command name to the bot that registered it.
func (s *GORMStore) FindCommand(ctx context.Context, name string) (*models.BotCommand, error) {
	return getByField[models.BotCommand](ctx, s.db, "name", name, models.ErrCommandNotFound)
}

// ============================================================================
// Emoji and Sticker Operations
// ============================================================================

// CreateEmoji inserts a custom emoji.
func (s *GORMStore) CreateEmoji(ctx context.Context, emoji *models.Emoji) error {
	return createRecord(ctx, s.db, emoji, models.ErrDuplicateEmoji)
}

// ListEmoji retrieves all custom emoji.
func (s *GORMStore) ListEmoji(ctx context.Context) ([]*models.Emoji, error) {
	return listAll[models.Emoji](ctx, s.db, "name ASC")
}

// DeleteEmoji removes a custom emoji.
func (s *GORMStore) DeleteEmoji(ctx context.Context, id int64) error {
	result := s.db.WithContext(ctx).Delete(&models.Emoji{}, id)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return models.ErrEmojiNotFound
	}
	return nil
}

// CreateSticker inserts a custom sticker.
func (s *GORMStore) CreateSticker(ctx context.Context, sticker *models.Sticker) error {
	return createRecord(ctx, s.db, sticker, models.ErrDuplicateEmoji)
}

// ListStickers retrieves all custom stickers.
func (s *GORMStore) ListStickers(ctx context.Context) ([]*models.Sticker, error) {
	return listAll[models.Sticker](ctx, s.db, "name ASC")
}

// DeleteSticker removes a custom sticker.
func (s *GORMStore) DeleteSticker(ctx context.Context, id int64) error {
	result := s.db.WithContext(ctx).Delete(&models.Sticker{}, id)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return models.ErrStickerNotFound
	}
	return nil
}
