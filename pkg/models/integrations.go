package models

import "time"

// Webhook posts messages into a feed via a bearer token. Only the
// SHA-256 hash of the token is stored.
type Webhook struct {
	ID        int64     `gorm:"primaryKey" json:"id"`
	FeedID    int64     `gorm:"index;not null" json:"feed_id"`
	Name      string    `gorm:"not null;size:255" json:"name"`
	Avatar    string    `gorm:"type:text" json:"avatar,omitempty"`
	TokenHash string    `gorm:"uniqueIndex;not null;size:64" json:"-"`
	CreatedAt time.Time `gorm:"autoCreateTime" json:"created_at"`
}

// TableName returns the table name for Webhook.
func (Webhook) TableName() string {
	return "webhooks"
}

// Bot links a bot account (a User row) to its owner and an optional
// outbound interaction endpoint.
type Bot struct {
	ID             int64     `gorm:"primaryKey" json:"id"`
	UserID         int64     `gorm:"uniqueIndex;not null" json:"user_id"`
	OwnerID        int64     `gorm:"not null" json:"owner_id"`
	InteractionURL string    `gorm:"type:text" json:"interaction_url,omitempty"`
	CreatedAt      time.Time `gorm:"autoCreateTime" json:"created_at"`
}

// TableName returns the table name for Bot.
func (Bot) TableName() string {
	return "bots"
}

// BotCommand is a registered slash command.
type BotCommand struct {
	ID          int64  `gorm:"primaryKey" json:"id"`
	BotID       int64  `gorm:"not null;uniqueIndex:uq_bot_command" json:"bot_id"`
	Name        string `gorm:"not null;size:255;uniqueIndex:uq_bot_command" json:"name"`
	Description string `gorm:"size:255" json:"description,omitempty"`
	Params      string `gorm:"type:text" json:"params,omitempty"`
}

// TableName returns the table name for BotCommand.
func (BotCommand) TableName() string {
	return "bot_commands"
}

// Emoji is a custom server emoji.
type Emoji struct {
	ID        int64  `gorm:"primaryKey" json:"id"`
	Name      string `gorm:"uniqueIndex;not null;size:255" json:"name"`
	CreatorID int64  `gorm:"not null" json:"creator_id"`
	Image     string `gorm:"type:text;not null" json:"image"`
}

// TableName returns the table name for Emoji.
func (Emoji) TableName() string {
	return "emoji"
}

// Sticker is a custom server sticker.
type Sticker struct {
	ID        int64  `gorm:"primaryKey" json:"id"`
	Name      string `gorm:"uniqueIndex;not null;size:255" json:"name"`
	CreatorID int64  `gorm:"not null" json:"creator_id"`
	Image     string `gorm:"type:text;not null" json:"image"`
}

// TableName returns the table name for Sticker.
func (Sticker) TableName() string {
	return "stickers"
}
