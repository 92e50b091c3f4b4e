package models

import "time"

// Message is a chat message in a feed, thread, or DM. The ID is a
// snowflake assigned at creation, so messages sort by ID and by time
// interchangeably.
//
// Exactly one of FeedID or DMID is set. E2EE messages carry the
// ciphertext in OpaqueBlob and have a nil Body.
type Message struct {
	ID            int64   `gorm:"primaryKey;autoIncrement:false" json:"id,string"`
	FeedID        *int64  `gorm:"index" json:"feed_id,omitempty"`
	DMID          *int64  `gorm:"index" json:"dm_id,omitempty"`
	ThreadID      *int64  `gorm:"index" json:"thread_id,omitempty"`
	AuthorID      *int64  `gorm:"index" json:"author_id,omitempty"`
	Body          *string `gorm:"type:text" json:"body"`
	OpaqueBlob    *string `gorm:"type:text" json:"opaque_blob,omitempty"`
	Timestamp     int64   `gorm:"not null" json:"timestamp"`
	ReplyTo       *int64  `json:"reply_to,omitempty"`
	EditTimestamp *int64  `json:"edit_timestamp,omitempty"`
	Embed         *string `gorm:"type:text" json:"embed,omitempty"`
	Federated     bool    `gorm:"default:false" json:"federated"`
	AuthorAddress string  `gorm:"size:255" json:"author_address,omitempty"`
	WebhookID     *int64  `json:"webhook_id,omitempty"`
}

// TableName returns the table name for Message.
func (Message) TableName() string {
	return "messages"
}

// Reaction is one user's emoji reaction to a message.
type Reaction struct {
	MsgID  int64  `gorm:"primaryKey;autoIncrement:false;index" json:"msg_id,string"`
	UserID int64  `gorm:"primaryKey;autoIncrement:false" json:"user_id"`
	Emoji  string `gorm:"primaryKey;size:255" json:"emoji"`
}

// TableName returns the table name for Reaction.
func (Reaction) TableName() string {
	return "reactions"
}

// Pin marks a message as pinned in its feed.
type Pin struct {
	FeedID   int64     `gorm:"primaryKey;autoIncrement:false" json:"feed_id"`
	MsgID    int64     `gorm:"primaryKey;autoIncrement:false" json:"msg_id,string"`
	PinnedAt time.Time `gorm:"autoCreateTime" json:"pinned_at"`
}

// TableName returns the table name for Pin.
func (Pin) TableName() string {
	return "pins"
}

// Attachment is an uploaded file referenced by messages.
type Attachment struct {
	ID         string    `gorm:"primaryKey;size:255" json:"id"`
	Name       string    `gorm:"not null;size:255" json:"name"`
	Size       int64     `gorm:"not null" json:"size"`
	Mime       string    `gorm:"not null;size:255" json:"mime"`
	URL        string    `gorm:"type:text;not null" json:"url"`
	UploaderID int64     `gorm:"not null" json:"uploader_id"`
	CreatedAt  time.Time `gorm:"autoCreateTime" json:"created_at"`
}

// TableName returns the table name for Attachment.
func (Attachment) TableName() string {
	return "files"
}

// MessageAttachment links a message to its attachments.
type MessageAttachment struct {
	MsgID  int64  `gorm:"primaryKey;autoIncrement:false" json:"msg_id,string"`
	FileID string `gorm:"primaryKey;size:255" json:"file_id"`
}

// TableName returns the table name for MessageAttachment.
func (MessageAttachment) TableName() string {
	return "message_attachments"
}

// FeedReadState tracks the last message a user has read in a feed.
type FeedReadState struct {
	UserID        int64 `gorm:"primaryKey;autoIncrement:false" json:"user_id"`
	FeedID        int64 `gorm:"primaryKey;autoIncrement:false" json:"feed_id"`
	LastReadMsgID int64 `gorm:"not null" json:"last_read_msg_id,string"`
}

// TableName returns the table name for FeedReadState.
func (FeedReadState) TableName() string {
	return "feed_read_state"
}

// DMReadState tracks the last message a user has read in a DM.
type DMReadState struct {
	UserID        int64 `gorm:"primaryKey;autoIncrement:false" json:"user_id"`
	DMID          int64 `gorm:"primaryKey;autoIncrement:false" json:"dm_id"`
	LastReadMsgID int64 `gorm:"not null" json:"last_read_msg_id,string"`
}

// TableName returns the table name for DMReadState.
func (DMReadState) TableName() string {
	return "dm_read_state"
}

// FeedSubscriber opts a user into message notifications for a feed.
type FeedSubscriber struct {
	FeedID int64 `gorm:"primaryKey;autoIncrement:false" json:"feed_id"`
	UserID int64 `gorm:"primaryKey;autoIncrement:false" json:"user_id"`
}

// TableName returns the table name for FeedSubscriber.
func (FeedSubscriber) TableName() string {
	return "feed_subscribers"
}

// ThreadSubscriber opts a user into message notifications for a thread.
type ThreadSubscriber struct {
	ThreadID int64 `gorm:"primaryKey;autoIncrement:false" json:"thread_id"`
	UserID   int64 `gorm:"primaryKey;autoIncrement:false" json:"user_id"`
}

// TableName returns the table name for ThreadSubscriber.
func (ThreadSubscriber) TableName() string {
	return "thread_subscribers"
}
