package models

import "time"

// PushSubscription is a Web Push endpoint registered by a client. The
// endpoint URL is unique; re-registering refreshes the keys.
type PushSubscription struct {
	ID        int64     `gorm:"primaryKey" json:"id"`
	UserID    int64     `gorm:"index;not null" json:"user_id"`
	Endpoint  string    `gorm:"uniqueIndex;not null;size:512" json:"endpoint"`
	P256dh    string    `gorm:"not null;size:255" json:"p256dh"`
	Auth      string    `gorm:"not null;size:255" json:"auth"`
	CreatedAt time.Time `gorm:"autoCreateTime" json:"created_at"`
}

// TableName returns the table name for PushSubscription.
func (PushSubscription) TableName() string {
	return "push_subscriptions"
}
