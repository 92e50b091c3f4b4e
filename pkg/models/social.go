package models

import "time"

// Friend relation statuses.
const (
	FriendStatusPending  = "pending"
	FriendStatusAccepted = "accepted"
)

// Friend is a directed friend relation. A pending row from A to B is a
// request; accepting rewrites it to accepted and mirrors the reverse
// row.
type Friend struct {
	UserID    int64     `gorm:"primaryKey;autoIncrement:false" json:"user_id"`
	FriendID  int64     `gorm:"primaryKey;autoIncrement:false" json:"friend_id"`
	Status    string    `gorm:"size:20;default:accepted" json:"status"`
	CreatedAt time.Time `gorm:"autoCreateTime" json:"created_at"`
}

// TableName returns the table name for Friend.
func (Friend) TableName() string {
	return "friends"
}

// Block hides a user from another and refuses their DMs.
type Block struct {
	UserID    int64 `gorm:"primaryKey;autoIncrement:false" json:"user_id"`
	BlockedID int64 `gorm:"primaryKey;autoIncrement:false" json:"blocked_id"`
}

// TableName returns the table name for Block.
func (Block) TableName() string {
	return "blocks"
}
