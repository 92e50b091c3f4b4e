package models

import "time"

// Report statuses.
const (
	ReportStatusOpen     = "open"
	ReportStatusResolved = "resolved"
	ReportStatusDismissed = "dismissed"
)

// Ban blocks a user from the server.
type Ban struct {
	ID        int64     `gorm:"primaryKey" json:"id"`
	UserID    int64     `gorm:"uniqueIndex;not null" json:"user_id"`
	Reason    string    `gorm:"size:255" json:"reason,omitempty"`
	CreatedAt time.Time `gorm:"autoCreateTime" json:"created_at"`
}

// TableName returns the table name for Ban.
func (Ban) TableName() string {
	return "bans"
}

// Invite is a join code, optionally pointing at a landing feed and
// optionally limited by use count or expiry.
type Invite struct {
	Code      string     `gorm:"primaryKey;size:50" json:"code"`
	CreatorID int64      `gorm:"not null" json:"creator_id"`
	FeedID    *int64     `json:"feed_id,omitempty"`
	MaxUses   *int       `json:"max_uses,omitempty"`
	Uses      int        `gorm:"default:0" json:"uses"`
	ExpiresAt *time.Time `json:"expires_at,omitempty"`
	CreatedAt time.Time  `gorm:"autoCreateTime" json:"created_at"`
}

// TableName returns the table name for Invite.
func (Invite) TableName() string {
	return "invites"
}

// Usable reports whether the invite can still be redeemed.
func (i *Invite) Usable(now time.Time) error {
	if i.ExpiresAt != nil && now.After(*i.ExpiresAt) {
		return ErrInviteExpired
	}
	if i.MaxUses != nil && i.Uses >= *i.MaxUses {
		return ErrInviteExhausted
	}
	return nil
}

// Report is a user-filed moderation report.
type Report struct {
	ID             int64     `gorm:"primaryKey" json:"id"`
	ReporterID     int64     `gorm:"not null" json:"reporter_id"`
	ReportedUserID int64     `gorm:"not null" json:"reported_user_id"`
	FeedID         *int64    `json:"feed_id,omitempty"`
	MsgID          *int64    `json:"msg_id,omitempty"`
	DMID           *int64    `json:"dm_id,omitempty"`
	Reason         string    `gorm:"not null;size:50" json:"reason"`
	Description    string    `gorm:"type:text" json:"description,omitempty"`
	Evidence       string    `gorm:"type:text" json:"evidence,omitempty"`
	Status         string    `gorm:"size:50;default:open;index" json:"status"`
	Action         string    `gorm:"size:50" json:"action,omitempty"`
	CreatedAt      time.Time `gorm:"autoCreateTime" json:"created_at"`
}

// TableName returns the table name for Report.
func (Report) TableName() string {
	return "reports"
}

// AuditLogEntry records an administrative action. The ID is a snowflake
// so entries page in creation order.
type AuditLogEntry struct {
	ID        int64  `gorm:"primaryKey;autoIncrement:false" json:"id,string"`
	EventType string `gorm:"not null;size:255;index" json:"event_type"`
	ActorID   int64  `gorm:"not null;index" json:"actor_id"`
	TargetID  *int64 `json:"target_id,omitempty"`
	Extra     string `gorm:"column:metadata;type:text" json:"metadata,omitempty"`
	Timestamp int64  `gorm:"not null" json:"timestamp"`
}

// TableName returns the table name for AuditLogEntry.
func (AuditLogEntry) TableName() string {
	return "audit_log"
}
