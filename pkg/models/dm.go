package models

import "time"

// DM permission levels controlling who may open a conversation.
const (
	DMPermissionEveryone      = "everyone"
	DMPermissionFriendsOnly   = "friends_only"
	DMPermissionMutualServers = "mutual_servers"
	DMPermissionNobody        = "nobody"
)

// DM is a direct conversation between two users, or a named group.
type DM struct {
	ID        int64     `gorm:"primaryKey" json:"id"`
	IsGroup   bool      `gorm:"default:false" json:"is_group"`
	Name      string    `gorm:"size:255" json:"name,omitempty"`
	Icon      string    `gorm:"type:text" json:"icon,omitempty"`
	CreatedAt time.Time `gorm:"autoCreateTime" json:"created_at"`
}

// TableName returns the table name for DM.
func (DM) TableName() string {
	return "dms"
}

// DMParticipant is the DM membership junction row.
type DMParticipant struct {
	DMID   int64 `gorm:"primaryKey;autoIncrement:false" json:"dm_id"`
	UserID int64 `gorm:"primaryKey;autoIncrement:false;index" json:"user_id"`
}

// TableName returns the table name for DMParticipant.
func (DMParticipant) TableName() string {
	return "dm_participants"
}

// DMSettings holds a user's DM privacy preference.
type DMSettings struct {
	UserID       int64  `gorm:"primaryKey;autoIncrement:false" json:"user_id"`
	DMPermission string `gorm:"size:50;default:everyone" json:"dm_permission"`
}

// TableName returns the table name for DMSettings.
func (DMSettings) TableName() string {
	return "dm_settings"
}
