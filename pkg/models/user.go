package models

import (
	"fmt"
	"time"
)

// User represents a local or federated account.
//
// Local users authenticate with a password and have HomeDomain empty.
// Federated users are shadow rows created when a remote user first
// interacts with this server; they carry the remote domain and never
// have a password hash.
type User struct {
	ID           int64      `gorm:"primaryKey" json:"id"`
	Username     string     `gorm:"not null;size:255;uniqueIndex:uq_users_name_domain" json:"username"`
	HomeDomain   string     `gorm:"size:255;uniqueIndex:uq_users_name_domain" json:"home_domain,omitempty"`
	DisplayName  string     `gorm:"size:255" json:"display_name,omitempty"`
	Federated    bool       `gorm:"default:false" json:"federated"`
	Active       bool       `gorm:"default:true" json:"active"`
	Avatar       string     `gorm:"type:text" json:"avatar,omitempty"`
	Bio          string     `gorm:"size:255" json:"bio,omitempty"`
	Nickname     string     `gorm:"size:255" json:"nickname,omitempty"`
	PasswordHash string     `gorm:"size:255" json:"-"`
	CreatedAt    time.Time  `gorm:"autoCreateTime" json:"created_at"`
	LastLogin    *time.Time `json:"last_login,omitempty"`
}

// TableName returns the table name for User.
func (User) TableName() string {
	return "users"
}

// GetDisplayName returns the display name, or username if not set.
func (u *User) GetDisplayName() string {
	if u.DisplayName != "" {
		return u.DisplayName
	}
	return u.Username
}

// Address returns the federation address of the user. For local users
// the caller supplies the server's own domain.
func (u *User) Address(localDomain string) string {
	if u.Federated && u.HomeDomain != "" {
		return fmt.Sprintf("%s@%s", u.Username, u.HomeDomain)
	}
	return fmt.Sprintf("%s@%s", u.Username, localDomain)
}

// Session is an authenticated login session. Only the SHA-256 hash of
// the bearer token is stored; the raw token is shown to the client once.
// Purpose is the token's prefix (vox_sess_, mfa_, fed_, ...) kept in a
// clear column so cross-purpose use is rejected without rehashing.
type Session struct {
	ID        int64     `gorm:"primaryKey" json:"id"`
	TokenHash string    `gorm:"uniqueIndex;not null;size:64" json:"-"`
	UserID    int64     `gorm:"index;not null" json:"user_id"`
	Purpose   string    `gorm:"not null;size:32" json:"-"`
	CreatedAt time.Time `gorm:"autoCreateTime" json:"created_at"`
	ExpiresAt time.Time `gorm:"index" json:"expires_at"`
}

// TableName returns the table name for Session.
func (Session) TableName() string {
	return "sessions"
}

// Expired reports whether the session is past its expiry.
func (s *Session) Expired(now time.Time) bool {
	return now.After(s.ExpiresAt)
}
