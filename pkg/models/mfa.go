package models

import "time"

// WebAuthn challenge types.
const (
	ChallengeRegistration   = "registration"
	ChallengeAuthentication = "authentication"
)

// TOTPSecret holds a user's TOTP seed. Enabled flips only after the
// user confirms a valid code, so an abandoned setup never locks the
// account.
type TOTPSecret struct {
	UserID  int64  `gorm:"primaryKey;autoIncrement:false" json:"user_id"`
	Secret  string `gorm:"not null;size:255" json:"-"`
	Enabled bool   `gorm:"default:false" json:"enabled"`
}

// TableName returns the table name for TOTPSecret.
func (TOTPSecret) TableName() string {
	return "totp_secrets"
}

// WebAuthnCredential is a registered passkey.
type WebAuthnCredential struct {
	CredentialID string     `gorm:"primaryKey;size:255" json:"credential_id"`
	UserID       int64      `gorm:"index;not null" json:"user_id"`
	Name         string     `gorm:"not null;size:255" json:"name"`
	PublicKey    string     `gorm:"type:text;not null" json:"-"`
	SignCount    int        `gorm:"default:0" json:"sign_count"`
	RegisteredAt time.Time  `gorm:"autoCreateTime" json:"registered_at"`
	LastUsedAt   *time.Time `json:"last_used_at,omitempty"`
}

// TableName returns the table name for WebAuthnCredential.
func (WebAuthnCredential) TableName() string {
	return "webauthn_credentials"
}

// WebAuthnChallenge is a pending registration or authentication
// ceremony, expired lazily on read.
type WebAuthnChallenge struct {
	ID            string    `gorm:"primaryKey;size:255" json:"id"`
	UserID        int64     `gorm:"not null" json:"user_id"`
	ChallengeType string    `gorm:"not null;size:50" json:"challenge_type"`
	ChallengeData string    `gorm:"type:text;not null" json:"-"`
	ExpiresAt     time.Time `gorm:"index" json:"expires_at"`
}

// TableName returns the table name for WebAuthnChallenge.
func (WebAuthnChallenge) TableName() string {
	return "webauthn_challenges"
}

// RecoveryCode is a single-use 2FA fallback code, stored hashed.
type RecoveryCode struct {
	ID       int64  `gorm:"primaryKey" json:"id"`
	UserID   int64  `gorm:"index;not null" json:"user_id"`
	CodeHash string `gorm:"not null;size:255" json:"-"`
	Used     bool   `gorm:"default:false" json:"used"`
}

// TableName returns the table name for RecoveryCode.
func (RecoveryCode) TableName() string {
	return "recovery_codes"
}
