package models

import "time"

// Device is a registered E2EE device for a user. The ID is chosen by
// the client at registration.
type Device struct {
	ID         string    `gorm:"primaryKey;size:255" json:"id"`
	UserID     int64     `gorm:"index;not null" json:"user_id"`
	DeviceName string    `gorm:"not null;size:255" json:"device_name"`
	CreatedAt  time.Time `gorm:"autoCreateTime" json:"created_at"`
}

// TableName returns the table name for Device.
func (Device) TableName() string {
	return "devices"
}

// Prekey is a device's long-lived key bundle.
type Prekey struct {
	DeviceID     string `gorm:"primaryKey;size:255" json:"device_id"`
	IdentityKey  string `gorm:"type:text;not null" json:"identity_key"`
	SignedPrekey string `gorm:"type:text;not null" json:"signed_prekey"`
}

// TableName returns the table name for Prekey.
func (Prekey) TableName() string {
	return "prekeys"
}

// OneTimePrekey is a single-use key consumed when a peer starts a new
// session with the device.
type OneTimePrekey struct {
	ID       int64  `gorm:"primaryKey" json:"id"`
	DeviceID string `gorm:"index;not null;size:255" json:"device_id"`
	KeyData  string `gorm:"type:text;not null" json:"key_data"`
}

// TableName returns the table name for OneTimePrekey.
func (OneTimePrekey) TableName() string {
	return "one_time_prekeys"
}

// KeyBackup stores a user's encrypted key backup blob.
type KeyBackup struct {
	UserID        int64  `gorm:"primaryKey;autoIncrement:false" json:"user_id"`
	EncryptedBlob string `gorm:"type:text;not null" json:"encrypted_blob"`
}

// TableName returns the table name for KeyBackup.
func (KeyBackup) TableName() string {
	return "key_backups"
}
