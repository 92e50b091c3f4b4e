package models

import "time"

// Well-known setting keys. Settings hold server identity and runtime
// overrides that admins can change without a restart, including the
// federation signing keypair generated at first use.
const (
	SettingServerName           = "server_name"
	SettingServerIcon           = "server_icon"
	SettingServerDescription    = "server_description"
	SettingGatewayURL           = "gateway_url"
	SettingFederationDomain     = "federation_domain"
	SettingFederationPolicy     = "federation_policy"
	SettingFederationPrivateKey = "federation_private_key"
	SettingFederationPublicKey  = "federation_public_key"
)

// SensitiveSettings lists keys that must never be returned by admin
// config endpoints.
var SensitiveSettings = map[string]struct{}{
	SettingFederationPrivateKey: {},
}

// Setting stores a system-wide key-value setting.
type Setting struct {
	Key       string    `gorm:"primaryKey;size:255" json:"key"`
	Value     string    `gorm:"type:text" json:"value"`
	UpdatedAt time.Time `gorm:"autoUpdateTime" json:"updated_at"`
}

// TableName returns the table name for Setting.
func (Setting) TableName() string {
	return "config"
}
