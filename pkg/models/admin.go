package models

import (
	"crypto/rand"
	"encoding/base64"
	"os"
)

const (
	// AdminUsername is the reserved username for the first administrator.
	AdminUsername = "admin"

	// EnvAdminInitialPassword can be used to pin the initial admin
	// password. If not set, a random password is generated.
	EnvAdminInitialPassword = "VOX_ADMIN_INITIAL_PASSWORD"

	// DefaultAdminDisplayName is the display name for the admin user.
	DefaultAdminDisplayName = "Administrator"
)

// DefaultAdminUser creates the bootstrap admin account with the given
// password hash. Role assignment happens separately; admin rights come
// from holding a role with the administrator bit.
func DefaultAdminUser(passwordHash string) *User {
	return &User{
		Username:     AdminUsername,
		DisplayName:  DefaultAdminDisplayName,
		PasswordHash: passwordHash,
		Active:       true,
	}
}

// GetOrGenerateAdminPassword returns the admin password from the
// environment if set, otherwise a cryptographically random one.
func GetOrGenerateAdminPassword() (string, error) {
	if pw := os.Getenv(EnvAdminInitialPassword); pw != "" {
		return pw, nil
	}
	return GenerateRandomPassword()
}

// GenerateRandomPassword returns 24 characters of URL-safe base64
// (18 bytes of randomness).
func GenerateRandomPassword() (string, error) {
	b := make([]byte, 18)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return base64.URLEncoding.EncodeToString(b), nil
}

// IsAdminUsername checks if the given username is the reserved admin
// username.
func IsAdminUsername(username string) bool {
	return username == AdminUsername
}
