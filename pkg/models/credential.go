package models

import (
	"errors"
	"sync"

	"github.com/alexedwards/argon2id"
)

// Password validation errors.
var (
	// ErrInvalidCredentials is returned when credentials are invalid.
	ErrInvalidCredentials = errors.New("invalid credentials")

	// ErrPasswordTooShort is returned when a password is too short.
	ErrPasswordTooShort = errors.New("password must be at least 8 characters")

	// ErrPasswordTooLong is returned when a password is too long.
	ErrPasswordTooLong = errors.New("password must be at most 128 characters")
)

// Password length constraints.
const (
	// MinPasswordLength is the minimum required password length.
	MinPasswordLength = 8

	// MaxPasswordLength is the maximum allowed password length.
	MaxPasswordLength = 128
)

// hashParams are the Argon2id parameters used for new hashes.
// 64 MiB memory, 1 iteration, 4 lanes per the RFC 9106 low-memory
// recommendation.
var hashParams = &argon2id.Params{
	Memory:      64 * 1024,
	Iterations:  1,
	Parallelism: 4,
	SaltLength:  16,
	KeyLength:   32,
}

// dummyHash is compared against when the user does not exist, so login
// timing does not reveal which usernames are registered. Built once on
// first use with the same parameters as real hashes.
var (
	dummyOnce sync.Once
	dummyHash string
)

func getDummyHash() string {
	dummyOnce.Do(func() {
		dummyHash, _ = argon2id.CreateHash("timing-pad", hashParams)
	})
	return dummyHash
}

// HashPassword creates an Argon2id hash of the given password.
func HashPassword(password string) (string, error) {
	if err := ValidatePassword(password); err != nil {
		return "", err
	}
	return argon2id.CreateHash(password, hashParams)
}

// VerifyPassword checks a password against an Argon2id hash. An empty
// hash (federated shadow accounts) never matches, but still burns a
// comparison so the caller's timing stays flat.
func VerifyPassword(password, hash string) bool {
	if hash == "" {
		_, _ = argon2id.ComparePasswordAndHash(password, getDummyHash())
		return false
	}
	match, err := argon2id.ComparePasswordAndHash(password, hash)
	return err == nil && match
}

// BurnPasswordCheck performs a throwaway hash comparison. Called on
// the user-not-found path so it costs the same as a real check.
func BurnPasswordCheck(password string) {
	_, _ = argon2id.ComparePasswordAndHash(password, getDummyHash())
}

// ValidatePassword checks if a password meets the length requirements.
func ValidatePassword(password string) error {
	if len(password) < MinPasswordLength {
		return ErrPasswordTooShort
	}
	if len(password) > MaxPasswordLength {
		return ErrPasswordTooLong
	}
	return nil
}
