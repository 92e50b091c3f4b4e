// Package auth mints and verifies bearer tokens and resolves them to
// user sessions against the store.
//
// Tokens are opaque random strings carrying a purpose-indicating prefix.
// Only the SHA-256 hash of a token is persisted; the raw token is
// returned to the client exactly once at mint time. A token's purpose is
// part of its identity: an endpoint that accepts session tokens rejects
// an MFA ticket even when both belong to the same user.
package auth

import (
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"strings"
)

// Purpose identifies what a token is good for, encoded as its prefix.
type Purpose string

const (
	// PurposeSession is a normal login session.
	PurposeSession Purpose = "vox_sess_"

	// PurposeMFA is a short-lived ticket issued between password check
	// and second-factor verification.
	PurposeMFA Purpose = "mfa_"

	// PurposeSetupTOTP authorizes TOTP enrolment only.
	PurposeSetupTOTP Purpose = "setup_totp_"

	// PurposeSetupWebAuthn authorizes WebAuthn enrolment only.
	PurposeSetupWebAuthn Purpose = "setup_webauthn_"

	// PurposeFederation is minted for remote users joining via voucher.
	PurposeFederation Purpose = "fed_"

	// PurposeWebhook authenticates webhook execution.
	PurposeWebhook Purpose = "whk_"

	// PurposePairing authorizes a device pairing exchange.
	PurposePairing Purpose = "pair_"

	// PurposeMedia is a short-lived credential for the SFU.
	PurposeMedia Purpose = "media_"
)

// purposes ordered longest-prefix-first so "setup_totp_" wins over a
// hypothetical shorter overlap.
var purposes = []Purpose{
	PurposeSetupWebAuthn,
	PurposeSetupTOTP,
	PurposeSession,
	PurposeMedia,
	PurposePairing,
	PurposeMFA,
	PurposeFederation,
	PurposeWebhook,
}

// Token errors.
var (
	// ErrMalformedToken means the bearer token has no known prefix.
	ErrMalformedToken = errors.New("malformed token")

	// ErrWrongPurpose means a valid token was presented at an endpoint
	// that accepts a different purpose.
	ErrWrongPurpose = errors.New("token purpose not accepted here")

	// ErrInvalidToken means the token is unknown or expired.
	ErrInvalidToken = errors.New("invalid or expired token")

	// ErrUserInactive means the token's owner is deactivated or banned.
	ErrUserInactive = errors.New("user account is deactivated")
)

// tokenEntropyBytes is the random payload per token; 32 bytes encode to
// 64 hex characters after the prefix.
const tokenEntropyBytes = 32

// NewToken mints a raw token for the given purpose. The caller stores
// HashToken(raw), never raw itself.
func NewToken(purpose Purpose) string {
	buf := make([]byte, tokenEntropyBytes)
	if _, err := rand.Read(buf); err != nil {
		// crypto/rand never fails on supported platforms.
		panic("auth: rand.Read: " + err.Error())
	}
	return string(purpose) + hex.EncodeToString(buf)
}

// HashToken returns the SHA-256 hex digest used as the storage key.
func HashToken(raw string) string {
	sum := sha256.Sum256([]byte(raw))
	return hex.EncodeToString(sum[:])
}

// PurposeOf extracts the purpose prefix from a raw token.
func PurposeOf(raw string) (Purpose, error) {
	for _, p := range purposes {
		if strings.HasPrefix(raw, string(p)) {
			return p, nil
		}
	}
	return "", ErrMalformedToken
}
