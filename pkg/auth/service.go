package auth

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/cmorg789/vox/pkg/models"
	"github.com/cmorg789/vox/pkg/store"
)

// Session lifetimes per purpose.
const (
	SessionTTL    = 30 * 24 * time.Hour
	MFATicketTTL  = 5 * time.Minute
	SetupTTL      = 10 * time.Minute
	FederationTTL = 30 * 24 * time.Hour
	PairingTTL    = 5 * time.Minute
	MediaTTL      = time.Hour
)

// ttlFor returns the default lifetime for a token purpose.
func ttlFor(p Purpose) time.Duration {
	switch p {
	case PurposeMFA:
		return MFATicketTTL
	case PurposeSetupTOTP, PurposeSetupWebAuthn:
		return SetupTTL
	case PurposeFederation:
		return FederationTTL
	case PurposePairing:
		return PairingTTL
	case PurposeMedia:
		return MediaTTL
	default:
		return SessionTTL
	}
}

// Identity is the result of a successful token authentication.
type Identity struct {
	User    *models.User
	Session *models.Session
	Purpose Purpose
}

// Service resolves bearer tokens to users.
type Service struct {
	store store.Store
}

// NewService returns a token service backed by the given store.
func NewService(st store.Store) *Service {
	return &Service{store: st}
}

// Mint creates a session row for the user and returns the raw token.
func (s *Service) Mint(ctx context.Context, userID int64, purpose Purpose) (string, error) {
	raw := NewToken(purpose)
	session := &models.Session{
		TokenHash: HashToken(raw),
		UserID:    userID,
		Purpose:   string(purpose),
		ExpiresAt: time.Now().Add(ttlFor(purpose)),
	}
	if err := s.store.CreateSession(ctx, session); err != nil {
		return "", fmt.Errorf("failed to create session: %w", err)
	}
	return raw, nil
}

// Authenticate validates a raw bearer token against the accepted
// purposes. A token whose prefix is not in accepted fails with
// ErrWrongPurpose before any database work.
func (s *Service) Authenticate(ctx context.Context, raw string, accepted ...Purpose) (*Identity, error) {
	purpose, err := PurposeOf(raw)
	if err != nil {
		return nil, err
	}

	ok := false
	for _, p := range accepted {
		if p == purpose {
			ok = true
			break
		}
	}
	if !ok {
		return nil, ErrWrongPurpose
	}

	session, err := s.store.GetSessionByTokenHash(ctx, HashToken(raw))
	if err != nil {
		if errors.Is(err, models.ErrSessionNotFound) || errors.Is(err, models.ErrSessionExpired) {
			return nil, ErrInvalidToken
		}
		return nil, fmt.Errorf("failed to look up session: %w", err)
	}

	// The purpose column guards against a forged prefix on a stolen
	// hash preimage; prefix and row must agree.
	if session.Purpose != string(purpose) {
		return nil, ErrWrongPurpose
	}

	user, err := s.store.GetUserByID(ctx, session.UserID)
	if err != nil {
		if errors.Is(err, models.ErrUserNotFound) {
			return nil, ErrInvalidToken
		}
		return nil, fmt.Errorf("failed to load session user: %w", err)
	}
	if !user.Active {
		return nil, ErrUserInactive
	}

	return &Identity{User: user, Session: session, Purpose: purpose}, nil
}

// AuthenticateGateway resolves a token presented in a gateway identify
// frame. Session and federation tokens may open a socket; every other
// purpose is rejected.
func (s *Service) AuthenticateGateway(ctx context.Context, raw string) (*models.User, error) {
	id, err := s.Authenticate(ctx, raw, PurposeSession, PurposeFederation)
	if err != nil {
		return nil, err
	}
	return id.User, nil
}

// Revoke deletes the session behind a raw token. Unknown tokens are not
// an error; logout is idempotent.
func (s *Service) Revoke(ctx context.Context, raw string) error {
	if _, err := PurposeOf(raw); err != nil {
		return err
	}
	err := s.store.DeleteSessionByTokenHash(ctx, HashToken(raw))
	if err != nil && !errors.Is(err, models.ErrSessionNotFound) {
		return err
	}
	return nil
}
