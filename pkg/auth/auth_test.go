package auth

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cmorg789/vox/pkg/models"
	"github.com/cmorg789/vox/pkg/store"
)

func TestPurposeOf(t *testing.T) {
	t.Parallel()

	tests := []struct {
		raw     string
		want    Purpose
		wantErr bool
	}{
		{"vox_sess_abc123", PurposeSession, false},
		{"mfa_abc123", PurposeMFA, false},
		{"setup_totp_abc", PurposeSetupTOTP, false},
		{"setup_webauthn_abc", PurposeSetupWebAuthn, false},
		{"fed_abc", PurposeFederation, false},
		{"whk_abc", PurposeWebhook, false},
		{"pair_abc", PurposePairing, false},
		{"media_abc", PurposeMedia, false},
		{"jwt.looking.token", "", true},
		{"", "", true},
	}
	for _, tt := range tests {
		got, err := PurposeOf(tt.raw)
		if tt.wantErr {
			assert.ErrorIs(t, err, ErrMalformedToken, tt.raw)
			continue
		}
		require.NoError(t, err, tt.raw)
		assert.Equal(t, tt.want, got, tt.raw)
	}
}

func TestNewTokenShape(t *testing.T) {
	t.Parallel()

	a := NewToken(PurposeSession)
	b := NewToken(PurposeSession)
	assert.NotEqual(t, a, b)
	assert.Len(t, a, len(PurposeSession)+64)
	assert.NotEqual(t, HashToken(a), HashToken(b))
	assert.Len(t, HashToken(a), 64)
}

func newTestStore(t *testing.T) store.Store {
	t.Helper()
	cfg := store.Config{
		Type:   store.DatabaseTypeSQLite,
		SQLite: store.SQLiteConfig{Path: filepath.Join(t.TempDir(), "auth.db")},
	}
	st, err := store.New(&cfg)
	require.NoError(t, err)
	t.Cleanup(func() { _ = st.Close() })
	return st
}

func TestServiceAuthenticate(t *testing.T) {
	ctx := context.Background()
	st := newTestStore(t)
	svc := NewService(st)

	user := &models.User{Username: "alice", Active: true}
	require.NoError(t, st.CreateUser(ctx, user))

	raw, err := svc.Mint(ctx, user.ID, PurposeSession)
	require.NoError(t, err)

	t.Run("accepts matching purpose", func(t *testing.T) {
		id, err := svc.Authenticate(ctx, raw, PurposeSession)
		require.NoError(t, err)
		assert.Equal(t, user.ID, id.User.ID)
		assert.Equal(t, PurposeSession, id.Purpose)
	})

	t.Run("rejects cross-purpose use", func(t *testing.T) {
		_, err := svc.Authenticate(ctx, raw, PurposeMFA)
		assert.ErrorIs(t, err, ErrWrongPurpose)

		mfaRaw, err := svc.Mint(ctx, user.ID, PurposeMFA)
		require.NoError(t, err)
		_, err = svc.Authenticate(ctx, mfaRaw, PurposeSession)
		assert.ErrorIs(t, err, ErrWrongPurpose)
	})

	t.Run("rejects unknown token", func(t *testing.T) {
		_, err := svc.Authenticate(ctx, NewToken(PurposeSession), PurposeSession)
		assert.ErrorIs(t, err, ErrInvalidToken)
	})

	t.Run("rejects malformed token", func(t *testing.T) {
		_, err := svc.Authenticate(ctx, "not-a-token", PurposeSession)
		assert.ErrorIs(t, err, ErrMalformedToken)
	})

	t.Run("rejects deactivated user", func(t *testing.T) {
		// Deactivation cascades: every existing session is revoked, so
		// the old token dies at the lookup.
		require.NoError(t, st.SetUserActive(ctx, user.ID, false))
		_, err := svc.Authenticate(ctx, raw, PurposeSession)
		assert.ErrorIs(t, err, ErrInvalidToken)

		// A session minted while inactive still refuses to resolve.
		stale, err := svc.Mint(ctx, user.ID, PurposeSession)
		require.NoError(t, err)
		_, err = svc.Authenticate(ctx, stale, PurposeSession)
		assert.ErrorIs(t, err, ErrUserInactive)

		require.NoError(t, st.SetUserActive(ctx, user.ID, true))
	})

	t.Run("revoke is idempotent", func(t *testing.T) {
		require.NoError(t, svc.Revoke(ctx, raw))
		require.NoError(t, svc.Revoke(ctx, raw))
		_, err := svc.Authenticate(ctx, raw, PurposeSession)
		assert.ErrorIs(t, err, ErrInvalidToken)
	})
}

func TestServiceExpiredSession(t *testing.T) {
	ctx := context.Background()
	st := newTestStore(t)
	svc := NewService(st)

	user := &models.User{Username: "bob", Active: true}
	require.NoError(t, st.CreateUser(ctx, user))

	raw := NewToken(PurposeSession)
	require.NoError(t, st.CreateSession(ctx, &models.Session{
		TokenHash: HashToken(raw),
		UserID:    user.ID,
		Purpose:   string(PurposeSession),
		ExpiresAt: time.Now().Add(-time.Minute),
	}))

	_, err := svc.Authenticate(ctx, raw, PurposeSession)
	assert.ErrorIs(t, err, ErrInvalidToken)
}
