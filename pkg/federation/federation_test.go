package federation

import (
	"context"
	"crypto/ed25519"
	"crypto/rand"
	"net/http/httptest"
	"path/filepath"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cmorg789/vox/pkg/models"
	"github.com/cmorg789/vox/pkg/store"
)

// fakeResolver serves keys and policies from memory, standing in for
// DNS.
type fakeResolver struct {
	keys     map[string]ed25519.PublicKey
	policies map[string]string
}

func (f *fakeResolver) PublicKey(_ context.Context, domain string) (ed25519.PublicKey, error) {
	if k, ok := f.keys[domain]; ok {
		return k, nil
	}
	return nil, ErrAuthFailed
}

func (f *fakeResolver) Policy(_ context.Context, domain string) (string, error) {
	if p, ok := f.policies[domain]; ok {
		return p, nil
	}
	return "open", nil
}

func (f *fakeResolver) Endpoint(_ context.Context, domain string) (string, error) {
	return domain + ":443", nil
}

func newTestStore(t *testing.T) store.Store {
	t.Helper()
	cfg := store.Config{
		Type:   store.DatabaseTypeSQLite,
		SQLite: store.SQLiteConfig{Path: filepath.Join(t.TempDir(), "fed.db")},
	}
	st, err := store.New(&cfg)
	require.NoError(t, err)
	t.Cleanup(func() { _ = st.Close() })
	return st
}

func TestKeyManagerGeneratesOnce(t *testing.T) {
	ctx := context.Background()
	st := newTestStore(t)

	km := NewKeyManager(st)
	pub1, priv1, err := km.Keys(ctx)
	require.NoError(t, err)

	// A second manager over the same store must load the same keypair.
	km2 := NewKeyManager(st)
	pub2, _, err := km2.Keys(ctx)
	require.NoError(t, err)
	assert.Equal(t, pub1, pub2)

	rec, err := km.PublicKeyRecord(ctx)
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(rec, "p="))

	// Signing with the loaded key verifies under the published one.
	msg := []byte("hello")
	assert.True(t, ed25519.Verify(pub2, msg, ed25519.Sign(priv1, msg)))
}

func TestVerifyRequestRoundTrip(t *testing.T) {
	pub, priv, err := ed25519.GenerateKey(rand.Reader)
	require.NoError(t, err)
	resolver := &fakeResolver{keys: map[string]ed25519.PublicKey{"remote.test": pub}}

	v := NewVerifier(resolver, nil)

	body := []byte(`{"msg":"hi"}`)
	now := time.Now().Unix()

	t.Run("valid signature accepted", func(t *testing.T) {
		r := httptest.NewRequest("POST", "/api/v1/federation/relay/message", strings.NewReader(string(body)))
		r.Header.Set(HeaderOrigin, "remote.test")
		r.Header.Set(HeaderSignature, Sign(priv, body, now))
		r.Header.Set(HeaderTimestamp, strconv.FormatInt(now, 10))

		origin, gotBody, err := v.VerifyRequest(r)
		require.NoError(t, err)
		assert.Equal(t, "remote.test", origin)
		assert.Equal(t, body, gotBody)
	})

	t.Run("missing headers rejected", func(t *testing.T) {
		r := httptest.NewRequest("POST", "/", strings.NewReader(string(body)))
		_, _, err := v.VerifyRequest(r)
		assert.ErrorIs(t, err, ErrAuthFailed)
	})

	t.Run("stale timestamp rejected", func(t *testing.T) {
		old := now - 120
		r := httptest.NewRequest("POST", "/", strings.NewReader(string(body)))
		r.Header.Set(HeaderOrigin, "remote.test")
		r.Header.Set(HeaderSignature, Sign(priv, body, old))
		r.Header.Set(HeaderTimestamp, strconv.FormatInt(old, 10))
		_, _, err := v.VerifyRequest(r)
		assert.ErrorIs(t, err, ErrAuthFailed)
	})

	t.Run("tampered body rejected", func(t *testing.T) {
		r := httptest.NewRequest("POST", "/", strings.NewReader(`{"msg":"evil"}`))
		r.Header.Set(HeaderOrigin, "remote.test")
		r.Header.Set(HeaderSignature, Sign(priv, body, now))
		r.Header.Set(HeaderTimestamp, strconv.FormatInt(now, 10))
		_, _, err := v.VerifyRequest(r)
		assert.ErrorIs(t, err, ErrAuthFailed)
	})

	t.Run("unknown origin rejected", func(t *testing.T) {
		r := httptest.NewRequest("POST", "/", strings.NewReader(string(body)))
		r.Header.Set(HeaderOrigin, "stranger.test")
		r.Header.Set(HeaderSignature, Sign(priv, body, now))
		r.Header.Set(HeaderTimestamp, strconv.FormatInt(now, 10))
		_, _, err := v.VerifyRequest(r)
		assert.ErrorIs(t, err, ErrAuthFailed)
	})
}

func TestPolicyChecker(t *testing.T) {
	ctx := context.Background()
	st := newTestStore(t)
	resolver := &fakeResolver{policies: map[string]string{"closed.test": "closed"}}

	require.NoError(t, st.AddFederationEntry(ctx, &models.FederationEntry{Entry: "evil.test"}))
	require.NoError(t, st.AddFederationEntry(ctx, &models.FederationEntry{Entry: "allow:friend.test"}))

	t.Run("open admits unknowns", func(t *testing.T) {
		p := NewPolicyChecker(st, resolver, "open")
		assert.NoError(t, p.CheckInbound(ctx, "anyone.test"))
	})

	t.Run("blocklist always wins", func(t *testing.T) {
		p := NewPolicyChecker(st, resolver, "open")
		assert.ErrorIs(t, p.CheckInbound(ctx, "evil.test"), ErrBlocked)
	})

	t.Run("closed rejects everyone", func(t *testing.T) {
		p := NewPolicyChecker(st, resolver, "closed")
		assert.ErrorIs(t, p.CheckInbound(ctx, "friend.test"), ErrPolicyDenied)
	})

	t.Run("allowlist requires a row", func(t *testing.T) {
		p := NewPolicyChecker(st, resolver, "allowlist")
		assert.NoError(t, p.CheckInbound(ctx, "friend.test"))
		assert.ErrorIs(t, p.CheckInbound(ctx, "anyone.test"), ErrPolicyDenied)
	})

	t.Run("outbound respects remote closed policy", func(t *testing.T) {
		p := NewPolicyChecker(st, resolver, "open")
		assert.ErrorIs(t, p.CheckOutbound(ctx, "closed.test"), ErrPolicyDenied)
		assert.NoError(t, p.CheckOutbound(ctx, "anyone.test"))
		assert.ErrorIs(t, p.CheckOutbound(ctx, "evil.test"), ErrBlocked)
	})
}

func TestVoucherLifecycle(t *testing.T) {
	ctx := context.Background()
	st := newTestStore(t)

	// The issuing server is "home.test"; its key is published via the
	// fake resolver so the target can verify.
	km := NewKeyManager(st)
	pub, _, err := km.Keys(ctx)
	require.NoError(t, err)
	resolver := &fakeResolver{keys: map[string]ed25519.PublicKey{"home.test": pub}}

	issuer := NewVoucherService(km, resolver, st, nil)
	verifier := NewVoucherService(nil, resolver, newTestStore(t), nil)

	voucher, err := issuer.Issue(ctx, "alice@home.test", "target.test")
	require.NoError(t, err)

	t.Run("valid voucher accepted", func(t *testing.T) {
		payload, err := verifier.Verify(ctx, voucher, "target.test")
		require.NoError(t, err)
		assert.Equal(t, "alice@home.test", payload.UserAddress)
		assert.Equal(t, "target.test", payload.TargetDomain)
		assert.NotEmpty(t, payload.Nonce)
	})

	t.Run("replay rejected", func(t *testing.T) {
		_, err := verifier.Verify(ctx, voucher, "target.test")
		assert.ErrorIs(t, err, ErrVoucherReplayed)
	})

	t.Run("wrong target rejected", func(t *testing.T) {
		v2, err := issuer.Issue(ctx, "alice@home.test", "target.test")
		require.NoError(t, err)
		_, err = verifier.Verify(ctx, v2, "other.test")
		assert.ErrorIs(t, err, ErrVoucherTarget)
	})

	t.Run("expired rejected", func(t *testing.T) {
		v3, err := issuer.Issue(ctx, "alice@home.test", "target.test")
		require.NoError(t, err)

		late := NewVoucherService(nil, resolver, newTestStore(t), nil)
		late.now = func() time.Time { return time.Now().Add(VoucherTTL + time.Minute) }
		_, err = late.Verify(ctx, v3, "target.test")
		assert.ErrorIs(t, err, ErrVoucherExpired)
	})

	t.Run("garbage rejected", func(t *testing.T) {
		_, err := verifier.Verify(ctx, "not-a-voucher", "target.test")
		assert.ErrorIs(t, err, ErrVoucherMalformed)
	})
}

func TestSplitAddress(t *testing.T) {
	t.Parallel()

	user, domain := SplitAddress("alice@home.test")
	assert.Equal(t, "alice", user)
	assert.Equal(t, "home.test", domain)

	user, domain = SplitAddress("bob")
	assert.Equal(t, "bob", user)
	assert.Empty(t, domain)
}
