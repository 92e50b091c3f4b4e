package api

import (
	"bytes"
	"context"
	"crypto/ed25519"
	"crypto/rand"
	"errors"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strconv"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cmorg789/vox/pkg/auth"
	"github.com/cmorg789/vox/pkg/dispatch"
	"github.com/cmorg789/vox/pkg/eventlog"
	"github.com/cmorg789/vox/pkg/federation"
	"github.com/cmorg789/vox/pkg/gateway"
	"github.com/cmorg789/vox/pkg/models"
	"github.com/cmorg789/vox/pkg/notify"
	"github.com/cmorg789/vox/pkg/permissions"
	"github.com/cmorg789/vox/pkg/snowflake"
	"github.com/cmorg789/vox/pkg/store"
)

// staticResolver serves remote keys from memory so the S2S surface can
// be exercised without DNS.
type staticResolver struct {
	keys map[string]ed25519.PublicKey
}

func (r *staticResolver) PublicKey(_ context.Context, domain string) (ed25519.PublicKey, error) {
	k, ok := r.keys[domain]
	if !ok {
		return nil, errors.New("no key published")
	}
	return k, nil
}

func (r *staticResolver) Policy(context.Context, string) (string, error) { return "open", nil }

func (r *staticResolver) Endpoint(_ context.Context, domain string) (string, error) {
	return domain + ":443", nil
}

// newFederatedServer builds the full router with the inbound
// federation surface enabled and "remote.test" as a known peer.
func newFederatedServer(t *testing.T) (*httptest.Server, *store.GORMStore, ed25519.PrivateKey) {
	t.Helper()
	t.Setenv(models.EnvAdminInitialPassword, testAdminPassword)

	st, err := store.New(&store.Config{
		Type:   store.DatabaseTypeSQLite,
		SQLite: store.SQLiteConfig{Path: filepath.Join(t.TempDir(), "fed.db")},
	})
	require.NoError(t, err)
	t.Cleanup(func() { _ = st.Close() })
	_, err = st.EnsureAdminUser(t.Context())
	require.NoError(t, err)

	remotePub, remotePriv, err := ed25519.GenerateKey(rand.Reader)
	require.NoError(t, err)
	resolver := &staticResolver{keys: map[string]ed25519.PublicKey{"remote.test": remotePub}}

	keys := federation.NewKeyManager(st)
	policy := federation.NewPolicyChecker(st, resolver, models.FederationPolicyOpen)
	verifier := federation.NewVerifier(resolver, policy)
	vouchers := federation.NewVoucherService(keys, resolver, st, nil)

	log := eventlog.NewMemoryLog(eventlog.DefaultRetention)
	hub := gateway.NewHub(gateway.Config{}, nil)
	ids := snowflake.New()
	dispatcher := dispatch.New(hub, log, ids, nil)
	authSvc := auth.NewService(st)

	router := NewRouter(Deps{
		Store:       st,
		Auth:        authSvc,
		Hub:         hub,
		Dispatcher:  dispatcher,
		Resolver:    permissions.NewResolver(st),
		IDs:         ids,
		EventLog:    log,
		Notifier:    notify.New(st, hub, dispatcher, notify.PushConfig{}),
		FedVerifier: verifier,
		FedVouchers: vouchers,
		ServerName:  "Vox Test",
		Domain:      "vox.test",
	})

	srv := httptest.NewServer(router)
	t.Cleanup(srv.Close)
	return srv, st, remotePriv
}

// signedRequest builds an S2S request signed as remote.test.
func signedRequest(t *testing.T, method, url string, body []byte, priv ed25519.PrivateKey) *http.Request {
	t.Helper()
	req, err := http.NewRequest(method, url, bytes.NewReader(body))
	require.NoError(t, err)
	ts := time.Now().Unix()
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set(federation.HeaderOrigin, "remote.test")
	req.Header.Set(federation.HeaderTimestamp, strconv.FormatInt(ts, 10))
	req.Header.Set(federation.HeaderSignature, federation.Sign(priv, body, ts))
	return req
}

func TestFederationBlockNotice(t *testing.T) {
	srv, st, priv := newFederatedServer(t)

	body := []byte(`{"reason":"tos violation"}`)
	resp, err := http.DefaultClient.Do(signedRequest(t, http.MethodPost, srv.URL+"/api/v1/federation/block", body, priv))
	require.NoError(t, err)
	defer func() { _ = resp.Body.Close() }()
	require.Equal(t, http.StatusNoContent, resp.StatusCode)

	// The notice is audit-logged for review, never applied to the
	// local blocklist.
	entries, err := st.ListAuditLog(t.Context(), 0, 10, "federation_block_request_received", 0)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Contains(t, entries[0].Extra, "remote.test")
	assert.Contains(t, entries[0].Extra, "tos violation")

	blocked, err := st.IsFederationBlocked(t.Context(), "remote.test")
	require.NoError(t, err)
	assert.False(t, blocked)

	// Repeating the notice stays 204.
	resp2, err := http.DefaultClient.Do(signedRequest(t, http.MethodPost, srv.URL+"/api/v1/federation/block", body, priv))
	require.NoError(t, err)
	defer func() { _ = resp2.Body.Close() }()
	assert.Equal(t, http.StatusNoContent, resp2.StatusCode)
}

func TestFederationJoinBadVoucher(t *testing.T) {
	srv, _, priv := newFederatedServer(t)

	// Malformed, expired, and replayed vouchers all surface as the same
	// auth failure.
	body := []byte(`{"voucher":"not-a-voucher"}`)
	resp, err := http.DefaultClient.Do(signedRequest(t, http.MethodPost, srv.URL+"/api/v1/federation/join", body, priv))
	require.NoError(t, err)
	defer func() { _ = resp.Body.Close() }()
	require.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	assert.Equal(t, "FED_AUTH_FAILED", errorCode(t, resp))
}

func TestFederationBlockRequiresSignature(t *testing.T) {
	srv, _, _ := newFederatedServer(t)

	resp := doJSON(t, http.MethodPost, srv.URL+"/api/v1/federation/block", "",
		map[string]string{"reason": "nope"})
	require.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	assert.Equal(t, "FED_AUTH_FAILED", errorCode(t, resp))
}
