package api

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cmorg789/vox/pkg/auth"
	"github.com/cmorg789/vox/pkg/dispatch"
	"github.com/cmorg789/vox/pkg/eventlog"
	"github.com/cmorg789/vox/pkg/gateway"
	"github.com/cmorg789/vox/pkg/models"
	"github.com/cmorg789/vox/pkg/notify"
	"github.com/cmorg789/vox/pkg/permissions"
	"github.com/cmorg789/vox/pkg/snowflake"
	"github.com/cmorg789/vox/pkg/store"
)

const testAdminPassword = "admin-test-password-1"

// newTestServer stands up the full router over a throwaway SQLite store
// and an in-memory event log. No federation, no rate limiting.
func newTestServer(t *testing.T) *httptest.Server {
	t.Helper()
	t.Setenv(models.EnvAdminInitialPassword, testAdminPassword)

	st, err := store.New(&store.Config{
		Type:   store.DatabaseTypeSQLite,
		SQLite: store.SQLiteConfig{Path: filepath.Join(t.TempDir(), "api.db")},
	})
	require.NoError(t, err)
	t.Cleanup(func() { _ = st.Close() })

	_, err = st.EnsureAdminUser(t.Context())
	require.NoError(t, err)

	log := eventlog.NewMemoryLog(eventlog.DefaultRetention)
	hub := gateway.NewHub(gateway.Config{}, nil)
	ids := snowflake.New()
	dispatcher := dispatch.New(hub, log, ids, nil)
	authSvc := auth.NewService(st)

	router := NewRouter(Deps{
		Store:      st,
		Auth:       authSvc,
		Hub:        hub,
		Dispatcher: dispatcher,
		Resolver:   permissions.NewResolver(st),
		IDs:        ids,
		EventLog:   log,
		Notifier:   notify.New(st, hub, dispatcher, notify.PushConfig{}),
		ServerName: "Vox Test",
		Domain:     "vox.test",
	})

	srv := httptest.NewServer(router)
	t.Cleanup(srv.Close)
	return srv
}

func doJSON(t *testing.T, method, url, token string, body any) *http.Response {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req, err := http.NewRequest(method, url, &buf)
	require.NoError(t, err)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	t.Cleanup(func() { _ = resp.Body.Close() })
	return resp
}

func decodeBody(t *testing.T, resp *http.Response, out any) {
	t.Helper()
	require.NoError(t, json.NewDecoder(resp.Body).Decode(out))
}

func errorCode(t *testing.T, resp *http.Response) string {
	t.Helper()
	var body struct {
		Error struct {
			Code string `json:"code"`
		} `json:"error"`
	}
	decodeBody(t, resp, &body)
	return body.Error.Code
}

// login returns a session token for the given credentials.
func login(t *testing.T, srv *httptest.Server, username, password string) string {
	t.Helper()
	resp := doJSON(t, http.MethodPost, srv.URL+"/api/v1/auth/login", "",
		map[string]string{"username": username, "password": password})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var body struct {
		Token string `json:"token"`
	}
	decodeBody(t, resp, &body)
	require.NotEmpty(t, body.Token)
	return body.Token
}

// register creates a fresh account and returns its token.
func register(t *testing.T, srv *httptest.Server, username string) string {
	t.Helper()
	resp := doJSON(t, http.MethodPost, srv.URL+"/api/v1/auth/register", "",
		map[string]string{"username": username, "password": "correct-horse-battery"})
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	var body struct {
		Token string `json:"token"`
	}
	decodeBody(t, resp, &body)
	return body.Token
}

func TestHealthz(t *testing.T) {
	srv := newTestServer(t)

	resp, err := http.Get(srv.URL + "/healthz")
	require.NoError(t, err)
	defer func() { _ = resp.Body.Close() }()
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	var body struct {
		Status string `json:"status"`
		Uptime string `json:"uptime"`
	}
	decodeBody(t, resp, &body)
	assert.Equal(t, "ok", body.Status)
}

func TestGatewayInfo(t *testing.T) {
	srv := newTestServer(t)

	resp, err := http.Get(srv.URL + "/api/v1/gateway")
	require.NoError(t, err)
	defer func() { _ = resp.Body.Close() }()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var body struct {
		URL        string `json:"url"`
		ServerName string `json:"server_name"`
	}
	decodeBody(t, resp, &body)
	assert.Equal(t, "wss://vox.test/gateway", body.URL)
	assert.Equal(t, "Vox Test", body.ServerName)
}

func TestRegisterAndLogin(t *testing.T) {
	srv := newTestServer(t)

	resp := doJSON(t, http.MethodPost, srv.URL+"/api/v1/auth/register", "",
		map[string]string{"username": "alice", "password": "correct-horse-battery"})
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	var created struct {
		Token string       `json:"token"`
		User  *models.User `json:"user"`
	}
	decodeBody(t, resp, &created)
	assert.NotEmpty(t, created.Token)
	assert.Equal(t, "alice", created.User.Username)

	// Same username again conflicts
	resp = doJSON(t, http.MethodPost, srv.URL+"/api/v1/auth/register", "",
		map[string]string{"username": "alice", "password": "another-password-9"})
	require.Equal(t, http.StatusConflict, resp.StatusCode)
	assert.Equal(t, "USERNAME_TAKEN", errorCode(t, resp))

	// Wrong password is a 401 with a stable code
	resp = doJSON(t, http.MethodPost, srv.URL+"/api/v1/auth/login", "",
		map[string]string{"username": "alice", "password": "wrong"})
	require.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	assert.Equal(t, "INVALID_CREDENTIALS", errorCode(t, resp))

	// Right password works
	login(t, srv, "alice", "correct-horse-battery")
}

func TestAuthRequired(t *testing.T) {
	srv := newTestServer(t)

	resp, err := http.Get(srv.URL + "/api/v1/feeds")
	require.NoError(t, err)
	defer func() { _ = resp.Body.Close() }()
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)

	resp = doJSON(t, http.MethodGet, srv.URL+"/api/v1/feeds", "vox_sess_bogus", nil)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
}

func TestLogoutRevokesToken(t *testing.T) {
	srv := newTestServer(t)
	token := register(t, srv, "bob")

	resp := doJSON(t, http.MethodPost, srv.URL+"/api/v1/auth/logout", token, nil)
	require.Equal(t, http.StatusNoContent, resp.StatusCode)

	resp = doJSON(t, http.MethodGet, srv.URL+"/api/v1/feeds", token, nil)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
}

func TestFeedLifecycle(t *testing.T) {
	srv := newTestServer(t)
	admin := login(t, srv, models.AdminUsername, testAdminPassword)
	member := register(t, srv, "carol")

	// Plain members cannot create feeds
	resp := doJSON(t, http.MethodPost, srv.URL+"/api/v1/feeds", member,
		map[string]string{"name": "general"})
	require.Equal(t, http.StatusForbidden, resp.StatusCode)

	// The admin can
	resp = doJSON(t, http.MethodPost, srv.URL+"/api/v1/feeds", admin,
		map[string]string{"name": "general", "topic": "chatter"})
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	var feed models.Feed
	decodeBody(t, resp, &feed)
	require.NotZero(t, feed.ID)
	assert.Equal(t, "general", feed.Name)

	// The new feed is visible to everyone
	resp = doJSON(t, http.MethodGet, srv.URL+"/api/v1/feeds", member, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var listing struct {
		Feeds []models.Feed `json:"feeds"`
	}
	decodeBody(t, resp, &listing)
	require.Len(t, listing.Feeds, 1)

	// And members can post to it
	body := "hello world"
	resp = doJSON(t, http.MethodPost, fmt.Sprintf("%s/api/v1/feeds/%d/messages", srv.URL, feed.ID), member,
		map[string]any{"body": body})
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	var msg models.Message
	decodeBody(t, resp, &msg)
	require.NotNil(t, msg.Body)
	assert.Equal(t, body, *msg.Body)

	// Empty bodies are rejected before anything is stored
	resp = doJSON(t, http.MethodPost, fmt.Sprintf("%s/api/v1/feeds/%d/messages", srv.URL, feed.ID), member,
		map[string]any{"body": ""})
	require.Equal(t, http.StatusBadRequest, resp.StatusCode)
	assert.Equal(t, "EMPTY_MESSAGE", errorCode(t, resp))
}

func TestSyncReturnsFeedEvents(t *testing.T) {
	srv := newTestServer(t)
	admin := login(t, srv, models.AdminUsername, testAdminPassword)

	since := time.Now().Add(-time.Minute).UnixMilli()

	resp := doJSON(t, http.MethodPost, srv.URL+"/api/v1/feeds", admin,
		map[string]string{"name": "announcements"})
	require.Equal(t, http.StatusCreated, resp.StatusCode)

	resp = doJSON(t, http.MethodPost, srv.URL+"/api/v1/sync", admin,
		map[string]any{"since_timestamp": since, "categories": []string{"feeds"}})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var sync struct {
		Events []eventlog.Entry `json:"events"`
	}
	decodeBody(t, resp, &sync)
	require.NotEmpty(t, sync.Events)
	assert.Equal(t, "feed_create", sync.Events[0].Type)

	// An empty category list is a timestamp-only no-op
	resp = doJSON(t, http.MethodPost, srv.URL+"/api/v1/sync", admin,
		map[string]any{"since_timestamp": since, "categories": []string{}})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var empty struct {
		Events          []eventlog.Entry `json:"events"`
		ServerTimestamp int64            `json:"server_timestamp"`
	}
	decodeBody(t, resp, &empty)
	assert.Empty(t, empty.Events)
	assert.NotZero(t, empty.ServerTimestamp)

	// Unknown categories are rejected
	resp = doJSON(t, http.MethodPost, srv.URL+"/api/v1/sync", admin,
		map[string]any{"since_timestamp": since, "categories": []string{"gifs"}})
	require.Equal(t, http.StatusBadRequest, resp.StatusCode)
	assert.Equal(t, "INVALID_CATEGORY", errorCode(t, resp))

	// A since outside the retention window forces a full refetch
	resp = doJSON(t, http.MethodPost, srv.URL+"/api/v1/sync", admin,
		map[string]any{"since_timestamp": 1, "categories": []string{"feeds"}})
	require.Equal(t, http.StatusBadRequest, resp.StatusCode)
	assert.Equal(t, "FULL_SYNC_REQUIRED", errorCode(t, resp))
}
