package ratelimit

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestClassify(t *testing.T) {
	t.Parallel()

	tests := map[string]string{
		"/api/v1/feeds/10/messages":    "messages",
		"/api/v1/dms/5/messages/3":     "messages",
		"/api/v1/feeds/10":             "channels",
		"/api/v1/rooms/2":              "channels",
		"/api/v1/threads/9":            "channels",
		"/api/v1/auth/login":           "auth",
		"/api/v1/users/1":              "members",
		"/api/v1/roles":                "roles",
		"/api/v1/invites/abc":          "invites",
		"/api/v1/reports":              "moderation",
		"/api/v1/admin/federation":     "moderation",
		"/api/v1/keys/prekeys":         "e2ee",
		"/api/v1/search":               "search",
		"/api/v1/messages/search":      "messages",
		"/api/v1/federation/relay":     "federation",
		"/api/v1/voice/regions":        "voice",
		"/api/v1/unknown-thing":        "server",
		"/somewhere/else":              "server",
		"/api/v1/webhooks/1/tok":       "messages",
		"/api/v1/webhooks":             "webhooks",
		"/api/v1/files/upload":         "files",
		"/api/v1/stickers/4":           "emoji",
	}
	for path, want := range tests {
		assert.Equal(t, want, Classify(path), path)
	}
}

func TestSkipPaths(t *testing.T) {
	t.Parallel()

	assert.True(t, Skip("/gateway"))
	assert.True(t, Skip("/metrics"))
	assert.True(t, Skip("/healthz"))
	assert.False(t, Skip("/api/v1/auth/login"))
}

func TestLimiterExhaustion(t *testing.T) {
	t.Parallel()

	l := New()

	// Auth allows 5, then rejects.
	for i := 0; i < 5; i++ {
		res := l.Check("ip:1.2.3.4", "auth")
		assert.True(t, res.Allowed, "request %d should pass", i)
		assert.Equal(t, 5, res.Limit)
	}
	res := l.Check("ip:1.2.3.4", "auth")
	assert.False(t, res.Allowed)
	assert.Positive(t, res.RetryAfter)
	assert.Zero(t, res.Remaining)
}

func TestLimiterIsolatesPrincipals(t *testing.T) {
	t.Parallel()

	l := New()
	for i := 0; i < 5; i++ {
		l.Check("ip:1.1.1.1", "auth")
	}
	assert.False(t, l.Check("ip:1.1.1.1", "auth").Allowed)
	assert.True(t, l.Check("ip:2.2.2.2", "auth").Allowed, "other principals unaffected")
	assert.True(t, l.Check("ip:1.1.1.1", "messages").Allowed, "other categories unaffected")
}

func TestLimiterRefill(t *testing.T) {
	t.Parallel()

	l := New()
	base := time.Now()
	l.now = func() time.Time { return base }

	for i := 0; i < 50; i++ {
		l.Check("user:1", "messages")
	}
	assert.False(t, l.Check("user:1", "messages").Allowed)

	// messages refills 1/s.
	l.now = func() time.Time { return base.Add(2 * time.Second) }
	assert.True(t, l.Check("user:1", "messages").Allowed)
}

func TestSweepDropsIdleBuckets(t *testing.T) {
	t.Parallel()

	l := New()
	base := time.Now()
	l.now = func() time.Time { return base }

	l.Check("ip:1.1.1.1", "auth")
	l.Check("ip:2.2.2.2", "auth")
	require.Equal(t, 2, l.Size())

	l.now = func() time.Time { return base.Add(10 * time.Minute) }
	l.Check("ip:2.2.2.2", "auth")

	removed := l.Sweep(5 * time.Minute)
	assert.Equal(t, 1, removed)
	assert.Equal(t, 1, l.Size())
}

type staticResolver struct {
	userID int64
	err    error
	calls  int
}

func (s *staticResolver) ResolveToken(context.Context, string) (int64, error) {
	s.calls++
	return s.userID, s.err
}

func okHandler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
}

func TestMiddlewareHeadersOnAllowedResponse(t *testing.T) {
	t.Parallel()

	mw := NewMiddleware(New(), nil)
	rec := httptest.NewRecorder()
	r := httptest.NewRequest("GET", "/api/v1/feeds/1", nil)
	r.RemoteAddr = "9.9.9.9:1234"

	mw.Handler(okHandler()).ServeHTTP(rec, r)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "20", rec.Header().Get("X-RateLimit-Limit"))
	assert.NotEmpty(t, rec.Header().Get("X-RateLimit-Remaining"))
	assert.NotEmpty(t, rec.Header().Get("X-RateLimit-Reset"))
}

func TestMiddlewareAuthCategoryEnvelope(t *testing.T) {
	t.Parallel()

	mw := NewMiddleware(New(), nil)
	h := mw.Handler(okHandler())

	var rec *httptest.ResponseRecorder
	for i := 0; i < 6; i++ {
		rec = httptest.NewRecorder()
		r := httptest.NewRequest("POST", "/api/v1/auth/login", nil)
		r.RemoteAddr = "9.9.9.9:1234"
		h.ServeHTTP(rec, r)
	}

	require.Equal(t, http.StatusTooManyRequests, rec.Code)
	assert.NotEmpty(t, rec.Header().Get("Retry-After"))

	var body struct {
		Error struct {
			Code         string `json:"code"`
			RetryAfterMS int64  `json:"retry_after_ms"`
		} `json:"error"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "AUTH_RATE_LIMITED", body.Error.Code)
	assert.Positive(t, body.Error.RetryAfterMS)
}

func TestMiddlewareSkipsGateway(t *testing.T) {
	t.Parallel()

	mw := NewMiddleware(New(), nil)
	rec := httptest.NewRecorder()
	r := httptest.NewRequest("GET", "/gateway", nil)
	r.RemoteAddr = "9.9.9.9:1234"

	mw.Handler(okHandler()).ServeHTTP(rec, r)
	assert.Empty(t, rec.Header().Get("X-RateLimit-Limit"))
}

func TestPrincipalResolution(t *testing.T) {
	t.Parallel()

	t.Run("federation budgets by peer ip", func(t *testing.T) {
		mw := NewMiddleware(New(), nil)
		r := httptest.NewRequest("POST", "/api/v1/federation/relay/message", nil)
		r.RemoteAddr = "8.8.8.8:999"
		assert.Equal(t, "fed:8.8.8.8", mw.principal(r, "federation"))
	})

	t.Run("webhook execution budgets per webhook", func(t *testing.T) {
		mw := NewMiddleware(New(), nil)
		r := httptest.NewRequest("POST", "/api/v1/webhooks/42/secret-token", nil)
		r.RemoteAddr = "8.8.8.8:999"
		assert.Equal(t, "webhook:42", mw.principal(r, "webhooks"))
	})

	t.Run("bearer token resolves and caches", func(t *testing.T) {
		resolver := &staticResolver{userID: 7}
		mw := NewMiddleware(New(), resolver)

		r := httptest.NewRequest("GET", "/api/v1/feeds/1", nil)
		r.RemoteAddr = "8.8.8.8:999"
		r.Header.Set("Authorization", "Bearer vox_sess_abc")

		assert.Equal(t, "user:7", mw.principal(r, "channels"))
		assert.Equal(t, "user:7", mw.principal(r, "channels"))
		assert.Equal(t, 1, resolver.calls, "second lookup must hit the cache")
	})

	t.Run("resolution failure falls back to ip", func(t *testing.T) {
		resolver := &staticResolver{err: errors.New("bad token")}
		mw := NewMiddleware(New(), resolver)

		r := httptest.NewRequest("GET", "/api/v1/feeds/1", nil)
		r.RemoteAddr = "8.8.8.8:999"
		r.Header.Set("Authorization", "Bearer junk")
		assert.Equal(t, "ip:8.8.8.8", mw.principal(r, "channels"))
	})
}
