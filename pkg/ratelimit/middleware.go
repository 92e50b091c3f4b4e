package ratelimit

import (
	"context"
	"encoding/json"
	"fmt"
	"math"
	"net"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"
)

// tokenCacheTTL bounds how long a bearer-token→user resolution is
// reused before the store is consulted again.
const tokenCacheTTL = 30 * time.Second

// TokenResolver maps a raw bearer token to its owning user. The auth
// service satisfies this via a small adapter in the HTTP layer.
type TokenResolver interface {
	ResolveToken(ctx context.Context, raw string) (int64, error)
}

type cachedPrincipal struct {
	principal string
	expires   time.Time
}

// Middleware enforces the limiter on an HTTP handler chain.
type Middleware struct {
	limiter  *Limiter
	resolver TokenResolver

	mu    sync.Mutex
	cache map[string]cachedPrincipal
}

// NewMiddleware wraps a limiter for HTTP use. resolver may be nil, in
// which case authenticated traffic budgets by client IP.
func NewMiddleware(l *Limiter, resolver TokenResolver) *Middleware {
	return &Middleware{
		limiter:  l,
		resolver: resolver,
		cache:    make(map[string]cachedPrincipal),
	}
}

// Handler is the chi-mountable middleware.
func (m *Middleware) Handler(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if Skip(r.URL.Path) {
			next.ServeHTTP(w, r)
			return
		}

		category := Classify(r.URL.Path)
		principal := m.principal(r, category)

		res := m.limiter.Check(principal, category)
		writeLimitHeaders(w, res)

		if !res.Allowed {
			writeExceeded(w, res)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// SweepCache drops expired token-cache entries and returns the count
// removed.
func (m *Middleware) SweepCache() int {
	m.mu.Lock()
	defer m.mu.Unlock()

	now := time.Now()
	removed := 0
	for token, c := range m.cache {
		if now.After(c.expires) {
			delete(m.cache, token)
			removed++
		}
	}
	return removed
}

// principal resolves who pays for this request. Federation traffic is
// budgeted per peer IP regardless of its signature; webhook execution
// is budgeted per webhook so one spammy integration cannot starve the
// rest.
func (m *Middleware) principal(r *http.Request, category string) string {
	ip := clientHost(r)

	if category == "federation" {
		return "fed:" + ip
	}
	if id, ok := webhookExecutionID(r.URL.Path); ok {
		return "webhook:" + id
	}

	raw := bearerToken(r)
	if raw == "" || m.resolver == nil {
		return "ip:" + ip
	}

	m.mu.Lock()
	if c, ok := m.cache[raw]; ok && time.Now().Before(c.expires) {
		m.mu.Unlock()
		return c.principal
	}
	m.mu.Unlock()

	userID, err := m.resolver.ResolveToken(r.Context(), raw)
	if err != nil {
		return "ip:" + ip
	}

	principal := fmt.Sprintf("user:%d", userID)
	m.mu.Lock()
	m.cache[raw] = cachedPrincipal{principal: principal, expires: time.Now().Add(tokenCacheTTL)}
	m.mu.Unlock()
	return principal
}

// webhookExecutionID matches /api/v1/webhooks/{id}/{token}, the only
// unauthenticated webhook route.
func webhookExecutionID(path string) (string, bool) {
	rest, ok := strings.CutPrefix(path, "/api/v1/webhooks/")
	if !ok {
		return "", false
	}
	id, token, ok := strings.Cut(rest, "/")
	if !ok || id == "" || token == "" || strings.Contains(token, "/") {
		return "", false
	}
	return id, true
}

func bearerToken(r *http.Request) string {
	h := r.Header.Get("Authorization")
	token, ok := strings.CutPrefix(h, "Bearer ")
	if !ok {
		return ""
	}
	return token
}

func clientHost(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}

func writeLimitHeaders(w http.ResponseWriter, res Result) {
	w.Header().Set("X-RateLimit-Limit", strconv.Itoa(res.Limit))
	w.Header().Set("X-RateLimit-Remaining", strconv.Itoa(res.Remaining))
	w.Header().Set("X-RateLimit-Reset", strconv.FormatInt(res.Reset, 10))
}

func writeExceeded(w http.ResponseWriter, res Result) {
	code := "RATE_LIMITED"
	if res.Category == "auth" {
		code = "AUTH_RATE_LIMITED"
	}

	w.Header().Set("Retry-After", strconv.Itoa(int(math.Ceil(res.RetryAfter.Seconds()))))
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusTooManyRequests)
	_ = json.NewEncoder(w).Encode(map[string]any{
		"error": map[string]any{
			"code":           code,
			"message":        "rate limit exceeded",
			"retry_after_ms": res.RetryAfter.Milliseconds(),
		},
	})
}
