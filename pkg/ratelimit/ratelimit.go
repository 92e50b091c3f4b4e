// Package ratelimit applies per-category token buckets to the REST
// surface. Buckets live in a process-wide map keyed by (principal,
// category); principals are resolved from the request (federation
// peer, webhook, authenticated user, or client IP as a last resort).
package ratelimit

import (
	"math"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// limitSpec parameterises one category's bucket.
type limitSpec struct {
	max    int
	refill float64 // tokens per second
}

// Categories and their budgets. Auth is deliberately tight; its
// exceed responses use AUTH_RATE_LIMITED so clients can distinguish
// throttling from credential lockout.
var categories = map[string]limitSpec{
	"auth":       {5, 0.1},
	"messages":   {50, 1.0},
	"channels":   {20, 0.5},
	"roles":      {10, 0.2},
	"members":    {20, 0.5},
	"invites":    {10, 0.2},
	"webhooks":   {10, 0.2},
	"emoji":      {10, 0.2},
	"moderation": {10, 0.2},
	"voice":      {30, 1.0},
	"server":     {10, 0.2},
	"bots":       {10, 0.2},
	"e2ee":       {30, 0.5},
	"search":     {10, 0.1},
	"files":      {20, 0.5},
	"federation": {50, 1.0},
}

// bucketKey identifies one principal's budget in one category.
type bucketKey struct {
	principal string
	category  string
}

type bucket struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// Result reports one admission decision plus the header values every
// response carries.
type Result struct {
	Allowed    bool
	Category   string
	Limit      int
	Remaining  int
	Reset      int64 // unix seconds until the bucket is full again
	RetryAfter time.Duration
}

// Limiter is the process-wide bucket map.
type Limiter struct {
	mu      sync.Mutex
	buckets map[bucketKey]*bucket
	now     func() time.Time
}

// New creates an empty limiter.
func New() *Limiter {
	return &Limiter{
		buckets: make(map[bucketKey]*bucket),
		now:     time.Now,
	}
}

// Check consumes one token from the (principal, category) bucket.
// Unknown categories fall back to "server".
func (l *Limiter) Check(principal, category string) Result {
	spec, ok := categories[category]
	if !ok {
		category = "server"
		spec = categories[category]
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	key := bucketKey{principal: principal, category: category}
	b, ok := l.buckets[key]
	if !ok {
		b = &bucket{limiter: rate.NewLimiter(rate.Limit(spec.refill), spec.max)}
		l.buckets[key] = b
	}
	now := l.now()
	b.lastSeen = now

	allowed := b.limiter.AllowN(now, 1)
	tokens := b.limiter.TokensAt(now)
	if tokens < 0 {
		tokens = 0
	}

	res := Result{
		Allowed:   allowed,
		Category:  category,
		Limit:     spec.max,
		Remaining: int(tokens),
		Reset:     now.Unix() + int64(math.Ceil((float64(spec.max)-tokens)/spec.refill)),
	}
	if !allowed {
		res.RetryAfter = time.Duration((1-tokens)/spec.refill*1000) * time.Millisecond
		if res.RetryAfter < 0 {
			res.RetryAfter = 0
		}
	}
	return res
}

// Sweep drops buckets idle longer than maxIdle and returns how many
// were removed. Run periodically; abandoned buckets otherwise
// accumulate for every client IP ever seen.
func (l *Limiter) Sweep(maxIdle time.Duration) int {
	l.mu.Lock()
	defer l.mu.Unlock()

	cutoff := l.now().Add(-maxIdle)
	removed := 0
	for key, b := range l.buckets {
		if b.lastSeen.Before(cutoff) {
			delete(l.buckets, key)
			removed++
		}
	}
	return removed
}

// Size reports the live bucket count.
func (l *Limiter) Size() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.buckets)
}
