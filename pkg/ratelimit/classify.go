package ratelimit

import "strings"

// prefixCategories maps the first path segment after /api/v1/ to a
// category. Channel-shaped resources share one budget.
var prefixCategories = map[string]string{
	"auth":       "auth",
	"feeds":      "channels",
	"rooms":      "channels",
	"categories": "channels",
	"threads":    "channels",
	"users":      "members",
	"members":    "members",
	"roles":      "roles",
	"invites":    "invites",
	"webhooks":   "webhooks",
	"emoji":      "emoji",
	"stickers":   "emoji",
	"reports":    "moderation",
	"admin":      "moderation",
	"voice":      "voice",
	"bots":       "bots",
	"keys":       "e2ee",
	"dms":        "messages",
	"files":      "files",
	"federation": "federation",
	"server":     "server",
}

// skipPrefixes are paths the limiter never touches: the gateway
// upgrade, health probes, and the metrics scrape.
var skipPrefixes = []string{"/gateway", "/metrics", "/healthz", "/readyz"}

// Skip reports whether a path bypasses rate limiting entirely.
func Skip(path string) bool {
	for _, p := range skipPrefixes {
		if strings.HasPrefix(path, p) {
			return true
		}
	}
	return false
}

// Classify maps a request path to its rate-limit category. Message
// traffic wins over the owning resource: posting to a feed's messages
// endpoint budgets as "messages", not "channels", and webhook
// execution counts as message traffic for its webhook principal.
func Classify(path string) string {
	if strings.Contains(path, "/messages") {
		return "messages"
	}
	if _, ok := webhookExecutionID(path); ok {
		return "messages"
	}
	if strings.Contains(path, "/search") {
		return "search"
	}

	rest, ok := strings.CutPrefix(path, "/api/v1/")
	if !ok {
		return "server"
	}
	segment, _, _ := strings.Cut(rest, "/")
	if cat, ok := prefixCategories[segment]; ok {
		return cat
	}
	return "server"
}
