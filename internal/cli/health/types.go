// Package health provides shared types for server probe responses.
package health

// Response mirrors the body served at /healthz.
type Response struct {
	Status string `json:"status"`
	Uptime string `json:"uptime"`
}
