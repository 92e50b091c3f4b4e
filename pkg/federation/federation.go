// Package federation implements the server-to-server envelope: Ed25519
// request signing, DNS-based key and policy discovery, join vouchers
// with nonce replay defence, and a retrying outbound client.
//
// Every inter-server request carries three headers - the origin domain,
// a base64 Ed25519 signature over body||ascii(unix_seconds), and the
// timestamp itself. The receiver fetches the origin's published key
// from DNS and verifies before any handler runs.
package federation

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

// Signature headers carried on every S2S request.
const (
	HeaderOrigin    = "X-Vox-Origin"
	HeaderSignature = "X-Vox-Signature"
	HeaderTimestamp = "X-Vox-Timestamp"
)

// ClockSkew is the accepted window around the request timestamp.
const ClockSkew = 60 * time.Second

// NonceTTL bounds how long a consumed voucher nonce is remembered. It
// comfortably exceeds the voucher lifetime, so a replay can never
// outlive its nonce record.
const NonceTTL = 10 * time.Minute

// Verification and policy failures, mapped to wire error codes by the
// HTTP layer.
var (
	ErrAuthFailed   = errors.New("federation signature verification failed")
	ErrBlocked      = errors.New("federation target is blocked")
	ErrPolicyDenied = errors.New("federation policy denies this origin")
)

// Config holds the local server's federation settings.
type Config struct {
	// Domain is this server's federation identity, e.g. "vox.example".
	Domain string `mapstructure:"domain" yaml:"domain"`

	// Policy is the inbound policy: open, closed, or allowlist.
	Policy string `mapstructure:"policy" yaml:"policy"`

	// RequestTimeout bounds a single outbound S2S request.
	RequestTimeout time.Duration `mapstructure:"request_timeout" yaml:"request_timeout"`
}

// ApplyDefaults fills in zero-valued fields.
func (c *Config) ApplyDefaults() {
	if c.Policy == "" {
		c.Policy = "open"
	}
	if c.RequestTimeout == 0 {
		c.RequestTimeout = 10 * time.Second
	}
}

// Validate checks the configuration.
func (c *Config) Validate() error {
	switch c.Policy {
	case "open", "closed", "allowlist":
	default:
		return fmt.Errorf("invalid federation policy %q", c.Policy)
	}
	return nil
}

// SplitAddress splits a federated user address "user@domain" into its
// parts. A bare username yields an empty domain, meaning local.
func SplitAddress(addr string) (username, domain string) {
	username, domain, _ = strings.Cut(addr, "@")
	return username, domain
}
