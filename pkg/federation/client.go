package federation

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/sethvargo/go-retry"

	"github.com/cmorg789/vox/internal/logger"
	"github.com/cmorg789/vox/pkg/metrics"
)

// deliveryRetries caps retry attempts for one outbound delivery.
const deliveryRetries = 3

// Client performs signed outbound requests to remote servers. One
// instance with one pooled transport serves the whole process.
type Client struct {
	domain   string
	keys     *KeyManager
	resolver Resolver
	policy   *PolicyChecker
	http     *http.Client
	metrics  metrics.FederationMetrics
}

// NewClient creates an outbound federation client identified as
// cfg.Domain.
func NewClient(cfg Config, keys *KeyManager, resolver Resolver, policy *PolicyChecker, m metrics.FederationMetrics) *Client {
	return &Client{
		domain:   cfg.Domain,
		keys:     keys,
		resolver: resolver,
		policy:   policy,
		http: &http.Client{
			Timeout: cfg.RequestTimeout,
			Transport: &http.Transport{
				MaxIdleConns:        32,
				MaxIdleConnsPerHost: 4,
				IdleConnTimeout:     90 * time.Second,
			},
		},
		metrics: m,
	}
}

// Close releases the pooled connections.
func (c *Client) Close() {
	c.http.CloseIdleConnections()
}

// RelayMessage forwards a message to the recipient's home server.
func (c *Client) RelayMessage(ctx context.Context, domain string, payload any) error {
	return c.deliver(ctx, domain, "relay/message", payload)
}

// RelayTyping forwards a typing indicator.
func (c *Client) RelayTyping(ctx context.Context, domain string, payload any) error {
	return c.deliver(ctx, domain, "relay/typing", payload)
}

// RelayRead forwards a read-marker update.
func (c *Client) RelayRead(ctx context.Context, domain string, payload any) error {
	return c.deliver(ctx, domain, "relay/read", payload)
}

// NotifyPresence pushes a local user's presence change to a subscribed
// remote.
func (c *Client) NotifyPresence(ctx context.Context, domain string, payload any) error {
	return c.deliver(ctx, domain, "presence/notify", payload)
}

// SubscribePresence registers interest in a remote user's presence.
func (c *Client) SubscribePresence(ctx context.Context, domain string, payload any) error {
	return c.deliver(ctx, domain, "presence/subscribe", payload)
}

// JoinResponse is the remote's answer to a voucher-backed join.
type JoinResponse struct {
	Accepted        bool            `json:"accepted"`
	FederationToken string          `json:"federation_token"`
	ServerInfo      json.RawMessage `json:"server_info"`
}

// Join presents a voucher to the target server and returns the minted
// federation token.
func (c *Client) Join(ctx context.Context, domain, voucher, userAddress string) (*JoinResponse, error) {
	body, err := c.post(ctx, domain, "join", map[string]string{
		"voucher":      voucher,
		"user_address": userAddress,
	})
	if err != nil {
		return nil, err
	}
	var out JoinResponse
	if err := json.Unmarshal(body, &out); err != nil {
		return nil, fmt.Errorf("bad join response from %s: %w", domain, err)
	}
	return &out, nil
}

// FetchUser retrieves a remote user's public profile.
func (c *Client) FetchUser(ctx context.Context, domain, userAddress string) (json.RawMessage, error) {
	return c.get(ctx, domain, "users/"+userAddress)
}

// FetchPrekeys retrieves a remote user's published prekey bundle.
func (c *Client) FetchPrekeys(ctx context.Context, domain, userAddress string) (json.RawMessage, error) {
	return c.get(ctx, domain, "users/"+userAddress+"/prekeys")
}

// deliver posts a relay payload with fibonacci backoff. 5xx and
// transport errors retry; 4xx means the remote understood and refused,
// so retrying cannot help.
func (c *Client) deliver(ctx context.Context, domain, endpoint string, payload any) error {
	start := time.Now()
	outcome := "ok"

	backoff := retry.WithMaxRetries(deliveryRetries, retry.NewFibonacci(500*time.Millisecond))
	err := retry.Do(ctx, backoff, func(ctx context.Context) error {
		_, err := c.post(ctx, domain, endpoint, payload)
		if err == nil {
			return nil
		}
		var status *statusError
		if errors.As(err, &status) && status.code >= 400 && status.code < 500 {
			return err
		}
		return retry.RetryableError(err)
	})
	if err != nil {
		var status *statusError
		if errors.As(err, &status) {
			outcome = "rejected"
		} else {
			outcome = "unreachable"
		}
		logger.Warn("federation delivery failed",
			logger.Domain(domain), logger.Endpoint(endpoint), logger.Err(err))
	}
	if c.metrics != nil {
		c.metrics.RecordDelivery(domain, endpoint, time.Since(start), outcome)
	}
	return err
}

func (c *Client) post(ctx context.Context, domain, endpoint string, payload any) ([]byte, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("failed to encode %s payload: %w", endpoint, err)
	}
	return c.send(ctx, http.MethodPost, domain, endpoint, body)
}

func (c *Client) get(ctx context.Context, domain, endpoint string) ([]byte, error) {
	return c.send(ctx, http.MethodGet, domain, endpoint, nil)
}

func (c *Client) send(ctx context.Context, method, domain, endpoint string, body []byte) ([]byte, error) {
	if c.policy != nil {
		if err := c.policy.CheckOutbound(ctx, domain); err != nil {
			return nil, err
		}
	}

	_, priv, err := c.keys.Keys(ctx)
	if err != nil {
		return nil, err
	}
	host, err := c.resolver.Endpoint(ctx, domain)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve %s: %w", domain, err)
	}

	url := "https://" + host + "/api/v1/federation/" + endpoint
	req, err := http.NewRequestWithContext(ctx, method, url, bytes.NewReader(body))
	if err != nil {
		return nil, err
	}

	now := time.Now().Unix()
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set(HeaderOrigin, c.domain)
	req.Header.Set(HeaderSignature, Sign(priv, body, now))
	req.Header.Set(HeaderTimestamp, fmt.Sprintf("%d", now))

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request to %s failed: %w", domain, err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return nil, fmt.Errorf("failed to read response from %s: %w", domain, err)
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, &statusError{code: resp.StatusCode, domain: domain, endpoint: endpoint}
	}
	return respBody, nil
}

// statusError is a non-2xx remote response.
type statusError struct {
	code     int
	domain   string
	endpoint string
}

func (e *statusError) Error() string {
	return fmt.Sprintf("%s/%s returned HTTP %d", e.domain, e.endpoint, e.code)
}
