package metrics

import (
	"time"
)

// FederationMetrics provides observability for server-to-server traffic.
//
// This interface is optional - pass nil to disable metrics collection with
// zero overhead.
type FederationMetrics interface {
	// RecordDelivery records an outbound delivery attempt to a remote server.
	//
	// Parameters:
	//   - domain: Remote server domain
	//   - endpoint: Relay endpoint (e.g., "relay/message", "presence/notify")
	//   - duration: Total time including retries
	//   - outcome: "ok", "rejected", or "unreachable"
	RecordDelivery(domain string, endpoint string, duration time.Duration, outcome string)

	// RecordInboundRequest records a verified inbound federation request.
	//
	// Parameters:
	//   - endpoint: Relay endpoint path
	//   - outcome: "ok", "auth_failed", "policy_denied", or "error"
	RecordInboundRequest(endpoint string, outcome string)

	// RecordKeyFetch records a DNS signing-key lookup.
	//
	// Parameters:
	//   - outcome: "hit" (cache), "resolved", or "error"
	RecordKeyFetch(outcome string)

	// RecordVoucherVerify records a join voucher verification.
	//
	// Parameters:
	//   - outcome: "ok", "expired", "replayed", or "invalid"
	RecordVoucherVerify(outcome string)

	// SetPresenceSubscriptions updates the count of active remote presence
	// subscriptions.
	SetPresenceSubscriptions(count int32)
}
