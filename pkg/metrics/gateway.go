package metrics

import (
	"time"
)

// GatewayMetrics provides observability for WebSocket gateway operations.
//
// Implementations can collect metrics about connection lifecycle, event
// dispatch, session resumption, and heartbeats. This interface is optional -
// pass nil to disable metrics collection with zero overhead.
//
// Example usage:
//
//	// With metrics enabled
//	metrics := prometheus.NewGatewayMetrics()
//	hub := gateway.NewHub(cfg, metrics)
//
//	// Without metrics (pass nil for zero overhead)
//	hub := gateway.NewHub(cfg, nil)
type GatewayMetrics interface {
	// RecordConnectionAccepted increments the total accepted connections counter.
	RecordConnectionAccepted()

	// RecordConnectionClosed records a closed connection with its close code.
	//
	// Parameters:
	//   - code: WebSocket close code (e.g., 1000, 4004, 4008)
	RecordConnectionClosed(code int)

	// SetActiveConnections updates the current connection count.
	SetActiveConnections(count int32)

	// RecordEventDispatched records an event fanned out to connected sessions.
	//
	// Parameters:
	//   - eventType: Event type name (e.g., "message_create", "presence_update")
	//   - recipients: Number of sessions the event was delivered to
	RecordEventDispatched(eventType string, recipients int)

	// RecordIdentify records a completed identify handshake.
	//
	// Parameters:
	//   - outcome: "ok", "auth_failed", "rate_limited", or "version_mismatch"
	//   - duration: Time from connection open to ready
	RecordIdentify(outcome string, duration time.Duration)

	// RecordResume records a session resumption attempt.
	//
	// Parameters:
	//   - outcome: "replayed", "expired", or "exhausted"
	RecordResume(outcome string)

	// RecordReplay records the number of events replayed to a resuming session.
	RecordReplay(events int)

	// RecordHeartbeatExpired increments the dead-peer disconnect counter.
	RecordHeartbeatExpired()

	// SetSessionsPreserved updates the count of disconnected sessions held
	// for resumption.
	SetSessionsPreserved(count int32)
}
