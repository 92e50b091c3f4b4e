package logger

import "log/slog"

// Standard field keys for structured logging.
// Use these keys consistently across all log statements so that gateway,
// dispatch, federation, and REST logs can be aggregated and queried together.
const (
	// Distributed tracing
	KeyTraceID = "trace_id" // OpenTelemetry trace ID for request correlation
	KeySpanID  = "span_id"  // OpenTelemetry span ID for operation tracking

	// Gateway
	KeyEvent     = "event"      // Gateway event type: message_create, presence_update, ...
	KeySeq       = "seq"        // Per-session event sequence number
	KeySessionID = "session_id" // Gateway session identifier
	KeyCloseCode = "close_code" // WebSocket close code sent to the client
	KeyResumed   = "resumed"    // Whether the connection resumed a prior session

	// Identity
	KeyUserID   = "user_id"  // Snowflake user ID
	KeyUsername = "username" // Local username
	KeyClientIP = "client_ip"
	KeyBot      = "bot" // Whether the actor is a bot account

	// Spaces
	KeyFeedID     = "feed_id"
	KeyRoomID     = "room_id"
	KeyThreadID   = "thread_id"
	KeyCategoryID = "category_id"
	KeyDMID       = "dm_id"
	KeyMessageID  = "message_id"
	KeyRoleID     = "role_id"

	// Federation
	KeyDomain       = "domain"        // Remote federation domain
	KeyOrigin       = "origin"        // X-Vox-Origin header value
	KeyUserAddress  = "user_address"  // Federated address user@domain
	KeyPolicy       = "policy"        // Federation policy mode
	KeyVoucherNonce = "voucher_nonce" // Join voucher nonce
	KeyEndpoint     = "endpoint"      // S2S relay endpoint path

	// Rate limiting
	KeyCategory  = "category"   // Rate limit category
	KeyBucketKey = "bucket_key" // Rate limit bucket key

	// Operation metadata
	KeyDurationMs = "duration_ms"
	KeyError      = "error"
	KeyErrorCode  = "error_code" // Machine-readable API error code
	KeyStatus     = "status"     // HTTP status code
	KeyAttempt    = "attempt"    // Retry attempt number

	// Event log
	KeyBackend = "backend" // Event log backend: memory, badger, postgres
	KeyCursor  = "cursor"  // Sync pagination cursor
)

// Field constructors for type safety.

// TraceID returns a slog.Attr for OpenTelemetry trace ID
func TraceID(id string) slog.Attr {
	return slog.String(KeyTraceID, id)
}

// SpanID returns a slog.Attr for OpenTelemetry span ID
func SpanID(id string) slog.Attr {
	return slog.String(KeySpanID, id)
}

// Event returns a slog.Attr for a gateway event type
func Event(name string) slog.Attr {
	return slog.String(KeyEvent, name)
}

// Seq returns a slog.Attr for a session sequence number
func Seq(n int64) slog.Attr {
	return slog.Int64(KeySeq, n)
}

// SessionID returns a slog.Attr for a gateway session identifier
func SessionID(id string) slog.Attr {
	return slog.String(KeySessionID, id)
}

// CloseCode returns a slog.Attr for a WebSocket close code
func CloseCode(code int) slog.Attr {
	return slog.Int(KeyCloseCode, code)
}

// UserID returns a slog.Attr for a snowflake user ID
func UserID(id int64) slog.Attr {
	return slog.Int64(KeyUserID, id)
}

// Username returns a slog.Attr for a local username
func Username(name string) slog.Attr {
	return slog.String(KeyUsername, name)
}

// ClientIP returns a slog.Attr for a client IP address
func ClientIP(addr string) slog.Attr {
	return slog.String(KeyClientIP, addr)
}

// FeedID returns a slog.Attr for a feed ID
func FeedID(id int64) slog.Attr {
	return slog.Int64(KeyFeedID, id)
}

// MessageID returns a slog.Attr for a message ID
func MessageID(id int64) slog.Attr {
	return slog.Int64(KeyMessageID, id)
}

// Domain returns a slog.Attr for a federation domain
func Domain(name string) slog.Attr {
	return slog.String(KeyDomain, name)
}

// UserAddress returns a slog.Attr for a federated user address
func UserAddress(addr string) slog.Attr {
	return slog.String(KeyUserAddress, addr)
}

// Endpoint returns a slog.Attr for a federation relay endpoint
func Endpoint(path string) slog.Attr {
	return slog.String(KeyEndpoint, path)
}

// Category returns a slog.Attr for a rate limit category
func Category(name string) slog.Attr {
	return slog.String(KeyCategory, name)
}

// DurationMs returns a slog.Attr for duration in milliseconds
func DurationMs(ms float64) slog.Attr {
	return slog.Float64(KeyDurationMs, ms)
}

// Err returns a slog.Attr for an error
func Err(err error) slog.Attr {
	if err == nil {
		return slog.Attr{}
	}
	return slog.String(KeyError, err.Error())
}

// ErrorCode returns a slog.Attr for a machine-readable API error code
func ErrorCode(code string) slog.Attr {
	return slog.String(KeyErrorCode, code)
}

// Status returns a slog.Attr for an HTTP status code
func Status(code int) slog.Attr {
	return slog.Int(KeyStatus, code)
}

// Attempt returns a slog.Attr for a retry attempt number
func Attempt(n int) slog.Attr {
	return slog.Int(KeyAttempt, n)
}

// Backend returns a slog.Attr for an event log backend name
func Backend(name string) slog.Attr {
	return slog.String(KeyBackend, name)
}
