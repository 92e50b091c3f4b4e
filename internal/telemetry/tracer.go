package telemetry

import (
	"context"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

// Common attribute keys for gateway and API operations.
// These follow OpenTelemetry semantic conventions where applicable.
// Subsystem-specific keys use their own prefix (gateway., federation., etc.).
const (
	// ========================================================================
	// Client attributes (transport-agnostic)
	// ========================================================================
	AttrClientIP   = "client.ip"
	AttrClientAddr = "client.address"
	AttrClientPort = "client.port"

	// ========================================================================
	// Gateway attributes
	// ========================================================================
	AttrGatewayEvent     = "gateway.event"      // Dispatched event type
	AttrGatewaySeq       = "gateway.seq"        // Sequence number
	AttrGatewaySession   = "gateway.session_id" // Session identifier
	AttrGatewayCloseCode = "gateway.close_code" // WebSocket close code
	AttrGatewayResumed   = "gateway.resumed"    // Whether the session was resumed
	AttrGatewayCompress  = "gateway.compress"   // Negotiated compression scheme

	// ========================================================================
	// User/Auth attributes
	// ========================================================================
	AttrUserID      = "user.id"
	AttrUsername    = "user.name"
	AttrUserBot     = "user.bot"
	AttrAuthMethod  = "auth.method"
	AttrAuthPurpose = "auth.token_purpose"

	// ========================================================================
	// Chat entity attributes
	// ========================================================================
	AttrFeedID     = "feed.id"
	AttrRoomID     = "room.id"
	AttrThreadID   = "thread.id"
	AttrCategoryID = "category.id"
	AttrDMID       = "dm.id"
	AttrMessageID  = "message.id"
	AttrRoleID     = "role.id"
	AttrInviteCode = "invite.code"

	// ========================================================================
	// Federation attributes
	// ========================================================================
	AttrFedDomain   = "federation.domain"   // Remote server domain
	AttrFedOrigin   = "federation.origin"   // Claimed origin of an inbound request
	AttrFedPolicy   = "federation.policy"   // Effective policy decision
	AttrFedEndpoint = "federation.endpoint" // Relay endpoint path
	AttrFedAddress  = "federation.user_address"

	// ========================================================================
	// Rate limit attributes
	// ========================================================================
	AttrRateCategory  = "ratelimit.category"
	AttrRateBucket    = "ratelimit.bucket"
	AttrRateRemaining = "ratelimit.remaining"

	// ========================================================================
	// Event log attributes
	// ========================================================================
	AttrLogBackend  = "eventlog.backend"
	AttrLogCursor   = "eventlog.cursor"
	AttrLogCategory = "eventlog.category"
	AttrLogCount    = "eventlog.count"

	// ========================================================================
	// Storage backend attributes
	// ========================================================================
	AttrStoreName = "store.name"
	AttrStoreType = "store.type"
)

// Span names for operations.
// Format: <subsystem>.<operation>
const (
	// ========================================================================
	// Gateway spans
	// ========================================================================

	// Root span for a gateway connection lifecycle
	SpanGatewayConnect = "gateway.connect"

	SpanGatewayIdentify  = "gateway.identify"
	SpanGatewayResume    = "gateway.resume"
	SpanGatewayHeartbeat = "gateway.heartbeat"
	SpanGatewayDispatch  = "gateway.dispatch"
	SpanGatewayReplay    = "gateway.replay"

	// ========================================================================
	// Dispatch pipeline spans
	// ========================================================================
	SpanDispatchPersist = "dispatch.persist"
	SpanDispatchFanout  = "dispatch.fanout"
	SpanDispatchNotify  = "dispatch.notify"

	// ========================================================================
	// Federation spans
	// ========================================================================
	SpanFedDeliver   = "federation.deliver"
	SpanFedReceive   = "federation.receive"
	SpanFedVerify    = "federation.verify"
	SpanFedDNSLookup = "federation.dns_lookup"
	SpanFedVoucher   = "federation.voucher"

	// ========================================================================
	// Internal operations
	// ========================================================================
	SpanPermsResolve  = "permissions.resolve"
	SpanEventAppend   = "eventlog.append"
	SpanEventRead     = "eventlog.read"
	SpanNotifyExpand  = "notify.expand"
	SpanNotifyPush    = "notify.push"
	SpanStoreQuery    = "store.query"
	SpanStoreMutation = "store.mutation"
)

// ClientIP returns an attribute for client IP address
func ClientIP(ip string) attribute.KeyValue {
	return attribute.String(AttrClientIP, ip)
}

// ClientAddr returns an attribute for full client address
func ClientAddr(addr string) attribute.KeyValue {
	return attribute.String(AttrClientAddr, addr)
}

// GatewayEvent returns an attribute for a dispatched event type
func GatewayEvent(event string) attribute.KeyValue {
	return attribute.String(AttrGatewayEvent, event)
}

// Seq returns an attribute for a gateway sequence number
func Seq(seq int64) attribute.KeyValue {
	return attribute.Int64(AttrGatewaySeq, seq)
}

// SessionID returns an attribute for a gateway session identifier
func SessionID(id string) attribute.KeyValue {
	return attribute.String(AttrGatewaySession, id)
}

// CloseCode returns an attribute for a WebSocket close code
func CloseCode(code int) attribute.KeyValue {
	return attribute.Int(AttrGatewayCloseCode, code)
}

// Resumed returns an attribute indicating session resumption
func Resumed(resumed bool) attribute.KeyValue {
	return attribute.Bool(AttrGatewayResumed, resumed)
}

// UserID returns an attribute for a user ID
func UserID(id int64) attribute.KeyValue {
	return attribute.Int64(AttrUserID, id)
}

// Username returns an attribute for a username
func Username(name string) attribute.KeyValue {
	return attribute.String(AttrUsername, name)
}

// Bot returns an attribute indicating a bot session
func Bot(bot bool) attribute.KeyValue {
	return attribute.Bool(AttrUserBot, bot)
}

// AuthMethod returns an attribute for authentication method
func AuthMethod(method string) attribute.KeyValue {
	return attribute.String(AttrAuthMethod, method)
}

// FeedID returns an attribute for a feed ID
func FeedID(id int64) attribute.KeyValue {
	return attribute.Int64(AttrFeedID, id)
}

// RoomID returns an attribute for a room ID
func RoomID(id int64) attribute.KeyValue {
	return attribute.Int64(AttrRoomID, id)
}

// ThreadID returns an attribute for a thread ID
func ThreadID(id int64) attribute.KeyValue {
	return attribute.Int64(AttrThreadID, id)
}

// MessageID returns an attribute for a message ID
func MessageID(id int64) attribute.KeyValue {
	return attribute.Int64(AttrMessageID, id)
}

// RoleID returns an attribute for a role ID
func RoleID(id int64) attribute.KeyValue {
	return attribute.Int64(AttrRoleID, id)
}

// FedDomain returns an attribute for a remote federation domain
func FedDomain(domain string) attribute.KeyValue {
	return attribute.String(AttrFedDomain, domain)
}

// FedOrigin returns an attribute for the claimed origin of an inbound request
func FedOrigin(origin string) attribute.KeyValue {
	return attribute.String(AttrFedOrigin, origin)
}

// FedPolicy returns an attribute for the effective federation policy decision
func FedPolicy(policy string) attribute.KeyValue {
	return attribute.String(AttrFedPolicy, policy)
}

// FedAddress returns an attribute for a federated user address
func FedAddress(addr string) attribute.KeyValue {
	return attribute.String(AttrFedAddress, addr)
}

// RateCategory returns an attribute for a rate limit category
func RateCategory(category string) attribute.KeyValue {
	return attribute.String(AttrRateCategory, category)
}

// RateBucket returns an attribute for a rate limit bucket key
func RateBucket(key string) attribute.KeyValue {
	return attribute.String(AttrRateBucket, key)
}

// RateRemaining returns an attribute for remaining tokens in a bucket
func RateRemaining(remaining float64) attribute.KeyValue {
	return attribute.Float64(AttrRateRemaining, remaining)
}

// LogBackend returns an attribute for the event log backend name
func LogBackend(backend string) attribute.KeyValue {
	return attribute.String(AttrLogBackend, backend)
}

// LogCursor returns an attribute for an event log cursor position
func LogCursor(cursor int64) attribute.KeyValue {
	return attribute.Int64(AttrLogCursor, cursor)
}

// LogCategory returns an attribute for a sync category
func LogCategory(category string) attribute.KeyValue {
	return attribute.String(AttrLogCategory, category)
}

// LogCount returns an attribute for the number of events in a batch
func LogCount(count int) attribute.KeyValue {
	return attribute.Int(AttrLogCount, count)
}

// StoreName returns an attribute for store name
func StoreName(name string) attribute.KeyValue {
	return attribute.String(AttrStoreName, name)
}

// StoreType returns an attribute for store type
func StoreType(t string) attribute.KeyValue {
	return attribute.String(AttrStoreType, t)
}

// StartGatewaySpan starts a span for a gateway operation.
// This is a convenience function that sets common attributes.
func StartGatewaySpan(ctx context.Context, operation string, sessionID string, attrs ...attribute.KeyValue) (context.Context, trace.Span) {
	allAttrs := make([]attribute.KeyValue, 0, len(attrs)+1)
	if sessionID != "" {
		allAttrs = append(allAttrs, SessionID(sessionID))
	}
	allAttrs = append(allAttrs, attrs...)

	return StartSpan(ctx, "gateway."+operation, trace.WithAttributes(allAttrs...))
}

// StartDispatchSpan starts a span for an event dispatch operation.
func StartDispatchSpan(ctx context.Context, operation string, event string, attrs ...attribute.KeyValue) (context.Context, trace.Span) {
	allAttrs := []attribute.KeyValue{
		GatewayEvent(event),
	}
	allAttrs = append(allAttrs, attrs...)

	return StartSpan(ctx, "dispatch."+operation, trace.WithAttributes(allAttrs...))
}

// StartFederationSpan starts a span for a federation operation.
func StartFederationSpan(ctx context.Context, operation string, domain string, attrs ...attribute.KeyValue) (context.Context, trace.Span) {
	allAttrs := make([]attribute.KeyValue, 0, len(attrs)+1)
	if domain != "" {
		allAttrs = append(allAttrs, FedDomain(domain))
	}
	allAttrs = append(allAttrs, attrs...)

	return StartSpan(ctx, "federation."+operation, trace.WithAttributes(allAttrs...))
}

// StartEventLogSpan starts a span for an event log operation.
func StartEventLogSpan(ctx context.Context, operation string, attrs ...attribute.KeyValue) (context.Context, trace.Span) {
	return StartSpan(ctx, "eventlog."+operation, trace.WithAttributes(attrs...))
}

// StartStoreSpan starts a span for a persistence operation.
func StartStoreSpan(ctx context.Context, operation string, attrs ...attribute.KeyValue) (context.Context, trace.Span) {
	return StartSpan(ctx, "store."+operation, trace.WithAttributes(attrs...))
}
