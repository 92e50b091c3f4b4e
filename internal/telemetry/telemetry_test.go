package telemetry

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/codes"
)

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()

	assert.False(t, cfg.Enabled)
	assert.Equal(t, "vox", cfg.ServiceName)
	assert.Equal(t, "dev", cfg.ServiceVersion)
	assert.Equal(t, "localhost:4317", cfg.Endpoint)
	assert.True(t, cfg.Insecure)
	assert.Equal(t, 1.0, cfg.SampleRate)
}

func TestInitDisabled(t *testing.T) {
	ctx := context.Background()
	cfg := DefaultConfig()
	cfg.Enabled = false

	shutdown, err := Init(ctx, cfg)
	require.NoError(t, err)
	require.NotNil(t, shutdown)

	// Should be able to call shutdown without error
	err = shutdown(ctx)
	assert.NoError(t, err)

	// Should not be enabled
	assert.False(t, IsEnabled())
}

func TestTracerReturnsNoOp(t *testing.T) {
	// Reset state
	tracer = nil
	enabled = false

	// Without initialization, should return no-op tracer
	tr := Tracer()
	require.NotNil(t, tr)
}

func TestStartSpan(t *testing.T) {
	ctx := context.Background()

	// Even without initialization, StartSpan should work (no-op)
	newCtx, span := StartSpan(ctx, "test.operation")
	require.NotNil(t, newCtx)
	require.NotNil(t, span)

	// Should be able to end the span
	span.End()
}

func TestSpanFromContext(t *testing.T) {
	ctx := context.Background()

	// Should return a span even without active span
	span := SpanFromContext(ctx)
	require.NotNil(t, span)
}

func TestAddEvent(t *testing.T) {
	ctx := context.Background()

	// Should not panic with no active span
	require.NotPanics(t, func() {
		AddEvent(ctx, "test.event")
	})
}

func TestRecordError(t *testing.T) {
	ctx := context.Background()

	// Should not panic with nil error
	require.NotPanics(t, func() {
		RecordError(ctx, nil)
	})

	// Should not panic with error
	require.NotPanics(t, func() {
		RecordError(ctx, errors.New("test error"))
	})
}

func TestSetStatus(t *testing.T) {
	ctx := context.Background()

	// Should not panic
	require.NotPanics(t, func() {
		SetStatus(ctx, codes.Ok, "success")
	})

	require.NotPanics(t, func() {
		SetStatus(ctx, codes.Error, "failed")
	})
}

func TestSetAttributes(t *testing.T) {
	ctx := context.Background()

	// Should not panic
	require.NotPanics(t, func() {
		SetAttributes(ctx, ClientIP("192.168.1.1"))
	})
}

func TestTraceID(t *testing.T) {
	ctx := context.Background()

	// Without active span, should return empty string
	traceID := TraceID(ctx)
	assert.Equal(t, "", traceID)
}

func TestSpanID(t *testing.T) {
	ctx := context.Background()

	// Without active span, should return empty string
	spanID := SpanID(ctx)
	assert.Equal(t, "", spanID)
}

func TestAttributeHelpers(t *testing.T) {
	t.Run("ClientIP", func(t *testing.T) {
		attr := ClientIP("192.168.1.100")
		assert.Equal(t, AttrClientIP, string(attr.Key))
		assert.Equal(t, "192.168.1.100", attr.Value.AsString())
	})

	t.Run("ClientAddr", func(t *testing.T) {
		attr := ClientAddr("192.168.1.100:12345")
		assert.Equal(t, AttrClientAddr, string(attr.Key))
		assert.Equal(t, "192.168.1.100:12345", attr.Value.AsString())
	})

	t.Run("GatewayEvent", func(t *testing.T) {
		attr := GatewayEvent("message_create")
		assert.Equal(t, AttrGatewayEvent, string(attr.Key))
		assert.Equal(t, "message_create", attr.Value.AsString())
	})

	t.Run("Seq", func(t *testing.T) {
		attr := Seq(42)
		assert.Equal(t, AttrGatewaySeq, string(attr.Key))
		assert.Equal(t, int64(42), attr.Value.AsInt64())
	})

	t.Run("SessionID", func(t *testing.T) {
		attr := SessionID("a1b2c3d4e5f6a7b8c9d0e1f2")
		assert.Equal(t, AttrGatewaySession, string(attr.Key))
		assert.Equal(t, "a1b2c3d4e5f6a7b8c9d0e1f2", attr.Value.AsString())
	})

	t.Run("CloseCode", func(t *testing.T) {
		attr := CloseCode(4008)
		assert.Equal(t, AttrGatewayCloseCode, string(attr.Key))
		assert.Equal(t, int64(4008), attr.Value.AsInt64())
	})

	t.Run("Resumed", func(t *testing.T) {
		attr := Resumed(true)
		assert.Equal(t, AttrGatewayResumed, string(attr.Key))
		assert.True(t, attr.Value.AsBool())
	})

	t.Run("UserID", func(t *testing.T) {
		attr := UserID(1000)
		assert.Equal(t, AttrUserID, string(attr.Key))
		assert.Equal(t, int64(1000), attr.Value.AsInt64())
	})

	t.Run("Username", func(t *testing.T) {
		attr := Username("alice")
		assert.Equal(t, AttrUsername, string(attr.Key))
		assert.Equal(t, "alice", attr.Value.AsString())
	})

	t.Run("Bot", func(t *testing.T) {
		attr := Bot(true)
		assert.Equal(t, AttrUserBot, string(attr.Key))
		assert.True(t, attr.Value.AsBool())
	})

	t.Run("FeedID", func(t *testing.T) {
		attr := FeedID(123456789)
		assert.Equal(t, AttrFeedID, string(attr.Key))
		assert.Equal(t, int64(123456789), attr.Value.AsInt64())
	})

	t.Run("MessageID", func(t *testing.T) {
		attr := MessageID(987654321)
		assert.Equal(t, AttrMessageID, string(attr.Key))
		assert.Equal(t, int64(987654321), attr.Value.AsInt64())
	})

	t.Run("FedDomain", func(t *testing.T) {
		attr := FedDomain("remote.example")
		assert.Equal(t, AttrFedDomain, string(attr.Key))
		assert.Equal(t, "remote.example", attr.Value.AsString())
	})

	t.Run("FedPolicy", func(t *testing.T) {
		attr := FedPolicy("allowlist")
		assert.Equal(t, AttrFedPolicy, string(attr.Key))
		assert.Equal(t, "allowlist", attr.Value.AsString())
	})

	t.Run("FedAddress", func(t *testing.T) {
		attr := FedAddress("alice@remote.example")
		assert.Equal(t, AttrFedAddress, string(attr.Key))
		assert.Equal(t, "alice@remote.example", attr.Value.AsString())
	})

	t.Run("RateCategory", func(t *testing.T) {
		attr := RateCategory("messages")
		assert.Equal(t, AttrRateCategory, string(attr.Key))
		assert.Equal(t, "messages", attr.Value.AsString())
	})

	t.Run("RateBucket", func(t *testing.T) {
		attr := RateBucket("user:1000")
		assert.Equal(t, AttrRateBucket, string(attr.Key))
		assert.Equal(t, "user:1000", attr.Value.AsString())
	})

	t.Run("LogBackend", func(t *testing.T) {
		attr := LogBackend("badger")
		assert.Equal(t, AttrLogBackend, string(attr.Key))
		assert.Equal(t, "badger", attr.Value.AsString())
	})

	t.Run("LogCursor", func(t *testing.T) {
		attr := LogCursor(44021)
		assert.Equal(t, AttrLogCursor, string(attr.Key))
		assert.Equal(t, int64(44021), attr.Value.AsInt64())
	})

	t.Run("LogCategory", func(t *testing.T) {
		attr := LogCategory("members")
		assert.Equal(t, AttrLogCategory, string(attr.Key))
		assert.Equal(t, "members", attr.Value.AsString())
	})

	t.Run("StoreName", func(t *testing.T) {
		attr := StoreName("sqlite")
		assert.Equal(t, AttrStoreName, string(attr.Key))
		assert.Equal(t, "sqlite", attr.Value.AsString())
	})
}

func TestStartGatewaySpan(t *testing.T) {
	ctx := context.Background()

	newCtx, span := StartGatewaySpan(ctx, "identify", "a1b2c3d4e5f6a7b8c9d0e1f2")
	require.NotNil(t, newCtx)
	require.NotNil(t, span)
	span.End()

	// With empty session ID
	newCtx2, span2 := StartGatewaySpan(ctx, "connect", "")
	require.NotNil(t, newCtx2)
	require.NotNil(t, span2)
	span2.End()

	// With additional attributes
	newCtx3, span3 := StartGatewaySpan(ctx, "resume", "a1b2c3d4e5f6a7b8c9d0e1f2", Seq(42), Resumed(true))
	require.NotNil(t, newCtx3)
	require.NotNil(t, span3)
	span3.End()
}

func TestStartDispatchSpan(t *testing.T) {
	ctx := context.Background()

	newCtx, span := StartDispatchSpan(ctx, "fanout", "message_create")
	require.NotNil(t, newCtx)
	require.NotNil(t, span)
	span.End()

	// With additional attributes
	newCtx2, span2 := StartDispatchSpan(ctx, "persist", "member_join", UserID(1000))
	require.NotNil(t, newCtx2)
	require.NotNil(t, span2)
	span2.End()
}

func TestStartFederationSpan(t *testing.T) {
	ctx := context.Background()

	newCtx, span := StartFederationSpan(ctx, "deliver", "remote.example")
	require.NotNil(t, newCtx)
	require.NotNil(t, span)
	span.End()

	// With additional attributes
	newCtx2, span2 := StartFederationSpan(ctx, "verify", "remote.example", FedPolicy("open"))
	require.NotNil(t, newCtx2)
	require.NotNil(t, span2)
	span2.End()
}

func TestStartEventLogSpan(t *testing.T) {
	ctx := context.Background()

	newCtx, span := StartEventLogSpan(ctx, "append")
	require.NotNil(t, newCtx)
	require.NotNil(t, span)
	span.End()

	// With additional attributes
	newCtx2, span2 := StartEventLogSpan(ctx, "read", LogBackend("postgres"), LogCursor(0))
	require.NotNil(t, newCtx2)
	require.NotNil(t, span2)
	span2.End()
}
