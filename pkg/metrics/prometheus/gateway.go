package prometheus

import (
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/cmorg789/vox/pkg/metrics"
)

// gatewayMetrics is the Prometheus implementation of metrics.GatewayMetrics.
type gatewayMetrics struct {
	connectionsAccepted prometheus.Counter
	connectionsClosed   *prometheus.CounterVec
	connectionsActive   prometheus.Gauge
	eventsDispatched    *prometheus.CounterVec
	eventRecipients     prometheus.Histogram
	identifies          *prometheus.CounterVec
	identifyDuration    prometheus.Histogram
	resumes             *prometheus.CounterVec
	replayedEvents      prometheus.Histogram
	heartbeatExpired    prometheus.Counter
	sessionsPreserved   prometheus.Gauge
}

// NewGatewayMetrics creates a new Prometheus-backed GatewayMetrics instance.
//
// Returns nil if metrics are not enabled (InitRegistry not called).
func NewGatewayMetrics() metrics.GatewayMetrics {
	if !metrics.IsEnabled() {
		return nil
	}

	reg := metrics.GetRegistry()

	return &gatewayMetrics{
		connectionsAccepted: promauto.With(reg).NewCounter(
			prometheus.CounterOpts{
				Name: "vox_gateway_connections_accepted_total",
				Help: "Total number of WebSocket connections accepted",
			},
		),
		connectionsClosed: promauto.With(reg).NewCounterVec(
			prometheus.CounterOpts{
				Name: "vox_gateway_connections_closed_total",
				Help: "Total number of WebSocket connections closed by close code",
			},
			[]string{"code"},
		),
		connectionsActive: promauto.With(reg).NewGauge(
			prometheus.GaugeOpts{
				Name: "vox_gateway_connections_active",
				Help: "Current number of open WebSocket connections",
			},
		),
		eventsDispatched: promauto.With(reg).NewCounterVec(
			prometheus.CounterOpts{
				Name: "vox_gateway_events_dispatched_total",
				Help: "Total number of events dispatched by event type",
			},
			[]string{"type"},
		),
		eventRecipients: promauto.With(reg).NewHistogram(
			prometheus.HistogramOpts{
				Name:    "vox_gateway_event_recipients",
				Help:    "Distribution of session counts per dispatched event",
				Buckets: []float64{0, 1, 5, 10, 50, 100, 500, 1000, 5000},
			},
		),
		identifies: promauto.With(reg).NewCounterVec(
			prometheus.CounterOpts{
				Name: "vox_gateway_identifies_total",
				Help: "Total number of identify handshakes by outcome",
			},
			[]string{"outcome"}, // "ok", "auth_failed", "rate_limited", "version_mismatch"
		),
		identifyDuration: promauto.With(reg).NewHistogram(
			prometheus.HistogramOpts{
				Name: "vox_gateway_identify_duration_milliseconds",
				Help: "Time from connection open to ready in milliseconds",
				Buckets: []float64{
					1,    // 1ms
					5,    // 5ms
					10,   // 10ms
					50,   // 50ms
					100,  // 100ms
					500,  // 500ms
					1000, // 1s
					5000, // 5s - slow auth backends
				},
			},
		),
		resumes: promauto.With(reg).NewCounterVec(
			prometheus.CounterOpts{
				Name: "vox_gateway_resumes_total",
				Help: "Total number of session resumption attempts by outcome",
			},
			[]string{"outcome"}, // "replayed", "expired", "exhausted"
		),
		replayedEvents: promauto.With(reg).NewHistogram(
			prometheus.HistogramOpts{
				Name:    "vox_gateway_replayed_events",
				Help:    "Distribution of events replayed per resumed session",
				Buckets: []float64{0, 1, 10, 50, 100, 250, 500, 1000},
			},
		),
		heartbeatExpired: promauto.With(reg).NewCounter(
			prometheus.CounterOpts{
				Name: "vox_gateway_heartbeat_expired_total",
				Help: "Total number of connections dropped for missed heartbeats",
			},
		),
		sessionsPreserved: promauto.With(reg).NewGauge(
			prometheus.GaugeOpts{
				Name: "vox_gateway_sessions_preserved",
				Help: "Current number of disconnected sessions held for resumption",
			},
		),
	}
}

func (m *gatewayMetrics) RecordConnectionAccepted() {
	if m == nil {
		return
	}
	m.connectionsAccepted.Inc()
}

func (m *gatewayMetrics) RecordConnectionClosed(code int) {
	if m == nil {
		return
	}
	m.connectionsClosed.WithLabelValues(strconv.Itoa(code)).Inc()
}

func (m *gatewayMetrics) SetActiveConnections(count int32) {
	if m == nil {
		return
	}
	m.connectionsActive.Set(float64(count))
}

func (m *gatewayMetrics) RecordEventDispatched(eventType string, recipients int) {
	if m == nil {
		return
	}
	m.eventsDispatched.WithLabelValues(eventType).Inc()
	m.eventRecipients.Observe(float64(recipients))
}

func (m *gatewayMetrics) RecordIdentify(outcome string, duration time.Duration) {
	if m == nil {
		return
	}
	m.identifies.WithLabelValues(outcome).Inc()
	m.identifyDuration.Observe(float64(duration.Milliseconds()))
}

func (m *gatewayMetrics) RecordResume(outcome string) {
	if m == nil {
		return
	}
	m.resumes.WithLabelValues(outcome).Inc()
}

func (m *gatewayMetrics) RecordReplay(events int) {
	if m == nil {
		return
	}
	m.replayedEvents.Observe(float64(events))
}

func (m *gatewayMetrics) RecordHeartbeatExpired() {
	if m == nil {
		return
	}
	m.heartbeatExpired.Inc()
}

func (m *gatewayMetrics) SetSessionsPreserved(count int32) {
	if m == nil {
		return
	}
	m.sessionsPreserved.Set(float64(count))
}
