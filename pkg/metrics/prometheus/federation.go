package prometheus

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/cmorg789/vox/pkg/metrics"
)

// federationMetrics is the Prometheus implementation of metrics.FederationMetrics.
type federationMetrics struct {
	deliveries       *prometheus.CounterVec
	deliveryDuration *prometheus.HistogramVec
	inboundRequests  *prometheus.CounterVec
	keyFetches       *prometheus.CounterVec
	voucherVerifies  *prometheus.CounterVec
	presenceSubs     prometheus.Gauge
}

// NewFederationMetrics creates a new Prometheus-backed FederationMetrics instance.
//
// Returns nil if metrics are not enabled (InitRegistry not called).
func NewFederationMetrics() metrics.FederationMetrics {
	if !metrics.IsEnabled() {
		return nil
	}

	reg := metrics.GetRegistry()

	return &federationMetrics{
		deliveries: promauto.With(reg).NewCounterVec(
			prometheus.CounterOpts{
				Name: "vox_federation_deliveries_total",
				Help: "Total number of outbound federation deliveries by domain, endpoint, and outcome",
			},
			[]string{"domain", "endpoint", "outcome"},
		),
		deliveryDuration: promauto.With(reg).NewHistogramVec(
			prometheus.HistogramOpts{
				Name: "vox_federation_delivery_duration_milliseconds",
				Help: "Duration of outbound federation deliveries in milliseconds, including retries",
				Buckets: []float64{
					10,    // 10ms - same datacenter
					50,    // 50ms
					100,   // 100ms
					250,   // 250ms
					500,   // 500ms
					1000,  // 1s
					5000,  // 5s
					15000, // 15s - retried deliveries
				},
			},
			[]string{"endpoint"},
		),
		inboundRequests: promauto.With(reg).NewCounterVec(
			prometheus.CounterOpts{
				Name: "vox_federation_inbound_requests_total",
				Help: "Total number of inbound federation requests by endpoint and outcome",
			},
			[]string{"endpoint", "outcome"},
		),
		keyFetches: promauto.With(reg).NewCounterVec(
			prometheus.CounterOpts{
				Name: "vox_federation_key_fetches_total",
				Help: "Total number of DNS signing-key lookups by outcome",
			},
			[]string{"outcome"}, // "hit", "resolved", "error"
		),
		voucherVerifies: promauto.With(reg).NewCounterVec(
			prometheus.CounterOpts{
				Name: "vox_federation_voucher_verifications_total",
				Help: "Total number of join voucher verifications by outcome",
			},
			[]string{"outcome"}, // "ok", "expired", "replayed", "invalid"
		),
		presenceSubs: promauto.With(reg).NewGauge(
			prometheus.GaugeOpts{
				Name: "vox_federation_presence_subscriptions",
				Help: "Current number of active remote presence subscriptions",
			},
		),
	}
}

func (m *federationMetrics) RecordDelivery(domain string, endpoint string, duration time.Duration, outcome string) {
	if m == nil {
		return
	}
	m.deliveries.WithLabelValues(domain, endpoint, outcome).Inc()
	m.deliveryDuration.WithLabelValues(endpoint).Observe(float64(duration.Milliseconds()))
}

func (m *federationMetrics) RecordInboundRequest(endpoint string, outcome string) {
	if m == nil {
		return
	}
	m.inboundRequests.WithLabelValues(endpoint, outcome).Inc()
}

func (m *federationMetrics) RecordKeyFetch(outcome string) {
	if m == nil {
		return
	}
	m.keyFetches.WithLabelValues(outcome).Inc()
}

func (m *federationMetrics) RecordVoucherVerify(outcome string) {
	if m == nil {
		return
	}
	m.voucherVerifies.WithLabelValues(outcome).Inc()
}

func (m *federationMetrics) SetPresenceSubscriptions(count int32) {
	if m == nil {
		return
	}
	m.presenceSubs.Set(float64(count))
}
