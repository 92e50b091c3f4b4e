package prometheus

import (
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/cmorg789/vox/pkg/metrics"
)

// httpMetrics is the Prometheus implementation of metrics.HTTPMetrics.
type httpMetrics struct {
	requests        *prometheus.CounterVec
	requestDuration *prometheus.HistogramVec
	inFlight        *prometheus.GaugeVec
	rateLimited     *prometheus.CounterVec
}

// NewHTTPMetrics creates a new Prometheus-backed HTTPMetrics instance.
//
// Returns nil if metrics are not enabled (InitRegistry not called).
func NewHTTPMetrics() metrics.HTTPMetrics {
	if !metrics.IsEnabled() {
		return nil
	}

	reg := metrics.GetRegistry()

	return &httpMetrics{
		requests: promauto.With(reg).NewCounterVec(
			prometheus.CounterOpts{
				Name: "vox_http_requests_total",
				Help: "Total number of HTTP requests by method, route, and status",
			},
			[]string{"method", "route", "status"},
		),
		requestDuration: promauto.With(reg).NewHistogramVec(
			prometheus.HistogramOpts{
				Name: "vox_http_request_duration_milliseconds",
				Help: "Duration of HTTP requests in milliseconds",
				Buckets: []float64{
					1,    // 1ms
					5,    // 5ms
					10,   // 10ms
					25,   // 25ms
					50,   // 50ms
					100,  // 100ms
					250,  // 250ms
					500,  // 500ms
					1000, // 1s
					5000, // 5s
				},
			},
			[]string{"method", "route"},
		),
		inFlight: promauto.With(reg).NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "vox_http_requests_in_flight",
				Help: "Current number of HTTP requests being processed",
			},
			[]string{"method", "route"},
		),
		rateLimited: promauto.With(reg).NewCounterVec(
			prometheus.CounterOpts{
				Name: "vox_http_rate_limited_total",
				Help: "Total number of requests rejected by the rate limiter by category",
			},
			[]string{"category"},
		),
	}
}

func (m *httpMetrics) RecordRequest(method string, route string, status int, duration time.Duration) {
	if m == nil {
		return
	}
	m.requests.WithLabelValues(method, route, strconv.Itoa(status)).Inc()
	m.requestDuration.WithLabelValues(method, route).Observe(float64(duration.Milliseconds()))
}

func (m *httpMetrics) RecordRequestStart(method string, route string) {
	if m == nil {
		return
	}
	m.inFlight.WithLabelValues(method, route).Inc()
}

func (m *httpMetrics) RecordRequestEnd(method string, route string) {
	if m == nil {
		return
	}
	m.inFlight.WithLabelValues(method, route).Dec()
}

func (m *httpMetrics) RecordRateLimited(category string) {
	if m == nil {
		return
	}
	m.rateLimited.WithLabelValues(category).Inc()
}
