package prometheus

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/cmorg789/vox/pkg/metrics"
)

// eventLogMetrics is the Prometheus implementation of metrics.EventLogMetrics.
type eventLogMetrics struct {
	appends        prometheus.Counter
	appendDuration prometheus.Histogram
	reads          prometheus.Counter
	readEvents     prometheus.Histogram
	prunedEvents   prometheus.Counter
}

// NewEventLogMetrics creates a new Prometheus-backed EventLogMetrics instance
// labeled with the backend name ("memory", "badger", or "postgres").
//
// Returns nil if metrics are not enabled (InitRegistry not called).
func NewEventLogMetrics(backend string) metrics.EventLogMetrics {
	if !metrics.IsEnabled() {
		return nil
	}

	reg := metrics.GetRegistry()
	labels := prometheus.Labels{"backend": backend}

	return &eventLogMetrics{
		appends: promauto.With(reg).NewCounter(
			prometheus.CounterOpts{
				Name:        "vox_eventlog_appends_total",
				Help:        "Total number of events appended to the log",
				ConstLabels: labels,
			},
		),
		appendDuration: promauto.With(reg).NewHistogram(
			prometheus.HistogramOpts{
				Name: "vox_eventlog_append_duration_milliseconds",
				Help: "Duration of event log appends in milliseconds",
				Buckets: []float64{
					0.1, // 100us - memory backend
					0.5, // 500us
					1,   // 1ms
					5,   // 5ms
					10,  // 10ms
					50,  // 50ms
					100, // 100ms - slow disk
				},
				ConstLabels: labels,
			},
		),
		reads: promauto.With(reg).NewCounter(
			prometheus.CounterOpts{
				Name:        "vox_eventlog_reads_total",
				Help:        "Total number of event log read operations",
				ConstLabels: labels,
			},
		),
		readEvents: promauto.With(reg).NewHistogram(
			prometheus.HistogramOpts{
				Name:        "vox_eventlog_read_events",
				Help:        "Distribution of events returned per log read",
				Buckets:     []float64{0, 1, 10, 25, 50, 100},
				ConstLabels: labels,
			},
		),
		prunedEvents: promauto.With(reg).NewCounter(
			prometheus.CounterOpts{
				Name:        "vox_eventlog_pruned_events_total",
				Help:        "Total number of events removed by retention sweeps",
				ConstLabels: labels,
			},
		),
	}
}

func (m *eventLogMetrics) RecordAppend(duration time.Duration) {
	if m == nil {
		return
	}
	m.appends.Inc()
	m.appendDuration.Observe(float64(duration.Milliseconds()))
}

func (m *eventLogMetrics) RecordRead(events int, duration time.Duration) {
	if m == nil {
		return
	}
	m.reads.Inc()
	m.readEvents.Observe(float64(events))
}

func (m *eventLogMetrics) RecordPrune(removed int) {
	if m == nil {
		return
	}
	m.prunedEvents.Add(float64(removed))
}
