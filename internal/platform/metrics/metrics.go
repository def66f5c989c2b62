package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds all Prometheus metrics for the application.
type Metrics struct {
	EventsIngested       *prometheus.CounterVec
	Detections           *prometheus.CounterVec
	NotificationOutcomes *prometheus.CounterVec
	EventsPurged         prometheus.Counter
	IngestDuration       prometheus.Histogram
}

// New creates and registers all Prometheus metrics on the default registry.
func New() *Metrics {
	return &Metrics{
		EventsIngested: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "pathfinder_events_ingested_total",
			Help: "Webhook events ingested, partitioned by outcome status.",
		}, []string{"status"}),
		Detections: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "pathfinder_detections_total",
			Help: "Senior detections recorded, partitioned by seniority level.",
		}, []string{"level"}),
		NotificationOutcomes: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "pathfinder_notifications_total",
			Help: "Notification dispatch attempts, partitioned by outcome.",
		}, []string{"outcome"}),
		EventsPurged: promauto.NewCounter(prometheus.CounterOpts{
			Name: "pathfinder_events_purged_total",
			Help: "Processed events removed by the housekeeping sweep.",
		}),
		IngestDuration: promauto.NewHistogram(prometheus.HistogramOpts{
			Name:    "pathfinder_ingest_duration_seconds",
			Help:    "End-to-end duration of webhook ingestion requests.",
			Buckets: prometheus.DefBuckets,
		}),
	}
}

// IncIngested counts one ingestion outcome.
func (m *Metrics) IncIngested(status string) {
	if m == nil {
		return
	}
	m.EventsIngested.WithLabelValues(status).Inc()
}

// IncDetection counts one recorded detection for the given level.
func (m *Metrics) IncDetection(level string) {
	if m == nil {
		return
	}
	m.Detections.WithLabelValues(level).Inc()
}

// AddPurged counts events removed by a retention sweep.
func (m *Metrics) AddPurged(n int64) {
	if m == nil {
		return
	}
	m.EventsPurged.Add(float64(n))
}

// IncNotification counts one notification attempt outcome.
func (m *Metrics) IncNotification(outcome string) {
	if m == nil {
		return
	}
	m.NotificationOutcomes.WithLabelValues(outcome).Inc()
}
