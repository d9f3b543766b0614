package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds Prometheus collectors for the export pipeline.
type Metrics struct {
	RequestsCreated   *prometheus.CounterVec
	RequestsCompleted prometheus.Counter
	RequestsFailed    prometheus.Counter
	RequestsExpired   prometheus.Counter
	RequestsRequeued  prometheus.Counter
	ArtifactBytes     prometheus.Histogram
	ProcessDuration   prometheus.Histogram
}

// New registers and returns export metrics collectors.
func New() *Metrics {
	return &Metrics{
		RequestsCreated: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "custodian_export_requests_created_total",
			Help: "Total number of export requests created, labeled by format",
		}, []string{"format"}),
		RequestsCompleted: promauto.NewCounter(prometheus.CounterOpts{
			Name: "custodian_export_requests_completed_total",
			Help: "Total number of export requests that completed",
		}),
		RequestsFailed: promauto.NewCounter(prometheus.CounterOpts{
			Name: "custodian_export_requests_failed_total",
			Help: "Total number of export requests that failed",
		}),
		RequestsExpired: promauto.NewCounter(prometheus.CounterOpts{
			Name: "custodian_export_requests_expired_total",
			Help: "Total number of export artifacts destroyed on expiry",
		}),
		RequestsRequeued: promauto.NewCounter(prometheus.CounterOpts{
			Name: "custodian_export_requests_requeued_total",
			Help: "Total number of stale pending export requests re-enqueued",
		}),
		ArtifactBytes: promauto.NewHistogram(prometheus.HistogramOpts{
			Name:    "custodian_export_artifact_bytes",
			Help:    "Size distribution of written export artifacts",
			Buckets: prometheus.ExponentialBuckets(1024, 4, 8),
		}),
		ProcessDuration: promauto.NewHistogram(prometheus.HistogramOpts{
			Name:    "custodian_export_process_duration_seconds",
			Help:    "Duration of export request processing in seconds",
			Buckets: prometheus.DefBuckets,
		}),
	}
}
