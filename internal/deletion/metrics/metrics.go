package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds Prometheus collectors for the deletion workflow.
type Metrics struct {
	RequestsCreated  *prometheus.CounterVec
	RequestsApproved prometheus.Counter
	RequestsRejected prometheus.Counter
	RequestsExecuted *prometheus.CounterVec
	RecordsDeleted   *prometheus.CounterVec
	CategoriesFailed *prometheus.CounterVec
	ExecuteDuration  prometheus.Histogram
}

// New registers and returns deletion metrics collectors.
func New() *Metrics {
	return &Metrics{
		RequestsCreated: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "custodian_deletion_requests_created_total",
			Help: "Total number of deletion requests created, labeled by type",
		}, []string{"type"}),
		RequestsApproved: promauto.NewCounter(prometheus.CounterOpts{
			Name: "custodian_deletion_requests_approved_total",
			Help: "Total number of deletion requests approved",
		}),
		RequestsRejected: promauto.NewCounter(prometheus.CounterOpts{
			Name: "custodian_deletion_requests_rejected_total",
			Help: "Total number of deletion requests rejected",
		}),
		RequestsExecuted: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "custodian_deletion_requests_executed_total",
			Help: "Total number of executed deletion requests, labeled by outcome",
		}, []string{"outcome"}),
		RecordsDeleted: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "custodian_deletion_records_deleted_total",
			Help: "Total number of records deleted or anonymized, labeled by category",
		}, []string{"category"}),
		CategoriesFailed: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "custodian_deletion_categories_failed_total",
			Help: "Total number of per-category deletion failures, labeled by category",
		}, []string{"category"}),
		ExecuteDuration: promauto.NewHistogram(prometheus.HistogramOpts{
			Name:    "custodian_deletion_execute_duration_seconds",
			Help:    "Duration of deletion request execution in seconds",
			Buckets: prometheus.DefBuckets,
		}),
	}
}
