package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds Prometheus collectors for retention execution.
type Metrics struct {
	PoliciesExecuted *prometheus.CounterVec
	PoliciesFailed   *prometheus.CounterVec
	RecordsDeleted   *prometheus.CounterVec
	RecordsArchived  *prometheus.CounterVec
	RunDuration      prometheus.Histogram
}

// New registers and returns retention metrics collectors.
func New() *Metrics {
	return &Metrics{
		PoliciesExecuted: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "custodian_retention_policies_executed_total",
			Help: "Total number of retention policy executions, labeled by category and action",
		}, []string{"category", "action"}),
		PoliciesFailed: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "custodian_retention_policies_failed_total",
			Help: "Total number of failed retention policy executions, labeled by category",
		}, []string{"category"}),
		RecordsDeleted: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "custodian_retention_records_deleted_total",
			Help: "Total number of records hard-deleted by retention, labeled by category",
		}, []string{"category"}),
		RecordsArchived: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "custodian_retention_records_archived_total",
			Help: "Total number of records archived by retention, labeled by category",
		}, []string{"category"}),
		RunDuration: promauto.NewHistogram(prometheus.HistogramOpts{
			Name:    "custodian_retention_run_duration_seconds",
			Help:    "Duration of ExecuteDuePolicies runs in seconds",
			Buckets: prometheus.DefBuckets,
		}),
	}
}
