package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds Prometheus collectors for consent operations.
type Metrics struct {
	ConsentsRecorded  *prometheus.CounterVec
	ConsentsWithdrawn *prometheus.CounterVec
	ConsentsExpired   prometheus.Counter
	ChecksPassed      *prometheus.CounterVec
	ChecksFailed      *prometheus.CounterVec
}

// New registers and returns consent metrics collectors.
func New() *Metrics {
	return &Metrics{
		ConsentsRecorded: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "custodian_consents_recorded_total",
			Help: "Total number of consent decisions recorded, labeled by type and granted",
		}, []string{"type", "granted"}),
		ConsentsWithdrawn: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "custodian_consents_withdrawn_total",
			Help: "Total number of consents withdrawn, labeled by type",
		}, []string{"type"}),
		ConsentsExpired: promauto.NewCounter(prometheus.CounterOpts{
			Name: "custodian_consents_expired_total",
			Help: "Total number of consents auto-withdrawn on expiry",
		}),
		ChecksPassed: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "custodian_consent_checks_passed_total",
			Help: "Total number of consent checks that passed, labeled by type",
		}, []string{"type"}),
		ChecksFailed: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "custodian_consent_checks_failed_total",
			Help: "Total number of consent checks that failed, labeled by type",
		}, []string{"type"}),
	}
}
