package observability

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds all Prometheus collectors for the service
type Metrics struct {
	HTTPRequestsTotal    *prometheus.CounterVec
	HTTPRequestDuration  *prometheus.HistogramVec
	HTTPRequestsInFlight prometheus.Gauge

	ChargesInitiated   *prometheus.CounterVec
	OutcomesApplied    *prometheus.CounterVec
	DuplicateOutcomes  prometheus.Counter
	OutcomeConflicts   prometheus.Counter
	UnreconciledParked prometheus.Counter

	NotificationsSent   prometheus.Counter
	NotificationsFailed prometheus.Counter
}

// NewMetrics creates and registers all metrics with the given registerer
func NewMetrics(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)

	return &Metrics{
		HTTPRequestsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "http_requests_total",
			Help: "Total number of HTTP requests",
		}, []string{"method", "path", "status"}),
		HTTPRequestDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "HTTP request latency",
			Buckets: prometheus.DefBuckets,
		}, []string{"method", "path"}),
		HTTPRequestsInFlight: factory.NewGauge(prometheus.GaugeOpts{
			Name: "http_requests_in_flight",
			Help: "Number of HTTP requests currently being served",
		}),

		ChargesInitiated: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "charges_initiated_total",
			Help: "Charge intents created, by payment type",
		}, []string{"type"}),
		OutcomesApplied: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "payment_outcomes_applied_total",
			Help: "Outcome events applied to payments, by type and outcome",
		}, []string{"type", "outcome"}),
		DuplicateOutcomes: factory.NewCounter(prometheus.CounterOpts{
			Name: "payment_outcomes_duplicate_total",
			Help: "Outcome events acknowledged as duplicates of an applied outcome",
		}),
		OutcomeConflicts: factory.NewCounter(prometheus.CounterOpts{
			Name: "payment_outcome_conflicts_total",
			Help: "Failure events rejected because the payment had already completed",
		}),
		UnreconciledParked: factory.NewCounter(prometheus.CounterOpts{
			Name: "unreconciled_events_parked_total",
			Help: "Outcome events parked because no payment could be matched or synthesized",
		}),

		NotificationsSent: factory.NewCounter(prometheus.CounterOpts{
			Name: "receipt_notifications_sent_total",
			Help: "Receipt emails delivered",
		}),
		NotificationsFailed: factory.NewCounter(prometheus.CounterOpts{
			Name: "receipt_notifications_failed_total",
			Help: "Receipt emails abandoned after retries",
		}),
	}
}
