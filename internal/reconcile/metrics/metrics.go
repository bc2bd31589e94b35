package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Outcomes recorded for a resolve attempt.
const (
	OutcomePromoted = "promoted"
	OutcomeReplayed = "replayed"
	OutcomeNotFound = "not_found"
	OutcomeInvalid  = "invalid"
	OutcomeFailed   = "failed"
)

// Metrics provides observability for manual reconciliation.
type Metrics struct {
	// Resolve attempts by outcome
	Resolutions *prometheus.CounterVec

	// Raw deliveries returned by list calls
	PendingListed prometheus.Histogram
}

func New(reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)
	return &Metrics{
		Resolutions: f.NewCounterVec(prometheus.CounterOpts{
			Name: "sitecarbon_reconcile_resolutions_total",
			Help: "Raw delivery resolve attempts by outcome",
		}, []string{"outcome"}),
		PendingListed: f.NewHistogram(prometheus.HistogramOpts{
			Name:    "sitecarbon_reconcile_pending_listed",
			Help:    "Raw deliveries awaiting reconciliation per list call",
			Buckets: prometheus.ExponentialBuckets(1, 4, 7),
		}),
	}
}

func (m *Metrics) IncrementOutcome(outcome string) {
	if m != nil {
		m.Resolutions.WithLabelValues(outcome).Inc()
	}
}

func (m *Metrics) ObservePending(n int) {
	if m != nil {
		m.PendingListed.Observe(float64(n))
	}
}
