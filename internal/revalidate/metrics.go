package revalidate

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics provides observability for invalidation fan-out.
type Metrics struct {
	// Invalidations by target and outcome: ok or error
	Invalidations *prometheus.CounterVec

	// 1 while a target's breaker is open
	BreakerOpen *prometheus.GaugeVec
}

// NewMetrics registers invalidation metrics on reg.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)
	return &Metrics{
		Invalidations: f.NewCounterVec(prometheus.CounterOpts{
			Name: "sitecarbon_revalidate_invalidations_total",
			Help: "Invalidation attempts by target and outcome",
		}, []string{"target", "outcome"}),

		BreakerOpen: f.NewGaugeVec(prometheus.GaugeOpts{
			Name: "sitecarbon_revalidate_breaker_open",
			Help: "Whether the circuit breaker for an invalidation target is open",
		}, []string{"target"}),
	}
}

func (m *Metrics) ObserveResult(target string, err error) {
	if m == nil {
		return
	}
	outcome := "ok"
	if err != nil {
		outcome = "error"
	}
	m.Invalidations.WithLabelValues(target, outcome).Inc()
}

func (m *Metrics) SetBreakerOpen(target string, open bool) {
	if m == nil {
		return
	}
	v := 0.0
	if open {
		v = 1
	}
	m.BreakerOpen.WithLabelValues(target).Set(v)
}
