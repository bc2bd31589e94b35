package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics provides observability for catalog loading.
type Metrics struct {
	// Fetch latency by category
	FetchLatency *prometheus.HistogramVec

	// Fetch failures by category; a failure leaves that category empty
	FetchFailures *prometheus.CounterVec

	LoadLatency prometheus.Histogram
}

// New creates a new Metrics instance with all catalog metrics registered on reg.
func New(reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)
	return &Metrics{
		FetchLatency: f.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "sitecarbon_catalog_fetch_duration_seconds",
			Help:    "Duration of reference list fetches by category",
			Buckets: []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1},
		}, []string{"category"}),

		FetchFailures: f.NewCounterVec(prometheus.CounterOpts{
			Name: "sitecarbon_catalog_fetch_failures_total",
			Help: "Reference list fetches that failed and were treated as empty",
		}, []string{"category"}),

		LoadLatency: f.NewHistogram(prometheus.HistogramOpts{
			Name:    "sitecarbon_catalog_load_duration_seconds",
			Help:    "Duration of a full catalog load including all parallel fetches",
			Buckets: []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5},
		}),
	}
}

// ObserveFetch records the duration of fetching one category.
func (m *Metrics) ObserveFetch(category string, d time.Duration) {
	if m != nil {
		m.FetchLatency.WithLabelValues(category).Observe(d.Seconds())
	}
}

func (m *Metrics) IncrementFetchFailure(category string) {
	if m != nil {
		m.FetchFailures.WithLabelValues(category).Inc()
	}
}

func (m *Metrics) ObserveLoad(d time.Duration) {
	if m != nil {
		m.LoadLatency.Observe(d.Seconds())
	}
}
