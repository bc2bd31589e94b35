package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics provides observability for bulk uploads.
type Metrics struct {
	// Rows by partition: valid or invalid
	RowsProcessed *prometheus.CounterVec

	// Validation issues by field and kind
	Issues *prometheus.CounterVec

	// Uploads that aborted, by stage
	UploadFailures *prometheus.CounterVec

	// Resolved rows stored with zero embodied CO2 because no factor was found
	MissingFactors prometheus.Counter

	UploadDuration prometheus.Histogram
	BatchSize      prometheus.Histogram
}

// New creates a new Metrics instance with all upload metrics registered on reg.
func New(reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)
	return &Metrics{
		RowsProcessed: f.NewCounterVec(prometheus.CounterOpts{
			Name: "sitecarbon_ingest_rows_total",
			Help: "Uploaded rows by partition",
		}, []string{"partition"}),

		Issues: f.NewCounterVec(prometheus.CounterOpts{
			Name: "sitecarbon_ingest_validation_issues_total",
			Help: "Row validation issues by field and kind",
		}, []string{"field", "kind"}),

		UploadFailures: f.NewCounterVec(prometheus.CounterOpts{
			Name: "sitecarbon_ingest_upload_failures_total",
			Help: "Uploads aborted before completion, by stage",
		}, []string{"stage"}),

		MissingFactors: f.NewCounter(prometheus.CounterOpts{
			Name: "sitecarbon_ingest_missing_emission_factors_total",
			Help: "Resolved rows stored with zero embodied CO2 because the material had no factor",
		}),

		UploadDuration: f.NewHistogram(prometheus.HistogramOpts{
			Name:    "sitecarbon_ingest_upload_duration_seconds",
			Help:    "Duration of a bulk upload from catalog load to final insert",
			Buckets: []float64{0.01, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10},
		}),

		BatchSize: f.NewHistogram(prometheus.HistogramOpts{
			Name:    "sitecarbon_ingest_batch_rows",
			Help:    "Rows per bulk upload",
			Buckets: prometheus.ExponentialBuckets(1, 4, 8),
		}),
	}
}

func (m *Metrics) ObservePartition(valid, invalid int) {
	if m != nil {
		m.RowsProcessed.WithLabelValues("valid").Add(float64(valid))
		m.RowsProcessed.WithLabelValues("invalid").Add(float64(invalid))
		m.BatchSize.Observe(float64(valid + invalid))
	}
}

func (m *Metrics) IncrementIssue(field, kind string) {
	if m != nil {
		m.Issues.WithLabelValues(field, kind).Inc()
	}
}

// IncrementFailure records an aborted upload. stage is one of catalog,
// insert_valid or insert_invalid.
func (m *Metrics) IncrementFailure(stage string) {
	if m != nil {
		m.UploadFailures.WithLabelValues(stage).Inc()
	}
}

func (m *Metrics) AddMissingFactors(n int) {
	if m != nil && n > 0 {
		m.MissingFactors.Add(float64(n))
	}
}

func (m *Metrics) ObserveUpload(d time.Duration) {
	if m != nil {
		m.UploadDuration.Observe(d.Seconds())
	}
}
