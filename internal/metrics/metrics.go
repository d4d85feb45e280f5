// Package metrics provides Prometheus metrics for classification runs
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// Batch metrics
	BatchesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "shipclass_batches_total",
			Help: "Total number of batches sent to the classifier",
		},
		[]string{"provider", "status"},
	)

	BatchDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "shipclass_batch_duration_seconds",
			Help:    "Time taken by one classifier call, retries included",
			Buckets: []float64{0.5, 1, 2, 5, 10, 30, 60, 120},
		},
		[]string{"provider"},
	)

	BatchRetries = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "shipclass_batch_retries_total",
			Help: "Total number of retried classifier calls",
		},
		[]string{"provider"},
	)

	// Row metrics
	RowsLabeled = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "shipclass_rows_labeled_total",
			Help: "Total number of rows labeled, by outcome",
		},
		[]string{"outcome"},
	)

	ParseFailures = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "shipclass_parse_failures_total",
			Help: "Total number of rows whose label could not be read from the model reply",
		},
	)

	// Run metrics
	RunsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "shipclass_runs_total",
			Help: "Total number of classification runs, by final status",
		},
		[]string{"status"},
	)

	WorkersActive = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "shipclass_workers_active",
			Help: "Number of batches currently being classified",
		},
	)
)

// Outcome labels for RowsLabeled.
const (
	OutcomeLabeled = "labeled"
	OutcomeError   = "error"
)

// Batch status labels for BatchesTotal.
const (
	StatusSuccess = "success"
	StatusFailed  = "failed"
)

// ClassifierMetrics records metrics for one provider
type ClassifierMetrics struct {
	provider string
}

// NewClassifierMetrics creates a new metrics recorder for provider
func NewClassifierMetrics(provider string) *ClassifierMetrics {
	return &ClassifierMetrics{provider: provider}
}

// RecordBatch records the outcome and duration of one batch
func (m *ClassifierMetrics) RecordBatch(status string, duration time.Duration) {
	BatchesTotal.WithLabelValues(m.provider, status).Inc()
	BatchDuration.WithLabelValues(m.provider).Observe(duration.Seconds())
}

// RecordRetry records a retried call
func (m *ClassifierMetrics) RecordRetry() {
	BatchRetries.WithLabelValues(m.provider).Inc()
}

// RecordRows records labeled and error rows of a batch
func (m *ClassifierMetrics) RecordRows(labeled, errored int) {
	RowsLabeled.WithLabelValues(OutcomeLabeled).Add(float64(labeled))
	RowsLabeled.WithLabelValues(OutcomeError).Add(float64(errored))
}

// RecordParseFailures records rows that fell back to the error label during parsing
func (m *ClassifierMetrics) RecordParseFailures(n int) {
	ParseFailures.Add(float64(n))
}

// RecordRun records a finished run
func (m *ClassifierMetrics) RecordRun(status string) {
	RunsTotal.WithLabelValues(status).Inc()
}

// Timer is a helper for measuring duration
type Timer struct {
	start time.Time
}

// NewTimer creates a new timer
func NewTimer() *Timer {
	return &Timer{start: time.Now()}
}

// Duration returns the elapsed time since the timer was created
func (t *Timer) Duration() time.Duration {
	return time.Since(t.start)
}
