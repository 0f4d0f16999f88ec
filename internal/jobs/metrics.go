// Package jobs provides metrics for offline batch runs.
package jobs

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Metrics names as constants for consistency.
const (
	MetricBatchJobsTotal       = "batch_jobs_total"
	MetricBatchJobsDuration    = "batch_jobs_duration_seconds"
	MetricBatchJobErrorsTotal  = "batch_job_errors_total"
	MetricBatchItemsTotal      = "batch_items_total"
	MetricSimilarityEdgesTotal = "similarity_edges_written_total"
)

// Job type constants for labeling.
const (
	JobTypeMaterialize = "materialize"
	JobTypeCalibrate   = "calibrate"
)

// Status constants for job and item completion.
const (
	StatusSuccess = "success"
	StatusFailure = "failure"
	StatusSkipped = "skipped"
)

// Metrics contains Prometheus metrics for batch runs.
// All operations are thread-safe.
type Metrics struct {
	jobsTotal    *prometheus.CounterVec
	jobsDuration *prometheus.HistogramVec
	jobErrors    *prometheus.CounterVec
	itemsTotal   *prometheus.CounterVec
	edgesTotal   prometheus.Counter
}

// NewMetrics creates and returns a new Metrics instance with all collectors initialized.
// The metrics are not registered; call Register to register them with a registry.
func NewMetrics() *Metrics {
	return &Metrics{
		jobsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: MetricBatchJobsTotal,
				Help: "Total number of batch job runs by type and status",
			},
			[]string{"job_type", "status"},
		),
		jobsDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    MetricBatchJobsDuration,
				Help:    "Histogram of batch job duration in seconds by job type",
				Buckets: []float64{1, 5, 15, 30, 60, 120, 300, 600, 1800, 3600},
			},
			[]string{"job_type"},
		),
		jobErrors: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: MetricBatchJobErrorsTotal,
				Help: "Total number of batch job errors by type and error type",
			},
			[]string{"job_type", "error_type"},
		),
		itemsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: MetricBatchItemsTotal,
				Help: "Total number of items processed by batch jobs by type and status",
			},
			[]string{"job_type", "status"},
		),
		edgesTotal: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: MetricSimilarityEdgesTotal,
				Help: "Total number of similarity edges written by the materializer",
			},
		),
	}
}

// Register registers all metrics with the given registry.
// Returns an error if registration fails.
func (m *Metrics) Register(reg prometheus.Registerer) error {
	for _, c := range m.Collectors() {
		if err := reg.Register(c); err != nil {
			return err
		}
	}
	return nil
}

// IncJobsTotal increments the jobs total counter.
func (m *Metrics) IncJobsTotal(jobType, status string) {
	m.jobsTotal.WithLabelValues(jobType, status).Inc()
}

// ObserveJobDuration records a job duration sample in seconds.
func (m *Metrics) ObserveJobDuration(jobType string, seconds float64) {
	m.jobsDuration.WithLabelValues(jobType).Observe(seconds)
}

// IncJobErrors increments the job errors counter.
// errorType: e.g. "search_failed", "write_failed", "lock_held"
func (m *Metrics) IncJobErrors(jobType, errorType string) {
	m.jobErrors.WithLabelValues(jobType, errorType).Inc()
}

// IncItems increments the per-item counter.
func (m *Metrics) IncItems(jobType, status string) {
	m.itemsTotal.WithLabelValues(jobType, status).Inc()
}

// AddEdges adds n to the written edge counter.
func (m *Metrics) AddEdges(n int) {
	m.edgesTotal.Add(float64(n))
}

// Collectors returns all Prometheus collectors for testing.
func (m *Metrics) Collectors() []prometheus.Collector {
	return []prometheus.Collector{
		m.jobsTotal,
		m.jobsDuration,
		m.jobErrors,
		m.itemsTotal,
		m.edgesTotal,
	}
}
