package ranking

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Metrics names as constants for consistency.
const (
	MetricSearchDuration = "ranking_search_duration_seconds"
	MetricSearchTotal    = "ranking_search_total"
	MetricSearchResults  = "ranking_search_results"
)

// Status labels for search outcomes.
const (
	StatusSuccess = "success"
	StatusFailure = "failure"
)

// Metrics contains Prometheus metrics for ranking searches.
// All operations are thread-safe.
type Metrics struct {
	searchDuration *prometheus.HistogramVec
	searchTotal    *prometheus.CounterVec
	searchResults  prometheus.Histogram
}

// NewMetrics creates a Metrics instance. Call Register to expose it.
func NewMetrics() *Metrics {
	return &Metrics{
		searchDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    MetricSearchDuration,
				Help:    "Histogram of multi-signal search latency in seconds by profile",
				Buckets: []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1.0, 2.5},
			},
			[]string{"profile"},
		),
		searchTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: MetricSearchTotal,
				Help: "Total number of multi-signal searches by profile and status",
			},
			[]string{"profile", "status"},
		),
		searchResults: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Name:    MetricSearchResults,
				Help:    "Number of results returned per search",
				Buckets: []float64{0, 1, 5, 10, 20, 50, 100, 500},
			},
		),
	}
}

// Register registers all metrics with the given registry.
func (m *Metrics) Register(reg prometheus.Registerer) error {
	for _, c := range m.Collectors() {
		if err := reg.Register(c); err != nil {
			return err
		}
	}
	return nil
}

// ObserveSearch records one search. An empty profile is labeled "custom".
func (m *Metrics) ObserveSearch(profile string, seconds float64, results int, err error) {
	if profile == "" {
		profile = "custom"
	}
	status := StatusSuccess
	if err != nil {
		status = StatusFailure
	}
	m.searchTotal.WithLabelValues(profile, status).Inc()
	m.searchDuration.WithLabelValues(profile).Observe(seconds)
	if err == nil {
		m.searchResults.Observe(float64(results))
	}
}

// Collectors returns all Prometheus collectors for testing.
func (m *Metrics) Collectors() []prometheus.Collector {
	return []prometheus.Collector{
		m.searchDuration,
		m.searchTotal,
		m.searchResults,
	}
}
