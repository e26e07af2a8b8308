package metrics

import "github.com/prometheus/client_golang/prometheus"

// SearchMetrics covers ranked queries.
type SearchMetrics struct {
	Queries  *prometheus.CounterVec
	Results  prometheus.Histogram
	Duration prometheus.Histogram
}

// NewSearchMetrics creates and registers search collectors.
func NewSearchMetrics(registry *prometheus.Registry) (*SearchMetrics, error) {
	m := &SearchMetrics{
		Queries: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "ppt_search_queries_total",
			Help: "Search queries served, by corpus (slides, archive).",
		}, []string{"corpus"}),
		Results: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "ppt_search_results",
			Help:    "Number of ranked results per query.",
			Buckets: []float64{0, 1, 5, 10, 25, 50, 100, 250},
		}),
		Duration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "ppt_search_duration_seconds",
			Help:    "Time to match and rank a query.",
			Buckets: prometheus.DefBuckets,
		}),
	}
	if err := registry.Register(m); err != nil {
		return nil, err
	}
	return m, nil
}

// Observe records one query.
func (m *SearchMetrics) Observe(corpus string, results int, seconds float64) {
	if m == nil {
		return
	}
	m.Queries.WithLabelValues(corpus).Inc()
	m.Results.Observe(float64(results))
	m.Duration.Observe(seconds)
}

// Describe implements prometheus.Collector.
func (m *SearchMetrics) Describe(ch chan<- *prometheus.Desc) {
	m.Queries.Describe(ch)
	ch <- m.Results.Desc()
	ch <- m.Duration.Desc()
}

// Collect implements prometheus.Collector.
func (m *SearchMetrics) Collect(ch chan<- prometheus.Metric) {
	m.Queries.Collect(ch)
	ch <- m.Results
	ch <- m.Duration
}
