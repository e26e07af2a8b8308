package metrics

import "github.com/prometheus/client_golang/prometheus"

// ConversionMetrics covers the worker pool and renderer.
type ConversionMetrics struct {
	Outcomes       *prometheus.CounterVec
	RenderDuration prometheus.Histogram
	RenderRetries  prometheus.Counter
	SlidesWritten  *prometheus.CounterVec
	QueueDepth     prometheus.Gauge
	InFlight       prometheus.Gauge
}

// NewConversionMetrics creates and registers conversion collectors.
func NewConversionMetrics(registry *prometheus.Registry) (*ConversionMetrics, error) {
	m := &ConversionMetrics{
		Outcomes: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "ppt_conversions_total",
			Help: "Finished deck conversions by final state and reason.",
		}, []string{"state", "reason"}),
		RenderDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "ppt_render_duration_seconds",
			Help:    "Wall-clock time of renderer invocations.",
			Buckets: prometheus.ExponentialBuckets(0.5, 2, 10),
		}),
		RenderRetries: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "ppt_render_retries_total",
			Help: "Renderer invocations retried after a timeout.",
		}),
		SlidesWritten: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "ppt_slides_written_total",
			Help: "Slides persisted, by kind (image, text_only, extraction_failed).",
		}, []string{"kind"}),
		QueueDepth: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "ppt_conversion_queue_depth",
			Help: "Decks waiting for a worker.",
		}),
		InFlight: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "ppt_conversions_in_flight",
			Help: "Decks currently being processed.",
		}),
	}
	if err := registry.Register(m); err != nil {
		return nil, err
	}
	return m, nil
}

// RecordOutcome counts a deck reaching a terminal state.
func (m *ConversionMetrics) RecordOutcome(state, reason string) {
	if m == nil {
		return
	}
	if reason == "" {
		reason = "none"
	}
	m.Outcomes.WithLabelValues(state, reason).Inc()
}

// ObserveRender records one renderer invocation.
func (m *ConversionMetrics) ObserveRender(seconds float64) {
	if m == nil {
		return
	}
	m.RenderDuration.Observe(seconds)
}

// IncRetry counts a timeout retry.
func (m *ConversionMetrics) IncRetry() {
	if m == nil {
		return
	}
	m.RenderRetries.Inc()
}

// IncSlide counts one persisted slide of the given kind.
func (m *ConversionMetrics) IncSlide(kind string) {
	if m == nil {
		return
	}
	m.SlidesWritten.WithLabelValues(kind).Inc()
}

// SetQueueDepth reports the number of pending jobs.
func (m *ConversionMetrics) SetQueueDepth(n int) {
	if m == nil {
		return
	}
	m.QueueDepth.Set(float64(n))
}

// AddInFlight adjusts the number of jobs being processed.
func (m *ConversionMetrics) AddInFlight(delta int) {
	if m == nil {
		return
	}
	m.InFlight.Add(float64(delta))
}

// Describe implements prometheus.Collector.
func (m *ConversionMetrics) Describe(ch chan<- *prometheus.Desc) {
	m.Outcomes.Describe(ch)
	ch <- m.RenderDuration.Desc()
	ch <- m.RenderRetries.Desc()
	m.SlidesWritten.Describe(ch)
	ch <- m.QueueDepth.Desc()
	ch <- m.InFlight.Desc()
}

// Collect implements prometheus.Collector.
func (m *ConversionMetrics) Collect(ch chan<- prometheus.Metric) {
	m.Outcomes.Collect(ch)
	ch <- m.RenderDuration
	ch <- m.RenderRetries
	m.SlidesWritten.Collect(ch)
	ch <- m.QueueDepth
	ch <- m.InFlight
}
