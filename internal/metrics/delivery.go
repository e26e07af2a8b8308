package metrics

import "github.com/prometheus/client_golang/prometheus"

// DeliveryMetrics covers uploads and artifact delivery.
type DeliveryMetrics struct {
	Uploads   *prometheus.CounterVec
	Downloads prometheus.Counter
	Artifacts *prometheus.CounterVec
}

// NewDeliveryMetrics creates and registers delivery collectors.
func NewDeliveryMetrics(registry *prometheus.Registry) (*DeliveryMetrics, error) {
	m := &DeliveryMetrics{
		Uploads: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "ppt_uploads_total",
			Help: "Upload attempts by result (accepted, rejected).",
		}, []string{"result"}),
		Downloads: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "ppt_slide_downloads_total",
			Help: "Explicit slide downloads.",
		}),
		Artifacts: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "ppt_artifact_requests_total",
			Help: "Artifact fetches by result (hit, miss).",
		}, []string{"result"}),
	}
	if err := registry.Register(m); err != nil {
		return nil, err
	}
	return m, nil
}

// IncUpload counts an upload attempt.
func (m *DeliveryMetrics) IncUpload(result string) {
	if m == nil {
		return
	}
	m.Uploads.WithLabelValues(result).Inc()
}

// IncDownload counts an explicit download.
func (m *DeliveryMetrics) IncDownload() {
	if m == nil {
		return
	}
	m.Downloads.Inc()
}

// IncArtifact counts an artifact fetch.
func (m *DeliveryMetrics) IncArtifact(result string) {
	if m == nil {
		return
	}
	m.Artifacts.WithLabelValues(result).Inc()
}

// Describe implements prometheus.Collector.
func (m *DeliveryMetrics) Describe(ch chan<- *prometheus.Desc) {
	m.Uploads.Describe(ch)
	ch <- m.Downloads.Desc()
	m.Artifacts.Describe(ch)
}

// Collect implements prometheus.Collector.
func (m *DeliveryMetrics) Collect(ch chan<- prometheus.Metric) {
	m.Uploads.Collect(ch)
	ch <- m.Downloads
	m.Artifacts.Collect(ch)
}
