package metrics

import (
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// PipelineMetrics covers the monitoring loop: passes, per-source failures
// and detected violations.
type PipelineMetrics struct {
	PassesTotal       prometheus.Counter
	PassDuration      prometheus.Histogram
	SourcesMonitored  prometheus.Gauge
	CaptureFailures   *prometheus.CounterVec
	InferenceFailures *prometheus.CounterVec
	ViolationsTotal   *prometheus.CounterVec
	registry          *prometheus.Registry
}

// NewPipelineMetrics creates and registers pipeline metrics.
func NewPipelineMetrics(registry *prometheus.Registry) (*PipelineMetrics, error) {
	m := &PipelineMetrics{registry: registry}
	m.initMetrics()
	if err := registry.Register(m); err != nil {
		return nil, fmt.Errorf("failed to register pipeline metrics: %w", err)
	}
	return m, nil
}

func (m *PipelineMetrics) initMetrics() {
	m.PassesTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "fencewatch_passes_total",
		Help: "Total number of completed monitoring passes",
	})

	m.PassDuration = prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "fencewatch_pass_duration_seconds",
		Help:    "Wall time of a monitoring pass",
		Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2, 5, 10},
	})

	m.SourcesMonitored = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "fencewatch_sources_monitored",
		Help: "Number of sources in the last pass",
	})

	m.CaptureFailures = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "fencewatch_capture_failures_total",
			Help: "Frames that could not be captured, by source",
		},
		[]string{"source"},
	)

	m.InferenceFailures = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "fencewatch_inference_failures_total",
			Help: "Pose inference failures, by source",
		},
		[]string{"source"},
	)

	m.ViolationsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "fencewatch_violations_total",
			Help: "Fence violations detected, by fence",
		},
		[]string{"fence"},
	)
}

// PassCompleted records one finished pass over n sources.
func (m *PipelineMetrics) PassCompleted(sources int, d time.Duration) {
	m.PassesTotal.Inc()
	m.SourcesMonitored.Set(float64(sources))
	m.PassDuration.Observe(d.Seconds())
}

// CaptureFailed records a capture failure for source.
func (m *PipelineMetrics) CaptureFailed(source string) {
	m.CaptureFailures.WithLabelValues(source).Inc()
}

// InferenceFailed records a pose inference failure for source.
func (m *PipelineMetrics) InferenceFailed(source string) {
	m.InferenceFailures.WithLabelValues(source).Inc()
}

// ViolationDetected records a violation against fence.
func (m *PipelineMetrics) ViolationDetected(fence string) {
	m.ViolationsTotal.WithLabelValues(fence).Inc()
}

// Describe implements the prometheus.Collector interface.
func (m *PipelineMetrics) Describe(ch chan<- *prometheus.Desc) {
	m.PassesTotal.Describe(ch)
	m.PassDuration.Describe(ch)
	m.SourcesMonitored.Describe(ch)
	m.CaptureFailures.Describe(ch)
	m.InferenceFailures.Describe(ch)
	m.ViolationsTotal.Describe(ch)
}

// Collect implements the prometheus.Collector interface.
func (m *PipelineMetrics) Collect(ch chan<- prometheus.Metric) {
	m.PassesTotal.Collect(ch)
	m.PassDuration.Collect(ch)
	m.SourcesMonitored.Collect(ch)
	m.CaptureFailures.Collect(ch)
	m.InferenceFailures.Collect(ch)
	m.ViolationsTotal.Collect(ch)
}
