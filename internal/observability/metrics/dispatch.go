package metrics

import (
	"fmt"

	"github.com/prometheus/client_golang/prometheus"
)

// DispatchMetrics counts alert deliveries per channel.
type DispatchMetrics struct {
	AlertsTotal *prometheus.CounterVec // by channel and status
	SpeechDrops prometheus.Counter     // local alerts suppressed by the speaking guard
	registry    *prometheus.Registry
}

// NewDispatchMetrics creates and registers dispatch metrics.
func NewDispatchMetrics(registry *prometheus.Registry) (*DispatchMetrics, error) {
	m := &DispatchMetrics{registry: registry}
	m.AlertsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "fencewatch_alerts_total",
			Help: "Alert delivery attempts by channel and status",
		},
		[]string{"channel", "status"}, // channel: local, mail, messaging
	)
	m.SpeechDrops = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "fencewatch_speech_dropped_total",
		Help: "Local alerts dropped because speech was already in progress",
	})
	if err := registry.Register(m); err != nil {
		return nil, fmt.Errorf("failed to register dispatch metrics: %w", err)
	}
	return m, nil
}

// AlertSent records a delivered alert.
func (m *DispatchMetrics) AlertSent(channel string) {
	m.AlertsTotal.WithLabelValues(channel, StatusSuccess).Inc()
}

// AlertFailed records a failed delivery.
func (m *DispatchMetrics) AlertFailed(channel string) {
	m.AlertsTotal.WithLabelValues(channel, StatusError).Inc()
}

// SpeechDropped records a suppressed local alert.
func (m *DispatchMetrics) SpeechDropped() {
	m.SpeechDrops.Inc()
}

// Describe implements the prometheus.Collector interface.
func (m *DispatchMetrics) Describe(ch chan<- *prometheus.Desc) {
	m.AlertsTotal.Describe(ch)
	m.SpeechDrops.Describe(ch)
}

// Collect implements the prometheus.Collector interface.
func (m *DispatchMetrics) Collect(ch chan<- prometheus.Metric) {
	m.AlertsTotal.Collect(ch)
	m.SpeechDrops.Collect(ch)
}
