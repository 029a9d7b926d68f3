package metrics

import (
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// MQTTMetrics tracks the broker link and event publishing per topic.
type MQTTMetrics struct {
	Connected      prometheus.Gauge
	Disconnects    prometheus.Counter
	Published      *prometheus.CounterVec   // by topic and status
	PayloadBytes   *prometheus.HistogramVec // by topic
	PublishLatency prometheus.Histogram
	registry       *prometheus.Registry
}

// NewMQTTMetrics creates and registers the MQTT collectors.
func NewMQTTMetrics(registry *prometheus.Registry) (*MQTTMetrics, error) {
	m := &MQTTMetrics{
		registry: registry,
		Connected: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "fencewatch_mqtt_connected",
			Help: "1 while the broker connection is up",
		}),
		Disconnects: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "fencewatch_mqtt_disconnects_total",
			Help: "Broker connection drops, refusals included",
		}),
		Published: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "fencewatch_mqtt_published_total",
			Help: "Event publishes by topic and status",
		}, []string{"topic", "status"}),
		PayloadBytes: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name: "fencewatch_mqtt_payload_bytes",
			Help: "Published payload size; violations with evidence land in the top buckets",
			// 256B .. 4MiB
			Buckets: prometheus.ExponentialBuckets(256, 4, 8),
		}, []string{"topic"}),
		PublishLatency: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "fencewatch_mqtt_publish_latency_seconds",
			Help:    "Time until the broker acknowledged a publish",
			Buckets: prometheus.DefBuckets,
		}),
	}
	if err := registry.Register(m); err != nil {
		return nil, fmt.Errorf("failed to register MQTT metrics: %w", err)
	}
	return m, nil
}

// UpdateConnectionStatus sets the connection gauge. Losing the connection
// also counts a disconnect.
func (m *MQTTMetrics) UpdateConnectionStatus(connected bool) {
	if connected {
		m.Connected.Set(1)
		return
	}
	m.Connected.Set(0)
	m.Disconnects.Inc()
}

// MessageDelivered records an acknowledged publish on topic.
func (m *MQTTMetrics) MessageDelivered(topic string, size int, d time.Duration) {
	m.Published.WithLabelValues(topic, StatusSuccess).Inc()
	m.PayloadBytes.WithLabelValues(topic).Observe(float64(size))
	m.PublishLatency.Observe(d.Seconds())
}

// PublishFailed records a publish on topic that timed out or was rejected.
func (m *MQTTMetrics) PublishFailed(topic string) {
	m.Published.WithLabelValues(topic, StatusError).Inc()
}

// Describe implements the prometheus.Collector interface.
func (m *MQTTMetrics) Describe(ch chan<- *prometheus.Desc) {
	m.Connected.Describe(ch)
	m.Disconnects.Describe(ch)
	m.Published.Describe(ch)
	m.PayloadBytes.Describe(ch)
	m.PublishLatency.Describe(ch)
}

// Collect implements the prometheus.Collector interface.
func (m *MQTTMetrics) Collect(ch chan<- prometheus.Metric) {
	m.Connected.Collect(ch)
	m.Disconnects.Collect(ch)
	m.Published.Collect(ch)
	m.PayloadBytes.Collect(ch)
	m.PublishLatency.Collect(ch)
}
