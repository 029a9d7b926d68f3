package observability

import (
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fraktlabs/fencewatch/internal/events"
)

func TestNewMetricsConcurrency(t *testing.T) {
	t.Parallel()

	const numGoroutines = 20
	var wg sync.WaitGroup
	for range numGoroutines {
		wg.Go(func() {
			m, err := NewMetrics()
			if !assert.NoError(t, err) {
				return
			}
			assert.NotNil(t, m.Pipeline)
			assert.NotNil(t, m.Dispatch)
			assert.NotNil(t, m.Storage)
			assert.NotNil(t, m.MQTT)
			assert.NotNil(t, m.HTTP)
		})
	}
	wg.Wait()
}

func TestDispatchMetricsCountPerChannel(t *testing.T) {
	t.Parallel()

	m, err := NewMetrics()
	require.NoError(t, err)

	m.Dispatch.AlertSent("mail")
	m.Dispatch.AlertSent("mail")
	m.Dispatch.AlertFailed("messaging")
	m.Dispatch.SpeechDropped()

	assert.InDelta(t, 2, testutil.ToFloat64(m.Dispatch.AlertsTotal.WithLabelValues("mail", "success")), 0)
	assert.InDelta(t, 1, testutil.ToFloat64(m.Dispatch.AlertsTotal.WithLabelValues("messaging", "error")), 0)
	assert.InDelta(t, 1, testutil.ToFloat64(m.Dispatch.SpeechDrops), 0)
}

func TestPipelineMetrics(t *testing.T) {
	t.Parallel()

	m, err := NewMetrics()
	require.NoError(t, err)

	m.Pipeline.PassCompleted(3, 120*time.Millisecond)
	m.Pipeline.CaptureFailed("cam-1")
	m.Pipeline.ViolationDetected("bed-1")

	assert.InDelta(t, 1, testutil.ToFloat64(m.Pipeline.PassesTotal), 0)
	assert.InDelta(t, 3, testutil.ToFloat64(m.Pipeline.SourcesMonitored), 0)
	assert.InDelta(t, 1, testutil.ToFloat64(m.Pipeline.CaptureFailures.WithLabelValues("cam-1")), 0)
	assert.InDelta(t, 1, testutil.ToFloat64(m.Pipeline.ViolationsTotal.WithLabelValues("bed-1")), 0)
}

func TestMQTTMetricsPerTopic(t *testing.T) {
	t.Parallel()

	m, err := NewMetrics()
	require.NoError(t, err)

	m.MQTT.UpdateConnectionStatus(true)
	m.MQTT.MessageDelivered("fencewatch/violation", 2048, 5*time.Millisecond)
	m.MQTT.PublishFailed("fencewatch/violation")
	m.MQTT.UpdateConnectionStatus(false)

	assert.InDelta(t, 0, testutil.ToFloat64(m.MQTT.Connected), 0)
	assert.InDelta(t, 1, testutil.ToFloat64(m.MQTT.Disconnects), 0)
	assert.InDelta(t, 1, testutil.ToFloat64(m.MQTT.Published.WithLabelValues("fencewatch/violation", "success")), 0)
	assert.InDelta(t, 1, testutil.ToFloat64(m.MQTT.Published.WithLabelValues("fencewatch/violation", "error")), 0)
}

type fixedStats events.Stats

func (f fixedStats) Stats() events.Stats { return events.Stats(f) }

func TestHandlerServesEventBusCounters(t *testing.T) {
	t.Parallel()

	m, err := NewMetrics()
	require.NoError(t, err)
	require.NoError(t, m.AttachEventBus(fixedStats{EventsReceived: 7, EventsDropped: 2}))

	srv := httptest.NewServer(m.Handler())
	defer srv.Close()

	resp, err := http.Get(srv.URL)
	require.NoError(t, err)
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)

	assert.Contains(t, string(body), "fencewatch_events_received_total 7")
	assert.Contains(t, string(body), "fencewatch_events_dropped_total 2")
}
