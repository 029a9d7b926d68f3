package api

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fraktlabs/fencewatch/internal/events"
	"github.com/fraktlabs/fencewatch/internal/testutil"
	"github.com/fraktlabs/fencewatch/internal/vision"
)

type socketCounter struct {
	opened, closed chan struct{}
}

func (s socketCounter) WebSocketOpened() { s.opened <- struct{}{} }
func (s socketCounter) WebSocketClosed() { s.closed <- struct{}{} }

func dialEvents(t *testing.T, h *harness, query string) *websocket.Conn {
	t.Helper()
	srv := httptest.NewServer(h.echo)
	t.Cleanup(srv.Close)

	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/api/v1/events/ws" + query
	conn, resp, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	_ = resp.Body.Close()
	t.Cleanup(func() { _ = conn.Close() })
	return conn
}

// wireEvent mirrors events.Event with the payload left undecoded.
type wireEvent struct {
	ID      string           `json:"id"`
	Type    events.Type      `json:"type"`
	Payload events.Violation `json:"payload"`
}

func readEvent(t *testing.T, conn *websocket.Conn) wireEvent {
	t.Helper()
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(5*time.Second)))
	var e wireEvent
	require.NoError(t, conn.ReadJSON(&e))
	return e
}

func newBus(t *testing.T) *events.Bus {
	t.Helper()
	bus := events.NewBus(events.Config{BufferSize: 16, Workers: 1})
	t.Cleanup(func() { _ = bus.Shutdown(time.Second) })
	return bus
}

func violation() events.Event {
	return events.New(events.TypeViolationDetected, events.Violation{
		SourceID:  "cam-1",
		FenceName: "bed",
		Point:     vision.Keypoint{Name: "left_wrist", X: 0.7, Y: 0.4},
		Evidence:  "ZXZpZGVuY2U=",
	})
}

func TestEventStreamDeliversWithoutEvidence(t *testing.T) {
	t.Parallel()
	bus := newBus(t)
	sockets := socketCounter{opened: make(chan struct{}, 1), closed: make(chan struct{}, 1)}
	h := newHarness(t, func(d *Deps) {
		d.Events = bus
		d.Sockets = sockets
	})

	conn := dialEvents(t, h, "")
	testutil.WaitForChannel(t, sockets.opened, testutil.DefaultTestTimeout, "stream not opened")

	sent := violation()
	require.True(t, bus.Publish(sent))

	got := readEvent(t, conn)
	assert.Equal(t, sent.ID, got.ID)
	assert.Equal(t, events.TypeViolationDetected, got.Type)
	assert.Equal(t, "bed", got.Payload.FenceName)
	assert.Empty(t, got.Payload.Evidence)

	require.NoError(t, conn.Close())
	testutil.WaitForChannel(t, sockets.closed, testutil.DefaultTestTimeout, "server did not notice the closed stream")
}

func TestEventStreamWithEvidence(t *testing.T) {
	t.Parallel()
	bus := newBus(t)
	sockets := socketCounter{opened: make(chan struct{}, 1), closed: make(chan struct{}, 1)}
	h := newHarness(t, func(d *Deps) {
		d.Events = bus
		d.Sockets = sockets
	})

	conn := dialEvents(t, h, "?evidence=true")
	testutil.WaitForChannel(t, sockets.opened, testutil.DefaultTestTimeout, "stream not opened")

	require.True(t, bus.Publish(violation()))
	assert.Equal(t, "ZXZpZGVuY2U=", readEvent(t, conn).Payload.Evidence)
}

func TestEventStreamClosedOnShutdown(t *testing.T) {
	t.Parallel()
	bus := newBus(t)
	sockets := socketCounter{opened: make(chan struct{}, 1), closed: make(chan struct{}, 1)}
	h := newHarness(t, func(d *Deps) {
		d.Events = bus
		d.Sockets = sockets
	})

	conn := dialEvents(t, h, "")
	testutil.WaitForChannel(t, sockets.opened, testutil.DefaultTestTimeout, "stream not opened")

	h.controller.Shutdown()

	require.NoError(t, conn.SetReadDeadline(time.Now().Add(5*time.Second)))
	_, _, err := conn.ReadMessage()
	require.Error(t, err)
	assert.True(t, websocket.IsCloseError(err, websocket.CloseGoingAway), "got %v", err)
}

func TestEventStreamUnavailable(t *testing.T) {
	t.Parallel()
	h := newHarness(t)

	rec := h.do(t, http.MethodGet, "/api/v1/events/ws", nil)
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}
