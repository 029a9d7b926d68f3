package monitor

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/fraktlabs/fencewatch/internal/alert"
	"github.com/fraktlabs/fencewatch/internal/boundary"
	"github.com/fraktlabs/fencewatch/internal/capture"
	"github.com/fraktlabs/fencewatch/internal/dispatch"
	"github.com/fraktlabs/fencewatch/internal/errors"
	"github.com/fraktlabs/fencewatch/internal/events"
	"github.com/fraktlabs/fencewatch/internal/fence"
	"github.com/fraktlabs/fencewatch/internal/snapshot"
	"github.com/fraktlabs/fencewatch/internal/source"
	"github.com/fraktlabs/fencewatch/internal/vision"
)

type fakeCapture struct {
	mu    sync.Mutex
	calls []captureCall
	fail  map[string]bool

	// block holds pass-resolution captures of a source until closed.
	block map[string]chan struct{}
	delay time.Duration

	inFlight    int
	maxInFlight int
}

type captureCall struct {
	SourceID      string
	Width, Height int
	Text          bool
}

func (c *fakeCapture) CaptureFrame(_ context.Context, id string, w, h int, text bool) (capture.Frame, error) {
	c.mu.Lock()
	c.calls = append(c.calls, captureCall{id, w, h, text})
	c.inFlight++
	c.maxInFlight = max(c.maxInFlight, c.inFlight)
	gate := c.block[id]
	c.mu.Unlock()

	if gate != nil && !text {
		<-gate
	}
	if c.delay > 0 {
		time.Sleep(c.delay)
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	c.inFlight--
	if c.fail[id] {
		return capture.Frame{}, errors.Newf("no signal on %s", id).Category(errors.CategoryCapture).Build()
	}
	f := capture.Frame{SourceID: id, Width: w, Height: h, JPEG: []byte(id)}
	if text {
		f.Base64 = "ZXZpZGVuY2U="
	}
	return f, nil
}

// MaxInFlight is the largest number of captures seen running at once.
func (c *fakeCapture) MaxInFlight() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.maxInFlight
}

func (c *fakeCapture) Calls() []captureCall {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]captureCall(nil), c.calls...)
}

// fakePose answers with the keypoints registered for the frame payload,
// which fakeCapture sets to the source id.
type fakePose struct {
	mu     sync.Mutex
	calls  int
	points map[string][]vision.Keypoint
	fail   map[string]bool
}

func (p *fakePose) Pose(_ context.Context, frame []byte) ([]vision.Detection, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.calls++
	id := string(frame)
	if p.fail[id] {
		return nil, errors.NewStd("inference backend down")
	}
	kps, ok := p.points[id]
	if !ok {
		return nil, nil
	}
	return []vision.Detection{{Keypoints: kps}}, nil
}

func (p *fakePose) Calls() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.calls
}

type fakeFences map[string]fence.Fence

func (f fakeFences) FindByName(name string) (fence.Fence, bool) {
	v, ok := f[name]
	return v, ok
}

type fakeAlerts map[string]alert.Alert

func (a fakeAlerts) Get(name string) (alert.Alert, error) {
	v, ok := a[name]
	if !ok {
		return alert.Alert{}, alert.ErrAlertNotFound
	}
	return v, nil
}

type dispatched struct {
	Alert    alert.Alert
	Fence    string
	Evidence dispatch.Evidence
}

type fakeDispatcher struct {
	mu    sync.Mutex
	calls []dispatched
}

func (d *fakeDispatcher) Dispatch(_ context.Context, a alert.Alert, fenceName string, ev dispatch.Evidence) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.calls = append(d.calls, dispatched{a, fenceName, ev})
}

func (d *fakeDispatcher) Calls() []dispatched {
	d.mu.Lock()
	defer d.mu.Unlock()
	return append([]dispatched(nil), d.calls...)
}

type recordingPublisher struct {
	mu     sync.Mutex
	events []events.Event
}

func (p *recordingPublisher) Publish(e events.Event) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, e)
	return true
}

func (p *recordingPublisher) OfType(t events.Type) []events.Event {
	p.mu.Lock()
	defer p.mu.Unlock()
	var out []events.Event
	for _, e := range p.events {
		if e.Type == t {
			out = append(out, e)
		}
	}
	return out
}

type harness struct {
	registry   *source.Registry
	capture    *fakeCapture
	pose       *fakePose
	fences     fakeFences
	alerts     fakeAlerts
	dispatcher *fakeDispatcher
	publisher  *recordingPublisher
	overlays   *OverlayStore
	monitor    *Monitor
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	return newHarnessWith(t, nil)
}

// newHarnessWith wires d as the dispatcher; nil uses the recording fake.
func newHarnessWith(t *testing.T, d Dispatcher) *harness {
	t.Helper()
	h := &harness{
		registry:   source.NewRegistry(snapshot.NewMemoryStore(time.Hour, "")),
		capture:    &fakeCapture{fail: map[string]bool{}, block: map[string]chan struct{}{}},
		pose:       &fakePose{points: map[string][]vision.Keypoint{}, fail: map[string]bool{}},
		fences:     fakeFences{},
		alerts:     fakeAlerts{},
		dispatcher: &fakeDispatcher{},
		publisher:  &recordingPublisher{},
		overlays:   NewOverlayStore(),
	}
	if d == nil {
		d = h.dispatcher
	}
	h.monitor = New(Config{
		Sources:       h.registry,
		Fences:        h.fences,
		Alerts:        h.alerts,
		Capture:       h.capture,
		Pose:          h.pose,
		Dispatcher:    d,
		Renderer:      h.overlays,
		Publisher:     h.publisher,
		IdleInterval:  5 * time.Millisecond,
		FrameInterval: time.Millisecond,
	})
	return h
}

func (h *harness) addSource(t *testing.T, src source.Source) {
	t.Helper()
	require.NoError(t, h.registry.Add(t.Context(), src))
}

var bedFence = fence.Fence{Name: "bed-1", SourceID: "cam-1", Boundary: boundary.Rect{X0: 0.1, Y0: 0.1, X1: 0.9, Y1: 0.9}}
