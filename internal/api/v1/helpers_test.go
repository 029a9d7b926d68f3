package api

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/require"

	"github.com/fraktlabs/fencewatch/internal/alert"
	"github.com/fraktlabs/fencewatch/internal/boundary"
	"github.com/fraktlabs/fencewatch/internal/datastore"
	"github.com/fraktlabs/fencewatch/internal/dispatch"
	"github.com/fraktlabs/fencewatch/internal/errors"
	"github.com/fraktlabs/fencewatch/internal/events"
	"github.com/fraktlabs/fencewatch/internal/fence"
	"github.com/fraktlabs/fencewatch/internal/monitor"
	"github.com/fraktlabs/fencewatch/internal/snapshot"
	"github.com/fraktlabs/fencewatch/internal/source"
)

type dispatched struct {
	Alert string
	Fence string
	Body  string
}

type fakeDispatcher struct {
	mu    sync.Mutex
	calls []dispatched
}

func (d *fakeDispatcher) Dispatch(_ context.Context, a alert.Alert, fenceName string, _ dispatch.Evidence) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.calls = append(d.calls, dispatched{a.Name, fenceName, a.Render(fenceName)})
}

func (d *fakeDispatcher) Calls() []dispatched {
	d.mu.Lock()
	defer d.mu.Unlock()
	return append([]dispatched(nil), d.calls...)
}

// fakeSegmenter answers with a fixed mask, or fails when err is set.
type fakeSegmenter struct {
	mask  string
	err   error
	frame []byte
	x, y  float64
}

func (s *fakeSegmenter) Segment(_ context.Context, frame []byte, x, y float64) (string, error) {
	s.frame, s.x, s.y = frame, x, y
	return s.mask, s.err
}

type fakeMonitor struct{}

func (fakeMonitor) State() monitor.State { return monitor.StateRunningPass }
func (fakeMonitor) Passes() uint64       { return 42 }

type harness struct {
	echo       *echo.Echo
	controller *Controller
	db         *datastore.Store
	sources    *source.Registry
	fences     *fence.Store
	alerts     *alert.Catalog
	dispatcher *fakeDispatcher
	segmenter  *fakeSegmenter
	overlays   *monitor.OverlayStore
}

type harnessOption func(*Deps)

func newHarness(t *testing.T, opts ...harnessOption) *harness {
	t.Helper()

	db, err := datastore.OpenSQLite(":memory:", nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	fences := fence.NewStore(db.Fences(), events.Discard)
	alerts := alert.NewCatalog(db.Alerts(), events.Discard)
	sources := source.NewRegistry(snapshot.NewMemoryStore(0, ""), source.WithFenceChecker(fences.Exists))
	fences.SetDetacher(sources)
	alerts.SetDetacher(sources)

	h := &harness{
		echo:       echo.New(),
		db:         db,
		sources:    sources,
		fences:     fences,
		alerts:     alerts,
		dispatcher: &fakeDispatcher{},
		segmenter:  &fakeSegmenter{},
		overlays:   monitor.NewOverlayStore(),
	}

	deps := Deps{
		Sources:          sources,
		Fences:           fences,
		Alerts:           alerts,
		FencePersistence: db.Fences(),
		AlertPersistence: db.Alerts(),
		Dispatcher:       h.dispatcher,
		Segmenter:        h.segmenter,
		Monitor:          fakeMonitor{},
		Overlays:         h.overlays,
		Threshold:        boundary.DefaultThreshold,
		Version:          "test",
	}
	for _, opt := range opts {
		opt(&deps)
	}

	h.controller, err = New(h.echo, deps)
	require.NoError(t, err)
	t.Cleanup(h.controller.Shutdown)
	return h
}

func (h *harness) do(t *testing.T, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()

	var r io.Reader = http.NoBody
	if body != nil {
		data, err := json.Marshal(body)
		require.NoError(t, err)
		r = bytes.NewReader(data)
	}
	req := httptest.NewRequest(method, path, r)
	if body != nil {
		req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	}
	rec := httptest.NewRecorder()
	h.echo.ServeHTTP(rec, req)
	return rec
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &v), rec.Body.String())
	return v
}

var bedRect = boundary.Rect{X0: 0.1, Y0: 0.2, X1: 0.5, Y1: 0.6}

func (h *harness) addFence(t *testing.T, name, sourceID string) {
	t.Helper()
	require.NoError(t, h.fences.Upsert(t.Context(), fence.Fence{Name: name, SourceID: sourceID, Boundary: bedRect}))
}

func (h *harness) addSource(t *testing.T, src source.Source) {
	t.Helper()
	require.NoError(t, h.sources.Add(t.Context(), src))
}

func localDraft(name string) alert.Draft {
	return alert.Draft{
		Type:            alert.TypeLocal,
		ContentTemplate: "Patient left [fence]",
		Recipient:       "en",
		Name:            name,
	}
}

// failingPersistence rejects every call.
type failingPersistence struct{}

var errBackendDown = errors.NewStd("backend down")

func (failingPersistence) Save(context.Context, string, fence.Fence) (map[string]fence.Fence, error) {
	return nil, errBackendDown
}

func (failingPersistence) Remove(context.Context, string) (map[string]fence.Fence, error) {
	return nil, errBackendDown
}

func (failingPersistence) LoadAll(context.Context) (map[string]fence.Fence, error) {
	return nil, errBackendDown
}
