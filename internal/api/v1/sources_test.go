package api

import (
	"net/http"
	"net/url"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fraktlabs/fencewatch/internal/boundary"
	"github.com/fraktlabs/fencewatch/internal/monitor"
	"github.com/fraktlabs/fencewatch/internal/source"
	"github.com/fraktlabs/fencewatch/internal/vision"
)

func TestAddAndListSources(t *testing.T) {
	t.Parallel()
	h := newHarness(t)

	rec := h.do(t, http.MethodPost, "/api/v1/sources", source.Source{ID: "/dev/video0", Name: "Ward 3", Monitoring: true})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	rec = h.do(t, http.MethodPost, "/api/v1/sources", source.Source{ID: "rtsp://cam-2/stream", Name: "Hall", Hidden: true})
	require.Equal(t, http.StatusCreated, rec.Code)

	rec = h.do(t, http.MethodGet, "/api/v1/sources", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	all := decode[[]source.Source](t, rec)
	require.Len(t, all, 2)
	assert.Equal(t, "/dev/video0", all[0].ID, "insertion order is kept")

	rec = h.do(t, http.MethodGet, "/api/v1/sources?monitoring=true", nil)
	assert.Len(t, decode[[]source.Source](t, rec), 1)

	rec = h.do(t, http.MethodGet, "/api/v1/sources?visible=true", nil)
	visible := decode[[]source.Source](t, rec)
	require.Len(t, visible, 1)
	assert.Equal(t, "Ward 3", visible[0].Name)
}

func TestListSourcesEmptyIsArray(t *testing.T) {
	t.Parallel()
	h := newHarness(t)

	rec := h.do(t, http.MethodGet, "/api/v1/sources", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, "[]", rec.Body.String())
}

func TestAddSourceErrors(t *testing.T) {
	t.Parallel()
	h := newHarness(t)
	h.addSource(t, source.Source{ID: "cam-1"})

	tests := []struct {
		name  string
		src   source.Source
		code  int
		field string
	}{
		{"missing id", source.Source{Name: "nameless"}, http.StatusBadRequest, "id"},
		{"duplicate", source.Source{ID: "cam-1"}, http.StatusConflict, ""},
		{"unknown fence", source.Source{ID: "cam-2", FenceName: "nowhere"}, http.StatusBadRequest, "fenceName"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := h.do(t, http.MethodPost, "/api/v1/sources", tt.src)
			require.Equal(t, tt.code, rec.Code, rec.Body.String())
			resp := decode[ErrorResponse](t, rec)
			assert.Equal(t, tt.field, resp.Field)
			assert.NotEmpty(t, resp.CorrelationID)
		})
	}
	assert.Len(t, h.sources.List(), 1, "rejected sources are not added")
}

func TestUpdateSourceMergesFields(t *testing.T) {
	t.Parallel()
	h := newHarness(t)
	h.addFence(t, "bed", "/dev/video0")
	h.addSource(t, source.Source{ID: "/dev/video0", Name: "Ward 3", AlertName: "night"})

	path := "/api/v1/sources/" + url.PathEscape("/dev/video0")
	rec := h.do(t, http.MethodPatch, path, map[string]any{"monitoring": true, "fenceName": "bed"})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	got := decode[source.Source](t, rec)
	assert.True(t, got.Monitoring)
	assert.Equal(t, "bed", got.FenceName)
	assert.Equal(t, "Ward 3", got.Name)
	assert.Equal(t, "night", got.AlertName)

	rec = h.do(t, http.MethodPatch, path, map[string]any{"alertName": ""})
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Empty(t, decode[source.Source](t, rec).AlertName)
}

func TestUpdateUnknownSource(t *testing.T) {
	t.Parallel()
	h := newHarness(t)

	rec := h.do(t, http.MethodPatch, "/api/v1/sources/cam-9", map[string]any{"monitoring": true})
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestRemoveSourceIsIdempotent(t *testing.T) {
	t.Parallel()
	h := newHarness(t)
	h.addSource(t, source.Source{ID: "cam-1"})
	h.overlays.Clear("cam-1")

	for range 2 {
		rec := h.do(t, http.MethodDelete, "/api/v1/sources/cam-1", nil)
		assert.Equal(t, http.StatusNoContent, rec.Code)
	}
	assert.Empty(t, h.sources.List())
	_, ok := h.overlays.Get("cam-1")
	assert.False(t, ok)
}

func TestSourceOverlay(t *testing.T) {
	t.Parallel()
	h := newHarness(t)
	h.addSource(t, source.Source{ID: "cam-1"})

	rec := h.do(t, http.MethodGet, "/api/v1/sources/cam-1/overlay", nil)
	assert.Equal(t, http.StatusNoContent, rec.Code, "no pass has drawn yet")

	h.overlays.Clear("cam-1")
	h.overlays.DrawFence("cam-1", boundary.Rect{X1: 0.5, Y1: 0.5})
	h.overlays.DrawPose("cam-1", []vision.Keypoint{{Name: "nose", X: 0.2, Y: 0.3}})

	rec = h.do(t, http.MethodGet, "/api/v1/sources/cam-1/overlay", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	o := decode[monitor.Overlay](t, rec)
	require.NotNil(t, o.Fence)
	assert.InDelta(t, 0.5, o.Fence.X1, 1e-9)
	require.Len(t, o.Pose, 1)

	rec = h.do(t, http.MethodGet, "/api/v1/sources/cam-2/overlay", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}
