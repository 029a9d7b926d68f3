package api

import (
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fraktlabs/fencewatch/internal/alert"
	"github.com/fraktlabs/fencewatch/internal/source"
)

func TestCreateAndListAlerts(t *testing.T) {
	t.Parallel()
	h := newHarness(t)

	rec := h.do(t, http.MethodPost, "/api/v1/alerts", localDraft("night"))
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	created := decode[alert.Alert](t, rec)
	assert.Equal(t, alert.TypeLocal, created.Type)
	assert.Empty(t, created.ChannelID)

	rec = h.do(t, http.MethodGet, "/api/v1/alerts", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	all := decode[[]alert.Alert](t, rec)
	require.Len(t, all, 1)
	assert.Equal(t, "night", all[0].Name)
}

func TestCreateAlertRejections(t *testing.T) {
	t.Parallel()
	h := newHarness(t)
	require.Equal(t, http.StatusCreated, h.do(t, http.MethodPost, "/api/v1/alerts", localDraft("night")).Code)

	noPlaceholder := localDraft("plain")
	noPlaceholder.ContentTemplate = "Someone left"

	mailWithoutChannel := alert.Draft{
		Type:            alert.TypeMail,
		ContentTemplate: "Left [fence]",
		Recipient:       "nurse@example.org",
		Subject:         "Fence",
		Name:            "mail",
	}

	tests := []struct {
		name  string
		draft alert.Draft
		code  int
		field string
	}{
		{"unknown type", alert.Draft{Type: "pager", ContentTemplate: "[fence]", Recipient: "x", Name: "p"}, http.StatusBadRequest, "type"},
		{"missing placeholder", noPlaceholder, http.StatusBadRequest, "contentTemplate"},
		{"mail without channel", mailWithoutChannel, http.StatusBadRequest, "channelId"},
		{"duplicate name", localDraft("night"), http.StatusConflict, "name"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := h.do(t, http.MethodPost, "/api/v1/alerts", tt.draft)
			require.Equal(t, tt.code, rec.Code, rec.Body.String())
			assert.Equal(t, tt.field, decode[ErrorResponse](t, rec).Field)
		})
	}
	assert.Len(t, h.alerts.List(), 1)
}

func TestRemoveAlertDetachesSources(t *testing.T) {
	t.Parallel()
	h := newHarness(t)
	_, err := h.alerts.Create(t.Context(), localDraft("night"))
	require.NoError(t, err)
	h.addSource(t, source.Source{ID: "cam-1", AlertName: "night"})

	rec := h.do(t, http.MethodDelete, "/api/v1/alerts/night", nil)
	require.Equal(t, http.StatusNoContent, rec.Code)

	assert.Empty(t, h.alerts.List())
	src, err := h.sources.Get("cam-1")
	require.NoError(t, err)
	assert.Empty(t, src.AlertName)
}

func TestTestAlertDispatches(t *testing.T) {
	t.Parallel()
	h := newHarness(t)
	_, err := h.alerts.Create(t.Context(), localDraft("night"))
	require.NoError(t, err)

	rec := h.do(t, http.MethodPost, "/api/v1/alerts/night/test", nil)
	require.Equal(t, http.StatusAccepted, rec.Code, rec.Body.String())
	assert.Equal(t, "Patient left test", decode[map[string]string](t, rec)["message"])

	rec = h.do(t, http.MethodPost, "/api/v1/alerts/night/test", TestAlertRequest{Fence: "bed 4"})
	require.Equal(t, http.StatusAccepted, rec.Code)

	assert.Equal(t, []dispatched{
		{Alert: "night", Fence: "test", Body: "Patient left test"},
		{Alert: "night", Fence: "bed 4", Body: "Patient left bed 4"},
	}, h.dispatcher.Calls())
}

func TestTestAlertUnknown(t *testing.T) {
	t.Parallel()
	h := newHarness(t)

	rec := h.do(t, http.MethodPost, "/api/v1/alerts/ghost/test", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Empty(t, h.dispatcher.Calls())
}
