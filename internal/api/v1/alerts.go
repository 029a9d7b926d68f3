package api

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/fraktlabs/fencewatch/internal/alert"
	"github.com/fraktlabs/fencewatch/internal/dispatch"
)

// testFenceName fills the placeholder when an alert is sent by hand.
const testFenceName = "test"

// TestAlertRequest is the optional body of POST /api/v1/alerts/:name/test.
type TestAlertRequest struct {
	Fence string `json:"fence"`
}

// ListAlerts handles GET /api/v1/alerts.
func (c *Controller) ListAlerts(ctx echo.Context) error {
	alerts := c.deps.Alerts.List()
	if alerts == nil {
		alerts = []alert.Alert{}
	}
	return ctx.JSON(http.StatusOK, alerts)
}

// CreateAlert handles POST /api/v1/alerts. Rejections name the first
// offending field.
func (c *Controller) CreateAlert(ctx echo.Context) error {
	var draft alert.Draft
	if err := ctx.Bind(&draft); err != nil {
		return c.HandleError(ctx, err, "Invalid alert", http.StatusBadRequest)
	}
	a, err := c.deps.Alerts.Create(ctx.Request().Context(), draft)
	if err != nil {
		return c.HandleError(ctx, err, "Failed to create alert", 0)
	}
	return ctx.JSON(http.StatusCreated, a)
}

// RemoveAlert handles DELETE /api/v1/alerts/:name.
func (c *Controller) RemoveAlert(ctx echo.Context) error {
	if err := c.deps.Alerts.Remove(ctx.Request().Context(), pathParam(ctx, "name")); err != nil {
		return c.HandleError(ctx, err, "Failed to remove alert", 0)
	}
	return ctx.NoContent(http.StatusNoContent)
}

// TestAlert handles POST /api/v1/alerts/:name/test: the alert is sent as if
// its fence had been crossed, without evidence. Delivery failures are only
// logged, as they are for real violations.
func (c *Controller) TestAlert(ctx echo.Context) error {
	if c.deps.Dispatcher == nil {
		return c.HandleError(ctx, unavailable("alert dispatch"), "Dispatch unavailable", http.StatusServiceUnavailable)
	}
	a, err := c.deps.Alerts.Get(pathParam(ctx, "name"))
	if err != nil {
		return c.HandleError(ctx, err, "Unknown alert", 0)
	}

	var req TestAlertRequest
	if ctx.Request().ContentLength > 0 {
		if err := ctx.Bind(&req); err != nil {
			return c.HandleError(ctx, err, "Invalid test request", http.StatusBadRequest)
		}
	}
	if req.Fence == "" {
		req.Fence = testFenceName
	}

	c.deps.Dispatcher.Dispatch(ctx.Request().Context(), a, req.Fence, dispatch.Evidence{})
	return ctx.JSON(http.StatusAccepted, map[string]string{
		"alert":   a.Name,
		"fence":   req.Fence,
		"message": a.Render(req.Fence),
	})
}
