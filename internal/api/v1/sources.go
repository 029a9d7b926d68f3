package api

import (
	"net/http"
	"strconv"

	"github.com/labstack/echo/v4"

	"github.com/fraktlabs/fencewatch/internal/source"
)

// ListSources handles GET /api/v1/sources. The monitoring, visible, fence
// and alert query parameters narrow the list.
func (c *Controller) ListSources(ctx echo.Context) error {
	var filters []source.Filter
	if b, err := strconv.ParseBool(ctx.QueryParam("monitoring")); err == nil && b {
		filters = append(filters, source.Monitoring())
	}
	if b, err := strconv.ParseBool(ctx.QueryParam("visible")); err == nil && b {
		filters = append(filters, source.Visible())
	}
	if name := ctx.QueryParam("fence"); name != "" {
		filters = append(filters, source.WithFence(name))
	}
	if name := ctx.QueryParam("alert"); name != "" {
		filters = append(filters, source.WithAlert(name))
	}

	sources := c.deps.Sources.List(filters...)
	if sources == nil {
		sources = []source.Source{}
	}
	return ctx.JSON(http.StatusOK, sources)
}

// AddSource handles POST /api/v1/sources.
func (c *Controller) AddSource(ctx echo.Context) error {
	var src source.Source
	if err := ctx.Bind(&src); err != nil {
		return c.HandleError(ctx, err, "Invalid source", http.StatusBadRequest)
	}
	if err := c.deps.Sources.Add(ctx.Request().Context(), src); err != nil {
		return c.HandleError(ctx, err, "Failed to add source", 0)
	}
	return ctx.JSON(http.StatusCreated, src)
}

// UpdateSource handles PATCH /api/v1/sources/:id. Absent fields are kept;
// an empty fenceName or alertName clears the assignment.
func (c *Controller) UpdateSource(ctx echo.Context) error {
	var patch source.Patch
	if err := ctx.Bind(&patch); err != nil {
		return c.HandleError(ctx, err, "Invalid source update", http.StatusBadRequest)
	}
	src, err := c.deps.Sources.Update(ctx.Request().Context(), pathParam(ctx, "id"), patch)
	if err != nil {
		return c.HandleError(ctx, err, "Failed to update source", 0)
	}
	return ctx.JSON(http.StatusOK, src)
}

// RemoveSource handles DELETE /api/v1/sources/:id. Unknown ids succeed.
func (c *Controller) RemoveSource(ctx echo.Context) error {
	id := pathParam(ctx, "id")
	c.deps.Sources.Remove(ctx.Request().Context(), id)
	if c.deps.Overlays != nil {
		c.deps.Overlays.Forget(id)
	}
	return ctx.NoContent(http.StatusNoContent)
}

// SourceOverlay handles GET /api/v1/sources/:id/overlay: the fence and pose
// drawn for the source by the last pass.
func (c *Controller) SourceOverlay(ctx echo.Context) error {
	if c.deps.Overlays == nil {
		return c.HandleError(ctx, unavailable("overlay rendering"), "Overlays unavailable", http.StatusServiceUnavailable)
	}
	id := pathParam(ctx, "id")
	if _, err := c.deps.Sources.Get(id); err != nil {
		return c.HandleError(ctx, err, "Unknown source", 0)
	}
	o, ok := c.deps.Overlays.Get(id)
	if !ok {
		return ctx.NoContent(http.StatusNoContent)
	}
	return ctx.JSON(http.StatusOK, o)
}
