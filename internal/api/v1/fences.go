package api

import (
	"io"
	"net/http"
	"strconv"

	"github.com/labstack/echo/v4"

	"github.com/fraktlabs/fencewatch/internal/boundary"
	"github.com/fraktlabs/fencewatch/internal/errors"
	"github.com/fraktlabs/fencewatch/internal/fence"
	"github.com/fraktlabs/fencewatch/internal/logger"
	"github.com/fraktlabs/fencewatch/internal/source"
)

const maxFrameBytes = 16 << 20

// FenceRequest is the body of POST /api/v1/fences. A mask, when given,
// replaces the boundary with the one extracted from it. A taken name is a
// conflict unless Replace is set.
type FenceRequest struct {
	Name     string        `json:"name"`
	SourceID string        `json:"sourceId"`
	Boundary boundary.Rect `json:"boundary"`
	Mask     string        `json:"mask,omitempty"` // data URL
	Replace  bool          `json:"replace,omitempty"`
}

// ListFences handles GET /api/v1/fences.
func (c *Controller) ListFences(ctx echo.Context) error {
	fences := c.deps.Fences.List()
	if fences == nil {
		fences = []fence.Fence{}
	}
	return ctx.JSON(http.StatusOK, fences)
}

// SaveFence handles POST /api/v1/fences.
func (c *Controller) SaveFence(ctx echo.Context) error {
	var req FenceRequest
	if err := ctx.Bind(&req); err != nil {
		return c.HandleError(ctx, err, "Invalid fence", http.StatusBadRequest)
	}

	f := fence.Fence{Name: req.Name, SourceID: req.SourceID, Boundary: req.Boundary}
	if req.Mask != "" {
		rect, err := boundary.ExtractFromDataURL(req.Mask, c.deps.Threshold)
		if err != nil {
			return c.HandleError(ctx, err, "Unreadable mask", http.StatusBadRequest)
		}
		f.Boundary = rect
	}

	if err := c.storeFence(ctx, f, req.Replace); err != nil {
		return c.HandleError(ctx, err, "Failed to save fence", 0)
	}
	return ctx.JSON(http.StatusOK, f)
}

// SegmentFence handles POST /api/v1/fences/segment. The vision service
// segments the object under (x, y) in the uploaded frame; the mask's
// bounding box becomes the fence. A mask with no usable region answers 422.
// x and y are fractions of the frame.
func (c *Controller) SegmentFence(ctx echo.Context) error {
	if c.deps.Segmenter == nil {
		return c.HandleError(ctx, unavailable("segmentation"), "Segmentation unavailable", http.StatusServiceUnavailable)
	}

	name := ctx.FormValue("name")
	sourceID := ctx.FormValue("source")
	x, errX := strconv.ParseFloat(ctx.FormValue("x"), 64)
	y, errY := strconv.ParseFloat(ctx.FormValue("y"), 64)
	if err := errors.Join(errX, errY); err != nil {
		return c.HandleError(ctx, err, "x and y must be numbers", http.StatusBadRequest)
	}
	if !unitRange(x) || !unitRange(y) {
		err := errors.Newf("point (%g, %g) outside the frame", x, y).
			Category(errors.CategoryValidation).
			Build()
		return c.HandleError(ctx, err, "x and y must be between 0 and 1", http.StatusBadRequest)
	}
	replace, _ := strconv.ParseBool(ctx.FormValue("replace"))

	frame, err := readFormFile(ctx, "image")
	if err != nil {
		return c.HandleError(ctx, err, "An image is required", http.StatusBadRequest)
	}

	mask, err := c.deps.Segmenter.Segment(ctx.Request().Context(), frame, x, y)
	if err != nil {
		return c.HandleError(ctx, err, "Segmentation failed", 0)
	}
	rect, err := boundary.ExtractFromDataURL(mask, c.deps.Threshold)
	if err != nil {
		return c.HandleError(ctx, err, "Segmentation returned an unreadable mask", http.StatusBadGateway)
	}

	f := fence.Fence{Name: name, SourceID: sourceID, Boundary: rect}
	if err := c.storeFence(ctx, f, replace); err != nil {
		code := 0
		var ve *fence.ValidationError
		if errors.As(err, &ve) && ve.Field == "boundary" {
			code = http.StatusUnprocessableEntity
		}
		return c.HandleError(ctx, err, "Failed to save fence", code)
	}
	return ctx.JSON(http.StatusOK, f)
}

// RemoveFence handles DELETE /api/v1/fences/:name. Sources using the fence
// lose it.
func (c *Controller) RemoveFence(ctx echo.Context) error {
	if err := c.deps.Fences.Remove(ctx.Request().Context(), pathParam(ctx, "name")); err != nil {
		return c.HandleError(ctx, err, "Failed to remove fence", 0)
	}
	return ctx.NoContent(http.StatusNoContent)
}

// storeFence saves f and points its source at it. A source the registry
// does not know is left alone.
func (c *Controller) storeFence(ctx echo.Context, f fence.Fence, replace bool) error {
	reqCtx := ctx.Request().Context()
	save := c.deps.Fences.Create
	if replace {
		save = c.deps.Fences.Upsert
	}
	if err := save(reqCtx, f); err != nil {
		return err
	}

	if f.SourceID == "" {
		return nil
	}
	name := f.Name
	if _, err := c.deps.Sources.Update(reqCtx, f.SourceID, source.Patch{FenceName: &name}); err != nil {
		if errors.IsNotFound(err) {
			c.logger.Debug("fence saved for unregistered source",
				logger.String("fence", f.Name),
				logger.String("source_id", f.SourceID))
			return nil
		}
		return err
	}
	return nil
}

func unitRange(v float64) bool {
	return v >= 0 && v <= 1
}

func readFormFile(ctx echo.Context, field string) ([]byte, error) {
	fh, err := ctx.FormFile(field)
	if err != nil {
		return nil, err
	}
	f, err := fh.Open()
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return io.ReadAll(io.LimitReader(f, maxFrameBytes))
}
