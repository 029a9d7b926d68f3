// Package api implements the v1 control API: sources, fences, alerts, the
// monitor's status and a websocket event stream, plus the collection
// persistence endpoints other instances use as a remote backend.
package api

import (
	"context"
	"net/http"
	"net/url"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"github.com/fraktlabs/fencewatch/internal/alert"
	"github.com/fraktlabs/fencewatch/internal/dispatch"
	"github.com/fraktlabs/fencewatch/internal/errors"
	"github.com/fraktlabs/fencewatch/internal/events"
	"github.com/fraktlabs/fencewatch/internal/fence"
	"github.com/fraktlabs/fencewatch/internal/logger"
	"github.com/fraktlabs/fencewatch/internal/monitor"
	"github.com/fraktlabs/fencewatch/internal/source"
	"github.com/fraktlabs/fencewatch/internal/vision"
)

// Dispatcher sends an alert for a fence.
type Dispatcher interface {
	Dispatch(ctx context.Context, a alert.Alert, fenceName string, evidence dispatch.Evidence)
}

// MonitorStatus reports the scheduler's progress.
type MonitorStatus interface {
	State() monitor.State
	Passes() uint64
}

// Subscriber hands out event streams.
type Subscriber interface {
	Subscribe(buffer int) (<-chan events.Event, func(), error)
}

// SocketRecorder tracks open websocket connections.
type SocketRecorder interface {
	WebSocketOpened()
	WebSocketClosed()
}

// Deps are the collaborators behind the endpoints. Optional ones may be nil;
// their endpoints answer 503.
type Deps struct {
	Sources *source.Registry
	Fences  *fence.Store
	Alerts  *alert.Catalog

	// Backends served by the persistence endpoints. Normally the same ones
	// the stores above are built on.
	FencePersistence fence.Persistence
	AlertPersistence alert.Persistence

	Dispatcher Dispatcher
	Segmenter  vision.Segmenter
	Monitor    MonitorStatus
	Overlays   *monitor.OverlayStore
	Events     Subscriber
	Sockets    SocketRecorder

	// Threshold is the red-channel cutoff for mask extraction.
	Threshold uint8
	Version   string
	HostDisk  string // path whose filesystem /health reports, "" skips disk
}

// Controller holds the handlers of the v1 API.
type Controller struct {
	Group *echo.Group
	echo  *echo.Echo
	deps  Deps

	startTime time.Time
	logger    logger.Logger

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// New registers the v1 routes on e under /api/v1 and the persistence
// endpoints at the root.
func New(e *echo.Echo, deps Deps) (*Controller, error) {
	if deps.Sources == nil || deps.Fences == nil || deps.Alerts == nil {
		return nil, errors.Newf("sources, fences and alerts are required").
			Category(errors.CategoryConfiguration).
			Build()
	}
	if deps.Sockets == nil {
		deps.Sockets = nopSockets{}
	}

	ctx, cancel := context.WithCancel(context.Background())
	c := &Controller{
		Group:     e.Group("/api/v1"),
		echo:      e,
		deps:      deps,
		startTime: time.Now(),
		logger:    GetLogger(),
		ctx:       ctx,
		cancel:    cancel,
	}
	c.initRoutes()
	return c, nil
}

func (c *Controller) initRoutes() {
	c.Group.GET("/health", c.Health)
	c.Group.GET("/monitor", c.MonitorState)

	c.Group.GET("/sources", c.ListSources)
	c.Group.POST("/sources", c.AddSource)
	c.Group.PATCH("/sources/:id", c.UpdateSource)
	c.Group.DELETE("/sources/:id", c.RemoveSource)
	c.Group.GET("/sources/:id/overlay", c.SourceOverlay)

	c.Group.GET("/fences", c.ListFences)
	c.Group.POST("/fences", c.SaveFence)
	c.Group.POST("/fences/segment", c.SegmentFence)
	c.Group.DELETE("/fences/:name", c.RemoveFence)

	c.Group.GET("/alerts", c.ListAlerts)
	c.Group.POST("/alerts", c.CreateAlert)
	c.Group.DELETE("/alerts/:name", c.RemoveAlert)
	c.Group.POST("/alerts/:name/test", c.TestAlert)

	c.Group.GET("/events/ws", c.EventStream)

	c.initPersistenceRoutes()
}

// Shutdown closes open event streams and waits for their writers.
func (c *Controller) Shutdown() {
	c.cancel()
	c.wg.Wait()
}

// ErrorResponse is the body of every failed control request.
type ErrorResponse struct {
	Error         string `json:"error"`
	Message       string `json:"message"`
	Field         string `json:"field,omitempty"`
	Code          int    `json:"code"`
	CorrelationID string `json:"correlation_id"`
}

// NewErrorResponse creates a new API error response.
func NewErrorResponse(err error, message string, code int) *ErrorResponse {
	errorStr := message
	if err != nil {
		errorStr = err.Error()
	}
	return &ErrorResponse{
		Error:         errorStr,
		Message:       message,
		Field:         fieldOf(err),
		Code:          code,
		CorrelationID: uuid.NewString()[:8],
	}
}

// HandleError logs err and writes it as an ErrorResponse. A zero code is
// derived from the error's category.
func (c *Controller) HandleError(ctx echo.Context, err error, message string, code int) error {
	if code == 0 {
		code = statusFor(err)
	}
	resp := NewErrorResponse(err, message, code)

	fields := []logger.Field{
		logger.String("correlation_id", resp.CorrelationID),
		logger.String("message", message),
		logger.Int("code", code),
		logger.String("path", ctx.Request().URL.Path),
		logger.String("method", ctx.Request().Method),
		logger.String("ip", ctx.RealIP()),
	}
	if err != nil {
		fields = append(fields, logger.Error(err))
	}
	if code >= http.StatusInternalServerError {
		c.logger.Error("API error", fields...)
	} else {
		c.logger.Debug("API request rejected", fields...)
	}

	return ctx.JSON(code, resp)
}

// statusFor maps an error category to a response code.
func statusFor(err error) int {
	switch {
	case errors.IsCategory(err, errors.CategoryValidation),
		errors.IsCategory(err, errors.CategoryDecode):
		return http.StatusBadRequest
	case errors.IsNotFound(err):
		return http.StatusNotFound
	case errors.IsCategory(err, errors.CategoryConflict):
		return http.StatusConflict
	case errors.IsCategory(err, errors.CategoryPersistence),
		errors.IsCategory(err, errors.CategoryDatabase),
		errors.IsCategory(err, errors.CategoryInference),
		errors.IsCategory(err, errors.CategoryChannel),
		errors.IsCategory(err, errors.CategoryNetwork),
		errors.IsCategory(err, errors.CategoryHTTP):
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

// fieldOf names the rejected field of a validation failure.
func fieldOf(err error) string {
	var ee *errors.EnhancedError
	if errors.As(err, &ee) {
		if field, ok := ee.GetContext()["field"].(string); ok {
			return field
		}
	}
	var fe *fence.ValidationError
	if errors.As(err, &fe) {
		return fe.Field
	}
	var ae *alert.ValidationError
	if errors.As(err, &ae) {
		return ae.Field
	}
	return ""
}

// pathParam returns the unescaped path parameter. Source ids are device
// paths and stream URLs, so clients must escape them.
func pathParam(ctx echo.Context, name string) string {
	raw := ctx.Param(name)
	if v, err := url.PathUnescape(raw); err == nil {
		return v
	}
	return raw
}

func unavailable(what string) error {
	return errors.Newf("%s is not configured on this instance", what).
		Category(errors.CategoryConfiguration).
		Build()
}

type nopSockets struct{}

func (nopSockets) WebSocketOpened() {}
func (nopSockets) WebSocketClosed() {}
