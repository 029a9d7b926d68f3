package api

import (
	"context"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/fraktlabs/fencewatch/internal/alert"
	"github.com/fraktlabs/fencewatch/internal/errors"
	"github.com/fraktlabs/fencewatch/internal/fence"
	"github.com/fraktlabs/fencewatch/internal/logger"
	"github.com/fraktlabs/fencewatch/internal/remote"
)

// collection is the backend behind one set of persistence endpoints.
type collection[V any] interface {
	Save(ctx context.Context, name string, v V) (map[string]V, error)
	Remove(ctx context.Context, name string) (map[string]V, error)
	LoadAll(ctx context.Context) (map[string]V, error)
}

// collectionRoutes serves /{name}/save, /{name}/load and /{name}/remove in
// the envelope format remote.Client expects. After every change refresh
// brings this instance's own view up to date.
type collectionRoutes[V, R any] struct {
	name       string
	backend    collection[V]
	fromRecord func(key string, r R) V
	toRecord   func(V) R
	validate   func(V) error
	refresh    func(ctx context.Context, removed string) error
	logger     logger.Logger
}

type saveRequest[R any] struct {
	ID   string `json:"id"`
	Data R      `json:"data"`
}

// initPersistenceRoutes mounts the persistence endpoints at the server root,
// where remote persistence clients expect them.
func (c *Controller) initPersistenceRoutes() {
	if c.deps.FencePersistence != nil {
		fences := &collectionRoutes[fence.Fence, fence.Record]{
			name:       "fences",
			backend:    c.deps.FencePersistence,
			fromRecord: fence.FromRecord,
			toRecord:   fence.Fence.ToRecord,
			validate:   fence.Fence.Validate,
			refresh: func(ctx context.Context, removed string) error {
				if removed != "" {
					c.deps.Sources.DetachFence(ctx, removed)
				}
				return c.deps.Fences.Load(ctx)
			},
			logger: c.logger,
		}
		fences.register(c.echo)
	}

	if c.deps.AlertPersistence != nil {
		alerts := &collectionRoutes[alert.Alert, alert.Record]{
			name:       "alerts",
			backend:    c.deps.AlertPersistence,
			fromRecord: alert.FromRecord,
			toRecord:   alert.Alert.ToRecord,
			validate:   validateAlertRecord,
			refresh: func(ctx context.Context, removed string) error {
				if removed != "" {
					c.deps.Sources.DetachAlert(ctx, removed)
				}
				return c.deps.Alerts.Load(ctx)
			},
			logger: c.logger,
		}
		alerts.register(c.echo)
	}
}

func (r *collectionRoutes[V, R]) register(e *echo.Echo) {
	base := "/" + r.name
	e.POST(base+"/save", r.save)
	e.POST(base+"/remove", r.remove)
	e.GET(base+"/load", r.load)
	e.POST(base+"/load", r.load)
}

func (r *collectionRoutes[V, R]) save(ctx echo.Context) error {
	var req saveRequest[R]
	if err := ctx.Bind(&req); err != nil {
		return r.fail(ctx, http.StatusBadRequest, err)
	}
	if req.ID == "" {
		return r.fail(ctx, http.StatusBadRequest, errors.NewStd("id is required"))
	}

	v := r.fromRecord(req.ID, req.Data)
	if err := r.validate(v); err != nil {
		return r.fail(ctx, http.StatusBadRequest, err)
	}

	all, err := r.backend.Save(ctx.Request().Context(), req.ID, v)
	if err != nil {
		return r.fail(ctx, http.StatusInternalServerError, err)
	}
	r.afterChange(ctx, "")
	return r.ok(ctx, "saved", all)
}

func (r *collectionRoutes[V, R]) remove(ctx echo.Context) error {
	var req remote.RemoveRequest
	if err := ctx.Bind(&req); err != nil {
		return r.fail(ctx, http.StatusBadRequest, err)
	}
	if req.ID == "" {
		return r.fail(ctx, http.StatusBadRequest, errors.NewStd("id is required"))
	}

	all, err := r.backend.Remove(ctx.Request().Context(), req.ID)
	if err != nil {
		return r.fail(ctx, http.StatusInternalServerError, err)
	}
	r.afterChange(ctx, req.ID)
	return r.ok(ctx, "removed", all)
}

func (r *collectionRoutes[V, R]) load(ctx echo.Context) error {
	all, err := r.backend.LoadAll(ctx.Request().Context())
	if err != nil {
		return r.fail(ctx, http.StatusInternalServerError, err)
	}
	return r.ok(ctx, "loaded", all)
}

// afterChange refreshes local state. The backend change already happened,
// so a failed refresh is logged, not returned.
func (r *collectionRoutes[V, R]) afterChange(ctx echo.Context, removed string) {
	if err := r.refresh(ctx.Request().Context(), removed); err != nil {
		r.logger.Warn("failed to refresh after persistence change",
			logger.String("collection", r.name),
			logger.Error(err))
	}
}

func (r *collectionRoutes[V, R]) ok(ctx echo.Context, message string, all map[string]V) error {
	records := make(map[string]R, len(all))
	for key, v := range all {
		records[key] = r.toRecord(v)
	}
	return ctx.JSON(http.StatusOK, map[string]any{
		"status":  remote.StatusOK,
		"message": message,
		"data":    records,
	})
}

func (r *collectionRoutes[V, R]) fail(ctx echo.Context, code int, err error) error {
	r.logger.Debug("persistence request failed",
		logger.String("collection", r.name),
		logger.String("path", ctx.Request().URL.Path),
		logger.Int("code", code),
		logger.Error(err))
	return ctx.JSON(code, remote.Envelope{
		Status: remote.StatusFail,
		Error:  err.Error(),
	})
}

// validateAlertRecord accepts any known type. Records arrive already
// validated by the writing instance, so only corruption is rejected.
func validateAlertRecord(a alert.Alert) error {
	switch a.Type {
	case alert.TypeLocal, alert.TypeMail, alert.TypeMessaging:
	default:
		return errors.Newf("unknown alert type %q", a.Type).
			Category(errors.CategoryValidation).
			Build()
	}
	if a.ContentTemplate == "" {
		return errors.Newf("alert content is required").
			Category(errors.CategoryValidation).
			Build()
	}
	return nil
}
