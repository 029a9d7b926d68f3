package api

import (
	"net/http"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/fraktlabs/fencewatch/internal/monitor"
	"github.com/fraktlabs/fencewatch/internal/source"
)

// HealthResponse is the body of GET /api/v1/health.
type HealthResponse struct {
	Status        string            `json:"status"`
	Version       string            `json:"version,omitempty"`
	Uptime        string            `json:"uptime"`
	UptimeSeconds float64           `json:"uptime_seconds"`
	Timestamp     string            `json:"timestamp"`
	Monitor       *MonitorResponse  `json:"monitor,omitempty"`
	Host          monitor.HostStats `json:"host"`
	Counts        map[string]int    `json:"counts"`
}

// MonitorResponse is the body of GET /api/v1/monitor.
type MonitorResponse struct {
	State      string `json:"state"`
	Passes     uint64 `json:"passes"`
	Monitoring int    `json:"monitoring"`
}

// Health handles GET /api/v1/health. Host readings that fail are zero.
func (c *Controller) Health(ctx echo.Context) error {
	uptime := time.Since(c.startTime)
	resp := HealthResponse{
		Status:        "healthy",
		Version:       c.deps.Version,
		Uptime:        uptime.Truncate(time.Second).String(),
		UptimeSeconds: uptime.Seconds(),
		Timestamp:     time.Now().Format(time.RFC3339),
		Counts: map[string]int{
			"sources": len(c.deps.Sources.List()),
			"fences":  len(c.deps.Fences.List()),
			"alerts":  len(c.deps.Alerts.List()),
		},
	}
	if c.deps.Monitor != nil {
		m := c.monitorStatus()
		resp.Monitor = &m
	}

	resp.Host = monitor.ReadHostStats(ctx.Request().Context(), c.deps.HostDisk)
	return ctx.JSON(http.StatusOK, resp)
}

// MonitorState handles GET /api/v1/monitor.
func (c *Controller) MonitorState(ctx echo.Context) error {
	if c.deps.Monitor == nil {
		return c.HandleError(ctx, unavailable("the monitor"), "Monitor not running", http.StatusServiceUnavailable)
	}
	return ctx.JSON(http.StatusOK, c.monitorStatus())
}

func (c *Controller) monitorStatus() MonitorResponse {
	return MonitorResponse{
		State:      c.deps.Monitor.State().String(),
		Passes:     c.deps.Monitor.Passes(),
		Monitoring: len(c.deps.Sources.List(source.Monitoring())),
	}
}
