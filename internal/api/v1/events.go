package api

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gorilla/websocket"
	"github.com/labstack/echo/v4"

	"github.com/fraktlabs/fencewatch/internal/events"
	"github.com/fraktlabs/fencewatch/internal/logger"
)

const (
	wsWriteWait   = 5 * time.Second
	wsPongWait    = 60 * time.Second
	wsPingPeriod  = wsPongWait * 9 / 10
	wsEventBuffer = 64
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 8192,
	// Origins are governed by the CORS middleware.
	CheckOrigin: func(*http.Request) bool { return true },
}

// EventStream handles GET /api/v1/events/ws. Each bus event is written as
// one JSON text message. Evidence frames are left out unless the client
// asks for them with ?evidence=true. A slow client loses events rather than
// holding up the bus.
func (c *Controller) EventStream(ctx echo.Context) error {
	if c.deps.Events == nil {
		return c.HandleError(ctx, unavailable("the event bus"), "Event stream unavailable", http.StatusServiceUnavailable)
	}
	withEvidence, _ := strconv.ParseBool(ctx.QueryParam("evidence"))

	stream, unsubscribe, err := c.deps.Events.Subscribe(wsEventBuffer)
	if err != nil {
		return c.HandleError(ctx, err, "Failed to subscribe to events", http.StatusInternalServerError)
	}
	defer unsubscribe()

	ws, err := upgrader.Upgrade(ctx.Response(), ctx.Request(), nil)
	if err != nil {
		// the upgrader has already answered the request
		c.logger.Debug("websocket upgrade failed", logger.Error(err))
		return nil
	}
	defer ws.Close()

	c.wg.Add(1)
	defer c.wg.Done()
	c.deps.Sockets.WebSocketOpened()
	defer c.deps.Sockets.WebSocketClosed()

	log := c.logger.With(logger.String("remote", ctx.RealIP()))
	log.Debug("event stream opened")
	defer log.Debug("event stream closed")

	closed := readUntilClosed(ws)

	ticker := time.NewTicker(wsPingPeriod)
	defer ticker.Stop()

	for {
		select {
		case <-c.ctx.Done():
			deadline := time.Now().Add(wsWriteWait)
			_ = ws.WriteControl(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseGoingAway, "server shutting down"), deadline)
			return nil
		case <-closed:
			return nil
		case e, ok := <-stream:
			if !ok {
				return nil
			}
			if !withEvidence {
				e = e.WithoutEvidence()
			}
			if err := writeEvent(ws, e); err != nil {
				log.Debug("event stream write failed", logger.Error(err))
				return nil
			}
		case <-ticker.C:
			if err := ws.WriteControl(websocket.PingMessage, nil, time.Now().Add(wsWriteWait)); err != nil {
				return nil
			}
		}
	}
}

func writeEvent(ws *websocket.Conn, e events.Event) error {
	if err := ws.SetWriteDeadline(time.Now().Add(wsWriteWait)); err != nil {
		return err
	}
	return ws.WriteJSON(e)
}

// readUntilClosed drains client frames so control messages are processed.
// The returned channel closes when the connection fails or the peer leaves.
func readUntilClosed(ws *websocket.Conn) <-chan struct{} {
	done := make(chan struct{})
	_ = ws.SetReadDeadline(time.Now().Add(wsPongWait))
	ws.SetPongHandler(func(string) error {
		return ws.SetReadDeadline(time.Now().Add(wsPongWait))
	})
	go func() {
		defer close(done)
		for {
			if _, _, err := ws.NextReader(); err != nil {
				return
			}
		}
	}()
	return done
}
