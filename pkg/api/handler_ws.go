package api

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	"github.com/coder/websocket"
	echo "github.com/labstack/echo/v5"

	"github.com/snapgraph/snapgraph/pkg/events"
	"github.com/snapgraph/snapgraph/pkg/metrics"
)

// wsWriteTimeout bounds a single WebSocket send.
const wsWriteTimeout = 10 * time.Second

// runMessage is the envelope sent on /chat/ws/:runId. Data carries the event
// payload; Index mirrors the event's cursor position so clients can reconnect
// with ?cursor=index+1.
type runMessage struct {
	Type  string        `json:"type"`
	Index *int          `json:"index,omitempty"`
	Data  *events.Event `json:"data,omitempty"`
}

// graphMessage is the envelope sent on /graph/ws.
type graphMessage struct {
	Type string             `json:"type"`
	Data *events.EdgeUpdate `json:"data,omitempty"`
}

// clientMessage is what clients may send; only pings are recognized.
type clientMessage struct {
	Type string `json:"type"`
}

// eventMessage wraps one run event for the wire. The value copy keeps the
// envelope independent of the subscription channel's next receive.
func eventMessage(ev events.Event) *runMessage {
	idx := ev.Index
	return &runMessage{Type: "event", Index: &idx, Data: &ev}
}

// runWSHandler handles GET /chat/ws/:runId. Replays events from the cursor,
// then streams live ones; a `complete` message ends the stream. Client pings
// are answered with pongs.
func (s *Server) runWSHandler(c *echo.Context) error {
	run, err := s.registry.Get(c.Param("runId"))
	if err != nil {
		return mapServiceError(err)
	}
	cursor := parseCursor(c.QueryParam("cursor"))

	conn, err := s.acceptWS(c)
	if err != nil {
		return err
	}
	defer conn.Close(websocket.StatusInternalError, "closed")

	metrics.Subscribers.WithLabelValues("ws").Inc()
	defer metrics.Subscribers.WithLabelValues("ws").Dec()

	ctx, cancelCtx := context.WithCancel(c.Request().Context())
	defer cancelCtx()

	pongs := s.readPings(ctx, conn, cancelCtx)

	replay, live, cancel := run.Log.Subscribe(cursor)
	defer cancel()

	for _, ev := range replay {
		if err := writeWS(ctx, conn, eventMessage(ev)); err != nil {
			return nil
		}
	}

	for {
		select {
		case <-ctx.Done():
			conn.Close(websocket.StatusNormalClosure, "")
			return nil
		case <-pongs:
			if err := writeWS(ctx, conn, &runMessage{Type: "pong"}); err != nil {
				return nil
			}
		case ev, open := <-live:
			if !open {
				writeWS(ctx, conn, &runMessage{Type: "complete"})
				conn.Close(websocket.StatusNormalClosure, "run complete")
				return nil
			}
			if err := writeWS(ctx, conn, eventMessage(ev)); err != nil {
				return nil
			}
		}
	}
}

// graphWSHandler handles GET /graph/ws: the global edge-update feed. Clients
// typically fetch the full snapshot over GET /graph first, then apply deltas.
func (s *Server) graphWSHandler(c *echo.Context) error {
	conn, err := s.acceptWS(c)
	if err != nil {
		return err
	}
	defer conn.Close(websocket.StatusInternalError, "closed")

	metrics.Subscribers.WithLabelValues("graph_ws").Inc()
	defer metrics.Subscribers.WithLabelValues("graph_ws").Dec()

	ctx, cancelCtx := context.WithCancel(c.Request().Context())
	defer cancelCtx()

	pongs := s.readPings(ctx, conn, cancelCtx)

	updates, unsubscribe := s.broadcaster.Subscribe()
	defer unsubscribe()

	for {
		select {
		case <-ctx.Done():
			conn.Close(websocket.StatusNormalClosure, "")
			return nil
		case <-pongs:
			if err := writeWS(ctx, conn, &graphMessage{Type: "pong"}); err != nil {
				return nil
			}
		case update, open := <-updates:
			if !open {
				conn.Close(websocket.StatusNormalClosure, "")
				return nil
			}
			if err := writeWS(ctx, conn, &graphMessage{Type: "edge_update", Data: &update}); err != nil {
				return nil
			}
		}
	}
}

// acceptWS upgrades the request, enforcing the configured origin allow-list.
func (s *Server) acceptWS(c *echo.Context) (*websocket.Conn, error) {
	return websocket.Accept(c.Response(), c.Request(), &websocket.AcceptOptions{
		OriginPatterns: originPatterns(s.cfg.AllowedOrigins),
	})
}

// readPings drains the client side of the connection on its own goroutine and
// signals each ping. Any read error cancels the connection context, which
// ends the write loop.
func (s *Server) readPings(ctx context.Context, conn *websocket.Conn, cancel context.CancelFunc) <-chan struct{} {
	pings := make(chan struct{}, 1)
	go func() {
		defer cancel()
		for {
			_, data, err := conn.Read(ctx)
			if err != nil {
				return
			}
			var msg clientMessage
			if err := json.Unmarshal(data, &msg); err != nil {
				slog.Debug("Ignoring malformed WebSocket message", "error", err)
				continue
			}
			if msg.Type == "ping" {
				select {
				case pings <- struct{}{}:
				default:
				}
			}
		}
	}()
	return pings
}

func writeWS(ctx context.Context, conn *websocket.Conn, msg any) error {
	data, err := json.Marshal(msg)
	if err != nil {
		return err
	}
	writeCtx, cancel := context.WithTimeout(ctx, wsWriteTimeout)
	defer cancel()
	return conn.Write(writeCtx, websocket.MessageText, data)
}

// originPatterns strips schemes from configured origins for the upgrader's
// host-pattern matching.
func originPatterns(origins []string) []string {
	out := make([]string, 0, len(origins))
	for _, o := range origins {
		for _, prefix := range []string{"https://", "http://"} {
			if len(o) > len(prefix) && o[:len(prefix)] == prefix {
				o = o[len(prefix):]
				break
			}
		}
		out = append(out, o)
	}
	return out
}
