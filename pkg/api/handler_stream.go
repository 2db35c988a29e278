package api

import (
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	echo "github.com/labstack/echo/v5"

	"github.com/snapgraph/snapgraph/pkg/events"
	"github.com/snapgraph/snapgraph/pkg/metrics"
)

// streamCap bounds one SSE connection's lifetime. Clients reconnect with the
// cursor of the last event they saw.
const streamCap = 10 * time.Minute

// streamHandler handles GET /chat/stream/:runId as Server-Sent Events:
// replay from the cursor, then live events, then a `complete` event once the
// run's log is terminal.
func (s *Server) streamHandler(c *echo.Context) error {
	run, err := s.registry.Get(c.Param("runId"))
	if err != nil {
		return mapServiceError(err)
	}
	cursor := parseCursor(c.QueryParam("cursor"))

	flusher, ok := c.Response().(http.Flusher)
	if !ok {
		return echo.NewHTTPError(http.StatusInternalServerError, "streaming not supported")
	}

	h := c.Response().Header()
	h.Set("Content-Type", "text/event-stream")
	h.Set("Cache-Control", "no-cache")
	h.Set("Connection", "keep-alive")
	h.Set("X-Accel-Buffering", "no") // nginx proxy compatibility
	c.Response().WriteHeader(http.StatusOK)
	flusher.Flush()

	metrics.Subscribers.WithLabelValues("sse").Inc()
	defer metrics.Subscribers.WithLabelValues("sse").Dec()

	replay, live, cancel := run.Log.Subscribe(cursor)
	defer cancel()

	w := c.Response()
	for _, ev := range replay {
		writeSSEEvent(w, ev)
	}
	flusher.Flush()

	ctx := c.Request().Context()
	deadline := time.NewTimer(streamCap)
	defer deadline.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-deadline.C:
			return nil
		case ev, open := <-live:
			if !open {
				fmt.Fprintf(w, "event: complete\ndata: {}\n\n")
				flusher.Flush()
				return nil
			}
			writeSSEEvent(w, ev)
			flusher.Flush()
		}
	}
}

func writeSSEEvent(w http.ResponseWriter, ev events.Event) {
	data, err := json.Marshal(ev)
	if err != nil {
		return
	}
	fmt.Fprintf(w, "data: %s\n\n", data)
}
