package api

import (
	"log/slog"
	"net/http"
	"strconv"
	"time"

	echo "github.com/labstack/echo/v5"
)

// longPollWait bounds how long GET /chat/events blocks waiting for a new
// event before returning an empty page.
const longPollWait = 25 * time.Second

// parseHandler handles POST /chat/parse. Extracts the two people from free
// text via the planner; a parse failure is a valid response, not an error.
func (s *Server) parseHandler(c *echo.Context) error {
	var req ParseRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	if err := req.Validate(); err != nil {
		return mapServiceError(err)
	}

	parsed := s.parser.ParseQuery(c.Request().Context(), req.Query)
	return c.JSON(http.StatusOK, parsed)
}

// queryHandler handles POST /chat/query. A known path in the graph is served
// from cache as an already-completed run; otherwise a live investigation is
// launched.
func (s *Server) queryHandler(c *echo.Context) error {
	var req QueryRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	if err := req.Validate(); err != nil {
		return mapServiceError(err)
	}

	if cached, err := s.store.FindPath(c.Request().Context(), req.PersonA, req.PersonB); err == nil && cached != nil && cached.Found {
		run := s.registry.StartCached(req.PersonA, req.PersonB, cached)
		slog.Info("Serving cached path",
			"run_id", run.ID, "person_a", req.PersonA, "person_b", req.PersonB, "hops", cached.Hops)
		return c.JSON(http.StatusOK, &QueryResponse{
			RunID:   run.ID,
			Status:  "started",
			PersonA: req.PersonA,
			PersonB: req.PersonB,
		})
	}

	run := s.registry.Start(req.PersonA, req.PersonB)
	slog.Info("Investigation started",
		"run_id", run.ID, "person_a", req.PersonA, "person_b", req.PersonB)
	return c.JSON(http.StatusOK, &QueryResponse{
		RunID:   run.ID,
		Status:  "started",
		PersonA: req.PersonA,
		PersonB: req.PersonB,
	})
}

// eventsHandler handles GET /chat/events/:runId. Long-poll: returns
// immediately when events at or past the cursor exist, otherwise waits up to
// longPollWait for the next one.
func (s *Server) eventsHandler(c *echo.Context) error {
	run, err := s.registry.Get(c.Param("runId"))
	if err != nil {
		return mapServiceError(err)
	}
	cursor := parseCursor(c.QueryParam("cursor"))

	replay, live, cancel := run.Log.Subscribe(cursor)
	defer cancel()

	if len(replay) == 0 && !run.Log.Closed() {
		select {
		case ev, ok := <-live:
			if ok {
				replay = append(replay, ev)
			}
		case <-time.After(longPollWait):
		case <-c.Request().Context().Done():
			return c.Request().Context().Err()
		}
	}

	next := cursor + len(replay)
	return c.JSON(http.StatusOK, &EventsResponse{
		RunID:    run.ID,
		Events:   replay,
		Complete: run.Log.Closed(),
		Cursor:   next,
	})
}

// statusHandler handles GET /chat/status/:runId.
func (s *Server) statusHandler(c *echo.Context) error {
	run, err := s.registry.Get(c.Param("runId"))
	if err != nil {
		return mapServiceError(err)
	}
	info := run.Info()

	resp := &StatusResponse{
		ID:        info.ID,
		PersonA:   info.PersonA,
		PersonB:   info.PersonB,
		Status:    info.Status,
		Error:     info.Error,
		StartedAt: info.StartedAt.Format(time.RFC3339),
		Output:    info.Output,
	}
	if info.CompletedAt != nil {
		resp.CompletedAt = info.CompletedAt.Format(time.RFC3339)
	}
	return c.JSON(http.StatusOK, resp)
}

// cancelHandler handles POST /chat/cancel/:runId.
func (s *Server) cancelHandler(c *echo.Context) error {
	runID := c.Param("runId")
	if err := s.registry.Cancel(runID); err != nil {
		return mapServiceError(err)
	}
	slog.Info("Run cancelled", "run_id", runID)
	return c.JSON(http.StatusOK, &CancelResponse{RunID: runID, Status: "cancelling"})
}

// listRunsHandler handles GET /chat/runs.
func (s *Server) listRunsHandler(c *echo.Context) error {
	list := s.registry.List()
	return c.JSON(http.StatusOK, &RunListResponse{Runs: list, Count: len(list)})
}

// parseCursor reads a cursor query param; absent or malformed means 0.
func parseCursor(raw string) int {
	if raw == "" {
		return 0
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n < 0 {
		return 0
	}
	return n
}
