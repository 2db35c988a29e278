package api

import (
	"net/http"

	echo "github.com/labstack/echo/v5"
)

// graphHandler handles GET /graph: the full node/edge snapshot.
func (s *Server) graphHandler(c *echo.Context) error {
	g, err := s.store.GetFullGraph(c.Request().Context())
	if err != nil {
		return mapServiceError(err)
	}
	return c.JSON(http.StatusOK, g)
}

// graphStatsHandler handles GET /graph/stats.
func (s *Server) graphStatsHandler(c *echo.Context) error {
	stats, err := s.store.Stats(c.Request().Context())
	if err != nil {
		return mapServiceError(err)
	}
	return c.JSON(http.StatusOK, stats)
}

// graphPathHandler handles GET /graph/path?from=X&to=Y: a shortest-path
// lookup over already-verified edges, no new investigation.
func (s *Server) graphPathHandler(c *echo.Context) error {
	from := c.QueryParam("from")
	to := c.QueryParam("to")
	if from == "" || to == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "from and to are required")
	}

	path, err := s.store.FindPath(c.Request().Context(), from, to)
	if err != nil {
		return mapServiceError(err)
	}
	return c.JSON(http.StatusOK, path)
}
