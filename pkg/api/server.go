// Package api exposes the investigation service over HTTP: JSON endpoints,
// long-poll and SSE event streams, and WebSocket subscriptions.
package api

import (
	"context"
	"net/http"
	"time"

	echo "github.com/labstack/echo/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/snapgraph/snapgraph/pkg/config"
	"github.com/snapgraph/snapgraph/pkg/events"
	"github.com/snapgraph/snapgraph/pkg/graph"
	"github.com/snapgraph/snapgraph/pkg/planner"
	"github.com/snapgraph/snapgraph/pkg/ratelimit"
	"github.com/snapgraph/snapgraph/pkg/runs"
)

// Server is the HTTP surface of the service.
type Server struct {
	cfg         *config.Config
	registry    *runs.Registry
	store       graph.Store
	broadcaster *events.GraphBroadcaster
	parser      planner.Planner
	limiter     *ratelimit.Limiter

	echo *echo.Echo
	http *http.Server
}

// NewServer wires the HTTP server and its routes.
func NewServer(
	cfg *config.Config,
	registry *runs.Registry,
	store graph.Store,
	broadcaster *events.GraphBroadcaster,
	parser planner.Planner,
	limiter *ratelimit.Limiter,
) *Server {
	s := &Server{
		cfg:         cfg,
		registry:    registry,
		store:       store,
		broadcaster: broadcaster,
		parser:      parser,
		limiter:     limiter,
	}

	e := echo.New()
	e.Use(requestLogger())
	e.Use(securityHeaders())
	e.Use(corsMiddleware(cfg.AllowedOrigins))

	e.POST("/chat/parse", s.parseHandler)
	e.POST("/chat/query", s.queryHandler, s.rateLimitMiddleware())
	e.GET("/chat/events/:runId", s.eventsHandler)
	e.GET("/chat/stream/:runId", s.streamHandler)
	e.GET("/chat/ws/:runId", s.runWSHandler)
	e.GET("/chat/status/:runId", s.statusHandler)
	e.POST("/chat/cancel/:runId", s.cancelHandler)
	e.GET("/chat/runs", s.listRunsHandler)

	e.GET("/graph", s.graphHandler)
	e.GET("/graph/stats", s.graphStatsHandler)
	e.GET("/graph/path", s.graphPathHandler)
	e.GET("/graph/ws", s.graphWSHandler)

	e.GET("/health", s.healthHandler)
	e.GET("/metrics", echo.WrapHandler(promhttp.Handler()))

	s.echo = e
	return s
}

// Start listens on addr and blocks until the server closes.
func (s *Server) Start(addr string) error {
	s.http = &http.Server{
		Addr:              addr,
		Handler:           s.echo,
		ReadHeaderTimeout: 10 * time.Second,
	}
	return s.http.ListenAndServe()
}

// Shutdown drains in-flight requests.
func (s *Server) Shutdown(ctx context.Context) error {
	if s.http == nil {
		return nil
	}
	return s.http.Shutdown(ctx)
}
