// Snapgraph server — investigates visual connections between public figures
// and serves the resulting co-appearance graph over HTTP.
package main

import (
	"context"
	"flag"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/snapgraph/snapgraph/pkg/api"
	"github.com/snapgraph/snapgraph/pkg/candidates"
	"github.com/snapgraph/snapgraph/pkg/cleanup"
	"github.com/snapgraph/snapgraph/pkg/config"
	"github.com/snapgraph/snapgraph/pkg/database"
	"github.com/snapgraph/snapgraph/pkg/events"
	"github.com/snapgraph/snapgraph/pkg/graph"
	"github.com/snapgraph/snapgraph/pkg/llm"
	"github.com/snapgraph/snapgraph/pkg/oracles"
	"github.com/snapgraph/snapgraph/pkg/orchestrator"
	"github.com/snapgraph/snapgraph/pkg/planner"
	"github.com/snapgraph/snapgraph/pkg/ratelimit"
	"github.com/snapgraph/snapgraph/pkg/runs"
	"github.com/snapgraph/snapgraph/pkg/version"
)

// cleanupInterval is how often terminal runs past their TTL are collected.
const cleanupInterval = 5 * time.Minute

func main() {
	envPath := flag.String("env-file", ".env", "Path to the .env file")
	flag.Parse()

	if err := godotenv.Load(*envPath); err != nil {
		slog.Warn("Could not load .env file, continuing with existing environment",
			"path", *envPath, "error", err)
	}

	slog.Info("Starting snapgraph", "version", version.Full())

	cfg, err := config.Load()
	if err != nil {
		slog.Error("Failed to load configuration", "error", err)
		os.Exit(1)
	}

	ctx := context.Background()

	// Graph store: PostgreSQL when configured, in-memory otherwise.
	var store graph.Store
	if os.Getenv("DB_HOST") != "" {
		dbConfig, err := database.LoadConfigFromEnv()
		if err != nil {
			slog.Error("Failed to load database config", "error", err)
			os.Exit(1)
		}
		dbClient, err := database.NewClient(ctx, dbConfig)
		if err != nil {
			slog.Error("Failed to connect to database", "error", err)
			os.Exit(1)
		}
		defer func() {
			if err := dbClient.Close(); err != nil {
				slog.Error("Error closing database client", "error", err)
			}
		}()
		store = graph.NewPostgresStore(dbClient.DB())
		slog.Info("Connected to PostgreSQL graph store")
	} else {
		store = graph.NewMemoryStore()
		slog.Warn("DB_HOST not set, using in-memory graph store; the graph will not survive restarts")
	}

	// Name matcher: built-in alias table plus optional YAML overlay.
	matcherCfg, err := config.LoadMatcherConfig(cfg.MatcherConfigPath)
	if err != nil {
		slog.Error("Failed to load matcher config", "error", err)
		os.Exit(1)
	}
	matcher := candidates.NewMatcher(matcherCfg.Aliases)

	// Oracles.
	search := oracles.NewGoogleImageSearch(cfg.Search.APIURL, cfg.Search.APIKey, cfg.Search.EngineID, cfg.ImagesPerQuery)
	fetcher := oracles.NewFetcher()
	faces := oracles.NewHTTPFaceRecognizer(cfg.Face.APIURL, cfg.Face.APIKey)

	// Planner: LLM-backed when a key is configured, deterministic otherwise.
	// The vision scene filter needs the LLM too; without it collage detection
	// is skipped and face recognition alone decides.
	var (
		vision         oracles.VisionFilter
		plannerFactory orchestrator.PlannerFactory
		parser         planner.Planner
	)
	if cfg.LLM.APIKey != "" {
		llmClient := llm.NewClient(cfg.LLM.BaseURL, cfg.LLM.APIKey, cfg.LLM.Model, cfg.LLM.VisionModel)
		vision = oracles.NewLLMVisionFilter(llmClient)
		plannerFactory = func(quota planner.Quota) planner.Planner {
			return planner.NewLLMPlanner(llmClient, matcher, quota)
		}
		// The API-side parser charges no run budget, hence the nil quota.
		parser = planner.NewLLMPlanner(llmClient, matcher, nil)
		slog.Info("LLM planner enabled", "model", cfg.LLM.Model, "vision_model", cfg.LLM.VisionModel)
	} else {
		plannerFactory = func(planner.Quota) planner.Planner {
			return planner.NewFallbackPlanner(matcher)
		}
		parser = planner.NewFallbackPlanner(matcher)
		slog.Warn("LLM_API_KEY not set, using deterministic fallback planner")
	}

	broadcaster := events.NewGraphBroadcaster()

	investigator := orchestrator.New(search, fetcher, vision, faces, plannerFactory, matcher, store, broadcaster,
		orchestrator.Config{
			HopLimit:            cfg.HopLimit,
			ConfidenceThreshold: cfg.ConfidenceThreshold,
			ImagesPerQuery:      cfg.ImagesPerQuery,
			SearchBudget:        cfg.SearchBudget,
			RecognitionBudget:   cfg.RecognitionBudget,
			LLMBudget:           cfg.LLMBudget,
			EarlyStopCandidates: cfg.EarlyStopCandidates,
			EarlyStopConfidence: cfg.EarlyStopConfidence,
		})

	registry := runs.NewRegistry(investigator, cfg.StreamTimeout)

	janitor := cleanup.NewService(registry, cfg.RunTTL, cleanupInterval)
	janitor.Start(ctx)
	defer janitor.Stop()

	limiter := ratelimit.NewLimiter(cfg.RateLimitMax, cfg.RateLimitWindow, cfg.WhitelistedIPs)
	defer limiter.Stop()

	httpServer := api.NewServer(cfg, registry, store, broadcaster, parser, limiter)

	errCh := make(chan error, 1)
	go func() {
		addr := ":" + strconv.Itoa(cfg.Port)
		slog.Info("HTTP server listening", "addr", addr)
		if err := httpServer.Start(addr); err != nil && err != http.ErrServerClosed {
			slog.Error("HTTP server error", "error", err)
			errCh <- err
		}
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGTERM, syscall.SIGINT)

	select {
	case sig := <-sigCh:
		slog.Info("Shutdown signal received", "signal", sig)
	case err := <-errCh:
		slog.Error("Server error triggered shutdown", "error", err)
	}

	registry.CancelAll()

	shutdownCtx, cancel := context.WithTimeout(ctx, 15*time.Second)
	defer cancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		slog.Error("HTTP server shutdown error", "error", err)
	}

	slog.Info("Snapgraph stopped")
}
