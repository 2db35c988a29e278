// Package config loads service configuration from the environment plus an
// optional YAML overlay for the name-matcher alias table.
package config

import (
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"
)

// Config holds all runtime settings for the service.
type Config struct {
	// Port is the HTTP listen port.
	Port int

	// AllowedOrigins is the CORS allow-list. Empty means no cross-origin
	// access.
	AllowedOrigins []string

	// WhitelistedIPs bypass the investigation rate limit.
	WhitelistedIPs []string

	// RateLimitMax is the number of investigations allowed per client within
	// RateLimitWindow.
	RateLimitMax    int
	RateLimitWindow time.Duration

	// HopLimit bounds how many bridges an investigation may chain.
	HopLimit int

	// ConfidenceThreshold is the minimum recognition confidence for a
	// detection to count, in [0,100].
	ConfidenceThreshold float64

	// ImagesPerQuery is the number of image results requested per search and
	// the fan-out bound for per-image analysis.
	ImagesPerQuery int

	// Per-run oracle call budgets.
	SearchBudget      int
	RecognitionBudget int
	LLMBudget         int

	// EarlyStopCandidates/EarlyStopConfidence end the discovery phase early
	// once enough strong candidates exist.
	EarlyStopCandidates int
	EarlyStopConfidence float64

	// RunTTL is how long a finished run and its event log stay available.
	RunTTL time.Duration

	// StreamTimeout is the hard cap on a run's execution and on any single
	// event stream.
	StreamTimeout time.Duration

	Search SearchConfig
	Face   FaceConfig
	LLM    LLMConfig

	// MatcherConfigPath optionally points at a YAML alias-table overlay.
	MatcherConfigPath string
}

// SearchConfig configures the web image search oracle.
type SearchConfig struct {
	APIURL   string
	APIKey   string
	EngineID string
}

// FaceConfig configures the face recognition oracle.
type FaceConfig struct {
	APIURL string
	APIKey string
}

// LLMConfig configures the planner and vision models.
type LLMConfig struct {
	BaseURL     string
	APIKey      string
	Model       string
	VisionModel string
}

// Load reads configuration from environment variables, applying defaults for
// everything optional.
func Load() (*Config, error) {
	cfg := &Config{
		Port:                getEnvInt("PORT", 8080),
		AllowedOrigins:      getEnvList("ALLOWED_ORIGINS"),
		WhitelistedIPs:      getEnvList("WHITELISTED_IPS"),
		RateLimitMax:        getEnvInt("RATE_LIMIT_MAX", 50),
		RateLimitWindow:     time.Duration(getEnvInt("RATE_LIMIT_WINDOW_SEC", 86400)) * time.Second,
		HopLimit:            getEnvInt("HOP_LIMIT", 6),
		ConfidenceThreshold: getEnvFloat("CONFIDENCE_THRESHOLD", 80),
		ImagesPerQuery:      getEnvInt("IMAGES_PER_QUERY", 5),
		SearchBudget:        getEnvInt("SEARCH_BUDGET", 20),
		RecognitionBudget:   getEnvInt("RECOGNITION_BUDGET", 100),
		LLMBudget:           getEnvInt("LLM_BUDGET", 15),
		EarlyStopCandidates: getEnvInt("EARLY_STOP_CANDIDATES", 2),
		EarlyStopConfidence: getEnvFloat("EARLY_STOP_CONFIDENCE", 90),
		RunTTL:              time.Duration(getEnvInt("RUN_TTL_SEC", 3600)) * time.Second,
		StreamTimeout:       time.Duration(getEnvInt("STREAM_TIMEOUT_SEC", 600)) * time.Second,
		Search: SearchConfig{
			APIURL:   getEnv("SEARCH_API_URL", "https://www.googleapis.com/customsearch/v1"),
			APIKey:   os.Getenv("SEARCH_API_KEY"),
			EngineID: os.Getenv("SEARCH_ENGINE_ID"),
		},
		Face: FaceConfig{
			APIURL: os.Getenv("FACE_API_URL"),
			APIKey: os.Getenv("FACE_API_KEY"),
		},
		LLM: LLMConfig{
			BaseURL:     getEnv("LLM_BASE_URL", "https://api.openai.com/v1"),
			APIKey:      os.Getenv("LLM_API_KEY"),
			Model:       getEnv("LLM_MODEL", "gpt-4o-mini"),
			VisionModel: getEnv("LLM_VISION_MODEL", "gpt-4o-mini"),
		},
		MatcherConfigPath: os.Getenv("MATCHER_CONFIG_PATH"),
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}

	slog.Info("Configuration loaded",
		"port", cfg.Port,
		"hop_limit", cfg.HopLimit,
		"confidence_threshold", cfg.ConfidenceThreshold,
		"images_per_query", cfg.ImagesPerQuery,
		"rate_limit_max", cfg.RateLimitMax)
	return cfg, nil
}

func (c *Config) validate() error {
	if c.Port <= 0 || c.Port > 65535 {
		return fmt.Errorf("invalid PORT: %d", c.Port)
	}
	if c.ConfidenceThreshold < 0 || c.ConfidenceThreshold > 100 {
		return fmt.Errorf("CONFIDENCE_THRESHOLD must be in [0,100], got %v", c.ConfidenceThreshold)
	}
	if c.HopLimit < 1 {
		return fmt.Errorf("HOP_LIMIT must be at least 1, got %d", c.HopLimit)
	}
	if c.ImagesPerQuery < 1 {
		return fmt.Errorf("IMAGES_PER_QUERY must be at least 1, got %d", c.ImagesPerQuery)
	}
	return nil
}

func getEnv(key, defaultVal string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return defaultVal
}

func getEnvInt(key string, defaultVal int) int {
	val := os.Getenv(key)
	if val == "" {
		return defaultVal
	}
	n, err := strconv.Atoi(val)
	if err != nil {
		slog.Warn("Invalid integer in environment, using default",
			"key", key, "value", val, "default", defaultVal)
		return defaultVal
	}
	return n
}

func getEnvFloat(key string, defaultVal float64) float64 {
	val := os.Getenv(key)
	if val == "" {
		return defaultVal
	}
	f, err := strconv.ParseFloat(val, 64)
	if err != nil {
		slog.Warn("Invalid number in environment, using default",
			"key", key, "value", val, "default", defaultVal)
		return defaultVal
	}
	return f
}

func getEnvList(key string) []string {
	raw := os.Getenv(key)
	if raw == "" {
		return nil
	}
	parts := strings.Split(raw, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if trimmed := strings.TrimSpace(p); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}
