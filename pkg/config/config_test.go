package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, 8080, cfg.Port)
	assert.Equal(t, 6, cfg.HopLimit)
	assert.Equal(t, 80.0, cfg.ConfidenceThreshold)
	assert.Equal(t, 5, cfg.ImagesPerQuery)
	assert.Equal(t, 20, cfg.SearchBudget)
	assert.Equal(t, 100, cfg.RecognitionBudget)
	assert.Equal(t, time.Hour, cfg.RunTTL)
	assert.Equal(t, 10*time.Minute, cfg.StreamTimeout)
	assert.Equal(t, "https://www.googleapis.com/customsearch/v1", cfg.Search.APIURL)
}

func TestLoadFromEnvironment(t *testing.T) {
	t.Setenv("PORT", "9090")
	t.Setenv("HOP_LIMIT", "3")
	t.Setenv("CONFIDENCE_THRESHOLD", "72.5")
	t.Setenv("ALLOWED_ORIGINS", "http://a.example, http://b.example ,")
	t.Setenv("SEARCH_BUDGET", "not-a-number")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, 9090, cfg.Port)
	assert.Equal(t, 3, cfg.HopLimit)
	assert.Equal(t, 72.5, cfg.ConfidenceThreshold)
	assert.Equal(t, []string{"http://a.example", "http://b.example"}, cfg.AllowedOrigins)
	// A malformed number falls back to the default rather than failing.
	assert.Equal(t, 20, cfg.SearchBudget)
}

func TestLoadRejectsInvalidValues(t *testing.T) {
	tests := []struct {
		name  string
		key   string
		value string
	}{
		{name: "port out of range", key: "PORT", value: "70000"},
		{name: "threshold above 100", key: "CONFIDENCE_THRESHOLD", value: "150"},
		{name: "hop limit below one", key: "HOP_LIMIT", value: "0"},
		{name: "images per query below one", key: "IMAGES_PER_QUERY", value: "0"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Setenv(tt.key, tt.value)
			_, err := Load()
			assert.Error(t, err)
		})
	}
}
