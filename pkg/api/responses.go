package api

import (
	"github.com/snapgraph/snapgraph/pkg/events"
	"github.com/snapgraph/snapgraph/pkg/models"
)

// QueryResponse acknowledges an accepted investigation.
type QueryResponse struct {
	RunID   string `json:"runId"`
	Status  string `json:"status"`
	PersonA string `json:"personA"`
	PersonB string `json:"personB"`
}

// EventsResponse is the long-poll reply of GET /chat/events/:runId. Cursor is
// the index to pass on the next poll.
type EventsResponse struct {
	RunID    string         `json:"runId"`
	Events   []events.Event `json:"events"`
	Complete bool           `json:"complete"`
	Cursor   int            `json:"cursor"`
}

// StatusResponse is the reply of GET /chat/status/:runId.
type StatusResponse struct {
	ID          string           `json:"id"`
	PersonA     string           `json:"personA"`
	PersonB     string           `json:"personB"`
	Status      models.RunStatus `json:"status"`
	Error       string           `json:"error,omitempty"`
	StartedAt   string           `json:"startedAt"`
	CompletedAt string           `json:"completedAt,omitempty"`
	Output      *models.Result   `json:"output,omitempty"`
}

// CancelResponse acknowledges a cancellation request.
type CancelResponse struct {
	RunID  string `json:"runId"`
	Status string `json:"status"`
}

// RunListResponse is the reply of GET /chat/runs.
type RunListResponse struct {
	Runs  []*models.RunInfo `json:"runs"`
	Count int               `json:"count"`
}

// RateLimitResponse is the 429 body when the investigation quota is exceeded.
type RateLimitResponse struct {
	Error     string `json:"error"`
	Remaining int    `json:"remaining"`
	ResetAt   string `json:"resetAt"`
}

// HealthCheck is one dependency's health in the health response.
type HealthCheck struct {
	Status string `json:"status"`
	Error  string `json:"error,omitempty"`
}

// HealthResponse is the reply of GET /health.
type HealthResponse struct {
	Status  string                 `json:"status"`
	Version string                 `json:"version,omitempty"`
	Checks  map[string]HealthCheck `json:"checks"`
}
