// Package events carries investigation progress to subscribers: an
// append-only, replayable per-run event log and a process-wide broadcaster
// for graph edge deltas.
package events

import (
	"github.com/snapgraph/snapgraph/pkg/models"
)

// EventType enumerates every event a run can emit.
type EventType string

const (
	TypeStepStart          EventType = "step_start"
	TypeStepUpdate         EventType = "step_update"
	TypeStepComplete       EventType = "step_complete"
	TypeResearch           EventType = "research"
	TypeThinking           EventType = "thinking"
	TypeStrategy           EventType = "strategy"
	TypeStrategyUpdate     EventType = "strategy_update"
	TypeCandidateDiscovery EventType = "candidate_discovery"
	TypeLLMSelection       EventType = "llm_selection"
	TypeImageResult        EventType = "image_result"
	TypeEvidence           EventType = "evidence"
	TypePathUpdate         EventType = "path_update"
	TypeBacktrack          EventType = "backtrack"
	TypeStatus             EventType = "status"
	TypeFinal              EventType = "final"
	TypeNoPath             EventType = "no_path"
	TypeError              EventType = "error"
)

// IsTerminal reports whether the event type ends a run.
func (t EventType) IsTerminal() bool {
	return t == TypeFinal || t == TypeNoPath || t == TypeError
}

// Investigation step identifiers.
const (
	StepDirectCheck   = "direct_check"
	StepFindBridges   = "find_bridges"
	StepVerifyBridge  = "verify_bridge"
	StepConnectTarget = "connect_target"
)

// Step status values.
const (
	StepStatusPending = "pending"
	StepStatusRunning = "running"
	StepStatusDone    = "done"
	StepStatusFailed  = "failed"
	StepStatusSkipped = "skipped"
)

// Error categories surfaced in terminal error events.
const (
	CategoryIntegration = "INTEGRATION_ERROR"
	CategoryTimeout     = "TIMEOUT"
	CategoryValidation  = "VALIDATION_ERROR"
	CategoryCancelled   = "CANCELLED"
	CategoryUnknown     = "UNKNOWN"
)

// Event is one record of a run's append-only log. Index is the only cursor:
// it starts at 0 and increases by one per event in causal emission order.
type Event struct {
	Index     int        `json:"index"`
	Type      EventType  `json:"type"`
	RunID     string     `json:"runId"`
	Timestamp string     `json:"timestamp"`
	Message   string     `json:"message,omitempty"`
	Data      *EventData `json:"data,omitempty"`
}

// EventData is the typed payload of an event. Every field is optional; which
// fields are set depends on the event type.
type EventData struct {
	// EventID deduplicates events across client reconnects.
	EventID string `json:"eventId,omitempty"`

	StepID     string `json:"stepId,omitempty"`
	StepNumber int    `json:"stepNumber,omitempty"`
	StepTitle  string `json:"stepTitle,omitempty"`
	StepStatus string `json:"stepStatus,omitempty"`

	FromPerson string `json:"fromPerson,omitempty"`
	ToPerson   string `json:"toPerson,omitempty"`
	Frontier   string `json:"frontier,omitempty"`

	Query     string   `json:"query,omitempty"`
	Queries   []string `json:"queries,omitempty"`
	Reasoning string   `json:"reasoning,omitempty"`
	Narration string   `json:"narration,omitempty"`

	Candidates []*models.Candidate `json:"candidates,omitempty"`

	ImageIndex  int                `json:"imageIndex,omitempty"`
	TotalImages int                `json:"totalImages,omitempty"`
	ImageURL    string             `json:"imageUrl,omitempty"`
	Status      string             `json:"status,omitempty"`
	Reason      string             `json:"reason,omitempty"`
	Celebrities []models.Detection `json:"celebrities,omitempty"`

	Edge *models.Edge `json:"edge,omitempty"`

	Path        []string          `json:"path,omitempty"`
	Steps       []models.PathStep `json:"steps,omitempty"`
	HopDepth    int               `json:"hopDepth,omitempty"`
	Hop         int               `json:"hop,omitempty"`
	ProgressPct int               `json:"progressPct,omitempty"`

	Budget *models.BudgetSnapshot `json:"budget,omitempty"`
	Result *models.Result         `json:"result,omitempty"`

	Category string `json:"category,omitempty"`
}

// EdgeUpdate is the payload broadcast to graph viewers when an edge is
// created or upgraded. Source and target are node ids, matching the edge
// records served by the graph snapshot.
type EdgeUpdate struct {
	Source       string  `json:"source"`
	Target       string  `json:"target"`
	Confidence   float64 `json:"confidence"`
	ThumbnailURL string  `json:"thumbnailUrl,omitempty"`
	ContextURL   string  `json:"contextUrl,omitempty"`
}
