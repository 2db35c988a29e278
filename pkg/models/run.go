package models

import (
	"sync/atomic"
	"time"
)

// RunStatus is the lifecycle state of an investigation run.
type RunStatus string

const (
	RunStatusRunning RunStatus = "running"
	RunStatusSuccess RunStatus = "success"
	RunStatusFailed  RunStatus = "failed"
)

// ResultStatus discriminates the two terminal result shapes.
type ResultStatus string

const (
	ResultSuccess ResultStatus = "success"
	ResultNoPath  ResultStatus = "no_path"
)

// Disclaimer accompanies every successful result. A verified path only proves
// visual co-presence in public images, never a personal relationship.
const Disclaimer = "shows visual co-presence, not necessarily a personal relationship"

// RunInfo is the externally visible state of a run.
type RunInfo struct {
	ID          string     `json:"id"`
	PersonA     string     `json:"personA"`
	PersonB     string     `json:"personB"`
	Status      RunStatus  `json:"status"`
	Error       string     `json:"error,omitempty"`
	StartedAt   time.Time  `json:"startedAt"`
	CompletedAt *time.Time `json:"completedAt,omitempty"`
	Output      *Result    `json:"output,omitempty"`
}

// Result is the terminal outcome of an investigation.
type Result struct {
	Status ResultStatus `json:"status"`
	// Path holds display names endpoint-to-endpoint, including A and B.
	Path  []string   `json:"path,omitempty"`
	Edges []*Edge    `json:"edges,omitempty"`
	Steps []PathStep `json:"steps,omitempty"`
	// Confidence is the bottleneck (minimum) edge confidence on the path.
	Confidence float64 `json:"confidence,omitempty"`
	// CumulativeConfidence is the product of edge confidences scaled to [0,100].
	CumulativeConfidence float64 `json:"cumulativeConfidence,omitempty"`
	Hops                 int     `json:"hops,omitempty"`
	Reason               string  `json:"reason,omitempty"`
	Disclaimer           string  `json:"disclaimer,omitempty"`
}

// Budgets tracks oracle-call quotas for one run. Consumption is atomic so a
// parallel image fan-out can never overshoot a declared maximum.
type Budgets struct {
	search      budgetCounter
	recognition budgetCounter
	llm         budgetCounter
}

// NewBudgets creates quota counters with the given maxima. A maximum of zero
// disallows every call of that tier.
func NewBudgets(search, recognition, llm int) *Budgets {
	return &Budgets{
		search:      budgetCounter{max: int64(search)},
		recognition: budgetCounter{max: int64(recognition)},
		llm:         budgetCounter{max: int64(llm)},
	}
}

// TrySearch reserves one image-search call. False means the tier is spent.
func (b *Budgets) TrySearch() bool { return b.search.tryConsume() }

// TryRecognition reserves one recognition or scene-filter call.
func (b *Budgets) TryRecognition() bool { return b.recognition.tryConsume() }

// TryLLM reserves one planner LLM call. Fallbacks never consume this tier.
func (b *Budgets) TryLLM() bool { return b.llm.tryConsume() }

// SearchExhausted reports whether the search tier is spent.
func (b *Budgets) SearchExhausted() bool { return b.search.exhausted() }

// RecognitionExhausted reports whether the recognition tier is spent.
func (b *Budgets) RecognitionExhausted() bool { return b.recognition.exhausted() }

// LLMExhausted reports whether the planner tier is spent.
func (b *Budgets) LLMExhausted() bool { return b.llm.exhausted() }

// Snapshot returns a point-in-time copy for event payloads.
func (b *Budgets) Snapshot() BudgetSnapshot {
	return BudgetSnapshot{
		SearchUsed:      int(b.search.used.Load()),
		SearchMax:       int(b.search.max),
		RecognitionUsed: int(b.recognition.used.Load()),
		RecognitionMax:  int(b.recognition.max),
		LLMUsed:         int(b.llm.used.Load()),
		LLMMax:          int(b.llm.max),
	}
}

// BudgetSnapshot is the JSON face of Budgets.
type BudgetSnapshot struct {
	SearchUsed      int `json:"searchUsed"`
	SearchMax       int `json:"searchMax"`
	RecognitionUsed int `json:"recognitionUsed"`
	RecognitionMax  int `json:"recognitionMax"`
	LLMUsed         int `json:"llmUsed"`
	LLMMax          int `json:"llmMax"`
}

type budgetCounter struct {
	used atomic.Int64
	max  int64
}

func (c *budgetCounter) tryConsume() bool {
	for {
		cur := c.used.Load()
		if cur >= c.max {
			return false
		}
		if c.used.CompareAndSwap(cur, cur+1) {
			return true
		}
	}
}

func (c *budgetCounter) exhausted() bool {
	return c.used.Load() >= c.max
}
