// Package planner decides what an investigation should do next. Every entry
// point has the same shape: attempt a schema-bound LLM call, and on any
// failure fall back to a deterministic heuristic, so a dead or misbehaving
// model can never stall a run.
package planner

import (
	"context"

	"github.com/snapgraph/snapgraph/pkg/models"
)

// Quota gates LLM usage for one run. Heuristic fallbacks never consume it.
// Implemented by models.Budgets.
type Quota interface {
	TryLLM() bool
}

// Planner is the baseline planning contract every implementation provides.
// Methods never fail: an implementation that cannot produce an intelligent
// answer returns its deterministic fallback.
type Planner interface {
	// ParseQuery extracts the two people from free text.
	ParseQuery(ctx context.Context, text string) *ParsedQuery

	// FrontierQueries proposes image-search queries for expanding from the
	// frontier toward the target.
	FrontierQueries(ctx context.Context, frontier, target string) []string

	// SelectNextExpansion picks which discovered candidates to verify next.
	SelectNextExpansion(ctx context.Context, in *SelectionInput) *Selection

	// VerifyCelebritiesInImage is the secondary check used when face
	// recognition identified only one of the two targets.
	VerifyCelebritiesInImage(ctx context.Context, imageURL, personA, personB string) *ImageVerification
}

// ResearchPlanner is the optional capability layer. The orchestrator probes
// for it with a type assertion and degrades gracefully when absent.
type ResearchPlanner interface {
	Planner

	// ResearchConnection summarizes how the two people might plausibly be
	// linked. Returns nil when no research is available.
	ResearchConnection(ctx context.Context, personA, personB string) *Research

	// SuggestBridgeCandidates proposes likely intermediaries, excluding the
	// given names. Capped at ten suggestions.
	SuggestBridgeCandidates(ctx context.Context, personA, personB string, exclude []string) []BridgeSuggestion

	// RankCandidates orders discovered candidates strategically. Returns nil
	// when ranking is unavailable; callers keep the aggregator's order.
	RankCandidates(ctx context.Context, frontier, target string, cands []*models.Candidate, research *Research) *Ranking

	// SmartQueries proposes research-informed search queries for the frontier.
	SmartQueries(ctx context.Context, frontier, target string, research *Research) []string
}

// ParsedQuery is the outcome of extracting two people from free text.
type ParsedQuery struct {
	PersonA    string  `json:"personA"`
	PersonB    string  `json:"personB"`
	IsValid    bool    `json:"isValid"`
	Confidence float64 `json:"confidence"`
	Reason     string  `json:"reason,omitempty"`
}

// Research summarizes background knowledge about a pair of people.
type Research struct {
	Summary          string   `json:"summary"`
	Industries       []string `json:"industries,omitempty"`
	EventTypes       []string `json:"eventTypes,omitempty"`
	BridgeTypes      []string `json:"bridgeTypes,omitempty"`
	SuggestedQueries []string `json:"suggestedQueries,omitempty"`
	Confidence       float64  `json:"confidence"`
	Reasoning        string   `json:"reasoning,omitempty"`
}

// BridgeSuggestion is one proposed intermediary person.
type BridgeSuggestion struct {
	Name          string  `json:"name"`
	Reasoning     string  `json:"reasoning,omitempty"`
	ConnectionToA string  `json:"connectionToA,omitempty"`
	ConnectionToB string  `json:"connectionToB,omitempty"`
	Confidence    float64 `json:"confidence"`
}

// Ranking is a strategic ordering of discovered candidates.
type Ranking struct {
	RankedCandidates []string `json:"rankedCandidates"`
	Strategy         string   `json:"strategy,omitempty"`
	Hypothesis       string   `json:"hypothesis,omitempty"`
}

// SelectionInput is everything the planner sees when choosing the next
// expansion.
type SelectionInput struct {
	Frontier         string                `json:"frontier"`
	Target           string                `json:"target"`
	HopDepth         int                   `json:"hopDepth"`
	Candidates       []*models.Candidate   `json:"candidates"`
	FailedCandidates []string              `json:"failedCandidates,omitempty"`
	Budget           models.BudgetSnapshot `json:"budget"`
}

// Selection is the planner's next-step decision.
type Selection struct {
	NextCandidates []string `json:"nextCandidates"`
	SearchQueries  []string `json:"searchQueries,omitempty"`
	Narration      string   `json:"narration,omitempty"`
	Stop           bool     `json:"stop"`
	Reason         string   `json:"reason,omitempty"`
}

// ImageVerification is the planner's secondary judgment about one image.
type ImageVerification struct {
	PersonAFound      bool    `json:"personAFound"`
	PersonAConfidence float64 `json:"personAConfidence"`
	PersonBFound      bool    `json:"personBFound"`
	PersonBConfidence float64 `json:"personBConfidence"`
	TogetherInScene   bool    `json:"togetherInScene"`
	OverallConfidence float64 `json:"overallConfidence"`
	Notes             string  `json:"notes,omitempty"`
}

// maxSuggestions caps SuggestBridgeCandidates output.
const maxSuggestions = 10

// Selection output limits.
const (
	maxNextCandidates = 2
	maxSearchQueries  = 4
)
