// Package orchestrator drives one investigation: direct attempt, bridge
// discovery, planner-guided selection, and pairwise verification, all under
// strict oracle budgets, streaming every observable transition to the run's
// event log.
package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/snapgraph/snapgraph/pkg/candidates"
	"github.com/snapgraph/snapgraph/pkg/events"
	"github.com/snapgraph/snapgraph/pkg/graph"
	"github.com/snapgraph/snapgraph/pkg/metrics"
	"github.com/snapgraph/snapgraph/pkg/models"
	"github.com/snapgraph/snapgraph/pkg/oracles"
	"github.com/snapgraph/snapgraph/pkg/planner"
	"github.com/snapgraph/snapgraph/pkg/verify"
)

// PlannerFactory builds a per-run planner bound to the run's LLM quota.
type PlannerFactory func(quota planner.Quota) planner.Planner

// Config carries the investigation tuning knobs.
type Config struct {
	HopLimit            int
	ConfidenceThreshold float64
	ImagesPerQuery      int
	SearchBudget        int
	RecognitionBudget   int
	LLMBudget           int

	// EarlyStopCandidates strong candidates (at or above
	// EarlyStopConfidence) end the discovery phase early.
	EarlyStopCandidates int
	EarlyStopConfidence float64
}

// Orchestrator owns the process-wide collaborators. Runs share no mutable
// state beyond the graph store and the broadcaster, so one Orchestrator
// serves any number of concurrent investigations.
type Orchestrator struct {
	search         oracles.ImageSearch
	fetcher        *oracles.Fetcher
	vision         oracles.VisionFilter
	faces          oracles.FaceRecognizer
	plannerFactory PlannerFactory
	matcher        *candidates.Matcher
	store          graph.Store
	broadcaster    *events.GraphBroadcaster
	cfg            Config
}

// New creates an Orchestrator.
func New(
	search oracles.ImageSearch,
	fetcher *oracles.Fetcher,
	vision oracles.VisionFilter,
	faces oracles.FaceRecognizer,
	plannerFactory PlannerFactory,
	matcher *candidates.Matcher,
	store graph.Store,
	broadcaster *events.GraphBroadcaster,
	cfg Config,
) *Orchestrator {
	return &Orchestrator{
		search:         search,
		fetcher:        fetcher,
		vision:         vision,
		faces:          faces,
		plannerFactory: plannerFactory,
		matcher:        matcher,
		store:          store,
		broadcaster:    broadcaster,
		cfg:            cfg,
	}
}

// run is the per-investigation state.
type run struct {
	o        *Orchestrator
	log      *events.RunLog
	pipe     *verify.Pipeline
	planner  planner.Planner
	budgets  *models.Budgets
	agg      *candidates.Aggregator

	personA string
	personB string

	frontier         string
	path             []string
	verified         []*models.VerifiedEdge
	persisted        []*models.Edge
	failedCandidates []string
	hopDepth         int

	suggestions []planner.BridgeSuggestion
	research    *planner.Research
}

// Investigate executes the full state machine for one run. It emits every
// event, including the terminal one, to log, and returns the terminal result.
func (o *Orchestrator) Investigate(ctx context.Context, personA, personB string, log *events.RunLog) *models.Result {
	budgets := models.NewBudgets(o.cfg.SearchBudget, o.cfg.RecognitionBudget, o.cfg.LLMBudget)
	pl := o.plannerFactory(budgets)

	r := &run{
		o:        o,
		log:      log,
		planner:  pl,
		budgets:  budgets,
		agg:      candidates.NewAggregator(o.matcher, o.cfg.ConfidenceThreshold),
		personA:  personA,
		personB:  personB,
		frontier: personA,
		path:     []string{personA},
	}
	r.pipe = verify.NewPipeline(o.search, o.fetcher, o.vision, o.faces, pl, o.matcher, budgets, log, verify.Config{
		Threshold:      o.cfg.ConfidenceThreshold,
		ImagesPerQuery: o.cfg.ImagesPerQuery,
	})

	result := r.execute(ctx)
	log.Close()
	return result
}

func (r *run) execute(ctx context.Context) *models.Result {
	r.log.Append(events.TypeStatus,
		fmt.Sprintf("Investigating whether %s and %s appear together", r.personA, r.personB),
		&events.EventData{FromPerson: r.personA, ToPerson: r.personB, Budget: snapshot(r.budgets)})

	// Direct attempt first: the pair may already appear together.
	r.log.Append(events.TypeStepStart, "Checking for a direct co-appearance", &events.EventData{
		StepID: events.StepDirectCheck, StepStatus: events.StepStatusRunning,
		FromPerson: r.personA, ToPerson: r.personB,
	})
	if edge := r.pipe.VerifyEdge(ctx, r.personA, r.personB); edge != nil {
		r.acceptEdge(ctx, edge)
		r.path = append(r.path, r.personB)
		r.log.Append(events.TypeStepComplete, "Direct co-appearance verified", &events.EventData{
			StepID: events.StepDirectCheck, StepStatus: events.StepStatusDone,
		})
		return r.success(ctx)
	}
	if cat := cancelCategory(ctx); cat != "" {
		return r.cancelled(cat)
	}
	r.log.Append(events.TypeStepComplete, "No direct co-appearance found", &events.EventData{
		StepID: events.StepDirectCheck, StepStatus: events.StepStatusFailed,
	})

	// Optional research phase, capability-probed.
	if rp, ok := r.planner.(planner.ResearchPlanner); ok {
		r.doResearch(ctx, rp)
	}

	// Main loop: discover, select, verify, hop.
	for r.hopDepth < r.o.cfg.HopLimit {
		if cat := cancelCategory(ctx); cat != "" {
			return r.cancelled(cat)
		}
		if r.budgets.SearchExhausted() || r.budgets.RecognitionExhausted() {
			return r.noPath("the search and recognition budgets were exhausted before a full path was verified")
		}

		cands := r.discover(ctx)
		if len(cands) == 0 {
			return r.noPath(fmt.Sprintf("no co-appearance candidates were found around %s", r.frontier))
		}

		advanced, terminal := r.expand(ctx, cands)
		if terminal != nil {
			return terminal
		}
		if !advanced {
			return r.noPath(fmt.Sprintf("every candidate around %s failed verification", r.frontier))
		}

		// The last verified bridge may already close the path.
		if len(r.path) > 0 && r.path[len(r.path)-1] == r.personB {
			return r.success(ctx)
		}
	}

	return r.noPath(fmt.Sprintf("reached the %d-hop limit without connecting to %s", r.o.cfg.HopLimit, r.personB))
}

// doResearch runs the optional research phase.
func (r *run) doResearch(ctx context.Context, rp planner.ResearchPlanner) {
	if res := rp.ResearchConnection(ctx, r.personA, r.personB); res != nil {
		r.research = res
		r.log.Append(events.TypeResearch, res.Summary, &events.EventData{
			Reasoning: res.Reasoning,
			Queries:   res.SuggestedQueries,
		})
	}
	exclude := append([]string{r.personA, r.personB}, r.path...)
	if suggestions := rp.SuggestBridgeCandidates(ctx, r.personA, r.personB, exclude); len(suggestions) > 0 {
		r.suggestions = suggestions
		names := make([]string, len(suggestions))
		for i, s := range suggestions {
			names[i] = s.Name
		}
		r.log.Append(events.TypeThinking,
			fmt.Sprintf("Considering %d possible bridges: %s", len(names), strings.Join(names, ", ")),
			nil)
	}
}

// discover builds the query plan, searches, analyzes, and aggregates
// candidates around the frontier.
func (r *run) discover(ctx context.Context) []*models.Candidate {
	r.log.Append(events.TypeStepStart,
		fmt.Sprintf("Searching for people photographed with %s", r.frontier),
		&events.EventData{
			StepID: events.StepFindBridges, StepStatus: events.StepStatusRunning,
			Frontier: r.frontier, Hop: r.hopDepth, Budget: snapshot(r.budgets),
		})

	var analyses []*models.ImageAnalysis
	for _, query := range r.queryPlan(ctx) {
		if cancelCategory(ctx) != "" {
			break
		}
		r.log.Append(events.TypeStepUpdate, fmt.Sprintf("Searching: %q", query), &events.EventData{
			StepID: events.StepFindBridges, StepStatus: events.StepStatusRunning, Query: query,
		})
		batch, ok := r.pipe.Discover(ctx, query, r.frontier)
		if !ok {
			break
		}
		analyses = append(analyses, batch...)

		if r.earlyStopReached(analyses) {
			break
		}
	}

	cands := r.agg.Collect(r.frontier, r.path, analyses)
	r.log.Append(events.TypeCandidateDiscovery,
		fmt.Sprintf("Found %d candidates around %s", len(cands), r.frontier),
		&events.EventData{Candidates: cands, Frontier: r.frontier})

	if rp, ok := r.planner.(planner.ResearchPlanner); ok && len(cands) > 1 {
		if ranking := rp.RankCandidates(ctx, r.frontier, r.personB, cands, r.research); ranking != nil {
			cands = reorderByRanking(r.o.matcher, cands, ranking.RankedCandidates)
			r.log.Append(events.TypeStrategy, ranking.Strategy, &events.EventData{
				Reasoning: ranking.Hypothesis,
			})
		}
	}
	return cands
}

// queryPlan orders discovery queries: suggested-bridge pairings first, then
// planner queries, then the fixed fallbacks.
func (r *run) queryPlan(ctx context.Context) []string {
	var queries []string
	for _, s := range r.suggestions {
		if r.o.matcher.SamePerson(s.Name, r.frontier) || r.o.matcher.MatchesAny(s.Name, r.path) {
			continue
		}
		if r.o.matcher.MatchesAny(s.Name, r.failedCandidates) {
			continue
		}
		queries = append(queries, fmt.Sprintf("%s %s", r.frontier, s.Name))
	}

	queries = append(queries, r.planner.FrontierQueries(ctx, r.frontier, r.personB)...)
	queries = append(queries,
		fmt.Sprintf("%s photo", r.frontier),
		fmt.Sprintf("%s with", r.frontier),
	)
	return dedupe(queries)
}

func (r *run) earlyStopReached(analyses []*models.ImageAnalysis) bool {
	if r.o.cfg.EarlyStopCandidates <= 0 {
		return false
	}
	strong := 0
	for _, c := range r.agg.Collect(r.frontier, r.path, analyses) {
		if c.BestConfidence >= r.o.cfg.EarlyStopConfidence {
			strong++
		}
	}
	return strong >= r.o.cfg.EarlyStopCandidates
}

// expand selects and verifies until a bridge verifies, the planner stops, or all
// candidates fail. advanced reports whether the frontier moved; terminal is
// non-nil when the run finished inside the expansion.
func (r *run) expand(ctx context.Context, cands []*models.Candidate) (advanced bool, terminal *models.Result) {
	remaining := cands
	for len(remaining) > 0 {
		if cat := cancelCategory(ctx); cat != "" {
			return false, r.cancelled(cat)
		}
		if r.budgets.SearchExhausted() || r.budgets.RecognitionExhausted() {
			return false, r.noPath("the search and recognition budgets were exhausted before a full path was verified")
		}

		sel := r.planner.SelectNextExpansion(ctx, &planner.SelectionInput{
			Frontier:         r.frontier,
			Target:           r.personB,
			HopDepth:         r.hopDepth,
			Candidates:       remaining,
			FailedCandidates: r.failedCandidates,
			Budget:           r.budgets.Snapshot(),
		})
		if sel == nil || sel.Stop || len(sel.NextCandidates) == 0 {
			reason := "the planner found no candidate worth verifying"
			if sel != nil && sel.Reason != "" {
				reason = sel.Reason
			}
			return false, r.noPath(reason)
		}
		r.log.Append(events.TypeLLMSelection, sel.Narration, &events.EventData{
			Queries:  sel.SearchQueries,
			Frontier: r.frontier,
			Reason:   sel.Reason,
		})

		for _, name := range sel.NextCandidates {
			if r.verifyBridge(ctx, name) {
				// The frontier advanced (and possibly reached the target);
				// the outer loop decides what happens next.
				return true, nil
			}
			if cat := cancelCategory(ctx); cat != "" {
				return false, r.cancelled(cat)
			}
		}

		remaining = filterCandidates(r.o.matcher, remaining, r.failedCandidates)
	}
	return false, nil
}

// verifyBridge runs pairwise verification for one candidate. It reports whether the bridge
// verified and the frontier advanced; when the closing edge to the target
// also verifies, the target lands on the path and the caller finishes.
func (r *run) verifyBridge(ctx context.Context, name string) bool {
	r.log.Append(events.TypeStepStart,
		fmt.Sprintf("Verifying %s together with %s", r.frontier, name),
		&events.EventData{
			StepID: events.StepVerifyBridge, StepStatus: events.StepStatusRunning,
			FromPerson: r.frontier, ToPerson: name, Hop: r.hopDepth,
		})

	edge := r.pipe.VerifyEdge(ctx, r.frontier, name)
	if edge == nil {
		r.failedCandidates = append(r.failedCandidates, name)
		r.log.Append(events.TypeStepComplete,
			fmt.Sprintf("Could not verify %s with %s", name, r.frontier),
			&events.EventData{
				StepID: events.StepVerifyBridge, StepStatus: events.StepStatusFailed,
				FromPerson: r.frontier, ToPerson: name,
			})
		return false
	}

	r.acceptEdge(ctx, edge)
	r.path = append(r.path, name)
	r.hopDepth++
	r.log.Append(events.TypeStepComplete,
		fmt.Sprintf("Verified %s with %s at %.0f%% confidence", name, r.frontier, edge.Confidence),
		&events.EventData{
			StepID: events.StepVerifyBridge, StepStatus: events.StepStatusDone,
			FromPerson: r.frontier, ToPerson: name, HopDepth: r.hopDepth,
		})
	r.log.Append(events.TypePathUpdate, strings.Join(r.path, " → "), &events.EventData{
		Path: append([]string(nil), r.path...), HopDepth: r.hopDepth,
	})

	// Try to close the path from the new bridge to the target.
	r.log.Append(events.TypeStepStart,
		fmt.Sprintf("Checking whether %s connects to %s", name, r.personB),
		&events.EventData{
			StepID: events.StepConnectTarget, StepStatus: events.StepStatusRunning,
			FromPerson: name, ToPerson: r.personB,
		})
	if closing := r.pipe.VerifyEdge(ctx, name, r.personB); closing != nil {
		r.acceptEdge(ctx, closing)
		r.path = append(r.path, r.personB)
		r.log.Append(events.TypeStepComplete,
			fmt.Sprintf("%s connects to %s", name, r.personB),
			&events.EventData{
				StepID: events.StepConnectTarget, StepStatus: events.StepStatusDone,
			})
		return true
	}
	r.log.Append(events.TypeStepComplete,
		fmt.Sprintf("%s does not directly connect to %s yet", name, r.personB),
		&events.EventData{
			StepID: events.StepConnectTarget, StepStatus: events.StepStatusFailed,
		})

	r.frontier = name
	r.failedCandidates = nil
	return true
}

// acceptEdge persists a verified edge, records it, and broadcasts the delta
// to graph viewers.
func (r *run) acceptEdge(ctx context.Context, ve *models.VerifiedEdge) {
	r.verified = append(r.verified, ve)

	stored, err := r.o.store.UpsertEdge(ctx, ve.PersonA, ve.PersonB, ve.Confidence,
		ve.Best.ImageURL, ve.Best.ThumbnailURL, ve.Best.ContextURL)
	if err != nil {
		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			return
		}
		slog.Error("Failed to persist verified edge",
			"person_a", ve.PersonA, "person_b", ve.PersonB, "error", err)
	} else {
		r.persisted = append(r.persisted, stored)
		metrics.EdgesUpserted.Inc()
		if r.o.broadcaster != nil {
			r.o.broadcaster.Publish(events.EdgeUpdate{
				Source:       stored.SourceID,
				Target:       stored.TargetID,
				Confidence:   stored.Confidence,
				ThumbnailURL: stored.BestThumbnailURL,
				ContextURL:   stored.ContextURL,
			})
		}
	}

	r.log.Append(events.TypeEvidence,
		fmt.Sprintf("Verified co-appearance of %s and %s (%.0f%%)", ve.PersonA, ve.PersonB, ve.Confidence),
		&events.EventData{
			FromPerson: ve.PersonA, ToPerson: ve.PersonB,
			ImageURL: ve.Best.ImageURL, Status: string(models.AnalysisEvidence),
		})
}

// success builds the terminal success result and emits final.
func (r *run) success(_ context.Context) *models.Result {
	steps := make([]models.PathStep, 0, len(r.verified))
	bottleneck := 100.0
	cumulative := 1.0
	for i, ve := range r.verified {
		steps = append(steps, models.PathStep{
			From:         r.path[i],
			To:           r.path[i+1],
			Confidence:   ve.Confidence,
			ThumbnailURL: ve.Best.ThumbnailURL,
			ContextURL:   ve.Best.ContextURL,
		})
		if ve.Confidence < bottleneck {
			bottleneck = ve.Confidence
		}
		cumulative *= ve.Confidence / 100
	}

	result := &models.Result{
		Status:               models.ResultSuccess,
		Path:                 append([]string(nil), r.path...),
		Edges:                r.persisted,
		Steps:                steps,
		Confidence:           bottleneck,
		CumulativeConfidence: cumulative * 100,
		Hops:                 len(steps),
		Disclaimer:           models.Disclaimer,
	}
	r.log.Append(events.TypeFinal,
		fmt.Sprintf("Connected %s to %s in %d hop(s)", r.personA, r.personB, result.Hops),
		&events.EventData{Path: result.Path, Steps: steps, Result: result, Budget: snapshot(r.budgets)})
	return result
}

// noPath builds the terminal failure result and emits no_path.
func (r *run) noPath(reason string) *models.Result {
	result := &models.Result{
		Status: models.ResultNoPath,
		Hops:   r.hopDepth,
		Reason: reason,
	}
	r.log.Append(events.TypeNoPath,
		fmt.Sprintf("No verified path between %s and %s: %s", r.personA, r.personB, reason),
		&events.EventData{HopDepth: r.hopDepth, Reason: reason, Budget: snapshot(r.budgets)})
	return result
}

// cancelled emits the terminal error event for a cancelled or timed-out run.
func (r *run) cancelled(category string) *models.Result {
	result := &models.Result{
		Status: models.ResultNoPath,
		Hops:   r.hopDepth,
		Reason: "the investigation was interrupted",
	}
	r.log.Append(events.TypeError, "Investigation interrupted", &events.EventData{
		Category: category, HopDepth: r.hopDepth,
	})
	return result
}

func cancelCategory(ctx context.Context) string {
	switch {
	case errors.Is(ctx.Err(), context.DeadlineExceeded):
		return events.CategoryTimeout
	case ctx.Err() != nil:
		return events.CategoryCancelled
	}
	return ""
}

func snapshot(b *models.Budgets) *models.BudgetSnapshot {
	s := b.Snapshot()
	return &s
}

func dedupe(in []string) []string {
	seen := make(map[string]struct{}, len(in))
	out := in[:0]
	for _, s := range in {
		if _, ok := seen[s]; ok {
			continue
		}
		seen[s] = struct{}{}
		out = append(out, s)
	}
	return out
}

func filterCandidates(m *candidates.Matcher, cands []*models.Candidate, failed []string) []*models.Candidate {
	out := make([]*models.Candidate, 0, len(cands))
	for _, c := range cands {
		if m.MatchesAny(c.Name, failed) {
			continue
		}
		out = append(out, c)
	}
	return out
}

func reorderByRanking(m *candidates.Matcher, cands []*models.Candidate, ranked []string) []*models.Candidate {
	out := make([]*models.Candidate, 0, len(cands))
	used := make(map[*models.Candidate]bool, len(cands))
	for _, name := range ranked {
		for _, c := range cands {
			if !used[c] && m.SamePerson(name, c.Name) {
				out = append(out, c)
				used[c] = true
				break
			}
		}
	}
	for _, c := range cands {
		if !used[c] {
			out = append(out, c)
		}
	}
	return out
}
