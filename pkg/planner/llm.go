package planner

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/santhosh-tekuri/jsonschema/v5"

	"github.com/snapgraph/snapgraph/pkg/candidates"
	"github.com/snapgraph/snapgraph/pkg/llm"
	"github.com/snapgraph/snapgraph/pkg/models"
)

const systemPrompt = `You are the planning component of a system that verifies whether two public
figures appear together in public photographs. Answer ONLY with the requested
JSON object or array, no prose around it.`

// LLMPlanner implements ResearchPlanner on top of a chat model. Every method
// first tries a schema-validated model call gated by the run's LLM quota, and
// on any failure answers from the deterministic FallbackPlanner.
type LLMPlanner struct {
	client   *llm.Client
	matcher  *candidates.Matcher
	fallback *FallbackPlanner
	quota    Quota
}

var _ ResearchPlanner = (*LLMPlanner)(nil)

// NewLLMPlanner creates a per-run planner. The quota is the run's budget; a
// nil quota means unlimited (used by the query-parse endpoint, which charges
// no run).
func NewLLMPlanner(client *llm.Client, matcher *candidates.Matcher, quota Quota) *LLMPlanner {
	return &LLMPlanner{
		client:   client,
		matcher:  matcher,
		fallback: NewFallbackPlanner(matcher),
		quota:    quota,
	}
}

// tryComplete runs one quota-gated model call and decodes the reply against
// the schema. Any failure is reported; callers fall back.
func (p *LLMPlanner) tryComplete(ctx context.Context, prompt string, schema *jsonschema.Schema, out any) error {
	if p.quota != nil && !p.quota.TryLLM() {
		return fmt.Errorf("llm budget exhausted")
	}
	reply, err := p.client.Complete(ctx, []llm.Message{
		llm.TextMessage("system", systemPrompt),
		llm.TextMessage("user", prompt),
	})
	if err != nil {
		return err
	}
	return decodeValidated(reply, schema, out)
}

// ParseQuery implements Planner.
func (p *LLMPlanner) ParseQuery(ctx context.Context, text string) *ParsedQuery {
	prompt := fmt.Sprintf(`Extract the two people the user wants to connect from this query:
%q
Respond with {"personA": string, "personB": string, "isValid": boolean,
"confidence": number 0-100, "reason": string}. Set isValid false when the
query does not name two distinct people.`, text)

	var out ParsedQuery
	if err := p.tryComplete(ctx, prompt, parsedQuerySchema, &out); err != nil {
		slog.Warn("Planner parseQuery fell back", "error", err)
		return p.fallback.ParseQuery(ctx, text)
	}
	if out.IsValid && candidates.Normalize(out.PersonA) == candidates.Normalize(out.PersonB) {
		out.IsValid = false
		out.Reason = "both names resolve to the same person"
	}
	return &out
}

// ResearchConnection implements ResearchPlanner.
func (p *LLMPlanner) ResearchConnection(ctx context.Context, personA, personB string) *Research {
	prompt := fmt.Sprintf(`Research how %s and %s might be photographed together.
Respond with {"summary": string, "industries": [string], "eventTypes": [string],
"bridgeTypes": [string], "suggestedQueries": [string], "confidence": number 0-100,
"reasoning": string}. suggestedQueries are image search queries likely to return
photos of both together.`, personA, personB)

	var out Research
	if err := p.tryComplete(ctx, prompt, researchSchema, &out); err != nil {
		slog.Warn("Planner research fell back", "error", err)
		return nil
	}
	return &out
}

// SuggestBridgeCandidates implements ResearchPlanner.
func (p *LLMPlanner) SuggestBridgeCandidates(ctx context.Context, personA, personB string, exclude []string) []BridgeSuggestion {
	prompt := fmt.Sprintf(`Suggest up to %d people likely to have been photographed with BOTH
%s and %s. Exclude: %s.
Respond with a JSON array of {"name": string, "reasoning": string,
"connectionToA": string, "connectionToB": string, "confidence": number 0-100},
strongest first.`, maxSuggestions, personA, personB, strings.Join(exclude, ", "))

	var out []BridgeSuggestion
	if err := p.tryComplete(ctx, prompt, suggestionsSchema, &out); err != nil {
		slog.Warn("Planner bridge suggestions fell back", "error", err)
		return nil
	}

	// Drop suggestions that are really one of the excluded people under a
	// different spelling.
	kept := out[:0]
	for _, s := range out {
		if p.matcher.MatchesAny(s.Name, exclude) {
			continue
		}
		kept = append(kept, s)
		if len(kept) == maxSuggestions {
			break
		}
	}
	return kept
}

// RankCandidates implements ResearchPlanner.
func (p *LLMPlanner) RankCandidates(ctx context.Context, frontier, target string, cands []*models.Candidate, research *Research) *Ranking {
	if len(cands) == 0 {
		return nil
	}
	var sb strings.Builder
	for _, c := range cands {
		fmt.Fprintf(&sb, "- %s (confidence %.0f, seen %d times)\n", c.Name, c.BestConfidence, c.CoappearCount)
	}
	background := ""
	if research != nil && research.Summary != "" {
		background = "Background: " + research.Summary + "\n"
	}
	prompt := fmt.Sprintf(`%sWe are at %s, trying to reach %s. Discovered candidates:
%s
Rank the candidates by how likely each leads to %s.
Respond with {"rankedCandidates": [string], "strategy": string, "hypothesis": string}.
Use only the candidate names listed above.`, background, frontier, target, sb.String(), target)

	var out Ranking
	if err := p.tryComplete(ctx, prompt, rankingSchema, &out); err != nil {
		slog.Warn("Planner ranking fell back", "error", err)
		return nil
	}

	// Keep only names that refer to offered candidates.
	kept := out.RankedCandidates[:0]
	for _, name := range out.RankedCandidates {
		for _, c := range cands {
			if p.matcher.SamePerson(name, c.Name) {
				kept = append(kept, c.Name)
				break
			}
		}
	}
	if len(kept) == 0 {
		return nil
	}
	out.RankedCandidates = kept
	return &out
}

// SmartQueries implements ResearchPlanner.
func (p *LLMPlanner) SmartQueries(ctx context.Context, frontier, target string, research *Research) []string {
	background := ""
	if research != nil && research.Summary != "" {
		background = "Background: " + research.Summary + "\n"
	}
	prompt := fmt.Sprintf(`%sPropose up to 4 image search queries likely to return photos of
%s together with people who could also know %s. Respond with a JSON array of strings.`,
		background, frontier, target)

	var out []string
	if err := p.tryComplete(ctx, prompt, queriesSchema, &out); err != nil {
		slog.Warn("Planner smart queries fell back", "error", err)
		return p.fallback.FrontierQueries(ctx, frontier, target)
	}
	if len(out) > maxSearchQueries {
		out = out[:maxSearchQueries]
	}
	if len(out) == 0 {
		return p.fallback.FrontierQueries(ctx, frontier, target)
	}
	return out
}

// FrontierQueries implements Planner.
func (p *LLMPlanner) FrontierQueries(ctx context.Context, frontier, target string) []string {
	return p.SmartQueries(ctx, frontier, target, nil)
}

// SelectNextExpansion implements Planner. Output is rejected, and the
// heuristic used instead, unless every chosen name matches an offered
// candidate.
func (p *LLMPlanner) SelectNextExpansion(ctx context.Context, in *SelectionInput) *Selection {
	if len(in.Candidates) == 0 {
		return p.fallback.SelectNextExpansion(ctx, in)
	}

	var sb strings.Builder
	for _, c := range in.Candidates {
		fmt.Fprintf(&sb, "- %s (confidence %.0f, seen %d times)\n", c.Name, c.BestConfidence, c.CoappearCount)
	}
	failed := "none"
	if len(in.FailedCandidates) > 0 {
		failed = strings.Join(in.FailedCandidates, ", ")
	}
	prompt := fmt.Sprintf(`We are at %s (hop %d), trying to reach %s.
Candidates discovered alongside %s:
%s
Already failed verification: %s.
Remaining budget: %d searches, %d recognitions.
Choose at most %d candidates to verify next (names exactly as listed) and up to
%d image search queries. Respond with {"nextCandidates": [string],
"searchQueries": [string], "narration": string, "stop": boolean, "reason": string}.
Set stop true only when no candidate is worth verifying.`,
		in.Frontier, in.HopDepth, in.Target, in.Frontier, sb.String(), failed,
		in.Budget.SearchMax-in.Budget.SearchUsed,
		in.Budget.RecognitionMax-in.Budget.RecognitionUsed,
		maxNextCandidates, maxSearchQueries)

	var out Selection
	if err := p.tryComplete(ctx, prompt, selectionSchema, &out); err != nil {
		slog.Warn("Planner selection fell back", "error", err)
		return p.fallback.SelectNextExpansion(ctx, in)
	}
	if err := ValidateSelection(p.matcher, &out, in.Candidates); err != nil {
		slog.Warn("Planner selection rejected", "error", err)
		return p.fallback.SelectNextExpansion(ctx, in)
	}
	return &out
}

// VerifyCelebritiesInImage implements Planner.
func (p *LLMPlanner) VerifyCelebritiesInImage(ctx context.Context, imageURL, personA, personB string) *ImageVerification {
	if p.quota != nil && !p.quota.TryLLM() {
		return p.fallback.VerifyCelebritiesInImage(ctx, imageURL, personA, personB)
	}
	prompt := fmt.Sprintf(`Look at the image and decide whether %s and %s both appear in it,
in the same physical scene. Respond with {"personAFound": boolean,
"personAConfidence": number 0-100, "personBFound": boolean,
"personBConfidence": number 0-100, "togetherInScene": boolean,
"overallConfidence": number 0-100, "notes": string}.`, personA, personB)

	reply, err := p.client.CompleteVision(ctx, []llm.Message{
		llm.TextMessage("system", systemPrompt),
		llm.VisionMessage(prompt, imageURL),
	})
	if err != nil {
		slog.Warn("Planner image verification fell back", "error", err)
		return p.fallback.VerifyCelebritiesInImage(ctx, imageURL, personA, personB)
	}

	var out ImageVerification
	if err := decodeValidated(reply, imageVerificationSchema, &out); err != nil {
		slog.Warn("Planner image verification rejected", "error", err)
		return p.fallback.VerifyCelebritiesInImage(ctx, imageURL, personA, personB)
	}
	return &out
}
