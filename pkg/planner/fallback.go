package planner

import (
	"context"
	"fmt"
	"regexp"
	"strings"

	"github.com/snapgraph/snapgraph/pkg/candidates"
	"github.com/snapgraph/snapgraph/pkg/models"
)

// queryPatterns are tried in order against free text. More specific phrasings
// come first so "how is X connected to Y" is not split at the wrong "to".
var queryPatterns = []*regexp.Regexp{
	regexp.MustCompile(`(?i)^\s*how\s+is\s+(.+?)\s+connected\s+to\s+(.+?)\s*\??\s*$`),
	regexp.MustCompile(`(?i)^\s*connect\s+(.+?)\s+(?:to|and|with)\s+(.+?)\s*$`),
	regexp.MustCompile(`(?i)^\s*(.+?)\s+to\s+(.+?)\s*$`),
	regexp.MustCompile(`(?i)^\s*(.+?)\s+and\s+(.+?)\s*$`),
}

// FallbackPlanner is the deterministic Planner used when no LLM is configured
// and the safety net behind every LLMPlanner entry point.
type FallbackPlanner struct {
	matcher *candidates.Matcher
}

var _ Planner = (*FallbackPlanner)(nil)

// NewFallbackPlanner creates the heuristic planner.
func NewFallbackPlanner(matcher *candidates.Matcher) *FallbackPlanner {
	return &FallbackPlanner{matcher: matcher}
}

// ParseQuery implements Planner with ordered regex patterns.
func (p *FallbackPlanner) ParseQuery(_ context.Context, text string) *ParsedQuery {
	for _, re := range queryPatterns {
		m := re.FindStringSubmatch(text)
		if m == nil {
			continue
		}
		a, b := strings.TrimSpace(m[1]), strings.TrimSpace(m[2])
		if a == "" || b == "" {
			continue
		}
		if candidates.Normalize(a) == candidates.Normalize(b) {
			continue
		}
		return &ParsedQuery{PersonA: a, PersonB: b, IsValid: true, Confidence: 60,
			Reason: "pattern match"}
	}
	return &ParsedQuery{IsValid: false, Reason: "could not identify two people in the query"}
}

// FrontierQueries implements Planner with the fixed fallback queries.
func (p *FallbackPlanner) FrontierQueries(_ context.Context, frontier, _ string) []string {
	return []string{
		fmt.Sprintf("%s photo", frontier),
		fmt.Sprintf("%s with", frontier),
	}
}

// SelectNextExpansion implements Planner: the top candidate that has not
// already failed, by best confidence then co-appearance count (the order the
// aggregator already produced).
func (p *FallbackPlanner) SelectNextExpansion(_ context.Context, in *SelectionInput) *Selection {
	for _, c := range in.Candidates {
		if p.matcher.MatchesAny(c.Name, in.FailedCandidates) {
			continue
		}
		return &Selection{
			NextCandidates: []string{c.Name},
			SearchQueries: []string{
				fmt.Sprintf("%s %s", in.Frontier, c.Name),
				fmt.Sprintf("%s %s", c.Name, in.Target),
			},
			Narration: fmt.Sprintf("Trying %s, the strongest remaining co-appearance", c.Name),
		}
	}
	return &Selection{Stop: true, Reason: "no viable candidates remain"}
}

// VerifyCelebritiesInImage implements Planner. Without a model there is no
// secondary opinion, so nothing is ever confirmed.
func (p *FallbackPlanner) VerifyCelebritiesInImage(context.Context, string, string, string) *ImageVerification {
	return &ImageVerification{Notes: "no planner model available for secondary verification"}
}

// ValidateSelection enforces the selection contract: nextCandidates non-empty
// (unless stopping), at most two, and every chosen name must match one of the
// offered candidates. Search queries are capped rather than rejected.
func ValidateSelection(matcher *candidates.Matcher, sel *Selection, offered []*models.Candidate) error {
	if sel == nil {
		return fmt.Errorf("selection is nil")
	}
	if sel.Stop {
		return nil
	}
	if len(sel.NextCandidates) == 0 {
		return fmt.Errorf("selection names no candidates and does not stop")
	}
	if len(sel.NextCandidates) > maxNextCandidates {
		return fmt.Errorf("selection names %d candidates, limit is %d", len(sel.NextCandidates), maxNextCandidates)
	}
	for _, name := range sel.NextCandidates {
		found := false
		for _, c := range offered {
			if matcher.SamePerson(name, c.Name) {
				found = true
				break
			}
		}
		if !found {
			return fmt.Errorf("selection names %q, which was not among the offered candidates", name)
		}
	}
	if len(sel.SearchQueries) > maxSearchQueries {
		sel.SearchQueries = sel.SearchQueries[:maxSearchQueries]
	}
	return nil
}
