package candidates

import (
	"sort"

	"github.com/snapgraph/snapgraph/pkg/models"
)

// Aggregator collects co-appearance candidates across analyzed images at the
// current frontier.
type Aggregator struct {
	matcher   *Matcher
	threshold float64
}

// NewAggregator returns an Aggregator using the given matcher and the
// recognition confidence threshold.
func NewAggregator(matcher *Matcher, threshold float64) *Aggregator {
	return &Aggregator{matcher: matcher, threshold: threshold}
}

// Collect scans analyses for images where the frontier person is confidently
// detected, and credits every other confident detection to a candidate.
// Names matching the frontier or any excluded name (people already on the
// path) are skipped. Candidates are deduplicated with the matcher and sorted
// by best confidence, then co-appearance count.
func (a *Aggregator) Collect(frontier string, exclude []string, analyses []*models.ImageAnalysis) []*models.Candidate {
	type record struct {
		candidate *models.Candidate
		contexts  map[string]struct{}
	}
	var records []*record

	for _, analysis := range analyses {
		if analysis == nil || len(analysis.Detections) == 0 {
			continue
		}
		anchor := a.matcher.BestMatch(frontier, analysis.Detections)
		if anchor == nil || anchor.Confidence < a.threshold {
			continue
		}

		for _, det := range analysis.Detections {
			if det.Confidence < a.threshold {
				continue
			}
			if a.matcher.SamePerson(det.Name, frontier) {
				continue
			}
			if a.matcher.MatchesAny(det.Name, exclude) {
				continue
			}

			var rec *record
			for _, existing := range records {
				if a.matcher.SamePerson(existing.candidate.Name, det.Name) {
					rec = existing
					break
				}
			}
			if rec == nil {
				rec = &record{
					candidate: &models.Candidate{Name: det.Name},
					contexts:  make(map[string]struct{}),
				}
				records = append(records, rec)
			}

			rec.candidate.CoappearCount++
			if det.Confidence > rec.candidate.BestConfidence {
				rec.candidate.BestConfidence = det.Confidence
			}
			if url := analysis.Image.ContextURL; url != "" {
				rec.contexts[url] = struct{}{}
			}
		}
	}

	candidates := make([]*models.Candidate, 0, len(records))
	for _, rec := range records {
		for url := range rec.contexts {
			rec.candidate.ContextURLs = append(rec.candidate.ContextURLs, url)
		}
		sort.Strings(rec.candidate.ContextURLs)
		candidates = append(candidates, rec.candidate)
	}

	sort.Slice(candidates, func(i, j int) bool {
		if candidates[i].BestConfidence != candidates[j].BestConfidence {
			return candidates[i].BestConfidence > candidates[j].BestConfidence
		}
		if candidates[i].CoappearCount != candidates[j].CoappearCount {
			return candidates[i].CoappearCount > candidates[j].CoappearCount
		}
		return candidates[i].Name < candidates[j].Name
	})
	return candidates
}
