// Package verify runs candidate images through the evidence pipeline: image
// pre-flight, scene filtering, face recognition, and pairwise scoring.
package verify

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/snapgraph/snapgraph/pkg/candidates"
	"github.com/snapgraph/snapgraph/pkg/events"
	"github.com/snapgraph/snapgraph/pkg/metrics"
	"github.com/snapgraph/snapgraph/pkg/models"
	"github.com/snapgraph/snapgraph/pkg/oracles"
	"github.com/snapgraph/snapgraph/pkg/planner"
)

const (
	// maxVerifyQueries bounds how many search queries one edge verification
	// may issue.
	maxVerifyQueries = 2

	// earlyStopEvidence ends an edge verification once this many images have
	// been accepted as evidence.
	earlyStopEvidence = 3
)

// Emitter receives pipeline progress events. Satisfied by *events.RunLog.
type Emitter interface {
	Append(evType events.EventType, message string, data *events.EventData) events.Event
}

// nopEmitter backs pipelines that run without a listening event log.
type nopEmitter struct{}

func (nopEmitter) Append(events.EventType, string, *events.EventData) events.Event {
	return events.Event{}
}

// Config carries the per-run tuning knobs.
type Config struct {
	// Threshold is the minimum recognition confidence for a detection to
	// count, in [0,100].
	Threshold float64

	// ImagesPerQuery bounds the per-query analysis fan-out.
	ImagesPerQuery int
}

// Pipeline analyzes images for one run. All oracle calls are gated by the
// run's budgets; a spent tier silently skips its calls.
type Pipeline struct {
	search  oracles.ImageSearch
	fetcher *oracles.Fetcher
	vision  oracles.VisionFilter
	faces   oracles.FaceRecognizer
	planner planner.Planner
	matcher *candidates.Matcher
	budgets *models.Budgets
	log     Emitter
	cfg     Config
}

// NewPipeline wires a per-run pipeline. log may be nil.
func NewPipeline(
	search oracles.ImageSearch,
	fetcher *oracles.Fetcher,
	vision oracles.VisionFilter,
	faces oracles.FaceRecognizer,
	pl planner.Planner,
	matcher *candidates.Matcher,
	budgets *models.Budgets,
	log Emitter,
	cfg Config,
) *Pipeline {
	if log == nil {
		log = nopEmitter{}
	}
	if cfg.ImagesPerQuery < 1 {
		cfg.ImagesPerQuery = 5
	}
	return &Pipeline{
		search:  search,
		fetcher: fetcher,
		vision:  vision,
		faces:   faces,
		planner: pl,
		matcher: matcher,
		budgets: budgets,
		log:     log,
		cfg:     cfg,
	}
}

// SearchImages runs one budget-gated image search. ok is false when the
// search tier is spent.
func (p *Pipeline) SearchImages(ctx context.Context, query string) (results []models.ImageResult, ok bool) {
	if !p.budgets.TrySearch() {
		return nil, false
	}
	found, err := p.search.Search(ctx, query)
	if err != nil {
		metrics.OracleCalls.WithLabelValues("search", "error").Inc()
		slog.Warn("Image search failed", "query", query, "error", err)
		return nil, true
	}
	metrics.OracleCalls.WithLabelValues("search", "ok").Inc()
	if len(found) > p.cfg.ImagesPerQuery {
		found = found[:p.cfg.ImagesPerQuery]
	}
	return found, true
}

// analyzeScene runs the shared front half of every analysis: pre-flight
// fetch, scene filter, face recognition. Status is set only for collage and
// error outcomes; callers classify the rest.
func (p *Pipeline) analyzeScene(ctx context.Context, img models.ImageResult) *models.ImageAnalysis {
	analysis := &models.ImageAnalysis{Image: img}

	if p.fetcher != nil {
		if _, err := p.fetcher.Fetch(ctx, img.ImageURL); err != nil {
			analysis.Status = models.AnalysisError
			analysis.Reason = fmt.Sprintf("image pre-flight failed: %v", err)
			return analysis
		}
	}

	if p.vision != nil && p.budgets.TryRecognition() {
		check, err := p.vision.IsSingleScene(ctx, img.ImageURL)
		if err != nil {
			metrics.OracleCalls.WithLabelValues("vision", "error").Inc()
			analysis.Status = models.AnalysisError
			analysis.Reason = fmt.Sprintf("scene filter failed: %v", err)
			return analysis
		}
		metrics.OracleCalls.WithLabelValues("vision", "ok").Inc()
		if !check.Valid {
			analysis.Status = models.AnalysisCollage
			analysis.Reason = check.Reason
			return analysis
		}
	}

	if !p.budgets.TryRecognition() {
		analysis.Status = models.AnalysisError
		analysis.Reason = "recognition budget exhausted"
		return analysis
	}
	detections, err := p.faces.Recognize(ctx, img.ImageURL)
	if err != nil {
		metrics.OracleCalls.WithLabelValues("recognition", "error").Inc()
		analysis.Status = models.AnalysisError
		analysis.Reason = fmt.Sprintf("face recognition failed: %v", err)
		return analysis
	}
	metrics.OracleCalls.WithLabelValues("recognition", "ok").Inc()
	analysis.Detections = detections
	return analysis
}

// AnalyzeForCandidates analyzes one image during bridge discovery. The result
// is evidence when the frontier plus at least one other person are confidently
// recognized, no_match otherwise.
func (p *Pipeline) AnalyzeForCandidates(ctx context.Context, img models.ImageResult, frontier string) *models.ImageAnalysis {
	analysis := p.analyzeScene(ctx, img)
	if analysis.Status == "" {
		anchor := p.matcher.BestMatch(frontier, analysis.Detections)
		others := 0
		for _, d := range analysis.Detections {
			if d.Confidence >= p.cfg.Threshold && !p.matcher.SamePerson(d.Name, frontier) {
				others++
			}
		}
		if anchor != nil && anchor.Confidence >= p.cfg.Threshold && others > 0 {
			analysis.Status = models.AnalysisEvidence
		} else {
			analysis.Status = models.AnalysisNoMatch
			analysis.Reason = fmt.Sprintf("%s not recognized alongside anyone", frontier)
		}
	}
	p.emitImageResult(analysis)
	return analysis
}

// AnalyzeForPair analyzes one image for a specific pair. Evidence requires
// both targets at or above the threshold; the image score is the smaller of
// the two confidences.
func (p *Pipeline) AnalyzeForPair(ctx context.Context, img models.ImageResult, personA, personB string) *models.ImageAnalysis {
	analysis := p.analyzeScene(ctx, img)
	if analysis.Status != "" {
		p.emitImageResult(analysis)
		return analysis
	}

	matchA := p.matcher.BestMatch(personA, analysis.Detections)
	matchB := p.matcher.BestMatch(personB, analysis.Detections)
	confA, confB := matchConfidence(matchA), matchConfidence(matchB)

	switch {
	case confA >= p.cfg.Threshold && confB >= p.cfg.Threshold:
		analysis.Status = models.AnalysisEvidence
		analysis.Score = min(confA, confB)

	case (confA >= p.cfg.Threshold) != (confB >= p.cfg.Threshold) && p.planner != nil:
		// One party recognized, one missed: ask the planner for a second
		// opinion on the whole image.
		v := p.planner.VerifyCelebritiesInImage(ctx, img.ImageURL, personA, personB)
		if v != nil && v.PersonAFound && v.PersonBFound && v.TogetherInScene &&
			v.PersonAConfidence >= p.cfg.Threshold && v.PersonBConfidence >= p.cfg.Threshold {
			analysis.Status = models.AnalysisEvidence
			analysis.Score = min(v.PersonAConfidence, v.PersonBConfidence)
		} else {
			analysis.Status = models.AnalysisNoMatch
			analysis.Reason = fmt.Sprintf("only one of %s and %s recognized", personA, personB)
		}

	default:
		analysis.Status = models.AnalysisNoMatch
		analysis.Reason = fmt.Sprintf("%s and %s not both recognized", personA, personB)
	}

	p.emitImageResult(analysis)
	return analysis
}

// VerifyEdge searches for images of the pair and accumulates evidence.
// Returns nil when no image passes. Early-stops after earlyStopEvidence
// accepted images or when the search tier is spent.
func (p *Pipeline) VerifyEdge(ctx context.Context, personA, personB string) *models.VerifiedEdge {
	queries := []string{
		fmt.Sprintf("%s %s", personA, personB),
		fmt.Sprintf("%s %s together", personA, personB),
	}
	if len(queries) > maxVerifyQueries {
		queries = queries[:maxVerifyQueries]
	}

	var evidence []models.ImageEvidence
	for _, query := range queries {
		if ctx.Err() != nil {
			break
		}
		images, ok := p.SearchImages(ctx, query)
		if !ok {
			break
		}
		analyses := p.analyzeBatch(ctx, images, func(img models.ImageResult) *models.ImageAnalysis {
			return p.AnalyzeForPair(ctx, img, personA, personB)
		})
		for _, a := range analyses {
			if a.Status != models.AnalysisEvidence {
				continue
			}
			evidence = append(evidence, models.ImageEvidence{
				ImageURL:     a.Image.ImageURL,
				ThumbnailURL: a.Image.ThumbnailURL,
				ContextURL:   a.Image.ContextURL,
				Title:        a.Image.Title,
				Score:        a.Score,
			})
		}
		if len(evidence) >= earlyStopEvidence {
			break
		}
	}

	if len(evidence) == 0 {
		return nil
	}

	edge := &models.VerifiedEdge{PersonA: personA, PersonB: personB, Evidence: evidence}
	for _, ev := range evidence {
		if ev.Score > edge.Confidence {
			edge.Confidence = ev.Score
			edge.Best = ev
		}
	}
	return edge
}

// Discover searches one query and analyzes its images for candidates at the
// frontier. ok is false when the search tier is spent.
func (p *Pipeline) Discover(ctx context.Context, query, frontier string) (analyses []*models.ImageAnalysis, ok bool) {
	images, ok := p.SearchImages(ctx, query)
	if !ok {
		return nil, false
	}
	return p.analyzeBatch(ctx, images, func(img models.ImageResult) *models.ImageAnalysis {
		return p.AnalyzeForCandidates(ctx, img, frontier)
	}), true
}

// analyzeBatch fans per-image work out with a bounded semaphore. Budget
// reservations inside each analysis are atomic, so the fan-out can never
// overshoot a tier's maximum.
func (p *Pipeline) analyzeBatch(ctx context.Context, images []models.ImageResult, analyze func(models.ImageResult) *models.ImageAnalysis) []*models.ImageAnalysis {
	analyses := make([]*models.ImageAnalysis, len(images))
	sem := make(chan struct{}, p.cfg.ImagesPerQuery)
	var wg sync.WaitGroup

	for i, img := range images {
		if ctx.Err() != nil {
			break
		}
		wg.Add(1)
		sem <- struct{}{}
		go func(i int, img models.ImageResult) {
			defer wg.Done()
			defer func() { <-sem }()
			analyses[i] = analyze(img)
		}(i, img)
	}
	wg.Wait()

	out := analyses[:0]
	for _, a := range analyses {
		if a != nil {
			out = append(out, a)
		}
	}
	return out
}

func (p *Pipeline) emitImageResult(a *models.ImageAnalysis) {
	p.log.Append(events.TypeImageResult, imageResultMessage(a), &events.EventData{
		ImageURL:    a.Image.ImageURL,
		Status:      string(a.Status),
		Reason:      a.Reason,
		Celebrities: a.Detections,
	})
}

func imageResultMessage(a *models.ImageAnalysis) string {
	switch a.Status {
	case models.AnalysisEvidence:
		return "Image accepted as evidence"
	case models.AnalysisCollage:
		return "Image rejected: composite of multiple scenes"
	case models.AnalysisError:
		return "Image analysis failed"
	default:
		return "Image did not match"
	}
}

func matchConfidence(d *models.Detection) float64 {
	if d == nil {
		return 0
	}
	return d.Confidence
}

func min(a, b float64) float64 {
	if a < b {
		return a
	}
	return b
}
