// Package runs tracks live and recently finished investigations. Each run
// owns its event log and cancel func; terminal runs linger for a TTL so late
// subscribers can still replay them, then a janitor collects them.
package runs

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/snapgraph/snapgraph/pkg/events"
	"github.com/snapgraph/snapgraph/pkg/metrics"
	"github.com/snapgraph/snapgraph/pkg/models"
	"github.com/snapgraph/snapgraph/pkg/services"
)

// Investigator executes one investigation, emitting all events (terminal one
// included) to the log. Implemented by the orchestrator.
type Investigator interface {
	Investigate(ctx context.Context, personA, personB string, log *events.RunLog) *models.Result
}

// Run is one tracked investigation.
type Run struct {
	ID      string
	PersonA string
	PersonB string
	Log     *events.RunLog

	mu          sync.Mutex
	status      models.RunStatus
	output      *models.Result
	errMessage  string
	startedAt   time.Time
	completedAt *time.Time
	cancel      context.CancelFunc
}

// Info returns the externally visible state of the run.
func (r *Run) Info() *models.RunInfo {
	r.mu.Lock()
	defer r.mu.Unlock()
	return &models.RunInfo{
		ID:          r.ID,
		PersonA:     r.PersonA,
		PersonB:     r.PersonB,
		Status:      r.status,
		Error:       r.errMessage,
		StartedAt:   r.startedAt,
		CompletedAt: r.completedAt,
		Output:      r.output,
	}
}

func (r *Run) finish(result *models.Result) {
	now := time.Now().UTC()
	r.mu.Lock()
	defer r.mu.Unlock()
	r.completedAt = &now
	r.output = result
	if result != nil && result.Status == models.ResultSuccess {
		r.status = models.RunStatusSuccess
	} else {
		r.status = models.RunStatusFailed
		if result != nil {
			r.errMessage = result.Reason
		}
	}
}

func (r *Run) terminalSince() (time.Time, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.completedAt == nil {
		return time.Time{}, false
	}
	return *r.completedAt, true
}

// Registry is the process-wide run table.
type Registry struct {
	investigator Investigator
	runTimeout   time.Duration

	mu   sync.RWMutex
	runs map[string]*Run
}

// NewRegistry creates a Registry. runTimeout is the hard cap on one
// investigation's execution.
func NewRegistry(investigator Investigator, runTimeout time.Duration) *Registry {
	return &Registry{
		investigator: investigator,
		runTimeout:   runTimeout,
		runs:         make(map[string]*Run),
	}
}

// Start allocates a run and launches its investigation goroutine.
func (g *Registry) Start(personA, personB string) *Run {
	id := uuid.New().String()
	ctx, cancel := context.WithTimeout(context.Background(), g.runTimeout)

	run := &Run{
		ID:        id,
		PersonA:   personA,
		PersonB:   personB,
		Log:       events.NewRunLog(id),
		status:    models.RunStatusRunning,
		startedAt: time.Now().UTC(),
		cancel:    cancel,
	}

	g.mu.Lock()
	g.runs[id] = run
	g.mu.Unlock()

	metrics.RunsStarted.WithLabelValues("live").Inc()
	go func() {
		defer cancel()
		started := time.Now()
		result := g.investigator.Investigate(ctx, personA, personB, run.Log)
		run.finish(result)
		metrics.RunDuration.Observe(time.Since(started).Seconds())
		outcome := "no_path"
		if result != nil && result.Status == models.ResultSuccess {
			outcome = "success"
		}
		metrics.RunsCompleted.WithLabelValues(outcome).Inc()
	}()

	return run
}

// StartCached synthesizes a completed run from a cached graph path. Its event
// log holds a single final event built from the stored steps.
func (g *Registry) StartCached(personA, personB string, path *models.PathResult) *Run {
	id := uuid.New().String()
	now := time.Now().UTC()

	cumulative := 1.0
	for _, step := range path.Steps {
		cumulative *= step.Confidence / 100
	}
	result := &models.Result{
		Status:               models.ResultSuccess,
		Path:                 path.Path,
		Steps:                path.Steps,
		Confidence:           path.MinConfidence,
		CumulativeConfidence: cumulative * 100,
		Hops:                 path.Hops,
		Disclaimer:           models.Disclaimer,
	}

	run := &Run{
		ID:          id,
		PersonA:     personA,
		PersonB:     personB,
		Log:         events.NewRunLog(id),
		status:      models.RunStatusSuccess,
		output:      result,
		startedAt:   now,
		completedAt: &now,
		cancel:      func() {},
	}
	run.Log.Append(events.TypeFinal,
		fmt.Sprintf("Found a known path from %s to %s in %d hop(s)", personA, personB, path.Hops),
		&events.EventData{Path: path.Path, Steps: path.Steps, Result: result})
	run.Log.Close()

	g.mu.Lock()
	g.runs[id] = run
	g.mu.Unlock()
	metrics.RunsStarted.WithLabelValues("cached").Inc()
	return run
}

// Get returns a run by id.
func (g *Registry) Get(id string) (*Run, error) {
	g.mu.RLock()
	defer g.mu.RUnlock()
	run, ok := g.runs[id]
	if !ok {
		return nil, services.ErrRunNotFound
	}
	return run, nil
}

// Cancel interrupts a live run. The orchestrator observes the cancellation at
// its next suspension point and emits the terminal error event.
func (g *Registry) Cancel(id string) error {
	run, err := g.Get(id)
	if err != nil {
		return err
	}
	run.mu.Lock()
	running := run.status == models.RunStatusRunning
	run.mu.Unlock()
	if !running {
		return services.ErrNotCancellable
	}
	run.cancel()
	return nil
}

// List returns every tracked run, newest first.
func (g *Registry) List() []*models.RunInfo {
	g.mu.RLock()
	defer g.mu.RUnlock()

	out := make([]*models.RunInfo, 0, len(g.runs))
	for _, run := range g.runs {
		out = append(out, run.Info())
	}
	for i := 1; i < len(out); i++ {
		for j := i; j > 0 && out[j].StartedAt.After(out[j-1].StartedAt); j-- {
			out[j], out[j-1] = out[j-1], out[j]
		}
	}
	return out
}

// PruneExpired removes runs that reached a terminal state more than ttl ago
// and returns how many were collected.
func (g *Registry) PruneExpired(ttl time.Duration) int {
	cutoff := time.Now().UTC().Add(-ttl)

	g.mu.Lock()
	defer g.mu.Unlock()

	pruned := 0
	for id, run := range g.runs {
		if terminal, ok := run.terminalSince(); ok && terminal.Before(cutoff) {
			run.Log.Close()
			delete(g.runs, id)
			pruned++
		}
	}
	return pruned
}

// CancelAll interrupts every live run; used during shutdown.
func (g *Registry) CancelAll() {
	g.mu.RLock()
	defer g.mu.RUnlock()
	for _, run := range g.runs {
		run.cancel()
	}
}
