package runs

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/snapgraph/snapgraph/pkg/events"
	"github.com/snapgraph/snapgraph/pkg/models"
	"github.com/snapgraph/snapgraph/pkg/services"
)

// scriptedInvestigator blocks until released, then returns its result.
type scriptedInvestigator struct {
	release chan struct{}
	result  *models.Result
}

func (s *scriptedInvestigator) Investigate(ctx context.Context, _, _ string, log *events.RunLog) *models.Result {
	if s.release != nil {
		select {
		case <-s.release:
		case <-ctx.Done():
			log.Append(events.TypeError, "cancelled", &events.EventData{Category: events.CategoryCancelled})
			log.Close()
			return &models.Result{Status: models.ResultNoPath, Reason: "cancelled"}
		}
	}
	log.Append(events.TypeFinal, "done", &events.EventData{Result: s.result})
	log.Close()
	return s.result
}

func waitForStatus(t *testing.T, run *Run, want models.RunStatus) {
	t.Helper()
	deadline := time.After(2 * time.Second)
	for {
		if run.Info().Status == want {
			return
		}
		select {
		case <-deadline:
			t.Fatalf("run never reached status %s, still %s", want, run.Info().Status)
		case <-time.After(5 * time.Millisecond):
		}
	}
}

func TestStartRunsToCompletion(t *testing.T) {
	inv := &scriptedInvestigator{
		result: &models.Result{Status: models.ResultSuccess, Path: []string{"A", "B"}},
	}
	g := NewRegistry(inv, time.Minute)

	run := g.Start("A", "B")
	assert.Equal(t, models.RunStatusRunning, run.Info().Status)

	waitForStatus(t, run, models.RunStatusSuccess)
	info := run.Info()
	require.NotNil(t, info.Output)
	assert.Equal(t, models.ResultSuccess, info.Output.Status)
	assert.NotNil(t, info.CompletedAt)
	assert.True(t, run.Log.Closed())
}

func TestStartNoPathMarksFailed(t *testing.T) {
	inv := &scriptedInvestigator{
		result: &models.Result{Status: models.ResultNoPath, Reason: "budget exhausted"},
	}
	g := NewRegistry(inv, time.Minute)

	run := g.Start("A", "B")
	waitForStatus(t, run, models.RunStatusFailed)
	assert.Equal(t, "budget exhausted", run.Info().Error)
}

func TestStartCached(t *testing.T) {
	g := NewRegistry(&scriptedInvestigator{}, time.Minute)

	path := &models.PathResult{
		Found:         true,
		Path:          []string{"A", "M", "B"},
		Hops:          2,
		MinConfidence: 82,
		Steps: []models.PathStep{
			{From: "A", To: "M", Confidence: 82},
			{From: "M", To: "B", Confidence: 90},
		},
	}
	run := g.StartCached("A", "B", path)

	info := run.Info()
	assert.Equal(t, models.RunStatusSuccess, info.Status)
	require.NotNil(t, info.Output)
	assert.Equal(t, 82.0, info.Output.Confidence)
	assert.InDelta(t, 73.8, info.Output.CumulativeConfidence, 0.01)
	assert.Equal(t, models.Disclaimer, info.Output.Disclaimer)

	// The log holds exactly one terminal event and is already closed.
	evs, complete := run.Log.Snapshot(0)
	require.Len(t, evs, 1)
	assert.Equal(t, events.TypeFinal, evs[0].Type)
	assert.True(t, complete)
}

func TestGetUnknownRun(t *testing.T) {
	g := NewRegistry(&scriptedInvestigator{}, time.Minute)

	_, err := g.Get("nope")
	assert.ErrorIs(t, err, services.ErrRunNotFound)
}

func TestCancelLiveRun(t *testing.T) {
	inv := &scriptedInvestigator{
		release: make(chan struct{}),
		result:  &models.Result{Status: models.ResultSuccess},
	}
	g := NewRegistry(inv, time.Minute)

	run := g.Start("A", "B")
	require.NoError(t, g.Cancel(run.ID))

	waitForStatus(t, run, models.RunStatusFailed)

	// A terminal run is no longer cancellable.
	assert.ErrorIs(t, g.Cancel(run.ID), services.ErrNotCancellable)
}

func TestListNewestFirst(t *testing.T) {
	inv := &scriptedInvestigator{result: &models.Result{Status: models.ResultSuccess}}
	g := NewRegistry(inv, time.Minute)

	first := g.Start("A", "B")
	waitForStatus(t, first, models.RunStatusSuccess)
	time.Sleep(5 * time.Millisecond)
	second := g.Start("C", "D")
	waitForStatus(t, second, models.RunStatusSuccess)

	list := g.List()
	require.Len(t, list, 2)
	assert.Equal(t, second.ID, list[0].ID)
	assert.Equal(t, first.ID, list[1].ID)
}

func TestPruneExpired(t *testing.T) {
	inv := &scriptedInvestigator{result: &models.Result{Status: models.ResultSuccess}}
	g := NewRegistry(inv, time.Minute)

	run := g.Start("A", "B")
	waitForStatus(t, run, models.RunStatusSuccess)

	// Fresh terminal runs survive a prune with a long TTL.
	assert.Zero(t, g.PruneExpired(time.Hour))

	// A zero TTL collects anything terminal.
	assert.Eventually(t, func() bool {
		return g.PruneExpired(0) == 1
	}, time.Second, 10*time.Millisecond)

	_, err := g.Get(run.ID)
	assert.ErrorIs(t, err, services.ErrRunNotFound)
}
