package cleanup

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type countingPruner struct {
	calls   atomic.Int64
	lastTTL atomic.Int64
	pruned  int
}

func (p *countingPruner) PruneExpired(ttl time.Duration) int {
	p.calls.Add(1)
	p.lastTTL.Store(int64(ttl))
	return p.pruned
}

func TestServiceSweepsOnInterval(t *testing.T) {
	pruner := &countingPruner{pruned: 2}
	svc := NewService(pruner, time.Hour, 10*time.Millisecond)

	svc.Start(context.Background())
	require.Eventually(t, func() bool {
		return pruner.calls.Load() >= 3
	}, 2*time.Second, 5*time.Millisecond)
	svc.Stop()

	assert.Equal(t, int64(time.Hour), pruner.lastTTL.Load())

	settled := pruner.calls.Load()
	time.Sleep(30 * time.Millisecond)
	assert.Equal(t, settled, pruner.calls.Load())
}

func TestServiceZeroIntervalDefaults(t *testing.T) {
	svc := NewService(&countingPruner{}, time.Hour, 0)
	assert.Equal(t, time.Minute, svc.interval)
}

func TestServiceStartIsIdempotent(t *testing.T) {
	pruner := &countingPruner{}
	svc := NewService(pruner, time.Hour, 10*time.Millisecond)

	ctx := context.Background()
	svc.Start(ctx)
	svc.Start(ctx)
	svc.Stop()
}

func TestServiceStopWithoutStart(t *testing.T) {
	svc := NewService(&countingPruner{}, time.Hour, time.Minute)
	svc.Stop()
}
