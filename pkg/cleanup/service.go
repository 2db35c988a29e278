// Package cleanup collects expired investigation runs and their event logs.
package cleanup

import (
	"context"
	"log/slog"
	"time"
)

// Pruner removes expired entries and reports how many were collected.
// Implemented by the run registry.
type Pruner interface {
	PruneExpired(ttl time.Duration) int
}

// Service periodically prunes terminal runs past their TTL. Finished runs
// stay replayable until the TTL elapses; after that, their event logs are
// garbage-collected with them.
type Service struct {
	pruner   Pruner
	ttl      time.Duration
	interval time.Duration

	cancel context.CancelFunc
	done   chan struct{}
}

// NewService creates a cleanup service. A zero interval defaults to one
// sweep per minute.
func NewService(pruner Pruner, ttl, interval time.Duration) *Service {
	if interval <= 0 {
		interval = time.Minute
	}
	return &Service{pruner: pruner, ttl: ttl, interval: interval}
}

// Start launches the background cleanup loop.
func (s *Service) Start(ctx context.Context) {
	if s.cancel != nil {
		return
	}
	ctx, s.cancel = context.WithCancel(ctx)
	s.done = make(chan struct{})

	go s.run(ctx)

	slog.Info("Run cleanup service started", "ttl", s.ttl, "interval", s.interval)
}

// Stop signals the cleanup loop to exit and waits for it to finish.
func (s *Service) Stop() {
	if s.cancel == nil {
		return
	}
	s.cancel()
	<-s.done
	slog.Info("Run cleanup service stopped")
}

func (s *Service) run(ctx context.Context) {
	defer close(s.done)

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if count := s.pruner.PruneExpired(s.ttl); count > 0 {
				slog.Info("Collected expired runs", "count", count)
			}
		}
	}
}
