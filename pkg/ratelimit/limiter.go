// Package ratelimit enforces the per-client investigation quota over a
// sliding window.
package ratelimit

import (
	"sync"
	"time"
)

// Decision is the outcome of one admission check.
type Decision struct {
	Allowed   bool
	Limit     int
	Remaining int
	ResetAt   time.Time
}

// Limiter tracks request timestamps per client key over a sliding window.
// Whitelisted keys always pass without consuming quota.
type Limiter struct {
	max       int
	window    time.Duration
	whitelist map[string]struct{}
	now       func() time.Time

	mu      sync.Mutex
	clients map[string][]time.Time

	cancel chan struct{}
	once   sync.Once
}

// NewLimiter creates a limiter allowing max requests per window. Expired
// windows are garbage-collected in the background until Stop is called.
func NewLimiter(max int, window time.Duration, whitelist []string) *Limiter {
	wl := make(map[string]struct{}, len(whitelist))
	for _, ip := range whitelist {
		wl[ip] = struct{}{}
	}
	l := &Limiter{
		max:       max,
		window:    window,
		whitelist: wl,
		now:       time.Now,
		clients:   make(map[string][]time.Time),
		cancel:    make(chan struct{}),
	}
	go l.cleanupLoop()
	return l
}

// Allow records one request for the key and decides whether it is admitted.
// ResetAt is when the oldest in-window request ages out.
func (l *Limiter) Allow(key string) Decision {
	now := l.now()

	if _, ok := l.whitelist[key]; ok {
		return Decision{Allowed: true, Limit: l.max, Remaining: l.max, ResetAt: now}
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	stamps := l.pruneLocked(key, now)
	if len(stamps) >= l.max {
		return Decision{
			Allowed:   false,
			Limit:     l.max,
			Remaining: 0,
			ResetAt:   stamps[0].Add(l.window),
		}
	}

	stamps = append(stamps, now)
	l.clients[key] = stamps
	return Decision{
		Allowed:   true,
		Limit:     l.max,
		Remaining: l.max - len(stamps),
		ResetAt:   stamps[0].Add(l.window),
	}
}

// Stop ends the background cleanup goroutine.
func (l *Limiter) Stop() {
	l.once.Do(func() { close(l.cancel) })
}

// pruneLocked drops timestamps older than the window for one key.
func (l *Limiter) pruneLocked(key string, now time.Time) []time.Time {
	cutoff := now.Add(-l.window)
	stamps := l.clients[key]
	keep := stamps[:0]
	for _, t := range stamps {
		if t.After(cutoff) {
			keep = append(keep, t)
		}
	}
	if len(keep) == 0 {
		delete(l.clients, key)
		return nil
	}
	l.clients[key] = keep
	return keep
}

func (l *Limiter) cleanupLoop() {
	interval := l.window / 10
	if interval <= 0 {
		interval = time.Minute
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-l.cancel:
			return
		case <-ticker.C:
			now := l.now()
			l.mu.Lock()
			for key := range l.clients {
				l.pruneLocked(key, now)
			}
			l.mu.Unlock()
		}
	}
}
