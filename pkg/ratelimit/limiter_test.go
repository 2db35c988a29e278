package ratelimit

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestAllowWithinLimit(t *testing.T) {
	l := NewLimiter(3, time.Hour, nil)
	defer l.Stop()

	for i := 0; i < 3; i++ {
		d := l.Allow("1.2.3.4")
		assert.True(t, d.Allowed)
		assert.Equal(t, 3, d.Limit)
		assert.Equal(t, 2-i, d.Remaining)
	}

	d := l.Allow("1.2.3.4")
	assert.False(t, d.Allowed)
	assert.Equal(t, 0, d.Remaining)
	assert.False(t, d.ResetAt.IsZero())
}

func TestKeysAreIndependent(t *testing.T) {
	l := NewLimiter(1, time.Hour, nil)
	defer l.Stop()

	assert.True(t, l.Allow("a").Allowed)
	assert.False(t, l.Allow("a").Allowed)
	assert.True(t, l.Allow("b").Allowed)
}

func TestWindowSlides(t *testing.T) {
	l := NewLimiter(1, time.Hour, nil)
	defer l.Stop()

	current := time.Now()
	l.now = func() time.Time { return current }

	assert.True(t, l.Allow("a").Allowed)
	assert.False(t, l.Allow("a").Allowed)

	// Past the window the old request ages out.
	current = current.Add(time.Hour + time.Second)
	assert.True(t, l.Allow("a").Allowed)
}

func TestWhitelistBypassesQuota(t *testing.T) {
	l := NewLimiter(1, time.Hour, []string{"10.0.0.1"})
	defer l.Stop()

	for i := 0; i < 5; i++ {
		d := l.Allow("10.0.0.1")
		assert.True(t, d.Allowed)
		assert.Equal(t, 1, d.Remaining)
	}
}

func TestResetAtTracksOldestRequest(t *testing.T) {
	l := NewLimiter(2, time.Hour, nil)
	defer l.Stop()

	start := time.Now()
	l.now = func() time.Time { return start }
	first := l.Allow("a")

	l.now = func() time.Time { return start.Add(time.Minute) }
	second := l.Allow("a")

	// Both decisions reset when the first request ages out.
	assert.Equal(t, first.ResetAt, second.ResetAt)
}
