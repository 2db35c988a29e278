package events

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGraphBroadcaster_FanOut(t *testing.T) {
	b := NewGraphBroadcaster()

	ch1, cancel1 := b.Subscribe()
	ch2, cancel2 := b.Subscribe()
	defer cancel1()
	defer cancel2()

	update := EdgeUpdate{Source: "person a", Target: "person b", Confidence: 91}
	b.Publish(update)

	for _, ch := range []<-chan EdgeUpdate{ch1, ch2} {
		select {
		case got := <-ch:
			assert.Equal(t, update, got)
		case <-time.After(time.Second):
			t.Fatal("subscriber did not receive the update")
		}
	}
}

func TestGraphBroadcaster_UnsubscribeClosesChannel(t *testing.T) {
	b := NewGraphBroadcaster()

	ch, cancel := b.Subscribe()
	require.Equal(t, 1, b.SubscriberCount())

	cancel()
	assert.Equal(t, 0, b.SubscriberCount())

	_, open := <-ch
	assert.False(t, open)

	// Idempotent.
	assert.NotPanics(t, cancel)
}

func TestGraphBroadcaster_SlowSubscriberDoesNotBlockPublish(t *testing.T) {
	b := NewGraphBroadcaster()

	_, cancel := b.Subscribe()
	defer cancel()

	done := make(chan struct{})
	go func() {
		for i := 0; i < broadcastBuffer*2; i++ {
			b.Publish(EdgeUpdate{Source: "a", Target: "b", Confidence: float64(i)})
		}
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("Publish blocked on a slow subscriber")
	}
}

func TestGraphBroadcaster_PublishWithoutSubscribers(t *testing.T) {
	b := NewGraphBroadcaster()
	assert.NotPanics(t, func() {
		b.Publish(EdgeUpdate{Source: "a", Target: "b", Confidence: 80})
	})
}
