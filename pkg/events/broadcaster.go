package events

import (
	"log/slog"
	"sync"
)

// broadcastBuffer bounds each graph subscriber's queue. Graph viewers can
// always refetch the full snapshot, so overflow drops the update rather than
// blocking publishers.
const broadcastBuffer = 64

// GraphBroadcaster fans edge deltas out to graph-viewing subscribers. It is
// the process-wide pub/sub for live graph updates: many writers (runs), many
// readers (websocket connections), and no subscriber can block a publisher.
type GraphBroadcaster struct {
	mu     sync.RWMutex
	subs   map[int]chan EdgeUpdate
	nextID int
}

// NewGraphBroadcaster creates an empty broadcaster.
func NewGraphBroadcaster() *GraphBroadcaster {
	return &GraphBroadcaster{subs: make(map[int]chan EdgeUpdate)}
}

// Subscribe registers a new subscriber and returns its delivery channel plus
// an unsubscribe func. The channel is closed on unsubscribe.
func (b *GraphBroadcaster) Subscribe() (<-chan EdgeUpdate, func()) {
	ch := make(chan EdgeUpdate, broadcastBuffer)

	b.mu.Lock()
	id := b.nextID
	b.nextID++
	b.subs[id] = ch
	b.mu.Unlock()

	var once sync.Once
	cancel := func() {
		once.Do(func() {
			b.mu.Lock()
			delete(b.subs, id)
			b.mu.Unlock()
			close(ch)
		})
	}
	return ch, cancel
}

// Publish delivers an edge update to every subscriber without blocking.
func (b *GraphBroadcaster) Publish(update EdgeUpdate) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	for _, ch := range b.subs {
		select {
		case ch <- update:
		default:
			slog.Debug("Graph subscriber buffer full, dropping edge update",
				"source", update.Source, "target", update.Target)
		}
	}
}

// SubscriberCount returns the number of attached subscribers.
func (b *GraphBroadcaster) SubscriberCount() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.subs)
}
