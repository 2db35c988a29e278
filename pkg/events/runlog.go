package events

import (
	"sync"
	"time"

	"github.com/oklog/ulid/v2"
)

// subscriberBuffer is the per-subscriber channel capacity. A subscriber that
// lets this many events pile up without reading is considered dead and is
// dropped; everyone else is buffered until the run's TTL.
const subscriberBuffer = 256

// RunLog is the append-only event log of one investigation run.
//
// Events receive strictly increasing indices starting at 0. Subscribers may
// attach at any time with a cursor and receive every event with index >=
// cursor, in order, followed by live events. A slow subscriber never blocks
// Append. Close marks the log terminal: live channels are closed after all
// appended events have been delivered, and late subscribers still replay the
// full history.
type RunLog struct {
	runID string

	mu     sync.Mutex
	events []Event
	subs   map[int]chan Event
	nextID int
	closed bool
}

// NewRunLog creates an empty log for the given run id.
func NewRunLog(runID string) *RunLog {
	return &RunLog{
		runID: runID,
		subs:  make(map[int]chan Event),
	}
}

// RunID returns the owning run id.
func (l *RunLog) RunID() string {
	return l.runID
}

// Append adds an event to the log and fans it out to live subscribers. It
// assigns the index, timestamp and a ULID event id. Appends after Close are
// dropped. The stamped event is returned.
func (l *RunLog) Append(evType EventType, message string, data *EventData) Event {
	if data == nil {
		data = &EventData{}
	}
	data.EventID = ulid.Make().String()

	l.mu.Lock()
	defer l.mu.Unlock()

	ev := Event{
		Index:     len(l.events),
		Type:      evType,
		RunID:     l.runID,
		Timestamp: time.Now().UTC().Format(time.RFC3339Nano),
		Message:   message,
		Data:      data,
	}
	if l.closed {
		return ev
	}
	l.events = append(l.events, ev)

	for id, ch := range l.subs {
		select {
		case ch <- ev:
		default:
			// Full buffer: the subscriber stopped reading. Drop it.
			delete(l.subs, id)
			close(ch)
		}
	}
	return ev
}

// Close marks the log terminal and closes all live subscriber channels.
// Already-buffered events remain readable until each channel drains.
func (l *RunLog) Close() {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.closed {
		return
	}
	l.closed = true
	for id, ch := range l.subs {
		delete(l.subs, id)
		close(ch)
	}
}

// Closed reports whether the log has reached its terminal event.
func (l *RunLog) Closed() bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.closed
}

// Len returns the number of appended events.
func (l *RunLog) Len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.events)
}

// Snapshot returns a copy of all events with index >= cursor and whether the
// log is already terminal.
func (l *RunLog) Snapshot(cursor int) ([]Event, bool) {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.sliceLocked(cursor), l.closed
}

// Subscribe returns the replay slice for the cursor plus a live channel
// registered under the same lock, so no event is lost or duplicated between
// replay and live delivery. The returned cancel func detaches the
// subscriber; it is safe to call more than once. When the log is already
// closed the live channel is returned closed.
func (l *RunLog) Subscribe(cursor int) (replay []Event, live <-chan Event, cancel func()) {
	l.mu.Lock()
	defer l.mu.Unlock()

	replay = l.sliceLocked(cursor)

	ch := make(chan Event, subscriberBuffer)
	if l.closed {
		close(ch)
		return replay, ch, func() {}
	}

	id := l.nextID
	l.nextID++
	l.subs[id] = ch

	cancel = func() {
		l.mu.Lock()
		defer l.mu.Unlock()
		if c, ok := l.subs[id]; ok {
			delete(l.subs, id)
			close(c)
		}
	}
	return replay, ch, cancel
}

func (l *RunLog) sliceLocked(cursor int) []Event {
	if cursor < 0 {
		cursor = 0
	}
	if cursor >= len(l.events) {
		return []Event{}
	}
	out := make([]Event, len(l.events)-cursor)
	copy(out, l.events[cursor:])
	return out
}
