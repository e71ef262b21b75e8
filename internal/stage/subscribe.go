package stage

import "sync"

// EventKind names the part of the state a mutation touched.
type EventKind string

const (
	EventReading    EventKind = "reading"
	EventMood       EventKind = "mood"
	EventRules      EventKind = "rules"
	EventConnection EventKind = "connection"
	EventSystem     EventKind = "system"
	EventControls   EventKind = "controls"
)

// Event is delivered to subscribers after every mutation.
type Event struct {
	Kind     EventKind `json:"kind"`
	Version  uint64    `json:"version"`
	Snapshot Snapshot  `json:"snapshot"`
}

// subscriberBuffer is how many events a slow subscriber may lag before
// events are dropped for it.
const subscriberBuffer = 32

type hub struct {
	mu      sync.Mutex
	next    int
	subs    map[int]chan Event
	dropped map[int]uint64
}

// publishLocked never blocks the writer: a full subscriber misses the
// event and can re-read the latest Snapshot. Caller holds h.mu.
func (h *hub) publishLocked(ev Event) {
	for id, ch := range h.subs {
		select {
		case ch <- ev:
		default:
			h.dropped[id]++
		}
	}
}

// Subscribe returns a channel of state events and a cancel func that closes
// it. Cancel is safe to call more than once.
func (s *Store) Subscribe() (<-chan Event, func()) {
	h := &s.hub
	ch := make(chan Event, subscriberBuffer)

	h.mu.Lock()
	id := h.next
	h.next++
	h.subs[id] = ch
	h.mu.Unlock()

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			h.mu.Lock()
			delete(h.subs, id)
			delete(h.dropped, id)
			h.mu.Unlock()
			close(ch)
		})
	}
}

// Subscribers returns the number of live subscriptions.
func (s *Store) Subscribers() int {
	s.hub.mu.Lock()
	defer s.hub.mu.Unlock()
	return len(s.hub.subs)
}
