package events

import "sync"

// History is a fixed size ring of the most recent events.
type History struct {
	mu     sync.RWMutex
	events []Event
	next   int
	full   bool
}

// NewHistory returns a history holding up to size events.
func NewHistory(size int) *History {
	if size <= 0 {
		size = 1
	}
	return &History{events: make([]Event, size)}
}

// Add appends e, dropping the oldest event when full.
func (h *History) Add(e Event) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.events[h.next] = e
	h.next = (h.next + 1) % len(h.events)
	if h.next == 0 {
		h.full = true
	}
}

// Len returns the number of stored events.
func (h *History) Len() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	if h.full {
		return len(h.events)
	}
	return h.next
}

// Query returns the stored events matched by f, oldest first.
func (h *History) Query(f *Filter) []Event {
	h.mu.RLock()
	defer h.mu.RUnlock()
	var ordered []Event
	if h.full {
		ordered = append(ordered, h.events[h.next:]...)
	}
	ordered = append(ordered, h.events[:h.next]...)

	out := ordered[:0]
	for _, e := range ordered {
		if f.Match(e) {
			out = append(out, e)
		}
	}
	return out
}

// Clear drops all events.
func (h *History) Clear() {
	h.mu.Lock()
	defer h.mu.Unlock()
	for i := range h.events {
		h.events[i] = Event{}
	}
	h.next, h.full = 0, false
}
