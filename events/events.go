// Package events publishes plugin lifecycle events to in-process listeners.
package events

import (
	"sync"
	"time"
)

// Type identifies a lifecycle event.
type Type int

const (
	// PluginRequested is published when a plugin is queued for loading.
	PluginRequested Type = iota
	// PluginLoaded is published after a plugin's capabilities are registered.
	PluginLoaded
	// PluginFailed is published when a plugin fails to load.
	PluginFailed
	// PluginUnloaded is published after a plugin has been unloaded.
	PluginUnloaded
)

func (t Type) String() string {
	switch t {
	case PluginRequested:
		return "requested"
	case PluginLoaded:
		return "loaded"
	case PluginFailed:
		return "failed"
	case PluginUnloaded:
		return "unloaded"
	}
	return "unknown"
}

// Event describes one change in a plugin's life.
type Event struct {
	Type   Type
	Plugin string
	Tag    string
	// Err is set for PluginFailed.
	Err  error
	Time time.Time
}

// Listener receives events synchronously on the publishing goroutine.
// Listeners must not block.
type Listener func(Event)

type subscription struct {
	id     uint64
	filter *Filter
	fn     Listener
}

// Bus fans events out to listeners and keeps a bounded history.
type Bus struct {
	mu      sync.RWMutex
	subs    []subscription
	nextID  uint64
	history *History
}

// NewBus returns a bus keeping the last historySize events. A size of zero
// disables history.
func NewBus(historySize int) *Bus {
	b := &Bus{}
	if historySize > 0 {
		b.history = NewHistory(historySize)
	}
	return b
}

// Subscribe registers fn for the events matched by filter (all events when
// filter is nil) and returns a function that removes the subscription.
func (b *Bus) Subscribe(filter *Filter, fn Listener) (unsubscribe func()) {
	b.mu.Lock()
	b.nextID++
	id := b.nextID
	b.subs = append(b.subs, subscription{id: id, filter: filter, fn: fn})
	b.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			b.mu.Lock()
			defer b.mu.Unlock()
			for i, s := range b.subs {
				if s.id == id {
					b.subs = append(b.subs[:i:i], b.subs[i+1:]...)
					return
				}
			}
		})
	}
}

// Publish records e and delivers it to matching listeners. A nil bus
// drops events.
func (b *Bus) Publish(e Event) {
	if b == nil {
		return
	}
	if e.Time.IsZero() {
		e.Time = time.Now()
	}
	if b.history != nil {
		b.history.Add(e)
	}
	b.mu.RLock()
	subs := b.subs
	b.mu.RUnlock()
	for _, s := range subs {
		if s.filter.Match(e) {
			s.fn(e)
		}
	}
}

// History returns the bus history, nil when disabled.
func (b *Bus) History() *History {
	return b.history
}
