package events

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBusDeliversToMatchingListeners(t *testing.T) {
	b := NewBus(8)
	var all, failures []Event
	b.Subscribe(nil, func(e Event) { all = append(all, e) })
	unsubscribe := b.Subscribe(NewFilter().WithErrorsOnly(), func(e Event) { failures = append(failures, e) })

	b.Publish(Event{Type: PluginLoaded, Plugin: "vfs"})
	b.Publish(Event{Type: PluginFailed, Plugin: "sound", Err: errors.New("no device")})
	require.Len(t, all, 2)
	require.Len(t, failures, 1)
	assert.Equal(t, "sound", failures[0].Plugin)
	assert.False(t, all[0].Time.IsZero())

	unsubscribe()
	unsubscribe()
	b.Publish(Event{Type: PluginFailed, Plugin: "x", Err: errors.New("boom")})
	assert.Len(t, failures, 1)
	assert.Len(t, all, 3)
}

func TestNilBusDropsEvents(t *testing.T) {
	var b *Bus
	assert.NotPanics(t, func() { b.Publish(Event{Type: PluginLoaded}) })
}

func TestFilter(t *testing.T) {
	f := NewFilter().WithType(PluginLoaded).WithType(PluginUnloaded).WithPlugin("vfs")
	assert.True(t, f.Match(Event{Type: PluginLoaded, Plugin: "vfs"}))
	assert.False(t, f.Match(Event{Type: PluginFailed, Plugin: "vfs"}))
	assert.False(t, f.Match(Event{Type: PluginLoaded, Plugin: "engine"}))
	var none *Filter
	assert.True(t, none.Match(Event{}))
}

func TestHistoryKeepsMostRecent(t *testing.T) {
	b := NewBus(3)
	for _, p := range []string{"a", "b", "c", "d"} {
		b.Publish(Event{Type: PluginLoaded, Plugin: p})
	}
	h := b.History()
	assert.Equal(t, 3, h.Len())

	var names []string
	for _, e := range h.Query(nil) {
		names = append(names, e.Plugin)
	}
	assert.Equal(t, []string{"b", "c", "d"}, names)
	assert.Len(t, h.Query(NewFilter().WithPlugin("c")), 1)

	h.Clear()
	assert.Zero(t, h.Len())
	assert.Nil(t, NewBus(0).History())
}

func TestTypeString(t *testing.T) {
	assert.Equal(t, "requested", PluginRequested.String())
	assert.Equal(t, "failed", PluginFailed.String())
	assert.Equal(t, "unknown", Type(9).String())
}
