package scf

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"

	"github.com/go-lynx/scf/capability"
	"github.com/go-lynx/scf/events"
	"github.com/go-lynx/scf/metrics"
	"github.com/go-lynx/scf/module"
	"github.com/go-lynx/scf/object"
	"github.com/go-lynx/scf/registry"
)

// TracerName is the instrumentation name of loader spans.
const TracerName = "github.com/go-lynx/scf"

// Initializer is implemented by root objects that need the registry before
// their capabilities are published, e.g. to look up the capabilities of
// plugins they depend on. A non-nil error fails the load.
type Initializer interface {
	Initialize(ctx context.Context, reg *registry.Registry) error
}

// PluginInfo is a snapshot of one plugin record.
type PluginInfo struct {
	Name  string
	Tag   string
	State PluginState
	// Queued is set while the plugin waits for the next LoadPlugins.
	Queued       bool
	Expect       []capability.Descriptor
	Dependencies []string
	// Capabilities are the descriptors registered on behalf of the plugin.
	Capabilities []capability.Descriptor
	RootID       string
	Err          error
	RequestedAt  time.Time
	LoadedAt     time.Time
}

type pluginRecord struct {
	name        string
	tag         string
	expect      []capability.Descriptor
	state       PluginState
	queued      bool
	deps        []string
	caps        []capability.Descriptor
	mod         module.Module
	root        object.Object
	err         error
	requestedAt time.Time
	loadedAt    time.Time
}

func (r *pluginRecord) info() PluginInfo {
	pi := PluginInfo{
		Name:         r.name,
		Tag:          r.tag,
		State:        r.state,
		Queued:       r.queued,
		Expect:       append([]capability.Descriptor(nil), r.expect...),
		Dependencies: append([]string(nil), r.deps...),
		Capabilities: append([]capability.Descriptor(nil), r.caps...),
		Err:          r.err,
		RequestedAt:  r.requestedAt,
		LoadedAt:     r.loadedAt,
	}
	if r.root != nil {
		pi.RootID = r.root.ID()
	}
	return pi
}

// PluginLoader turns plugin requests into registered capabilities.
//
// Requests are queued by RequestPlugin and processed by LoadPlugins. The
// loader owns the module and the root object of every loaded plugin and
// gives both up on UnloadPlugin.
type PluginLoader struct {
	reg     *registry.Registry
	modules module.Loader
	metrics *metrics.Metrics
	events  *events.Bus
	tracer  trace.Tracer
	now     func() time.Time

	// opMu serializes LoadPlugins and unloads; mu guards the records.
	opMu      sync.Mutex
	mu        sync.Mutex
	plugins   map[string]*pluginRecord
	queue     []string
	loadOrder []string
}

// LoaderOption configures a PluginLoader.
type LoaderOption func(*PluginLoader)

// WithMetrics reports plugin loads to m.
func WithMetrics(m *metrics.Metrics) LoaderOption {
	return func(l *PluginLoader) {
		l.metrics = m
	}
}

// WithEvents publishes plugin lifecycle events to bus.
func WithEvents(bus *events.Bus) LoaderOption {
	return func(l *PluginLoader) {
		l.events = bus
	}
}

// WithTracer sets the tracer used for load spans. The default is the
// global tracer provider's TracerName tracer.
func WithTracer(t trace.Tracer) LoaderOption {
	return func(l *PluginLoader) {
		l.tracer = t
	}
}

// NewPluginLoader returns a loader that registers into reg and opens
// plugins through modules.
func NewPluginLoader(reg *registry.Registry, modules module.Loader, opts ...LoaderOption) *PluginLoader {
	l := &PluginLoader{
		reg:     reg,
		modules: modules,
		now:     time.Now,
		plugins: make(map[string]*pluginRecord),
	}
	for _, o := range opts {
		o(l)
	}
	if l.tracer == nil {
		l.tracer = otel.Tracer(TracerName)
	}
	return l
}

// Registry returns the registry plugins are published to.
func (l *PluginLoader) Registry() *registry.Registry {
	return l.reg
}

// RequestOption configures a plugin request.
type RequestOption func(*pluginRecord)

// WithTag registers the plugin's capabilities under tag.
func WithTag(tag string) RequestOption {
	return func(r *pluginRecord) {
		r.tag = tag
	}
}

// Expect makes the load fail unless the plugin's root object provides
// every descriptor in ds.
func Expect(ds ...capability.Descriptor) RequestOption {
	return func(r *pluginRecord) {
		r.expect = append(r.expect, ds...)
	}
}

// ParseRequest splits a "name:tag" plugin request. The tag is optional.
func ParseRequest(s string) (name, tag string, err error) {
	name, tag, _ = strings.Cut(strings.TrimSpace(s), ":")
	name, tag = strings.TrimSpace(name), strings.TrimSpace(tag)
	if name == "" {
		return "", "", fmt.Errorf("invalid plugin request %q: empty name", s)
	}
	return name, tag, nil
}

// RequestPlugin queues name for the next LoadPlugins. Requesting a plugin
// that is already queued, loading or loaded does nothing. A failed or
// unloaded plugin is queued again with the new options.
func (l *PluginLoader) RequestPlugin(name string, opts ...RequestOption) error {
	if strings.TrimSpace(name) == "" {
		return errors.New("request plugin: empty name")
	}
	l.mu.Lock()
	if r, ok := l.plugins[name]; ok {
		if r.queued || r.state == StateLoading || r.state == StateLoaded {
			l.mu.Unlock()
			return nil
		}
	}
	r := &pluginRecord{name: name, state: StateUnloaded, queued: true, requestedAt: l.now()}
	for _, o := range opts {
		o(r)
	}
	l.plugins[name] = r
	l.queue = append(l.queue, name)
	l.mu.Unlock()

	l.publish(events.PluginRequested, r.name, r.tag, nil)
	return nil
}

// publish must be called without mu held; listeners may call back into the
// loader.
func (l *PluginLoader) publish(t events.Type, name, tag string, err error) {
	l.events.Publish(events.Event{Type: t, Plugin: name, Tag: tag, Err: err, Time: l.now()})
}

// Plugin returns the record of name.
func (l *PluginLoader) Plugin(name string) (PluginInfo, bool) {
	l.mu.Lock()
	defer l.mu.Unlock()
	r, ok := l.plugins[name]
	if !ok {
		return PluginInfo{}, false
	}
	return r.info(), true
}

// Plugins returns every known plugin ordered by request time.
func (l *PluginLoader) Plugins() []PluginInfo {
	l.mu.Lock()
	out := make([]PluginInfo, 0, len(l.plugins))
	for _, r := range l.plugins {
		out = append(out, r.info())
	}
	l.mu.Unlock()
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].RequestedAt.Equal(out[j].RequestedAt) {
			return out[i].Name < out[j].Name
		}
		return out[i].RequestedAt.Before(out[j].RequestedAt)
	})
	return out
}

// Pending returns the names waiting for LoadPlugins in request order.
func (l *PluginLoader) Pending() []string {
	l.mu.Lock()
	defer l.mu.Unlock()
	return append([]string(nil), l.queue...)
}

// QueryPlugin queries the root object of a loaded plugin directly,
// bypassing the registry.
func (l *PluginLoader) QueryPlugin(name string, d capability.Descriptor) (*object.Handle, error) {
	l.mu.Lock()
	r, ok := l.plugins[name]
	if !ok {
		l.mu.Unlock()
		return nil, fmt.Errorf("%w: %s", ErrPluginNotFound, name)
	}
	if r.state != StateLoaded || r.root == nil {
		l.mu.Unlock()
		return nil, fmt.Errorf("%w: %s is %s", ErrPluginNotLoaded, name, r.state)
	}
	root := r.root
	// The loader's reference cannot drop while mu is held.
	h, err := root.Query(d)
	l.mu.Unlock()
	return h, err
}

func (l *PluginLoader) stateCounts() map[string]int {
	l.mu.Lock()
	defer l.mu.Unlock()
	counts := map[string]int{
		StateUnloaded.String(): 0,
		StateLoading.String():  0,
		StateLoaded.String():   0,
		StateFailed.String():   0,
	}
	for _, r := range l.plugins {
		counts[r.state.String()]++
	}
	return counts
}
