package scf

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/go-lynx/scf/capability"
	"github.com/go-lynx/scf/events"
	"github.com/go-lynx/scf/log"
	"github.com/go-lynx/scf/module"
	"github.com/go-lynx/scf/object"
)

// LoadPlugins loads every queued plugin. Plugins are processed in request
// order, reordered only where declared dependencies require it. A plugin
// that fails is marked Failed with its error and loading carries on with
// the next one. The result is nil only if every plugin loaded; otherwise it
// joins the per-plugin errors.
//
// Requests made while loading, e.g. from an Initializer, are loaded in the
// same call. If ctx is cancelled the remaining plugins stay queued.
func (l *PluginLoader) LoadPlugins(ctx context.Context) error {
	l.opMu.Lock()
	defer l.opMu.Unlock()

	ctx, span := l.tracer.Start(ctx, "scf.LoadPlugins")
	defer span.End()
	log.DebugfCtx(ctx, "loading %d queued plugins", len(l.Pending()))

	var errs []error
	loaded := 0
	for {
		batch := l.takeQueue()
		if len(batch) == 0 {
			break
		}
		n, err := l.loadBatch(ctx, batch)
		loaded += n
		if err != nil {
			errs = append(errs, err)
		}
		if ctx.Err() != nil {
			break
		}
	}
	l.metrics.PluginStates(l.stateCounts())

	span.SetAttributes(attribute.Int("scf.plugins.loaded", loaded))
	if err := errors.Join(errs...); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "some plugins failed to load")
		return err
	}
	return nil
}

func (l *PluginLoader) takeQueue() []*pluginRecord {
	l.mu.Lock()
	defer l.mu.Unlock()
	batch := make([]*pluginRecord, 0, len(l.queue))
	for _, name := range l.queue {
		if r := l.plugins[name]; r != nil {
			r.queued = false
			batch = append(batch, r)
		}
	}
	l.queue = nil
	return batch
}

func (l *PluginLoader) requeue(rs []*pluginRecord) {
	l.mu.Lock()
	defer l.mu.Unlock()
	names := make([]string, 0, len(rs)+len(l.queue))
	for _, r := range rs {
		r.queued = true
		r.state = StateUnloaded
		names = append(names, r.name)
	}
	l.queue = append(names, l.queue...)
}

func (l *PluginLoader) loadBatch(ctx context.Context, batch []*pluginRecord) (int, error) {
	var errs []error
	byName := make(map[string]*pluginRecord, len(batch))
	names := make([]string, 0, len(batch))
	deps := make(map[string][]string, len(batch))

	// Open every module first: dependencies are declared by the modules.
	for _, r := range batch {
		byName[r.name] = r
		names = append(names, r.name)
		if err := l.open(ctx, r); err != nil {
			errs = append(errs, err)
			continue
		}
		deps[r.name] = r.deps
	}

	edges := batchEdges(names, deps)
	order, cycles := sortByDependencies(names, edges)
	log.DebugfCtx(ctx, "plugin load order: %v", order)

	loaded := 0
	for i, name := range order {
		if err := ctx.Err(); err != nil {
			rest := make([]*pluginRecord, 0, len(order)-i)
			for _, n := range order[i:] {
				r := byName[n]
				if r.state == StateFailed {
					continue
				}
				l.closeModule(r)
				rest = append(rest, r)
			}
			l.requeue(rest)
			log.WarnfCtx(ctx, "plugin loading interrupted, %d plugins left queued: %v", len(rest), err)
			errs = append(errs, fmt.Errorf("load plugins: %w", err))
			break
		}
		r := byName[name]
		if r.state == StateFailed {
			continue
		}
		if loop, ok := cycles[name]; ok {
			errs = append(errs, l.fail(ctx, r, OpDependency, fmt.Errorf("%w: %v", ErrDependencyCycle, loop)))
			continue
		}
		if dep := l.failedDependency(edges[name], byName); dep != "" {
			errs = append(errs, l.fail(ctx, r, OpDependency, fmt.Errorf("%w: %s", ErrDependencyFailed, dep)))
			continue
		}
		if err := l.load(ctx, r); err != nil {
			errs = append(errs, err)
			continue
		}
		loaded++
	}
	return loaded, errors.Join(errs...)
}

func (l *PluginLoader) failedDependency(deps []string, byName map[string]*pluginRecord) string {
	l.mu.Lock()
	defer l.mu.Unlock()
	for _, d := range deps {
		if r := byName[d]; r != nil && r.state == StateFailed {
			return d
		}
	}
	return ""
}

// open moves r to Loading and opens its module.
func (l *PluginLoader) open(ctx context.Context, r *pluginRecord) error {
	l.setState(r, StateLoading)
	m, err := l.modules.Open(r.name)
	if err != nil {
		return l.fail(ctx, r, OpOpen, err)
	}
	deps, err := module.ResolveDependencies(m)
	if err != nil {
		if cerr := m.Close(); cerr != nil {
			log.WarnfCtx(ctx, "closing module %s: %v", r.name, cerr)
		}
		return l.fail(ctx, r, OpResolve, err)
	}
	l.mu.Lock()
	r.mod = m
	r.deps = deps
	l.mu.Unlock()
	return nil
}

func (l *PluginLoader) load(ctx context.Context, r *pluginRecord) (err error) {
	start := l.now()
	ctx, span := l.tracer.Start(ctx, "scf.LoadPlugin", trace.WithAttributes(
		attribute.String("scf.plugin.name", r.name),
		attribute.String("scf.plugin.tag", r.tag),
	))
	defer func() {
		l.metrics.PluginLoaded(r.name, err == nil, l.now().Sub(start))
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
		}
		span.End()
	}()

	create, err := module.ResolveFactory(r.mod)
	if err != nil {
		return l.fail(ctx, r, OpResolve, err)
	}
	var root object.Object
	err = safeCall(r.name, OpCreate, func() (cerr error) {
		root, cerr = create()
		return cerr
	})
	if err == nil && root == nil {
		err = errors.New("entry point returned no object")
	}
	if err != nil {
		return l.fail(ctx, r, OpCreate, err)
	}

	if in, ok := root.(Initializer); ok {
		err := safeCall(r.name, OpInitialize, func() error { return in.Initialize(ctx, l.reg) })
		if err != nil {
			return l.abort(ctx, r, root, OpInitialize, err)
		}
	}

	for _, want := range r.expect {
		h, err := root.Query(want)
		if err != nil {
			return l.abort(ctx, r, root, OpVerify, err)
		}
		if err := h.Release(); err != nil {
			log.WarnfCtx(ctx, "plugin %s: releasing %s: %v", r.name, want, err)
		}
	}

	caps := publishable(root.Capabilities())
	registered := make([]capability.Descriptor, 0, len(caps))
	for _, d := range caps {
		if err := l.reg.Register(d, r.tag, root); err != nil {
			return l.abort(ctx, r, root, OpRegister, err)
		}
		registered = append(registered, d)
	}

	l.mu.Lock()
	r.root = root
	r.caps = registered
	r.state = StateLoaded
	r.err = nil
	r.loadedAt = l.now()
	l.loadOrder = append(l.loadOrder, r.name)
	l.mu.Unlock()

	l.publish(events.PluginLoaded, r.name, r.tag, nil)
	span.SetAttributes(attribute.Int("scf.plugin.capabilities", len(registered)))
	log.InfofCtx(ctx, "plugin %s loaded, tag=%q capabilities=%v", r.name, r.tag, registered)
	return nil
}

// publishable keeps the newest descriptor of every capability name, since
// the registry holds one entry per name and tag. Views of older major
// versions stay reachable through QueryPlugin.
func publishable(caps []capability.Descriptor) []capability.Descriptor {
	best := make(map[string]capability.Descriptor, len(caps))
	var names []string
	for _, d := range caps {
		cur, ok := best[d.Name]
		if !ok {
			names = append(names, d.Name)
		}
		if !ok || capability.Compare(d, cur) > 0 {
			best[d.Name] = d
		}
	}
	sort.Strings(names)
	out := make([]capability.Descriptor, 0, len(names))
	for _, n := range names {
		out = append(out, best[n])
	}
	return out
}

func (l *PluginLoader) setState(r *pluginRecord, s PluginState) {
	l.mu.Lock()
	r.state = s
	l.mu.Unlock()
}

// abort undoes a load that already created root: every registry entry
// still held by root is removed, including ones Initialize made itself,
// and the creator's reference is released.
func (l *PluginLoader) abort(ctx context.Context, r *pluginRecord, root object.Object, op string, err error) error {
	if n := l.reg.UnregisterAllOf(root); n > 0 {
		log.DebugfCtx(ctx, "plugin %s: rolled back %d registry entries", r.name, n)
	}
	l.releaseRoot(r.name, root)
	return l.fail(ctx, r, op, err)
}

// fail records err on r, drops its module and returns the recorded error.
// Once a root object exists callers go through abort instead.
func (l *PluginLoader) fail(ctx context.Context, r *pluginRecord, op string, err error) error {
	perr := newPluginError(r.name, op, err)
	l.closeModule(r)
	l.mu.Lock()
	r.state = StateFailed
	r.err = perr
	r.root = nil
	r.caps = nil
	l.mu.Unlock()
	log.ErrorfCtx(ctx, "%v", perr)
	l.publish(events.PluginFailed, r.name, r.tag, perr)
	return perr
}

func (l *PluginLoader) closeModule(r *pluginRecord) {
	l.mu.Lock()
	m := r.mod
	r.mod = nil
	l.mu.Unlock()
	if m == nil {
		return
	}
	if err := m.Close(); err != nil {
		log.Warnf("closing module %s: %v", r.name, err)
	}
}

func (l *PluginLoader) releaseRoot(name string, root object.Object) {
	if err := root.Release(); err != nil {
		log.Warnf("plugin %s: releasing root object: %v", name, err)
	}
}

// UnloadPlugin removes every registry entry still held by a loaded
// plugin's root object, releases the root and closes its module. It
// reports whether the plugin was loaded.
func (l *PluginLoader) UnloadPlugin(name string) bool {
	l.opMu.Lock()
	defer l.opMu.Unlock()
	ok := l.unload(name)
	if ok {
		l.metrics.PluginStates(l.stateCounts())
	}
	return ok
}

// UnloadAll unloads every loaded plugin in reverse load order and returns
// how many were unloaded.
func (l *PluginLoader) UnloadAll() int {
	l.opMu.Lock()
	defer l.opMu.Unlock()

	l.mu.Lock()
	order := append([]string(nil), l.loadOrder...)
	l.mu.Unlock()

	n := 0
	for i := len(order) - 1; i >= 0; i-- {
		if l.unload(order[i]) {
			n++
		}
	}
	if n > 0 {
		l.metrics.PluginStates(l.stateCounts())
	}
	return n
}

func (l *PluginLoader) unload(name string) bool {
	l.mu.Lock()
	r, ok := l.plugins[name]
	if !ok || r.state != StateLoaded {
		l.mu.Unlock()
		return false
	}
	root, tag, m := r.root, r.tag, r.mod
	r.root, r.caps, r.mod = nil, nil, nil
	r.state = StateUnloaded
	r.loadedAt = time.Time{}
	for i, n := range l.loadOrder {
		if n == name {
			l.loadOrder = append(l.loadOrder[:i], l.loadOrder[i+1:]...)
			break
		}
	}
	l.mu.Unlock()

	n := l.reg.UnregisterAllOf(root)
	log.Debugf("plugin %s: %d registry entries removed", name, n)
	l.releaseRoot(name, root)
	if m != nil {
		if err := m.Close(); err != nil {
			log.Warnf("closing module %s: %v", name, err)
		}
	}
	l.metrics.PluginUnloaded()
	l.publish(events.PluginUnloaded, name, tag, nil)
	log.Infof("plugin %s unloaded", name)
	return true
}
