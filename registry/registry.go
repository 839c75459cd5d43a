// Package registry maps capability descriptors to provider objects.
//
// Entries are keyed by (capability name, tag). The registry holds its own
// strong reference to every provider and hands out new references through
// handles. Lookups that find nothing fail with ErrNotRegistered; a registry
// never returns a placeholder.
//
// A Registry is safe for concurrent use. Lookups share a read lock and
// mutations take the write lock. Provider references are always released
// after the lock is dropped, so destructors may call back into the registry.
package registry

import (
	"errors"
	"fmt"
	"sort"
	"sync"

	"github.com/go-lynx/scf/capability"
	"github.com/go-lynx/scf/log"
	"github.com/go-lynx/scf/metrics"
	"github.com/go-lynx/scf/object"
)

// ErrNotRegistered is returned by lookups that find no matching provider.
// It wraps object.ErrCapabilityNotFound.
var ErrNotRegistered = fmt.Errorf("%w: no provider registered", object.ErrCapabilityNotFound)

type key struct {
	name string
	tag  string
}

type entry struct {
	desc capability.Descriptor
	tag  string
	obj  object.Object
	seq  uint64
}

// Entry is a snapshot of one registration.
type Entry struct {
	Descriptor capability.Descriptor
	Tag        string
	ObjectID   string
	Object     object.Object
}

// Registry is an object registry instance.
type Registry struct {
	mu      sync.RWMutex
	entries map[key]*entry
	seq     uint64
	metrics *metrics.Metrics
}

// Option configures a Registry.
type Option func(*Registry)

// WithMetrics reports registry activity to m.
func WithMetrics(m *metrics.Metrics) Option {
	return func(r *Registry) {
		r.metrics = m
	}
}

// New returns an empty registry.
func New(opts ...Option) *Registry {
	r := &Registry{entries: make(map[key]*entry)}
	for _, o := range opts {
		o(r)
	}
	return r
}

// Register stores obj as the provider of d under tag, taking a new
// reference to it. obj must be queryable for d. A provider already stored
// under (d.Name, tag) is replaced and its registry reference released.
func (r *Registry) Register(d capability.Descriptor, tag string, obj object.Object) error {
	if err := d.Validate(); err != nil {
		return err
	}
	if obj == nil {
		return errors.New("register: nil provider")
	}
	if obj.Destroyed() {
		return fmt.Errorf("register %s: %w", d, object.ErrDestroyed)
	}
	h, err := obj.Query(d)
	if err != nil {
		return fmt.Errorf("register %s tag=%q provider=%s: %w", d, tag, obj.ID(), err)
	}
	obj.AddRef()
	if err := h.Release(); err != nil {
		log.Warnf("register %s: releasing check handle: %v", d, err)
	}

	r.mu.Lock()
	k := key{name: d.Name, tag: tag}
	old := r.entries[k]
	r.seq++
	r.entries[k] = &entry{desc: d, tag: tag, obj: obj, seq: r.seq}
	n := len(r.entries)
	r.mu.Unlock()

	r.metrics.Registered(old != nil, n)
	if old == nil {
		log.Debugf("registered %s tag=%q provider=%s", d, tag, obj.ID())
		return nil
	}
	log.Infof("replaced provider of %s tag=%q: %s -> %s", d.Name, tag, old.obj.ID(), obj.ID())
	if err := old.obj.Release(); err != nil {
		log.Warnf("releasing replaced provider %s: %v", old.obj.ID(), err)
	}
	return nil
}

// Unregister removes the provider stored under (d.Name, tag) and reports
// whether one existed.
func (r *Registry) Unregister(d capability.Descriptor, tag string) bool {
	return r.remove(key{name: d.Name, tag: tag}, nil)
}

// UnregisterObject is like Unregister but only removes the entry while it
// still holds obj.
func (r *Registry) UnregisterObject(d capability.Descriptor, tag string, obj object.Object) bool {
	if obj == nil {
		return false
	}
	return r.remove(key{name: d.Name, tag: tag}, obj)
}

func (r *Registry) remove(k key, only object.Object) bool {
	r.mu.Lock()
	e, ok := r.entries[k]
	if !ok || (only != nil && e.obj.ID() != only.ID()) {
		r.mu.Unlock()
		return false
	}
	delete(r.entries, k)
	n := len(r.entries)
	r.mu.Unlock()

	r.metrics.Unregistered(1, n)
	log.Debugf("unregistered %s tag=%q provider=%s", e.desc, e.tag, e.obj.ID())
	if err := e.obj.Release(); err != nil {
		log.Warnf("releasing unregistered provider %s: %v", e.obj.ID(), err)
	}
	return true
}

// Get returns a handle to a provider matching d under any tag. When several
// providers match, the most recently registered one that can serve d wins.
func (r *Registry) Get(d capability.Descriptor) (*object.Handle, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var candidates []*entry
	for k, e := range r.entries {
		if k.name == d.Name && capability.Matches(d, e.desc) {
			candidates = append(candidates, e)
		}
	}
	sort.Slice(candidates, func(i, j int) bool { return candidates[i].seq > candidates[j].seq })

	var errs []error
	for _, e := range candidates {
		h, err := e.obj.Query(d)
		if err == nil {
			r.metrics.Lookup(true)
			return h, nil
		}
		errs = append(errs, fmt.Errorf("provider %s: %w", e.obj.ID(), err))
	}
	r.metrics.Lookup(false)
	if len(errs) == 0 {
		return nil, fmt.Errorf("%w: %s", ErrNotRegistered, d)
	}
	return nil, fmt.Errorf("%w: %s: %w", ErrNotRegistered, d, errors.Join(errs...))
}

// GetTagged returns a handle to the provider of d registered under tag.
func (r *Registry) GetTagged(d capability.Descriptor, tag string) (*object.Handle, error) {
	r.mu.RLock()
	e := r.entries[key{name: d.Name, tag: tag}]
	if e != nil && !capability.Matches(d, e.desc) {
		e = nil
	}
	h, err := r.query(e, d)
	r.mu.RUnlock()
	if e == nil {
		err = fmt.Errorf("%w: %s tag=%q", ErrNotRegistered, d, tag)
	}
	return h, err
}

// query must be called with at least the read lock held so that e's
// registry reference cannot be dropped concurrently.
func (r *Registry) query(e *entry, d capability.Descriptor) (*object.Handle, error) {
	if e == nil {
		r.metrics.Lookup(false)
		return nil, fmt.Errorf("%w: %s", ErrNotRegistered, d)
	}
	h, err := e.obj.Query(d)
	r.metrics.Lookup(err == nil)
	if err != nil {
		return nil, fmt.Errorf("%w: provider %s of %s: %w", ErrNotRegistered, e.obj.ID(), d, err)
	}
	return h, nil
}

// UnregisterAllOf removes every entry held by obj and returns how many
// were removed.
func (r *Registry) UnregisterAllOf(obj object.Object) int {
	if obj == nil {
		return 0
	}
	r.mu.Lock()
	var removed []*entry
	for k, e := range r.entries {
		if e.obj.ID() == obj.ID() {
			removed = append(removed, e)
			delete(r.entries, k)
		}
	}
	n := len(r.entries)
	r.mu.Unlock()

	if len(removed) == 0 {
		return 0
	}
	sort.Slice(removed, func(i, j int) bool { return removed[i].seq > removed[j].seq })
	r.metrics.Unregistered(len(removed), n)
	for _, e := range removed {
		log.Debugf("unregistered %s tag=%q provider=%s", e.desc, e.tag, e.obj.ID())
		if err := e.obj.Release(); err != nil {
			log.Warnf("releasing unregistered provider %s: %v", e.obj.ID(), err)
		}
	}
	return len(removed)
}

// Clear releases every entry, most recently registered first. Calling it
// on an empty registry does nothing.
func (r *Registry) Clear() {
	r.mu.Lock()
	if len(r.entries) == 0 {
		r.mu.Unlock()
		return
	}
	all := make([]*entry, 0, len(r.entries))
	for _, e := range r.entries {
		all = append(all, e)
	}
	r.entries = make(map[key]*entry)
	r.mu.Unlock()

	sort.Slice(all, func(i, j int) bool { return all[i].seq > all[j].seq })
	r.metrics.Unregistered(len(all), 0)
	for _, e := range all {
		if err := e.obj.Release(); err != nil {
			log.Warnf("releasing provider %s of %s: %v", e.obj.ID(), e.desc, err)
		}
	}
	log.Debugf("registry cleared, %d providers released", len(all))
}

// Len returns the number of entries.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.entries)
}

// Entries returns a snapshot of all entries in registration order. The
// snapshot does not hold references.
func (r *Registry) Entries() []Entry {
	r.mu.RLock()
	all := make([]*entry, 0, len(r.entries))
	for _, e := range r.entries {
		all = append(all, e)
	}
	r.mu.RUnlock()

	sort.Slice(all, func(i, j int) bool { return all[i].seq < all[j].seq })
	out := make([]Entry, len(all))
	for i, e := range all {
		out[i] = Entry{Descriptor: e.desc, Tag: e.tag, ObjectID: e.obj.ID(), Object: e.obj}
	}
	return out
}
