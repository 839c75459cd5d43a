// Package object implements intrusive reference-counted objects that can be
// queried for capabilities.
//
// Ownership convention: a new object starts with a reference count of one,
// owned by its creator. Every AddRef and every successful Query adds one
// reference, every Release removes one. When the count reaches zero the
// object is destroyed synchronously: its cleanup functions run in reverse
// registration order and the objects it owns are released.
//
// Holders other than the creator (a registry, an owning object) always take
// their own reference; nothing adopts the creator's reference implicitly.
//
// Ownership edges declared with Own are strong and must form a forest; an
// edge that would close a cycle is rejected. Back references should use
// WeakRef, which never keeps its target alive.
package object

import (
	"fmt"
	"sort"
	"sync"

	"github.com/google/uuid"

	"github.com/go-lynx/scf/capability"
	"github.com/go-lynx/scf/log"
)

// Object is a reference-counted unit of ownership.
type Object interface {
	// ID returns the unique instance id of the object.
	ID() string
	// AddRef adds a reference.
	AddRef()
	// Release drops a reference and destroys the object when none remain.
	Release() error
	// RefCount returns the number of live references.
	RefCount() int
	// Query returns a new reference viewed through the best implemented
	// capability matching d.
	Query(d capability.Descriptor) (*Handle, error)
	// Capabilities lists the implemented capability descriptors.
	Capabilities() []capability.Descriptor
	// Destroyed reports whether the count has reached zero.
	Destroyed() bool
}

// Owner is implemented by objects that hold strong references to others.
type Owner interface {
	Owned() []Object
}

type view struct {
	desc  capability.Descriptor
	value any
}

// Base is the embeddable Object implementation.
type Base struct {
	id   string
	self Object

	mu        sync.Mutex
	refs      int
	destroyed bool
	views     []view
	cleanups  []func()
	owned     []Object
}

// Option configures a Base.
type Option func(*Base)

// WithID sets the instance id instead of a random UUID.
func WithID(id string) Option {
	return func(b *Base) {
		if id != "" {
			b.id = id
		}
	}
}

// New returns a Base holding one reference for the caller.
func New(opts ...Option) *Base {
	b := &Base{
		id:   uuid.NewString(),
		refs: 1,
	}
	for _, o := range opts {
		o(b)
	}
	return b
}

// SetSelf makes handles returned by Query refer to o, the type embedding
// b, instead of b itself. Types that embed *Base call it once after
// construction so that Handle.Object yields the outer object.
func (b *Base) SetSelf(o Object) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.self = o
}

func (b *Base) outer() Object {
	if b.self != nil {
		return b.self
	}
	return b
}

// ID implements Object.
func (b *Base) ID() string {
	return b.id
}

// Implement declares that the object can be viewed as capability d through
// value. Several versions of one capability name may be implemented.
func (b *Base) Implement(d capability.Descriptor, value any) error {
	if err := d.Validate(); err != nil {
		return err
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.destroyed {
		return ErrDestroyed
	}
	for i, v := range b.views {
		if v.desc == d {
			b.views[i].value = value
			return nil
		}
	}
	b.views = append(b.views, view{desc: d, value: value})
	return nil
}

// OnDestroy registers fn to run when the object is destroyed.
func (b *Base) OnDestroy(fn func()) {
	if fn == nil {
		return
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.destroyed {
		return
	}
	b.cleanups = append(b.cleanups, fn)
}

// Own takes a strong reference to child, released when b is destroyed.
func (b *Base) Own(child Object) error {
	if child == nil {
		return fmt.Errorf("own: nil child")
	}
	if child.Destroyed() {
		return ErrDestroyed
	}
	if reaches(child, b.id, map[string]bool{}) {
		return fmt.Errorf("%w: %s already owns %s", ErrOwnershipCycle, child.ID(), b.id)
	}
	b.mu.Lock()
	if b.destroyed {
		b.mu.Unlock()
		return ErrDestroyed
	}
	b.owned = append(b.owned, child)
	b.mu.Unlock()
	child.AddRef()
	return nil
}

// reaches reports whether target is o or is strongly owned, directly or
// transitively, by o.
func reaches(o Object, target string, seen map[string]bool) bool {
	if o.ID() == target {
		return true
	}
	if seen[o.ID()] {
		return false
	}
	seen[o.ID()] = true
	owner, ok := o.(Owner)
	if !ok {
		return false
	}
	for _, c := range owner.Owned() {
		if reaches(c, target, seen) {
			return true
		}
	}
	return false
}

// Owned implements Owner.
func (b *Base) Owned() []Object {
	b.mu.Lock()
	defer b.mu.Unlock()
	out := make([]Object, len(b.owned))
	copy(out, b.owned)
	return out
}

// AddRef implements Object. Adding a reference to a destroyed object is
// ignored and logged.
func (b *Base) AddRef() {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.destroyed {
		log.Warnf("object %s: AddRef after destruction ignored", b.id)
		return
	}
	b.refs++
}

// Release implements Object.
func (b *Base) Release() error {
	b.mu.Lock()
	if b.refs <= 0 {
		b.mu.Unlock()
		log.Warnf("object %s: release without matching reference", b.id)
		return fmt.Errorf("%w: object %s", ErrInvalidRelease, b.id)
	}
	b.refs--
	if b.refs > 0 {
		b.mu.Unlock()
		return nil
	}
	b.destroyed = true
	cleanups, owned := b.cleanups, b.owned
	b.cleanups, b.owned, b.views, b.self = nil, nil, nil, nil
	b.mu.Unlock()

	log.Debugf("object %s destroyed", b.id)
	for i := len(cleanups) - 1; i >= 0; i-- {
		cleanups[i]()
	}
	for i := len(owned) - 1; i >= 0; i-- {
		if err := owned[i].Release(); err != nil {
			log.Warnf("object %s: releasing owned %s: %v", b.id, owned[i].ID(), err)
		}
	}
	return nil
}

// RefCount implements Object.
func (b *Base) RefCount() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.refs
}

// Destroyed implements Object.
func (b *Base) Destroyed() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.destroyed
}

// Query implements Object. When several implemented versions match d the
// newest one is returned. A failed query has no side effects.
func (b *Base) Query(d capability.Descriptor) (*Handle, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.destroyed {
		return nil, fmt.Errorf("%w: query %s on %s", ErrDestroyed, d, b.id)
	}
	best := -1
	for i, v := range b.views {
		if !capability.Matches(d, v.desc) {
			continue
		}
		if best < 0 || capability.Compare(v.desc, b.views[best].desc) > 0 {
			best = i
		}
	}
	if best < 0 {
		return nil, fmt.Errorf("%w: %s on object %s", ErrCapabilityNotFound, d, b.id)
	}
	b.refs++
	return &Handle{obj: b.outer(), desc: b.views[best].desc, value: b.views[best].value}, nil
}

// Capabilities implements Object. The result is sorted by name then version.
func (b *Base) Capabilities() []capability.Descriptor {
	b.mu.Lock()
	out := make([]capability.Descriptor, 0, len(b.views))
	for _, v := range b.views {
		out = append(out, v.desc)
	}
	b.mu.Unlock()
	sort.Slice(out, func(i, j int) bool {
		if out[i].Name != out[j].Name {
			return out[i].Name < out[j].Name
		}
		return capability.Compare(out[i], out[j]) < 0
	})
	return out
}

// Weak returns a reference to b that does not keep it alive.
func (b *Base) Weak() WeakRef {
	return WeakRef{b: b}
}

// WeakRef is a non-owning reference. Use it for back references so that
// ownership stays acyclic.
type WeakRef struct {
	b *Base
}

// Upgrade queries the target for d, failing with ErrDestroyed once the
// target is gone.
func (w WeakRef) Upgrade(d capability.Descriptor) (*Handle, error) {
	if w.b == nil {
		return nil, ErrDestroyed
	}
	return w.b.Query(d)
}

// Alive reports whether the target has not been destroyed yet.
func (w WeakRef) Alive() bool {
	return w.b != nil && !w.b.Destroyed()
}
