package object

import (
	"fmt"
	"sync/atomic"

	"github.com/go-lynx/scf/capability"
)

// Handle is a strong reference to an object viewed through one capability.
// It must be released exactly once; the value must not be used afterwards.
type Handle struct {
	obj      Object
	desc     capability.Descriptor
	value    any
	released atomic.Bool
}

// Descriptor returns the implemented descriptor the handle was resolved to.
func (h *Handle) Descriptor() capability.Descriptor {
	return h.desc
}

// Object returns the referenced object.
func (h *Handle) Object() Object {
	return h.obj
}

// Value returns the capability view.
func (h *Handle) Value() any {
	return h.value
}

// Released reports whether Release has been called.
func (h *Handle) Released() bool {
	return h.released.Load()
}

// Release drops the reference held by the handle.
func (h *Handle) Release() error {
	if h == nil {
		return nil
	}
	if !h.released.CompareAndSwap(false, true) {
		return fmt.Errorf("%w: handle %s already released", ErrInvalidRelease, h.desc)
	}
	return h.obj.Release()
}

// As returns the handle's view as T.
func As[T any](h *Handle) (T, bool) {
	var zero T
	if h == nil || h.Released() {
		return zero, false
	}
	v, ok := h.value.(T)
	return v, ok
}

// QueryAs queries o for d and returns the view as T together with the handle
// that keeps it alive. If the view is not a T the reference is dropped again
// and ErrCapabilityNotFound is returned.
func QueryAs[T any](o Object, d capability.Descriptor) (T, *Handle, error) {
	var zero T
	h, err := o.Query(d)
	if err != nil {
		return zero, nil, err
	}
	v, ok := h.value.(T)
	if !ok {
		_ = h.Release()
		return zero, nil, fmt.Errorf("%w: %s view is %T, not %T", ErrCapabilityNotFound, d, h.value, zero)
	}
	return v, h, nil
}
