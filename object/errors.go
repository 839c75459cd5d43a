package object

import "errors"

var (
	// ErrCapabilityNotFound indicates that an object does not implement a
	// capability matching the requested descriptor.
	ErrCapabilityNotFound = errors.New("capability not found")

	// ErrDestroyed indicates an operation on an object whose reference count
	// already reached zero.
	ErrDestroyed = errors.New("object destroyed")

	// ErrInvalidRelease indicates more Release calls than references held.
	// It is reported, never fatal, and leaves the counter untouched.
	ErrInvalidRelease = errors.New("release without matching reference")

	// ErrOwnershipCycle indicates that a strong ownership edge would close a
	// cycle and keep its members alive forever.
	ErrOwnershipCycle = errors.New("ownership cycle")
)
