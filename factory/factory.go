// Package factory holds the table of plugin classes that can be instantiated
// in-process. A class maps a plugin name to a constructor for its root object.
package factory

import (
	"errors"
	"fmt"
	"sort"
	"sync"

	"github.com/go-lynx/scf/object"
)

var (
	// ErrClassExists is returned when a class ID is registered twice.
	ErrClassExists = errors.New("class already registered")
	// ErrClassNotFound is returned for unknown class IDs.
	ErrClassNotFound = errors.New("class not found")
)

var globalFactory = New()

// Class describes one instantiable plugin class.
type Class struct {
	// ID is the plugin name the class is requested by, e.g. "renderer.software".
	ID          string
	Description string
	// Dependencies lists class IDs that must be loaded first.
	// An entry ending in "." matches every class with that prefix.
	Dependencies []string
	// Create returns a new root object holding the creator's reference.
	Create func() (object.Object, error)
}

// Creator instantiates classes by ID.
type Creator interface {
	Create(id string) (object.Object, error)
}

// ClassTable manages class registrations.
type ClassTable interface {
	Register(c Class) error
	Unregister(id string) bool
	Lookup(id string) (Class, bool)
	Classes() []Class
}

// Global returns the process-wide class table used for init-time registration.
func Global() *Factory {
	return globalFactory
}

// Factory implements Creator and ClassTable.
type Factory struct {
	mu      sync.RWMutex
	classes map[string]Class
}

// New returns an empty factory.
func New() *Factory {
	return &Factory{classes: make(map[string]Class)}
}

// Register adds c to the table.
func (f *Factory) Register(c Class) error {
	if c.ID == "" {
		return errors.New("class id is empty")
	}
	if c.Create == nil {
		return fmt.Errorf("class %s: nil constructor", c.ID)
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, exists := f.classes[c.ID]; exists {
		return fmt.Errorf("%w: %s", ErrClassExists, c.ID)
	}
	c.Dependencies = append([]string(nil), c.Dependencies...)
	f.classes[c.ID] = c
	return nil
}

// MustRegister is like Register but panics on error. Intended for init().
func (f *Factory) MustRegister(c Class) {
	if err := f.Register(c); err != nil {
		panic(err)
	}
}

// Unregister removes a class and reports whether it existed.
func (f *Factory) Unregister(id string) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	_, ok := f.classes[id]
	delete(f.classes, id)
	return ok
}

// Lookup returns the class registered under id.
func (f *Factory) Lookup(id string) (Class, bool) {
	f.mu.RLock()
	defer f.mu.RUnlock()
	c, ok := f.classes[id]
	return c, ok
}

// Create instantiates the class registered under id.
func (f *Factory) Create(id string) (object.Object, error) {
	c, ok := f.Lookup(id)
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrClassNotFound, id)
	}
	obj, err := c.Create()
	if err != nil {
		return nil, fmt.Errorf("create %s: %w", id, err)
	}
	if obj == nil {
		return nil, fmt.Errorf("create %s: constructor returned nil", id)
	}
	return obj, nil
}

// Classes returns all classes sorted by ID.
func (f *Factory) Classes() []Class {
	f.mu.RLock()
	out := make([]Class, 0, len(f.classes))
	for _, c := range f.classes {
		out = append(out, c)
	}
	f.mu.RUnlock()
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

var (
	_ Creator    = (*Factory)(nil)
	_ ClassTable = (*Factory)(nil)
)
