// Package module opens plugin modules and resolves their entry points.
//
// A module exports a constructor under EntryPoint with the signature
// func() (object.Object, error) and may export its dependency list under
// DependenciesSymbol as a []string variable or a func() []string.
package module

import (
	"errors"
	"fmt"
	"strings"

	"github.com/go-lynx/scf/object"
)

const (
	// EntryPoint is the symbol a module exports to create its root object.
	EntryPoint = "NewPlugin"
	// DependenciesSymbol is the optional symbol listing required plugins.
	DependenciesSymbol = "PluginDependencies"
)

var (
	// ErrModuleNotFound is returned when no loader can open a module.
	ErrModuleNotFound = errors.New("module not found")
	// ErrSymbolNotFound is returned when a module does not export a symbol.
	ErrSymbolNotFound = errors.New("symbol not found")
	// ErrBadSymbol is returned when a symbol has an unexpected type.
	ErrBadSymbol = errors.New("symbol has unexpected type")
)

// Constructor creates a plugin's root object.
type Constructor func() (object.Object, error)

// Module is an opened plugin module.
type Module interface {
	Name() string
	Lookup(symbol string) (any, error)
	// Close releases the module handle. A closed module must not be used.
	Close() error
}

// Loader opens modules by plugin name.
type Loader interface {
	Open(name string) (Module, error)
}

// ResolveFactory returns the module's root object constructor.
func ResolveFactory(m Module) (Constructor, error) {
	sym, err := m.Lookup(EntryPoint)
	if err != nil {
		return nil, err
	}
	switch fn := sym.(type) {
	case Constructor:
		return fn, nil
	case func() (object.Object, error):
		return fn, nil
	case *func() (object.Object, error):
		if fn == nil || *fn == nil {
			return nil, fmt.Errorf("%s.%s: %w: nil", m.Name(), EntryPoint, ErrBadSymbol)
		}
		return *fn, nil
	default:
		return nil, fmt.Errorf("%s.%s: %w: %T", m.Name(), EntryPoint, ErrBadSymbol, sym)
	}
}

// ResolveDependencies returns the plugins the module depends on. A module
// without DependenciesSymbol has none.
func ResolveDependencies(m Module) ([]string, error) {
	sym, err := m.Lookup(DependenciesSymbol)
	if errors.Is(err, ErrSymbolNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	var deps []string
	switch v := sym.(type) {
	case []string:
		deps = v
	case *[]string:
		if v != nil {
			deps = *v
		}
	case func() []string:
		deps = v()
	default:
		return nil, fmt.Errorf("%s.%s: %w: %T", m.Name(), DependenciesSymbol, ErrBadSymbol, sym)
	}
	out := make([]string, 0, len(deps))
	for _, d := range deps {
		if d = strings.TrimSpace(d); d != "" {
			out = append(out, d)
		}
	}
	return out, nil
}

type chain []Loader

// Chain returns a loader that tries each loader in order. A loader that
// reports ErrModuleNotFound passes the name on to the next one; any other
// error stops the search.
func Chain(loaders ...Loader) Loader {
	c := make(chain, 0, len(loaders))
	for _, l := range loaders {
		if l != nil {
			c = append(c, l)
		}
	}
	return c
}

func (c chain) Open(name string) (Module, error) {
	for _, l := range c {
		m, err := l.Open(name)
		if err == nil {
			return m, nil
		}
		if !errors.Is(err, ErrModuleNotFound) {
			return nil, err
		}
	}
	return nil, fmt.Errorf("%w: %s", ErrModuleNotFound, name)
}
