package module

import (
	"fmt"
	"sync/atomic"

	"github.com/go-lynx/scf/factory"
)

// Static opens in-process modules backed by a factory class table.
type Static struct {
	classes *factory.Factory
}

// NewStatic returns a loader over f. A nil f uses factory.Global().
func NewStatic(f *factory.Factory) *Static {
	if f == nil {
		f = factory.Global()
	}
	return &Static{classes: f}
}

// Open returns the module for the class named name.
func (s *Static) Open(name string) (Module, error) {
	c, ok := s.classes.Lookup(name)
	if !ok {
		return nil, fmt.Errorf("%w: no class %s", ErrModuleNotFound, name)
	}
	return &staticModule{class: c}, nil
}

type staticModule struct {
	class  factory.Class
	closed atomic.Bool
}

func (m *staticModule) Name() string { return m.class.ID }

func (m *staticModule) Lookup(symbol string) (any, error) {
	if m.closed.Load() {
		return nil, fmt.Errorf("module %s is closed", m.class.ID)
	}
	switch symbol {
	case EntryPoint:
		return Constructor(m.class.Create), nil
	case DependenciesSymbol:
		return append([]string(nil), m.class.Dependencies...), nil
	}
	return nil, fmt.Errorf("%s.%s: %w", m.class.ID, symbol, ErrSymbolNotFound)
}

func (m *staticModule) Close() error {
	if !m.closed.CompareAndSwap(false, true) {
		return fmt.Errorf("module %s already closed", m.class.ID)
	}
	return nil
}
