package module

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"plugin"
	"strings"
	"sync/atomic"

	"github.com/go-lynx/scf/log"
)

// Ext is the file extension of native plugin modules.
const Ext = ".so"

// Native opens Go plugin modules (built with -buildmode=plugin) from a list
// of search directories.
type Native struct {
	paths []string
	open  func(path string) (symbolTable, error)
}

type symbolTable interface {
	Lookup(symbol string) (plugin.Symbol, error)
}

// NewNative returns a loader searching paths in order.
func NewNative(paths ...string) *Native {
	return &Native{
		paths: append([]string(nil), paths...),
		open: func(path string) (symbolTable, error) {
			return plugin.Open(path)
		},
	}
}

// Paths returns the search directories.
func (n *Native) Paths() []string {
	return append([]string(nil), n.paths...)
}

// Locate returns the file a plugin name resolves to.
func (n *Native) Locate(name string) (string, error) {
	if strings.ContainsRune(name, filepath.Separator) || strings.HasSuffix(name, Ext) {
		if _, err := os.Stat(name); err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				return "", fmt.Errorf("%w: %s", ErrModuleNotFound, name)
			}
			return "", err
		}
		return name, nil
	}
	for _, dir := range n.paths {
		path := filepath.Join(dir, name+Ext)
		info, err := os.Stat(path)
		if err == nil && !info.IsDir() {
			return path, nil
		}
	}
	return "", fmt.Errorf("%w: %s (searched %d paths)", ErrModuleNotFound, name, len(n.paths))
}

// Open locates and opens the module for name.
func (n *Native) Open(name string) (Module, error) {
	path, err := n.Locate(name)
	if err != nil {
		return nil, err
	}
	p, err := n.open(path)
	if err != nil {
		return nil, fmt.Errorf("open module %s: %w", path, err)
	}
	log.Debugf("opened native module %s from %s", name, path)
	return &nativeModule{name: name, path: path, syms: p}, nil
}

type nativeModule struct {
	name   string
	path   string
	syms   symbolTable
	closed atomic.Bool
}

func (m *nativeModule) Name() string { return m.name }

func (m *nativeModule) Lookup(symbol string) (any, error) {
	if m.closed.Load() {
		return nil, fmt.Errorf("module %s is closed", m.name)
	}
	s, err := m.syms.Lookup(symbol)
	if err != nil {
		return nil, fmt.Errorf("%s.%s: %w", m.name, symbol, ErrSymbolNotFound)
	}
	return s, nil
}

// Close marks the module released. The Go runtime keeps plugin code mapped
// for the life of the process.
func (m *nativeModule) Close() error {
	if !m.closed.CompareAndSwap(false, true) {
		return fmt.Errorf("module %s already closed", m.name)
	}
	log.Debugf("closed native module %s", m.path)
	return nil
}
