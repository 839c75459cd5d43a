// Package discovery finds native plugin modules in plugin directories.
package discovery

import (
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/go-lynx/scf/module"
)

// PluginName returns the plugin name of a module file, or "" if path is not
// a plugin module.
func PluginName(path string) string {
	base := filepath.Base(path)
	if !strings.HasSuffix(base, module.Ext) || strings.HasPrefix(base, ".") {
		return ""
	}
	return strings.TrimSuffix(base, module.Ext)
}

// Scan returns the names of the plugin modules found in dirs, sorted and
// without duplicates. Missing directories are skipped.
func Scan(dirs ...string) ([]string, error) {
	seen := make(map[string]bool)
	var names []string
	for _, dir := range dirs {
		entries, err := os.ReadDir(dir)
		if errors.Is(err, fs.ErrNotExist) {
			continue
		}
		if err != nil {
			return nil, err
		}
		for _, e := range entries {
			if e.IsDir() {
				continue
			}
			name := PluginName(e.Name())
			if name == "" || seen[name] {
				continue
			}
			seen[name] = true
			names = append(names, name)
		}
	}
	sort.Strings(names)
	return names, nil
}
