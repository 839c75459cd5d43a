package scf

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/go-lynx/scf/capability"
	"github.com/go-lynx/scf/conf"
	"github.com/go-lynx/scf/factory"
	"github.com/go-lynx/scf/object"
)

func testClasses(t *testing.T) *factory.Factory {
	t.Helper()
	f := factory.New()
	for id, d := range map[string]capability.Descriptor{
		"vfs":               vfsV1,
		"renderer.software": capability.New("renderer.software", 1, 4, 0),
	} {
		f.MustRegister(factory.Class{
			ID: id,
			Create: func() (object.Object, error) {
				b := object.New(object.WithID(id))
				return b, b.Implement(d, b)
			},
		})
	}
	return f
}

func newTestSystem(t *testing.T, body string) *System {
	t.Helper()
	path := filepath.Join(t.TempDir(), "scf.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	cfg, err := conf.Open(path)
	require.NoError(t, err)
	t.Cleanup(func() { _ = cfg.Close() })

	s, err := NewSystem(cfg, WithFactory(testClasses(t)))
	require.NoError(t, err)
	return s
}

func TestSystemStartAndClose(t *testing.T) {
	s := newTestSystem(t, `
scf:
  name: viewer
  plugins:
    - name: vfs
    - name: renderer.software
      tag: video
      expect: ["renderer.software@1.2"]
`)
	require.NoError(t, s.Start(context.Background()))
	assert.Error(t, s.Start(context.Background()))

	h, err := s.Registry().GetTagged(capability.New("renderer.software", 1, 0, 0), "video")
	require.NoError(t, err)
	require.NoError(t, h.Release())
	assert.Equal(t, 2, s.Registry().Len())
	expected := `
# HELP scf_registry_entries Number of providers currently registered.
# TYPE scf_registry_entries gauge
scf_registry_entries 2
`
	assert.NoError(t, testutil.GatherAndCompare(s.Gatherer(), strings.NewReader(expected), "scf_registry_entries"))

	require.NoError(t, s.Close())
	assert.Zero(t, s.Registry().Len())
	info, ok := s.Loader().Plugin("vfs")
	require.True(t, ok)
	assert.Equal(t, StateUnloaded, info.State)
	assert.NoError(t, s.Close())
	assert.Error(t, s.Start(context.Background()))
}

func TestSystemReportsFailedPlugins(t *testing.T) {
	s := newTestSystem(t, `
scf:
  plugins:
    - name: vfs
    - name: sound.missing
    - name: renderer.software
      expect: ["renderer.software@2.0"]
`)
	err := s.Start(context.Background())
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrPluginLoadFailure)
	defer s.Close()

	states := map[string]PluginState{}
	for _, p := range s.Loader().Plugins() {
		states[p.Name] = p.State
	}
	assert.Equal(t, map[string]PluginState{
		"vfs":               StateLoaded,
		"sound.missing":     StateFailed,
		"renderer.software": StateFailed,
	}, states)
}

func TestSystemRejectsBadExpectation(t *testing.T) {
	s := newTestSystem(t, `
scf:
  plugins:
    - name: vfs
      expect: ["vfs@1.0.0-beta"]
`)
	err := s.Start(context.Background())
	assert.ErrorIs(t, err, capability.ErrInvalidDescriptor)
	assert.NoError(t, s.Close())
}

func TestSystemScanRequestsDiscoveredModules(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "junk.so"), []byte("not a plugin"), 0o644))
	s := newTestSystem(t, `
scf:
  paths: ["`+dir+`"]
  discovery:
    scan: true
`)
	err := s.Start(context.Background())
	require.Error(t, err)
	defer s.Close()

	info, ok := s.Loader().Plugin("junk")
	require.True(t, ok)
	assert.Equal(t, StateFailed, info.State)
	var perr *PluginError
	require.ErrorAs(t, info.Err, &perr)
	assert.Equal(t, OpOpen, perr.Operation)
}

func TestSystemWatchLoadsNewModules(t *testing.T) {
	dir := t.TempDir()
	s := newTestSystem(t, `
scf:
  paths: ["`+dir+`"]
  discovery:
    watch: true
`)
	require.NoError(t, s.Start(context.Background()))
	defer s.Close()

	require.NoError(t, os.WriteFile(filepath.Join(dir, "dropped.so"), []byte("not a plugin"), 0o644))
	require.Eventually(t, func() bool {
		info, ok := s.Loader().Plugin("dropped")
		return ok && info.State == StateFailed
	}, 5*time.Second, 20*time.Millisecond)
}

func TestSystemDefaultsWithoutConfig(t *testing.T) {
	s, err := NewSystem(nil, WithFactory(factory.New()))
	require.NoError(t, err)
	assert.Equal(t, "scf", s.Config().Name)
	require.NoError(t, s.Start(context.Background()))
	assert.NoError(t, s.Close())
}
