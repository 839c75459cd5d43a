package conf

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "scf.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

func TestLoadFromFile(t *testing.T) {
	path := writeConfig(t, `
scf:
  name: viewer
  log:
    level: debug
  paths: ["./plugins", "/opt/scf"]
  plugins:
    - name: renderer.software
      tag: video
      expect: ["renderer@1.0.0"]
    - name: translator
  discovery:
    watch: true
`)
	cfg, err := Open(path)
	require.NoError(t, err)
	defer cfg.Close()

	c, err := Load(cfg)
	require.NoError(t, err)
	assert.Equal(t, "viewer", c.Name)
	assert.Equal(t, "debug", c.Log.Level)
	assert.Equal(t, []string{"./plugins", "/opt/scf"}, c.Paths)
	require.Len(t, c.Plugins, 2)
	assert.Equal(t, PluginRef{Name: "renderer.software", Tag: "video", Expect: []string{"renderer@1.0.0"}}, c.Plugins[0])
	assert.Equal(t, "translator", c.Plugins[1].Name)
	assert.True(t, c.Discovery.Watch)
	assert.Equal(t, "scf", c.Metrics.Namespace)
}

func TestLoadMissingKeyUsesDefaults(t *testing.T) {
	path := writeConfig(t, "other:\n  key: value\n")
	cfg, err := Open(path)
	require.NoError(t, err)
	defer cfg.Close()

	c, err := Load(cfg)
	require.NoError(t, err)
	assert.Equal(t, Default(), c)
}

func TestLoadNilConfig(t *testing.T) {
	c, err := Load(nil)
	require.NoError(t, err)
	assert.Equal(t, "info", c.Log.Level)
}

func TestValidate(t *testing.T) {
	c := Default()
	c.Log.Level = "verbose"
	assert.Error(t, c.Validate())

	c = Default()
	c.Plugins = []PluginRef{{Name: " "}}
	assert.Error(t, c.Validate())

	c = Default()
	c.Tracing.Ratio = 1.5
	assert.Error(t, c.Validate())

	c = Default()
	c.Log.Sampling.Enabled = true
	assert.Error(t, c.Validate())
	c.Log.Sampling.Debug.PerSecond = 100
	assert.NoError(t, c.Validate())
}

func TestOpenErrors(t *testing.T) {
	_, err := Open("")
	assert.Error(t, err)
	_, err = Open(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
}
