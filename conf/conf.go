// Package conf holds the configuration model of an scf system and loads it
// from a Kratos config source.
//
// All settings live under the "scf" key:
//
//	scf:
//	  name: viewer
//	  log:
//	    level: debug
//	    sampling:
//	      enabled: true
//	      debug: {per_second: 100, every: 10}
//	  paths: ["./plugins"]
//	  plugins:
//	    - name: renderer.software
//	      tag: video
//	    - name: translator
//	  discovery:
//	    watch: true
//	  metrics:
//	    namespace: scf
//	  tracing:
//	    endpoint: 127.0.0.1:4317
//	    insecure: true
package conf

import (
	"errors"
	"fmt"
	"strings"

	"github.com/go-kratos/kratos/v2/config"
)

// RootKey is the top-level configuration key read by Load.
const RootKey = "scf"

// Scf is the root configuration.
type Scf struct {
	// Name identifies the hosting application in logs and traces.
	Name string `json:"name"`
	// Log configures the log facade.
	Log Log `json:"log"`
	// Paths are the directories searched for native plugin modules.
	Paths []string `json:"paths"`
	// Plugins are requested, in order, when the system starts.
	Plugins []PluginRef `json:"plugins"`
	// Discovery configures plugin directory scanning.
	Discovery Discovery `json:"discovery"`
	// Metrics configures prometheus collectors.
	Metrics Metrics `json:"metrics"`
	// Tracing configures the OpenTelemetry exporter.
	Tracing Tracing `json:"tracing"`
}

// Log configures logging.
type Log struct {
	// Level is one of debug, info, warn, error.
	Level string `json:"level"`
	// Console enables human readable console output instead of JSON lines.
	Console bool `json:"console"`
	// File, when set, also appends JSON log lines to this path.
	File string `json:"file"`
	// Stack attaches a stack trace to error level records.
	Stack bool `json:"stack"`
	// Sampling thins debug and info records.
	Sampling LogSampling `json:"sampling"`
}

// LogSampling configures per-level sampling. Warnings and errors are never
// sampled.
type LogSampling struct {
	Enabled bool          `json:"enabled"`
	Debug   LevelSampling `json:"debug"`
	Info    LevelSampling `json:"info"`
}

// LevelSampling passes the first PerSecond records of every second and then
// one in Every of the rest; Every of zero drops them. Zero PerSecond means
// no per-second allowance.
type LevelSampling struct {
	PerSecond uint32 `json:"per_second"`
	Every     uint32 `json:"every"`
}

// PluginRef names a plugin to load and the tag its capabilities are
// registered under.
type PluginRef struct {
	Name string `json:"name"`
	Tag  string `json:"tag"`
	// Expect lists capability descriptors ("name@1.0.0") the plugin must
	// provide for the load to succeed.
	Expect []string `json:"expect"`
}

// Discovery configures plugin file discovery in Paths.
type Discovery struct {
	// Scan requests every plugin module found in Paths at start.
	Scan bool `json:"scan"`
	// Watch loads plugin modules dropped into Paths while running.
	Watch bool `json:"watch"`
}

// Metrics configures prometheus collectors.
type Metrics struct {
	Namespace string `json:"namespace"`
}

// Tracing configures span export. Tracing is disabled when Endpoint is empty.
type Tracing struct {
	Endpoint string `json:"endpoint"`
	Insecure bool   `json:"insecure"`
	// Ratio is the sampling ratio in [0,1]; zero means always sample.
	Ratio float64 `json:"ratio"`
}

// Default returns the configuration used when no source provides one.
func Default() *Scf {
	return &Scf{
		Name: "scf",
		Log: Log{
			Level:   "info",
			Console: true,
		},
		Metrics: Metrics{Namespace: "scf"},
	}
}

// Load scans the "scf" key of cfg into a configuration with defaults applied.
// A missing key yields Default.
func Load(cfg config.Config) (*Scf, error) {
	c := Default()
	if cfg == nil {
		return c, nil
	}
	if err := cfg.Value(RootKey).Scan(c); err != nil {
		if errors.Is(err, config.ErrNotFound) {
			return c, nil
		}
		return nil, fmt.Errorf("scan %q config: %w", RootKey, err)
	}
	c.applyDefaults()
	if err := c.Validate(); err != nil {
		return nil, err
	}
	return c, nil
}

func (c *Scf) applyDefaults() {
	def := Default()
	if c.Name == "" {
		c.Name = def.Name
	}
	if c.Log.Level == "" {
		c.Log.Level = def.Log.Level
	}
	if c.Metrics.Namespace == "" {
		c.Metrics.Namespace = def.Metrics.Namespace
	}
}

// Validate checks the configuration for values that cannot be used.
func (c *Scf) Validate() error {
	switch strings.ToLower(c.Log.Level) {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("invalid log level %q", c.Log.Level)
	}
	for i, p := range c.Plugins {
		if strings.TrimSpace(p.Name) == "" {
			return fmt.Errorf("plugins[%d]: empty plugin name", i)
		}
	}
	if s := c.Log.Sampling; s.Enabled && s.Debug == (LevelSampling{}) && s.Info == (LevelSampling{}) {
		return errors.New("log sampling enabled without debug or info limits")
	}
	if c.Tracing.Ratio < 0 || c.Tracing.Ratio > 1 {
		return fmt.Errorf("tracing ratio %v out of range [0,1]", c.Tracing.Ratio)
	}
	return nil
}
