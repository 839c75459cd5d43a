package scf

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/go-kratos/kratos/v2/config"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/go-lynx/scf/capability"
	"github.com/go-lynx/scf/conf"
	"github.com/go-lynx/scf/discovery"
	"github.com/go-lynx/scf/events"
	"github.com/go-lynx/scf/factory"
	"github.com/go-lynx/scf/log"
	"github.com/go-lynx/scf/metrics"
	"github.com/go-lynx/scf/module"
	"github.com/go-lynx/scf/registry"
	"github.com/go-lynx/scf/tracing"
)

const eventHistorySize = 256

// System wires a registry, a plugin loader and their ambient services
// from configuration. It plays the role of the hosting application's
// plugin driver: Start loads the configured plugins, Close tears them down.
type System struct {
	conf     *conf.Scf
	registry *registry.Registry
	loader   *PluginLoader
	native   *module.Native
	metrics  *metrics.Metrics
	events   *events.Bus
	gatherer prometheus.Gatherer
	factory  *factory.Factory

	mu       sync.Mutex
	watcher  *discovery.Watcher
	shutdown tracing.ShutdownFunc
	started  bool
	closed   bool
}

type systemOptions struct {
	factory    *factory.Factory
	registerer prometheus.Registerer
	gatherer   prometheus.Gatherer
	loaders    []module.Loader
}

// SystemOption configures NewSystem.
type SystemOption func(*systemOptions)

// WithFactory sets the class table for in-process plugins. The default is
// factory.Global().
func WithFactory(f *factory.Factory) SystemOption {
	return func(o *systemOptions) {
		o.factory = f
	}
}

// WithRegisterer registers the system's collectors with r. By default they
// go to a private registry available through Gatherer.
func WithRegisterer(r prometheus.Registerer) SystemOption {
	return func(o *systemOptions) {
		o.registerer = r
		if g, ok := r.(prometheus.Gatherer); ok {
			o.gatherer = g
		}
	}
}

// WithModuleLoader adds a loader consulted after the class table and the
// native search paths.
func WithModuleLoader(l module.Loader) SystemOption {
	return func(o *systemOptions) {
		o.loaders = append(o.loaders, l)
	}
}

// NewSystem builds a system from the "scf" key of cfg. A nil cfg uses the
// defaults.
func NewSystem(cfg config.Config, opts ...SystemOption) (*System, error) {
	c, err := conf.Load(cfg)
	if err != nil {
		return nil, err
	}
	o := &systemOptions{factory: factory.Global()}
	for _, opt := range opts {
		opt(o)
	}
	if o.registerer == nil {
		reg := prometheus.NewRegistry()
		o.registerer, o.gatherer = reg, reg
	}

	m, err := metrics.New(c.Metrics.Namespace, o.registerer)
	if err != nil {
		return nil, fmt.Errorf("register metrics: %w", err)
	}
	s := &System{
		conf:     c,
		registry: registry.New(registry.WithMetrics(m)),
		native:   module.NewNative(c.Paths...),
		metrics:  m,
		events:   events.NewBus(eventHistorySize),
		gatherer: o.gatherer,
		factory:  o.factory,
	}
	loaders := append([]module.Loader{module.NewStatic(o.factory), s.native}, o.loaders...)
	s.loader = NewPluginLoader(s.registry, module.Chain(loaders...), WithMetrics(m), WithEvents(s.events))
	return s, nil
}

// Config returns the loaded configuration.
func (s *System) Config() *conf.Scf { return s.conf }

// Registry returns the system's object registry.
func (s *System) Registry() *registry.Registry { return s.registry }

// Loader returns the system's plugin loader.
func (s *System) Loader() *PluginLoader { return s.loader }

// Factory returns the class table used for in-process plugins.
func (s *System) Factory() *factory.Factory { return s.factory }

// Native returns the loader for native plugin modules.
func (s *System) Native() *module.Native { return s.native }

// Metrics returns the system's collectors.
func (s *System) Metrics() *metrics.Metrics { return s.metrics }

// Events returns the bus carrying plugin lifecycle events.
func (s *System) Events() *events.Bus { return s.events }

// Gatherer returns the prometheus gatherer holding the system's metrics,
// or nil when they were registered with a registerer that cannot gather.
func (s *System) Gatherer() prometheus.Gatherer { return s.gatherer }

// Requests turns the configured plugin list into loader requests.
func (s *System) Requests() error {
	for i, p := range s.conf.Plugins {
		opts := []RequestOption{WithTag(p.Tag)}
		for _, e := range p.Expect {
			d, err := capability.Parse(e)
			if err != nil {
				return fmt.Errorf("plugins[%d] %s: %w", i, p.Name, err)
			}
			opts = append(opts, Expect(d))
		}
		if err := s.loader.RequestPlugin(p.Name, opts...); err != nil {
			return fmt.Errorf("plugins[%d]: %w", i, err)
		}
	}
	return nil
}

// Start sets up tracing, requests the configured plugins (and, with
// discovery.scan, every module found in the plugin paths) and loads them.
// Plugin failures are returned but leave the system running; callers
// decide which plugins are mandatory by inspecting Loader().Plugin.
func (s *System) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return errors.New("system is closed")
	}
	if s.started {
		return errors.New("system already started")
	}

	shutdown, err := tracing.Setup(ctx, s.conf.Name, s.conf.Tracing)
	if err != nil {
		return err
	}
	s.shutdown = shutdown

	if err := s.Requests(); err != nil {
		return err
	}
	if s.conf.Discovery.Scan {
		names, err := discovery.Scan(s.conf.Paths...)
		if err != nil {
			return fmt.Errorf("scan plugin paths: %w", err)
		}
		for _, n := range names {
			if err := s.loader.RequestPlugin(n); err != nil {
				return err
			}
		}
	}

	loadErr := s.loader.LoadPlugins(ctx)

	if s.conf.Discovery.Watch && len(s.conf.Paths) > 0 {
		w, err := discovery.Watch(s.pluginAppeared, s.conf.Paths...)
		if err != nil {
			return errors.Join(loadErr, fmt.Errorf("watch plugin paths: %w", err))
		}
		s.watcher = w
	}
	s.started = true
	log.Infof("%s started with %d providers registered", s.conf.Name, s.registry.Len())
	return loadErr
}

func (s *System) pluginAppeared(name, path string) {
	if err := s.loader.RequestPlugin(name); err != nil {
		log.Warnf("request discovered plugin %s: %v", path, err)
		return
	}
	if err := s.loader.LoadPlugins(context.Background()); err != nil {
		log.Warnf("load discovered plugin %s: %v", path, err)
	}
}

// Close stops discovery, unloads every plugin in reverse load order, clears
// the registry and flushes traces. Calling Close again does nothing.
func (s *System) Close() error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil
	}
	s.closed = true
	w, shutdown := s.watcher, s.shutdown
	s.watcher, s.shutdown = nil, nil
	s.mu.Unlock()

	var errs []error
	if w != nil {
		errs = append(errs, w.Close())
	}
	n := s.loader.UnloadAll()
	s.registry.Clear()
	if shutdown != nil {
		errs = append(errs, shutdown(context.Background()))
	}
	log.Infof("%s closed, %d plugins unloaded", s.conf.Name, n)
	return errors.Join(errs...)
}
