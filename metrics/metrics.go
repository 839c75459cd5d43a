// Package metrics exposes prometheus collectors for the registry and the
// plugin loader. A nil *Metrics is valid and records nothing.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Registration outcomes.
const (
	OutcomeNew      = "new"
	OutcomeReplaced = "replaced"
)

// Lookup results.
const (
	ResultHit  = "hit"
	ResultMiss = "miss"
)

// Metrics groups the collectors of one scf system.
type Metrics struct {
	registryEntries prometheus.Gauge
	registrations   *prometheus.CounterVec
	unregistrations prometheus.Counter
	lookups         *prometheus.CounterVec
	pluginLoads     *prometheus.CounterVec
	pluginUnloads   prometheus.Counter
	loadDuration    *prometheus.HistogramVec
	pluginStates    *prometheus.GaugeVec
}

// New creates the collectors under namespace and registers them with reg.
// A nil reg leaves them unregistered, which is convenient in tests.
func New(namespace string, reg prometheus.Registerer) (*Metrics, error) {
	m := &Metrics{
		registryEntries: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "registry",
			Name:      "entries",
			Help:      "Number of providers currently registered.",
		}),
		registrations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "registry",
			Name:      "registrations_total",
			Help:      "Provider registrations by outcome (new or replaced).",
		}, []string{"outcome"}),
		unregistrations: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "registry",
			Name:      "unregistrations_total",
			Help:      "Providers removed from the registry.",
		}),
		lookups: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "registry",
			Name:      "lookups_total",
			Help:      "Capability lookups by result (hit or miss).",
		}, []string{"result"}),
		pluginLoads: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "plugin",
			Name:      "loads_total",
			Help:      "Plugin load attempts by plugin and result.",
		}, []string{"plugin", "result"}),
		pluginUnloads: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "plugin",
			Name:      "unloads_total",
			Help:      "Plugins unloaded.",
		}),
		loadDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "plugin",
			Name:      "load_duration_seconds",
			Help:      "Time spent loading a single plugin.",
			Buckets:   prometheus.ExponentialBuckets(0.0005, 4, 8),
		}, []string{"plugin"}),
		pluginStates: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "plugin",
			Name:      "state",
			Help:      "Number of plugins per load state.",
		}, []string{"state"}),
	}
	if reg != nil {
		for _, c := range m.collectors() {
			if err := reg.Register(c); err != nil {
				return nil, err
			}
		}
	}
	return m, nil
}

func (m *Metrics) collectors() []prometheus.Collector {
	return []prometheus.Collector{
		m.registryEntries, m.registrations, m.unregistrations, m.lookups,
		m.pluginLoads, m.pluginUnloads, m.loadDuration, m.pluginStates,
	}
}

// Registered records a registration and the resulting entry count.
func (m *Metrics) Registered(replaced bool, entries int) {
	if m == nil {
		return
	}
	outcome := OutcomeNew
	if replaced {
		outcome = OutcomeReplaced
	}
	m.registrations.WithLabelValues(outcome).Inc()
	m.registryEntries.Set(float64(entries))
}

// Unregistered records n removals and the resulting entry count.
func (m *Metrics) Unregistered(n, entries int) {
	if m == nil {
		return
	}
	m.unregistrations.Add(float64(n))
	m.registryEntries.Set(float64(entries))
}

// Lookup records a capability lookup.
func (m *Metrics) Lookup(hit bool) {
	if m == nil {
		return
	}
	if hit {
		m.lookups.WithLabelValues(ResultHit).Inc()
	} else {
		m.lookups.WithLabelValues(ResultMiss).Inc()
	}
}

// PluginLoaded records one plugin load attempt.
func (m *Metrics) PluginLoaded(plugin string, ok bool, took time.Duration) {
	if m == nil {
		return
	}
	result := "loaded"
	if !ok {
		result = "failed"
	}
	m.pluginLoads.WithLabelValues(plugin, result).Inc()
	m.loadDuration.WithLabelValues(plugin).Observe(took.Seconds())
}

// PluginUnloaded records one plugin unload.
func (m *Metrics) PluginUnloaded() {
	if m == nil {
		return
	}
	m.pluginUnloads.Inc()
}

// PluginStates replaces the per-state plugin counts.
func (m *Metrics) PluginStates(counts map[string]int) {
	if m == nil {
		return
	}
	m.pluginStates.Reset()
	for state, n := range counts {
		m.pluginStates.WithLabelValues(state).Set(float64(n))
	}
}
