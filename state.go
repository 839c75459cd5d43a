package scf

// PluginState is the load state of a requested plugin.
//
//	Unloaded -> Loading -> Loaded
//	                    -> Failed
//	Loaded -> Unloaded
type PluginState int

const (
	// StateUnloaded is a requested plugin that has not been loaded yet, or
	// one that was unloaded.
	StateUnloaded PluginState = iota
	// StateLoading is set while LoadPlugins works on the plugin.
	StateLoading
	// StateLoaded plugins have their capabilities registered.
	StateLoaded
	// StateFailed plugins hold no registry entries and no module.
	StateFailed
)

func (s PluginState) String() string {
	switch s {
	case StateUnloaded:
		return "unloaded"
	case StateLoading:
		return "loading"
	case StateLoaded:
		return "loaded"
	case StateFailed:
		return "failed"
	}
	return "unknown"
}
