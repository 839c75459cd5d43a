// Package scf is a small plugin core: versioned capabilities, reference
// counted objects, an object registry and a plugin loader.
//
// # Concepts
//
//   - capability.Descriptor names a behavior contract and its version
//     (major.minor.revision). A request is served by a provider with the
//     same name and major version and a minor/revision that is not older.
//   - object.Base is an embeddable reference counted object. Query hands
//     out a Handle for a capability view and adds a reference; Release on
//     the handle drops it again. The object is destroyed exactly once,
//     when the count reaches zero.
//   - registry.Registry maps (capability name, tag) to provider objects and
//     holds its own reference to each of them.
//   - PluginLoader resolves requested plugins to modules, creates their root
//     objects and registers every capability they advertise.
//
// # Loading plugins
//
//	reg := registry.New()
//	loader := scf.NewPluginLoader(reg, module.Chain(
//		module.NewStatic(factory.Global()),
//		module.NewNative("./plugins"),
//	))
//	_ = loader.RequestPlugin("vfs")
//	_ = loader.RequestPlugin("renderer.software", scf.WithTag("video"))
//	if err := loader.LoadPlugins(ctx); err != nil {
//		// Some plugins failed; the others are loaded.
//		for _, p := range loader.Plugins() {
//			if p.State == scf.StateFailed {
//				log.Warnf("plugin %s: %v", p.Name, p.Err)
//			}
//		}
//	}
//	h, err := reg.Get(capability.MustParse("renderer.software@1.0"))
//
// A single failing plugin never stops the others from loading. Plugins
// may declare dependencies on other plugins (a trailing "." matches a name
// prefix); dependencies load first and a failed dependency fails its
// dependents.
//
// # Files
//
//   - loader.go: PluginLoader, requests and plugin records
//   - ops.go: LoadPlugins and unloading
//   - topology.go: dependency ordering and cycle detection
//   - system.go: configuration driven bootstrap (System)
//   - errors.go, state.go: PluginError and PluginState
package scf
