package scf

import "strings"

// dependsOn reports whether the dependency pattern dep names plugin. A
// pattern ending in "." matches every plugin with that prefix.
func dependsOn(dep, plugin string) bool {
	if strings.HasSuffix(dep, ".") {
		return strings.HasPrefix(plugin, dep)
	}
	return dep == plugin
}

// batchEdges resolves the declared dependencies of every plugin in names to
// the other members of names they refer to. Dependencies on plugins outside
// the batch impose no order and are dropped.
func batchEdges(names []string, deps map[string][]string) map[string][]string {
	edges := make(map[string][]string, len(names))
	for _, n := range names {
		for _, dep := range deps[n] {
			for _, other := range names {
				if other == n || !dependsOn(dep, other) {
					continue
				}
				if !contains(edges[n], other) {
					edges[n] = append(edges[n], other)
				}
			}
		}
	}
	return edges
}

// sortByDependencies orders names so that every plugin follows the plugins
// it depends on. Request order is kept wherever dependencies allow it.
// Members of dependency cycles are returned in cycles, keyed by plugin,
// with the loop that was found.
func sortByDependencies(names []string, edges map[string][]string) (order []string, cycles map[string][]string) {
	cycles = make(map[string][]string)
	placed := make(map[string]bool, len(names))
	onPath := make(map[string]int, len(names))
	path := make([]string, 0, len(names))

	var visit func(n string)
	visit = func(n string) {
		if placed[n] {
			return
		}
		onPath[n] = len(path)
		path = append(path, n)
		for _, d := range edges[n] {
			if placed[d] {
				continue
			}
			if i, ok := onPath[d]; ok {
				loop := append(append([]string(nil), path[i:]...), d)
				for _, m := range path[i:] {
					if _, seen := cycles[m]; !seen {
						cycles[m] = loop
					}
				}
				continue
			}
			visit(d)
		}
		path = path[:len(path)-1]
		delete(onPath, n)
		placed[n] = true
		order = append(order, n)
	}

	for _, n := range names {
		visit(n)
	}
	return order, cycles
}

func contains(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}
