package depgraph

import (
	"sort"
	"strings"
)

// DetectCycles finds circular import chains with a depth-first search over
// the internal edges of the module map. Modules are explored in sorted
// order so the reported representative of each cycle is deterministic.
func DetectCycles(modules map[string]*Module) []Cycle {
	var cycles []Cycle
	visited := make(map[string]int) // 0=unvisited, 1=in-progress, 2=done
	path := make([]string, 0)

	var dfs func(node string)
	dfs = func(node string) {
		if visited[node] == 2 {
			return
		}
		if visited[node] == 1 {
			// Found a cycle: the walk from this node's first occurrence
			// on the current path through the current tail.
			cycle := make([]string, 0)
			for i := len(path) - 1; i >= 0; i-- {
				cycle = append(cycle, path[i])
				if path[i] == node {
					break
				}
			}
			for i, j := 0, len(cycle)-1; i < j; i, j = i+1, j-1 {
				cycle[i], cycle[j] = cycle[j], cycle[i]
			}
			cycles = append(cycles, Cycle{Members: cycle})
			return
		}
		visited[node] = 1
		path = append(path, node)
		for _, next := range modules[node].Imports {
			if _, ok := modules[next]; ok {
				dfs(next)
			}
		}
		path = path[:len(path)-1]
		visited[node] = 2
	}

	for _, node := range sortedModulePaths(modules) {
		if visited[node] == 0 {
			dfs(node)
		}
	}

	return dedupeCycles(cycles)
}

// dedupeCycles collapses cycles with identical member sets, keeping the
// first-seen walk. Distinct edge walks over the same members merge: the
// report answers "these files form a cycle", not "every cycle these files
// form".
func dedupeCycles(cycles []Cycle) []Cycle {
	unique := make([]Cycle, 0, len(cycles))
	seen := make(map[string]bool)
	for _, c := range cycles {
		members := append([]string{}, c.Members...)
		sort.Strings(members)
		key := strings.Join(members, "\x1f")
		if seen[key] {
			continue
		}
		seen[key] = true
		unique = append(unique, c)
	}
	return unique
}

func sortedModulePaths(modules map[string]*Module) []string {
	paths := make([]string, 0, len(modules))
	for path := range modules {
		paths = append(paths, path)
	}
	sort.Strings(paths)
	return paths
}
