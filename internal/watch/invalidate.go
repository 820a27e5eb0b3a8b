package watch

import (
	"sort"

	"github.com/efebarandurmaz/strata/internal/depgraph"
)

// Dependents returns every module transitively importing any seed,
// including the seeds themselves when they appear in the report. The
// result is sorted.
func Dependents(r *depgraph.Report, seeds []string) []string {
	if r == nil || len(seeds) == 0 {
		return nil
	}

	// Reverse adjacency: imported module to its importers.
	importers := make(map[string][]string, len(r.Modules))
	for path, m := range r.Modules {
		for _, imp := range m.Imports {
			importers[imp] = append(importers[imp], path)
		}
	}

	affected := make(map[string]bool)
	queue := make([]string, 0, len(seeds))
	for _, seed := range seeds {
		if _, ok := r.Modules[seed]; ok && !affected[seed] {
			affected[seed] = true
			queue = append(queue, seed)
		} else if len(importers[seed]) > 0 && !affected[seed] {
			// A removed module is no longer in the report but its old
			// importers still are.
			queue = append(queue, seed)
		}
	}

	for len(queue) > 0 {
		current := queue[0]
		queue = queue[1:]
		for _, importer := range importers[current] {
			if !affected[importer] {
				affected[importer] = true
				queue = append(queue, importer)
			}
		}
	}

	result := make([]string, 0, len(affected))
	for path := range affected {
		result = append(result, path)
	}
	sort.Strings(result)
	return result
}
