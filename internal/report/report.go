// Package report renders analysis results for humans and machines. The
// engine hands over plain data; every format decision lives here.
package report

import (
	"sort"
	"strings"

	"github.com/efebarandurmaz/strata/internal/depgraph"
)

// Display limits, matching the text report's sections.
const (
	MaxMermaidNodes      = 30
	TopModulesLimit      = 10
	MaxCouplingDisplay   = 10
	MaxViolationsDisplay = 15
)

// sanitizeID makes a module path usable as a diagram node id.
func sanitizeID(s string) string {
	return strings.Map(func(r rune) rune {
		if (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z') || (r >= '0' && r <= '9') || r == '_' {
			return r
		}
		return '_'
	}, s)
}

// modulesByDegree returns modules sorted by combined degree, highest
// first, ties broken by path.
func modulesByDegree(r *depgraph.Report) []*depgraph.Module {
	modules := make([]*depgraph.Module, 0, len(r.Modules))
	for _, m := range r.Modules {
		modules = append(modules, m)
	}
	sort.Slice(modules, func(i, j int) bool {
		di := modules[i].ImportCount + modules[i].ImportedByCount
		dj := modules[j].ImportCount + modules[j].ImportedByCount
		if di != dj {
			return di > dj
		}
		return modules[i].Path < modules[j].Path
	})
	return modules
}

// modulesByImportedBy returns modules sorted by reverse-reference count,
// highest first, ties broken by path.
func modulesByImportedBy(r *depgraph.Report) []*depgraph.Module {
	modules := make([]*depgraph.Module, 0, len(r.Modules))
	for _, m := range r.Modules {
		modules = append(modules, m)
	}
	sort.Slice(modules, func(i, j int) bool {
		if modules[i].ImportedByCount != modules[j].ImportedByCount {
			return modules[i].ImportedByCount > modules[j].ImportedByCount
		}
		return modules[i].Path < modules[j].Path
	})
	return modules
}

func sortedPaths(r *depgraph.Report) []string {
	paths := make([]string, 0, len(r.Modules))
	for path := range r.Modules {
		paths = append(paths, path)
	}
	sort.Strings(paths)
	return paths
}
