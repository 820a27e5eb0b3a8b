package report

import (
	"fmt"
	"strings"

	"github.com/efebarandurmaz/strata/internal/depgraph"
)

type edgeKey struct {
	from string
	to   string
}

// FormatDOT generates a Graphviz DOT representation of the module graph.
// Cycle members and hubs are highlighted, as are the edges that close a
// cycle or cross a layer boundary the wrong way.
func FormatDOT(r *depgraph.Report) string {
	var b strings.Builder
	b.WriteString("digraph dependencies {\n")
	b.WriteString("  rankdir=LR;\n")
	b.WriteString("  node [fontname=\"Helvetica\" shape=box style=filled fontcolor=\"white\"];\n")
	b.WriteString("  edge [fontname=\"Helvetica\" fontsize=10];\n\n")

	cycleMembers := make(map[string]bool)
	cycleEdges := make(map[edgeKey]bool)
	for _, cycle := range r.Cycles {
		n := len(cycle.Members)
		for i, member := range cycle.Members {
			cycleMembers[member] = true
			cycleEdges[edgeKey{member, cycle.Members[(i+1)%n]}] = true
		}
	}

	hubs := make(map[string]bool)
	for _, issue := range r.CouplingIssues {
		if issue.Hub {
			hubs[issue.Module] = true
		}
	}

	violationEdges := make(map[edgeKey]bool)
	for _, v := range r.LayerViolations {
		violationEdges[edgeKey{v.Source, v.Target}] = true
	}

	for _, path := range sortedPaths(r) {
		b.WriteString(fmt.Sprintf("  \"%s\" [label=\"%s\" fillcolor=\"%s\"];\n",
			sanitizeID(path), path, nodeColor(path, cycleMembers, hubs)))
	}
	b.WriteString("\n")

	for _, path := range sortedPaths(r) {
		for _, imp := range r.Modules[path].Imports {
			if _, ok := r.Modules[imp]; !ok {
				continue
			}
			key := edgeKey{path, imp}
			b.WriteString(fmt.Sprintf("  \"%s\" -> \"%s\" [style=%s color=\"%s\"];\n",
				sanitizeID(path), sanitizeID(imp), edgeStyle(key, cycleEdges), edgeColor(key, cycleEdges, violationEdges)))
		}
	}

	b.WriteString("}\n")
	return b.String()
}

func nodeColor(path string, cycleMembers, hubs map[string]bool) string {
	switch {
	case cycleMembers[path]:
		return "#f85149"
	case hubs[path]:
		return "#d29922"
	default:
		return "#1f6feb"
	}
}

func edgeStyle(key edgeKey, cycleEdges map[edgeKey]bool) string {
	if cycleEdges[key] {
		return "bold"
	}
	return "solid"
}

func edgeColor(key edgeKey, cycleEdges, violationEdges map[edgeKey]bool) string {
	switch {
	case cycleEdges[key]:
		return "#f85149"
	case violationEdges[key]:
		return "#d29922"
	default:
		return "#8b949e"
	}
}
