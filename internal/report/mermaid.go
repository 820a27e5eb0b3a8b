package report

import (
	"strings"

	"github.com/efebarandurmaz/strata/internal/depgraph"
)

// FormatMermaid renders the densest corner of the graph as a Mermaid
// flowchart. Only the maxNodes most connected modules appear, and only
// edges between them.
func FormatMermaid(r *depgraph.Report, maxNodes int) string {
	if maxNodes <= 0 {
		maxNodes = MaxMermaidNodes
	}

	ranked := modulesByDegree(r)
	if len(ranked) > maxNodes {
		ranked = ranked[:maxNodes]
	}

	included := make(map[string]bool, len(ranked))
	for _, m := range ranked {
		included[m.Path] = true
	}

	lines := []string{"graph LR"}
	for _, m := range ranked {
		from := sanitizeID(m.Path)
		for _, imp := range m.Imports {
			if !included[imp] {
				continue
			}
			lines = append(lines, "    "+from+" --> "+sanitizeID(imp))
		}
	}
	return strings.Join(lines, "\n")
}
