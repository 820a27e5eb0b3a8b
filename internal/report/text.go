package report

import (
	"fmt"
	"strings"

	"github.com/efebarandurmaz/strata/internal/depgraph"
)

// FormatText renders the report as the human-readable console summary.
func FormatText(r *depgraph.Report) string {
	var b strings.Builder
	rule := strings.Repeat("=", 60)
	sub := strings.Repeat("-", 40)

	b.WriteString(rule + "\n")
	b.WriteString("DEPENDENCY ANALYSIS REPORT\n")
	b.WriteString(rule + "\n\n")

	b.WriteString("SUMMARY\n")
	b.WriteString(sub + "\n")
	fmt.Fprintf(&b, "Modules analyzed: %d\n", len(r.Modules))
	fmt.Fprintf(&b, "Circular dependencies: %d\n", len(r.Cycles))
	fmt.Fprintf(&b, "High coupling modules: %d\n", len(r.CouplingIssues))
	fmt.Fprintf(&b, "Layer violations: %d\n\n", len(r.LayerViolations))

	if len(r.Cycles) > 0 {
		b.WriteString("🔄 CIRCULAR DEPENDENCIES\n")
		b.WriteString(sub + "\n")
		for i, cycle := range r.Cycles {
			fmt.Fprintf(&b, "%d. %s\n", i+1, cycle.Description())
		}
		b.WriteString("\n")
	}

	if len(r.CouplingIssues) > 0 {
		b.WriteString("🔗 HIGH COUPLING MODULES\n")
		b.WriteString(sub + "\n")
		for _, issue := range truncateCoupling(r.CouplingIssues, MaxCouplingDisplay) {
			marker := ""
			if issue.Hub {
				marker = " [HUB]"
			}
			fmt.Fprintf(&b, "%s%s\n", issue.Module, marker)
			fmt.Fprintf(&b, "  Incoming: %d | Outgoing: %d | Total: %d\n", issue.Incoming, issue.Outgoing, issue.Total)
		}
		b.WriteString("\n")
	}

	if len(r.LayerViolations) > 0 {
		b.WriteString("⚠️ LAYER VIOLATIONS\n")
		b.WriteString(sub + "\n")
		for _, v := range truncateViolations(r.LayerViolations, MaxViolationsDisplay) {
			fmt.Fprintf(&b, "%s\n", v.Label)
			fmt.Fprintf(&b, "  %s\n", v.Source)
			fmt.Fprintf(&b, "  → %s\n\n", v.Target)
		}
	}

	b.WriteString("📊 MOST IMPORTED MODULES\n")
	b.WriteString(sub + "\n")
	ranked := modulesByImportedBy(r)
	if len(ranked) > TopModulesLimit {
		ranked = ranked[:TopModulesLimit]
	}
	for _, m := range ranked {
		if m.ImportedByCount > 0 {
			fmt.Fprintf(&b, "%3d imports ← %s\n", m.ImportedByCount, m.Path)
		}
	}
	b.WriteString("\n")

	b.WriteString(rule + "\n")
	return b.String()
}

func truncateCoupling(issues []depgraph.CouplingIssue, limit int) []depgraph.CouplingIssue {
	if len(issues) > limit {
		return issues[:limit]
	}
	return issues
}

func truncateViolations(violations []depgraph.LayerViolation, limit int) []depgraph.LayerViolation {
	if len(violations) > limit {
		return violations[:limit]
	}
	return violations
}
