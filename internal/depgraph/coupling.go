package depgraph

import "sort"

// AnalyzeCoupling scores every module's combined degree against the
// configured thresholds. Pure read over the built map.
func AnalyzeCoupling(modules map[string]*Module, cfg Config) []CouplingIssue {
	var issues []CouplingIssue
	for _, path := range sortedModulePaths(modules) {
		m := modules[path]
		incoming := m.ImportedByCount
		outgoing := m.ImportCount
		total := incoming + outgoing

		high := incoming > cfg.HighCouplingThreshold && outgoing > cfg.HighCouplingThreshold
		if total > cfg.TotalCouplingThreshold || high {
			issues = append(issues, CouplingIssue{
				Module:   path,
				Incoming: incoming,
				Outgoing: outgoing,
				Total:    total,
				Hub:      high,
			})
		}
	}

	sort.Slice(issues, func(i, j int) bool {
		if issues[i].Total != issues[j].Total {
			return issues[i].Total > issues[j].Total
		}
		return issues[i].Module < issues[j].Module
	})
	return issues
}
