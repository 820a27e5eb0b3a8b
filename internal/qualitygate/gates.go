package qualitygate

import (
	"fmt"
	"sort"

	"github.com/efebarandurmaz/strata/internal/depgraph"
)

// countGate compares an observed count against a limit. Every shipped
// gate is an instance of this with a different extractor; a count at
// the limit passes, one above it fails.
type countGate struct {
	name     string
	noun     string
	limit    int
	severity GateSeverity

	// count reports the observed value, or false when the context
	// carries nothing to measure and the gate must be skipped.
	count func(ctx *EvalContext) (int, bool)

	// details lists the offending items, only consulted on failure.
	details func(ctx *EvalContext) []string
}

func (g *countGate) Name() string           { return g.name }
func (g *countGate) Severity() GateSeverity { return g.severity }

func (g *countGate) Evaluate(ctx *EvalContext) (*GateResult, error) {
	r := &GateResult{Name: g.name, Severity: g.severity}

	count, ok := g.count(ctx)
	if !ok {
		r.Status = GateSkipped
		r.Message = "No analysis report available"
		return r, nil
	}

	if count <= g.limit {
		r.Status = GatePassed
		r.Score = 1.0
		r.Message = fmt.Sprintf("%s count %d within limit %d", g.noun, count, g.limit)
		return r, nil
	}

	r.Status = GateFailed
	r.Message = fmt.Sprintf("%s count %d exceeds limit %d", g.noun, count, g.limit)
	if g.details != nil {
		r.Details = g.details(ctx)
	}
	return r, nil
}

// fromReport lifts a report counter into a countGate extractor. The
// gate is skipped when no report is attached to the context.
func fromReport(fn func(*depgraph.Report) int) func(*EvalContext) (int, bool) {
	return func(ctx *EvalContext) (int, bool) {
		if ctx.Report == nil {
			return 0, false
		}
		return fn(ctx.Report), true
	}
}

// NewCycleGate limits the number of circular dependencies in the
// analyzed graph.
func NewCycleGate(maxCycles int, severity GateSeverity) Gate {
	return &countGate{
		name:     "cycles",
		noun:     "Circular dependency",
		limit:    maxCycles,
		severity: severity,
		count:    fromReport(func(r *depgraph.Report) int { return len(r.Cycles) }),
		details: func(ctx *EvalContext) []string {
			out := make([]string, 0, len(ctx.Report.Cycles))
			for _, cycle := range ctx.Report.Cycles {
				out = append(out, cycle.Description())
			}
			return out
		},
	}
}

func couplingDetails(issues []depgraph.CouplingIssue) []string {
	out := make([]string, 0, len(issues))
	for _, issue := range issues {
		out = append(out, fmt.Sprintf("%s (incoming %d, outgoing %d)",
			issue.Module, issue.Incoming, issue.Outgoing))
	}
	return out
}

// hubIssues filters a report's coupling findings down to hubs: modules
// over the high threshold in both directions.
func hubIssues(r *depgraph.Report) []depgraph.CouplingIssue {
	var hubs []depgraph.CouplingIssue
	for _, issue := range r.CouplingIssues {
		if issue.Hub {
			hubs = append(hubs, issue)
		}
	}
	return hubs
}

// NewCouplingGate limits the number of highly coupled modules.
func NewCouplingGate(maxIssues int, severity GateSeverity) Gate {
	return &countGate{
		name:     "coupling",
		noun:     "High coupling",
		limit:    maxIssues,
		severity: severity,
		count:    fromReport(func(r *depgraph.Report) int { return len(r.CouplingIssues) }),
		details: func(ctx *EvalContext) []string {
			return couplingDetails(ctx.Report.CouplingIssues)
		},
	}
}

// NewHubGate limits dependency hubs only. Narrower than the coupling
// gate, which counts every flagged module.
func NewHubGate(maxHubs int, severity GateSeverity) Gate {
	return &countGate{
		name:     "hubs",
		noun:     "Dependency hub",
		limit:    maxHubs,
		severity: severity,
		count:    fromReport(func(r *depgraph.Report) int { return len(hubIssues(r)) }),
		details: func(ctx *EvalContext) []string {
			return couplingDetails(hubIssues(ctx.Report))
		},
	}
}

// NewLayerGate limits the number of layering violations.
func NewLayerGate(maxViolations int, severity GateSeverity) Gate {
	return &countGate{
		name:     "layers",
		noun:     "Layer violation",
		limit:    maxViolations,
		severity: severity,
		count:    fromReport(func(r *depgraph.Report) int { return len(r.LayerViolations) }),
		details: func(ctx *EvalContext) []string {
			out := make([]string, 0, len(ctx.Report.LayerViolations))
			for _, v := range ctx.Report.LayerViolations {
				out = append(out, fmt.Sprintf("%s: %s imports %s", v.Label, v.Source, v.Target))
			}
			return out
		},
	}
}

// orphanModules lists modules with no internal imports in either
// direction, sorted for stable output.
func orphanModules(r *depgraph.Report) []string {
	var out []string
	for path, m := range r.Modules {
		if m.ImportCount == 0 && m.ImportedByCount == 0 {
			out = append(out, path)
		}
	}
	sort.Strings(out)
	return out
}

// NewOrphanGate limits the number of modules disconnected from the
// graph. Off in the default configuration: entry points and standalone
// scripts are orphans by nature.
func NewOrphanGate(maxOrphans int, severity GateSeverity) Gate {
	return &countGate{
		name:     "orphans",
		noun:     "Orphan module",
		limit:    maxOrphans,
		severity: severity,
		count:    fromReport(func(r *depgraph.Report) int { return len(orphanModules(r)) }),
		details:  func(ctx *EvalContext) []string { return orphanModules(ctx.Report) },
	}
}

// NewErrorGate limits the number of pipeline errors. Unlike the report
// gates it never skips: an empty context simply counts zero errors.
func NewErrorGate(maxErrors int, severity GateSeverity) Gate {
	return &countGate{
		name:     "errors",
		noun:     "Error",
		limit:    maxErrors,
		severity: severity,
		count:    func(ctx *EvalContext) (int, bool) { return len(ctx.Errors), true },
		details:  func(ctx *EvalContext) []string { return ctx.Errors },
	}
}
