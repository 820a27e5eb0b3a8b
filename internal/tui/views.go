package tui

import (
	"fmt"
	"sort"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/efebarandurmaz/strata/internal/depgraph"
)

// topImportedLimit caps the most-imported list on the summary tab.
const topImportedLimit = 10

// renderSummary builds the statistics pane
func (m BrowserModel) renderSummary() string {
	var b strings.Builder

	b.WriteString(m.styles.Subtitle.Render("Statistics"))
	b.WriteString("\n\n")

	b.WriteString(fmt.Sprintf("  Modules:                 %d\n", len(m.report.Modules)))
	b.WriteString(fmt.Sprintf("  Internal edges:          %d\n", m.report.InternalEdgeCount()))
	b.WriteString(fmt.Sprintf("  Circular dependencies:   %s\n", countCell(len(m.report.Cycles), ColorRed)))
	b.WriteString(fmt.Sprintf("  High coupling:           %s\n", countCell(len(m.report.CouplingIssues), ColorYellow)))
	b.WriteString(fmt.Sprintf("  Layer violations:        %s\n", countCell(len(m.report.LayerViolations), ColorRed)))

	top := m.topImported()
	if len(top) > 0 {
		b.WriteString("\n")
		b.WriteString(m.styles.Subtitle.Render("Most imported"))
		b.WriteString("\n\n")
		for _, mod := range top {
			b.WriteString(fmt.Sprintf("  %3d ← %s\n", mod.ImportedByCount, mod.Path))
		}
	}

	return b.String()
}

// countCell renders a count bold, green at zero and in tone otherwise.
func countCell(n int, tone string) string {
	color := ColorGreen
	if n > 0 {
		color = tone
	}
	return lipgloss.NewStyle().
		Foreground(lipgloss.Color(color)).
		Bold(true).
		Render(fmt.Sprintf("%d", n))
}

// topImported returns the most referenced modules, busiest first.
func (m BrowserModel) topImported() []*depgraph.Module {
	modules := make([]*depgraph.Module, 0, len(m.report.Modules))
	for _, mod := range m.report.Modules {
		if mod.ImportedByCount > 0 {
			modules = append(modules, mod)
		}
	}
	sort.Slice(modules, func(i, j int) bool {
		if modules[i].ImportedByCount != modules[j].ImportedByCount {
			return modules[i].ImportedByCount > modules[j].ImportedByCount
		}
		return modules[i].Path < modules[j].Path
	})
	if len(modules) > topImportedLimit {
		modules = modules[:topImportedLimit]
	}
	return modules
}

// renderCycles builds the circular dependencies pane
func (m BrowserModel) renderCycles() string {
	if len(m.report.Cycles) == 0 {
		return m.styles.BadgeGood.Render("No circular dependencies")
	}

	var b strings.Builder
	b.WriteString(m.styles.BadgeBad.Render(fmt.Sprintf("%d", len(m.report.Cycles))))
	b.WriteString(m.styles.Subtitle.Render(" circular dependencies"))
	b.WriteString("\n\n")

	for i, cycle := range m.report.Cycles {
		b.WriteString(fmt.Sprintf("  %2d. %s\n", i+1, cycle.Description()))
	}
	return b.String()
}

// renderCoupling builds the coupling pane. Issues arrive sorted by total
// degree, highest first.
func (m BrowserModel) renderCoupling() string {
	if len(m.report.CouplingIssues) == 0 {
		return m.styles.BadgeGood.Render("No coupling issues")
	}

	var b strings.Builder
	b.WriteString(m.styles.BadgeWarn.Render(fmt.Sprintf("%d", len(m.report.CouplingIssues))))
	b.WriteString(m.styles.Subtitle.Render(" highly coupled modules"))
	b.WriteString("\n\n")

	limit := m.cfg.TotalCouplingThreshold
	for _, issue := range m.report.CouplingIssues {
		badge := CouplingColor(issue.Total, limit).Render(fmt.Sprintf("%d", issue.Total))
		line := fmt.Sprintf("  %s %s  in:%d out:%d", badge, issue.Module, issue.Incoming, issue.Outgoing)
		if issue.Hub {
			line += "  " + m.styles.BadgeWarn.Render("HUB")
		}
		b.WriteString(line)
		b.WriteString("\n")
	}
	return b.String()
}

// renderViolations builds the layer violations pane
func (m BrowserModel) renderViolations() string {
	if len(m.report.LayerViolations) == 0 {
		return m.styles.BadgeGood.Render("No layer violations")
	}

	var b strings.Builder
	b.WriteString(m.styles.BadgeBad.Render(fmt.Sprintf("%d", len(m.report.LayerViolations))))
	b.WriteString(m.styles.Subtitle.Render(" layer violations"))
	b.WriteString("\n\n")

	for _, v := range m.report.LayerViolations {
		b.WriteString(fmt.Sprintf("  %s → %s  (%s)\n", v.Source, v.Target, v.Label))
	}
	return b.String()
}
