package qualitygate

import (
	"fmt"
	"strings"
)

// GateConfig holds the per-gate limits and severities. A limit of -1
// disables the corresponding gate entirely.
type GateConfig struct {
	Enabled bool `mapstructure:"enabled" json:"enabled"`

	MaxCycles     int    `mapstructure:"max_cycles" json:"max_cycles"`
	CycleSeverity string `mapstructure:"cycle_severity" json:"cycle_severity"`

	MaxCouplingIssues int    `mapstructure:"max_coupling_issues" json:"max_coupling_issues"`
	CouplingSeverity  string `mapstructure:"coupling_severity" json:"coupling_severity"`

	MaxHubs     int    `mapstructure:"max_hubs" json:"max_hubs"`
	HubSeverity string `mapstructure:"hub_severity" json:"hub_severity"`

	MaxLayerViolations int    `mapstructure:"max_layer_violations" json:"max_layer_violations"`
	LayerSeverity      string `mapstructure:"layer_severity" json:"layer_severity"`

	MaxErrors     int    `mapstructure:"max_errors" json:"max_errors"`
	ErrorSeverity string `mapstructure:"error_severity" json:"error_severity"`

	MaxOrphans     int    `mapstructure:"max_orphans" json:"max_orphans"`
	OrphanSeverity string `mapstructure:"orphan_severity" json:"orphan_severity"`
}

// DefaultConfig allows nothing: zero cycles, zero layer violations,
// zero coupling issues, zero errors. Coupling is advisory so a noisy
// hub does not block a build on its own. The hub and orphan gates
// start disabled; the default coupling gate already covers hubs.
func DefaultConfig() *GateConfig {
	return &GateConfig{
		Enabled:          true,
		CycleSeverity:    "critical",
		CouplingSeverity: "advisory",
		LayerSeverity:    "required",
		ErrorSeverity:    "critical",
		MaxHubs:          -1,
		HubSeverity:      "required",
		MaxOrphans:       -1,
		OrphanSeverity:   "advisory",
	}
}

// parseSeverity maps a config string to a GateSeverity, defaulting to
// required for anything unrecognized.
func parseSeverity(s string) GateSeverity {
	switch s {
	case "critical":
		return SeverityCritical
	case "required":
		return SeverityRequired
	case "advisory":
		return SeverityAdvisory
	default:
		return SeverityRequired
	}
}

// BuildPipeline assembles the gate pipeline from configuration. Gate
// order is fixed: errors first so a broken scan aborts before the
// structural gates, then cycles, layers, coupling, hubs, orphans.
func BuildPipeline(cfg *GateConfig) *Pipeline {
	if cfg == nil {
		cfg = DefaultConfig()
	}

	specs := []struct {
		limit    int
		severity string
		build    func(int, GateSeverity) Gate
	}{
		{cfg.MaxErrors, cfg.ErrorSeverity, NewErrorGate},
		{cfg.MaxCycles, cfg.CycleSeverity, NewCycleGate},
		{cfg.MaxLayerViolations, cfg.LayerSeverity, NewLayerGate},
		{cfg.MaxCouplingIssues, cfg.CouplingSeverity, NewCouplingGate},
		{cfg.MaxHubs, cfg.HubSeverity, NewHubGate},
		{cfg.MaxOrphans, cfg.OrphanSeverity, NewOrphanGate},
	}

	p := NewPipeline()
	for _, spec := range specs {
		if spec.limit >= 0 {
			p.AddGate(spec.build(spec.limit, parseSeverity(spec.severity)))
		}
	}
	return p
}

func statusIcon(s GateStatus) string {
	switch s {
	case GateFailed:
		return "✗"
	case GateSkipped:
		return "○"
	case GateWarning:
		return "⚠"
	default:
		return "✓"
	}
}

func severityTag(s GateSeverity) string {
	switch s {
	case SeverityCritical:
		return "[CRITICAL]"
	case SeverityRequired:
		return "[REQUIRED]"
	case SeverityAdvisory:
		return "[ADVISORY]"
	default:
		return ""
	}
}

// FormatReport renders a pipeline result for terminal output.
func FormatReport(result *PipelineResult) string {
	var b strings.Builder
	b.WriteString("╔══════════════════════════════════════════╗\n")
	b.WriteString("║        Quality Gate Report               ║\n")
	b.WriteString("╠══════════════════════════════════════════╣\n")

	for _, gr := range result.Gates {
		fmt.Fprintf(&b, "║ %s %-14s %-10s %s\n",
			statusIcon(gr.Status), gr.Name, severityTag(gr.Severity), gr.Message)
		for _, d := range gr.Details {
			fmt.Fprintf(&b, "║   → %s\n", d)
		}
	}

	b.WriteString("╠══════════════════════════════════════════╣\n")
	status := "PASSED"
	if result.Status == GateFailed {
		status = "FAILED"
	}
	fmt.Fprintf(&b, "║ Result: %s (%s)\n", status, result.Summary)
	b.WriteString("╚══════════════════════════════════════════╝\n")

	return b.String()
}
