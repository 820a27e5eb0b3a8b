package metrics

import (
	"encoding/json"
	"fmt"
	"io"
	"time"

	"github.com/efebarandurmaz/strata/internal/depgraph"
	"github.com/efebarandurmaz/strata/internal/lang"
)

// RunMetrics collects statistics for a full analysis run.
type RunMetrics struct {
	StartedAt  time.Time       `json:"started_at"`
	FinishedAt time.Time       `json:"finished_at"`
	DurationMS int64           `json:"duration_ms"`
	Scan       ScanMetrics     `json:"scan"`
	Analysis   AnalysisMetrics `json:"analysis"`
	Stages     []StageMetrics  `json:"stages"`
	Errors     []string        `json:"errors,omitempty"`
}

type ScanMetrics struct {
	FileCount  int `json:"file_count"`
	TotalBytes int `json:"total_bytes"`
}

type AnalysisMetrics struct {
	ModuleCount    int `json:"module_count"`
	InternalEdges  int `json:"internal_edges"`
	CycleCount     int `json:"cycle_count"`
	CouplingCount  int `json:"coupling_count"`
	HubCount       int `json:"hub_count"`
	ViolationCount int `json:"violation_count"`
}

type StageMetrics struct {
	Name       string `json:"name"`
	DurationMS int64  `json:"duration_ms"`
	Errors     int    `json:"errors"`
}

// New starts tracking an analysis run.
func New() *RunMetrics {
	return &RunMetrics{StartedAt: time.Now()}
}

// CollectScan computes scan-side metrics from the loaded files.
func (m *RunMetrics) CollectScan(files []lang.SourceFile) {
	m.Scan.FileCount = len(files)
	m.Scan.TotalBytes = 0
	for _, f := range files {
		m.Scan.TotalBytes += len(f.Content)
	}
}

// CollectAnalysis computes result-side metrics from the report.
func (m *RunMetrics) CollectAnalysis(r *depgraph.Report) {
	m.Analysis.ModuleCount = len(r.Modules)
	m.Analysis.InternalEdges = r.InternalEdgeCount()
	m.Analysis.CycleCount = len(r.Cycles)
	m.Analysis.CouplingCount = len(r.CouplingIssues)
	m.Analysis.ViolationCount = len(r.LayerViolations)

	m.Analysis.HubCount = 0
	for _, issue := range r.CouplingIssues {
		if issue.Hub {
			m.Analysis.HubCount++
		}
	}
}

// AddStage records a single stage's timing and error count.
func (m *RunMetrics) AddStage(name string, d time.Duration, errCount int) {
	m.Stages = append(m.Stages, StageMetrics{
		Name:       name,
		DurationMS: d.Milliseconds(),
		Errors:     errCount,
	})
}

// Finish marks the run as complete.
func (m *RunMetrics) Finish(errs []string) {
	m.FinishedAt = time.Now()
	m.DurationMS = m.FinishedAt.Sub(m.StartedAt).Milliseconds()
	m.Errors = errs
}

// PrintSummary writes a human-readable summary.
func (m *RunMetrics) PrintSummary(w io.Writer) {
	fmt.Fprintf(w, "\n╔══════════════════════════════════════╗\n")
	fmt.Fprintf(w, "║       STRATA ANALYSIS REPORT         ║\n")
	fmt.Fprintf(w, "╠══════════════════════════════════════╣\n")
	fmt.Fprintf(w, "║ Duration:    %-23s║\n", (time.Duration(m.DurationMS) * time.Millisecond).String())
	fmt.Fprintf(w, "╠══════════════════════════════════════╣\n")
	fmt.Fprintf(w, "║ SCAN\n")
	fmt.Fprintf(w, "║   Files:       %d\n", m.Scan.FileCount)
	fmt.Fprintf(w, "║   Total Size:  %s\n", formatBytes(m.Scan.TotalBytes))
	fmt.Fprintf(w, "╠══════════════════════════════════════╣\n")
	fmt.Fprintf(w, "║ ANALYSIS\n")
	fmt.Fprintf(w, "║   Modules:     %d\n", m.Analysis.ModuleCount)
	fmt.Fprintf(w, "║   Edges:       %d\n", m.Analysis.InternalEdges)
	fmt.Fprintf(w, "║   Cycles:      %d\n", m.Analysis.CycleCount)
	fmt.Fprintf(w, "║   Coupling:    %d\n", m.Analysis.CouplingCount)
	fmt.Fprintf(w, "║   Hubs:        %d\n", m.Analysis.HubCount)
	fmt.Fprintf(w, "║   Violations:  %d\n", m.Analysis.ViolationCount)
	fmt.Fprintf(w, "╠══════════════════════════════════════╣\n")
	fmt.Fprintf(w, "║ STAGES\n")
	for _, s := range m.Stages {
		status := "OK"
		if s.Errors > 0 {
			status = fmt.Sprintf("%d errors", s.Errors)
		}
		fmt.Fprintf(w, "║   %-14s %6dms  %s\n", s.Name, s.DurationMS, status)
	}
	if len(m.Errors) > 0 {
		fmt.Fprintf(w, "╠══════════════════════════════════════╣\n")
		fmt.Fprintf(w, "║ ERRORS\n")
		for _, e := range m.Errors {
			fmt.Fprintf(w, "║   • %s\n", e)
		}
	}
	fmt.Fprintf(w, "╚══════════════════════════════════════╝\n")
}

// JSON returns the metrics as formatted JSON.
func (m *RunMetrics) JSON() ([]byte, error) {
	return json.MarshalIndent(m, "", "  ")
}

func formatBytes(b int) string {
	switch {
	case b >= 1<<20:
		return fmt.Sprintf("%.1f MB", float64(b)/float64(1<<20))
	case b >= 1<<10:
		return fmt.Sprintf("%.1f KB", float64(b)/float64(1<<10))
	default:
		return fmt.Sprintf("%d B", b)
	}
}
