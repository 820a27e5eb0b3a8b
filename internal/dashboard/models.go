package dashboard

import (
	"time"

	"github.com/efebarandurmaz/strata/internal/depgraph"
)

// RunStatus represents the state of an analysis run.
type RunStatus string

const (
	StatusPending   RunStatus = "pending"
	StatusRunning   RunStatus = "running"
	StatusCompleted RunStatus = "completed"
	StatusFailed    RunStatus = "failed"
)

// Trigger identifies what started an analysis run.
type Trigger string

const (
	TriggerScan     Trigger = "scan"
	TriggerRebuild  Trigger = "rebuild"
	TriggerWorkflow Trigger = "workflow"
)

// AnalysisRun represents a single scan-and-analyze pass over a source tree.
type AnalysisRun struct {
	ID             string     `json:"id"`
	Root           string     `json:"root"`
	Trigger        Trigger    `json:"trigger"`
	Status         RunStatus  `json:"status"`
	StartedAt      time.Time  `json:"started_at"`
	CompletedAt    *time.Time `json:"completed_at,omitempty"`
	DurationMS     int64      `json:"duration_ms"`
	Error          string     `json:"error,omitempty"`
	FileCount      int        `json:"file_count"`
	ModuleCount    int        `json:"module_count"`
	EdgeCount      int        `json:"edge_count"`
	CycleCount     int        `json:"cycle_count"`
	CouplingCount  int        `json:"coupling_count"`
	ViolationCount int        `json:"violation_count"`
}

// ReportSummary is the lightweight payload broadcast on report updates,
// small enough to push over SSE without shipping the whole module map.
type ReportSummary struct {
	ModuleCount    int       `json:"module_count"`
	EdgeCount      int       `json:"edge_count"`
	CycleCount     int       `json:"cycle_count"`
	CouplingCount  int       `json:"coupling_count"`
	ViolationCount int       `json:"violation_count"`
	GeneratedAt    time.Time `json:"generated_at"`
}

// Summarize condenses a report into its headline counts.
func Summarize(r *depgraph.Report) ReportSummary {
	if r == nil {
		return ReportSummary{}
	}
	return ReportSummary{
		ModuleCount:    len(r.Modules),
		EdgeCount:      r.InternalEdgeCount(),
		CycleCount:     len(r.Cycles),
		CouplingCount:  len(r.CouplingIssues),
		ViolationCount: len(r.LayerViolations),
	}
}

// DashboardStats holds aggregate statistics across recorded runs plus the
// headline counts of the latest report.
type DashboardStats struct {
	TotalRuns       int     `json:"total_runs"`
	ActiveRuns      int     `json:"active_runs"`
	CompletedRuns   int     `json:"completed_runs"`
	FailedRuns      int     `json:"failed_runs"`
	FilesScanned    int     `json:"files_scanned"`
	AvgDuration     float64 `json:"avg_duration_seconds"`
	SuccessRate     float64 `json:"success_rate"`
	Modules         int     `json:"modules"`
	Cycles          int     `json:"cycles"`
	CouplingIssues  int     `json:"coupling_issues"`
	LayerViolations int     `json:"layer_violations"`
}

// Event represents a real-time dashboard event.
type Event struct {
	Type      string      `json:"type"`
	Timestamp time.Time   `json:"timestamp"`
	RunID     string      `json:"run_id,omitempty"`
	Data      interface{} `json:"data,omitempty"`
}

// LogEntry represents a log line attached to a run.
type LogEntry struct {
	Timestamp time.Time `json:"timestamp"`
	Level     string    `json:"level"`
	Message   string    `json:"message"`
	RunID     string    `json:"run_id"`
	Source    string    `json:"source,omitempty"`
}
