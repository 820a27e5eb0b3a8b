package temporal

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/efebarandurmaz/strata/internal/depgraph"
	"github.com/efebarandurmaz/strata/internal/graph"
	"github.com/efebarandurmaz/strata/internal/lang"
	"github.com/efebarandurmaz/strata/internal/observability"
	"github.com/efebarandurmaz/strata/internal/qualitygate"
	"github.com/efebarandurmaz/strata/internal/scanner"
	"github.com/efebarandurmaz/strata/internal/vector"
)

// ActivityResult is the serializable result passed between activities.
type ActivityResult struct {
	FilesJSON  string
	ReportJSON string

	FileCount      int
	ModuleCount    int
	CycleCount     int
	CouplingCount  int
	ViolationCount int

	GatesPassed  bool
	GateFailures []string

	GraphNodes     int
	GraphEdges     int
	IndexedModules int
}

// Dependencies holds shared resources injected into activities.
type Dependencies struct {
	Registry       *lang.Registry
	ScanConfig     scanner.Config // Root is taken from the workflow input
	AnalysisConfig depgraph.Config
	Gates          *qualitygate.Pipeline        // nil falls back to the default pipeline
	Graph          graph.Repository             // nil fails PushGraphActivity
	Vector         *vector.Embedder             // nil fails IndexVectorActivity
	Metrics        *observability.StrataMetrics // optional
	Audit          *observability.AuditLogger   // optional
}

var deps *Dependencies

// SetDependencies injects shared resources (called during worker setup).
func SetDependencies(d *Dependencies) {
	deps = d
}

// ScanActivity walks the input tree on the worker's filesystem and returns
// the claimed files as a JSON payload.
func ScanActivity(ctx context.Context, input AnalysisInput) (ActivityResult, error) {
	cfg := deps.ScanConfig
	cfg.Root = input.Root
	sc := scanner.New(cfg, deps.Registry)

	if deps.Audit != nil {
		deps.Audit.LogScanStart(ctx, input.Root)
	}

	start := time.Now()
	files, err := sc.Scan(ctx)
	if deps.Metrics != nil {
		deps.Metrics.RecordScan(time.Since(start), len(files), err)
	}
	if err != nil {
		if deps.Audit != nil {
			deps.Audit.LogScanError(ctx, input.Root, err)
		}
		return ActivityResult{}, fmt.Errorf("scan %s: %w", input.Root, err)
	}
	if deps.Audit != nil {
		deps.Audit.LogScanComplete(ctx, input.Root, len(files), time.Since(start))
	}

	filesJSON, err := json.Marshal(files)
	if err != nil {
		return ActivityResult{}, fmt.Errorf("marshal files: %w", err)
	}

	return ActivityResult{FilesJSON: string(filesJSON), FileCount: len(files)}, nil
}

// AnalyzeActivity builds the dependency report from a scanned file set.
func AnalyzeActivity(ctx context.Context, input AnalysisInput, filesJSON string) (ActivityResult, error) {
	var files []lang.SourceFile
	if err := json.Unmarshal([]byte(filesJSON), &files); err != nil {
		return ActivityResult{}, fmt.Errorf("unmarshal files: %w", err)
	}

	analyzer := depgraph.NewAnalyzer(input.Root, deps.Registry, deps.AnalysisConfig)

	start := time.Now()
	report := analyzer.Analyze(files)
	duration := time.Since(start)

	if deps.Metrics != nil {
		deps.Metrics.RecordAnalysis(duration, len(report.Modules), len(report.Cycles), len(report.CouplingIssues), len(report.LayerViolations))
	}
	if deps.Audit != nil {
		deps.Audit.LogAnalysis(ctx, input.Root, len(report.Modules), len(report.Cycles), len(report.CouplingIssues), len(report.LayerViolations), duration)
	}

	reportJSON, err := json.Marshal(report)
	if err != nil {
		return ActivityResult{}, fmt.Errorf("marshal report: %w", err)
	}

	return ActivityResult{
		ReportJSON:     string(reportJSON),
		FileCount:      len(files),
		ModuleCount:    len(report.Modules),
		CycleCount:     len(report.Cycles),
		CouplingCount:  len(report.CouplingIssues),
		ViolationCount: len(report.LayerViolations),
	}, nil
}

// GateActivity evaluates the quality gate pipeline over a report.
func GateActivity(ctx context.Context, reportJSON string) (ActivityResult, error) {
	var report depgraph.Report
	if err := json.Unmarshal([]byte(reportJSON), &report); err != nil {
		return ActivityResult{}, fmt.Errorf("unmarshal report: %w", err)
	}

	pipeline := deps.Gates
	if pipeline == nil {
		pipeline = qualitygate.BuildPipeline(qualitygate.DefaultConfig())
	}

	result := pipeline.Run(&qualitygate.EvalContext{Report: &report})
	passed := result.Status == qualitygate.GatePassed

	var failures []string
	for _, gr := range result.Gates {
		if gr.Status == qualitygate.GateFailed {
			failures = append(failures, fmt.Sprintf("%s: %s", gr.Name, gr.Message))
		}
	}

	if deps.Metrics != nil {
		deps.Metrics.RecordGateRun(passed)
	}
	if deps.Audit != nil {
		deps.Audit.LogGateRun(ctx, passed, failures)
	}

	return ActivityResult{GatesPassed: passed, GateFailures: failures}, nil
}

// PushGraphActivity persists the report to the graph database under the
// input's project scope.
func PushGraphActivity(ctx context.Context, input AnalysisInput, reportJSON string) (ActivityResult, error) {
	if deps.Graph == nil {
		return ActivityResult{}, fmt.Errorf("graph repository not configured")
	}

	var report depgraph.Report
	if err := json.Unmarshal([]byte(reportJSON), &report); err != nil {
		return ActivityResult{}, fmt.Errorf("unmarshal report: %w", err)
	}

	start := time.Now()
	stats, err := deps.Graph.StoreReport(ctx, input.Project, &report)
	if deps.Metrics != nil {
		deps.Metrics.RecordGraphPush(time.Since(start), err)
	}
	if err != nil {
		return ActivityResult{}, fmt.Errorf("store report: %w", err)
	}
	if deps.Audit != nil {
		deps.Audit.LogGraphPush(ctx, stats.Nodes, stats.Edges, time.Since(start))
	}

	return ActivityResult{GraphNodes: stats.Nodes, GraphEdges: stats.Edges}, nil
}

// IndexVectorActivity embeds and upserts the report's module profiles.
func IndexVectorActivity(ctx context.Context, input AnalysisInput, reportJSON string) (ActivityResult, error) {
	if deps.Vector == nil {
		return ActivityResult{}, fmt.Errorf("vector store not configured")
	}

	var report depgraph.Report
	if err := json.Unmarshal([]byte(reportJSON), &report); err != nil {
		return ActivityResult{}, fmt.Errorf("unmarshal report: %w", err)
	}

	start := time.Now()
	indexed, err := deps.Vector.IndexReport(ctx, input.Project, &report)
	if err != nil {
		return ActivityResult{}, fmt.Errorf("index report: %w", err)
	}
	if deps.Audit != nil {
		deps.Audit.LogVectorIndex(ctx, indexed, time.Since(start))
	}

	return ActivityResult{IndexedModules: indexed}, nil
}
