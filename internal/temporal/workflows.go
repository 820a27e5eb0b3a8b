package temporal

import (
	"fmt"
	"time"

	sdktemporal "go.temporal.io/sdk/temporal"
	"go.temporal.io/sdk/workflow"
)

// AnalysisInput holds the workflow parameters.
type AnalysisInput struct {
	Root    string
	Project string // graph/vector scope, defaults to the root's base name

	PushGraph   bool // persist the report to the graph database
	IndexVector bool // index module profiles for similarity search
	RunGates    bool // evaluate quality gates on the report
}

// AnalysisOutput holds the workflow result.
type AnalysisOutput struct {
	// WorkflowID is filled in by ExecuteAnalysis, not by the workflow.
	WorkflowID string

	ReportJSON     string
	FileCount      int
	ModuleCount    int
	CycleCount     int
	CouplingCount  int
	ViolationCount int

	// GatesPassed is vacuously true when gates were not requested.
	GatesPassed  bool
	GateFailures []string

	GraphNodes     int
	GraphEdges     int
	IndexedModules int
}

// AnalysisWorkflow runs scan → analyze → gate → persist as retryable
// activities. Gate failures are a result, not an error: the report is
// still persisted so the stored graph reflects the tree as it is.
func AnalysisWorkflow(ctx workflow.Context, input AnalysisInput) (*AnalysisOutput, error) {
	ao := workflow.ActivityOptions{
		StartToCloseTimeout: 5 * time.Minute,
		RetryPolicy: &sdktemporal.RetryPolicy{
			InitialInterval:    time.Second,
			BackoffCoefficient: 2.0,
			MaximumAttempts:    3,
		},
	}
	ctx = workflow.WithActivityOptions(ctx, ao)

	// Step 1: load the source tree
	var scanResult ActivityResult
	if err := workflow.ExecuteActivity(ctx, ScanActivity, input).Get(ctx, &scanResult); err != nil {
		return nil, fmt.Errorf("scan: %w", err)
	}

	// Step 2: build the dependency report
	var analyzeResult ActivityResult
	if err := workflow.ExecuteActivity(ctx, AnalyzeActivity, input, scanResult.FilesJSON).Get(ctx, &analyzeResult); err != nil {
		return nil, fmt.Errorf("analyze: %w", err)
	}

	output := &AnalysisOutput{
		ReportJSON:     analyzeResult.ReportJSON,
		FileCount:      scanResult.FileCount,
		ModuleCount:    analyzeResult.ModuleCount,
		CycleCount:     analyzeResult.CycleCount,
		CouplingCount:  analyzeResult.CouplingCount,
		ViolationCount: analyzeResult.ViolationCount,
		GatesPassed:    true,
	}

	// Step 3: quality gates
	if input.RunGates {
		var gateResult ActivityResult
		if err := workflow.ExecuteActivity(ctx, GateActivity, analyzeResult.ReportJSON).Get(ctx, &gateResult); err != nil {
			return nil, fmt.Errorf("gates: %w", err)
		}
		output.GatesPassed = gateResult.GatesPassed
		output.GateFailures = gateResult.GateFailures
	}

	// Step 4: persist to the graph database
	if input.PushGraph {
		var pushResult ActivityResult
		if err := workflow.ExecuteActivity(ctx, PushGraphActivity, input, analyzeResult.ReportJSON).Get(ctx, &pushResult); err != nil {
			return nil, fmt.Errorf("push graph: %w", err)
		}
		output.GraphNodes = pushResult.GraphNodes
		output.GraphEdges = pushResult.GraphEdges
	}

	// Step 5: index module profiles
	if input.IndexVector {
		var indexResult ActivityResult
		if err := workflow.ExecuteActivity(ctx, IndexVectorActivity, input, analyzeResult.ReportJSON).Get(ctx, &indexResult); err != nil {
			return nil, fmt.Errorf("index vectors: %w", err)
		}
		output.IndexedModules = indexResult.IndexedModules
	}

	return output, nil
}
