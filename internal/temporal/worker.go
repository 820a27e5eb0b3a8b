package temporal

import (
	"context"
	"fmt"
	"path/filepath"

	"github.com/google/uuid"
	"go.temporal.io/sdk/client"
	"go.temporal.io/sdk/worker"
)

// StartWorker creates and starts a Temporal worker.
func StartWorker(c client.Client, taskQueue string) (worker.Worker, error) {
	w := worker.New(c, taskQueue, worker.Options{})

	w.RegisterWorkflow(AnalysisWorkflow)
	w.RegisterActivity(ScanActivity)
	w.RegisterActivity(AnalyzeActivity)
	w.RegisterActivity(GateActivity)
	w.RegisterActivity(PushGraphActivity)
	w.RegisterActivity(IndexVectorActivity)

	if err := w.Start(); err != nil {
		return nil, fmt.Errorf("starting worker: %w", err)
	}
	return w, nil
}

// ExecuteAnalysis starts an AnalysisWorkflow and waits for its result.
// An empty Project defaults to the root's base name.
func ExecuteAnalysis(ctx context.Context, c client.Client, taskQueue string, input AnalysisInput) (*AnalysisOutput, error) {
	if input.Project == "" {
		input.Project = filepath.Base(input.Root)
	}

	opts := client.StartWorkflowOptions{
		ID:        "strata-analysis-" + uuid.NewString(),
		TaskQueue: taskQueue,
	}

	we, err := c.ExecuteWorkflow(ctx, opts, AnalysisWorkflow, input)
	if err != nil {
		return nil, fmt.Errorf("start workflow: %w", err)
	}

	var out AnalysisOutput
	if err := we.Get(ctx, &out); err != nil {
		return nil, fmt.Errorf("workflow result: %w", err)
	}
	out.WorkflowID = we.GetID()
	return &out, nil
}
