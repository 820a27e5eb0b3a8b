package qualitygate

import (
	"fmt"
	"time"

	"github.com/efebarandurmaz/strata/internal/depgraph"
)

// GateStatus is the outcome of a single gate check.
type GateStatus string

const (
	GatePassed  GateStatus = "passed"
	GateFailed  GateStatus = "failed"
	GateSkipped GateStatus = "skipped"
	GateWarning GateStatus = "warning"
)

// GateSeverity controls what a gate failure does to the pipeline.
type GateSeverity string

const (
	SeverityCritical GateSeverity = "critical" // failure aborts the remaining gates
	SeverityRequired GateSeverity = "required" // failure blocks, later gates still run
	SeverityAdvisory GateSeverity = "advisory" // informational, never blocks
)

// GateResult records one gate evaluation.
type GateResult struct {
	Name        string        `json:"name"`
	Status      GateStatus    `json:"status"`
	Severity    GateSeverity  `json:"severity"`
	Score       float64       `json:"score"`     // normalized to 0..1
	Threshold   float64       `json:"threshold"` // minimum passing score
	Message     string        `json:"message"`
	Details     []string      `json:"details,omitempty"`
	Duration    time.Duration `json:"duration"`
	EvaluatedAt time.Time     `json:"evaluated_at"`
}

// Gate is a single quality check evaluated against an analysis.
type Gate interface {
	Name() string
	Severity() GateSeverity
	Evaluate(ctx *EvalContext) (*GateResult, error)
}

// EvalContext carries everything a gate may inspect.
type EvalContext struct {
	Report   *depgraph.Report  // analysis under evaluation
	Warnings []string          // pipeline warnings
	Errors   []string          // pipeline errors
	Metadata map[string]string // additional context
}

// PipelineResult aggregates the outcomes of a full pipeline run.
type PipelineResult struct {
	Status       GateStatus    `json:"status"` // passed only if every blocking gate passed
	Gates        []GateResult  `json:"gates"`
	PassedCount  int           `json:"passed_count"`
	FailedCount  int           `json:"failed_count"`
	SkippedCount int           `json:"skipped_count"`
	WarningCount int           `json:"warning_count"`
	Duration     time.Duration `json:"duration"`
	EvaluatedAt  time.Time     `json:"evaluated_at"`
	Summary      string        `json:"summary"`
}

// Pipeline evaluates quality gates in order.
type Pipeline struct {
	gates []Gate
}

func NewPipeline(gates ...Gate) *Pipeline {
	return &Pipeline{gates: gates}
}

// AddGate appends a gate to the pipeline.
func (p *Pipeline) AddGate(g Gate) {
	p.gates = append(p.gates, g)
}

// Len reports how many gates the pipeline holds.
func (p *Pipeline) Len() int {
	return len(p.gates)
}

// Run evaluates every gate against ctx. A critical failure aborts the
// run: gates after it are recorded as skipped, not evaluated.
func (p *Pipeline) Run(ctx *EvalContext) *PipelineResult {
	start := time.Now()
	result := &PipelineResult{
		Status:      GatePassed,
		Gates:       make([]GateResult, 0, len(p.gates)),
		EvaluatedAt: start,
	}

	abort := false
	for _, gate := range p.gates {
		var gr GateResult
		if abort {
			gr = skippedResult(gate)
		} else {
			gr = runGate(gate, ctx)
		}
		result.record(gr)
		if gr.Status == GateFailed && gr.Severity == SeverityCritical {
			abort = true
		}
	}

	result.Duration = time.Since(start)
	result.Summary = result.summary()
	return result
}

// runGate times a single evaluation. An evaluation error is reported
// as a failure of that gate, not a crash of the pipeline.
func runGate(gate Gate, ctx *EvalContext) GateResult {
	start := time.Now()
	gr, err := gate.Evaluate(ctx)
	if err != nil {
		gr = &GateResult{
			Name:     gate.Name(),
			Status:   GateFailed,
			Severity: gate.Severity(),
			Message:  fmt.Sprintf("Gate evaluation error: %v", err),
		}
	}
	gr.Duration = time.Since(start)
	gr.EvaluatedAt = start
	return *gr
}

func skippedResult(gate Gate) GateResult {
	return GateResult{
		Name:        gate.Name(),
		Status:      GateSkipped,
		Severity:    gate.Severity(),
		Message:     "Skipped due to critical gate failure",
		EvaluatedAt: time.Now(),
	}
}

// record appends one outcome and folds it into the totals. A failed
// critical or required gate fails the whole pipeline; an advisory
// failure is counted but leaves the overall status alone.
func (r *PipelineResult) record(gr GateResult) {
	r.Gates = append(r.Gates, gr)
	switch gr.Status {
	case GatePassed:
		r.PassedCount++
	case GateWarning:
		r.WarningCount++
	case GateSkipped:
		r.SkippedCount++
	case GateFailed:
		r.FailedCount++
		if gr.Severity == SeverityCritical || gr.Severity == SeverityRequired {
			r.Status = GateFailed
		}
	}
}

func (r *PipelineResult) summary() string {
	return fmt.Sprintf("Quality Gates: %d passed, %d failed, %d warnings, %d skipped [%s]",
		r.PassedCount, r.FailedCount, r.WarningCount, r.SkippedCount, r.Status)
}
