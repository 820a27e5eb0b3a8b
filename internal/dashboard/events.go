package dashboard

import (
	"time"

	"github.com/google/uuid"

	"github.com/efebarandurmaz/strata/internal/depgraph"
)

// SSE event names. Browsers subscribe to these with addEventListener.
const (
	EventConnected     = "connected"
	EventRunStarted    = "run.started"
	EventRunCompleted  = "run.completed"
	EventRunFailed     = "run.failed"
	EventReportUpdated = "report.updated"
	EventLog           = "log"
)

// Emitter records analysis lifecycle events in the store and forwards
// them to connected SSE clients. It is safe to use from multiple
// goroutines.
type Emitter struct {
	store *Store
	hub   *Hub
}

// NewEmitter creates a new event emitter.
func NewEmitter(store *Store, hub *Hub) *Emitter {
	return &Emitter{store: store, hub: hub}
}

func (e *Emitter) emit(eventType, runID string, data any) {
	e.hub.Broadcast(&Event{
		Type:      eventType,
		Timestamp: time.Now(),
		RunID:     runID,
		Data:      data,
	})
}

// RunStarted records a fresh run with a generated ID and broadcasts it.
func (e *Emitter) RunStarted(root string, trigger Trigger) *AnalysisRun {
	run := &AnalysisRun{
		ID:        uuid.NewString(),
		Root:      root,
		Trigger:   trigger,
		Status:    StatusRunning,
		StartedAt: time.Now(),
	}

	e.store.CreateRun(run)
	e.emit(EventRunStarted, run.ID, run)
	return run
}

// RunCompleted marks the run completed, fills in its counts from the
// report, publishes the report and broadcasts the completed run
// followed by the new report summary.
func (e *Emitter) RunCompleted(runID string, report *depgraph.Report, fileCount int) {
	summary := Summarize(report)

	run, ok := e.store.UpdateRun(runID, func(run *AnalysisRun) {
		now := time.Now()
		run.Status = StatusCompleted
		run.CompletedAt = &now
		run.DurationMS = now.Sub(run.StartedAt).Milliseconds()
		run.FileCount = fileCount
		run.ModuleCount = summary.ModuleCount
		run.EdgeCount = summary.EdgeCount
		run.CycleCount = summary.CycleCount
		run.CouplingCount = summary.CouplingCount
		run.ViolationCount = summary.ViolationCount
	})

	e.store.SetReport(report)

	if ok {
		e.emit(EventRunCompleted, runID, run)
	}

	summary.GeneratedAt = time.Now()
	e.emit(EventReportUpdated, runID, summary)
}

// RunFailed marks the run failed and broadcasts it. The last good
// report stays in place.
func (e *Emitter) RunFailed(runID string, err error) {
	msg := ""
	if err != nil {
		msg = err.Error()
	}

	run, ok := e.store.UpdateRun(runID, func(run *AnalysisRun) {
		now := time.Now()
		run.Status = StatusFailed
		run.CompletedAt = &now
		run.DurationMS = now.Sub(run.StartedAt).Milliseconds()
		run.Error = msg
	})

	if ok {
		e.emit(EventRunFailed, runID, run)
	}
}

// Log attaches a log line to a run and broadcasts it.
func (e *Emitter) Log(runID, source, level, message string) {
	entry := LogEntry{
		Timestamp: time.Now(),
		Level:     level,
		Message:   message,
		RunID:     runID,
		Source:    source,
	}

	e.store.AddLog(entry)
	e.emit(EventLog, runID, entry)
}
