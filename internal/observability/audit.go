package observability

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"sync"
	"time"

	"github.com/google/uuid"
)

// AuditEventType categorizes audit events.
type AuditEventType string

const (
	AuditEventScanStart     AuditEventType = "scan.start"
	AuditEventScanComplete  AuditEventType = "scan.complete"
	AuditEventScanError     AuditEventType = "scan.error"
	AuditEventAnalysis      AuditEventType = "analysis.complete"
	AuditEventGateRun       AuditEventType = "gate.run"
	AuditEventBaselineSave  AuditEventType = "baseline.save"
	AuditEventBaselineDiff  AuditEventType = "baseline.diff"
	AuditEventGraphPush     AuditEventType = "graph.push"
	AuditEventVectorIndex   AuditEventType = "vector.index"
	AuditEventWatchStart    AuditEventType = "watch.start"
	AuditEventWatchStop     AuditEventType = "watch.stop"
	AuditEventWorkflowStart AuditEventType = "workflow.start"
	AuditEventWorkflowEnd   AuditEventType = "workflow.end"
)

// AuditEvent is one audit log line. Durations are serialized in
// milliseconds.
type AuditEvent struct {
	Timestamp   time.Time      `json:"timestamp"`
	EventType   AuditEventType `json:"event_type"`
	SessionID   string         `json:"session_id"`
	WorkflowID  string         `json:"workflow_id,omitempty"`
	UserID      string         `json:"user_id,omitempty"`
	Success     bool           `json:"success"`
	DurationMS  int64          `json:"duration_ms,omitempty"`
	Message     string         `json:"message,omitempty"`
	Details     map[string]any `json:"details,omitempty"`
	ErrorCode   string         `json:"error_code,omitempty"`
	ErrorDetail string         `json:"error_detail,omitempty"`
}

// AuditLogger writes one JSON object per line for every significant
// pipeline action: scans, analyses, gate runs, store pushes, watch
// sessions and workflow lifecycles.
type AuditLogger struct {
	mu        sync.Mutex
	enc       *json.Encoder
	closer    io.Closer // owned output file, nil for stdout/stderr
	sessionID string
	userID    string
	enabled   bool
}

// AuditConfig configures the audit logger.
type AuditConfig struct {
	Enabled    bool
	OutputPath string // file path or "stdout"/"stderr"
	SessionID  string
	UserID     string
}

// DefaultAuditConfig returns default audit configuration.
func DefaultAuditConfig() *AuditConfig {
	return &AuditConfig{
		Enabled:    true,
		OutputPath: "stdout",
	}
}

// NewAuditLogger creates an audit logger. A missing session ID gets a
// random one so lines from one process can be correlated.
func NewAuditLogger(config *AuditConfig) (*AuditLogger, error) {
	if config == nil {
		config = DefaultAuditConfig()
	}

	l := &AuditLogger{
		sessionID: config.SessionID,
		userID:    config.UserID,
		enabled:   config.Enabled,
	}
	if l.sessionID == "" {
		l.sessionID = uuid.NewString()
	}

	switch config.OutputPath {
	case "stdout", "":
		l.enc = json.NewEncoder(os.Stdout)
	case "stderr":
		l.enc = json.NewEncoder(os.Stderr)
	default:
		f, err := os.OpenFile(config.OutputPath, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
		if err != nil {
			return nil, fmt.Errorf("open audit log: %w", err)
		}
		l.enc = json.NewEncoder(f)
		l.closer = f
	}

	return l, nil
}

// Log writes one event, stamping timestamp and session defaults.
func (l *AuditLogger) Log(event *AuditEvent) error {
	if !l.enabled {
		return nil
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now().UTC()
	}
	if event.SessionID == "" {
		event.SessionID = l.sessionID
	}
	if event.UserID == "" {
		event.UserID = l.userID
	}

	if err := l.enc.Encode(event); err != nil {
		return fmt.Errorf("write audit event: %w", err)
	}
	return nil
}

// The helpers below are best-effort: a dropped audit line must never
// fail the operation it describes.

// LogScanStart records the start of a source tree scan.
func (l *AuditLogger) LogScanStart(ctx context.Context, root string) {
	l.Log(&AuditEvent{
		EventType: AuditEventScanStart,
		Success:   true,
		Message:   "Scan started: " + root,
		Details:   map[string]any{"root": root},
	})
}

// LogScanComplete records a completed scan.
func (l *AuditLogger) LogScanComplete(ctx context.Context, root string, fileCount int, duration time.Duration) {
	l.Log(&AuditEvent{
		EventType:  AuditEventScanComplete,
		Success:    true,
		DurationMS: duration.Milliseconds(),
		Message:    fmt.Sprintf("Scan completed: %d files", fileCount),
		Details:    map[string]any{"root": root, "file_count": fileCount},
	})
}

// LogScanError records a failed scan.
func (l *AuditLogger) LogScanError(ctx context.Context, root string, err error) {
	l.Log(&AuditEvent{
		EventType:   AuditEventScanError,
		Success:     false,
		Message:     "Scan failed: " + root,
		ErrorDetail: err.Error(),
		Details:     map[string]any{"root": root},
	})
}

// LogAnalysis records a completed dependency analysis.
func (l *AuditLogger) LogAnalysis(ctx context.Context, root string, moduleCount, cycleCount, couplingCount, violationCount int, duration time.Duration) {
	l.Log(&AuditEvent{
		EventType:  AuditEventAnalysis,
		Success:    true,
		DurationMS: duration.Milliseconds(),
		Message:    fmt.Sprintf("Analyzed %d modules", moduleCount),
		Details: map[string]any{
			"root":            root,
			"module_count":    moduleCount,
			"cycle_count":     cycleCount,
			"coupling_count":  couplingCount,
			"violation_count": violationCount,
		},
	})
}

// LogGateRun records a quality gate run.
func (l *AuditLogger) LogGateRun(ctx context.Context, passed bool, failures []string) {
	l.Log(&AuditEvent{
		EventType: AuditEventGateRun,
		Success:   passed,
		Message:   fmt.Sprintf("Quality gates: passed=%v", passed),
		Details:   map[string]any{"failures": failures},
	})
}

// LogBaselineSave records a saved baseline.
func (l *AuditLogger) LogBaselineSave(ctx context.Context, name, path string) {
	l.Log(&AuditEvent{
		EventType: AuditEventBaselineSave,
		Success:   true,
		Message:   "Baseline saved: " + name,
		Details:   map[string]any{"name": name, "path": path},
	})
}

// LogBaselineDiff records a baseline comparison.
func (l *AuditLogger) LogBaselineDiff(ctx context.Context, name string, regressionCount int) {
	l.Log(&AuditEvent{
		EventType: AuditEventBaselineDiff,
		Success:   regressionCount == 0,
		Message:   fmt.Sprintf("Baseline diff against %s: %d regressions", name, regressionCount),
		Details:   map[string]any{"name": name, "regression_count": regressionCount},
	})
}

// LogGraphPush records a graph store push.
func (l *AuditLogger) LogGraphPush(ctx context.Context, nodeCount, edgeCount int, duration time.Duration) {
	l.Log(&AuditEvent{
		EventType:  AuditEventGraphPush,
		Success:    true,
		DurationMS: duration.Milliseconds(),
		Message:    fmt.Sprintf("Graph push: %d nodes, %d edges", nodeCount, edgeCount),
		Details:    map[string]any{"node_count": nodeCount, "edge_count": edgeCount},
	})
}

// LogVectorIndex records a vector index update.
func (l *AuditLogger) LogVectorIndex(ctx context.Context, moduleCount int, duration time.Duration) {
	l.Log(&AuditEvent{
		EventType:  AuditEventVectorIndex,
		Success:    true,
		DurationMS: duration.Milliseconds(),
		Message:    fmt.Sprintf("Indexed %d module profiles", moduleCount),
		Details:    map[string]any{"module_count": moduleCount},
	})
}

// LogWatchStart records the start of a watch session.
func (l *AuditLogger) LogWatchStart(ctx context.Context, root string) {
	l.Log(&AuditEvent{
		EventType: AuditEventWatchStart,
		Success:   true,
		Message:   "Watch started: " + root,
		Details:   map[string]any{"root": root},
	})
}

// LogWatchStop records the end of a watch session.
func (l *AuditLogger) LogWatchStop(ctx context.Context, root string, rebuildCount int) {
	l.Log(&AuditEvent{
		EventType: AuditEventWatchStop,
		Success:   true,
		Message:   "Watch stopped: " + root,
		Details:   map[string]any{"root": root, "rebuild_count": rebuildCount},
	})
}

// LogWorkflowStart records a workflow start event.
func (l *AuditLogger) LogWorkflowStart(ctx context.Context, workflowID, root string) {
	l.Log(&AuditEvent{
		EventType:  AuditEventWorkflowStart,
		WorkflowID: workflowID,
		Success:    true,
		Message:    "Workflow started: " + root,
		Details:    map[string]any{"root": root},
	})
}

// LogWorkflowEnd records a workflow completion event.
func (l *AuditLogger) LogWorkflowEnd(ctx context.Context, workflowID string, success bool, duration time.Duration, moduleCount int) {
	l.Log(&AuditEvent{
		EventType:  AuditEventWorkflowEnd,
		WorkflowID: workflowID,
		Success:    success,
		DurationMS: duration.Milliseconds(),
		Message:    fmt.Sprintf("Workflow completed: %d modules", moduleCount),
		Details:    map[string]any{"module_count": moduleCount},
	})
}

// Close closes the audit log file when the logger owns one.
func (l *AuditLogger) Close() error {
	if l.closer != nil {
		return l.closer.Close()
	}
	return nil
}

// Global audit logger instance
var globalAuditLogger *AuditLogger
var auditOnce sync.Once

// InitGlobalAuditLogger initializes the global audit logger.
func InitGlobalAuditLogger(config *AuditConfig) error {
	var err error
	auditOnce.Do(func() {
		globalAuditLogger, err = NewAuditLogger(config)
	})
	return err
}

// Audit returns the global audit logger, or a disabled one when
// InitGlobalAuditLogger was never called.
func Audit() *AuditLogger {
	if globalAuditLogger == nil {
		return &AuditLogger{enabled: false}
	}
	return globalAuditLogger
}
