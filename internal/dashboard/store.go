package dashboard

import (
	"sync"
	"time"

	"github.com/efebarandurmaz/strata/internal/depgraph"
)

const (
	maxRuns      = 100
	maxTotalLogs = 10000

	// On overflow the log buffer is cut back to this size.
	logRetain = maxTotalLogs / 2
)

// Store is the in-memory backing for the dashboard API: recorded runs,
// their log lines and the latest dependency report. Reads hand out
// snapshots, so callers never share memory with a run that is still
// being updated.
type Store struct {
	mu       sync.RWMutex
	order    []string // run IDs in creation order, oldest first
	runs     map[string]*AnalysisRun
	logs     []LogEntry
	report   *depgraph.Report
	reportAt time.Time
}

// NewStore creates an empty store.
func NewStore() *Store {
	return &Store{
		runs: make(map[string]*AnalysisRun),
	}
}

// CreateRun records a new analysis run. The store keeps its own copy.
func (s *Store) CreateRun(run *AnalysisRun) {
	s.mu.Lock()
	defer s.mu.Unlock()

	cp := *run
	s.runs[cp.ID] = &cp
	s.order = append(s.order, cp.ID)
	s.evict()
}

// Run returns a snapshot of the run with the given ID.
func (s *Store) Run(id string) (AnalysisRun, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	run, ok := s.runs[id]
	if !ok {
		return AnalysisRun{}, false
	}
	return *run, true
}

// Runs returns snapshots of all recorded runs, most recently created
// first.
func (s *Store) Runs() []AnalysisRun {
	s.mu.RLock()
	defer s.mu.RUnlock()

	runs := make([]AnalysisRun, 0, len(s.order))
	for i := len(s.order) - 1; i >= 0; i-- {
		runs = append(runs, *s.runs[s.order[i]])
	}
	return runs
}

// UpdateRun applies fn to the stored run under the write lock and
// returns the updated snapshot. The bool is false for an unknown ID.
func (s *Store) UpdateRun(id string, fn func(*AnalysisRun)) (AnalysisRun, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	run, ok := s.runs[id]
	if !ok {
		return AnalysisRun{}, false
	}
	fn(run)
	return *run, true
}

// SetReport replaces the latest dependency report.
func (s *Store) SetReport(report *depgraph.Report) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.report = report
	s.reportAt = time.Now()
}

// Report returns the latest dependency report and when it was stored.
// The bool is false until the first report arrives. The report itself
// is shared and must be treated as read-only.
func (s *Store) Report() (*depgraph.Report, time.Time, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return s.report, s.reportAt, s.report != nil
}

// Stats aggregates run history and the headline counts of the latest
// report.
func (s *Store) Stats() *DashboardStats {
	s.mu.RLock()
	defer s.mu.RUnlock()

	stats := &DashboardStats{
		TotalRuns: len(s.runs),
	}

	var totalDuration time.Duration
	for _, run := range s.runs {
		stats.FilesScanned += run.FileCount

		switch run.Status {
		case StatusRunning, StatusPending:
			stats.ActiveRuns++
		case StatusFailed:
			stats.FailedRuns++
		case StatusCompleted:
			stats.CompletedRuns++
			if run.CompletedAt != nil {
				totalDuration += run.CompletedAt.Sub(run.StartedAt)
			}
		}
	}

	if stats.CompletedRuns > 0 {
		stats.AvgDuration = totalDuration.Seconds() / float64(stats.CompletedRuns)
	}
	if stats.TotalRuns > 0 {
		stats.SuccessRate = float64(stats.CompletedRuns) / float64(stats.TotalRuns)
	}

	if s.report != nil {
		stats.Modules = len(s.report.Modules)
		stats.Cycles = len(s.report.Cycles)
		stats.CouplingIssues = len(s.report.CouplingIssues)
		stats.LayerViolations = len(s.report.LayerViolations)
	}

	return stats
}

// AddLog appends a log entry.
func (s *Store) AddLog(entry LogEntry) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.logs = append(s.logs, entry)
	if len(s.logs) > maxTotalLogs {
		// Keep the newest entries in a fresh array; reslicing would pin
		// the old backing array.
		trimmed := make([]LogEntry, logRetain, maxTotalLogs)
		copy(trimmed, s.logs[len(s.logs)-logRetain:])
		s.logs = trimmed
	}
}

// Logs returns the log entries for a run, most recent first. The result
// is never nil so it serializes as an empty array.
func (s *Store) Logs(runID string, limit int) []LogEntry {
	s.mu.RLock()
	defer s.mu.RUnlock()

	entries := []LogEntry{}
	for i := len(s.logs) - 1; i >= 0; i-- {
		if s.logs[i].RunID != runID {
			continue
		}
		entries = append(entries, s.logs[i])
		if limit > 0 && len(entries) >= limit {
			break
		}
	}
	return entries
}

// evict drops the oldest finished runs while over capacity. Runs still
// in flight are never evicted, even if that leaves the store over the
// cap. Caller holds the write lock.
func (s *Store) evict() {
	for len(s.order) > maxRuns {
		idx := -1
		for i, id := range s.order {
			if st := s.runs[id].Status; st == StatusCompleted || st == StatusFailed {
				idx = i
				break
			}
		}
		if idx < 0 {
			return
		}
		delete(s.runs, s.order[idx])
		s.order = append(s.order[:idx], s.order[idx+1:]...)
	}
}
