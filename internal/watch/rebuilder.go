package watch

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/efebarandurmaz/strata/internal/depgraph"
	"github.com/efebarandurmaz/strata/internal/lang"
	"github.com/efebarandurmaz/strata/internal/observability"
)

// BuildFunc scans the tree and produces a fresh report. The files are
// needed alongside the report so content fingerprints can be computed.
type BuildFunc func(ctx context.Context) ([]lang.SourceFile, *depgraph.Report, error)

// RebuildFn is notified after every build that produced new results.
// stale lists the modules affected by the delta.
type RebuildFn func(report *depgraph.Report, delta Delta, stale []string)

// RebuilderConfig configures a Rebuilder.
type RebuilderConfig struct {
	Root      string
	Build     BuildFunc
	OnRebuild RebuildFn
	Metrics   *observability.StrataMetrics
	Audit     *observability.AuditLogger
	Logger    *slog.Logger
}

// Rebuilder reruns the analysis when watched files change, skipping
// runs whose fingerprints show no real content change.
type Rebuilder struct {
	build     BuildFunc
	onRebuild RebuildFn
	metrics   *observability.StrataMetrics
	audit     *observability.AuditLogger
	logger    *slog.Logger
	root      string

	mu       sync.Mutex
	prints   map[string]*Fingerprint
	report   *depgraph.Report
	rebuilds int
}

// NewRebuilder creates a rebuilder. cfg.Build is required.
func NewRebuilder(cfg RebuilderConfig) *Rebuilder {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Rebuilder{
		build:     cfg.Build,
		onRebuild: cfg.OnRebuild,
		metrics:   cfg.Metrics,
		audit:     cfg.Audit,
		logger:    logger,
		root:      cfg.Root,
	}
}

// Prime runs the initial build and records its fingerprints.
func (r *Rebuilder) Prime(ctx context.Context) (*depgraph.Report, error) {
	files, report, err := r.build(ctx)
	if err != nil {
		return nil, fmt.Errorf("initial build: %w", err)
	}

	prints := ComputeFingerprints(files, importsOf(report))

	r.mu.Lock()
	r.prints = prints
	r.report = report
	r.mu.Unlock()

	if r.onRebuild != nil {
		r.onRebuild(report, DiffFingerprints(prints, nil), nil)
	}
	return report, nil
}

// Rebuild reruns the build for a batch of changes. When fingerprints
// show no content change (an editor touch, a reverted save) the
// previous report is returned unchanged.
func (r *Rebuilder) Rebuild(ctx context.Context, changes []Change) (*depgraph.Report, Delta, error) {
	start := time.Now()

	files, report, err := r.build(ctx)
	if err != nil {
		return nil, Delta{}, fmt.Errorf("rebuild: %w", err)
	}

	prints := ComputeFingerprints(files, importsOf(report))

	r.mu.Lock()
	previous := r.prints
	previousReport := r.report
	r.mu.Unlock()

	delta := DiffFingerprints(prints, previous)
	if delta.Empty() {
		r.logger.Debug("no content changes, keeping report",
			"root", r.root, "events", len(changes))
		return previousReport, delta, nil
	}

	seeds := delta.Paths()
	stale := mergeSorted(Dependents(previousReport, seeds), Dependents(report, seeds))

	r.mu.Lock()
	r.prints = prints
	r.report = report
	r.rebuilds++
	count := r.rebuilds
	r.mu.Unlock()

	duration := time.Since(start)
	if r.metrics != nil {
		r.metrics.RecordRebuild(duration)
	}
	r.logger.Info("rebuilt dependency report",
		"root", r.root,
		"rebuild", count,
		"changed", len(delta.Changed),
		"added", len(delta.Added),
		"removed", len(delta.Removed),
		"stale_modules", len(stale),
		"duration", duration.Round(time.Millisecond),
	)

	if r.onRebuild != nil {
		r.onRebuild(report, delta, stale)
	}
	return report, delta, nil
}

// Report returns the most recent report, nil before Prime.
func (r *Rebuilder) Report() *depgraph.Report {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.report
}

// RebuildCount returns how many builds produced new results.
func (r *Rebuilder) RebuildCount() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.rebuilds
}

// importsOf extracts the dependency map fingerprinting needs.
func importsOf(r *depgraph.Report) map[string][]string {
	if r == nil {
		return nil
	}
	deps := make(map[string][]string, len(r.Modules))
	for path, m := range r.Modules {
		if len(m.Imports) > 0 {
			deps[path] = m.Imports
		}
	}
	return deps
}

// mergeSorted unions two sorted string slices.
func mergeSorted(a, b []string) []string {
	seen := make(map[string]bool, len(a)+len(b))
	merged := make([]string, 0, len(a)+len(b))
	i, j := 0, 0
	for i < len(a) || j < len(b) {
		var next string
		switch {
		case i >= len(a):
			next = b[j]
			j++
		case j >= len(b):
			next = a[i]
			i++
		case a[i] <= b[j]:
			next = a[i]
			i++
		default:
			next = b[j]
			j++
		}
		if !seen[next] {
			seen[next] = true
			merged = append(merged, next)
		}
	}
	return merged
}

// Service ties a Watcher to a Rebuilder for the watch command and the
// dashboard.
type Service struct {
	root      string
	rebuilder *Rebuilder
	audit     *observability.AuditLogger
	logger    *slog.Logger
	options   *Options

	mu      sync.Mutex
	watcher *Watcher
}

// ServiceConfig configures a Service.
type ServiceConfig struct {
	Root      string
	Build     BuildFunc
	OnRebuild RebuildFn
	Metrics   *observability.StrataMetrics
	Audit     *observability.AuditLogger
	Logger    *slog.Logger
	// Watcher overrides the watcher defaults when set.
	Watcher *Options
}

// NewService creates a watch service.
func NewService(cfg ServiceConfig) *Service {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{
		root: cfg.Root,
		rebuilder: NewRebuilder(RebuilderConfig{
			Root:      cfg.Root,
			Build:     cfg.Build,
			OnRebuild: cfg.OnRebuild,
			Metrics:   cfg.Metrics,
			Audit:     cfg.Audit,
			Logger:    logger,
		}),
		audit:   cfg.Audit,
		logger:  logger,
		options: cfg.Watcher,
	}
}

// Run primes the report, starts watching, and blocks until the context
// is canceled or Stop is called.
func (s *Service) Run(ctx context.Context) error {
	if s.audit != nil {
		s.audit.LogWatchStart(ctx, s.root)
	}

	if _, err := s.rebuilder.Prime(ctx); err != nil {
		return err
	}

	handler := func(changes []Change) {
		if _, _, err := s.rebuilder.Rebuild(ctx, changes); err != nil {
			s.logger.Error("rebuild failed", "root", s.root, "error", err)
		}
	}

	watcher, err := NewWatcher(s.root, handler, s.options)
	if err != nil {
		return fmt.Errorf("create watcher: %w", err)
	}

	s.mu.Lock()
	s.watcher = watcher
	s.mu.Unlock()

	if err := watcher.Start(ctx); err != nil {
		return fmt.Errorf("start watcher: %w", err)
	}
	s.logger.Info("watching for changes", "root", s.root)

	select {
	case <-ctx.Done():
	case <-watcher.done:
	}

	stopErr := watcher.Stop()
	if s.audit != nil {
		s.audit.LogWatchStop(context.Background(), s.root, s.rebuilder.RebuildCount())
	}
	return stopErr
}

// Stop stops the watcher, unblocking Run.
func (s *Service) Stop() error {
	s.mu.Lock()
	watcher := s.watcher
	s.mu.Unlock()
	if watcher == nil {
		return nil
	}
	return watcher.Stop()
}

// Report returns the most recent report, nil before Run primes it.
func (s *Service) Report() *depgraph.Report {
	return s.rebuilder.Report()
}
