package watch

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/efebarandurmaz/strata/internal/depgraph"
)

func TestDefaultOptions(t *testing.T) {
	opts := DefaultOptions()
	if opts.Debounce != 250*time.Millisecond {
		t.Errorf("expected 250ms debounce, got %v", opts.Debounce)
	}
	if opts.BufferSize != 1024 {
		t.Errorf("expected buffer size 1024, got %d", opts.BufferSize)
	}
	if len(opts.Excludes) == 0 {
		t.Error("expected default excludes")
	}
}

func TestOpString(t *testing.T) {
	tests := []struct {
		op       Op
		expected string
	}{
		{OpCreate, "create"},
		{OpWrite, "write"},
		{OpRemove, "remove"},
		{OpRename, "rename"},
		{Op(99), "unknown"},
	}

	for _, tt := range tests {
		if got := tt.op.String(); got != tt.expected {
			t.Errorf("Op(%d).String() = %s, expected %s", tt.op, got, tt.expected)
		}
	}
}

func TestDedupe(t *testing.T) {
	now := time.Now()
	changes := []Change{
		{Path: "a.ts", Op: OpCreate, Time: now},
		{Path: "b.ts", Op: OpWrite, Time: now},
		{Path: "a.ts", Op: OpWrite, Time: now.Add(time.Millisecond)},
	}

	deduped := dedupe(changes)
	if len(deduped) != 2 {
		t.Fatalf("expected 2 changes, got %d", len(deduped))
	}
	// First-seen order, latest op wins.
	if deduped[0].Path != "a.ts" || deduped[0].Op != OpWrite {
		t.Errorf("expected a.ts with write op first, got %+v", deduped[0])
	}
	if deduped[1].Path != "b.ts" {
		t.Errorf("expected b.ts second, got %+v", deduped[1])
	}
}

func TestWatcherLifecycle(t *testing.T) {
	w, err := NewWatcher(t.TempDir(), nil, nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if w.IsWatching() {
		t.Fatal("expected not watching before Start")
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if err := w.Start(ctx); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !w.IsWatching() {
		t.Fatal("expected watching after Start")
	}

	// Second Start is a no-op.
	if err := w.Start(ctx); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if err := w.Stop(); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if w.IsWatching() {
		t.Fatal("expected not watching after Stop")
	}

	// Second Stop is a no-op.
	if err := w.Stop(); err != nil {
		t.Fatalf("unexpected error on second stop: %v", err)
	}
}

func TestWatcherExcluded(t *testing.T) {
	root := t.TempDir()
	w, err := NewWatcher(root, nil, nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	defer w.Stop()

	tests := []struct {
		path     string
		excluded bool
	}{
		{filepath.Join(root, "src", "app.ts"), false},
		{filepath.Join(root, "node_modules", "pkg", "index.js"), true},
		{filepath.Join(root, ".git", "HEAD"), true},
		{filepath.Join(root, "src", "dist.ts"), false},
		{filepath.Join(root, "dist", "bundle.js"), true},
	}

	for _, tt := range tests {
		if got := w.excluded(tt.path); got != tt.excluded {
			t.Errorf("excluded(%s) = %v, expected %v", tt.path, got, tt.excluded)
		}
	}
}

func TestWatcherDeliversBatch(t *testing.T) {
	root := t.TempDir()

	got := make(chan []Change, 1)
	opts := DefaultOptions()
	opts.Debounce = 50 * time.Millisecond

	w, err := NewWatcher(root, func(changes []Change) {
		select {
		case got <- changes:
		default:
		}
	}, &opts)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	defer w.Stop()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if err := w.Start(ctx); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	path := filepath.Join(root, "app.ts")
	if err := os.WriteFile(path, []byte("export {}"), 0644); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	select {
	case changes := <-got:
		if len(changes) == 0 {
			t.Fatal("expected at least one change")
		}
		found := false
		for _, c := range changes {
			if filepath.Base(c.Path) == "app.ts" {
				found = true
			}
		}
		if !found {
			t.Errorf("expected a change for app.ts, got %+v", changes)
		}
	case <-time.After(3 * time.Second):
		t.Fatal("timed out waiting for change batch")
	}
}

func TestWatcherFilter(t *testing.T) {
	root := t.TempDir()

	got := make(chan []Change, 1)
	opts := DefaultOptions()
	opts.Debounce = 50 * time.Millisecond
	opts.Filter = func(path string) bool {
		return strings.HasSuffix(path, ".ts")
	}

	w, err := NewWatcher(root, func(changes []Change) {
		select {
		case got <- changes:
		default:
		}
	}, &opts)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	defer w.Stop()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if err := w.Start(ctx); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if err := os.WriteFile(filepath.Join(root, "notes.txt"), []byte("x"), 0644); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := os.WriteFile(filepath.Join(root, "app.ts"), []byte("export {}"), 0644); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	select {
	case changes := <-got:
		for _, c := range changes {
			if !strings.HasSuffix(c.Path, ".ts") {
				t.Errorf("filter should have dropped %s", c.Path)
			}
		}
	case <-time.After(3 * time.Second):
		t.Fatal("timed out waiting for change batch")
	}
}

func TestServiceStopBeforeRun(t *testing.T) {
	s := NewService(ServiceConfig{Root: t.TempDir()})
	if err := s.Stop(); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if s.Report() != nil {
		t.Error("expected nil report before Run")
	}
}

func TestServiceRun(t *testing.T) {
	root := t.TempDir()
	tree := newFakeTree()

	deltas := make(chan Delta, 4)
	opts := DefaultOptions()
	opts.Debounce = 50 * time.Millisecond

	s := NewService(ServiceConfig{
		Root:  root,
		Build: tree.build,
		OnRebuild: func(report *depgraph.Report, delta Delta, stale []string) {
			deltas <- delta
		},
		Watcher: &opts,
	})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	done := make(chan error, 1)
	go func() { done <- s.Run(ctx) }()

	select {
	case d := <-deltas:
		if len(d.Added) != 2 {
			t.Errorf("expected prime delta with 2 added files, got %+v", d)
		}
	case <-time.After(3 * time.Second):
		t.Fatal("timed out waiting for prime")
	}

	// Wait for the watcher to come up before touching the tree.
	for i := 0; i < 200; i++ {
		s.mu.Lock()
		w := s.watcher
		s.mu.Unlock()
		if w != nil && w.IsWatching() {
			break
		}
		time.Sleep(10 * time.Millisecond)
	}

	// Mutate the fake tree, then touch a file to trigger the rebuild.
	tree.files["src/store.ts"] = "export const store = { v: 2 };"
	if err := os.WriteFile(filepath.Join(root, "store.ts"), []byte("x"), 0644); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	select {
	case d := <-deltas:
		if len(d.Changed) == 0 {
			t.Errorf("expected changed paths after rebuild, got %+v", d)
		}
	case <-time.After(3 * time.Second):
		t.Fatal("timed out waiting for rebuild")
	}

	if s.Report() == nil {
		t.Error("expected a current report")
	}

	if err := s.Stop(); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("unexpected run error: %v", err)
		}
	case <-time.After(3 * time.Second):
		t.Fatal("timed out waiting for Run to return")
	}
}
