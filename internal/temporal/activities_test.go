package temporal

import (
	"context"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/efebarandurmaz/strata/internal/depgraph"
	"github.com/efebarandurmaz/strata/internal/graph"
	"github.com/efebarandurmaz/strata/internal/lang"
	"github.com/efebarandurmaz/strata/internal/lang/javascript"
	"github.com/efebarandurmaz/strata/internal/lang/python"
	"github.com/efebarandurmaz/strata/internal/qualitygate"
	"github.com/efebarandurmaz/strata/internal/scanner"
	"github.com/efebarandurmaz/strata/internal/vector"
)

func testRegistry() *lang.Registry {
	reg := lang.NewRegistry()
	reg.Register(javascript.New())
	reg.Register(python.New())
	return reg
}

func writeFile(t *testing.T, root, rel, content string) {
	t.Helper()
	full := filepath.Join(root, filepath.FromSlash(rel))
	if err := os.MkdirAll(filepath.Dir(full), 0o755); err != nil {
		t.Fatalf("mkdir %s: %v", rel, err)
	}
	if err := os.WriteFile(full, []byte(content), 0o644); err != nil {
		t.Fatalf("write %s: %v", rel, err)
	}
}

// setDeps installs fresh dependencies for one test and restores the
// previous ones afterwards, since the package holds them globally.
func setDeps(t *testing.T, d *Dependencies) {
	t.Helper()
	prev := deps
	SetDependencies(d)
	t.Cleanup(func() { deps = prev })
}

type fakeGraph struct {
	project string
	pushed  *depgraph.Report
	err     error
}

func (f *fakeGraph) StoreReport(ctx context.Context, project string, r *depgraph.Report) (graph.PushStats, error) {
	if f.err != nil {
		return graph.PushStats{}, f.err
	}
	f.project = project
	f.pushed = r
	return graph.PushStats{Nodes: len(r.Modules), Edges: r.InternalEdgeCount()}, nil
}

func (f *fakeGraph) LoadModules(ctx context.Context, project string) ([]*depgraph.Module, error) {
	return nil, nil
}

func (f *fakeGraph) Dependents(ctx context.Context, project, module string, depth int) ([]string, error) {
	return nil, nil
}

func (f *fakeGraph) Close(ctx context.Context) error { return nil }

type fakeVectorRepo struct {
	upserted []vector.ModulePoint
}

func (f *fakeVectorRepo) Upsert(ctx context.Context, points []vector.ModulePoint) error {
	f.upserted = append(f.upserted, points...)
	return nil
}

func (f *fakeVectorRepo) Search(ctx context.Context, vec []float32, topK int) ([]vector.Match, error) {
	return nil, nil
}

func (f *fakeVectorRepo) Close() error { return nil }

// cyclicReportJSON analyzes a two-module cycle fixture and returns the
// marshaled report, for activities that take a report as input.
func cyclicReportJSON(t *testing.T) string {
	t.Helper()
	root := t.TempDir()
	writeFile(t, root, "src/a.ts", "import { b } from './b';\n")
	writeFile(t, root, "src/b.ts", "import { a } from './a';\n")

	setDeps(t, &Dependencies{
		Registry:       testRegistry(),
		AnalysisConfig: depgraph.DefaultConfig(),
	})

	scanResult, err := ScanActivity(context.Background(), AnalysisInput{Root: root})
	if err != nil {
		t.Fatalf("ScanActivity failed: %v", err)
	}
	analyzeResult, err := AnalyzeActivity(context.Background(), AnalysisInput{Root: root}, scanResult.FilesJSON)
	if err != nil {
		t.Fatalf("AnalyzeActivity failed: %v", err)
	}
	return analyzeResult.ReportJSON
}

func TestSetDependencies(t *testing.T) {
	d := &Dependencies{Registry: testRegistry()}
	setDeps(t, d)

	if deps != d {
		t.Error("Expected SetDependencies to install the given dependencies")
	}
}

func TestScanActivity(t *testing.T) {
	root := t.TempDir()
	writeFile(t, root, "src/app.ts", "import { run } from './run';\n")
	writeFile(t, root, "tools/gen.py", "import os\n")
	writeFile(t, root, "README.md", "# readme\n")

	setDeps(t, &Dependencies{
		Registry:   testRegistry(),
		ScanConfig: scanner.Config{Excludes: scanner.DefaultExcludes},
	})

	result, err := ScanActivity(context.Background(), AnalysisInput{Root: root})
	if err != nil {
		t.Fatalf("ScanActivity failed: %v", err)
	}

	if result.FileCount != 2 {
		t.Errorf("Expected 2 files, got %d", result.FileCount)
	}

	var files []lang.SourceFile
	if err := json.Unmarshal([]byte(result.FilesJSON), &files); err != nil {
		t.Fatalf("Failed to unmarshal files: %v", err)
	}
	if len(files) != 2 {
		t.Fatalf("Expected 2 source files, got %d", len(files))
	}
	paths := map[string]bool{}
	for _, f := range files {
		paths[f.Path] = true
		if len(f.Content) == 0 {
			t.Errorf("Expected content for %s, got none", f.Path)
		}
	}
	if !paths["src/app.ts"] || !paths["tools/gen.py"] {
		t.Errorf("Expected src/app.ts and tools/gen.py, got %v", paths)
	}
}

func TestScanActivityMissingRoot(t *testing.T) {
	setDeps(t, &Dependencies{Registry: testRegistry()})

	missing := filepath.Join(t.TempDir(), "nope")
	_, err := ScanActivity(context.Background(), AnalysisInput{Root: missing})
	if err == nil {
		t.Fatal("Expected error for missing root, got nil")
	}
	if !strings.Contains(err.Error(), "scan") {
		t.Errorf("Expected scan error, got %v", err)
	}
}

func TestAnalyzeActivity(t *testing.T) {
	root := t.TempDir()
	writeFile(t, root, "src/a.ts", "import { b } from './b';\n")
	writeFile(t, root, "src/b.ts", "import { a } from './a';\n")

	setDeps(t, &Dependencies{
		Registry:       testRegistry(),
		AnalysisConfig: depgraph.DefaultConfig(),
	})

	scanResult, err := ScanActivity(context.Background(), AnalysisInput{Root: root})
	if err != nil {
		t.Fatalf("ScanActivity failed: %v", err)
	}

	result, err := AnalyzeActivity(context.Background(), AnalysisInput{Root: root}, scanResult.FilesJSON)
	if err != nil {
		t.Fatalf("AnalyzeActivity failed: %v", err)
	}

	if result.ModuleCount != 2 {
		t.Errorf("Expected 2 modules, got %d", result.ModuleCount)
	}
	if result.CycleCount != 1 {
		t.Errorf("Expected 1 cycle, got %d", result.CycleCount)
	}

	var report depgraph.Report
	if err := json.Unmarshal([]byte(result.ReportJSON), &report); err != nil {
		t.Fatalf("Failed to unmarshal report: %v", err)
	}
	if len(report.Modules) != 2 {
		t.Errorf("Expected 2 modules in report, got %d", len(report.Modules))
	}
	if _, ok := report.Modules["src/a.ts"]; !ok {
		t.Error("Expected src/a.ts in report modules")
	}
}

func TestAnalyzeActivityInvalidJSON(t *testing.T) {
	setDeps(t, &Dependencies{Registry: testRegistry()})

	_, err := AnalyzeActivity(context.Background(), AnalysisInput{Root: "."}, "{not json")
	if err == nil {
		t.Fatal("Expected error for invalid files JSON, got nil")
	}
	if !strings.Contains(err.Error(), "unmarshal files") {
		t.Errorf("Expected unmarshal error, got %v", err)
	}
}

func TestGateActivity(t *testing.T) {
	reportJSON := cyclicReportJSON(t)

	setDeps(t, &Dependencies{
		Registry: testRegistry(),
		Gates: qualitygate.NewPipeline(
			qualitygate.NewCycleGate(0, qualitygate.SeverityRequired),
		),
	})

	result, err := GateActivity(context.Background(), reportJSON)
	if err != nil {
		t.Fatalf("GateActivity failed: %v", err)
	}

	if result.GatesPassed {
		t.Error("Expected gates to fail on a cyclic report")
	}
	if len(result.GateFailures) != 1 {
		t.Fatalf("Expected 1 gate failure, got %d", len(result.GateFailures))
	}
	if !strings.Contains(result.GateFailures[0], "cycles") {
		t.Errorf("Expected cycle gate failure, got %q", result.GateFailures[0])
	}
}

func TestGateActivityDefaultPipeline(t *testing.T) {
	report := &depgraph.Report{
		Modules: map[string]*depgraph.Module{
			"src/app.ts": {Path: "src/app.ts", Imports: []string{}, Exports: []string{}},
		},
	}
	data, err := json.Marshal(report)
	if err != nil {
		t.Fatalf("Failed to marshal report: %v", err)
	}

	setDeps(t, &Dependencies{Registry: testRegistry()})

	result, err := GateActivity(context.Background(), string(data))
	if err != nil {
		t.Fatalf("GateActivity failed: %v", err)
	}

	if !result.GatesPassed {
		t.Errorf("Expected default pipeline to pass on a clean report, failures: %v", result.GateFailures)
	}
}

func TestPushGraphActivity(t *testing.T) {
	reportJSON := cyclicReportJSON(t)

	fg := &fakeGraph{}
	setDeps(t, &Dependencies{Registry: testRegistry(), Graph: fg})

	result, err := PushGraphActivity(context.Background(), AnalysisInput{Root: "/tmp/demo", Project: "demo"}, reportJSON)
	if err != nil {
		t.Fatalf("PushGraphActivity failed: %v", err)
	}

	if fg.project != "demo" {
		t.Errorf("Expected project demo, got %q", fg.project)
	}
	if result.GraphNodes != 2 {
		t.Errorf("Expected 2 nodes, got %d", result.GraphNodes)
	}
	if result.GraphEdges != 2 {
		t.Errorf("Expected 2 edges, got %d", result.GraphEdges)
	}
}

func TestPushGraphActivityNotConfigured(t *testing.T) {
	setDeps(t, &Dependencies{Registry: testRegistry()})

	_, err := PushGraphActivity(context.Background(), AnalysisInput{Project: "demo"}, `{"modules":{}}`)
	if err == nil {
		t.Fatal("Expected error when graph repository is not configured, got nil")
	}
	if !strings.Contains(err.Error(), "not configured") {
		t.Errorf("Expected not configured error, got %v", err)
	}
}

func TestPushGraphActivityStoreFailure(t *testing.T) {
	reportJSON := cyclicReportJSON(t)

	fg := &fakeGraph{err: errors.New("connection refused")}
	setDeps(t, &Dependencies{Registry: testRegistry(), Graph: fg})

	_, err := PushGraphActivity(context.Background(), AnalysisInput{Project: "demo"}, reportJSON)
	if err == nil {
		t.Fatal("Expected error from failing store, got nil")
	}
	if !strings.Contains(err.Error(), "store report") {
		t.Errorf("Expected store report error, got %v", err)
	}
}

func TestIndexVectorActivity(t *testing.T) {
	reportJSON := cyclicReportJSON(t)

	repo := &fakeVectorRepo{}
	setDeps(t, &Dependencies{
		Registry: testRegistry(),
		Vector:   vector.NewEmbedder(repo, 64),
	})

	result, err := IndexVectorActivity(context.Background(), AnalysisInput{Project: "demo"}, reportJSON)
	if err != nil {
		t.Fatalf("IndexVectorActivity failed: %v", err)
	}

	if result.IndexedModules != 2 {
		t.Errorf("Expected 2 indexed modules, got %d", result.IndexedModules)
	}
	if len(repo.upserted) != 2 {
		t.Fatalf("Expected 2 upserted points, got %d", len(repo.upserted))
	}
	for _, pt := range repo.upserted {
		if pt.Metadata["project"] != "demo" {
			t.Errorf("Expected project demo on %s, got %q", pt.ID, pt.Metadata["project"])
		}
	}
}

func TestIndexVectorActivityNotConfigured(t *testing.T) {
	setDeps(t, &Dependencies{Registry: testRegistry()})

	_, err := IndexVectorActivity(context.Background(), AnalysisInput{Project: "demo"}, `{"modules":{}}`)
	if err == nil {
		t.Fatal("Expected error when vector store is not configured, got nil")
	}
	if !strings.Contains(err.Error(), "not configured") {
		t.Errorf("Expected not configured error, got %v", err)
	}
}
