package vector

import (
	"context"
	"math"
	"testing"

	"github.com/efebarandurmaz/strata/internal/depgraph"
)

// memoryRepo captures upserts and replays canned search results.
type memoryRepo struct {
	points  []ModulePoint
	results []Match
}

func (m *memoryRepo) Upsert(ctx context.Context, points []ModulePoint) error {
	m.points = append(m.points, points...)
	return nil
}

func (m *memoryRepo) Search(ctx context.Context, vector []float32, topK int) ([]Match, error) {
	if topK < len(m.results) {
		return m.results[:topK], nil
	}
	return m.results, nil
}

func (m *memoryRepo) Close() error { return nil }

func testModule(path string, imports ...string) *depgraph.Module {
	return &depgraph.Module{
		Path:        path,
		Imports:     imports,
		ImportCount: len(imports),
	}
}

func cosine(a, b []float32) float64 {
	var dot float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
	}
	return dot
}

func TestEmbedModuleDeterministic(t *testing.T) {
	e := NewEmbedder(&memoryRepo{}, 64)
	m := testModule("src/services/auth.ts", "src/db/users.ts", "src/models/user.ts")

	v1 := e.EmbedModule(m)
	v2 := e.EmbedModule(m)

	if len(v1) != 64 {
		t.Fatalf("expected 64 dims, got %d", len(v1))
	}
	for i := range v1 {
		if v1[i] != v2[i] {
			t.Fatalf("embedding not deterministic at dim %d", i)
		}
	}
}

func TestEmbedModuleNormalized(t *testing.T) {
	e := NewEmbedder(&memoryRepo{}, 128)
	v := e.EmbedModule(testModule("src/app.ts", "src/util.ts"))

	var sum float64
	for _, x := range v {
		sum += float64(x) * float64(x)
	}
	if math.Abs(sum-1.0) > 1e-5 {
		t.Fatalf("expected unit norm, got %f", sum)
	}
}

func TestEmbedModuleSimilarityOrdering(t *testing.T) {
	e := NewEmbedder(&memoryRepo{}, 256)

	base := testModule("src/services/auth.ts", "src/db/users.ts", "src/models/user.ts")
	near := testModule("src/services/session.ts", "src/db/users.ts", "src/models/user.ts")
	far := testModule("src/ui/banner.ts", "src/ui/theme.ts")

	vBase := e.EmbedModule(base)
	simNear := cosine(vBase, e.EmbedModule(near))
	simFar := cosine(vBase, e.EmbedModule(far))

	if simNear <= simFar {
		t.Fatalf("shared imports should score higher: near %f, far %f", simNear, simFar)
	}
}

func TestDefaultDims(t *testing.T) {
	e := NewEmbedder(&memoryRepo{}, 0)
	if e.Dims() != DefaultDims {
		t.Fatalf("expected default dims %d, got %d", DefaultDims, e.Dims())
	}
}

func TestIndexReport(t *testing.T) {
	repo := &memoryRepo{}
	e := NewEmbedder(repo, 64)

	r := &depgraph.Report{Modules: map[string]*depgraph.Module{
		"src/b.ts": testModule("src/b.ts"),
		"src/a.ts": testModule("src/a.ts", "src/b.ts"),
	}}

	n, err := e.IndexReport(context.Background(), "demo", r)
	if err != nil {
		t.Fatalf("IndexReport: %v", err)
	}
	if n != 2 {
		t.Fatalf("expected 2 indexed modules, got %d", n)
	}
	if len(repo.points) != 2 {
		t.Fatalf("expected 2 upserted points, got %d", len(repo.points))
	}

	// Points arrive in sorted path order
	if repo.points[0].Metadata["module"] != "src/a.ts" || repo.points[1].Metadata["module"] != "src/b.ts" {
		t.Fatalf("unexpected point order: %s, %s", repo.points[0].Metadata["module"], repo.points[1].Metadata["module"])
	}
	if repo.points[0].Metadata["project"] != "demo" {
		t.Fatalf("missing project metadata: %+v", repo.points[0].Metadata)
	}
	if repo.points[0].Content != "src/a.ts imports src/b.ts" {
		t.Fatalf("unexpected content: %s", repo.points[0].Content)
	}
	if repo.points[1].Content != "src/b.ts imports nothing" {
		t.Fatalf("unexpected content: %s", repo.points[1].Content)
	}
}

func TestIndexReportStableIDs(t *testing.T) {
	repo := &memoryRepo{}
	e := NewEmbedder(repo, 64)

	r := &depgraph.Report{Modules: map[string]*depgraph.Module{
		"src/a.ts": testModule("src/a.ts"),
	}}

	if _, err := e.IndexReport(context.Background(), "demo", r); err != nil {
		t.Fatalf("first IndexReport: %v", err)
	}
	if _, err := e.IndexReport(context.Background(), "demo", r); err != nil {
		t.Fatalf("second IndexReport: %v", err)
	}

	if repo.points[0].ID != repo.points[1].ID {
		t.Fatal("re-indexing should reuse point IDs")
	}

	otherProject := pointID("other", "src/a.ts")
	if otherProject == repo.points[0].ID {
		t.Fatal("point IDs should differ across projects")
	}
}

func TestIndexReportEmpty(t *testing.T) {
	repo := &memoryRepo{}
	e := NewEmbedder(repo, 64)

	n, err := e.IndexReport(context.Background(), "demo", &depgraph.Report{Modules: map[string]*depgraph.Module{}})
	if err != nil {
		t.Fatalf("IndexReport: %v", err)
	}
	if n != 0 || len(repo.points) != 0 {
		t.Fatal("empty report should not upsert")
	}
}

func TestSimilarModulesFilters(t *testing.T) {
	repo := &memoryRepo{
		results: []Match{
			{ID: "1", Score: 0.99, Metadata: map[string]string{"project": "demo", "module": "src/a.ts"}},
			{ID: "2", Score: 0.95, Metadata: map[string]string{"project": "other", "module": "src/x.ts"}},
			{ID: "3", Score: 0.90, Metadata: map[string]string{"project": "demo", "module": "src/b.ts"}},
			{ID: "4", Score: 0.85, Metadata: map[string]string{"project": "demo", "module": "src/c.ts"}},
		},
	}
	e := NewEmbedder(repo, 64)

	results, err := e.SimilarModules(context.Background(), "demo", testModule("src/a.ts"), 2)
	if err != nil {
		t.Fatalf("SimilarModules: %v", err)
	}

	// Self and foreign-project hits are dropped, topK respected
	if len(results) != 2 {
		t.Fatalf("expected 2 results, got %d", len(results))
	}
	if results[0].Metadata["module"] != "src/b.ts" || results[1].Metadata["module"] != "src/c.ts" {
		t.Fatalf("unexpected results: %+v", results)
	}
}
