package watch

import (
	"testing"

	"github.com/efebarandurmaz/strata/internal/depgraph"
)

// reportOf builds a report from a path -> imports map.
func reportOf(edges map[string][]string) *depgraph.Report {
	modules := make(map[string]*depgraph.Module, len(edges))
	for path, imports := range edges {
		modules[path] = &depgraph.Module{Path: path, Imports: imports}
	}
	return &depgraph.Report{Modules: modules}
}

func TestDependentsChain(t *testing.T) {
	// a imports b, b imports c
	r := reportOf(map[string][]string{
		"src/a.ts": {"src/b.ts"},
		"src/b.ts": {"src/c.ts"},
		"src/c.ts": {},
	})

	stale := Dependents(r, []string{"src/c.ts"})

	expected := []string{"src/a.ts", "src/b.ts", "src/c.ts"}
	if len(stale) != len(expected) {
		t.Fatalf("expected %d stale modules, got %d: %v", len(expected), len(stale), stale)
	}
	for i, p := range expected {
		if stale[i] != p {
			t.Errorf("expected stale[%d]=%s, got %s", i, p, stale[i])
		}
	}
}

func TestDependentsLeafOnly(t *testing.T) {
	r := reportOf(map[string][]string{
		"src/a.ts": {"src/b.ts"},
		"src/b.ts": {},
		"src/c.ts": {},
	})

	// a imports nothing else; changing a affects only a
	stale := Dependents(r, []string{"src/a.ts"})
	if len(stale) != 1 || stale[0] != "src/a.ts" {
		t.Errorf("expected [src/a.ts], got %v", stale)
	}
}

func TestDependentsCycle(t *testing.T) {
	r := reportOf(map[string][]string{
		"src/a.ts": {"src/b.ts"},
		"src/b.ts": {"src/a.ts"},
	})

	stale := Dependents(r, []string{"src/a.ts"})
	if len(stale) != 2 {
		t.Fatalf("expected both cycle members, got %v", stale)
	}
}

func TestDependentsRemovedModule(t *testing.T) {
	// gone.ts is not in the module map but a stale import edge remains.
	r := reportOf(map[string][]string{
		"src/a.ts": {"src/gone.ts"},
		"src/b.ts": {},
	})

	stale := Dependents(r, []string{"src/gone.ts"})
	if len(stale) != 1 || stale[0] != "src/a.ts" {
		t.Errorf("expected [src/a.ts], got %v", stale)
	}
}

func TestDependentsUnknownSeed(t *testing.T) {
	r := reportOf(map[string][]string{
		"src/a.ts": {},
	})

	stale := Dependents(r, []string{"src/nowhere.ts"})
	if len(stale) != 0 {
		t.Errorf("expected no stale modules, got %v", stale)
	}
}

func TestDependentsNilReport(t *testing.T) {
	if stale := Dependents(nil, []string{"src/a.ts"}); stale != nil {
		t.Errorf("expected nil for nil report, got %v", stale)
	}
}

func TestDependentsNoSeeds(t *testing.T) {
	r := reportOf(map[string][]string{"src/a.ts": {}})
	if stale := Dependents(r, nil); stale != nil {
		t.Errorf("expected nil for no seeds, got %v", stale)
	}
}

func TestDependentsMultipleSeeds(t *testing.T) {
	r := reportOf(map[string][]string{
		"src/a.ts": {"src/b.ts"},
		"src/b.ts": {},
		"src/x.ts": {"src/y.ts"},
		"src/y.ts": {},
	})

	stale := Dependents(r, []string{"src/b.ts", "src/y.ts"})
	expected := []string{"src/a.ts", "src/b.ts", "src/x.ts", "src/y.ts"}
	if len(stale) != len(expected) {
		t.Fatalf("expected %d stale modules, got %v", len(expected), stale)
	}
	for i, p := range expected {
		if stale[i] != p {
			t.Errorf("expected stale[%d]=%s, got %s", i, p, stale[i])
		}
	}
}

func TestMergeSorted(t *testing.T) {
	merged := mergeSorted(
		[]string{"a", "c", "e"},
		[]string{"b", "c", "d"},
	)

	expected := []string{"a", "b", "c", "d", "e"}
	if len(merged) != len(expected) {
		t.Fatalf("expected %v, got %v", expected, merged)
	}
	for i, s := range expected {
		if merged[i] != s {
			t.Errorf("expected merged[%d]=%s, got %s", i, s, merged[i])
		}
	}
}

func TestMergeSortedEmpty(t *testing.T) {
	if got := mergeSorted(nil, nil); len(got) != 0 {
		t.Errorf("expected empty merge, got %v", got)
	}
	if got := mergeSorted([]string{"a"}, nil); len(got) != 1 || got[0] != "a" {
		t.Errorf("expected [a], got %v", got)
	}
}
