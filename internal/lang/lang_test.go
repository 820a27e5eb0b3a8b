package lang

import (
	"testing"
)

type fakeFamily struct {
	name string
	exts []string
}

func (f *fakeFamily) Name() string          { return f.name }
func (f *fakeFamily) Extensions() []string  { return f.exts }
func (f *fakeFamily) Imports([]byte) []string { return nil }

func TestRegistryForFile(t *testing.T) {
	r := NewRegistry()
	r.Register(&fakeFamily{name: "javascript", exts: []string{".js", ".ts"}})
	r.Register(&fakeFamily{name: "python", exts: []string{".py"}})

	cases := []struct {
		path   string
		family string
		found  bool
	}{
		{"src/app.ts", "javascript", true},
		{"src/APP.TS", "javascript", true},
		{"scripts/run.py", "python", true},
		{"README.md", "", false},
		{"Makefile", "", false},
	}
	for _, tc := range cases {
		f, ok := r.ForFile(tc.path)
		if ok != tc.found {
			t.Errorf("%s: expected found=%v, got %v", tc.path, tc.found, ok)
			continue
		}
		if ok && f.Name() != tc.family {
			t.Errorf("%s: expected family %s, got %s", tc.path, tc.family, f.Name())
		}
	}
}

func TestRegistryExtensions(t *testing.T) {
	r := NewRegistry()
	r.Register(&fakeFamily{name: "python", exts: []string{".py"}})
	exts := r.Extensions()
	if len(exts) != 1 || exts[0] != ".py" {
		t.Errorf("expected [.py], got %v", exts)
	}
}

func TestExportsDeclarations(t *testing.T) {
	src := []byte(`export function buildGraph(files) {}
export default class Analyzer {}
export const THRESHOLD = 10;
`)
	names := Exports(src)
	want := []string{"buildGraph", "Analyzer", "THRESHOLD"}
	if len(names) != len(want) {
		t.Fatalf("expected %d exports, got %v", len(want), names)
	}
	for i, name := range want {
		if names[i] != name {
			t.Errorf("export %d: expected %q, got %q", i, name, names[i])
		}
	}
}

func TestExportsBraceList(t *testing.T) {
	src := []byte(`export { resolve, normalize as norm };`)
	names := Exports(src)
	want := []string{"resolve", "normalize as norm"}
	if len(names) != len(want) {
		t.Fatalf("expected %d exports, got %v", len(want), names)
	}
	for i, name := range want {
		if names[i] != name {
			t.Errorf("export %d: expected %q, got %q", i, name, names[i])
		}
	}
}

func TestExportsModuleExports(t *testing.T) {
	src := []byte(`module.exports = { analyze };`)
	names := Exports(src)
	if len(names) != 1 || names[0] != "default" {
		t.Errorf("expected [default], got %v", names)
	}
}

func TestExportsNone(t *testing.T) {
	if names := Exports([]byte("const internal = true;\n")); len(names) != 0 {
		t.Errorf("expected no exports, got %v", names)
	}
}
