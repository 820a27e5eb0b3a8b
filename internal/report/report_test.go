package report

import (
	"encoding/json"
	"fmt"
	"strings"
	"testing"

	"github.com/efebarandurmaz/strata/internal/depgraph"
)

func makeReport() *depgraph.Report {
	modules := map[string]*depgraph.Module{
		"src/ui/app.ts": {
			Path:            "src/ui/app.ts",
			Imports:         []string{"src/db/store.ts", "src/models/user.ts"},
			Exports:         []string{"App"},
			ImportCount:     2,
			ImportedByCount: 0,
		},
		"src/db/store.ts": {
			Path:            "src/db/store.ts",
			Imports:         []string{"src/ui/app.ts"},
			Exports:         []string{},
			ImportCount:     1,
			ImportedByCount: 1,
		},
		"src/models/user.ts": {
			Path:            "src/models/user.ts",
			Imports:         []string{},
			Exports:         []string{"User"},
			ImportCount:     0,
			ImportedByCount: 1,
		},
	}
	return &depgraph.Report{
		Modules: modules,
		Cycles: []depgraph.Cycle{
			{Members: []string{"src/ui/app.ts", "src/db/store.ts"}},
		},
		CouplingIssues: []depgraph.CouplingIssue{
			{Module: "src/ui/app.ts", Incoming: 6, Outgoing: 7, Total: 13, Hub: true},
		},
		LayerViolations: []depgraph.LayerViolation{
			{Source: "src/db/store.ts", Target: "src/ui/app.ts", Label: "infrastructure → presentation"},
		},
	}
}

func TestFormatTextSections(t *testing.T) {
	text := FormatText(makeReport())

	for _, want := range []string{
		"DEPENDENCY ANALYSIS REPORT",
		"Modules analyzed: 3",
		"Circular dependencies: 1",
		"High coupling modules: 1",
		"Layer violations: 1",
		"1. src/ui/app.ts → src/db/store.ts → src/ui/app.ts",
		"src/ui/app.ts [HUB]",
		"  Incoming: 6 | Outgoing: 7 | Total: 13",
		"infrastructure → presentation",
		"  src/db/store.ts",
		"  → src/ui/app.ts",
		"  1 imports ← src/db/store.ts",
	} {
		if !strings.Contains(text, want) {
			t.Errorf("report missing %q\n%s", want, text)
		}
	}
	if !strings.HasPrefix(text, strings.Repeat("=", 60)+"\n") {
		t.Errorf("report does not open with a 60-char rule")
	}
}

func TestFormatTextEmptyReport(t *testing.T) {
	text := FormatText(&depgraph.Report{Modules: map[string]*depgraph.Module{}})

	if !strings.Contains(text, "Modules analyzed: 0") {
		t.Errorf("summary missing from empty report:\n%s", text)
	}
	if !strings.Contains(text, "📊 MOST IMPORTED MODULES") {
		t.Errorf("most-imported section should always render:\n%s", text)
	}
	for _, absent := range []string{"🔄 CIRCULAR DEPENDENCIES", "🔗 HIGH COUPLING MODULES", "⚠️ LAYER VIOLATIONS"} {
		if strings.Contains(text, absent) {
			t.Errorf("empty report should omit %q:\n%s", absent, text)
		}
	}
}

func TestFormatTextCouplingLimit(t *testing.T) {
	r := &depgraph.Report{Modules: map[string]*depgraph.Module{}}
	for i := 0; i < 12; i++ {
		r.CouplingIssues = append(r.CouplingIssues, depgraph.CouplingIssue{
			Module: fmt.Sprintf("src/m%02d.ts", i), Incoming: 11, Outgoing: 1, Total: 12,
		})
	}
	text := FormatText(r)

	if !strings.Contains(text, "src/m09.ts") {
		t.Errorf("tenth coupling issue should render")
	}
	if strings.Contains(text, "src/m10.ts") {
		t.Errorf("eleventh coupling issue should be cut by the display limit")
	}
}

func TestFormatTextMostImportedSkipsZero(t *testing.T) {
	text := FormatText(makeReport())
	if strings.Contains(text, "imports ← src/ui/app.ts") {
		t.Errorf("module with no reverse references should not be listed:\n%s", text)
	}
}

func TestFormatJSONShape(t *testing.T) {
	out, err := FormatJSON(makeReport())
	if err != nil {
		t.Fatalf("FormatJSON: %v", err)
	}

	var decoded struct {
		Modules map[string]struct {
			Path            string   `json:"path"`
			Imports         []string `json:"imports"`
			ImportedByCount int      `json:"imported_by_count"`
		} `json:"modules"`
		Cycles []struct {
			Cycle []string `json:"cycle"`
		} `json:"circular_dependencies"`
		CouplingIssues  []map[string]any `json:"coupling_issues"`
		LayerViolations [][3]string      `json:"layer_violations"`
	}
	if err := json.Unmarshal([]byte(out), &decoded); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}

	if len(decoded.Modules) != 3 {
		t.Errorf("expected 3 modules, got %d", len(decoded.Modules))
	}
	if got := decoded.Cycles[0].Cycle; len(got) != 2 || got[0] != "src/ui/app.ts" {
		t.Errorf("unexpected cycle encoding: %v", got)
	}
	if _, ok := decoded.CouplingIssues[0]["hub"]; ok {
		t.Errorf("hub flag must not leak into JSON")
	}
	if _, ok := decoded.CouplingIssues[0]["total"]; !ok {
		t.Errorf("coupling issue missing total field")
	}
	want := [3]string{"src/db/store.ts", "src/ui/app.ts", "infrastructure → presentation"}
	if decoded.LayerViolations[0] != want {
		t.Errorf("expected violation triple %v, got %v", want, decoded.LayerViolations[0])
	}
}

func TestFormatMermaidTopNodes(t *testing.T) {
	r := makeReport()
	out := FormatMermaid(r, 2)

	lines := strings.Split(out, "\n")
	if lines[0] != "graph LR" {
		t.Fatalf("expected graph LR header, got %q", lines[0])
	}
	if !strings.Contains(out, "    src_ui_app_ts --> src_db_store_ts") {
		t.Errorf("edge between top nodes missing:\n%s", out)
	}
	if strings.Contains(out, "src_models_user_ts") {
		t.Errorf("node beyond the limit should be excluded:\n%s", out)
	}
}

func TestFormatMermaidDefaultLimit(t *testing.T) {
	out := FormatMermaid(makeReport(), 0)
	if !strings.Contains(out, "src_ui_app_ts --> src_models_user_ts") {
		t.Errorf("default limit should keep all three modules:\n%s", out)
	}
}

func TestFormatMermaidExternalEdgesDropped(t *testing.T) {
	r := makeReport()
	r.Modules["src/ui/app.ts"].Imports = append(r.Modules["src/ui/app.ts"].Imports, "react")
	out := FormatMermaid(r, 0)
	if strings.Contains(out, "react") {
		t.Errorf("imports outside the module map should not draw edges:\n%s", out)
	}
}

func TestFormatDOT(t *testing.T) {
	out := FormatDOT(makeReport())

	if !strings.Contains(out, "digraph dependencies {") || !strings.Contains(out, "rankdir=LR;") {
		t.Fatalf("missing DOT preamble:\n%s", out)
	}
	if !strings.Contains(out, `"src_ui_app_ts" [label="src/ui/app.ts" fillcolor="#f85149"];`) {
		t.Errorf("cycle member should be filled red:\n%s", out)
	}
	if !strings.Contains(out, `"src_models_user_ts" [label="src/models/user.ts" fillcolor="#1f6feb"];`) {
		t.Errorf("plain module should keep the default fill:\n%s", out)
	}
	if !strings.Contains(out, `"src_ui_app_ts" -> "src_db_store_ts" [style=bold color="#f85149"];`) {
		t.Errorf("cycle edge should be bold red:\n%s", out)
	}
	if !strings.Contains(out, `"src_ui_app_ts" -> "src_models_user_ts" [style=solid color="#8b949e"];`) {
		t.Errorf("ordinary edge should stay gray:\n%s", out)
	}
}

func TestFormatDOTViolationEdge(t *testing.T) {
	r := makeReport()
	r.Cycles = nil
	out := FormatDOT(r)
	if !strings.Contains(out, `"src_db_store_ts" -> "src_ui_app_ts" [style=solid color="#d29922"];`) {
		t.Errorf("violation edge should be amber:\n%s", out)
	}
}
