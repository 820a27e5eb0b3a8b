package snapshot

import (
	"fmt"
	"sort"
	"strings"
)

// DiffType indicates the kind of change.
type DiffType string

const (
	DiffAdded    DiffType = "added"
	DiffRemoved  DiffType = "removed"
	DiffModified DiffType = "modified"
)

// BaselineDiff represents the complete diff between two captured reports.
type BaselineDiff struct {
	OldID      string          `json:"old_id"`
	NewID      string          `json:"new_id"`
	OldName    string          `json:"old_name,omitempty"`
	NewName    string          `json:"new_name,omitempty"`
	Modules    []ModuleDiff    `json:"modules,omitempty"`
	Cycles     []CycleDiff     `json:"cycles,omitempty"`
	Coupling   []CouplingDiff  `json:"coupling,omitempty"`
	Violations []ViolationDiff `json:"violations,omitempty"`
	Summary    DiffSummary     `json:"summary"`
}

// ModuleDiff records a module that appeared, disappeared, or changed
// its coupling profile between the two captures.
type ModuleDiff struct {
	Path            string   `json:"path"`
	Type            DiffType `json:"type"`
	ImportsDelta    int      `json:"imports_delta"`
	ImportedByDelta int      `json:"imported_by_delta"`
}

// CycleDiff records a circular dependency that appeared or disappeared.
type CycleDiff struct {
	Type        DiffType `json:"type"`
	Members     []string `json:"members"`
	Description string   `json:"description"`
}

// CouplingDiff records a coupling finding that appeared, resolved, or
// shifted between the two captures.
type CouplingDiff struct {
	Module        string   `json:"module"`
	Type          DiffType `json:"type"`
	OldTotal      int      `json:"old_total,omitempty"`
	NewTotal      int      `json:"new_total,omitempty"`
	TotalDelta    int      `json:"total_delta"`
	IncomingDelta int      `json:"incoming_delta"`
	OutgoingDelta int      `json:"outgoing_delta"`
}

// ViolationDiff records a layer violation that appeared or disappeared.
type ViolationDiff struct {
	Type   DiffType `json:"type"`
	Source string   `json:"source"`
	Target string   `json:"target"`
	Label  string   `json:"label"`
}

// DiffSummary provides aggregate stats about the diff.
type DiffSummary struct {
	ModulesAdded      int  `json:"modules_added"`
	ModulesRemoved    int  `json:"modules_removed"`
	CyclesAdded       int  `json:"cycles_added"`
	CyclesRemoved     int  `json:"cycles_removed"`
	CouplingAdded     int  `json:"coupling_added"`
	CouplingResolved  int  `json:"coupling_resolved"`
	ViolationsAdded   int  `json:"violations_added"`
	ViolationsRemoved int  `json:"violations_removed"`
	Regressed         bool `json:"regressed"`
}

// Diff computes the differences between two baselines. Old is the saved
// reference, new is usually a transient capture of the current tree.
func Diff(old, new *Baseline) *BaselineDiff {
	d := &BaselineDiff{
		OldID:   old.ID,
		NewID:   new.ID,
		OldName: old.Name,
		NewName: new.Name,
	}

	d.Modules = diffModules(old.Modules, new.Modules)
	d.Cycles = diffCycles(old.Cycles, new.Cycles)
	d.Coupling = diffCoupling(old.Coupling, new.Coupling)
	d.Violations = diffViolations(old.Violations, new.Violations)
	d.Summary = computeSummary(d)

	return d
}

// Regressions lists the changes that make the new capture worse than the
// old one: new cycles, new layer violations, new coupling findings.
func (d *BaselineDiff) Regressions() []string {
	var out []string
	for _, cd := range d.Cycles {
		if cd.Type == DiffAdded {
			out = append(out, "new cycle: "+cd.Description)
		}
	}
	for _, vd := range d.Violations {
		if vd.Type == DiffAdded {
			out = append(out, fmt.Sprintf("new layer violation: %s (%s imports %s)", vd.Label, vd.Source, vd.Target))
		}
	}
	for _, cp := range d.Coupling {
		if cp.Type == DiffAdded {
			out = append(out, fmt.Sprintf("new coupling issue: %s (total %d)", cp.Module, cp.NewTotal))
		}
	}
	return out
}

func diffModules(oldModules, newModules []ModuleRecord) []ModuleDiff {
	oldMap := make(map[string]ModuleRecord, len(oldModules))
	for _, m := range oldModules {
		oldMap[m.Path] = m
	}
	newMap := make(map[string]ModuleRecord, len(newModules))
	for _, m := range newModules {
		newMap[m.Path] = m
	}

	var diffs []ModuleDiff

	for path, oldEntry := range oldMap {
		if newEntry, ok := newMap[path]; ok {
			if oldEntry != newEntry {
				diffs = append(diffs, ModuleDiff{
					Path:            path,
					Type:            DiffModified,
					ImportsDelta:    newEntry.ImportCount - oldEntry.ImportCount,
					ImportedByDelta: newEntry.ImportedByCount - oldEntry.ImportedByCount,
				})
			}
		} else {
			diffs = append(diffs, ModuleDiff{
				Path:            path,
				Type:            DiffRemoved,
				ImportsDelta:    -oldEntry.ImportCount,
				ImportedByDelta: -oldEntry.ImportedByCount,
			})
		}
	}

	for path, newEntry := range newMap {
		if _, ok := oldMap[path]; !ok {
			diffs = append(diffs, ModuleDiff{
				Path:            path,
				Type:            DiffAdded,
				ImportsDelta:    newEntry.ImportCount,
				ImportedByDelta: newEntry.ImportedByCount,
			})
		}
	}

	sort.Slice(diffs, func(i, j int) bool {
		return diffs[i].Path < diffs[j].Path
	})

	return diffs
}

func diffCycles(oldCycles, newCycles []CycleRecord) []CycleDiff {
	oldKeys := make(map[string]CycleRecord, len(oldCycles))
	for _, c := range oldCycles {
		oldKeys[c.Key()] = c
	}
	newKeys := make(map[string]CycleRecord, len(newCycles))
	for _, c := range newCycles {
		newKeys[c.Key()] = c
	}

	var diffs []CycleDiff

	for key, c := range newKeys {
		if _, ok := oldKeys[key]; !ok {
			diffs = append(diffs, CycleDiff{
				Type:        DiffAdded,
				Members:     c.Members,
				Description: c.Description(),
			})
		}
	}
	for key, c := range oldKeys {
		if _, ok := newKeys[key]; !ok {
			diffs = append(diffs, CycleDiff{
				Type:        DiffRemoved,
				Members:     c.Members,
				Description: c.Description(),
			})
		}
	}

	sort.Slice(diffs, func(i, j int) bool {
		if diffs[i].Type != diffs[j].Type {
			return diffs[i].Type < diffs[j].Type
		}
		return diffs[i].Description < diffs[j].Description
	})

	return diffs
}

func diffCoupling(oldCoupling, newCoupling []CouplingRecord) []CouplingDiff {
	oldMap := make(map[string]CouplingRecord, len(oldCoupling))
	for _, c := range oldCoupling {
		oldMap[c.Module] = c
	}
	newMap := make(map[string]CouplingRecord, len(newCoupling))
	for _, c := range newCoupling {
		newMap[c.Module] = c
	}

	var diffs []CouplingDiff

	for module, oldEntry := range oldMap {
		if newEntry, ok := newMap[module]; ok {
			if oldEntry != newEntry {
				diffs = append(diffs, CouplingDiff{
					Module:        module,
					Type:          DiffModified,
					OldTotal:      oldEntry.Total,
					NewTotal:      newEntry.Total,
					TotalDelta:    newEntry.Total - oldEntry.Total,
					IncomingDelta: newEntry.Incoming - oldEntry.Incoming,
					OutgoingDelta: newEntry.Outgoing - oldEntry.Outgoing,
				})
			}
		} else {
			diffs = append(diffs, CouplingDiff{
				Module:     module,
				Type:       DiffRemoved,
				OldTotal:   oldEntry.Total,
				TotalDelta: -oldEntry.Total,
			})
		}
	}

	for module, newEntry := range newMap {
		if _, ok := oldMap[module]; !ok {
			diffs = append(diffs, CouplingDiff{
				Module:        module,
				Type:          DiffAdded,
				NewTotal:      newEntry.Total,
				TotalDelta:    newEntry.Total,
				IncomingDelta: newEntry.Incoming,
				OutgoingDelta: newEntry.Outgoing,
			})
		}
	}

	sort.Slice(diffs, func(i, j int) bool {
		return diffs[i].Module < diffs[j].Module
	})

	return diffs
}

func diffViolations(oldViolations, newViolations []ViolationRecord) []ViolationDiff {
	oldKeys := make(map[string]ViolationRecord, len(oldViolations))
	for _, v := range oldViolations {
		oldKeys[v.Key()] = v
	}
	newKeys := make(map[string]ViolationRecord, len(newViolations))
	for _, v := range newViolations {
		newKeys[v.Key()] = v
	}

	var diffs []ViolationDiff

	for key, v := range newKeys {
		if _, ok := oldKeys[key]; !ok {
			diffs = append(diffs, ViolationDiff{Type: DiffAdded, Source: v.Source, Target: v.Target, Label: v.Label})
		}
	}
	for key, v := range oldKeys {
		if _, ok := newKeys[key]; !ok {
			diffs = append(diffs, ViolationDiff{Type: DiffRemoved, Source: v.Source, Target: v.Target, Label: v.Label})
		}
	}

	sort.Slice(diffs, func(i, j int) bool {
		if diffs[i].Type != diffs[j].Type {
			return diffs[i].Type < diffs[j].Type
		}
		if diffs[i].Source != diffs[j].Source {
			return diffs[i].Source < diffs[j].Source
		}
		return diffs[i].Target < diffs[j].Target
	})

	return diffs
}

func computeSummary(d *BaselineDiff) DiffSummary {
	var s DiffSummary
	for _, md := range d.Modules {
		switch md.Type {
		case DiffAdded:
			s.ModulesAdded++
		case DiffRemoved:
			s.ModulesRemoved++
		}
	}
	for _, cd := range d.Cycles {
		switch cd.Type {
		case DiffAdded:
			s.CyclesAdded++
		case DiffRemoved:
			s.CyclesRemoved++
		}
	}
	for _, cp := range d.Coupling {
		switch cp.Type {
		case DiffAdded:
			s.CouplingAdded++
		case DiffRemoved:
			s.CouplingResolved++
		}
	}
	for _, vd := range d.Violations {
		switch vd.Type {
		case DiffAdded:
			s.ViolationsAdded++
		case DiffRemoved:
			s.ViolationsRemoved++
		}
	}
	s.Regressed = s.CyclesAdded > 0 || s.CouplingAdded > 0 || s.ViolationsAdded > 0
	return s
}

// FormatDiff returns a human-readable string representation of the diff.
func FormatDiff(d *BaselineDiff) string {
	var sb strings.Builder

	sb.WriteString(fmt.Sprintf("Baseline diff: %s → %s\n", d.OldID, d.NewID))
	if d.OldName != "" || d.NewName != "" {
		sb.WriteString(fmt.Sprintf("Names: %s → %s\n", d.OldName, d.NewName))
	}
	sb.WriteString(fmt.Sprintf("Modules: +%d -%d\n", d.Summary.ModulesAdded, d.Summary.ModulesRemoved))
	sb.WriteString(fmt.Sprintf("Cycles: +%d -%d | Coupling: +%d -%d | Violations: +%d -%d\n",
		d.Summary.CyclesAdded, d.Summary.CyclesRemoved,
		d.Summary.CouplingAdded, d.Summary.CouplingResolved,
		d.Summary.ViolationsAdded, d.Summary.ViolationsRemoved))

	if len(d.Cycles) > 0 {
		sb.WriteString("\nCycles:\n")
		for _, cd := range d.Cycles {
			sb.WriteString(fmt.Sprintf("  %s %s\n", diffIcon(cd.Type), cd.Description))
		}
	}

	if len(d.Violations) > 0 {
		sb.WriteString("\nLayer violations:\n")
		for _, vd := range d.Violations {
			sb.WriteString(fmt.Sprintf("  %s %s: %s imports %s\n", diffIcon(vd.Type), vd.Label, vd.Source, vd.Target))
		}
	}

	if len(d.Coupling) > 0 {
		sb.WriteString("\nCoupling:\n")
		for _, cp := range d.Coupling {
			switch cp.Type {
			case DiffModified:
				sb.WriteString(fmt.Sprintf("  ~ %s total %d → %d\n", cp.Module, cp.OldTotal, cp.NewTotal))
			case DiffAdded:
				sb.WriteString(fmt.Sprintf("  + %s total %d\n", cp.Module, cp.NewTotal))
			case DiffRemoved:
				sb.WriteString(fmt.Sprintf("  - %s resolved (was %d)\n", cp.Module, cp.OldTotal))
			}
		}
	}

	regressions := d.Regressions()
	if len(regressions) > 0 {
		sb.WriteString(fmt.Sprintf("\nResult: REGRESSED (%d regressions)\n", len(regressions)))
	} else {
		sb.WriteString("\nResult: OK\n")
	}

	return sb.String()
}

func diffIcon(t DiffType) string {
	switch t {
	case DiffAdded:
		return "+"
	case DiffRemoved:
		return "-"
	default:
		return "~"
	}
}

// DiffHunk represents a contiguous block of changes in a text rendering.
type DiffHunk struct {
	OldStart int        `json:"old_start"`
	OldCount int        `json:"old_count"`
	NewStart int        `json:"new_start"`
	NewCount int        `json:"new_count"`
	Lines    []DiffLine `json:"lines"`
}

// DiffLine is a single line in a diff hunk.
type DiffLine struct {
	Type    string `json:"type"` // "context", "add", "remove"
	Content string `json:"content"`
	OldNum  int    `json:"old_num,omitempty"`
	NewNum  int    `json:"new_num,omitempty"`
}

// DiffText computes unified-diff hunks between two text renderings, such
// as the formatted reports of two baselines.
func DiffText(oldText, newText string) []DiffHunk {
	oldLines := strings.Split(oldText, "\n")
	newLines := strings.Split(newText, "\n")

	lcs := longestCommonSubsequence(oldLines, newLines)
	rawDiff := buildRawDiff(oldLines, newLines, lcs)

	return groupIntoHunks(rawDiff, 3)
}

// FormatHunks renders hunks in unified diff style.
func FormatHunks(hunks []DiffHunk) string {
	var sb strings.Builder
	for _, h := range hunks {
		sb.WriteString(fmt.Sprintf("@@ -%d,%d +%d,%d @@\n", h.OldStart, h.OldCount, h.NewStart, h.NewCount))
		for _, l := range h.Lines {
			prefix := " "
			switch l.Type {
			case "add":
				prefix = "+"
			case "remove":
				prefix = "-"
			}
			sb.WriteString(prefix + l.Content + "\n")
		}
	}
	return sb.String()
}

type rawDiffLine struct {
	typ     string // "context", "add", "remove"
	content string
	oldNum  int
	newNum  int
}

func longestCommonSubsequence(a, b []string) [][]int {
	m, n := len(a), len(b)
	dp := make([][]int, m+1)
	for i := range dp {
		dp[i] = make([]int, n+1)
	}
	for i := 1; i <= m; i++ {
		for j := 1; j <= n; j++ {
			if a[i-1] == b[j-1] {
				dp[i][j] = dp[i-1][j-1] + 1
			} else if dp[i-1][j] > dp[i][j-1] {
				dp[i][j] = dp[i-1][j]
			} else {
				dp[i][j] = dp[i][j-1]
			}
		}
	}
	return dp
}

func buildRawDiff(oldLines, newLines []string, dp [][]int) []rawDiffLine {
	var result []rawDiffLine
	i, j := len(oldLines), len(newLines)

	for i > 0 || j > 0 {
		if i > 0 && j > 0 && oldLines[i-1] == newLines[j-1] {
			result = append(result, rawDiffLine{
				typ: "context", content: oldLines[i-1],
				oldNum: i, newNum: j,
			})
			i--
			j--
		} else if j > 0 && (i == 0 || dp[i][j-1] >= dp[i-1][j]) {
			result = append(result, rawDiffLine{
				typ: "add", content: newLines[j-1],
				newNum: j,
			})
			j--
		} else {
			result = append(result, rawDiffLine{
				typ: "remove", content: oldLines[i-1],
				oldNum: i,
			})
			i--
		}
	}

	// Reverse (we built it backwards)
	for left, right := 0, len(result)-1; left < right; left, right = left+1, right-1 {
		result[left], result[right] = result[right], result[left]
	}

	return result
}

func groupIntoHunks(rawDiff []rawDiffLine, contextLines int) []DiffHunk {
	if len(rawDiff) == 0 {
		return nil
	}

	// Find change regions
	type region struct{ start, end int }
	var regions []region

	for i, line := range rawDiff {
		if line.typ != "context" {
			if len(regions) == 0 || i > regions[len(regions)-1].end+contextLines*2 {
				regions = append(regions, region{start: i, end: i})
			} else {
				regions[len(regions)-1].end = i
			}
		}
	}

	var hunks []DiffHunk
	for _, r := range regions {
		start := r.start - contextLines
		if start < 0 {
			start = 0
		}
		end := r.end + contextLines + 1
		if end > len(rawDiff) {
			end = len(rawDiff)
		}

		hunk := DiffHunk{}
		for k := start; k < end; k++ {
			line := rawDiff[k]
			dl := DiffLine{
				Type:    line.typ,
				Content: line.content,
				OldNum:  line.oldNum,
				NewNum:  line.newNum,
			}
			hunk.Lines = append(hunk.Lines, dl)
		}

		if len(hunk.Lines) > 0 {
			// Set hunk ranges
			for _, l := range hunk.Lines {
				if l.OldNum > 0 {
					if hunk.OldStart == 0 || l.OldNum < hunk.OldStart {
						hunk.OldStart = l.OldNum
					}
					hunk.OldCount++
				}
				if l.NewNum > 0 {
					if hunk.NewStart == 0 || l.NewNum < hunk.NewStart {
						hunk.NewStart = l.NewNum
					}
					hunk.NewCount++
				}
			}
			hunks = append(hunks, hunk)
		}
	}

	return hunks
}
