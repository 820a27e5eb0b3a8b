package snapshot

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"sort"
	"strings"
	"time"

	"github.com/efebarandurmaz/strata/internal/depgraph"
)

// Baseline is a point-in-time capture of a dependency analysis report.
// It stores enough per-finding identity to detect regressions against a
// later run without re-reading the original tree.
type Baseline struct {
	ID          string            `json:"id"`
	Name        string            `json:"name,omitempty"`
	Description string            `json:"description,omitempty"`
	CreatedAt   time.Time         `json:"created_at"`
	Root        string            `json:"root"`
	ContentHash string            `json:"content_hash"`
	Stats       BaselineStats     `json:"stats"`
	Modules     []ModuleRecord    `json:"modules"`
	Cycles      []CycleRecord     `json:"cycles,omitempty"`
	Coupling    []CouplingRecord  `json:"coupling,omitempty"`
	Violations  []ViolationRecord `json:"violations,omitempty"`
	Metadata    map[string]string `json:"metadata,omitempty"`
}

// BaselineStats aggregates the headline counts of a captured report.
type BaselineStats struct {
	Modules         int `json:"modules"`
	Cycles          int `json:"cycles"`
	CouplingIssues  int `json:"coupling_issues"`
	LayerViolations int `json:"layer_violations"`
}

// ModuleRecord pins one module's coupling profile at capture time.
type ModuleRecord struct {
	Path            string `json:"path"`
	ImportCount     int    `json:"import_count"`
	ImportedByCount int    `json:"imported_by_count"`
}

// CycleRecord stores the members of one circular dependency.
type CycleRecord struct {
	Members []string `json:"members"`
}

// Key identifies a cycle independent of rotation: the sorted member set.
func (c CycleRecord) Key() string {
	members := append([]string{}, c.Members...)
	sort.Strings(members)
	return strings.Join(members, "\x00")
}

// Description renders the cycle in walk order.
func (c CycleRecord) Description() string {
	return depgraph.Cycle{Members: c.Members}.Description()
}

// CouplingRecord stores one high-coupling finding.
type CouplingRecord struct {
	Module   string `json:"module"`
	Incoming int    `json:"incoming"`
	Outgoing int    `json:"outgoing"`
	Total    int    `json:"total"`
}

// ViolationRecord stores one layer violation.
type ViolationRecord struct {
	Source string `json:"source"`
	Target string `json:"target"`
	Label  string `json:"label"`
}

// Key identifies a violation by its edge; the label follows from the edge.
func (v ViolationRecord) Key() string {
	return v.Source + "\x00" + v.Target
}

// BaselineIndex is a lightweight listing of all baselines for fast lookup.
type BaselineIndex struct {
	Baselines []BaselineSummary `json:"baselines"`
	UpdatedAt time.Time         `json:"updated_at"`
}

// BaselineSummary is the minimal info for listing baselines.
type BaselineSummary struct {
	ID        string        `json:"id"`
	Name      string        `json:"name,omitempty"`
	CreatedAt time.Time     `json:"created_at"`
	Root      string        `json:"root"`
	Stats     BaselineStats `json:"stats"`
}

// NewBaseline captures a report into a baseline. The ID is derived from
// the content hash and the capture time, so identical reports saved at
// different moments still get distinct IDs.
func NewBaseline(root string, r *depgraph.Report) *Baseline {
	b := &Baseline{
		CreatedAt: time.Now(),
		Root:      root,
		Metadata:  make(map[string]string),
	}

	paths := make([]string, 0, len(r.Modules))
	for p := range r.Modules {
		paths = append(paths, p)
	}
	sort.Strings(paths)

	for _, p := range paths {
		m := r.Modules[p]
		b.Modules = append(b.Modules, ModuleRecord{
			Path:            p,
			ImportCount:     m.ImportCount,
			ImportedByCount: m.ImportedByCount,
		})
	}

	for _, c := range r.Cycles {
		b.Cycles = append(b.Cycles, CycleRecord{Members: append([]string{}, c.Members...)})
	}
	for _, issue := range r.CouplingIssues {
		b.Coupling = append(b.Coupling, CouplingRecord{
			Module:   issue.Module,
			Incoming: issue.Incoming,
			Outgoing: issue.Outgoing,
			Total:    issue.Total,
		})
	}
	for _, v := range r.LayerViolations {
		b.Violations = append(b.Violations, ViolationRecord{
			Source: v.Source,
			Target: v.Target,
			Label:  v.Label,
		})
	}

	b.Stats = BaselineStats{
		Modules:         len(b.Modules),
		Cycles:          len(b.Cycles),
		CouplingIssues:  len(b.Coupling),
		LayerViolations: len(b.Violations),
	}

	b.ContentHash = ContentHash(marshalReport(r))
	b.ID = generateBaselineID(b)

	return b
}

// ContentHash computes SHA-256 of content.
func ContentHash(content []byte) string {
	h := sha256.Sum256(content)
	return hex.EncodeToString(h[:])
}

// marshalReport serializes a report deterministically; map keys are
// sorted by encoding/json, so identical reports hash identically.
func marshalReport(r *depgraph.Report) []byte {
	data, _ := json.MarshalIndent(r, "", "  ")
	return data
}

func generateBaselineID(b *Baseline) string {
	data, _ := json.Marshal(struct {
		Time    int64  `json:"t"`
		Content string `json:"c"`
	}{
		Time:    b.CreatedAt.UnixNano(),
		Content: b.ContentHash,
	})
	h := sha256.Sum256(data)
	return hex.EncodeToString(h[:8]) // Short 16-char hex ID
}

// Summary returns a lightweight summary of this baseline.
func (b *Baseline) Summary() BaselineSummary {
	return BaselineSummary{
		ID:        b.ID,
		Name:      b.Name,
		CreatedAt: b.CreatedAt,
		Root:      b.Root,
		Stats:     b.Stats,
	}
}
