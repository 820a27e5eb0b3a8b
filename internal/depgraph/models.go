package depgraph

import (
	"encoding/json"
	"strings"
)

// Module represents one source file as a node in the dependency graph.
type Module struct {
	Path string `json:"path"`
	// Imports holds resolved project-relative paths, deduplicated and
	// sorted. Imports that resolve outside the project are never stored.
	Imports []string `json:"imports"`
	// Exports holds symbol names collected best-effort for reporting.
	// They never participate in edge construction.
	Exports         []string `json:"exports"`
	ImportCount     int      `json:"import_count"`
	ImportedByCount int      `json:"imported_by_count"`
}

// Cycle is a closed walk of import edges. Two cycles with the same member
// set are reported once, keeping the first-seen member order.
type Cycle struct {
	Members []string `json:"cycle"`
}

// Description renders the cycle as "a → b → a".
func (c Cycle) Description() string {
	if len(c.Members) == 0 {
		return ""
	}
	return strings.Join(append(append([]string{}, c.Members...), c.Members[0]), " → ")
}

// CouplingIssue flags a module whose edge counts cross the configured
// thresholds.
type CouplingIssue struct {
	Module   string `json:"module"`
	Incoming int    `json:"incoming"`
	Outgoing int    `json:"outgoing"`
	Total    int    `json:"total"`
	// Hub means incoming and outgoing each exceed the high threshold: a
	// potential god module. Derived at analysis time, not serialized.
	Hub bool `json:"-"`
}

// LayerViolation records an import edge that breaks the allowed layer
// ordering. Label has the form "sourceLayer → targetLayer".
type LayerViolation struct {
	Source string
	Target string
	Label  string
}

// MarshalJSON emits the violation as a [source, target, label] triple.
func (v LayerViolation) MarshalJSON() ([]byte, error) {
	return json.Marshal([3]string{v.Source, v.Target, v.Label})
}

// UnmarshalJSON accepts the triple form produced by MarshalJSON.
func (v *LayerViolation) UnmarshalJSON(data []byte) error {
	var triple [3]string
	if err := json.Unmarshal(data, &triple); err != nil {
		return err
	}
	v.Source, v.Target, v.Label = triple[0], triple[1], triple[2]
	return nil
}

// Report is the complete result of one analysis pass. It is immutable once
// built: every analysis reads the module map, none writes it.
type Report struct {
	Modules         map[string]*Module `json:"modules"`
	Cycles          []Cycle            `json:"circular_dependencies"`
	CouplingIssues  []CouplingIssue    `json:"coupling_issues"`
	LayerViolations []LayerViolation   `json:"layer_violations"`
}

// InternalEdgeCount counts import edges whose target is itself a module.
func (r *Report) InternalEdgeCount() int {
	count := 0
	for _, m := range r.Modules {
		for _, imp := range m.Imports {
			if _, ok := r.Modules[imp]; ok {
				count++
			}
		}
	}
	return count
}
