package lang

import (
	"path/filepath"
	"strings"
	"sync"
)

// SourceFile represents a single input file handed to the extractors.
type SourceFile struct {
	Path    string
	Content []byte
}

// Family recognizes the import syntax of one language family.
//
// Extraction is a lexical scan, not a parse: imports hidden behind string
// concatenation or computed specifiers are missed, and text inside comments
// that looks like an import may over-match. Callers accept this imprecision.
type Family interface {
	// Name returns the family identifier (e.g. "javascript").
	Name() string
	// Extensions returns the file extensions this family claims, with dots.
	Extensions() []string
	// Imports returns raw import specifiers in match order, duplicates
	// preserved. Specifiers are normalized to slash-separated form.
	Imports(content []byte) []string
}

// Registry maps file extensions to language families.
type Registry struct {
	mu    sync.RWMutex
	byExt map[string]Family
}

// NewRegistry creates an empty family registry.
func NewRegistry() *Registry {
	return &Registry{byExt: make(map[string]Family)}
}

// Register claims every extension the family declares.
func (r *Registry) Register(f Family) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, ext := range f.Extensions() {
		r.byExt[strings.ToLower(ext)] = f
	}
}

// ForFile looks up the family for a path by its extension.
func (r *Registry) ForFile(path string) (Family, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	f, ok := r.byExt[strings.ToLower(filepath.Ext(path))]
	return f, ok
}

// Extensions returns every registered extension.
func (r *Registry) Extensions() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	exts := make([]string, 0, len(r.byExt))
	for ext := range r.byExt {
		exts = append(exts, ext)
	}
	return exts
}
