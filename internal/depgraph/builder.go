package depgraph

import (
	"path/filepath"
	"sort"

	"github.com/efebarandurmaz/strata/internal/lang"
)

// Builder assembles the module map from scanned source files.
type Builder struct {
	root     string
	registry *lang.Registry
	resolver *Resolver
}

// NewBuilder creates a builder anchored at the absolute project root.
func NewBuilder(root string, registry *lang.Registry) *Builder {
	return &Builder{
		root:     filepath.Clean(root),
		registry: registry,
		resolver: NewResolver(root),
	}
}

// Build constructs one Module per input file and computes reverse-reference
// counts. Input order does not matter. Each file's content is lexed exactly
// once; nothing is re-read from disk except resolver existence probes.
func (b *Builder) Build(files []lang.SourceFile) map[string]*Module {
	modules := make(map[string]*Module, len(files))
	for _, f := range files {
		mod := b.buildModule(f)
		modules[mod.Path] = mod
	}

	// Reverse counts run only after every module's import set is final.
	importedBy := make(map[string]int)
	for _, m := range modules {
		for _, imp := range m.Imports {
			importedBy[imp]++
		}
	}
	for path, m := range modules {
		m.ImportedByCount = importedBy[path]
	}

	return modules
}

// buildModule extracts, resolves and deduplicates one file's imports.
func (b *Builder) buildModule(f lang.SourceFile) *Module {
	importer := filepath.Join(b.root, filepath.FromSlash(f.Path))
	imports := []string{}
	if family, ok := b.registry.ForFile(f.Path); ok {
		seen := make(map[string]bool)
		for _, raw := range family.Imports(f.Content) {
			resolved, ok := b.resolver.Resolve(raw, importer)
			if !ok || seen[resolved] {
				continue
			}
			seen[resolved] = true
			imports = append(imports, resolved)
		}
		sort.Strings(imports)
	}

	exports := lang.Exports(f.Content)
	if exports == nil {
		exports = []string{}
	}

	return &Module{
		Path:        f.Path,
		Imports:     imports,
		Exports:     exports,
		ImportCount: len(imports),
	}
}
