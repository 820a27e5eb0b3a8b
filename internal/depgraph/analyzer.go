package depgraph

import (
	"github.com/efebarandurmaz/strata/internal/lang"
)

// Analyzer runs the full dependency analysis: build the module map, then
// the three independent read-only analyses over it.
type Analyzer struct {
	builder *Builder
	config  Config
}

// NewAnalyzer creates an analyzer for the project rooted at root. The
// registry decides which files get import extraction; cfg supplies the
// thresholds and layer rules.
func NewAnalyzer(root string, registry *lang.Registry, cfg Config) *Analyzer {
	return &Analyzer{
		builder: NewBuilder(root, registry),
		config:  cfg,
	}
}

// Analyze builds the graph from the scanned files and runs every analysis.
// The returned report is safe for concurrent readers.
func (a *Analyzer) Analyze(files []lang.SourceFile) *Report {
	modules := a.builder.Build(files)
	return &Report{
		Modules:         modules,
		Cycles:          DetectCycles(modules),
		CouplingIssues:  AnalyzeCoupling(modules, a.config),
		LayerViolations: DetectLayerViolations(modules, a.config),
	}
}

// Config returns the analyzer's effective configuration.
func (a *Analyzer) Config() Config {
	return a.config
}
