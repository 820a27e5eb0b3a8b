package javascript

import (
	"fmt"
	"regexp"
)

var (
	// import ... from 'specifier' / "specifier"
	staticImportPattern = regexp.MustCompile(`import\s+.*?\s+from\s+['"]([^'"]+)['"]`)
	// import('specifier')
	dynamicImportPattern = regexp.MustCompile(`import\s*\(['"]([^'"]+)['"]\)`)
	// require('specifier')
	requirePattern = regexp.MustCompile(`require\s*\(['"]([^'"]+)['"]\)`)
)

// Family implements lang.Family for the JavaScript/TypeScript family.
type Family struct {
	patterns []*regexp.Regexp
}

func New() *Family {
	return &Family{
		patterns: []*regexp.Regexp{
			staticImportPattern,
			dynamicImportPattern,
			requirePattern,
		},
	}
}

func (f *Family) Name() string { return "javascript" }

func (f *Family) Extensions() []string {
	return []string{".js", ".ts", ".jsx", ".tsx", ".mjs"}
}

// AddPattern appends an extra import pattern. The expression must capture
// the specifier in its first group.
func (f *Family) AddPattern(expr string) error {
	re, err := regexp.Compile(expr)
	if err != nil {
		return fmt.Errorf("compile import pattern %q: %w", expr, err)
	}
	f.patterns = append(f.patterns, re)
	return nil
}

func (f *Family) Imports(content []byte) []string {
	var specs []string
	for _, re := range f.patterns {
		for _, m := range re.FindAllSubmatch(content, -1) {
			if len(m) > 1 {
				specs = append(specs, string(m[1]))
			}
		}
	}
	return specs
}
