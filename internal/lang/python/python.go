package python

import (
	"fmt"
	"regexp"
	"strings"
)

var (
	// from a.b.c import x
	fromImportPattern = regexp.MustCompile(`from\s+([\w.]+)\s+import`)
	// import a.b.c at statement start
	plainImportPattern = regexp.MustCompile(`(?m)^import\s+([\w.]+)`)
)

// Family implements lang.Family for Python.
type Family struct {
	patterns []*regexp.Regexp
}

func New() *Family {
	return &Family{
		patterns: []*regexp.Regexp{
			fromImportPattern,
			plainImportPattern,
		},
	}
}

func (f *Family) Name() string { return "python" }

func (f *Family) Extensions() []string { return []string{".py"} }

// AddPattern appends an extra import pattern. The expression must capture
// the dotted module path in its first group.
func (f *Family) AddPattern(expr string) error {
	re, err := regexp.Compile(expr)
	if err != nil {
		return fmt.Errorf("compile import pattern %q: %w", expr, err)
	}
	f.patterns = append(f.patterns, re)
	return nil
}

// Imports converts dotted module paths to slash form: "a.b.c" -> "a/b/c".
func (f *Family) Imports(content []byte) []string {
	var specs []string
	for _, re := range f.patterns {
		for _, m := range re.FindAllSubmatch(content, -1) {
			if len(m) > 1 {
				specs = append(specs, strings.ReplaceAll(string(m[1]), ".", "/"))
			}
		}
	}
	return specs
}
