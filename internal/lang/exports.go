package lang

import (
	"regexp"
	"strings"
)

var (
	exportDeclPattern  = regexp.MustCompile(`export\s+(?:default\s+)?(?:function|class|const|let|var)\s+(\w+)`)
	exportBracePattern = regexp.MustCompile(`export\s*{\s*([^}]+)\s*}`)
	moduleExportsPattern = regexp.MustCompile(`module\.exports\s*=`)
)

// Exports collects exported symbol names from a file, best-effort. The
// result is informational only; it never feeds edge construction.
func Exports(content []byte) []string {
	var names []string
	for _, m := range exportDeclPattern.FindAllSubmatch(content, -1) {
		names = append(names, string(m[1]))
	}
	for _, m := range exportBracePattern.FindAllSubmatch(content, -1) {
		for _, part := range strings.Split(string(m[1]), ",") {
			if name := strings.TrimSpace(part); name != "" {
				names = append(names, name)
			}
		}
	}
	for range moduleExportsPattern.FindAllIndex(content, -1) {
		names = append(names, "default")
	}
	return names
}
