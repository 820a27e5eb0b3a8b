package depgraph

import (
	"os"
	"path/filepath"
	"strings"
)

// suffixProbeOrder lists the variants tried for a resolved candidate, in
// priority order. The first one naming a regular file wins.
var suffixProbeOrder = []string{"", ".ts", ".tsx", ".js", ".jsx", ".py", "/index.ts", "/index.js"}

// Resolver maps raw import specifiers to canonical project-relative module
// paths. Resolution never fails with an error: anything that cannot be
// mapped to an existing file is classified external and reported as not-ok.
type Resolver struct {
	root string
}

// NewResolver creates a resolver anchored at the absolute project root.
func NewResolver(root string) *Resolver {
	return &Resolver{root: filepath.Clean(root)}
}

// Resolve maps raw to a canonical module path. importer is the absolute
// path of the file containing the import. ok is false when the specifier
// is external or names nothing on disk.
func (r *Resolver) Resolve(raw, importer string) (string, bool) {
	var candidate string

	switch {
	case strings.HasPrefix(raw, "."):
		dir := filepath.Dir(importer)
		switch {
		case strings.HasPrefix(raw, "./"):
			candidate = filepath.Join(dir, raw[2:])
		case strings.HasPrefix(raw, "../"):
			// Every ".." segment climbs one directory, wherever it
			// appears; the rest joins below the climbed-to directory.
			ups := 0
			var rest []string
			for _, part := range strings.Split(raw, "/") {
				if part == ".." {
					ups++
				} else {
					rest = append(rest, part)
				}
			}
			target := dir
			for i := 0; i < ups; i++ {
				target = filepath.Dir(target)
			}
			candidate = filepath.Join(target, strings.Join(rest, "/"))
		default:
			candidate = filepath.Join(dir, raw[1:])
		}

	case strings.HasPrefix(raw, "@/") || strings.HasPrefix(raw, "~/"):
		candidate = filepath.Join(r.root, raw[2:])

	case !strings.HasPrefix(raw, "/"):
		// Bare specifier: local only if something under the root answers
		// to it; otherwise it is an external package.
		candidate = filepath.Join(r.root, raw)
		if !pathExists(candidate) && !pathExists(candidate+".ts") {
			return "", false
		}

	default:
		candidate = raw
	}

	return r.probe(candidate)
}

// probe tries each suffix variant and returns the normalized path of the
// first existing regular file.
func (r *Resolver) probe(candidate string) (string, bool) {
	for _, suffix := range suffixProbeOrder {
		full := candidate + suffix
		if isRegularFile(full) {
			return r.normalize(full), true
		}
	}
	return "", false
}

// normalize returns the slash-separated form of path relative to the root.
func (r *Resolver) normalize(path string) string {
	rel, err := filepath.Rel(r.root, path)
	if err != nil {
		return filepath.ToSlash(path)
	}
	return filepath.ToSlash(rel)
}

func pathExists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}

func isRegularFile(path string) bool {
	info, err := os.Stat(path)
	return err == nil && info.Mode().IsRegular()
}
