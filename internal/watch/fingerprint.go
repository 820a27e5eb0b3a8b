package watch

import (
	"crypto/sha256"
	"encoding/hex"
	"sort"
	"strings"

	"github.com/efebarandurmaz/strata/internal/lang"
)

// Fingerprint is a content-addressable hash of a source file and the
// files it imports.
type Fingerprint struct {
	// FileHash is the SHA-256 of the raw file content.
	FileHash string `json:"file_hash"`
	// DependencyHashes are sorted hashes of the file's resolved imports.
	DependencyHashes []string `json:"dependency_hashes,omitempty"`
	// CompositeHash combines FileHash and DependencyHashes. If it is
	// unchanged since the last build, the module's analysis inputs are
	// unchanged too.
	CompositeHash string `json:"composite_hash"`
}

// ComputeFingerprints fingerprints every file. The deps map carries
// resolved import relationships: module path to imported module paths.
func ComputeFingerprints(files []lang.SourceFile, deps map[string][]string) map[string]*Fingerprint {
	fileHashes := make(map[string]string, len(files))
	for _, f := range files {
		fileHashes[f.Path] = hashBytes(f.Content)
	}

	result := make(map[string]*Fingerprint, len(files))
	for _, f := range files {
		fp := &Fingerprint{
			FileHash: fileHashes[f.Path],
		}

		if depPaths, ok := deps[f.Path]; ok && len(depPaths) > 0 {
			for _, depPath := range depPaths {
				if h, ok := fileHashes[depPath]; ok {
					fp.DependencyHashes = append(fp.DependencyHashes, h)
				}
			}
			sort.Strings(fp.DependencyHashes)
		}

		fp.CompositeHash = computeComposite(fp.FileHash, fp.DependencyHashes)
		result[f.Path] = fp
	}

	return result
}

// hashBytes computes SHA-256 of raw bytes.
func hashBytes(data []byte) string {
	h := sha256.Sum256(data)
	return hex.EncodeToString(h[:])
}

// computeComposite creates a single hash from file hash + sorted dependency hashes.
func computeComposite(fileHash string, depHashes []string) string {
	parts := make([]string, 0, 1+len(depHashes))
	parts = append(parts, fileHash)
	parts = append(parts, depHashes...)
	combined := strings.Join(parts, "|")
	h := sha256.Sum256([]byte(combined))
	return hex.EncodeToString(h[:])
}

// Delta categorizes the difference between two fingerprint sets.
type Delta struct {
	Changed []string `json:"changed,omitempty"`
	Added   []string `json:"added,omitempty"`
	Removed []string `json:"removed,omitempty"`
}

// Empty reports whether nothing changed.
func (d Delta) Empty() bool {
	return len(d.Changed) == 0 && len(d.Added) == 0 && len(d.Removed) == 0
}

// Paths returns every path the delta names, sorted.
func (d Delta) Paths() []string {
	all := make([]string, 0, len(d.Changed)+len(d.Added)+len(d.Removed))
	all = append(all, d.Changed...)
	all = append(all, d.Added...)
	all = append(all, d.Removed...)
	sort.Strings(all)
	return all
}

// DiffFingerprints compares current fingerprints against the previous
// set. A nil previous set means a first run: everything is added. Only
// composite hashes are compared, so a file whose import changed content
// counts as changed even when its own bytes did not.
func DiffFingerprints(current, previous map[string]*Fingerprint) Delta {
	var d Delta

	if previous == nil {
		for path := range current {
			d.Added = append(d.Added, path)
		}
		sort.Strings(d.Added)
		return d
	}

	for path, fp := range current {
		prev, ok := previous[path]
		if !ok {
			d.Added = append(d.Added, path)
			continue
		}
		if prev.CompositeHash != fp.CompositeHash {
			d.Changed = append(d.Changed, path)
		}
	}

	for path := range previous {
		if _, ok := current[path]; !ok {
			d.Removed = append(d.Removed, path)
		}
	}

	sort.Strings(d.Changed)
	sort.Strings(d.Added)
	sort.Strings(d.Removed)
	return d
}
