// Package scanner walks a source tree and loads every file a
// registered language family claims.
package scanner

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"runtime"
	"strings"

	"golang.org/x/sync/errgroup"

	"github.com/efebarandurmaz/strata/internal/lang"
)

// DefaultExcludes lists directory names skipped at any depth.
var DefaultExcludes = []string{"node_modules", ".git", "__pycache__", "dist", "build", ".venv"}

// Config controls a scan.
type Config struct {
	Root     string
	Excludes []string
	// Extensions narrows the language registry's claims to the listed
	// file extensions. Empty means every claimed extension; extensions
	// no family claims have no effect.
	Extensions  []string
	Concurrency int
}

type Scanner struct {
	root        string
	registry    *lang.Registry
	excludes    map[string]bool
	extensions  map[string]bool
	concurrency int
	logger      *slog.Logger
}

func New(cfg Config, registry *lang.Registry) *Scanner {
	excludes := cfg.Excludes
	if excludes == nil {
		excludes = DefaultExcludes
	}
	set := make(map[string]bool, len(excludes))
	for _, name := range excludes {
		set[name] = true
	}

	var extSet map[string]bool
	if len(cfg.Extensions) > 0 {
		extSet = make(map[string]bool, len(cfg.Extensions))
		for _, ext := range cfg.Extensions {
			ext = strings.ToLower(ext)
			if !strings.HasPrefix(ext, ".") {
				ext = "." + ext
			}
			extSet[ext] = true
		}
	}

	concurrency := cfg.Concurrency
	if concurrency <= 0 {
		concurrency = runtime.NumCPU()
	}

	return &Scanner{
		root:        filepath.Clean(cfg.Root),
		registry:    registry,
		excludes:    set,
		extensions:  extSet,
		concurrency: concurrency,
		logger:      slog.Default(),
	}
}

// wanted reports whether a file passes the optional extension filter.
func (s *Scanner) wanted(path string) bool {
	if s.extensions == nil {
		return true
	}
	return s.extensions[strings.ToLower(filepath.Ext(path))]
}

// Scan returns the claimed files under root with root-relative,
// forward-slash paths. File contents are read in parallel; unreadable
// files are logged and skipped rather than failing the scan.
func (s *Scanner) Scan(ctx context.Context) ([]lang.SourceFile, error) {
	if _, err := os.Stat(s.root); err != nil {
		return nil, fmt.Errorf("scan root: %w", err)
	}

	var paths []string
	err := filepath.Walk(s.root, func(p string, fi os.FileInfo, err error) error {
		if err != nil {
			s.logger.Warn("skipping unreadable path", "path", p, "error", err)
			return nil
		}
		if fi.IsDir() {
			// The root itself is never excluded, even if its own name
			// matches an exclusion.
			if p != s.root && s.excludes[fi.Name()] {
				return filepath.SkipDir
			}
			return nil
		}
		if _, ok := s.registry.ForFile(p); ok && s.wanted(p) {
			paths = append(paths, p)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("walking %s: %w", s.root, err)
	}

	loaded := make([]*lang.SourceFile, len(paths))
	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(s.concurrency)
	for i, p := range paths {
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			data, err := os.ReadFile(p)
			if err != nil {
				s.logger.Warn("skipping unreadable file", "path", p, "error", err)
				return nil
			}
			rel, err := filepath.Rel(s.root, p)
			if err != nil {
				rel = p
			}
			loaded[i] = &lang.SourceFile{Path: filepath.ToSlash(rel), Content: data}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	files := make([]lang.SourceFile, 0, len(loaded))
	for _, f := range loaded {
		if f != nil {
			files = append(files, *f)
		}
	}
	s.logger.Debug("scan complete", "root", s.root, "files", len(files))
	return files, nil
}
