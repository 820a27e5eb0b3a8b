package snapshot

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"

	"github.com/efebarandurmaz/strata/internal/depgraph"
)

const (
	baselinesDir = "baselines"
	objectsDir   = "objects"
	indexFile    = "index.json"
)

// Store is a content-addressable baseline store rooted at a directory.
// Metadata lives in baselines/<id>.json, the captured report JSON is
// stored once per content hash under objects/, and index.json carries
// the summaries so listing never touches the baseline files.
type Store struct {
	mu      sync.RWMutex
	rootDir string
	index   *BaselineIndex
}

// NewStore creates or opens a baseline store at the given directory.
func NewStore(rootDir string) (*Store, error) {
	for _, dir := range []string{
		filepath.Join(rootDir, baselinesDir),
		filepath.Join(rootDir, objectsDir),
	} {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create store directory %s: %w", dir, err)
		}
	}

	s := &Store{rootDir: rootDir}
	if err := s.loadIndex(); err != nil {
		s.index = &BaselineIndex{
			Baselines: []BaselineSummary{},
			UpdatedAt: time.Now(),
		}
	}
	return s, nil
}

// Save persists a baseline together with the full report it captured.
// Saving the same ID again replaces the previous entry instead of
// duplicating it in the index.
func (s *Store) Save(b *Baseline, r *depgraph.Report) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if r != nil {
		if err := s.writeObject(b.ContentHash, marshalReport(r)); err != nil {
			return fmt.Errorf("store report object: %w", err)
		}
	}

	data, err := json.MarshalIndent(b, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal baseline: %w", err)
	}
	if err := writeFileAtomic(s.baselinePath(b.ID), data); err != nil {
		return fmt.Errorf("write baseline: %w", err)
	}

	s.index.upsert(b.Summary())
	return s.saveIndex()
}

// Load retrieves a baseline by ID.
func (s *Store) Load(id string) (*Baseline, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.readBaseline(id)
}

// LoadReport retrieves the full report captured by a baseline.
func (s *Store) LoadReport(b *Baseline) (*depgraph.Report, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	data, err := os.ReadFile(s.objectPath(b.ContentHash))
	if err != nil {
		return nil, fmt.Errorf("read report object for %s: %w", b.ID, err)
	}

	var r depgraph.Report
	if err := json.Unmarshal(data, &r); err != nil {
		return nil, fmt.Errorf("unmarshal report for %s: %w", b.ID, err)
	}
	return &r, nil
}

// List returns all baseline summaries, newest first.
func (s *Store) List() []BaselineSummary {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := append([]BaselineSummary(nil), s.index.Baselines...)
	sort.Slice(out, func(i, j int) bool {
		return out[i].CreatedAt.After(out[j].CreatedAt)
	})
	return out
}

// FindByName returns the baseline with the given name. When several
// share a name, the most recently saved one wins.
func (s *Store) FindByName(name string) (*Baseline, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for i := len(s.index.Baselines) - 1; i >= 0; i-- {
		if s.index.Baselines[i].Name == name {
			return s.readBaseline(s.index.Baselines[i].ID)
		}
	}
	return nil, fmt.Errorf("baseline named %q not found", name)
}

// Rename assigns a name to a baseline and updates its index entry.
func (s *Store) Rename(id, name string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	b, err := s.readBaseline(id)
	if err != nil {
		return err
	}
	b.Name = name

	data, err := json.MarshalIndent(b, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal baseline: %w", err)
	}
	if err := writeFileAtomic(s.baselinePath(id), data); err != nil {
		return fmt.Errorf("write baseline: %w", err)
	}

	for i := range s.index.Baselines {
		if s.index.Baselines[i].ID == id {
			s.index.Baselines[i].Name = name
			break
		}
	}
	s.index.UpdatedAt = time.Now()
	return s.saveIndex()
}

// Delete removes a baseline. Report objects stay in place; another
// baseline with the same content hash may still reference them.
func (s *Store) Delete(id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := os.Remove(s.baselinePath(id)); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("remove baseline %s: %w", id, err)
	}

	kept := s.index.Baselines[:0]
	for _, sum := range s.index.Baselines {
		if sum.ID != id {
			kept = append(kept, sum)
		}
	}
	s.index.Baselines = kept
	s.index.UpdatedAt = time.Now()
	return s.saveIndex()
}

// readBaseline expects the caller to hold the lock.
func (s *Store) readBaseline(id string) (*Baseline, error) {
	data, err := os.ReadFile(s.baselinePath(id))
	if err != nil {
		return nil, fmt.Errorf("read baseline %s: %w", id, err)
	}

	var b Baseline
	if err := json.Unmarshal(data, &b); err != nil {
		return nil, fmt.Errorf("unmarshal baseline %s: %w", id, err)
	}
	return &b, nil
}

func (s *Store) baselinePath(id string) string {
	return filepath.Join(s.rootDir, baselinesDir, id+".json")
}

// objectPath shards by the first two hash characters to bound the
// fan-out of the objects directory.
func (s *Store) objectPath(hash string) string {
	return filepath.Join(s.rootDir, objectsDir, hash[:2], hash[2:])
}

// writeObject stores content under its hash. An existing object is
// left alone: identical content hashes to an identical object.
func (s *Store) writeObject(hash string, content []byte) error {
	path := s.objectPath(hash)
	if _, err := os.Stat(path); err == nil {
		return nil
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	return writeFileAtomic(path, content)
}

func (s *Store) loadIndex() error {
	data, err := os.ReadFile(filepath.Join(s.rootDir, indexFile))
	if err != nil {
		return err
	}
	s.index = &BaselineIndex{}
	return json.Unmarshal(data, s.index)
}

func (s *Store) saveIndex() error {
	data, err := json.MarshalIndent(s.index, "", "  ")
	if err != nil {
		return err
	}
	return writeFileAtomic(filepath.Join(s.rootDir, indexFile), data)
}

// upsert replaces the summary for an existing ID or appends a new one.
func (idx *BaselineIndex) upsert(sum BaselineSummary) {
	idx.UpdatedAt = time.Now()
	for i, existing := range idx.Baselines {
		if existing.ID == sum.ID {
			idx.Baselines[i] = sum
			return
		}
	}
	idx.Baselines = append(idx.Baselines, sum)
}

// writeFileAtomic writes via a temp file and rename so a crash cannot
// leave a half-written baseline or index behind.
func writeFileAtomic(path string, data []byte) error {
	tmp, err := os.CreateTemp(filepath.Dir(path), ".tmp-*")
	if err != nil {
		return err
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	return os.Rename(tmp.Name(), path)
}
