package vector

import (
	"context"
	"fmt"
	"hash/fnv"
	"math"
	"path"
	"sort"
	"strings"

	"github.com/google/uuid"

	"github.com/efebarandurmaz/strata/internal/depgraph"
)

// DefaultDims is the embedding width used when none is configured.
const DefaultDims = 256

// Embedder turns module import profiles into fixed-width vectors using
// the hashing trick, so similarity search needs no external model. Two
// modules land close together when they import overlapping targets and
// live in similar directories.
type Embedder struct {
	dims int
	repo Repository
}

// NewEmbedder creates an Embedder writing to repo.
func NewEmbedder(repo Repository, dims int) *Embedder {
	if dims <= 0 {
		dims = DefaultDims
	}
	return &Embedder{dims: dims, repo: repo}
}

// Dims returns the embedding width.
func (e *Embedder) Dims() int { return e.dims }

// EmbedModule produces the L2-normalized profile vector of one module.
func (e *Embedder) EmbedModule(m *depgraph.Module) []float32 {
	vec := make([]float32, e.dims)
	for _, token := range profileTokens(m) {
		h := fnv.New64a()
		h.Write([]byte(token))
		sum := h.Sum64()
		idx := int(sum % uint64(e.dims))
		// Top bit picks the sign, low bits pick the bucket.
		if sum&(1<<63) != 0 {
			vec[idx]--
		} else {
			vec[idx]++
		}
	}
	normalize(vec)
	return vec
}

// IndexReport embeds every module of the report and upserts the result.
// Point IDs are derived from project and module path, so re-indexing
// updates points in place instead of duplicating them.
func (e *Embedder) IndexReport(ctx context.Context, project string, r *depgraph.Report) (int, error) {
	paths := make([]string, 0, len(r.Modules))
	for p := range r.Modules {
		paths = append(paths, p)
	}
	sort.Strings(paths)

	points := make([]ModulePoint, 0, len(paths))
	for _, p := range paths {
		m := r.Modules[p]
		points = append(points, ModulePoint{
			ID:      pointID(project, p),
			Content: profileText(m),
			Vector:  e.EmbedModule(m),
			Metadata: map[string]string{
				"project": project,
				"module":  p,
			},
		})
	}

	if len(points) == 0 {
		return 0, nil
	}
	if err := e.repo.Upsert(ctx, points); err != nil {
		return 0, fmt.Errorf("index report: %w", err)
	}
	return len(points), nil
}

// SimilarModules finds the modules whose import profile is closest to
// m's. The module itself and hits from other projects are filtered out.
func (e *Embedder) SimilarModules(ctx context.Context, project string, m *depgraph.Module, topK int) ([]Match, error) {
	if topK <= 0 {
		topK = 5
	}

	// Over-fetch to survive dropping self and foreign-project points.
	raw, err := e.repo.Search(ctx, e.EmbedModule(m), topK*2+1)
	if err != nil {
		return nil, fmt.Errorf("similarity search: %w", err)
	}

	results := make([]Match, 0, topK)
	for _, res := range raw {
		if res.Metadata["project"] != project || res.Metadata["module"] == m.Path {
			continue
		}
		results = append(results, res)
		if len(results) == topK {
			break
		}
	}
	return results, nil
}

func profileTokens(m *depgraph.Module) []string {
	tokens := make([]string, 0, len(m.Imports)+4)
	for _, imp := range m.Imports {
		tokens = append(tokens, "imp:"+imp)
	}
	for _, seg := range strings.Split(path.Dir(m.Path), "/") {
		tokens = append(tokens, "dir:"+seg)
	}
	tokens = append(tokens, "ext:"+path.Ext(m.Path))
	return tokens
}

func profileText(m *depgraph.Module) string {
	if len(m.Imports) == 0 {
		return m.Path + " imports nothing"
	}
	return m.Path + " imports " + strings.Join(m.Imports, ", ")
}

func normalize(vec []float32) {
	var sum float64
	for _, v := range vec {
		sum += float64(v) * float64(v)
	}
	if sum == 0 {
		return
	}
	norm := float32(math.Sqrt(sum))
	for i := range vec {
		vec[i] /= norm
	}
}

func pointID(project, module string) string {
	return uuid.NewSHA1(uuid.NameSpaceURL, []byte("strata://"+project+"/"+module)).String()
}
