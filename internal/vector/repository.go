package vector

import "context"

// ModulePoint is one module's import profile ready for vector storage:
// the rendered profile text, its embedding and lookup metadata.
type ModulePoint struct {
	ID       string
	Content  string
	Vector   []float32
	Metadata map[string]string
}

// Match is one similarity hit, scored against the query vector.
type Match struct {
	ID       string
	Score    float32
	Content  string
	Metadata map[string]string
}

// Repository stores module points and answers nearest-neighbor queries.
type Repository interface {
	// Upsert writes points, replacing any with the same ID.
	Upsert(ctx context.Context, points []ModulePoint) error
	// Search returns the topK closest points.
	Search(ctx context.Context, vector []float32, topK int) ([]Match, error)
	Close() error
}
