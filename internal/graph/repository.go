package graph

import (
	"context"

	"github.com/efebarandurmaz/strata/internal/depgraph"
)

// PushStats reports what a push wrote.
type PushStats struct {
	Nodes int `json:"nodes"`
	Edges int `json:"edges"`
}

// Repository provides graph storage for analysis reports.
type Repository interface {
	// StoreReport persists a report under a project name, replacing that
	// project's previous graph.
	StoreReport(ctx context.Context, project string, r *depgraph.Report) (PushStats, error)
	// LoadModules retrieves the stored modules of a project.
	LoadModules(ctx context.Context, project string) ([]*depgraph.Module, error)
	// Dependents returns the modules that import the given module,
	// directly or through up to depth hops.
	Dependents(ctx context.Context, project, module string, depth int) ([]string, error)
	// Close releases resources.
	Close(ctx context.Context) error
}
