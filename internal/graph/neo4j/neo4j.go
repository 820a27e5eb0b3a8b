package neo4j

import (
	"context"
	"fmt"
	"sort"

	"github.com/efebarandurmaz/strata/internal/depgraph"
	"github.com/efebarandurmaz/strata/internal/graph"
	"github.com/neo4j/neo4j-go-driver/v5/neo4j"
)

// Neo4jRepository implements graph.Repository using Neo4j.
type Neo4jRepository struct {
	driver   neo4j.DriverWithContext
	database string
}

// NewNeo4j creates a Neo4j-backed repository. An empty database name
// uses the server's default database.
func NewNeo4j(ctx context.Context, uri, username, password, database string) (*Neo4jRepository, error) {
	driver, err := neo4j.NewDriverWithContext(uri, neo4j.BasicAuth(username, password, ""))
	if err != nil {
		return nil, fmt.Errorf("neo4j driver: %w", err)
	}
	if err := driver.VerifyConnectivity(ctx); err != nil {
		return nil, fmt.Errorf("neo4j connectivity: %w", err)
	}
	return &Neo4jRepository{driver: driver, database: database}, nil
}

func (r *Neo4jRepository) session(ctx context.Context) neo4j.SessionWithContext {
	return r.driver.NewSession(ctx, neo4j.SessionConfig{DatabaseName: r.database})
}

// StoreReport replaces the project's graph with the report's modules and
// internal import edges. Modules carry their coupling counts and a
// cycle-membership flag for querying hotspots directly in Cypher.
func (r *Neo4jRepository) StoreReport(ctx context.Context, project string, report *depgraph.Report) (graph.PushStats, error) {
	var stats graph.PushStats

	session := r.session(ctx)
	defer session.Close(ctx)

	_, err := session.ExecuteWrite(ctx, func(tx neo4j.ManagedTransaction) (any, error) {
		_, err := tx.Run(ctx,
			"MATCH (m:Module {project: $project}) DETACH DELETE m",
			map[string]any{"project": project})
		return nil, err
	})
	if err != nil {
		return stats, fmt.Errorf("clear project %s: %w", project, err)
	}

	inCycle := make(map[string]bool)
	for _, c := range report.Cycles {
		for _, member := range c.Members {
			inCycle[member] = true
		}
	}

	paths := make([]string, 0, len(report.Modules))
	for p := range report.Modules {
		paths = append(paths, p)
	}
	sort.Strings(paths)

	for _, path := range paths {
		mod := report.Modules[path]
		_, err := session.ExecuteWrite(ctx, func(tx neo4j.ManagedTransaction) (any, error) {
			_, err := tx.Run(ctx,
				"MERGE (m:Module {project: $project, path: $path}) "+
					"SET m.import_count = $imports, m.imported_by_count = $importedBy, m.in_cycle = $inCycle",
				map[string]any{
					"project":    project,
					"path":       path,
					"imports":    mod.ImportCount,
					"importedBy": mod.ImportedByCount,
					"inCycle":    inCycle[path],
				})
			return nil, err
		})
		if err != nil {
			return stats, fmt.Errorf("store module %s: %w", path, err)
		}
		stats.Nodes++
	}

	_, err = session.ExecuteWrite(ctx, func(tx neo4j.ManagedTransaction) (any, error) {
		for _, path := range paths {
			for _, imp := range report.Modules[path].Imports {
				if _, ok := report.Modules[imp]; !ok {
					continue
				}
				_, err := tx.Run(ctx,
					"MATCH (a:Module {project: $project, path: $from}) "+
						"MATCH (b:Module {project: $project, path: $to}) "+
						"MERGE (a)-[:IMPORTS]->(b)",
					map[string]any{"project": project, "from": path, "to": imp})
				if err != nil {
					return nil, err
				}
				stats.Edges++
			}
		}
		return nil, nil
	})
	if err != nil {
		return stats, fmt.Errorf("store import edges: %w", err)
	}

	return stats, nil
}

func (r *Neo4jRepository) LoadModules(ctx context.Context, project string) ([]*depgraph.Module, error) {
	session := r.session(ctx)
	defer session.Close(ctx)

	result, err := session.ExecuteRead(ctx, func(tx neo4j.ManagedTransaction) (any, error) {
		records, err := tx.Run(ctx,
			"MATCH (m:Module {project: $project}) "+
				"OPTIONAL MATCH (m)-[:IMPORTS]->(d:Module) "+
				"RETURN m.path, m.import_count, m.imported_by_count, collect(d.path) as imports "+
				"ORDER BY m.path",
			map[string]any{"project": project})
		if err != nil {
			return nil, err
		}

		var modules []*depgraph.Module
		for records.Next(ctx) {
			rec := records.Record()
			path, _ := rec.Get("m.path")
			importCount, _ := rec.Get("m.import_count")
			importedBy, _ := rec.Get("m.imported_by_count")
			imports, _ := rec.Get("imports")

			mod := &depgraph.Module{
				Path:            path.(string),
				ImportCount:     int(importCount.(int64)),
				ImportedByCount: int(importedBy.(int64)),
			}
			for _, imp := range imports.([]any) {
				if imp != nil {
					mod.Imports = append(mod.Imports, imp.(string))
				}
			}
			sort.Strings(mod.Imports)
			modules = append(modules, mod)
		}
		return modules, nil
	})
	if err != nil {
		return nil, err
	}
	return result.([]*depgraph.Module), nil
}

// Dependents walks IMPORTS edges backwards. Cypher cannot parameterize
// a variable-length bound, so the depth is formatted into the query.
func (r *Neo4jRepository) Dependents(ctx context.Context, project, module string, depth int) ([]string, error) {
	if depth <= 0 {
		depth = 1
	}

	session := r.session(ctx)
	defer session.Close(ctx)

	query := fmt.Sprintf(
		"MATCH (d:Module {project: $project})-[:IMPORTS*1..%d]->(m:Module {project: $project, path: $path}) "+
			"RETURN DISTINCT d.path ORDER BY d.path", depth)

	result, err := session.ExecuteRead(ctx, func(tx neo4j.ManagedTransaction) (any, error) {
		records, err := tx.Run(ctx, query, map[string]any{"project": project, "path": module})
		if err != nil {
			return nil, err
		}
		var paths []string
		for records.Next(ctx) {
			p, _ := records.Record().Get("d.path")
			paths = append(paths, p.(string))
		}
		return paths, nil
	})
	if err != nil {
		return nil, err
	}
	return result.([]string), nil
}

// Ping verifies the driver can still reach the database.
func (r *Neo4jRepository) Ping(ctx context.Context) error {
	return r.driver.VerifyConnectivity(ctx)
}

func (r *Neo4jRepository) Close(ctx context.Context) error {
	return r.driver.Close(ctx)
}

var _ graph.Repository = (*Neo4jRepository)(nil)
