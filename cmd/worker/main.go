package main

import (
	"context"
	"fmt"
	"log"
	"os"

	"github.com/efebarandurmaz/strata/internal/config"
	"github.com/efebarandurmaz/strata/internal/depgraph"
	"github.com/efebarandurmaz/strata/internal/graph"
	"github.com/efebarandurmaz/strata/internal/graph/neo4j"
	"github.com/efebarandurmaz/strata/internal/lang"
	"github.com/efebarandurmaz/strata/internal/lang/javascript"
	"github.com/efebarandurmaz/strata/internal/lang/python"
	"github.com/efebarandurmaz/strata/internal/observability"
	"github.com/efebarandurmaz/strata/internal/scanner"
	"github.com/efebarandurmaz/strata/internal/secrets"
	"github.com/efebarandurmaz/strata/internal/server"
	temporalmod "github.com/efebarandurmaz/strata/internal/temporal"
	"github.com/efebarandurmaz/strata/internal/vector"
	"github.com/efebarandurmaz/strata/internal/vector/qdrant"

	temporalclient "go.temporal.io/sdk/client"
)

const (
	version           = "0.1.0"
	defaultTaskQueue  = "strata-analysis"
	defaultHealthAddr = ":8090"
)

func main() {
	configPath := ".strata.yaml"
	if len(os.Args) > 1 {
		configPath = os.Args[1]
	}

	cfg, err := config.Load(configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Warning: config load failed (%v), using defaults\n", err)
		cfg = &config.Config{}
	}

	ctx := context.Background()

	registry := lang.NewRegistry()
	js := javascript.New()
	py := python.New()
	for family, patterns := range cfg.Lang.Patterns {
		for _, expr := range patterns {
			switch family {
			case "javascript":
				err = js.AddPattern(expr)
			case "python":
				err = py.AddPattern(expr)
			default:
				err = fmt.Errorf("unknown language family %q", family)
			}
			if err != nil {
				log.Fatalf("lang pattern %q: %v", expr, err)
			}
		}
	}
	registry.Register(js)
	registry.Register(py)

	analysisCfg := depgraph.DefaultConfig()
	if cfg.Analysis.HighCouplingThreshold > 0 {
		analysisCfg.HighCouplingThreshold = cfg.Analysis.HighCouplingThreshold
	}
	if cfg.Analysis.TotalCouplingThreshold > 0 {
		analysisCfg.TotalCouplingThreshold = cfg.Analysis.TotalCouplingThreshold
	}
	if len(cfg.Analysis.Layers) > 0 {
		rules := make([]depgraph.LayerRule, 0, len(cfg.Analysis.Layers))
		for _, r := range cfg.Analysis.Layers {
			rules = append(rules, depgraph.LayerRule{Pattern: r.Pattern, Layer: r.Layer})
		}
		analysisCfg.LayerRules = rules
	}
	if len(cfg.Analysis.AllowedLayers) > 0 {
		analysisCfg.AllowedLayers = cfg.Analysis.AllowedLayers
	}

	graceful := server.NewGracefulServer(&server.HealthConfig{Version: version}, nil)

	tc := observability.DefaultTracingConfig()
	tc.ServiceName = "strata-worker"
	tc.ServiceVersion = version
	tc.OTLPEndpoint = cfg.Otel.Endpoint
	if cfg.Otel.ServiceName != "" {
		tc.ServiceName = cfg.Otel.ServiceName
	}
	if cfg.Otel.SampleRatio > 0 {
		tc.SampleRate = cfg.Otel.SampleRatio
	}
	if tp, err := observability.InitTracing(ctx, tc); err != nil {
		log.Printf("tracing init failed, continuing without traces: %v", err)
	} else {
		graceful.Register(server.TracingShutdownHook(tp.Shutdown))
	}

	// Optional stores: activities that need a missing store fail on
	// their own, the worker itself still runs.
	var graphRepo graph.Repository
	if cfg.Graph.URI != "" {
		password := secrets.GetOrDefault(ctx, secrets.SecretGraphPassword, cfg.Graph.Password)
		repo, err := neo4j.NewNeo4j(ctx, cfg.Graph.URI, cfg.Graph.Username, password, cfg.Graph.Database)
		if err != nil {
			log.Fatalf("graph store: %v", err)
		}
		graphRepo = repo
		graceful.Health.RegisterCheck("graph", server.GraphHealthChecker(repo.Ping))
		graceful.Register(server.GraphShutdownHook(repo.Close))
	}

	var embedder *vector.Embedder
	if cfg.Vector.Host != "" {
		port := cfg.Vector.Port
		if port == 0 {
			port = 6334
		}
		collection := cfg.Vector.Collection
		if collection == "" {
			collection = "strata_modules"
		}
		apiKey := secrets.GetOrDefault(ctx, secrets.SecretVectorAPIKey, cfg.Vector.APIKey)
		repo, err := qdrant.NewQdrant(ctx, cfg.Vector.Host, port, collection, apiKey)
		if err != nil {
			log.Fatalf("vector store: %v", err)
		}
		embedder = vector.NewEmbedder(repo, 0)
		if err := repo.EnsureCollection(ctx, uint64(embedder.Dims())); err != nil {
			log.Fatalf("vector collection: %v", err)
		}
		graceful.Health.RegisterCheck("vector", server.VectorHealthChecker("qdrant", repo.Ping))
		graceful.Register(server.VectorShutdownHook(repo.Close))
	}

	audit, err := observability.NewAuditLogger(&observability.AuditConfig{
		Enabled:    true,
		OutputPath: "stderr",
	})
	if err != nil {
		log.Fatalf("audit logger: %v", err)
	}
	graceful.Register(server.AuditLoggerShutdownHook(audit.Close))

	temporalmod.SetDependencies(&temporalmod.Dependencies{
		Registry: registry,
		ScanConfig: scanner.Config{
			Excludes:    cfg.Scan.Exclude,
			Extensions:  cfg.Scan.Extensions,
			Concurrency: cfg.Scan.Concurrency,
		},
		AnalysisConfig: analysisCfg,
		Graph:          graphRepo,
		Vector:         embedder,
		Metrics:        observability.NewStrataMetrics(),
		Audit:          audit,
	})

	c, err := temporalclient.Dial(temporalclient.Options{
		HostPort:  cfg.Temporal.Host,
		Namespace: cfg.Temporal.Namespace,
	})
	if err != nil {
		log.Fatalf("temporal client: %v", err)
	}
	defer c.Close()

	taskQueue := cfg.Temporal.TaskQueue
	if taskQueue == "" {
		taskQueue = defaultTaskQueue
	}

	w, err := temporalmod.StartWorker(c, taskQueue)
	if err != nil {
		log.Fatalf("worker: %v", err)
	}
	graceful.Register(server.TemporalWorkerShutdownHook(w.Stop))
	graceful.Health.RegisterCheck("temporal", server.TemporalHealthChecker(func(ctx context.Context) error {
		_, err := c.CheckHealth(ctx, &temporalclient.CheckHealthRequest{})
		return err
	}))

	healthAddr := cfg.Worker.HealthAddr
	if healthAddr == "" {
		healthAddr = defaultHealthAddr
	}
	graceful.Start(healthAddr)

	fmt.Printf("Worker started on task queue: %s (health on %s)\n", taskQueue, healthAddr)
	graceful.Wait()
	fmt.Println("Worker stopped")
}
