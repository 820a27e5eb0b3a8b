package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/efebarandurmaz/strata/internal/config"
	"github.com/efebarandurmaz/strata/internal/dashboard"
	"github.com/efebarandurmaz/strata/internal/depgraph"
	"github.com/efebarandurmaz/strata/internal/graph/neo4j"
	"github.com/efebarandurmaz/strata/internal/lang"
	"github.com/efebarandurmaz/strata/internal/lang/javascript"
	"github.com/efebarandurmaz/strata/internal/lang/python"
	"github.com/efebarandurmaz/strata/internal/metrics"
	"github.com/efebarandurmaz/strata/internal/observability"
	"github.com/efebarandurmaz/strata/internal/qualitygate"
	"github.com/efebarandurmaz/strata/internal/report"
	"github.com/efebarandurmaz/strata/internal/scanner"
	"github.com/efebarandurmaz/strata/internal/secrets"
	"github.com/efebarandurmaz/strata/internal/server"
	"github.com/efebarandurmaz/strata/internal/snapshot"
	temporalmod "github.com/efebarandurmaz/strata/internal/temporal"
	"github.com/efebarandurmaz/strata/internal/tui"
	"github.com/efebarandurmaz/strata/internal/vector"
	"github.com/efebarandurmaz/strata/internal/vector/qdrant"
	"github.com/efebarandurmaz/strata/internal/watch"
	"github.com/spf13/cobra"
	temporalclient "go.temporal.io/sdk/client"
)

const (
	version          = "0.1.0"
	defaultTaskQueue = "strata-analysis"
)

func main() {
	var (
		configPath string
		verbose    bool
	)

	rootCmd := &cobra.Command{
		Use:          "strata",
		Short:        "Module dependency analysis for JavaScript and Python codebases",
		SilenceUsage: true,
	}
	rootCmd.PersistentFlags().StringVar(&configPath, "config", ".strata.yaml", "Config file path")
	rootCmd.PersistentFlags().BoolVar(&verbose, "verbose", false, "Enable debug logging")

	var (
		scanFormat string
		scanOut    string
		showGraph  bool
		showStats  bool
	)
	scanCmd := &cobra.Command{
		Use:   "scan <path>",
		Short: "Analyze a source tree and print the dependency report",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runScan(configPath, args[0], scanFormat, scanOut, showGraph, showStats, verbose)
		},
	}
	scanCmd.Flags().StringVar(&scanFormat, "format", "", "Output format: text, json, mermaid, dot")
	scanCmd.Flags().StringVar(&scanOut, "out", "", "Write the report to a file instead of stdout")
	scanCmd.Flags().BoolVar(&showGraph, "show-graph", false, "Append a mermaid graph to the text report")
	scanCmd.Flags().BoolVar(&showStats, "stats", false, "Print run statistics to stderr")

	var (
		gateFormat    string
		maxCycles     int
		maxCoupling   int
		maxViolations int
		maxHubs       int
		maxOrphans    int
	)
	gateCmd := &cobra.Command{
		Use:   "gate <path>",
		Short: "Analyze a source tree and evaluate quality gates",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			gateCfg := qualitygate.DefaultConfig()
			gateCfg.MaxCycles = maxCycles
			gateCfg.MaxCouplingIssues = maxCoupling
			gateCfg.MaxLayerViolations = maxViolations
			gateCfg.MaxHubs = maxHubs
			gateCfg.MaxOrphans = maxOrphans
			return runGate(configPath, args[0], gateFormat, gateCfg, verbose)
		},
	}
	gateCmd.Flags().StringVar(&gateFormat, "format", "text", "Output format: text, json")
	gateCmd.Flags().IntVar(&maxCycles, "max-cycles", 0, "Maximum circular dependencies (-1 disables the gate)")
	gateCmd.Flags().IntVar(&maxCoupling, "max-coupling", 0, "Maximum coupling issues (-1 disables the gate)")
	gateCmd.Flags().IntVar(&maxViolations, "max-violations", 0, "Maximum layer violations (-1 disables the gate)")
	gateCmd.Flags().IntVar(&maxHubs, "max-hubs", -1, "Maximum dependency hubs (-1 disables the gate)")
	gateCmd.Flags().IntVar(&maxOrphans, "max-orphans", -1, "Maximum orphan modules (-1 disables the gate)")

	// Baseline commands
	baselineCmd := &cobra.Command{
		Use:   "baseline",
		Short: "Save and compare analysis baselines",
	}

	var (
		baselineDirFlag string
		baselineName    string
		baselineDesc    string
		diffAgainst     string
	)
	baselineSaveCmd := &cobra.Command{
		Use:   "save <path>",
		Short: "Analyze a source tree and save the result as a baseline",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runBaselineSave(configPath, args[0], baselineDirFlag, baselineName, baselineDesc, verbose)
		},
	}
	baselineSaveCmd.Flags().StringVar(&baselineName, "name", "", "Name for the baseline")
	baselineSaveCmd.Flags().StringVar(&baselineDesc, "description", "", "Description for the baseline")

	baselineDiffCmd := &cobra.Command{
		Use:   "diff <path>",
		Short: "Compare the current tree against a saved baseline",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runBaselineDiff(configPath, args[0], baselineDirFlag, diffAgainst, verbose)
		},
	}
	baselineDiffCmd.Flags().StringVar(&diffAgainst, "against", "", "Baseline name or ID (default: most recent)")

	baselineListCmd := &cobra.Command{
		Use:   "list",
		Short: "List saved baselines",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runBaselineList(configPath, baselineDirFlag, verbose)
		},
	}

	baselineCmd.PersistentFlags().StringVar(&baselineDirFlag, "dir", "", "Baseline store directory (default: .strata/baselines)")
	baselineCmd.AddCommand(baselineSaveCmd, baselineDiffCmd, baselineListCmd)

	var pushProject string
	pushCmd := &cobra.Command{
		Use:   "push <path>",
		Short: "Analyze a source tree and persist the graph to Neo4j",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runPush(configPath, args[0], pushProject, verbose)
		},
	}
	pushCmd.Flags().StringVar(&pushProject, "project", "", "Project name (default: root directory name)")

	var (
		similarTop     int
		similarProject string
	)
	similarCmd := &cobra.Command{
		Use:   "similar <path> <module>",
		Short: "Find modules with a similar import profile",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runSimilar(configPath, args[0], args[1], similarTop, similarProject, verbose)
		},
	}
	similarCmd.Flags().IntVar(&similarTop, "top", 5, "Number of similar modules to return")
	similarCmd.Flags().StringVar(&similarProject, "project", "", "Project name (default: root directory name)")

	watchCmd := &cobra.Command{
		Use:   "watch <path>",
		Short: "Watch a source tree and re-analyze on changes",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runWatch(configPath, args[0], verbose)
		},
	}

	var serveAddr string
	serveCmd := &cobra.Command{
		Use:   "serve <path>",
		Short: "Serve the analysis dashboard and re-analyze on changes",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(configPath, args[0], serveAddr, verbose)
		},
	}
	serveCmd.Flags().StringVar(&serveAddr, "addr", "", "Listen address (default: :9090)")

	tuiCmd := &cobra.Command{
		Use:   "tui <path>",
		Short: "Browse analysis results interactively",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runTUI(configPath, args[0], verbose)
		},
	}

	var (
		wfProject     string
		wfPushGraph   bool
		wfIndexVector bool
		wfRunGates    bool
	)
	workflowCmd := &cobra.Command{
		Use:   "workflow <path>",
		Short: "Run the analysis as a Temporal workflow",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runWorkflow(configPath, args[0], wfProject, wfPushGraph, wfIndexVector, wfRunGates, verbose)
		},
	}
	workflowCmd.Flags().StringVar(&wfProject, "project", "", "Project name (default: root directory name)")
	workflowCmd.Flags().BoolVar(&wfPushGraph, "push-graph", false, "Persist the report to the graph database")
	workflowCmd.Flags().BoolVar(&wfIndexVector, "index-vector", false, "Index module profiles for similarity search")
	workflowCmd.Flags().BoolVar(&wfRunGates, "run-gates", true, "Evaluate quality gates on the report")

	versionCmd := &cobra.Command{
		Use:   "version",
		Short: "Print the strata version",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Printf("strata %s\n", version)
		},
	}

	rootCmd.AddCommand(scanCmd, gateCmd, baselineCmd, pushCmd, similarCmd, watchCmd, serveCmd, tuiCmd, workflowCmd, versionCmd)

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

// setup loads configuration and wires the process-wide logger.
func setup(configPath string, verbose bool) *config.Config {
	cfg, err := config.Load(configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Warning: config load failed (%v), using defaults\n", err)
		cfg = &config.Config{}
	}

	level := slog.LevelInfo
	switch cfg.Log.Level {
	case "debug":
		level = slog.LevelDebug
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	}
	if verbose {
		level = slog.LevelDebug
	}

	opts := &slog.HandlerOptions{Level: level}
	var handler slog.Handler
	if cfg.Log.Format == "json" {
		handler = slog.NewJSONHandler(os.Stderr, opts)
	} else {
		handler = slog.NewTextHandler(os.Stderr, opts)
	}
	slog.SetDefault(slog.New(handler))

	return cfg
}

// checkRoot rejects paths that are not existing directories.
func checkRoot(root string) error {
	info, err := os.Stat(root)
	if err != nil || !info.IsDir() {
		return fmt.Errorf("%s is not a directory", root)
	}
	return nil
}

// buildRegistry assembles the language registry, extended with any
// configured import patterns.
func buildRegistry(cfg *config.Config) (*lang.Registry, error) {
	js := javascript.New()
	py := python.New()

	for family, patterns := range cfg.Lang.Patterns {
		for _, expr := range patterns {
			var err error
			switch family {
			case "javascript":
				err = js.AddPattern(expr)
			case "python":
				err = py.AddPattern(expr)
			default:
				err = fmt.Errorf("unknown language family %q", family)
			}
			if err != nil {
				return nil, fmt.Errorf("lang pattern %q: %w", expr, err)
			}
		}
	}

	registry := lang.NewRegistry()
	registry.Register(js)
	registry.Register(py)
	return registry, nil
}

// analysisConfig maps file configuration onto analyzer tunables, keeping
// the defaults where the file is silent.
func analysisConfig(cfg *config.Config) depgraph.Config {
	ac := depgraph.DefaultConfig()
	if cfg.Analysis.HighCouplingThreshold > 0 {
		ac.HighCouplingThreshold = cfg.Analysis.HighCouplingThreshold
	}
	if cfg.Analysis.TotalCouplingThreshold > 0 {
		ac.TotalCouplingThreshold = cfg.Analysis.TotalCouplingThreshold
	}
	if len(cfg.Analysis.Layers) > 0 {
		rules := make([]depgraph.LayerRule, 0, len(cfg.Analysis.Layers))
		for _, r := range cfg.Analysis.Layers {
			rules = append(rules, depgraph.LayerRule{Pattern: r.Pattern, Layer: r.Layer})
		}
		ac.LayerRules = rules
	}
	if len(cfg.Analysis.AllowedLayers) > 0 {
		ac.AllowedLayers = cfg.Analysis.AllowedLayers
	}
	return ac
}

// analyze scans the tree and builds the dependency report, with spans
// around both phases.
func analyze(ctx context.Context, cfg *config.Config, root string) ([]lang.SourceFile, *depgraph.Report, error) {
	registry, err := buildRegistry(cfg)
	if err != nil {
		return nil, nil, err
	}

	s := scanner.New(scanner.Config{
		Root:        root,
		Excludes:    cfg.Scan.Exclude,
		Extensions:  cfg.Scan.Extensions,
		Concurrency: cfg.Scan.Concurrency,
	}, registry)

	scanCtx, scanSpan := observability.StartScanSpan(ctx, root)
	files, err := s.Scan(scanCtx)
	if err != nil {
		observability.RecordError(scanSpan, err)
		scanSpan.End()
		return nil, nil, err
	}
	observability.RecordScanResult(scanSpan, len(files))
	scanSpan.End()

	_, analyzeSpan := observability.StartAnalyzeSpan(ctx, len(files))
	analyzer := depgraph.NewAnalyzer(root, registry, analysisConfig(cfg))
	r := analyzer.Analyze(files)
	observability.RecordAnalyzeResult(analyzeSpan, len(r.Modules), len(r.Cycles), len(r.CouplingIssues), len(r.LayerViolations))
	analyzeSpan.End()

	return files, r, nil
}

// setupTracing starts the OTLP pipeline when an endpoint is configured.
// Without one the span helpers fall back to the global no-op tracer.
func setupTracing(ctx context.Context, cfg *config.Config) *observability.TracerProvider {
	tc := observability.DefaultTracingConfig()
	tc.OTLPEndpoint = cfg.Otel.Endpoint
	tc.ServiceVersion = version
	if cfg.Otel.ServiceName != "" {
		tc.ServiceName = cfg.Otel.ServiceName
	}
	if cfg.Otel.SampleRatio > 0 {
		tc.SampleRate = cfg.Otel.SampleRatio
	}

	tp, err := observability.InitTracing(ctx, tc)
	if err != nil {
		slog.Warn("tracing init failed, continuing without traces", "error", err)
		return nil
	}
	return tp
}

func shutdownTracing(tp *observability.TracerProvider) {
	if tp == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := tp.Shutdown(ctx); err != nil {
		slog.Warn("tracer shutdown failed", "error", err)
	}
}

// projectName resolves the graph/vector scope name for a root.
func projectName(root, flag string) (string, error) {
	if flag != "" {
		return flag, nil
	}
	abs, err := filepath.Abs(root)
	if err != nil {
		return "", fmt.Errorf("resolve root: %w", err)
	}
	return filepath.Base(abs), nil
}

func baselineDir(cfg *config.Config, flag string) string {
	if flag != "" {
		return flag
	}
	if cfg.Baseline.Dir != "" {
		return cfg.Baseline.Dir
	}
	return filepath.Join(".strata", "baselines")
}

// emit prints a report to stdout or writes it to a file.
func emit(out, path string) error {
	if !strings.HasSuffix(out, "\n") {
		out += "\n"
	}
	if path != "" {
		if err := os.WriteFile(path, []byte(out), 0o644); err != nil {
			return fmt.Errorf("write report: %w", err)
		}
		fmt.Printf("Report written to %s\n", path)
		return nil
	}
	fmt.Print(out)
	return nil
}

func runScan(configPath, root, format, outPath string, showGraph, showStats, verbose bool) error {
	cfg := setup(configPath, verbose)
	if err := checkRoot(root); err != nil {
		return err
	}

	ctx := context.Background()
	tp := setupTracing(ctx, cfg)
	defer shutdownTracing(tp)

	m := metrics.New()

	start := time.Now()
	files, r, err := analyze(ctx, cfg, root)
	if err != nil {
		return err
	}
	m.CollectScan(files)
	m.CollectAnalysis(r)
	m.AddStage("analyze", time.Since(start), 0)

	if format == "" {
		format = cfg.Report.Format
	}
	if format == "" {
		format = "text"
	}
	maxNodes := cfg.Report.MaxMermaidNodes
	if maxNodes <= 0 {
		maxNodes = report.MaxMermaidNodes
	}

	var out string
	switch format {
	case "text":
		out = report.FormatText(r)
		if showGraph {
			out += "\n" + report.FormatMermaid(r, maxNodes)
		}
	case "json":
		out, err = report.FormatJSON(r)
		if err != nil {
			return fmt.Errorf("format json: %w", err)
		}
	case "mermaid":
		out = report.FormatMermaid(r, maxNodes)
	case "dot":
		out = report.FormatDOT(r)
	default:
		return fmt.Errorf("unknown format %q", format)
	}

	if err := emit(out, outPath); err != nil {
		return err
	}

	m.Finish(nil)
	if showStats {
		m.PrintSummary(os.Stderr)
	}
	return nil
}

func runGate(configPath, root, format string, gateCfg *qualitygate.GateConfig, verbose bool) error {
	cfg := setup(configPath, verbose)
	if err := checkRoot(root); err != nil {
		return err
	}

	ctx := context.Background()
	tp := setupTracing(ctx, cfg)
	defer shutdownTracing(tp)

	_, r, err := analyze(ctx, cfg, root)
	if err != nil {
		return err
	}

	pipeline := qualitygate.BuildPipeline(gateCfg)

	_, span := observability.StartGateSpan(ctx, pipeline.Len())
	result := pipeline.Run(&qualitygate.EvalContext{Report: r})
	passed := result.Status == qualitygate.GatePassed
	observability.RecordGateResult(span, passed, result.FailedCount)
	span.End()

	switch format {
	case "json":
		data, err := json.MarshalIndent(result, "", "  ")
		if err != nil {
			return fmt.Errorf("format json: %w", err)
		}
		fmt.Println(string(data))
	default:
		fmt.Print(qualitygate.FormatReport(result))
	}

	if !passed {
		return fmt.Errorf("quality gates failed: %s", result.Summary)
	}
	return nil
}

func runBaselineSave(configPath, root, dir, name, description string, verbose bool) error {
	cfg := setup(configPath, verbose)
	if err := checkRoot(root); err != nil {
		return err
	}

	ctx := context.Background()
	_, r, err := analyze(ctx, cfg, root)
	if err != nil {
		return err
	}

	storeDir := baselineDir(cfg, dir)
	store, err := snapshot.NewStore(storeDir)
	if err != nil {
		return fmt.Errorf("open baseline store: %w", err)
	}

	b := snapshot.NewBaseline(root, r)
	b.Name = name
	b.Description = description

	if err := store.Save(b, r); err != nil {
		return fmt.Errorf("save baseline: %w", err)
	}

	if audit := newAudit(); audit != nil {
		audit.LogBaselineSave(ctx, b.Name, storeDir)
		audit.Close()
	}

	fmt.Printf("Baseline %s saved (%d modules, %d cycles, %d coupling, %d violations)\n",
		b.ID, b.Stats.Modules, b.Stats.Cycles, b.Stats.CouplingIssues, b.Stats.LayerViolations)
	return nil
}

func runBaselineDiff(configPath, root, dir, against string, verbose bool) error {
	cfg := setup(configPath, verbose)
	if err := checkRoot(root); err != nil {
		return err
	}

	ctx := context.Background()
	_, r, err := analyze(ctx, cfg, root)
	if err != nil {
		return err
	}

	store, err := snapshot.NewStore(baselineDir(cfg, dir))
	if err != nil {
		return fmt.Errorf("open baseline store: %w", err)
	}

	old, err := resolveBaseline(store, against)
	if err != nil {
		return err
	}

	diff := snapshot.Diff(old, snapshot.NewBaseline(root, r))
	fmt.Print(snapshot.FormatDiff(diff))

	regressions := diff.Regressions()
	if audit := newAudit(); audit != nil {
		audit.LogBaselineDiff(ctx, old.ID, len(regressions))
		audit.Close()
	}

	if len(regressions) > 0 {
		return fmt.Errorf("%d regressions against baseline %s", len(regressions), old.ID)
	}
	return nil
}

// resolveBaseline finds a baseline by name, then by ID, defaulting to
// the most recent one.
func resolveBaseline(store *snapshot.Store, ref string) (*snapshot.Baseline, error) {
	if ref == "" {
		summaries := store.List()
		if len(summaries) == 0 {
			return nil, fmt.Errorf("no baselines saved")
		}
		return store.Load(summaries[0].ID)
	}
	if b, err := store.FindByName(ref); err == nil {
		return b, nil
	}
	return store.Load(ref)
}

func runBaselineList(configPath, dir string, verbose bool) error {
	cfg := setup(configPath, verbose)

	store, err := snapshot.NewStore(baselineDir(cfg, dir))
	if err != nil {
		return fmt.Errorf("open baseline store: %w", err)
	}

	summaries := store.List()
	if len(summaries) == 0 {
		fmt.Println("No baselines saved")
		return nil
	}

	for _, s := range summaries {
		name := s.Name
		if name == "" {
			name = "-"
		}
		fmt.Printf("%-16s  %-20s  %s  %d modules, %d cycles, %d coupling, %d violations\n",
			s.ID, name, s.CreatedAt.Format(time.RFC3339),
			s.Stats.Modules, s.Stats.Cycles, s.Stats.CouplingIssues, s.Stats.LayerViolations)
	}
	return nil
}

func runPush(configPath, root, project string, verbose bool) error {
	cfg := setup(configPath, verbose)
	if err := checkRoot(root); err != nil {
		return err
	}
	if cfg.Graph.URI == "" {
		return fmt.Errorf("graph uri is not configured")
	}

	ctx := context.Background()
	tp := setupTracing(ctx, cfg)
	defer shutdownTracing(tp)

	_, r, err := analyze(ctx, cfg, root)
	if err != nil {
		return err
	}

	project, err = projectName(root, project)
	if err != nil {
		return err
	}

	password := secrets.GetOrDefault(ctx, secrets.SecretGraphPassword, cfg.Graph.Password)
	repo, err := neo4j.NewNeo4j(ctx, cfg.Graph.URI, cfg.Graph.Username, password, cfg.Graph.Database)
	if err != nil {
		return fmt.Errorf("connect graph store: %w", err)
	}
	defer repo.Close(ctx)

	pushCtx, span := observability.StartGraphPushSpan(ctx, len(r.Modules))
	start := time.Now()
	stats, err := repo.StoreReport(pushCtx, project, r)
	if err != nil {
		observability.RecordError(span, err)
		span.End()
		return fmt.Errorf("store report: %w", err)
	}
	observability.RecordGraphPushResult(span, stats.Nodes, stats.Edges)
	span.End()

	if audit := newAudit(); audit != nil {
		audit.LogGraphPush(ctx, stats.Nodes, stats.Edges, time.Since(start))
		audit.Close()
	}

	fmt.Printf("Pushed %d nodes, %d edges for project %s\n", stats.Nodes, stats.Edges, project)
	return nil
}

func runSimilar(configPath, root, module string, topK int, project string, verbose bool) error {
	cfg := setup(configPath, verbose)
	if err := checkRoot(root); err != nil {
		return err
	}

	ctx := context.Background()
	_, r, err := analyze(ctx, cfg, root)
	if err != nil {
		return err
	}

	m, ok := r.Modules[module]
	if !ok {
		return fmt.Errorf("module %s not found in analysis", module)
	}

	host := cfg.Vector.Host
	if host == "" {
		host = "localhost"
	}
	port := cfg.Vector.Port
	if port == 0 {
		port = 6334
	}
	collection := cfg.Vector.Collection
	if collection == "" {
		collection = "strata_modules"
	}
	apiKey := secrets.GetOrDefault(ctx, secrets.SecretVectorAPIKey, cfg.Vector.APIKey)

	repo, err := qdrant.NewQdrant(ctx, host, port, collection, apiKey)
	if err != nil {
		return fmt.Errorf("connect vector store: %w", err)
	}
	defer repo.Close()

	embedder := vector.NewEmbedder(repo, 0)
	if err := repo.EnsureCollection(ctx, uint64(embedder.Dims())); err != nil {
		return fmt.Errorf("ensure collection: %w", err)
	}

	project, err = projectName(root, project)
	if err != nil {
		return err
	}

	idxCtx, span := observability.StartVectorIndexSpan(ctx, len(r.Modules))
	indexed, err := embedder.IndexReport(idxCtx, project, r)
	if err != nil {
		observability.RecordError(span, err)
		span.End()
		return err
	}
	span.End()
	slog.Debug("indexed module profiles", "project", project, "count", indexed)

	results, err := embedder.SimilarModules(ctx, project, m, topK)
	if err != nil {
		return fmt.Errorf("similarity search: %w", err)
	}

	if len(results) == 0 {
		fmt.Printf("No modules similar to %s\n", module)
		return nil
	}

	fmt.Printf("Modules similar to %s:\n", module)
	for i, res := range results {
		fmt.Printf("  %d. %-48s %.3f\n", i+1, res.Metadata["module"], res.Score)
	}
	return nil
}

func runWatch(configPath, root string, verbose bool) error {
	cfg := setup(configPath, verbose)
	if err := checkRoot(root); err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	audit := newAudit()
	if audit != nil {
		defer audit.Close()
	}

	svc := watch.NewService(watch.ServiceConfig{
		Root: root,
		Build: func(ctx context.Context) ([]lang.SourceFile, *depgraph.Report, error) {
			return analyze(ctx, cfg, root)
		},
		OnRebuild: printDelta,
		Metrics:   observability.NewStrataMetrics(),
		Audit:     audit,
		Logger:    slog.Default(),
	})

	fmt.Printf("Watching %s (Ctrl+C to stop)\n", root)
	return svc.Run(ctx)
}

// printDelta reports one rebuild to the terminal.
func printDelta(r *depgraph.Report, delta watch.Delta, stale []string) {
	ts := time.Now().Format("15:04:05")
	for _, p := range delta.Added {
		fmt.Printf("[%s] + %s\n", ts, p)
	}
	for _, p := range delta.Changed {
		fmt.Printf("[%s] ~ %s\n", ts, p)
	}
	for _, p := range delta.Removed {
		fmt.Printf("[%s] - %s\n", ts, p)
	}
	fmt.Printf("[%s] %d modules, %d cycles, %d coupling, %d violations (%d stale)\n",
		ts, len(r.Modules), len(r.Cycles), len(r.CouplingIssues), len(r.LayerViolations), len(stale))
}

func runServe(configPath, root, addr string, verbose bool) error {
	cfg := setup(configPath, verbose)
	if err := checkRoot(root); err != nil {
		return err
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	tp := setupTracing(ctx, cfg)
	strataMetrics := observability.NewStrataMetrics()
	audit := newAudit()

	if addr == "" {
		addr = cfg.Dashboard.ListenAddr
	}
	dashCfg := dashboard.DefaultConfig()
	if addr != "" {
		dashCfg.ListenAddr = addr
	}
	dashCfg.AuthToken = secrets.GetOrDefault(ctx, secrets.SecretDashboardToken, "")
	dashCfg.Metrics = strataMetrics.Handler()
	dash := dashboard.New(dashCfg)

	// The prime pass reaches this callback too, as an all-added delta.
	first := true
	onRebuild := func(r *depgraph.Report, delta watch.Delta, stale []string) {
		trigger := dashboard.TriggerRebuild
		if first {
			trigger = dashboard.TriggerScan
			first = false
		}
		run := dash.Emitter.RunStarted(root, trigger)
		dash.Emitter.RunCompleted(run.ID, r, len(delta.Paths()))
	}

	svc := watch.NewService(watch.ServiceConfig{
		Root: root,
		Build: func(ctx context.Context) ([]lang.SourceFile, *depgraph.Report, error) {
			return analyze(ctx, cfg, root)
		},
		OnRebuild: onRebuild,
		Metrics:   strataMetrics,
		Audit:     audit,
		Logger:    slog.Default(),
	})

	shutdown := server.NewShutdownHandler(server.DefaultShutdownConfig())
	shutdown.Register(
		server.HTTPServerShutdownHook("dashboard", dash.Stop),
		server.WatcherShutdownHook(svc.Stop),
	)
	if tp != nil {
		shutdown.Register(server.TracingShutdownHook(tp.Shutdown))
	}
	if audit != nil {
		shutdown.Register(server.AuditLoggerShutdownHook(audit.Close))
	}
	shutdown.Start()

	go func() {
		if err := dash.Start(); err != nil {
			slog.Error("dashboard server failed", "error", err)
			shutdown.Shutdown()
		}
	}()
	go func() {
		if err := svc.Run(ctx); err != nil {
			slog.Error("watch service failed", "error", err)
			shutdown.Shutdown()
		}
	}()

	fmt.Printf("Dashboard listening on %s\n", dashCfg.ListenAddr)
	shutdown.Wait()
	return nil
}

func runTUI(configPath, root string, verbose bool) error {
	cfg := setup(configPath, verbose)
	if err := checkRoot(root); err != nil {
		return err
	}

	_, r, err := analyze(context.Background(), cfg, root)
	if err != nil {
		return err
	}

	return tui.Browse(root, r, analysisConfig(cfg))
}

func runWorkflow(configPath, root, project string, pushGraph, indexVector, runGates, verbose bool) error {
	cfg := setup(configPath, verbose)
	if err := checkRoot(root); err != nil {
		return err
	}

	ctx := context.Background()

	taskQueue := cfg.Temporal.TaskQueue
	if taskQueue == "" {
		taskQueue = defaultTaskQueue
	}

	c, err := temporalclient.Dial(temporalclient.Options{
		HostPort:  cfg.Temporal.Host,
		Namespace: cfg.Temporal.Namespace,
	})
	if err != nil {
		return fmt.Errorf("temporal client: %w", err)
	}
	defer c.Close()

	// The workflow runs on the worker's filesystem, so hand it an
	// absolute path.
	abs, err := filepath.Abs(root)
	if err != nil {
		return fmt.Errorf("resolve root: %w", err)
	}

	out, err := temporalmod.ExecuteAnalysis(ctx, c, taskQueue, temporalmod.AnalysisInput{
		Root:        abs,
		Project:     project,
		PushGraph:   pushGraph,
		IndexVector: indexVector,
		RunGates:    runGates,
	})
	if err != nil {
		return fmt.Errorf("execute workflow: %w", err)
	}

	fmt.Printf("Workflow %s completed\n", out.WorkflowID)
	fmt.Printf("  Files:      %d\n", out.FileCount)
	fmt.Printf("  Modules:    %d\n", out.ModuleCount)
	fmt.Printf("  Cycles:     %d\n", out.CycleCount)
	fmt.Printf("  Coupling:   %d\n", out.CouplingCount)
	fmt.Printf("  Violations: %d\n", out.ViolationCount)
	if pushGraph {
		fmt.Printf("  Graph push: %d nodes, %d edges\n", out.GraphNodes, out.GraphEdges)
	}
	if indexVector {
		fmt.Printf("  Indexed:    %d module profiles\n", out.IndexedModules)
	}

	if runGates && !out.GatesPassed {
		for _, f := range out.GateFailures {
			fmt.Printf("  gate failure: %s\n", f)
		}
		return fmt.Errorf("quality gates failed")
	}
	return nil
}

// newAudit builds a stderr audit logger so stdout stays parseable. A
// setup failure downgrades to no auditing rather than blocking the run.
func newAudit() *observability.AuditLogger {
	audit, err := observability.NewAuditLogger(&observability.AuditConfig{
		Enabled:    true,
		OutputPath: "stderr",
	})
	if err != nil {
		slog.Warn("audit logger unavailable", "error", err)
		return nil
	}
	return audit
}
