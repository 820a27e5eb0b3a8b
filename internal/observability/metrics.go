package observability

import (
	"fmt"
	"io"
	"math"
	"net/http"
	"sort"
	"strconv"
	"sync"
	"sync/atomic"
	"time"
)

// MetricsRegistry holds all registered metrics and renders them in
// Prometheus text exposition format. Output is sorted by metric name so
// consecutive scrapes diff cleanly.
type MetricsRegistry struct {
	mu       sync.RWMutex
	counters map[string]*Counter
	gauges   map[string]*Gauge
	histos   map[string]*Histogram
}

// NewMetricsRegistry creates an empty registry.
func NewMetricsRegistry() *MetricsRegistry {
	return &MetricsRegistry{
		counters: make(map[string]*Counter),
		gauges:   make(map[string]*Gauge),
		histos:   make(map[string]*Histogram),
	}
}

// Counter is a monotonically increasing metric. The value lives in a
// uint64 as float bits so Add never takes a lock.
type Counter struct {
	name   string
	help   string
	labels map[string]string
	bits   atomic.Uint64
}

// Gauge is a metric that can go up or down.
type Gauge struct {
	name   string
	help   string
	labels map[string]string
	bits   atomic.Uint64
}

// Histogram tracks the distribution of observed values across fixed
// buckets. Bucket counts are per-bucket here; the cumulative form
// Prometheus expects is computed at write time.
type Histogram struct {
	name    string
	help    string
	labels  map[string]string
	buckets []float64
	mu      sync.Mutex
	counts  []uint64
	sum     float64
	count   uint64
}

// NewCounter registers a counter. Registering a name twice returns the
// counter already held, so packages can share metrics without plumbing.
func (r *MetricsRegistry) NewCounter(name, help string, labels map[string]string) *Counter {
	r.mu.Lock()
	defer r.mu.Unlock()

	if c, ok := r.counters[name]; ok {
		return c
	}
	c := &Counter{name: name, help: help, labels: labels}
	r.counters[name] = c
	return c
}

// NewGauge registers a gauge, returning the existing one on a repeat name.
func (r *MetricsRegistry) NewGauge(name, help string, labels map[string]string) *Gauge {
	r.mu.Lock()
	defer r.mu.Unlock()

	if g, ok := r.gauges[name]; ok {
		return g
	}
	g := &Gauge{name: name, help: help, labels: labels}
	r.gauges[name] = g
	return g
}

// NewHistogram registers a histogram. Nil buckets get DefaultBuckets.
func (r *MetricsRegistry) NewHistogram(name, help string, labels map[string]string, buckets []float64) *Histogram {
	r.mu.Lock()
	defer r.mu.Unlock()

	if h, ok := r.histos[name]; ok {
		return h
	}
	if buckets == nil {
		buckets = DefaultBuckets()
	}
	h := &Histogram{
		name:    name,
		help:    help,
		labels:  labels,
		buckets: buckets,
		counts:  make([]uint64, len(buckets)),
	}
	r.histos[name] = h
	return h
}

// DefaultBuckets returns latency buckets from 1ms to 10s.
func DefaultBuckets() []float64 {
	return []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10}
}

// Inc increments the counter by 1.
func (c *Counter) Inc() {
	c.Add(1)
}

// Add adds v to the counter.
func (c *Counter) Add(v float64) {
	for {
		old := c.bits.Load()
		next := math.Float64bits(math.Float64frombits(old) + v)
		if c.bits.CompareAndSwap(old, next) {
			return
		}
	}
}

// Value returns the current counter value.
func (c *Counter) Value() float64 {
	return math.Float64frombits(c.bits.Load())
}

// Set sets the gauge.
func (g *Gauge) Set(v float64) {
	g.bits.Store(math.Float64bits(v))
}

// Inc increments the gauge by 1.
func (g *Gauge) Inc() {
	g.Add(1)
}

// Dec decrements the gauge by 1.
func (g *Gauge) Dec() {
	g.Add(-1)
}

// Add adds v to the gauge.
func (g *Gauge) Add(v float64) {
	for {
		old := g.bits.Load()
		next := math.Float64bits(math.Float64frombits(old) + v)
		if g.bits.CompareAndSwap(old, next) {
			return
		}
	}
}

// Value returns the current gauge value.
func (g *Gauge) Value() float64 {
	return math.Float64frombits(g.bits.Load())
}

// Observe records one value.
func (h *Histogram) Observe(v float64) {
	h.mu.Lock()
	defer h.mu.Unlock()

	h.sum += v
	h.count++
	for i, bound := range h.buckets {
		if v <= bound {
			h.counts[i]++
		}
	}
}

// ObserveDuration records the time elapsed since start, in seconds.
func (h *Histogram) ObserveDuration(start time.Time) {
	h.Observe(time.Since(start).Seconds())
}

// Handler serves the registry in Prometheus text format.
func (r *MetricsRegistry) Handler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
		w.Header().Set("Content-Type", "text/plain; version=0.0.4; charset=utf-8")
		r.WritePrometheus(w)
	})
}

// WritePrometheus writes every metric, each family sorted by name.
func (r *MetricsRegistry) WritePrometheus(w io.Writer) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	for _, name := range sortedKeys(r.counters) {
		c := r.counters[name]
		writeSample(w, c.name, "counter", c.help, c.labels, c.Value())
	}
	for _, name := range sortedKeys(r.gauges) {
		g := r.gauges[name]
		writeSample(w, g.name, "gauge", g.help, g.labels, g.Value())
	}
	for _, name := range sortedKeys(r.histos) {
		r.histos[name].write(w)
	}
}

func sortedKeys[M ~map[string]V, V any](m M) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

func writeSample(w io.Writer, name, metricType, help string, labels map[string]string, value float64) {
	fmt.Fprintf(w, "# HELP %s %s\n# TYPE %s %s\n", name, help, name, metricType)
	fmt.Fprintf(w, "%s%s %s\n", name, formatLabels(labels), formatFloat(value))
}

func (h *Histogram) write(w io.Writer) {
	h.mu.Lock()
	defer h.mu.Unlock()

	fmt.Fprintf(w, "# HELP %s %s\n# TYPE %s histogram\n", h.name, h.help, h.name)

	var cumulative uint64
	for i, bound := range h.buckets {
		cumulative += h.counts[i]
		fmt.Fprintf(w, "%s_bucket%s %d\n", h.name, formatLabels(withLabel(h.labels, "le", formatFloat(bound))), cumulative)
	}
	fmt.Fprintf(w, "%s_bucket%s %d\n", h.name, formatLabels(withLabel(h.labels, "le", "+Inf")), h.count)
	fmt.Fprintf(w, "%s_sum%s %s\n", h.name, formatLabels(h.labels), formatFloat(h.sum))
	fmt.Fprintf(w, "%s_count%s %d\n", h.name, formatLabels(h.labels), h.count)
}

// formatLabels renders {k="v",...} with keys sorted, or "" when empty.
func formatLabels(labels map[string]string) string {
	if len(labels) == 0 {
		return ""
	}
	out := "{"
	for i, k := range sortedKeys(labels) {
		if i > 0 {
			out += ","
		}
		out += k + "=" + strconv.Quote(labels[k])
	}
	return out + "}"
}

func withLabel(labels map[string]string, key, value string) map[string]string {
	out := make(map[string]string, len(labels)+1)
	for k, v := range labels {
		out[k] = v
	}
	out[key] = value
	return out
}

func formatFloat(v float64) string {
	return strconv.FormatFloat(v, 'g', -1, 64)
}

// Metrics for strata's pipeline stages.

// StrataMetrics contains all strata-specific metrics.
type StrataMetrics struct {
	Registry *MetricsRegistry

	// Scan metrics
	ScansTotal        *Counter
	ScanDuration      *Histogram
	FilesScannedTotal *Counter
	ScanErrorsTotal   *Counter

	// Analysis metrics
	AnalysesTotal   *Counter
	AnalyzeDuration *Histogram
	ModulesGauge    *Gauge
	CyclesGauge     *Gauge
	CouplingGauge   *Gauge
	ViolationsGauge *Gauge

	// Gate metrics
	GateRunsTotal     *Counter
	GateFailuresTotal *Counter

	// Graph store metrics
	GraphPushesTotal  *Counter
	GraphPushDuration *Histogram
	GraphErrorsTotal  *Counter

	// Watch metrics
	WatchEventsTotal *Counter
	RebuildsTotal    *Counter
	RebuildDuration  *Histogram

	// Active watchers gauge
	ActiveWatchers *Gauge
}

// NewStrataMetrics creates strata-specific metrics on a fresh registry.
func NewStrataMetrics() *StrataMetrics {
	r := NewMetricsRegistry()

	return &StrataMetrics{
		Registry: r,

		// Scan
		ScansTotal:        r.NewCounter("strata_scans_total", "Total source tree scans", nil),
		ScanDuration:      r.NewHistogram("strata_scan_duration_seconds", "Scan duration", nil, nil),
		FilesScannedTotal: r.NewCounter("strata_files_scanned_total", "Total files loaded by scans", nil),
		ScanErrorsTotal:   r.NewCounter("strata_scan_errors_total", "Total scan errors", nil),

		// Analysis
		AnalysesTotal:   r.NewCounter("strata_analyses_total", "Total dependency analyses", nil),
		AnalyzeDuration: r.NewHistogram("strata_analyze_duration_seconds", "Analysis duration", nil, nil),
		ModulesGauge:    r.NewGauge("strata_modules", "Modules in the latest analysis", nil),
		CyclesGauge:     r.NewGauge("strata_cycles", "Circular dependencies in the latest analysis", nil),
		CouplingGauge:   r.NewGauge("strata_coupling_issues", "Coupling issues in the latest analysis", nil),
		ViolationsGauge: r.NewGauge("strata_layer_violations", "Layer violations in the latest analysis", nil),

		// Gates
		GateRunsTotal:     r.NewCounter("strata_gate_runs_total", "Total quality gate runs", nil),
		GateFailuresTotal: r.NewCounter("strata_gate_failures_total", "Total failed quality gate runs", nil),

		// Graph store
		GraphPushesTotal:  r.NewCounter("strata_graph_pushes_total", "Total graph store pushes", nil),
		GraphPushDuration: r.NewHistogram("strata_graph_push_duration_seconds", "Graph push duration", nil, nil),
		GraphErrorsTotal:  r.NewCounter("strata_graph_errors_total", "Total graph store errors", nil),

		// Watch
		WatchEventsTotal: r.NewCounter("strata_watch_events_total", "Total filesystem events seen in watch mode", nil),
		RebuildsTotal:    r.NewCounter("strata_rebuilds_total", "Total watch-mode re-analyses", nil),
		RebuildDuration:  r.NewHistogram("strata_rebuild_duration_seconds", "Watch-mode re-analysis duration", nil, nil),

		// Watchers
		ActiveWatchers: r.NewGauge("strata_active_watchers", "Number of active watch sessions", nil),
	}
}

// Handler returns an HTTP handler for the metrics endpoint.
func (m *StrataMetrics) Handler() http.Handler {
	return m.Registry.Handler()
}

// RecordScan records a source tree scan.
func (m *StrataMetrics) RecordScan(duration time.Duration, fileCount int, err error) {
	m.ScansTotal.Inc()
	m.ScanDuration.Observe(duration.Seconds())
	m.FilesScannedTotal.Add(float64(fileCount))
	if err != nil {
		m.ScanErrorsTotal.Inc()
	}
}

// RecordAnalysis records a dependency analysis pass.
func (m *StrataMetrics) RecordAnalysis(duration time.Duration, moduleCount, cycleCount, couplingCount, violationCount int) {
	m.AnalysesTotal.Inc()
	m.AnalyzeDuration.Observe(duration.Seconds())
	m.ModulesGauge.Set(float64(moduleCount))
	m.CyclesGauge.Set(float64(cycleCount))
	m.CouplingGauge.Set(float64(couplingCount))
	m.ViolationsGauge.Set(float64(violationCount))
}

// RecordGateRun records a quality gate run.
func (m *StrataMetrics) RecordGateRun(passed bool) {
	m.GateRunsTotal.Inc()
	if !passed {
		m.GateFailuresTotal.Inc()
	}
}

// RecordGraphPush records a graph store push.
func (m *StrataMetrics) RecordGraphPush(duration time.Duration, err error) {
	m.GraphPushesTotal.Inc()
	m.GraphPushDuration.Observe(duration.Seconds())
	if err != nil {
		m.GraphErrorsTotal.Inc()
	}
}

// RecordRebuild records a watch-mode re-analysis.
func (m *StrataMetrics) RecordRebuild(duration time.Duration) {
	m.RebuildsTotal.Inc()
	m.RebuildDuration.Observe(duration.Seconds())
}

// Global metrics instance
var globalMetrics *StrataMetrics
var metricsOnce sync.Once

// Metrics returns the global metrics instance.
func Metrics() *StrataMetrics {
	metricsOnce.Do(func() {
		globalMetrics = NewStrataMetrics()
	})
	return globalMetrics
}
