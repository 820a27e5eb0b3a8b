package observability

import (
	"bytes"
	"errors"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"
)

var errTest = errors.New("test error")

func TestCounter(t *testing.T) {
	c := NewMetricsRegistry().NewCounter("test_counter", "Test counter", nil)

	c.Inc()
	c.Inc()
	c.Add(3.5)

	if c.Value() != 5.5 {
		t.Fatalf("expected 5.5, got %f", c.Value())
	}
}

func TestCounter_ConcurrentAdd(t *testing.T) {
	c := NewMetricsRegistry().NewCounter("test_counter", "Test counter", nil)

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 1000; j++ {
				c.Inc()
			}
		}()
	}
	wg.Wait()

	if c.Value() != 8000 {
		t.Fatalf("expected 8000, got %f", c.Value())
	}
}

func TestGauge(t *testing.T) {
	g := NewMetricsRegistry().NewGauge("test_gauge", "Test gauge", nil)

	g.Set(42)
	if g.Value() != 42 {
		t.Fatalf("expected 42, got %f", g.Value())
	}

	g.Inc()
	g.Dec()
	g.Add(-2)
	if g.Value() != 40 {
		t.Fatalf("expected 40, got %f", g.Value())
	}
}

func TestRegistry_RepeatNameReturnsSameMetric(t *testing.T) {
	r := NewMetricsRegistry()

	c1 := r.NewCounter("shared_total", "Shared", nil)
	c1.Inc()
	c2 := r.NewCounter("shared_total", "Shared", nil)
	c2.Inc()

	if c1 != c2 {
		t.Fatal("expected repeat registration to return the same counter")
	}
	if c1.Value() != 2 {
		t.Fatalf("expected 2, got %f", c1.Value())
	}

	if r.NewGauge("shared_gauge", "", nil) != r.NewGauge("shared_gauge", "", nil) {
		t.Fatal("expected repeat registration to return the same gauge")
	}
	if r.NewHistogram("shared_hist", "", nil, nil) != r.NewHistogram("shared_hist", "", nil, nil) {
		t.Fatal("expected repeat registration to return the same histogram")
	}
}

func TestHistogram_Observe(t *testing.T) {
	h := NewMetricsRegistry().NewHistogram("test_histogram", "Test histogram", nil, []float64{1, 5, 10})

	h.Observe(0.5)
	h.Observe(3)
	h.Observe(7)
	h.Observe(15)

	if h.count != 4 {
		t.Fatalf("expected count 4, got %d", h.count)
	}
	if h.sum != 25.5 {
		t.Fatalf("expected sum 25.5, got %f", h.sum)
	}
}

func TestHistogram_ObserveDuration(t *testing.T) {
	h := NewMetricsRegistry().NewHistogram("test_histogram", "Test histogram", nil, nil)

	h.ObserveDuration(time.Now().Add(-100 * time.Millisecond))

	if h.count != 1 {
		t.Fatalf("expected count 1, got %d", h.count)
	}
	if h.sum < 0.1 {
		t.Fatalf("expected sum >= 0.1, got %f", h.sum)
	}
}

func TestDefaultBuckets_Ascending(t *testing.T) {
	buckets := DefaultBuckets()
	if len(buckets) == 0 {
		t.Fatal("expected non-empty buckets")
	}
	for i := 1; i < len(buckets); i++ {
		if buckets[i] <= buckets[i-1] {
			t.Fatalf("expected ascending buckets, got %v", buckets)
		}
	}
}

func TestWritePrometheus_Exact(t *testing.T) {
	r := NewMetricsRegistry()
	r.NewCounter("b_total", "B counter", nil).Add(2)
	r.NewGauge("a_gauge", "A gauge", nil).Set(1.5)

	var buf bytes.Buffer
	r.WritePrometheus(&buf)

	want := "# HELP b_total B counter\n" +
		"# TYPE b_total counter\n" +
		"b_total 2\n" +
		"# HELP a_gauge A gauge\n" +
		"# TYPE a_gauge gauge\n" +
		"a_gauge 1.5\n"
	if buf.String() != want {
		t.Fatalf("unexpected exposition output:\n%s", buf.String())
	}
}

func TestWritePrometheus_SortedWithinFamily(t *testing.T) {
	r := NewMetricsRegistry()
	r.NewCounter("zeta_total", "Z", nil)
	r.NewCounter("alpha_total", "A", nil)

	var buf bytes.Buffer
	r.WritePrometheus(&buf)

	body := buf.String()
	if strings.Index(body, "alpha_total") > strings.Index(body, "zeta_total") {
		t.Fatalf("expected alpha_total before zeta_total:\n%s", body)
	}
}

func TestWritePrometheus_LabelsSorted(t *testing.T) {
	r := NewMetricsRegistry()
	r.NewCounter("http_requests", "HTTP requests", map[string]string{"path": "/api", "method": "POST"}).Inc()

	var buf bytes.Buffer
	r.WritePrometheus(&buf)

	if !strings.Contains(buf.String(), `http_requests{method="POST",path="/api"} 1`) {
		t.Fatalf("expected sorted labels, got:\n%s", buf.String())
	}
}

func TestWritePrometheus_Histogram(t *testing.T) {
	r := NewMetricsRegistry()
	h := r.NewHistogram("d_hist", "Duration", nil, []float64{1, 5})
	h.Observe(0.5)
	h.Observe(3)
	h.Observe(7)

	var buf bytes.Buffer
	r.WritePrometheus(&buf)

	want := "# HELP d_hist Duration\n" +
		"# TYPE d_hist histogram\n" +
		"d_hist_bucket{le=\"1\"} 1\n" +
		"d_hist_bucket{le=\"5\"} 2\n" +
		"d_hist_bucket{le=\"+Inf\"} 3\n" +
		"d_hist_sum 10.5\n" +
		"d_hist_count 3\n"
	if buf.String() != want {
		t.Fatalf("unexpected histogram output:\n%s", buf.String())
	}
}

func TestMetricsRegistry_Handler(t *testing.T) {
	r := NewMetricsRegistry()
	r.NewCounter("test_counter", "A test counter", nil).Inc()

	w := httptest.NewRecorder()
	r.Handler().ServeHTTP(w, httptest.NewRequest("GET", "/metrics", nil))

	if ct := w.Header().Get("Content-Type"); !strings.Contains(ct, "text/plain") {
		t.Fatalf("expected text/plain content type, got %s", ct)
	}
	if !strings.Contains(w.Body.String(), "test_counter 1") {
		t.Fatalf("expected counter sample, got:\n%s", w.Body.String())
	}
}

func TestFormatLabels_Empty(t *testing.T) {
	if formatLabels(nil) != "" {
		t.Fatalf("expected empty string for nil labels")
	}
	if formatLabels(map[string]string{}) != "" {
		t.Fatalf("expected empty string for empty labels")
	}
}

func TestFormatFloat(t *testing.T) {
	tests := []struct {
		input    float64
		expected string
	}{
		{0, "0"},
		{1, "1"},
		{42, "42"},
		{1.5, "1.5"},
		{0.005, "0.005"},
	}

	for _, tt := range tests {
		if got := formatFloat(tt.input); got != tt.expected {
			t.Errorf("formatFloat(%v) = %s, expected %s", tt.input, got, tt.expected)
		}
	}
}

// Strata metrics tests

func TestStrataMetrics_RecordScan(t *testing.T) {
	m := NewStrataMetrics()

	m.RecordScan(100*time.Millisecond, 500, nil)
	m.RecordScan(200*time.Millisecond, 300, nil)

	if m.ScansTotal.Value() != 2 {
		t.Fatalf("expected 2 scans, got %f", m.ScansTotal.Value())
	}
	if m.FilesScannedTotal.Value() != 800 {
		t.Fatalf("expected 800 files, got %f", m.FilesScannedTotal.Value())
	}
	if m.ScanErrorsTotal.Value() != 0 {
		t.Fatalf("expected 0 errors, got %f", m.ScanErrorsTotal.Value())
	}
}

func TestStrataMetrics_RecordScan_WithError(t *testing.T) {
	m := NewStrataMetrics()

	m.RecordScan(100*time.Millisecond, 0, errTest)

	if m.ScanErrorsTotal.Value() != 1 {
		t.Fatalf("expected 1 error, got %f", m.ScanErrorsTotal.Value())
	}
}

func TestStrataMetrics_RecordAnalysis(t *testing.T) {
	m := NewStrataMetrics()

	m.RecordAnalysis(5*time.Second, 120, 2, 4, 7)

	if m.AnalysesTotal.Value() != 1 {
		t.Fatalf("expected 1 analysis, got %f", m.AnalysesTotal.Value())
	}
	if m.ModulesGauge.Value() != 120 {
		t.Fatalf("expected 120 modules, got %f", m.ModulesGauge.Value())
	}
	if m.CyclesGauge.Value() != 2 {
		t.Fatalf("expected 2 cycles, got %f", m.CyclesGauge.Value())
	}
	if m.CouplingGauge.Value() != 4 {
		t.Fatalf("expected 4 coupling issues, got %f", m.CouplingGauge.Value())
	}
	if m.ViolationsGauge.Value() != 7 {
		t.Fatalf("expected 7 violations, got %f", m.ViolationsGauge.Value())
	}
}

func TestStrataMetrics_RecordGateRun(t *testing.T) {
	m := NewStrataMetrics()

	m.RecordGateRun(true)
	m.RecordGateRun(true)
	m.RecordGateRun(false)

	if m.GateRunsTotal.Value() != 3 {
		t.Fatalf("expected 3 runs, got %f", m.GateRunsTotal.Value())
	}
	if m.GateFailuresTotal.Value() != 1 {
		t.Fatalf("expected 1 failure, got %f", m.GateFailuresTotal.Value())
	}
}

func TestStrataMetrics_RecordGraphPush(t *testing.T) {
	m := NewStrataMetrics()

	m.RecordGraphPush(2*time.Second, nil)
	m.RecordGraphPush(3*time.Second, errTest)

	if m.GraphPushesTotal.Value() != 2 {
		t.Fatalf("expected 2 pushes, got %f", m.GraphPushesTotal.Value())
	}
	if m.GraphErrorsTotal.Value() != 1 {
		t.Fatalf("expected 1 error, got %f", m.GraphErrorsTotal.Value())
	}
}

func TestStrataMetrics_RecordRebuild(t *testing.T) {
	m := NewStrataMetrics()

	m.RecordRebuild(300 * time.Millisecond)

	if m.RebuildsTotal.Value() != 1 {
		t.Fatalf("expected 1 rebuild, got %f", m.RebuildsTotal.Value())
	}
	if m.RebuildDuration.count != 1 {
		t.Fatalf("expected 1 observation, got %d", m.RebuildDuration.count)
	}
}

func TestStrataMetrics_Handler(t *testing.T) {
	m := NewStrataMetrics()
	m.ScansTotal.Inc()

	w := httptest.NewRecorder()
	m.Handler().ServeHTTP(w, httptest.NewRequest("GET", "/metrics", nil))

	if !strings.Contains(w.Body.String(), "strata_scans_total") {
		t.Fatal("expected strata metrics in output")
	}
}

func TestGlobalMetrics_SameInstance(t *testing.T) {
	if Metrics() != Metrics() {
		t.Fatal("expected the global metrics instance to be stable")
	}
}
