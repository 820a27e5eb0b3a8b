// Package server provides the operational HTTP surface shared by strata's
// long-running processes: health probes and coordinated shutdown.
package server

import (
	"context"
	"encoding/json"
	"net/http"
	"os"
	"sort"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"
)

// HealthStatus represents the health state of a component.
type HealthStatus string

const (
	HealthStatusHealthy   HealthStatus = "healthy"
	HealthStatusDegraded  HealthStatus = "degraded"
	HealthStatusUnhealthy HealthStatus = "unhealthy"
)

// rank orders statuses from best to worst so aggregation can take a max.
func (s HealthStatus) rank() int {
	switch s {
	case HealthStatusUnhealthy:
		return 2
	case HealthStatusDegraded:
		return 1
	default:
		return 0
	}
}

func worse(a, b HealthStatus) HealthStatus {
	if b.rank() > a.rank() {
		return b
	}
	return a
}

// HealthCheck is the outcome of probing a single dependency.
type HealthCheck struct {
	Name    string            `json:"name"`
	Status  HealthStatus      `json:"status"`
	Message string            `json:"message,omitempty"`
	Details map[string]string `json:"details,omitempty"`
}

// HealthResponse is the payload served by the health endpoints.
type HealthResponse struct {
	Status    HealthStatus  `json:"status"`
	Timestamp time.Time     `json:"timestamp"`
	Version   string        `json:"version,omitempty"`
	Checks    []HealthCheck `json:"checks,omitempty"`
}

// HealthChecker probes one dependency. The Name field is filled in by the
// server from the registration name.
type HealthChecker func(ctx context.Context) HealthCheck

// checkTimeout bounds a full /health sweep. Checks run concurrently, so
// one slow backend costs the whole sweep at most this much.
const checkTimeout = 5 * time.Second

// HealthServer serves liveness, readiness and dependency health over HTTP.
// Dependency checks run concurrently on each /health request and are
// reported in name order, so the payload is stable across polls.
type HealthServer struct {
	mu       sync.RWMutex
	checks   map[string]HealthChecker
	version  string
	ready    bool
	live     bool
	stop     chan struct{}
	stopOnce sync.Once
}

// HealthConfig configures the health server.
type HealthConfig struct {
	Version string
	Addr    string // listen address, default ":8080"
}

// NewHealthServer creates a health server. It starts live but not ready;
// callers flip readiness once their backends are up.
func NewHealthServer(config *HealthConfig) *HealthServer {
	s := &HealthServer{
		checks: make(map[string]HealthChecker),
		live:   true,
		stop:   make(chan struct{}),
	}
	if config != nil {
		s.version = config.Version
	}
	return s
}

// RegisterCheck adds a dependency check under the given name. Registering
// the same name again replaces the previous check.
func (s *HealthServer) RegisterCheck(name string, checker HealthChecker) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.checks[name] = checker
}

// SetReady marks the server as ready to accept traffic.
func (s *HealthServer) SetReady(ready bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.ready = ready
}

// SetLive marks the server as live (or not).
func (s *HealthServer) SetLive(live bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.live = live
}

func (s *HealthServer) isReady() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.ready
}

func (s *HealthServer) isLive() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.live
}

// Handler returns the mux for all probe endpoints. The *z paths are
// aliases for Kubernetes probe conventions.
func (s *HealthServer) Handler() http.Handler {
	mux := http.NewServeMux()
	for _, path := range []string{"/health", "/healthz"} {
		mux.HandleFunc(path, s.handleHealth)
	}
	for _, path := range []string{"/ready", "/readyz"} {
		mux.HandleFunc(path, s.probeHandler(s.isReady))
	}
	for _, path := range []string{"/live", "/livez"} {
		mux.HandleFunc(path, s.probeHandler(s.isLive))
	}
	return mux
}

// ListenAndServe starts the probe listener and blocks until Shutdown.
func (s *HealthServer) ListenAndServe(addr string) error {
	if addr == "" {
		addr = ":8080"
	}

	srv := &http.Server{
		Addr:         addr,
		Handler:      s.Handler(),
		ReadTimeout:  5 * time.Second,
		WriteTimeout: checkTimeout + time.Second,
	}

	go func() {
		<-s.stop
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		srv.Shutdown(ctx)
	}()

	return srv.ListenAndServe()
}

// Shutdown stops the probe listener. Safe to call more than once.
func (s *HealthServer) Shutdown() {
	s.stopOnce.Do(func() {
		close(s.stop)
	})
}

// handleHealth runs every registered check and aggregates the worst
// status. Unhealthy maps to 503 so load balancers drop the instance.
func (s *HealthServer) handleHealth(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), checkTimeout)
	defer cancel()

	s.mu.RLock()
	names := make([]string, 0, len(s.checks))
	for name := range s.checks {
		names = append(names, name)
	}
	sort.Strings(names)
	checks := make([]HealthChecker, len(names))
	for i, name := range names {
		checks[i] = s.checks[name]
	}
	version := s.version
	s.mu.RUnlock()

	results := make([]HealthCheck, len(names))
	g, gctx := errgroup.WithContext(ctx)
	for i := range checks {
		g.Go(func() error {
			check := checks[i](gctx)
			check.Name = names[i]
			results[i] = check
			return nil
		})
	}
	g.Wait()

	resp := HealthResponse{
		Status:    HealthStatusHealthy,
		Timestamp: time.Now().UTC(),
		Version:   version,
		Checks:    results,
	}
	for _, check := range results {
		resp.Status = worse(resp.Status, check.Status)
	}

	code := http.StatusOK
	if resp.Status == HealthStatusUnhealthy {
		code = http.StatusServiceUnavailable
	}
	s.writeJSON(w, code, resp)
}

// probeHandler serves a boolean probe. Probes skip the dependency checks;
// they answer only for this process.
func (s *HealthServer) probeHandler(state func() bool) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		resp := HealthResponse{
			Status:    HealthStatusHealthy,
			Timestamp: time.Now().UTC(),
		}
		code := http.StatusOK
		if !state() {
			resp.Status = HealthStatusUnhealthy
			code = http.StatusServiceUnavailable
		}
		s.writeJSON(w, code, resp)
	}
}

func (s *HealthServer) writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

// Checkers for strata's backends.

// GraphHealthChecker probes graph database connectivity. The graph store
// is a hard dependency for push and query commands, so failure is
// unhealthy.
func GraphHealthChecker(checkFn func(ctx context.Context) error) HealthChecker {
	return func(ctx context.Context) HealthCheck {
		if err := checkFn(ctx); err != nil {
			return HealthCheck{
				Status:  HealthStatusUnhealthy,
				Message: "Graph database connection failed: " + err.Error(),
			}
		}
		return HealthCheck{
			Status:  HealthStatusHealthy,
			Message: "Graph database connection OK",
		}
	}
}

// VectorHealthChecker probes the vector store. A failing vector store
// degrades the service rather than killing it; similarity search is an
// optional feature.
func VectorHealthChecker(backend string, checkFn func(ctx context.Context) error) HealthChecker {
	return func(ctx context.Context) HealthCheck {
		details := map[string]string{"backend": backend}
		if checkFn == nil {
			return HealthCheck{
				Status:  HealthStatusHealthy,
				Message: "Vector store configured: " + backend,
				Details: details,
			}
		}
		if err := checkFn(ctx); err != nil {
			return HealthCheck{
				Status:  HealthStatusDegraded,
				Message: "Vector store degraded: " + err.Error(),
				Details: details,
			}
		}
		return HealthCheck{
			Status:  HealthStatusHealthy,
			Message: "Vector store OK",
			Details: details,
		}
	}
}

// TemporalHealthChecker probes Temporal connectivity. A worker that
// cannot reach its cluster serves no purpose, so failure is unhealthy.
func TemporalHealthChecker(checkFn func(ctx context.Context) error) HealthChecker {
	return func(ctx context.Context) HealthCheck {
		if err := checkFn(ctx); err != nil {
			return HealthCheck{
				Status:  HealthStatusUnhealthy,
				Message: "Temporal connection failed: " + err.Error(),
			}
		}
		return HealthCheck{
			Status:  HealthStatusHealthy,
			Message: "Temporal connection OK",
		}
	}
}

// BaselineStoreHealthChecker checks the baseline directory. A missing
// directory is only degraded; no baseline has been saved yet.
func BaselineStoreHealthChecker(dir string) HealthChecker {
	return func(ctx context.Context) HealthCheck {
		details := map[string]string{"dir": dir}
		info, err := os.Stat(dir)
		switch {
		case os.IsNotExist(err):
			return HealthCheck{
				Status:  HealthStatusDegraded,
				Message: "Baseline store not initialized",
				Details: details,
			}
		case err != nil:
			return HealthCheck{
				Status:  HealthStatusUnhealthy,
				Message: "Baseline store inaccessible: " + err.Error(),
				Details: details,
			}
		case !info.IsDir():
			return HealthCheck{
				Status:  HealthStatusUnhealthy,
				Message: "Baseline store path is not a directory",
				Details: details,
			}
		}
		return HealthCheck{
			Status:  HealthStatusHealthy,
			Message: "Baseline store OK",
			Details: details,
		}
	}
}
