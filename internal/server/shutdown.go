package server

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"sort"
	"sync"
	"syscall"
	"time"
)

// ShutdownHook is one step of teardown. Lower priorities run first; hooks
// with equal priority run in registration order.
type ShutdownHook struct {
	Name     string
	Priority int
	Fn       func(ctx context.Context) error
}

// ShutdownConfig configures the shutdown handler.
type ShutdownConfig struct {
	// Timeout bounds the whole hook sequence (default: 30s).
	Timeout time.Duration
	// Signals to listen for (default: SIGTERM, SIGINT).
	Signals []os.Signal
}

// DefaultShutdownConfig returns default configuration.
func DefaultShutdownConfig() *ShutdownConfig {
	return &ShutdownConfig{
		Timeout: 30 * time.Second,
		Signals: []os.Signal{syscall.SIGTERM, syscall.SIGINT},
	}
}

// ShutdownHandler runs registered hooks exactly once, on the first signal
// or Shutdown call, then closes Done.
type ShutdownHandler struct {
	mu      sync.Mutex
	hooks   []ShutdownHook
	timeout time.Duration
	signals []os.Signal
	started bool

	trigger     chan struct{}
	triggerOnce sync.Once
	done        chan struct{}
}

// NewShutdownHandler creates a shutdown handler.
func NewShutdownHandler(config *ShutdownConfig) *ShutdownHandler {
	if config == nil {
		config = DefaultShutdownConfig()
	}
	return &ShutdownHandler{
		timeout: config.Timeout,
		signals: config.Signals,
		trigger: make(chan struct{}),
		done:    make(chan struct{}),
	}
}

// Register adds hooks. Safe to call until teardown starts.
func (s *ShutdownHandler) Register(hooks ...ShutdownHook) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.hooks = append(s.hooks, hooks...)
}

// Start begins listening for the configured signals. The first signal or
// Shutdown call runs the hooks; anything after that is ignored.
func (s *ShutdownHandler) Start() {
	s.mu.Lock()
	if s.started {
		s.mu.Unlock()
		return
	}
	s.started = true
	s.mu.Unlock()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, s.signals...)

	go func() {
		defer signal.Stop(sigCh)
		var reason string
		select {
		case sig := <-sigCh:
			reason = sig.String()
			// Close the trigger so ShutdownCh watchers fire on signals too.
			s.triggerOnce.Do(func() {
				close(s.trigger)
			})
		case <-s.trigger:
			reason = "requested"
		}
		s.run(reason)
	}()
}

// Shutdown triggers teardown without waiting for a signal.
func (s *ShutdownHandler) Shutdown() {
	s.triggerOnce.Do(func() {
		close(s.trigger)
	})
}

// Wait blocks until every hook has run.
func (s *ShutdownHandler) Wait() {
	<-s.done
}

// WaitWithTimeout blocks until the hooks have run or the timeout expires,
// reporting which happened.
func (s *ShutdownHandler) WaitWithTimeout(d time.Duration) bool {
	select {
	case <-s.done:
		return true
	case <-time.After(d):
		return false
	}
}

// Done closes after the last hook finishes.
func (s *ShutdownHandler) Done() <-chan struct{} {
	return s.done
}

// ShutdownCh closes as soon as teardown has been requested, before any
// hook runs.
func (s *ShutdownHandler) ShutdownCh() <-chan struct{} {
	return s.trigger
}

// run executes the hooks under one shared deadline. A failing hook must
// not block the rest; backends further down still get their close call.
func (s *ShutdownHandler) run(reason string) {
	ctx, cancel := context.WithTimeout(context.Background(), s.timeout)
	defer cancel()

	s.mu.Lock()
	hooks := make([]ShutdownHook, len(s.hooks))
	copy(hooks, s.hooks)
	s.mu.Unlock()
	sort.SliceStable(hooks, func(i, j int) bool {
		return hooks[i].Priority < hooks[j].Priority
	})

	slog.Info("shutdown started", "reason", reason, "hooks", len(hooks))
	for _, hook := range hooks {
		start := time.Now()
		if err := hook.Fn(ctx); err != nil {
			slog.Warn("shutdown hook failed", "hook", hook.Name, "error", err)
			continue
		}
		slog.Debug("shutdown hook done", "hook", hook.Name, "elapsed", time.Since(start))
	}
	close(s.done)
}

// Hooks for strata's backends. Priorities stage the teardown: stop
// accepting work, drain workers, then close stores and flush telemetry.

// HTTPServerShutdownHook stops an HTTP server early so no new requests
// arrive while backends close.
func HTTPServerShutdownHook(name string, shutdownFn func(ctx context.Context) error) ShutdownHook {
	return ShutdownHook{
		Name:     name,
		Priority: 10,
		Fn:       shutdownFn,
	}
}

// WatcherShutdownHook stops the filesystem watcher before backends close
// so it cannot trigger rebuilds against closed stores.
func WatcherShutdownHook(stopFn func() error) ShutdownHook {
	return ShutdownHook{
		Name:     "watcher",
		Priority: 15,
		Fn: func(ctx context.Context) error {
			return stopFn()
		},
	}
}

// TemporalWorkerShutdownHook drains the Temporal worker after inbound
// surfaces are gone.
func TemporalWorkerShutdownHook(stopFn func()) ShutdownHook {
	return ShutdownHook{
		Name:     "temporal-worker",
		Priority: 20,
		Fn: func(ctx context.Context) error {
			stopFn()
			return nil
		},
	}
}

// VectorShutdownHook closes the vector store connection.
func VectorShutdownHook(closeFn func() error) ShutdownHook {
	return ShutdownHook{
		Name:     "vector-store",
		Priority: 50,
		Fn: func(ctx context.Context) error {
			return closeFn()
		},
	}
}

// TracingShutdownHook flushes and stops the tracing provider.
func TracingShutdownHook(shutdownFn func(ctx context.Context) error) ShutdownHook {
	return ShutdownHook{
		Name:     "tracing",
		Priority: 80,
		Fn:       shutdownFn,
	}
}

// GraphShutdownHook closes the graph database connection late, after
// workers that might still be writing are done.
func GraphShutdownHook(closeFn func(ctx context.Context) error) ShutdownHook {
	return ShutdownHook{
		Name:     "graph",
		Priority: 90,
		Fn:       closeFn,
	}
}

// AuditLoggerShutdownHook closes the audit log last so it captures the
// shutdown events of everything above it.
func AuditLoggerShutdownHook(closeFn func() error) ShutdownHook {
	return ShutdownHook{
		Name:     "audit-logger",
		Priority: 95,
		Fn: func(ctx context.Context) error {
			return closeFn()
		},
	}
}

// GracefulServer ties the health endpoints to the shutdown sequence:
// readiness drops the moment teardown starts, and the probe listener
// itself closes as the first hook.
type GracefulServer struct {
	Health   *HealthServer
	Shutdown *ShutdownHandler
}

// NewGracefulServer creates a server with health probes and staged
// shutdown.
func NewGracefulServer(healthConfig *HealthConfig, shutdownConfig *ShutdownConfig) *GracefulServer {
	g := &GracefulServer{
		Health:   NewHealthServer(healthConfig),
		Shutdown: NewShutdownHandler(shutdownConfig),
	}

	g.Shutdown.Register(ShutdownHook{
		Name:     "health-server",
		Priority: 5,
		Fn: func(ctx context.Context) error {
			g.Health.Shutdown()
			return nil
		},
	})

	go func() {
		<-g.Shutdown.ShutdownCh()
		g.Health.SetReady(false)
	}()

	return g
}

// Start arms signal handling, serves the probe endpoints on addr and
// marks the process ready.
func (g *GracefulServer) Start(addr string) error {
	g.Shutdown.Start()

	go func() {
		err := g.Health.ListenAndServe(addr)
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Error("health server failed", "error", err)
		}
	}()

	g.Health.SetReady(true)
	return nil
}

// Wait blocks until shutdown completes.
func (g *GracefulServer) Wait() {
	g.Shutdown.Wait()
}

// Register adds shutdown hooks.
func (g *GracefulServer) Register(hooks ...ShutdownHook) {
	g.Shutdown.Register(hooks...)
}
