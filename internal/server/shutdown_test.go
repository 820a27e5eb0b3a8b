package server

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"
)

func TestDefaultShutdownConfig(t *testing.T) {
	cfg := DefaultShutdownConfig()
	if cfg.Timeout != 30*time.Second {
		t.Fatalf("expected 30s timeout, got %v", cfg.Timeout)
	}
	if len(cfg.Signals) != 2 {
		t.Fatalf("expected 2 signals, got %d", len(cfg.Signals))
	}
}

func TestNewShutdownHandler_NilConfig(t *testing.T) {
	h := NewShutdownHandler(nil)
	if h.timeout != 30*time.Second {
		t.Fatalf("expected default timeout, got %v", h.timeout)
	}
}

func TestNewShutdownHandler_CustomTimeout(t *testing.T) {
	h := NewShutdownHandler(&ShutdownConfig{Timeout: 10 * time.Second})
	if h.timeout != 10*time.Second {
		t.Fatalf("expected 10s timeout, got %v", h.timeout)
	}
}

func TestShutdownHandler_RunOrderFollowsPriority(t *testing.T) {
	h := NewShutdownHandler(&ShutdownConfig{Timeout: 5 * time.Second})

	var order []string
	record := func(name string) ShutdownHook {
		return ShutdownHook{Name: name, Priority: len(name) * 10, Fn: func(ctx context.Context) error {
			order = append(order, name)
			return nil
		}}
	}

	// Priorities 50, 20, 40 by name length; registration order differs.
	h.Register(record("third"), record("ab"), record("mids"))

	h.Start()
	h.Shutdown()
	h.Wait()

	if len(order) != 3 {
		t.Fatalf("expected 3 hooks run, got %d", len(order))
	}
	if order[0] != "ab" || order[1] != "mids" || order[2] != "third" {
		t.Fatalf("expected run order [ab mids third], got %v", order)
	}
}

func TestShutdownHandler_EqualPriorityKeepsRegistrationOrder(t *testing.T) {
	h := NewShutdownHandler(&ShutdownConfig{Timeout: 5 * time.Second})

	var order []string
	for _, name := range []string{"first", "second", "third"} {
		h.Register(ShutdownHook{Name: name, Priority: 50, Fn: func(ctx context.Context) error {
			order = append(order, name)
			return nil
		}})
	}

	h.Start()
	h.Shutdown()
	h.Wait()

	if len(order) != 3 || order[0] != "first" || order[1] != "second" || order[2] != "third" {
		t.Fatalf("expected registration order preserved, got %v", order)
	}
}

func TestShutdownHandler_ManualShutdown(t *testing.T) {
	h := NewShutdownHandler(&ShutdownConfig{Timeout: 5 * time.Second})

	var calls atomic.Int32
	count := func(ctx context.Context) error {
		calls.Add(1)
		return nil
	}
	h.Register(
		ShutdownHook{Name: "first", Priority: 10, Fn: count},
		ShutdownHook{Name: "second", Priority: 20, Fn: count},
	)

	h.Start()
	h.Shutdown()

	select {
	case <-h.Done():
	case <-time.After(2 * time.Second):
		t.Fatal("shutdown timed out")
	}

	if calls.Load() != 2 {
		t.Fatalf("expected 2 hooks called, got %d", calls.Load())
	}
}

func TestShutdownHandler_FailingHookDoesNotBlockRest(t *testing.T) {
	h := NewShutdownHandler(&ShutdownConfig{Timeout: 5 * time.Second})

	var called bool
	h.Register(
		ShutdownHook{Name: "failing", Priority: 10, Fn: func(ctx context.Context) error {
			return errors.New("close failed")
		}},
		ShutdownHook{Name: "after", Priority: 20, Fn: func(ctx context.Context) error {
			called = true
			return nil
		}},
	)

	h.Start()
	h.Shutdown()
	h.Wait()

	if !called {
		t.Fatal("expected later hook to run despite earlier failure")
	}
}

func TestShutdownHandler_TriggerClosesBeforeHooks(t *testing.T) {
	h := NewShutdownHandler(&ShutdownConfig{Timeout: 5 * time.Second})

	var open bool
	h.Register(ShutdownHook{Name: "probe", Priority: 10, Fn: func(ctx context.Context) error {
		select {
		case <-h.ShutdownCh():
		default:
			open = true
		}
		return nil
	}})

	h.Start()
	h.Shutdown()
	h.Wait()

	if open {
		t.Fatal("expected ShutdownCh to be closed before hooks run")
	}
}

func TestShutdownHandler_WaitWithTimeout(t *testing.T) {
	h := NewShutdownHandler(&ShutdownConfig{Timeout: 5 * time.Second})
	h.Register(ShutdownHook{Name: "quick", Priority: 10, Fn: func(ctx context.Context) error {
		return nil
	}})

	h.Start()
	h.Shutdown()

	if !h.WaitWithTimeout(2 * time.Second) {
		t.Fatal("expected wait to succeed")
	}
}

func TestShutdownHandler_WaitWithTimeout_Expires(t *testing.T) {
	h := NewShutdownHandler(&ShutdownConfig{Timeout: 10 * time.Second})
	h.Register(ShutdownHook{Name: "slow", Priority: 10, Fn: func(ctx context.Context) error {
		time.Sleep(2 * time.Second)
		return nil
	}})

	h.Start()
	h.Shutdown()

	if h.WaitWithTimeout(50 * time.Millisecond) {
		t.Fatal("expected wait to time out")
	}
}

func TestShutdownHandler_DoubleStart(t *testing.T) {
	h := NewShutdownHandler(nil)
	h.Start()
	h.Start()

	if !h.started {
		t.Fatal("expected handler to be started")
	}
	h.Shutdown()
	h.Wait()
}

func TestShutdownHandler_DoubleShutdown(t *testing.T) {
	h := NewShutdownHandler(nil)
	h.Start()
	h.Shutdown()
	h.Shutdown()
	h.Wait()
}

func TestShutdownHandler_ShutdownBeforeStart(t *testing.T) {
	h := NewShutdownHandler(&ShutdownConfig{Timeout: 5 * time.Second})

	var called bool
	h.Register(ShutdownHook{Name: "late", Priority: 10, Fn: func(ctx context.Context) error {
		called = true
		return nil
	}})

	// Trigger first; Start picks up the pending request immediately.
	h.Shutdown()
	h.Start()
	h.Wait()

	if !called {
		t.Fatal("expected hooks to run when Start follows Shutdown")
	}
}

func TestBackendHooks(t *testing.T) {
	var fired string
	tests := []struct {
		hook     ShutdownHook
		name     string
		priority int
	}{
		{HTTPServerShutdownHook("dashboard", func(ctx context.Context) error {
			fired = "dashboard"
			return nil
		}), "dashboard", 10},
		{WatcherShutdownHook(func() error {
			fired = "watcher"
			return nil
		}), "watcher", 15},
		{TemporalWorkerShutdownHook(func() {
			fired = "temporal-worker"
		}), "temporal-worker", 20},
		{VectorShutdownHook(func() error {
			fired = "vector-store"
			return nil
		}), "vector-store", 50},
		{TracingShutdownHook(func(ctx context.Context) error {
			fired = "tracing"
			return nil
		}), "tracing", 80},
		{GraphShutdownHook(func(ctx context.Context) error {
			fired = "graph"
			return nil
		}), "graph", 90},
		{AuditLoggerShutdownHook(func() error {
			fired = "audit-logger"
			return nil
		}), "audit-logger", 95},
	}

	lastPriority := -1
	for _, tc := range tests {
		if tc.hook.Name != tc.name {
			t.Errorf("expected hook name %s, got %s", tc.name, tc.hook.Name)
		}
		if tc.hook.Priority != tc.priority {
			t.Errorf("expected %s priority %d, got %d", tc.name, tc.priority, tc.hook.Priority)
		}
		if tc.hook.Priority <= lastPriority {
			t.Errorf("expected %s to tear down after the previous stage", tc.name)
		}
		lastPriority = tc.hook.Priority

		if err := tc.hook.Fn(context.Background()); err != nil {
			t.Errorf("hook %s returned error: %v", tc.name, err)
		}
		if fired != tc.name {
			t.Errorf("expected hook %s to call its close function", tc.name)
		}
	}
}

func TestNewGracefulServer(t *testing.T) {
	g := NewGracefulServer(nil, nil)
	if g.Health == nil {
		t.Fatal("expected non-nil health server")
	}
	if g.Shutdown == nil {
		t.Fatal("expected non-nil shutdown handler")
	}
	// The health listener hook is pre-registered.
	if len(g.Shutdown.hooks) != 1 || g.Shutdown.hooks[0].Name != "health-server" {
		t.Fatalf("expected health-server hook, got %+v", g.Shutdown.hooks)
	}
}

func TestGracefulServer_Register(t *testing.T) {
	g := NewGracefulServer(nil, nil)
	g.Register(ShutdownHook{Name: "extra", Priority: 50, Fn: func(ctx context.Context) error {
		return nil
	}})

	if len(g.Shutdown.hooks) != 2 {
		t.Fatalf("expected 2 hooks, got %d", len(g.Shutdown.hooks))
	}
}

func TestGracefulServer_ReadinessDropsOnShutdown(t *testing.T) {
	g := NewGracefulServer(nil, nil)
	g.Health.SetReady(true)
	handler := g.Health.Handler()

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/ready", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200 before shutdown, got %d", rec.Code)
	}

	g.Shutdown.Start()
	g.Shutdown.Shutdown()
	g.Wait()

	// The readiness watcher runs concurrently; poll until it lands.
	deadline := time.Now().Add(2 * time.Second)
	for {
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/ready", nil))
		if rec.Code == http.StatusServiceUnavailable {
			return
		}
		if time.Now().After(deadline) {
			t.Fatalf("expected readiness to drop after shutdown, still %d", rec.Code)
		}
		time.Sleep(10 * time.Millisecond)
	}
}
