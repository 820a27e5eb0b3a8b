// Package secrets resolves the credentials strata's stores need. Lookups
// walk a provider chain, so a deployment can pin a backend while ad-hoc
// runs keep working off environment variables.
package secrets

import (
	"context"
	"fmt"
	"os"
	"strings"
	"sync"
)

// SecretKey names one credential the CLI or worker may need.
type SecretKey string

const (
	SecretGraphPassword  SecretKey = "graph_password"
	SecretVectorAPIKey   SecretKey = "vector_api_key"
	SecretTemporalToken  SecretKey = "temporal_token"
	SecretDashboardToken SecretKey = "dashboard_token"
)

// Provider is one credential backend.
type Provider interface {
	Get(ctx context.Context, key SecretKey) (string, error)
	// Set stores a secret; read-mostly backends may refuse.
	Set(ctx context.Context, key SecretKey, value string) error
	Delete(ctx context.Context, key SecretKey) error
	Name() string
}

// Config selects and parameterizes the primary backend.
type Config struct {
	// Provider is "env", "vault" or "file". Empty means env.
	Provider string
	Vault    *VaultConfig
	File     *FileConfig
	// EnvPrefix namespaces environment lookups (default "STRATA_").
	EnvPrefix string
}

// DefaultConfig resolves secrets from the environment only.
func DefaultConfig() *Config {
	return &Config{Provider: "env", EnvPrefix: "STRATA_"}
}

// Manager walks its provider chain front to back and caches hits.
type Manager struct {
	chain []Provider

	mu      sync.RWMutex
	cache   map[SecretKey]string
	noCache bool
}

// NewManager builds the chain for cfg: the selected backend first, an
// environment provider as the terminal fallback.
func NewManager(cfg *Config) (*Manager, error) {
	if cfg == nil {
		cfg = DefaultConfig()
	}

	env := NewEnvProvider(cfg.EnvPrefix)
	chain := []Provider{env}

	switch cfg.Provider {
	case "env", "":
	case "vault":
		if cfg.Vault == nil {
			return nil, fmt.Errorf("vault config required for vault provider")
		}
		v, err := NewVaultProvider(cfg.Vault)
		if err != nil {
			return nil, fmt.Errorf("create vault provider: %w", err)
		}
		chain = []Provider{v, env}
	case "file":
		if cfg.File == nil {
			return nil, fmt.Errorf("file config required for file provider")
		}
		f, err := NewFileProvider(cfg.File)
		if err != nil {
			return nil, fmt.Errorf("create file provider: %w", err)
		}
		chain = []Provider{f, env}
	default:
		return nil, fmt.Errorf("unknown secrets provider: %s", cfg.Provider)
	}

	return &Manager{chain: chain, cache: make(map[SecretKey]string)}, nil
}

// Get returns the first non-empty value the chain yields.
func (m *Manager) Get(ctx context.Context, key SecretKey) (string, error) {
	if val, ok := m.cached(key); ok {
		return val, nil
	}
	for _, p := range m.chain {
		val, err := p.Get(ctx, key)
		if err == nil && val != "" {
			m.remember(key, val)
			return val, nil
		}
	}
	return "", fmt.Errorf("secret not found: %s", key)
}

// GetOrDefault returns fallback when no provider has the key.
func (m *Manager) GetOrDefault(ctx context.Context, key SecretKey, fallback string) string {
	val, err := m.Get(ctx, key)
	if err != nil || val == "" {
		return fallback
	}
	return val
}

// MustGet panics when the key is missing. For credentials the process
// cannot run without.
func (m *Manager) MustGet(ctx context.Context, key SecretKey) string {
	val, err := m.Get(ctx, key)
	if err != nil {
		panic(fmt.Sprintf("required secret not found: %s", key))
	}
	return val
}

// Set writes through to the head of the chain.
func (m *Manager) Set(ctx context.Context, key SecretKey, value string) error {
	if err := m.chain[0].Set(ctx, key, value); err != nil {
		return err
	}
	m.remember(key, value)
	return nil
}

// Delete removes the key from the head of the chain and the cache.
func (m *Manager) Delete(ctx context.Context, key SecretKey) error {
	if err := m.chain[0].Delete(ctx, key); err != nil {
		return err
	}
	m.mu.Lock()
	delete(m.cache, key)
	m.mu.Unlock()
	return nil
}

// ClearCache drops every cached value.
func (m *Manager) ClearCache() {
	m.mu.Lock()
	m.cache = make(map[SecretKey]string)
	m.mu.Unlock()
}

// DisableCache makes every Get hit the providers.
func (m *Manager) DisableCache() {
	m.mu.Lock()
	m.noCache = true
	m.mu.Unlock()
}

func (m *Manager) cached(key SecretKey) (string, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.noCache {
		return "", false
	}
	val, ok := m.cache[key]
	return val, ok
}

func (m *Manager) remember(key SecretKey, value string) {
	m.mu.Lock()
	if !m.noCache {
		m.cache[key] = value
	}
	m.mu.Unlock()
}

// EnvProvider resolves keys as upper-cased environment variables, first
// with the prefix, then bare.
type EnvProvider struct {
	prefix string
}

func NewEnvProvider(prefix string) *EnvProvider {
	if prefix == "" {
		prefix = "STRATA_"
	}
	return &EnvProvider{prefix: prefix}
}

func (p *EnvProvider) Name() string { return "env" }

func (p *EnvProvider) envName(key SecretKey) string {
	return p.prefix + strings.ToUpper(string(key))
}

func (p *EnvProvider) Get(ctx context.Context, key SecretKey) (string, error) {
	if val := os.Getenv(p.envName(key)); val != "" {
		return val, nil
	}
	if val := os.Getenv(strings.ToUpper(string(key))); val != "" {
		return val, nil
	}
	return "", fmt.Errorf("env var not found: %s", p.envName(key))
}

func (p *EnvProvider) Set(ctx context.Context, key SecretKey, value string) error {
	return os.Setenv(p.envName(key), value)
}

func (p *EnvProvider) Delete(ctx context.Context, key SecretKey) error {
	return os.Unsetenv(p.envName(key))
}

// The global manager initializes lazily, so plain CLI runs never call
// Init themselves.
var (
	globalMu      sync.Mutex
	globalManager *Manager
)

// Init configures the global manager. A no-op once a manager exists.
func Init(cfg *Config) error {
	globalMu.Lock()
	defer globalMu.Unlock()
	if globalManager != nil {
		return nil
	}
	m, err := NewManager(cfg)
	if err != nil {
		return err
	}
	globalManager = m
	return nil
}

func global() (*Manager, error) {
	globalMu.Lock()
	defer globalMu.Unlock()
	if globalManager == nil {
		m, err := NewManager(nil)
		if err != nil {
			return nil, err
		}
		globalManager = m
	}
	return globalManager, nil
}

// Get resolves key through the global manager.
func Get(ctx context.Context, key SecretKey) (string, error) {
	m, err := global()
	if err != nil {
		return "", err
	}
	return m.Get(ctx, key)
}

// GetOrDefault resolves key through the global manager, returning
// fallback when unset.
func GetOrDefault(ctx context.Context, key SecretKey, fallback string) string {
	m, err := global()
	if err != nil {
		return fallback
	}
	return m.GetOrDefault(ctx, key, fallback)
}

// MustGet resolves key through the global manager or panics.
func MustGet(ctx context.Context, key SecretKey) string {
	m, err := global()
	if err != nil {
		panic(fmt.Sprintf("secrets init: %v", err))
	}
	return m.MustGet(ctx, key)
}
