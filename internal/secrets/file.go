package secrets

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
)

// FileConfig parameterizes the JSON-file backend.
type FileConfig struct {
	// Path to the JSON store.
	Path string
	// CreateIfMissing writes an empty store when Path does not exist.
	CreateIfMissing bool
}

// FileProvider keeps secrets in a local JSON file. Meant for development
// setups; deployments use vault or the environment.
type FileProvider struct {
	path string

	mu   sync.RWMutex
	data map[SecretKey]string
}

// NewFileProvider opens the store at cfg.Path. A missing store reads as
// empty; the first Set creates it.
func NewFileProvider(cfg *FileConfig) (*FileProvider, error) {
	if cfg == nil || cfg.Path == "" {
		return nil, fmt.Errorf("file path required")
	}

	p := &FileProvider{path: cfg.Path, data: make(map[SecretKey]string)}
	err := p.load()
	switch {
	case err == nil:
	case os.IsNotExist(err):
		if cfg.CreateIfMissing {
			if err := p.flush(); err != nil {
				return nil, fmt.Errorf("create secrets file: %w", err)
			}
		}
	default:
		return nil, fmt.Errorf("load secrets file: %w", err)
	}
	return p, nil
}

func (p *FileProvider) Name() string { return "file" }

func (p *FileProvider) Get(ctx context.Context, key SecretKey) (string, error) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	val, ok := p.data[key]
	if !ok {
		return "", fmt.Errorf("secret not found: %s", key)
	}
	return val, nil
}

func (p *FileProvider) Set(ctx context.Context, key SecretKey, value string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.data[key] = value
	return p.flush()
}

func (p *FileProvider) Delete(ctx context.Context, key SecretKey) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	delete(p.data, key)
	return p.flush()
}

// Reload rereads the store, dropping keys removed out of band.
func (p *FileProvider) Reload() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.load()
}

func (p *FileProvider) load() error {
	raw, err := os.ReadFile(p.path)
	if err != nil {
		return err
	}
	fresh := make(map[SecretKey]string)
	if err := json.Unmarshal(raw, &fresh); err != nil {
		return err
	}
	p.data = fresh
	return nil
}

// flush writes the store atomically, temp file then rename, so a crash
// mid-write never truncates it. Caller holds the write lock.
func (p *FileProvider) flush() error {
	if err := os.MkdirAll(filepath.Dir(p.path), 0o700); err != nil {
		return fmt.Errorf("create directory: %w", err)
	}
	raw, err := json.MarshalIndent(p.data, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal secrets: %w", err)
	}
	tmp := p.path + ".tmp"
	if err := os.WriteFile(tmp, raw, 0o600); err != nil {
		return fmt.Errorf("write secrets file: %w", err)
	}
	return os.Rename(tmp, p.path)
}
