package secrets

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

// VaultConfig parameterizes the HashiCorp Vault backend (KV v2).
type VaultConfig struct {
	// Address of the Vault server, e.g. "http://localhost:8200".
	Address string
	// Token sent as X-Vault-Token.
	Token string
	// MountPath of the KV engine (default "secret").
	MountPath string
	// SecretPath under the mount holding this tool's keys (default
	// "strata").
	SecretPath string
	Timeout    time.Duration
}

// DefaultVaultConfig targets a local dev-mode Vault.
func DefaultVaultConfig() *VaultConfig {
	return &VaultConfig{
		Address:    "http://localhost:8200",
		MountPath:  "secret",
		SecretPath: "strata",
		Timeout:    10 * time.Second,
	}
}

// VaultProvider stores every key in one KV v2 document, so Set and
// Delete are read-modify-write cycles over it.
type VaultProvider struct {
	addr       string
	token      string
	mountPath  string
	secretPath string
	client     *http.Client
}

// NewVaultProvider validates cfg and fills in the defaults.
func NewVaultProvider(cfg *VaultConfig) (*VaultProvider, error) {
	if cfg == nil {
		cfg = DefaultVaultConfig()
	}
	if cfg.Address == "" {
		return nil, fmt.Errorf("vault address required")
	}
	if cfg.Token == "" {
		return nil, fmt.Errorf("vault token required")
	}

	p := &VaultProvider{
		addr:       strings.TrimSuffix(cfg.Address, "/"),
		token:      cfg.Token,
		mountPath:  cfg.MountPath,
		secretPath: cfg.SecretPath,
	}
	if p.mountPath == "" {
		p.mountPath = "secret"
	}
	if p.secretPath == "" {
		p.secretPath = "strata"
	}
	timeout := cfg.Timeout
	if timeout == 0 {
		timeout = 10 * time.Second
	}
	p.client = &http.Client{Timeout: timeout}
	return p, nil
}

func (p *VaultProvider) Name() string { return "vault" }

func (p *VaultProvider) dataURL() string {
	return fmt.Sprintf("%s/v1/%s/data/%s", p.addr, p.mountPath, p.secretPath)
}

func (p *VaultProvider) Get(ctx context.Context, key SecretKey) (string, error) {
	doc, err := p.readDoc(ctx)
	if err != nil {
		return "", err
	}
	val, ok := doc[string(key)]
	if !ok {
		return "", fmt.Errorf("key not found in vault: %s", key)
	}
	if s, ok := val.(string); ok {
		return s, nil
	}
	return fmt.Sprintf("%v", val), nil
}

func (p *VaultProvider) Set(ctx context.Context, key SecretKey, value string) error {
	doc, err := p.readDoc(ctx)
	if err != nil {
		// New paths 404 until the first write.
		doc = make(map[string]any)
	}
	doc[string(key)] = value
	return p.writeDoc(ctx, doc)
}

func (p *VaultProvider) Delete(ctx context.Context, key SecretKey) error {
	doc, err := p.readDoc(ctx)
	if err != nil {
		doc = make(map[string]any)
	}
	delete(doc, string(key))
	return p.writeDoc(ctx, doc)
}

// readDoc fetches the full KV v2 document.
func (p *VaultProvider) readDoc(ctx context.Context) (map[string]any, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, p.dataURL(), nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("X-Vault-Token", p.token)

	resp, err := p.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("vault request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return nil, fmt.Errorf("secret path not found: %s", p.secretPath)
	}
	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return nil, fmt.Errorf("vault error %d: %s", resp.StatusCode, body)
	}

	var payload struct {
		Data struct {
			Data map[string]any `json:"data"`
		} `json:"data"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return nil, fmt.Errorf("decode response: %w", err)
	}
	if payload.Data.Data == nil {
		return make(map[string]any), nil
	}
	return payload.Data.Data, nil
}

// writeDoc replaces the KV v2 document.
func (p *VaultProvider) writeDoc(ctx context.Context, doc map[string]any) error {
	body, err := json.Marshal(map[string]any{"data": doc})
	if err != nil {
		return fmt.Errorf("marshal payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.dataURL(), bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("X-Vault-Token", p.token)
	req.Header.Set("Content-Type", "application/json")

	resp, err := p.client.Do(req)
	if err != nil {
		return fmt.Errorf("vault request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusNoContent {
		respBody, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("vault error %d: %s", resp.StatusCode, respBody)
	}
	return nil
}
