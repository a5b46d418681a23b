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

// VaultConfig configures the HashiCorp Vault backend (KV v2).
type VaultConfig struct {
	// Address of the Vault server, e.g. "http://localhost:8200".
	Address string
	// Token for authentication.
	Token string
	// MountPath of the secrets engine (default "secret").
	MountPath string
	// SecretPath under the mount (default "docflow").
	SecretPath string
	// Timeout for Vault API requests.
	Timeout time.Duration
}

// DefaultVaultConfig returns the default Vault configuration.
func DefaultVaultConfig() *VaultConfig {
	return &VaultConfig{
		Address:    "http://localhost:8200",
		MountPath:  "secret",
		SecretPath: "docflow",
		Timeout:    10 * time.Second,
	}
}

// VaultProvider keeps all secrets as fields of a single KV v2 entry and
// talks to Vault's HTTP API directly.
type VaultProvider struct {
	config *VaultConfig
	client *http.Client
}

// NewVaultProvider creates a Vault provider. Address and Token are
// required; the remaining fields fall back to DefaultVaultConfig values.
func NewVaultProvider(config *VaultConfig) (*VaultProvider, error) {
	if config == nil {
		config = DefaultVaultConfig()
	}
	if config.Address == "" {
		return nil, fmt.Errorf("vault address required")
	}
	if config.Token == "" {
		return nil, fmt.Errorf("vault token required")
	}

	defaults := DefaultVaultConfig()
	if config.MountPath == "" {
		config.MountPath = defaults.MountPath
	}
	if config.SecretPath == "" {
		config.SecretPath = defaults.SecretPath
	}
	if config.Timeout == 0 {
		config.Timeout = defaults.Timeout
	}

	return &VaultProvider{
		config: config,
		client: &http.Client{Timeout: config.Timeout},
	}, nil
}

func (p *VaultProvider) Name() string { return "vault" }

// dataURL is the KV v2 data endpoint for the configured secret path.
func (p *VaultProvider) dataURL() string {
	return fmt.Sprintf("%s/v1/%s/data/%s",
		strings.TrimSuffix(p.config.Address, "/"),
		p.config.MountPath,
		p.config.SecretPath,
	)
}

// do sends an authenticated request and returns the response body for 2xx
// statuses.
func (p *VaultProvider) do(ctx context.Context, method string, payload []byte) ([]byte, error) {
	var body io.Reader
	if payload != nil {
		body = bytes.NewReader(payload)
	}
	req, err := http.NewRequestWithContext(ctx, method, p.dataURL(), body)
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("X-Vault-Token", p.config.Token)
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := p.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("vault request: %w", err)
	}
	defer resp.Body.Close()

	raw, _ := io.ReadAll(resp.Body)
	switch {
	case resp.StatusCode == http.StatusNotFound:
		return nil, fmt.Errorf("secret path not found: %s", p.config.SecretPath)
	case resp.StatusCode >= 300:
		return nil, fmt.Errorf("vault error %d: %s", resp.StatusCode, raw)
	}
	return raw, nil
}

func (p *VaultProvider) Get(ctx context.Context, key string) (string, error) {
	raw, err := p.do(ctx, http.MethodGet, nil)
	if err != nil {
		return "", err
	}

	var result struct {
		Data struct {
			Data map[string]any `json:"data"`
		} `json:"data"`
	}
	if err := json.Unmarshal(raw, &result); err != nil {
		return "", fmt.Errorf("decoding response: %w", err)
	}

	val, ok := result.Data.Data[key]
	if !ok {
		return "", fmt.Errorf("key not found in vault: %s", key)
	}
	if s, ok := val.(string); ok {
		return s, nil
	}
	return fmt.Sprintf("%v", val), nil
}

// Set writes a single key into the secret path. KV v2 replaces the whole
// entry on write, so siblings stored out of band are lost.
func (p *VaultProvider) Set(ctx context.Context, key, value string) error {
	payload, err := json.Marshal(map[string]any{
		"data": map[string]string{key: value},
	})
	if err != nil {
		return err
	}
	_, err = p.do(ctx, http.MethodPost, payload)
	return err
}
