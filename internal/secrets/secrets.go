// Package secrets resolves credentials from pluggable backends so API keys
// never have to live in the config file. Environment variables are always
// the fallback.
package secrets

import (
	"context"
	"fmt"
	"os"
	"strings"
	"sync"
)

// Well-known secret names.
const (
	KeyLLMAPIKey     = "llm_api_key"
	KeyQdrantAPIKey  = "qdrant_api_key"
	KeyTemporalToken = "temporal_token"
)

// Provider is a single secrets backend.
type Provider interface {
	// Get retrieves a secret by name.
	Get(ctx context.Context, key string) (string, error)
	// Set stores a secret (not all providers support this).
	Set(ctx context.Context, key, value string) error
	// Name returns the provider name.
	Name() string
}

// Config selects and configures the backend.
type Config struct {
	// Provider is one of "env", "file", "vault".
	Provider string
	// FileConfig for the file backend (development only).
	FileConfig *FileConfig
	// VaultConfig for the HashiCorp Vault backend.
	VaultConfig *VaultConfig
	// EnvPrefix for environment variable names (default "DOCFLOW_").
	EnvPrefix string
}

// DefaultConfig returns the env-based default.
func DefaultConfig() *Config {
	return &Config{Provider: "env", EnvPrefix: "DOCFLOW_"}
}

// Manager resolves secrets through a primary backend with env fallback.
type Manager struct {
	primary  Provider
	fallback Provider
	mu       sync.RWMutex
	cache    map[string]string
	useCache bool
}

// NewManager creates a Manager for the configured backend.
func NewManager(cfg *Config) (*Manager, error) {
	if cfg == nil {
		cfg = DefaultConfig()
	}

	var primary Provider
	var err error
	switch cfg.Provider {
	case "vault":
		primary, err = NewVaultProvider(cfg.VaultConfig)
		if err != nil {
			return nil, fmt.Errorf("creating vault provider: %w", err)
		}
	case "file":
		primary, err = NewFileProvider(cfg.FileConfig)
		if err != nil {
			return nil, fmt.Errorf("creating file provider: %w", err)
		}
	case "env", "":
		primary = NewEnvProvider(cfg.EnvPrefix)
	default:
		return nil, fmt.Errorf("unknown secrets provider: %s", cfg.Provider)
	}

	return &Manager{
		primary:  primary,
		fallback: NewEnvProvider(cfg.EnvPrefix),
		cache:    make(map[string]string),
		useCache: true,
	}, nil
}

// Get resolves a secret, trying the primary backend then the env fallback.
func (m *Manager) Get(ctx context.Context, key string) (string, error) {
	if m.useCache {
		m.mu.RLock()
		if val, ok := m.cache[key]; ok {
			m.mu.RUnlock()
			return val, nil
		}
		m.mu.RUnlock()
	}

	if val, err := m.primary.Get(ctx, key); err == nil && val != "" {
		m.cacheSet(key, val)
		return val, nil
	}
	if val, err := m.fallback.Get(ctx, key); err == nil && val != "" {
		m.cacheSet(key, val)
		return val, nil
	}
	return "", fmt.Errorf("secret not found: %s", key)
}

// GetOrDefault resolves a secret or returns defaultVal when unset.
func (m *Manager) GetOrDefault(ctx context.Context, key, defaultVal string) string {
	val, err := m.Get(ctx, key)
	if err != nil || val == "" {
		return defaultVal
	}
	return val
}

// Set stores a secret in the primary backend.
func (m *Manager) Set(ctx context.Context, key, value string) error {
	if err := m.primary.Set(ctx, key, value); err != nil {
		return err
	}
	m.cacheSet(key, value)
	return nil
}

// DisableCache turns off caching (useful for testing).
func (m *Manager) DisableCache() {
	m.useCache = false
}

func (m *Manager) cacheSet(key, value string) {
	if !m.useCache {
		return
	}
	m.mu.Lock()
	m.cache[key] = value
	m.mu.Unlock()
}

// EnvProvider reads secrets from environment variables.
type EnvProvider struct {
	prefix string
}

// NewEnvProvider creates an environment-based provider.
func NewEnvProvider(prefix string) *EnvProvider {
	if prefix == "" {
		prefix = "DOCFLOW_"
	}
	return &EnvProvider{prefix: prefix}
}

func (p *EnvProvider) Name() string { return "env" }

func (p *EnvProvider) Get(_ context.Context, key string) (string, error) {
	envKey := p.prefix + strings.ToUpper(key)
	if val := os.Getenv(envKey); val != "" {
		return val, nil
	}
	// Bare name without the prefix also counts.
	if val := os.Getenv(strings.ToUpper(key)); val != "" {
		return val, nil
	}
	return "", fmt.Errorf("env var not found: %s", envKey)
}

func (p *EnvProvider) Set(_ context.Context, key, value string) error {
	return os.Setenv(p.prefix+strings.ToUpper(key), value)
}
