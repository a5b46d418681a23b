package secrets

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
)

// FileConfig configures the file backend.
type FileConfig struct {
	// Path to a JSON file of name -> value pairs.
	Path string
	// CreateIfMissing creates an empty file when none exists.
	CreateIfMissing bool
}

// FileProvider reads secrets from a local JSON file. Development only; use
// env vars or Vault in production.
type FileProvider struct {
	config *FileConfig
	mu     sync.RWMutex
	data   map[string]string
}

// NewFileProvider creates a file-based provider.
func NewFileProvider(config *FileConfig) (*FileProvider, error) {
	if config == nil || config.Path == "" {
		return nil, fmt.Errorf("file path required")
	}

	p := &FileProvider{config: config, data: make(map[string]string)}
	if err := p.load(); err != nil {
		if os.IsNotExist(err) && config.CreateIfMissing {
			if err := p.save(); err != nil {
				return nil, fmt.Errorf("creating secrets file: %w", err)
			}
		} else if !os.IsNotExist(err) {
			return nil, fmt.Errorf("loading secrets file: %w", err)
		}
	}
	return p, nil
}

func (p *FileProvider) Name() string { return "file" }

func (p *FileProvider) Get(_ context.Context, key string) (string, error) {
	p.mu.RLock()
	defer p.mu.RUnlock()

	val, ok := p.data[key]
	if !ok || val == "" {
		return "", fmt.Errorf("secret not in file: %s", key)
	}
	return val, nil
}

func (p *FileProvider) Set(_ context.Context, key, value string) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.data[key] = value
	return p.save()
}

func (p *FileProvider) load() error {
	raw, err := os.ReadFile(p.config.Path)
	if err != nil {
		return err
	}
	return json.Unmarshal(raw, &p.data)
}

func (p *FileProvider) save() error {
	if err := os.MkdirAll(filepath.Dir(p.config.Path), 0o700); err != nil {
		return fmt.Errorf("creating directory: %w", err)
	}
	raw, err := json.MarshalIndent(p.data, "", "  ")
	if err != nil {
		return fmt.Errorf("marshalling secrets: %w", err)
	}
	return os.WriteFile(p.config.Path, raw, 0o600)
}
