package llm

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"
)

type stubProvider struct {
	name string
}

func (s *stubProvider) Name() string { return s.name }

func (s *stubProvider) Complete(context.Context, *Prompt, *RequestOptions) (*Response, error) {
	return &Response{Content: "ok"}, nil
}

func (s *stubProvider) Embed(context.Context, []string) ([][]float32, error) {
	return [][]float32{{0.1}}, nil
}

func TestFactoryCreate_EmptyAndNone(t *testing.T) {
	f := NewFactory()

	for _, name := range []string{"", "none"} {
		p, err := f.Create(ProviderConfig{Provider: name})
		if err != nil {
			t.Fatalf("provider %q: unexpected error %v", name, err)
		}
		if p != nil {
			t.Fatalf("provider %q: expected nil provider", name)
		}
	}
}

func TestFactoryCreate_Unknown(t *testing.T) {
	f := NewFactory()
	f.Register("ollama", func(ProviderConfig) (Provider, error) {
		return &stubProvider{name: "ollama"}, nil
	})

	_, err := f.Create(ProviderConfig{Provider: "gemini"})
	if err == nil {
		t.Fatal("expected error for unregistered provider")
	}
	if !strings.Contains(err.Error(), "ollama") {
		t.Errorf("error should list registered providers: %v", err)
	}
}

func TestFactoryCreate_Registered(t *testing.T) {
	f := NewFactory()
	var got ProviderConfig
	f.Register("ollama", func(cfg ProviderConfig) (Provider, error) {
		got = cfg
		return &stubProvider{name: "ollama"}, nil
	})

	p, err := f.Create(ProviderConfig{Provider: "ollama", Model: "llama3.1:8b"})
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if p == nil {
		t.Fatal("expected provider")
	}
	if got.Model != "llama3.1:8b" {
		t.Errorf("constructor did not receive config, got model %q", got.Model)
	}
}

func TestFactoryCreate_ConstructorError(t *testing.T) {
	f := NewFactory()
	f.Register("broken", func(ProviderConfig) (Provider, error) {
		return nil, errors.New("bad credentials")
	})

	if _, err := f.Create(ProviderConfig{Provider: "broken"}); err == nil {
		t.Fatal("expected constructor error to surface")
	}
}

func TestFactoryCreate_WrapsRetry(t *testing.T) {
	f := NewFactory()
	f.Register("ollama", func(ProviderConfig) (Provider, error) {
		return &stubProvider{name: "ollama"}, nil
	})

	p, err := f.Create(ProviderConfig{Provider: "ollama", Timeout: time.Minute})
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if _, ok := p.(*RetryProvider); !ok {
		t.Errorf("expected retry wrapper with Timeout set, got %T", p)
	}

	p, err = f.Create(ProviderConfig{Provider: "ollama", MaxRetries: 2})
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if _, ok := p.(*RetryProvider); !ok {
		t.Errorf("expected retry wrapper with MaxRetries set, got %T", p)
	}
}

func TestFactoryCreate_NoRetryWhenUnconfigured(t *testing.T) {
	f := NewFactory()
	f.Register("ollama", func(ProviderConfig) (Provider, error) {
		return &stubProvider{name: "ollama"}, nil
	})

	p, err := f.Create(ProviderConfig{Provider: "ollama"})
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if _, ok := p.(*stubProvider); !ok {
		t.Errorf("expected bare provider, got %T", p)
	}
}

func TestDefaultProviderConfig(t *testing.T) {
	cfg := DefaultProviderConfig()
	if cfg.Timeout != 2*time.Minute {
		t.Errorf("unexpected timeout %v", cfg.Timeout)
	}
	if cfg.MaxRetries != 3 {
		t.Errorf("unexpected max retries %d", cfg.MaxRetries)
	}
	if cfg.RetryDelay != time.Second {
		t.Errorf("unexpected retry delay %v", cfg.RetryDelay)
	}
}

func TestKnownProviders(t *testing.T) {
	for _, name := range []string{"anthropic", "openai", "groq", "huggingface", "ollama", "together", "deepseek"} {
		url, ok := KnownProviders[name]
		if !ok {
			t.Errorf("missing preset %s", name)
			continue
		}
		if !strings.HasPrefix(url, "http") {
			t.Errorf("preset %s has odd base URL %s", name, url)
		}
	}
}
