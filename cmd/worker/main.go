package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"log/slog"
	"net/http"
	"os"

	temporalclient "go.temporal.io/sdk/client"

	"github.com/lukasmraz/docflow/internal/classify"
	"github.com/lukasmraz/docflow/internal/config"
	"github.com/lukasmraz/docflow/internal/llm"
	"github.com/lukasmraz/docflow/internal/llm/anthropic"
	"github.com/lukasmraz/docflow/internal/llm/ollama"
	"github.com/lukasmraz/docflow/internal/llm/openai"
	"github.com/lukasmraz/docflow/internal/observability"
	"github.com/lukasmraz/docflow/internal/pipeline"
	"github.com/lukasmraz/docflow/internal/secrets"
	"github.com/lukasmraz/docflow/internal/server"
	"github.com/lukasmraz/docflow/internal/storage"
	"github.com/lukasmraz/docflow/internal/store"
	temporalmod "github.com/lukasmraz/docflow/internal/temporal"
	"github.com/lukasmraz/docflow/internal/vector"
)

func main() {
	configPath := "configs/docflow.yaml"
	if len(os.Args) > 1 {
		configPath = os.Args[1]
	}

	cfg, err := config.Load(configPath)
	if err != nil {
		log.Fatalf("config: %v", err)
	}

	logger := newLogger(cfg.Log)
	for _, w := range cfg.Validate() {
		logger.Warn("config warning", "warning", w)
	}

	ctx := context.Background()

	tp, err := observability.InitTracing(ctx, &observability.TracingConfig{
		ServiceName:  "docflow-worker",
		Environment:  cfg.Tracing.Environment,
		OTLPEndpoint: cfg.Tracing.OTLPEndpoint,
		SampleRate:   cfg.Tracing.SampleRate,
	})
	if err != nil {
		log.Fatalf("tracing: %v", err)
	}

	if err := observability.InitGlobalAuditLogger(observability.DefaultAuditConfig()); err != nil {
		log.Fatalf("audit: %v", err)
	}

	st, err := store.New(cfg.Storage.DataDir)
	if err != nil {
		log.Fatalf("opening store: %v", err)
	}

	files, err := storage.NewFileStore(cfg.Storage.FilesDir)
	if err != nil {
		log.Fatalf("file store: %v", err)
	}

	// Build LLM provider via factory (supports LLM-free operation).
	factory := llm.NewFactory()
	factory.Register("anthropic", func(c llm.ProviderConfig) (llm.Provider, error) {
		return anthropic.New(c.APIKey, c.Model, c.BaseURL), nil
	})
	factory.Register("openai", func(c llm.ProviderConfig) (llm.Provider, error) {
		return openai.New(c.APIKey, c.Model, c.BaseURL, c.EmbedModel), nil
	})
	// Ollama speaks its own API; everything below is OpenAI-compatible.
	factory.Register("ollama", func(c llm.ProviderConfig) (llm.Provider, error) {
		return ollama.New(c.Model, c.EmbedModel, c.BaseURL), nil
	})
	for _, p := range []struct{ name, url string }{
		{"groq", llm.KnownProviders["groq"]},
		{"huggingface", llm.KnownProviders["huggingface"]},
		{"together", llm.KnownProviders["together"]},
		{"deepseek", llm.KnownProviders["deepseek"]},
		{"custom", ""},
	} {
		p := p
		factory.Register(p.name, func(c llm.ProviderConfig) (llm.Provider, error) {
			base := c.BaseURL
			if base == "" {
				base = p.url
			}
			return openai.New(c.APIKey, c.Model, base, c.EmbedModel), nil
		})
	}

	pc := llm.DefaultProviderConfig()
	pc.Provider = cfg.LLM.Provider
	pc.APIKey = cfg.LLM.APIKey
	pc.Model = cfg.LLM.Model
	pc.BaseURL = cfg.LLM.BaseURL
	pc.EmbedModel = cfg.Embedding.Model

	// API keys left out of the config file resolve through the secrets
	// backends (DOCFLOW_LLM_API_KEY and friends).
	if pc.APIKey == "" {
		if sm, err := secrets.NewManager(secrets.DefaultConfig()); err == nil {
			pc.APIKey = sm.GetOrDefault(ctx, secrets.KeyLLMAPIKey, "")
		}
	}

	provider, err := factory.Create(pc)
	if err != nil {
		log.Fatalf("creating LLM provider: %v", err)
	}
	if provider != nil {
		// Wire rate limiter before SetDependencies
		provider = llm.WithRateLimit(provider, llm.DefaultRateLimitConfig())
	}

	embedder := vector.NewEmbedder(provider, cfg.Embedding.Dimension)
	index, err := vector.NewIndex(vector.Config{
		Host:       cfg.Vector.Host,
		Port:       cfg.Vector.Port,
		Collection: cfg.Vector.Collection,
		VectorSize: cfg.Embedding.Dimension,
		Distance:   cfg.Vector.Distance,
	}, embedder, logger)
	if err != nil {
		log.Fatalf("vector index: %v", err)
	}
	if err := index.EnsureCollection(ctx); err != nil {
		logger.Warn("collection not ready", "error", err)
	}

	classifier := classify.New(provider, logger)
	pipe := pipeline.New(st, files, classifier, index, cfg.Chunking.TargetTokens, cfg.Chunking.OverlapTokens, logger)

	temporalmod.SetDependencies(&temporalmod.Dependencies{Pipeline: pipe})

	c, err := temporalclient.Dial(temporalclient.Options{
		HostPort:  cfg.Temporal.Host,
		Namespace: cfg.Temporal.Namespace,
	})
	if err != nil {
		log.Fatalf("temporal client: %v", err)
	}

	w, err := temporalmod.StartWorker(c, cfg.Temporal.TaskQueue)
	if err != nil {
		log.Fatalf("worker: %v", err)
	}

	health := server.NewHealthServer(&server.HealthConfig{Version: "0.1.0"})
	health.RegisterCheck("temporal", server.TemporalHealthChecker(func(ctx context.Context) error {
		_, err := c.CheckHealth(ctx, &temporalclient.CheckHealthRequest{})
		return err
	}))
	health.RegisterCheck("database", server.DatabaseHealthChecker(func(ctx context.Context) error {
		_, err := st.Get(ctx, "health-probe")
		if errors.Is(err, store.ErrNotFound) {
			return nil
		}
		return err
	}))
	if provider != nil {
		health.RegisterCheck("llm", server.LLMHealthChecker(provider.Name(), nil))
	}
	go func() {
		if err := health.ListenAndServe(":8080"); err != nil {
			logger.Error("health server", "error", err)
		}
	}()
	health.SetReady(true)

	metricsSrv := &http.Server{Addr: ":9090", Handler: observability.Metrics().Handler()}
	go func() {
		if err := metricsSrv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("metrics server", "error", err)
		}
	}()

	shutdown := server.NewShutdownHandler(server.DefaultShutdownConfig())
	shutdown.RegisterHook("health-server", 5, func(ctx context.Context) error {
		health.SetReady(false)
		health.Shutdown()
		return nil
	})
	shutdown.RegisterHook("metrics-server", 10, func(ctx context.Context) error {
		return metricsSrv.Shutdown(ctx)
	})
	shutdown.RegisterHook("temporal-worker", 20, func(ctx context.Context) error {
		w.Stop()
		return nil
	})
	shutdown.RegisterHook("temporal-client", 30, func(ctx context.Context) error {
		c.Close()
		return nil
	})
	shutdown.RegisterHook("vector-index", 40, func(ctx context.Context) error {
		return index.Close()
	})
	shutdown.RegisterHook("database", 50, func(ctx context.Context) error {
		return st.Close()
	})
	shutdown.RegisterHook("tracing", 60, func(ctx context.Context) error {
		return tp.Shutdown(ctx)
	})
	shutdown.Start()

	fmt.Printf("Worker started on task queue: %s\n", cfg.Temporal.TaskQueue)

	shutdown.Wait()
	fmt.Println("Worker stopped")
}

func newLogger(cfg config.LogConfig) *slog.Logger {
	var level slog.Level
	switch cfg.Level {
	case "debug":
		level = slog.LevelDebug
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		level = slog.LevelInfo
	}
	opts := &slog.HandlerOptions{Level: level}
	if cfg.Format == "json" {
		return slog.New(slog.NewJSONHandler(os.Stderr, opts))
	}
	return slog.New(slog.NewTextHandler(os.Stderr, opts))
}
