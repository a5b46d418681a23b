package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"
	temporalclient "go.temporal.io/sdk/client"

	"github.com/lukasmraz/docflow/internal/classify"
	"github.com/lukasmraz/docflow/internal/config"
	"github.com/lukasmraz/docflow/internal/document"
	"github.com/lukasmraz/docflow/internal/llm"
	"github.com/lukasmraz/docflow/internal/llm/anthropic"
	"github.com/lukasmraz/docflow/internal/llm/ollama"
	"github.com/lukasmraz/docflow/internal/llm/openai"
	"github.com/lukasmraz/docflow/internal/observability"
	"github.com/lukasmraz/docflow/internal/pipeline"
	"github.com/lukasmraz/docflow/internal/retrieval"
	"github.com/lukasmraz/docflow/internal/secrets"
	"github.com/lukasmraz/docflow/internal/storage"
	"github.com/lukasmraz/docflow/internal/store"
	temporalmod "github.com/lukasmraz/docflow/internal/temporal"
	"github.com/lukasmraz/docflow/internal/vector"
)

func main() {
	var configPath string

	rootCmd := &cobra.Command{
		Use:   "docflow",
		Short: "Document ingestion and semantic retrieval for transaction records",
	}
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "configs/docflow.yaml", "Config file path")

	var (
		ingestFile        string
		ingestTransaction string
		ingestAsync       bool
	)
	ingestCmd := &cobra.Command{
		Use:   "ingest",
		Short: "Ingest a document into the search index",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runIngest(configPath, ingestFile, ingestTransaction, ingestAsync)
		},
	}
	ingestCmd.Flags().StringVar(&ingestFile, "file", "", "Path to the document to ingest")
	ingestCmd.Flags().StringVar(&ingestTransaction, "transaction", "", "Transaction the document belongs to")
	ingestCmd.Flags().BoolVar(&ingestAsync, "async", false, "Hand off processing to the Temporal worker")
	_ = ingestCmd.MarkFlagRequired("file")
	_ = ingestCmd.MarkFlagRequired("transaction")

	var (
		searchCategory    string
		searchTransaction string
		searchHasAmounts  bool
		searchHasDates    bool
		searchLimit       int
	)
	searchCmd := &cobra.Command{
		Use:   "search <query>",
		Short: "Semantic search over indexed document chunks",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			filters := &vector.SearchFilters{
				Category:      searchCategory,
				TransactionID: searchTransaction,
			}
			if cmd.Flags().Changed("has-amounts") {
				filters.HasAmounts = &searchHasAmounts
			}
			if cmd.Flags().Changed("has-dates") {
				filters.HasDates = &searchHasDates
			}
			return runSearch(configPath, args[0], filters, searchLimit)
		},
	}
	searchCmd.Flags().StringVar(&searchCategory, "category", "", "Filter by document category")
	searchCmd.Flags().StringVar(&searchTransaction, "transaction", "", "Filter by transaction")
	searchCmd.Flags().BoolVar(&searchHasAmounts, "has-amounts", false, "Only chunks containing monetary amounts")
	searchCmd.Flags().BoolVar(&searchHasDates, "has-dates", false, "Only chunks containing dates")
	searchCmd.Flags().IntVar(&searchLimit, "limit", 0, "Maximum results (0 = configured default)")

	var showID string
	showCmd := &cobra.Command{
		Use:   "show",
		Short: "Print the full extracted text of a document",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runShow(configPath, showID)
		},
	}
	showCmd.Flags().StringVar(&showID, "id", "", "Document ID")
	_ = showCmd.MarkFlagRequired("id")

	var (
		statusID          string
		statusTransaction string
	)
	statusCmd := &cobra.Command{
		Use:   "status",
		Short: "Show processing status for a document or a transaction",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runStatus(configPath, statusID, statusTransaction)
		},
	}
	statusCmd.Flags().StringVar(&statusID, "id", "", "Document ID")
	statusCmd.Flags().StringVar(&statusTransaction, "transaction", "", "Transaction ID")

	var deleteID string
	deleteCmd := &cobra.Command{
		Use:   "delete",
		Short: "Delete a document, its stored file, and its index entries",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runDelete(configPath, deleteID)
		},
	}
	deleteCmd.Flags().StringVar(&deleteID, "id", "", "Document ID")
	_ = deleteCmd.MarkFlagRequired("id")

	var (
		reindexID    string
		reindexAsync bool
	)
	reindexCmd := &cobra.Command{
		Use:   "reindex",
		Short: "Drop a document's index entries and process it again",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runReindex(configPath, reindexID, reindexAsync)
		},
	}
	reindexCmd.Flags().StringVar(&reindexID, "id", "", "Document ID")
	reindexCmd.Flags().BoolVar(&reindexAsync, "async", false, "Hand off processing to the Temporal worker")
	_ = reindexCmd.MarkFlagRequired("id")

	providersCmd := &cobra.Command{
		Use:   "providers",
		Short: "List available LLM providers",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Println("Available LLM providers:")
			fmt.Println()
			for name, url := range llm.KnownProviders {
				fmt.Printf("  %-14s %s\n", name, url)
			}
			fmt.Println("  custom         (set base_url to any OpenAI-compatible endpoint)")
			fmt.Println("  none           (run without LLM; documents index as 'unknown')")
			fmt.Println()
			fmt.Println("The ollama preset uses the native Ollama API, not the OpenAI shim.")
			fmt.Println()
			fmt.Println("Configure in docflow.yaml or via environment:")
			fmt.Println("  DOCFLOW_LLM_PROVIDER=ollama")
			fmt.Println("  DOCFLOW_LLM_MODEL=llama3.1:8b")
			fmt.Println("  DOCFLOW_EMBEDDING_MODEL=all-minilm:l6-v2")
		},
	}

	rootCmd.AddCommand(ingestCmd, searchCmd, showCmd, statusCmd, deleteCmd, reindexCmd, providersCmd)

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// app bundles everything a command needs after config is loaded.
type app struct {
	cfg    *config.Config
	logger *slog.Logger
	store  *store.Store
	files  *storage.FileStore
	index  *vector.Index
	pipe   *pipeline.Pipeline
	search *retrieval.Service
}

func buildApp(configPath string) (*app, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, fmt.Errorf("config: %w", err)
	}

	logger := newLogger(cfg.Log)
	for _, w := range cfg.Validate() {
		logger.Warn("config warning", "warning", w)
	}

	st, err := store.New(cfg.Storage.DataDir)
	if err != nil {
		return nil, fmt.Errorf("opening store: %w", err)
	}

	files, err := storage.NewFileStore(cfg.Storage.FilesDir)
	if err != nil {
		st.Close()
		return nil, fmt.Errorf("file store: %w", err)
	}

	provider, err := buildProvider(cfg)
	if err != nil {
		st.Close()
		return nil, err
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
		st.Close()
		return nil, fmt.Errorf("vector index: %w", err)
	}

	classifier := classify.New(provider, logger)
	pipe := pipeline.New(st, files, classifier, index, cfg.Chunking.TargetTokens, cfg.Chunking.OverlapTokens, logger)
	search := retrieval.New(index, st, files, retrieval.Options{
		Limit:          cfg.Search.Limit,
		ScoreThreshold: float32(cfg.Search.ScoreThreshold),
		PreviewLength:  cfg.Search.PreviewLength,
	}, logger)

	return &app{
		cfg:    cfg,
		logger: logger,
		store:  st,
		files:  files,
		index:  index,
		pipe:   pipe,
		search: search,
	}, nil
}

func (a *app) Close() {
	a.index.Close()
	a.store.Close()
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

// buildProvider creates the configured LLM provider. Returns nil for
// provider "none", in which case classification yields "unknown" and
// indexing is unavailable.
func buildProvider(cfg *config.Config) (llm.Provider, error) {
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
			pc.APIKey = sm.GetOrDefault(context.Background(), secrets.KeyLLMAPIKey, "")
		}
	}

	provider, err := factory.Create(pc)
	if err != nil {
		return nil, fmt.Errorf("creating LLM provider: %w", err)
	}
	if provider != nil {
		provider = llm.WithRateLimit(provider, llm.DefaultRateLimitConfig())
	}
	return provider, nil
}

func runIngest(configPath, filePath, transactionID string, async bool) error {
	a, err := buildApp(configPath)
	if err != nil {
		return err
	}
	defer a.Close()

	ctx := context.Background()
	if err := a.index.EnsureCollection(ctx); err != nil {
		return fmt.Errorf("ensuring collection: %w", err)
	}

	data, err := os.ReadFile(filePath)
	if err != nil {
		return fmt.Errorf("reading %s: %w", filePath, err)
	}

	fileName := filepath.Base(filePath)
	storedPath, err := a.files.Save(fileName, data)
	if err != nil {
		return fmt.Errorf("storing file: %w", err)
	}
	observability.Audit().LogFileStore(ctx, storedPath, len(data))

	doc := &document.Document{
		ID:            uuid.NewString(),
		TransactionID: transactionID,
		FileName:      fileName,
		FilePath:      storedPath,
		Status:        document.StatusPending,
		Category:      document.CategoryUnknown,
		CreatedAt:     time.Now().UTC(),
	}
	if err := a.store.Create(ctx, doc); err != nil {
		return fmt.Errorf("creating document: %w", err)
	}

	fmt.Printf("Document %s registered (transaction %s)\n", doc.ID, transactionID)

	if async {
		return startWorkflow(a.cfg, temporalmod.IngestWorkflow, doc.ID)
	}

	if err := a.pipe.Process(ctx, doc.ID); err != nil {
		return fmt.Errorf("processing: %w", err)
	}
	fmt.Printf("Document %s indexed\n", doc.ID)
	return nil
}

func runSearch(configPath, query string, filters *vector.SearchFilters, limit int) error {
	a, err := buildApp(configPath)
	if err != nil {
		return err
	}
	defer a.Close()

	results, err := a.search.Search(context.Background(), query, filters, limit)
	if err != nil {
		return err
	}
	if len(results) == 0 {
		fmt.Println("No results")
		return nil
	}
	for i, r := range results {
		fmt.Printf("%d. [%.3f] %s (%s, chunk %d/%d)\n", i+1, r.Score, r.FileName, r.Category, r.ChunkIndex+1, r.TotalChunks)
		fmt.Printf("   document: %s  transaction: %s\n", r.DocumentID, r.TransactionID)
		fmt.Printf("   %s\n\n", r.Content)
	}
	return nil
}

func runShow(configPath, id string) error {
	a, err := buildApp(configPath)
	if err != nil {
		return err
	}
	defer a.Close()

	content, err := a.search.FetchFullContent(context.Background(), id)
	if err != nil {
		return err
	}
	fmt.Println(content)
	return nil
}

func runStatus(configPath, id, transactionID string) error {
	if id == "" && transactionID == "" {
		return fmt.Errorf("either --id or --transaction is required")
	}

	a, err := buildApp(configPath)
	if err != nil {
		return err
	}
	defer a.Close()

	ctx := context.Background()
	var docs []*document.Document
	if id != "" {
		doc, err := a.store.Get(ctx, id)
		if err != nil {
			return err
		}
		docs = append(docs, doc)
	} else {
		docs, err = a.store.ListByTransaction(ctx, transactionID)
		if err != nil {
			return err
		}
	}

	if len(docs) == 0 {
		fmt.Println("No documents")
		return nil
	}
	for _, doc := range docs {
		fmt.Printf("%s  %-10s  %-14s  %s\n", doc.ID, doc.Status, doc.Category, doc.FileName)
		if doc.Status == document.StatusFailed && doc.FailureReason != "" {
			fmt.Printf("  reason: %s\n", doc.FailureReason)
		}
		if doc.ProcessedAt != nil {
			fmt.Printf("  processed: %s\n", doc.ProcessedAt.Format(time.RFC3339))
		}
	}
	return nil
}

func runDelete(configPath, id string) error {
	a, err := buildApp(configPath)
	if err != nil {
		return err
	}
	defer a.Close()

	ctx := context.Background()
	doc, err := a.store.Get(ctx, id)
	if err != nil {
		return err
	}

	if err := a.index.DeleteByDocument(ctx, id); err != nil {
		return fmt.Errorf("removing index entries: %w", err)
	}
	if err := a.files.Delete(doc.FilePath); err != nil {
		return fmt.Errorf("removing stored file: %w", err)
	}
	if err := a.store.Delete(ctx, id); err != nil {
		return err
	}
	observability.Audit().LogDocumentDelete(ctx, id, doc.FileName)
	fmt.Printf("Document %s deleted\n", id)
	return nil
}

func runReindex(configPath, id string, async bool) error {
	a, err := buildApp(configPath)
	if err != nil {
		return err
	}
	defer a.Close()

	ctx := context.Background()
	if err := a.index.EnsureCollection(ctx); err != nil {
		return fmt.Errorf("ensuring collection: %w", err)
	}

	if async {
		return startWorkflow(a.cfg, temporalmod.ReindexWorkflow, id)
	}

	if err := a.pipe.Reindex(ctx, id); err != nil {
		return err
	}
	fmt.Printf("Document %s reindexed\n", id)
	return nil
}

// startWorkflow queues a document on the worker's task queue and returns
// without waiting for the result.
func startWorkflow(cfg *config.Config, workflow any, documentID string) error {
	c, err := temporalclient.Dial(temporalclient.Options{
		HostPort:  cfg.Temporal.Host,
		Namespace: cfg.Temporal.Namespace,
	})
	if err != nil {
		return fmt.Errorf("temporal client: %w", err)
	}
	defer c.Close()

	run, err := c.ExecuteWorkflow(context.Background(), temporalclient.StartWorkflowOptions{
		ID:        "docflow-" + documentID + "-" + uuid.NewString()[:8],
		TaskQueue: cfg.Temporal.TaskQueue,
	}, workflow, temporalmod.IngestInput{DocumentID: documentID})
	if err != nil {
		return fmt.Errorf("starting workflow: %w", err)
	}
	observability.Audit().LogWorkflowStart(context.Background(), run.GetID(), documentID)
	fmt.Printf("Workflow %s started\n", run.GetID())
	return nil
}
