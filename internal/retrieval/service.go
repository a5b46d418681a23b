// Package retrieval answers semantic queries over the indexed chunks and
// serves full document content when a preview is not enough.
package retrieval

import (
	"context"
	"fmt"
	"log/slog"
	"time"
	"unicode/utf8"

	"github.com/lukasmraz/docflow/internal/observability"
	"github.com/lukasmraz/docflow/internal/vector"
)

const (
	// DefaultLimit is the result count when the caller does not ask for one.
	DefaultLimit = 5
	// DefaultScoreThreshold discards weak matches.
	DefaultScoreThreshold = 0.5
	// DefaultPreviewLength truncates content for list display.
	DefaultPreviewLength = 300
)

// Searcher is the vector index surface the service reads from.
type Searcher interface {
	Search(ctx context.Context, queryText string, filters *vector.SearchFilters, limit int, scoreThreshold float32) ([]vector.SearchResult, error)
}

// DocumentLookup resolves a document ID to its stored file path.
type DocumentLookup interface {
	FilePath(ctx context.Context, documentID string) (string, error)
}

// FileReader loads stored file content as plain text.
type FileReader interface {
	ReadText(path string) (string, error)
}

// Options tunes the service defaults.
type Options struct {
	Limit          int
	ScoreThreshold float32
	PreviewLength  int
}

// Service performs filtered semantic search with truncated previews.
type Service struct {
	index  Searcher
	lookup DocumentLookup
	files  FileReader
	opts   Options
	logger *slog.Logger
}

// New creates a retrieval Service. Zero-valued Options fields fall back to
// the defaults.
func New(index Searcher, lookup DocumentLookup, files FileReader, opts Options, logger *slog.Logger) *Service {
	if opts.Limit <= 0 {
		opts.Limit = DefaultLimit
	}
	if opts.ScoreThreshold <= 0 {
		opts.ScoreThreshold = DefaultScoreThreshold
	}
	if opts.PreviewLength <= 0 {
		opts.PreviewLength = DefaultPreviewLength
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{index: index, lookup: lookup, files: files, opts: opts, logger: logger}
}

// Search embeds query, applies filters, and returns up to limit results with
// content truncated to the preview length. limit <= 0 uses the default.
func (s *Service) Search(ctx context.Context, query string, filters *vector.SearchFilters, limit int) ([]vector.SearchResult, error) {
	if limit <= 0 {
		limit = s.opts.Limit
	}

	ctx, span := observability.StartSearchSpan(ctx, limit)
	defer span.End()

	start := time.Now()
	defer func() { observability.Metrics().RecordSearch(time.Since(start)) }()

	results, err := s.index.Search(ctx, query, filters, limit, s.opts.ScoreThreshold)
	if err != nil {
		observability.RecordError(span, err)
		return nil, fmt.Errorf("retrieval: %w", err)
	}

	for i := range results {
		results[i].Content = truncate(results[i].Content, s.opts.PreviewLength)
	}

	observability.RecordSearchResult(span, len(results))
	observability.Audit().LogSearch(ctx, query, len(results), time.Since(start))
	s.logger.Debug("search completed", "results", len(results), "limit", limit)
	return results, nil
}

// FetchFullContent re-reads a document's stored file and returns its
// untruncated text. Used when a result preview is insufficient.
func (s *Service) FetchFullContent(ctx context.Context, documentID string) (string, error) {
	path, err := s.lookup.FilePath(ctx, documentID)
	if err != nil {
		return "", fmt.Errorf("resolving document %s: %w", documentID, err)
	}

	content, err := s.files.ReadText(path)
	if err != nil {
		return "", fmt.Errorf("reading document %s: %w", documentID, err)
	}
	return content, nil
}

// truncate cuts s to at most n bytes, backing up so a multi-byte rune is
// never split mid-sequence.
func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	for n > 0 && !utf8.RuneStart(s[n]) {
		n--
	}
	return s[:n]
}
