// Package pipeline orchestrates document ingestion: load, classify, chunk,
// enrich, embed, index, and drive the document status state machine.
package pipeline

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/lukasmraz/docflow/internal/chunk"
	"github.com/lukasmraz/docflow/internal/document"
	"github.com/lukasmraz/docflow/internal/enrich"
	"github.com/lukasmraz/docflow/internal/observability"
	"github.com/lukasmraz/docflow/internal/vector"
	"go.opentelemetry.io/otel/trace"
)

// DocumentStore is the narrow slice of the relational store the pipeline
// mutates.
type DocumentStore interface {
	Get(ctx context.Context, id string) (*document.Document, error)
	SetStatus(ctx context.Context, id string, status document.ProcessingStatus) error
	SetCategory(ctx context.Context, id string, category document.Category) error
	SetProcessedAt(ctx context.Context, id string, ts time.Time) error
	MarkFailed(ctx context.Context, id string, reason string) error
	ResetForReingestion(ctx context.Context, id string) error
}

// FileReader loads stored file content as plain text.
type FileReader interface {
	ReadText(path string) (string, error)
}

// Categorizer assigns a document category. Implementations never fail; they
// degrade to CategoryUnknown.
type Categorizer interface {
	Categorize(ctx context.Context, content string) document.Category
}

// ChunkIndex is the vector index surface the pipeline writes to.
type ChunkIndex interface {
	UpsertChunk(ctx context.Context, point vector.ChunkPoint) error
	DeleteByDocument(ctx context.Context, documentID string) error
}

// Pipeline runs single-pass ingestion for one document at a time. Multiple
// documents may be processed concurrently by independent Process calls; point
// IDs are deterministic per (document, chunk), so concurrent runs never
// interfere.
type Pipeline struct {
	store      DocumentStore
	files      FileReader
	classifier Categorizer
	index      ChunkIndex
	splitter   *chunk.Splitter
	logger     *slog.Logger
}

// New creates a Pipeline. targetTokens/overlapTokens of 0 use the chunker
// defaults.
func New(store DocumentStore, files FileReader, classifier Categorizer, index ChunkIndex, targetTokens, overlapTokens int, logger *slog.Logger) *Pipeline {
	if logger == nil {
		logger = slog.Default()
	}
	return &Pipeline{
		store:      store,
		files:      files,
		classifier: classifier,
		index:      index,
		splitter:   chunk.NewSplitter(targetTokens, overlapTokens),
		logger:     logger,
	}
}

// Process ingests one document end to end: Pending -> Processing ->
// {Completed, Failed}. It is a single pass with no resumption from partial
// chunk progress. A failed chunk upsert aborts the remaining chunks and marks
// the document Failed; chunks upserted before the failure stay in the index
// (no compensating rollback). The returned error mirrors what was recorded as
// the failure reason.
func (p *Pipeline) Process(ctx context.Context, documentID string) (retErr error) {
	ctx, span := observability.StartIngestSpan(ctx, documentID)
	defer span.End()

	start := time.Now()
	indexed := 0
	metrics := observability.Metrics()
	metrics.DocumentsProcessing.Inc()
	defer func() {
		metrics.DocumentsProcessing.Dec()
		metrics.RecordIngest(time.Since(start), indexed, retErr)
	}()

	logger := p.logger.With("document_id", documentID)
	logger.Info("processing document")

	doc, err := p.store.Get(ctx, documentID)
	if err != nil {
		observability.RecordError(span, err)
		return fmt.Errorf("loading document: %w", err)
	}
	observability.Audit().LogIngestStart(ctx, doc.ID, doc.TransactionID, doc.FileName)

	content, err := p.files.ReadText(doc.FilePath)
	if err != nil {
		return p.fail(ctx, span, logger, documentID, fmt.Errorf("reading content: %w", err))
	}

	if err := p.store.SetStatus(ctx, documentID, document.StatusProcessing); err != nil {
		observability.RecordError(span, err)
		return fmt.Errorf("transition to processing: %w", err)
	}

	category := p.classifier.Categorize(ctx, content)
	if err := p.store.SetCategory(ctx, documentID, category); err != nil {
		return p.fail(ctx, span, logger, documentID, fmt.Errorf("persisting category: %w", err))
	}
	logger.Info("document categorized", "category", category)

	chunks := p.splitter.Split(content)
	if len(chunks) == 0 {
		return p.fail(ctx, span, logger, documentID, fmt.Errorf("document has no content"))
	}
	logger.Info("document split", "chunks", len(chunks))
	observability.SetIngestMetrics(span, string(category), len(chunks))

	createdAt := time.Now().UTC()
	for i, c := range chunks {
		meta := enrich.Enrich(c.Content)

		point := vector.ChunkPoint{
			DocumentID:    doc.ID,
			TransactionID: doc.TransactionID,
			ChunkIndex:    i,
			TotalChunks:   len(chunks),
			Category:      string(category),
			FileName:      doc.FileName,
			Content:       c.Content,
			TokenCount:    c.TokenCount,
			HasAmounts:    meta.HasAmounts,
			HasDates:      meta.HasDates,
			WordCount:     meta.WordCount,
			CreatedAt:     createdAt,
		}

		if err := p.index.UpsertChunk(ctx, point); err != nil {
			return p.fail(ctx, span, logger, documentID, fmt.Errorf("indexing chunk %d/%d: %w", i, len(chunks), err))
		}
		indexed++
	}

	if err := p.store.SetStatus(ctx, documentID, document.StatusCompleted); err != nil {
		observability.RecordError(span, err)
		return fmt.Errorf("transition to completed: %w", err)
	}
	if err := p.store.SetProcessedAt(ctx, documentID, time.Now().UTC()); err != nil {
		observability.RecordError(span, err)
		return fmt.Errorf("recording completion time: %w", err)
	}

	logger.Info("document processed", "chunks", len(chunks), "category", category)
	observability.Audit().LogIngestComplete(ctx, documentID, string(category), len(chunks), time.Since(start))
	return nil
}

// Reindex resets the document to Pending, deletes every indexed chunk, and
// runs Process again. This is the safe path for re-driving a document after
// a failed attempt: a prior attempt with a different chunk count may have
// left stale points at indices a plain re-run would not overwrite. The
// status reset happens before the chunk delete so a crash between the two
// leaves a Pending row, never a chunkless Completed one.
func (p *Pipeline) Reindex(ctx context.Context, documentID string) error {
	if err := p.store.ResetForReingestion(ctx, documentID); err != nil {
		return fmt.Errorf("resetting document: %w", err)
	}
	if err := p.index.DeleteByDocument(ctx, documentID); err != nil {
		return fmt.Errorf("clearing stale chunks: %w", err)
	}
	observability.Audit().Log(&observability.AuditEvent{
		EventType:  observability.AuditEventReindex,
		DocumentID: documentID,
		Success:    true,
		Message:    "Reindex requested",
	})
	return p.Process(ctx, documentID)
}

// fail marks the document Failed with reason, logs it, and returns the
// original error. A failure while recording the failure itself is logged and
// otherwise ignored; the original error is the one worth propagating.
func (p *Pipeline) fail(ctx context.Context, span trace.Span, logger *slog.Logger, documentID string, cause error) error {
	observability.RecordError(span, cause)
	observability.Audit().LogIngestFailed(ctx, documentID, cause)
	logger.Error("document processing failed", "error", cause)

	if err := p.store.MarkFailed(ctx, documentID, cause.Error()); err != nil {
		logger.Error("recording failure state", "error", err)
	}
	return cause
}
