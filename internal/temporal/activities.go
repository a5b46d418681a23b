package temporal

import (
	"context"
	"fmt"

	"github.com/lukasmraz/docflow/internal/pipeline"
)

// Dependencies holds shared resources injected into activities.
type Dependencies struct {
	Pipeline *pipeline.Pipeline
}

var deps *Dependencies

// SetDependencies injects shared resources (called during worker setup).
func SetDependencies(d *Dependencies) {
	deps = d
}

// IngestDocumentActivity runs the full ingestion pipeline for one document.
func IngestDocumentActivity(ctx context.Context, input IngestInput) (IngestOutput, error) {
	if deps == nil || deps.Pipeline == nil {
		return IngestOutput{}, fmt.Errorf("worker dependencies not initialized")
	}

	if err := deps.Pipeline.Process(ctx, input.DocumentID); err != nil {
		return IngestOutput{}, err
	}
	return IngestOutput{DocumentID: input.DocumentID}, nil
}

// ReindexDocumentActivity re-drives one document: reset to Pending, delete
// its indexed chunks, then run the full pipeline again. The three steps live
// in one activity so their ordering survives workflow replay.
func ReindexDocumentActivity(ctx context.Context, input IngestInput) (IngestOutput, error) {
	if deps == nil || deps.Pipeline == nil {
		return IngestOutput{}, fmt.Errorf("worker dependencies not initialized")
	}

	if err := deps.Pipeline.Reindex(ctx, input.DocumentID); err != nil {
		return IngestOutput{}, err
	}
	return IngestOutput{DocumentID: input.DocumentID}, nil
}
