// Package temporal runs document ingestion as asynchronous workflows. Each
// uploaded document gets its own workflow execution; no ordering is
// guaranteed between documents.
package temporal

import (
	"time"

	"go.temporal.io/sdk/temporal"
	"go.temporal.io/sdk/workflow"
)

// IngestInput holds the workflow parameters.
type IngestInput struct {
	DocumentID string
}

// IngestOutput holds the workflow result.
type IngestOutput struct {
	DocumentID string
	Failed     bool
	Reason     string
}

// IngestWorkflow processes one document end to end. The activity is not
// retried automatically: ingestion is a single pass and a failed document is
// re-driven only by an explicit reindex trigger.
func IngestWorkflow(ctx workflow.Context, input IngestInput) (*IngestOutput, error) {
	ao := workflow.ActivityOptions{
		StartToCloseTimeout: 10 * time.Minute,
		RetryPolicy: &temporal.RetryPolicy{
			MaximumAttempts: 1,
		},
	}
	ctx = workflow.WithActivityOptions(ctx, ao)

	var result IngestOutput
	if err := workflow.ExecuteActivity(ctx, IngestDocumentActivity, input).Get(ctx, &result); err != nil {
		// The activity already recorded the failure on the document row;
		// the workflow itself completes with the failure described.
		return &IngestOutput{DocumentID: input.DocumentID, Failed: true, Reason: err.Error()}, nil
	}
	return &result, nil
}

// ReindexWorkflow re-drives one document through a single activity that
// resets its status, clears its indexed chunks, and re-ingests it. This is
// the safe re-drive path: a prior failed attempt with a different chunk
// count may have left stale points that a plain re-run would not overwrite,
// and a Failed or Completed row cannot re-enter Processing without a reset.
func ReindexWorkflow(ctx workflow.Context, input IngestInput) (*IngestOutput, error) {
	ao := workflow.ActivityOptions{
		StartToCloseTimeout: 10 * time.Minute,
		RetryPolicy: &temporal.RetryPolicy{
			MaximumAttempts: 1,
		},
	}
	ctx = workflow.WithActivityOptions(ctx, ao)

	var result IngestOutput
	if err := workflow.ExecuteActivity(ctx, ReindexDocumentActivity, input).Get(ctx, &result); err != nil {
		return &IngestOutput{DocumentID: input.DocumentID, Failed: true, Reason: err.Error()}, nil
	}
	return &result, nil
}
