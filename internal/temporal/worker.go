package temporal

import (
	"fmt"

	"go.temporal.io/sdk/client"
	"go.temporal.io/sdk/worker"
)

// StartWorker registers the ingest workflows and their activities on
// taskQueue and starts polling. Callers stop it with worker.Stop.
func StartWorker(c client.Client, taskQueue string) (worker.Worker, error) {
	w := worker.New(c, taskQueue, worker.Options{})

	w.RegisterWorkflow(IngestWorkflow)
	w.RegisterWorkflow(ReindexWorkflow)
	w.RegisterActivity(IngestDocumentActivity)
	w.RegisterActivity(ReindexDocumentActivity)

	if err := w.Start(); err != nil {
		return nil, fmt.Errorf("starting worker: %w", err)
	}
	return w, nil
}
