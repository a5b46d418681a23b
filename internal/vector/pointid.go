package vector

import (
	"fmt"

	"github.com/google/uuid"
)

// pointNamespace scopes the deterministic point IDs. Any stable UUID works;
// changing it orphans every previously indexed point.
var pointNamespace = uuid.MustParse("9a7312a4-3f05-499c-b1d5-8c1d6a5be7f0")

// PointID derives a stable UUID for a (document, chunk index) pair. Re-running
// ingestion for the same pair yields the same ID, so upserts overwrite the
// prior point instead of duplicating it. This is the mechanism that makes
// re-indexing idempotent.
func PointID(documentID string, chunkIndex int) string {
	return uuid.NewSHA1(pointNamespace, fmt.Appendf(nil, "%s:%d", documentID, chunkIndex)).String()
}
