// Package vector owns the Qdrant collection holding document chunks: it
// embeds content, upserts points under deterministic IDs, and answers
// filtered similarity searches.
package vector

import "time"

// ChunkPoint is one chunk ready for indexing, with its payload fields.
type ChunkPoint struct {
	DocumentID    string
	TransactionID string
	ChunkIndex    int
	TotalChunks   int
	Category      string
	FileName      string
	Content       string
	TokenCount    int
	HasAmounts    bool
	HasDates      bool
	WordCount     int
	CreatedAt     time.Time
}

// SearchFilters restricts a similarity search. Nil/empty fields are ignored;
// set fields are combined conjunctively (all must match).
type SearchFilters struct {
	Category      string
	TransactionID string
	HasAmounts    *bool
	HasDates      *bool
}

// Empty reports whether no filter field is set.
func (f *SearchFilters) Empty() bool {
	return f == nil || (f.Category == "" && f.TransactionID == "" && f.HasAmounts == nil && f.HasDates == nil)
}

// SearchResult is one similarity match, echoing the indexed payload plus the
// similarity score. Ordered by descending score by the backend.
type SearchResult struct {
	DocumentID    string
	TransactionID string
	ChunkIndex    int
	TotalChunks   int
	Category      string
	FileName      string
	Content       string
	TokenCount    int
	HasAmounts    bool
	HasDates      bool
	WordCount     int
	Score         float32
}
