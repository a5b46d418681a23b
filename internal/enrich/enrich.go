// Package enrich derives lightweight metadata from chunk content using
// pattern detection. Everything here is a pure function of the input text.
package enrich

import (
	"regexp"
	"strings"
)

var (
	// Digits optionally grouped with spaces or commas, followed by a
	// currency token.
	amountPattern = regexp.MustCompile(`\d+[\s,]*\d*\s*(Kč|EUR|CZK|€|\$)`)
	// D.M.YYYY with optional spaces around the dots.
	datePattern = regexp.MustCompile(`\d{1,2}\.\s*\d{1,2}\.\s*\d{4}`)
	// ISO YYYY-MM-DD.
	isoDatePattern = regexp.MustCompile(`\d{4}-\d{2}-\d{2}`)
)

// Metadata describes content-derived signals stored with each indexed chunk.
type Metadata struct {
	HasAmounts bool
	HasDates   bool
	WordCount  int
}

// Enrich extracts metadata from content. Empty or whitespace-only content
// yields the zero Metadata.
func Enrich(content string) Metadata {
	if strings.TrimSpace(content) == "" {
		return Metadata{}
	}

	return Metadata{
		HasAmounts: amountPattern.MatchString(content),
		HasDates:   datePattern.MatchString(content) || isoDatePattern.MatchString(content),
		WordCount:  len(strings.Fields(content)),
	}
}
