// Package chunk splits document text into sentence-bounded, token-budgeted,
// overlapping chunks for embedding.
package chunk

import (
	"regexp"
	"strings"
)

const (
	// DefaultTargetTokens is the per-chunk token budget.
	DefaultTargetTokens = 800
	// DefaultOverlapTokens is the token budget carried over between chunks.
	DefaultOverlapTokens = 100
)

// TextChunk is one bounded piece of a document's text.
type TextChunk struct {
	Content    string
	TokenCount int
}

// EstimateTokens approximates the token count of s at ~4 characters per
// token. This is a fixed heuristic, not a real tokenizer.
func EstimateTokens(s string) int {
	return len(s) / 4
}

// Sentence boundaries: terminal punctuation followed by whitespace and an
// upper-case letter, including Czech accented capitals. Known limitation:
// abbreviations and decimal numbers can mis-split. Downstream chunk boundary
// behavior depends on this exact heuristic.
var sentenceBoundary = regexp.MustCompile(`([.!?])\s+([A-ZÁČĎÉĚÍŇÓŘŠŤÚŮÝŽ])`)

// SplitSentences splits text at heuristic sentence boundaries, trimming each
// sentence and dropping empty ones.
func SplitSentences(text string) []string {
	// Insert a marker after the punctuation, then split on it. Go's regexp
	// has no lookbehind, so the boundary match consumes the punctuation and
	// the following capital; both are restored around the marker.
	marked := sentenceBoundary.ReplaceAllString(text, "$1\x00$2")
	parts := strings.Split(marked, "\x00")

	sentences := make([]string, 0, len(parts))
	for _, p := range parts {
		if s := strings.TrimSpace(p); s != "" {
			sentences = append(sentences, s)
		}
	}
	return sentences
}

// Splitter produces overlapping chunks from raw text.
type Splitter struct {
	targetTokens  int
	overlapTokens int
}

// NewSplitter creates a Splitter. Non-positive arguments fall back to the
// defaults.
func NewSplitter(targetTokens, overlapTokens int) *Splitter {
	if targetTokens <= 0 {
		targetTokens = DefaultTargetTokens
	}
	if overlapTokens < 0 {
		overlapTokens = DefaultOverlapTokens
	}
	return &Splitter{targetTokens: targetTokens, overlapTokens: overlapTokens}
}

// Split chunks text into sentence-bounded pieces. Whitespace-only input
// yields no chunks. Every chunk contains at least one sentence, so a single
// oversized sentence still produces a chunk that exceeds the budget.
func (s *Splitter) Split(text string) []TextChunk {
	if strings.TrimSpace(text) == "" {
		return nil
	}

	sentences := SplitSentences(text)
	var chunks []TextChunk
	var current []string
	currentTokens := 0

	for _, sentence := range sentences {
		sentenceTokens := EstimateTokens(sentence)

		if currentTokens+sentenceTokens > s.targetTokens && len(current) > 0 {
			chunks = append(chunks, TextChunk{
				Content:    strings.Join(current, " "),
				TokenCount: currentTokens,
			})

			overlap := overlapTail(current, s.overlapTokens)
			current = append([]string(nil), overlap...)
			currentTokens = 0
			for _, o := range overlap {
				currentTokens += EstimateTokens(o)
			}
		}

		current = append(current, sentence)
		currentTokens += sentenceTokens
	}

	if len(current) > 0 {
		chunks = append(chunks, TextChunk{
			Content:    strings.Join(current, " "),
			TokenCount: currentTokens,
		})
	}

	return chunks
}

// overlapTail walks sentences back-to-front, collecting whole sentences until
// the overlap token budget is reached. Order of the returned slice matches
// the original order. At least one sentence is always returned.
func overlapTail(sentences []string, overlapTokens int) []string {
	var overlap []string
	tokens := 0

	for i := len(sentences) - 1; i >= 0; i-- {
		sentenceTokens := EstimateTokens(sentences[i])
		if tokens+sentenceTokens > overlapTokens && len(overlap) > 0 {
			break
		}
		overlap = append([]string{sentences[i]}, overlap...)
		tokens += sentenceTokens
	}

	return overlap
}
