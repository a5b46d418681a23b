package chunk

import (
	"strings"
	"testing"
)

func TestEstimateTokens(t *testing.T) {
	tests := []struct {
		input    string
		expected int
	}{
		{"", 0},
		{"abc", 0},
		{"abcd", 1},
		{"abcdefgh", 2},
		{strings.Repeat("x", 100), 25},
	}

	for _, tt := range tests {
		if got := EstimateTokens(tt.input); got != tt.expected {
			t.Errorf("EstimateTokens(%q) = %d, want %d", tt.input, got, tt.expected)
		}
	}
}

func TestSplitSentences(t *testing.T) {
	sentences := SplitSentences("Alpha one. Bravo two. Charlie three.")
	if len(sentences) != 3 {
		t.Fatalf("expected 3 sentences, got %d: %v", len(sentences), sentences)
	}
	if sentences[0] != "Alpha one." {
		t.Fatalf("expected first sentence intact, got %q", sentences[0])
	}
	if sentences[2] != "Charlie three." {
		t.Fatalf("expected last sentence intact, got %q", sentences[2])
	}
}

func TestSplitSentences_CzechCapitals(t *testing.T) {
	sentences := SplitSentences("To je vše. Článek druhý platí.")
	if len(sentences) != 2 {
		t.Fatalf("expected split at Czech capital, got %d: %v", len(sentences), sentences)
	}
}

func TestSplitSentences_NoBoundary(t *testing.T) {
	// Lowercase after the period is not a sentence boundary.
	sentences := SplitSentences("see fig. 3 for details")
	if len(sentences) != 1 {
		t.Fatalf("expected 1 sentence, got %d: %v", len(sentences), sentences)
	}
}

func TestSplitSentences_Empty(t *testing.T) {
	if got := SplitSentences(""); len(got) != 0 {
		t.Fatalf("expected no sentences, got %v", got)
	}
	if got := SplitSentences("   \n\t  "); len(got) != 0 {
		t.Fatalf("expected no sentences for whitespace, got %v", got)
	}
}

func TestSplit_Empty(t *testing.T) {
	s := NewSplitter(0, 0)

	if got := s.Split(""); got != nil {
		t.Fatalf("expected nil for empty input, got %v", got)
	}
	if got := s.Split("  \n  "); got != nil {
		t.Fatalf("expected nil for whitespace input, got %v", got)
	}
}

func TestSplit_SingleChunk(t *testing.T) {
	s := NewSplitter(0, 0)

	text := "Alpha one. Bravo two."
	chunks := s.Split(text)
	if len(chunks) != 1 {
		t.Fatalf("expected 1 chunk, got %d", len(chunks))
	}
	if chunks[0].Content != text {
		t.Fatalf("expected content preserved, got %q", chunks[0].Content)
	}
	if chunks[0].TokenCount <= 0 {
		t.Fatalf("expected positive token count, got %d", chunks[0].TokenCount)
	}
}

func TestSplit_MultipleChunks(t *testing.T) {
	// Each sentence is 2 estimated tokens; budget of 4 holds two sentences.
	s := NewSplitter(4, 2)

	chunks := s.Split("Alpha one. Bravo two. Charlie three. Delta four.")
	if len(chunks) != 3 {
		t.Fatalf("expected 3 chunks, got %d: %v", len(chunks), chunks)
	}
	if chunks[0].Content != "Alpha one. Bravo two." {
		t.Fatalf("unexpected first chunk: %q", chunks[0].Content)
	}
	if chunks[2].Content != "Charlie three. Delta four." {
		t.Fatalf("unexpected last chunk: %q", chunks[2].Content)
	}
}

func TestSplit_Overlap(t *testing.T) {
	s := NewSplitter(4, 2)

	chunks := s.Split("Alpha one. Bravo two. Charlie three. Delta four.")
	if len(chunks) < 2 {
		t.Fatalf("expected multiple chunks, got %d", len(chunks))
	}

	// Each chunk after the first starts with the tail of its predecessor.
	for i := 1; i < len(chunks); i++ {
		first := strings.SplitN(chunks[i].Content, ". ", 2)[0] + "."
		if !strings.Contains(chunks[i-1].Content, first) {
			t.Fatalf("chunk %d does not overlap with predecessor: %q vs %q", i, chunks[i].Content, chunks[i-1].Content)
		}
	}
}

func TestSplit_OversizedSentence(t *testing.T) {
	s := NewSplitter(4, 2)

	// One sentence well over the budget still yields exactly one chunk.
	text := strings.Repeat("word ", 50)
	chunks := s.Split(text)
	if len(chunks) != 1 {
		t.Fatalf("expected 1 chunk for a single oversized sentence, got %d", len(chunks))
	}
	if chunks[0].TokenCount <= 4 {
		t.Fatalf("expected chunk over budget, got %d tokens", chunks[0].TokenCount)
	}
}

func TestNewSplitter_Defaults(t *testing.T) {
	s := NewSplitter(0, -1)
	if s.targetTokens != DefaultTargetTokens {
		t.Fatalf("expected default target %d, got %d", DefaultTargetTokens, s.targetTokens)
	}
	if s.overlapTokens != DefaultOverlapTokens {
		t.Fatalf("expected default overlap %d, got %d", DefaultOverlapTokens, s.overlapTokens)
	}
}

func TestOverlapTail_AlwaysAtLeastOne(t *testing.T) {
	// A sentence bigger than the overlap budget is still carried over.
	tail := overlapTail([]string{"Alpha one.", strings.Repeat("x", 100)}, 2)
	if len(tail) != 1 {
		t.Fatalf("expected exactly one oversized sentence, got %d", len(tail))
	}
}

func TestOverlapTail_RespectsBudget(t *testing.T) {
	sentences := []string{"Alpha one.", "Bravo two.", "Charlie three."}

	// Budget of 5 estimated tokens fits the last two sentences.
	tail := overlapTail(sentences, 5)
	if len(tail) != 2 {
		t.Fatalf("expected 2 sentences, got %d: %v", len(tail), tail)
	}
	if tail[0] != "Bravo two." || tail[1] != "Charlie three." {
		t.Fatalf("expected original order preserved, got %v", tail)
	}
}
