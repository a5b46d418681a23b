package retrieval

import (
	"context"
	"errors"
	"strings"
	"testing"
	"unicode/utf8"

	"github.com/lukasmraz/docflow/internal/vector"
)

type fakeSearcher struct {
	results   []vector.SearchResult
	err       error
	lastLimit int
	lastScore float32
	lastQuery string
}

func (f *fakeSearcher) Search(ctx context.Context, queryText string, filters *vector.SearchFilters, limit int, scoreThreshold float32) ([]vector.SearchResult, error) {
	f.lastQuery = queryText
	f.lastLimit = limit
	f.lastScore = scoreThreshold
	return f.results, f.err
}

type fakeLookup struct {
	path string
	err  error
}

func (f *fakeLookup) FilePath(ctx context.Context, documentID string) (string, error) {
	return f.path, f.err
}

type fakeReader struct {
	content string
	err     error
}

func (f *fakeReader) ReadText(path string) (string, error) {
	return f.content, f.err
}

func TestNew_Defaults(t *testing.T) {
	s := New(&fakeSearcher{}, &fakeLookup{}, &fakeReader{}, Options{}, nil)

	if s.opts.Limit != DefaultLimit {
		t.Fatalf("expected default limit %d, got %d", DefaultLimit, s.opts.Limit)
	}
	if s.opts.ScoreThreshold != DefaultScoreThreshold {
		t.Fatalf("expected default threshold %f, got %f", float32(DefaultScoreThreshold), s.opts.ScoreThreshold)
	}
	if s.opts.PreviewLength != DefaultPreviewLength {
		t.Fatalf("expected default preview %d, got %d", DefaultPreviewLength, s.opts.PreviewLength)
	}
}

func TestSearch_TruncatesPreviews(t *testing.T) {
	long := strings.Repeat("x", 500)
	searcher := &fakeSearcher{results: []vector.SearchResult{
		{DocumentID: "doc-1", Content: long, Score: 0.9},
		{DocumentID: "doc-2", Content: "short", Score: 0.8},
	}}

	s := New(searcher, &fakeLookup{}, &fakeReader{}, Options{PreviewLength: 100}, nil)
	results, err := s.Search(context.Background(), "query", nil, 0)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if len(results[0].Content) != 100 {
		t.Fatalf("expected 100-char preview, got %d", len(results[0].Content))
	}
	if results[1].Content != "short" {
		t.Fatalf("expected short content untouched, got %q", results[1].Content)
	}
}

func TestSearch_DefaultLimit(t *testing.T) {
	searcher := &fakeSearcher{}
	s := New(searcher, &fakeLookup{}, &fakeReader{}, Options{Limit: 7}, nil)

	if _, err := s.Search(context.Background(), "query", nil, 0); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if searcher.lastLimit != 7 {
		t.Fatalf("expected configured limit 7, got %d", searcher.lastLimit)
	}

	if _, err := s.Search(context.Background(), "query", nil, 3); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if searcher.lastLimit != 3 {
		t.Fatalf("expected explicit limit 3, got %d", searcher.lastLimit)
	}
}

func TestSearch_ForwardsThreshold(t *testing.T) {
	searcher := &fakeSearcher{}
	s := New(searcher, &fakeLookup{}, &fakeReader{}, Options{ScoreThreshold: 0.7}, nil)

	if _, err := s.Search(context.Background(), "query", nil, 0); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if searcher.lastScore != 0.7 {
		t.Fatalf("expected threshold 0.7, got %f", searcher.lastScore)
	}
}

func TestSearch_IndexError(t *testing.T) {
	searcher := &fakeSearcher{err: errors.New("backend down")}
	s := New(searcher, &fakeLookup{}, &fakeReader{}, Options{}, nil)

	if _, err := s.Search(context.Background(), "query", nil, 0); err == nil {
		t.Fatal("expected error")
	}
}

func TestFetchFullContent(t *testing.T) {
	s := New(&fakeSearcher{}, &fakeLookup{path: "data/files/a.txt"}, &fakeReader{content: "full document text"}, Options{}, nil)

	content, err := s.FetchFullContent(context.Background(), "doc-1")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if content != "full document text" {
		t.Fatalf("unexpected content: %q", content)
	}
}

func TestFetchFullContent_LookupError(t *testing.T) {
	s := New(&fakeSearcher{}, &fakeLookup{err: errors.New("not found")}, &fakeReader{}, Options{}, nil)

	if _, err := s.FetchFullContent(context.Background(), "doc-1"); err == nil {
		t.Fatal("expected error")
	}
}

func TestFetchFullContent_ReadError(t *testing.T) {
	s := New(&fakeSearcher{}, &fakeLookup{path: "gone.txt"}, &fakeReader{err: errors.New("removed")}, Options{}, nil)

	if _, err := s.FetchFullContent(context.Background(), "doc-1"); err == nil {
		t.Fatal("expected error")
	}
}

func TestTruncate(t *testing.T) {
	if got := truncate("hello", 10); got != "hello" {
		t.Fatalf("expected unchanged, got %q", got)
	}
	if got := truncate("hello world", 5); got != "hello" {
		t.Fatalf("expected cut at 5, got %q", got)
	}
}

func TestTruncate_RuneBoundary(t *testing.T) {
	// "úč" is 4 bytes; a cut at 3 lands inside the 'č' sequence and must
	// back up to the boundary instead of emitting a broken byte.
	if got := truncate("účet", 3); got != "ú" {
		t.Fatalf("expected cut at rune boundary, got %q", got)
	}
	s := strings.Repeat("ž", 100)
	got := truncate(s, 15)
	if !utf8.ValidString(got) {
		t.Fatalf("truncated string is not valid UTF-8: %q", got)
	}
	if got != strings.Repeat("ž", 7) {
		t.Fatalf("expected 7 runes, got %q", got)
	}
}
