package vector

import (
	"context"
	"errors"
	"fmt"
	"strings"
)

// ErrEmptyText is returned when an embedding is requested for empty or
// whitespace-only text. Unlike classification, this is a caller bug and is
// never degraded silently.
var ErrEmptyText = errors.New("vector: cannot embed empty text")

// EmbeddingProvider is the capability the Embedder needs from an LLM backend.
// Satisfied by llm.Provider.
type EmbeddingProvider interface {
	Embed(ctx context.Context, texts []string) ([][]float32, error)
}

// Embedder produces fixed-dimension vectors for chunk content and queries.
// It validates inputs and output dimensionality before anything reaches the
// collection.
type Embedder struct {
	provider EmbeddingProvider
	dim      int
}

// NewEmbedder creates an Embedder. dim is the collection's configured vector
// size; a non-positive dim disables the dimension check.
func NewEmbedder(provider EmbeddingProvider, dim int) *Embedder {
	return &Embedder{provider: provider, dim: dim}
}

// EmbedText embeds a single string. Fails on empty input, backend errors,
// missing vectors, and dimension mismatches.
func (e *Embedder) EmbedText(ctx context.Context, text string) ([]float32, error) {
	if e.provider == nil {
		return nil, errors.New("vector: no embedding provider configured")
	}
	if strings.TrimSpace(text) == "" {
		return nil, ErrEmptyText
	}

	vectors, err := e.provider.Embed(ctx, []string{text})
	if err != nil {
		return nil, fmt.Errorf("embedding: %w", err)
	}
	if len(vectors) == 0 || len(vectors[0]) == 0 {
		return nil, fmt.Errorf("embedding: backend returned no vector")
	}
	if e.dim > 0 && len(vectors[0]) != e.dim {
		return nil, fmt.Errorf("embedding: got %d dimensions, collection expects %d", len(vectors[0]), e.dim)
	}
	return vectors[0], nil
}

// EmbedBatch embeds multiple strings with the same validation as EmbedText.
func (e *Embedder) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	if e.provider == nil {
		return nil, errors.New("vector: no embedding provider configured")
	}
	for i, t := range texts {
		if strings.TrimSpace(t) == "" {
			return nil, fmt.Errorf("input %d: %w", i, ErrEmptyText)
		}
	}

	vectors, err := e.provider.Embed(ctx, texts)
	if err != nil {
		return nil, fmt.Errorf("embedding: %w", err)
	}
	if len(vectors) != len(texts) {
		return nil, fmt.Errorf("embedding count mismatch: got %d, want %d", len(vectors), len(texts))
	}
	for i, v := range vectors {
		if len(v) == 0 {
			return nil, fmt.Errorf("embedding: backend returned no vector for input %d", i)
		}
		if e.dim > 0 && len(v) != e.dim {
			return nil, fmt.Errorf("embedding: input %d got %d dimensions, collection expects %d", i, len(v), e.dim)
		}
	}
	return vectors, nil
}
