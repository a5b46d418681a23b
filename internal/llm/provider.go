// Package llm abstracts the language-model backends used for document
// classification and chunk embedding. A single Provider serves both; wrappers
// in this package add retries and rate limiting around any backend.
package llm

import "context"

// Provider is one LLM backend.
type Provider interface {
	// Complete sends a prompt and returns the completion.
	Complete(ctx context.Context, prompt *Prompt, opts *RequestOptions) (*Response, error)
	// Embed returns one embedding vector per input text.
	Embed(ctx context.Context, texts []string) ([][]float32, error)
	// Name identifies the backend ("ollama", "anthropic", ...).
	Name() string
}
