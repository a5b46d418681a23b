// Package classify assigns a coarse category to document content using an
// LLM completion. Classification is best-effort: any failure degrades to
// CategoryUnknown rather than failing the calling pipeline.
package classify

import (
	"context"
	"log/slog"
	"time"
	"unicode/utf8"

	"github.com/lukasmraz/docflow/internal/document"
	"github.com/lukasmraz/docflow/internal/llm"
	"github.com/lukasmraz/docflow/internal/observability"
)

const (
	// sampleLength bounds how much content is sent to the model. Category
	// is a coarse judgment from a sample, not full-document analysis.
	sampleLength = 2000

	// maxOutputTokens caps the completion; the answer is a single label.
	maxOutputTokens = 20

	// temperature keeps the label deterministic-leaning.
	temperature = 0.1
)

const systemPrompt = `You are a document classifier. Analyze the document and classify it into one of these categories:
- invoice (faktura)
- contract (smlouva)
- purchase_order (objednávka)
- unknown (if you cannot determine)

Respond with ONLY the category name, nothing else.`

// Completer is the narrow slice of llm.Provider the classifier needs.
type Completer interface {
	Complete(ctx context.Context, prompt *llm.Prompt, opts *llm.RequestOptions) (*llm.Response, error)
}

// Classifier categorizes document content via a text-generation backend.
type Classifier struct {
	provider Completer
	logger   *slog.Logger
}

// New creates a Classifier. A nil logger falls back to slog.Default.
func New(provider Completer, logger *slog.Logger) *Classifier {
	if logger == nil {
		logger = slog.Default()
	}
	return &Classifier{provider: provider, logger: logger}
}

// Categorize returns the category for content. It always returns a valid
// category: transport failures, empty responses, and unrecognized labels all
// map to CategoryUnknown. With no provider configured it returns
// CategoryUnknown immediately.
func (c *Classifier) Categorize(ctx context.Context, content string) document.Category {
	if c.provider == nil {
		return document.CategoryUnknown
	}

	sample := content
	if len(sample) > sampleLength {
		cut := sampleLength
		for cut > 0 && !utf8.RuneStart(sample[cut]) {
			cut--
		}
		sample = sample[:cut]
	}

	prompt := &llm.Prompt{
		SystemPrompt: systemPrompt,
		Messages: []llm.Message{
			{Role: llm.RoleUser, Content: "Classify this document:\n\n" + sample},
		},
	}
	opts := &llm.RequestOptions{
		MaxTokens:   llm.WithMaxTokens(maxOutputTokens),
		Temperature: llm.WithTemperature(temperature),
	}

	providerName := "llm"
	if named, ok := c.provider.(interface{ Name() string }); ok {
		providerName = named.Name()
	}
	ctx, span := observability.StartLLMSpan(ctx, providerName, "")
	defer span.End()

	start := time.Now()
	resp, err := c.provider.Complete(ctx, prompt, opts)
	observability.Metrics().RecordLLMRequest(time.Since(start), err)
	if err != nil {
		observability.RecordError(span, err)
		observability.Audit().LogLLMError(ctx, providerName, err)
		c.logger.Error("classification failed, defaulting to unknown", "error", err)
		return document.CategoryUnknown
	}
	observability.RecordLLMMetrics(span, resp.InputTokens, resp.OutputTokens, time.Since(start))
	observability.Audit().LogLLMResponse(ctx, providerName, time.Since(start), resp.InputTokens, resp.OutputTokens)

	label := llm.StripThinkingTags(resp.Content)
	category := document.ParseCategory(label)
	if category == document.CategoryUnknown && label != "" && label != string(document.CategoryUnknown) {
		c.logger.Warn("unrecognized category label", "label", label)
	}

	c.logger.Debug("document categorized", "category", category)
	return category
}
