// Package ollama implements llm.Provider against the native Ollama HTTP API
// (/api/generate and /api/embeddings). For OpenAI-compatible Ollama endpoints
// use the openai provider with a custom base URL instead.
package ollama

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/lukasmraz/docflow/internal/llm"
)

const defaultBaseURL = "http://localhost:11434"

// Client implements llm.Provider for a local or remote Ollama instance.
type Client struct {
	model      string
	embedModel string
	baseURL    string
	http       *http.Client
}

// New creates an Ollama provider.
func New(model, embedModel, baseURL string) *Client {
	if baseURL == "" {
		baseURL = defaultBaseURL
	}
	if embedModel == "" {
		embedModel = "all-minilm:l6-v2"
	}
	return &Client{
		model:      model,
		embedModel: embedModel,
		baseURL:    strings.TrimRight(baseURL, "/"),
		http:       &http.Client{Timeout: 300 * time.Second},
	}
}

func (c *Client) Name() string { return "ollama" }

func (c *Client) Complete(ctx context.Context, prompt *llm.Prompt, opts *llm.RequestOptions) (*llm.Response, error) {
	// The generate endpoint takes a single prompt string; fold the system
	// prompt and conversation into one.
	var sb strings.Builder
	if prompt.SystemPrompt != "" {
		sb.WriteString(prompt.SystemPrompt)
		sb.WriteString("\n\n")
	}
	for _, m := range prompt.Messages {
		sb.WriteString(m.Content)
		sb.WriteString("\n")
	}

	options := map[string]any{}
	if opts != nil {
		if opts.Temperature != nil {
			options["temperature"] = *opts.Temperature
		}
		if opts.MaxTokens != nil {
			options["num_predict"] = *opts.MaxTokens
		}
		if len(opts.StopSeqs) > 0 {
			options["stop"] = opts.StopSeqs
		}
	}

	body := map[string]any{
		"model":   c.model,
		"prompt":  sb.String(),
		"stream":  false,
		"options": options,
	}

	var result struct {
		Response        string `json:"response"`
		Model           string `json:"model"`
		PromptEvalCount int    `json:"prompt_eval_count"`
		EvalCount       int    `json:"eval_count"`
		DoneReason      string `json:"done_reason"`
	}
	if err := c.postJSON(ctx, "/api/generate", body, &result); err != nil {
		return nil, err
	}

	return &llm.Response{
		Content:      result.Response,
		Model:        result.Model,
		InputTokens:  result.PromptEvalCount,
		OutputTokens: result.EvalCount,
		StopReason:   result.DoneReason,
	}, nil
}

func (c *Client) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	// The embeddings endpoint takes one prompt per request.
	embeddings := make([][]float32, len(texts))
	for i, text := range texts {
		body := map[string]any{
			"model":  c.embedModel,
			"prompt": text,
		}

		var result struct {
			Embedding []float32 `json:"embedding"`
		}
		if err := c.postJSON(ctx, "/api/embeddings", body, &result); err != nil {
			return nil, err
		}
		if len(result.Embedding) == 0 {
			return nil, fmt.Errorf("ollama: no embedding returned for input %d", i)
		}
		embeddings[i] = result.Embedding
	}
	return embeddings, nil
}

func (c *Client) postJSON(ctx context.Context, path string, body, out any) error {
	data, err := json.Marshal(body)
	if err != nil {
		return err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(data))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return err
	}
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("ollama %s: %s: %s", path, resp.Status, respBody)
	}
	return json.Unmarshal(respBody, out)
}
