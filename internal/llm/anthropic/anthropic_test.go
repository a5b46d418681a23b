package anthropic

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/lukasmraz/docflow/internal/llm"
)

func TestNew_Defaults(t *testing.T) {
	c := New("sk-test", "claude-sonnet-4", "")
	if c.baseURL != defaultBaseURL {
		t.Errorf("expected default base URL, got %s", c.baseURL)
	}
	if c.Name() != "anthropic" {
		t.Errorf("expected name anthropic, got %s", c.Name())
	}
}

func TestComplete(t *testing.T) {
	var captured messagesRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/messages" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		if r.Header.Get("x-api-key") != "sk-test" {
			t.Error("missing api key header")
		}
		if r.Header.Get("anthropic-version") == "" {
			t.Error("missing anthropic-version header")
		}
		if err := json.NewDecoder(r.Body).Decode(&captured); err != nil {
			t.Fatalf("decoding request: %v", err)
		}
		json.NewEncoder(w).Encode(map[string]any{
			"content":     []map[string]string{{"text": "invoice"}},
			"model":       "claude-sonnet-4",
			"stop_reason": "end_turn",
			"usage":       map[string]int{"input_tokens": 30, "output_tokens": 2},
		})
	}))
	defer srv.Close()

	c := New("sk-test", "claude-sonnet-4", srv.URL)
	prompt := &llm.Prompt{
		SystemPrompt: "You classify documents.",
		Messages:     []llm.Message{{Role: llm.RoleUser, Content: "Classify this."}},
	}
	opts := &llm.RequestOptions{
		MaxTokens:   llm.WithMaxTokens(20),
		Temperature: llm.WithTemperature(0.1),
	}

	resp, err := c.Complete(context.Background(), prompt, opts)
	if err != nil {
		t.Fatalf("Complete failed: %v", err)
	}
	if resp.Content != "invoice" {
		t.Errorf("expected invoice, got %q", resp.Content)
	}
	if resp.InputTokens != 30 || resp.OutputTokens != 2 {
		t.Errorf("unexpected usage: %d/%d", resp.InputTokens, resp.OutputTokens)
	}
	if resp.StopReason != "end_turn" {
		t.Errorf("unexpected stop reason %s", resp.StopReason)
	}

	if captured.System != "You classify documents." {
		t.Errorf("system prompt not forwarded: %q", captured.System)
	}
	if captured.MaxTokens != 20 {
		t.Errorf("expected max_tokens 20, got %d", captured.MaxTokens)
	}
	if captured.Temperature == nil || *captured.Temperature != 0.1 {
		t.Errorf("temperature not forwarded: %v", captured.Temperature)
	}
	if len(captured.Messages) != 1 || captured.Messages[0].Role != "user" {
		t.Errorf("unexpected messages %+v", captured.Messages)
	}
}

func TestComplete_DefaultMaxTokens(t *testing.T) {
	var captured messagesRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewDecoder(r.Body).Decode(&captured)
		json.NewEncoder(w).Encode(map[string]any{"content": []map[string]string{{"text": "x"}}})
	}))
	defer srv.Close()

	c := New("sk-test", "claude-sonnet-4", srv.URL)
	if _, err := c.Complete(context.Background(), &llm.Prompt{}, nil); err != nil {
		t.Fatalf("Complete failed: %v", err)
	}
	if captured.MaxTokens != 4096 {
		t.Errorf("expected default max_tokens 4096, got %d", captured.MaxTokens)
	}
}

func TestComplete_APIError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, `{"error":{"type":"authentication_error"}}`, http.StatusUnauthorized)
	}))
	defer srv.Close()

	c := New("bad-key", "claude-sonnet-4", srv.URL)
	_, err := c.Complete(context.Background(), &llm.Prompt{}, nil)
	if err == nil {
		t.Fatal("expected error for non-200 response")
	}
	if !strings.Contains(err.Error(), "authentication_error") {
		t.Errorf("expected response body in error, got %v", err)
	}
}

func TestEmbed_NotSupported(t *testing.T) {
	c := New("sk-test", "claude-sonnet-4", "")
	if _, err := c.Embed(context.Background(), []string{"text"}); err == nil {
		t.Fatal("expected error, anthropic has no embeddings API")
	}
}
