package openai

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
	c := New("sk-test", "gpt-4o-mini", "", "")
	if c.baseURL != defaultBaseURL {
		t.Errorf("expected default base URL, got %s", c.baseURL)
	}
	if c.embedModel != "text-embedding-3-small" {
		t.Errorf("expected default embed model, got %s", c.embedModel)
	}
	if c.Name() != "openai" {
		t.Errorf("expected name openai, got %s", c.Name())
	}
}

func TestComplete(t *testing.T) {
	var captured chatRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/chat/completions" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		if r.Header.Get("Authorization") != "Bearer sk-test" {
			t.Error("missing bearer token")
		}
		if err := json.NewDecoder(r.Body).Decode(&captured); err != nil {
			t.Fatalf("decoding request: %v", err)
		}
		json.NewEncoder(w).Encode(map[string]any{
			"choices": []map[string]any{{
				"message":       map[string]string{"content": "contract"},
				"finish_reason": "stop",
			}},
			"model": "gpt-4o-mini",
			"usage": map[string]int{"prompt_tokens": 25, "completion_tokens": 2},
		})
	}))
	defer srv.Close()

	c := New("sk-test", "gpt-4o-mini", srv.URL, "")
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
	if resp.Content != "contract" {
		t.Errorf("expected contract, got %q", resp.Content)
	}
	if resp.StopReason != "stop" {
		t.Errorf("unexpected stop reason %s", resp.StopReason)
	}
	if resp.InputTokens != 25 || resp.OutputTokens != 2 {
		t.Errorf("unexpected usage: %d/%d", resp.InputTokens, resp.OutputTokens)
	}

	// System prompt becomes the leading system message.
	if len(captured.Messages) != 2 || captured.Messages[0].Role != "system" {
		t.Errorf("unexpected messages %+v", captured.Messages)
	}
	if captured.MaxTokens != 20 {
		t.Errorf("expected max_tokens 20, got %d", captured.MaxTokens)
	}
}

func TestComplete_APIError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "invalid_api_key", http.StatusUnauthorized)
	}))
	defer srv.Close()

	c := New("bad", "gpt-4o-mini", srv.URL, "")
	_, err := c.Complete(context.Background(), &llm.Prompt{}, nil)
	if err == nil {
		t.Fatal("expected error for non-200 response")
	}
	if !strings.Contains(err.Error(), "invalid_api_key") {
		t.Errorf("expected response body in error, got %v", err)
	}
}

func TestEmbed(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/embeddings" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		var body struct {
			Model string   `json:"model"`
			Input []string `json:"input"`
		}
		json.NewDecoder(r.Body).Decode(&body)
		if body.Model != "text-embedding-3-small" {
			t.Errorf("unexpected embed model %s", body.Model)
		}
		out := make([]map[string]any, len(body.Input))
		for i := range body.Input {
			out[i] = map[string]any{"embedding": []float32{0.1, 0.2}}
		}
		json.NewEncoder(w).Encode(map[string]any{"data": out})
	}))
	defer srv.Close()

	c := New("sk-test", "gpt-4o-mini", srv.URL, "")
	vectors, err := c.Embed(context.Background(), []string{"first", "second"})
	if err != nil {
		t.Fatalf("Embed failed: %v", err)
	}
	if len(vectors) != 2 || len(vectors[0]) != 2 {
		t.Fatalf("unexpected vectors %v", vectors)
	}
}
