package litellm_test

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/Strob0t/CodeAtlas/internal/adapter/litellm"
	"github.com/Strob0t/CodeAtlas/internal/domain"
	"github.com/Strob0t/CodeAtlas/internal/port/reasoning"
	"github.com/Strob0t/CodeAtlas/internal/resilience"
)

var _ reasoning.Service = (*litellm.Client)(nil)

func TestComplete(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req litellm.ChatCompletionRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Fatalf("decode request: %v", err)
		}
		if len(req.Messages) != 2 {
			t.Fatalf("expected 2 messages, got %d", len(req.Messages))
		}
		if req.Messages[0].Role != "system" || req.Messages[0].Content != "instructions" {
			t.Fatalf("unexpected system message: %+v", req.Messages[0])
		}
		if req.Messages[1].Role != "user" || req.Messages[1].Content != "data" {
			t.Fatalf("unexpected user message: %+v", req.Messages[1])
		}

		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]any{
			"choices": []map[string]any{
				{"message": map[string]string{"content": `{"ok":true}`}},
			},
			"usage": map[string]int{"prompt_tokens": 10, "completion_tokens": 3},
			"model": "gpt-4o-mini",
		})
	}))
	defer srv.Close()

	client := litellm.NewClient(srv.URL, "")
	resp, err := client.Complete(context.Background(), reasoning.Request{
		Model:        "openai/gpt-4o-mini",
		SystemPrompt: "instructions",
		UserPrompt:   "data",
		Temperature:  0.2,
		MaxTokens:    1024,
	})
	if err != nil {
		t.Fatalf("Complete: %v", err)
	}
	if resp.Content != `{"ok":true}` {
		t.Fatalf("unexpected content: %q", resp.Content)
	}
	if resp.TokensIn != 10 || resp.TokensOut != 3 {
		t.Fatalf("unexpected usage: in=%d out=%d", resp.TokensIn, resp.TokensOut)
	}
}

func TestChatCompletion(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/chat/completions" {
			t.Fatalf("unexpected path: %s", r.URL.Path)
		}
		if r.Method != http.MethodPost {
			t.Fatalf("unexpected method: %s", r.Method)
		}
		if auth := r.Header.Get("Authorization"); auth != "Bearer test-key" {
			t.Fatalf("unexpected auth: %q", auth)
		}

		var req litellm.ChatCompletionRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Fatalf("decode request: %v", err)
		}
		if req.Model != "openai/gpt-4o-mini" {
			t.Fatalf("unexpected model: %q", req.Model)
		}
		if len(req.Messages) != 2 || req.Messages[0].Role != "system" || req.Messages[1].Role != "user" {
			t.Fatalf("unexpected messages: %+v", req.Messages)
		}

		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]any{
			"choices": []map[string]any{
				{"message": map[string]string{"content": "the answer"}},
			},
			"usage": map[string]int{"prompt_tokens": 42, "completion_tokens": 7},
			"model": "gpt-4o-mini",
		})
	}))
	defer srv.Close()

	client := litellm.NewClient(srv.URL, "test-key")
	resp, err := client.ChatCompletion(context.Background(), litellm.ChatCompletionRequest{
		Model: "openai/gpt-4o-mini",
		Messages: []litellm.ChatMessage{
			{Role: "system", Content: "be helpful"},
			{Role: "user", Content: "question"},
		},
		Temperature: 0.2,
		MaxTokens:   4096,
	})
	if err != nil {
		t.Fatalf("ChatCompletion failed: %v", err)
	}

	if resp.Content != "the answer" {
		t.Errorf("expected content 'the answer', got %q", resp.Content)
	}
	if resp.TokensIn != 42 || resp.TokensOut != 7 {
		t.Errorf("expected usage 42/7, got %d/%d", resp.TokensIn, resp.TokensOut)
	}
	if resp.Model != "gpt-4o-mini" {
		t.Errorf("expected model gpt-4o-mini, got %q", resp.Model)
	}
}

func TestChatCompletionNoChoices(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"choices":[],"model":"gpt-4o-mini"}`))
	}))
	defer srv.Close()

	client := litellm.NewClient(srv.URL, "")
	_, err := client.ChatCompletion(context.Background(), litellm.ChatCompletionRequest{Model: "m"})
	if err == nil {
		t.Fatal("expected error for empty choices")
	}
	if !errors.Is(err, domain.ErrMalformed) {
		t.Errorf("expected ErrMalformed, got %v", err)
	}
}

func TestChatCompletionRateLimited(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
		_, _ = w.Write([]byte(`{"error":"rate limit exceeded"}`))
	}))
	defer srv.Close()

	client := litellm.NewClient(srv.URL, "")
	_, err := client.ChatCompletion(context.Background(), litellm.ChatCompletionRequest{Model: "m"})
	if !errors.Is(err, domain.ErrRateLimited) {
		t.Errorf("expected ErrRateLimited, got %v", err)
	}
}

func TestChatCompletionUpstreamError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
		_, _ = w.Write([]byte(`{"error":"model unavailable"}`))
	}))
	defer srv.Close()

	client := litellm.NewClient(srv.URL, "")
	_, err := client.ChatCompletion(context.Background(), litellm.ChatCompletionRequest{Model: "m"})
	if !errors.Is(err, domain.ErrUnavailable) {
		t.Errorf("expected ErrUnavailable, got %v", err)
	}
}

func TestChatCompletionBreakerOpens(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
		_, _ = w.Write([]byte(`{"error":"down"}`))
	}))
	defer srv.Close()

	client := litellm.NewClient(srv.URL, "")
	client.SetBreaker(resilience.NewBreaker(2, time.Minute))

	ctx := context.Background()
	req := litellm.ChatCompletionRequest{Model: "m"}

	_, _ = client.ChatCompletion(ctx, req)
	_, _ = client.ChatCompletion(ctx, req)

	// Third call is rejected by the open breaker without reaching the server.
	_, err := client.ChatCompletion(ctx, req)
	if !errors.Is(err, resilience.ErrCircuitOpen) {
		t.Fatalf("expected ErrCircuitOpen, got %v", err)
	}
}

func TestHealth(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/health" {
			t.Fatalf("unexpected path: %s", r.URL.Path)
		}
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"status":"healthy"}`))
	}))
	defer srv.Close()

	client := litellm.NewClient(srv.URL, "test-key")
	healthy, err := client.Health(context.Background())
	if err != nil {
		t.Fatalf("Health failed: %v", err)
	}
	if !healthy {
		t.Fatal("expected healthy")
	}
}

func TestHealthUnhealthy(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
		_, _ = w.Write([]byte(`{"error":"unhealthy"}`))
	}))
	defer srv.Close()

	client := litellm.NewClient(srv.URL, "test-key")
	healthy, _ := client.Health(context.Background())
	if healthy {
		t.Fatal("expected unhealthy")
	}
}
