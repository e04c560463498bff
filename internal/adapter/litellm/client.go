// Package litellm provides an HTTP client for the LiteLLM proxy.
package litellm

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/Strob0t/CodeAtlas/internal/domain"
	"github.com/Strob0t/CodeAtlas/internal/port/reasoning"
	"github.com/Strob0t/CodeAtlas/internal/resilience"
)

// ChatMessage is a single message in a chat completion request.
type ChatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// ChatCompletionRequest is an OpenAI-compatible chat completion call
// routed through the proxy.
type ChatCompletionRequest struct {
	Model       string        `json:"model"`
	Messages    []ChatMessage `json:"messages"`
	Temperature float64       `json:"temperature,omitempty"`
	MaxTokens   int           `json:"max_tokens,omitempty"`
}

// ChatCompletionResponse is the flattened result of a chat completion:
// the first choice's content plus usage accounting.
type ChatCompletionResponse struct {
	Content   string
	TokensIn  int
	TokensOut int
	Model     string
}

// chatCompletionWire mirrors the OpenAI response envelope.
type chatCompletionWire struct {
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
	} `json:"choices"`
	Usage struct {
		PromptTokens     int `json:"prompt_tokens"`
		CompletionTokens int `json:"completion_tokens"`
	} `json:"usage"`
	Model string `json:"model"`
}

// Client talks to the LiteLLM proxy API.
type Client struct {
	baseURL    string
	masterKey  string
	httpClient *http.Client
	breaker    *resilience.Breaker
}

// NewClient creates a new LiteLLM client. The default timeout covers
// long generation calls; override it with SetTimeout.
func NewClient(baseURL, masterKey string) *Client {
	return &Client{
		baseURL:   baseURL,
		masterKey: masterKey,
		httpClient: &http.Client{
			Timeout: 60 * time.Second,
		},
	}
}

// SetBreaker attaches a circuit breaker to all outgoing HTTP calls.
func (c *Client) SetBreaker(b *resilience.Breaker) {
	c.breaker = b
}

// SetTimeout overrides the per-call HTTP timeout.
func (c *Client) SetTimeout(d time.Duration) {
	if d > 0 {
		c.httpClient.Timeout = d
	}
}

// CircuitState reports the breaker's admission mode for health output,
// or "disabled" when no breaker is attached.
func (c *Client) CircuitState() string {
	if c.breaker == nil {
		return "disabled"
	}
	return c.breaker.State().String()
}

// ChatCompletion sends an OpenAI-compatible chat completion request and
// flattens the first choice. An empty choice list or an undecodable
// envelope maps to domain.ErrMalformed.
func (c *Client) ChatCompletion(ctx context.Context, req ChatCompletionRequest) (*ChatCompletionResponse, error) {
	body, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("marshal chat completion: %w", err)
	}

	data, err := c.doRequest(ctx, http.MethodPost, "/chat/completions", body)
	if err != nil {
		return nil, fmt.Errorf("chat completion: %w", err)
	}

	var wire chatCompletionWire
	if err := json.Unmarshal(data, &wire); err != nil {
		return nil, fmt.Errorf("%w: unmarshal chat completion: %v", domain.ErrMalformed, err)
	}
	if len(wire.Choices) == 0 {
		return nil, fmt.Errorf("%w: chat completion returned no choices", domain.ErrMalformed)
	}

	return &ChatCompletionResponse{
		Content:   wire.Choices[0].Message.Content,
		TokensIn:  wire.Usage.PromptTokens,
		TokensOut: wire.Usage.CompletionTokens,
		Model:     wire.Model,
	}, nil
}

// Complete implements the reasoning port on top of ChatCompletion,
// mapping the system/user prompt pair onto OpenAI-style chat messages.
func (c *Client) Complete(ctx context.Context, req reasoning.Request) (*reasoning.Response, error) {
	messages := make([]ChatMessage, 0, 2)
	if req.SystemPrompt != "" {
		messages = append(messages, ChatMessage{Role: "system", Content: req.SystemPrompt})
	}
	messages = append(messages, ChatMessage{Role: "user", Content: req.UserPrompt})

	resp, err := c.ChatCompletion(ctx, ChatCompletionRequest{
		Model:       req.Model,
		Messages:    messages,
		Temperature: req.Temperature,
		MaxTokens:   req.MaxTokens,
	})
	if err != nil {
		return nil, err
	}

	return &reasoning.Response{
		Content:   resp.Content,
		TokensIn:  resp.TokensIn,
		TokensOut: resp.TokensOut,
		Model:     resp.Model,
	}, nil
}

// Health checks if LiteLLM is healthy.
func (c *Client) Health(ctx context.Context) (bool, error) {
	_, err := c.doRequest(ctx, http.MethodGet, "/health", nil)
	return err == nil, err
}

func (c *Client) doRequest(ctx context.Context, method, path string, body []byte) ([]byte, error) {
	var result []byte
	call := func() error {
		var bodyReader io.Reader
		if body != nil {
			bodyReader = bytes.NewReader(body)
		}

		req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, bodyReader)
		if err != nil {
			return fmt.Errorf("create request: %w", err)
		}

		req.Header.Set("Content-Type", "application/json")
		if c.masterKey != "" {
			req.Header.Set("Authorization", "Bearer "+c.masterKey)
		}

		resp, err := c.httpClient.Do(req)
		if err != nil {
			return fmt.Errorf("http request: %w", err)
		}
		defer func() { _ = resp.Body.Close() }()

		data, err := io.ReadAll(resp.Body)
		if err != nil {
			return fmt.Errorf("read response: %w", err)
		}

		switch {
		case resp.StatusCode == http.StatusTooManyRequests:
			return fmt.Errorf("%w: litellm API error %d: %s", domain.ErrRateLimited, resp.StatusCode, string(data))
		case resp.StatusCode >= 500:
			return fmt.Errorf("%w: litellm API error %d: %s", domain.ErrUnavailable, resp.StatusCode, string(data))
		case resp.StatusCode >= 400:
			return fmt.Errorf("litellm API error %d: %s", resp.StatusCode, string(data))
		}

		result = data
		return nil
	}

	if c.breaker != nil {
		if err := c.breaker.Execute(call); err != nil {
			return nil, err
		}
		return result, nil
	}

	if err := call(); err != nil {
		return nil, err
	}
	return result, nil
}
