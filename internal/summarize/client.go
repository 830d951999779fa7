package summarize

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/kiranshivaraju/scribe/pkg/models"
)

const (
	jsonResponseType   = "json_object"
	defaultHTTPTimeout = 120 * time.Second
)

// ChatConfig captures the settings for an OpenAI-compatible chat endpoint.
type ChatConfig struct {
	Name    string
	APIKey  string
	BaseURL string
	Model   string
	Timeout time.Duration
}

// ChatClient sends one chat completion per call to an OpenAI-compatible
// /chat/completions endpoint. Retries are the caller's concern.
type ChatClient struct {
	cfg        ChatConfig
	httpClient *http.Client
}

// ChatOption customizes the client.
type ChatOption func(*ChatClient)

// WithHTTPClient overrides the default HTTP client.
func WithHTTPClient(client *http.Client) ChatOption {
	return func(c *ChatClient) {
		if client != nil {
			c.httpClient = client
		}
	}
}

// NewChatClient constructs a client for cfg.
func NewChatClient(cfg ChatConfig, opts ...ChatOption) *ChatClient {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = defaultHTTPTimeout
	}
	c := &ChatClient{
		cfg: ChatConfig{
			Name:    strings.TrimSpace(cfg.Name),
			APIKey:  strings.TrimSpace(cfg.APIKey),
			BaseURL: strings.TrimRight(strings.TrimSpace(cfg.BaseURL), "/"),
			Model:   strings.TrimSpace(cfg.Model),
			Timeout: timeout,
		},
		httpClient: &http.Client{Timeout: timeout},
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.cfg.Name == "" {
		c.cfg.Name = "chat"
	}
	return c
}

func (c *ChatClient) Name() string { return c.cfg.Name }

type httpStatusError struct {
	StatusCode int
	Body       string
}

func (e *httpStatusError) Error() string {
	return fmt.Sprintf("chat request: http %d: %s", e.StatusCode, e.Body)
}

// retryable reports whether the same request may succeed later.
func (e *httpStatusError) retryable() bool {
	return e.StatusCode == http.StatusRequestTimeout ||
		e.StatusCode == http.StatusTooManyRequests ||
		e.StatusCode >= http.StatusInternalServerError
}

type chatCompletionRequest struct {
	Model          string            `json:"model"`
	Messages       []chatMessage     `json:"messages"`
	Temperature    float64           `json:"temperature"`
	MaxTokens      int               `json:"max_tokens,omitempty"`
	ResponseFormat map[string]string `json:"response_format"`
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatCompletionResponse struct {
	Choices []struct {
		Message struct {
			Content string `json:"content"`
			Refusal string `json:"refusal"`
		} `json:"message"`
		FinishReason string `json:"finish_reason"`
	} `json:"choices"`
	Error *struct {
		Message string `json:"message"`
	} `json:"error"`
}

// CompleteJSON issues a JSON-only chat completion and returns the raw
// message content. Statuses that cannot succeed on a retry are wrapped with
// ErrRequestRejected; every other failure with ErrCallFailed.
func (c *ChatClient) CompleteJSON(ctx context.Context, req models.CompletionRequest) (string, error) {
	payload := chatCompletionRequest{
		Model: c.cfg.Model,
		Messages: []chatMessage{
			{Role: "system", Content: strings.TrimSpace(req.SystemPrompt)},
			{Role: "user", Content: req.UserMessage},
		},
		Temperature:    req.Temperature,
		MaxTokens:      req.MaxOutputTokens,
		ResponseFormat: map[string]string{"type": jsonResponseType},
	}
	content, err := c.send(ctx, payload)
	if err != nil {
		var statusErr *httpStatusError
		if errors.As(err, &statusErr) && !statusErr.retryable() {
			return "", fmt.Errorf("%w: %w", ErrRequestRejected, err)
		}
		return "", fmt.Errorf("%w: %w", ErrCallFailed, err)
	}
	return content, nil
}

func (c *ChatClient) send(ctx context.Context, payload chatCompletionRequest) (string, error) {
	encoded, err := json.Marshal(payload)
	if err != nil {
		return "", fmt.Errorf("chat request: encode body: %w", err)
	}
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.cfg.BaseURL+"/chat/completions", bytes.NewReader(encoded))
	if err != nil {
		return "", fmt.Errorf("chat request: new request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	if c.cfg.APIKey != "" {
		httpReq.Header.Set("Authorization", "Bearer "+c.cfg.APIKey)
	}

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return "", fmt.Errorf("chat request: http error (timeout=%s): %w", c.cfg.Timeout, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("chat request: read body: %w", err)
	}
	if resp.StatusCode >= http.StatusMultipleChoices {
		return "", &httpStatusError{StatusCode: resp.StatusCode, Body: strings.TrimSpace(string(body))}
	}

	var completion chatCompletionResponse
	if err := json.Unmarshal(body, &completion); err != nil {
		return "", fmt.Errorf("chat request: decode response: %w", err)
	}
	if completion.Error != nil {
		return "", fmt.Errorf("chat request: api error: %s", strings.TrimSpace(completion.Error.Message))
	}
	for _, choice := range completion.Choices {
		if content := strings.TrimSpace(choice.Message.Content); content != "" {
			return content, nil
		}
	}
	if len(completion.Choices) == 0 {
		return "", errors.New("chat request: empty choices")
	}
	first := completion.Choices[0]
	return "", fmt.Errorf("chat request: empty content (finish_reason=%q, refusal=%q)",
		first.FinishReason, first.Message.Refusal)
}

var _ models.CompletionProvider = (*ChatClient)(nil)
