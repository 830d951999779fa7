// Package models contains shared data models used across the Scribe codebase.
package models

import "context"

// CompletionProvider is the interface every summarization backend implements.
// Never call a specific chat API directly; always inject this interface.
type CompletionProvider interface {
	// CompleteJSON sends one chat request constrained to a JSON-object reply
	// and returns the raw message content.
	CompleteJSON(ctx context.Context, req CompletionRequest) (string, error)
	// Name returns the provider identifier (e.g., "deepseek", "openai").
	Name() string
}

// CompletionRequest is the input to a single chat completion.
type CompletionRequest struct {
	SystemPrompt    string
	UserMessage     string
	Temperature     float64
	MaxOutputTokens int
}

// Summary is the structured digest produced for a transcript.
type Summary struct {
	ShortSummary string   `json:"short_summary"`
	KeyPoints    []string `json:"key_points"`
	ActionItems  []string `json:"action_items"`
}
