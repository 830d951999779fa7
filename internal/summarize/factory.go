package summarize

import (
	"fmt"
	"strings"

	"github.com/kiranshivaraju/scribe/internal/config"
	"github.com/kiranshivaraju/scribe/pkg/models"
)

type providerDefaults struct {
	baseURL     string
	model       string
	keyRequired bool
}

var defaults = map[string]providerDefaults{
	"deepseek": {baseURL: "https://api.deepseek.com", model: "deepseek-chat", keyRequired: true},
	"openai":   {baseURL: "https://api.openai.com/v1", model: "gpt-4o-mini", keyRequired: true},
	"ollama":   {baseURL: "http://localhost:11434/v1", model: "llama3"},
}

// NewProvider constructs the chat provider named by cfg.Provider.
// Called once at server startup. Returns ErrProviderNotConfigured when the
// provider needs an API key and none is set; callers then run local-only.
func NewProvider(cfg config.SummaryConfig) (models.CompletionProvider, error) {
	name := strings.ToLower(strings.TrimSpace(cfg.Provider))
	d, ok := defaults[name]
	if !ok {
		return nil, fmt.Errorf("unknown summary provider %q: must be one of deepseek, openai, ollama", cfg.Provider)
	}
	if d.keyRequired && strings.TrimSpace(cfg.APIKey) == "" {
		return nil, fmt.Errorf("%w: %s requires SUMMARY_API_KEY", ErrProviderNotConfigured, name)
	}

	baseURL := cfg.BaseURL
	if baseURL == "" {
		baseURL = d.baseURL
	}
	model := cfg.Model
	if model == "" {
		model = d.model
	}
	return NewChatClient(ChatConfig{
		Name:    name,
		APIKey:  cfg.APIKey,
		BaseURL: baseURL,
		Model:   model,
		Timeout: cfg.Timeout,
	}), nil
}
