package summarize

import (
	"fmt"
	"strings"

	"github.com/kiranshivaraju/scribe/pkg/models"
)

// ParseMethod maps an intake selector to a SummaryMethod. "gpt", "deepseek"
// and "openai" are accepted as aliases for external; empty selects fallback.
func ParseMethod(selector string, fallback models.SummaryMethod) (models.SummaryMethod, error) {
	switch strings.ToLower(strings.TrimSpace(selector)) {
	case "":
		return fallback, nil
	case "external", "gpt", "deepseek", "openai":
		return models.SummaryMethodExternal, nil
	case "local":
		return models.SummaryMethodLocal, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrUnknownMethod, selector)
	}
}
