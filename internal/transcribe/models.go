package transcribe

import "strings"

// modelAliases maps the selectors accepted at intake to provider model
// names. Selectors not listed are passed through unchanged.
var modelAliases = map[string]string{
	"tiny":     "whisper-tiny",
	"base":     "base",
	"small":    "whisper-small",
	"medium":   "whisper-medium",
	"large":    "whisper-large",
	"enhanced": "enhanced",
	"nova":     "nova",
	"nova-2":   "nova-2",
	"nova-3":   "nova-3",
}

// ResolveModel returns the provider model for selector, or fallback when
// selector is empty.
func ResolveModel(selector, fallback string) string {
	s := strings.ToLower(strings.TrimSpace(selector))
	if s == "" {
		return fallback
	}
	if m, ok := modelAliases[s]; ok {
		return m
	}
	return strings.TrimSpace(selector)
}
