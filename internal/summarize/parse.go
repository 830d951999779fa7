package summarize

import (
	"encoding/json"
	"errors"
	"fmt"
	"slices"
	"strings"

	"github.com/kiranshivaraju/scribe/pkg/models"
)

// parseSummary decodes a provider reply into a Summary. The summary field
// is coerced to a string and both lists to non-empty trimmed strings.
func parseSummary(content string) (models.Summary, error) {
	doc, err := extractObject(content)
	if err != nil {
		return models.Summary{}, err
	}
	return models.Summary{
		ShortSummary: coerceString(doc["short_summary"]),
		KeyPoints:    coerceList(doc["key_points"]),
		ActionItems:  coerceList(doc["action_items"]),
	}, nil
}

func coerceString(v any) string {
	switch t := v.(type) {
	case nil:
		return ""
	case string:
		return strings.TrimSpace(t)
	case float64, bool:
		return fmt.Sprint(t)
	case []any:
		return strings.Join(coerceList(t), " ")
	}
	b, err := json.Marshal(v)
	if err != nil {
		return fmt.Sprint(v)
	}
	return string(b)
}

// coerceList accepts an array or a newline-separated string.
func coerceList(v any) []string {
	out := []string{}
	switch t := v.(type) {
	case []any:
		for _, item := range t {
			if s := coerceString(item); s != "" {
				out = append(out, s)
			}
		}
	case string:
		for _, line := range strings.Split(t, "\n") {
			if s := strings.TrimSpace(line); s != "" {
				out = append(out, s)
			}
		}
	case nil:
	default:
		if s := coerceString(t); s != "" {
			out = append(out, s)
		}
	}
	return out
}

// extractObject finds the JSON object in a model reply. Replies are tried
// as-is, then without a markdown fence, then trimmed to the outermost braces.
func extractObject(content string) (map[string]any, error) {
	reply := strings.TrimSpace(content)
	if reply == "" {
		return nil, errors.New("empty reply")
	}
	var lastErr error
	for _, candidate := range objectCandidates(reply) {
		var doc map[string]any
		if err := json.Unmarshal([]byte(candidate), &doc); err != nil {
			lastErr = err
			continue
		}
		if doc == nil {
			lastErr = errors.New("reply is JSON null")
			continue
		}
		return doc, nil
	}
	return nil, fmt.Errorf("no JSON object in reply %q: %w", excerpt(reply), lastErr)
}

func objectCandidates(reply string) []string {
	candidates := []string{reply}
	add := func(s string) {
		s = strings.TrimSpace(s)
		if s != "" && !slices.Contains(candidates, s) {
			candidates = append(candidates, s)
		}
	}
	body := unfence(reply)
	add(body)
	if open, end := strings.IndexByte(body, '{'), strings.LastIndexByte(body, '}'); open >= 0 && end > open {
		add(body[open : end+1])
	}
	return candidates
}

// unfence returns the inside of a ``` block, dropping the info string on
// the opening line. Other replies come back unchanged.
func unfence(reply string) string {
	rest, ok := strings.CutPrefix(reply, "```")
	if !ok {
		return reply
	}
	if nl := strings.IndexByte(rest, '\n'); nl >= 0 {
		rest = rest[nl+1:]
	}
	if end := strings.LastIndex(rest, "```"); end >= 0 {
		rest = rest[:end]
	}
	return rest
}

func excerpt(s string) string {
	const maxRunes = 120
	if r := []rune(s); len(r) > maxRunes {
		return string(r[:maxRunes]) + "..."
	}
	return s
}
