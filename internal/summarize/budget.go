package summarize

import "unicode/utf8"

const (
	// CharsPerToken is the conservative characters-per-token ratio used to
	// turn a token limit into a character budget.
	CharsPerToken = 3.5
	// PromptReservation is the number of characters kept free for the
	// system prompt and instructions when a transcript is cut.
	PromptReservation = 2000
)

// Budget bounds the transcript text forwarded to the provider.
// Lengths are counted in Unicode code points.
type Budget struct {
	MaxInputTokens int
}

// Chars returns the input character budget.
func (b Budget) Chars() int {
	return int(float64(b.MaxInputTokens) * CharsPerToken)
}

// Fit returns text unchanged when it is within the budget. Otherwise it
// returns the first Chars()-PromptReservation code points and true.
func (b Budget) Fit(text string) (string, bool) {
	limit := b.Chars()
	if utf8.RuneCountInString(text) <= limit {
		return text, false
	}
	keep := limit - PromptReservation
	if keep < 0 {
		keep = 0
	}
	return truncateRunes(text, keep), true
}

// truncateRunes keeps the first n code points of s.
func truncateRunes(s string, n int) string {
	i := 0
	for pos := range s {
		if i == n {
			return s[:pos]
		}
		i++
	}
	return s
}
