package summarize

import (
	"strings"
	"testing"
	"unicode/utf8"

	"github.com/stretchr/testify/assert"
)

func TestBudget_Chars(t *testing.T) {
	assert.Equal(t, 105000, Budget{MaxInputTokens: 30000}.Chars())
	assert.Equal(t, 3, Budget{MaxInputTokens: 1}.Chars())
}

func TestBudget_FitWithinBudget(t *testing.T) {
	b := Budget{MaxInputTokens: 1000}
	text := strings.Repeat("a", b.Chars())

	got, truncated := b.Fit(text)

	assert.False(t, truncated)
	assert.Equal(t, text, got)
}

func TestBudget_FitOverBudget(t *testing.T) {
	b := Budget{MaxInputTokens: 1000}
	text := strings.Repeat("é", b.Chars()+50)

	got, truncated := b.Fit(text)

	assert.True(t, truncated)
	assert.Equal(t, b.Chars()-PromptReservation, utf8.RuneCountInString(got))
	assert.True(t, utf8.ValidString(got))
	assert.LessOrEqual(t, utf8.RuneCountInString(got), b.Chars())
}

func TestBudget_ReservationLargerThanBudget(t *testing.T) {
	b := Budget{MaxInputTokens: 10}

	got, truncated := b.Fit(strings.Repeat("x", 100))

	assert.True(t, truncated)
	assert.Equal(t, "", got)
}

func TestTruncateRunes(t *testing.T) {
	assert.Equal(t, "añ", truncateRunes("añob", 2))
	assert.Equal(t, "ab", truncateRunes("ab", 5))
	assert.Equal(t, "", truncateRunes("ab", 0))
}
