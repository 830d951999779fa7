package summarize_test

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"
	"unicode/utf8"

	"github.com/kiranshivaraju/scribe/internal/summarize"
	"github.com/kiranshivaraju/scribe/internal/summarize/mock"
	"github.com/kiranshivaraju/scribe/pkg/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeTimer fires immediately and records every requested wait.
type fakeTimer struct {
	mu    sync.Mutex
	waits []time.Duration
	c     chan time.Time
}

func newFakeTimer() *fakeTimer {
	return &fakeTimer{c: make(chan time.Time, 1)}
}

func (f *fakeTimer) Start(d time.Duration) {
	f.mu.Lock()
	f.waits = append(f.waits, d)
	f.mu.Unlock()
	f.c <- time.Time{}
}

func (f *fakeTimer) Stop() {}

func (f *fakeTimer) C() <-chan time.Time { return f.c }

func (f *fakeTimer) total() time.Duration {
	f.mu.Lock()
	defer f.mu.Unlock()
	var sum time.Duration
	for _, w := range f.waits {
		sum += w
	}
	return sum
}

const meeting = "Hola. Esto es una prueba. Vamos a revisar el presupuesto."

func TestSummarize_ExternalSuccess(t *testing.T) {
	p := mock.NewMockProvider()
	timer := newFakeTimer()
	e := summarize.NewEngine(p, summarize.WithTimer(timer), summarize.WithSampling(0.3, 512))

	got := e.Summarize(context.Background(), meeting, models.SummaryMethodExternal)

	assert.Equal(t, models.Summary{
		ShortSummary: "Mock summary of the meeting.",
		KeyPoints:    []string{"Budget reviewed", "Timeline agreed"},
		ActionItems:  []string{"Send minutes"},
	}, got)
	require.Equal(t, 1, p.Calls())
	req := p.Requests()[0]
	assert.Contains(t, req.UserMessage, meeting)
	assert.NotContains(t, req.UserMessage, "cut to fit")
	assert.Contains(t, req.SystemPrompt, "short_summary")
	assert.InDelta(t, 0.3, req.Temperature, 1e-9)
	assert.Equal(t, 512, req.MaxOutputTokens)
	assert.Empty(t, timer.waits)
}

func TestSummarize_RetriesWithBackoffThenSucceeds(t *testing.T) {
	callErr := errors.New("503 service unavailable")
	p := mock.NewScriptedProvider(
		mock.Step{Err: callErr},
		mock.Step{Err: callErr},
		mock.Step{Reply: `{"short_summary":"ok","key_points":["a"],"action_items":[]}`},
	)
	timer := newFakeTimer()
	e := summarize.NewEngine(p, summarize.WithTimer(timer))

	got := e.Summarize(context.Background(), meeting, models.SummaryMethodExternal)

	assert.Equal(t, "ok", got.ShortSummary)
	assert.Equal(t, []string{"a"}, got.KeyPoints)
	assert.Equal(t, []string{}, got.ActionItems)
	assert.Equal(t, 3, p.Calls())
	assert.Equal(t, []time.Duration{5 * time.Second, 10 * time.Second}, timer.waits)
	assert.Equal(t, 15*time.Second, timer.total())
}

func TestSummarize_AllAttemptsFailFallsBackToLocal(t *testing.T) {
	p := mock.NewFailingProvider(errors.New("connection refused"))
	timer := newFakeTimer()
	e := summarize.NewEngine(p, summarize.WithTimer(timer))

	got := e.Summarize(context.Background(), meeting, models.SummaryMethodExternal)

	assert.Equal(t, summarize.LocalSummary(meeting), got)
	assert.Equal(t, 3, p.Calls())
	assert.Equal(t, 15*time.Second, timer.total())
}

func TestSummarize_ParseFailureFallsBackWithoutRetry(t *testing.T) {
	p := mock.NewScriptedProvider(mock.Step{Reply: "I cannot produce JSON today"})
	timer := newFakeTimer()
	e := summarize.NewEngine(p, summarize.WithTimer(timer))

	got := e.Summarize(context.Background(), meeting, models.SummaryMethodExternal)

	assert.Equal(t, summarize.LocalSummary(meeting), got)
	assert.Equal(t, 1, p.Calls())
	assert.Empty(t, timer.waits)
}

func TestSummarize_RejectedRequestFallsBackWithoutRetry(t *testing.T) {
	p := mock.NewFailingProvider(fmt.Errorf("%w: http 401: invalid api key", summarize.ErrRequestRejected))
	timer := newFakeTimer()
	e := summarize.NewEngine(p, summarize.WithTimer(timer))

	got := e.Summarize(context.Background(), meeting, models.SummaryMethodExternal)

	assert.Equal(t, summarize.LocalSummary(meeting), got)
	assert.Equal(t, 1, p.Calls())
	assert.Empty(t, timer.waits)
}

func TestSummarize_LocalMethodSkipsProvider(t *testing.T) {
	p := mock.NewMockProvider()
	e := summarize.NewEngine(p)

	got := e.Summarize(context.Background(), meeting, models.SummaryMethodLocal)

	assert.Equal(t, summarize.LocalSummary(meeting), got)
	assert.Equal(t, 0, p.Calls())
}

func TestSummarize_NilProviderUsesLocal(t *testing.T) {
	e := summarize.NewEngine(nil)

	got := e.Summarize(context.Background(), meeting, models.SummaryMethodExternal)

	assert.Equal(t, summarize.LocalSummary(meeting), got)
}

func TestSummarize_TruncatesLongTranscripts(t *testing.T) {
	p := mock.NewMockProvider()
	e := summarize.NewEngine(p, summarize.WithBudget(1000), summarize.WithTimer(newFakeTimer()))
	budget := summarize.Budget{MaxInputTokens: 1000}.Chars()
	transcript := strings.Repeat("ñ", budget+1)

	e.Summarize(context.Background(), transcript, models.SummaryMethodExternal)

	require.Equal(t, 1, p.Calls())
	msg := p.Requests()[0].UserMessage
	assert.Contains(t, msg, "cut to fit")
	forwarded := msg[strings.Index(msg, "ñ"):]
	assert.Equal(t, budget-summarize.PromptReservation, utf8.RuneCountInString(forwarded))
}

func TestSummarize_CanceledContextFallsBack(t *testing.T) {
	p := mock.NewFailingProvider(errors.New("down"))
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	e := summarize.NewEngine(p, summarize.WithTimer(newFakeTimer()))

	got := e.Summarize(ctx, meeting, models.SummaryMethodExternal)

	assert.Equal(t, summarize.LocalSummary(meeting), got)
	assert.LessOrEqual(t, p.Calls(), 1)
}

func TestParseMethod(t *testing.T) {
	tests := []struct {
		in   string
		want models.SummaryMethod
	}{
		{"", models.SummaryMethodLocal},
		{"external", models.SummaryMethodExternal},
		{"GPT", models.SummaryMethodExternal},
		{"deepseek", models.SummaryMethodExternal},
		{"openai", models.SummaryMethodExternal},
		{" local ", models.SummaryMethodLocal},
	}
	for _, tt := range tests {
		got, err := summarize.ParseMethod(tt.in, models.SummaryMethodLocal)
		require.NoError(t, err, tt.in)
		assert.Equal(t, tt.want, got, tt.in)
	}

	_, err := summarize.ParseMethod("bart", models.SummaryMethodExternal)
	assert.ErrorIs(t, err, summarize.ErrUnknownMethod)
}
