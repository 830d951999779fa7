// Package summarize turns transcript text into a short summary, key points
// and action items, using an external chat provider with retry and a local
// heuristic fallback.
package summarize

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/kiranshivaraju/scribe/pkg/models"
)

const (
	defaultAttempts       = 3
	defaultInitialBackoff = 5 * time.Second
	defaultTemperature    = 0.3
	defaultMaxOutput      = 1024
	defaultMaxInputTokens = 30000
)

// Engine produces summaries. A nil provider makes every external request
// degrade to LocalSummary.
type Engine struct {
	provider        models.CompletionProvider
	budget          Budget
	temperature     float64
	maxOutputTokens int
	attempts        int
	initialBackoff  time.Duration
	timer           backoff.Timer
}

// Option customizes the engine.
type Option func(*Engine)

// WithBudget sets the input token limit.
func WithBudget(maxInputTokens int) Option {
	return func(e *Engine) {
		if maxInputTokens > 0 {
			e.budget = Budget{MaxInputTokens: maxInputTokens}
		}
	}
}

// WithSampling sets temperature and the output token cap.
func WithSampling(temperature float64, maxOutputTokens int) Option {
	return func(e *Engine) {
		e.temperature = temperature
		if maxOutputTokens > 0 {
			e.maxOutputTokens = maxOutputTokens
		}
	}
}

// WithTimer overrides how backoff waits are performed (useful for tests).
func WithTimer(t backoff.Timer) Option {
	return func(e *Engine) {
		e.timer = t
	}
}

// NewEngine returns an Engine calling provider, which may be nil.
func NewEngine(provider models.CompletionProvider, opts ...Option) *Engine {
	e := &Engine{
		provider:        provider,
		budget:          Budget{MaxInputTokens: defaultMaxInputTokens},
		temperature:     defaultTemperature,
		maxOutputTokens: defaultMaxOutput,
		attempts:        defaultAttempts,
		initialBackoff:  defaultInitialBackoff,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Summarize never fails: any external failure yields LocalSummary(transcript).
func (e *Engine) Summarize(ctx context.Context, transcript string, method models.SummaryMethod) models.Summary {
	if method != models.SummaryMethodExternal {
		return LocalSummary(transcript)
	}
	if e.provider == nil {
		slog.Warn("no summary provider configured, using local summary")
		return LocalSummary(transcript)
	}

	summary, err := e.external(ctx, transcript)
	if err != nil {
		slog.Warn("external summary failed, using local summary",
			"provider", e.provider.Name(),
			"error", err,
		)
		return LocalSummary(transcript)
	}
	return summary
}

func (e *Engine) external(ctx context.Context, transcript string) (models.Summary, error) {
	input, truncated := e.budget.Fit(transcript)
	if truncated {
		slog.Info("transcript truncated for summary",
			"budget_chars", e.budget.Chars(),
			"forwarded_chars", len([]rune(input)),
		)
	}
	req := models.CompletionRequest{
		SystemPrompt:    systemPrompt,
		UserMessage:     userMessage(input, truncated),
		Temperature:     e.temperature,
		MaxOutputTokens: e.maxOutputTokens,
	}

	var summary models.Summary
	attempt := 0
	op := func() error {
		attempt++
		content, err := e.provider.CompleteJSON(ctx, req)
		if err != nil {
			if errors.Is(err, ErrRequestRejected) {
				return backoff.Permanent(err)
			}
			if !errors.Is(err, ErrCallFailed) {
				err = fmt.Errorf("%w: %w", ErrCallFailed, err)
			}
			return err
		}
		parsed, err := parseSummary(content)
		if err != nil {
			// The same prompt yields the same malformed body; stop here.
			return backoff.Permanent(fmt.Errorf("%w: %w", ErrParseFailed, err))
		}
		summary = parsed
		return nil
	}
	notify := func(err error, wait time.Duration) {
		slog.Warn("summary attempt failed, retrying",
			"provider", e.provider.Name(),
			"attempt", attempt,
			"wait", wait.String(),
			"error", err,
		)
	}

	if err := backoff.RetryNotifyWithTimer(op, e.newBackOff(ctx), notify, e.timer); err != nil {
		return models.Summary{}, fmt.Errorf("after %d attempt(s): %w", attempt, err)
	}
	return summary, nil
}

// newBackOff yields initialBackoff, then doubles, for attempts-1 retries.
func (e *Engine) newBackOff(ctx context.Context) backoff.BackOff {
	eb := backoff.NewExponentialBackOff()
	eb.InitialInterval = e.initialBackoff
	eb.Multiplier = 2
	eb.RandomizationFactor = 0
	eb.MaxInterval = e.initialBackoff << uint(e.attempts)
	eb.MaxElapsedTime = 0
	if e.attempts <= 1 {
		return backoff.WithContext(&backoff.StopBackOff{}, ctx)
	}
	return backoff.WithContext(backoff.WithMaxRetries(eb, uint64(e.attempts-1)), ctx)
}
