// Package pipeline drives one audio job from upload to a persisted summary:
// audio normalization, transcription, a short visibility pause, then
// summarization and persistence.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"runtime/debug"
	"time"

	"github.com/kiranshivaraju/scribe/internal/jobs"
	"github.com/kiranshivaraju/scribe/pkg/models"
)

// DefaultVisibilityPause gives polling clients a window to observe
// transcription_complete before summarization starts.
const DefaultVisibilityPause = 3 * time.Second

// Preprocessor converts an uploaded file to mono 16 kHz PCM.
type Preprocessor interface {
	Normalize(ctx context.Context, inputPath string) (string, error)
}

// Transcriber turns normalized audio into text and utterances.
type Transcriber interface {
	Transcribe(ctx context.Context, path, modelSelector string) (string, []models.Utterance, error)
}

// Summarizer never fails; degraded input yields a local summary.
type Summarizer interface {
	Summarize(ctx context.Context, transcript string, method models.SummaryMethod) models.Summary
}

// Reconciler persists a completed job.
type Reconciler interface {
	Upsert(ctx context.Context, job models.Job) error
}

// Pipeline runs jobs held in a jobs.Store.
type Pipeline struct {
	jobs        *jobs.Store
	audio       Preprocessor
	transcriber Transcriber
	summarizer  Summarizer
	reconciler  Reconciler
	pause       time.Duration
	sleep       func(ctx context.Context, d time.Duration) error
}

// Option customizes a Pipeline.
type Option func(*Pipeline)

// WithVisibilityPause sets the pause between transcription and summarization.
// Zero disables it.
func WithVisibilityPause(d time.Duration) Option {
	return func(p *Pipeline) {
		if d >= 0 {
			p.pause = d
		}
	}
}

// WithSleeper replaces the function used to wait out the visibility pause.
func WithSleeper(sleep func(ctx context.Context, d time.Duration) error) Option {
	return func(p *Pipeline) { p.sleep = sleep }
}

// New creates a Pipeline. reconciler may be nil, in which case completed
// jobs stay in memory only.
func New(store *jobs.Store, audio Preprocessor, transcriber Transcriber, summarizer Summarizer, reconciler Reconciler, opts ...Option) *Pipeline {
	p := &Pipeline{
		jobs:        store,
		audio:       audio,
		transcriber: transcriber,
		summarizer:  summarizer,
		reconciler:  reconciler,
		pause:       DefaultVisibilityPause,
		sleep:       sleepContext,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Start runs the job in the background. The run is not tied to any request
// context and cannot be cancelled.
func (p *Pipeline) Start(jobID string) (*jobs.Task, error) {
	return p.jobs.Go(jobID, func() {
		_ = p.Run(context.Background(), jobID)
	})
}

// Run executes every stage for jobID. Any stage failure or panic moves the
// job to error and is returned.
func (p *Pipeline) Run(ctx context.Context, jobID string) (err error) {
	defer func() {
		if r := recover(); r != nil {
			slog.Error("pipeline panic recovered",
				"job_id", jobID,
				"error", r,
				"stack", string(debug.Stack()),
			)
			err = fmt.Errorf("pipeline panic: %v", r)
			p.fail(jobID, err)
		}
	}()

	start := time.Now()
	if err := p.run(ctx, jobID); err != nil {
		slog.Error("job failed", "job_id", jobID, "error", err)
		p.fail(jobID, err)
		return err
	}
	slog.Info("job completed", "job_id", jobID, "duration_ms", time.Since(start).Milliseconds())
	return nil
}

func (p *Pipeline) run(ctx context.Context, jobID string) error {
	job, err := p.jobs.Get(jobID)
	if err != nil {
		return err
	}

	if err := p.jobs.Transition(jobID, models.JobStatusProcessingAudio); err != nil {
		return err
	}
	normalized, err := p.audio.Normalize(ctx, job.SourceFilePath)
	if err != nil {
		return err
	}
	defer removeIntermediate(normalized, job.SourceFilePath)

	if err := p.jobs.Transition(jobID, models.JobStatusTranscribing); err != nil {
		return err
	}
	transcript, utterances, err := p.transcriber.Transcribe(ctx, normalized, job.ModelSelector)
	if err != nil {
		return err
	}
	if err := p.jobs.CompleteTranscription(jobID, transcript, utterances); err != nil {
		return err
	}

	if p.pause > 0 {
		if err := p.sleep(ctx, p.pause); err != nil {
			return fmt.Errorf("visibility pause: %w", err)
		}
	}

	if err := p.jobs.Transition(jobID, models.JobStatusSummarizing); err != nil {
		return err
	}
	summary := p.summarizer.Summarize(ctx, transcript, job.SummaryMethod)
	if err := p.jobs.CompleteSummary(jobID, summary); err != nil {
		return err
	}

	p.persist(ctx, jobID)
	return nil
}

// persist failures are logged only; the job stays completed.
func (p *Pipeline) persist(ctx context.Context, jobID string) {
	if p.reconciler == nil {
		return
	}
	job, err := p.jobs.Get(jobID)
	if err != nil {
		slog.Error("load job for persistence", "job_id", jobID, "error", err)
		return
	}
	if err := p.reconciler.Upsert(ctx, job); err != nil {
		slog.Error("persist transcription", "job_id", jobID, "error", err)
	}
}

func (p *Pipeline) fail(jobID string, cause error) {
	if err := p.jobs.Fail(jobID, cause); err != nil && !errors.Is(err, jobs.ErrInvalidTransition) {
		slog.Error("mark job failed", "job_id", jobID, "error", err)
	}
}

func removeIntermediate(normalized, source string) {
	if normalized == "" || normalized == source {
		return
	}
	if err := os.Remove(normalized); err != nil && !errors.Is(err, os.ErrNotExist) {
		slog.Warn("remove normalized audio", "path", normalized, "error", err)
	}
}

func sleepContext(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
