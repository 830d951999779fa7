package pipeline

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/kiranshivaraju/scribe/internal/audio"
	"github.com/kiranshivaraju/scribe/internal/jobs"
	"github.com/kiranshivaraju/scribe/internal/summarize"
	"github.com/kiranshivaraju/scribe/internal/transcribe"
	"github.com/kiranshivaraju/scribe/pkg/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// ─── fakes ───────────────────────────────────────────────────────────────────

type fakeAudio struct {
	fn func(ctx context.Context, path string) (string, error)
}

func (f *fakeAudio) Normalize(ctx context.Context, path string) (string, error) {
	if f.fn != nil {
		return f.fn(ctx, path)
	}
	return path, nil
}

type fakeTranscriber struct {
	mu    sync.Mutex
	fn    func(ctx context.Context, path, model string) (string, []models.Utterance, error)
	model string
}

func (f *fakeTranscriber) Transcribe(ctx context.Context, path, model string) (string, []models.Utterance, error) {
	f.mu.Lock()
	f.model = model
	f.mu.Unlock()
	if f.fn != nil {
		return f.fn(ctx, path, model)
	}
	return "T", nil, nil
}

type fakeSummarizer struct {
	mu     sync.Mutex
	fn     func(transcript string, method models.SummaryMethod) models.Summary
	method models.SummaryMethod
}

func (f *fakeSummarizer) Summarize(_ context.Context, transcript string, method models.SummaryMethod) models.Summary {
	f.mu.Lock()
	f.method = method
	f.mu.Unlock()
	if f.fn != nil {
		return f.fn(transcript, method)
	}
	return summarize.LocalSummary(transcript)
}

type fakeReconciler struct {
	mu   sync.Mutex
	jobs []models.Job
	err  error
}

func (f *fakeReconciler) Upsert(_ context.Context, job models.Job) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.jobs = append(f.jobs, job)
	return f.err
}

type statusLog struct {
	mu       sync.Mutex
	statuses []string
}

func (l *statusLog) SetJobStatus(_ context.Context, _ string, status string, _ time.Duration) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.statuses = append(l.statuses, status)
	return nil
}

func (l *statusLog) seen() []string {
	l.mu.Lock()
	defer l.mu.Unlock()
	return append([]string(nil), l.statuses...)
}

type harness struct {
	jobs        *jobs.Store
	log         *statusLog
	audio       *fakeAudio
	transcriber *fakeTranscriber
	summarizer  *fakeSummarizer
	reconciler  *fakeReconciler
	pauses      []time.Duration
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	log := &statusLog{}
	return &harness{
		jobs:        jobs.NewStore(jobs.WithMirror(log, time.Minute)),
		log:         log,
		audio:       &fakeAudio{},
		transcriber: &fakeTranscriber{},
		summarizer:  &fakeSummarizer{},
		reconciler:  &fakeReconciler{},
	}
}

func (h *harness) pipeline(opts ...Option) *Pipeline {
	opts = append([]Option{WithSleeper(func(_ context.Context, d time.Duration) error {
		h.pauses = append(h.pauses, d)
		return nil
	})}, opts...)
	return New(h.jobs, h.audio, h.transcriber, h.summarizer, h.reconciler, opts...)
}

func (h *harness) create(t *testing.T, method models.SummaryMethod) string {
	t.Helper()
	job, err := h.jobs.Create(models.Job{
		OriginalFilename: "call.mp3",
		SourceFilePath:   "/uploads/call.mp3",
		ModelSelector:    "nova",
		SummaryMethod:    method,
		OwnerID:          "owner-a",
	})
	require.NoError(t, err)
	return job.ID
}

// ─── tests ───────────────────────────────────────────────────────────────────

func TestRun_CompletesAllStages(t *testing.T) {
	h := newHarness(t)
	h.transcriber.fn = func(_ context.Context, _, _ string) (string, []models.Utterance, error) {
		return "Hola. Esto es una prueba.", []models.Utterance{{Start: 0, End: 1, Transcript: "Hola."}}, nil
	}
	id := h.create(t, models.SummaryMethodLocal)

	require.NoError(t, h.pipeline().Run(context.Background(), id))

	assert.Equal(t, []string{
		"uploaded", "processing_audio", "transcribing", "transcription_complete",
		"summarizing", "completed",
	}, h.log.seen())
	assert.Equal(t, []time.Duration{DefaultVisibilityPause}, h.pauses)
	assert.Equal(t, "nova", h.transcriber.model)
	assert.Equal(t, models.SummaryMethodLocal, h.summarizer.method)

	res, err := h.jobs.Result(id)
	require.NoError(t, err)
	assert.Equal(t, "Hola. Esto es una prueba.", res.Transcript)
	assert.Equal(t, models.SummaryStatusComplete, res.SummaryStatus)
	assert.Equal(t, []string{"Hola."}, res.KeyPoints)

	require.Len(t, h.reconciler.jobs, 1)
	assert.Equal(t, models.JobStatusCompleted, h.reconciler.jobs[0].Status)
}

func TestRun_PartialResultsVisibleDuringPause(t *testing.T) {
	h := newHarness(t)
	id := h.create(t, models.SummaryMethodLocal)

	var during models.JobResults
	var duringStatus models.JobStatus
	p := New(h.jobs, h.audio, h.transcriber, h.summarizer, h.reconciler,
		WithSleeper(func(_ context.Context, _ time.Duration) error {
			var err error
			duringStatus, _, err = h.jobs.Status(id)
			require.NoError(t, err)
			during, err = h.jobs.Result(id)
			require.NoError(t, err)
			return nil
		}))

	require.NoError(t, p.Run(context.Background(), id))

	assert.Equal(t, models.JobStatusTranscriptionComplete, duringStatus)
	assert.Equal(t, models.JobResults{
		Transcript:    "T",
		Utterances:    []models.Utterance{},
		ShortSummary:  "",
		KeyPoints:     []string{},
		ActionItems:   []string{},
		SummaryStatus: models.SummaryStatusPending,
	}, during)
}

func TestRun_ZeroPauseSkipsSleep(t *testing.T) {
	h := newHarness(t)
	id := h.create(t, models.SummaryMethodLocal)

	require.NoError(t, h.pipeline(WithVisibilityPause(0)).Run(context.Background(), id))
	assert.Empty(t, h.pauses)
}

func TestRun_AudioFailureMarksError(t *testing.T) {
	h := newHarness(t)
	h.audio.fn = func(_ context.Context, _ string) (string, error) {
		return "", errors.Join(audio.ErrConversionFailed, errors.New("ffmpeg exited 1"))
	}
	id := h.create(t, models.SummaryMethodLocal)

	err := h.pipeline().Run(context.Background(), id)
	assert.ErrorIs(t, err, audio.ErrConversionFailed)

	status, msg, err := h.jobs.Status(id)
	require.NoError(t, err)
	assert.Equal(t, models.JobStatusError, status)
	assert.Contains(t, msg, "ffmpeg exited 1")
	assert.Equal(t, []string{"uploaded", "processing_audio", "error"}, h.log.seen())
	assert.Empty(t, h.reconciler.jobs)
}

func TestRun_TranscriptionFailureMarksError(t *testing.T) {
	h := newHarness(t)
	h.transcriber.fn = func(_ context.Context, _, _ string) (string, []models.Utterance, error) {
		return "", nil, transcribe.ErrTranscriptionFailed
	}
	id := h.create(t, models.SummaryMethodExternal)

	err := h.pipeline().Run(context.Background(), id)
	assert.ErrorIs(t, err, transcribe.ErrTranscriptionFailed)

	_, err = h.jobs.Result(id)
	assert.ErrorIs(t, err, jobs.ErrNotReady)
	assert.Equal(t, []string{"uploaded", "processing_audio", "transcribing", "error"}, h.log.seen())
}

func TestRun_PanicMarksError(t *testing.T) {
	h := newHarness(t)
	h.summarizer.fn = func(string, models.SummaryMethod) models.Summary {
		panic("summarizer exploded")
	}
	id := h.create(t, models.SummaryMethodLocal)

	err := h.pipeline().Run(context.Background(), id)
	require.Error(t, err)

	status, msg, err := h.jobs.Status(id)
	require.NoError(t, err)
	assert.Equal(t, models.JobStatusError, status)
	assert.Contains(t, msg, "summarizer exploded")
}

func TestRun_PersistenceFailureKeepsCompleted(t *testing.T) {
	h := newHarness(t)
	h.reconciler.err = errors.New("db down")
	id := h.create(t, models.SummaryMethodLocal)

	require.NoError(t, h.pipeline().Run(context.Background(), id))

	status, msg, err := h.jobs.Status(id)
	require.NoError(t, err)
	assert.Equal(t, models.JobStatusCompleted, status)
	assert.Empty(t, msg)
}

func TestRun_NilReconciler(t *testing.T) {
	h := newHarness(t)
	id := h.create(t, models.SummaryMethodLocal)
	p := New(h.jobs, h.audio, h.transcriber, h.summarizer, nil, WithVisibilityPause(0))

	require.NoError(t, p.Run(context.Background(), id))
	status, _, _ := h.jobs.Status(id)
	assert.Equal(t, models.JobStatusCompleted, status)
}

func TestRun_PauseInterruptedMarksError(t *testing.T) {
	h := newHarness(t)
	id := h.create(t, models.SummaryMethodLocal)
	p := New(h.jobs, h.audio, h.transcriber, h.summarizer, h.reconciler)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	err := p.Run(ctx, id)
	assert.ErrorIs(t, err, context.Canceled)

	status, _, _ := h.jobs.Status(id)
	assert.Equal(t, models.JobStatusError, status)
}

func TestRun_UnknownJob(t *testing.T) {
	h := newHarness(t)
	err := h.pipeline().Run(context.Background(), "missing")
	assert.ErrorIs(t, err, jobs.ErrNotFound)
}

func TestStart_RunsInBackground(t *testing.T) {
	h := newHarness(t)
	id := h.create(t, models.SummaryMethodLocal)

	task, err := h.pipeline(WithVisibilityPause(0)).Start(id)
	require.NoError(t, err)

	select {
	case <-task.Done():
	case <-time.After(5 * time.Second):
		t.Fatal("pipeline did not finish")
	}
	status, _, _ := h.jobs.Status(id)
	assert.Equal(t, models.JobStatusCompleted, status)
	require.NoError(t, h.jobs.Wait(context.Background()))
}

func TestStart_ConcurrentJobsAreIndependent(t *testing.T) {
	h := newHarness(t)
	h.transcriber.fn = func(_ context.Context, path, _ string) (string, []models.Utterance, error) {
		if path == "/uploads/bad.mp3" {
			return "", nil, transcribe.ErrTranscriptionFailed
		}
		return "ok.", nil, nil
	}
	p := New(h.jobs, h.audio, &fakeTranscriber{fn: h.transcriber.fn}, h.summarizer, nil, WithVisibilityPause(0))

	good := h.create(t, models.SummaryMethodLocal)
	bad, err := h.jobs.Create(models.Job{SourceFilePath: "/uploads/bad.mp3", SummaryMethod: models.SummaryMethodLocal})
	require.NoError(t, err)

	_, err = p.Start(good)
	require.NoError(t, err)
	_, err = p.Start(bad.ID)
	require.NoError(t, err)
	require.NoError(t, h.jobs.Wait(context.Background()))

	goodStatus, _, _ := h.jobs.Status(good)
	badStatus, _, _ := h.jobs.Status(bad.ID)
	assert.Equal(t, models.JobStatusCompleted, goodStatus)
	assert.Equal(t, models.JobStatusError, badStatus)
}
