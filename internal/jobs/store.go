// Package jobs holds the in-process table of audio jobs and the handles of
// the background runs that own them. Jobs live only as long as the process.
package jobs

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/kiranshivaraju/scribe/pkg/models"
)

var (
	ErrNotFound          = errors.New("job not found")
	ErrNotReady          = errors.New("job results not ready")
	ErrInvalidTransition = errors.New("invalid job status transition")
	ErrDuplicateID       = errors.New("job id already exists")
	ErrTaskRunning       = errors.New("job already has a running task")
)

const mirrorTimeout = 2 * time.Second

// next is the single forward successor of every non-terminal status.
var next = map[models.JobStatus]models.JobStatus{
	models.JobStatusUploaded:              models.JobStatusProcessingAudio,
	models.JobStatusProcessingAudio:       models.JobStatusTranscribing,
	models.JobStatusTranscribing:          models.JobStatusTranscriptionComplete,
	models.JobStatusTranscriptionComplete: models.JobStatusSummarizing,
	models.JobStatusSummarizing:           models.JobStatusCompleted,
}

// StatusMirror receives a best-effort copy of every status change.
type StatusMirror interface {
	SetJobStatus(ctx context.Context, jobID string, status string, ttl time.Duration) error
}

// Task is the handle of one background run.
type Task struct {
	JobID     string
	StartedAt time.Time
	done      chan struct{}
}

// Done is closed when the run returns.
func (t *Task) Done() <-chan struct{} { return t.done }

// Store is a concurrency-safe job table. Reads return copies; only the
// methods below mutate a job.
type Store struct {
	mu    sync.RWMutex
	jobs  map[string]*models.Job
	tasks map[string]*Task
	wg    sync.WaitGroup

	mirror    StatusMirror
	mirrorTTL time.Duration
	now       func() time.Time
}

// Option customizes a Store.
type Option func(*Store)

// WithMirror copies status changes to m with the given TTL.
func WithMirror(m StatusMirror, ttl time.Duration) Option {
	return func(s *Store) {
		s.mirror = m
		s.mirrorTTL = ttl
	}
}

// WithClock overrides the time source.
func WithClock(now func() time.Time) Option {
	return func(s *Store) { s.now = now }
}

// NewStore creates an empty job table.
func NewStore(opts ...Option) *Store {
	s := &Store{
		jobs:  make(map[string]*models.Job),
		tasks: make(map[string]*Task),
		now:   time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Create inserts job with status uploaded and empty pending results. A fresh
// id is generated when job.ID is empty.
func (s *Store) Create(job models.Job) (models.Job, error) {
	if job.ID == "" {
		job.ID = uuid.NewString()
	}
	now := s.now()
	job.Status = models.JobStatusUploaded
	job.Error = ""
	job.Results = &models.JobResults{
		Utterances:    []models.Utterance{},
		KeyPoints:     []string{},
		ActionItems:   []string{},
		SummaryStatus: models.SummaryStatusPending,
	}
	job.CreatedAt = now
	job.UpdatedAt = now

	s.mu.Lock()
	if _, exists := s.jobs[job.ID]; exists {
		s.mu.Unlock()
		return models.Job{}, fmt.Errorf("%w: %s", ErrDuplicateID, job.ID)
	}
	stored := job.Clone()
	s.jobs[job.ID] = &stored
	s.mu.Unlock()

	s.mirrorStatus(job.ID, job.Status)
	return job.Clone(), nil
}

// Get returns a copy of the job.
func (s *Store) Get(id string) (models.Job, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	job, ok := s.jobs[id]
	if !ok {
		return models.Job{}, ErrNotFound
	}
	return job.Clone(), nil
}

// Status returns the current status and, for failed jobs, the error message.
func (s *Store) Status(id string) (models.JobStatus, string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	job, ok := s.jobs[id]
	if !ok {
		return "", "", ErrNotFound
	}
	return job.Status, job.Error, nil
}

// Result returns the job's results once a transcript exists.
func (s *Store) Result(id string) (models.JobResults, error) {
	job, err := s.Get(id)
	if err != nil {
		return models.JobResults{}, err
	}
	if !job.Status.HasTranscript() || job.Results == nil {
		return models.JobResults{}, fmt.Errorf("%w: status %s", ErrNotReady, job.Status)
	}
	return *job.Results, nil
}

// Transition moves the job one step forward. The two result-bearing states
// are reached only through CompleteTranscription and CompleteSummary.
func (s *Store) Transition(id string, to models.JobStatus) error {
	if to == models.JobStatusTranscriptionComplete || to == models.JobStatusCompleted {
		return fmt.Errorf("%w: %s requires results", ErrInvalidTransition, to)
	}
	return s.update(id, to, nil)
}

// Fail moves a non-terminal job to the error state.
func (s *Store) Fail(id string, cause error) error {
	msg := "unknown error"
	if cause != nil {
		msg = cause.Error()
	}
	return s.update(id, models.JobStatusError, func(j *models.Job) {
		j.Error = msg
	})
}

// CompleteTranscription records the transcript and utterances and moves the
// job to transcription_complete in one step.
func (s *Store) CompleteTranscription(id, transcript string, utterances []models.Utterance) error {
	if utterances == nil {
		utterances = []models.Utterance{}
	}
	return s.update(id, models.JobStatusTranscriptionComplete, func(j *models.Job) {
		j.Results.Transcript = transcript
		j.Results.Utterances = utterances
	})
}

// CompleteSummary records the summary and moves the job to completed.
func (s *Store) CompleteSummary(id string, summary models.Summary) error {
	return s.update(id, models.JobStatusCompleted, func(j *models.Job) {
		j.Results.ShortSummary = summary.ShortSummary
		j.Results.KeyPoints = nonNil(summary.KeyPoints)
		j.Results.ActionItems = nonNil(summary.ActionItems)
		j.Results.SummaryStatus = models.SummaryStatusComplete
	})
}

func (s *Store) update(id string, to models.JobStatus, apply func(*models.Job)) error {
	s.mu.Lock()
	job, ok := s.jobs[id]
	if !ok {
		s.mu.Unlock()
		return ErrNotFound
	}
	from := job.Status
	if !allowed(from, to) {
		s.mu.Unlock()
		return fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, from, to)
	}
	if job.Results == nil {
		job.Results = &models.JobResults{SummaryStatus: models.SummaryStatusPending}
	}
	if apply != nil {
		apply(job)
	}
	job.Status = to
	job.UpdatedAt = s.now()
	s.mu.Unlock()

	slog.Info("job status changed", "job_id", id, "from", from, "to", to)
	s.mirrorStatus(id, to)
	return nil
}

func allowed(from, to models.JobStatus) bool {
	if from.Terminal() {
		return false
	}
	if to == models.JobStatusError {
		return true
	}
	return next[from] == to
}

func (s *Store) mirrorStatus(id string, status models.JobStatus) {
	if s.mirror == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), mirrorTimeout)
	defer cancel()
	if err := s.mirror.SetJobStatus(ctx, id, string(status), s.mirrorTTL); err != nil {
		slog.Warn("mirror job status", "job_id", id, "status", status, "error", err)
	}
}

// Go starts run in the background as the task owning job id. At most one
// task per job may be running.
func (s *Store) Go(id string, run func()) (*Task, error) {
	s.mu.Lock()
	if _, ok := s.jobs[id]; !ok {
		s.mu.Unlock()
		return nil, ErrNotFound
	}
	if t, ok := s.tasks[id]; ok {
		select {
		case <-t.done:
		default:
			s.mu.Unlock()
			return nil, ErrTaskRunning
		}
	}
	task := &Task{JobID: id, StartedAt: s.now(), done: make(chan struct{})}
	s.tasks[id] = task
	s.wg.Add(1)
	s.mu.Unlock()

	go func() {
		defer s.wg.Done()
		defer close(task.done)
		run()
	}()
	return task, nil
}

// Task returns the handle of the job's most recent run.
func (s *Store) Task(id string) (*Task, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	t, ok := s.tasks[id]
	return t, ok
}

// Wait blocks until every started task returns or ctx is done.
func (s *Store) Wait(ctx context.Context) error {
	done := make(chan struct{})
	go func() {
		s.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Len returns the number of jobs held.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.jobs)
}

// Clear drops every job and task handle. Called at shutdown.
func (s *Store) Clear() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.jobs = make(map[string]*models.Job)
	s.tasks = make(map[string]*Task)
}

func nonNil(in []string) []string {
	if in == nil {
		return []string{}
	}
	return in
}
