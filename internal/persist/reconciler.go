// Package persist writes completed jobs to the durable transcription store.
package persist

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/kiranshivaraju/scribe/pkg/models"
)

var ErrNotCompleted = errors.New("job is not completed")

// Upserter is the store operation the reconciler needs.
type Upserter interface {
	UpsertTranscription(ctx context.Context, rec *models.PersistedTranscription) (bool, error)
}

// Reconciler upserts completed jobs keyed by job id.
type Reconciler struct {
	store Upserter
	now   func() time.Time
}

// New creates a Reconciler.
func New(store Upserter) *Reconciler {
	return &Reconciler{store: store, now: time.Now}
}

// Upsert inserts a record for the job or, when one already exists under the
// job id, refreshes its summary fields and utterances.
func (r *Reconciler) Upsert(ctx context.Context, job models.Job) error {
	if job.Status != models.JobStatusCompleted || job.Results == nil {
		return fmt.Errorf("%w: %s is %s", ErrNotCompleted, job.ID, job.Status)
	}
	rec := Record(job, r.now().UTC())

	inserted, err := r.store.UpsertTranscription(ctx, rec)
	if err != nil {
		return fmt.Errorf("upsert transcription %s: %w", job.ID, err)
	}
	slog.Info("transcription persisted", "job_id", job.ID, "inserted", inserted)
	return nil
}

// Record maps a completed job to its durable form.
func Record(job models.Job, now time.Time) *models.PersistedTranscription {
	res := job.Results
	return &models.PersistedTranscription{
		ID:               job.ID,
		Title:            "Transcription of " + job.OriginalFilename,
		OriginalFilename: job.OriginalFilename,
		AudioPath:        job.SourceFilePath,
		TranscriptText:   res.Transcript,
		ShortSummary:     res.ShortSummary,
		KeyPoints:        res.KeyPoints,
		ActionItems:      res.ActionItems,
		Utterances:       res.Utterances,
		OwnerID:          job.OwnerID,
		ProjectID:        job.ProjectID,
		CreatedAt:        now,
		UpdatedAt:        now,
	}
}
