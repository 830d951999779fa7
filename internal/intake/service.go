// Package intake accepts uploaded audio, registers a job and starts its
// pipeline run.
package intake

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"mime"
	"strings"

	"github.com/google/uuid"
	"github.com/kiranshivaraju/scribe/internal/jobs"
	"github.com/kiranshivaraju/scribe/internal/summarize"
	"github.com/kiranshivaraju/scribe/pkg/models"
)

var (
	ErrUnsupportedMedia = errors.New("unsupported media type")
	ErrInvalidMethod    = errors.New("invalid summary method")
	ErrMissingFile      = errors.New("missing upload")
)

// Stager persists the uploaded bytes for the pipeline to read.
type Stager interface {
	Save(jobID, filename string, r io.Reader) (string, error)
	RemoveJob(jobID string) error
}

// Starter launches the background run for a registered job.
type Starter interface {
	Start(jobID string) (*jobs.Task, error)
}

// Request is one upload.
type Request struct {
	Filename      string
	ContentType   string
	Body          io.Reader
	ModelSelector string
	SummaryMethod string
	OwnerID       string
	ProjectID     *string
}

// Service wires staging, the job table and the pipeline together.
type Service struct {
	jobs          *jobs.Store
	stager        Stager
	starter       Starter
	defaultMethod models.SummaryMethod
}

// NewService creates an intake Service.
func NewService(store *jobs.Store, stager Stager, starter Starter, defaultMethod models.SummaryMethod) *Service {
	if defaultMethod == "" {
		defaultMethod = models.SummaryMethodExternal
	}
	return &Service{jobs: store, stager: stager, starter: starter, defaultMethod: defaultMethod}
}

// Submit validates req, stages the file under a fresh job id, registers the
// job and starts its pipeline. The returned job has status uploaded.
func (s *Service) Submit(req Request) (models.Job, error) {
	if req.Body == nil || strings.TrimSpace(req.Filename) == "" {
		return models.Job{}, ErrMissingFile
	}
	if !isAudioOrVideo(req.ContentType) {
		return models.Job{}, fmt.Errorf("%w: %q", ErrUnsupportedMedia, req.ContentType)
	}
	method, err := summarize.ParseMethod(req.SummaryMethod, s.defaultMethod)
	if err != nil {
		return models.Job{}, fmt.Errorf("%w: %w", ErrInvalidMethod, err)
	}

	id := uuid.NewString()
	path, err := s.stager.Save(id, req.Filename, req.Body)
	if err != nil {
		return models.Job{}, fmt.Errorf("stage upload: %w", err)
	}

	job, err := s.jobs.Create(models.Job{
		ID:               id,
		OriginalFilename: req.Filename,
		SourceFilePath:   path,
		ModelSelector:    req.ModelSelector,
		SummaryMethod:    method,
		OwnerID:          req.OwnerID,
		ProjectID:        req.ProjectID,
	})
	if err != nil {
		s.discard(id)
		return models.Job{}, fmt.Errorf("register job: %w", err)
	}

	if _, err := s.starter.Start(job.ID); err != nil {
		if failErr := s.jobs.Fail(job.ID, err); failErr != nil {
			slog.Error("mark unstarted job failed", "job_id", job.ID, "error", failErr)
		}
		return models.Job{}, fmt.Errorf("start pipeline: %w", err)
	}

	slog.Info("job accepted",
		"job_id", job.ID,
		"filename", job.OriginalFilename,
		"model", job.ModelSelector,
		"summary_method", job.SummaryMethod,
	)
	return job, nil
}

func (s *Service) discard(id string) {
	if err := s.stager.RemoveJob(id); err != nil {
		slog.Warn("remove staged upload", "job_id", id, "error", err)
	}
}

func isAudioOrVideo(contentType string) bool {
	mediaType, _, err := mime.ParseMediaType(contentType)
	if err != nil {
		return false
	}
	return strings.HasPrefix(mediaType, "audio/") || strings.HasPrefix(mediaType, "video/")
}
