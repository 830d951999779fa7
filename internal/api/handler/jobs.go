package handler

import (
	"context"
	"errors"
	"log/slog"
	"mime/multipart"
	"net/http"
	"path/filepath"
	"strings"

	"github.com/go-chi/chi/v5"
	mw "github.com/kiranshivaraju/scribe/internal/api/middleware"
	"github.com/kiranshivaraju/scribe/internal/api/response"
	"github.com/kiranshivaraju/scribe/internal/intake"
	"github.com/kiranshivaraju/scribe/internal/jobs"
	"github.com/kiranshivaraju/scribe/internal/uploads"
	"github.com/kiranshivaraju/scribe/pkg/models"
)

const multipartMemory = 32 << 20

// Submitter accepts new uploads.
type Submitter interface {
	Submit(req intake.Request) (models.Job, error)
}

// JobReader reads the in-process job table.
type JobReader interface {
	Get(id string) (models.Job, error)
	Result(id string) (models.JobResults, error)
}

// StatusMirror answers status queries for jobs this process does not hold.
type StatusMirror interface {
	GetJobStatus(ctx context.Context, jobID string) (string, bool, error)
}

// Jobs serves the job endpoints.
type Jobs struct {
	submitter Submitter
	jobs      JobReader
	mirror    StatusMirror
	maxBytes  int64
}

// NewJobs creates the job handlers. mirror may be nil.
func NewJobs(submitter Submitter, reader JobReader, mirror StatusMirror, maxUploadBytes int64) *Jobs {
	return &Jobs{submitter: submitter, jobs: reader, mirror: mirror, maxBytes: maxUploadBytes}
}

type submitResponse struct {
	JobID  string           `json:"job_id"`
	Status models.JobStatus `json:"status"`
}

// Submit handles POST /api/v1/jobs (multipart: file, model, summary_method, project_id).
func (h *Jobs) Submit(w http.ResponseWriter, r *http.Request) {
	if h.maxBytes > 0 {
		r.Body = http.MaxBytesReader(w, r.Body, h.maxBytes+multipartMemory)
	}
	if err := r.ParseMultipartForm(multipartMemory); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			response.Error(w, http.StatusRequestEntityTooLarge, "UPLOAD_TOO_LARGE", "Upload exceeds size limit", nil)
			return
		}
		response.Error(w, http.StatusBadRequest, "INVALID_REQUEST", "Expected a multipart form upload", nil)
		return
	}
	defer r.MultipartForm.RemoveAll()

	file, header, err := r.FormFile("file")
	if err != nil {
		response.Error(w, http.StatusBadRequest, "INVALID_REQUEST", "file is required", nil)
		return
	}
	defer file.Close()

	owner, _ := mw.GetOwnerID(r)
	req := intake.Request{
		Filename:      header.Filename,
		ContentType:   partContentType(header),
		Body:          file,
		ModelSelector: strings.TrimSpace(r.FormValue("model")),
		SummaryMethod: r.FormValue("summary_method"),
		OwnerID:       owner,
	}
	if p := strings.TrimSpace(r.FormValue("project_id")); p != "" {
		req.ProjectID = &p
	}

	job, err := h.submitter.Submit(req)
	if err != nil {
		switch {
		case errors.Is(err, intake.ErrMissingFile):
			response.Error(w, http.StatusBadRequest, "INVALID_REQUEST", "file is required", nil)
		case errors.Is(err, intake.ErrUnsupportedMedia):
			response.Error(w, http.StatusUnsupportedMediaType, "UNSUPPORTED_MEDIA_TYPE",
				"Only audio and video uploads are accepted", nil)
		case errors.Is(err, intake.ErrInvalidMethod):
			response.Error(w, http.StatusBadRequest, "INVALID_SUMMARY_METHOD",
				"summary_method must be external or local", nil)
		case errors.Is(err, uploads.ErrTooLarge):
			response.Error(w, http.StatusRequestEntityTooLarge, "UPLOAD_TOO_LARGE", "Upload exceeds size limit", nil)
		default:
			slog.Error("submit job", "error", err)
			response.Error(w, http.StatusInternalServerError, "INTERNAL_ERROR", "An unexpected error occurred", nil)
		}
		return
	}

	response.Accepted(w, submitResponse{JobID: job.ID, Status: job.Status})
}

type statusResponse struct {
	JobID  string `json:"job_id"`
	Status string `json:"status"`
	Error  string `json:"error,omitempty"`
}

// Status handles GET /api/v1/jobs/{jobID}/status.
func (h *Jobs) Status(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "jobID")
	if _, err := h.jobs.Get(id); errors.Is(err, jobs.ErrNotFound) {
		if status, ok := h.mirrored(r.Context(), id); ok {
			response.JSON(w, statusResponse{JobID: id, Status: status})
			return
		}
	}
	job, err := h.lookup(r, id)
	if err != nil {
		jobNotFound(w)
		return
	}
	response.JSON(w, statusResponse{JobID: job.ID, Status: string(job.Status), Error: job.Error})
}

type resultResponse struct {
	JobID string `json:"job_id"`
	models.JobResults
}

// Result handles GET /api/v1/jobs/{jobID}/result. Available from
// transcription_complete onward.
func (h *Jobs) Result(w http.ResponseWriter, r *http.Request) {
	job, err := h.lookup(r, chi.URLParam(r, "jobID"))
	if err != nil {
		jobNotFound(w)
		return
	}
	res, err := h.jobs.Result(job.ID)
	if err != nil {
		h.resultError(w, job, err)
		return
	}
	response.JSON(w, resultResponse{JobID: job.ID, JobResults: res})
}

type summaryResponse struct {
	JobID        string   `json:"job_id"`
	ShortSummary string   `json:"short_summary"`
	KeyPoints    []string `json:"key_points"`
	ActionItems  []string `json:"action_items"`
}

// Summary handles GET /api/v1/jobs/{jobID}/summary. Completed jobs only.
func (h *Jobs) Summary(w http.ResponseWriter, r *http.Request) {
	job, res, ok := h.completed(w, r)
	if !ok {
		return
	}
	response.JSON(w, summaryResponse{
		JobID:        job.ID,
		ShortSummary: res.ShortSummary,
		KeyPoints:    res.KeyPoints,
		ActionItems:  res.ActionItems,
	})
}

// Transcript handles GET /api/v1/jobs/{jobID}/transcript.txt. Completed jobs only.
func (h *Jobs) Transcript(w http.ResponseWriter, r *http.Request) {
	job, res, ok := h.completed(w, r)
	if !ok {
		return
	}
	response.Attachment(w, transcriptFilename(job.OriginalFilename), "text/plain; charset=utf-8", []byte(res.Transcript))
}

func (h *Jobs) completed(w http.ResponseWriter, r *http.Request) (models.Job, models.JobResults, bool) {
	job, err := h.lookup(r, chi.URLParam(r, "jobID"))
	if err != nil {
		jobNotFound(w)
		return models.Job{}, models.JobResults{}, false
	}
	if job.Status != models.JobStatusCompleted {
		notReady(w, job.Status)
		return models.Job{}, models.JobResults{}, false
	}
	res, err := h.jobs.Result(job.ID)
	if err != nil {
		h.resultError(w, job, err)
		return models.Job{}, models.JobResults{}, false
	}
	return job, res, true
}

// lookup hides jobs owned by someone else behind ErrNotFound.
func (h *Jobs) lookup(r *http.Request, id string) (models.Job, error) {
	job, err := h.jobs.Get(id)
	if err != nil {
		return models.Job{}, err
	}
	if owner, ok := mw.GetOwnerID(r); ok && job.OwnerID != "" && job.OwnerID != owner {
		return models.Job{}, jobs.ErrNotFound
	}
	return job, nil
}

func (h *Jobs) mirrored(ctx context.Context, id string) (string, bool) {
	if h.mirror == nil {
		return "", false
	}
	status, ok, err := h.mirror.GetJobStatus(ctx, id)
	if err != nil {
		slog.Warn("read mirrored job status", "job_id", id, "error", err)
		return "", false
	}
	return status, ok
}

func (h *Jobs) resultError(w http.ResponseWriter, job models.Job, err error) {
	switch {
	case errors.Is(err, jobs.ErrNotReady):
		notReady(w, job.Status)
	case errors.Is(err, jobs.ErrNotFound):
		jobNotFound(w)
	default:
		slog.Error("read job result", "job_id", job.ID, "error", err)
		response.Error(w, http.StatusInternalServerError, "INTERNAL_ERROR", "An unexpected error occurred", nil)
	}
}

func jobNotFound(w http.ResponseWriter) {
	response.Error(w, http.StatusNotFound, "JOB_NOT_FOUND", "Job not found", nil)
}

func notReady(w http.ResponseWriter, status models.JobStatus) {
	response.Error(w, http.StatusConflict, "JOB_NOT_READY", "Job results are not ready",
		map[string]string{"status": string(status)})
}

func partContentType(h *multipart.FileHeader) string {
	if ct := h.Header.Get("Content-Type"); ct != "" {
		return ct
	}
	return "application/octet-stream"
}

func transcriptFilename(original string) string {
	base := filepath.Base(original)
	stem := strings.TrimSuffix(base, filepath.Ext(base))
	if stem == "" || stem == "." || stem == "/" {
		stem = "transcript"
	}
	return stem + ".txt"
}
