package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	mw "github.com/kiranshivaraju/scribe/internal/api/middleware"
	"github.com/kiranshivaraju/scribe/internal/api/handler"
	"github.com/kiranshivaraju/scribe/internal/api/response"
)

// Dependencies holds all handler and middleware dependencies for the router.
type Dependencies struct {
	Auth      *mw.Auth
	RateLimit *mw.RateLimit

	HealthHandler  http.HandlerFunc
	Jobs           *handler.Jobs
	HistoryHandler http.HandlerFunc
}

// NewRouter builds the Chi router with middleware stack and all routes.
func NewRouter(deps Dependencies) http.Handler {
	r := chi.NewRouter()

	// Global middleware
	r.Use(chimw.RequestID)
	r.Use(mw.Logger)
	r.Use(mw.Recovery)

	r.NotFound(func(w http.ResponseWriter, _ *http.Request) {
		response.Error(w, http.StatusNotFound, "ROUTE_NOT_FOUND", "Route not found", nil)
	})

	// Public health check
	r.Get("/api/v1/health", orNotImplemented(deps.HealthHandler))

	// Protected routes
	r.Group(func(r chi.Router) {
		if deps.Auth != nil {
			r.Use(deps.Auth.Authenticate)
		}
		if deps.RateLimit != nil {
			r.Use(deps.RateLimit.Limit)
		}

		var submit, status, result, summary, transcript http.HandlerFunc
		if deps.Jobs != nil {
			submit = deps.Jobs.Submit
			status = deps.Jobs.Status
			result = deps.Jobs.Result
			summary = deps.Jobs.Summary
			transcript = deps.Jobs.Transcript
		}

		r.Post("/api/v1/jobs", orNotImplemented(submit))
		r.Get("/api/v1/jobs/{jobID}/status", orNotImplemented(status))
		r.Get("/api/v1/jobs/{jobID}/result", orNotImplemented(result))
		r.Get("/api/v1/jobs/{jobID}/summary", orNotImplemented(summary))
		r.Get("/api/v1/jobs/{jobID}/transcript.txt", orNotImplemented(transcript))

		r.Get("/api/v1/transcriptions", orNotImplemented(deps.HistoryHandler))
	})

	return r
}

// orNotImplemented returns the handler if non-nil, or a 501 placeholder.
func orNotImplemented(h http.HandlerFunc) http.HandlerFunc {
	if h != nil {
		return h
	}
	return func(w http.ResponseWriter, r *http.Request) {
		response.Error(w, http.StatusNotImplemented, "NOT_IMPLEMENTED", "Endpoint not yet implemented", nil)
	}
}
