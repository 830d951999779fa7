package handler

import (
	"context"
	"log/slog"
	"net/http"
	"strconv"

	mw "github.com/kiranshivaraju/scribe/internal/api/middleware"
	"github.com/kiranshivaraju/scribe/internal/api/response"
	"github.com/kiranshivaraju/scribe/pkg/models"
)

const (
	defaultHistoryLimit = 50
	maxHistoryLimit     = 200
)

// TranscriptionLister reads persisted transcriptions.
type TranscriptionLister interface {
	ListTranscriptions(ctx context.Context, filter models.TranscriptionFilter) ([]*models.PersistedTranscription, int, error)
}

// NewHistoryHandler returns an http.HandlerFunc for GET /api/v1/transcriptions.
func NewHistoryHandler(lister TranscriptionLister) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		owner, _ := mw.GetOwnerID(r)
		page := queryInt(r, "page", 1)
		if page < 1 {
			page = 1
		}
		limit := queryInt(r, "limit", defaultHistoryLimit)
		if limit < 1 {
			limit = defaultHistoryLimit
		}
		if limit > maxHistoryLimit {
			limit = maxHistoryLimit
		}

		records, total, err := lister.ListTranscriptions(r.Context(), models.TranscriptionFilter{
			OwnerID: owner,
			Page:    page,
			Limit:   limit,
		})
		if err != nil {
			slog.Error("list transcriptions", "owner_id", owner, "error", err)
			response.Error(w, http.StatusInternalServerError, "INTERNAL_ERROR", "An unexpected error occurred", nil)
			return
		}

		response.Collection(w, records, response.Paginate(page, limit, total))
	}
}

func queryInt(r *http.Request, name string, fallback int) int {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return fallback
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		return fallback
	}
	return n
}
