package handler

import (
	"context"
	"errors"
	"net/http"
	"testing"
	"time"

	"github.com/kiranshivaraju/scribe/pkg/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type mockLister struct {
	filter  models.TranscriptionFilter
	records []*models.PersistedTranscription
	total   int
	err     error
}

func (m *mockLister) ListTranscriptions(_ context.Context, f models.TranscriptionFilter) ([]*models.PersistedTranscription, int, error) {
	m.filter = f
	return m.records, m.total, m.err
}

func TestHistory_ListsOwnerRecords(t *testing.T) {
	lister := &mockLister{
		records: []*models.PersistedTranscription{{
			ID:          "job-1",
			Title:       "Transcription of call.mp3",
			KeyPoints:   []string{},
			ActionItems: []string{},
			Utterances:  []models.Utterance{},
			CreatedAt:   time.Now(),
		}},
		total: 3,
	}
	rec := get(t, NewHistoryHandler(lister), "/api/v1/transcriptions?page=1&limit=1", "owner-a")

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, models.TranscriptionFilter{OwnerID: "owner-a", Page: 1, Limit: 1}, lister.filter)

	body := decode(t, rec)
	data := body["data"].([]any)
	require.Len(t, data, 1)
	assert.Equal(t, "job-1", data[0].(map[string]any)["id"])
	meta := body["meta"].(map[string]any)
	assert.Equal(t, float64(3), meta["total"])
	assert.Equal(t, true, meta["has_next"])
}

func TestHistory_ClampsPaging(t *testing.T) {
	lister := &mockLister{records: []*models.PersistedTranscription{}}

	get(t, NewHistoryHandler(lister), "/api/v1/transcriptions?limit=5000&page=-2", "owner-a")
	assert.Equal(t, 200, lister.filter.Limit)
	assert.Equal(t, 1, lister.filter.Page)

	get(t, NewHistoryHandler(lister), "/api/v1/transcriptions?limit=abc", "owner-a")
	assert.Equal(t, 50, lister.filter.Limit)
}

func TestHistory_StoreError(t *testing.T) {
	lister := &mockLister{err: errors.New("db down")}
	rec := get(t, NewHistoryHandler(lister), "/api/v1/transcriptions", "owner-a")
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
}
