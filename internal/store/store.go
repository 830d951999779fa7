package store

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/kiranshivaraju/scribe/pkg/models"
)

var ErrNotFound = errors.New("resource not found")
var ErrDuplicateKey = errors.New("duplicate key violation")

const (
	defaultHistoryLimit = 50
	maxHistoryLimit     = 200
)

// Store is the data access interface. All database operations go through here.
type Store interface {
	Ping(ctx context.Context) error
	Close() error

	// UpsertTranscription inserts rec, or when a record with rec.ID exists,
	// updates only its summary fields, utterances and updated_at. Reports
	// whether a new row was inserted.
	UpsertTranscription(ctx context.Context, rec *models.PersistedTranscription) (bool, error)
	GetTranscription(ctx context.Context, id string) (*models.PersistedTranscription, error)
	ListTranscriptions(ctx context.Context, filter models.TranscriptionFilter) ([]*models.PersistedTranscription, int, error)

	GetAPIKeyByPrefix(ctx context.Context, prefix string) ([]*models.APIKey, error)
	UpdateAPIKeyLastUsed(ctx context.Context, id uuid.UUID) error
	CreateAPIKey(ctx context.Context, key *models.APIKey) error
	ListAPIKeys(ctx context.Context, ownerID string) ([]*models.APIKey, error)
	RevokeAPIKey(ctx context.Context, id uuid.UUID, ownerID string) error
}

// pageBounds normalizes history pagination to a limit and row offset.
func pageBounds(filter models.TranscriptionFilter) (limit, offset int) {
	limit = filter.Limit
	if limit <= 0 {
		limit = defaultHistoryLimit
	}
	if limit > maxHistoryLimit {
		limit = maxHistoryLimit
	}
	page := filter.Page
	if page <= 0 {
		page = 1
	}
	return limit, (page - 1) * limit
}

func nonNilStrings(in []string) []string {
	if in == nil {
		return []string{}
	}
	return in
}

func nonNilUtterances(in []models.Utterance) []models.Utterance {
	if in == nil {
		return []models.Utterance{}
	}
	return in
}
