package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/kiranshivaraju/scribe/pkg/models"
)

// PostgresStore implements the Store interface using pgx/v5.
type PostgresStore struct {
	pool *pgxpool.Pool
}

// NewPostgresStore creates a new PostgresStore.
func NewPostgresStore(pool *pgxpool.Pool) *PostgresStore {
	return &PostgresStore{pool: pool}
}

// Ping checks database connectivity.
func (s *PostgresStore) Ping(ctx context.Context) error {
	return s.pool.Ping(ctx)
}

func (s *PostgresStore) Close() error {
	s.pool.Close()
	return nil
}

// --- Transcriptions ---

const transcriptionColumns = `id, title, original_filename, audio_path, transcript_text, short_summary,
	key_points, action_items, utterances, owner_id, project_id, created_at, updated_at`

// UpsertTranscription runs on a dedicated pooled connection inside one
// transaction. The connection is released on every return path.
func (s *PostgresStore) UpsertTranscription(ctx context.Context, rec *models.PersistedTranscription) (bool, error) {
	utterances, err := json.Marshal(nonNilUtterances(rec.Utterances))
	if err != nil {
		return false, fmt.Errorf("encode utterances: %w", err)
	}

	conn, err := s.pool.Acquire(ctx)
	if err != nil {
		return false, fmt.Errorf("acquire connection: %w", err)
	}
	defer conn.Release()

	tx, err := conn.Begin(ctx)
	if err != nil {
		return false, fmt.Errorf("begin upsert: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	var inserted bool
	err = tx.QueryRow(ctx,
		`INSERT INTO transcriptions (`+transcriptionColumns+`)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)
		 ON CONFLICT (id) DO UPDATE SET
		   short_summary = EXCLUDED.short_summary,
		   key_points    = EXCLUDED.key_points,
		   action_items  = EXCLUDED.action_items,
		   utterances    = EXCLUDED.utterances,
		   updated_at    = EXCLUDED.updated_at
		 RETURNING (xmax = 0)`,
		rec.ID, rec.Title, rec.OriginalFilename, rec.AudioPath, rec.TranscriptText, rec.ShortSummary,
		nonNilStrings(rec.KeyPoints), nonNilStrings(rec.ActionItems), utterances,
		rec.OwnerID, rec.ProjectID, rec.CreatedAt, rec.UpdatedAt,
	).Scan(&inserted)
	if err != nil {
		return false, fmt.Errorf("upsert transcription: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return false, fmt.Errorf("commit upsert: %w", err)
	}
	return inserted, nil
}

func (s *PostgresStore) GetTranscription(ctx context.Context, id string) (*models.PersistedTranscription, error) {
	row := s.pool.QueryRow(ctx,
		`SELECT `+transcriptionColumns+` FROM transcriptions WHERE id = $1`, id)
	rec, err := scanTranscription(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get transcription: %w", err)
	}
	return rec, nil
}

func (s *PostgresStore) ListTranscriptions(ctx context.Context, filter models.TranscriptionFilter) ([]*models.PersistedTranscription, int, error) {
	var total int
	if err := s.pool.QueryRow(ctx,
		`SELECT COUNT(*) FROM transcriptions WHERE owner_id = $1`, filter.OwnerID,
	).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("count transcriptions: %w", err)
	}

	limit, offset := pageBounds(filter)
	rows, err := s.pool.Query(ctx,
		`SELECT `+transcriptionColumns+` FROM transcriptions
		 WHERE owner_id = $1 ORDER BY created_at DESC, id LIMIT $2 OFFSET $3`,
		filter.OwnerID, limit, offset)
	if err != nil {
		return nil, 0, fmt.Errorf("list transcriptions: %w", err)
	}
	defer rows.Close()

	out := []*models.PersistedTranscription{}
	for rows.Next() {
		rec, err := scanTranscription(rows)
		if err != nil {
			return nil, 0, fmt.Errorf("scan transcription: %w", err)
		}
		out = append(out, rec)
	}
	return out, total, rows.Err()
}

func scanTranscription(row pgx.Row) (*models.PersistedTranscription, error) {
	var rec models.PersistedTranscription
	var utterances []byte
	if err := row.Scan(&rec.ID, &rec.Title, &rec.OriginalFilename, &rec.AudioPath, &rec.TranscriptText,
		&rec.ShortSummary, &rec.KeyPoints, &rec.ActionItems, &utterances, &rec.OwnerID, &rec.ProjectID,
		&rec.CreatedAt, &rec.UpdatedAt); err != nil {
		return nil, err
	}
	if err := json.Unmarshal(utterances, &rec.Utterances); err != nil {
		return nil, fmt.Errorf("decode utterances: %w", err)
	}
	rec.KeyPoints = nonNilStrings(rec.KeyPoints)
	rec.ActionItems = nonNilStrings(rec.ActionItems)
	rec.Utterances = nonNilUtterances(rec.Utterances)
	return &rec, nil
}

// --- API Keys ---

const apiKeyColumns = `id, owner_id, name, key_hash, key_prefix, scopes, last_used_at, deleted_at, created_at, updated_at`

func (s *PostgresStore) GetAPIKeyByPrefix(ctx context.Context, prefix string) ([]*models.APIKey, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT `+apiKeyColumns+` FROM api_keys WHERE key_prefix = $1 AND deleted_at IS NULL`, prefix)
	if err != nil {
		return nil, fmt.Errorf("get api key by prefix: %w", err)
	}
	return collectAPIKeys(rows)
}

func (s *PostgresStore) UpdateAPIKeyLastUsed(ctx context.Context, id uuid.UUID) error {
	_, err := s.pool.Exec(ctx,
		`UPDATE api_keys SET last_used_at = NOW(), updated_at = NOW() WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("update api key last used: %w", err)
	}
	return nil
}

func (s *PostgresStore) CreateAPIKey(ctx context.Context, key *models.APIKey) error {
	_, err := s.pool.Exec(ctx,
		`INSERT INTO api_keys (id, owner_id, name, key_hash, key_prefix, scopes, created_at, updated_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
		key.ID, key.OwnerID, key.Name, key.KeyHash, key.KeyPrefix, nonNilStrings(key.Scopes), key.CreatedAt, key.UpdatedAt)
	if err != nil {
		if isDuplicateKeyError(err) {
			return ErrDuplicateKey
		}
		return fmt.Errorf("create api key: %w", err)
	}
	return nil
}

func (s *PostgresStore) ListAPIKeys(ctx context.Context, ownerID string) ([]*models.APIKey, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT `+apiKeyColumns+` FROM api_keys
		 WHERE owner_id = $1 AND deleted_at IS NULL ORDER BY created_at DESC`, ownerID)
	if err != nil {
		return nil, fmt.Errorf("list api keys: %w", err)
	}
	return collectAPIKeys(rows)
}

func (s *PostgresStore) RevokeAPIKey(ctx context.Context, id uuid.UUID, ownerID string) error {
	tag, err := s.pool.Exec(ctx,
		`UPDATE api_keys SET deleted_at = NOW(), updated_at = NOW()
		 WHERE id = $1 AND owner_id = $2 AND deleted_at IS NULL`, id, ownerID)
	if err != nil {
		return fmt.Errorf("revoke api key: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func collectAPIKeys(rows pgx.Rows) ([]*models.APIKey, error) {
	defer rows.Close()
	var keys []*models.APIKey
	for rows.Next() {
		var k models.APIKey
		if err := rows.Scan(&k.ID, &k.OwnerID, &k.Name, &k.KeyHash, &k.KeyPrefix, &k.Scopes,
			&k.LastUsedAt, &k.DeletedAt, &k.CreatedAt, &k.UpdatedAt); err != nil {
			return nil, fmt.Errorf("scan api key: %w", err)
		}
		keys = append(keys, &k)
	}
	return keys, rows.Err()
}

// isDuplicateKeyError checks if a pgx error is a unique constraint violation.
func isDuplicateKeyError(err error) bool {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == "23505" // unique_violation
	}
	return false
}

var _ Store = (*PostgresStore)(nil)
