package store

import (
	"context"
	"database/sql"
	_ "embed"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/kiranshivaraju/scribe/pkg/models"
	_ "modernc.org/sqlite"
)

//go:embed sqlite/schema.sql
var sqliteSchema string

// SQLiteStore implements Store on a single-file SQLite database. Used for
// local development and tests that run without Docker.
type SQLiteStore struct {
	db *sql.DB
}

// OpenSQLite opens (creating if needed) the database at path and applies
// the schema.
func OpenSQLite(ctx context.Context, path string) (*SQLiteStore, error) {
	if path == "" {
		return nil, errors.New("sqlite path is empty")
	}
	dsn := path + "?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)"
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping sqlite: %w", err)
	}
	if _, err := db.ExecContext(ctx, sqliteSchema); err != nil {
		db.Close()
		return nil, fmt.Errorf("apply sqlite schema: %w", err)
	}
	return &SQLiteStore{db: db}, nil
}

func (s *SQLiteStore) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// --- Transcriptions ---

func (s *SQLiteStore) UpsertTranscription(ctx context.Context, rec *models.PersistedTranscription) (bool, error) {
	keyPoints, err := json.Marshal(nonNilStrings(rec.KeyPoints))
	if err != nil {
		return false, fmt.Errorf("encode key points: %w", err)
	}
	actionItems, err := json.Marshal(nonNilStrings(rec.ActionItems))
	if err != nil {
		return false, fmt.Errorf("encode action items: %w", err)
	}
	utterances, err := json.Marshal(nonNilUtterances(rec.Utterances))
	if err != nil {
		return false, fmt.Errorf("encode utterances: %w", err)
	}

	conn, err := s.db.Conn(ctx)
	if err != nil {
		return false, fmt.Errorf("acquire connection: %w", err)
	}
	defer conn.Close()

	tx, err := conn.BeginTx(ctx, nil)
	if err != nil {
		return false, fmt.Errorf("begin upsert: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	var existing int
	if err := tx.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM transcriptions WHERE id = ?`, rec.ID).Scan(&existing); err != nil {
		return false, fmt.Errorf("check transcription: %w", err)
	}

	_, err = tx.ExecContext(ctx,
		`INSERT INTO transcriptions (`+transcriptionColumns+`)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		 ON CONFLICT(id) DO UPDATE SET
		   short_summary = excluded.short_summary,
		   key_points    = excluded.key_points,
		   action_items  = excluded.action_items,
		   utterances    = excluded.utterances,
		   updated_at    = excluded.updated_at`,
		rec.ID, rec.Title, rec.OriginalFilename, rec.AudioPath, rec.TranscriptText, rec.ShortSummary,
		string(keyPoints), string(actionItems), string(utterances),
		rec.OwnerID, rec.ProjectID, formatTime(rec.CreatedAt), formatTime(rec.UpdatedAt))
	if err != nil {
		return false, fmt.Errorf("upsert transcription: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return false, fmt.Errorf("commit upsert: %w", err)
	}
	return existing == 0, nil
}

func (s *SQLiteStore) GetTranscription(ctx context.Context, id string) (*models.PersistedTranscription, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT `+transcriptionColumns+` FROM transcriptions WHERE id = ?`, id)
	rec, err := scanSQLiteTranscription(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get transcription: %w", err)
	}
	return rec, nil
}

func (s *SQLiteStore) ListTranscriptions(ctx context.Context, filter models.TranscriptionFilter) ([]*models.PersistedTranscription, int, error) {
	var total int
	if err := s.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM transcriptions WHERE owner_id = ?`, filter.OwnerID).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("count transcriptions: %w", err)
	}

	limit, offset := pageBounds(filter)
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+transcriptionColumns+` FROM transcriptions
		 WHERE owner_id = ? ORDER BY created_at DESC, id LIMIT ? OFFSET ?`,
		filter.OwnerID, limit, offset)
	if err != nil {
		return nil, 0, fmt.Errorf("list transcriptions: %w", err)
	}
	defer rows.Close()

	out := []*models.PersistedTranscription{}
	for rows.Next() {
		rec, err := scanSQLiteTranscription(rows)
		if err != nil {
			return nil, 0, fmt.Errorf("scan transcription: %w", err)
		}
		out = append(out, rec)
	}
	return out, total, rows.Err()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanSQLiteTranscription(row rowScanner) (*models.PersistedTranscription, error) {
	var rec models.PersistedTranscription
	var keyPoints, actionItems, utterances, createdAt, updatedAt string
	var projectID sql.NullString
	if err := row.Scan(&rec.ID, &rec.Title, &rec.OriginalFilename, &rec.AudioPath, &rec.TranscriptText,
		&rec.ShortSummary, &keyPoints, &actionItems, &utterances, &rec.OwnerID, &projectID,
		&createdAt, &updatedAt); err != nil {
		return nil, err
	}
	if err := json.Unmarshal([]byte(keyPoints), &rec.KeyPoints); err != nil {
		return nil, fmt.Errorf("decode key points: %w", err)
	}
	if err := json.Unmarshal([]byte(actionItems), &rec.ActionItems); err != nil {
		return nil, fmt.Errorf("decode action items: %w", err)
	}
	if err := json.Unmarshal([]byte(utterances), &rec.Utterances); err != nil {
		return nil, fmt.Errorf("decode utterances: %w", err)
	}
	if projectID.Valid {
		rec.ProjectID = &projectID.String
	}
	var err error
	if rec.CreatedAt, err = parseTime(createdAt); err != nil {
		return nil, err
	}
	if rec.UpdatedAt, err = parseTime(updatedAt); err != nil {
		return nil, err
	}
	rec.KeyPoints = nonNilStrings(rec.KeyPoints)
	rec.ActionItems = nonNilStrings(rec.ActionItems)
	rec.Utterances = nonNilUtterances(rec.Utterances)
	return &rec, nil
}

// --- API Keys ---

func (s *SQLiteStore) GetAPIKeyByPrefix(ctx context.Context, prefix string) ([]*models.APIKey, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+apiKeyColumns+` FROM api_keys WHERE key_prefix = ? AND deleted_at IS NULL`, prefix)
	if err != nil {
		return nil, fmt.Errorf("get api key by prefix: %w", err)
	}
	return collectSQLiteAPIKeys(rows)
}

func (s *SQLiteStore) UpdateAPIKeyLastUsed(ctx context.Context, id uuid.UUID) error {
	now := formatTime(time.Now())
	_, err := s.db.ExecContext(ctx,
		`UPDATE api_keys SET last_used_at = ?, updated_at = ? WHERE id = ?`, now, now, id.String())
	if err != nil {
		return fmt.Errorf("update api key last used: %w", err)
	}
	return nil
}

func (s *SQLiteStore) CreateAPIKey(ctx context.Context, key *models.APIKey) error {
	scopes, err := json.Marshal(nonNilStrings(key.Scopes))
	if err != nil {
		return fmt.Errorf("encode scopes: %w", err)
	}
	_, err = s.db.ExecContext(ctx,
		`INSERT INTO api_keys (id, owner_id, name, key_hash, key_prefix, scopes, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		key.ID.String(), key.OwnerID, key.Name, key.KeyHash, key.KeyPrefix, string(scopes),
		formatTime(key.CreatedAt), formatTime(key.UpdatedAt))
	if err != nil {
		if strings.Contains(err.Error(), "UNIQUE constraint failed") {
			return ErrDuplicateKey
		}
		return fmt.Errorf("create api key: %w", err)
	}
	return nil
}

func (s *SQLiteStore) ListAPIKeys(ctx context.Context, ownerID string) ([]*models.APIKey, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+apiKeyColumns+` FROM api_keys
		 WHERE owner_id = ? AND deleted_at IS NULL ORDER BY created_at DESC`, ownerID)
	if err != nil {
		return nil, fmt.Errorf("list api keys: %w", err)
	}
	return collectSQLiteAPIKeys(rows)
}

func (s *SQLiteStore) RevokeAPIKey(ctx context.Context, id uuid.UUID, ownerID string) error {
	now := formatTime(time.Now())
	res, err := s.db.ExecContext(ctx,
		`UPDATE api_keys SET deleted_at = ?, updated_at = ?
		 WHERE id = ? AND owner_id = ? AND deleted_at IS NULL`, now, now, id.String(), ownerID)
	if err != nil {
		return fmt.Errorf("revoke api key: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("revoke api key: %w", err)
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

func collectSQLiteAPIKeys(rows *sql.Rows) ([]*models.APIKey, error) {
	defer rows.Close()
	var keys []*models.APIKey
	for rows.Next() {
		var k models.APIKey
		var id, scopes, createdAt, updatedAt string
		var lastUsed, deleted sql.NullString
		if err := rows.Scan(&id, &k.OwnerID, &k.Name, &k.KeyHash, &k.KeyPrefix, &scopes,
			&lastUsed, &deleted, &createdAt, &updatedAt); err != nil {
			return nil, fmt.Errorf("scan api key: %w", err)
		}
		var err error
		if k.ID, err = uuid.Parse(id); err != nil {
			return nil, fmt.Errorf("parse api key id: %w", err)
		}
		if err := json.Unmarshal([]byte(scopes), &k.Scopes); err != nil {
			return nil, fmt.Errorf("decode scopes: %w", err)
		}
		if k.LastUsedAt, err = parseNullTime(lastUsed); err != nil {
			return nil, err
		}
		if k.DeletedAt, err = parseNullTime(deleted); err != nil {
			return nil, err
		}
		if k.CreatedAt, err = parseTime(createdAt); err != nil {
			return nil, err
		}
		if k.UpdatedAt, err = parseTime(updatedAt); err != nil {
			return nil, err
		}
		keys = append(keys, &k)
	}
	return keys, rows.Err()
}

func formatTime(t time.Time) string {
	return t.UTC().Format(time.RFC3339Nano)
}

func parseTime(s string) (time.Time, error) {
	t, err := time.Parse(time.RFC3339Nano, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("parse timestamp %q: %w", s, err)
	}
	return t, nil
}

func parseNullTime(s sql.NullString) (*time.Time, error) {
	if !s.Valid {
		return nil, nil
	}
	t, err := parseTime(s.String)
	if err != nil {
		return nil, err
	}
	return &t, nil
}

var _ Store = (*SQLiteStore)(nil)
