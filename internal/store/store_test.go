package store_test

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/kiranshivaraju/scribe/internal/store"
	"github.com/kiranshivaraju/scribe/pkg/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"
)

// setupTestDB spins up a Postgres container, runs migrations, and returns a pool.
func setupTestDB(t *testing.T) *pgxpool.Pool {
	t.Helper()
	ctx := context.Background()

	pgContainer, err := postgres.Run(ctx,
		"postgres:16-alpine",
		postgres.WithDatabase("scribe_test"),
		postgres.WithUsername("test"),
		postgres.WithPassword("test"),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(60*time.Second)),
	)
	require.NoError(t, err)

	t.Cleanup(func() {
		require.NoError(t, pgContainer.Terminate(ctx))
	})

	connStr, err := pgContainer.ConnectionString(ctx, "sslmode=disable")
	require.NoError(t, err)

	require.NoError(t, store.RunMigrations(connStr))
	// Second run is a no-op.
	require.NoError(t, store.RunMigrations(connStr))

	pool, err := pgxpool.New(ctx, connStr)
	require.NoError(t, err)
	t.Cleanup(func() { pool.Close() })

	return pool
}

func setupSQLite(t *testing.T) store.Store {
	t.Helper()
	s, err := store.OpenSQLite(context.Background(), filepath.Join(t.TempDir(), "scribe.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s
}

// backends returns every Store implementation available to this run.
// Postgres needs Docker and is skipped in short mode.
func backends(t *testing.T) map[string]func(t *testing.T) store.Store {
	t.Helper()
	out := map[string]func(t *testing.T) store.Store{
		"sqlite": setupSQLite,
	}
	if !testing.Short() {
		out["postgres"] = func(t *testing.T) store.Store {
			return store.NewPostgresStore(setupTestDB(t))
		}
	}
	return out
}

func newRecord(id, owner string, created time.Time) *models.PersistedTranscription {
	return &models.PersistedTranscription{
		ID:               id,
		Title:            "Transcription of call.mp3",
		OriginalFilename: "call.mp3",
		AudioPath:        "/uploads/" + id + "_call.mp3",
		TranscriptText:   "Hello there. We ship Friday.",
		ShortSummary:     "A short call.",
		KeyPoints:        []string{"shipping"},
		ActionItems:      []string{"ship it"},
		Utterances: []models.Utterance{
			{Start: 0, End: 1.5, Transcript: "Hello there.", Speaker: "0"},
		},
		OwnerID:   owner,
		CreatedAt: created,
		UpdatedAt: created,
	}
}

// --- Transcription Tests ---

func TestTranscription_UpsertInsert(t *testing.T) {
	for name, open := range backends(t) {
		t.Run(name, func(t *testing.T) {
			s := open(t)
			ctx := context.Background()
			now := time.Now().UTC().Truncate(time.Microsecond)

			inserted, err := s.UpsertTranscription(ctx, newRecord("job-1", "owner-a", now))
			require.NoError(t, err)
			assert.True(t, inserted)

			got, err := s.GetTranscription(ctx, "job-1")
			require.NoError(t, err)
			assert.Equal(t, "Transcription of call.mp3", got.Title)
			assert.Equal(t, "Hello there. We ship Friday.", got.TranscriptText)
			assert.Equal(t, []string{"shipping"}, got.KeyPoints)
			assert.Equal(t, []string{"ship it"}, got.ActionItems)
			require.Len(t, got.Utterances, 1)
			assert.Equal(t, "0", got.Utterances[0].Speaker)
			assert.Nil(t, got.ProjectID)
			assert.True(t, now.Equal(got.CreatedAt))
		})
	}
}

func TestTranscription_UpsertUpdatesSummaryOnly(t *testing.T) {
	for name, open := range backends(t) {
		t.Run(name, func(t *testing.T) {
			s := open(t)
			ctx := context.Background()
			created := time.Now().UTC().Truncate(time.Microsecond)

			_, err := s.UpsertTranscription(ctx, newRecord("job-2", "owner-a", created))
			require.NoError(t, err)

			later := created.Add(time.Minute)
			again := newRecord("job-2", "owner-a", later)
			again.Title = "changed"
			again.TranscriptText = "changed"
			again.ShortSummary = "Updated summary."
			again.KeyPoints = nil
			again.ActionItems = []string{"a", "b"}

			inserted, err := s.UpsertTranscription(ctx, again)
			require.NoError(t, err)
			assert.False(t, inserted)

			got, err := s.GetTranscription(ctx, "job-2")
			require.NoError(t, err)
			assert.Equal(t, "Transcription of call.mp3", got.Title)
			assert.Equal(t, "Hello there. We ship Friday.", got.TranscriptText)
			assert.Equal(t, "Updated summary.", got.ShortSummary)
			assert.Equal(t, []string{}, got.KeyPoints)
			assert.Equal(t, []string{"a", "b"}, got.ActionItems)
			assert.True(t, created.Equal(got.CreatedAt))
			assert.True(t, later.Equal(got.UpdatedAt))

			list, total, err := s.ListTranscriptions(ctx, models.TranscriptionFilter{OwnerID: "owner-a"})
			require.NoError(t, err)
			assert.Equal(t, 1, total)
			assert.Len(t, list, 1)
		})
	}
}

func TestTranscription_GetNotFound(t *testing.T) {
	for name, open := range backends(t) {
		t.Run(name, func(t *testing.T) {
			s := open(t)
			_, err := s.GetTranscription(context.Background(), "missing")
			assert.ErrorIs(t, err, store.ErrNotFound)
		})
	}
}

func TestTranscription_ListByOwnerNewestFirst(t *testing.T) {
	for name, open := range backends(t) {
		t.Run(name, func(t *testing.T) {
			s := open(t)
			ctx := context.Background()
			base := time.Now().UTC().Truncate(time.Microsecond)

			for i, id := range []string{"old", "mid", "new"} {
				_, err := s.UpsertTranscription(ctx, newRecord(id, "owner-a", base.Add(time.Duration(i)*time.Minute)))
				require.NoError(t, err)
			}
			_, err := s.UpsertTranscription(ctx, newRecord("other", "owner-b", base))
			require.NoError(t, err)

			list, total, err := s.ListTranscriptions(ctx, models.TranscriptionFilter{OwnerID: "owner-a", Limit: 2})
			require.NoError(t, err)
			assert.Equal(t, 3, total)
			require.Len(t, list, 2)
			assert.Equal(t, "new", list[0].ID)
			assert.Equal(t, "mid", list[1].ID)

			page2, _, err := s.ListTranscriptions(ctx, models.TranscriptionFilter{OwnerID: "owner-a", Limit: 2, Page: 2})
			require.NoError(t, err)
			require.Len(t, page2, 1)
			assert.Equal(t, "old", page2[0].ID)

			none, total, err := s.ListTranscriptions(ctx, models.TranscriptionFilter{OwnerID: "nobody"})
			require.NoError(t, err)
			assert.Equal(t, 0, total)
			assert.NotNil(t, none)
			assert.Empty(t, none)
		})
	}
}

// --- API Key Tests ---

func newKey(owner, prefix string) *models.APIKey {
	now := time.Now().UTC().Truncate(time.Microsecond)
	return &models.APIKey{
		ID:        uuid.New(),
		OwnerID:   owner,
		Name:      "key-" + prefix,
		KeyHash:   "bcrypt-hash-here",
		KeyPrefix: prefix,
		Scopes:    []string{"jobs", "read"},
		CreatedAt: now,
		UpdatedAt: now,
	}
}

func TestAPIKey_CreateAndGet(t *testing.T) {
	for name, open := range backends(t) {
		t.Run(name, func(t *testing.T) {
			s := open(t)
			ctx := context.Background()
			key := newKey("owner-a", "sc_abcde")
			require.NoError(t, s.CreateAPIKey(ctx, key))

			keys, err := s.GetAPIKeyByPrefix(ctx, "sc_abcde")
			require.NoError(t, err)
			require.Len(t, keys, 1)
			assert.Equal(t, key.ID, keys[0].ID)
			assert.Equal(t, "owner-a", keys[0].OwnerID)
			assert.Equal(t, []string{"jobs", "read"}, keys[0].Scopes)
			assert.Nil(t, keys[0].LastUsedAt)
		})
	}
}

func TestAPIKey_ListAndRevoke(t *testing.T) {
	for name, open := range backends(t) {
		t.Run(name, func(t *testing.T) {
			s := open(t)
			ctx := context.Background()
			first := newKey("owner-a", "sc_aaaaa")
			require.NoError(t, s.CreateAPIKey(ctx, first))
			require.NoError(t, s.CreateAPIKey(ctx, newKey("owner-a", "sc_bbbbb")))
			require.NoError(t, s.CreateAPIKey(ctx, newKey("owner-b", "sc_ccccc")))

			keys, err := s.ListAPIKeys(ctx, "owner-a")
			require.NoError(t, err)
			assert.Len(t, keys, 2)

			// Wrong owner cannot revoke.
			assert.ErrorIs(t, s.RevokeAPIKey(ctx, first.ID, "owner-b"), store.ErrNotFound)

			require.NoError(t, s.RevokeAPIKey(ctx, first.ID, "owner-a"))
			assert.ErrorIs(t, s.RevokeAPIKey(ctx, first.ID, "owner-a"), store.ErrNotFound)

			keys, err = s.ListAPIKeys(ctx, "owner-a")
			require.NoError(t, err)
			assert.Len(t, keys, 1)

			keys, err = s.GetAPIKeyByPrefix(ctx, "sc_aaaaa")
			require.NoError(t, err)
			assert.Empty(t, keys)
		})
	}
}

func TestAPIKey_UpdateLastUsed(t *testing.T) {
	for name, open := range backends(t) {
		t.Run(name, func(t *testing.T) {
			s := open(t)
			ctx := context.Background()
			key := newKey("owner-a", "sc_used1")
			require.NoError(t, s.CreateAPIKey(ctx, key))

			require.NoError(t, s.UpdateAPIKeyLastUsed(ctx, key.ID))

			keys, err := s.GetAPIKeyByPrefix(ctx, "sc_used1")
			require.NoError(t, err)
			require.Len(t, keys, 1)
			assert.NotNil(t, keys[0].LastUsedAt)
		})
	}
}

func TestAPIKey_DuplicateID(t *testing.T) {
	for name, open := range backends(t) {
		t.Run(name, func(t *testing.T) {
			s := open(t)
			ctx := context.Background()
			key := newKey("owner-a", "sc_dup01")
			require.NoError(t, s.CreateAPIKey(ctx, key))

			dup := newKey("owner-a", "sc_dup02")
			dup.ID = key.ID
			assert.ErrorIs(t, s.CreateAPIKey(ctx, dup), store.ErrDuplicateKey)
		})
	}
}

// --- Ping Test ---

func TestPing(t *testing.T) {
	for name, open := range backends(t) {
		t.Run(name, func(t *testing.T) {
			assert.NoError(t, open(t).Ping(context.Background()))
		})
	}
}
