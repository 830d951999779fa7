package store

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/kiranshivaraju/scribe/internal/config"
	"github.com/kiranshivaraju/scribe/pkg/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestOpen_SQLite(t *testing.T) {
	path := filepath.Join(t.TempDir(), "open.db")
	s, err := Open(context.Background(), config.DatabaseConfig{URL: "sqlite://" + path})
	require.NoError(t, err)
	defer s.Close()

	_, ok := s.(*SQLiteStore)
	assert.True(t, ok)
	assert.NoError(t, s.Ping(context.Background()))
}

func TestOpen_SQLiteSchemaIsReapplied(t *testing.T) {
	path := filepath.Join(t.TempDir(), "twice.db")
	first, err := OpenSQLite(context.Background(), path)
	require.NoError(t, err)
	require.NoError(t, first.Close())

	second, err := OpenSQLite(context.Background(), path)
	require.NoError(t, err)
	assert.NoError(t, second.Close())
}

func TestOpen_UnsupportedScheme(t *testing.T) {
	_, err := Open(context.Background(), config.DatabaseConfig{URL: "mysql://localhost/db"})
	assert.Error(t, err)
}

func TestOpenSQLite_EmptyPath(t *testing.T) {
	_, err := OpenSQLite(context.Background(), "")
	assert.Error(t, err)
}

func TestMigrateURL(t *testing.T) {
	assert.Equal(t, "pgx5://u:p@h:5432/db", migrateURL("postgres://u:p@h:5432/db"))
	assert.Equal(t, "pgx5://u:p@h/db", migrateURL("postgresql://u:p@h/db"))
	assert.Equal(t, "sqlite://x.db", migrateURL("sqlite://x.db"))
}

func TestPageBounds(t *testing.T) {
	tests := []struct {
		name       string
		filter     models.TranscriptionFilter
		wantLimit  int
		wantOffset int
	}{
		{"defaults", models.TranscriptionFilter{}, 50, 0},
		{"page two", models.TranscriptionFilter{Page: 2, Limit: 10}, 10, 10},
		{"capped", models.TranscriptionFilter{Limit: 1000}, 200, 0},
		{"negative page", models.TranscriptionFilter{Page: -3, Limit: 5}, 5, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			limit, offset := pageBounds(tt.filter)
			assert.Equal(t, tt.wantLimit, limit)
			assert.Equal(t, tt.wantOffset, offset)
		})
	}
}
