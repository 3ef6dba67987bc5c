package repositories_test

import (
	"path/filepath"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	"github.com/aristath/arduino-trader/internal/database"
)

// newTestDB opens a fresh, fully-migrated SQLite database backed by a
// temp file (modernc.org/sqlite's :memory: mode doesn't survive the
// WAL pragma this module opens with, so every test gets its own file
// under t.TempDir() instead).
func newTestDB(t *testing.T) *database.DB {
	t.Helper()
	path := filepath.Join(t.TempDir(), "test.db")
	db, err := database.New(path, zerolog.Nop())
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return db
}
