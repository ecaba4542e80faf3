package testutil

import (
	"database/sql"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/nkiryanov/usersvc/internal/db"
)

// OpenSQLite creates migrated sqlite database in test temp dir, closed on test cleanup
func OpenSQLite(t *testing.T, maxConns int) *sql.DB {
	t.Helper()

	path := filepath.Join(t.TempDir(), "users.db")
	sqlDB, err := db.OpenSQLite(t.Context(), path, maxConns)
	require.NoError(t, err, "open sqlite failed")

	t.Cleanup(func() { _ = sqlDB.Close() })

	return sqlDB
}
