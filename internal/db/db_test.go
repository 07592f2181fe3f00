package db

import (
	"compress/gzip"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/banshee-data/capability.report/internal/monitoring"
)

func TestMain(m *testing.M) {
	monitoring.SetLogger(nil)
	os.Exit(m.Run())
}

func newTestDB(t *testing.T) *DB {
	t.Helper()
	db, err := NewDB(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return db
}

func TestPragmasApplied(t *testing.T) {
	db := newTestDB(t)

	var journalMode string
	require.NoError(t, db.QueryRow("PRAGMA journal_mode").Scan(&journalMode))
	assert.Equal(t, "wal", journalMode)

	var busyTimeout, synchronous, tempStore, foreignKeys int
	require.NoError(t, db.QueryRow("PRAGMA busy_timeout").Scan(&busyTimeout))
	require.NoError(t, db.QueryRow("PRAGMA synchronous").Scan(&synchronous))
	require.NoError(t, db.QueryRow("PRAGMA temp_store").Scan(&tempStore))
	require.NoError(t, db.QueryRow("PRAGMA foreign_keys").Scan(&foreignKeys))
	assert.Equal(t, 5000, busyTimeout)
	assert.Equal(t, 1, synchronous, "NORMAL")
	assert.Equal(t, 2, tempStore, "MEMORY")
	assert.Equal(t, 1, foreignKeys)
}

func TestNewDB_ReopenIsIdempotent(t *testing.T) {
	path := filepath.Join(t.TempDir(), "test.db")
	db, err := NewDB(path)
	require.NoError(t, err)
	require.NoError(t, db.Close())

	db, err = NewDB(path)
	require.NoError(t, err)
	defer db.Close()
	assert.Equal(t, path, db.Path())

	version, dirty, err := db.MigrateVersion(MigrationsFS())
	require.NoError(t, err)
	assert.Equal(t, uint(2), version)
	assert.False(t, dirty)
}

func TestStats(t *testing.T) {
	db := newTestDB(t)
	saveFixture(t, db, "run-1")

	st, err := db.Stats(t.Context())
	require.NoError(t, err)
	assert.Greater(t, st.TotalSizeMB, 0.0)

	counts := map[string]int64{}
	for _, tbl := range st.Tables {
		counts[tbl.Name] = tbl.Rows
	}
	assert.Equal(t, int64(1), counts["runs"])
	assert.Equal(t, int64(2), counts["limit_results"])
	assert.Contains(t, counts, "schema_migrations")
}

func TestAttachAdminRoutes(t *testing.T) {
	db := newTestDB(t)
	saveFixture(t, db, "run-1")

	mux := http.NewServeMux()
	require.NoError(t, db.AttachAdminRoutes(mux))

	// tsweb may refuse non-local callers, so only registration is required.
	t.Run("db-stats", func(t *testing.T) {
		rec := httptest.NewRecorder()
		mux.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/debug/db-stats", nil))
		require.NotEqual(t, http.StatusNotFound, rec.Code)
		if rec.Code == http.StatusOK {
			var st DatabaseStats
			require.NoError(t, json.NewDecoder(rec.Body).Decode(&st))
			assert.NotEmpty(t, st.Tables)
		}
	})

	t.Run("backup", func(t *testing.T) {
		rec := httptest.NewRecorder()
		mux.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/debug/backup", nil))
		require.NotEqual(t, http.StatusNotFound, rec.Code)
		if rec.Code == http.StatusOK {
			assert.Contains(t, rec.Header().Get("Content-Disposition"), "attachment")
			gz, err := gzip.NewReader(rec.Body)
			require.NoError(t, err)
			body, err := io.ReadAll(gz)
			require.NoError(t, err)
			assert.Equal(t, "SQLite format 3\x00", string(body[:16]))
		}
	})

	t.Run("tailsql", func(t *testing.T) {
		rec := httptest.NewRecorder()
		mux.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/debug/tailsql/", nil))
		assert.NotEqual(t, http.StatusNotFound, rec.Code)
	})
}
