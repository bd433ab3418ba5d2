// Package testdb opens throwaway migrated databases for tests.
package testdb

import (
	"path/filepath"
	"testing"

	"turion-be/internal/model"
	"turion-be/pkg/database"

	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

// New returns a migrated SQLite database that lives for the duration of t.
func New(t testing.TB) *gorm.DB {
	t.Helper()
	db, _ := NewFile(t)
	return db
}

// NewFile is New that also returns the database path, so a test can open a
// second handle acting as another process.
func NewFile(t testing.TB) (*gorm.DB, string) {
	t.Helper()

	path := filepath.Join(t.TempDir(), "test.db")
	db := Open(t, path)
	require.NoError(t, model.Migrate(db))
	return db, path
}

// Open opens another handle on the database at path.
func Open(t testing.TB, path string) *gorm.DB {
	t.Helper()

	db, err := database.NewSQLiteDB(path, "silent")
	require.NoError(t, err)

	t.Cleanup(func() {
		if sqlDB, err := db.DB(); err == nil {
			_ = sqlDB.Close()
		}
	})
	return db
}
