// Package testdb opens a migrated in-memory SQLite database for tests that need
// real transactions. Row locks are not emitted by the SQLite dialect; the single
// connection serializes writers instead.
package testdb

import (
	"testing"

	"stakeoption/internal/repositories"

	"github.com/glebarez/sqlite"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// New returns a fresh schema per call. The pool holds one connection because
// every :memory: connection is its own database.
func New(t testing.TB) *gorm.DB {
	t.Helper()

	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)

	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })

	require.NoError(t, repositories.Migrate(db))
	return db
}
