// Package storetest opens throwaway SQLite databases behind a GormStore, so
// tests run the same SQL as production without an external server.
package storetest

import (
	"path/filepath"
	"testing"

	"github.com/glebarez/sqlite"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"matchmarket-service/internal/models"
	"matchmarket-service/internal/store"
)

// New returns a migrated store backed by a fresh database file in the test's
// temp dir. It is closed when the test ends.
func New(t testing.TB) *store.GormStore {
	t.Helper()
	dsn := filepath.Join(t.TempDir(), "matchmarket.db") + "?_pragma=busy_timeout(5000)"
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger:         logger.Default.LogMode(logger.Silent),
		TranslateError: true,
	})
	require.NoError(t, err)

	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })

	require.NoError(t, db.AutoMigrate(models.Tables()...))
	return store.NewGormStore(db)
}

// Seed inserts rows as given. Zero-valued columns with a default take it, so
// a match seeded without a status is open.
func Seed(t testing.TB, st *store.GormStore, rows ...interface{}) {
	t.Helper()
	for _, row := range rows {
		require.NoError(t, st.DB.Create(row).Error)
	}
}

// SetSetting inserts or replaces an app_settings override.
func SetSetting(t testing.TB, st *store.GormStore, key, value string) {
	t.Helper()
	require.NoError(t, st.DB.Save(&models.AppSetting{Key: key, Value: value}).Error)
}
