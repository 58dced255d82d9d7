// Package dbtest opens throwaway migrated sqlite stores for tests.
package dbtest

import (
	"path/filepath"
	"testing"

	"go.uber.org/zap"
	"gorm.io/gorm"

	"refbot/internal/database"
)

func Open(t testing.TB) *gorm.DB {
	t.Helper()

	db, err := database.ConnectSQLite(filepath.Join(t.TempDir(), "test.db"), zap.NewNop())
	if err != nil {
		t.Fatalf("open test store: %v", err)
	}
	t.Cleanup(func() { _ = database.Close(db) })
	return db
}
