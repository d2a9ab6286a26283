package testutil

import (
	"path/filepath"
	"testing"

	"github.com/SlpAus/dragon-duel-backend/internal/platform/config"
	"github.com/SlpAus/dragon-duel-backend/internal/platform/database"
	"gorm.io/gorm"
)

// NewSQLite 打开一个仅供本测试使用的临时SQLite文件。
func NewSQLite(t testing.TB) *gorm.DB {
	t.Helper()
	db, err := database.OpenSQL(config.DatabaseConfig{
		Driver: "sqlite",
		DSN:    filepath.Join(t.TempDir(), "archive.db"),
	})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	t.Cleanup(func() {
		if sqlDB, err := db.DB(); err == nil {
			_ = sqlDB.Close()
		}
	})
	return db
}
