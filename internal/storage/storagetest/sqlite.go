// Package storagetest provides throwaway stores for tests.
package storagetest

import (
	"fmt"
	"testing"
	"time"

	"github.com/google/uuid"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"stayprivate/internal/storage"
)

// NewGormDB opens a private in-memory SQLite database with the schema migrated.
func NewGormDB(t testing.TB) *gorm.DB {
	t.Helper()

	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", uuid.NewString())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger:         logger.Default.LogMode(logger.Silent),
		TranslateError: true,
		NowFunc:        func() time.Time { return time.Now().UTC() },
	})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	sqlDB, err := db.DB()
	if err != nil {
		t.Fatalf("sql db: %v", err)
	}
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })

	if err := storage.AutoMigrateTables(db); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	return db
}

// NewStore returns a GORM-backed store over a fresh in-memory database.
func NewStore(t testing.TB) *storage.Store {
	t.Helper()
	return storage.NewGormStore(NewGormDB(t))
}
