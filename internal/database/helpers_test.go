package database

import (
	"context"
	"testing"
)

// setupTestDB opens a migrated in-memory database closed at test end.
func setupTestDB(t *testing.T) *DB {
	t.Helper()

	db, err := NewDB(Config{SQLitePath: memoryPath})
	if err != nil {
		t.Fatalf("Failed to open test database: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	if err := db.Migrate(context.Background()); err != nil {
		t.Fatalf("Failed to migrate test database: %v", err)
	}
	return db
}
