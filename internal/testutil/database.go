// Package testutil provides shared test helpers: a migrated in-memory store,
// transaction fixtures and fake model collaborators.
package testutil

import (
	"context"
	"testing"

	"github.com/Veraticus/the-insight-must-flow/internal/model"
	"github.com/Veraticus/the-insight-must-flow/internal/storage"
)

// SetupTestDB creates a migrated in-memory database seeded with the given
// transactions. The database is closed when the test ends.
func SetupTestDB(t *testing.T, seed ...model.Transaction) *storage.SQLiteStorage {
	t.Helper()

	db, err := storage.NewSQLiteStorage(":memory:")
	if err != nil {
		t.Fatalf("Failed to create test database: %v", err)
	}
	t.Cleanup(func() {
		if err := db.Close(); err != nil {
			t.Errorf("Failed to close test database: %v", err)
		}
	})

	ctx := context.Background()
	if err := db.Migrate(ctx); err != nil {
		t.Fatalf("Failed to migrate test database: %v", err)
	}

	if len(seed) > 0 {
		if _, err := db.InsertTransactions(ctx, seed); err != nil {
			t.Fatalf("Failed to seed test database: %v", err)
		}
	}

	return db
}
