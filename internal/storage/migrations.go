package storage

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
)

// ExpectedSchemaVersion is the latest schema version that the application expects.
// If the database cannot be migrated to this version, it's a fatal error.
const ExpectedSchemaVersion = 4

// Migration represents a database schema migration.
type Migration struct {
	Up          func(*sql.Tx) error
	Description string
	Version     int
}

var migrations = []Migration{
	{
		Version:     1,
		Description: "Initial transactions schema",
		Up: func(tx *sql.Tx) error {
			return execAll(tx,
				`CREATE TABLE IF NOT EXISTS transactions (
					id INTEGER PRIMARY KEY AUTOINCREMENT,
					user_id TEXT NOT NULL,
					timestamp TEXT NOT NULL,
					transaction_type TEXT NOT NULL,
					transaction_method TEXT NOT NULL,
					amount_micros INTEGER NOT NULL DEFAULT 0,
					segment_tag TEXT NOT NULL DEFAULT '',
					year INTEGER NOT NULL,
					month INTEGER NOT NULL
				)`,
				`CREATE INDEX IF NOT EXISTS idx_transactions_user_date ON transactions(user_id, year, month)`,
				`CREATE INDEX IF NOT EXISTS idx_transactions_timestamp ON transactions(timestamp)`,
				`CREATE INDEX IF NOT EXISTS idx_transactions_type ON transactions(transaction_type)`,
				`CREATE INDEX IF NOT EXISTS idx_transactions_segment ON transactions(segment_tag)`,
			)
		},
	},
	{
		Version:     2,
		Description: "Add monthly_stats memoization table",
		Up: func(tx *sql.Tx) error {
			return execAll(tx,
				`CREATE TABLE IF NOT EXISTS monthly_stats (
					user_id TEXT NOT NULL,
					year INTEGER NOT NULL,
					month INTEGER NOT NULL,
					total_spend_micros INTEGER NOT NULL DEFAULT 0,
					spend_count INTEGER NOT NULL DEFAULT 0,
					total_cash_in_micros INTEGER NOT NULL DEFAULT 0,
					cash_in_count INTEGER NOT NULL DEFAULT 0,
					computed_at DATETIME DEFAULT CURRENT_TIMESTAMP,
					PRIMARY KEY (user_id, year, month)
				)`,
			)
		},
	},
	{
		Version:     3,
		Description: "Track ingested files",
		Up: func(tx *sql.Tx) error {
			return execAll(tx,
				`CREATE TABLE IF NOT EXISTS ingested_files (
					checksum TEXT PRIMARY KEY,
					path TEXT NOT NULL,
					rows INTEGER NOT NULL DEFAULT 0,
					ingested_at DATETIME DEFAULT CURRENT_TIMESTAMP
				)`,
			)
		},
	},
	{
		Version:     4,
		Description: "Add evaluation runs and candidate results",
		Up: func(tx *sql.Tx) error {
			return execAll(tx,
				`CREATE TABLE IF NOT EXISTS evaluation_runs (
					id TEXT PRIMARY KEY,
					year INTEGER NOT NULL,
					month INTEGER NOT NULL,
					started_at DATETIME NOT NULL,
					finished_at DATETIME NOT NULL
				)`,
				`CREATE TABLE IF NOT EXISTS candidate_results (
					id INTEGER PRIMARY KEY AUTOINCREMENT,
					run_id TEXT NOT NULL,
					segment TEXT NOT NULL,
					user_id TEXT NOT NULL,
					component TEXT NOT NULL,
					approach TEXT NOT NULL,
					success INTEGER NOT NULL,
					ethical_flag TEXT NOT NULL DEFAULT '',
					confidence REAL NOT NULL DEFAULT 0,
					similarity_score REAL NOT NULL DEFAULT 0,
					response_time_ms INTEGER NOT NULL DEFAULT 0,
					estimated_cost REAL NOT NULL DEFAULT 0,
					output_text TEXT NOT NULL DEFAULT '',
					error TEXT NOT NULL DEFAULT '',
					FOREIGN KEY (run_id) REFERENCES evaluation_runs(id) ON DELETE CASCADE
				)`,
				`CREATE INDEX IF NOT EXISTS idx_candidate_results_run ON candidate_results(run_id)`,
			)
		},
	},
}

func execAll(tx *sql.Tx, queries ...string) error {
	for _, query := range queries {
		if _, err := tx.Exec(query); err != nil {
			return fmt.Errorf("failed to execute query: %w", err)
		}
	}
	return nil
}

// SchemaVersion returns the current PRAGMA user_version.
func (s *SQLiteStorage) SchemaVersion(ctx context.Context) (int, error) {
	var version int
	if err := s.db.QueryRowContext(ctx, "PRAGMA user_version").Scan(&version); err != nil {
		return 0, fmt.Errorf("failed to get schema version: %w", err)
	}
	return version, nil
}

// Migrate applies all pending database migrations.
func (s *SQLiteStorage) Migrate(ctx context.Context) error {
	if err := validateContext(ctx); err != nil {
		return err
	}

	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	currentVersion, err := s.SchemaVersion(ctx)
	if err != nil {
		return err
	}

	for _, migration := range migrations {
		if migration.Version <= currentVersion {
			continue
		}

		tx, txErr := s.db.BeginTx(ctx, nil)
		if txErr != nil {
			return fmt.Errorf("failed to begin transaction: %w", txErr)
		}

		if upErr := migration.Up(tx); upErr != nil {
			_ = tx.Rollback()
			return fmt.Errorf("migration %d failed: %w", migration.Version, upErr)
		}

		if _, execErr := tx.Exec(fmt.Sprintf("PRAGMA user_version = %d", migration.Version)); execErr != nil {
			_ = tx.Rollback()
			return fmt.Errorf("failed to update schema version: %w", execErr)
		}

		if commitErr := tx.Commit(); commitErr != nil {
			return fmt.Errorf("failed to commit migration %d: %w", migration.Version, commitErr)
		}

		slog.Debug("Applied migration",
			"version", migration.Version,
			"description", migration.Description)
	}

	finalVersion, err := s.SchemaVersion(ctx)
	if err != nil {
		return fmt.Errorf("failed to verify final schema version: %w", err)
	}

	if finalVersion != ExpectedSchemaVersion {
		return fmt.Errorf("database schema version mismatch: expected %d, got %d", ExpectedSchemaVersion, finalVersion)
	}

	return nil
}
