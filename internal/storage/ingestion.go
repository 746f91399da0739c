package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
)

// RecordIngestedFile remembers that a file with the given checksum was imported.
// Re-recording the same checksum updates its path and row count.
func (s *SQLiteStorage) RecordIngestedFile(ctx context.Context, path, checksum string, rows int) error {
	if err := validateContext(ctx); err != nil {
		return err
	}
	if err := validateString(checksum, "checksum"); err != nil {
		return err
	}

	return s.withWriteTx(ctx, func(tx *sql.Tx) error {
		_, err := tx.ExecContext(ctx, `
			INSERT INTO ingested_files (checksum, path, rows, ingested_at)
			VALUES (?, ?, ?, CURRENT_TIMESTAMP)
			ON CONFLICT(checksum) DO UPDATE SET
				path = excluded.path,
				rows = ingested_files.rows + excluded.rows,
				ingested_at = excluded.ingested_at
		`, checksum, path, rows)
		if err != nil {
			return fmt.Errorf("failed to record ingested file: %w", err)
		}
		return nil
	})
}

// IsFileIngested reports whether a file with this checksum was already imported.
func (s *SQLiteStorage) IsFileIngested(ctx context.Context, checksum string) (bool, error) {
	if err := validateContext(ctx); err != nil {
		return false, err
	}

	var one int
	err := s.db.QueryRowContext(ctx, `SELECT 1 FROM ingested_files WHERE checksum = ?`, checksum).Scan(&one)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("failed to look up ingested file: %w", err)
	}
	return true, nil
}
