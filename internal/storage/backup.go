package storage

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// ErrBackupExists is returned when the backup destination already exists.
var ErrBackupExists = errors.New("backup already exists")

// Backup writes a consistent copy of the database to destPath using VACUUM INTO.
func (s *SQLiteStorage) Backup(ctx context.Context, destPath string) error {
	if err := validateContext(ctx); err != nil {
		return err
	}
	if err := validateString(destPath, "destPath"); err != nil {
		return err
	}

	// VACUUM INTO cannot take a bound parameter.
	if strings.ContainsAny(destPath, "'\";") {
		return fmt.Errorf("invalid backup path: contains forbidden characters")
	}
	destPath = filepath.Clean(destPath)
	if !filepath.IsAbs(destPath) {
		return fmt.Errorf("invalid backup path: must be absolute")
	}
	if _, err := os.Stat(destPath); err == nil {
		return fmt.Errorf("%w: %s", ErrBackupExists, destPath)
	}
	if err := os.MkdirAll(filepath.Dir(destPath), 0750); err != nil {
		return fmt.Errorf("failed to create backup directory: %w", err)
	}

	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	if s.dbPath != memoryPath {
		if _, err := s.db.ExecContext(ctx, "PRAGMA wal_checkpoint(TRUNCATE)"); err != nil {
			return fmt.Errorf("failed to checkpoint WAL: %w", err)
		}
	}

	// #nosec G201 - destPath is validated above
	if _, err := s.db.ExecContext(ctx, fmt.Sprintf("VACUUM INTO '%s'", destPath)); err != nil {
		return fmt.Errorf("failed to back up database: %w", err)
	}
	return nil
}
