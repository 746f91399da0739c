package ingest

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"log/slog"
	"os"

	"github.com/Veraticus/the-insight-must-flow/internal/common"
	"github.com/Veraticus/the-insight-must-flow/internal/model"
)

// ErrAlreadyImported marks a file whose checksum is already recorded.
var ErrAlreadyImported = errors.New("file already imported")

// Store is the part of the transaction store the importer writes to.
type Store interface {
	InsertTransactions(ctx context.Context, transactions []model.Transaction) (int, error)
	RecordIngestedFile(ctx context.Context, path, checksum string, rows int) error
	IsFileIngested(ctx context.Context, checksum string) (bool, error)
}

// Result summarizes one import.
type Result struct {
	Checksum    string
	Diagnostics []Diagnostic
	Read        int
	Inserted    int
	Skipped     int
}

// Options controls an import.
type Options struct {
	Layout Layout
	// Force imports a file even when its checksum is already recorded.
	// Rows are appended again.
	Force bool
	// BatchSize is the number of rows per store transaction.
	BatchSize int
}

// Importer loads CSV files into a store.
type Importer struct {
	store  Store
	logger *slog.Logger
}

// NewImporter creates an importer.
func NewImporter(store Store) *Importer {
	return &Importer{store: store, logger: slog.Default().With("component", "ingest")}
}

// ImportFile parses path and inserts its rows. A file that was imported
// before fails with ErrAlreadyImported unless opts.Force is set.
func (im *Importer) ImportFile(ctx context.Context, path string, opts Options) (*Result, error) {
	// #nosec G304 - path is provided by the user on the command line
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", path, err)
	}

	sum := sha256.Sum256(raw)
	checksum := hex.EncodeToString(sum[:])

	if !opts.Force {
		seen, err := im.store.IsFileIngested(ctx, checksum)
		if err != nil {
			return nil, fmt.Errorf("failed to check import history: %w", err)
		}
		if seen {
			return nil, fmt.Errorf("%w: %s", ErrAlreadyImported, path)
		}
	}

	txns, diagnostics, err := Parse(bytes.NewReader(raw), opts.Layout)
	if err != nil {
		return nil, err
	}

	result := &Result{Checksum: checksum, Diagnostics: diagnostics, Read: len(txns)}
	for _, d := range diagnostics {
		if d.Skipped {
			result.Skipped++
		}
		im.logger.Warn("CSV row issue", "file", path, "row", d.Row, "issue", d.Message, "skipped", d.Skipped)
	}

	if err := im.insert(ctx, txns, opts.BatchSize, result); err != nil {
		return result, err
	}

	if err := im.store.RecordIngestedFile(ctx, path, checksum, result.Inserted); err != nil {
		return result, fmt.Errorf("failed to record import: %w", err)
	}

	im.logger.Info("Imported transactions",
		"file", path,
		"inserted", result.Inserted,
		"skipped", result.Skipped)
	return result, nil
}

func (im *Importer) insert(ctx context.Context, txns []model.Transaction, batchSize int, result *Result) error {
	if batchSize <= 0 {
		batchSize = 1000
	}
	for start := 0; start < len(txns); start += batchSize {
		end := min(start+batchSize, len(txns))
		batch := txns[start:end]

		n, err := im.store.InsertTransactions(ctx, batch)
		result.Inserted += n
		if err != nil && !errors.Is(err, common.ErrPartialIngestion) {
			return fmt.Errorf("failed to insert rows %d-%d: %w", start+1, end, err)
		}
		result.Skipped += len(batch) - n
	}
	return nil
}
