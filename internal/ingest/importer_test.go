package ingest

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Veraticus/the-insight-must-flow/internal/testutil"
)

func writeCSV(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "transactions.csv")
	require.NoError(t, os.WriteFile(path, []byte(content), 0600))
	return path
}

func TestImportFile(t *testing.T) {
	db := testutil.SetupTestDB(t)
	ctx := context.Background()
	path := writeCSV(t, processedCSV+"u3,2025-03-09,SPEND,,1,x\n")

	im := NewImporter(db)
	result, err := im.ImportFile(ctx, path, Options{BatchSize: 2})
	require.NoError(t, err)

	assert.Equal(t, 4, result.Read)
	assert.Equal(t, 4, result.Inserted)
	assert.Equal(t, 1, result.Skipped)
	assert.Len(t, result.Diagnostics, 2)
	assert.Len(t, result.Checksum, 64)

	count, err := db.GetTransactionCount(ctx)
	require.NoError(t, err)
	assert.Equal(t, 4, count)

	ingested, err := db.IsFileIngested(ctx, result.Checksum)
	require.NoError(t, err)
	assert.True(t, ingested)

	t.Run("second import is refused", func(t *testing.T) {
		_, err := im.ImportFile(ctx, path, Options{})
		assert.ErrorIs(t, err, ErrAlreadyImported)
	})

	t.Run("forced import appends again", func(t *testing.T) {
		again, err := im.ImportFile(ctx, path, Options{Force: true})
		require.NoError(t, err)
		assert.Equal(t, 4, again.Inserted)

		count, err := db.GetTransactionCount(ctx)
		require.NoError(t, err)
		assert.Equal(t, 8, count)
	})

	t.Run("missing file", func(t *testing.T) {
		_, err := im.ImportFile(ctx, filepath.Join(t.TempDir(), "nope.csv"), Options{})
		assert.Error(t, err)
	})
}
