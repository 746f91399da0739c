package main

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Veraticus/the-insight-must-flow/internal/analytics"
	"github.com/Veraticus/the-insight-must-flow/internal/common"
	"github.com/Veraticus/the-insight-must-flow/internal/config"
	"github.com/Veraticus/the-insight-must-flow/internal/ingest"
	"github.com/Veraticus/the-insight-must-flow/internal/storage"
)

const sampleCSV = `user_id,timestamp,transaction_type,transaction_method,amount,segment_tag
u1,2025-03-01,SPEND,qr,100,students
u1,2025-03-02,SPEND,card,50,students
u1,2025-03-03,CASH_IN,bank,200,students
u2,2025-03-04,SPEND,card,10,retirees
`

// setupConfig points the global viper at a fresh database under t.TempDir.
func setupConfig(t *testing.T) string {
	t.Helper()
	viper.Reset()
	t.Cleanup(viper.Reset)
	config.SetDefaults(viper.GetViper())

	dbPath := filepath.Join(t.TempDir(), "insight.db")
	viper.Set("database.path", dbPath)
	return dbPath
}

func run(t *testing.T, cmd *cobra.Command, args ...string) error {
	t.Helper()
	cmd.SetArgs(args)
	cmd.SetOut(&discard{})
	cmd.SetErr(&discard{})
	return cmd.ExecuteContext(context.Background())
}

type discard struct{}

func (discard) Write(p []byte) (int, error) { return len(p), nil }

func transactionCount(t *testing.T, dbPath string) int {
	t.Helper()
	store, err := storage.NewSQLiteStorage(dbPath)
	require.NoError(t, err)
	defer func() { _ = store.Close() }()
	count, err := store.GetTransactionCount(context.Background())
	require.NoError(t, err)
	return count
}

func TestImportAndReset(t *testing.T) {
	dbPath := setupConfig(t)
	csvPath := filepath.Join(t.TempDir(), "march.csv")
	require.NoError(t, os.WriteFile(csvPath, []byte(sampleCSV), 0600))

	require.NoError(t, run(t, importCmd(), csvPath))
	assert.Equal(t, 4, transactionCount(t, dbPath))

	// A second import of the same file is refused but not an error.
	require.NoError(t, run(t, importCmd(), csvPath))
	assert.Equal(t, 4, transactionCount(t, dbPath))

	require.NoError(t, run(t, importCmd(), "--force", csvPath))
	assert.Equal(t, 8, transactionCount(t, dbPath))

	backup := filepath.Join(t.TempDir(), "backup.db")
	require.NoError(t, run(t, resetCmd(), "--force", "--backup", backup))
	assert.Equal(t, 0, transactionCount(t, dbPath))
	assert.Equal(t, 8, transactionCount(t, backup))
}

func TestImport_Errors(t *testing.T) {
	setupConfig(t)

	err := run(t, importCmd(), "--layout", "xml", "a.csv")
	assert.ErrorIs(t, err, common.ErrInvalidArgument)

	err = run(t, importCmd(), filepath.Join(t.TempDir(), "missing.csv"))
	var userErr *common.UserError
	assert.ErrorAs(t, err, &userErr)
}

func TestQueryCommands(t *testing.T) {
	setupConfig(t)
	csvPath := filepath.Join(t.TempDir(), "march.csv")
	require.NoError(t, os.WriteFile(csvPath, []byte(sampleCSV), 0600))
	require.NoError(t, run(t, importCmd(), csvPath))

	assert.NoError(t, run(t, profileCmd(), "u1", "--year", "2025", "--month", "3"))
	assert.NoError(t, run(t, activeCmd(), "--year", "2025", "--month", "3"))
	assert.NoError(t, run(t, segmentsCmd(), "--year", "2025", "--month", "3", "--max-users", "1", "--members"))
	assert.NoError(t, run(t, migrateCmd(), "--status"))

	err := run(t, profileCmd(), "ghost", "--year", "2025", "--month", "3")
	assert.ErrorIs(t, err, common.ErrNotFound)

	err = run(t, activeCmd(), "--year", "2025")
	var userErr *common.UserError
	assert.ErrorAs(t, err, &userErr)

	err = run(t, segmentsCmd(), "--year", "2025", "--month", "3", "--strategy", "random")
	assert.ErrorIs(t, err, common.ErrInvalidArgument)
}

func TestReport_RequiresUsersAndKey(t *testing.T) {
	setupConfig(t)
	t.Setenv("ANTHROPIC_API_KEY", "")

	err := run(t, reportCmd(), "--year", "2025", "--month", "3")
	var userErr *common.UserError
	require.ErrorAs(t, err, &userErr)

	err = run(t, reportCmd(), "u1", "--year", "2025", "--month", "3")
	assert.ErrorIs(t, err, common.ErrMissingConfig)
}

func TestActiveOptions(t *testing.T) {
	cmd := activeCmd()
	require.NoError(t, cmd.ParseFlags([]string{"--min-transactions", "5", "--min-spend", "12.50"}))

	opts, err := activeOptions(cmd, 3, 1000)
	require.NoError(t, err)
	assert.Equal(t, 5, opts.MinTransactions)
	assert.Equal(t, 1000, opts.MaxUsers)
	assert.Equal(t, "12.5", opts.MinSpend.String())

	// Commands without threshold flags keep the defaults.
	opts, err = activeOptions(&cobra.Command{}, 3, 7)
	require.NoError(t, err)
	assert.Equal(t, 3, opts.MinTransactions)
	assert.Equal(t, 7, opts.MaxUsers)

	bad := activeCmd()
	require.NoError(t, bad.ParseFlags([]string{"--min-cash-in", "lots"}))
	_, err = activeOptions(bad, 3, 7)
	assert.Error(t, err)
}

func TestSegmentOptions(t *testing.T) {
	setupConfig(t)
	viper.Set("analytics.segment_strategy", "all_tags")
	cfg, err := loadConfig()
	require.NoError(t, err)

	cmd := segmentsCmd()
	require.NoError(t, cmd.ParseFlags(nil))
	opts, err := segmentOptions(cmd, cfg)
	require.NoError(t, err)
	assert.Equal(t, analytics.StrategyAllTags, opts.Strategy)
	assert.Equal(t, 50, opts.MaxUsers)

	require.NoError(t, cmd.ParseFlags([]string{"--strategy", "latest", "--max-users", "2"}))
	opts, err = segmentOptions(cmd, cfg)
	require.NoError(t, err)
	assert.Equal(t, analytics.StrategyLatest, opts.Strategy)
	assert.Equal(t, 2, opts.MaxUsers)
}

func TestImportSummary(t *testing.T) {
	result := &ingest.Result{Read: 3, Inserted: 2, Skipped: 1}
	for i := 0; i < maxShownDiagnostics+2; i++ {
		result.Diagnostics = append(result.Diagnostics, ingest.Diagnostic{Row: i + 2, Message: "bad amount"})
	}

	summary := importSummary(result)
	assert.Contains(t, summary, "Rows inserted: 2")
	assert.Contains(t, summary, "row 2: bad amount")
	assert.Contains(t, summary, "... 2 more")
}
