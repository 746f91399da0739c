package main

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/spf13/cobra"

	"github.com/Veraticus/the-insight-must-flow/internal/cli"
	"github.com/Veraticus/the-insight-must-flow/internal/common"
)

func resetCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "reset",
		Short: "Delete all imported transactions",
		Long: `Reset removes every transaction, the cached monthly statistics and the
record of imported files, so data can be imported again from scratch.

Evaluation runs are kept. Use --backup to write a copy of the database first.`,
		Args: cobra.NoArgs,
		RunE: runReset,
	}
	cmd.Flags().BoolP("force", "f", false, "Skip confirmation prompt")
	cmd.Flags().String("backup", "", "write a database backup to this path before deleting (\"auto\" for a timestamped file next to the database)")
	return cmd
}

func runReset(cmd *cobra.Command, _ []string) error {
	ctx := cmd.Context()
	force, _ := cmd.Flags().GetBool("force")
	backup, _ := cmd.Flags().GetString("backup")

	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	store, err := openStore(ctx, cfg)
	if err != nil {
		return err
	}
	defer func() { _ = store.Close() }()

	count, err := store.GetTransactionCount(ctx)
	if err != nil {
		return err
	}
	if count == 0 {
		outln("No transactions found. Nothing to reset.")
		return nil
	}

	if !force {
		outf("This will delete %d transactions.\n", count)
		ok, err := cli.Confirm(ctx, cli.NewNonBlockingReader(os.Stdin), os.Stdout, "Are you sure you want to continue?")
		if err != nil {
			return fmt.Errorf("failed to read input: %w", err)
		}
		if !ok {
			outln("Reset canceled.")
			return nil
		}
	}

	if backup != "" {
		if backup == "auto" {
			backup = filepath.Join(filepath.Dir(cfg.DatabasePath),
				fmt.Sprintf("insight-%s.db", time.Now().UTC().Format("20060102-150405")))
		}
		abs, err := filepath.Abs(backup)
		if err != nil {
			return common.NewUserError("invalid --backup path", err)
		}
		if err := store.Backup(ctx, abs); err != nil {
			return fmt.Errorf("backup failed, nothing was deleted: %w", err)
		}
		outln(cli.FormatSuccess("Backed up database to " + abs))
	}

	if err := store.ClearTransactions(ctx); err != nil {
		return fmt.Errorf("failed to clear transactions: %w", err)
	}
	outln(cli.FormatSuccess(fmt.Sprintf("Deleted %d transactions", count)))
	return nil
}
