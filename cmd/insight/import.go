package main

import (
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/spf13/cobra"

	"github.com/Veraticus/the-insight-must-flow/internal/cli"
	"github.com/Veraticus/the-insight-must-flow/internal/common"
	"github.com/Veraticus/the-insight-must-flow/internal/ingest"
)

const maxShownDiagnostics = 10

func importCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "import <file.csv>...",
		Short: "Import transactions from CSV files",
		Long: `Import user transactions from CSV files into the local database.

Two layouts are understood. The processed layout has the columns
user_id, timestamp, transaction_type, transaction_method, amount, segment_tag.
The raw export has ten columns with up to three segment tags, a source and a
platform column. The layout is detected from the column count unless --layout
is given.

Rows are appended without deduplication, so a file that was already imported
is refused unless --force is set.`,
		Args: cobra.MinimumNArgs(1),
		RunE: runImport,
	}

	cmd.Flags().String("layout", string(ingest.LayoutAuto), "CSV layout (auto, processed, raw)")
	cmd.Flags().Bool("force", false, "Import files even if they were imported before")
	cmd.Flags().Int("batch-size", 1000, "Rows per database transaction")

	return cmd
}

func runImport(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()

	layoutName, _ := cmd.Flags().GetString("layout")
	force, _ := cmd.Flags().GetBool("force")
	batchSize, _ := cmd.Flags().GetInt("batch-size")

	layout, err := ingest.ParseLayout(layoutName)
	if err != nil {
		return common.NewUserError("unknown --layout", err)
	}

	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	store, err := openStore(ctx, cfg)
	if err != nil {
		return err
	}
	defer func() { _ = store.Close() }()

	importer := ingest.NewImporter(store)
	opts := ingest.Options{Layout: layout, Force: force, BatchSize: batchSize}

	var failed int
	for _, path := range args {
		result, err := importer.ImportFile(ctx, path, opts)
		if errors.Is(err, ingest.ErrAlreadyImported) {
			outln(cli.FormatWarning(fmt.Sprintf("%s was already imported, use --force to import it again", path)))
			continue
		}
		if err != nil {
			failed++
			slog.Error("Import failed", "path", path, "error", err)
			outln(cli.FormatError(fmt.Sprintf("%s: %v", path, err)))
			if ctx.Err() != nil {
				return ctx.Err()
			}
			continue
		}
		outln(cli.RenderBox(path, importSummary(result)))
	}

	if failed > 0 {
		return common.NewUserError(fmt.Sprintf("%d of %d files failed to import", failed, len(args)), nil)
	}
	return nil
}

func importSummary(r *ingest.Result) string {
	lines := []string{
		fmt.Sprintf("Rows read:     %d", r.Read),
		fmt.Sprintf("Rows inserted: %d", r.Inserted),
		fmt.Sprintf("Rows skipped:  %d", r.Skipped),
	}
	for i, d := range r.Diagnostics {
		if i == maxShownDiagnostics {
			lines = append(lines, cli.SubtleStyle.Render(fmt.Sprintf("... %d more", len(r.Diagnostics)-i)))
			break
		}
		line := d.String()
		if d.Skipped {
			line = cli.FormatWarning(line)
		} else {
			line = cli.SubtleStyle.Render(line)
		}
		lines = append(lines, line)
	}
	return strings.Join(lines, "\n")
}
