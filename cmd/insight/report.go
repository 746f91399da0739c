package main

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/Veraticus/the-insight-must-flow/internal/cli"
	"github.com/Veraticus/the-insight-must-flow/internal/common"
	"github.com/Veraticus/the-insight-must-flow/internal/model"
	"github.com/Veraticus/the-insight-must-flow/internal/profile"
	"github.com/Veraticus/the-insight-must-flow/internal/prompt"
	"github.com/Veraticus/the-insight-must-flow/internal/report"
)

func reportCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "report [user_id...]",
		Short: "Generate monthly reports for users",
		Long: `Generate a report for each user: every component is written by the
prompting approach whose output stays closest to its template, after
unethical output has been ruled out. Use --approach component=approach to
skip selection for a component.

Reports are written to <dir>/<year>/<Month>/<user>_<year>_<Month>.json.`,
		RunE: runReport,
	}
	addPeriodFlags(cmd)
	cmd.Flags().Bool("all-active", false, "generate for every active user of the month")
	cmd.Flags().StringToString("approach", nil, "fixed approach per component, e.g. executive_summary=few_shot")
	cmd.Flags().String("out", "", "report directory (default reports.dir)")

	cmd.AddCommand(reportExtractCmd())
	return cmd
}

func runReport(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	year, month, err := readPeriod(cmd)
	if err != nil {
		return err
	}
	allActive, _ := cmd.Flags().GetBool("all-active")
	fixed, _ := cmd.Flags().GetStringToString("approach")
	if len(args) == 0 && !allActive {
		return common.NewUserError("name at least one user or pass --all-active", nil)
	}

	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	outDir := cfg.ReportsDir
	if v, _ := cmd.Flags().GetString("out"); v != "" {
		outDir = v
	}

	var approaches map[model.Component]model.Approach
	if len(fixed) > 0 {
		approaches = make(map[model.Component]model.Approach, len(fixed))
		for c, a := range fixed {
			approaches[model.Component(c)] = model.Approach(a)
		}
	}

	store, err := openStore(ctx, cfg)
	if err != nil {
		return err
	}
	defer func() { _ = store.Close() }()
	engine := newAnalytics(store, cfg)

	users := args
	if allActive {
		opts, err := activeOptions(cmd, cfg.Analytics.MinTransactions, cfg.Analytics.MaxUsers)
		if err != nil {
			return err
		}
		active, err := engine.ActiveUsers(ctx, year, month, opts)
		if err != nil {
			return err
		}
		users = append(users, active...)
	}

	registry, err := loadRegistry(cfg, prompt.DefaultReportRegistry)
	if err != nil {
		return err
	}
	p, err := newProviders(cfg)
	if err != nil {
		return err
	}
	defer p.Close()

	generator, err := report.NewWithConfig(
		report.Deps{Registry: registry, Generator: p.generator, Scorer: p.scorer},
		report.Config{CallTimeout: cfg.LLM.Timeout},
	)
	if err != nil {
		return err
	}

	progress := cli.NewProgress(os.Stderr, "Generating reports")
	var written int
	for i, userID := range users {
		progress.Update(i, len(users))

		prof, err := engine.MonthlyProfile(ctx, userID, year, month)
		if err != nil {
			slog.Warn("Skipping user", "user_id", userID, "error", err)
			continue
		}

		r, err := generator.Generate(ctx, userID, year, month, profile.Render(prof, userID, year, month), approaches)
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			slog.Error("Report generation failed", "user_id", userID, "error", err)
			continue
		}

		path, err := report.Save(r, outDir)
		if err != nil {
			return err
		}
		written++
		slog.Info("Saved report", "user_id", userID, "path", path)
	}
	progress.Update(len(users), len(users))
	progress.Finish()

	outln(cli.FormatSuccess(fmt.Sprintf("Wrote %d of %d reports to %s", written, len(users), outDir)))
	return nil
}

func reportExtractCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "extract [reports_dir]",
		Short: "Flatten saved report evaluations into a CSV file",
		Long: `Read every saved report below reports_dir (default reports.dir) and write one
CSV row per report component with its ethics flag, confidence, similarity
score and the approach that produced it.`,
		Args: cobra.MaximumNArgs(1),
		RunE: runReportExtract,
	}
	cmd.Flags().String("out", "", "output CSV path (default <reports_dir>/"+report.EvaluationsFile+")")
	return cmd
}

func runReportExtract(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	dir := cfg.ReportsDir
	if len(args) == 1 {
		dir = args[0]
	}
	out, _ := cmd.Flags().GetString("out")
	if out == "" {
		out = filepath.Join(dir, report.EvaluationsFile)
	}

	reports, err := report.LoadDir(dir)
	if err != nil {
		return err
	}
	rows := report.EvaluationRows(reports)
	if len(rows) == 0 {
		outln(cli.FormatInfo("No evaluation data found."))
		return nil
	}

	if err := os.MkdirAll(filepath.Dir(out), 0750); err != nil {
		return fmt.Errorf("failed to create output directory: %w", err)
	}
	f, err := os.Create(filepath.Clean(out))
	if err != nil {
		return fmt.Errorf("failed to create %s: %w", out, err)
	}
	if err := report.WriteRowsCSV(f, rows); err != nil {
		_ = f.Close()
		return err
	}
	if err := f.Close(); err != nil {
		return fmt.Errorf("failed to close %s: %w", out, err)
	}

	outln(cli.FormatSuccess(fmt.Sprintf("Wrote %d rows from %d reports to %s", len(rows), len(reports), out)))
	return nil
}
