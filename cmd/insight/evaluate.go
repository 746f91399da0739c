package main

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/Veraticus/the-insight-must-flow/internal/cli"
	"github.com/Veraticus/the-insight-must-flow/internal/evaluation"
	"github.com/Veraticus/the-insight-must-flow/internal/prompt"
)

func evaluateCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "evaluate",
		Short: "Compare prompting approaches across customer segments",
		Long: `Run every prompting approach for every user of every segment, then report
per segment the success rate, response time, estimated cost and how similar
the outputs of one approach are to each other, compare the outputs of each
pair of segments, and pick the best approach per segment and component.

The run is stored in the database and a Markdown report is written to --out
or printed.`,
		Args: cobra.NoArgs,
		RunE: runEvaluate,
	}
	addPeriodFlags(cmd)
	addSegmentFlags(cmd)
	cmd.Flags().String("out", "", "write the Markdown report to this file")
	return cmd
}

func runEvaluate(cmd *cobra.Command, _ []string) error {
	ctx := cmd.Context()
	year, month, err := readPeriod(cmd)
	if err != nil {
		return err
	}
	out, _ := cmd.Flags().GetString("out")

	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	opts, err := segmentOptions(cmd, cfg)
	if err != nil {
		return err
	}

	store, err := openStore(ctx, cfg)
	if err != nil {
		return err
	}
	defer func() { _ = store.Close() }()
	engine := newAnalytics(store, cfg)

	groups, err := engine.SegmentUsers(ctx, year, month, opts)
	if err != nil {
		return err
	}
	if len(groups) == 0 {
		outln(cli.FormatInfo(fmt.Sprintf("No segment has %d active users in this period.", opts.MaxUsers)))
		return nil
	}

	registry, err := loadRegistry(cfg, prompt.DefaultEvaluationRegistry)
	if err != nil {
		return err
	}
	p, err := newProviders(cfg)
	if err != nil {
		return err
	}
	defer p.Close()

	progress := cli.NewProgress(os.Stderr, "Evaluating approaches")
	evaluator, err := evaluation.NewWithConfig(evaluation.Deps{
		Profiles:  engine,
		Generator: p.generator,
		Registry:  registry,
		Scorer:    p.scorer,
		Store:     store,
	}, evaluation.Config{
		Progress:    progress.Update,
		Rates:       evaluation.Rates{Input: cfg.InputRate, Output: cfg.OutputRate},
		CallTimeout: cfg.LLM.Timeout,
	})
	if err != nil {
		return err
	}

	result, err := evaluator.Run(ctx, year, month, groups)
	progress.Finish()
	if err != nil {
		return err
	}

	markdown := evaluation.RenderMarkdown(result)
	if out == "" {
		outln(markdown)
	} else {
		if err := os.MkdirAll(filepath.Dir(out), 0750); err != nil {
			return fmt.Errorf("failed to create output directory: %w", err)
		}
		if err := os.WriteFile(out, []byte(markdown), 0600); err != nil {
			return fmt.Errorf("failed to write report: %w", err)
		}
		outln(cli.FormatSuccess("Wrote evaluation report to " + out))
	}
	outln(cli.FormatInfo(fmt.Sprintf("Evaluation run %s: %d segments", result.Run.ID, len(result.Segments))))
	return nil
}
