package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/Veraticus/the-insight-must-flow/internal/analytics"
	"github.com/Veraticus/the-insight-must-flow/internal/common"
	"github.com/Veraticus/the-insight-must-flow/internal/config"
	"github.com/Veraticus/the-insight-must-flow/internal/llm"
	"github.com/Veraticus/the-insight-must-flow/internal/prompt"
	"github.com/Veraticus/the-insight-must-flow/internal/scoring"
	"github.com/Veraticus/the-insight-must-flow/internal/service"
	"github.com/Veraticus/the-insight-must-flow/internal/storage"
)

func loadConfig() (*config.Config, error) {
	cfg, err := config.Load(viper.GetViper())
	if err != nil {
		return nil, common.NewUserError("invalid configuration", err)
	}
	return cfg, nil
}

// openStore opens the configured database and brings its schema up to date.
func openStore(ctx context.Context, cfg *config.Config) (*storage.SQLiteStorage, error) {
	store, err := storage.NewSQLiteStorage(cfg.DatabasePath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	if err := store.Migrate(ctx); err != nil {
		_ = store.Close()
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}
	return store, nil
}

func newAnalytics(store service.Storage, cfg *config.Config) *analytics.Engine {
	return analytics.NewWithConfig(store, analytics.Config{CacheStats: cfg.Analytics.CacheStats})
}

func addPeriodFlags(cmd *cobra.Command) {
	cmd.Flags().Int("year", 0, "year to analyze (required)")
	cmd.Flags().Int("month", 0, "month to analyze, 1-12 (required)")
}

func readPeriod(cmd *cobra.Command) (int, int, error) {
	year, _ := cmd.Flags().GetInt("year")
	month, _ := cmd.Flags().GetInt("month")
	if year == 0 || month == 0 {
		return 0, 0, common.NewUserError("--year and --month are required", nil)
	}
	if err := common.ValidateMonth(month); err != nil {
		return 0, 0, common.NewUserError("--month must be between 1 and 12", err)
	}
	return year, month, nil
}

// loadRegistry returns base with the configured prompt overrides applied.
func loadRegistry(cfg *config.Config, base func() (*prompt.Registry, error)) (*prompt.Registry, error) {
	registry, err := base()
	if err != nil {
		return nil, fmt.Errorf("failed to load prompt templates: %w", err)
	}
	if cfg.PromptsFile != "" {
		if err := prompt.LoadOverrides(cfg.PromptsFile, registry); err != nil {
			return nil, err
		}
		slog.Debug("Applied prompt overrides", "path", cfg.PromptsFile)
	}
	return registry, nil
}

// providers holds the external collaborators of the generation commands.
type providers struct {
	generator service.Generator
	scorer    *scoring.Scorer
	closers   []io.Closer
}

func newProviders(cfg *config.Config) (*providers, error) {
	if cfg.LLM.APIKey == "" {
		return nil, common.NewUserError(
			fmt.Sprintf("no API key for LLM provider %q; set llm.api_key or the provider's environment variable", cfg.LLM.Provider),
			common.ErrMissingConfig)
	}
	if cfg.Ethics.APIKey == "" {
		slog.Warn("No Hugging Face token configured, ethics classification may be rate limited")
	}

	generator, err := llm.NewGenerator(cfg.LLM, slog.Default())
	if err != nil {
		return nil, common.NewUserError("could not set up the LLM client", err)
	}
	embedder, err := llm.NewEmbedder(cfg.Embedding)
	if err != nil {
		return nil, common.NewUserError("could not set up the embedding client", err)
	}
	classifier := llm.NewEthicsClassifier(cfg.Ethics)

	p := &providers{
		generator: generator,
		scorer:    scoring.New(classifier, embedder),
		closers:   []io.Closer{classifier},
	}
	if c, ok := embedder.(io.Closer); ok {
		p.closers = append(p.closers, c)
	}
	return p, nil
}

func (p *providers) Close() {
	for _, c := range p.closers {
		if err := c.Close(); err != nil {
			slog.Warn("Failed to close provider", "error", err)
		}
	}
}

func outf(format string, args ...any) {
	if _, err := fmt.Fprintf(os.Stdout, format, args...); err != nil {
		slog.Error("failed to write output", "error", err)
	}
}

func outln(a ...any) {
	if _, err := fmt.Fprintln(os.Stdout, a...); err != nil {
		slog.Error("failed to write output", "error", err)
	}
}
