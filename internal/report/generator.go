// Package report builds the per-user monthly report artifact: one generated
// text per component, each with its ethics and similarity evaluation.
package report

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"time"

	"github.com/Veraticus/the-insight-must-flow/internal/common"
	"github.com/Veraticus/the-insight-must-flow/internal/model"
	"github.com/Veraticus/the-insight-must-flow/internal/prompt"
	"github.com/Veraticus/the-insight-must-flow/internal/scoring"
	"github.com/Veraticus/the-insight-must-flow/internal/selection"
	"github.com/Veraticus/the-insight-must-flow/internal/service"
)

// Deps holds the collaborators of a report generator.
type Deps struct {
	Registry  *prompt.Registry
	Generator service.Generator
	Scorer    *scoring.Scorer
}

// Validate ensures all required dependencies are provided.
func (d Deps) Validate() error {
	if d.Registry == nil {
		return fmt.Errorf("registry is required")
	}
	if d.Generator == nil {
		return fmt.Errorf("generator is required")
	}
	if d.Scorer == nil {
		return fmt.Errorf("scorer is required")
	}
	return nil
}

// Config holds configuration options for report generation.
type Config struct {
	// CallTimeout bounds each generation call. Zero disables the bound.
	CallTimeout time.Duration
}

// DefaultConfig returns the default report configuration.
func DefaultConfig() Config {
	return Config{CallTimeout: selection.DefaultConfig().CallTimeout}
}

// Generator produces reports.
type Generator struct {
	deps     Deps
	selector *selection.Selector
	logger   *slog.Logger
	config   Config
}

// New creates a report generator with the default configuration.
func New(deps Deps) (*Generator, error) {
	return NewWithConfig(deps, DefaultConfig())
}

// NewWithConfig creates a report generator with custom configuration.
func NewWithConfig(deps Deps, config Config) (*Generator, error) {
	if err := deps.Validate(); err != nil {
		return nil, fmt.Errorf("invalid dependencies: %w", err)
	}
	return &Generator{
		deps:     deps,
		config:   config,
		selector: selection.NewWithConfig(deps.Registry, deps.Generator, deps.Scorer, selection.Config{CallTimeout: config.CallTimeout}),
		logger:   slog.Default().With("component", "report"),
	}, nil
}

// Generate builds the report for one user and month.
//
// With approaches nil every component runs approach selection and the
// winning candidate's output becomes the component text. Otherwise each
// component is generated once with the approach named in approaches, or
// model.DefaultApproach when the map has no entry for it.
func (g *Generator) Generate(ctx context.Context, userID string, year, month int, summary string, approaches map[model.Component]model.Approach) (*model.Report, error) {
	if err := common.ValidateMonth(month); err != nil {
		return nil, err
	}
	if userID == "" {
		return nil, common.InvalidArgumentf("report needs a user id")
	}

	report := &model.Report{
		Metadata: model.ReportMetadata{
			UserID: userID,
			Year:   year,
			Month:  time.Month(month).String(),
		},
		ReportComponents: make(map[model.Component]string),
		Evaluation:       make(map[model.Component]model.Score),
		BestApproaches:   make(map[model.Component]model.Approach),
	}

	for _, component := range g.deps.Registry.Components() {
		var (
			text  string
			score model.Score
			used  model.Approach
			err   error
		)
		if approaches == nil {
			text, score, used, err = g.selected(ctx, component, summary)
		} else {
			used = approaches[component]
			if used == "" {
				used = model.DefaultApproach
			}
			text, score, err = g.generate(ctx, component, used, summary)
		}
		if err != nil {
			return nil, fmt.Errorf("component %s: %w", component, err)
		}

		report.ReportComponents[component] = text
		report.Evaluation[component] = rounded(score)
		report.BestApproaches[component] = used
	}

	g.logger.Info("Generated report",
		"user_id", userID,
		"year", year,
		"month", report.Metadata.Month,
		"components", len(report.ReportComponents))
	return report, nil
}

// selected runs approach selection and reuses the winner's output. A
// fallback regenerates with the default approach since no candidate is usable.
func (g *Generator) selected(ctx context.Context, component model.Component, summary string) (string, model.Score, model.Approach, error) {
	sel, err := g.selector.Select(ctx, component, summary)
	if err != nil {
		return "", model.Score{}, "", err
	}
	if !sel.Fallback {
		if c, ok := sel.Chosen(); ok {
			return c.OutputText, model.Score{
				EthicalFlag:     c.EthicalFlag,
				Confidence:      c.Confidence,
				SimilarityScore: c.SimilarityScore,
			}, sel.Approach, nil
		}
	}
	text, score, err := g.generate(ctx, component, sel.Approach, summary)
	return text, score, sel.Approach, err
}

func (g *Generator) generate(ctx context.Context, component model.Component, approach model.Approach, summary string) (string, model.Score, error) {
	tmpl, ok := g.deps.Registry.Get(component, approach)
	if !ok {
		return "", model.Score{}, fmt.Errorf("%w: no %s template for %s", common.ErrNotFound, approach, component)
	}

	text, _, err := selection.Generate(ctx, g.deps.Generator, tmpl, summary, g.config.CallTimeout)
	if err != nil {
		return "", model.Score{}, err
	}
	score, err := g.deps.Scorer.Score(ctx, tmpl.Text, text)
	if err != nil {
		return "", model.Score{}, err
	}
	return text, score, nil
}

func rounded(s model.Score) model.Score {
	s.Confidence = round2(s.Confidence)
	s.SimilarityScore = round2(s.SimilarityScore)
	return s
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}
