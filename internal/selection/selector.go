// Package selection picks, for one user and one report component, the prompt
// approach whose output stays closest to its template.
package selection

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/Veraticus/the-insight-must-flow/internal/common"
	"github.com/Veraticus/the-insight-must-flow/internal/model"
	"github.com/Veraticus/the-insight-must-flow/internal/prompt"
	"github.com/Veraticus/the-insight-must-flow/internal/scoring"
	"github.com/Veraticus/the-insight-must-flow/internal/service"
)

// Selection is the outcome of choosing an approach for one component.
type Selection struct {
	Component      model.Component
	Approach       model.Approach
	Candidates     []model.CandidateResult
	BestSimilarity float64
	// Fallback is true when no candidate was usable and DefaultApproach was chosen.
	Fallback bool
}

// Chosen returns the candidate of the selected approach, if one was generated.
func (s *Selection) Chosen() (model.CandidateResult, bool) {
	for _, c := range s.Candidates {
		if c.Approach == s.Approach {
			return c, true
		}
	}
	return model.CandidateResult{}, false
}

// Config holds configuration options for the selector.
type Config struct {
	// CallTimeout bounds each generation call. Zero disables the bound.
	CallTimeout time.Duration
}

// DefaultConfig returns the default selector configuration.
func DefaultConfig() Config {
	return Config{CallTimeout: 60 * time.Second}
}

// Selector generates one candidate per approach and keeps the best.
type Selector struct {
	registry  *prompt.Registry
	generator service.Generator
	scorer    *scoring.Scorer
	logger    *slog.Logger
	timeout   time.Duration
}

// New creates a selector with the default configuration.
func New(registry *prompt.Registry, generator service.Generator, scorer *scoring.Scorer) *Selector {
	return NewWithConfig(registry, generator, scorer, DefaultConfig())
}

// NewWithConfig creates a selector with custom configuration.
func NewWithConfig(registry *prompt.Registry, generator service.Generator, scorer *scoring.Scorer, config Config) *Selector {
	return &Selector{
		registry:  registry,
		generator: generator,
		scorer:    scorer,
		timeout:   config.CallTimeout,
		logger:    slog.Default().With("component", "selection"),
	}
}

// Select evaluates every approach registered for component against summary.
//
// Candidates are generated in registry order. A failed generation or scoring
// call is recorded on its candidate and never aborts the loop. The highest
// similarity among safe, non-empty candidates wins, the first one seen on a
// tie. When no candidate is usable the result falls back to
// model.DefaultApproach. Only context cancellation is returned as an error.
func (s *Selector) Select(ctx context.Context, component model.Component, summary string) (*Selection, error) {
	templates := s.registry.Templates(component)
	if len(templates) == 0 {
		return nil, fmt.Errorf("%w: no templates for component %q", common.ErrNotFound, component)
	}

	sel := &Selection{
		Component:      component,
		Approach:       model.DefaultApproach,
		BestSimilarity: model.UnusableSimilarity,
		Fallback:       true,
		Candidates:     make([]model.CandidateResult, 0, len(templates)),
	}

	for _, tmpl := range templates {
		candidate := s.evaluate(ctx, tmpl, summary)
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		sel.Candidates = append(sel.Candidates, candidate)

		if !usable(candidate) {
			continue
		}
		if sel.Fallback || candidate.SimilarityScore > sel.BestSimilarity {
			sel.Approach = candidate.Approach
			sel.BestSimilarity = candidate.SimilarityScore
			sel.Fallback = false
		}
	}

	if sel.Fallback {
		s.logger.Warn("No usable candidate, using default approach",
			"report_component", component,
			"approach", model.DefaultApproach)
	}
	return sel, nil
}

// SelectAll runs Select for every component of the registry in order.
func (s *Selector) SelectAll(ctx context.Context, summary string) ([]*Selection, error) {
	components := s.registry.Components()
	out := make([]*Selection, 0, len(components))
	for _, c := range components {
		sel, err := s.Select(ctx, c, summary)
		if err != nil {
			return nil, err
		}
		out = append(out, sel)
	}
	return out, nil
}

func (s *Selector) evaluate(ctx context.Context, tmpl *prompt.Template, summary string) model.CandidateResult {
	result := model.CandidateResult{
		Component:       tmpl.Component,
		Approach:        tmpl.Approach,
		SimilarityScore: model.UnusableSimilarity,
	}

	output, elapsed, err := Generate(ctx, s.generator, tmpl, summary, s.timeout)
	result.ResponseTime = elapsed
	if err != nil {
		result.Error = err.Error()
		s.logger.Warn("Generation failed",
			"report_component", tmpl.Component,
			"approach", tmpl.Approach,
			"error", err)
		return result
	}
	result.OutputText = output

	score, err := s.scorer.Score(ctx, tmpl.Text, output)
	if err != nil {
		result.Error = err.Error()
		s.logger.Warn("Scoring failed",
			"report_component", tmpl.Component,
			"approach", tmpl.Approach,
			"error", err)
		return result
	}

	result.Success = true
	result.EthicalFlag = score.EthicalFlag
	result.Confidence = score.Confidence
	result.SimilarityScore = score.SimilarityScore
	s.logger.Debug("Scored candidate",
		"report_component", tmpl.Component,
		"approach", tmpl.Approach,
		"ethical_flag", score.EthicalFlag,
		"similarity", score.SimilarityScore)
	return result
}

func usable(c model.CandidateResult) bool {
	return c.Success && c.EthicalFlag == model.FlagSafe && strings.TrimSpace(c.OutputText) != ""
}

// Generate renders tmpl with summary and calls the generator under an
// optional per-call timeout. It returns the output and the elapsed time.
func Generate(ctx context.Context, generator service.Generator, tmpl *prompt.Template, summary string, timeout time.Duration) (string, time.Duration, error) {
	rendered, err := tmpl.Render(summary)
	if err != nil {
		return "", 0, err
	}

	callCtx := ctx
	if timeout > 0 {
		var cancel context.CancelFunc
		callCtx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	start := time.Now()
	output, err := generator.Generate(callCtx, rendered)
	elapsed := time.Since(start)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) && ctx.Err() == nil {
			return "", elapsed, fmt.Errorf("%w: generation timed out after %s", common.ErrExternalCall, timeout)
		}
		return "", elapsed, fmt.Errorf("%w: generation: %w", common.ErrExternalCall, err)
	}
	return output, elapsed, nil
}
