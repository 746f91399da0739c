package evaluation

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"time"
	"unicode/utf8"

	"github.com/Veraticus/the-insight-must-flow/internal/common"
	"github.com/Veraticus/the-insight-must-flow/internal/model"
	"github.com/Veraticus/the-insight-must-flow/internal/profile"
	"github.com/Veraticus/the-insight-must-flow/internal/prompt"
	"github.com/Veraticus/the-insight-must-flow/internal/selection"
)

// charsPerToken approximates tokenization for cost estimates.
const charsPerToken = 4

// Rates are per-token prices used for cost estimates.
type Rates struct {
	Input  float64
	Output float64
}

// DefaultRates returns the per-token prices of the default generation model.
func DefaultRates() Rates {
	return Rates{Input: 0.000015, Output: 0.000075}
}

// EstimateCost prices a call from the character counts of its prompt and output.
func EstimateCost(input, output string, rates Rates) float64 {
	inputTokens := float64(utf8.RuneCountInString(input)) / charsPerToken
	outputTokens := float64(utf8.RuneCountInString(output)) / charsPerToken
	return inputTokens*rates.Input + outputTokens*rates.Output
}

// Progress is called after each candidate with the number of finished and
// total candidates.
type Progress func(done, total int)

// Config holds configuration options for the evaluator.
type Config struct {
	Progress    Progress
	Rates       Rates
	CallTimeout time.Duration
}

// DefaultConfig returns the default evaluator configuration.
func DefaultConfig() Config {
	return Config{
		Rates:       DefaultRates(),
		CallTimeout: 60 * time.Second,
	}
}

// Evaluator runs segment evaluations.
type Evaluator struct {
	deps   Deps
	logger *slog.Logger
	config Config
}

// New creates an evaluator with the default configuration.
func New(deps Deps) (*Evaluator, error) {
	return NewWithConfig(deps, DefaultConfig())
}

// NewWithConfig creates an evaluator with custom configuration.
func NewWithConfig(deps Deps, config Config) (*Evaluator, error) {
	if err := deps.Validate(); err != nil {
		return nil, fmt.Errorf("invalid dependencies: %w", err)
	}
	return &Evaluator{
		deps:   deps,
		config: config,
		logger: slog.Default().With("component", "evaluation"),
	}, nil
}

// Result is everything one evaluation produced.
type Result struct {
	Run      *model.EvaluationRun
	Metrics  Metrics
	Cross    CrossSimilarity
	Best     BestApproaches
	Plan     Plan
	Segments []string
}

// Run evaluates every (segment, user, component, approach) tuple of grouping
// for the given month. Users whose profile cannot be read are skipped.
// Generation failures are recorded on their candidates. Only an invalid
// month, context cancellation or a failed save end the run with an error.
func (e *Evaluator) Run(ctx context.Context, year, month int, grouping map[string][]string) (*Result, error) {
	if err := common.ValidateMonth(month); err != nil {
		return nil, err
	}

	plan := PlanFromRegistry(e.deps.Registry)
	segments := sortedKeys(grouping)
	run := &model.EvaluationRun{
		Year:      year,
		Month:     month,
		StartedAt: time.Now().UTC(),
	}

	perUser := e.deps.Registry.Len()
	total := 0
	for _, users := range grouping {
		total += len(users) * perUser
	}
	done := 0
	report := func(n int) {
		done += n
		if e.config.Progress != nil {
			e.config.Progress(done, total)
		}
	}

	for _, segment := range segments {
		for _, userID := range grouping[segment] {
			if err := ctx.Err(); err != nil {
				return nil, err
			}
			e.logger.Info("Evaluating user", "segment", segment, "user_id", userID)

			p, err := e.deps.Profiles.MonthlyProfile(ctx, userID, year, month)
			if err != nil {
				e.logger.Warn("Skipping user without profile",
					"segment", segment,
					"user_id", userID,
					"error", err)
				report(perUser)
				continue
			}
			summary := profile.Render(p, userID, year, month)

			userResult := model.UserResult{Segment: segment, UserID: userID}
			for _, entry := range plan {
				for _, approach := range entry.Approaches {
					tmpl, _ := e.deps.Registry.Get(entry.Component, approach)
					candidate := e.evaluate(ctx, tmpl, summary)
					if err := ctx.Err(); err != nil {
						return nil, err
					}
					userResult.Candidates = append(userResult.Candidates, candidate)
					report(1)
				}
			}
			run.Users = append(run.Users, userResult)
		}
	}
	run.FinishedAt = time.Now().UTC()

	metrics := Aggregate(run, segments, plan)
	result := &Result{
		Run:      run,
		Metrics:  metrics,
		Cross:    CrossSegmentSimilarity(metrics, segments, plan),
		Best:     SelectBestApproaches(metrics, segments, plan),
		Plan:     plan,
		Segments: segments,
	}

	if e.deps.Store != nil {
		if err := e.deps.Store.SaveEvaluationRun(ctx, run); err != nil {
			return result, fmt.Errorf("failed to save evaluation run: %w", err)
		}
		e.logger.Info("Saved evaluation run", "run_id", run.ID, "users", len(run.Users))
	}
	return result, nil
}

func (e *Evaluator) evaluate(ctx context.Context, tmpl *prompt.Template, summary string) model.CandidateResult {
	result := model.CandidateResult{
		Component:       tmpl.Component,
		Approach:        tmpl.Approach,
		SimilarityScore: model.UnusableSimilarity,
	}

	rendered, err := tmpl.Render(summary)
	if err != nil {
		result.Error = err.Error()
		return result
	}

	output, elapsed, err := selection.Generate(ctx, e.deps.Generator, tmpl, summary, e.config.CallTimeout)
	result.ResponseTime = elapsed
	result.EstimatedCost = EstimateCost(rendered, output, e.config.Rates)
	if err != nil {
		result.Error = err.Error()
		e.logger.Warn("Generation failed",
			"report_component", tmpl.Component,
			"approach", tmpl.Approach,
			"error", err)
		return result
	}
	result.Success = true
	result.OutputText = output

	if e.deps.Scorer == nil {
		return result
	}
	score, err := e.deps.Scorer.Score(ctx, tmpl.Text, output)
	if err != nil {
		// The generation itself succeeded, so the candidate still counts.
		result.Error = err.Error()
		e.logger.Warn("Scoring failed",
			"report_component", tmpl.Component,
			"approach", tmpl.Approach,
			"error", err)
		return result
	}
	result.EthicalFlag = score.EthicalFlag
	result.Confidence = score.Confidence
	result.SimilarityScore = score.SimilarityScore
	return result
}

func sortedKeys(m map[string][]string) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
