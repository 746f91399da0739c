package evaluation

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Veraticus/the-insight-must-flow/internal/model"
)

var testPlan = Plan{
	{Component: model.ComponentExecutiveSummary, Approaches: []model.Approach{model.ApproachZeroShot, model.ApproachFewShot}},
	{Component: model.ComponentCashFlow, Approaches: []model.Approach{model.ApproachChainOfThought}},
}

func ok(c model.Component, a model.Approach, output string, seconds float64, cost float64) model.CandidateResult {
	return model.CandidateResult{
		Component:     c,
		Approach:      a,
		Success:       true,
		OutputText:    output,
		ResponseTime:  time.Duration(seconds * float64(time.Second)),
		EstimatedCost: cost,
	}
}

func failed(c model.Component, a model.Approach, cost float64) model.CandidateResult {
	return model.CandidateResult{Component: c, Approach: a, Error: "boom", EstimatedCost: cost}
}

func TestAggregate(t *testing.T) {
	run := &model.EvaluationRun{Users: []model.UserResult{
		{Segment: "alpha", UserID: "u1", Candidates: []model.CandidateResult{
			ok(model.ComponentExecutiveSummary, model.ApproachZeroShot, "save more money", 1, 0.01),
			failed(model.ComponentExecutiveSummary, model.ApproachFewShot, 0.5),
			failed(model.ComponentCashFlow, model.ApproachChainOfThought, 0.5),
		}},
		{Segment: "alpha", UserID: "u2", Candidates: []model.CandidateResult{
			ok(model.ComponentExecutiveSummary, model.ApproachZeroShot, "save more money", 3, 0.03),
			ok(model.ComponentExecutiveSummary, model.ApproachFewShot, "only one", 2, 0.02),
			ok(model.ComponentCashFlow, model.ApproachChainOfThought, "", 4, 0.04),
		}},
	}}

	metrics := Aggregate(run, []string{"alpha", "beta"}, testPlan)

	zs := metrics.Get("alpha", model.ComponentExecutiveSummary, model.ApproachZeroShot)
	require.NotNil(t, zs)
	assert.Equal(t, 2, zs.TotalUsers)
	assert.InDelta(t, 1.0, zs.SuccessRate, 1e-12)
	assert.InDelta(t, 2.0, zs.AvgResponseTime, 1e-9)
	assert.InDelta(t, 0.02, zs.AvgCost, 1e-12)
	assert.InDelta(t, 1.0, zs.WithinSegmentSimilarity, 1e-9)

	t.Run("single output has zero within similarity", func(t *testing.T) {
		fs := metrics.Get("alpha", model.ComponentExecutiveSummary, model.ApproachFewShot)
		assert.InDelta(t, 0.5, fs.SuccessRate, 1e-12)
		assert.InDelta(t, 2.0, fs.AvgResponseTime, 1e-9)
		assert.InDelta(t, 0.02, fs.AvgCost, 1e-12, "failed candidates are not averaged")
		assert.Zero(t, fs.WithinSegmentSimilarity)
	})

	t.Run("empty output counts as success without output", func(t *testing.T) {
		cf := metrics.Get("alpha", model.ComponentCashFlow, model.ApproachChainOfThought)
		assert.Equal(t, 1, cf.Successes)
		assert.Empty(t, cf.Outputs)
	})

	t.Run("segment without users has zero metrics", func(t *testing.T) {
		beta := metrics.Get("beta", model.ComponentExecutiveSummary, model.ApproachZeroShot)
		require.NotNil(t, beta)
		assert.Equal(t, model.SegmentMetric{}, *beta)
	})

	assert.Nil(t, metrics.Get("alpha", model.ComponentRecommendations, model.ApproachZeroShot))
}

func TestCrossSegmentSimilarity(t *testing.T) {
	metrics := Metrics{
		"a": {model.ComponentExecutiveSummary: {
			model.ApproachZeroShot: {Outputs: []string{"a b c"}},
			model.ApproachFewShot:  {Outputs: []string{"x y"}},
		}},
		"b": {model.ComponentExecutiveSummary: {
			model.ApproachZeroShot: {Outputs: []string{"a b c"}},
			model.ApproachFewShot:  {},
		}},
		"c": {model.ComponentExecutiveSummary: {
			model.ApproachZeroShot: {Outputs: []string{"d e f"}},
			model.ApproachFewShot:  {},
		}},
	}
	plan := Plan{{Component: model.ComponentExecutiveSummary, Approaches: []model.Approach{model.ApproachZeroShot, model.ApproachFewShot}}}

	cross := CrossSegmentSimilarity(metrics, []string{"a", "b", "c"}, plan)

	pairs := cross[model.ComponentExecutiveSummary][model.ApproachZeroShot]
	require.Len(t, pairs, 3)
	assert.Equal(t, "a", pairs[0].A)
	assert.Equal(t, "b", pairs[0].B)
	assert.InDelta(t, 1.0, pairs[0].Similarity, 1e-9)
	assert.Equal(t, []string{"a", "c"}, []string{pairs[1].A, pairs[1].B})
	assert.InDelta(t, 0.0, pairs[1].Similarity, 1e-12)
	assert.Equal(t, []string{"b", "c"}, []string{pairs[2].A, pairs[2].B})

	assert.Empty(t, cross[model.ComponentExecutiveSummary][model.ApproachFewShot], "one qualifying segment")
}

func TestSelectBestApproaches(t *testing.T) {
	plan := Plan{{
		Component:  model.ComponentExecutiveSummary,
		Approaches: []model.Approach{model.ApproachZeroShot, model.ApproachFewShot, model.ApproachChainOfThought},
	}}

	tests := []struct {
		name    string
		metrics map[model.Approach]*model.SegmentMetric
		want    model.Approach
	}{
		{
			name: "no qualifier",
			metrics: map[model.Approach]*model.SegmentMetric{
				model.ApproachZeroShot: {}, model.ApproachFewShot: {}, model.ApproachChainOfThought: {},
			},
			want: "",
		},
		{
			name: "single qualifier wins outright",
			metrics: map[model.Approach]*model.SegmentMetric{
				model.ApproachZeroShot:       {},
				model.ApproachFewShot:        {SuccessRate: 0.1, AvgResponseTime: 99, WithinSegmentSimilarity: 1},
				model.ApproachChainOfThought: {},
			},
			want: model.ApproachFewShot,
		},
		{
			name: "diversity and speed beat success rate",
			metrics: map[model.Approach]*model.SegmentMetric{
				// 0.4 + 0 + 0.175 + 0 = 0.575
				model.ApproachZeroShot: {SuccessRate: 1, AvgResponseTime: 2, AvgCost: 0.02, WithinSegmentSimilarity: 0.5},
				// 0.2 + 0.075 + 0.315 + 0.05 = 0.64
				model.ApproachFewShot:        {SuccessRate: 0.5, AvgResponseTime: 1, AvgCost: 0.01, WithinSegmentSimilarity: 0.1},
				model.ApproachChainOfThought: {},
			},
			want: model.ApproachFewShot,
		},
		{
			name: "zero maxima normalize by one",
			metrics: map[model.Approach]*model.SegmentMetric{
				model.ApproachZeroShot:       {SuccessRate: 0.5},
				model.ApproachFewShot:        {SuccessRate: 0.5},
				model.ApproachChainOfThought: {SuccessRate: 1},
			},
			want: model.ApproachChainOfThought,
		},
		{
			name: "ties keep plan order",
			metrics: map[model.Approach]*model.SegmentMetric{
				model.ApproachZeroShot:       {},
				model.ApproachFewShot:        {SuccessRate: 1, AvgResponseTime: 1, WithinSegmentSimilarity: 0.3},
				model.ApproachChainOfThought: {SuccessRate: 1, AvgResponseTime: 1, WithinSegmentSimilarity: 0.3},
			},
			want: model.ApproachFewShot,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			metrics := Metrics{"seg": {model.ComponentExecutiveSummary: tt.metrics}}
			first := SelectBestApproaches(metrics, []string{"seg"}, plan)
			second := SelectBestApproaches(metrics, []string{"seg"}, plan)

			assert.Equal(t, tt.want, first["seg"][model.ComponentExecutiveSummary])
			assert.Equal(t, first, second)
		})
	}
}

func TestEstimateCost(t *testing.T) {
	rates := DefaultRates()
	assert.InDelta(t, 0.000015+2*0.000075, EstimateCost("abcd", "abcdefgh", rates), 1e-15)
	assert.InDelta(t, 0.000015, EstimateCost("éééé", "", rates), 1e-15)
	assert.Zero(t, EstimateCost("", "", rates))
}
