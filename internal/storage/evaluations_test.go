package storage

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Veraticus/the-insight-must-flow/internal/common"
	"github.com/Veraticus/the-insight-must-flow/internal/model"
)

func TestEvaluationRun_SaveAndLoad(t *testing.T) {
	store, cleanup := createTestStorage(t)
	defer cleanup()
	ctx := context.Background()

	started := time.Date(2025, 4, 1, 9, 0, 0, 0, time.UTC)
	run := &model.EvaluationRun{
		Year:       2025,
		Month:      3,
		StartedAt:  started,
		FinishedAt: started.Add(2 * time.Minute),
		Users: []model.UserResult{
			{
				Segment: "YOUNG_PRO",
				UserID:  "u1",
				Candidates: []model.CandidateResult{
					{
						Component:       model.ComponentExecutiveSummary,
						Approach:        model.ApproachZeroShot,
						Success:         true,
						EthicalFlag:     "Safe",
						Confidence:      0.98,
						SimilarityScore: 0.61,
						ResponseTime:    1500 * time.Millisecond,
						EstimatedCost:   0.0123,
						OutputText:      "Your spending was steady.",
					},
					{
						Component: model.ComponentExecutiveSummary,
						Approach:  model.ApproachFewShot,
						Error:     "timeout",
					},
				},
			},
			{
				Segment:    "STUDENT",
				UserID:     "u2",
				Candidates: []model.CandidateResult{{Component: model.ComponentCashFlow, Approach: model.ApproachChainOfThought, Success: true}},
			},
		},
	}

	require.NoError(t, store.SaveEvaluationRun(ctx, run))
	_, err := uuid.Parse(run.ID)
	require.NoError(t, err, "run id should be a uuid")

	got, err := store.GetEvaluationRun(ctx, run.ID)
	require.NoError(t, err)

	assert.Equal(t, 2025, got.Year)
	assert.Equal(t, 3, got.Month)
	assert.True(t, got.StartedAt.Equal(run.StartedAt))
	assert.True(t, got.FinishedAt.Equal(run.FinishedAt))
	require.Len(t, got.Users, 2)
	assert.Equal(t, "YOUNG_PRO", got.Users[0].Segment)
	require.Len(t, got.Users[0].Candidates, 2)
	assert.Equal(t, run.Users[0].Candidates[0], got.Users[0].Candidates[0])
	assert.Equal(t, "timeout", got.Users[0].Candidates[1].Error)
	assert.False(t, got.Users[0].Candidates[1].Success)
	assert.Equal(t, "u2", got.Users[1].UserID)
}

func TestEvaluationRun_Errors(t *testing.T) {
	store, cleanup := createTestStorage(t)
	defer cleanup()
	ctx := context.Background()

	_, err := store.GetEvaluationRun(ctx, "missing")
	assert.ErrorIs(t, err, common.ErrNotFound)

	assert.ErrorIs(t, store.SaveEvaluationRun(ctx, nil), ErrNilParameter)
	assert.ErrorIs(t, store.SaveEvaluationRun(ctx, &model.EvaluationRun{Year: 2025, Month: 14}), common.ErrInvalidArgument)
}
