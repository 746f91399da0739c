package scoring

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/Veraticus/the-insight-must-flow/internal/common"
	"github.com/Veraticus/the-insight-must-flow/internal/model"
	"github.com/Veraticus/the-insight-must-flow/internal/testutil"
)

func safe() model.EthicsVerdict {
	return model.EthicsVerdict{Label: model.FlagSafe, Confidence: 0.97}
}

func TestScore_SafeOutput(t *testing.T) {
	ctx := context.Background()
	classifier := new(testutil.MockClassifier)
	embedder := new(testutil.MockEmbedder)

	classifier.On("Classify", ctx, "output").Return(safe(), nil)
	embedder.On("Embed", ctx, []string{"template", "output"}).
		Return([][]float64{{1, 0}, {1, 1}}, nil)

	score, err := New(classifier, embedder).Score(ctx, "template", "output")
	require.NoError(t, err)

	assert.Equal(t, model.FlagSafe, score.EthicalFlag)
	assert.InDelta(t, 0.97, score.Confidence, 1e-12)
	assert.InDelta(t, 0.7071067811865475, score.SimilarityScore, 1e-12)
	classifier.AssertExpectations(t)
	embedder.AssertExpectations(t)
}

func TestScore_UnusableOutputSkipsEmbedding(t *testing.T) {
	tests := []struct {
		name    string
		output  string
		verdict model.EthicsVerdict
		flag    string
	}{
		{
			name:    "unsafe output",
			output:  "do something shady",
			verdict: model.EthicsVerdict{Label: "Unethical", Confidence: 0.8},
			flag:    "Unethical",
		},
		{
			name:    "empty output",
			output:  "",
			verdict: safe(),
			flag:    model.FlagSafe,
		},
		{
			name:    "whitespace output",
			output:  " \n\t",
			verdict: safe(),
			flag:    model.FlagSafe,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ctx := context.Background()
			classifier := new(testutil.MockClassifier)
			embedder := new(testutil.MockEmbedder)
			classifier.On("Classify", ctx, tt.output).Return(tt.verdict, nil)

			score, err := New(classifier, embedder).Score(ctx, "template", tt.output)
			require.NoError(t, err)

			assert.Equal(t, tt.flag, score.EthicalFlag)
			assert.Equal(t, model.UnusableSimilarity, score.SimilarityScore)
			embedder.AssertNotCalled(t, "Embed", mock.Anything, mock.Anything)
		})
	}
}

func TestScore_Errors(t *testing.T) {
	ctx := context.Background()
	boom := errors.New("boom")

	t.Run("classifier failure", func(t *testing.T) {
		classifier := new(testutil.MockClassifier)
		classifier.On("Classify", ctx, "out").Return(model.EthicsVerdict{}, boom)

		_, err := New(classifier, new(testutil.MockEmbedder)).Score(ctx, "tmpl", "out")
		assert.ErrorIs(t, err, common.ErrExternalCall)
		assert.ErrorIs(t, err, boom)
	})

	t.Run("embedder failure", func(t *testing.T) {
		classifier := new(testutil.MockClassifier)
		embedder := new(testutil.MockEmbedder)
		classifier.On("Classify", ctx, "out").Return(safe(), nil)
		embedder.On("Embed", ctx, mock.Anything).Return(nil, boom)

		_, err := New(classifier, embedder).Score(ctx, "tmpl", "out")
		assert.ErrorIs(t, err, common.ErrExternalCall)
		assert.ErrorIs(t, err, boom)
	})

	t.Run("wrong vector count", func(t *testing.T) {
		classifier := new(testutil.MockClassifier)
		embedder := new(testutil.MockEmbedder)
		classifier.On("Classify", ctx, "out").Return(safe(), nil)
		embedder.On("Embed", ctx, mock.Anything).Return([][]float64{{1}}, nil)

		_, err := New(classifier, embedder).Score(ctx, "tmpl", "out")
		assert.ErrorIs(t, err, common.ErrExternalCall)
	})
}

func TestScore_Deterministic(t *testing.T) {
	s := New(testutil.KeywordClassifier{}, testutil.HashEmbedder{Dim: 32})
	ctx := context.Background()

	first, err := s.Score(ctx, "summarize spending by method", "spending by card dominated")
	require.NoError(t, err)
	second, err := s.Score(ctx, "summarize spending by method", "spending by card dominated")
	require.NoError(t, err)

	assert.Equal(t, first, second)
	assert.Greater(t, first.SimilarityScore, 0.0)
	assert.LessOrEqual(t, first.SimilarityScore, 1.0)
}
