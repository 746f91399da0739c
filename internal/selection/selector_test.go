package selection

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Veraticus/the-insight-must-flow/internal/common"
	"github.com/Veraticus/the-insight-must-flow/internal/model"
	"github.com/Veraticus/the-insight-must-flow/internal/prompt"
	"github.com/Veraticus/the-insight-must-flow/internal/scoring"
	"github.com/Veraticus/the-insight-must-flow/internal/testutil"
)

const component model.Component = "executive_summary"

// outputEmbedder embeds every template as [1, 0] and each output as the
// vector registered for it, so the output vector fixes the similarity.
type outputEmbedder map[string][]float64

func (e outputEmbedder) Embed(_ context.Context, texts []string) ([][]float64, error) {
	v, ok := e[texts[1]]
	if !ok {
		v = []float64{0, 1}
	}
	return [][]float64{{1, 0}, v}, nil
}

func testRegistry(t *testing.T) *prompt.Registry {
	t.Helper()
	r := prompt.NewRegistry()
	for _, a := range []model.Approach{model.ApproachZeroShot, model.ApproachFewShot, model.ApproachChainOfThought} {
		tmpl, err := prompt.NewTemplate(component, a, string(a)+": {{.TransactionSummary}}")
		require.NoError(t, err)
		r.Add(tmpl)
	}
	return r
}

// scripted answers each approach's prompt with outputs[approach].
func scripted(outputs map[model.Approach]string, failures map[model.Approach]error) testutil.GeneratorFunc {
	return func(_ context.Context, p string) (string, error) {
		approach := model.Approach(strings.SplitN(p, ":", 2)[0])
		if err, ok := failures[approach]; ok {
			return "", err
		}
		return outputs[approach], nil
	}
}

func newSelector(t *testing.T, gen testutil.GeneratorFunc, emb outputEmbedder, blocked ...string) *Selector {
	t.Helper()
	scorer := scoring.New(testutil.KeywordClassifier{Blocked: blocked}, emb)
	return New(testRegistry(t), gen, scorer)
}

func TestSelect(t *testing.T) {
	outputs := map[model.Approach]string{
		model.ApproachZeroShot:       "plain",
		model.ApproachFewShot:        "close",
		model.ApproachChainOfThought: "far",
	}
	emb := outputEmbedder{
		"plain": {1, 1},
		"close": {1, 0.1},
		"far":   {0.1, 1},
	}

	tests := []struct {
		name     string
		gen      testutil.GeneratorFunc
		emb      outputEmbedder
		blocked  []string
		want     model.Approach
		fallback bool
	}{
		{
			name: "highest similarity wins",
			gen:  scripted(outputs, nil),
			emb:  emb,
			want: model.ApproachFewShot,
		},
		{
			name:    "unsafe candidate never wins",
			gen:     scripted(outputs, nil),
			emb:     emb,
			blocked: []string{"close"},
			want:    model.ApproachZeroShot,
		},
		{
			name: "failed generation is skipped",
			gen:  scripted(outputs, map[model.Approach]error{model.ApproachFewShot: errors.New("overloaded")}),
			emb:  emb,
			want: model.ApproachZeroShot,
		},
		{
			name: "ties keep the first approach",
			gen: scripted(map[model.Approach]string{
				model.ApproachZeroShot:       "same",
				model.ApproachFewShot:        "same",
				model.ApproachChainOfThought: "same",
			}, nil),
			emb:  outputEmbedder{"same": {2, 1}},
			want: model.ApproachZeroShot,
		},
		{
			name: "all failures fall back",
			gen: scripted(nil, map[model.Approach]error{
				model.ApproachZeroShot:       errors.New("a"),
				model.ApproachFewShot:        errors.New("b"),
				model.ApproachChainOfThought: errors.New("c"),
			}),
			emb:      emb,
			want:     model.DefaultApproach,
			fallback: true,
		},
		{
			name:     "all unsafe fall back",
			gen:      scripted(outputs, nil),
			emb:      emb,
			blocked:  []string{"plain", "close", "far"},
			want:     model.DefaultApproach,
			fallback: true,
		},
		{
			name:     "empty outputs fall back",
			gen:      scripted(map[model.Approach]string{}, nil),
			emb:      emb,
			want:     model.DefaultApproach,
			fallback: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			sel, err := newSelector(t, tt.gen, tt.emb, tt.blocked...).Select(context.Background(), component, "SUMMARY")
			require.NoError(t, err)

			assert.Equal(t, tt.want, sel.Approach)
			assert.Equal(t, tt.fallback, sel.Fallback)
			require.Len(t, sel.Candidates, 3)
			assert.Equal(t, model.ApproachZeroShot, sel.Candidates[0].Approach)

			if tt.fallback {
				assert.Equal(t, model.UnusableSimilarity, sel.BestSimilarity)
				return
			}
			chosen, ok := sel.Chosen()
			require.True(t, ok)
			assert.Equal(t, model.FlagSafe, chosen.EthicalFlag)
			assert.Equal(t, chosen.SimilarityScore, sel.BestSimilarity)
			for _, c := range sel.Candidates {
				if c.Success && c.EthicalFlag == model.FlagSafe && c.OutputText != "" {
					assert.LessOrEqual(t, c.SimilarityScore, sel.BestSimilarity)
				}
			}
		})
	}
}

func TestSelect_RecordsFailures(t *testing.T) {
	gen := scripted(
		map[model.Approach]string{model.ApproachZeroShot: "plain"},
		map[model.Approach]error{model.ApproachFewShot: errors.New("overloaded")},
	)
	sel, err := newSelector(t, gen, outputEmbedder{}).Select(context.Background(), component, "SUMMARY")
	require.NoError(t, err)

	failed := sel.Candidates[1]
	assert.False(t, failed.Success)
	assert.Contains(t, failed.Error, "overloaded")
	assert.Equal(t, model.UnusableSimilarity, failed.SimilarityScore)

	empty := sel.Candidates[2]
	assert.True(t, empty.Success)
	assert.Equal(t, model.UnusableSimilarity, empty.SimilarityScore)
}

func TestSelect_PromptCarriesSummary(t *testing.T) {
	gen := &testutil.RecordingGenerator{Default: "text"}
	scorer := scoring.New(testutil.KeywordClassifier{}, testutil.HashEmbedder{})
	_, err := New(testRegistry(t), gen, scorer).Select(context.Background(), component, "User u1 summary")
	require.NoError(t, err)

	assert.Equal(t, []string{
		"zero_shot: User u1 summary",
		"few_shot: User u1 summary",
		"chain_of_thought: User u1 summary",
	}, gen.Prompts())
}

func TestSelect_Errors(t *testing.T) {
	sel := newSelector(t, scripted(nil, nil), outputEmbedder{})

	_, err := sel.Select(context.Background(), "unknown", "SUMMARY")
	assert.ErrorIs(t, err, common.ErrNotFound)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = sel.Select(ctx, component, "SUMMARY")
	assert.ErrorIs(t, err, context.Canceled)
}

func TestSelectAll(t *testing.T) {
	r := testRegistry(t)
	other, err := prompt.NewTemplate(model.ComponentRecommendations, model.ApproachChainOfThought, "chain_of_thought: {{.TransactionSummary}}")
	require.NoError(t, err)
	r.Add(other)

	scorer := scoring.New(testutil.KeywordClassifier{}, testutil.HashEmbedder{})
	gen := &testutil.RecordingGenerator{Default: "ok"}
	selections, err := New(r, gen, scorer).SelectAll(context.Background(), "SUMMARY")
	require.NoError(t, err)

	require.Len(t, selections, 2)
	assert.Equal(t, component, selections[0].Component)
	assert.Equal(t, model.ComponentRecommendations, selections[1].Component)
	assert.Equal(t, model.ApproachChainOfThought, selections[1].Approach)
}

func TestGenerate_Timeout(t *testing.T) {
	tmpl, err := prompt.NewTemplate(component, model.ApproachZeroShot, "{{.TransactionSummary}}")
	require.NoError(t, err)

	slow := testutil.GeneratorFunc(func(ctx context.Context, _ string) (string, error) {
		<-ctx.Done()
		return "", ctx.Err()
	})
	_, _, err = Generate(context.Background(), slow, tmpl, "s", 10*time.Millisecond)
	require.Error(t, err)
	assert.ErrorIs(t, err, common.ErrExternalCall)
	assert.Contains(t, err.Error(), "timed out")
}
