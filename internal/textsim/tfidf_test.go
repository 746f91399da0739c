package textsim

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestTokenize(t *testing.T) {
	assert.Equal(t, []string{"a", "b", "c"}, Tokenize("a b c"))
	assert.Equal(t, []string{"spend", "is", "150", "00", "qr_code"}, Tokenize("Spend is 150.00, QR_code!"))
	assert.Empty(t, Tokenize("  ... "))
}

func TestMeanCross_IdenticalSegments(t *testing.T) {
	got := MeanCross([]string{"a b c"}, []string{"a b c"})
	assert.InDelta(t, 1.0, got, 1e-9)
}

func TestMeanCross(t *testing.T) {
	assert.Zero(t, MeanCross(nil, []string{"x"}))

	disjoint := MeanCross([]string{"alpha beta"}, []string{"gamma delta"})
	assert.InDelta(t, 0.0, disjoint, 1e-12)

	partial := MeanCross([]string{"save more money", "save money"}, []string{"spend money"})
	assert.Greater(t, partial, 0.0)
	assert.Less(t, partial, 1.0)
}

func TestMeanPairwise(t *testing.T) {
	tests := []struct {
		name string
		docs []string
		want float64
	}{
		{name: "no docs", docs: nil, want: 0},
		{name: "single doc", docs: []string{"only one output"}, want: 0},
		{name: "identical docs", docs: []string{"same text here", "same text here", "same text here"}, want: 1},
		{name: "disjoint docs", docs: []string{"one two", "three four"}, want: 0},
		{name: "empty doc scores zero", docs: []string{"...", "words"}, want: 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.InDelta(t, tt.want, MeanPairwise(tt.docs), 1e-9)
		})
	}
}

func TestVectorize_Normalized(t *testing.T) {
	vectors := Vectorize([]string{"the cat sat", "the dog sat on the mat", ""})
	for i, v := range vectors[:2] {
		var norm float64
		for _, w := range v {
			norm += w * w
		}
		assert.InDelta(t, 1.0, math.Sqrt(norm), 1e-12, "vector %d", i)
	}
	assert.Empty(t, vectors[2])

	assert.InDelta(t, Dot(vectors[0], vectors[1]), Dot(vectors[1], vectors[0]), 1e-15)
}

func TestCosine(t *testing.T) {
	assert.InDelta(t, 1.0, Cosine([]float64{1, 2, 3}, []float64{2, 4, 6}), 1e-12)
	assert.InDelta(t, 0.0, Cosine([]float64{1, 0}, []float64{0, 1}), 1e-12)
	assert.InDelta(t, -1.0, Cosine([]float64{1, 1}, []float64{-1, -1}), 1e-12)
	assert.Zero(t, Cosine([]float64{0, 0}, []float64{1, 1}))
	assert.Zero(t, Cosine([]float64{1}, []float64{1, 2}))
}
