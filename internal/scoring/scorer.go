// Package scoring rates a generated text against the template that produced it.
package scoring

import (
	"context"
	"fmt"
	"strings"

	"github.com/Veraticus/the-insight-must-flow/internal/common"
	"github.com/Veraticus/the-insight-must-flow/internal/model"
	"github.com/Veraticus/the-insight-must-flow/internal/service"
	"github.com/Veraticus/the-insight-must-flow/internal/textsim"
)

// Scorer combines an ethics verdict with template/output embedding similarity.
// It holds no state beyond its collaborators and is safe for concurrent use
// when they are.
type Scorer struct {
	classifier service.EthicsClassifier
	embedder   service.Embedder
}

// New creates a scorer.
func New(classifier service.EthicsClassifier, embedder service.Embedder) *Scorer {
	return &Scorer{classifier: classifier, embedder: embedder}
}

// Score classifies output and measures its similarity to templateText.
// Empty or unsafe output scores model.UnusableSimilarity.
func (s *Scorer) Score(ctx context.Context, templateText, output string) (model.Score, error) {
	verdict, err := s.classifier.Classify(ctx, output)
	if err != nil {
		return model.Score{}, fmt.Errorf("%w: ethics classification: %w", common.ErrExternalCall, err)
	}

	score := model.Score{
		EthicalFlag:     verdict.Label,
		Confidence:      verdict.Confidence,
		SimilarityScore: model.UnusableSimilarity,
	}
	if !verdict.IsSafe() || strings.TrimSpace(output) == "" {
		return score, nil
	}

	vectors, err := s.embedder.Embed(ctx, []string{templateText, output})
	if err != nil {
		return model.Score{}, fmt.Errorf("%w: embedding: %w", common.ErrExternalCall, err)
	}
	if len(vectors) != 2 {
		return model.Score{}, fmt.Errorf("%w: embedder returned %d vectors for 2 inputs", common.ErrExternalCall, len(vectors))
	}

	score.SimilarityScore = textsim.Cosine(vectors[0], vectors[1])
	return score, nil
}
