package testutil

import (
	"context"
	"hash/fnv"
	"strings"
	"sync"

	"github.com/Veraticus/the-insight-must-flow/internal/model"
	"github.com/Veraticus/the-insight-must-flow/internal/textsim"
)

// GeneratorFunc adapts a function to service.Generator.
type GeneratorFunc func(ctx context.Context, prompt string) (string, error)

// Generate calls f.
func (f GeneratorFunc) Generate(ctx context.Context, prompt string) (string, error) {
	return f(ctx, prompt)
}

// RecordingGenerator returns canned outputs keyed by a substring of the
// prompt and records every prompt it receives.
type RecordingGenerator struct {
	Responses map[string]string // prompt substring -> output
	Errors    map[string]error  // prompt substring -> error
	Default   string
	prompts   []string
	mu        sync.Mutex
}

// Generate returns the first response whose key occurs in prompt. Errors are
// checked before responses.
func (g *RecordingGenerator) Generate(_ context.Context, prompt string) (string, error) {
	g.mu.Lock()
	g.prompts = append(g.prompts, prompt)
	g.mu.Unlock()

	for key, err := range g.Errors {
		if strings.Contains(prompt, key) {
			return "", err
		}
	}
	for key, out := range g.Responses {
		if strings.Contains(prompt, key) {
			return out, nil
		}
	}
	return g.Default, nil
}

// Prompts returns a copy of the prompts received so far.
func (g *RecordingGenerator) Prompts() []string {
	g.mu.Lock()
	defer g.mu.Unlock()
	return append([]string(nil), g.prompts...)
}

// KeywordClassifier labels text containing any blocked keyword as
// "Unethical" and everything else as Safe.
type KeywordClassifier struct {
	Blocked []string
}

// Classify implements service.EthicsClassifier.
func (c KeywordClassifier) Classify(_ context.Context, text string) (model.EthicsVerdict, error) {
	lower := strings.ToLower(text)
	for _, k := range c.Blocked {
		if strings.Contains(lower, strings.ToLower(k)) {
			return model.EthicsVerdict{Label: "Unethical", Confidence: 0.9}, nil
		}
	}
	return model.EthicsVerdict{Label: model.FlagSafe, Confidence: 0.99}, nil
}

// HashEmbedder is a deterministic bag-of-words embedder. Each token is
// hashed into one of Dim buckets.
type HashEmbedder struct {
	Dim int
}

// Embed implements service.Embedder.
func (e HashEmbedder) Embed(_ context.Context, texts []string) ([][]float64, error) {
	dim := e.Dim
	if dim <= 0 {
		dim = 64
	}
	out := make([][]float64, len(texts))
	for i, text := range texts {
		v := make([]float64, dim)
		for _, tok := range textsim.Tokenize(text) {
			h := fnv.New32a()
			_, _ = h.Write([]byte(tok))
			v[h.Sum32()%uint32(dim)]++
		}
		out[i] = v
	}
	return out, nil
}
