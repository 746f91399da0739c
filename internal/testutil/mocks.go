package testutil

import (
	"context"

	"github.com/stretchr/testify/mock"

	"github.com/Veraticus/the-insight-must-flow/internal/model"
)

// MockGenerator is a testify mock of service.Generator.
type MockGenerator struct {
	mock.Mock
}

// Generate records the call and returns the configured output.
func (m *MockGenerator) Generate(ctx context.Context, prompt string) (string, error) {
	args := m.Called(ctx, prompt)
	return args.String(0), args.Error(1)
}

// MockClassifier is a testify mock of service.EthicsClassifier.
type MockClassifier struct {
	mock.Mock
}

// Classify records the call and returns the configured verdict.
func (m *MockClassifier) Classify(ctx context.Context, text string) (model.EthicsVerdict, error) {
	args := m.Called(ctx, text)
	return args.Get(0).(model.EthicsVerdict), args.Error(1)
}

// MockEmbedder is a testify mock of service.Embedder.
type MockEmbedder struct {
	mock.Mock
}

// Embed records the call and returns the configured vectors.
func (m *MockEmbedder) Embed(ctx context.Context, texts []string) ([][]float64, error) {
	args := m.Called(ctx, texts)
	if v := args.Get(0); v != nil {
		return v.([][]float64), args.Error(1)
	}
	return nil, args.Error(1)
}
