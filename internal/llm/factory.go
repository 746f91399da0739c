package llm

import (
	"fmt"
	"strings"
	"time"

	"github.com/Veraticus/the-insight-must-flow/internal/service"
)

// NewClient creates a raw generation client based on the provided configuration.
func NewClient(cfg Config) (Client, error) {
	var (
		client Client
		err    error
	)
	switch strings.ToLower(cfg.Provider) {
	case "openai":
		client, err = newOpenAIClient(cfg)
	case "anthropic":
		client, err = newAnthropicClient(cfg)
	default:
		return nil, fmt.Errorf("unsupported LLM provider: %s", cfg.Provider)
	}
	if err != nil {
		return nil, err
	}
	return client, nil
}

// EmbeddingConfig holds configuration for an embedding provider.
type EmbeddingConfig struct {
	Provider string
	APIKey   string
	Model    string
	BaseURL  string
	CacheTTL time.Duration
}

// NewEmbedder creates an embedder based on the provided configuration.
func NewEmbedder(cfg EmbeddingConfig) (service.Embedder, error) {
	var (
		embedder service.Embedder
		err      error
	)
	switch strings.ToLower(cfg.Provider) {
	case "openai":
		embedder, err = newOpenAIEmbedder(cfg)
	case "huggingface", "hf":
		embedder, err = newHuggingFaceEmbedder(cfg)
	default:
		return nil, fmt.Errorf("unsupported embedding provider: %s", cfg.Provider)
	}
	if err != nil {
		return nil, err
	}
	return embedder, nil
}
