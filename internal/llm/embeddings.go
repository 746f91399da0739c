package llm

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"sort"
	"strings"
	"time"
)

const (
	huggingFaceBaseURL    = "https://router.huggingface.co/hf-inference/models"
	defaultHFEmbedModel   = "sentence-transformers/multi-qa-mpnet-base-dot-v1"
	defaultOpenAIEmbedder = "text-embedding-3-small"
)

// embedFunc fetches vectors for texts, one per input, in order.
type embedFunc func(ctx context.Context, texts []string) ([][]float64, error)

// cachedEmbed serves texts from cache and fetches only the misses.
func cachedEmbed(ctx context.Context, cache *responseCache[[]float64], texts []string, fetch embedFunc) ([][]float64, error) {
	out := make([][]float64, len(texts))
	var missing []string
	var positions []int
	for i, text := range texts {
		if v, ok := cache.get(text); ok {
			out[i] = v
			continue
		}
		missing = append(missing, text)
		positions = append(positions, i)
	}
	if len(missing) == 0 {
		return out, nil
	}

	vectors, err := fetch(ctx, missing)
	if err != nil {
		return nil, err
	}
	if len(vectors) != len(missing) {
		return nil, fmt.Errorf("embedding provider returned %d vectors for %d inputs", len(vectors), len(missing))
	}
	for j, v := range vectors {
		out[positions[j]] = v
		cache.set(missing[j], v)
	}
	return out, nil
}

// openAIEmbedder implements service.Embedder over the OpenAI embeddings API.
type openAIEmbedder struct {
	httpClient *http.Client
	cache      *responseCache[[]float64]
	apiKey     string
	baseURL    string
	model      string
}

func newOpenAIEmbedder(cfg EmbeddingConfig) (*openAIEmbedder, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("OpenAI API key is required")
	}
	model := cfg.Model
	if model == "" {
		model = defaultOpenAIEmbedder
	}
	baseURL := cfg.BaseURL
	if baseURL == "" {
		baseURL = openAIBaseURL
	}
	return &openAIEmbedder{
		httpClient: newHTTPClient(30 * time.Second),
		cache:      newResponseCache[[]float64](cfg.CacheTTL),
		apiKey:     cfg.APIKey,
		baseURL:    strings.TrimRight(baseURL, "/"),
		model:      model,
	}, nil
}

type openAIEmbeddingResponse struct {
	Data []struct {
		Embedding []float64 `json:"embedding"`
		Index     int       `json:"index"`
	} `json:"data"`
}

// Embed implements service.Embedder.
func (e *openAIEmbedder) Embed(ctx context.Context, texts []string) ([][]float64, error) {
	return cachedEmbed(ctx, e.cache, texts, e.fetch)
}

func (e *openAIEmbedder) fetch(ctx context.Context, texts []string) ([][]float64, error) {
	body := map[string]any{"model": e.model, "input": texts}
	headers := map[string]string{"Authorization": "Bearer " + e.apiKey}

	var response openAIEmbeddingResponse
	if err := postJSON(ctx, e.httpClient, "openai", e.baseURL+"/embeddings", headers, body, &response); err != nil {
		return nil, err
	}

	sort.Slice(response.Data, func(i, j int) bool { return response.Data[i].Index < response.Data[j].Index })
	vectors := make([][]float64, len(response.Data))
	for i, d := range response.Data {
		vectors[i] = d.Embedding
	}
	return vectors, nil
}

// huggingFaceEmbedder implements service.Embedder over the Hugging Face
// feature-extraction inference endpoint.
type huggingFaceEmbedder struct {
	httpClient *http.Client
	cache      *responseCache[[]float64]
	apiKey     string
	url        string
}

func newHuggingFaceEmbedder(cfg EmbeddingConfig) (*huggingFaceEmbedder, error) {
	model := cfg.Model
	if model == "" {
		model = defaultHFEmbedModel
	}
	return &huggingFaceEmbedder{
		httpClient: newHTTPClient(60 * time.Second),
		cache:      newResponseCache[[]float64](cfg.CacheTTL),
		apiKey:     cfg.APIKey,
		url:        huggingFaceModelURL(cfg.BaseURL, model) + "/pipeline/feature-extraction",
	}, nil
}

// Embed implements service.Embedder.
func (e *huggingFaceEmbedder) Embed(ctx context.Context, texts []string) ([][]float64, error) {
	return cachedEmbed(ctx, e.cache, texts, e.fetch)
}

func (e *huggingFaceEmbedder) fetch(ctx context.Context, texts []string) ([][]float64, error) {
	var raw json.RawMessage
	body := map[string]any{"inputs": texts}
	if err := postJSON(ctx, e.httpClient, "huggingface", e.url, huggingFaceHeaders(e.apiKey), body, &raw); err != nil {
		return nil, err
	}
	return decodeFeatures(raw)
}

// decodeFeatures accepts sentence vectors or token vectors. Token vectors
// are mean-pooled into one vector per input.
func decodeFeatures(raw json.RawMessage) ([][]float64, error) {
	var sentences [][]float64
	if err := json.Unmarshal(raw, &sentences); err == nil {
		return sentences, nil
	}

	var tokens [][][]float64
	if err := json.Unmarshal(raw, &tokens); err != nil {
		return nil, fmt.Errorf("failed to parse feature-extraction response: %w", err)
	}
	out := make([][]float64, len(tokens))
	for i, toks := range tokens {
		if len(toks) == 0 {
			continue
		}
		pooled := make([]float64, len(toks[0]))
		for _, tok := range toks {
			for d := range pooled {
				if d < len(tok) {
					pooled[d] += tok[d]
				}
			}
		}
		for d := range pooled {
			pooled[d] /= float64(len(toks))
		}
		out[i] = pooled
	}
	return out, nil
}

func huggingFaceModelURL(baseURL, model string) string {
	if baseURL == "" {
		baseURL = huggingFaceBaseURL
	}
	return strings.TrimRight(baseURL, "/") + "/" + model
}

func huggingFaceHeaders(apiKey string) map[string]string {
	if apiKey == "" {
		return nil
	}
	return map[string]string{"Authorization": "Bearer " + apiKey}
}

// Close releases the cache.
func (e *openAIEmbedder) Close() error {
	e.cache.Close()
	return nil
}

// Close releases the cache.
func (e *huggingFaceEmbedder) Close() error {
	e.cache.Close()
	return nil
}
