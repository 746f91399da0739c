package llm

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/Veraticus/the-insight-must-flow/internal/model"
)

const defaultEthicsModel = "autopilot-ai/EthicalEye"

// EthicsConfig holds configuration for the ethics classifier.
type EthicsConfig struct {
	APIKey   string
	Model    string
	BaseURL  string
	CacheTTL time.Duration
	Timeout  time.Duration
}

// EthicsClassifier implements service.EthicsClassifier over the Hugging Face
// text-classification inference endpoint.
type EthicsClassifier struct {
	httpClient *http.Client
	cache      *responseCache[model.EthicsVerdict]
	apiKey     string
	url        string
}

// NewEthicsClassifier creates an ethics classifier.
func NewEthicsClassifier(cfg EthicsConfig) *EthicsClassifier {
	m := cfg.Model
	if m == "" {
		m = defaultEthicsModel
	}
	return &EthicsClassifier{
		httpClient: newHTTPClient(cfg.Timeout),
		cache:      newResponseCache[model.EthicsVerdict](cfg.CacheTTL),
		apiKey:     cfg.APIKey,
		url:        huggingFaceModelURL(cfg.BaseURL, m),
	}
}

type labelScore struct {
	Label string  `json:"label"`
	Score float64 `json:"score"`
}

// Classify returns the highest-scoring label for text.
func (c *EthicsClassifier) Classify(ctx context.Context, text string) (model.EthicsVerdict, error) {
	if v, ok := c.cache.get(text); ok {
		return v, nil
	}

	var raw json.RawMessage
	body := map[string]any{"inputs": text}
	if err := postJSON(ctx, c.httpClient, "huggingface", c.url, huggingFaceHeaders(c.apiKey), body, &raw); err != nil {
		return model.EthicsVerdict{}, err
	}

	scores, err := decodeLabels(raw)
	if err != nil {
		return model.EthicsVerdict{}, err
	}
	if len(scores) == 0 {
		return model.EthicsVerdict{}, fmt.Errorf("no labels in classification response")
	}

	top := scores[0]
	for _, s := range scores[1:] {
		if s.Score > top.Score {
			top = s
		}
	}
	verdict := model.EthicsVerdict{Label: top.Label, Confidence: top.Score}
	c.cache.set(text, verdict)
	return verdict, nil
}

// Close releases the cache.
func (c *EthicsClassifier) Close() error {
	c.cache.Close()
	return nil
}

// decodeLabels accepts both the nested [[...]] and flat [...] response shapes.
func decodeLabels(raw json.RawMessage) ([]labelScore, error) {
	var nested [][]labelScore
	if err := json.Unmarshal(raw, &nested); err == nil {
		if len(nested) == 0 {
			return nil, nil
		}
		return nested[0], nil
	}

	var flat []labelScore
	if err := json.Unmarshal(raw, &flat); err != nil {
		return nil, fmt.Errorf("failed to parse classification response: %w", err)
	}
	return flat, nil
}
