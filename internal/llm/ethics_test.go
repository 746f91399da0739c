package llm

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Veraticus/the-insight-must-flow/internal/model"
)

func TestEthicsClassifier_Classify(t *testing.T) {
	tests := []struct {
		name     string
		response string
		status   int
		want     model.EthicsVerdict
		wantErr  bool
	}{
		{
			name:     "nested response picks top label",
			status:   http.StatusOK,
			response: `[[{"label":"Unsafe","score":0.08},{"label":"Safe","score":0.92}]]`,
			want:     model.EthicsVerdict{Label: "Safe", Confidence: 0.92},
		},
		{
			name:     "flat response",
			status:   http.StatusOK,
			response: `[{"label":"Unsafe","score":0.7},{"label":"Safe","score":0.3}]`,
			want:     model.EthicsVerdict{Label: "Unsafe", Confidence: 0.7},
		},
		{
			name:     "no labels",
			status:   http.StatusOK,
			response: `[[]]`,
			wantErr:  true,
		},
		{
			name:     "model loading",
			status:   http.StatusServiceUnavailable,
			response: `{"error":"Model is currently loading"}`,
			wantErr:  true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				assert.Equal(t, "/"+defaultEthicsModel, r.URL.Path)
				var body map[string]string
				assert.NoError(t, json.NewDecoder(r.Body).Decode(&body))
				assert.Equal(t, "Save more each month.", body["inputs"])

				w.WriteHeader(tt.status)
				_, _ = w.Write([]byte(tt.response))
			}))
			defer server.Close()

			classifier := NewEthicsClassifier(EthicsConfig{BaseURL: server.URL})
			verdict, err := classifier.Classify(context.Background(), "Save more each month.")
			if tt.wantErr {
				require.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, verdict)
		})
	}
}

func TestEthicsClassifier_Cache(t *testing.T) {
	var requests atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		requests.Add(1)
		_, _ = w.Write([]byte(`[[{"label":"Safe","score":0.99}]]`))
	}))
	defer server.Close()

	classifier := NewEthicsClassifier(EthicsConfig{BaseURL: server.URL, CacheTTL: time.Minute})
	defer func() { _ = classifier.Close() }()

	for i := 0; i < 3; i++ {
		verdict, err := classifier.Classify(context.Background(), "same text")
		require.NoError(t, err)
		assert.True(t, verdict.IsSafe())
	}
	assert.EqualValues(t, 1, requests.Load())
}
