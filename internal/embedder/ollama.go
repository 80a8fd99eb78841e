package embedder

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	"github.com/grepvec/grepvec/internal/config"
	"github.com/grepvec/grepvec/pkg/types"
)

// OllamaEmbedder implements Embedder against Ollama's batch embed API.
type OllamaEmbedder struct {
	baseURL    string
	model      string
	dimension  int
	httpClient *http.Client
	cache      *Cache
}

// NewOllama creates an embedding client for a local Ollama instance. The
// configured dimension is the deployment constant D every returned vector
// must match.
func NewOllama(cfg config.Inference, cache *Cache) *OllamaEmbedder {
	return &OllamaEmbedder{
		baseURL:    cfg.BaseURL,
		model:      cfg.Model,
		dimension:  cfg.Dimension,
		httpClient: &http.Client{Timeout: cfg.Timeout()},
		cache:      cache,
	}
}

// embedRequest is the Ollama /api/embed request format.
type embedRequest struct {
	Model string   `json:"model"`
	Input []string `json:"input"`
}

// embedResponse is the Ollama /api/embed response format.
type embedResponse struct {
	Embeddings [][]float32 `json:"embeddings"`
}

// EmbedBatch embeds texts, serving cache hits locally and sending only the
// misses to the service in a single request.
func (o *OllamaEmbedder) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	if err := ValidateBatch(texts); err != nil {
		return nil, err
	}

	vectors := make([][]float32, len(texts))
	var missTexts []string
	var missIdx []int
	for i, text := range texts {
		if o.cache != nil {
			if v, ok := o.cache.Get(ComputeHash(text)); ok {
				vectors[i] = v
				continue
			}
		}
		missTexts = append(missTexts, text)
		missIdx = append(missIdx, i)
	}

	if len(missTexts) == 0 {
		return vectors, nil
	}

	embedded, err := RetryWithBackoff(ctx, DefaultRetryConfig(), func() ([][]float32, error) {
		return o.callAPI(ctx, missTexts)
	})
	if err != nil {
		return nil, err
	}

	for i, v := range embedded {
		vectors[missIdx[i]] = v
		if o.cache != nil {
			o.cache.Set(ComputeHash(missTexts[i]), v)
		}
	}
	return vectors, nil
}

func (o *OllamaEmbedder) callAPI(ctx context.Context, texts []string) ([][]float32, error) {
	body, err := json.Marshal(embedRequest{Model: o.model, Input: texts})
	if err != nil {
		return nil, fmt.Errorf("marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, o.baseURL+"/api/embed", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := o.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", types.ErrInference, err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		respBody, _ := io.ReadAll(resp.Body)
		return nil, fmt.Errorf("%w: embed API status %d: %s", types.ErrInference, resp.StatusCode, string(respBody))
	}

	var apiResp embedResponse
	if err := json.NewDecoder(resp.Body).Decode(&apiResp); err != nil {
		return nil, fmt.Errorf("%w: decode response: %v", types.ErrInference, err)
	}

	if len(apiResp.Embeddings) != len(texts) {
		return nil, fmt.Errorf("%w: got %d embeddings for %d texts", types.ErrInference, len(apiResp.Embeddings), len(texts))
	}
	for i, v := range apiResp.Embeddings {
		if len(v) != o.dimension {
			return nil, fmt.Errorf("%w: vector %d has dimension %d, configured %d",
				types.ErrDimensionMismatch, i, len(v), o.dimension)
		}
	}

	return apiResp.Embeddings, nil
}

// Dimension returns the configured embedding dimension.
func (o *OllamaEmbedder) Dimension() int {
	return o.dimension
}

// Model returns the embedding model identifier.
func (o *OllamaEmbedder) Model() string {
	return o.model
}

// Ping checks service reachability without running inference.
func (o *OllamaEmbedder) Ping(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, o.baseURL+"/api/tags", http.NoBody)
	if err != nil {
		return fmt.Errorf("create ping request: %w", err)
	}
	resp, err := o.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %v", types.ErrInference, err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("%w: ping status %d", types.ErrInference, resp.StatusCode)
	}
	return nil
}

// Close releases idle connections.
func (o *OllamaEmbedder) Close() error {
	o.httpClient.CloseIdleConnections()
	return nil
}
