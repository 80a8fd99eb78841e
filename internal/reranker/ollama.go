package reranker

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"

	"golang.org/x/sync/errgroup"

	"github.com/grepvec/grepvec/internal/config"
	"github.com/grepvec/grepvec/internal/embedder"
	"github.com/grepvec/grepvec/pkg/types"
)

// scorePrompt instructs the reranking model to emit a bare relevance score.
// Some models prefix reasoning text, so only the last line is parsed.
const scorePrompt = "Given the query: '%s' and the document: '%s'. " +
	"Output only a single floating-point number between 0.0 and 1.0 representing the relevance score. " +
	"No other text, explanation, or formatting."

// OllamaReranker implements Reranker via Ollama's generation API.
type OllamaReranker struct {
	baseURL     string
	model       string
	concurrency int
	httpClient  *http.Client
}

// NewOllama creates a reranking client for a local Ollama instance. The
// concurrency cap reflects the inference service's resource ceiling; the
// client never issues more in-flight requests than that.
func NewOllama(cfg config.Inference) *OllamaReranker {
	concurrency := cfg.Concurrency
	if concurrency <= 0 {
		concurrency = 1
	}
	return &OllamaReranker{
		baseURL:     cfg.BaseURL,
		model:       cfg.Model,
		concurrency: concurrency,
		httpClient:  &http.Client{Timeout: cfg.Timeout()},
	}
}

// generateRequest is the Ollama /api/generate request format.
type generateRequest struct {
	Model  string `json:"model"`
	Prompt string `json:"prompt"`
	Stream bool   `json:"stream"`
}

// generateResponse is the Ollama /api/generate response format.
type generateResponse struct {
	Response string `json:"response"`
}

// Score scores every candidate against the query. Candidates fan out over
// a capped worker group; results come back in candidate order.
func (r *OllamaReranker) Score(ctx context.Context, query string, candidates []string) ([]float64, error) {
	if len(candidates) == 0 {
		return nil, nil
	}

	scores := make([]float64, len(candidates))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(r.concurrency)
	for i, candidate := range candidates {
		g.Go(func() error {
			score, err := embedder.RetryWithBackoff(gctx, embedder.DefaultRetryConfig(), func() (float64, error) {
				return r.scoreOne(gctx, query, candidate)
			})
			if err != nil {
				return fmt.Errorf("candidate %d: %w", i, err)
			}
			scores[i] = score
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	return scores, nil
}

func (r *OllamaReranker) scoreOne(ctx context.Context, query, candidate string) (float64, error) {
	prompt := fmt.Sprintf(scorePrompt, query, candidate)
	body, err := json.Marshal(generateRequest{Model: r.model, Prompt: prompt, Stream: false})
	if err != nil {
		return 0, fmt.Errorf("marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, r.baseURL+"/api/generate", bytes.NewReader(body))
	if err != nil {
		return 0, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := r.httpClient.Do(req)
	if err != nil {
		return 0, fmt.Errorf("%w: %v", types.ErrInference, err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		respBody, _ := io.ReadAll(resp.Body)
		return 0, fmt.Errorf("%w: generate API status %d: %s", types.ErrInference, resp.StatusCode, string(respBody))
	}

	var apiResp generateResponse
	if err := json.NewDecoder(resp.Body).Decode(&apiResp); err != nil {
		return 0, fmt.Errorf("%w: decode response: %v", types.ErrInference, err)
	}

	return ParseScore(apiResp.Response)
}

// ParseScore extracts the relevance score from a model completion: the
// last non-empty line must parse as a float.
func ParseScore(completion string) (float64, error) {
	lines := strings.Split(strings.TrimSpace(completion), "\n")
	last := strings.TrimSpace(lines[len(lines)-1])
	score, err := strconv.ParseFloat(last, 64)
	if err != nil {
		return 0, fmt.Errorf("%w: cannot parse relevance score from %q", types.ErrInference, last)
	}
	return score, nil
}

// Model returns the reranking model identifier.
func (r *OllamaReranker) Model() string {
	return r.model
}

// Close releases idle connections.
func (r *OllamaReranker) Close() error {
	r.httpClient.CloseIdleConnections()
	return nil
}
