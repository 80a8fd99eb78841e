// Package reranker provides the second-stage relevance scorer. The
// concrete client prompts a local Ollama reranking model for a single
// floating-point score per (query, candidate) pair.
package reranker

import "context"

// Reranker scores candidates against a query. Higher is more relevant.
type Reranker interface {
	// Score returns one relevance score per candidate, in candidate order.
	// Service failures are reported as types.ErrInference wraps after
	// bounded retries; callers are expected to degrade to stage-1 ordering
	// rather than fail the query.
	Score(ctx context.Context, query string, candidates []string) ([]float64, error)

	// Model returns the model identifier.
	Model() string

	Close() error
}
