// Package searcher implements the two-stage query pipeline: embed the
// query, retrieve nearest neighbors by vector distance, rerank the
// candidates with a cross-encoding model, return the top results.
package searcher

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"strings"

	"github.com/grepvec/grepvec/internal/embedder"
	"github.com/grepvec/grepvec/internal/reranker"
	"github.com/grepvec/grepvec/internal/store"
	"github.com/grepvec/grepvec/pkg/types"
)

// Searcher is the query coordinator.
type Searcher struct {
	log      *slog.Logger
	embedder embedder.Embedder
	reranker reranker.Reranker
	store    store.Store
}

// New creates a Searcher.
func New(log *slog.Logger, emb embedder.Embedder, rr reranker.Reranker, st store.Store) *Searcher {
	return &Searcher{
		log:      log,
		embedder: emb,
		reranker: rr,
		store:    st,
	}
}

// Query runs the full pipeline: fetch up to limit candidates by vector
// distance, rerank them, return the topN by score. Parameters are checked
// before any inference call. A reranker failure degrades to stage-1
// distance order instead of failing the query; embedding and store
// failures are fatal because there is nothing to fall back to.
func (s *Searcher) Query(ctx context.Context, text string, limit, topN int) ([]types.RankedResult, error) {
	if strings.TrimSpace(text) == "" {
		return nil, fmt.Errorf("%w: query text is empty", types.ErrInvalidQueryParams)
	}
	if limit <= 0 {
		return nil, fmt.Errorf("%w: limit must be positive, got %d", types.ErrInvalidQueryParams, limit)
	}
	if topN <= 0 {
		return nil, fmt.Errorf("%w: top_n must be positive, got %d", types.ErrInvalidQueryParams, topN)
	}
	if topN > limit {
		return nil, fmt.Errorf("%w: top_n (%d) cannot exceed limit (%d)", types.ErrInvalidQueryParams, topN, limit)
	}

	vectors, err := s.embedder.EmbedBatch(ctx, []string{text})
	if err != nil {
		return nil, fmt.Errorf("failed to embed query: %w", err)
	}

	candidates, err := s.store.NearestNeighbors(ctx, vectors[0], limit)
	if err != nil {
		return nil, fmt.Errorf("retrieval failed: %w", err)
	}
	if len(candidates) == 0 {
		return []types.RankedResult{}, nil
	}

	results := s.rerank(ctx, text, candidates)

	if topN < len(results) {
		results = results[:topN]
	}
	return results, nil
}

// rerank scores candidates and sorts descending by score. Stable sort
// preserves stage-1 order between equal scores, so results stay
// deterministic. When the reranker fails the candidates keep their stage-1
// order with negated distance as score.
func (s *Searcher) rerank(ctx context.Context, query string, candidates []types.Candidate) []types.RankedResult {
	bodies := make([]string, len(candidates))
	for i, c := range candidates {
		bodies[i] = c.Record.Text
	}

	scores, err := s.reranker.Score(ctx, query, bodies)
	if err != nil || len(scores) != len(candidates) {
		if err == nil {
			err = errors.New("reranker returned wrong score count")
		}
		s.log.Warn("reranking failed, falling back to distance order", "reason", err)
		return degraded(candidates)
	}

	results := make([]types.RankedResult, len(candidates))
	for i, c := range candidates {
		results[i] = types.RankedResult{
			ID:       c.Record.ID,
			Text:     c.Record.Text,
			Metadata: c.Record.Metadata,
			Score:    scores[i],
			Distance: c.Distance,
		}
	}

	sort.SliceStable(results, func(i, j int) bool {
		return results[i].Score > results[j].Score
	})
	return results
}

// degraded maps candidates to results in stage-1 order. Negating the
// distance keeps "higher score is better" true for callers that sort or
// display by score.
func degraded(candidates []types.Candidate) []types.RankedResult {
	results := make([]types.RankedResult, len(candidates))
	for i, c := range candidates {
		results[i] = types.RankedResult{
			ID:       c.Record.ID,
			Text:     c.Record.Text,
			Metadata: c.Record.Metadata,
			Score:    -c.Distance,
			Distance: c.Distance,
		}
	}
	return results
}
