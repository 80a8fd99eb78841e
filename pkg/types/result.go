package types

import "time"

// EmbeddingRecord is the persisted unit: a fingerprint-keyed chunk with its
// dense vector. Records are immutable once written; a changed chunk gets a
// new fingerprint and therefore a new record, never a mutation.
type EmbeddingRecord struct {
	ID        Fingerprint
	Text      string
	Vector    []float32
	Metadata  Metadata
	CreatedAt time.Time
}

// Candidate is a stage-1 retrieval hit: an embedding record together with
// its distance to the query vector under the store's configured metric.
type Candidate struct {
	Record   EmbeddingRecord
	Distance float64
}

// RankedResult is a final query result after reranking (or after the
// degraded-mode distance fallback).
type RankedResult struct {
	ID       Fingerprint
	Text     string
	Metadata Metadata

	// Score is the reranker relevance score, higher is better. In degraded
	// mode it is the negated stage-1 distance, so descending-score order
	// still matches ascending-distance order.
	Score float64

	// Distance is the stage-1 distance to the query vector.
	Distance float64
}
