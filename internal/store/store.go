// Package store persists fingerprint-keyed embedding records and serves
// nearest-neighbor queries over them. The SQLite implementation keeps the
// whole index in a single file: one writer per ingestion run, any number
// of concurrent readers.
package store

import (
	"context"

	"github.com/grepvec/grepvec/pkg/types"
)

// Store is the vector store interface the coordinators program against.
type Store interface {
	// Upsert writes records insert-if-absent. A fingerprint already
	// present is a no-op, never an error: retried and concurrent runs
	// converge on the same state. Returns the number actually inserted.
	Upsert(ctx context.Context, records []types.EmbeddingRecord) (int, error)

	// Exists partitions fingerprints by presence, returning the subset
	// already stored. This is the cache-hit path of incremental ingestion.
	Exists(ctx context.Context, ids []types.Fingerprint) (map[types.Fingerprint]struct{}, error)

	// NearestNeighbors returns the k records closest to vector under the
	// store's configured metric, ascending by distance, ties broken by
	// fingerprint. k larger than the store returns everything.
	NearestNeighbors(ctx context.Context, vector []float32, k int) ([]types.Candidate, error)

	// Count returns the number of stored records.
	Count(ctx context.Context) (int64, error)

	// Prune deletes every record whose fingerprint is not in keep and
	// returns the number removed. This is the explicit reconciliation
	// operation; ingestion itself never deletes.
	Prune(ctx context.Context, keep []types.Fingerprint) (int64, error)

	Close() error
}
