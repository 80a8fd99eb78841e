// Package indexer coordinates the ingestion pipeline: chunk, fingerprint,
// diff against the store, embed what's new, upsert. Re-ingesting unchanged
// content costs no embedding calls — the fingerprint diff is the cache.
package indexer

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/grepvec/grepvec/internal/chunker"
	"github.com/grepvec/grepvec/internal/embedder"
	"github.com/grepvec/grepvec/internal/store"
	"github.com/grepvec/grepvec/pkg/types"
)

// Indexer is the ingestion coordinator.
type Indexer struct {
	log      *slog.Logger
	chunker  *chunker.Chunker
	embedder embedder.Embedder
	store    store.Store

	batchSize   int
	concurrency int

	// One ingestion run at a time per process; watch mode and manual runs
	// must not interleave writes.
	runLock RunLock
}

// Config bounds the ingestion worker pool.
type Config struct {
	BatchSize   int // chunks per embedding request
	Concurrency int // in-flight embedding requests
}

// Report summarizes one ingestion run. Counts are chunks, not documents.
type Report struct {
	RunID    string
	Inserted int
	Skipped  int
	Failed   int
	Duration time.Duration
	Errors   []string
}

// ErrRunInProgress is returned when an ingestion run is already active.
var ErrRunInProgress = errors.New("ingestion run already in progress")

// New creates an Indexer.
func New(log *slog.Logger, ch *chunker.Chunker, emb embedder.Embedder, st store.Store, cfg Config) *Indexer {
	batchSize := cfg.BatchSize
	if batchSize <= 0 {
		batchSize = 16
	}
	concurrency := cfg.Concurrency
	if concurrency <= 0 {
		concurrency = 1
	}
	return &Indexer{
		log:         log,
		chunker:     ch,
		embedder:    emb,
		store:       st,
		batchSize:   batchSize,
		concurrency: concurrency,
	}
}

// fingerprinted pairs a chunk with its identity.
type fingerprinted struct {
	chunk types.Chunk
	id    types.Fingerprint
}

// Ingest runs the full pipeline over the given documents. Per-document
// chunking failures and per-batch embedding failures (after bounded
// retries) are recorded in the report and do not abort the run; store
// connectivity and dimension mismatches do.
func (idx *Indexer) Ingest(ctx context.Context, docs []types.Document) (*Report, error) {
	if !idx.runLock.TryAcquire() {
		return nil, ErrRunInProgress
	}
	defer idx.runLock.Release()

	start := time.Now()
	report := &Report{RunID: uuid.NewString()}

	pending := idx.collectPending(ctx, docs, report)

	if len(pending) > 0 {
		if err := idx.embedAndStore(ctx, pending, report); err != nil {
			return nil, err
		}
	}

	report.Duration = time.Since(start)
	idx.log.Info("ingestion complete",
		"run_id", report.RunID,
		"inserted", report.Inserted,
		"skipped", report.Skipped,
		"failed", report.Failed,
		"duration", report.Duration)
	return report, nil
}

// collectPending chunks and fingerprints the documents, then diffs against
// the store. Chunks already present are counted as skipped; duplicates
// within the run collapse to a single pending entry.
func (idx *Indexer) collectPending(ctx context.Context, docs []types.Document, report *Report) []fingerprinted {
	var all []fingerprinted
	for _, doc := range docs {
		chunks, err := idx.chunker.Chunk(doc)
		if err != nil {
			// Malformed input: skip the document, keep going.
			idx.log.Warn("skipping document", "path", doc.Path, "reason", err)
			report.Errors = append(report.Errors, fmt.Sprintf("%s: %v", doc.Path, err))
			continue
		}
		for _, c := range chunks {
			all = append(all, fingerprinted{chunk: c, id: types.FingerprintChunk(&c)})
		}
	}

	ids := make([]types.Fingerprint, len(all))
	for i, fc := range all {
		ids[i] = fc.id
	}
	present, err := idx.store.Exists(ctx, ids)
	if err != nil {
		// Treat a failed diff as nothing present; the idempotent upsert
		// keeps this correct, just slower.
		idx.log.Warn("fingerprint diff failed, embedding everything", "reason", err)
		present = map[types.Fingerprint]struct{}{}
	}

	seen := make(map[types.Fingerprint]struct{}, len(all))
	var pending []fingerprinted
	for _, fc := range all {
		if _, ok := present[fc.id]; ok {
			report.Skipped++
			continue
		}
		if _, ok := seen[fc.id]; ok {
			report.Skipped++
			continue
		}
		seen[fc.id] = struct{}{}
		pending = append(pending, fc)
	}
	return pending
}

// embedAndStore embeds pending chunks in capped-concurrency batches and
// upserts each batch as soon as its vectors arrive. Writes happen only
// after a fully received embedding response, so cancellation mid-request
// never leaves partial records behind.
func (idx *Indexer) embedAndStore(ctx context.Context, pending []fingerprinted, report *Report) error {
	var mu sync.Mutex

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(idx.concurrency)

	for start := 0; start < len(pending); start += idx.batchSize {
		end := min(start+idx.batchSize, len(pending))
		batch := pending[start:end]

		g.Go(func() error {
			texts := make([]string, len(batch))
			for i, fc := range batch {
				texts[i] = fc.chunk.Text
			}

			vectors, err := idx.embedder.EmbedBatch(gctx, texts)
			if err != nil {
				if errors.Is(err, types.ErrDimensionMismatch) {
					return err // configuration error, abort the run
				}
				if gctx.Err() != nil {
					return gctx.Err()
				}
				// Retries are exhausted inside the client: record the
				// batch as failed and let the rest of the run proceed.
				mu.Lock()
				report.Failed += len(batch)
				report.Errors = append(report.Errors, err.Error())
				mu.Unlock()
				idx.log.Warn("embedding batch failed", "chunks", len(batch), "reason", err)
				return nil
			}

			records := make([]types.EmbeddingRecord, len(batch))
			for i, fc := range batch {
				records[i] = types.EmbeddingRecord{
					ID:     fc.id,
					Text:   fc.chunk.Text,
					Vector: vectors[i],
					Metadata: types.Metadata{
						Source:     types.MetadataSource,
						SourcePath: fc.chunk.Path,
						Language:   fc.chunk.Language,
						StartLine:  fc.chunk.StartLine,
						EndLine:    fc.chunk.EndLine,
					},
					CreatedAt: time.Now().UTC(),
				}
			}

			inserted, err := idx.store.Upsert(gctx, records)
			if err != nil {
				return err // store failure is fatal for the run
			}

			mu.Lock()
			report.Inserted += inserted
			// Records present despite the earlier diff (e.g. a concurrent
			// retried run) count as skipped, not failed.
			report.Skipped += len(records) - inserted
			mu.Unlock()
			return nil
		})
	}

	return g.Wait()
}

// Prune removes store records whose fingerprints no longer occur in the
// given documents. This is the explicit reconciliation path: ingestion
// never deletes, so renames and removals accumulate until Prune runs.
func (idx *Indexer) Prune(ctx context.Context, docs []types.Document) (int64, error) {
	if !idx.runLock.TryAcquire() {
		return 0, ErrRunInProgress
	}
	defer idx.runLock.Release()

	var keep []types.Fingerprint
	for _, doc := range docs {
		chunks, err := idx.chunker.Chunk(doc)
		if err != nil {
			// A document we cannot chunk contributes no fingerprints; its
			// stale records (if any) are eligible for removal.
			idx.log.Warn("skipping document during prune", "path", doc.Path, "reason", err)
			continue
		}
		for _, c := range chunks {
			keep = append(keep, types.FingerprintChunk(&c))
		}
	}

	removed, err := idx.store.Prune(ctx, keep)
	if err != nil {
		return 0, err
	}
	idx.log.Info("prune complete", "kept", len(keep), "removed", removed)
	return removed, nil
}
