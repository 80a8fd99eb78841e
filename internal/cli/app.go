package cli

import (
	"log/slog"

	"github.com/grepvec/grepvec/internal/chunker"
	"github.com/grepvec/grepvec/internal/config"
	"github.com/grepvec/grepvec/internal/embedder"
	"github.com/grepvec/grepvec/internal/indexer"
	"github.com/grepvec/grepvec/internal/loader"
	"github.com/grepvec/grepvec/internal/reranker"
	"github.com/grepvec/grepvec/internal/searcher"
	"github.com/grepvec/grepvec/internal/store"
)

// embedCacheSize bounds the in-process embedding cache.
const embedCacheSize = 10000

// app holds the fully wired pipeline for one command invocation.
type app struct {
	cfg      *config.Config
	log      *slog.Logger
	loader   *loader.Loader
	chunker  *chunker.Chunker
	embedder embedder.Embedder
	reranker reranker.Reranker
	store    store.Store
	indexer  *indexer.Indexer
	searcher *searcher.Searcher
}

// newApp constructs every component from the configuration. The store open
// verifies the persisted dimension and metric, so a misconfigured deployment
// fails here rather than mid-run.
func newApp() (*app, error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, err
	}
	log := newLogger()

	st, err := store.Open(cfg.StorePath, cfg.Embedding.Dimension, cfg.Metric)
	if err != nil {
		return nil, err
	}

	emb := embedder.NewOllama(cfg.Embedding, embedder.NewCache(embedCacheSize))
	rr := reranker.NewOllama(cfg.Reranker)
	ch := chunker.New(cfg.Chunking)
	ld := loader.New(cfg.Root, cfg.Loader, log)

	idx := indexer.New(log, ch, emb, st, indexer.Config{
		BatchSize:   cfg.Embedding.BatchSize,
		Concurrency: cfg.Embedding.Concurrency,
	})
	srch := searcher.New(log, emb, rr, st)

	return &app{
		cfg:      cfg,
		log:      log,
		loader:   ld,
		chunker:  ch,
		embedder: emb,
		reranker: rr,
		store:    st,
		indexer:  idx,
		searcher: srch,
	}, nil
}

// close releases the store and inference clients.
func (a *app) close() {
	_ = a.embedder.Close()
	_ = a.reranker.Close()
	if err := a.store.Close(); err != nil {
		a.log.Warn("failed to close store", "reason", err)
	}
}
