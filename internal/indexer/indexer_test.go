package indexer

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"sort"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/grepvec/grepvec/internal/chunker"
	"github.com/grepvec/grepvec/internal/config"
	"github.com/grepvec/grepvec/pkg/types"
)

// fakeEmbedder returns constant-dimension vectors and counts service calls.
type fakeEmbedder struct {
	mu    sync.Mutex
	calls int
	texts int
	err   error
}

func (f *fakeEmbedder) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	f.mu.Lock()
	f.calls++
	f.texts += len(texts)
	f.mu.Unlock()
	if f.err != nil {
		return nil, f.err
	}
	vectors := make([][]float32, len(texts))
	for i := range texts {
		vectors[i] = []float32{float32(len(texts[i])), 0, 0}
	}
	return vectors, nil
}

func (f *fakeEmbedder) Dimension() int { return 3 }
func (f *fakeEmbedder) Model() string  { return "fake-embed" }
func (f *fakeEmbedder) Close() error   { return nil }

func (f *fakeEmbedder) serviceCalls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

// memStore is an in-memory Store for coordinator tests.
type memStore struct {
	mu      sync.Mutex
	records map[types.Fingerprint]types.EmbeddingRecord
	err     error
}

func newMemStore() *memStore {
	return &memStore{records: make(map[types.Fingerprint]types.EmbeddingRecord)}
}

func (m *memStore) Upsert(ctx context.Context, records []types.EmbeddingRecord) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return 0, m.err
	}
	inserted := 0
	for _, rec := range records {
		if _, ok := m.records[rec.ID]; ok {
			continue
		}
		m.records[rec.ID] = rec
		inserted++
	}
	return inserted, nil
}

func (m *memStore) Exists(ctx context.Context, ids []types.Fingerprint) (map[types.Fingerprint]struct{}, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return nil, m.err
	}
	present := make(map[types.Fingerprint]struct{})
	for _, id := range ids {
		if _, ok := m.records[id]; ok {
			present[id] = struct{}{}
		}
	}
	return present, nil
}

func (m *memStore) NearestNeighbors(ctx context.Context, vector []float32, k int) ([]types.Candidate, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []types.Candidate
	for _, rec := range m.records {
		out = append(out, types.Candidate{Record: rec})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Record.ID < out[j].Record.ID })
	if k < len(out) {
		out = out[:k]
	}
	return out, nil
}

func (m *memStore) Count(ctx context.Context) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return int64(len(m.records)), nil
}

func (m *memStore) Prune(ctx context.Context, keep []types.Fingerprint) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	keepSet := make(map[types.Fingerprint]struct{}, len(keep))
	for _, id := range keep {
		keepSet[id] = struct{}{}
	}
	var removed int64
	for id := range m.records {
		if _, ok := keepSet[id]; !ok {
			delete(m.records, id)
			removed++
		}
	}
	return removed, nil
}

func (m *memStore) Close() error { return nil }

func testIndexer(emb *fakeEmbedder, st *memStore) *Indexer {
	log := slog.New(slog.NewTextHandler(io.Discard, nil))
	ch := chunker.New(config.Chunking{MaxTokens: 512, MinTokens: 16, OverlapTokens: 64})
	return New(log, ch, emb, st, Config{BatchSize: 2, Concurrency: 2})
}

func testDocs() []types.Document {
	return []types.Document{
		{Path: "a.go", Language: "go", Text: "package a\n\nfunc A() {}\n"},
		{Path: "b.go", Language: "go", Text: "package b\n\nfunc B() {}\n"},
	}
}

func TestIngest_FreshCodebase(t *testing.T) {
	emb := &fakeEmbedder{}
	st := newMemStore()
	idx := testIndexer(emb, st)

	report, err := idx.Ingest(context.Background(), testDocs())
	require.NoError(t, err)

	assert.NotEmpty(t, report.RunID)
	assert.Equal(t, 2, report.Inserted)
	assert.Zero(t, report.Skipped)
	assert.Zero(t, report.Failed)

	count, _ := st.Count(context.Background())
	assert.EqualValues(t, 2, count)
}

func TestIngest_SecondRunEmbedsNothing(t *testing.T) {
	emb := &fakeEmbedder{}
	st := newMemStore()
	idx := testIndexer(emb, st)

	_, err := idx.Ingest(context.Background(), testDocs())
	require.NoError(t, err)
	callsAfterFirst := emb.serviceCalls()

	report, err := idx.Ingest(context.Background(), testDocs())
	require.NoError(t, err)

	assert.Zero(t, report.Inserted)
	assert.Equal(t, 2, report.Skipped)
	assert.Equal(t, callsAfterFirst, emb.serviceCalls(), "unchanged content must not be re-embedded")
}

func TestIngest_OnlyChangedContentIsEmbedded(t *testing.T) {
	emb := &fakeEmbedder{}
	st := newMemStore()
	idx := testIndexer(emb, st)

	docs := testDocs()
	_, err := idx.Ingest(context.Background(), docs)
	require.NoError(t, err)
	textsAfterFirst := emb.texts

	docs[0].Text = "package a\n\nfunc A() { changed() }\n"
	report, err := idx.Ingest(context.Background(), docs)
	require.NoError(t, err)

	assert.Equal(t, 1, report.Inserted)
	assert.Equal(t, 1, report.Skipped)
	assert.Equal(t, textsAfterFirst+1, emb.texts, "only the changed chunk should reach the embedder")
}

func TestIngest_ChunkingFailureSkipsDocument(t *testing.T) {
	emb := &fakeEmbedder{}
	st := newMemStore()
	idx := testIndexer(emb, st)

	docs := append(testDocs(), types.Document{
		Path: "bad.bin", Language: "text", Text: string([]byte{0xff, 0xfe}),
	})

	report, err := idx.Ingest(context.Background(), docs)
	require.NoError(t, err)

	assert.Equal(t, 2, report.Inserted)
	assert.NotEmpty(t, report.Errors)
}

func TestIngest_EmbeddingFailureIsPartial(t *testing.T) {
	emb := &fakeEmbedder{err: fmt.Errorf("%w: service down", types.ErrInference)}
	st := newMemStore()
	idx := testIndexer(emb, st)

	report, err := idx.Ingest(context.Background(), testDocs())
	require.NoError(t, err)

	assert.Zero(t, report.Inserted)
	assert.Equal(t, 2, report.Failed)
	assert.NotEmpty(t, report.Errors)

	count, _ := st.Count(context.Background())
	assert.Zero(t, count, "failed chunks must not be written")
}

func TestIngest_DimensionMismatchAbortsRun(t *testing.T) {
	emb := &fakeEmbedder{err: fmt.Errorf("%w: got 128, want 3", types.ErrDimensionMismatch)}
	st := newMemStore()
	idx := testIndexer(emb, st)

	_, err := idx.Ingest(context.Background(), testDocs())
	require.Error(t, err)
	assert.ErrorIs(t, err, types.ErrDimensionMismatch)
}

func TestIngest_RefusesConcurrentRun(t *testing.T) {
	idx := testIndexer(&fakeEmbedder{}, newMemStore())

	require.True(t, idx.runLock.TryAcquire())
	defer idx.runLock.Release()

	_, err := idx.Ingest(context.Background(), testDocs())
	assert.ErrorIs(t, err, ErrRunInProgress)
}

func TestPrune_RemovesStaleRecords(t *testing.T) {
	emb := &fakeEmbedder{}
	st := newMemStore()
	idx := testIndexer(emb, st)

	docs := testDocs()
	_, err := idx.Ingest(context.Background(), docs)
	require.NoError(t, err)

	removed, err := idx.Prune(context.Background(), docs[:1])
	require.NoError(t, err)
	assert.EqualValues(t, 1, removed)

	count, _ := st.Count(context.Background())
	assert.EqualValues(t, 1, count)
}

func TestRunLock(t *testing.T) {
	var l RunLock
	assert.True(t, l.TryAcquire())
	assert.False(t, l.TryAcquire())
	l.Release()
	assert.True(t, l.TryAcquire())
}
