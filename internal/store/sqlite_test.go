package store

import (
	"context"
	"fmt"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/grepvec/grepvec/pkg/types"
)

const testDim = 3

func openTestStore(t *testing.T) *SQLiteStore {
	t.Helper()
	s, err := Open(filepath.Join(t.TempDir(), "test.db"), testDim, "cosine")
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func record(id string, vector []float32) types.EmbeddingRecord {
	return types.EmbeddingRecord{
		ID:     types.Fingerprint(id),
		Text:   "body of " + id,
		Vector: vector,
		Metadata: types.Metadata{
			Source:     types.MetadataSource,
			SourcePath: "pkg/file.go",
			Language:   "go",
			StartLine:  1,
			EndLine:    10,
		},
	}
}

func TestOpen_FreshStoreIsEmpty(t *testing.T) {
	s := openTestStore(t)

	count, err := s.Count(context.Background())
	require.NoError(t, err)
	assert.Zero(t, count)
}

func TestOpen_DimensionMismatchOnReopen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "test.db")

	s, err := Open(path, 3, "cosine")
	require.NoError(t, err)
	require.NoError(t, s.Close())

	_, err = Open(path, 4, "cosine")
	require.Error(t, err)
	assert.ErrorIs(t, err, types.ErrDimensionMismatch)
}

func TestOpen_MetricMismatchOnReopen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "test.db")

	s, err := Open(path, 3, "cosine")
	require.NoError(t, err)
	require.NoError(t, s.Close())

	_, err = Open(path, 3, "euclidean")
	assert.Error(t, err)
}

func TestUpsert_InsertIfAbsent(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	records := []types.EmbeddingRecord{
		record("aaa", []float32{1, 0, 0}),
		record("bbb", []float32{0, 1, 0}),
	}

	inserted, err := s.Upsert(ctx, records)
	require.NoError(t, err)
	assert.Equal(t, 2, inserted)

	// Idempotent: the same records insert nothing the second time.
	inserted, err = s.Upsert(ctx, records)
	require.NoError(t, err)
	assert.Zero(t, inserted)

	count, err := s.Count(ctx)
	require.NoError(t, err)
	assert.EqualValues(t, 2, count)
}

func TestUpsert_RejectsWrongDimension(t *testing.T) {
	s := openTestStore(t)

	_, err := s.Upsert(context.Background(), []types.EmbeddingRecord{
		record("bad", []float32{1, 2}),
	})

	require.Error(t, err)
	assert.ErrorIs(t, err, types.ErrDimensionMismatch)
}

func TestExists_ReturnsPresentSubset(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	_, err := s.Upsert(ctx, []types.EmbeddingRecord{
		record("aaa", []float32{1, 0, 0}),
	})
	require.NoError(t, err)

	present, err := s.Exists(ctx, []types.Fingerprint{"aaa", "zzz"})
	require.NoError(t, err)

	assert.Contains(t, present, types.Fingerprint("aaa"))
	assert.NotContains(t, present, types.Fingerprint("zzz"))
}

func TestExists_EmptyInput(t *testing.T) {
	s := openTestStore(t)

	present, err := s.Exists(context.Background(), nil)
	require.NoError(t, err)
	assert.Empty(t, present)
}

func TestNearestNeighbors_AscendingDistanceOrder(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	_, err := s.Upsert(ctx, []types.EmbeddingRecord{
		record("far", []float32{0, 1, 0}),
		record("near", []float32{1, 0.1, 0}),
		record("exact", []float32{1, 0, 0}),
	})
	require.NoError(t, err)

	candidates, err := s.NearestNeighbors(ctx, []float32{1, 0, 0}, 3)
	require.NoError(t, err)
	require.Len(t, candidates, 3)

	assert.Equal(t, types.Fingerprint("exact"), candidates[0].Record.ID)
	assert.Equal(t, types.Fingerprint("near"), candidates[1].Record.ID)
	assert.Equal(t, types.Fingerprint("far"), candidates[2].Record.ID)
	assert.LessOrEqual(t, candidates[0].Distance, candidates[1].Distance)
	assert.LessOrEqual(t, candidates[1].Distance, candidates[2].Distance)
}

func TestNearestNeighbors_TiesBreakByFingerprint(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	// Identical vectors, therefore identical distances.
	_, err := s.Upsert(ctx, []types.EmbeddingRecord{
		record("bbb", []float32{1, 0, 0}),
		record("aaa", []float32{1, 0, 0}),
	})
	require.NoError(t, err)

	candidates, err := s.NearestNeighbors(ctx, []float32{1, 0, 0}, 2)
	require.NoError(t, err)
	require.Len(t, candidates, 2)

	assert.Equal(t, types.Fingerprint("aaa"), candidates[0].Record.ID)
	assert.Equal(t, types.Fingerprint("bbb"), candidates[1].Record.ID)
}

func TestNearestNeighbors_KLargerThanStore(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	_, err := s.Upsert(ctx, []types.EmbeddingRecord{
		record("only", []float32{1, 0, 0}),
	})
	require.NoError(t, err)

	candidates, err := s.NearestNeighbors(ctx, []float32{1, 0, 0}, 50)
	require.NoError(t, err)
	assert.Len(t, candidates, 1)
}

func TestNearestNeighbors_RejectsWrongQueryDimension(t *testing.T) {
	s := openTestStore(t)

	_, err := s.NearestNeighbors(context.Background(), []float32{1, 0}, 5)
	require.Error(t, err)
	assert.ErrorIs(t, err, types.ErrDimensionMismatch)
}

func TestNearestNeighbors_RoundTripsMetadata(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	rec := record("meta", []float32{1, 0, 0})
	_, err := s.Upsert(ctx, []types.EmbeddingRecord{rec})
	require.NoError(t, err)

	candidates, err := s.NearestNeighbors(ctx, []float32{1, 0, 0}, 1)
	require.NoError(t, err)
	require.Len(t, candidates, 1)

	assert.Equal(t, rec.Metadata, candidates[0].Record.Metadata)
	assert.Equal(t, rec.Text, candidates[0].Record.Text)
	assert.Equal(t, rec.Vector, candidates[0].Record.Vector)
}

func TestPrune_RemovesRecordsOutsideKeepSet(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	_, err := s.Upsert(ctx, []types.EmbeddingRecord{
		record("keep1", []float32{1, 0, 0}),
		record("keep2", []float32{0, 1, 0}),
		record("stale", []float32{0, 0, 1}),
	})
	require.NoError(t, err)

	removed, err := s.Prune(ctx, []types.Fingerprint{"keep1", "keep2"})
	require.NoError(t, err)
	assert.EqualValues(t, 1, removed)

	present, err := s.Exists(ctx, []types.Fingerprint{"keep1", "keep2", "stale"})
	require.NoError(t, err)
	assert.Len(t, present, 2)
	assert.NotContains(t, present, types.Fingerprint("stale"))
}

func TestPrune_EmptyKeepSetClearsStore(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		_, err := s.Upsert(ctx, []types.EmbeddingRecord{
			record(fmt.Sprintf("rec%d", i), []float32{1, 0, 0}),
		})
		require.NoError(t, err)
	}

	removed, err := s.Prune(ctx, nil)
	require.NoError(t, err)
	assert.EqualValues(t, 3, removed)

	count, err := s.Count(ctx)
	require.NoError(t, err)
	assert.Zero(t, count)
}
