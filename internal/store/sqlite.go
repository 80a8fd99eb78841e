package store

import (
	"context"
	"database/sql"
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/grepvec/grepvec/pkg/types"
)

// Store metadata keys.
const (
	metaDimension = "dimension"
	metaMetric    = "metric"
)

// maxSQLParams bounds IN-clause sizes; SQLite's default parameter limit
// is 999.
const maxSQLParams = 500

// SQLiteStore implements Store on a single SQLite file.
type SQLiteStore struct {
	db        *sql.DB
	dimension int
	metric    string
	distance  func(a, b []float32) float64
}

// Open opens (or creates) a store at path. The embedding dimension and
// distance metric become deployment constants on first open; a later open
// with different values is a configuration error surfaced here, at
// startup, not at query time.
func Open(path string, dimension int, metric string) (*SQLiteStore, error) {
	db, err := openDatabase(path)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", types.ErrStoreConnectivity, err)
	}

	if err := ApplyMigrations(context.Background(), db); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("%w: %v", types.ErrStoreConnectivity, err)
	}

	s := &SQLiteStore{db: db, dimension: dimension, metric: metric}
	switch metric {
	case "euclidean":
		s.distance = euclideanDistance
	default:
		s.distance = cosineDistance
	}

	if err := s.checkMeta(context.Background()); err != nil {
		_ = db.Close()
		return nil, err
	}

	return s, nil
}

// openDatabase opens a SQLite database with appropriate settings.
func openDatabase(path string) (*sql.DB, error) {
	db, err := sql.Open(DriverName, path)
	if err != nil {
		return nil, err
	}

	// WAL lets queries read while an ingestion run writes.
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to enable WAL mode: %w", err)
	}

	// SQLite benefits from a single connection: one logical writer.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)

	return db, nil
}

// checkMeta records dimension and metric on first open and verifies them
// on every subsequent open.
func (s *SQLiteStore) checkMeta(ctx context.Context) error {
	stored, err := s.getMeta(ctx, metaDimension)
	if err != nil {
		return fmt.Errorf("%w: %v", types.ErrStoreConnectivity, err)
	}

	if stored == "" {
		if err := s.setMeta(ctx, metaDimension, strconv.Itoa(s.dimension)); err != nil {
			return fmt.Errorf("%w: %v", types.ErrStoreConnectivity, err)
		}
		if err := s.setMeta(ctx, metaMetric, s.metric); err != nil {
			return fmt.Errorf("%w: %v", types.ErrStoreConnectivity, err)
		}
		return nil
	}

	storedDim, err := strconv.Atoi(stored)
	if err != nil {
		return fmt.Errorf("corrupt store metadata: dimension %q: %w", stored, err)
	}
	if storedDim != s.dimension {
		return fmt.Errorf("%w: store was created with dimension %d, configured %d",
			types.ErrDimensionMismatch, storedDim, s.dimension)
	}

	storedMetric, err := s.getMeta(ctx, metaMetric)
	if err != nil {
		return fmt.Errorf("%w: %v", types.ErrStoreConnectivity, err)
	}
	if storedMetric != s.metric {
		return fmt.Errorf("store was created with metric %q, configured %q", storedMetric, s.metric)
	}

	return nil
}

func (s *SQLiteStore) getMeta(ctx context.Context, key string) (string, error) {
	var value string
	err := s.db.QueryRowContext(ctx,
		"SELECT value FROM store_meta WHERE key = ?", key).Scan(&value)
	if err == sql.ErrNoRows {
		return "", nil
	}
	return value, err
}

func (s *SQLiteStore) setMeta(ctx context.Context, key, value string) error {
	_, err := s.db.ExecContext(ctx,
		"INSERT OR REPLACE INTO store_meta (key, value) VALUES (?, ?)", key, value)
	return err
}

// Upsert writes records insert-if-absent inside one transaction. Records
// are immutable, so a conflicting fingerprint is left untouched.
func (s *SQLiteStore) Upsert(ctx context.Context, records []types.EmbeddingRecord) (int, error) {
	if len(records) == 0 {
		return 0, nil
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("%w: %v", types.ErrStoreConnectivity, err)
	}
	defer func() { _ = tx.Rollback() }()

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO embeddings (fingerprint, body, vector, dimension, metadata, created_at)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT(fingerprint) DO NOTHING
	`)
	if err != nil {
		return 0, fmt.Errorf("%w: %v", types.ErrStoreConnectivity, err)
	}
	defer func() { _ = stmt.Close() }()

	inserted := 0
	for _, rec := range records {
		if len(rec.Vector) != s.dimension {
			return inserted, fmt.Errorf("%w: record %s has dimension %d, store expects %d",
				types.ErrDimensionMismatch, rec.ID, len(rec.Vector), s.dimension)
		}

		meta, err := types.MarshalMetadata(rec.Metadata)
		if err != nil {
			return inserted, fmt.Errorf("failed to encode metadata for %s: %w", rec.ID, err)
		}

		createdAt := rec.CreatedAt
		if createdAt.IsZero() {
			createdAt = time.Now().UTC()
		}

		res, err := stmt.ExecContext(ctx,
			string(rec.ID), rec.Text, serializeVector(rec.Vector), s.dimension, meta, createdAt)
		if err != nil {
			return inserted, fmt.Errorf("%w: %v", types.ErrStoreConnectivity, err)
		}
		if n, err := res.RowsAffected(); err == nil {
			inserted += int(n)
		}
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("%w: %v", types.ErrStoreConnectivity, err)
	}
	return inserted, nil
}

// Exists returns the subset of fingerprints already present.
func (s *SQLiteStore) Exists(ctx context.Context, ids []types.Fingerprint) (map[types.Fingerprint]struct{}, error) {
	present := make(map[types.Fingerprint]struct{}, len(ids))

	for start := 0; start < len(ids); start += maxSQLParams {
		end := min(start+maxSQLParams, len(ids))
		batch := ids[start:end]

		placeholders := strings.Repeat("?,", len(batch))
		placeholders = placeholders[:len(placeholders)-1]
		args := make([]any, len(batch))
		for i, id := range batch {
			args[i] = string(id)
		}

		rows, err := s.db.QueryContext(ctx,
			"SELECT fingerprint FROM embeddings WHERE fingerprint IN ("+placeholders+")", args...)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", types.ErrStoreConnectivity, err)
		}

		for rows.Next() {
			var fp string
			if err := rows.Scan(&fp); err != nil {
				_ = rows.Close()
				return nil, err
			}
			present[types.Fingerprint(fp)] = struct{}{}
		}
		if err := rows.Err(); err != nil {
			_ = rows.Close()
			return nil, err
		}
		_ = rows.Close()
	}

	return present, nil
}

// NearestNeighbors scans every stored vector and ranks by distance in Go,
// ascending, ties broken by fingerprint for determinism. A full scan is
// fine at single-codebase scale; swap in an ANN index before it is not.
func (s *SQLiteStore) NearestNeighbors(ctx context.Context, vector []float32, k int) ([]types.Candidate, error) {
	if len(vector) != s.dimension {
		return nil, fmt.Errorf("%w: query vector has dimension %d, store expects %d",
			types.ErrDimensionMismatch, len(vector), s.dimension)
	}
	if k <= 0 {
		return []types.Candidate{}, nil
	}

	rows, err := s.db.QueryContext(ctx,
		"SELECT fingerprint, body, vector, metadata, created_at FROM embeddings")
	if err != nil {
		return nil, fmt.Errorf("%w: %v", types.ErrStoreConnectivity, err)
	}
	defer func() { _ = rows.Close() }()

	var candidates []types.Candidate
	for rows.Next() {
		var fp, body string
		var blob, metaRaw []byte
		var createdAt time.Time
		if err := rows.Scan(&fp, &body, &blob, &metaRaw, &createdAt); err != nil {
			return nil, err
		}

		meta, err := types.UnmarshalMetadata(metaRaw)
		if err != nil {
			return nil, fmt.Errorf("record %s: %w", fp, err)
		}

		stored := deserializeVector(blob)
		candidates = append(candidates, types.Candidate{
			Record: types.EmbeddingRecord{
				ID:        types.Fingerprint(fp),
				Text:      body,
				Vector:    stored,
				Metadata:  meta,
				CreatedAt: createdAt,
			},
			Distance: s.distance(vector, stored),
		})
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	sort.Slice(candidates, func(i, j int) bool {
		if candidates[i].Distance != candidates[j].Distance {
			return candidates[i].Distance < candidates[j].Distance
		}
		return candidates[i].Record.ID < candidates[j].Record.ID
	})

	if k < len(candidates) {
		candidates = candidates[:k]
	}
	return candidates, nil
}

// Count returns the number of stored records.
func (s *SQLiteStore) Count(ctx context.Context) (int64, error) {
	var n int64
	err := s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM embeddings").Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("%w: %v", types.ErrStoreConnectivity, err)
	}
	return n, nil
}

// Prune deletes every record not in keep. Runs in one transaction against
// a temporary table so the keep set size is unbounded.
func (s *SQLiteStore) Prune(ctx context.Context, keep []types.Fingerprint) (int64, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("%w: %v", types.ErrStoreConnectivity, err)
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx,
		"CREATE TEMPORARY TABLE keep_fingerprints (fingerprint TEXT PRIMARY KEY)"); err != nil {
		return 0, fmt.Errorf("%w: %v", types.ErrStoreConnectivity, err)
	}

	stmt, err := tx.PrepareContext(ctx,
		"INSERT OR IGNORE INTO keep_fingerprints (fingerprint) VALUES (?)")
	if err != nil {
		return 0, fmt.Errorf("%w: %v", types.ErrStoreConnectivity, err)
	}
	for _, fp := range keep {
		if _, err := stmt.ExecContext(ctx, string(fp)); err != nil {
			_ = stmt.Close()
			return 0, fmt.Errorf("%w: %v", types.ErrStoreConnectivity, err)
		}
	}
	_ = stmt.Close()

	res, err := tx.ExecContext(ctx, `
		DELETE FROM embeddings
		WHERE fingerprint NOT IN (SELECT fingerprint FROM keep_fingerprints)
	`)
	if err != nil {
		return 0, fmt.Errorf("%w: %v", types.ErrStoreConnectivity, err)
	}
	removed, _ := res.RowsAffected()

	if _, err := tx.ExecContext(ctx, "DROP TABLE keep_fingerprints"); err != nil {
		return 0, fmt.Errorf("%w: %v", types.ErrStoreConnectivity, err)
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("%w: %v", types.ErrStoreConnectivity, err)
	}
	return removed, nil
}

// Close closes the database connection.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}
