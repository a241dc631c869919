// Package pgtier implements the semantic tier (L2) on a PostgreSQL backend.
//
// Records live in a single table keyed by (namespace, canonical_hash) with
// their embedding stored as JSON. Expired rows linger until the sweeper or a
// purge removes them; readers apply lazy expiry.
package pgtier

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/semkit/semcache/pkg/cache"
)

// schema creates the records table. Idempotent.
const schema = `
CREATE TABLE IF NOT EXISTS semcache_records (
	namespace      TEXT        NOT NULL,
	canonical_hash TEXT        NOT NULL,
	query_text     TEXT        NOT NULL,
	embedding      JSONB,
	payload        BYTEA       NOT NULL,
	created_at     TIMESTAMPTZ NOT NULL,
	ttl_seconds    BIGINT      NOT NULL,
	PRIMARY KEY (namespace, canonical_hash)
);
CREATE INDEX IF NOT EXISTS semcache_records_recent_idx
	ON semcache_records (namespace, created_at DESC);
`

// Store is the PostgreSQL-backed semantic tier.
type Store struct {
	db     *sqlx.DB
	logger zerolog.Logger
}

// New creates a semantic tier on the given database handle.
func New(db *sqlx.DB) *Store {
	if db == nil {
		panic("database handle cannot be nil")
	}
	return &Store{
		db:     db,
		logger: log.With().Str("component", "pgtier").Logger(),
	}
}

// Migrate creates the backing table and index if they do not exist.
func (s *Store) Migrate(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, schema); err != nil {
		return fmt.Errorf("create semcache schema: %w", err)
	}
	return nil
}

// recordRow is the database shape of a cache record; the embedding travels
// as JSON so the table needs no vector extension.
type recordRow struct {
	Namespace     string    `db:"namespace"`
	CanonicalHash string    `db:"canonical_hash"`
	QueryText     string    `db:"query_text"`
	Embedding     []byte    `db:"embedding"`
	Payload       []byte    `db:"payload"`
	CreatedAt     time.Time `db:"created_at"`
	TTLSeconds    int64     `db:"ttl_seconds"`
}

func (r *recordRow) toRecord() (*cache.Record, error) {
	rec := &cache.Record{
		Namespace:     r.Namespace,
		CanonicalHash: r.CanonicalHash,
		QueryText:     r.QueryText,
		Payload:       r.Payload,
		CreatedAt:     r.CreatedAt,
		TTLSeconds:    r.TTLSeconds,
	}
	if len(r.Embedding) > 0 {
		if err := json.Unmarshal(r.Embedding, &rec.Embedding); err != nil {
			return nil, fmt.Errorf("%w: decode embedding: %v", cache.ErrInvalidRecord, err)
		}
	}
	return rec, nil
}

// PutRecord stores a record, overwriting any prior record with the same
// (namespace, canonical_hash) key.
func (s *Store) PutRecord(ctx context.Context, rec *cache.Record) error {
	if rec == nil {
		return fmt.Errorf("cache record cannot be nil")
	}

	var embedding any
	if rec.HasEmbedding() {
		data, err := json.Marshal(rec.Embedding)
		if err != nil {
			return fmt.Errorf("encode embedding: %w", err)
		}
		embedding = data
	}

	query := `
		INSERT INTO semcache_records
			(namespace, canonical_hash, query_text, embedding, payload, created_at, ttl_seconds)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		ON CONFLICT (namespace, canonical_hash) DO UPDATE SET
			query_text = EXCLUDED.query_text,
			embedding = EXCLUDED.embedding,
			payload = EXCLUDED.payload,
			created_at = EXCLUDED.created_at,
			ttl_seconds = EXCLUDED.ttl_seconds`

	_, err := s.db.ExecContext(ctx, query,
		rec.Namespace, rec.CanonicalHash, rec.QueryText, embedding,
		rec.Payload, rec.CreatedAt, rec.TTLSeconds)
	if err != nil {
		return fmt.Errorf("insert record: %w", err)
	}
	return nil
}

// GetRecord retrieves a record by namespace and canonical hash.
// Returns cache.ErrMiss if no record exists; callers apply lazy expiry.
func (s *Store) GetRecord(ctx context.Context, namespace, canonicalHash string) (*cache.Record, error) {
	query := `
		SELECT namespace, canonical_hash, query_text, embedding, payload, created_at, ttl_seconds
		FROM semcache_records
		WHERE namespace = $1 AND canonical_hash = $2`

	var row recordRow
	if err := s.db.GetContext(ctx, &row, query, namespace, canonicalHash); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, cache.ErrMiss
		}
		return nil, fmt.Errorf("get record: %w", err)
	}
	return row.toRecord()
}

// ScanRecent returns up to limit records in the namespace,
// most-recent-first. Expired rows are included; the similarity matcher
// rejects them (lazy expiry).
func (s *Store) ScanRecent(ctx context.Context, namespace string, limit int) ([]*cache.Record, error) {
	query := `
		SELECT namespace, canonical_hash, query_text, embedding, payload, created_at, ttl_seconds
		FROM semcache_records
		WHERE namespace = $1
		ORDER BY created_at DESC
		LIMIT $2`

	var rows []recordRow
	if err := s.db.SelectContext(ctx, &rows, query, namespace, limit); err != nil {
		return nil, fmt.Errorf("scan records: %w", err)
	}

	records := make([]*cache.Record, 0, len(rows))
	for i := range rows {
		rec, err := rows[i].toRecord()
		if err != nil {
			// A corrupted row must not poison the whole scan.
			s.logger.Warn().Err(err).
				Str("namespace", namespace).
				Str("canonical_hash", rows[i].CanonicalHash).
				Msg("Skipping undecodable record")
			continue
		}
		records = append(records, rec)
	}
	return records, nil
}

// PurgeNamespace removes every record in the namespace and returns the
// number of records removed.
func (s *Store) PurgeNamespace(ctx context.Context, namespace string) (int, error) {
	res, err := s.db.ExecContext(ctx, `DELETE FROM semcache_records WHERE namespace = $1`, namespace)
	if err != nil {
		return 0, fmt.Errorf("purge namespace: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("purge namespace: rows affected: %w", err)
	}
	return int(n), nil
}

// DeleteExpired physically reclaims logically expired rows and returns the
// number of rows deleted.
func (s *Store) DeleteExpired(ctx context.Context) (int, error) {
	query := `
		DELETE FROM semcache_records
		WHERE created_at + make_interval(secs => ttl_seconds) < now()`

	res, err := s.db.ExecContext(ctx, query)
	if err != nil {
		return 0, fmt.Errorf("delete expired: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("delete expired: rows affected: %w", err)
	}
	return int(n), nil
}
