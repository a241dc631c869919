package cache

import (
	"time"
)

// Record is a cached query result as persisted in both tiers.
//
// Records are immutable once written: a Set on an existing key is a full
// overwrite, never a mutation, so concurrent readers see either the old or
// the new record.
type Record struct {
	// Namespace partitions unrelated query domains. Similarity matching
	// never crosses namespaces.
	Namespace string `json:"namespace"`

	// CanonicalHash is the deterministic digest of the normalized
	// (namespace, query_text) pair. Unique per live record and namespace.
	CanonicalHash string `json:"canonical_hash"`

	// QueryText is the original input, retained for diagnostics and
	// tie-break audit.
	QueryText string `json:"query_text"`

	// Embedding is present only if the embedding provider succeeded at
	// write time. A record without an embedding is only ever reachable via
	// exact-hash lookup, never via similarity scan.
	Embedding []float32 `json:"embedding,omitempty"`

	// Payload is the serialized pipeline result. The cache never inspects
	// its structure.
	Payload []byte `json:"payload"`

	// CreatedAt is when the record was written.
	CreatedAt time.Time `json:"created_at"`

	// TTLSeconds is the record lifetime in seconds. Always > 0.
	TTLSeconds int64 `json:"ttl_seconds"`
}

// NewRecord creates a record for a fresh cache write. The embedding is
// attached by the caller if the provider succeeded.
func NewRecord(namespace, queryText string, payload []byte, ttl time.Duration) *Record {
	return &Record{
		Namespace:     namespace,
		CanonicalHash: Canonicalize(namespace, queryText),
		QueryText:     queryText,
		Payload:       payload,
		CreatedAt:     time.Now().UTC(),
		TTLSeconds:    int64(ttl / time.Second),
	}
}

// ExpiresAt returns the instant the record becomes logically absent.
func (r *Record) ExpiresAt() time.Time {
	return r.CreatedAt.Add(time.Duration(r.TTLSeconds) * time.Second)
}

// IsExpired reports whether the record has logically expired, regardless of
// whether it has been physically removed yet (lazy expiry).
func (r *Record) IsExpired() bool {
	return r.ExpiredAt(time.Now())
}

// ExpiredAt reports whether the record is logically absent at the given time.
func (r *Record) ExpiredAt(now time.Time) bool {
	return now.After(r.ExpiresAt())
}

// TTL returns the time until expiration.
// Returns 0 if already expired.
func (r *Record) TTL() time.Duration {
	ttl := time.Until(r.ExpiresAt())
	if ttl < 0 {
		return 0
	}
	return ttl
}

// HasEmbedding reports whether the record can participate in similarity
// scans.
func (r *Record) HasEmbedding() bool {
	return len(r.Embedding) > 0
}
