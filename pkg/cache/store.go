package cache

import (
	"context"
	"time"
)

// ExactStore is the fast key-value tier (L1). Expected backing store is
// ephemeral/in-memory-class with native TTL support. The orchestrator
// tolerates its unavailability: L1 being down is never fatal.
//
// Implementations must be safe for concurrent use.
type ExactStore interface {
	// GetExact retrieves a record by its store key.
	// Returns ErrMiss if the key is absent or the record has expired.
	GetExact(ctx context.Context, key string) (*Record, error)

	// PutExact stores a record under the key with the given TTL.
	// A non-positive TTL must not store anything.
	PutExact(ctx context.Context, key string, rec *Record, ttl time.Duration) error

	// PurgeNamespace removes every key in the namespace and returns the
	// number of keys removed.
	PurgeNamespace(ctx context.Context, namespace string) (int, error)
}

// SemanticStore is the durable tier (L2) holding records with their
// embedding vectors. Expired records may linger physically; readers apply
// lazy expiry.
//
// Implementations must be safe for concurrent use.
type SemanticStore interface {
	// PutRecord stores a record, overwriting any prior record with the
	// same (namespace, canonical_hash) key (last-write-wins).
	PutRecord(ctx context.Context, rec *Record) error

	// GetRecord retrieves a record by namespace and canonical hash.
	// Returns ErrMiss if no record exists. Callers must still apply lazy
	// expiry to the result.
	GetRecord(ctx context.Context, namespace, canonicalHash string) (*Record, error)

	// ScanRecent returns up to limit records in the namespace,
	// most-recent-first. The bounded scan is a deliberate trade-off:
	// linear comparison cost is acceptable for small working sets but does
	// not scale past low thousands of distinct cached queries per
	// namespace.
	ScanRecent(ctx context.Context, namespace string, limit int) ([]*Record, error)

	// PurgeNamespace removes every record in the namespace and returns the
	// number of records removed.
	PurgeNamespace(ctx context.Context, namespace string) (int, error)
}
