package cache

import (
	"crypto/sha256"
	"encoding/hex"
	"strings"
)

// keyPrefix namespaces all store keys owned by this cache.
const keyPrefix = "semcache"

// QueryKey identifies a cached query within a namespace.
type QueryKey struct {
	// Namespace partitions unrelated query domains (e.g. "adaptive", "auto").
	Namespace string

	// QueryText is the raw query as received from the caller.
	QueryText string
}

// Hash returns the canonical hash of the normalized (namespace, query) pair.
// The query text is trimmed and case-folded first, so trivially different
// surface forms of the same query produce the same hash. Deterministic,
// no I/O, never fails.
func (k QueryKey) Hash() string {
	folded := strings.ToLower(strings.TrimSpace(k.QueryText))
	sum := sha256.Sum256([]byte(k.Namespace + "\x00" + folded))
	return hex.EncodeToString(sum[:])
}

// String generates the deterministic store key string.
// Format: semcache:namespace:canonical_hash
//
// Example:
//
//	semcache:adaptive:9f86d081884c7d65...
func (k QueryKey) String() string {
	return keyPrefix + ":" + k.Namespace + ":" + k.Hash()
}

// Canonicalize returns the canonical hash for a raw (namespace, query) pair.
func Canonicalize(namespace, queryText string) string {
	return QueryKey{Namespace: namespace, QueryText: queryText}.Hash()
}

// NamespacePattern returns the glob pattern matching every store key in a
// namespace. Used by exact tiers that purge via key scans.
func NamespacePattern(namespace string) string {
	return keyPrefix + ":" + namespace + ":*"
}
