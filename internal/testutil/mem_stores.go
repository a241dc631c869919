package testutil

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/semkit/semcache/pkg/cache"
)

// MemExact is an in-memory exact tier for testing. Expiry is enforced on
// read, mirroring the Redis tier's lazy guard.
type MemExact struct {
	mu      sync.Mutex
	entries map[string]memEntry

	// FailWith, when set, makes every operation fail.
	FailWith error
}

type memEntry struct {
	rec       cache.Record
	expiresAt time.Time
}

// NewMemExact creates an empty in-memory exact tier.
func NewMemExact() *MemExact {
	return &MemExact{entries: make(map[string]memEntry)}
}

// GetExact implements cache.ExactStore.
func (m *MemExact) GetExact(ctx context.Context, key string) (*cache.Record, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.FailWith != nil {
		return nil, m.FailWith
	}

	entry, ok := m.entries[key]
	if !ok {
		return nil, cache.ErrMiss
	}
	if time.Now().After(entry.expiresAt) {
		delete(m.entries, key)
		return nil, cache.ErrMiss
	}
	rec := entry.rec
	return &rec, nil
}

// PutExact implements cache.ExactStore.
func (m *MemExact) PutExact(ctx context.Context, key string, rec *cache.Record, ttl time.Duration) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.FailWith != nil {
		return m.FailWith
	}
	if ttl <= 0 {
		return nil
	}

	m.entries[key] = memEntry{rec: *rec, expiresAt: time.Now().Add(ttl)}
	return nil
}

// PurgeNamespace implements cache.ExactStore.
func (m *MemExact) PurgeNamespace(ctx context.Context, namespace string) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.FailWith != nil {
		return 0, m.FailWith
	}

	prefix := strings.TrimSuffix(cache.NamespacePattern(namespace), "*")
	removed := 0
	for key := range m.entries {
		if strings.HasPrefix(key, prefix) {
			delete(m.entries, key)
			removed++
		}
	}
	return removed, nil
}

// Len returns the number of live entries.
func (m *MemExact) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.entries)
}

// MemSemantic is an in-memory semantic tier for testing. Expired records stay
// in place until purged, mirroring the PostgreSQL tier's lazy expiry.
type MemSemantic struct {
	mu      sync.Mutex
	records map[string]map[string]cache.Record

	// FailWith, when set, makes every operation fail.
	FailWith error
}

// NewMemSemantic creates an empty in-memory semantic tier.
func NewMemSemantic() *MemSemantic {
	return &MemSemantic{records: make(map[string]map[string]cache.Record)}
}

// PutRecord implements cache.SemanticStore.
func (m *MemSemantic) PutRecord(ctx context.Context, rec *cache.Record) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.FailWith != nil {
		return m.FailWith
	}

	ns, ok := m.records[rec.Namespace]
	if !ok {
		ns = make(map[string]cache.Record)
		m.records[rec.Namespace] = ns
	}
	ns[rec.CanonicalHash] = *rec
	return nil
}

// GetRecord implements cache.SemanticStore.
func (m *MemSemantic) GetRecord(ctx context.Context, namespace, canonicalHash string) (*cache.Record, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.FailWith != nil {
		return nil, m.FailWith
	}

	rec, ok := m.records[namespace][canonicalHash]
	if !ok {
		return nil, cache.ErrMiss
	}
	out := rec
	return &out, nil
}

// ScanRecent implements cache.SemanticStore.
func (m *MemSemantic) ScanRecent(ctx context.Context, namespace string, limit int) ([]*cache.Record, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.FailWith != nil {
		return nil, m.FailWith
	}

	records := make([]*cache.Record, 0, len(m.records[namespace]))
	for hash := range m.records[namespace] {
		rec := m.records[namespace][hash]
		records = append(records, &rec)
	}
	sort.Slice(records, func(i, j int) bool {
		return records[i].CreatedAt.After(records[j].CreatedAt)
	})
	if limit > 0 && len(records) > limit {
		records = records[:limit]
	}
	return records, nil
}

// PurgeNamespace implements cache.SemanticStore.
func (m *MemSemantic) PurgeNamespace(ctx context.Context, namespace string) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.FailWith != nil {
		return 0, m.FailWith
	}

	removed := len(m.records[namespace])
	delete(m.records, namespace)
	return removed, nil
}

// Len returns the number of records in the namespace.
func (m *MemSemantic) Len(namespace string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.records[namespace])
}
