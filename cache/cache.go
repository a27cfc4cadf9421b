// Package cache provides the result cache for the toolrun engine.
//
// Entries are keyed by the exact (tool name, raw argument string) pair with
// no canonicalization: two raw strings that parse to equal mappings but
// differ in whitespace or key order are distinct entries. Entries are never
// evicted; the cache lives for the process.
package cache

import (
	"context"
	"sort"
	"sync"
)

// Store is the interface for result cache backends.
type Store interface {
	// Get retrieves the cached output for the exact (tool, raw) key.
	// Returns the output, whether it was found, and any backend error.
	Get(ctx context.Context, tool, raw string) (any, bool, error)

	// Set inserts or overwrites the entry for the exact (tool, raw) key.
	Set(ctx context.Context, tool, raw string, output any) error
}

type key struct {
	tool string
	raw  string
}

// MemoryStore is a thread-safe in-memory Store.
type MemoryStore struct {
	mu      sync.RWMutex
	entries map[key]any
}

// NewMemoryStore creates an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{entries: make(map[key]any)}
}

// Shared is the process-wide default store used by engines that are not
// given an explicit cache. Engines constructed with a different Store do
// not touch it.
var Shared = NewMemoryStore()

// Get retrieves the cached output for the exact key.
func (s *MemoryStore) Get(ctx context.Context, tool, raw string) (any, bool, error) {
	if err := ctx.Err(); err != nil {
		return nil, false, err
	}

	s.mu.RLock()
	out, ok := s.entries[key{tool, raw}]
	s.mu.RUnlock()
	return out, ok, nil
}

// Set inserts or overwrites the entry for the exact key.
func (s *MemoryStore) Set(ctx context.Context, tool, raw string, output any) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	s.mu.Lock()
	s.entries[key{tool, raw}] = output
	s.mu.Unlock()
	return nil
}

// Size returns the number of entries.
func (s *MemoryStore) Size() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.entries)
}

// Clear removes all entries.
func (s *MemoryStore) Clear() {
	s.mu.Lock()
	s.entries = make(map[key]any)
	s.mu.Unlock()
}

// Keys returns "tool\x00raw" composite keys in sorted order (for tests).
func (s *MemoryStore) Keys() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()

	keys := make([]string, 0, len(s.entries))
	for k := range s.entries {
		keys = append(keys, k.tool+"\x00"+k.raw)
	}
	sort.Strings(keys)
	return keys
}

// Ensure interface compliance at compile time.
var _ Store = (*MemoryStore)(nil)
