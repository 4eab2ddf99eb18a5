package mapping

import (
	"context"
	"sort"
	"sync"
)

// mapKey identifies a mapping: raw SKUs are unique per marketplace.
type mapKey struct {
	marketplace string
	rawSKU      string
}

// MemoryStore is an in-process mapping table.
//
// Reads take a shared lock and run concurrently. Writes additionally take a
// per-marketplace mutex so duplicate detection on Insert can never lose an
// update between the existence check and the write.
type MemoryStore struct {
	mu    sync.RWMutex
	table map[mapKey]Mapping

	writeMu sync.Mutex
	writers map[string]*sync.Mutex
}

// NewMemoryStore creates an empty in-memory mapping store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		table:   make(map[mapKey]Mapping),
		writers: make(map[string]*sync.Mutex),
	}
}

// marketplaceLock returns the write mutex for a marketplace, creating it on
// first use.
func (s *MemoryStore) marketplaceLock(marketplace string) *sync.Mutex {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	l, ok := s.writers[marketplace]
	if !ok {
		l = &sync.Mutex{}
		s.writers[marketplace] = l
	}
	return l
}

// Lookup implements Store.
func (s *MemoryStore) Lookup(_ context.Context, marketplace, rawSKU string) (string, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	m, ok := s.table[mapKey{marketplace, rawSKU}]
	if !ok {
		return "", false, nil
	}
	return m.MSKU, true, nil
}

// Insert implements Store.
func (s *MemoryStore) Insert(_ context.Context, m Mapping, overwrite bool) error {
	lock := s.marketplaceLock(m.Marketplace)
	lock.Lock()
	defer lock.Unlock()

	key := mapKey{m.Marketplace, m.RawSKU}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.table[key]; exists && !overwrite {
		return ErrDuplicateMapping
	}
	s.table[key] = m
	return nil
}

// Delete implements Store.
func (s *MemoryStore) Delete(_ context.Context, marketplace, rawSKU string) error {
	lock := s.marketplaceLock(marketplace)
	lock.Lock()
	defer lock.Unlock()

	key := mapKey{marketplace, rawSKU}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.table[key]; !exists {
		return ErrNotFound
	}
	delete(s.table, key)
	return nil
}

// List implements Store.
func (s *MemoryStore) List(_ context.Context, marketplace string) ([]Mapping, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make([]Mapping, 0, len(s.table))
	for key, m := range s.table {
		if marketplace != "" && key.marketplace != marketplace {
			continue
		}
		result = append(result, m)
	}

	sort.Slice(result, func(i, j int) bool {
		if result[i].Marketplace != result[j].Marketplace {
			return result[i].Marketplace < result[j].Marketplace
		}
		return result[i].RawSKU < result[j].RawSKU
	})

	return result, nil
}

// Count implements Store.
func (s *MemoryStore) Count(_ context.Context) (int64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return int64(len(s.table)), nil
}
