package cache

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/at-ishikawa/surveygen/internal/survey"
)

// MemoryStore is a process-local Store for development and tests.
// Its mutex only guards the map; it is never held across generation.
type MemoryStore struct {
	mu       sync.RWMutex
	entries  map[string]*Entry
	nextID   int64
	now      func() time.Time
	counters counters
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		entries: make(map[string]*Entry),
		now:     time.Now,
	}
}

func (s *MemoryStore) Lookup(_ context.Context, key string) (*Entry, error) {
	s.mu.RLock()
	entry, ok := s.entries[key]
	s.mu.RUnlock()
	if !ok {
		s.counters.misses.Add(1)
		return nil, ErrNotFound
	}
	s.counters.hits.Add(1)
	copied := *entry
	return &copied, nil
}

func (s *MemoryStore) InsertIfAbsent(_ context.Context, rawInput, key string, doc survey.Document) (InsertResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.entries[key]; ok {
		s.counters.conflicts.Add(1)
		return InsertResult{Conflict: true}, nil
	}

	s.nextID++
	entry := &Entry{
		ID:            s.nextID,
		RawInput:      rawInput,
		NormalizedKey: key,
		Document:      doc,
		CreatedAt:     s.now().UTC(),
	}
	s.entries[key] = entry

	copied := *entry
	return InsertResult{Inserted: &copied}, nil
}

func (s *MemoryStore) List(_ context.Context, limit, offset int) ([]Entry, error) {
	s.mu.RLock()
	all := make([]Entry, 0, len(s.entries))
	for _, e := range s.entries {
		all = append(all, *e)
	}
	s.mu.RUnlock()

	sort.Slice(all, func(i, j int) bool { return all[i].ID > all[j].ID })
	if offset >= len(all) {
		return []Entry{}, nil
	}
	all = all[offset:]
	if limit >= 0 && limit < len(all) {
		all = all[:limit]
	}
	return all, nil
}

func (s *MemoryStore) Stats(_ context.Context) (Stats, error) {
	s.mu.RLock()
	n := int64(len(s.entries))
	s.mu.RUnlock()
	return s.counters.stats(n), nil
}

var (
	_ Store   = (*MemoryStore)(nil)
	_ Catalog = (*MemoryStore)(nil)
)
