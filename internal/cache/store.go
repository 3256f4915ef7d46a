package cache

import (
	"slices"
	"sync"
)

// batchStore is an insertion-ordered map that trims its oldest entries in
// one batch once it grows past limit. Re-inserting a key moves it to the
// newest position; reads never reorder.
type batchStore[K comparable, V any] struct {
	mu    sync.RWMutex
	order []K
	index map[K]V
	limit int
	trim  int
}

func newBatchStore[K comparable, V any](limit, trim int) *batchStore[K, V] {
	if trim <= 0 || trim > limit {
		trim = limit
	}
	return &batchStore[K, V]{
		order: make([]K, 0, limit+1),
		index: make(map[K]V, limit+1),
		limit: limit,
		trim:  trim,
	}
}

func (s *batchStore[K, V]) get(key K) (V, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	v, ok := s.index[key]
	return v, ok
}

// put replaces any prior entry for key, appends it and returns the number
// of entries trimmed
func (s *batchStore[K, V]) put(key K, value V) int {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.index[key]; exists {
		if i := slices.Index(s.order, key); i >= 0 {
			s.order = slices.Delete(s.order, i, i+1)
		}
	}
	s.index[key] = value
	s.order = append(s.order, key)

	if len(s.order) <= s.limit {
		return 0
	}

	n := min(s.trim, len(s.order))
	for _, old := range s.order[:n] {
		delete(s.index, old)
	}
	s.order = slices.Clone(s.order[n:])
	return n
}

func (s *batchStore[K, V]) len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.order)
}

// values returns entries oldest first
func (s *batchStore[K, V]) values() []V {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]V, 0, len(s.order))
	for _, k := range s.order {
		out = append(out, s.index[k])
	}
	return out
}

func (s *batchStore[K, V]) clear() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.order = s.order[:0]
	clear(s.index)
}
