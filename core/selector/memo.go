// Package selector provides last-value memoization for derived projections.
// A selector recomputes only when its declared input key changes, so
// consumers observing the output can skip work when nothing relevant moved.
package selector

import "sync"

// Memo caches the last computed value for a comparable input key. The key
// should encode every input the computation depends on, typically a store or
// slot revision plus the selector arguments.
type Memo[K comparable, V any] struct {
	mu    sync.Mutex
	valid bool
	key   K
	val   V
	hits  uint64
}

// Get returns the cached value when key matches the previous call, otherwise
// it runs compute and caches the result.
func (m *Memo[K, V]) Get(key K, compute func() V) V {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.valid && m.key == key {
		m.hits++
		return m.val
	}
	m.val = compute()
	m.key = key
	m.valid = true
	return m.val
}

// Hits reports how many calls were served from cache. Used by tests to assert
// that unchanged inputs do not recompute.
func (m *Memo[K, V]) Hits() uint64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.hits
}
