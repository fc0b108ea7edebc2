// Package store implements a normalized, ordered entity collection. Entities
// are held once, keyed by id, and listed newest-first (descending id).
package store

import "sort"

// Entity is anything with a numeric identity.
type Entity interface {
	Key() int64
}

// Store keeps entities keyed by id together with the canonical id sequence.
// It is not safe for concurrent use on its own; the query cache serializes
// access to the slot that owns it.
type Store[E Entity] struct {
	entities map[int64]E
	ids      []int64
	rev      uint64
}

// New returns an empty store.
func New[E Entity]() *Store[E] {
	return &Store[E]{entities: make(map[int64]E)}
}

// SetAll replaces the entire collection with the given entities and rebuilds
// the sorted id sequence. Calling it twice with the same input yields the
// same contents and ordering.
func (s *Store[E]) SetAll(entities []E) {
	s.entities = make(map[int64]E, len(entities))
	s.ids = s.ids[:0]
	for _, e := range entities {
		id := e.Key()
		if _, seen := s.entities[id]; !seen {
			s.ids = append(s.ids, id)
		}
		s.entities[id] = e
	}
	s.sortIDs()
	s.rev++
}

// AddOne inserts or overwrites the entity by id.
func (s *Store[E]) AddOne(e E) {
	id := e.Key()
	if _, ok := s.entities[id]; !ok {
		s.ids = append(s.ids, id)
		s.sortIDs()
	}
	s.entities[id] = e
	s.rev++
}

// UpdateOne merges changes into the entity with the given id. A missing id is
// a silent no-op: optimistic updates may race with deletions.
func (s *Store[E]) UpdateOne(id int64, changes func(E) E) {
	e, ok := s.entities[id]
	if !ok {
		return
	}
	s.entities[id] = changes(e)
	s.rev++
}

// RemoveOne deletes the entity with the given id.
func (s *Store[E]) RemoveOne(id int64) {
	if _, ok := s.entities[id]; !ok {
		return
	}
	delete(s.entities, id)
	for i, v := range s.ids {
		if v == id {
			s.ids = append(s.ids[:i], s.ids[i+1:]...)
			break
		}
	}
	s.rev++
}

// All returns the entities in canonical order.
func (s *Store[E]) All() []E {
	out := make([]E, 0, len(s.ids))
	for _, id := range s.ids {
		out = append(out, s.entities[id])
	}
	return out
}

// ByID looks up a single entity.
func (s *Store[E]) ByID(id int64) (E, bool) {
	e, ok := s.entities[id]
	return e, ok
}

// IDs returns the canonical id sequence.
func (s *Store[E]) IDs() []int64 {
	out := make([]int64, len(s.ids))
	copy(out, s.ids)
	return out
}

// Len returns the number of entities held.
func (s *Store[E]) Len() int { return len(s.entities) }

// Rev returns a revision counter that increases on every mutation. Selectors
// use it to detect unchanged inputs.
func (s *Store[E]) Rev() uint64 { return s.rev }

// Clone returns an independent copy sharing no mutable state with the
// receiver. The optimistic-update machinery patches clones so that rollback
// can restore the original untouched.
func (s *Store[E]) Clone() *Store[E] {
	c := &Store[E]{
		entities: make(map[int64]E, len(s.entities)),
		ids:      make([]int64, len(s.ids)),
		rev:      s.rev,
	}
	for id, e := range s.entities {
		c.entities[id] = e
	}
	copy(c.ids, s.ids)
	return c
}

func (s *Store[E]) sortIDs() {
	sort.Slice(s.ids, func(i, j int) bool { return s.ids[i] > s.ids[j] })
}
