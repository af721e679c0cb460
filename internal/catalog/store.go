package catalog

import (
	"sync/atomic"
)

// Store publishes the current catalog snapshot. Reload builds a complete
// new Catalog before swapping the pointer, so readers either see the old
// set or the new set, never a partial one; in-flight requests keep using
// whatever snapshot they took at the start of the request.
type Store struct {
	snapshot atomic.Pointer[Catalog]
}

// NewStore creates a store holding an initial snapshot.
func NewStore(initial *Catalog) *Store {
	s := &Store{}
	s.snapshot.Store(initial)
	return s
}

// Current returns the latest published snapshot.
func (s *Store) Current() *Catalog {
	return s.snapshot.Load()
}

// Reload loads a fresh catalog from the same directory the current
// snapshot came from and publishes it. On load failure the previous
// snapshot stays in place untouched.
func (s *Store) Reload() (*Catalog, error) {
	cur := s.snapshot.Load()
	next, err := Load(cur.Dir())
	if err != nil {
		return nil, err
	}
	s.snapshot.Store(next)
	return next, nil
}
