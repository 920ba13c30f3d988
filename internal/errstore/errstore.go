// Package errstore keeps the raised-error state of each goroutine, the
// host-side analog of the foreign ABI's thread-local error object. A nonzero
// status from a boundary call means "retrieve the error from the store of
// the goroutine that made the call".
package errstore

import (
	"sync"

	"github.com/petermattis/goid"
)

// Store maps goroutine IDs to their raised error. Raise and Move pair up on
// the same goroutine; callbacks invoked from foreign worker threads each get
// their own slot, so concurrent failures never clobber each other.
type Store struct {
	mu     sync.Mutex
	raised map[int64]error
}

// New creates an empty store.
func New() *Store {
	return &Store{raised: make(map[int64]error)}
}

// Raise records err as the calling goroutine's raised error, replacing any
// previous one.
func (s *Store) Raise(err error) {
	gid := goid.Get()
	s.mu.Lock()
	defer s.mu.Unlock()
	if err == nil {
		delete(s.raised, gid)
		return
	}
	s.raised[gid] = err
}

// Move takes and clears the calling goroutine's raised error.
func (s *Store) Move() error {
	gid := goid.Get()
	s.mu.Lock()
	defer s.mu.Unlock()
	err := s.raised[gid]
	delete(s.raised, gid)
	return err
}

// Peek returns the raised error without clearing it.
func (s *Store) Peek() error {
	gid := goid.Get()
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.raised[gid]
}

// Len reports how many goroutines currently hold a raised error. Leak
// accounting for tests.
func (s *Store) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.raised)
}
