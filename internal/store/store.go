// internal/store/store.go
package store

import (
	"errors"
	"fmt"
	"sync"

	"github.com/tamzrod/flapbus/internal/clock"
)

// UnitState is one unit's state as seen by the master.
type UnitState struct {
	Address                 int
	Rotating                bool
	Offset                  int
	ZeroPositionLetterIndex int
	LastResponseAtMillis    uint32
}

// Stale reports whether the unit has not answered for longer than after.
// Wrap-safe.
func (u UnitState) Stale(now, after uint32) bool {
	return clock.Elapsed(now, u.LastResponseAtMillis) > after
}

// Store holds the Observed and Pending buffers.
// Pure memory, no I/O. Every slot in [0, Cap()) is always valid.
type Store struct {
	mu       sync.RWMutex
	observed []UnitState
	pending  []UnitState
}

// New allocates both buffers with zeroed, address-tagged entries.
func New(capacity int) (*Store, error) {
	if capacity <= 0 {
		return nil, errors.New("store: capacity must be > 0")
	}
	s := &Store{
		observed: make([]UnitState, capacity),
		pending:  make([]UnitState, capacity),
	}
	for i := range s.observed {
		s.observed[i].Address = i
		s.pending[i].Address = i
	}
	return s, nil
}

// Cap is the fixed number of slots.
func (s *Store) Cap() int {
	return len(s.observed)
}

// Observed returns a copy of the Observed buffer.
func (s *Store) Observed() []UnitState {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]UnitState(nil), s.observed...)
}

// Pending returns a copy of the Pending buffer.
func (s *Store) Pending() []UnitState {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]UnitState(nil), s.pending...)
}

// ObservedAt returns one Observed entry.
func (s *Store) ObservedAt(addr int) (UnitState, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if addr < 0 || addr >= len(s.observed) {
		return UnitState{}, false
	}
	return s.observed[addr], true
}

// SetPending replaces the whole Pending buffer. values must hold exactly
// Cap() entries; anything else is rejected and Pending is left as it was.
// Addresses are forced to the slot index.
func (s *Store) SetPending(values []UnitState) error {
	if len(values) != len(s.pending) {
		return fmt.Errorf("store: got %d values, want exactly %d", len(values), len(s.pending))
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	for i, v := range values {
		v.Address = i
		s.pending[i] = v
	}
	return nil
}

// UpdateObserved overwrites one Observed entry. Only the poll path calls it.
func (s *Store) UpdateObserved(u UnitState) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if u.Address < 0 || u.Address >= len(s.observed) {
		return fmt.Errorf("store: address %d out of range [0,%d)", u.Address, len(s.observed))
	}
	s.observed[u.Address] = u
	return nil
}

// CopyObservedIntoPending makes "no pending change" the default state.
func (s *Store) CopyObservedIntoPending() {
	s.mu.Lock()
	defer s.mu.Unlock()
	copy(s.pending, s.observed)
}

// CopyObservedIntoPendingExcept does the same for every slot not in keep.
// Slots in keep hold values staged but not yet committed.
func (s *Store) CopyObservedIntoPendingExcept(keep map[int]bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i := range s.pending {
		if !keep[i] {
			s.pending[i] = s.observed[i]
		}
	}
}
