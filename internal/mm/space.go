// Package mm models per-process address spaces. The lifecycle core only
// needs an owned handle that is created fresh for every process and released
// exactly once at destruction; the package keeps a live count so tests can
// assert teardown leaks nothing.
package mm

import (
	"fmt"
	"sync/atomic"
)

var (
	nextID atomic.Int64
	live   atomic.Int64
)

// Space is one process address space.
type Space struct {
	id       int64
	released atomic.Bool
}

// NewSpace creates a fresh, empty address space.
func NewSpace() *Space {
	live.Add(1)
	return &Space{id: nextID.Add(1)}
}

// ID returns the space's unique identity.
func (s *Space) ID() int64 { return s.id }

// Release tears the space down. Releasing twice is a programming error and
// panics.
func (s *Space) Release() {
	if !s.released.CompareAndSwap(false, true) {
		panic(fmt.Sprintf("mm: address space %d released twice", s.id))
	}
	live.Add(-1)
}

// Live reports how many spaces are currently allocated.
func Live() int64 { return live.Load() }
