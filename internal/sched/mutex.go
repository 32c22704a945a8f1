package sched

import "sync"

// Mutex is a sleep-based kernel mutex. Contending threads block on a wait
// queue instead of spinning, and the oldest waiter is woken first on unlock.
// Acquisition is re-checked after every wakeup, so a freshly arriving thread
// may slip in ahead of a woken one; mutual exclusion and progress hold
// regardless.
//
// The owner token identifies the holder for misuse detection only. Unlock by
// a non-holder is a programming error and panics.
type Mutex struct {
	mu     sync.Mutex
	holder any
	q      Queue
}

// NewMutex returns an unlocked mutex.
func NewMutex() *Mutex {
	return &Mutex{}
}

// Lock blocks until the mutex is free and acquires it for owner. Locking a
// mutex the owner already holds panics: these mutexes are not reentrant and
// a self-deadlock would otherwise be silent.
func (m *Mutex) Lock(owner any) {
	m.mu.Lock()
	for m.holder != nil {
		if m.holder == owner {
			m.mu.Unlock()
			panic("sched: mutex relocked by its holder")
		}
		m.q.Sleep(&m.mu)
		m.mu.Lock()
	}
	m.holder = owner
	m.mu.Unlock()
}

// Unlock releases the mutex and wakes the oldest waiter. It panics when
// owner does not hold the mutex.
func (m *Mutex) Unlock(owner any) {
	m.mu.Lock()
	if m.holder != owner {
		m.mu.Unlock()
		panic("sched: mutex unlocked by non-holder")
	}
	m.holder = nil
	m.q.WakeOne()
	m.mu.Unlock()
}

// Held reports whether owner currently holds the mutex.
func (m *Mutex) Held(owner any) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.holder == owner
}
