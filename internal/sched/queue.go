// Package sched provides the blocking primitives the process core is built
// on: FIFO wait queues with broadcast and single wakeup, an interruptible
// sleep variant, and a sleep-based mutex. Threads are ordinary goroutines;
// a queue entry is a channel the waker closes.
package sched

import (
	"errors"
	"sync"
)

// ErrInterrupted reports that an interruptible sleep was cut short by the
// caller's interrupt channel rather than by a wakeup.
var ErrInterrupted = errors.New("sleep interrupted")

// waiter is one blocked thread. ready is closed exactly once, either by a
// wakeup or never (interrupted waiters unlink themselves instead).
type waiter struct {
	ready chan struct{}
}

// Queue is a FIFO wait queue. Waiters enqueue in arrival order; Broadcast
// wakes all of them, WakeOne wakes the oldest.
//
// Correct use follows the condition-variable discipline: the waiter holds a
// mutex, checks its predicate, and calls Sleep with that mutex; the waker
// changes the predicate and notifies while holding the same mutex. Sleep
// enqueues before releasing the mutex, so a notification that follows any
// predicate change made under the mutex cannot be lost. Waiters must
// re-check their predicate after waking; a wakeup is a hint, not a verdict.
type Queue struct {
	mu sync.Mutex
	ws []*waiter
}

// NewQueue returns an empty wait queue.
func NewQueue() *Queue {
	return &Queue{}
}

func (q *Queue) enqueue() *waiter {
	w := &waiter{ready: make(chan struct{})}
	q.mu.Lock()
	q.ws = append(q.ws, w)
	q.mu.Unlock()
	return w
}

// unlink removes w if it is still queued. It reports false when w was
// already taken by Broadcast or WakeOne, meaning the wakeup was consumed.
func (q *Queue) unlink(w *waiter) bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	for i, cand := range q.ws {
		if cand == w {
			q.ws = append(q.ws[:i], q.ws[i+1:]...)
			return true
		}
	}
	return false
}

// Sleep atomically releases mu and blocks until woken. The caller must hold
// mu and must re-acquire it afterwards itself; Sleep returns with no locks
// held.
func (q *Queue) Sleep(mu *sync.Mutex) {
	w := q.enqueue()
	mu.Unlock()
	<-w.ready
}

// SleepInterruptible is Sleep that can also return early when intr becomes
// ready. It returns nil on a normal wakeup and ErrInterrupted when the
// interrupt fired first. If a wakeup and an interrupt race, the wakeup wins
// and the caller observes the interrupt at its next cancellation point.
func (q *Queue) SleepInterruptible(mu *sync.Mutex, intr <-chan struct{}) error {
	w := q.enqueue()
	mu.Unlock()
	select {
	case <-w.ready:
		return nil
	case <-intr:
		if q.unlink(w) {
			return ErrInterrupted
		}
		// A waker already claimed this entry; count it as a wakeup.
		<-w.ready
		return nil
	}
}

// Broadcast wakes every thread currently blocked on the queue.
func (q *Queue) Broadcast() {
	q.mu.Lock()
	ws := q.ws
	q.ws = nil
	q.mu.Unlock()
	for _, w := range ws {
		close(w.ready)
	}
}

// WakeOne wakes the oldest blocked thread, if any. It reports whether a
// thread was woken.
func (q *Queue) WakeOne() bool {
	q.mu.Lock()
	if len(q.ws) == 0 {
		q.mu.Unlock()
		return false
	}
	w := q.ws[0]
	q.ws = q.ws[1:]
	q.mu.Unlock()
	close(w.ready)
	return true
}

// Len reports how many threads are currently blocked. Diagnostic only; the
// value is stale the moment it is returned.
func (q *Queue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.ws)
}
