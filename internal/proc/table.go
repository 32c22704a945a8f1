package proc

import (
	"fmt"
	"sort"
	"sync"
)

// Table is the registry of process descriptors keyed by PID, plus the
// rotating allocation cursor. Idle lives outside the table; everything else
// is registered at creation and unregistered at destruction, so dead
// processes stay visible until reaped. The table lock is a leaf: nothing
// that can block runs while it is held.
type Table struct {
	mu       sync.Mutex
	procs    map[PID]*Proc
	reserved map[PID]struct{}
	cursor   PID
	max      PID
}

func newTable(maxProcs int) *Table {
	return &Table{
		procs:    make(map[PID]*Proc),
		reserved: make(map[PID]struct{}),
		cursor:   PIDIdle,
		max:      PID(maxProcs),
	}
}

// allocPID reserves the first free PID after the cursor, scanning [1, max)
// with wraparound. The reservation holds the slot between allocation and
// register so concurrent creators cannot collide; releasePID undoes it on a
// creation rollback. A full wrap means every slot is taken.
func (tb *Table) allocPID() (PID, error) {
	tb.mu.Lock()
	defer tb.mu.Unlock()
	pid := tb.cursor
	for n := PID(1); n < tb.max; n++ {
		pid++
		if pid >= tb.max {
			pid = PIDInit
		}
		if _, live := tb.procs[pid]; live {
			continue
		}
		if _, held := tb.reserved[pid]; held {
			continue
		}
		tb.reserved[pid] = struct{}{}
		tb.cursor = pid
		return pid, nil
	}
	return 0, ErrPIDExhausted
}

// releasePID returns a reserved-but-never-registered PID to the free space.
func (tb *Table) releasePID(pid PID) {
	tb.mu.Lock()
	delete(tb.reserved, pid)
	tb.mu.Unlock()
}

// register publishes p under its PID, consuming the reservation.
func (tb *Table) register(p *Proc) {
	tb.mu.Lock()
	defer tb.mu.Unlock()
	if _, ok := tb.procs[p.pid]; ok {
		panic(fmt.Sprintf("proc: pid %d registered twice", p.pid))
	}
	delete(tb.reserved, p.pid)
	tb.procs[p.pid] = p
}

// unregister removes pid from the registry, freeing the PID for reuse.
func (tb *Table) unregister(pid PID) {
	tb.mu.Lock()
	delete(tb.procs, pid)
	tb.mu.Unlock()
}

// lookup resolves a registered PID.
func (tb *Table) lookup(pid PID) (*Proc, bool) {
	tb.mu.Lock()
	p, ok := tb.procs[pid]
	tb.mu.Unlock()
	return p, ok
}

// snapshot returns the registered descriptors ordered by PID.
func (tb *Table) snapshot() []*Proc {
	tb.mu.Lock()
	out := make([]*Proc, 0, len(tb.procs))
	for _, p := range tb.procs {
		out = append(out, p)
	}
	tb.mu.Unlock()
	sort.Slice(out, func(i, j int) bool { return out[i].pid < out[j].pid })
	return out
}

// Len counts registered descriptors.
func (tb *Table) Len() int {
	tb.mu.Lock()
	defer tb.mu.Unlock()
	return len(tb.procs)
}
