package proc

import (
	"errors"
	"testing"
)

func stubProc(pid PID) *Proc {
	p := new(Proc)
	p.reset(nil, pid, "stub", 0)
	return p
}

func TestAllocPIDStartsAfterIdle(t *testing.T) {
	tb := newTable(8)
	pid, err := tb.allocPID()
	if err != nil {
		t.Fatalf("allocPID: %v", err)
	}
	if pid != PIDInit {
		t.Fatalf("first pid = %d, want %d", pid, PIDInit)
	}
}

func TestAllocPIDExhaustionAndWrap(t *testing.T) {
	tb := newTable(8)
	for want := PID(1); want < 8; want++ {
		pid, err := tb.allocPID()
		if err != nil {
			t.Fatalf("allocPID #%d: %v", want, err)
		}
		if pid != want {
			t.Fatalf("allocPID = %d, want %d", pid, want)
		}
		tb.register(stubProc(pid))
	}

	if _, err := tb.allocPID(); !errors.Is(err, ErrPIDExhausted) {
		t.Fatalf("full table alloc err = %v, want ErrPIDExhausted", err)
	}

	// Freeing a low pid is only found again by wrapping past the cursor.
	tb.unregister(4)
	pid, err := tb.allocPID()
	if err != nil {
		t.Fatalf("allocPID after unregister: %v", err)
	}
	if pid != 4 {
		t.Fatalf("recycled pid = %d, want 4", pid)
	}
}

func TestAllocPIDHonorsReservations(t *testing.T) {
	tb := newTable(8)
	first, err := tb.allocPID()
	if err != nil {
		t.Fatalf("allocPID: %v", err)
	}
	second, err := tb.allocPID()
	if err != nil {
		t.Fatalf("allocPID: %v", err)
	}
	if first == second {
		t.Fatalf("reserved pid %d handed out twice", first)
	}

	// A rollback returns the pid to circulation.
	tb.releasePID(first)
	tb.register(stubProc(second))
	seen := map[PID]bool{}
	for {
		pid, err := tb.allocPID()
		if err != nil {
			break
		}
		if seen[pid] {
			t.Fatalf("pid %d allocated twice in one sweep", pid)
		}
		seen[pid] = true
	}
	if !seen[first] {
		t.Fatalf("released pid %d never came back", first)
	}
}

func TestRegisterTwicePanics(t *testing.T) {
	tb := newTable(8)
	pid, _ := tb.allocPID()
	tb.register(stubProc(pid))
	defer func() {
		if recover() == nil {
			t.Fatalf("second register did not panic")
		}
	}()
	tb.register(stubProc(pid))
}

func TestSnapshotSortedByPID(t *testing.T) {
	tb := newTable(16)
	for i := 0; i < 5; i++ {
		pid, err := tb.allocPID()
		if err != nil {
			t.Fatalf("allocPID: %v", err)
		}
		tb.register(stubProc(pid))
	}
	procs := tb.snapshot()
	if len(procs) != 5 {
		t.Fatalf("snapshot len = %d, want 5", len(procs))
	}
	for i := 1; i < len(procs); i++ {
		if procs[i-1].pid >= procs[i].pid {
			t.Fatalf("snapshot out of order: %d before %d", procs[i-1].pid, procs[i].pid)
		}
	}
	if tb.Len() != 5 {
		t.Fatalf("Len = %d, want 5", tb.Len())
	}
}
