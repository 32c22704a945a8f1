package proc

import (
	"fmt"
	"testing"
)

func TestCancelDeliversPayloadStatus(t *testing.T) {
	k := New(Config{MaxProcs: 64})
	_, err := k.Start(func(cur *Thread) int {
		victim, err := k.Spawn(cur, "sleeper", func(w *Thread) int {
			<-w.Interrupt()
			if !w.Interrupted() {
				t.Errorf("woken sleeper does not report Interrupted")
			}
			return 0 // the cancellation payload wins
		})
		if err != nil {
			t.Errorf("Spawn: %v", err)
			return 1
		}

		k.CancelProc(cur, victim, -9)
		pid, status, err := k.WaitPID(cur, victim.PID(), 0)
		if err != nil {
			t.Errorf("WaitPID: %v", err)
		}
		if pid != victim.PID() || status != -9 {
			t.Errorf("reaped (%d, %d), want (%d, -9)", pid, status, victim.PID())
		}
		return 0
	})
	if err != nil {
		t.Fatalf("Start: %v", err)
	}
	mustShutdown(t, k)
}

func TestCancelBeforeFirstThreadRuns(t *testing.T) {
	k := New(Config{MaxProcs: 64})
	_, err := k.Start(func(cur *Thread) int {
		p, err := k.CreateProcess(cur, "stillborn")
		if err != nil {
			t.Errorf("CreateProcess: %v", err)
			return 1
		}
		th := p.NewThread(func(w *Thread) int {
			t.Errorf("entry ran despite pre-start cancellation")
			return 0
		})
		k.CancelProc(cur, p, -3)
		th.Start()

		pid, status, err := k.WaitPID(cur, p.PID(), 0)
		if err != nil {
			t.Errorf("WaitPID: %v", err)
		}
		if pid != p.PID() || status != -3 {
			t.Errorf("reaped (%d, %d), want (%d, -3)", pid, status, p.PID())
		}
		return 0
	})
	if err != nil {
		t.Fatalf("Start: %v", err)
	}
	mustShutdown(t, k)
}

func TestCancelOwnProcPanics(t *testing.T) {
	k := New(Config{MaxProcs: 64})
	_, err := k.Start(func(cur *Thread) int {
		defer func() {
			if recover() == nil {
				t.Errorf("cancelling own process did not panic")
			}
		}()
		k.CancelProc(cur, cur.Proc(), -1)
		return 0
	})
	if err != nil {
		t.Fatalf("Start: %v", err)
	}
	mustShutdown(t, k)
}

func TestKillAllSparesIdleAndInit(t *testing.T) {
	k := New(Config{MaxProcs: 64})
	_, err := k.Start(func(cur *Thread) int {
		sleeper := func(w *Thread) int {
			<-w.Interrupt()
			return 0
		}
		for i := 0; i < 3; i++ {
			if _, err := k.Spawn(cur, fmt.Sprintf("victim%d", i), sleeper); err != nil {
				t.Errorf("spawn victim %d: %v", i, err)
				return 1
			}
		}
		if _, err := k.Spawn(cur, "killer", func(w *Thread) int {
			k.KillAll(w, KillAllStatus)
			t.Errorf("KillAll returned to an ordinary caller")
			return 0
		}); err != nil {
			t.Errorf("spawn killer: %v", err)
			return 1
		}

		// Victims and the killer itself all land with the kill status.
		for i := 0; i < 4; i++ {
			_, status, err := k.WaitPID(cur, WaitAny, 0)
			if err != nil {
				t.Errorf("reap %d: %v", i, err)
				return 1
			}
			if status != KillAllStatus {
				t.Errorf("reap %d status = %d, want %d", i, status, KillAllStatus)
			}
		}

		if cur.Interrupted() {
			t.Errorf("kill-all cancelled init")
		}
		if st := k.Idle().State(); st != Running {
			t.Errorf("idle state = %s, want running", st)
		}
		return 0
	})
	if err != nil {
		t.Fatalf("Start: %v", err)
	}
	mustShutdown(t, k)
	if s := k.InitStatus(); s != 0 {
		t.Fatalf("init status = %d, want 0", s)
	}
}

func TestKillAllFromInitReturns(t *testing.T) {
	k := New(Config{MaxProcs: 64})
	_, err := k.Start(func(cur *Thread) int {
		sleeper := func(w *Thread) int {
			<-w.Interrupt()
			return 0
		}
		for i := 0; i < 2; i++ {
			if _, err := k.Spawn(cur, fmt.Sprintf("victim%d", i), sleeper); err != nil {
				t.Errorf("spawn %d: %v", i, err)
				return 1
			}
		}

		// Init sits directly under idle, so KillAll must come back instead
		// of exiting the caller.
		k.KillAll(cur, KillAllStatus)

		for i := 0; i < 2; i++ {
			_, status, err := k.WaitPID(cur, WaitAny, 0)
			if err != nil {
				t.Errorf("reap %d: %v", i, err)
				return 1
			}
			if status != KillAllStatus {
				t.Errorf("victim status = %d, want %d", status, KillAllStatus)
			}
		}
		return 0
	})
	if err != nil {
		t.Fatalf("Start: %v", err)
	}
	mustShutdown(t, k)
}
