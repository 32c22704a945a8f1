package proc

import (
	"fmt"
	"runtime"
	"sync"
	"sync/atomic"

	"github.com/h2323547425/weenix/internal/metrics"
)

// Func is a kernel thread entry point. Returning from it exits the thread
// with the returned status, as does calling Exit explicitly.
type Func func(*Thread) int

// ThreadState tracks a thread through its life.
type ThreadState int32

const (
	// ThreadNew means created but not yet started.
	ThreadNew ThreadState = iota
	// ThreadRunning means the goroutine backing the thread is live.
	ThreadRunning
	// ThreadExited is terminal.
	ThreadExited
)

// String returns the state's display name.
func (s ThreadState) String() string {
	switch s {
	case ThreadNew:
		return "new"
	case ThreadRunning:
		return "running"
	case ThreadExited:
		return "exited"
	}
	return fmt.Sprintf("threadstate(%d)", int32(s))
}

// Thread is one kernel thread, backed by a goroutine. Cancellation is
// cooperative: Cancel records a status payload and closes the interrupt
// channel; the thread observes it at a cancellation point (an interruptible
// sleep, an Interrupted poll, or thread start) and exits carrying the
// payload.
type Thread struct {
	proc  *Proc
	entry Func

	state atomic.Int32
	done  chan struct{}

	killOnce     sync.Once
	killed       atomic.Bool
	cancelStatus atomic.Int64
	intr         chan struct{}
}

// NewThread attaches a thread to p. The thread does not run until Start;
// a descriptor whose threads have not started yet is legal and stays
// Running. Attaching to a dead process is a programming error.
func (p *Proc) NewThread(entry Func) *Thread {
	if p.State() != Running {
		panic(fmt.Sprintf("proc: creating thread on %s pid %d", p.State(), p.pid))
	}
	t := &Thread{
		proc:  p,
		entry: entry,
		done:  make(chan struct{}),
		intr:  make(chan struct{}),
	}
	p.mu.Lock()
	p.threads = append(p.threads, t)
	p.liveThreads++
	p.mu.Unlock()
	return t
}

// Start schedules the thread. Starting twice panics.
func (t *Thread) Start() {
	if !t.state.CompareAndSwap(int32(ThreadNew), int32(ThreadRunning)) {
		panic(fmt.Sprintf("proc: thread of pid %d started twice", t.proc.pid))
	}
	go t.run()
}

func (t *Thread) run() {
	defer close(t.done)
	metrics.ThreadStarted()
	defer metrics.ThreadFinished()

	// A thread cancelled before it ever ran exits immediately with the
	// payload; the entry function is never called.
	if t.killed.Load() {
		t.finish(int(t.cancelStatus.Load()))
		return
	}
	t.finish(t.entry(t))
}

// Exit terminates the calling thread with status and never returns. It must
// only be called from the thread's own goroutine. When this is the
// process's last live thread, the process is cleaned up: resources
// released, children handed to init (or the kernel shut down, for init
// itself), state set to Dead, and the parent's waiters woken.
func (t *Thread) Exit(status int) {
	t.finish(status)
	runtime.Goexit()
}

// finish is the single exit path, reached from Exit or when the entry
// function returns. A delivered cancellation overrides the status with its
// payload, so a cancelled thread terminates "as if" it exited with the
// canceller's value.
func (t *Thread) finish(status int) {
	if t.killed.Load() {
		status = int(t.cancelStatus.Load())
	}
	p := t.proc

	p.mu.Lock()
	t.state.Store(int32(ThreadExited))
	p.liveThreads--
	last := p.liveThreads == 0
	p.mu.Unlock()

	if last {
		p.kern.cleanupProc(p, status)
		p.notifyParent()
	}
}

// Cancel delivers a cooperative cancellation carrying status. First delivery
// wins; later payloads are ignored.
func (t *Thread) Cancel(status int) {
	t.killOnce.Do(func() {
		t.cancelStatus.Store(int64(status))
		t.killed.Store(true)
		close(t.intr)
	})
}

// Interrupted reports whether a cancellation has been delivered.
func (t *Thread) Interrupted() bool { return t.killed.Load() }

// Interrupt exposes the cancellation channel for interruptible sleeps.
func (t *Thread) Interrupt() <-chan struct{} { return t.intr }

// Done is closed when the thread's goroutine has fully unwound.
func (t *Thread) Done() <-chan struct{} { return t.done }

// State returns the thread's lifecycle state.
func (t *Thread) State() ThreadState { return ThreadState(t.state.Load()) }

// Proc returns the owning process.
func (t *Thread) Proc() *Proc { return t.proc }

// Yield gives other runnable threads the processor. Purely advisory.
func (t *Thread) Yield() { runtime.Gosched() }
