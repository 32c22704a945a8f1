// Package proc implements the process lifecycle core: descriptor creation
// with cloned resources, parent/child tracking, exit and cleanup, blocking
// wait with reaping, orphan adoption by init, and cooperative mass-kill.
//
// Ownership runs one way: a parent's child list owns its children, the
// registry holds every live descriptor, and a child keeps only a weak
// pointer up to its parent. A descriptor is destroyed exactly once, by the
// wait call that reaps it, after its final thread has driven it to Dead.
package proc

import (
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/h2323547425/weenix/internal/mm"
	"github.com/h2323547425/weenix/internal/sched"
	"github.com/h2323547425/weenix/internal/vfs"
)

// PID identifies a process. PIDs are dense small integers reused only after
// the owning descriptor is destroyed.
type PID int

const (
	// PIDIdle is the idle pseudo-process. It is created with the kernel,
	// never registered, and never dies.
	PIDIdle PID = 0
	// PIDInit is the distinguished init process: adoption target for
	// orphans and the anchor whose exit shuts the kernel down.
	PIDInit PID = 1
	// WaitAny asks wait to collect any dead child.
	WaitAny PID = -1
)

// KillAllStatus is the exit status delivered by KillAll to its victims and
// adopted by the caller itself.
const KillAllStatus = -1

// MaxNameLen bounds a process display name; longer names are truncated.
const MaxNameLen = 256

// State is a process lifecycle state.
type State int32

const (
	// Running is the state from creation until cleanup completes. A
	// descriptor with no started threads is still Running.
	Running State = iota
	// Dead means cleanup finished: resources released, children adopted,
	// status recorded. The descriptor only awaits reaping.
	Dead
)

// String returns the state's display name.
func (s State) String() string {
	switch s {
	case Running:
		return "running"
	case Dead:
		return "dead"
	}
	return fmt.Sprintf("state(%d)", int32(s))
}

// Proc is one process descriptor.
type Proc struct {
	kern *Kernel
	pid  PID
	name string

	// state flips Running->Dead exactly once, at the end of cleanup, so a
	// scanner that observes Dead sees fully released resources. cleaning
	// guards cleanup itself against running twice.
	state    atomic.Int32
	cleaning atomic.Bool
	status   int // written during cleanup, read only after Dead is visible

	// mu guards parent, children, threads and liveThreads. Lock order
	// between descriptors is parent before child; init's lock is taken
	// after a dying parent's own. waitq is where this process blocks
	// waiting for its own children; every dying child broadcasts on its
	// parent's waitq under the parent's mu.
	mu          sync.Mutex
	parent      *Proc
	children    []*Proc
	threads     []*Thread
	liveThreads int
	waitq       *sched.Queue

	// resMu guards the descriptor table and working directory.
	resMu sync.Mutex
	files []*vfs.File
	cwd   *vfs.Node

	space *mm.Space
}

// reset prepares a pooled descriptor for a new identity.
func (p *Proc) reset(k *Kernel, pid PID, name string, maxFiles int) {
	p.kern = k
	p.pid = pid
	p.name = truncateName(name)
	p.state.Store(int32(Running))
	p.cleaning.Store(false)
	p.status = 0
	p.parent = nil
	p.children = nil
	p.threads = nil
	p.liveThreads = 0
	p.waitq = sched.NewQueue()
	p.files = make([]*vfs.File, maxFiles)
	p.cwd = nil
	p.space = nil
}

func truncateName(name string) string {
	if len(name) > MaxNameLen {
		return name[:MaxNameLen]
	}
	return name
}

// PID returns the process id.
func (p *Proc) PID() PID { return p.pid }

// Name returns the display name.
func (p *Proc) Name() string { return p.name }

// State returns the current lifecycle state.
func (p *Proc) State() State { return State(p.state.Load()) }

// ExitStatus returns the recorded status. Meaningful only once State is
// Dead; before that it is the zero placeholder.
func (p *Proc) ExitStatus() int { return p.status }

// Parent returns the current parent descriptor. It changes only when the
// original parent dies and this process is adopted by init; idle has no
// parent.
func (p *Proc) Parent() *Proc {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.parent
}

// Kernel returns the owning kernel.
func (p *Proc) Kernel() *Kernel { return p.kern }

// ChildPIDs returns the pids of the current children in creation order.
func (p *Proc) ChildPIDs() []PID {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]PID, len(p.children))
	for i, c := range p.children {
		out[i] = c.pid
	}
	return out
}

// childByPIDLocked finds a direct child. Caller holds p.mu.
func (p *Proc) childByPIDLocked(pid PID) *Proc {
	for _, c := range p.children {
		if c.pid == pid {
			return c
		}
	}
	return nil
}

// removeChildLocked unlinks c. Caller holds p.mu.
func (p *Proc) removeChildLocked(c *Proc) {
	for i, cand := range p.children {
		if cand == c {
			p.children = append(p.children[:i], p.children[i+1:]...)
			return
		}
	}
	panic(fmt.Sprintf("proc: pid %d is not a child of pid %d", c.pid, p.pid))
}

// cloneResourcesFrom copies the creator's resource handles: one extra
// reference per occupied file slot, same slot positions, plus a reference to
// the working directory. Called before the new descriptor is published, so
// only the parent's table needs locking.
func (p *Proc) cloneResourcesFrom(parent *Proc) {
	parent.resMu.Lock()
	defer parent.resMu.Unlock()
	for i, f := range parent.files {
		if f != nil && i < len(p.files) {
			p.files[i] = f.Ref()
		}
	}
	if parent.cwd != nil {
		p.cwd = parent.cwd.Ref()
	}
}

// releaseResources drops every table reference and the cwd reference,
// each exactly once. Runs during cleanup.
func (p *Proc) releaseResources() {
	p.resMu.Lock()
	defer p.resMu.Unlock()
	for i, f := range p.files {
		if f != nil {
			f.Put()
			p.files[i] = nil
		}
	}
	if p.cwd != nil {
		p.cwd.Put()
		p.cwd = nil
	}
}

// InstallFile places f in the lowest empty descriptor slot, taking a table
// reference on it. The caller keeps its own reference.
func (p *Proc) InstallFile(f *vfs.File) (int, error) {
	p.resMu.Lock()
	defer p.resMu.Unlock()
	for fd, slot := range p.files {
		if slot == nil {
			p.files[fd] = f.Ref()
			return fd, nil
		}
	}
	return -1, fmt.Errorf("pid %d: %w", p.pid, ErrFileTableFull)
}

// GetFile returns the file in slot fd without transferring a reference.
func (p *Proc) GetFile(fd int) (*vfs.File, error) {
	p.resMu.Lock()
	defer p.resMu.Unlock()
	if fd < 0 || fd >= len(p.files) || p.files[fd] == nil {
		return nil, fmt.Errorf("pid %d fd %d: %w", p.pid, fd, ErrBadFD)
	}
	return p.files[fd], nil
}

// CloseFD empties slot fd, dropping the table's reference.
func (p *Proc) CloseFD(fd int) error {
	p.resMu.Lock()
	defer p.resMu.Unlock()
	if fd < 0 || fd >= len(p.files) || p.files[fd] == nil {
		return fmt.Errorf("pid %d fd %d: %w", p.pid, fd, ErrBadFD)
	}
	f := p.files[fd]
	p.files[fd] = nil
	f.Put()
	return nil
}

// OpenFiles counts occupied descriptor slots.
func (p *Proc) OpenFiles() int {
	p.resMu.Lock()
	defer p.resMu.Unlock()
	n := 0
	for _, f := range p.files {
		if f != nil {
			n++
		}
	}
	return n
}

// Cwd returns the working directory node, nil if unset.
func (p *Proc) Cwd() *vfs.Node {
	p.resMu.Lock()
	defer p.resMu.Unlock()
	return p.cwd
}

// SetCwd repoints the working directory, taking a reference on n and
// dropping the previous one.
func (p *Proc) SetCwd(n *vfs.Node) {
	p.resMu.Lock()
	defer p.resMu.Unlock()
	old := p.cwd
	p.cwd = n.Ref()
	if old != nil {
		old.Put()
	}
}

// notifyParent broadcasts on the parent's notification queue under the
// parent's lock, which is the same lock wait holds while checking its
// predicate; a wakeup therefore cannot slip between a waiter's scan and its
// sleep. The parent pointer is re-read here because adoption may have moved
// this process to init while it was dying.
func (p *Proc) notifyParent() {
	par := p.Parent()
	if par == nil {
		return
	}
	par.mu.Lock()
	par.waitq.Broadcast()
	par.mu.Unlock()
}
