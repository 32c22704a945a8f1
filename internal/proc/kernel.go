package proc

import (
	"fmt"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/h2323547425/weenix/internal/kevent"
	"github.com/h2323547425/weenix/internal/klog"
	"github.com/h2323547425/weenix/internal/metrics"
	"github.com/h2323547425/weenix/internal/mm"
	"github.com/h2323547425/weenix/internal/vfs"
)

// Defaults applied by New when Config leaves a field zero.
const (
	DefaultMaxProcs = 1024
	DefaultMaxFiles = 32
)

// Config carries the kernel tunables. Zero values get defaults; a nil
// Logger discards, a nil Bus gets a private dispatcher.
type Config struct {
	MaxProcs int
	MaxFiles int
	Logger   *slog.Logger
	Bus      *kevent.Bus
}

// Kernel owns the process table, the idle pseudo-process, init, and the
// shutdown latch. One Kernel is one booted system; tests boot as many as
// they like.
type Kernel struct {
	bootID   string
	bootTime time.Time

	log *slog.Logger
	bus *kevent.Bus

	table    *Table
	pool     descriptorPool
	maxProcs int
	maxFiles int

	root *vfs.Node
	idle *Proc
	init atomic.Pointer[Proc]

	shutdown   atomic.Bool
	initStatus atomic.Int64
	done       chan struct{}
}

// New assembles a stopped kernel: registry, root directory node, and the
// idle pseudo-process (PID 0) that anchors the process tree. Nothing runs
// until Start.
func New(cfg Config) *Kernel {
	if cfg.MaxProcs <= 0 {
		cfg.MaxProcs = DefaultMaxProcs
	}
	if cfg.MaxFiles <= 0 {
		cfg.MaxFiles = DefaultMaxFiles
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	bus := cfg.Bus
	if bus == nil {
		bus = kevent.New()
	}
	k := &Kernel{
		bootID:   uuid.NewString(),
		bootTime: time.Now(),
		log:      logger.With(klog.SubsystemKey, "proc"),
		bus:      bus,
		table:    newTable(cfg.MaxProcs),
		pool:     newSlabPool(),
		maxProcs: cfg.MaxProcs,
		maxFiles: cfg.MaxFiles,
		root:     vfs.NewNode("/"),
		done:     make(chan struct{}),
	}
	idle := new(Proc)
	idle.reset(k, PIDIdle, "idle", cfg.MaxFiles)
	idle.SetCwd(k.root)
	k.idle = idle
	return k
}

// Start boots init: the distinguished PID 1 process, child of idle, running
// entry as its first thread. Init exiting shuts the kernel down. Start may
// be called once.
func (k *Kernel) Start(entry Func) (*Proc, error) {
	if k.init.Load() != nil {
		panic("proc: kernel started twice")
	}
	p, err := k.createProcess(k.idle, "init")
	if err != nil {
		return nil, err
	}
	if p.pid != PIDInit {
		panic(fmt.Sprintf("proc: init allocated pid %d", p.pid))
	}
	t := p.NewThread(entry)
	go k.collectInit()
	t.Start()
	k.log.Info("kernel started", "bootId", k.bootID, "maxProcs", k.maxProcs)
	return p, nil
}

// CreateProcess allocates a child of the calling thread's process. The
// child starts with no threads; NewThread plus Start (or Spawn, which
// composes all three) bring it to life.
func (k *Kernel) CreateProcess(cur *Thread, name string) (*Proc, error) {
	return k.createProcess(cur.proc, name)
}

// Spawn is CreateProcess plus a started first thread.
func (k *Kernel) Spawn(cur *Thread, name string, entry Func) (*Proc, error) {
	p, err := k.CreateProcess(cur, name)
	if err != nil {
		return nil, err
	}
	p.NewThread(entry).Start()
	return p, nil
}

// createProcess builds a descriptor in steps, where every failure returns
// after unwinding the steps already taken in reverse order: PID, descriptor
// shell, identity and address space, cloned resources, tree link, registry
// entry.
func (k *Kernel) createProcess(parent *Proc, name string) (*Proc, error) {
	name = truncateName(name)

	pid, err := k.table.allocPID()
	if err != nil {
		metrics.IncPIDExhausted()
		return nil, fmt.Errorf("creating %q: %w", name, err)
	}

	p, err := k.pool.get()
	if err != nil {
		k.table.releasePID(pid)
		return nil, fmt.Errorf("creating %q: %w", name, err)
	}

	p.reset(k, pid, name, k.maxFiles)
	p.space = mm.NewSpace()
	p.cloneResourcesFrom(parent)

	parent.mu.Lock()
	p.parent = parent
	parent.children = append(parent.children, p)
	parent.mu.Unlock()

	k.table.register(p)
	if pid == PIDInit {
		k.init.Store(p)
	}

	metrics.IncProcsCreated()
	k.bus.Publish(kevent.ProcCreated{PID: int(pid), PPID: int(parent.pid), Name: p.name})
	k.log.Debug("proc created", "pid", pid, "ppid", parent.pid, "name", p.name)
	return p, nil
}

// WaitPID blocks the calling thread until a matching child of its process
// can be collected, then destroys that child and returns its PID and exit
// status. pid > 0 targets one specific child; WaitAny collects any child.
// pid == 0 (group wait), pid < -1, and nonzero options are refused with
// ErrNotSupported. A specific pid that is not currently a child fails with
// ErrNoSuchChild; WaitAny with no children fails with ErrNoChildren. Both
// rejections are immediate, and both can also surface after blocking when a
// concurrent waiter collects the target first.
func (k *Kernel) WaitPID(cur *Thread, pid PID, options int) (PID, int, error) {
	if options != 0 {
		return 0, 0, fmt.Errorf("wait options %#x: %w", options, ErrNotSupported)
	}
	if pid == 0 || pid < WaitAny {
		return 0, 0, fmt.Errorf("wait for pid %d: %w", pid, ErrNotSupported)
	}

	par := cur.proc
	start := time.Now()
	par.mu.Lock()
	for {
		if pid == WaitAny {
			if len(par.children) == 0 {
				par.mu.Unlock()
				return 0, 0, fmt.Errorf("pid %d waiting: %w", par.pid, ErrNoChildren)
			}
			for _, c := range par.children {
				if c.State() == Dead {
					par.removeChildLocked(c)
					par.mu.Unlock()
					return k.reap(par, c, start)
				}
			}
		} else {
			c := par.childByPIDLocked(pid)
			if c == nil {
				par.mu.Unlock()
				return 0, 0, fmt.Errorf("pid %d waiting for pid %d: %w", par.pid, pid, ErrNoSuchChild)
			}
			if c.State() == Dead {
				par.removeChildLocked(c)
				par.mu.Unlock()
				return k.reap(par, c, start)
			}
		}
		// The queue enqueues before releasing par.mu and exiting children
		// broadcast while holding par.mu, so no exit between this scan and
		// the sleep can be missed.
		par.waitq.Sleep(&par.mu)
		par.mu.Lock()
	}
}

// reap finishes a collection: c is Dead and already unlinked from par.
func (k *Kernel) reap(par, c *Proc, start time.Time) (PID, int, error) {
	pid, name, status := c.pid, c.name, c.status
	k.destroy(c)
	metrics.IncProcsReaped()
	metrics.ObserveWaitBlock(time.Since(start))
	k.bus.Publish(kevent.ProcReaped{PID: int(pid), Name: name, Status: status, ByPID: int(par.pid)})
	k.log.Debug("proc reaped", "pid", pid, "status", status, "by", par.pid)
	return pid, status, nil
}

// destroy tears down a Dead, already-unlinked descriptor: registry slot,
// thread objects, address space, then back to the pool. Exactly once per
// descriptor, and never by a thread of the descriptor's own process.
//
// Dead is stored before the dying thread's final publish and parent wakeup,
// so a reaper racing that thread can get here while it is still reading the
// descriptor. Each thread's done latch closes only once its goroutine has
// fully unwound; draining the latches before pool.put keeps those reads
// ordered before any reset of the recycled descriptor.
func (k *Kernel) destroy(p *Proc) {
	if p == k.idle {
		panic("proc: destroying idle")
	}
	if p.State() != Dead {
		panic(fmt.Sprintf("proc: destroying pid %d while %s", p.pid, p.State()))
	}
	p.mu.Lock()
	ts := p.threads
	for _, t := range ts {
		if t.State() != ThreadExited {
			panic(fmt.Sprintf("proc: destroying pid %d with a %s thread", p.pid, t.State()))
		}
	}
	p.threads = nil
	p.parent = nil
	p.children = nil
	p.mu.Unlock()

	for _, t := range ts {
		<-t.done
	}

	k.table.unregister(p.pid)
	p.space.Release()
	p.space = nil
	k.pool.put(p)
}

// cleanupProc runs once, on the process's final exiting thread. Resources
// are released first, then children move to init (or shutdown begins when
// the exiting process is init itself), then the status lands and state
// flips to Dead. Dead is the reaper's license to destroy, so everything a
// destroyer must not observe happens before that store. The caller
// broadcasts the parent's queue afterwards.
func (k *Kernel) cleanupProc(p *Proc, status int) {
	if !p.cleaning.CompareAndSwap(false, true) {
		panic(fmt.Sprintf("proc: double cleanup of pid %d", p.pid))
	}
	if p == k.idle {
		panic("proc: idle cannot exit")
	}

	p.releaseResources()

	if p == k.init.Load() {
		k.beginShutdown(status)
	} else {
		k.adoptChildren(p)
	}

	p.status = status
	p.state.Store(int32(Dead))

	metrics.IncProcsExited()
	k.bus.Publish(kevent.ProcExited{PID: int(p.pid), Name: p.name, Status: status})
	k.log.Debug("proc exited", "pid", p.pid, "status", status)
}

// adoptChildren hands every child of the dying p to init in one step per
// list, so no observer holding either lock sees a child in both trees or in
// neither. Init's queue is broadcast after the move: an init already blocked
// in a wait must rescan, because an adopted child may be dead already and
// its own exit broadcast went to the old parent.
func (k *Kernel) adoptChildren(p *Proc) {
	p.mu.Lock()
	orphans := p.children
	p.children = nil
	p.mu.Unlock()
	if len(orphans) == 0 {
		return
	}

	init := k.init.Load()
	init.mu.Lock()
	for _, c := range orphans {
		c.mu.Lock()
		c.parent = init
		c.mu.Unlock()
		init.children = append(init.children, c)
	}
	init.waitq.Broadcast()
	init.mu.Unlock()

	metrics.AddProcsAdopted(len(orphans))
	for _, c := range orphans {
		k.bus.Publish(kevent.ProcAdopted{PID: int(c.pid), Name: c.name, OldPPID: int(p.pid)})
		k.log.Debug("orphan adopted", "pid", c.pid, "from", p.pid)
	}
}

// CancelProc delivers a cooperative cancellation carrying status to every
// thread of target. Cancelling the calling thread's own process is a
// programming error; pass cur as nil when there is no kernel-thread caller.
func (k *Kernel) CancelProc(cur *Thread, target *Proc, status int) {
	if cur != nil && cur.proc == target {
		panic(fmt.Sprintf("proc: pid %d cancelling itself", target.pid))
	}
	if target == k.idle {
		panic("proc: cancelling idle")
	}
	if target.State() != Running {
		return
	}
	target.mu.Lock()
	ts := append([]*Thread(nil), target.threads...)
	target.mu.Unlock()
	for _, t := range ts {
		t.Cancel(status)
	}
	metrics.IncProcsCancelled()
	k.bus.Publish(kevent.ProcCancelled{PID: int(target.pid), Name: target.name, Status: status})
	k.log.Debug("proc cancelled", "pid", target.pid, "status", status)
}

// KillAll cancels every registered process except the caller's own and
// those parented by idle (init), delivering status to each, then exits the
// calling thread with the same status unless the caller itself is
// idle-parented. Idle and init survive a kill-all.
func (k *Kernel) KillAll(cur *Thread, status int) {
	k.log.Info("killing all processes", "status", status)
	for _, p := range k.table.snapshot() {
		if p == cur.proc || p.Parent() == k.idle {
			continue
		}
		k.CancelProc(cur, p, status)
	}
	if cur.proc.Parent() != k.idle {
		cur.Exit(status)
	}
}

// beginShutdown records init's exit outcome. The done latch stays open
// until collectInit has also emptied the registry.
func (k *Kernel) beginShutdown(status int) {
	if !k.shutdown.CompareAndSwap(false, true) {
		return
	}
	k.initStatus.Store(int64(status))
	k.bus.Publish(kevent.Shutdown{InitStatus: status})
	k.log.Info("init exited, shutting down", "status", status)
}

// collectInit is the idle side of the tree: it sleeps on idle's queue until
// init turns Dead, collects it, and closes the done latch. Run as its own
// goroutine from Start. Init is only destroyed when it exited childless;
// a child left behind keeps its parent pointer valid against a dead,
// still-registered init.
func (k *Kernel) collectInit() {
	init := k.init.Load()
	idle := k.idle

	idle.mu.Lock()
	for init.State() != Dead {
		idle.waitq.Sleep(&idle.mu)
		idle.mu.Lock()
	}
	idle.removeChildLocked(init)
	idle.mu.Unlock()

	init.mu.Lock()
	leftover := len(init.children)
	init.mu.Unlock()

	status, name := init.status, init.name
	if leftover > 0 {
		k.log.Warn("init exited with live children", "children", leftover)
	} else {
		k.destroy(init)
		metrics.IncProcsReaped()
		k.bus.Publish(kevent.ProcReaped{PID: int(PIDInit), Name: name, Status: status, ByPID: int(PIDIdle)})
	}
	close(k.done)
}

// Done is closed once init has exited and been collected; after that the
// registry holds no processes from a clean run.
func (k *Kernel) Done() <-chan struct{} { return k.done }

// InitStatus reports init's exit status. Meaningful once Done is closed.
func (k *Kernel) InitStatus() int { return int(k.initStatus.Load()) }

// Err returns nil after a zero-status shutdown and an error carrying init's
// status otherwise. Meaningful once Done is closed.
func (k *Kernel) Err() error {
	if s := k.InitStatus(); s != 0 {
		return fmt.Errorf("init exited with status %d", s)
	}
	return nil
}

// Lookup resolves a PID. Zero answers the idle pseudo-process; dead but
// unreaped processes still resolve.
func (k *Kernel) Lookup(pid PID) (*Proc, bool) {
	if pid == PIDIdle {
		return k.idle, true
	}
	return k.table.lookup(pid)
}

// Idle returns the PID 0 pseudo-process.
func (k *Kernel) Idle() *Proc { return k.idle }

// Init returns the init descriptor, nil before Start.
func (k *Kernel) Init() *Proc { return k.init.Load() }

// Root returns the root directory node shared by every process's initial
// working directory.
func (k *Kernel) Root() *vfs.Node { return k.root }

// Bus returns the lifecycle event bus.
func (k *Kernel) Bus() *kevent.Bus { return k.bus }

// BootID returns the identifier minted for this boot.
func (k *Kernel) BootID() string { return k.bootID }

// Uptime reports time since New.
func (k *Kernel) Uptime() time.Duration { return time.Since(k.bootTime) }

// MaxProcs returns the PID space bound.
func (k *Kernel) MaxProcs() int { return k.maxProcs }

// MaxFiles returns the per-process descriptor table size.
func (k *Kernel) MaxFiles() int { return k.maxFiles }
