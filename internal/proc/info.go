package proc

import (
	"fmt"
	"strings"
	"time"
)

// Info is a point-in-time view of one process, safe to hold after the
// process is gone.
type Info struct {
	PID      PID    `json:"pid"`
	PPID     PID    `json:"ppid"`
	Name     string `json:"name"`
	State    string `json:"state"`
	Status   int    `json:"status"`
	Threads  int    `json:"threads"`
	OpenFDs  int    `json:"open_fds"`
	Children []PID  `json:"children"`
}

// String renders the one-line ps form.
func (in Info) String() string {
	kids := make([]string, len(in.Children))
	for i, pid := range in.Children {
		kids[i] = fmt.Sprintf("%d", pid)
	}
	return fmt.Sprintf("pid %4d ppid %4d %-16s %-8s status %3d threads %d fds %d children [%s]",
		in.PID, in.PPID, in.Name, in.State, in.Status, in.Threads, in.OpenFDs,
		strings.Join(kids, " "))
}

// Info snapshots p. The status field is only populated once the process is
// Dead; before that it reads as zero regardless of what cleanup will record.
func (p *Proc) Info() Info {
	p.mu.Lock()
	var ppid PID
	if p.parent != nil {
		ppid = p.parent.pid
	}
	kids := make([]PID, len(p.children))
	for i, c := range p.children {
		kids[i] = c.pid
	}
	threads := p.liveThreads
	p.mu.Unlock()

	st := p.State()
	in := Info{
		PID:      p.pid,
		PPID:     ppid,
		Name:     p.name,
		State:    st.String(),
		Threads:  threads,
		OpenFDs:  p.OpenFiles(),
		Children: kids,
	}
	if st == Dead {
		in.Status = p.status
	}
	return in
}

// KernelInfo is a point-in-time view of the whole kernel.
type KernelInfo struct {
	BootID        string  `json:"boot_id"`
	UptimeSeconds float64 `json:"uptime_seconds"`
	MaxProcs      int     `json:"max_procs"`
	MaxFiles      int     `json:"max_files"`
	Procs         int     `json:"procs"`
	State         string  `json:"state"`
	InitStatus    int     `json:"init_status"`
}

// Snapshot lists idle plus every registered process ordered by PID. Dead
// but unreaped processes appear with their status.
func (k *Kernel) Snapshot() []Info {
	procs := k.table.snapshot()
	out := make([]Info, 0, len(procs)+1)
	out = append(out, k.idle.Info())
	for _, p := range procs {
		out = append(out, p.Info())
	}
	return out
}

// KernelInfo summarizes the kernel for the diagnostics surfaces.
func (k *Kernel) KernelInfo() KernelInfo {
	state := "running"
	if k.shutdown.Load() {
		state = "shutdown"
	}
	return KernelInfo{
		BootID:        k.bootID,
		UptimeSeconds: k.Uptime().Seconds(),
		MaxProcs:      k.maxProcs,
		MaxFiles:      k.maxFiles,
		Procs:         k.table.Len(),
		State:         state,
		InitStatus:    k.InitStatus(),
	}
}

// DumpTree renders the snapshot one process per line, the debug format the
// console monitor and logs share.
func (k *Kernel) DumpTree() string {
	var b strings.Builder
	for _, in := range k.Snapshot() {
		b.WriteString(in.String())
		b.WriteByte('\n')
	}
	return b.String()
}

// WaitShutdown blocks until the kernel is collected or d elapses. It
// reports whether shutdown completed. Zero d waits forever.
func (k *Kernel) WaitShutdown(d time.Duration) bool {
	if d <= 0 {
		<-k.done
		return true
	}
	select {
	case <-k.done:
		return true
	case <-time.After(d):
		return false
	}
}
