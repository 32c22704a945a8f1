package cli

import (
	stdcontext "context"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/h2323547425/weenix/internal/config"
	"github.com/h2323547425/weenix/internal/kevent"
	"github.com/h2323547425/weenix/internal/klog"
	"github.com/h2323547425/weenix/internal/proc"
	"github.com/h2323547425/weenix/internal/prog"
	"github.com/h2323547425/weenix/internal/tty"
)

// shutdownGrace bounds how long a command waits for init to drain the
// process tree after an interrupt before giving up.
const shutdownGrace = 10 * time.Second

// bootedKernel bundles everything a command needs to run one kernel: the
// kernel itself, its event bus and log ring, the console device, and the
// resolved boot plan.
type bootedKernel struct {
	kern    *proc.Kernel
	bus     *kevent.Bus
	ring    *klog.Ring
	console *tty.Ldisc
	plan    []prog.Boot
	script  string
	log     *slog.Logger
}

// bootKernel assembles a stopped kernel from the manifest. Kernel log text
// goes to logDst (the ring always captures it); console echo goes to echoDst.
func bootKernel(m *config.Manifest, logDst, echoDst io.Writer) (*bootedKernel, error) {
	level, err := klog.ParseLevel(m.Kernel.LogLevel)
	if err != nil {
		return nil, err
	}
	logger, ring := klog.New(level, logDst)

	bus := kevent.New()
	kern := proc.New(proc.Config{
		MaxProcs: m.Kernel.MaxProcs,
		MaxFiles: m.Kernel.MaxFiles,
		Logger:   logger,
		Bus:      bus,
	})

	console := tty.New(0, echoDst, m.Console.Echo)
	registry := prog.Defaults(prog.Env{
		Console: console,
		Log:     logger.With(klog.SubsystemKey, "prog"),
	})
	plan, err := resolveBoot(registry, m.Boot)
	if err != nil {
		return nil, err
	}

	return &bootedKernel{
		kern:    kern,
		bus:     bus,
		ring:    ring,
		console: console,
		plan:    plan,
		script:  m.Console.Script,
		log:     logger,
	}, nil
}

// resolveBoot expands the manifest's boot list into one entry per copy, each
// bound to its program factory.
func resolveBoot(registry *prog.Registry, entries []config.BootEntry) ([]prog.Boot, error) {
	var plan []prog.Boot
	for _, e := range entries {
		factory, err := registry.Resolve(e.Program)
		if err != nil {
			return nil, fmt.Errorf("boot entry %q: %w", e.Name, err)
		}
		for i := 0; i < e.Copies; i++ {
			name := e.Name
			if e.Copies > 1 {
				name = fmt.Sprintf("%s-%d", e.Name, i+1)
			}
			plan = append(plan, prog.Boot{Name: name, Entry: factory(e.Args)})
		}
	}
	return plan, nil
}

// start boots init with the resolved plan and types the console script, if
// the manifest carries one.
func (b *bootedKernel) start() error {
	initLog := b.log.With(klog.SubsystemKey, "init")
	if _, err := b.kern.Start(prog.Init(initLog, b.plan)); err != nil {
		return err
	}
	if b.script != "" {
		b.console.Type(b.script)
	}
	return nil
}

// await blocks until the kernel shuts down on its own or ctx is cancelled.
// Cancellation triggers a cooperative teardown: every ordinary process is
// delivered a kill-all style cancellation, after which init drains the tree
// and exits.
func (b *bootedKernel) await(ctx stdcontext.Context) error {
	select {
	case <-b.kern.Done():
	case <-ctx.Done():
		b.cancelOrdinaries()
		if !b.kern.WaitShutdown(shutdownGrace) {
			return fmt.Errorf("kernel did not shut down within %s", shutdownGrace)
		}
	}
	return b.kern.Err()
}

// cancelOrdinaries cancels everything except idle and init, mirroring what a
// kill-all issued from inside the kernel would do.
func (b *bootedKernel) cancelOrdinaries() {
	for _, in := range b.kern.Snapshot() {
		if in.PID == proc.PIDIdle || in.PID == proc.PIDInit {
			continue
		}
		if p, ok := b.kern.Lookup(in.PID); ok {
			b.kern.CancelProc(nil, p, proc.KillAllStatus)
		}
	}
}

// diagnostics adapts the booted kernel to the read-only view the HTTP API
// and the monitor UI share.
func (b *bootedKernel) diagnostics() diagSource {
	return diagSource{kern: b.kern, ring: b.ring}
}

type diagSource struct {
	kern *proc.Kernel
	ring *klog.Ring
}

func (s diagSource) Snapshot() []proc.Info       { return s.kern.Snapshot() }
func (s diagSource) KernelInfo() proc.KernelInfo { return s.kern.KernelInfo() }
func (s diagSource) Dmesg() []string             { return s.ring.Lines() }
