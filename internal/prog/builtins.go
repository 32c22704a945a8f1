package prog

import (
	"errors"
	"log/slog"

	"github.com/h2323547425/weenix/internal/proc"
	"github.com/h2323547425/weenix/internal/tty"
)

// Env carries the ambient pieces builtins may use. A nil Console disables
// the console programs; a nil Log discards.
type Env struct {
	Console *tty.Ldisc
	Log     *slog.Logger
}

func (e Env) logger() *slog.Logger {
	if e.Log != nil {
		return e.Log
	}
	return slog.New(slog.DiscardHandler)
}

// Defaults returns a registry preloaded with the builtin workloads:
//
//	spin        yields for args "iterations" (default 32) rounds
//	sleeper     blocks until cancelled
//	forker      spawns args "children" (default 3) spins and reaps them all
//	orphanmaker spawns args "children" (default 2) spins and exits unreaping
//	echo        reads console lines until EOT or cancellation
func Defaults(env Env) *Registry {
	log := env.logger()
	r := NewRegistry()
	r.Register("spin", func(args map[string]string) proc.Func {
		iterations := intArg(args, "iterations", 32)
		return func(t *proc.Thread) int {
			for i := 0; i < iterations && !t.Interrupted(); i++ {
				t.Yield()
			}
			return 0
		}
	})
	r.Register("sleeper", func(args map[string]string) proc.Func {
		return func(t *proc.Thread) int {
			<-t.Interrupt()
			return 0
		}
	})
	r.Register("forker", func(args map[string]string) proc.Func {
		children := intArg(args, "children", 3)
		iterations := intArg(args, "iterations", 8)
		return func(t *proc.Thread) int {
			k := t.Proc().Kernel()
			spin := func(w *proc.Thread) int {
				for i := 0; i < iterations && !w.Interrupted(); i++ {
					w.Yield()
				}
				return 0
			}
			spawned := 0
			for i := 0; i < children; i++ {
				if _, err := k.Spawn(t, childName(t.Proc().Name(), i), spin); err != nil {
					log.Error("forker spawn failed", "err", err)
					break
				}
				spawned++
			}
			status := 0
			for i := 0; i < spawned; i++ {
				if _, _, err := k.WaitPID(t, proc.WaitAny, 0); err != nil {
					log.Error("forker wait failed", "err", err)
					status = 1
					break
				}
			}
			return status
		}
	})
	r.Register("orphanmaker", func(args map[string]string) proc.Func {
		children := intArg(args, "children", 2)
		iterations := intArg(args, "iterations", 8)
		return func(t *proc.Thread) int {
			k := t.Proc().Kernel()
			spin := func(w *proc.Thread) int {
				for i := 0; i < iterations && !w.Interrupted(); i++ {
					w.Yield()
				}
				return 0
			}
			for i := 0; i < children; i++ {
				if _, err := k.Spawn(t, childName(t.Proc().Name(), i), spin); err != nil {
					log.Error("orphanmaker spawn failed", "err", err)
					return 1
				}
			}
			// Exiting here strands the children; init inherits and reaps
			// them.
			return 0
		}
	})
	r.Register("echo", func(args map[string]string) proc.Func {
		return func(t *proc.Thread) int {
			if env.Console == nil {
				log.Warn("echo started without a console")
				return 0
			}
			buf := make([]byte, 256)
			for {
				n, err := env.Console.ReadWait(t.Interrupt(), buf)
				if err != nil {
					return 0 // cancelled; the payload status wins
				}
				if n == 0 {
					return 0 // end of transmission
				}
				log.Info("console line", "pid", t.Proc().PID(), "text", string(buf[:n]))
			}
		}
	})
	return r
}

func childName(parent string, i int) string {
	return parent + "." + string(rune('a'+i%26))
}

// Boot is one resolved entry of the boot plan.
type Boot struct {
	Name  string
	Entry proc.Func
}

// Init builds the init program: spawn every boot entry, then reap until the
// process tree is empty. Cancellation does not cut the drain short; adopted
// orphans and kill-all victims are still collected so shutdown leaves no
// zombies behind.
func Init(log *slog.Logger, entries []Boot) proc.Func {
	if log == nil {
		log = slog.New(slog.DiscardHandler)
	}
	return func(t *proc.Thread) int {
		k := t.Proc().Kernel()
		status := 0
		for _, e := range entries {
			if _, err := k.Spawn(t, e.Name, e.Entry); err != nil {
				log.Error("boot spawn failed", "name", e.Name, "err", err)
				status = 1
			}
		}
		for {
			pid, st, err := k.WaitPID(t, proc.WaitAny, 0)
			if errors.Is(err, proc.ErrNoChildren) {
				return status
			}
			if err != nil {
				log.Error("init wait failed", "err", err)
				return 1
			}
			log.Debug("init reaped", "pid", pid, "status", st)
		}
	}
}
