package cli

import (
	"fmt"
	"io"
	"sync"
	"sync/atomic"
	"time"

	"github.com/h2323547425/weenix/internal/kevent"
)

// printerBuffer bounds how many events an eventPrinter holds before it
// starts dropping; the bus must never block on a slow terminal.
const printerBuffer = 256

// eventPrinter renders lifecycle events as logfmt lines on out. Enqueue is
// safe from bus handler goroutines and never blocks.
type eventPrinter struct {
	out          io.Writer
	ch           chan kevent.Event
	stop         chan struct{}
	done         chan struct{}
	shutdownSeen chan struct{}
	shutdownOnce sync.Once
	dropped      atomic.Int64
}

func newEventPrinter(out io.Writer) *eventPrinter {
	p := &eventPrinter{
		out:          out,
		ch:           make(chan kevent.Event, printerBuffer),
		stop:         make(chan struct{}),
		done:         make(chan struct{}),
		shutdownSeen: make(chan struct{}),
	}
	go p.loop()
	return p
}

// Enqueue hands ev to the printer goroutine, dropping it when the buffer is
// full.
func (p *eventPrinter) Enqueue(ev kevent.Event) {
	select {
	case p.ch <- ev:
	default:
		p.dropped.Add(1)
	}
}

// Close drains buffered events, stops the printer, and reports how many
// events were dropped along the way.
func (p *eventPrinter) Close() int64 {
	close(p.stop)
	<-p.done
	return p.dropped.Load()
}

// ShutdownSeen is closed once a shutdown event has been printed. Commands
// wait on it briefly before Close so the final lines of an ended kernel are
// not cut off by the bus's asynchronous delivery.
func (p *eventPrinter) ShutdownSeen() <-chan struct{} {
	return p.shutdownSeen
}

func (p *eventPrinter) print(ev kevent.Event) {
	fmt.Fprintln(p.out, eventLine(time.Now(), ev))
	if _, ok := ev.(kevent.Shutdown); ok {
		p.shutdownOnce.Do(func() { close(p.shutdownSeen) })
	}
}

func (p *eventPrinter) loop() {
	defer close(p.done)
	for {
		select {
		case ev := <-p.ch:
			p.print(ev)
		case <-p.stop:
			for {
				select {
				case ev := <-p.ch:
					p.print(ev)
				default:
					return
				}
			}
		}
	}
}

// flushShutdown gives the asynchronous bus a bounded window to get the
// shutdown line onto the terminal before the printer closes.
func flushShutdown(p *eventPrinter) {
	select {
	case <-p.ShutdownSeen():
	case <-time.After(time.Second):
	}
}

// eventLine renders one lifecycle event in logfmt.
func eventLine(ts time.Time, ev kevent.Event) string {
	base := "ts=" + ts.Format(time.RFC3339)
	switch e := ev.(type) {
	case kevent.ProcCreated:
		return fmt.Sprintf("%s event=created pid=%d ppid=%d name=%q", base, e.PID, e.PPID, e.Name)
	case kevent.ProcExited:
		return fmt.Sprintf("%s event=exited pid=%d name=%q status=%d", base, e.PID, e.Name, e.Status)
	case kevent.ProcAdopted:
		return fmt.Sprintf("%s event=adopted pid=%d name=%q from=%d", base, e.PID, e.Name, e.OldPPID)
	case kevent.ProcReaped:
		return fmt.Sprintf("%s event=reaped pid=%d name=%q status=%d by=%d", base, e.PID, e.Name, e.Status, e.ByPID)
	case kevent.ProcCancelled:
		return fmt.Sprintf("%s event=cancelled pid=%d name=%q status=%d", base, e.PID, e.Name, e.Status)
	case kevent.Shutdown:
		return fmt.Sprintf("%s event=shutdown init_status=%d", base, e.InitStatus)
	}
	return fmt.Sprintf("%s event=unknown type=%d", base, ev.Type())
}
