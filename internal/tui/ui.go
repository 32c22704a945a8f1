// Package tui renders an interactive kernel monitor: a process table, the
// dmesg ring, and a one-line kernel summary, refreshed on lifecycle events.
package tui

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/gdamore/tcell/v2"
	"github.com/rivo/tview"

	"github.com/h2323547425/weenix/internal/kevent"
	"github.com/h2323547425/weenix/internal/proc"
)

const (
	tableTitle      = "Processes"
	dmesgTitle      = "Dmesg"
	pausedSuffix    = " (paused)"
	defaultMaxLines = 500
	refreshInterval = time.Second
)

// Source supplies the data the monitor renders. The run command's
// diagnostics adapter satisfies it.
type Source interface {
	Snapshot() []proc.Info
	KernelInfo() proc.KernelInfo
	Dmesg() []string
}

// Option configures UI behaviour.
type Option func(*UI)

// WithMaxLines caps how many dmesg lines the log pane renders.
func WithMaxLines(n int) Option {
	return func(u *UI) {
		if n > 0 {
			u.maxLines = n
		}
	}
}

// UI coordinates the interactive monitor backed by tview.
type UI struct {
	app    *tview.Application
	header *tview.TextView
	table  *tview.Table
	dmesg  *tview.TextView
	events chan kevent.Event

	src      Source
	maxLines int

	mu     sync.Mutex
	paused bool

	cancelMu sync.Mutex
	cancel   context.CancelFunc

	wg        sync.WaitGroup
	stopOnce  sync.Once
	closeOnce sync.Once
	done      chan struct{}
}

// New constructs a monitor reading from src.
func New(src Source, opts ...Option) *UI {
	app := tview.NewApplication()

	header := tview.NewTextView().SetDynamicColors(true)

	table := tview.NewTable().SetFixed(1, 0).SetSelectable(true, false)
	table.SetBorder(true).SetTitle(tableTitle)

	dmesg := tview.NewTextView().SetWrap(false)
	dmesg.SetBorder(true).SetTitle(dmesgTitle)

	flex := tview.NewFlex().SetDirection(tview.FlexRow).
		AddItem(header, 1, 0, false).
		AddItem(table, 0, 3, true).
		AddItem(dmesg, 0, 2, false)

	ui := &UI{
		app:      app,
		header:   header,
		table:    table,
		dmesg:    dmesg,
		events:   make(chan kevent.Event, 256),
		src:      src,
		maxLines: defaultMaxLines,
		done:     make(chan struct{}),
	}

	for _, opt := range opts {
		opt(ui)
	}

	app.SetRoot(flex, true)
	app.SetInputCapture(ui.handleKey)

	ui.refreshNow()

	return ui
}

// EventSink exposes the channel where kernel events should be delivered.
// Senders must not block: drop when the buffer is full.
func (u *UI) EventSink() chan<- kevent.Event {
	return u.events
}

// CloseEvents releases the event channel, allowing internal goroutines to
// exit cleanly.
func (u *UI) CloseEvents() {
	u.closeOnce.Do(func() {
		close(u.events)
	})
}

// Done returns a channel that is closed when the UI stops.
func (u *UI) Done() <-chan struct{} {
	return u.done
}

// Run starts the tview application and processes incoming events until Stop
// is invoked or the provided context is cancelled.
func (u *UI) Run(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)

	u.cancelMu.Lock()
	u.cancel = cancel
	u.cancelMu.Unlock()

	u.wg.Add(1)
	go func() {
		defer u.wg.Done()
		u.consumeEvents(ctx)
	}()

	go func() {
		<-ctx.Done()
		u.Stop()
	}()

	err := u.app.Run()

	u.cancelMu.Lock()
	cancel = u.cancel
	u.cancel = nil
	u.cancelMu.Unlock()
	if cancel != nil {
		cancel()
	}

	u.wg.Wait()
	u.Stop()

	return err
}

// Stop terminates the application loop and releases resources.
func (u *UI) Stop() {
	u.stopOnce.Do(func() {
		u.cancelMu.Lock()
		cancel := u.cancel
		u.cancel = nil
		u.cancelMu.Unlock()
		if cancel != nil {
			cancel()
		}
		u.app.Stop()
		close(u.done)
	})
}

func (u *UI) consumeEvents(ctx context.Context) {
	ticker := time.NewTicker(refreshInterval)
	defer ticker.Stop()

	draining := false
	ctxDone := ctx.Done()

	for {
		var tick <-chan time.Time
		if !draining {
			tick = ticker.C
		}

		select {
		case <-ctxDone:
			if !draining {
				draining = true
				ticker.Stop()
			}
			ctxDone = nil
		case _, ok := <-u.events:
			if !ok {
				return
			}
			if draining || u.isPaused() {
				continue
			}
			u.queueRefresh()
		case <-tick:
			if !u.isPaused() {
				u.queueRefresh()
			}
		}
	}
}

func (u *UI) handleKey(event *tcell.EventKey) *tcell.EventKey {
	switch event.Key() {
	case tcell.KeyEscape:
		go u.Stop()
		return nil
	case tcell.KeyRune:
		switch event.Rune() {
		case 'q', 'Q':
			go u.Stop()
			return nil
		case 'p', 'P':
			u.togglePause()
			return nil
		}
	}
	return event
}

// togglePause runs on the application goroutine, so it renders directly
// instead of queueing.
func (u *UI) togglePause() {
	u.mu.Lock()
	u.paused = !u.paused
	paused := u.paused
	u.mu.Unlock()

	if paused {
		u.table.SetTitle(tableTitle + pausedSuffix)
		return
	}
	u.table.SetTitle(tableTitle)
	u.refreshNow()
}

func (u *UI) isPaused() bool {
	u.mu.Lock()
	defer u.mu.Unlock()
	return u.paused
}

// refreshNow gathers and renders synchronously. Callers must be on the
// application goroutine or know the application loop is not running.
func (u *UI) refreshNow() {
	infos, ki, lines := u.gather()
	u.render(infos, ki, lines)
}

// queueRefresh gathers on the calling goroutine and hands rendering to the
// application loop.
func (u *UI) queueRefresh() {
	infos, ki, lines := u.gather()
	u.app.QueueUpdateDraw(func() {
		u.render(infos, ki, lines)
	})
}

func (u *UI) gather() ([]proc.Info, proc.KernelInfo, []string) {
	return u.src.Snapshot(), u.src.KernelInfo(), u.src.Dmesg()
}

func (u *UI) render(infos []proc.Info, ki proc.KernelInfo, lines []string) {
	u.header.SetText(headerLine(ki))
	u.renderTable(infos)
	u.renderDmesg(lines)
}

func (u *UI) renderTable(infos []proc.Info) {
	row, _ := u.table.GetSelection()
	u.table.Clear()

	headers := []string{"PID", "PPID", "NAME", "STATE", "THR", "FDS", "STATUS"}
	for col, header := range headers {
		cell := tview.NewTableCell(header).
			SetSelectable(false).
			SetAttributes(tcell.AttrBold)
		u.table.SetCell(0, col, cell)
	}

	for i, in := range infos {
		values := []string{
			fmt.Sprintf("%d", in.PID),
			fmt.Sprintf("%d", in.PPID),
			in.Name,
			in.State,
			fmt.Sprintf("%d", in.Threads),
			fmt.Sprintf("%d", in.OpenFDs),
			formatStatus(in),
		}
		for col, value := range values {
			cell := tview.NewTableCell(value)
			if in.State == proc.Dead.String() {
				cell = cell.SetTextColor(tcell.ColorYellow)
			}
			u.table.SetCell(i+1, col, cell)
		}
	}

	if row < 1 {
		row = 1
	}
	if row > len(infos) {
		row = len(infos)
	}
	if len(infos) > 0 {
		u.table.Select(row, 0)
	}
}

func (u *UI) renderDmesg(lines []string) {
	u.dmesg.Clear()
	for _, line := range tailLines(lines, u.maxLines) {
		fmt.Fprintln(u.dmesg, line)
	}
	u.dmesg.ScrollToEnd()
}

// formatStatus renders the exit status column. Only dead processes carry a
// meaningful status.
func formatStatus(in proc.Info) string {
	if in.State != proc.Dead.String() {
		return "-"
	}
	return fmt.Sprintf("%d", in.Status)
}

func headerLine(ki proc.KernelInfo) string {
	return fmt.Sprintf(" weenix %s  up %s  procs %d/%d  state %s",
		shortBootID(ki.BootID), formatUptime(ki.UptimeSeconds), ki.Procs, ki.MaxProcs, ki.State)
}

func shortBootID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}

func formatUptime(seconds float64) string {
	d := time.Duration(seconds * float64(time.Second))
	return d.Truncate(time.Second).String()
}

func tailLines(lines []string, n int) []string {
	if n <= 0 || len(lines) <= n {
		return lines
	}
	return lines[len(lines)-n:]
}
