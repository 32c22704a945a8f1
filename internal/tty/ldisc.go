// Package tty implements a cooked-mode line discipline over a fixed circular
// buffer. Keystrokes edit a raw region that a newline or end-of-transmission
// commits to the cooked region; readers block until cooked bytes exist and
// can be interrupted through the same channel kernel threads use for
// cancellation.
package tty

import (
	"io"
	"sync"

	"github.com/h2323547425/weenix/internal/sched"
)

// Control bytes the discipline understands.
const (
	Backspace byte = 0x08
	Delete    byte = 0x7f
	EOT       byte = 0x04
)

// DefaultBufferSize is the circular buffer size used when New gets zero.
const DefaultBufferSize = 128

// Ldisc is one line discipline. The buffer is circular with one slot kept
// spare: [tail, cooked) is committed and readable, [cooked, head) is still
// being edited.
type Ldisc struct {
	mu     sync.Mutex
	buf    []byte
	tail   int
	cooked int
	head   int
	readq  *sched.Queue
	echo   io.Writer
	echoOn bool
}

// New builds a discipline echoing to echo when echoOn is set. A nil echo
// writer disables echo regardless.
func New(size int, echo io.Writer, echoOn bool) *Ldisc {
	if size <= 0 {
		size = DefaultBufferSize
	}
	return &Ldisc{
		buf:    make([]byte, size),
		readq:  sched.NewQueue(),
		echo:   echo,
		echoOn: echoOn,
	}
}

func (ld *Ldisc) free() int {
	used := (ld.head - ld.tail + len(ld.buf)) % len(ld.buf)
	return len(ld.buf) - 1 - used
}

func (ld *Ldisc) put(ch byte) {
	ld.buf[ld.head] = ch
	ld.head = (ld.head + 1) % len(ld.buf)
}

func (ld *Ldisc) echoBytes(b []byte) {
	if ld.echoOn && ld.echo != nil {
		ld.echo.Write(b)
	}
}

// KeyPressed feeds one input byte. Printable bytes join the raw region and
// echo; backspace and delete retract the newest raw byte; newline (or
// carriage return) commits the raw region including the newline and wakes
// readers; EOT commits without adding a byte readers see. One slot is held
// back from printables so a commit byte always fits once anything is
// buffered; when even that is gone the byte is dropped.
func (ld *Ldisc) KeyPressed(ch byte) {
	ld.mu.Lock()
	defer ld.mu.Unlock()
	switch {
	case ch == Backspace || ch == Delete:
		if ld.head != ld.cooked {
			ld.head = (ld.head - 1 + len(ld.buf)) % len(ld.buf)
			ld.echoBytes([]byte{'\b', ' ', '\b'})
		}
	case ch == '\n' || ch == '\r':
		if ld.free() < 1 {
			return
		}
		ld.put('\n')
		ld.cooked = ld.head
		ld.readq.Broadcast()
		ld.echoBytes([]byte{'\n'})
	case ch == EOT:
		if ld.free() < 1 {
			return
		}
		ld.put(EOT)
		ld.cooked = ld.head
		ld.readq.Broadcast()
	case ch >= 0x20 && ch < 0x7f:
		if ld.free() < 2 {
			return
		}
		ld.put(ch)
		ld.echoBytes([]byte{ch})
	}
}

// Type feeds every byte of s, a convenience for boot scripts and tests.
func (ld *Ldisc) Type(s string) {
	for i := 0; i < len(s); i++ {
		ld.KeyPressed(s[i])
	}
}

// ReadWait copies committed bytes into p, blocking while none exist. It
// stops after a newline (which is included) or at an EOT (which is consumed
// but not copied, so a lone EOT reads as zero bytes). intr aborts the wait
// with sched.ErrInterrupted without consuming input; pass a kernel thread's
// Interrupt channel.
func (ld *Ldisc) ReadWait(intr <-chan struct{}, p []byte) (int, error) {
	ld.mu.Lock()
	for ld.tail == ld.cooked {
		if err := ld.readq.SleepInterruptible(&ld.mu, intr); err != nil {
			return 0, err
		}
		ld.mu.Lock()
	}
	n := 0
	for ld.tail != ld.cooked && n < len(p) {
		ch := ld.buf[ld.tail]
		ld.tail = (ld.tail + 1) % len(ld.buf)
		if ch == EOT {
			break
		}
		p[n] = ch
		n++
		if ch == '\n' {
			break
		}
	}
	ld.mu.Unlock()
	return n, nil
}

// Buffered counts committed bytes not yet read.
func (ld *Ldisc) Buffered() int {
	ld.mu.Lock()
	defer ld.mu.Unlock()
	return (ld.cooked - ld.tail + len(ld.buf)) % len(ld.buf)
}

// Editing counts raw bytes still subject to line editing.
func (ld *Ldisc) Editing() int {
	ld.mu.Lock()
	defer ld.mu.Unlock()
	return (ld.head - ld.cooked + len(ld.buf)) % len(ld.buf)
}

// Readers counts threads currently blocked in ReadWait.
func (ld *Ldisc) Readers() int {
	return ld.readq.Len()
}
