package tty

import (
	"bytes"
	"errors"
	"testing"
	"time"

	"github.com/h2323547425/weenix/internal/sched"
)

func waitFor(d time.Duration, cond func() bool) bool {
	deadline := time.Now().Add(d)
	for time.Now().Before(deadline) {
		if cond() {
			return true
		}
		time.Sleep(time.Millisecond)
	}
	return cond()
}

func TestReadReturnsCookedLine(t *testing.T) {
	ld := New(64, nil, false)
	ld.Type("hello\n")

	buf := make([]byte, 32)
	n, err := ld.ReadWait(nil, buf)
	if err != nil {
		t.Fatalf("ReadWait: %v", err)
	}
	if got := string(buf[:n]); got != "hello\n" {
		t.Fatalf("read %q, want %q", got, "hello\n")
	}
}

func TestReadBlocksUntilNewline(t *testing.T) {
	ld := New(64, nil, false)
	ld.Type("partial")

	type result struct {
		line string
		err  error
	}
	results := make(chan result, 1)
	go func() {
		buf := make([]byte, 32)
		n, err := ld.ReadWait(nil, buf)
		results <- result{string(buf[:n]), err}
	}()

	if !waitFor(5*time.Second, func() bool { return ld.Readers() == 1 }) {
		t.Fatalf("reader never blocked")
	}
	select {
	case r := <-results:
		t.Fatalf("read returned %q before the line was committed", r.line)
	default:
	}

	ld.Type(" line\n")
	select {
	case r := <-results:
		if r.err != nil {
			t.Fatalf("ReadWait: %v", r.err)
		}
		if r.line != "partial line\n" {
			t.Fatalf("read %q, want %q", r.line, "partial line\n")
		}
	case <-time.After(5 * time.Second):
		t.Fatalf("reader still blocked after newline")
	}
}

func TestReadInterrupted(t *testing.T) {
	ld := New(64, nil, false)
	intr := make(chan struct{})
	errs := make(chan error, 1)
	go func() {
		_, err := ld.ReadWait(intr, make([]byte, 8))
		errs <- err
	}()

	if !waitFor(5*time.Second, func() bool { return ld.Readers() == 1 }) {
		t.Fatalf("reader never blocked")
	}
	close(intr)
	select {
	case err := <-errs:
		if !errors.Is(err, sched.ErrInterrupted) {
			t.Fatalf("err = %v, want ErrInterrupted", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatalf("interrupt did not unblock the reader")
	}

	// The interrupted read consumed nothing.
	ld.Type("kept\n")
	buf := make([]byte, 16)
	n, err := ld.ReadWait(nil, buf)
	if err != nil {
		t.Fatalf("ReadWait: %v", err)
	}
	if got := string(buf[:n]); got != "kept\n" {
		t.Fatalf("read %q, want %q", got, "kept\n")
	}
}

func TestBackspaceEditsRawRegion(t *testing.T) {
	ld := New(64, nil, false)
	ld.Type("ab")
	ld.KeyPressed(Backspace)
	ld.Type("c\n")

	buf := make([]byte, 16)
	n, err := ld.ReadWait(nil, buf)
	if err != nil {
		t.Fatalf("ReadWait: %v", err)
	}
	if got := string(buf[:n]); got != "ac\n" {
		t.Fatalf("read %q, want %q", got, "ac\n")
	}

	// Backspace never reaches past the cooked boundary.
	ld.Type("x\n")
	ld.KeyPressed(Backspace)
	n, err = ld.ReadWait(nil, buf)
	if err != nil {
		t.Fatalf("ReadWait: %v", err)
	}
	if got := string(buf[:n]); got != "x\n" {
		t.Fatalf("read %q, want %q", got, "x\n")
	}
}

func TestEOTCommitsWithoutNewline(t *testing.T) {
	ld := New(64, nil, false)
	ld.Type("data")
	ld.KeyPressed(EOT)

	buf := make([]byte, 16)
	n, err := ld.ReadWait(nil, buf)
	if err != nil {
		t.Fatalf("ReadWait: %v", err)
	}
	if got := string(buf[:n]); got != "data" {
		t.Fatalf("read %q, want %q", got, "data")
	}

	// A lone EOT wakes the reader with zero bytes.
	ld.KeyPressed(EOT)
	n, err = ld.ReadWait(nil, buf)
	if err != nil {
		t.Fatalf("ReadWait: %v", err)
	}
	if n != 0 {
		t.Fatalf("lone EOT read %d bytes, want 0", n)
	}
}

func TestFullBufferDropsPrintablesButCommits(t *testing.T) {
	ld := New(8, nil, false) // 7 usable slots, 1 reserved from printables
	ld.Type("abcdefghij")    // beyond capacity; tail must be dropped
	if got := ld.Editing(); got != 6 {
		t.Fatalf("raw bytes = %d, want 6", got)
	}
	ld.KeyPressed('\n') // fits in the reserved slot
	buf := make([]byte, 16)
	n, err := ld.ReadWait(nil, buf)
	if err != nil {
		t.Fatalf("ReadWait: %v", err)
	}
	if got := string(buf[:n]); got != "abcdef\n" {
		t.Fatalf("read %q, want %q", got, "abcdef\n")
	}
}

func TestEchoWrites(t *testing.T) {
	var out bytes.Buffer
	ld := New(64, &out, true)
	ld.Type("hi")
	ld.KeyPressed(Backspace)
	ld.Type("!\n")
	want := "hi\b \b!\n"
	if got := out.String(); got != want {
		t.Fatalf("echo = %q, want %q", got, want)
	}

	out.Reset()
	quiet := New(64, &out, false)
	quiet.Type("silent\n")
	if out.Len() != 0 {
		t.Fatalf("echo disabled but wrote %q", out.String())
	}
}

func TestPartialReadKeepsRemainder(t *testing.T) {
	ld := New(64, nil, false)
	ld.Type("abcdef\n")

	small := make([]byte, 3)
	n, err := ld.ReadWait(nil, small)
	if err != nil {
		t.Fatalf("ReadWait: %v", err)
	}
	if got := string(small[:n]); got != "abc" {
		t.Fatalf("first read %q, want %q", got, "abc")
	}
	rest := make([]byte, 16)
	n, err = ld.ReadWait(nil, rest)
	if err != nil {
		t.Fatalf("ReadWait: %v", err)
	}
	if got := string(rest[:n]); got != "def\n" {
		t.Fatalf("second read %q, want %q", got, "def\n")
	}
}
