// Package kevent broadcasts process lifecycle edges to interested consumers:
// the run command's event printer, the monitor UI, and anything else that
// subscribes. Payloads carry plain identifiers rather than descriptor
// pointers so subscribers can never touch kernel state.
package kevent

// Event type identifiers for kelindar/event.
const (
	TypeProcCreated uint32 = iota + 1
	TypeProcExited
	TypeProcAdopted
	TypeProcReaped
	TypeProcCancelled
	TypeShutdown
)

// Event is implemented by every kernel event.
type Event interface {
	Type() uint32
}

// ProcCreated fires when a descriptor is registered.
type ProcCreated struct {
	PID  int
	PPID int
	Name string
}

// Type returns the event type identifier for ProcCreated.
func (ProcCreated) Type() uint32 { return TypeProcCreated }

// ProcExited fires when a process completes cleanup and turns dead.
type ProcExited struct {
	PID    int
	Name   string
	Status int
}

// Type returns the event type identifier for ProcExited.
func (ProcExited) Type() uint32 { return TypeProcExited }

// ProcAdopted fires once per orphan moved to init during a parent's cleanup.
type ProcAdopted struct {
	PID     int
	Name    string
	OldPPID int
}

// Type returns the event type identifier for ProcAdopted.
func (ProcAdopted) Type() uint32 { return TypeProcAdopted }

// ProcReaped fires when a wait collects a dead child and destroys it.
type ProcReaped struct {
	PID    int
	Name   string
	Status int
	ByPID  int
}

// Type returns the event type identifier for ProcReaped.
func (ProcReaped) Type() uint32 { return TypeProcReaped }

// ProcCancelled fires when cancellation is delivered to a process's threads.
type ProcCancelled struct {
	PID    int
	Name   string
	Status int
}

// Type returns the event type identifier for ProcCancelled.
func (ProcCancelled) Type() uint32 { return TypeProcCancelled }

// Shutdown fires when init exits and the kernel stops.
type Shutdown struct {
	InitStatus int
}

// Type returns the event type identifier for Shutdown.
func (Shutdown) Type() uint32 { return TypeShutdown }
