package proc

import "errors"

// Sentinel errors returned by lifecycle operations. Callers branch with
// errors.Is; the wrapping message carries the operation context.
var (
	// ErrPIDExhausted reports that every slot in the PID space is occupied.
	// Resource exhaustion, not a kernel fault: the caller decides whether to
	// retry after reaping.
	ErrPIDExhausted = errors.New("pid space exhausted")

	// ErrNoDescriptors reports that the descriptor allocator could not
	// produce an object.
	ErrNoDescriptors = errors.New("out of process descriptors")

	// ErrNotSupported rejects wait calls whose target or options this kernel
	// does not implement: pid 0, negative targets other than WaitAny, or any
	// nonzero option flags.
	ErrNotSupported = errors.New("unsupported wait request")

	// ErrNoSuchChild reports a wait for a specific pid that is not one of
	// the caller's current children.
	ErrNoSuchChild = errors.New("no child with that pid")

	// ErrNoChildren reports an any-child wait by a process with an empty
	// child set.
	ErrNoChildren = errors.New("no children to wait for")

	// ErrFileTableFull reports that every descriptor-table slot is occupied.
	ErrFileTableFull = errors.New("file table full")

	// ErrBadFD reports an operation on an empty or out-of-range descriptor
	// slot.
	ErrBadFD = errors.New("bad file descriptor")
)
