package slotpool

import "github.com/pkg/errors"

var (
	// ErrOutOfRange indicates an identity outside [0, capacity).
	ErrOutOfRange = errors.New("slotpool: identity out of range")

	// ErrAlreadyUsed indicates an acquire of a slot that is already live.
	ErrAlreadyUsed = errors.New("slotpool: already used")

	// ErrNotUsed indicates a release of a slot that is free.
	ErrNotUsed = errors.New("slotpool: not used")

	// ErrInvalidID indicates a pointer that does not sit exactly on the
	// slot of the given or computed identity.
	ErrInvalidID = errors.New("slotpool: invalid id")

	// ErrPoisoned indicates that a free slot was written to between its
	// release and the next acquire.
	ErrPoisoned = errors.New("slotpool: poisoned slot was modified")

	// ErrSizeError indicates a zero-sized element type or allocation request.
	ErrSizeError = errors.New("slotpool: size error")

	// ErrPointerType indicates an element type holding Go pointers where
	// only pointer-free types are allowed.
	ErrPointerType = errors.New("slotpool: type contains pointers")

	// ErrAllocFailed indicates the general allocator could not satisfy a request.
	ErrAllocFailed = errors.New("slotpool: allocation failed")

	// ErrForeignPointer indicates memory that was not obtained from this allocator.
	ErrForeignPointer = errors.New("slotpool: foreign pointer")

	// ErrDuplicateName indicates a registry already holds a table with the same name.
	ErrDuplicateName = errors.New("slotpool: duplicate table name")

	// ErrNotFound indicates an address that belongs to no registered table.
	ErrNotFound = errors.New("slotpool: address not in any table")
)

// assertf aborts with err wrapped in a diagnostic message. Broken slot
// invariants are programming errors and are never returned to the caller.
func assertf(err error, format string, args ...interface{}) {
	panic(errors.Wrapf(err, format, args...))
}
