package alloc

import (
	"errors"
	"fmt"
)

var (
	// ErrNoSpace indicates that no free block was large enough and growing the
	// heap failed. The region's error is wrapped alongside it.
	ErrNoSpace = errors.New("alloc: no free block large enough")

	// ErrZeroSize indicates a request for zero (or negative) bytes. This is a
	// policy rejection, not an exhaustion condition.
	ErrZeroSize = errors.New("alloc: size must be greater than zero")

	// ErrBadAddr indicates an address that does not identify a block payload
	// inside the heap.
	ErrBadAddr = errors.New("alloc: bad address")

	// ErrDoubleFree indicates an attempt to free a block that is already free.
	ErrDoubleFree = errors.New("alloc: block already free")

	// ErrCorrupt indicates heap metadata that violates the boundary-tag or
	// free-list invariants.
	ErrCorrupt = errors.New("alloc: heap corrupted")
)

// ViolationError reports a caller contract violation detected in hardened mode.
type ViolationError struct {
	Op   string
	Addr Addr
	Err  error
}

func (e *ViolationError) Error() string {
	return fmt.Sprintf("alloc: %s(0x%X): contract violation: %v", e.Op, uint64(e.Addr), e.Err)
}

func (e *ViolationError) Unwrap() error { return e.Err }
