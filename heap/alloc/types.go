package alloc

import (
	"log/slog"

	"github.com/joshuapare/tagheap/internal/format"
)

// Addr is the payload address of an allocated block: the arena offset of the
// first caller-visible byte, just past the block header.
type Addr uint64

// Nil is the failure sentinel. It is never a valid payload address because
// every payload sits at least one header word into the arena.
const Nil Addr = 0

// Allocator defines the allocate/free boundary of a heap.
//
// Implementations:
//   - FirstFitAllocator: boundary-tag first-fit allocator (not thread-safe)
//   - LockedAllocator: FirstFitAllocator behind a single mutex
type Allocator interface {
	// Alloc returns the address of a payload of at least size bytes.
	// On failure it returns Nil and an error.
	Alloc(size int) (Addr, error)

	// Free releases a payload previously returned by Alloc. Free(Nil) is a no-op.
	Free(addr Addr) error
}

// DirtyTracker receives every byte range the allocator writes, so a
// file-backed heap can flush exactly the pages that changed.
type DirtyTracker interface {
	// Add marks a byte range as dirty.
	Add(off, length int)
}

// Config tunes a FirstFitAllocator.
type Config struct {
	// GrowthChunk is the minimum number of bytes requested from the region
	// when no free block fits. Rounded up to the alignment and to
	// format.MinBlockSize. 0 selects format.DefaultGrowthChunk.
	GrowthChunk int

	// Hardened enables full validation of Free: the address must be the
	// payload of a block found by walking the heap, and every contract
	// violation is reported through Logger as a *ViolationError.
	Hardened bool

	// Tracker, when set, is told about every metadata write.
	Tracker DirtyTracker

	// Logger receives allocator diagnostics. nil selects logger.L, or a
	// stderr debug logger when TAGHEAP_LOG_ALLOC is set.
	Logger *slog.Logger
}

// DefaultConfig is used when New is given a nil config.
var DefaultConfig = Config{
	GrowthChunk: format.DefaultGrowthChunk,
}

var (
	_ Allocator = (*FirstFitAllocator)(nil)
	_ Allocator = (*LockedAllocator)(nil)
)
