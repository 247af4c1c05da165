package alloc

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/joshuapare/tagheap/heap/region"
	"github.com/joshuapare/tagheap/heap/verify"
	"github.com/joshuapare/tagheap/heap/walker"
	"github.com/joshuapare/tagheap/internal/format"
	"github.com/joshuapare/tagheap/internal/logger"
)

// FirstFitAllocator is a boundary-tag allocator over a single growable region.
//   - Every block carries identical header and footer tags, so both physical
//     neighbors of a block are found in O(1) without an index
//   - Free blocks form an intrusive doubly linked list stored in their payloads,
//     newest first
//   - Allocation takes the first block on the list that fits, splitting off the
//     tail when the remainder can stand as a block of its own
//   - Free merges with free neighbors immediately, so no two adjacent blocks are
//     ever both free
//
// A FirstFitAllocator is not safe for concurrent use; see LockedAllocator.
type FirstFitAllocator struct {
	r  region.Region
	dt DirtyTracker

	// head is the offset of the most recently freed block, or format.NilLink.
	head uint64

	growthChunk int
	hardened    bool

	log   *slog.Logger
	debug bool

	stats Stats

	// Test hook: called after a successful growth (nil in production)
	onGrow func(start, n int)
}

// New creates an allocator over r. An empty region starts with an empty free
// list. A non-empty region (for example a heap file written by an earlier
// process) is validated and its free blocks are threaded onto a fresh free list
// in address order.
//
// Parameters:
//   - r: The region to allocate from; the allocator owns it from now on
//   - cfg: Tuning knobs (use nil for DefaultConfig)
func New(r region.Region, cfg *Config) (*FirstFitAllocator, error) {
	if cfg == nil {
		cfg = &DefaultConfig
	}

	chunk := cfg.GrowthChunk
	if chunk <= 0 {
		chunk = format.DefaultGrowthChunk
	}
	chunk = max(format.Align8(chunk), format.MinBlockSize)

	log := cfg.Logger
	if log == nil {
		if dbg := logger.AllocDebug(); dbg != nil {
			log = dbg
		} else {
			log = logger.L
		}
	}

	fa := &FirstFitAllocator{
		r:           r,
		dt:          cfg.Tracker,
		head:        format.NilLink,
		growthChunk: chunk,
		hardened:    cfg.Hardened,
		log:         log,
		debug:       log.Enabled(context.Background(), slog.LevelDebug),
	}

	if err := fa.initializeFreeList(); err != nil {
		return nil, err
	}
	return fa, nil
}

// Alloc allocates a block whose payload holds at least size bytes and returns
// the payload address.
//
// The request is rounded up to a whole block (payload + both tags, 8-byte
// aligned, at least format.MinBlockSize). The free list is scanned once in
// recency order; on a miss the heap grows by max(block, GrowthChunk) and the
// scan is retried exactly once.
func (fa *FirstFitAllocator) Alloc(size int) (Addr, error) {
	fa.stats.AllocCalls++

	if size <= 0 {
		return Nil, ErrZeroSize
	}
	need, ok := format.BlockSizeFor(size)
	if !ok {
		return Nil, fmt.Errorf("%w: request of %d bytes overflows", ErrNoSpace, size)
	}

	blk, found, err := fa.firstFit(need)
	if err != nil {
		return Nil, err
	}

	grew := false
	if !found {
		if fa.debug {
			fa.log.Debug("alloc: no fit, growing", "need", need, "chunk", fa.growthChunk, "heap", fa.r.Len())
		}
		if err := fa.Grow(max(need, fa.growthChunk)); err != nil {
			return Nil, err
		}
		grew = true

		// Retry after grow. The new block is at the head of the list and large
		// enough on its own, so a miss here means the metadata is broken.
		blk, found, err = fa.firstFit(need)
		if err != nil {
			return Nil, err
		}
		if !found {
			return Nil, fmt.Errorf("%w: no fit for %d bytes after growth", ErrCorrupt, need)
		}
	}

	if grew {
		fa.stats.AllocSlowPath++
	} else {
		fa.stats.AllocFastPath++
	}

	return fa.carve(blk, need)
}

// carve turns the free block blk into an allocated block of need bytes,
// returning any usable tail to the free list.
func (fa *FirstFitAllocator) carve(blk format.Block, need int) (Addr, error) {
	if err := fa.unlink(blk.Offset); err != nil {
		return Nil, err
	}

	granted := blk.Size
	rem := blk.Size - need
	if rem >= format.MinBlockSize {
		// Split: allocate head, return tail to free list
		fa.stats.SplitCount++
		granted = need
		fa.writeTags(blk.Offset, format.Tag{Size: need, Allocated: true})

		tail := blk.Offset + need
		fa.writeTags(tail, format.Tag{Size: rem})
		fa.pushFront(tail)
	} else {
		// Use entire block (absorb remainder)
		fa.writeTags(blk.Offset, format.Tag{Size: blk.Size, Allocated: true})
	}

	fa.stats.BytesAllocated += int64(granted)
	return Addr(blk.Offset + format.HeaderSize), nil
}

// Free releases the block whose payload starts at addr and merges it with any
// free physical neighbors. Free(Nil) does nothing.
//
// Every tag read is bounds-checked: addresses outside the heap or off the
// alignment grid fail with ErrBadAddr, inconsistent tags with ErrCorrupt, and
// a block that is already free with ErrDoubleFree. In hardened mode the address
// must also be the start of a block found by walking the heap, and violations
// are logged and wrapped in *ViolationError.
func (fa *FirstFitAllocator) Free(addr Addr) error {
	if addr == Nil {
		return nil
	}
	fa.stats.FreeCalls++

	blk, err := fa.blockAt(addr)
	if err != nil {
		return fa.violation("free", addr, err)
	}
	if !blk.Allocated {
		return fa.violation("free", addr, ErrDoubleFree)
	}
	if fa.hardened {
		if _, ok, err := walker.Find(fa.r.Bytes(), blk.Offset); err != nil {
			return fa.violation("free", addr, fmt.Errorf("%w: %w", ErrCorrupt, err))
		} else if !ok {
			return fa.violation("free", addr, fmt.Errorf("%w: not a block start", ErrBadAddr))
		}
	}

	if err := fa.coalesce(blk.Offset, blk.Size); err != nil {
		return fa.violation("free", addr, err)
	}
	fa.stats.BytesFreed += int64(blk.Size)
	return nil
}

// coalesce marks the block [off, off+size) free, absorbs a free predecessor
// and a free successor, and pushes the result onto the free list.
//
// One backward and one forward step are enough: a free neighbor is already
// maximal, because no two adjacent blocks are ever free together.
// Both neighbors and their list links are decoded before anything is written,
// so a failure leaves the heap as it was.
func (fa *FirstFitAllocator) coalesce(off, size int) error {
	data := fa.r.Bytes()

	var prev, next format.Block
	mergePrev, mergeNext := false, false

	if off > 0 {
		b, err := format.ReadBlockBefore(data, off)
		if err != nil {
			return fmt.Errorf("%w: %w", ErrCorrupt, err)
		}
		prev, mergePrev = b, !b.Allocated
	}
	if end := off + size; end < len(data) {
		b, err := format.ReadBlock(data, end)
		if err != nil {
			return fmt.Errorf("%w: %w", ErrCorrupt, err)
		}
		next, mergeNext = b, !b.Allocated
	}
	if mergePrev {
		if _, _, _, _, err := fa.neighborsOf(prev.Offset); err != nil {
			return err
		}
	}
	if mergeNext {
		if _, _, _, _, err := fa.neighborsOf(next.Offset); err != nil {
			return err
		}
	}

	// The block's own tags read free even if it is absorbed below.
	fa.writeTags(off, format.Tag{Size: size})

	if mergePrev {
		if err := fa.unlink(prev.Offset); err != nil {
			return err
		}
		fa.stats.CoalesceBackward++
		off = prev.Offset
		size += prev.Size
	}
	if mergeNext {
		if err := fa.unlink(next.Offset); err != nil {
			return err
		}
		fa.stats.CoalesceForward++
		size += next.Size
	}

	fa.writeTags(off, format.Tag{Size: size})
	fa.pushFront(off)
	return nil
}

// Grow extends the heap by at least n bytes (rounded up to the alignment and
// to format.MinBlockSize) and installs the new space as one free block, merged
// with the last block of the heap when that one is free.
//
// Growth failures are returned wrapping both ErrNoSpace and the region error.
func (fa *FirstFitAllocator) Grow(n int) error {
	if n <= 0 {
		return ErrZeroSize
	}
	if n > maxInt-format.AlignmentMask {
		return fmt.Errorf("%w: growth of %d bytes overflows", ErrNoSpace, n)
	}
	n = max(format.Align8(n), format.MinBlockSize)

	start, err := fa.r.Extend(n)
	if err != nil {
		fa.log.Warn("alloc: heap growth failed", "bytes", n, "heap", fa.r.Len(), "err", err)
		return fmt.Errorf("%w: grow by %d: %w", ErrNoSpace, n, err)
	}
	fa.stats.GrowCalls++
	fa.stats.GrowBytes += int64(n)

	if fa.debug {
		fa.log.Debug("alloc: heap grown", "start", start, "bytes", n, "grow_calls", fa.stats.GrowCalls)
	}

	if err := fa.coalesce(start, n); err != nil {
		return err
	}

	if fa.onGrow != nil {
		fa.onGrow(start, n)
	}
	return nil
}

// ============================================================================
// Internal helpers
// ============================================================================

// initializeFreeList validates an adopted region and rebuilds the free list
// from the free blocks found in it.
func (fa *FirstFitAllocator) initializeFreeList() error {
	data := fa.r.Bytes()
	if len(data) == 0 {
		return nil
	}

	if err := verify.Blocks(data); err != nil {
		return fmt.Errorf("%w: %w", ErrCorrupt, err)
	}

	var free []int
	if err := walker.Walk(data, func(b walker.Block) error {
		if !b.Allocated {
			free = append(free, b.Offset)
		}
		return nil
	}); err != nil {
		return fmt.Errorf("%w: %w", ErrCorrupt, err)
	}

	// Push in reverse so the rebuilt list runs in address order.
	for i := len(free) - 1; i >= 0; i-- {
		fa.pushFront(free[i])
	}

	if fa.debug {
		fa.log.Debug("alloc: adopted region", "bytes", len(data), "free_blocks", len(free))
	}
	return nil
}

// blockAt resolves a payload address to its block with full bounds checking.
func (fa *FirstFitAllocator) blockAt(addr Addr) (format.Block, error) {
	data := fa.r.Bytes()
	if uint64(addr) < format.HeaderSize || uint64(addr) >= uint64(len(data)) {
		return format.Block{}, fmt.Errorf("%w: 0x%X outside heap [0, 0x%X)", ErrBadAddr, uint64(addr), len(data))
	}
	off := int(addr) - format.HeaderSize
	if !format.IsAligned(off) {
		return format.Block{}, fmt.Errorf("%w: 0x%X is misaligned", ErrBadAddr, uint64(addr))
	}
	blk, err := format.ReadBlock(data, off)
	if err != nil {
		return format.Block{}, fmt.Errorf("%w: %w", ErrCorrupt, err)
	}
	return blk, nil
}

// violation reports a failed Free. In hardened mode the failure is logged and
// wrapped as a *ViolationError; otherwise it is returned with context.
func (fa *FirstFitAllocator) violation(op string, addr Addr, err error) error {
	if fa.hardened {
		fa.log.Error("alloc: contract violation", "op", op, "addr", uint64(addr), "err", err)
		return &ViolationError{Op: op, Addr: addr, Err: err}
	}
	return fmt.Errorf("%s 0x%X: %w", op, uint64(addr), err)
}

// writeTags writes identical header and footer tags for the block at off.
func (fa *FirstFitAllocator) writeTags(off int, t format.Tag) {
	format.PutTags(fa.r.Bytes(), off, t)
	fa.markDirty(off, format.HeaderSize)
	fa.markDirty(format.FooterOffset(off, t.Size), format.FooterSize)
}

func (fa *FirstFitAllocator) markDirty(off, n int) {
	if fa.dt != nil {
		fa.dt.Add(off, n)
	}
}

const maxInt = int(^uint(0) >> 1)
