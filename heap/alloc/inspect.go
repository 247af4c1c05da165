package alloc

import (
	"fmt"

	"github.com/joshuapare/tagheap/heap/region"
	"github.com/joshuapare/tagheap/heap/verify"
	"github.com/joshuapare/tagheap/heap/walker"
	"github.com/joshuapare/tagheap/internal/buf"
)

// Payload returns the caller-visible bytes of the allocated block at addr.
// The slice aliases the heap and is invalidated by the next growth. Its
// capacity ends at the payload, so append never reaches the footer.
func (fa *FirstFitAllocator) Payload(addr Addr) ([]byte, error) {
	blk, err := fa.blockAt(addr)
	if err != nil {
		return nil, err
	}
	if !blk.Allocated {
		return nil, fmt.Errorf("%w: block at 0x%X is free", ErrBadAddr, uint64(addr))
	}
	p, ok := buf.Slice(fa.r.Bytes(), blk.PayloadOffset(), blk.PayloadSize())
	if !ok {
		return nil, fmt.Errorf("%w: payload of block 0x%X out of range", ErrCorrupt, blk.Offset)
	}
	return p, nil
}

// BlockSize returns the total size (payload plus tags) of the block at addr.
func (fa *FirstFitAllocator) BlockSize(addr Addr) (int, error) {
	blk, err := fa.blockAt(addr)
	if err != nil {
		return 0, err
	}
	return blk.Size, nil
}

// Walk calls fn for every block in address order.
func (fa *FirstFitAllocator) Walk(fn func(walker.Block) error) error {
	return walker.Walk(fa.r.Bytes(), fn)
}

// Check validates every heap invariant: matching tags, exact tiling of the
// region, no adjacent free blocks, and a free list holding exactly the free
// blocks with consistent links.
func (fa *FirstFitAllocator) Check() error {
	if err := verify.AllInvariants(fa.r.Bytes(), fa.head); err != nil {
		return fmt.Errorf("%w: %w", ErrCorrupt, err)
	}
	return nil
}

// Region returns the region the allocator manages.
func (fa *FirstFitAllocator) Region() region.Region {
	return fa.r
}

// FreeListHead returns the arena offset of the first free block, or
// format.NilLink when no block is free.
func (fa *FirstFitAllocator) FreeListHead() uint64 {
	return fa.head
}
