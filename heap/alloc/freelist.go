package alloc

import (
	"fmt"

	"github.com/joshuapare/tagheap/heap/walker"
	"github.com/joshuapare/tagheap/internal/format"
)

// The free list is intrusive: a free block stores its next and prev links in
// the first two payload words. Links are arena offsets of block headers;
// format.NilLink ends the list in both directions.

// firstFit returns the first free block on the list whose size is at least need.
// The walk is bounded by the number of blocks the heap could hold, so a cyclic
// list is reported as corruption instead of spinning forever.
func (fa *FirstFitAllocator) firstFit(need int) (format.Block, bool, error) {
	data := fa.r.Bytes()
	limit := len(data)/format.MinBlockSize + 1

	for cur, steps := fa.head, 0; cur != format.NilLink; steps++ {
		if steps > limit {
			return format.Block{}, false, fmt.Errorf("%w: free list longer than heap allows", ErrCorrupt)
		}
		off, err := fa.linkTarget(data, cur)
		if err != nil {
			return format.Block{}, false, err
		}
		blk, err := format.ReadBlock(data, off)
		if err != nil {
			return format.Block{}, false, fmt.Errorf("%w: free list: %w", ErrCorrupt, err)
		}
		if blk.Allocated {
			return format.Block{}, false, fmt.Errorf("%w: allocated block 0x%X on free list", ErrCorrupt, off)
		}
		if blk.Size >= need {
			return blk, true, nil
		}
		next, _, err := format.ReadLinks(data, off)
		if err != nil {
			return format.Block{}, false, fmt.Errorf("%w: %w", ErrCorrupt, err)
		}
		cur = next
	}
	return format.Block{}, false, nil
}

// pushFront inserts the free block at off at the head of the list.
func (fa *FirstFitAllocator) pushFront(off int) {
	data := fa.r.Bytes()
	format.PutLinks(data, off, fa.head, format.NilLink)
	fa.markDirty(off+format.NextLinkOffset, 2*format.WordSize)

	if fa.head != format.NilLink {
		old := int(fa.head)
		format.PutU64(data, old+format.PrevLinkOffset, uint64(off))
		fa.markDirty(old+format.PrevLinkOffset, format.WordSize)
	}
	fa.head = uint64(off)
}

// unlink removes the free block at off from the list. All links involved are
// validated before any of them is rewritten.
func (fa *FirstFitAllocator) unlink(off int) error {
	next, prev, prevOff, nextOff, err := fa.neighborsOf(off)
	if err != nil {
		return err
	}

	data := fa.r.Bytes()
	if prevOff < 0 {
		fa.head = next
	} else {
		format.PutU64(data, prevOff+format.NextLinkOffset, next)
		fa.markDirty(prevOff+format.NextLinkOffset, format.WordSize)
	}
	if nextOff >= 0 {
		format.PutU64(data, nextOff+format.PrevLinkOffset, prev)
		fa.markDirty(nextOff+format.PrevLinkOffset, format.WordSize)
	}
	return nil
}

// neighborsOf reads the links of the free block at off and resolves them to
// block offsets (-1 for a nil link). It writes nothing.
func (fa *FirstFitAllocator) neighborsOf(off int) (next, prev uint64, prevOff, nextOff int, err error) {
	data := fa.r.Bytes()
	next, prev, err = format.ReadLinks(data, off)
	if err != nil {
		return 0, 0, -1, -1, fmt.Errorf("%w: %w", ErrCorrupt, err)
	}

	prevOff, nextOff = -1, -1
	if prev == format.NilLink {
		if fa.head != uint64(off) {
			return 0, 0, -1, -1, fmt.Errorf("%w: block 0x%X has no predecessor but is not the list head", ErrCorrupt, off)
		}
	} else if prevOff, err = fa.linkTarget(data, prev); err != nil {
		return 0, 0, -1, -1, err
	}
	if next != format.NilLink {
		if nextOff, err = fa.linkTarget(data, next); err != nil {
			return 0, 0, -1, -1, err
		}
	}
	return next, prev, prevOff, nextOff, nil
}

// linkTarget converts a link into a block offset, checking that a whole
// minimum-size block fits there.
func (fa *FirstFitAllocator) linkTarget(data []byte, link uint64) (int, error) {
	if link > uint64(len(data)) || link+format.MinBlockSize > uint64(len(data)) {
		return 0, fmt.Errorf("%w: link 0x%X outside heap (len=%d)", ErrCorrupt, link, len(data))
	}
	off := int(link)
	if !format.IsAligned(off) {
		return 0, fmt.Errorf("%w: misaligned link 0x%X", ErrCorrupt, link)
	}
	return off, nil
}

// FreeBlocks returns the free blocks in free-list order (most recently freed first).
func (fa *FirstFitAllocator) FreeBlocks() ([]walker.Block, error) {
	data := fa.r.Bytes()
	limit := len(data)/format.MinBlockSize + 1

	var blocks []walker.Block
	for cur := fa.head; cur != format.NilLink; {
		if len(blocks) > limit {
			return nil, fmt.Errorf("%w: free list longer than heap allows", ErrCorrupt)
		}
		off, err := fa.linkTarget(data, cur)
		if err != nil {
			return nil, err
		}
		blk, err := format.ReadBlock(data, off)
		if err != nil {
			return nil, fmt.Errorf("%w: %w", ErrCorrupt, err)
		}
		blocks = append(blocks, blk)
		next, _, err := format.ReadLinks(data, off)
		if err != nil {
			return nil, fmt.Errorf("%w: %w", ErrCorrupt, err)
		}
		cur = next
	}
	return blocks, nil
}
