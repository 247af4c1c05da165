// Package verify checks the structural invariants of a heap arena.
// These checks back the allocator's Check method, the heapctl check command
// and the invariant assertions in tests.
package verify

import (
	"fmt"

	"github.com/joshuapare/tagheap/heap/walker"
	"github.com/joshuapare/tagheap/internal/format"
)

// ValidationError describes the first invariant violation found.
type ValidationError struct {
	Type    string         `json:"type"`
	Message string         `json:"message"`
	Offset  int            `json:"offset"`
	Details map[string]any `json:"details,omitempty"`
	Err     error          `json:"-"`
}

func (e *ValidationError) Error() string {
	if e.Offset >= 0 {
		return fmt.Sprintf("%s at offset 0x%X: %s", e.Type, e.Offset, e.Message)
	}
	return fmt.Sprintf("%s: %s", e.Type, e.Message)
}

func (e *ValidationError) Unwrap() error { return e.Err }

// AllInvariants validates the block structure and the free list rooted at head.
// Returns the first error encountered, or nil if all checks pass.
func AllInvariants(data []byte, head uint64) error {
	if err := Blocks(data); err != nil {
		return err
	}
	return FreeList(data, head)
}

// Blocks walks the arena and checks that every block has matching, well-formed
// tags, that the blocks tile the arena exactly, and that no two physically
// adjacent blocks are both free.
func Blocks(data []byte) error {
	prevFree := false
	prevOff := -1
	covered := 0

	err := walker.Walk(data, func(b walker.Block) error {
		if !b.Allocated && prevFree {
			return &ValidationError{
				Type:    "Coalescing",
				Message: fmt.Sprintf("adjacent free blocks at 0x%X and 0x%X", prevOff, b.Offset),
				Offset:  b.Offset,
				Details: map[string]interface{}{"previous": prevOff},
			}
		}
		prevFree = !b.Allocated
		prevOff = b.Offset
		covered = b.End()
		return nil
	})
	if err != nil {
		if verr, ok := err.(*ValidationError); ok {
			return verr
		}
		return &ValidationError{
			Type:    "BlockStructure",
			Message: err.Error(),
			Offset:  covered,
			Err:     err,
		}
	}

	if covered != len(data) {
		return &ValidationError{
			Type:    "BlockStructure",
			Message: fmt.Sprintf("blocks cover %d of %d bytes", covered, len(data)),
			Offset:  covered,
		}
	}
	return nil
}

// FreeList follows the intrusive free list from head and checks that every
// member is a well-formed free block, that prev links mirror next links, that
// the list has no cycle, and that it contains every free block of the arena.
func FreeList(data []byte, head uint64) error {
	freeBlocks, err := countFree(data)
	if err != nil {
		return err
	}

	seen := make(map[uint64]struct{}, freeBlocks)
	prev := format.NilLink
	for cur := head; cur != format.NilLink; {
		if _, dup := seen[cur]; dup {
			return &ValidationError{
				Type:    "FreeList",
				Message: fmt.Sprintf("cycle through block 0x%X", cur),
				Offset:  linkOffset(cur),
			}
		}
		seen[cur] = struct{}{}

		if cur > uint64(len(data)) {
			return &ValidationError{
				Type:    "FreeList",
				Message: fmt.Sprintf("link 0x%X outside arena (len=%d)", cur, len(data)),
				Offset:  -1,
			}
		}
		off := int(cur)
		blk, err := format.ReadBlock(data, off)
		if err != nil {
			return &ValidationError{Type: "FreeList", Message: err.Error(), Offset: off, Err: err}
		}
		if blk.Allocated {
			return &ValidationError{
				Type:    "FreeList",
				Message: "allocated block on free list",
				Offset:  off,
			}
		}
		next, back, err := format.ReadLinks(data, off)
		if err != nil {
			return &ValidationError{Type: "FreeList", Message: err.Error(), Offset: off, Err: err}
		}
		if back != prev {
			return &ValidationError{
				Type:    "FreeList",
				Message: "prev link does not match predecessor",
				Offset:  off,
				Details: map[string]interface{}{"prev": back, "expected": prev},
			}
		}
		prev = cur
		cur = next
	}

	if len(seen) != freeBlocks {
		return &ValidationError{
			Type:    "FreeList",
			Message: fmt.Sprintf("free list holds %d blocks, arena has %d free blocks", len(seen), freeBlocks),
			Offset:  -1,
			Details: map[string]interface{}{"listed": len(seen), "free": freeBlocks},
		}
	}
	return nil
}

func countFree(data []byte) (int, error) {
	n := 0
	err := walker.Walk(data, func(b walker.Block) error {
		if !b.Allocated {
			n++
		}
		return nil
	})
	if err != nil {
		return 0, &ValidationError{Type: "BlockStructure", Message: err.Error(), Offset: -1, Err: err}
	}
	return n, nil
}

func linkOffset(l uint64) int {
	if l > uint64(^uint(0)>>1) {
		return -1
	}
	return int(l)
}
