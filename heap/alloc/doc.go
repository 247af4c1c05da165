// Package alloc provides a first-fit boundary-tag heap allocator over a
// growable region.
//
// # Overview
//
// Every block in the heap carries an 8-byte header and an identical 8-byte
// footer holding the block size with the allocated flag in bit 0. Because the
// footer of a block sits directly before the header of the next one, both
// physical neighbors of any block are reachable in constant time, which makes
// immediate coalescing cheap.
//
// Free blocks are threaded onto a doubly linked list whose links live in the
// first two payload words. Newly freed (and newly grown) blocks go to the
// front, so the list is in recency order and allocation takes the most
// recently freed block that fits.
//
// # Allocator Interface
//
//   - Alloc(size): returns the payload address of a block of at least size bytes
//   - Free(addr): releases a block and merges it with free neighbors
//
// # Implementations
//
// FirstFitAllocator: the allocator itself (not thread-safe)
//
//   - First-fit over a recency-ordered free list
//   - Split when the remainder is at least format.MinBlockSize
//   - Immediate bidirectional coalescing
//   - Growth by max(request, GrowthChunk) with exactly one retry
//
// LockedAllocator: FirstFitAllocator behind a single mutex
//
// # Usage Example
//
//	r := region.NewMemory(0)
//	fa, err := alloc.New(r, nil)
//	if err != nil {
//	    return err
//	}
//
//	addr, err := fa.Alloc(100)
//	if err != nil {
//	    return err
//	}
//	payload, _ := fa.Payload(addr)
//	copy(payload, data)
//
//	err = fa.Free(addr)
//
// # Validation
//
// Free bounds-checks every tag it reads and rejects already-free blocks with
// ErrDoubleFree. With Config.Hardened set it also confirms the address is the
// payload of a real block by walking the heap, logs each violation at error
// level, and returns a *ViolationError. Check runs the full invariant suite
// from package verify.
package alloc
