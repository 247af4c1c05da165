package alloc

import (
	"github.com/joshuapare/tagheap/heap/walker"
)

// Stats holds operation counters for testing and instrumentation.
type Stats struct {
	AllocCalls       int   `json:"alloc_calls"`       // Total Alloc() calls
	AllocFastPath    int   `json:"alloc_fast_path"`   // Allocations that succeeded without Grow()
	AllocSlowPath    int   `json:"alloc_slow_path"`   // Allocations that required Grow()
	FreeCalls        int   `json:"free_calls"`        // Total Free() calls with a non-nil address
	BytesAllocated   int64 `json:"bytes_allocated"`   // Total block bytes handed out (including tags)
	BytesFreed       int64 `json:"bytes_freed"`       // Total block bytes released
	SplitCount       int   `json:"split_count"`       // Number of block splits
	CoalesceForward  int   `json:"coalesce_forward"`  // Forward coalesce operations
	CoalesceBackward int   `json:"coalesce_backward"` // Backward coalesce operations
	GrowCalls        int   `json:"grow_calls"`        // Number of successful Grow() calls
	GrowBytes        int64 `json:"grow_bytes"`        // Total bytes added via Grow()
}

// Usage is a point-in-time picture of the heap layout.
type Usage struct {
	HeapBytes       int64 `json:"heap_bytes"`       // Region length
	Blocks          int   `json:"blocks"`           // Total number of blocks
	AllocatedBlocks int   `json:"allocated_blocks"` // Blocks currently allocated
	AllocatedBytes  int64 `json:"allocated_bytes"`  // Bytes in allocated blocks (including tags)
	FreeBlocks      int   `json:"free_blocks"`      // Blocks currently free
	FreeBytes       int64 `json:"free_bytes"`       // Bytes in free blocks (including tags)
	LargestFree     int   `json:"largest_free"`     // Size of the largest free block
}

// Fragmentation returns 1 - LargestFree/FreeBytes: 0 when all free space is
// one block, approaching 1 as free space splinters.
func (u Usage) Fragmentation() float64 {
	if u.FreeBytes == 0 {
		return 0
	}
	return 1 - float64(u.LargestFree)/float64(u.FreeBytes)
}

// Stats returns a copy of the operation counters.
func (fa *FirstFitAllocator) Stats() Stats {
	return fa.stats
}

// Usage walks the heap and summarizes its layout.
func (fa *FirstFitAllocator) Usage() (Usage, error) {
	return Summarize(fa.r.Bytes())
}

// Summarize walks a raw heap image (for example a mapped heap file) and
// summarizes its layout. It stops at the first malformed block.
func Summarize(data []byte) (Usage, error) {
	u := Usage{HeapBytes: int64(len(data))}
	err := walker.Walk(data, func(b walker.Block) error {
		u.Blocks++
		if b.Allocated {
			u.AllocatedBlocks++
			u.AllocatedBytes += int64(b.Size)
			return nil
		}
		u.FreeBlocks++
		u.FreeBytes += int64(b.Size)
		u.LargestFree = max(u.LargestFree, b.Size)
		return nil
	})
	return u, err
}
