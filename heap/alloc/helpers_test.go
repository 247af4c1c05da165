package alloc

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/joshuapare/tagheap/heap/region"
	"github.com/joshuapare/tagheap/heap/walker"
	"github.com/joshuapare/tagheap/internal/format"
)

// newTestAllocator returns an allocator over an empty in-memory region.
func newTestAllocator(t testing.TB, limit int, cfg *Config) (*FirstFitAllocator, *region.Memory) {
	t.Helper()
	r := region.NewMemory(limit)
	fa, err := New(r, cfg)
	require.NoError(t, err)
	return fa, r
}

// mustAlloc allocates and fails the test on error.
func mustAlloc(t testing.TB, fa *FirstFitAllocator, size int) Addr {
	t.Helper()
	addr, err := fa.Alloc(size)
	require.NoError(t, err, "alloc(%d)", size)
	require.NotEqual(t, Nil, addr)
	return addr
}

// mustCheck runs the full invariant suite.
func mustCheck(t testing.TB, fa *FirstFitAllocator) {
	t.Helper()
	require.NoError(t, fa.Check())
}

// layout returns the heap as signed block sizes (negative = allocated).
func layout(t testing.TB, fa *FirstFitAllocator) []int {
	t.Helper()
	var sizes []int
	require.NoError(t, fa.Walk(func(b walker.Block) error {
		if b.Allocated {
			sizes = append(sizes, -b.Size)
		} else {
			sizes = append(sizes, b.Size)
		}
		return nil
	}))
	return sizes
}

// freeOffsets returns the free list as block offsets, head first.
func freeOffsets(t testing.TB, fa *FirstFitAllocator) []int {
	t.Helper()
	blocks, err := fa.FreeBlocks()
	require.NoError(t, err)
	offs := make([]int, len(blocks))
	for i, b := range blocks {
		offs[i] = b.Offset
	}
	return offs
}

// blockOf returns the header offset of the block holding addr.
func blockOf(addr Addr) int {
	return int(addr) - format.HeaderSize
}

// recordingTracker collects every range the allocator reports as written.
type recordingTracker struct {
	ranges [][2]int
}

func (r *recordingTracker) Add(off, length int) {
	r.ranges = append(r.ranges, [2]int{off, length})
}

func (r *recordingTracker) covers(off int) bool {
	for _, rg := range r.ranges {
		if off >= rg[0] && off < rg[0]+rg[1] {
			return true
		}
	}
	return false
}
