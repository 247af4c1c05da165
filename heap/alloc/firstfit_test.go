package alloc

import (
	"bytes"
	"errors"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/joshuapare/tagheap/heap/region"
	"github.com/joshuapare/tagheap/internal/format"
)

func TestAlloc_FirstRequestGrowsOneChunk(t *testing.T) {
	fa, r := newTestAllocator(t, 0, nil)

	a := mustAlloc(t, fa, 16)
	assert.Equal(t, Addr(format.HeaderSize), a)
	assert.Equal(t, format.DefaultGrowthChunk, r.Len())
	assert.Equal(t, []int{-32, 4064}, layout(t, fa))

	st := fa.Stats()
	assert.Equal(t, 1, st.GrowCalls)
	assert.Equal(t, int64(4096), st.GrowBytes)
	assert.Equal(t, 1, st.AllocSlowPath)
	assert.Equal(t, 0, st.AllocFastPath)
	assert.Equal(t, 1, st.SplitCount)
	mustCheck(t, fa)
}

func TestAlloc_ConsecutiveBlocksAreAdjacent(t *testing.T) {
	fa, _ := newTestAllocator(t, 0, nil)

	a := mustAlloc(t, fa, 16)
	b := mustAlloc(t, fa, 16)

	assert.Equal(t, Addr(8), a)
	assert.Equal(t, Addr(40), b)
	assert.Equal(t, []int{-32, -32, 4032}, layout(t, fa))
	assert.Equal(t, 1, fa.Stats().AllocFastPath)
	mustCheck(t, fa)
}

func TestFree_ThenReuseSameAddress(t *testing.T) {
	fa, _ := newTestAllocator(t, 0, nil)

	a := mustAlloc(t, fa, 16)
	_ = mustAlloc(t, fa, 16)

	require.NoError(t, fa.Free(a))
	c := mustAlloc(t, fa, 8)

	assert.Equal(t, a, c)
	assert.Equal(t, 1, fa.Stats().GrowCalls)
	mustCheck(t, fa)
}

func TestFree_CoalescesBothDirections(t *testing.T) {
	fa, r := newTestAllocator(t, 0, nil)

	a := mustAlloc(t, fa, 16)
	b := mustAlloc(t, fa, 16)

	require.NoError(t, fa.Free(a))
	assert.Equal(t, []int{32, -32, 4032}, layout(t, fa))

	require.NoError(t, fa.Free(b))
	assert.Equal(t, []int{r.Len()}, layout(t, fa))
	assert.Equal(t, []int{0}, freeOffsets(t, fa))

	st := fa.Stats()
	assert.Equal(t, 1, st.CoalesceBackward)
	assert.Equal(t, 1, st.CoalesceForward)
	mustCheck(t, fa)
}

func TestAlloc_RejectsNonPositiveSize(t *testing.T) {
	fa, r := newTestAllocator(t, 0, nil)

	for _, n := range []int{0, -1, -4096} {
		addr, err := fa.Alloc(n)
		require.ErrorIs(t, err, ErrZeroSize, "size %d", n)
		assert.Equal(t, Nil, addr)
	}
	assert.Equal(t, 0, r.Len(), "rejected requests must not grow the heap")
}

func TestAlloc_OverflowingSize(t *testing.T) {
	fa, r := newTestAllocator(t, 0, nil)

	addr, err := fa.Alloc(maxInt)
	require.ErrorIs(t, err, ErrNoSpace)
	assert.Equal(t, Nil, addr)
	assert.Equal(t, 0, r.Len())
}

func TestAlloc_OversizeGrowsByRequest(t *testing.T) {
	fa, r := newTestAllocator(t, 0, nil)

	a := mustAlloc(t, fa, 10000)

	assert.Equal(t, Addr(8), a)
	assert.Equal(t, 10016, r.Len())
	assert.Equal(t, []int{-10016}, layout(t, fa))
	assert.Empty(t, freeOffsets(t, fa))
	mustCheck(t, fa)
}

func TestAlloc_SplitThreshold(t *testing.T) {
	t.Run("remainder below minimum is absorbed", func(t *testing.T) {
		fa, _ := newTestAllocator(t, 0, nil)

		// 4056 + 16 = 4072, leaving 24 bytes: too small to stand alone.
		a := mustAlloc(t, fa, 4056)

		size, err := fa.BlockSize(a)
		require.NoError(t, err)
		assert.Equal(t, 4096, size)
		assert.Equal(t, []int{-4096}, layout(t, fa))
		assert.Equal(t, 0, fa.Stats().SplitCount)

		p, err := fa.Payload(a)
		require.NoError(t, err)
		assert.Len(t, p, 4096-format.Overhead)
		mustCheck(t, fa)
	})

	t.Run("remainder of exactly minimum is split off", func(t *testing.T) {
		fa, _ := newTestAllocator(t, 0, nil)

		_ = mustAlloc(t, fa, 4048)

		assert.Equal(t, []int{-4064, 32}, layout(t, fa))
		assert.Equal(t, 1, fa.Stats().SplitCount)
		mustCheck(t, fa)
	})
}

func TestAlloc_TakesMostRecentlyFreedFit(t *testing.T) {
	fa, _ := newTestAllocator(t, 0, nil)

	a := mustAlloc(t, fa, 16)
	_ = mustAlloc(t, fa, 16)
	c := mustAlloc(t, fa, 16)
	_ = mustAlloc(t, fa, 16)

	require.NoError(t, fa.Free(a))
	require.NoError(t, fa.Free(c))
	assert.Equal(t, []int{64, 0, 128}, freeOffsets(t, fa))

	assert.Equal(t, c, mustAlloc(t, fa, 16))
	assert.Equal(t, a, mustAlloc(t, fa, 16))
	mustCheck(t, fa)
}

func TestAlloc_SkipsBlocksThatAreTooSmall(t *testing.T) {
	fa, _ := newTestAllocator(t, 0, nil)

	a := mustAlloc(t, fa, 16)
	_ = mustAlloc(t, fa, 16)
	require.NoError(t, fa.Free(a))

	big := mustAlloc(t, fa, 100)

	assert.Equal(t, Addr(72), big)
	assert.Equal(t, 1, fa.Stats().GrowCalls)
	assert.Equal(t, []int{32, -32, -120, 3912}, layout(t, fa))
	mustCheck(t, fa)
}

func TestAlloc_GrowthMergesWithFreeTail(t *testing.T) {
	fa, r := newTestAllocator(t, 0, nil)

	var grown [][2]int
	fa.onGrow = func(start, n int) { grown = append(grown, [2]int{start, n}) }

	_ = mustAlloc(t, fa, 16)
	b := mustAlloc(t, fa, 5000)

	assert.Equal(t, Addr(40), b, "growth should extend the free tail in place")
	assert.Equal(t, [][2]int{{0, 4096}, {4096, 5016}}, grown)
	assert.Equal(t, 4096+5016, r.Len())
	assert.Equal(t, []int{-32, -5016, 4064}, layout(t, fa))
	assert.Equal(t, 2, fa.Stats().AllocSlowPath)
	mustCheck(t, fa)
}

func TestAlloc_GrowthChunkConfig(t *testing.T) {
	fa, r := newTestAllocator(t, 0, &Config{GrowthChunk: 100})

	_ = mustAlloc(t, fa, 8)

	// 100 rounds up to 104.
	assert.Equal(t, 104, r.Len())
	assert.Equal(t, []int{-32, 72}, layout(t, fa))
}

func TestAlloc_ExhaustedRegion(t *testing.T) {
	fa, r := newTestAllocator(t, 4096, nil)

	_ = mustAlloc(t, fa, 4000)
	before := layout(t, fa)
	require.Equal(t, []int{-4016, 80}, before)

	addr, err := fa.Alloc(200)
	require.Error(t, err)
	assert.Equal(t, Nil, addr)
	assert.ErrorIs(t, err, ErrNoSpace)
	assert.ErrorIs(t, err, region.ErrExhausted)

	// A failed growth leaves the heap untouched.
	assert.Equal(t, 4096, r.Len())
	assert.Equal(t, before, layout(t, fa))
	assert.Equal(t, 1, fa.Stats().GrowCalls)
	mustCheck(t, fa)

	// The leftover block still serves requests that fit it exactly.
	_ = mustAlloc(t, fa, 64)
	assert.Equal(t, []int{-4016, -80}, layout(t, fa))
	mustCheck(t, fa)
}

func TestAlloc_HugeRequestOnDefaultRegion(t *testing.T) {
	fa, r := newTestAllocator(t, 0, nil)
	_ = mustAlloc(t, fa, 16)
	before := layout(t, fa)

	addr, err := fa.Alloc(1 << 50)
	require.ErrorIs(t, err, ErrNoSpace)
	assert.ErrorIs(t, err, region.ErrExhausted)
	assert.Equal(t, Nil, addr)
	assert.Equal(t, before, layout(t, fa))
	assert.Equal(t, format.DefaultGrowthChunk, r.Len())
	mustCheck(t, fa)
}

func TestGrow_RejectsNonPositive(t *testing.T) {
	fa, _ := newTestAllocator(t, 0, nil)
	require.ErrorIs(t, fa.Grow(0), ErrZeroSize)
	require.ErrorIs(t, fa.Grow(-8), ErrZeroSize)
}

func TestGrow_RoundsToMinimumBlock(t *testing.T) {
	fa, r := newTestAllocator(t, 0, nil)

	require.NoError(t, fa.Grow(1))
	assert.Equal(t, format.MinBlockSize, r.Len())

	require.NoError(t, fa.Grow(33))
	assert.Equal(t, []int{32 + 40}, layout(t, fa))
	mustCheck(t, fa)
}

func TestFree_Nil(t *testing.T) {
	fa, _ := newTestAllocator(t, 0, nil)
	require.NoError(t, fa.Free(Nil))
	assert.Equal(t, 0, fa.Stats().FreeCalls)
}

func TestFree_DoubleFree(t *testing.T) {
	fa, _ := newTestAllocator(t, 0, nil)

	a := mustAlloc(t, fa, 16)
	_ = mustAlloc(t, fa, 16)
	require.NoError(t, fa.Free(a))

	before := layout(t, fa)
	err := fa.Free(a)
	require.ErrorIs(t, err, ErrDoubleFree)
	assert.Equal(t, before, layout(t, fa))
	mustCheck(t, fa)
}

func TestFree_AbsorbedBlockStillReadsFree(t *testing.T) {
	fa, _ := newTestAllocator(t, 0, nil)

	a := mustAlloc(t, fa, 16)
	b := mustAlloc(t, fa, 16)
	require.NoError(t, fa.Free(a))
	require.NoError(t, fa.Free(b)) // b is merged into a's block

	require.ErrorIs(t, fa.Free(b), ErrDoubleFree)
	mustCheck(t, fa)
}

func TestFree_BadAddresses(t *testing.T) {
	fa, _ := newTestAllocator(t, 0, nil)
	_ = mustAlloc(t, fa, 16)

	tests := []struct {
		name string
		addr Addr
	}{
		{"inside header word", Addr(4)},
		{"misaligned", Addr(12)},
		{"past end", Addr(4096)},
		{"far past end", Addr(1 << 40)},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			require.ErrorIs(t, fa.Free(tt.addr), ErrBadAddr)
		})
	}
	mustCheck(t, fa)
}

func TestFree_GarbageTagsAreCorruption(t *testing.T) {
	fa, _ := newTestAllocator(t, 0, nil)
	a := mustAlloc(t, fa, 100)

	// The payload still holds the free-list links it had as a free block,
	// which do not decode as a tag.
	err := fa.Free(a + 16)
	require.ErrorIs(t, err, ErrCorrupt)
	mustCheck(t, fa)
}

func TestFree_CorruptNeighborLeavesBlockAllocated(t *testing.T) {
	tests := []struct {
		name    string
		corrupt func(data []byte)
		restore func(data []byte)
		prep    func(t *testing.T, fa *FirstFitAllocator, b Addr)
	}{
		{
			name:    "neighbor footer mismatch",
			corrupt: func(data []byte) { format.PutTag(data, 56, format.Tag{Size: 64, Allocated: true}) },
			restore: func(data []byte) { format.PutTag(data, 56, format.Tag{Size: 32, Allocated: true}) },
		},
		{
			name: "free neighbor with broken link",
			prep: func(t *testing.T, fa *FirstFitAllocator, b Addr) {
				require.NoError(t, fa.Free(b))
			},
			corrupt: func(data []byte) { format.PutU64(data, 32+format.NextLinkOffset, 12) },
			restore: func(data []byte) { format.PutU64(data, 32+format.NextLinkOffset, 96) },
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			fa, r := newTestAllocator(t, 0, nil)
			a := mustAlloc(t, fa, 16)
			b := mustAlloc(t, fa, 16)
			_ = mustAlloc(t, fa, 16)
			if tt.prep != nil {
				tt.prep(t, fa, b)
			}
			wantFree := freeOffsets(t, fa)

			tt.corrupt(r.Bytes())
			require.ErrorIs(t, fa.Free(a), ErrCorrupt)

			tag, err := format.ReadTag(r.Bytes(), blockOf(a))
			require.NoError(t, err)
			assert.True(t, tag.Allocated, "failed free must not clear the flag")

			// A retry reports the same corruption, not a double free.
			err = fa.Free(a)
			require.ErrorIs(t, err, ErrCorrupt)
			assert.NotErrorIs(t, err, ErrDoubleFree)

			tt.restore(r.Bytes())
			assert.Equal(t, wantFree, freeOffsets(t, fa), "free list untouched")
			require.NoError(t, fa.Free(a))
			assert.Contains(t, freeOffsets(t, fa), 0)
			mustCheck(t, fa)
		})
	}
}

func TestFree_Hardened(t *testing.T) {
	var logBuf bytes.Buffer
	lg := slog.New(slog.NewTextHandler(&logBuf, nil))

	t.Run("interior pointer with forged tags", func(t *testing.T) {
		logBuf.Reset()
		fa, _ := newTestAllocator(t, 0, &Config{Hardened: true, Logger: lg})

		a := mustAlloc(t, fa, 100)
		p, err := fa.Payload(a)
		require.NoError(t, err)

		// Forge a plausible allocated block at payload offset 8.
		forged := format.Tag{Size: format.MinBlockSize, Allocated: true}
		format.PutTags(p, 8, forged)

		err = fa.Free(a + 16)
		require.Error(t, err)

		var ve *ViolationError
		require.ErrorAs(t, err, &ve)
		assert.Equal(t, "free", ve.Op)
		assert.Equal(t, a+16, ve.Addr)
		assert.ErrorIs(t, err, ErrBadAddr)
		assert.Contains(t, logBuf.String(), "contract violation")

		assert.Equal(t, []int{-120, 3976}, layout(t, fa))
		mustCheck(t, fa)
	})

	t.Run("double free", func(t *testing.T) {
		logBuf.Reset()
		fa, _ := newTestAllocator(t, 0, &Config{Hardened: true, Logger: lg})

		a := mustAlloc(t, fa, 16)
		require.NoError(t, fa.Free(a))

		err := fa.Free(a)
		var ve *ViolationError
		require.ErrorAs(t, err, &ve)
		assert.True(t, errors.Is(err, ErrDoubleFree))
		assert.Contains(t, logBuf.String(), "level=ERROR")
		mustCheck(t, fa)
	})

	t.Run("corrupt neighbor", func(t *testing.T) {
		logBuf.Reset()
		fa, r := newTestAllocator(t, 0, &Config{Hardened: true, Logger: lg})

		a := mustAlloc(t, fa, 16)
		_ = mustAlloc(t, fa, 16)
		format.PutTag(r.Bytes(), 56, format.Tag{Size: 64, Allocated: true})

		err := fa.Free(a)
		var ve *ViolationError
		require.ErrorAs(t, err, &ve)
		assert.ErrorIs(t, err, ErrCorrupt)
		assert.Contains(t, logBuf.String(), "contract violation")
	})

	t.Run("valid free passes", func(t *testing.T) {
		logBuf.Reset()
		fa, _ := newTestAllocator(t, 0, &Config{Hardened: true, Logger: lg})

		a := mustAlloc(t, fa, 16)
		b := mustAlloc(t, fa, 48)
		require.NoError(t, fa.Free(b))
		require.NoError(t, fa.Free(a))
		assert.Empty(t, logBuf.String())
		mustCheck(t, fa)
	})
}

func TestNew_AdoptsExistingHeap(t *testing.T) {
	fa, r := newTestAllocator(t, 0, nil)

	a := mustAlloc(t, fa, 16)
	_ = mustAlloc(t, fa, 16)
	c := mustAlloc(t, fa, 16)
	_ = mustAlloc(t, fa, 16)
	require.NoError(t, fa.Free(a))
	require.NoError(t, fa.Free(c))
	want := layout(t, fa)

	adopted, err := New(r, nil)
	require.NoError(t, err)

	assert.Equal(t, want, layout(t, adopted))
	assert.Equal(t, []int{0, 64, 128}, freeOffsets(t, adopted), "adopted list runs in address order")
	mustCheck(t, adopted)

	_ = mustAlloc(t, adopted, 16)
	mustCheck(t, adopted)
	assert.Equal(t, 0, adopted.Stats().GrowCalls)
}

func TestNew_RejectsCorruptRegion(t *testing.T) {
	r := region.NewMemory(0)
	_, err := r.Extend(64)
	require.NoError(t, err)

	_, err = New(r, nil)
	require.ErrorIs(t, err, ErrCorrupt)
}

func TestCheck_DetectsStompedFooter(t *testing.T) {
	fa, r := newTestAllocator(t, 0, nil)
	a := mustAlloc(t, fa, 16)
	mustCheck(t, fa)

	format.PutU64(r.Bytes(), blockOf(a)+32-format.FooterSize, 0x40)
	require.ErrorIs(t, fa.Check(), ErrCorrupt)
}

func TestPayload(t *testing.T) {
	fa, _ := newTestAllocator(t, 0, nil)

	a := mustAlloc(t, fa, 20)
	p, err := fa.Payload(a)
	require.NoError(t, err)
	require.Len(t, p, 24)
	assert.Equal(t, 24, cap(p))

	copy(p, "boundary tags")
	again, err := fa.Payload(a)
	require.NoError(t, err)
	assert.Equal(t, "boundary tags", string(again[:13]))

	require.NoError(t, fa.Free(a))
	_, err = fa.Payload(a)
	require.ErrorIs(t, err, ErrBadAddr)
}

func TestPayload_SurvivesGrowth(t *testing.T) {
	fa, _ := newTestAllocator(t, 0, nil)

	a := mustAlloc(t, fa, 16)
	p, err := fa.Payload(a)
	require.NoError(t, err)
	copy(p, "persist!")

	_ = mustAlloc(t, fa, 64*1024)

	p, err = fa.Payload(a)
	require.NoError(t, err)
	assert.Equal(t, "persist!", string(p[:8]))
}

func TestUsage(t *testing.T) {
	fa, _ := newTestAllocator(t, 0, nil)

	a := mustAlloc(t, fa, 16)
	_ = mustAlloc(t, fa, 100)
	require.NoError(t, fa.Free(a))

	u, err := fa.Usage()
	require.NoError(t, err)
	assert.Equal(t, int64(4096), u.HeapBytes)
	assert.Equal(t, 3, u.Blocks)
	assert.Equal(t, 1, u.AllocatedBlocks)
	assert.Equal(t, int64(120), u.AllocatedBytes)
	assert.Equal(t, 2, u.FreeBlocks)
	assert.Equal(t, int64(32+3944), u.FreeBytes)
	assert.Equal(t, 3944, u.LargestFree)
	assert.InDelta(t, 1-3944.0/3976.0, u.Fragmentation(), 1e-9)
}

func TestDirtyTracking(t *testing.T) {
	rt := &recordingTracker{}
	fa, _ := newTestAllocator(t, 0, &Config{Tracker: rt})

	a := mustAlloc(t, fa, 16)
	off := blockOf(a)

	assert.True(t, rt.covers(off), "header of allocated block")
	assert.True(t, rt.covers(off+24), "footer of allocated block")
	assert.True(t, rt.covers(32), "header of split tail")
	assert.True(t, rt.covers(4088), "footer of split tail")
	assert.True(t, rt.covers(32+format.NextLinkOffset), "links of split tail")

	rt.ranges = nil
	require.NoError(t, fa.Free(a))
	assert.True(t, rt.covers(0))
	assert.True(t, rt.covers(4088), "merged block footer")
}
