package dirty

import (
	"context"
	"fmt"
	"sort"

	"github.com/joshuapare/tagheap/heap/region"
)

const (
	// defaultRangeCapacity is the pre-allocated capacity for dirty ranges.
	defaultRangeCapacity = 64

	// DefaultPageSize is the page granularity ranges are widened to.
	DefaultPageSize = 4096
)

// FlushMode controls how far a flush goes toward stable storage.
type FlushMode int

const (
	// FlushDataOnly flushes the dirty pages and nothing else.
	FlushDataOnly FlushMode = iota

	// FlushFull flushes the dirty pages and then syncs the whole backing
	// store when the target supports it.
	FlushFull
)

func (m FlushMode) String() string {
	switch m {
	case FlushDataOnly:
		return "data-only"
	case FlushFull:
		return "full"
	default:
		return fmt.Sprintf("FlushMode(%d)", int(m))
	}
}

// Range is a dirty byte range of the heap.
type Range struct {
	Off int64 // Offset within the heap
	Len int64 // Length in bytes
}

// End returns the offset just past the range.
func (r Range) End() int64 { return r.Off + r.Len }

// fullSyncer is implemented by targets that can sync everything at once.
type fullSyncer interface {
	Sync() error
}

// Tracker accumulates dirty ranges and flushes them in page-aligned batches.
//
// NOT thread-safe. Only one goroutine should use it at a time.
type Tracker struct {
	target   region.Syncer
	ranges   []Range // Raw ranges, coalesced at flush time
	pageSize int64
}

// NewTracker creates a tracker that flushes through target.
func NewTracker(target region.Syncer) *Tracker {
	return &Tracker{
		target:   target,
		ranges:   make([]Range, 0, defaultRangeCapacity),
		pageSize: DefaultPageSize,
	}
}

// SetPageSize changes the flush granularity. Non-positive values are ignored.
func (t *Tracker) SetPageSize(n int) {
	if n > 0 {
		t.pageSize = int64(n)
	}
}

// Add records a dirty range. Empty ranges are ignored.
//
// Performance: an append, zero allocations after initial capacity.
func (t *Tracker) Add(off, length int) {
	if length <= 0 || off < 0 {
		return
	}
	t.ranges = append(t.ranges, Range{
		Off: int64(off),
		Len: int64(length),
	})
}

// Len returns the number of raw ranges recorded since the last flush.
func (t *Tracker) Len() int { return len(t.ranges) }

// Flush syncs every dirty page through the target and clears the tracker.
//
// The context is checked before each range. If it is cancelled part way,
// the ranges not yet flushed stay recorded so a later Flush can finish them.
func (t *Tracker) Flush(ctx context.Context, mode FlushMode) error {
	if len(t.ranges) == 0 && mode != FlushFull {
		return nil
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	pending := t.coalesce()
	for i, r := range pending {
		if err := ctx.Err(); err != nil {
			t.ranges = append(t.ranges[:0], pending[i:]...)
			return err
		}
		if err := t.target.SyncRange(int(r.Off), int(r.Len)); err != nil {
			t.ranges = append(t.ranges[:0], pending[i:]...)
			return fmt.Errorf("dirty: sync [%d, %d): %w", r.Off, r.End(), err)
		}
	}
	t.ranges = t.ranges[:0]

	if mode != FlushFull {
		return nil
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	if fs, ok := t.target.(fullSyncer); ok {
		if err := fs.Sync(); err != nil {
			return fmt.Errorf("dirty: full sync: %w", err)
		}
	}
	return nil
}

// Reset clears all tracked ranges without flushing.
func (t *Tracker) Reset() {
	t.ranges = t.ranges[:0]
}

// DebugRanges returns a copy of the raw, uncoalesced ranges.
func (t *Tracker) DebugRanges() []Range {
	result := make([]Range, len(t.ranges))
	copy(result, t.ranges)
	return result
}

// DebugCoalescedRanges returns the page-aligned, sorted, merged ranges a
// flush would sync.
func (t *Tracker) DebugCoalescedRanges() []Range {
	return t.coalesce()
}

// coalesce page-aligns all ranges, sorts them, and merges overlapping or
// adjacent ones.
func (t *Tracker) coalesce() []Range {
	if len(t.ranges) == 0 {
		return nil
	}

	aligned := make([]Range, len(t.ranges))
	for i, r := range t.ranges {
		start := (r.Off / t.pageSize) * t.pageSize
		end := r.End()
		if end%t.pageSize != 0 {
			end = (end/t.pageSize + 1) * t.pageSize
		}
		aligned[i] = Range{Off: start, Len: end - start}
	}

	sort.Slice(aligned, func(i, j int) bool {
		return aligned[i].Off < aligned[j].Off
	})

	merged := make([]Range, 0, len(aligned))
	current := aligned[0]
	for _, next := range aligned[1:] {
		if next.Off <= current.End() {
			current.Len = max(current.End(), next.End()) - current.Off
			continue
		}
		merged = append(merged, current)
		current = next
	}
	return append(merged, current)
}
