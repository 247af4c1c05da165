// Package dirty tracks which pages of a file-backed heap have been written
// and flushes only those.
//
// # Overview
//
// The allocator reports every tag and link write through its DirtyTracker
// hook. Tracker records those byte ranges cheaply and, at flush time, widens
// them to page boundaries, merges overlaps, and hands each merged range to the
// region's SyncRange.
//
// # Usage
//
//	r, _ := region.OpenFile("app.heap", 0)
//	tracker := dirty.NewTracker(r)
//	fa, _ := alloc.New(r, &alloc.Config{Tracker: tracker})
//
//	// ... Alloc / Free ...
//
//	if err := tracker.Flush(ctx, dirty.FlushFull); err != nil {
//	    return err
//	}
//
// # Flush Modes
//
//   - FlushDataOnly: msync the dirty pages only
//   - FlushFull: msync the dirty pages, then sync the backing file
package dirty
