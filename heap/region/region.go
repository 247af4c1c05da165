// Package region provides the heap-growth primitive the allocator sits on.
//
// A Region is a contiguous, append-only byte range addressed by offset. Extend
// grows it monotonically and never moves existing bytes: offsets handed out
// before a growth stay valid after it, even when the backing slice or mapping
// is replaced. Callers must therefore re-read Bytes() after every Extend.
package region

import "errors"

var (
	// ErrExhausted indicates the region cannot grow by the requested amount.
	ErrExhausted = errors.New("region: exhausted")

	// ErrClosed indicates an operation on a closed region.
	ErrClosed = errors.New("region: closed")

	// ErrBadGrowth indicates a non-positive growth request.
	ErrBadGrowth = errors.New("region: growth must be positive")
)

// Region is the heap-growth primitive.
type Region interface {
	// Extend grows the region by n bytes and returns the offset at which the
	// new (zeroed) bytes start. On failure the region is unchanged.
	Extend(n int) (int, error)

	// Bytes returns the current contents. The slice is invalidated by Extend.
	Bytes() []byte

	// Len returns the current region length.
	Len() int
}

// Syncer is implemented by regions backed by durable storage.
type Syncer interface {
	// SyncRange flushes bytes [off, off+n) to stable storage.
	SyncRange(off, n int) error
}

// checkGrowth validates a growth request against the current length and the
// optional limit (0 = unlimited).
func checkGrowth(cur, n, limit int) error {
	if n <= 0 {
		return ErrBadGrowth
	}
	if n > maxLen-cur {
		return ErrExhausted
	}
	if limit > 0 && cur+n > limit {
		return ErrExhausted
	}
	return nil
}

const maxLen = int(^uint(0) >> 1)
