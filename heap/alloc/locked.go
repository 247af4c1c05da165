package alloc

import (
	"sync"

	"github.com/joshuapare/tagheap/heap/walker"
)

// LockedAllocator serializes every operation of a FirstFitAllocator behind a
// single mutex. It is the coarse-grained way to share one heap between
// goroutines.
type LockedAllocator struct {
	mu sync.Mutex
	fa *FirstFitAllocator
}

// NewLocked wraps fa. fa must not be used directly afterwards.
func NewLocked(fa *FirstFitAllocator) *LockedAllocator {
	return &LockedAllocator{fa: fa}
}

// Alloc allocates under the lock.
func (l *LockedAllocator) Alloc(size int) (Addr, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.fa.Alloc(size)
}

// Free releases under the lock.
func (l *LockedAllocator) Free(addr Addr) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.fa.Free(addr)
}

// WithPayload runs fn on the payload of addr while holding the lock. The slice
// must not escape fn: another goroutine's growth may remap the heap.
func (l *LockedAllocator) WithPayload(addr Addr, fn func([]byte)) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	p, err := l.fa.Payload(addr)
	if err != nil {
		return err
	}
	fn(p)
	return nil
}

// Check validates the heap under the lock.
func (l *LockedAllocator) Check() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.fa.Check()
}

// Usage summarizes the heap under the lock.
func (l *LockedAllocator) Usage() (Usage, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.fa.Usage()
}

// Stats returns the counters under the lock.
func (l *LockedAllocator) Stats() Stats {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.fa.Stats()
}

// FreeBlocks lists free blocks under the lock.
func (l *LockedAllocator) FreeBlocks() ([]walker.Block, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.fa.FreeBlocks()
}
