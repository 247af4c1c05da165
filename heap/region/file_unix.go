//go:build linux || darwin

package region

import (
	"fmt"
	"os"

	"golang.org/x/sys/unix"
)

// File is a region backed by a memory-mapped file. Growth extends the file
// and remaps it; the bytes already written keep their offsets.
type File struct {
	f     *os.File
	data  []byte
	limit int
}

// OpenFile maps the heap file at path read-write, creating it when missing.
// An empty file yields an empty region. A limit of 0 means unlimited.
func OpenFile(path string, limit int) (*File, error) {
	f, err := os.OpenFile(path, os.O_RDWR|os.O_CREATE, 0o644)
	if err != nil {
		return nil, err
	}

	st, err := f.Stat()
	if err != nil {
		_ = f.Close()
		return nil, err
	}
	sz := st.Size()
	if sz > int64(maxLen) {
		_ = f.Close()
		return nil, fmt.Errorf("region: file too large to map (%d bytes)", sz)
	}

	r := &File{f: f, limit: limit}
	if sz == 0 {
		return r, nil
	}

	data, err := mapFile(f, int(sz))
	if err != nil {
		_ = f.Close()
		return nil, fmt.Errorf("mmap failed: %w", err)
	}
	r.data = data
	return r, nil
}

func mapFile(f *os.File, size int) ([]byte, error) {
	return unix.Mmap(int(f.Fd()), 0, size, unix.PROT_READ|unix.PROT_WRITE, unix.MAP_SHARED)
}

// Extend grows the file by n bytes and maps the larger file. The old mapping
// is released only once the new one exists, so a failure leaves the region as
// it was. The new bytes are zero-initialized by the OS.
func (r *File) Extend(n int) (int, error) {
	if r == nil || r.f == nil {
		return 0, ErrClosed
	}
	start := len(r.data)
	if err := checkGrowth(start, n, r.limit); err != nil {
		return 0, fmt.Errorf("file region: extend %d at %d (limit %d): %w", n, start, r.limit, err)
	}
	newSize := start + n

	if err := r.f.Truncate(int64(newSize)); err != nil {
		_ = r.f.Truncate(int64(start))
		return 0, fmt.Errorf("region: failed to truncate file: %w: %w", ErrExhausted, err)
	}

	data, err := mapFile(r.f, newSize)
	if err != nil {
		_ = r.f.Truncate(int64(start))
		return 0, fmt.Errorf("region: failed to map grown file: %w: %w", ErrExhausted, err)
	}

	if r.data != nil {
		// Both mappings share the file's pages; an unmap failure only leaks
		// address space.
		_ = unix.Munmap(r.data)
	}
	r.data = data
	return start, nil
}

// Bytes returns the mapped contents.
func (r *File) Bytes() []byte { return r.data }

// Len returns the mapped length.
func (r *File) Len() int { return len(r.data) }

// Path returns the name of the backing file.
func (r *File) Path() string {
	if r.f == nil {
		return ""
	}
	return r.f.Name()
}

// SyncRange flushes the pages covering [off, off+n) with msync.
// The range is widened to page boundaries as msync requires.
func (r *File) SyncRange(off, n int) error {
	if r == nil || r.f == nil {
		return ErrClosed
	}
	if n <= 0 || off >= len(r.data) {
		return nil
	}
	page := os.Getpagesize()
	start := (off / page) * page
	end := min(off+n, len(r.data))
	return unix.Msync(r.data[start:end], unix.MS_SYNC)
}

// Sync flushes the whole mapping and the file descriptor.
func (r *File) Sync() error {
	if r == nil || r.f == nil {
		return ErrClosed
	}
	if len(r.data) > 0 {
		if err := unix.Msync(r.data, unix.MS_SYNC); err != nil {
			return err
		}
	}
	return r.f.Sync()
}

// Close unmaps the region and closes the file.
func (r *File) Close() error {
	var err error
	if r.data != nil {
		_ = unix.Munmap(r.data)
		r.data = nil
	}
	if r.f != nil {
		err = r.f.Close()
		r.f = nil
	}
	return err
}
