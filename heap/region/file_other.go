//go:build !linux && !darwin

package region

import (
	"fmt"
	"io"
	"os"
)

// File is a region backed by a file on platforms without the mmap path. The
// contents live in memory and are written back on SyncRange, Sync and Close.
type File struct {
	f     *os.File
	data  []byte
	limit int
}

// OpenFile loads the heap file at path, creating it when missing.
// A limit of 0 means unlimited.
func OpenFile(path string, limit int) (*File, error) {
	f, err := os.OpenFile(path, os.O_RDWR|os.O_CREATE, 0o644)
	if err != nil {
		return nil, err
	}

	st, err := f.Stat()
	if err != nil {
		f.Close()
		return nil, err
	}

	data := make([]byte, st.Size())
	if _, err := io.ReadFull(f, data); err != nil {
		f.Close()
		return nil, err
	}
	return &File{f: f, data: data, limit: limit}, nil
}

// Extend grows the file by n bytes and extends the in-memory buffer.
// The new bytes are zero-initialized.
func (r *File) Extend(n int) (int, error) {
	if r == nil || r.f == nil {
		return 0, ErrClosed
	}
	start := len(r.data)
	if err := checkGrowth(start, n, r.limit); err != nil {
		return 0, fmt.Errorf("file region: extend %d at %d (limit %d): %w", n, start, r.limit, err)
	}
	if err := r.f.Truncate(int64(start + n)); err != nil {
		return 0, fmt.Errorf("region: failed to extend file: %w: %w", ErrExhausted, err)
	}
	r.data = append(r.data, make([]byte, n)...)
	return start, nil
}

// Bytes returns the buffered contents.
func (r *File) Bytes() []byte { return r.data }

// Len returns the buffered length.
func (r *File) Len() int { return len(r.data) }

// Path returns the name of the backing file.
func (r *File) Path() string {
	if r.f == nil {
		return ""
	}
	return r.f.Name()
}

// SyncRange writes bytes [off, off+n) back to the file.
func (r *File) SyncRange(off, n int) error {
	if r == nil || r.f == nil {
		return ErrClosed
	}
	if n <= 0 || off >= len(r.data) {
		return nil
	}
	end := min(off+n, len(r.data))
	_, err := r.f.WriteAt(r.data[off:end], int64(off))
	return err
}

// Sync writes the whole buffer back and syncs the file.
func (r *File) Sync() error {
	if err := r.SyncRange(0, len(r.data)); err != nil {
		return err
	}
	return r.f.Sync()
}

// Close writes the buffer back and closes the file.
func (r *File) Close() error {
	if r.f == nil {
		return nil
	}
	err := r.SyncRange(0, len(r.data))
	if cerr := r.f.Close(); err == nil {
		err = cerr
	}
	r.f = nil
	r.data = nil
	return err
}
