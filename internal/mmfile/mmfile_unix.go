//go:build unix

package mmfile

import (
	"fmt"
	"os"

	"golang.org/x/sys/unix"
)

// Open maps the file at path read-only. A zero-length file yields an empty
// mapping.
func Open(path string) (*Mapping, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close() // the mapping keeps the pages alive

	info, err := f.Stat()
	if err != nil {
		return nil, err
	}
	size := info.Size()
	if size == 0 {
		return &Mapping{Data: []byte{}, Path: path}, nil
	}
	if size > int64(^uint(0)>>1) {
		return nil, fmt.Errorf("%w (%d bytes)", ErrTooLarge, size)
	}

	data, err := unix.Mmap(int(f.Fd()), 0, int(size), unix.PROT_READ, unix.MAP_SHARED)
	if err != nil {
		return nil, fmt.Errorf("mmfile: map %s: %w", path, err)
	}
	return &Mapping{
		Data:  data,
		Path:  path,
		close: func() error { return unix.Munmap(data) },
	}, nil
}
