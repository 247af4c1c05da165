// Package buf contains helpers for bounds-checked, endian-safe access to the
// heap arena.
package buf

import "encoding/binary"

// Word reads the little-endian uint64 at b[off:off+8]. The second result is
// false when the word does not fit inside b.
func Word(b []byte, off int) (uint64, bool) {
	s, ok := Slice(b, off, 8)
	if !ok {
		return 0, false
	}
	return binary.LittleEndian.Uint64(s), true
}
