package buf

// Fits reports whether the range [off, off+n) lies inside a buffer of the
// given size. The comparison is done against the room left after off, so it
// cannot overflow for any int inputs.
func Fits(size, off, n int) bool {
	return off >= 0 && n >= 0 && off <= size && n <= size-off
}

// Has reports whether b[off:off+n] is within bounds.
func Has(b []byte, off, n int) bool {
	return Fits(len(b), off, n)
}

// Slice returns b[off:off+n] with its capacity clipped to the range, so
// appends through the result never spill into neighboring bytes.
func Slice(b []byte, off, n int) ([]byte, bool) {
	if !Fits(len(b), off, n) {
		return nil, false
	}
	return b[off : off+n : off+n], true
}
