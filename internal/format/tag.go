package format

// Tag is the decoded form of a boundary tag word.
type Tag struct {
	Size      int
	Allocated bool
}

// Word encodes the tag into its on-arena representation.
func (t Tag) Word() uint64 {
	w := uint64(t.Size) //nolint:gosec // sizes are validated non-negative by callers
	if t.Allocated {
		w |= AllocatedFlag
	}
	return w
}

// DecodeTag splits a tag word into size and allocation flag.
// Bits 1-2 are reserved and must be zero; DecodeTag reports false otherwise.
func DecodeTag(w uint64) (Tag, bool) {
	if w&(flagMask&^AllocatedFlag) != 0 {
		return Tag{}, false
	}
	size := w &^ flagMask
	if size > uint64(maxInt) {
		return Tag{}, false
	}
	return Tag{Size: int(size), Allocated: w&AllocatedFlag != 0}, true
}

// PutTag writes the tag at off.
func PutTag(b []byte, off int, t Tag) {
	PutU64(b, off, t.Word())
}

// PutTags writes identical header and footer tags for the block at off.
func PutTags(b []byte, off int, t Tag) {
	w := t.Word()
	PutU64(b, off, w)
	PutU64(b, off+t.Size-FooterSize, w)
}

// FooterOffset returns where the footer of the block at off with the given
// size lives.
func FooterOffset(off, size int) int {
	return off + size - FooterSize
}
