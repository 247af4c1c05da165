package format

import "errors"

var (
	// ErrTruncated indicates the buffer lacked the bytes required for a tag.
	ErrTruncated = errors.New("format: truncated buffer")
	// ErrBadTag indicates a tag word whose reserved bits are set or whose size is
	// misaligned, below the minimum block size, or overruns the buffer.
	ErrBadTag = errors.New("format: malformed boundary tag")
	// ErrTagMismatch indicates a block whose header and footer disagree.
	ErrTagMismatch = errors.New("format: header/footer mismatch")
)
