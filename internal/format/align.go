package format

// Align8 returns n aligned up to the next 8-byte boundary.
//
// Example:
//
//	Align8(1)  = 8
//	Align8(8)  = 8
//	Align8(9)  = 16
//	Align8(16) = 16
func Align8(n int) int {
	return (n + AlignmentMask) & ^AlignmentMask
}

// IsAligned reports whether n sits on the 8-byte boundary.
func IsAligned(n int) bool {
	return n&AlignmentMask == 0
}

// BlockSizeFor returns the total block size needed to hold a payload of n
// bytes: the payload plus both tags, aligned and clamped to MinBlockSize.
// The second result is false when the computation overflows int.
//
// Example:
//
//	BlockSizeFor(1)  = 32 (clamped)
//	BlockSizeFor(16) = 32
//	BlockSizeFor(17) = 40
func BlockSizeFor(n int) (int, bool) {
	if n < 0 || n > maxInt-Overhead-AlignmentMask {
		return 0, false
	}
	total := Align8(n + Overhead)
	if total < MinBlockSize {
		total = MinBlockSize
	}
	return total, true
}

const maxInt = int(^uint(0) >> 1)
