package format

import (
	"fmt"

	"github.com/joshuapare/tagheap/internal/buf"
)

// Block is one decoded block of the arena.
//
// Layout (little-endian):
//
//	Offset      Size  Description
//	0x00        8     Header tag: size | allocated flag.
//	0x08        ...   Payload. Free blocks keep next/prev links in the first 16 bytes.
//	size-8      8     Footer tag, identical to the header.
type Block struct {
	Offset    int  // Offset of the header within the arena
	Size      int  // Total size including both tags
	Allocated bool // True when the allocated flag is set
}

// End returns the offset just past the block's footer.
func (b Block) End() int { return b.Offset + b.Size }

// PayloadOffset returns the offset of the first payload byte.
func (b Block) PayloadOffset() int { return b.Offset + HeaderSize }

// PayloadSize returns the number of caller-visible bytes.
func (b Block) PayloadSize() int { return b.Size - Overhead }

// Tag returns the boundary tag describing the block.
func (b Block) Tag() Tag { return Tag{Size: b.Size, Allocated: b.Allocated} }

// ReadTag decodes the tag word at off with bounds checking.
func ReadTag(b []byte, off int) (Tag, error) {
	w, ok := buf.Word(b, off)
	if !ok {
		return Tag{}, fmt.Errorf("tag at %d: %w", off, ErrTruncated)
	}
	t, ok := DecodeTag(w)
	if !ok {
		return Tag{}, fmt.Errorf("tag at %d (0x%X): %w", off, w, ErrBadTag)
	}
	return t, nil
}

// ReadBlock decodes the block whose header sits at off and validates it: the
// header must describe an aligned block of at least MinBlockSize that fits in
// b, and the footer must repeat the header exactly.
func ReadBlock(b []byte, off int) (Block, error) {
	if off < 0 || !IsAligned(off) {
		return Block{}, fmt.Errorf("block at %d: misaligned offset: %w", off, ErrBadTag)
	}
	hdr, err := ReadTag(b, off)
	if err != nil {
		return Block{}, fmt.Errorf("block header: %w", err)
	}
	if err := checkSize(b, off, hdr.Size); err != nil {
		return Block{}, err
	}
	ftr, err := ReadTag(b, FooterOffset(off, hdr.Size))
	if err != nil {
		return Block{}, fmt.Errorf("block footer: %w", err)
	}
	if ftr != hdr {
		return Block{}, fmt.Errorf("block at %d: header %d/%t, footer %d/%t: %w",
			off, hdr.Size, hdr.Allocated, ftr.Size, ftr.Allocated, ErrTagMismatch)
	}
	return Block{Offset: off, Size: hdr.Size, Allocated: hdr.Allocated}, nil
}

// ReadBlockBefore decodes the block that ends exactly at end, locating it
// through the footer word immediately preceding end.
func ReadBlockBefore(b []byte, end int) (Block, error) {
	ftr, err := ReadTag(b, end-FooterSize)
	if err != nil {
		return Block{}, fmt.Errorf("preceding footer: %w", err)
	}
	if ftr.Size < MinBlockSize || ftr.Size > end {
		return Block{}, fmt.Errorf("preceding footer at %d: size %d: %w", end-FooterSize, ftr.Size, ErrBadTag)
	}
	return ReadBlock(b, end-ftr.Size)
}

func checkSize(b []byte, off, size int) error {
	if size < MinBlockSize || !IsAligned(size) {
		return fmt.Errorf("block at %d: size %d: %w", off, size, ErrBadTag)
	}
	if !buf.Has(b, off, size) {
		return fmt.Errorf("block at %d: size %d exceeds arena (len=%d): %w", off, size, len(b), ErrTruncated)
	}
	return nil
}

// PutLinks writes the free-list links of the free block at off.
func PutLinks(b []byte, off int, next, prev uint64) {
	PutU64(b, off+NextLinkOffset, next)
	PutU64(b, off+PrevLinkOffset, prev)
}

// ReadLinks returns the free-list links of the free block at off.
func ReadLinks(b []byte, off int) (next, prev uint64, err error) {
	n, ok := buf.Word(b, off+NextLinkOffset)
	if !ok {
		return 0, 0, fmt.Errorf("next link of block %d: %w", off, ErrTruncated)
	}
	p, ok := buf.Word(b, off+PrevLinkOffset)
	if !ok {
		return 0, 0, fmt.Errorf("prev link of block %d: %w", off, ErrTruncated)
	}
	return n, p, nil
}
