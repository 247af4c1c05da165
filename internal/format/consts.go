// Package format defines the on-arena layout of heap blocks: the boundary tag
// word written at both ends of every block, the free-list link words stored in
// the payload of free blocks, and the alignment rules every block obeys.
//
// Block layout (all words little-endian uint64):
//
//	off+0          header  size | flag
//	off+8          payload (free blocks: next link)
//	off+16                 (free blocks: prev link)
//	off+size-8     footer  size | flag
//
// The size always covers the whole block, header and footer included.
package format

const (
	// WordSize is the width of a boundary tag or link word.
	WordSize = 8

	// HeaderSize is the size of the tag preceding every payload.
	HeaderSize = WordSize

	// FooterSize is the size of the tag closing every block.
	FooterSize = WordSize

	// Overhead is the metadata carried by every block regardless of state.
	Overhead = HeaderSize + FooterSize

	// Alignment is the fixed boundary for block sizes and offsets.
	Alignment = 8

	// AlignmentMask is used for round-up alignment.
	AlignmentMask = Alignment - 1

	// MinBlockSize is the smallest block that can carry both tags and the two
	// free-list links, so any freed allocation can rejoin the free list.
	MinBlockSize = Overhead + 2*WordSize

	// DefaultGrowthChunk is the default number of bytes requested from the
	// heap-growth primitive when no free block fits.
	DefaultGrowthChunk = 4096

	// NextLinkOffset and PrevLinkOffset locate the free-list links relative to
	// the block header.
	NextLinkOffset = HeaderSize
	PrevLinkOffset = HeaderSize + WordSize

	// NilLink terminates the free list.
	NilLink = ^uint64(0)

	// AllocatedFlag is bit 0 of a tag word. Sizes are multiples of 8, so the low
	// three bits are otherwise always clear.
	AllocatedFlag = uint64(1)

	// flagMask covers the bits of a tag word that never belong to the size.
	flagMask = uint64(AlignmentMask)
)
