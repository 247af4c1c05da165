// Package walker traverses the blocks of a heap arena in address order.
//
// Traversal only needs the boundary tags: each header gives the size of its
// block, which locates the next header. Every block is validated on the way
// (alignment, minimum size, bounds, header == footer), so a walk doubles as a
// cheap structural check.
package walker

import (
	"errors"
	"fmt"
	"io"

	"github.com/joshuapare/tagheap/internal/format"
)

// Block is a decoded block of the arena.
type Block = format.Block

// ErrStop can be returned by a Walk callback to end the walk early without error.
var ErrStop = errors.New("walker: stop")

// Iterator yields the blocks of an arena one at a time.
type Iterator struct {
	data []byte
	off  int
	done bool
}

// NewIterator returns an iterator positioned at the first block.
func NewIterator(data []byte) *Iterator {
	return &Iterator{data: data}
}

// Next returns the next block, io.EOF at the end of the arena, or a
// descriptive error when a malformed block is found. After an error the
// iterator is exhausted.
func (it *Iterator) Next() (Block, error) {
	if it.done || it.off >= len(it.data) {
		it.done = true
		return Block{}, io.EOF
	}

	blk, err := format.ReadBlock(it.data, it.off)
	if err != nil {
		it.done = true
		return Block{}, fmt.Errorf("walker: %w", err)
	}
	it.off = blk.End()
	return blk, nil
}

// Walk calls fn for every block in address order. Returning ErrStop from fn
// ends the walk and Walk returns nil; any other error is returned as is.
func Walk(data []byte, fn func(Block) error) error {
	it := NewIterator(data)
	for {
		blk, err := it.Next()
		if errors.Is(err, io.EOF) {
			return nil
		}
		if err != nil {
			return err
		}
		if err := fn(blk); err != nil {
			if errors.Is(err, ErrStop) {
				return nil
			}
			return err
		}
	}
}

// Collect returns all blocks of the arena.
func Collect(data []byte) ([]Block, error) {
	var blocks []Block
	err := Walk(data, func(b Block) error {
		blocks = append(blocks, b)
		return nil
	})
	return blocks, err
}

// Find returns the block whose header is exactly at off. The second result is
// false when off is not the start of a block (including interior offsets).
func Find(data []byte, off int) (Block, bool, error) {
	var (
		found Block
		ok    bool
	)
	err := Walk(data, func(b Block) error {
		if b.Offset == off {
			found, ok = b, true
			return ErrStop
		}
		if b.Offset > off {
			return ErrStop
		}
		return nil
	})
	return found, ok, err
}
