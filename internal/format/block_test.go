package format

import (
	"errors"
	"testing"
)

func TestReadBlockAllocated(t *testing.T) {
	buf := make([]byte, 128)
	PutTags(buf, 0, Tag{Size: 48, Allocated: true})
	PutTags(buf, 48, Tag{Size: 80})

	blk, err := ReadBlock(buf, 0)
	if err != nil {
		t.Fatalf("ReadBlock: %v", err)
	}
	if !blk.Allocated || blk.Size != 48 {
		t.Fatalf("unexpected block: %+v", blk)
	}
	if blk.End() != 48 || blk.PayloadOffset() != 8 || blk.PayloadSize() != 32 {
		t.Fatalf("unexpected geometry: end=%d payload=%d/%d", blk.End(), blk.PayloadOffset(), blk.PayloadSize())
	}

	next, err := ReadBlock(buf, blk.End())
	if err != nil {
		t.Fatalf("ReadBlock(next): %v", err)
	}
	if next.Allocated || next.Size != 80 {
		t.Fatalf("unexpected next block: %+v", next)
	}
}

func TestReadBlockBefore(t *testing.T) {
	buf := make([]byte, 96)
	PutTags(buf, 0, Tag{Size: 64})
	PutTags(buf, 64, Tag{Size: 32, Allocated: true})

	prev, err := ReadBlockBefore(buf, 64)
	if err != nil {
		t.Fatalf("ReadBlockBefore: %v", err)
	}
	if prev.Offset != 0 || prev.Size != 64 || prev.Allocated {
		t.Fatalf("unexpected preceding block: %+v", prev)
	}
}

func TestReadBlockMismatchedFooter(t *testing.T) {
	buf := make([]byte, 64)
	PutTags(buf, 0, Tag{Size: 64})
	PutTag(buf, FooterOffset(0, 64), Tag{Size: 64, Allocated: true})

	_, err := ReadBlock(buf, 0)
	if !errors.Is(err, ErrTagMismatch) {
		t.Fatalf("expected ErrTagMismatch, got %v", err)
	}
}

func TestReadBlockRejectsBadSizes(t *testing.T) {
	cases := []struct {
		name string
		word uint64
		want error
	}{
		{"zero", 0, ErrBadTag},
		{"below minimum", 16, ErrBadTag},
		{"reserved bits", 32 | 2, ErrBadTag},
		{"overruns arena", 128, ErrTruncated},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			buf := make([]byte, 64)
			PutU64(buf, 0, tc.word)
			if _, err := ReadBlock(buf, 0); !errors.Is(err, tc.want) {
				t.Fatalf("expected %v, got %v", tc.want, err)
			}
		})
	}
}

func TestReadBlockMisalignedOffset(t *testing.T) {
	buf := make([]byte, 64)
	if _, err := ReadBlock(buf, 4); !errors.Is(err, ErrBadTag) {
		t.Fatalf("expected ErrBadTag for misaligned offset, got %v", err)
	}
}

func TestLinksRoundTrip(t *testing.T) {
	buf := make([]byte, 32)
	PutTags(buf, 0, Tag{Size: 32})
	PutLinks(buf, 0, NilLink, 96)

	next, prev, err := ReadLinks(buf, 0)
	if err != nil {
		t.Fatalf("ReadLinks: %v", err)
	}
	if next != NilLink || prev != 96 {
		t.Fatalf("links = %d,%d want nil,96", next, prev)
	}
	if _, _, err := ReadLinks(buf[:16], 0); !errors.Is(err, ErrTruncated) {
		t.Fatalf("expected ErrTruncated for short buffer, got %v", err)
	}
}
