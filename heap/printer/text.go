package printer

import (
	"fmt"

	"github.com/joshuapare/tagheap/heap/alloc"
	"github.com/joshuapare/tagheap/heap/walker"
)

func (p *Printer) printBlocksText(blocks []walker.Block) error {
	shown, hidden := p.selected(blocks)

	if _, err := fmt.Fprintf(p.writer, "%-12s %12s  %-9s %12s\n", "OFFSET", "SIZE", "STATE", "PAYLOAD"); err != nil {
		return err
	}
	for _, b := range shown {
		off := fmt.Sprintf("0x%08X", b.Offset)
		if _, err := p.num.Fprintf(p.writer, "%-12s %12d  %-9s %12d\n", off, b.Size, state(b), b.PayloadSize()); err != nil {
			return err
		}
	}
	if hidden > 0 {
		if _, err := p.num.Fprintf(p.writer, "... %d more blocks\n", hidden); err != nil {
			return err
		}
	}

	var total, free int
	for _, b := range blocks {
		total += b.Size
		if !b.Allocated {
			free++
		}
	}
	_, err := p.num.Fprintf(p.writer, "%d blocks (%d free), %d bytes\n", len(blocks), free, total)
	return err
}

func (p *Printer) printUsageText(u alloc.Usage) error {
	lines := []struct {
		label string
		value any
		unit  string
	}{
		{"Heap", u.HeapBytes, "bytes"},
		{"Blocks", u.Blocks, ""},
		{"Allocated", u.AllocatedBytes, "bytes"},
		{"Allocated blocks", u.AllocatedBlocks, ""},
		{"Free", u.FreeBytes, "bytes"},
		{"Free blocks", u.FreeBlocks, ""},
		{"Largest free", u.LargestFree, "bytes"},
	}
	for _, l := range lines {
		var err error
		if l.unit != "" {
			_, err = p.num.Fprintf(p.writer, "%-18s %d %s\n", l.label+":", l.value, l.unit)
		} else {
			_, err = p.num.Fprintf(p.writer, "%-18s %d\n", l.label+":", l.value)
		}
		if err != nil {
			return err
		}
	}
	_, err := p.num.Fprintf(p.writer, "%-18s %.2f%%\n", "Fragmentation:", u.Fragmentation()*100)
	return err
}

func (p *Printer) printStatsText(s alloc.Stats) error {
	_, err := p.num.Fprintf(p.writer,
		"Alloc calls:  %d (fast %d, slow %d)\n"+
			"Free calls:   %d\n"+
			"Allocated:    %d bytes\n"+
			"Freed:        %d bytes\n"+
			"Splits:       %d\n"+
			"Coalesces:    %d backward, %d forward\n"+
			"Growth:       %d calls, %d bytes\n",
		s.AllocCalls, s.AllocFastPath, s.AllocSlowPath,
		s.FreeCalls,
		s.BytesAllocated,
		s.BytesFreed,
		s.SplitCount,
		s.CoalesceBackward, s.CoalesceForward,
		s.GrowCalls, s.GrowBytes)
	return err
}
