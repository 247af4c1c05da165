package printer

import (
	"encoding/json"

	"github.com/joshuapare/tagheap/heap/alloc"
	"github.com/joshuapare/tagheap/heap/walker"
)

// jsonBlock represents one block in JSON format.
type jsonBlock struct {
	Offset    int  `json:"offset"`
	Size      int  `json:"size"`
	Allocated bool `json:"allocated"`
	Payload   int  `json:"payload"`
}

// jsonBlockMap is the top-level block map document.
type jsonBlockMap struct {
	Blocks     []jsonBlock `json:"blocks"`
	Hidden     int         `json:"hidden,omitempty"`
	Count      int         `json:"count"`
	FreeCount  int         `json:"free_count"`
	TotalBytes int         `json:"total_bytes"`
}

// jsonUsage adds the derived fragmentation ratio to alloc.Usage.
type jsonUsage struct {
	alloc.Usage
	Fragmentation float64 `json:"fragmentation"`
}

func (p *Printer) printBlocksJSON(blocks []walker.Block) error {
	shown, hidden := p.selected(blocks)

	doc := jsonBlockMap{
		Blocks: make([]jsonBlock, 0, len(shown)),
		Hidden: hidden,
		Count:  len(blocks),
	}
	for _, b := range shown {
		doc.Blocks = append(doc.Blocks, jsonBlock{
			Offset:    b.Offset,
			Size:      b.Size,
			Allocated: b.Allocated,
			Payload:   b.PayloadSize(),
		})
	}
	for _, b := range blocks {
		doc.TotalBytes += b.Size
		if !b.Allocated {
			doc.FreeCount++
		}
	}
	return p.encode(doc)
}

func (p *Printer) printUsageJSON(u alloc.Usage) error {
	return p.encode(jsonUsage{Usage: u, Fragmentation: u.Fragmentation()})
}

func (p *Printer) printStatsJSON(s alloc.Stats) error {
	return p.encode(s)
}

func (p *Printer) encode(v any) error {
	enc := json.NewEncoder(p.writer)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
