// Package printer renders heap block maps and usage summaries as text or JSON.
package printer

import (
	"fmt"
	"io"

	"golang.org/x/text/language"
	"golang.org/x/text/message"

	"github.com/joshuapare/tagheap/heap/alloc"
	"github.com/joshuapare/tagheap/heap/walker"
)

// Format specifies the output format for printing.
type Format string

const (
	// FormatText outputs human-readable text with grouped digits.
	FormatText Format = "text"

	// FormatJSON outputs JSON.
	FormatJSON Format = "json"
)

// ParseFormat maps a flag value to a Format.
func ParseFormat(s string) (Format, error) {
	switch Format(s) {
	case FormatText, "":
		return FormatText, nil
	case FormatJSON:
		return FormatJSON, nil
	default:
		return "", fmt.Errorf("printer: unknown format %q (want text or json)", s)
	}
}

// Options controls printing behavior.
type Options struct {
	// Format specifies output format.
	// Default: FormatText
	Format Format

	// Language selects digit grouping for text output.
	// Default: language.English
	Language language.Tag

	// FreeOnly restricts block maps to free blocks.
	// Default: false
	FreeOnly bool

	// MaxBlocks limits how many blocks are listed (0 = unlimited). The
	// summary line still counts every block.
	// Default: 0
	MaxBlocks int
}

// DefaultOptions returns sensible defaults for printing.
func DefaultOptions() Options {
	return Options{
		Format:   FormatText,
		Language: language.English,
	}
}

// Printer handles formatted output of heap structures.
type Printer struct {
	opts   Options
	writer io.Writer
	num    *message.Printer
}

// New creates a Printer writing to w.
//
// Example:
//
//	blocks, _ := walker.Collect(data)
//	p := printer.New(os.Stdout, printer.DefaultOptions())
//	p.PrintBlocks(blocks)
func New(w io.Writer, opts Options) *Printer {
	if opts.Format == "" {
		opts.Format = FormatText
	}
	if opts.Language == language.Und {
		opts.Language = language.English
	}
	return &Printer{
		opts:   opts,
		writer: w,
		num:    message.NewPrinter(opts.Language),
	}
}

// PrintBlocks prints a block map in address order.
func (p *Printer) PrintBlocks(blocks []walker.Block) error {
	if p.opts.Format == FormatJSON {
		return p.printBlocksJSON(blocks)
	}
	return p.printBlocksText(blocks)
}

// PrintUsage prints a usage summary.
func (p *Printer) PrintUsage(u alloc.Usage) error {
	if p.opts.Format == FormatJSON {
		return p.printUsageJSON(u)
	}
	return p.printUsageText(u)
}

// PrintStats prints allocator counters.
func (p *Printer) PrintStats(s alloc.Stats) error {
	if p.opts.Format == FormatJSON {
		return p.printStatsJSON(s)
	}
	return p.printStatsText(s)
}

// selected applies FreeOnly and MaxBlocks.
func (p *Printer) selected(blocks []walker.Block) (shown []walker.Block, hidden int) {
	for _, b := range blocks {
		if p.opts.FreeOnly && b.Allocated {
			continue
		}
		if p.opts.MaxBlocks > 0 && len(shown) >= p.opts.MaxBlocks {
			hidden++
			continue
		}
		shown = append(shown, b)
	}
	return shown, hidden
}

func state(b walker.Block) string {
	if b.Allocated {
		return "allocated"
	}
	return "free"
}
