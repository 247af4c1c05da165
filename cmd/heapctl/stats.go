package main

import (
	"fmt"
	"os"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"github.com/joshuapare/tagheap/heap/alloc"
	"github.com/joshuapare/tagheap/heap/printer"
	"github.com/joshuapare/tagheap/heap/walker"
	"github.com/joshuapare/tagheap/internal/mmfile"
)

func init() {
	rootCmd.AddCommand(newStatsCmd())
}

func newStatsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "stats <heapfile>",
		Short: "Show usage statistics for a heap file",
		Long: `The stats command summarizes a heap file: allocated and free bytes,
block counts, the largest free block, fragmentation and a size histogram.

Example:
  heapctl stats app.heap
  heapctl stats app.heap --json`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runStats(args)
		},
	}
	return cmd
}

// sizeBuckets are the histogram bucket upper bounds (exclusive).
var sizeBuckets = []int{64, 256, 1024, 4096, 16384}

type heapStats struct {
	Path          string         `json:"path"`
	FileSize      int64          `json:"file_size"`
	Usage         alloc.Usage    `json:"usage"`
	Fragmentation float64        `json:"fragmentation"`
	Allocated     map[string]int `json:"allocated_sizes"`
	Free          map[string]int `json:"free_sizes"`
}

func runStats(args []string) error {
	path := args[0]

	printVerbose("Mapping heap file: %s\n", path)
	fileInfo, err := os.Stat(path)
	if err != nil {
		return fmt.Errorf("failed to stat file: %w", err)
	}

	m, err := mmfile.Open(path)
	if err != nil {
		return fmt.Errorf("failed to open heap file: %w", err)
	}
	defer m.Close()

	usage, err := alloc.Summarize(m.Data)
	if err != nil {
		return fmt.Errorf("failed to walk heap: %w", err)
	}

	st := heapStats{
		Path:          path,
		FileSize:      fileInfo.Size(),
		Usage:         usage,
		Fragmentation: usage.Fragmentation(),
		Allocated:     make(map[string]int),
		Free:          make(map[string]int),
	}
	if err := walker.Walk(m.Data, func(b walker.Block) error {
		if b.Allocated {
			st.Allocated[bucketLabel(b.Size)]++
		} else {
			st.Free[bucketLabel(b.Size)]++
		}
		return nil
	}); err != nil {
		return err
	}

	if jsonOut {
		return printJSON(st)
	}

	printInfo("Heap file: %s\n", path)
	printInfo("Size: %s (%s bytes)\n\n", humanize.IBytes(uint64(st.FileSize)), humanize.Comma(st.FileSize))

	p, err := newPrinter(printer.DefaultOptions())
	if err != nil {
		return err
	}
	if !quiet {
		if err := p.PrintUsage(usage); err != nil {
			return err
		}
	}

	printInfo("\nBlock sizes:\n")
	printInfo("  %-12s %10s %10s\n", "RANGE", "ALLOCATED", "FREE")
	for _, label := range bucketLabels() {
		a, f := st.Allocated[label], st.Free[label]
		if a == 0 && f == 0 {
			continue
		}
		printInfo("  %-12s %10d %10d\n", label, a, f)
	}
	return nil
}

func bucketLabel(size int) string {
	lo := 0
	for _, hi := range sizeBuckets {
		if size < hi {
			return rangeLabel(lo, hi)
		}
		lo = hi
	}
	return ">=" + humanize.IBytes(uint64(lo))
}

func bucketLabels() []string {
	labels := make([]string, 0, len(sizeBuckets)+1)
	lo := 0
	for _, hi := range sizeBuckets {
		labels = append(labels, rangeLabel(lo, hi))
		lo = hi
	}
	return append(labels, ">="+humanize.IBytes(uint64(lo)))
}

func rangeLabel(lo, hi int) string {
	return fmt.Sprintf("%d-%d", lo, hi-1)
}
