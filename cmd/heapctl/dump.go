package main

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/joshuapare/tagheap/heap/printer"
	"github.com/joshuapare/tagheap/heap/walker"
	"github.com/joshuapare/tagheap/internal/mmfile"
)

var (
	dumpFreeOnly  bool
	dumpMaxBlocks int
)

func init() {
	cmd := newDumpCmd()
	cmd.Flags().BoolVar(&dumpFreeOnly, "free", false, "List free blocks only")
	cmd.Flags().IntVar(&dumpMaxBlocks, "max", 0, "List at most this many blocks (0 = all)")
	rootCmd.AddCommand(cmd)
}

func newDumpCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "dump <heapfile>",
		Short: "Print the block map of a heap file",
		Long: `The dump command walks a heap file in address order and prints every
block with its offset, size, state and payload size. A malformed block stops
the walk; the blocks before it are still printed.

Example:
  heapctl dump app.heap
  heapctl dump app.heap --free
  heapctl dump app.heap --max 20 --json`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runDump(args)
		},
	}
	return cmd
}

func runDump(args []string) error {
	path := args[0]

	printVerbose("Mapping heap file: %s\n", path)
	m, err := mmfile.Open(path)
	if err != nil {
		return fmt.Errorf("failed to open heap file: %w", err)
	}
	defer m.Close()

	blocks, walkErr := walker.Collect(m.Data)

	opts := printer.DefaultOptions()
	opts.FreeOnly = dumpFreeOnly
	opts.MaxBlocks = dumpMaxBlocks
	p, err := newPrinter(opts)
	if err != nil {
		return err
	}
	if !quiet || jsonOut {
		if err := p.PrintBlocks(blocks); err != nil {
			return errors.Join(walkErr, err)
		}
	}

	if walkErr != nil {
		return fmt.Errorf("walk stopped after %d blocks: %w", len(blocks), walkErr)
	}
	return nil
}
