package main

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/joshuapare/tagheap/heap/alloc"
	"github.com/joshuapare/tagheap/heap/region"
	"github.com/joshuapare/tagheap/heap/verify"
	"github.com/joshuapare/tagheap/internal/mmfile"
)

func init() {
	rootCmd.AddCommand(newCheckCmd())
}

func newCheckCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "check <heapfile>",
		Short: "Validate a heap file",
		Long: `The check command maps a heap file read-only and validates every block:
matching header and footer tags, alignment, exact tiling of the file and no
two adjacent free blocks. It then rebuilds the free list in memory and checks
its links.

Example:
  heapctl check app.heap
  heapctl check app.heap --json`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runCheck(args)
		},
	}
	return cmd
}

type checkResult struct {
	Path   string                  `json:"path"`
	Valid  bool                    `json:"valid"`
	Bytes  int                     `json:"bytes"`
	Blocks int                     `json:"blocks"`
	Error  *verify.ValidationError `json:"error,omitempty"`
}

func runCheck(args []string) error {
	path := args[0]

	printVerbose("Mapping heap file: %s\n", path)
	m, err := mmfile.Open(path)
	if err != nil {
		return fmt.Errorf("failed to open heap file: %w", err)
	}
	defer m.Close()

	res := checkResult{Path: path, Bytes: m.Len()}
	checkErr := checkHeap(m.Data)
	if checkErr == nil {
		res.Valid = true
		u, err := alloc.Summarize(m.Data)
		if err != nil {
			return err
		}
		res.Blocks = u.Blocks
	} else {
		var ve *verify.ValidationError
		if !errors.As(checkErr, &ve) {
			return checkErr
		}
		res.Error = ve
	}

	if jsonOut {
		if err := printJSON(res); err != nil {
			return err
		}
	} else if res.Valid {
		printInfo("OK: %s (%d bytes, %d blocks)\n", path, res.Bytes, res.Blocks)
	} else {
		printInfo("INVALID: %s\n", path)
		printInfo("  %s at offset 0x%X: %s\n", res.Error.Type, res.Error.Offset, res.Error.Message)
		for k, v := range res.Error.Details {
			printVerbose("  %s: %v\n", k, v)
		}
	}

	if !res.Valid {
		return fmt.Errorf("heap file %s failed validation", path)
	}
	return nil
}

// checkHeap validates the block structure of data, then rebuilds a free list
// over a private copy and validates that too.
func checkHeap(data []byte) error {
	if err := verify.Blocks(data); err != nil {
		return err
	}
	fa, err := alloc.New(region.NewMemoryFrom(data, 0), nil)
	if err != nil {
		return err
	}
	blocks, err := fa.FreeBlocks()
	if err != nil {
		return err
	}
	printVerbose("Free list: %d blocks\n", len(blocks))
	return verify.AllInvariants(fa.Region().Bytes(), fa.FreeListHead())
}
