package main

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"github.com/joshuapare/tagheap/heap/alloc"
	"github.com/joshuapare/tagheap/heap/dirty"
	"github.com/joshuapare/tagheap/heap/printer"
	"github.com/joshuapare/tagheap/heap/region"
	"github.com/joshuapare/tagheap/heap/trace"
	"github.com/joshuapare/tagheap/internal/config"
	"github.com/joshuapare/tagheap/internal/logger"
)

var (
	replayFile      string
	replayLimit     config.ByteSize
	replayGrowth    config.ByteSize
	replayHardened  bool
	replayCheckEach bool
	replayFill      bool
)

func init() {
	cmd := newReplayCmd()
	cmd.Flags().StringVar(&replayFile, "file", "", "Back the heap with this file (created if missing, adopted if not empty)")
	cmd.Flags().Var(&replayLimit, "limit", "Maximum heap size, e.g. 1MiB (0 = default ceiling for in-memory heaps)")
	cmd.Flags().Var(&replayGrowth, "growth", "Minimum growth chunk, e.g. 4KiB")
	cmd.Flags().BoolVar(&replayHardened, "hardened", false, "Validate every free against a heap walk")
	cmd.Flags().BoolVar(&replayCheckEach, "check-each", false, "Check all heap invariants after every step")
	cmd.Flags().BoolVar(&replayFill, "fill", false, "Fill payloads with a pattern and verify it on free")
	rootCmd.AddCommand(cmd)
}

func newReplayCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "replay <trace.yaml>",
		Short: "Replay an allocation trace",
		Long: `The replay command runs a YAML allocation trace against a fresh in-memory
heap, or against a heap file when --file is given. Allocation failures are
reported and replay continues; contract violations stop it.

Example:
  heapctl replay trace.yaml
  heapctl replay trace.yaml --limit 64KiB --check-each
  heapctl replay trace.yaml --file app.heap --hardened --json`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			applyReplayFlags(cmd)
			return runReplay(cmd.Context(), args)
		},
	}
	return cmd
}

// applyReplayFlags lets config values stand in for flags that were not given.
func applyReplayFlags(cmd *cobra.Command) {
	if !cmd.Flags().Changed("limit") {
		replayLimit = cfg.Heap.Limit
	}
	if !cmd.Flags().Changed("growth") {
		replayGrowth = cfg.Heap.GrowthChunk
	}
	if !cmd.Flags().Changed("hardened") {
		replayHardened = cfg.Heap.Hardened
	}
}

type replayReport struct {
	Trace  *trace.Result `json:"trace"`
	Usage  alloc.Usage   `json:"usage"`
	Stats  alloc.Stats   `json:"stats"`
	File   string        `json:"file,omitempty"`
	Failed string        `json:"error,omitempty"`
}

func runReplay(ctx context.Context, args []string) error {
	if ctx == nil {
		ctx = context.Background()
	}
	tracePath := args[0]

	printVerbose("Loading trace: %s\n", tracePath)
	tr, err := trace.LoadFile(tracePath)
	if err != nil {
		return err
	}

	r, tracker, closeFn, err := openReplayRegion()
	if err != nil {
		return err
	}
	defer closeFn()

	acfg := cfg.AllocConfig()
	acfg.GrowthChunk = replayGrowth.Int()
	acfg.Hardened = replayHardened
	acfg.Logger = logger.Component("alloc")
	if tracker != nil {
		acfg.Tracker = tracker
	}

	fa, err := alloc.New(r, acfg)
	if err != nil {
		return fmt.Errorf("open heap: %w", err)
	}
	if r.Len() > 0 {
		printVerbose("Adopted existing heap of %s\n", humanize.IBytes(uint64(r.Len())))
	}

	logger.Info("replay: start", "trace", tr.Name, "ops", len(tr.Ops), "hardened", replayHardened)
	res, replayErr := trace.Replay(ctx, fa, tr, trace.Options{
		CheckEach: replayCheckEach,
		Fill:      replayFill,
	})

	if tracker != nil {
		if err := tracker.Flush(ctx, dirty.FlushFull); err != nil {
			return errors.Join(replayErr, fmt.Errorf("flush heap file: %w", err))
		}
	}

	usage, err := fa.Usage()
	if err != nil {
		return errors.Join(replayErr, err)
	}

	if jsonOut {
		rep := replayReport{Trace: res, Usage: usage, Stats: fa.Stats(), File: replayFile}
		if replayErr != nil {
			rep.Failed = replayErr.Error()
		}
		if err := printJSON(rep); err != nil {
			return err
		}
		return replayErr
	}

	printInfo("Trace %q: %d ops, %d allocs, %d frees, %d grows, %d checks\n",
		res.Name, res.Ops, res.Allocs, res.Frees, res.Grows, res.Checks)
	printInfo("Heap: %s, %d live allocations\n", humanize.IBytes(uint64(usage.HeapBytes)), res.Live)
	if len(res.Failures) > 0 {
		printInfo("Allocation failures: %d\n", len(res.Failures))
		for _, f := range res.Failures {
			printVerbose("  op %d: %s (%s): %s\n", f.Index, f.ID, humanize.IBytes(uint64(f.Size)), f.Err)
		}
	}

	if verbose && !quiet {
		p, err := newPrinter(printer.DefaultOptions())
		if err != nil {
			return err
		}
		printInfo("\n")
		if err := p.PrintUsage(usage); err != nil {
			return err
		}
		printInfo("\n")
		if err := p.PrintStats(fa.Stats()); err != nil {
			return err
		}
	}
	return replayErr
}

// openReplayRegion returns the heap region for replay plus a dirty tracker
// when the heap is file-backed.
func openReplayRegion() (region.Region, *dirty.Tracker, func(), error) {
	if replayFile == "" {
		return region.NewMemory(replayLimit.Int()), nil, func() {}, nil
	}

	printVerbose("Opening heap file: %s\n", replayFile)
	fr, err := region.OpenFile(replayFile, replayLimit.Int())
	if err != nil {
		return nil, nil, nil, fmt.Errorf("open heap file: %w", err)
	}
	tracker := dirty.NewTracker(fr)
	if cfg.Heap.PageSize > 0 {
		tracker.SetPageSize(cfg.Heap.PageSize.Int())
	} else {
		tracker.SetPageSize(os.Getpagesize())
	}
	closeFn := func() {
		if err := fr.Close(); err != nil {
			logger.Warn("replay: close heap file", "path", replayFile, "err", err)
		}
	}
	return fr, tracker, closeFn, nil
}
