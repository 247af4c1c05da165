package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/signal"

	"github.com/spf13/cobra"

	"github.com/joshuapare/tagheap/heap/printer"
	"github.com/joshuapare/tagheap/internal/config"
	"github.com/joshuapare/tagheap/internal/logger"
)

var (
	// Global flags
	verbose    bool
	quiet      bool
	jsonOut    bool
	configPath string

	// cfg is loaded before every command runs.
	cfg = config.Default()
)

var rootCmd = &cobra.Command{
	Use:   "heapctl",
	Short: "Replay allocation traces and inspect boundary-tag heap files",
	Long: `heapctl drives the first-fit boundary-tag allocator. It replays YAML
allocation traces against an in-memory or file-backed heap, and checks, dumps
and summarizes heap files left on disk.`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		loaded, err := config.Load(configPath)
		if err != nil {
			return err
		}
		cfg = loaded
		if cfg.Output.Format == "json" {
			jsonOut = true
		}
		return logger.Init(cfg.LoggerOptions())
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "Path to a YAML config file")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Enable verbose output")
	rootCmd.PersistentFlags().
		BoolVarP(&quiet, "quiet", "q", false, "Suppress all output except errors")
	rootCmd.PersistentFlags().BoolVar(&jsonOut, "json", false, "Output in JSON format")
}

func execute() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, err)
		stop()
		os.Exit(1)
	}
}

// Helper functions for output

// printInfo prints an info message if not in quiet mode
func printInfo(format string, args ...any) {
	if !quiet {
		fmt.Fprintf(os.Stdout, format, args...)
	}
}

// printVerbose prints a verbose message if verbose mode is enabled
func printVerbose(format string, args ...any) {
	if verbose && !quiet {
		fmt.Fprintf(os.Stdout, format, args...)
	}
}

// printJSON outputs data as JSON
func printJSON(v any) error {
	encoder := json.NewEncoder(os.Stdout)
	encoder.SetIndent("", "  ")
	return encoder.Encode(v)
}

// newPrinter builds a printer honoring --json and the output config.
func newPrinter(opts printer.Options) (*printer.Printer, error) {
	if jsonOut {
		opts.Format = printer.FormatJSON
	} else {
		f, err := printer.ParseFormat(cfg.Output.Format)
		if err != nil {
			return nil, err
		}
		opts.Format = f
	}
	tag, err := cfg.LanguageTag()
	if err != nil {
		return nil, err
	}
	opts.Language = tag
	return printer.New(os.Stdout, opts), nil
}
