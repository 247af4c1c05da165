package main

import (
	"fmt"
	"runtime"
	"runtime/debug"

	"github.com/spf13/cobra"

	"github.com/joshuapare/tagheap/internal/format"
)

// Set with -ldflags "-X main.version=... -X main.commit=... -X main.date=...".
// Unset values fall back to the VCS stamp in the binary's build info.
var (
	version = "dev"
	commit  = ""
	date    = ""
)

// buildInfo describes the binary and the heap layout it reads and writes.
type buildInfo struct {
	Version   string `json:"version"`
	Commit    string `json:"commit"`
	Built     string `json:"built"`
	Modified  bool   `json:"modified,omitempty"`
	GoVersion string `json:"go_version"`
	Layout    struct {
		Alignment   int `json:"alignment"`
		TagSize     int `json:"tag_size"`
		MinBlock    int `json:"min_block"`
		GrowthChunk int `json:"growth_chunk"`
	} `json:"layout"`
}

func currentBuild() buildInfo {
	bi := buildInfo{
		Version:   version,
		Commit:    commit,
		Built:     date,
		GoVersion: runtime.Version(),
	}
	bi.Layout.Alignment = format.Alignment
	bi.Layout.TagSize = format.HeaderSize
	bi.Layout.MinBlock = format.MinBlockSize
	bi.Layout.GrowthChunk = format.DefaultGrowthChunk

	if info, ok := debug.ReadBuildInfo(); ok {
		for _, s := range info.Settings {
			switch s.Key {
			case "vcs.revision":
				if bi.Commit == "" {
					bi.Commit = s.Value
				}
			case "vcs.time":
				if bi.Built == "" {
					bi.Built = s.Value
				}
			case "vcs.modified":
				bi.Modified = s.Value == "true"
			}
		}
	}
	if bi.Commit == "" {
		bi.Commit = "none"
	}
	if bi.Built == "" {
		bi.Built = "unknown"
	}
	return bi
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print build and heap layout information",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return runVersion()
	},
}

func init() {
	rootCmd.AddCommand(versionCmd)
}

func runVersion() error {
	bi := currentBuild()
	if jsonOut {
		return printJSON(bi)
	}

	commit := bi.Commit
	if bi.Modified {
		commit += " (modified)"
	}
	fmt.Printf("heapctl %s (%s)\n", bi.Version, bi.GoVersion)
	fmt.Printf("  commit: %s\n", commit)
	fmt.Printf("  built:  %s\n", bi.Built)
	fmt.Printf("  layout: %d-byte tags, %d-byte alignment, %d-byte minimum block, %d-byte growth chunk\n",
		bi.Layout.TagSize, bi.Layout.Alignment, bi.Layout.MinBlock, bi.Layout.GrowthChunk)
	return nil
}
