package main

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/joshuapare/tagheap/heap/alloc"
	"github.com/joshuapare/tagheap/heap/region"
	"github.com/joshuapare/tagheap/internal/config"
)

// resetFlags restores every package-level flag to its default.
func resetFlags() {
	verbose = false
	quiet = false
	jsonOut = false
	configPath = ""
	cfg = config.Default()

	replayFile = ""
	replayLimit = 0
	replayGrowth = cfg.Heap.GrowthChunk
	replayHardened = false
	replayCheckEach = false
	replayFill = false

	dumpFreeOnly = false
	dumpMaxBlocks = 0
}

// writeFile writes content under a fresh temp dir and returns its path.
func writeFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("failed to write %s: %v", name, err)
	}
	return path
}

// writeHeapFile builds a small heap file with a mix of allocated and free
// blocks and returns its path.
func writeHeapFile(t *testing.T) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "test.heap")

	r, err := region.OpenFile(path, 0)
	if err != nil {
		t.Fatalf("OpenFile: %v", err)
	}
	fa, err := alloc.New(r, nil)
	if err != nil {
		t.Fatalf("alloc.New: %v", err)
	}
	var addrs []alloc.Addr
	for _, n := range []int{16, 100, 16, 2000, 40} {
		a, err := fa.Alloc(n)
		if err != nil {
			t.Fatalf("Alloc(%d): %v", n, err)
		}
		addrs = append(addrs, a)
	}
	for _, i := range []int{0, 3} {
		if err := fa.Free(addrs[i]); err != nil {
			t.Fatalf("Free: %v", err)
		}
	}
	if err := r.Sync(); err != nil {
		t.Fatalf("Sync: %v", err)
	}
	if err := r.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
	return path
}

// captureOutput captures stdout while running a function
func captureOutput(t *testing.T, fn func() error) (string, error) {
	t.Helper()

	origStdout := os.Stdout

	r, w, err := os.Pipe()
	if err != nil {
		t.Fatalf("failed to create pipe: %v", err)
	}
	os.Stdout = w

	fnErr := fn()

	w.Close()
	os.Stdout = origStdout

	var buf bytes.Buffer
	if _, err := buf.ReadFrom(r); err != nil {
		t.Fatalf("failed to read output: %v", err)
	}
	return buf.String(), fnErr
}

// assertJSON checks that output is valid JSON and decodes it into v.
func assertJSON(t *testing.T, output string, v any) {
	t.Helper()
	if err := json.Unmarshal([]byte(output), v); err != nil {
		t.Fatalf("invalid JSON output: %v\nOutput: %s", err, output)
	}
}

// assertContains checks that output contains all expected strings
func assertContains(t *testing.T, output string, expected []string) {
	t.Helper()
	for _, want := range expected {
		if !strings.Contains(output, want) {
			t.Errorf("output missing expected string %q\nGot: %s", want, output)
		}
	}
}
