package printer

import (
	"bytes"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/text/language"

	"github.com/joshuapare/tagheap/heap/alloc"
	"github.com/joshuapare/tagheap/heap/walker"
)

func sampleBlocks() []walker.Block {
	return []walker.Block{
		{Offset: 0, Size: 32, Allocated: true},
		{Offset: 32, Size: 120, Allocated: false},
		{Offset: 152, Size: 8040, Allocated: true},
	}
}

func TestPrintBlocks_Text(t *testing.T) {
	var buf bytes.Buffer
	p := New(&buf, DefaultOptions())
	require.NoError(t, p.PrintBlocks(sampleBlocks()))

	out := buf.String()
	t.Logf("Text output:\n%s", out)

	require.Contains(t, out, "OFFSET")
	require.Contains(t, out, "0x00000020")
	require.Contains(t, out, "8,040")
	require.Contains(t, out, "allocated")
	require.Contains(t, out, "3 blocks (1 free), 8,192 bytes")
}

func TestPrintBlocks_TextGerman(t *testing.T) {
	var buf bytes.Buffer
	opts := DefaultOptions()
	opts.Language = language.German
	require.NoError(t, New(&buf, opts).PrintBlocks(sampleBlocks()))

	assert.Contains(t, buf.String(), "8.192 bytes")
}

func TestPrintBlocks_FreeOnlyAndLimit(t *testing.T) {
	var buf bytes.Buffer
	opts := DefaultOptions()
	opts.FreeOnly = true
	require.NoError(t, New(&buf, opts).PrintBlocks(sampleBlocks()))
	assert.NotContains(t, buf.String(), "0x00000098")
	assert.Contains(t, buf.String(), "0x00000020")

	buf.Reset()
	opts = DefaultOptions()
	opts.MaxBlocks = 1
	require.NoError(t, New(&buf, opts).PrintBlocks(sampleBlocks()))
	assert.Contains(t, buf.String(), "... 2 more blocks")
}

func TestPrintBlocks_JSON(t *testing.T) {
	var buf bytes.Buffer
	opts := DefaultOptions()
	opts.Format = FormatJSON
	require.NoError(t, New(&buf, opts).PrintBlocks(sampleBlocks()))

	var doc jsonBlockMap
	require.NoError(t, json.Unmarshal(buf.Bytes(), &doc))
	require.Len(t, doc.Blocks, 3)
	assert.Equal(t, 3, doc.Count)
	assert.Equal(t, 1, doc.FreeCount)
	assert.Equal(t, 8192, doc.TotalBytes)
	assert.Equal(t, jsonBlock{Offset: 32, Size: 120, Allocated: false, Payload: 104}, doc.Blocks[1])
}

func TestPrintBlocks_JSONEmpty(t *testing.T) {
	var buf bytes.Buffer
	opts := DefaultOptions()
	opts.Format = FormatJSON
	require.NoError(t, New(&buf, opts).PrintBlocks(nil))
	assert.Contains(t, buf.String(), `"blocks": []`)
}

func TestPrintUsage(t *testing.T) {
	u := alloc.Usage{
		HeapBytes:       1 << 20,
		Blocks:          3,
		AllocatedBlocks: 2,
		AllocatedBytes:  1<<20 - 4096,
		FreeBlocks:      1,
		FreeBytes:       4096,
		LargestFree:     4096,
	}

	var buf bytes.Buffer
	require.NoError(t, New(&buf, DefaultOptions()).PrintUsage(u))
	out := buf.String()
	assert.Contains(t, out, "1,048,576 bytes")
	assert.Contains(t, out, "Fragmentation:")
	assert.Contains(t, out, "0.00%")

	buf.Reset()
	opts := DefaultOptions()
	opts.Format = FormatJSON
	require.NoError(t, New(&buf, opts).PrintUsage(u))

	var doc jsonUsage
	require.NoError(t, json.Unmarshal(buf.Bytes(), &doc))
	assert.Equal(t, int64(1<<20), doc.HeapBytes)
	assert.Equal(t, 2, doc.AllocatedBlocks)
}

func TestPrintStats(t *testing.T) {
	s := alloc.Stats{AllocCalls: 1200, AllocFastPath: 1199, AllocSlowPath: 1, GrowCalls: 1, GrowBytes: 4096}

	var buf bytes.Buffer
	require.NoError(t, New(&buf, DefaultOptions()).PrintStats(s))
	assert.Contains(t, buf.String(), "1,200 (fast 1,199, slow 1)")

	buf.Reset()
	opts := DefaultOptions()
	opts.Format = FormatJSON
	require.NoError(t, New(&buf, opts).PrintStats(s))
	assert.Contains(t, buf.String(), `"grow_bytes": 4096`)
}

func TestParseFormat(t *testing.T) {
	f, err := ParseFormat("")
	require.NoError(t, err)
	assert.Equal(t, FormatText, f)

	f, err = ParseFormat("json")
	require.NoError(t, err)
	assert.Equal(t, FormatJSON, f)

	_, err = ParseFormat("reg")
	require.Error(t, err)
}
