package region

import "fmt"

// DefaultMaxLen caps an in-memory region created with a limit of 0.
const DefaultMaxLen = 1 << 30

// Memory is an in-process byte arena. It is the default growth primitive and
// the one used by tests: growth appends zeroed bytes until the optional limit
// is reached.
type Memory struct {
	data  []byte
	limit int
}

// NewMemory returns an empty in-memory region that refuses to grow past limit
// bytes. A limit of 0 selects DefaultMaxLen.
func NewMemory(limit int) *Memory {
	return &Memory{limit: limit}
}

// NewMemoryFrom returns an in-memory region holding a copy of data, for
// example a heap image read from disk.
func NewMemoryFrom(data []byte, limit int) *Memory {
	return &Memory{data: append([]byte(nil), data...), limit: limit}
}

// Extend grows the arena by n zeroed bytes.
func (m *Memory) Extend(n int) (int, error) {
	start := len(m.data)
	if err := checkGrowth(start, n, m.maxLen()); err != nil {
		return 0, fmt.Errorf("memory region: extend %d at %d (limit %d): %w", n, start, m.maxLen(), err)
	}
	m.data = append(m.data, make([]byte, n)...)
	return start, nil
}

// Bytes returns the arena contents.
func (m *Memory) Bytes() []byte { return m.data }

// Len returns the arena length.
func (m *Memory) Len() int { return len(m.data) }

// Limit returns the configured growth limit (0 = DefaultMaxLen).
func (m *Memory) Limit() int { return m.limit }

func (m *Memory) maxLen() int {
	if m.limit > 0 {
		return m.limit
	}
	return DefaultMaxLen
}
