// Package mmfile maps heap files read-only for the inspection commands.
package mmfile

import "errors"

// ErrTooLarge indicates a file whose size does not fit in an int.
var ErrTooLarge = errors.New("mmfile: file too large to map")

// Mapping is a read-only view of a heap file.
type Mapping struct {
	Data  []byte
	Path  string
	close func() error
}

// Len returns the mapped size.
func (m *Mapping) Len() int { return len(m.Data) }

// Close releases the mapping. Calling it more than once is a no-op.
func (m *Mapping) Close() error {
	if m == nil || m.close == nil {
		return nil
	}
	fn := m.close
	m.close = nil
	m.Data = nil
	return fn()
}
