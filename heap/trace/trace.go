// Package trace loads allocation traces from YAML and replays them against an
// allocator.
//
// A trace names each allocation so later operations can refer to it:
//
//	name: split-and-merge
//	ops:
//	  - {op: alloc, id: a, size: 16}
//	  - {op: alloc, id: b, size: 4KiB}
//	  - {op: free, id: a}
//	  - {op: grow, size: 8KiB}
//	  - {op: check}
package trace

import (
	"errors"
	"fmt"
	"io"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/joshuapare/tagheap/internal/config"
)

// Kind is the operation a trace step performs.
type Kind string

const (
	KindAlloc Kind = "alloc"
	KindFree  Kind = "free"
	KindGrow  Kind = "grow"
	KindCheck Kind = "check"
)

// ErrInvalid indicates a malformed trace document.
var ErrInvalid = errors.New("trace: invalid")

// Op is one trace step.
type Op struct {
	Kind Kind            `yaml:"op"`
	ID   string          `yaml:"id,omitempty"`
	Size config.ByteSize `yaml:"size,omitempty"`
}

// Trace is a named sequence of operations.
type Trace struct {
	Name string `yaml:"name"`
	Ops  []Op   `yaml:"ops"`
}

// Load decodes and validates a trace. Unknown keys are errors.
func Load(r io.Reader) (*Trace, error) {
	var tr Trace
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(&tr); err != nil {
		if errors.Is(err, io.EOF) {
			return nil, fmt.Errorf("%w: empty document", ErrInvalid)
		}
		return nil, fmt.Errorf("%w: %w", ErrInvalid, err)
	}
	if err := tr.Validate(); err != nil {
		return nil, err
	}
	return &tr, nil
}

// LoadFile reads a trace from path.
func LoadFile(path string) (*Trace, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	tr, err := Load(f)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	if tr.Name == "" {
		tr.Name = path
	}
	return tr, nil
}

// Validate checks each step for the fields its kind requires. It does not
// track ids; freeing an id that is not live is detected during replay.
func (t *Trace) Validate() error {
	for i, op := range t.Ops {
		switch op.Kind {
		case KindAlloc:
			if op.ID == "" {
				return fmt.Errorf("%w: op %d: alloc needs an id", ErrInvalid, i)
			}
		case KindFree:
			if op.ID == "" {
				return fmt.Errorf("%w: op %d: free needs an id", ErrInvalid, i)
			}
		case KindGrow:
			if op.Size <= 0 {
				return fmt.Errorf("%w: op %d: grow needs a positive size", ErrInvalid, i)
			}
		case KindCheck:
		default:
			return fmt.Errorf("%w: op %d: unknown op %q", ErrInvalid, i, op.Kind)
		}
	}
	return nil
}

// Write encodes the trace as YAML.
func (t *Trace) Write(w io.Writer) error {
	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	if err := enc.Encode(t); err != nil {
		return err
	}
	return enc.Close()
}
