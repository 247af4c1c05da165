package trace

import (
	"context"
	"errors"
	"fmt"

	"github.com/joshuapare/tagheap/heap/alloc"
	"github.com/joshuapare/tagheap/internal/logger"
)

// Target is what a trace replays against.
type Target interface {
	alloc.Allocator
	Check() error
}

// Grower is implemented by targets that support explicit growth steps.
type Grower interface {
	Grow(n int) error
}

// Options controls replay behavior.
type Options struct {
	// CheckEach validates the heap after every step.
	CheckEach bool

	// Fill writes a per-allocation byte pattern into every payload and
	// verifies it before the block is freed. Requires a target with Payload.
	Fill bool
}

// Failure records one allocation that returned an error the replay tolerates.
type Failure struct {
	Index int    `json:"index"`
	ID    string `json:"id"`
	Size  int64  `json:"size"`
	Err   string `json:"error"`
}

// Result summarizes a replay.
type Result struct {
	Name     string    `json:"name"`
	Ops      int       `json:"ops"`
	Allocs   int       `json:"allocs"`
	Frees    int       `json:"frees"`
	Grows    int       `json:"grows"`
	Checks   int       `json:"checks"`
	Live     int       `json:"live"`
	Failures []Failure `json:"failures,omitempty"`
}

// payloader is satisfied by *alloc.FirstFitAllocator.
type payloader interface {
	Payload(addr alloc.Addr) ([]byte, error)
}

// Replay runs every step of tr against target.
//
// Allocation failures caused by exhaustion or a zero-size request are
// recorded in Result.Failures and replay continues; later frees of that id
// are skipped. Any other error stops the replay and is returned together with
// the partial result.
func Replay(ctx context.Context, target Target, tr *Trace, opts Options) (*Result, error) {
	res := &Result{Name: tr.Name}
	live := make(map[string]alloc.Addr)
	failed := make(map[string]bool)
	fills := make(map[string]byte)

	var pl payloader
	if opts.Fill {
		p, ok := target.(payloader)
		if !ok {
			return res, fmt.Errorf("trace: fill requested but target %T has no Payload", target)
		}
		pl = p
	}

	for i, op := range tr.Ops {
		if err := ctx.Err(); err != nil {
			return res, err
		}
		res.Ops++

		switch op.Kind {
		case KindAlloc:
			if _, dup := live[op.ID]; dup {
				return res, fmt.Errorf("trace: op %d: id %q is already live", i, op.ID)
			}
			delete(failed, op.ID)
			addr, err := target.Alloc(op.Size.Int())
			if err != nil {
				if errors.Is(err, alloc.ErrNoSpace) || errors.Is(err, alloc.ErrZeroSize) {
					res.Failures = append(res.Failures, Failure{Index: i, ID: op.ID, Size: int64(op.Size), Err: err.Error()})
					failed[op.ID] = true
					logger.Debug("trace: alloc failed", "index", i, "id", op.ID, "size", int64(op.Size), "err", err)
					continue
				}
				return res, fmt.Errorf("trace: op %d: alloc %q: %w", i, op.ID, err)
			}
			res.Allocs++
			live[op.ID] = addr
			if pl != nil {
				b := byte(i%251 + 1)
				if err := fill(pl, addr, b); err != nil {
					return res, fmt.Errorf("trace: op %d: %w", i, err)
				}
				fills[op.ID] = b
			}

		case KindFree:
			addr, ok := live[op.ID]
			if !ok {
				if failed[op.ID] {
					delete(failed, op.ID)
					continue
				}
				return res, fmt.Errorf("trace: op %d: free of unknown id %q", i, op.ID)
			}
			if pl != nil {
				if err := verifyFill(pl, addr, fills[op.ID]); err != nil {
					return res, fmt.Errorf("trace: op %d: id %q: %w", i, op.ID, err)
				}
			}
			if err := target.Free(addr); err != nil {
				return res, fmt.Errorf("trace: op %d: free %q: %w", i, op.ID, err)
			}
			delete(live, op.ID)
			delete(fills, op.ID)
			res.Frees++

		case KindGrow:
			g, ok := target.(Grower)
			if !ok {
				return res, fmt.Errorf("trace: op %d: target %T cannot grow", i, target)
			}
			if err := g.Grow(op.Size.Int()); err != nil {
				return res, fmt.Errorf("trace: op %d: grow: %w", i, err)
			}
			res.Grows++

		case KindCheck:
			if err := target.Check(); err != nil {
				return res, fmt.Errorf("trace: op %d: check: %w", i, err)
			}
			res.Checks++

		default:
			return res, fmt.Errorf("%w: op %d: unknown op %q", ErrInvalid, i, op.Kind)
		}

		if opts.CheckEach && op.Kind != KindCheck {
			if err := target.Check(); err != nil {
				return res, fmt.Errorf("trace: after op %d (%s %s): %w", i, op.Kind, op.ID, err)
			}
			res.Checks++
		}
	}

	res.Live = len(live)
	return res, nil
}

func fill(pl payloader, addr alloc.Addr, b byte) error {
	p, err := pl.Payload(addr)
	if err != nil {
		return err
	}
	for i := range p {
		p[i] = b
	}
	return nil
}

func verifyFill(pl payloader, addr alloc.Addr, b byte) error {
	p, err := pl.Payload(addr)
	if err != nil {
		return err
	}
	for i, got := range p {
		if got != b {
			return fmt.Errorf("payload byte %d is 0x%02X, want 0x%02X", i, got, b)
		}
	}
	return nil
}
