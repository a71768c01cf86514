// internal/writer/writer.go
package writer

import (
	"context"
	"errors"
	"fmt"

	"golang.org/x/exp/slog"

	"github.com/tamzrod/flapbus/internal/bus"
	"github.com/tamzrod/flapbus/internal/letters"
	"github.com/tamzrod/flapbus/internal/store"
)

// target is the part of a unit's state that UPDATE_OFFSET carries.
type target struct {
	offset int
	zero   int
}

// Writer delivers Pending to the units. One command per unit, no retries.
// A failed unit is only resent if Pending still differs from it at a later
// commit; after a poll that means the value was staged again.
type Writer struct {
	client UnitClient
	proto  bus.Protocol
	log    *slog.Logger

	// last is what each unit accepted since the last Forget.
	last map[int]target
}

// New builds a writer for the given frame geometry.
func New(client UnitClient, proto bus.Protocol, log *slog.Logger) (*Writer, error) {
	if client == nil {
		return nil, errors.New("writer: client required")
	}
	if log == nil {
		log = slog.Default()
	}
	return &Writer{
		client: client,
		proto:  proto,
		log:    log,
		last:   make(map[int]target),
	}, nil
}

// Commit sends UPDATE_OFFSET for units [0, count).
// Without force, a unit is skipped when Pending matches what was observed
// or what it already accepted.
func (w *Writer) Commit(ctx context.Context, pending, observed []store.UnitState, count int, force bool) CommitResult {
	var res CommitResult

	count = min(count, len(pending), len(observed))
	for addr := 0; addr < count; addr++ {
		if ctx.Err() != nil {
			res.Failed = append(res.Failed, UnitError{Address: addr, Err: ctx.Err()})
			break
		}

		want := w.targetOf(pending[addr])
		if !force {
			if w.targetOf(observed[addr]) == want {
				res.Skipped++
				continue
			}
			if last, ok := w.last[addr]; ok && last == want {
				res.Skipped++
				continue
			}
		}

		p := pending[addr]
		payload := w.proto.UpdateOffsetPayload(p.Offset, p.ZeroPositionLetterIndex)
		if err := w.client.SendCommand(ctx, uint16(addr), bus.OpUpdateOffset, payload); err != nil {
			w.log.Warn("offset update failed", "unit", addr, "err", err)
			delete(w.last, addr)
			res.Failed = append(res.Failed, UnitError{Address: addr, Err: err})
			continue
		}

		w.log.Debug("offset updated", "unit", addr, "offset", p.Offset, "zero", p.ZeroPositionLetterIndex)
		w.last[addr] = want
		res.Sent++
	}

	return res
}

// Show sends SHOW_LETTER for each character of an aligned message.
// Unit i gets character i. Characters without a flap are skipped and the
// unit keeps showing what it showed before.
func (w *Writer) Show(ctx context.Context, aligned string, rpm int) ShowResult {
	res := ShowResult{Message: aligned}

	for addr, c := range []rune(aligned) {
		if ctx.Err() != nil {
			res.Failed = append(res.Failed, UnitError{Address: addr, Err: ctx.Err()})
			break
		}

		idx, err := letters.Lookup(c)
		if err != nil {
			w.log.Warn("skipping unit", "unit", addr, "char", string(c), "err", err)
			res.Unmapped = append(res.Unmapped, addr)
			continue
		}

		if err := w.client.SendCommand(ctx, uint16(addr), bus.OpShowLetter, bus.ShowLetterPayload(idx, rpm)); err != nil {
			w.log.Warn("show letter failed", "unit", addr, "err", err)
			res.Failed = append(res.Failed, UnitError{Address: addr, Err: err})
			continue
		}
		res.Sent++
	}

	return res
}

// Forget drops the record of accepted values. Called once fresh hardware
// state has been observed.
func (w *Writer) Forget() {
	clear(w.last)
}

func (w *Writer) targetOf(u store.UnitState) target {
	t := target{offset: u.Offset}
	if w.proto.HasZeroIndex() {
		t.zero = u.ZeroPositionLetterIndex
	}
	return t
}

// Err joins per-unit failures, nil when there are none.
func (r CommitResult) Err() error {
	return joinUnitErrors("commit", r.Failed)
}

// Err joins per-unit failures, nil when there are none.
func (r ShowResult) Err() error {
	return joinUnitErrors("show", r.Failed)
}

func joinUnitErrors(op string, failed []UnitError) error {
	if len(failed) == 0 {
		return nil
	}
	errs := make([]error, 0, len(failed))
	for _, f := range failed {
		errs = append(errs, fmt.Errorf("writer: %s unit=%d: %w", op, f.Address, f.Err))
	}
	return errors.Join(errs...)
}
