// internal/poller/poller.go
package poller

import (
	"context"
	"errors"

	"golang.org/x/exp/slog"

	"github.com/tamzrod/flapbus/internal/bus"
	"github.com/tamzrod/flapbus/internal/clock"
	"github.com/tamzrod/flapbus/internal/store"
)

// Client abstracts the bus operation needed by the poller.
type Client interface {
	RequestUnit(ctx context.Context, addr uint16) (bus.Response, error)
}

// Poller is a dumb reader: one request per configured unit, in address order.
// No retries. A failed unit is retried by the next cycle.
type Poller struct {
	client Client
	clk    clock.Source
	log    *slog.Logger
}

// New creates a poller.
func New(client Client, clk clock.Source, log *slog.Logger) (*Poller, error) {
	if client == nil {
		return nil, errors.New("poller: client required")
	}
	if clk == nil {
		return nil, errors.New("poller: clock required")
	}
	if log == nil {
		log = slog.Default()
	}
	return &Poller{client: client, clk: clk, log: log}, nil
}

// PollOnce requests units [0, count).
// Per-unit failures do not abort the cycle.
func (p *Poller) PollOnce(ctx context.Context, count int) PollResult {
	res := PollResult{Units: make([]UnitResult, 0, max(count, 0))}

	for addr := 0; addr < count; addr++ {
		if err := ctx.Err(); err != nil {
			res.Err = err
			break
		}

		r, err := p.client.RequestUnit(ctx, uint16(addr))
		if err != nil {
			p.log.Warn("unit request failed", "unit", addr, "err", err)
		}
		res.Units = append(res.Units, UnitResult{
			Address:  addr,
			Response: r,
			AtMillis: p.clk.Millis(),
			Err:      err,
		})
	}

	res.AtMillis = p.clk.Millis()
	return res
}

// Merge folds one unit result into its previous observed state.
// Last-known-good: nothing is synthesized.
//   - failed request: prev is returned unchanged (timestamp included)
//   - unreachable signal: rotation cleared, everything else kept
//   - answer: all fields replaced, timestamp set to the answer time
func Merge(prev store.UnitState, r UnitResult) (store.UnitState, bool) {
	if r.Err != nil {
		return prev, false
	}

	if r.Response.Signal == bus.SignalUnreachable {
		next := prev
		next.Rotating = false
		return next, next != prev
	}

	next := store.UnitState{
		Address:                 prev.Address,
		Rotating:                r.Response.Signal == bus.SignalRotating,
		Offset:                  r.Response.Offset,
		ZeroPositionLetterIndex: prev.ZeroPositionLetterIndex,
		LastResponseAtMillis:    r.AtMillis,
	}
	if r.Response.ZeroLetterIndex >= 0 {
		next.ZeroPositionLetterIndex = r.Response.ZeroLetterIndex
	}
	return next, true
}
