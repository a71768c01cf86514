// internal/engine/runner.go
package engine

import (
	"context"
	"errors"
	"time"

	"golang.org/x/exp/slog"

	"github.com/tamzrod/flapbus/internal/bus"
	"github.com/tamzrod/flapbus/internal/clock"
)

// Display is what the runner renders between polls.
type Display interface {
	Mode() string // "text" or "clock"
	Text() string
	RPM() int
}

const modeClock = "clock"

// RunnerConfig wires a Runner. Wait defaults to clock.Wait.
type RunnerConfig struct {
	Interval time.Duration
	Display  Display
	Offline  *clock.Offline // required for clock mode
	Clock    clock.Source
	Wait     clock.WaitFunc
	Log      *slog.Logger

	// ZeroLetters are calibration letters (address -> flap index) checked
	// against the units once they answer.
	ZeroLetters map[int]int
}

// Runner is the single driver of the bus. One tick:
// bus check, commit if something was staged, poll, render.
// Nothing is committed before the first completed poll.
type Runner struct {
	eng *Engine
	cfg RunnerConfig

	seeded      bool
	zero        map[int]int
	shownText   string
	shownMinute int
}

func NewRunner(eng *Engine, cfg RunnerConfig) (*Runner, error) {
	if eng == nil {
		return nil, errors.New("runner: engine required")
	}
	if cfg.Interval <= 0 {
		return nil, errors.New("runner: interval must be > 0")
	}
	if cfg.Display == nil {
		return nil, errors.New("runner: display required")
	}
	if cfg.Clock == nil {
		return nil, errors.New("runner: clock required")
	}
	if cfg.Wait == nil {
		cfg.Wait = clock.Wait
	}
	if cfg.Log == nil {
		cfg.Log = slog.Default()
	}
	zero := make(map[int]int, len(cfg.ZeroLetters))
	for addr, idx := range cfg.ZeroLetters {
		zero[addr] = idx
	}
	return &Runner{eng: eng, cfg: cfg, zero: zero, shownMinute: -1}, nil
}

// Run ticks until ctx is done. No overlap between ticks.
func (r *Runner) Run(ctx context.Context) error {
	for {
		r.Tick(ctx)

		if err := r.cfg.Wait(ctx, r.cfg.Interval); err != nil {
			return err
		}
	}
}

// Tick runs one cycle. Every error is absorbed.
func (r *Runner) Tick(ctx context.Context) {
	if err := r.eng.CheckBus(ctx); err != nil && !errors.Is(err, bus.ErrBusFault) {
		r.cfg.Log.Warn("bus check failed", "err", err)
	}

	if r.seeded && r.eng.Dirty() {
		r.eng.Commit(ctx, false)
	}

	res := r.eng.Poll(ctx)
	if res.Err == nil {
		r.seeded = true
		if len(r.zero) > 0 {
			r.eng.ApplyZeroLetters(res, r.zero)
		}
	}

	r.render(ctx)
}

func (r *Runner) render(ctx context.Context) {
	d := r.cfg.Display

	if d.Mode() == modeClock && r.cfg.Offline != nil {
		now := r.cfg.Clock.Millis()
		minute := r.cfg.Offline.Minutes(now)
		if minute == r.shownMinute {
			return
		}
		r.show(ctx, r.cfg.Offline.Format(now), d.RPM())
		r.shownMinute = minute
		r.shownText = ""
		return
	}

	text := d.Text()
	if text == r.shownText {
		return
	}
	r.show(ctx, text, d.RPM())
	r.shownText = text
	r.shownMinute = -1
}

func (r *Runner) show(ctx context.Context, text string, rpm int) {
	res := r.eng.RenderText(ctx, text, rpm)
	if err := res.Err(); err != nil {
		r.cfg.Log.Warn("render incomplete", "message", res.Message, "err", err)
		return
	}
	r.cfg.Log.Info("message shown", "message", res.Message, "unmapped", len(res.Unmapped))
}
