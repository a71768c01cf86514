// internal/engine/runner_test.go
package engine

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/tamzrod/flapbus/internal/clock"
	"github.com/tamzrod/flapbus/internal/letters"
)

func newTestRunner(t *testing.T, h *harness, offline *clock.Offline) *Runner {
	t.Helper()
	r, err := NewRunner(h.eng, RunnerConfig{
		Interval: time.Second,
		Display:  h.settings,
		Offline:  offline,
		Clock:    h.clk,
		Wait:     clock.NoWait,
	})
	if err != nil {
		t.Fatalf("runner: %v", err)
	}
	return r
}

func TestNewRunner_Validates(t *testing.T) {
	if _, err := NewRunner(nil, RunnerConfig{}); err == nil {
		t.Fatalf("expected error for nil engine")
	}
	h := newHarness(t, 1)
	if _, err := NewRunner(h.eng, RunnerConfig{Display: h.settings, Clock: h.clk}); err == nil {
		t.Fatalf("expected error for zero interval")
	}
}

func TestTick_PollsBeforeFirstCommit(t *testing.T) {
	h := newHarness(t, 2)
	r := newTestRunner(t, h, nil)
	ctx := context.Background()

	_ = h.eng.SetOffset(0, 640)
	r.Tick(ctx)
	if len(h.bus.updates) != 0 {
		t.Fatalf("first tick must not commit before a poll, got %v", h.bus.updates)
	}
	if p := h.eng.Pending(); p[0].Offset != 640 {
		t.Fatalf("first poll dropped the staged value: %+v", p[0])
	}

	r.Tick(ctx)
	if len(h.bus.updates) != 1 || h.bus.updates[0] != 0 {
		t.Fatalf("expected one update for unit 0, got %v", h.bus.updates)
	}
	u, _ := h.eng.store.ObservedAt(0)
	if u.Offset != 640 {
		t.Fatalf("poll in the same tick should observe the commit, got %+v", u)
	}
	if h.eng.Dirty() {
		t.Fatalf("tick left Pending dirty")
	}
}

func TestTick_RendersTextOnlyWhenChanged(t *testing.T) {
	h := newHarness(t, 2)
	h.settings.text = "OK"
	r := newTestRunner(t, h, nil)
	ctx := context.Background()

	r.Tick(ctx)
	if h.bus.shows[0] != letters.IndexOf('O') || h.bus.shows[1] != letters.IndexOf('K') {
		t.Fatalf("text not rendered: %v", h.bus.shows)
	}

	delete(h.bus.shows, 0)
	r.Tick(ctx)
	if _, ok := h.bus.shows[0]; ok {
		t.Fatalf("unchanged text rendered again")
	}

	h.settings.text = "NO"
	r.Tick(ctx)
	if h.bus.shows[0] != letters.IndexOf('N') {
		t.Fatalf("changed text not rendered: %v", h.bus.shows)
	}
}

func TestTick_ClockModeRendersOncePerMinute(t *testing.T) {
	h := newHarness(t, 5)
	h.settings.mode = "clock"

	offline := &clock.Offline{}
	if err := offline.Set("09:59", h.clk.Millis()); err != nil {
		t.Fatalf("set: %v", err)
	}
	r := newTestRunner(t, h, offline)
	ctx := context.Background()

	r.Tick(ctx)
	if h.bus.shows[0] != letters.IndexOf('0') || h.bus.shows[1] != letters.IndexOf('9') || h.bus.shows[4] != letters.IndexOf('9') {
		t.Fatalf("09:59 not rendered: %v", h.bus.shows)
	}

	clear(h.bus.shows)
	r.Tick(ctx)
	if len(h.bus.shows) != 0 {
		t.Fatalf("same minute rendered twice")
	}

	h.clk.Advance(60_000)
	r.Tick(ctx)
	if h.bus.shows[0] != letters.IndexOf('1') || h.bus.shows[3] != letters.IndexOf('0') {
		t.Fatalf("10:00 not rendered: %v", h.bus.shows)
	}
}

func TestRun_StopsOnCancel(t *testing.T) {
	h := newHarness(t, 1)
	r := newTestRunner(t, h, nil)

	ctx, cancel := context.WithCancel(context.Background())
	ticks := 0
	r.cfg.Wait = func(ctx context.Context, _ time.Duration) error {
		ticks++
		if ticks == 3 {
			cancel()
		}
		return ctx.Err()
	}

	if err := r.Run(ctx); !errors.Is(err, context.Canceled) {
		t.Fatalf("Run returned %v, want context.Canceled", err)
	}
	if ticks != 3 {
		t.Fatalf("expected 3 ticks, got %d", ticks)
	}
}
