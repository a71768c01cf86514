// internal/engine/builder.go
package engine

import (
	"fmt"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"
	"golang.org/x/exp/slog"

	"github.com/tamzrod/flapbus/internal/bus"
	"github.com/tamzrod/flapbus/internal/clock"
	cfg "github.com/tamzrod/flapbus/internal/config"
	"github.com/tamzrod/flapbus/internal/letters"
	"github.com/tamzrod/flapbus/internal/metrics"
	"github.com/tamzrod/flapbus/internal/snapshot"
	"github.com/tamzrod/flapbus/internal/store"
	"github.com/tamzrod/flapbus/internal/writer"
)

// Hardware is what the process opened before building the engine.
type Hardware struct {
	Bus      UnitBus
	Protocol bus.Protocol
	Recovery FaultHandler // nil when recovery is disabled
}

// Build constructs an Engine and its Runner from a normalized config.
// Persisted calibration letters are handed to the runner, which checks them
// against what the units report once they have been polled.
func Build(
	c *cfg.Config,
	settings *cfg.Settings,
	hw Hardware,
	clk clock.Source,
	sw writer.StatusWriter,
	m *metrics.Metrics,
	log *slog.Logger,
) (*Engine, *Runner, error) {
	if log == nil {
		log = slog.Default()
	}

	st, err := store.New(c.Units.Max)
	if err != nil {
		return nil, nil, err
	}

	bootID := uuid.NewString()

	e, err := New(Config{
		Store:      st,
		Cache:      snapshot.New(bootID),
		Bus:        hw.Bus,
		Protocol:   hw.Protocol,
		Recovery:   hw.Recovery,
		Settings:   settings,
		Clock:      clk,
		StaleAfter: uint32(c.Poll.StaleAfterMs),
		Status:     sw,
		Metrics:    m,
		Log:        log,
	})
	if err != nil {
		return nil, nil, err
	}

	zero, err := ParseZeroLetters(c.Units.ZeroLetters)
	if err != nil {
		return nil, nil, err
	}

	// mode may switch to clock at runtime, so the clock always exists
	basis := c.Display.Clock
	if basis == "" {
		basis = "00:00"
	}
	offline := &clock.Offline{}
	if err := offline.Set(basis, clk.Millis()); err != nil {
		// not fatal: the clock runs from 00:00
		log.Warn("clock basis rejected", "clock", basis, "err", err)
	}

	r, err := NewRunner(e, RunnerConfig{
		Interval:    time.Duration(c.Poll.IntervalMs) * time.Millisecond,
		Display:     settings,
		Offline:     offline,
		ZeroLetters: zero,
		Clock:       clk,
		Log:         log,
	})
	if err != nil {
		return nil, nil, err
	}

	log.Info("engine built", "boot_id", bootID, "capacity", st.Cap(), "units", settings.NumUnits(), "answer_size", hw.Protocol.AnswerSize)
	return e, r, nil
}

// ParseZeroLetters maps unit address to the flap index of its configured
// calibration letter.
func ParseZeroLetters(zero map[int]string) (map[int]int, error) {
	out := make(map[int]int, len(zero))
	for addr, s := range zero {
		r, _ := utf8.DecodeRuneInString(s)
		idx, err := letters.Lookup(r)
		if err != nil {
			return nil, fmt.Errorf("engine: zero letter for unit %d: %w", addr, err)
		}
		out[addr] = idx
	}
	return out, nil
}
