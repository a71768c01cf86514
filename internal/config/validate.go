// internal/config/validate.go
package config

import (
	"errors"
	"fmt"
	"unicode/utf8"

	"github.com/tamzrod/flapbus/internal/clock"
	"github.com/tamzrod/flapbus/internal/letters"
)

// Validate checks configuration correctness.
// It performs declarative validation only.
// It MUST NOT mutate configuration.
func Validate(cfg *Config) error {
	if cfg == nil {
		return errors.New("config: nil config")
	}

	// ------------------------------------------------------------
	// BUS
	// ------------------------------------------------------------

	if cfg.Bus.AnswerSize != 0 && cfg.Bus.AnswerSize != 3 && cfg.Bus.AnswerSize != 4 {
		return fmt.Errorf("bus.answer_size must be 3 or 4, got %d", cfg.Bus.AnswerSize)
	}
	if cfg.Bus.SpeedKHz < 0 {
		return fmt.Errorf("bus.speed_khz must not be negative, got %d", cfg.Bus.SpeedKHz)
	}
	if (cfg.Bus.SDAPin == "") != (cfg.Bus.SCLPin == "") {
		return errors.New("bus.sda_pin and bus.scl_pin must be set together")
	}

	// ------------------------------------------------------------
	// UNITS
	// ------------------------------------------------------------

	capacity := cfg.Units.Max
	if capacity == 0 {
		capacity = MaxUnits
	}
	if capacity < 0 || capacity > MaxUnits {
		return fmt.Errorf("units.max must be in [1, %d], got %d", MaxUnits, cfg.Units.Max)
	}

	if c := cfg.Units.Count; c != nil && (*c < 0 || *c > capacity) {
		return fmt.Errorf("units.count must be in [0, %d], got %d", capacity, *c)
	}

	for addr, letter := range cfg.Units.ZeroLetters {
		if addr < 0 || addr >= capacity {
			return fmt.Errorf("units.zero_letters: address %d outside [0, %d)", addr, capacity)
		}
		if utf8.RuneCountInString(letter) != 1 {
			return fmt.Errorf("units.zero_letters[%d]: expected a single letter, got %q", addr, letter)
		}
		r, _ := utf8.DecodeRuneInString(letter)
		if _, err := letters.Lookup(r); err != nil {
			return fmt.Errorf("units.zero_letters[%d]: %w", addr, err)
		}
	}

	// ------------------------------------------------------------
	// DISPLAY
	// ------------------------------------------------------------

	if cfg.Display.Alignment != "" {
		if _, err := letters.ParseAlignment(cfg.Display.Alignment); err != nil {
			return fmt.Errorf("display.alignment: %w", err)
		}
	}
	switch cfg.Display.Mode {
	case "", ModeText, ModeClock:
	default:
		return fmt.Errorf("display.mode must be %q or %q, got %q", ModeText, ModeClock, cfg.Display.Mode)
	}
	if cfg.Display.Mode == ModeClock && cfg.Display.Clock != "" {
		var o clock.Offline
		if err := o.Set(cfg.Display.Clock, 0); err != nil {
			return fmt.Errorf("display.clock: %w", err)
		}
	}
	if cfg.Display.RPM < 0 || cfg.Display.RPM > 255 {
		return fmt.Errorf("display.rpm must be in [0, 255], got %d", cfg.Display.RPM)
	}

	// ------------------------------------------------------------
	// POLL
	// ------------------------------------------------------------

	if cfg.Poll.IntervalMs < 0 || cfg.Poll.StaleAfterMs < 0 {
		return errors.New("poll: intervals must not be negative")
	}

	// ------------------------------------------------------------
	// DIAGNOSTICS (OPT-IN)
	// ------------------------------------------------------------

	// device_name sanity (ASCII only)
	for i := 0; i < len(cfg.Diagnostics.DeviceName); i++ {
		if cfg.Diagnostics.DeviceName[i] > 0x7F {
			return errors.New("diagnostics.device_name must contain ASCII characters only")
		}
	}
	if cfg.Diagnostics.TimeoutMs < 0 {
		return fmt.Errorf("diagnostics.timeout_ms must not be negative, got %d", cfg.Diagnostics.TimeoutMs)
	}

	// ------------------------------------------------------------
	// LOG
	// ------------------------------------------------------------

	switch cfg.Log.Level {
	case "", "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("log.level: unknown level %q", cfg.Log.Level)
	}

	return nil
}
