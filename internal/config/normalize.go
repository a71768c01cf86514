// internal/config/normalize.go
package config

import "github.com/tamzrod/flapbus/internal/status"

// Normalize applies defaults.
// It is allowed to mutate configuration.
// It MUST be called only after Validate().
func Normalize(cfg *Config) {
	if cfg == nil {
		return
	}

	// ---- bus ----
	if cfg.Bus.SpeedKHz == 0 {
		cfg.Bus.SpeedKHz = DefaultSpeedKHz
	}
	if cfg.Bus.AnswerSize == 0 {
		cfg.Bus.AnswerSize = DefaultAnswerSize
	}

	// ---- units ----
	if cfg.Units.Max == 0 {
		cfg.Units.Max = MaxUnits
	}
	if cfg.Units.Count == nil {
		one := 1
		cfg.Units.Count = &one
	}

	// ---- display ----
	if cfg.Display.Alignment == "" {
		cfg.Display.Alignment = "left"
	}
	if cfg.Display.RPM == 0 {
		cfg.Display.RPM = DefaultRPM
	}
	if cfg.Display.Mode == "" {
		cfg.Display.Mode = ModeText
	}

	// ---- poll ----
	if cfg.Poll.IntervalMs == 0 {
		cfg.Poll.IntervalMs = DefaultIntervalMs
	}
	if cfg.Poll.StaleAfterMs == 0 {
		cfg.Poll.StaleAfterMs = DefaultStaleAfterMs
	}

	// ---- diagnostics ----
	if cfg.Diagnostics.TimeoutMs == 0 {
		cfg.Diagnostics.TimeoutMs = DefaultTimeoutMs
	}
	// ASCII already validated; truncate to what the status block can hold.
	if len(cfg.Diagnostics.DeviceName) > status.DeviceNameMaxChars {
		cfg.Diagnostics.DeviceName = cfg.Diagnostics.DeviceName[:status.DeviceNameMaxChars]
	}

	// ---- log ----
	if cfg.Log.Level == "" {
		cfg.Log.Level = DefaultLogLevel
	}
}
