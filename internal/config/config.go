// internal/config/config.go
package config

type Config struct {
	Bus          BusConfig         `yaml:"bus"`
	Units        UnitsConfig       `yaml:"units"`
	Display      DisplayConfig     `yaml:"display"`
	Poll         PollConfig        `yaml:"poll"`
	SettingsPath string            `yaml:"settings_path"`
	Diagnostics  DiagnosticsConfig `yaml:"diagnostics"`
	Metrics      MetricsConfig     `yaml:"metrics"`
	Log          LogConfig         `yaml:"log"`
}

// ---- BUS ----

type BusConfig struct {
	Device     string `yaml:"device"` // i2creg name; "" = first bus
	SpeedKHz   int    `yaml:"speed_khz"`
	SDAPin     string `yaml:"sda_pin"` // gpioreg override; "" = the bus's own pins
	SCLPin     string `yaml:"scl_pin"`
	AnswerSize int    `yaml:"answer_size"` // 3 or 4
	Recovery   *bool  `yaml:"recovery"`    // nil => enabled
}

// RecoveryEnabled reports whether stuck-line recovery should run.
func (b BusConfig) RecoveryEnabled() bool {
	return b.Recovery == nil || *b.Recovery
}

// ---- UNITS ----

type UnitsConfig struct {
	Max   int  `yaml:"max"`
	Count *int `yaml:"count"` // nil => 1

	// ZeroLetters maps unit address to its calibration letter.
	ZeroLetters map[int]string `yaml:"zero_letters"`
}

// ---- DISPLAY ----

type DisplayConfig struct {
	Alignment string `yaml:"alignment"`
	RPM       int    `yaml:"rpm"`
	Text      string `yaml:"text"`
	Mode      string `yaml:"mode"`  // text | clock
	Clock     string `yaml:"clock"` // HH:MM basis for clock mode
}

const (
	ModeText  = "text"
	ModeClock = "clock"
)

// ---- POLL ----

type PollConfig struct {
	IntervalMs   int `yaml:"interval_ms"`
	StaleAfterMs int `yaml:"stale_after_ms"`
}

// ---- DIAGNOSTICS (optional Modbus export) ----

type DiagnosticsConfig struct {
	Endpoint   string `yaml:"endpoint"`
	UnitID     uint8  `yaml:"unit_id"`
	BaseSlot   uint16 `yaml:"base_slot"`
	TimeoutMs  int    `yaml:"timeout_ms"`
	DeviceName string `yaml:"device_name"`
}

// ---- METRICS / LOG ----

type MetricsConfig struct {
	Listen string `yaml:"listen"`
}

type LogConfig struct {
	Level string `yaml:"level"`
}

// ---- DEFAULTS / LIMITS ----

const (
	MaxUnits            = 128
	DefaultSpeedKHz     = 100
	DefaultAnswerSize   = 4
	DefaultRPM          = 10
	DefaultIntervalMs   = 1000
	DefaultStaleAfterMs = 5000
	DefaultTimeoutMs    = 1000
	DefaultLogLevel     = "info"
)
