// internal/config/settings.go
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sync"

	"gopkg.in/yaml.v3"

	"github.com/tamzrod/flapbus/internal/letters"
)

// persisted is the on-disk form of Settings.
type persisted struct {
	Count     int    `yaml:"count"`
	Alignment string `yaml:"alignment"`
	RPM       int    `yaml:"rpm"`
	Text      string `yaml:"text"`
	Mode      string `yaml:"mode"`
}

// Settings are the values an operator may change while running.
// The engine reads them at commit time, so a change applies to the
// next commit without restarting anything.
type Settings struct {
	mu   sync.RWMutex
	path string
	max  int
	v    persisted
}

// NewSettings seeds runtime settings from a normalized config and overlays
// anything previously saved at cfg.SettingsPath.
func NewSettings(cfg *Config) (*Settings, error) {
	s := &Settings{
		path: cfg.SettingsPath,
		max:  cfg.Units.Max,
		v: persisted{
			Alignment: cfg.Display.Alignment,
			RPM:       cfg.Display.RPM,
			Text:      cfg.Display.Text,
			Mode:      cfg.Display.Mode,
		},
	}
	if cfg.Units.Count != nil {
		s.v.Count = *cfg.Units.Count
	}

	if s.path == "" {
		return s, nil
	}

	raw, err := os.ReadFile(s.path)
	if errors.Is(err, fs.ErrNotExist) {
		return s, nil
	}
	if err != nil {
		return nil, fmt.Errorf("settings: read %s: %w", s.path, err)
	}

	var saved persisted
	if err := yaml.Unmarshal(raw, &saved); err != nil {
		return nil, fmt.Errorf("settings: decode %s: %w", s.path, err)
	}
	if err := s.apply(saved); err != nil {
		return nil, fmt.Errorf("settings: %s: %w", s.path, err)
	}
	return s, nil
}

func (s *Settings) apply(p persisted) error {
	if p.Count < 0 || p.Count > s.max {
		return fmt.Errorf("count must be in [0, %d], got %d", s.max, p.Count)
	}
	if _, err := letters.ParseAlignment(p.Alignment); err != nil {
		return err
	}
	if p.Mode != ModeText && p.Mode != ModeClock {
		return fmt.Errorf("unknown mode %q", p.Mode)
	}
	s.v = p
	return nil
}

// ---- getters ----

func (s *Settings) NumUnits() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.v.Count
}

func (s *Settings) Alignment() letters.Alignment {
	s.mu.RLock()
	defer s.mu.RUnlock()
	a, _ := letters.ParseAlignment(s.v.Alignment)
	return a
}

func (s *Settings) RPM() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.v.RPM
}

func (s *Settings) Text() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.v.Text
}

func (s *Settings) Mode() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.v.Mode
}

// ---- setters ----

// SetNumUnits changes the configured unit count, bounded by capacity.
func (s *Settings) SetNumUnits(n int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if n < 0 || n > s.max {
		return fmt.Errorf("settings: count must be in [0, %d], got %d", s.max, n)
	}
	s.v.Count = n
	return nil
}

func (s *Settings) SetAlignment(a string) error {
	parsed, err := letters.ParseAlignment(a)
	if err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.v.Alignment = string(parsed)
	return nil
}

func (s *Settings) SetRPM(rpm int) error {
	if rpm < 0 || rpm > 255 {
		return fmt.Errorf("settings: rpm must be in [0, 255], got %d", rpm)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.v.RPM = rpm
	return nil
}

func (s *Settings) SetText(text string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.v.Text = text
}

func (s *Settings) SetMode(mode string) error {
	if mode != ModeText && mode != ModeClock {
		return fmt.Errorf("settings: unknown mode %q", mode)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.v.Mode = mode
	return nil
}

// Save writes the current settings to the settings path.
// It is a no-op when no path is configured.
func (s *Settings) Save() error {
	s.mu.RLock()
	v := s.v
	path := s.path
	s.mu.RUnlock()

	if path == "" {
		return nil
	}

	raw, err := yaml.Marshal(v)
	if err != nil {
		return fmt.Errorf("settings: encode: %w", err)
	}

	// write-then-rename so a crash never leaves a half-written file
	tmp := filepath.Join(filepath.Dir(path), "."+filepath.Base(path)+".tmp")
	if err := os.WriteFile(tmp, raw, 0o644); err != nil {
		return fmt.Errorf("settings: write: %w", err)
	}
	if err := os.Rename(tmp, path); err != nil {
		return fmt.Errorf("settings: rename: %w", err)
	}
	return nil
}
