// internal/config/settings_test.go
package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/tamzrod/flapbus/internal/letters"
)

func normalized(path string) *Config {
	cfg := &Config{SettingsPath: path}
	cfg.Units.Max = 16
	cfg.Units.Count = intPtr(4)
	cfg.Display.Text = "HELLO"
	Normalize(cfg)
	return cfg
}

func TestSettings_SeededFromConfig(t *testing.T) {
	s, err := NewSettings(normalized(""))
	if err != nil {
		t.Fatalf("new settings: %v", err)
	}
	if s.NumUnits() != 4 || s.Text() != "HELLO" || s.Alignment() != letters.AlignLeft || s.RPM() != 10 || s.Mode() != ModeText {
		t.Fatalf("unexpected seed values")
	}
	// no path: save is a no-op
	if err := s.Save(); err != nil {
		t.Fatalf("save without path: %v", err)
	}
}

func TestSettings_SettersValidate(t *testing.T) {
	s, _ := NewSettings(normalized(""))

	if err := s.SetNumUnits(17); err == nil {
		t.Fatalf("expected count beyond capacity to fail")
	}
	if err := s.SetNumUnits(16); err != nil || s.NumUnits() != 16 {
		t.Fatalf("count at capacity should be accepted: %v", err)
	}
	if err := s.SetAlignment("diagonal"); err == nil {
		t.Fatalf("expected alignment error")
	}
	if err := s.SetRPM(300); err == nil {
		t.Fatalf("expected rpm error")
	}
	if err := s.SetMode("marquee"); err == nil {
		t.Fatalf("expected mode error")
	}
}

func TestSettings_SaveAndReload(t *testing.T) {
	path := filepath.Join(t.TempDir(), "settings.yaml")

	s, err := NewSettings(normalized(path))
	if err != nil {
		t.Fatalf("new settings: %v", err)
	}
	_ = s.SetNumUnits(7)
	_ = s.SetAlignment("center")
	s.SetText("BYE")
	if err := s.Save(); err != nil {
		t.Fatalf("save: %v", err)
	}

	reloaded, err := NewSettings(normalized(path))
	if err != nil {
		t.Fatalf("reload: %v", err)
	}
	if reloaded.NumUnits() != 7 || reloaded.Alignment() != letters.AlignCenter || reloaded.Text() != "BYE" {
		t.Fatalf("saved values not restored")
	}
}

func TestSettings_RejectsCorruptFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "settings.yaml")
	if err := os.WriteFile(path, []byte("count: 99\nalignment: left\nmode: text\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	if _, err := NewSettings(normalized(path)); err == nil {
		t.Fatalf("expected out-of-range count to be rejected")
	}
}
