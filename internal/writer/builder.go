// internal/writer/builder.go
package writer

import (
	"time"

	cfg "github.com/tamzrod/flapbus/internal/config"
	wmodbus "github.com/tamzrod/flapbus/internal/writer/modbus"
)

// BuildStatusWriter connects the optional diagnostics export.
// It returns (nil, noop, nil) when no endpoint is configured.
func BuildStatusWriter(d cfg.DiagnosticsConfig) (StatusWriter, func() error, error) {
	noop := func() error { return nil }
	if d.Endpoint == "" {
		return nil, noop, nil
	}

	c, err := wmodbus.NewEndpointClient(wmodbus.Config{
		Endpoint: d.Endpoint,
		Timeout:  time.Duration(d.TimeoutMs) * time.Millisecond,
	})
	if err != nil {
		return nil, noop, err
	}

	sw, err := NewStatusWriter(StatusPlan{
		UnitID:     d.UnitID,
		BaseSlot:   d.BaseSlot,
		DeviceName: d.DeviceName,
	}, c)
	if err != nil {
		_ = c.Close()
		return nil, noop, err
	}
	return sw, c.Close, nil
}
