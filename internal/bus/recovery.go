// internal/bus/recovery.go
package bus

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"golang.org/x/exp/slog"
	"periph.io/x/conn/v3/gpio"
	"periph.io/x/conn/v3/i2c"
	"periph.io/x/conn/v3/pin"

	"github.com/tamzrod/flapbus/internal/clock"
)

// Line is the subset of gpio.PinIO needed to drive a bus line by hand.
type Line interface {
	In(pull gpio.Pull, edge gpio.Edge) error
	Read() gpio.Level
	Out(l gpio.Level) error
}

// Lines are the two wires of the shared bus.
type Lines struct {
	SDA Line
	SCL Line
}

// funcSetter is implemented by pins whose function can be muxed back to the
// bus master after they were driven as GPIO (see pin.PinFunc).
type funcSetter interface {
	SetFunc(f pin.Func) error
}

// Reinitializer hands the lines to GPIO and back.
type Reinitializer interface {
	Suspend() error
	Reopen() error
}

// Faults is the diagnostic record of recoveries.
type Faults struct {
	Count        int
	LastAtMillis uint32
}

// ---- RECOVERY TIMING (protocol-locked) ----

const (
	recoveryPulses = 9
	settleTime     = 5 * time.Millisecond
	halfPeriod     = 5 * time.Microsecond
)

// Recovery detects a wedged bus and clocks it free.
type Recovery struct {
	lines Lines
	bus   Reinitializer
	clk   clock.Source
	wait  clock.WaitFunc
	log   *slog.Logger

	mu     sync.Mutex
	faults Faults
}

// RecoveryConfig wires a Recovery. Wait defaults to clock.Wait.
type RecoveryConfig struct {
	Lines Lines
	Bus   Reinitializer
	Clock clock.Source
	Wait  clock.WaitFunc
	Log   *slog.Logger
}

// NewRecovery validates its collaborators.
func NewRecovery(cfg RecoveryConfig) (*Recovery, error) {
	if cfg.Lines.SDA == nil || cfg.Lines.SCL == nil {
		return nil, errors.New("bus recovery: sda and scl lines required")
	}
	if cfg.Bus == nil {
		return nil, errors.New("bus recovery: bus required")
	}
	if cfg.Clock == nil {
		return nil, errors.New("bus recovery: clock required")
	}
	if cfg.Wait == nil {
		cfg.Wait = clock.Wait
	}
	if cfg.Log == nil {
		cfg.Log = slog.Default()
	}
	return &Recovery{
		lines: cfg.Lines,
		bus:   cfg.Bus,
		clk:   cfg.Clock,
		wait:  cfg.Wait,
		log:   cfg.Log,
	}, nil
}

// Stuck samples both idle lines with pull-ups.
// SDA low while SCL is high means a slave is holding the data line.
// The bus master is reinitialized before returning, stuck or not.
func (r *Recovery) Stuck(ctx context.Context) (bool, error) {
	if err := r.bus.Suspend(); err != nil {
		r.log.Warn("bus suspend failed", "err", err)
	}
	defer func() {
		r.restoreFuncs()
		if err := r.bus.Reopen(); err != nil {
			r.log.Error("bus reopen after sampling failed", "err", err)
		}
	}()

	if err := r.lines.SDA.In(gpio.PullUp, gpio.NoEdge); err != nil {
		return false, fmt.Errorf("bus recovery: sda input: %w", err)
	}
	if err := r.lines.SCL.In(gpio.PullUp, gpio.NoEdge); err != nil {
		return false, fmt.Errorf("bus recovery: scl input: %w", err)
	}
	if err := r.wait(ctx, settleTime); err != nil {
		return false, err
	}

	sdaLow := r.lines.SDA.Read() == gpio.Low
	sclHigh := r.lines.SCL.Read() == gpio.High
	return sdaLow && sclHigh, nil
}

// Recover clocks nine pulses on SCL so a slave finishes its byte and lets go
// of SDA, issues a STOP and reinitializes the bus master.
// It never requires a power cycle. Every call counts as one fault.
func (r *Recovery) Recover(ctx context.Context) error {
	if err := r.bus.Suspend(); err != nil {
		r.log.Warn("bus suspend failed", "err", err)
	}

	err := r.pulse(ctx)

	// Reinitialize even when the sequence was interrupted.
	r.restoreFuncs()
	if rerr := r.bus.Reopen(); rerr != nil && err == nil {
		err = rerr
	}

	r.mu.Lock()
	r.faults.Count++
	r.faults.LastAtMillis = r.clk.Millis()
	f := r.faults
	r.mu.Unlock()

	if err != nil {
		return fmt.Errorf("bus recovery: %w", err)
	}
	r.log.Info("bus recovery complete", "faults", f.Count)
	return nil
}

// CheckAndRecover runs Recover when Stuck reports a fault.
// It returns ErrBusFault (wrapped) when a fault was found and handled.
func (r *Recovery) CheckAndRecover(ctx context.Context) error {
	stuck, err := r.Stuck(ctx)
	if err != nil {
		return err
	}
	if !stuck {
		return nil
	}
	r.log.Warn("bus fault detected", "sda", "low", "scl", "high")
	if err := r.Recover(ctx); err != nil {
		return fmt.Errorf("%w: %v", ErrBusFault, err)
	}
	return ErrBusFault
}

// Faults returns the recovery counters.
func (r *Recovery) Faults() Faults {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.faults
}

// restoreFuncs hands both lines back to the bus function before Reopen.
// Lines that cannot be muxed are left as they are.
func (r *Recovery) restoreFuncs() {
	if p, ok := r.lines.SDA.(funcSetter); ok {
		if err := p.SetFunc(i2c.SDA); err != nil {
			r.log.Warn("sda function restore failed", "err", err)
		}
	}
	if p, ok := r.lines.SCL.(funcSetter); ok {
		if err := p.SetFunc(i2c.SCL); err != nil {
			r.log.Warn("scl function restore failed", "err", err)
		}
	}
}

func (r *Recovery) pulse(ctx context.Context) error {
	sda, scl := r.lines.SDA, r.lines.SCL

	if err := sda.In(gpio.PullUp, gpio.NoEdge); err != nil {
		return err
	}
	if err := scl.Out(gpio.High); err != nil {
		return err
	}
	if err := r.wait(ctx, settleTime); err != nil {
		return err
	}

	for i := 0; i < recoveryPulses; i++ {
		if err := scl.Out(gpio.High); err != nil {
			return err
		}
		if err := r.wait(ctx, halfPeriod); err != nil {
			return err
		}
		if err := scl.Out(gpio.Low); err != nil {
			return err
		}
		if err := r.wait(ctx, halfPeriod); err != nil {
			return err
		}
	}

	// STOP: SDA rises while SCL is high.
	if err := sda.Out(gpio.Low); err != nil {
		return err
	}
	if err := r.wait(ctx, halfPeriod); err != nil {
		return err
	}
	if err := scl.Out(gpio.High); err != nil {
		return err
	}
	if err := r.wait(ctx, halfPeriod); err != nil {
		return err
	}
	return sda.Out(gpio.High)
}
