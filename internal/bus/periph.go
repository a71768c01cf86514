// internal/bus/periph.go
package bus

import (
	"errors"
	"fmt"

	"periph.io/x/conn/v3/gpio"
	"periph.io/x/conn/v3/gpio/gpioreg"
	"periph.io/x/conn/v3/i2c"
	"periph.io/x/conn/v3/i2c/i2creg"
	"periph.io/x/conn/v3/physic"
)

// i2cConn adapts a periph I²C bus to Conn.
type i2cConn struct {
	bus i2c.BusCloser
}

func (c *i2cConn) Write(addr uint16, w []byte) error {
	return c.bus.Tx(addr, w, nil)
}

// Read reports a full frame or nothing: periph fails the whole transaction
// when the slave stops acknowledging.
func (c *i2cConn) Read(addr uint16, r []byte) (int, error) {
	if err := c.bus.Tx(addr, nil, r); err != nil {
		return 0, err
	}
	return len(r), nil
}

func (c *i2cConn) Close() error {
	return c.bus.Close()
}

// Lines reports the pins the driver routes the bus through, when it knows them.
func (c *i2cConn) Lines() (Lines, bool) {
	p, ok := c.bus.(i2c.Pins)
	if !ok {
		return Lines{}, false
	}
	sda, scl := p.SDA(), p.SCL()
	if !usablePin(sda) || !usablePin(scl) {
		return Lines{}, false
	}
	return Lines{SDA: sda, SCL: scl}, true
}

func usablePin(p gpio.PinIO) bool {
	return p != nil && p != gpio.INVALID
}

// OpenI2C returns an Opener for a registered I²C bus.
// An empty name selects the first bus. speed 0 keeps the driver default.
// host.Init must have run before the Opener is called.
func OpenI2C(name string, speed physic.Frequency) Opener {
	return func() (Conn, error) {
		b, err := i2creg.Open(name)
		if err != nil {
			return nil, fmt.Errorf("i2c %q: %w", name, err)
		}
		if speed > 0 {
			if err := b.SetSpeed(speed); err != nil {
				_ = b.Close()
				return nil, fmt.Errorf("i2c %q: set speed %s: %w", name, speed, err)
			}
		}
		return &i2cConn{bus: b}, nil
	}
}

// LinesByName resolves the SDA and SCL pins through the GPIO registry.
func LinesByName(sda, scl string) (Lines, error) {
	sdaPin := gpioreg.ByName(sda)
	if sdaPin == nil {
		return Lines{}, fmt.Errorf("bus: unknown sda pin %q", sda)
	}
	sclPin := gpioreg.ByName(scl)
	if sclPin == nil {
		return Lines{}, fmt.Errorf("bus: unknown scl pin %q", scl)
	}
	return Lines{SDA: sdaPin, SCL: sclPin}, nil
}

// ResolveLines picks the recovery lines. Configured pin names win; without
// them the pins of the open bus master are used.
func ResolveLines(src LineSource, sda, scl string) (Lines, error) {
	if sda != "" || scl != "" {
		return LinesByName(sda, scl)
	}
	if src != nil {
		if l, ok := src.Lines(); ok {
			return l, nil
		}
	}
	return Lines{}, errors.New("bus: driver does not expose its sda/scl pins, set bus.sda_pin and bus.scl_pin")
}
