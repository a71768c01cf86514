// internal/bus/recovery_test.go
package bus

import (
	"context"
	"errors"
	"testing"

	"periph.io/x/conn/v3/gpio"
	"periph.io/x/conn/v3/i2c"
	"periph.io/x/conn/v3/pin"

	"github.com/tamzrod/flapbus/internal/clock"
)

// ---- fake lines ----

type fakeLine struct {
	level  gpio.Level // level read back when configured as input
	output bool
	outs   []gpio.Level
}

func (l *fakeLine) In(pull gpio.Pull, edge gpio.Edge) error {
	l.output = false
	return nil
}

func (l *fakeLine) Read() gpio.Level { return l.level }

func (l *fakeLine) Out(v gpio.Level) error {
	l.output = true
	l.outs = append(l.outs, v)
	return nil
}

type fakeReinit struct {
	suspends int
	reopens  int
}

func (f *fakeReinit) Suspend() error { f.suspends++; return nil }
func (f *fakeReinit) Reopen() error  { f.reopens++; return nil }

// muxLine is a line whose function can be switched, logging into a shared trail.
type muxLine struct {
	fakeLine
	trail *[]string
}

func (l *muxLine) SetFunc(f pin.Func) error {
	*l.trail = append(*l.trail, string(f))
	return nil
}

type trailReinit struct {
	trail *[]string
}

func (f *trailReinit) Suspend() error { *f.trail = append(*f.trail, "suspend"); return nil }
func (f *trailReinit) Reopen() error  { *f.trail = append(*f.trail, "reopen"); return nil }

func newFakeRecovery(t *testing.T, sda, scl *fakeLine, bus *fakeReinit, clk clock.Source) *Recovery {
	t.Helper()
	r, err := NewRecovery(RecoveryConfig{
		Lines: Lines{SDA: sda, SCL: scl},
		Bus:   bus,
		Clock: clk,
		Wait:  clock.NoWait,
	})
	if err != nil {
		t.Fatalf("NewRecovery err=%v", err)
	}
	return r
}

// ---- tests ----

func TestStuck_SDALowSCLHigh(t *testing.T) {
	cases := []struct {
		sda, scl gpio.Level
		want     bool
	}{
		{gpio.Low, gpio.High, true},
		{gpio.High, gpio.High, false},
		{gpio.Low, gpio.Low, false},
		{gpio.High, gpio.Low, false},
	}
	for _, c := range cases {
		bus := &fakeReinit{}
		r := newFakeRecovery(t, &fakeLine{level: c.sda}, &fakeLine{level: c.scl}, bus, &clock.Manual{})
		got, err := r.Stuck(context.Background())
		if err != nil {
			t.Fatalf("Stuck err=%v", err)
		}
		if got != c.want {
			t.Fatalf("sda=%v scl=%v stuck=%v, want %v", c.sda, c.scl, got, c.want)
		}
		if bus.suspends != 1 || bus.reopens != 1 {
			t.Fatalf("expected suspend/reopen once, got %d/%d", bus.suspends, bus.reopens)
		}
	}
}

func TestRecover_NinePulsesThenStop(t *testing.T) {
	sda, scl := &fakeLine{}, &fakeLine{}
	bus := &fakeReinit{}
	r := newFakeRecovery(t, sda, scl, bus, &clock.Manual{Now: 42})

	if err := r.Recover(context.Background()); err != nil {
		t.Fatalf("Recover err=%v", err)
	}

	// initial high + 9 x (high, low) + final high for STOP
	if len(scl.outs) != 1+2*recoveryPulses+1 {
		t.Fatalf("scl transitions = %d", len(scl.outs))
	}
	lows := 0
	for _, v := range scl.outs {
		if v == gpio.Low {
			lows++
		}
	}
	if lows != recoveryPulses {
		t.Fatalf("scl low pulses = %d, want %d", lows, recoveryPulses)
	}
	if len(sda.outs) != 2 || sda.outs[0] != gpio.Low || sda.outs[1] != gpio.High {
		t.Fatalf("sda stop sequence = %v", sda.outs)
	}
	if bus.reopens != 1 {
		t.Fatalf("bus not reinitialized")
	}

	f := r.Faults()
	if f.Count != 1 || f.LastAtMillis != 42 {
		t.Fatalf("faults = %+v", f)
	}
}

func TestCheckAndRecover_CountsExactlyOnce(t *testing.T) {
	sda, scl := &fakeLine{level: gpio.Low}, &fakeLine{level: gpio.High}
	r := newFakeRecovery(t, sda, scl, &fakeReinit{}, &clock.Manual{Now: 7})

	if err := r.CheckAndRecover(context.Background()); !errors.Is(err, ErrBusFault) {
		t.Fatalf("err=%v, want ErrBusFault", err)
	}
	if r.Faults().Count != 1 {
		t.Fatalf("fault count = %d, want 1", r.Faults().Count)
	}

	// line released: no further recoveries
	sda.level = gpio.High
	if err := r.CheckAndRecover(context.Background()); err != nil {
		t.Fatalf("healthy bus err=%v", err)
	}
	if r.Faults().Count != 1 {
		t.Fatalf("fault count = %d after healthy check", r.Faults().Count)
	}
}

func TestRecover_CancelledStillReinitializes(t *testing.T) {
	bus := &fakeReinit{}
	r := newFakeRecovery(t, &fakeLine{}, &fakeLine{}, bus, &clock.Manual{})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if err := r.Recover(ctx); !errors.Is(err, context.Canceled) {
		t.Fatalf("err=%v, want context.Canceled", err)
	}
	if bus.reopens != 1 {
		t.Fatalf("bus not reinitialized after cancel")
	}
}

func TestRecover_RestoresPinFunctionsBeforeReopen(t *testing.T) {
	var trail []string
	sda := &muxLine{trail: &trail}
	scl := &muxLine{trail: &trail}
	r, err := NewRecovery(RecoveryConfig{
		Lines: Lines{SDA: sda, SCL: scl},
		Bus:   &trailReinit{trail: &trail},
		Clock: &clock.Manual{},
		Wait:  clock.NoWait,
	})
	if err != nil {
		t.Fatalf("NewRecovery err=%v", err)
	}

	if err := r.Recover(context.Background()); err != nil {
		t.Fatalf("Recover err=%v", err)
	}
	want := []string{"suspend", string(i2c.SDA), string(i2c.SCL), "reopen"}
	if len(trail) != len(want) {
		t.Fatalf("trail = %v, want %v", trail, want)
	}
	for i := range want {
		if trail[i] != want[i] {
			t.Fatalf("trail = %v, want %v", trail, want)
		}
	}

	trail = nil
	if _, err := r.Stuck(context.Background()); err != nil {
		t.Fatalf("Stuck err=%v", err)
	}
	if len(trail) != len(want) || trail[len(trail)-1] != "reopen" || trail[1] != string(i2c.SDA) {
		t.Fatalf("sampling trail = %v", trail)
	}
}
