// internal/writer/device_status_writer_test.go
package writer

import (
	"errors"
	"testing"

	cfg "github.com/tamzrod/flapbus/internal/config"
	"github.com/tamzrod/flapbus/internal/status"
)

// ---- fake endpoint client ----

type regWrite struct {
	unitID uint8
	addr   uint16
	regs   []uint16
}

type fakeEndpointClient struct {
	writes []regWrite
	fail   error
}

func (f *fakeEndpointClient) WriteRegisters(unitID uint8, addr uint16, regs []uint16) error {
	if f.fail != nil {
		return f.fail
	}
	f.writes = append(f.writes, regWrite{unitID: unitID, addr: addr, regs: append([]uint16(nil), regs...)})
	return nil
}

func (f *fakeEndpointClient) last() regWrite {
	return f.writes[len(f.writes)-1]
}

// ---- tests ----

func TestNewStatusWriter_RequiresClient(t *testing.T) {
	if _, err := NewStatusWriter(StatusPlan{}, nil); err == nil {
		t.Fatalf("expected error for nil client")
	}
}

func TestDeviceNameWrittenOnFullAssertOnly(t *testing.T) {
	cli := &fakeEndpointClient{}
	sw, err := NewStatusWriter(StatusPlan{UnitID: 1, BaseSlot: 2, DeviceName: "FLAP-01"}, cli)
	if err != nil {
		t.Fatalf("new status writer: %v", err)
	}

	// ---- first write: FULL ASSERT ----
	first := status.Snapshot{Health: status.HealthOK, UnitsConfigured: 4, UnitsResponding: 4}
	if err := sw.WriteStatus(first); err != nil {
		t.Fatalf("initial full assert failed: %v", err)
	}

	w := cli.last()
	if len(w.regs) != status.SlotsPerDevice {
		t.Fatalf("expected full block write (%d regs), got %d", status.SlotsPerDevice, len(w.regs))
	}
	if w.unitID != 1 || w.addr != 2*status.SlotsPerDevice {
		t.Fatalf("unexpected target unit=%d addr=%d", w.unitID, w.addr)
	}
	name := status.EncodeDeviceName("FLAP-01")
	for i, r := range name {
		if w.regs[status.SlotDeviceNameStart+i] != r {
			t.Fatalf("device name reg %d = %#x, want %#x", i, w.regs[status.SlotDeviceNameStart+i], r)
		}
	}

	// ---- second write: one live slot changed ----
	second := first
	second.UnitsResponding = 3
	if err := sw.WriteStatus(second); err != nil {
		t.Fatalf("incremental write failed: %v", err)
	}
	w = cli.last()
	if len(w.regs) != 1 || w.addr != 2*status.SlotsPerDevice+status.SlotUnitsResponding || w.regs[0] != 3 {
		t.Fatalf("expected single-slot write, got %+v", w)
	}
}

func TestUnchangedSnapshotWritesNothing(t *testing.T) {
	cli := &fakeEndpointClient{}
	sw, _ := NewStatusWriter(StatusPlan{UnitID: 1}, cli)

	s := status.Snapshot{Health: status.HealthOK}
	_ = sw.WriteStatus(s)
	_ = sw.WriteStatus(s)

	if len(cli.writes) != 1 {
		t.Fatalf("expected only the initial full write, got %d", len(cli.writes))
	}
}

func TestFailureForcesFullReassert(t *testing.T) {
	cli := &fakeEndpointClient{}
	sw, _ := NewStatusWriter(StatusPlan{UnitID: 1}, cli)

	_ = sw.WriteStatus(status.Snapshot{Health: status.HealthOK})

	cli.fail = errors.New("link down")
	if err := sw.WriteStatus(status.Snapshot{Health: status.HealthError}); err == nil {
		t.Fatalf("expected write error")
	}

	cli.fail = nil
	if err := sw.WriteStatus(status.Snapshot{Health: status.HealthError}); err != nil {
		t.Fatalf("recovery write failed: %v", err)
	}
	if len(cli.last().regs) != status.SlotsPerDevice {
		t.Fatalf("expected full block after failure, got %d regs", len(cli.last().regs))
	}
}

func TestBuildStatusWriter_DisabledWithoutEndpoint(t *testing.T) {
	sw, closeFn, err := BuildStatusWriter(cfg.DiagnosticsConfig{})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if sw != nil {
		t.Fatalf("status writer must be nil without an endpoint")
	}
	if err := closeFn(); err != nil {
		t.Fatalf("noop close failed: %v", err)
	}
}
