// internal/poller/poller_test.go
package poller

import (
	"context"
	"errors"
	"testing"

	"github.com/tamzrod/flapbus/internal/bus"
	"github.com/tamzrod/flapbus/internal/clock"
	"github.com/tamzrod/flapbus/internal/store"
)

type fakeClient struct {
	failAddr map[uint16]bool
	calls    []uint16
	clk      *clock.Manual
}

func (f *fakeClient) RequestUnit(ctx context.Context, addr uint16) (bus.Response, error) {
	f.calls = append(f.calls, addr)
	if f.clk != nil {
		f.clk.Advance(10)
	}
	if f.failAddr[addr] {
		return bus.Response{}, bus.ErrShortRead
	}
	return bus.Response{Signal: bus.SignalIdle, Offset: int(addr) * 100, ZeroLetterIndex: int(addr)}, nil
}

func TestPollOnce_IncreasingAddressOrder(t *testing.T) {
	cli := &fakeClient{}
	p, err := New(cli, &clock.Manual{}, nil)
	if err != nil {
		t.Fatalf("New() err=%v", err)
	}

	res := p.PollOnce(context.Background(), 4)
	if res.Err != nil {
		t.Fatalf("PollOnce err=%v", res.Err)
	}
	if len(res.Units) != 4 {
		t.Fatalf("expected 4 units, got %d", len(res.Units))
	}
	for i, a := range cli.calls {
		if int(a) != i {
			t.Fatalf("call %d addressed unit %d", i, a)
		}
	}
}

func TestPollOnce_FailureDoesNotAbortCycle(t *testing.T) {
	cli := &fakeClient{failAddr: map[uint16]bool{1: true}}
	p, _ := New(cli, &clock.Manual{}, nil)

	res := p.PollOnce(context.Background(), 3)
	if len(res.Units) != 3 {
		t.Fatalf("expected 3 units, got %d", len(res.Units))
	}
	if res.Failed() != 1 {
		t.Fatalf("expected 1 failure, got %d", res.Failed())
	}
	if !errors.Is(res.Units[1].Err, bus.ErrShortRead) {
		t.Fatalf("unit 1 err=%v", res.Units[1].Err)
	}
}

func TestPollOnce_ZeroUnits(t *testing.T) {
	cli := &fakeClient{}
	p, _ := New(cli, &clock.Manual{}, nil)

	res := p.PollOnce(context.Background(), 0)
	if len(res.Units) != 0 || len(cli.calls) != 0 {
		t.Fatalf("expected no requests, got %d", len(cli.calls))
	}
}

func TestPollOnce_Cancelled(t *testing.T) {
	cli := &fakeClient{}
	p, _ := New(cli, &clock.Manual{}, nil)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	res := p.PollOnce(ctx, 3)
	if !errors.Is(res.Err, context.Canceled) {
		t.Fatalf("err=%v, want context.Canceled", res.Err)
	}
	if len(cli.calls) != 0 {
		t.Fatalf("requests made after cancel: %d", len(cli.calls))
	}
}

func TestPollOnce_PerUnitTimestamps(t *testing.T) {
	clk := &clock.Manual{Now: 1000}
	cli := &fakeClient{clk: clk}
	p, _ := New(cli, clk, nil)

	res := p.PollOnce(context.Background(), 2)
	if res.Units[0].AtMillis != 1010 || res.Units[1].AtMillis != 1020 {
		t.Fatalf("timestamps = %d, %d", res.Units[0].AtMillis, res.Units[1].AtMillis)
	}
}

func TestMerge_FailureKeepsEverything(t *testing.T) {
	prev := store.UnitState{Address: 2, Rotating: true, Offset: 7, ZeroPositionLetterIndex: 3, LastResponseAtMillis: 55}
	got, changed := Merge(prev, UnitResult{Address: 2, AtMillis: 999, Err: bus.ErrShortRead})
	if changed || got != prev {
		t.Fatalf("failed request changed state: %+v", got)
	}
}

func TestMerge_UnreachableKeepsTimestamp(t *testing.T) {
	prev := store.UnitState{Address: 0, Rotating: true, Offset: 7, ZeroPositionLetterIndex: 3, LastResponseAtMillis: 55}
	got, _ := Merge(prev, UnitResult{
		Response: bus.Response{Signal: bus.SignalUnreachable, Offset: 0xFFFF, ZeroLetterIndex: 0xFF},
		AtMillis: 999,
	})
	want := prev
	want.Rotating = false
	if got != want {
		t.Fatalf("unreachable merge = %+v, want %+v", got, want)
	}
}

func TestMerge_AnswerReplaces(t *testing.T) {
	prev := store.UnitState{Address: 1, Offset: 7, ZeroPositionLetterIndex: 3, LastResponseAtMillis: 55}
	got, changed := Merge(prev, UnitResult{
		Address:  1,
		Response: bus.Response{Signal: bus.SignalRotating, Offset: 1500, ZeroLetterIndex: 9},
		AtMillis: 999,
	})
	want := store.UnitState{Address: 1, Rotating: true, Offset: 1500, ZeroPositionLetterIndex: 9, LastResponseAtMillis: 999}
	if !changed || got != want {
		t.Fatalf("merge = %+v, want %+v", got, want)
	}
}

func TestMerge_ThreeByteAnswerKeepsZeroIndex(t *testing.T) {
	prev := store.UnitState{Address: 1, ZeroPositionLetterIndex: 12}
	got, _ := Merge(prev, UnitResult{
		Response: bus.Response{Signal: bus.SignalIdle, Offset: 10, ZeroLetterIndex: -1},
		AtMillis: 5,
	})
	if got.ZeroPositionLetterIndex != 12 {
		t.Fatalf("zero index lost: %+v", got)
	}
}
