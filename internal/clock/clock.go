// internal/clock/clock.go
package clock

import (
	"context"
	"time"
)

// Source yields a monotonic millisecond counter.
// The counter is 32 bits wide and wraps after ~49.7 days; compare values
// only through Elapsed.
type Source interface {
	Millis() uint32
}

// Monotonic counts milliseconds since it was created.
type Monotonic struct {
	start time.Time
}

// NewMonotonic starts a counter at zero.
func NewMonotonic() *Monotonic {
	return &Monotonic{start: time.Now()}
}

func (m *Monotonic) Millis() uint32 {
	return uint32(time.Since(m.start).Milliseconds())
}

// Elapsed returns now - then across a counter wrap.
func Elapsed(now, then uint32) uint32 {
	return now - then
}

// Manual is a Source driven by tests.
type Manual struct {
	Now uint32
}

func (m *Manual) Millis() uint32 { return m.Now }

// Advance moves the counter forward, wrapping like the real one.
func (m *Manual) Advance(ms uint32) { m.Now += ms }

// WaitFunc blocks for d or until ctx is done.
type WaitFunc func(ctx context.Context, d time.Duration) error

// Wait is the production WaitFunc.
func Wait(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

// NoWait returns immediately unless ctx is already done.
func NoWait(ctx context.Context, _ time.Duration) error {
	return ctx.Err()
}
