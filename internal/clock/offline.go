// internal/clock/offline.go
package clock

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
)

// ErrInvalidClockInput is returned by Offline.Set for anything that is not HH:MM.
var ErrInvalidClockInput = errors.New("clock: invalid clock input")

const minutesPerDay = 24 * 60

// Offline is a wall clock kept without network time: a user-supplied
// time of day plus the counter value at which it was set.
type Offline struct {
	basisMinutes int
	setAt        uint32
}

// Set parses "HH:MM" and anchors it at now.
// Malformed input anchors 00:00 and returns ErrInvalidClockInput; the clock
// stays usable either way.
func (o *Offline) Set(s string, now uint32) error {
	minutes, err := parseHHMM(s)
	o.basisMinutes = minutes
	o.setAt = now
	return err
}

// Minutes returns the current minute of the day (0..1439).
func (o *Offline) Minutes(now uint32) int {
	elapsed := int(Elapsed(now, o.setAt) / 60000)
	return (elapsed + o.basisMinutes) % minutesPerDay
}

// Format renders the current time of day as "HH:MM".
func (o *Offline) Format(now uint32) string {
	m := o.Minutes(now)
	return fmt.Sprintf("%02d:%02d", m/60, m%60)
}

func parseHHMM(s string) (int, error) {
	h, m, ok := strings.Cut(strings.TrimSpace(s), ":")
	if !ok {
		return 0, fmt.Errorf("%w: %q", ErrInvalidClockInput, s)
	}
	hour, err := strconv.Atoi(h)
	if err != nil {
		return 0, fmt.Errorf("%w: %q", ErrInvalidClockInput, s)
	}
	minute, err := strconv.Atoi(m)
	if err != nil {
		return 0, fmt.Errorf("%w: %q", ErrInvalidClockInput, s)
	}
	total := hour*60 + minute
	if hour < 0 || minute < 0 || total < 0 {
		return 0, fmt.Errorf("%w: %q", ErrInvalidClockInput, s)
	}
	return total % minutesPerDay, nil
}
