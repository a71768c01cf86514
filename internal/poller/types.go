// internal/poller/types.go
package poller

import "github.com/tamzrod/flapbus/internal/bus"

// UnitResult is the raw result of a single unit request.
type UnitResult struct {
	Address  int
	Response bus.Response
	AtMillis uint32
	Err      error // non-nil means the frame was not received in full
}

// PollResult is what one poll cycle produced.
type PollResult struct {
	AtMillis uint32
	Units    []UnitResult

	// Err is set when the cycle was cut short (context cancelled).
	// Units then holds only the requests that were made.
	Err error
}

// Failed counts units whose request did not complete.
func (r PollResult) Failed() int {
	n := 0
	for _, u := range r.Units {
		if u.Err != nil {
			n++
		}
	}
	return n
}
