// internal/engine/state.go
package engine

// Phase is where the engine is in its polling cycle.
type Phase int

const (
	// PhaseIdle: nothing has been observed yet.
	PhaseIdle Phase = iota

	// PhasePolling: a poll is on the bus.
	PhasePolling

	// PhaseReady: Observed reflects a completed poll.
	PhaseReady
)

func (p Phase) String() string {
	switch p {
	case PhaseIdle:
		return "idle"
	case PhasePolling:
		return "polling"
	case PhaseReady:
		return "ready"
	default:
		return "unknown"
	}
}
