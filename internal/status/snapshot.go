// internal/status/snapshot.go
package status

import "math"

// Snapshot represents exactly what the status writer is allowed to deliver.
// It contains no logic and no memory of the past beyond current state.
type Snapshot struct {
	Health          uint16
	LastErrorCode   uint16
	BusFaults       uint16
	UnitsConfigured uint16
	UnitsResponding uint16
	ShortReads      uint16
}

// Saturate clamps a counter into one register. Counters MUST NOT wrap.
func Saturate(n int) uint16 {
	if n < 0 {
		return 0
	}
	if n > math.MaxUint16 {
		return math.MaxUint16
	}
	return uint16(n)
}

// HealthFor derives the health code from one poll's counts.
func HealthFor(configured, responding int) uint16 {
	switch {
	case configured <= 0:
		return HealthDisabled
	case responding >= configured:
		return HealthOK
	case responding == 0:
		return HealthError
	default:
		return HealthStale
	}
}
