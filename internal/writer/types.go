// internal/writer/types.go
package writer

import (
	"context"

	"github.com/tamzrod/flapbus/internal/bus"
)

// UnitClient is the exact bus contract the writer uses.
type UnitClient interface {
	SendCommand(ctx context.Context, addr uint16, op bus.Opcode, payload []byte) error
}

// UnitError is one failed command.
type UnitError struct {
	Address int
	Err     error
}

// CommitResult reports one commit pass.
type CommitResult struct {
	Sent    int
	Skipped int
	Failed  []UnitError
}

// ShowResult reports one SHOW_LETTER pass.
type ShowResult struct {
	Message  string // aligned message, exactly one character per unit
	Sent     int
	Unmapped []int // addresses whose character has no flap
	Failed   []UnitError
}
