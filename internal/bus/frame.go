// internal/bus/frame.go
package bus

import (
	"encoding/binary"
	"fmt"
)

// Wire format shared with the unit firmware.
// These values define the protocol and MUST NOT be configurable.

// ---- COMMANDS (master -> unit) ----

// Opcode is the first byte of every command frame.
type Opcode byte

const (
	// OpUpdateOffset: offset MSB, offset LSB, [zero letter index]
	OpUpdateOffset Opcode = 0

	// OpShowLetter: letter index, rpm
	OpShowLetter Opcode = 1
)

func (o Opcode) String() string {
	switch o {
	case OpUpdateOffset:
		return "UPDATE_OFFSET"
	case OpShowLetter:
		return "SHOW_LETTER"
	default:
		return fmt.Sprintf("opcode(%d)", byte(o))
	}
}

// ---- RESPONSES (unit -> master) ----

// Signal is the tri-state rotation byte of a response.
type Signal int8

const (
	SignalUnreachable Signal = -1
	SignalIdle        Signal = 0
	SignalRotating    Signal = 1
)

// Protocol selects the response frame geometry.
type Protocol struct {
	// AnswerSize is 3 (signal + offset) or 4 (+ zero letter index).
	AnswerSize int
}

// ProtocolV1 is the original 3-byte answer.
var ProtocolV1 = Protocol{AnswerSize: 3}

// ProtocolV2 adds the calibration letter index.
var ProtocolV2 = Protocol{AnswerSize: 4}

// HasZeroIndex reports whether frames carry the calibration letter index.
func (p Protocol) HasZeroIndex() bool {
	return p.AnswerSize >= 4
}

// Response is a decoded answer frame. Geometry only: no interpretation of
// staleness, which belongs to the poller.
type Response struct {
	Signal          Signal
	Offset          int
	ZeroLetterIndex int // -1 when the protocol does not carry it
}

// DecodeResponse parses exactly p.AnswerSize bytes.
func (p Protocol) DecodeResponse(b []byte) (Response, error) {
	if len(b) != p.AnswerSize {
		return Response{}, fmt.Errorf("%w: got=%d want=%d", ErrShortRead, len(b), p.AnswerSize)
	}
	r := Response{
		Signal:          Signal(int8(b[0])),
		Offset:          int(binary.BigEndian.Uint16(b[1:3])),
		ZeroLetterIndex: -1,
	}
	if p.HasZeroIndex() {
		r.ZeroLetterIndex = int(b[3])
	}
	return r, nil
}

// EncodeResponse is the unit-side encoder, used by simulators and tests.
func (p Protocol) EncodeResponse(r Response) []byte {
	b := make([]byte, p.AnswerSize)
	b[0] = byte(int8(r.Signal))
	binary.BigEndian.PutUint16(b[1:3], uint16(r.Offset))
	if p.HasZeroIndex() {
		b[3] = byte(r.ZeroLetterIndex)
	}
	return b
}

// UpdateOffsetPayload builds the UPDATE_OFFSET payload (without opcode).
func (p Protocol) UpdateOffsetPayload(offset, zeroLetterIndex int) []byte {
	out := make([]byte, 2, 3)
	binary.BigEndian.PutUint16(out, uint16(offset))
	if p.HasZeroIndex() {
		out = append(out, byte(zeroLetterIndex))
	}
	return out
}

// ShowLetterPayload builds the SHOW_LETTER payload (without opcode).
func ShowLetterPayload(letterIndex, rpm int) []byte {
	return []byte{byte(letterIndex), byte(rpm)}
}

// frame prefixes the opcode.
func frame(op Opcode, payload []byte) []byte {
	out := make([]byte, 0, 1+len(payload))
	out = append(out, byte(op))
	return append(out, payload...)
}
