// internal/bus/transport.go
package bus

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sync"

	"golang.org/x/exp/slog"
)

var (
	// ErrShortRead means the unit answered with fewer (or more) bytes than a
	// full frame. The previous observed state of the unit must be kept.
	ErrShortRead = errors.New("bus: short read")

	// ErrBusFault means the data line is held low while the clock line is idle high.
	ErrBusFault = errors.New("bus: stuck data line")

	// ErrClosed is returned while the transport is suspended for line recovery.
	ErrClosed = errors.New("bus: transport closed")
)

// Conn is one bus master. Read reports how many bytes were clocked in.
type Conn interface {
	Write(addr uint16, w []byte) error
	Read(addr uint16, r []byte) (int, error)
}

// Opener (re)creates the bus master. The returned Conn may implement io.Closer.
type Opener func() (Conn, error)

// LineSource knows which pins carry the bus.
type LineSource interface {
	Lines() (Lines, bool)
}

// Transport frames commands and responses for addressable units.
// Transactions are serialized: the bus is half-duplex.
type Transport struct {
	mu    sync.Mutex
	proto Protocol
	open  Opener
	conn  Conn
	log   *slog.Logger
}

// NewTransport opens the bus once (fail fast at startup).
func NewTransport(proto Protocol, open Opener, log *slog.Logger) (*Transport, error) {
	if proto.AnswerSize != 3 && proto.AnswerSize != 4 {
		return nil, fmt.Errorf("bus: unsupported answer size %d", proto.AnswerSize)
	}
	if open == nil {
		return nil, errors.New("bus: opener required")
	}
	if log == nil {
		log = slog.Default()
	}
	conn, err := open()
	if err != nil {
		return nil, fmt.Errorf("bus: open: %w", err)
	}
	return &Transport{proto: proto, open: open, conn: conn, log: log}, nil
}

// Protocol returns the frame geometry in use.
func (t *Transport) Protocol() Protocol {
	return t.proto
}

// RequestUnit reads one answer frame from the unit at addr.
func (t *Transport) RequestUnit(ctx context.Context, addr uint16) (Response, error) {
	if err := ctx.Err(); err != nil {
		return Response{}, err
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	if t.conn == nil {
		return Response{}, ErrClosed
	}

	buf := make([]byte, t.proto.AnswerSize)
	n, err := t.conn.Read(addr, buf)
	if err != nil {
		return Response{}, fmt.Errorf("%w: unit=%d: %v", ErrShortRead, addr, err)
	}
	if n != len(buf) {
		return Response{}, fmt.Errorf("%w: unit=%d got=%d want=%d", ErrShortRead, addr, n, len(buf))
	}

	t.log.Debug("unit answered", "unit", addr, "raw", buf)
	return t.proto.DecodeResponse(buf)
}

// SendCommand writes opcode + payload in a single transaction.
func (t *Transport) SendCommand(ctx context.Context, addr uint16, op Opcode, payload []byte) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	if t.conn == nil {
		return ErrClosed
	}

	if err := t.conn.Write(addr, frame(op, payload)); err != nil {
		return fmt.Errorf("bus: %s unit=%d: %w", op, addr, err)
	}
	t.log.Debug("command sent", "unit", addr, "op", op.String(), "payload", payload)
	return nil
}

// Suspend releases the bus master so its lines can be driven as GPIO.
func (t *Transport) Suspend() error {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.closeLocked()
}

// Reopen reinitializes the bus master.
func (t *Transport) Reopen() error {
	t.mu.Lock()
	defer t.mu.Unlock()

	if err := t.closeLocked(); err != nil {
		t.log.Warn("bus close before reopen failed", "err", err)
	}
	conn, err := t.open()
	if err != nil {
		return fmt.Errorf("bus: reopen: %w", err)
	}
	t.conn = conn
	return nil
}

// Lines returns the open bus master's own SDA and SCL pins, when its driver
// exposes them.
func (t *Transport) Lines() (Lines, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()

	src, ok := t.conn.(LineSource)
	if !ok {
		return Lines{}, false
	}
	return src.Lines()
}

// Close releases the bus for good.
func (t *Transport) Close() error {
	return t.Suspend()
}

func (t *Transport) closeLocked() error {
	if t.conn == nil {
		return nil
	}
	c := t.conn
	t.conn = nil
	if cl, ok := c.(io.Closer); ok {
		return cl.Close()
	}
	return nil
}
