// usart/stream.go

package usart

import (
	"context"
	"time"
)

// Flusher is implemented by types that can wait for buffered output to
// reach the wire.
type Flusher interface{ Flush() error }

// Port exposes a configured USART as an io.Reader and io.Writer over the
// blocking transfer path. It moves raw octets only, so it requires a
// configuration with one-byte elements (not 9-bit without parity).
//
// Port must not be used on a direction that has an async transfer in
// flight; the underlying calls return ErrBusy.
type Port struct {
	U *USART
	// Timeout bounds each Read, Write and Flush in milliseconds.
	Timeout uint32
}

// NewPort wraps u with a per-call timeout.
func NewPort(u *USART, timeout time.Duration) *Port {
	return &Port{U: u, Timeout: millis(timeout)}
}

// maxChunk is the largest element count one transfer accepts.
const maxChunk = 0xFFFF

// Write implements io.Writer. It returns once every byte has been shifted
// out (TC set) or the timeout expires, in which case n counts the bytes
// already handed to the data register.
func (p *Port) Write(b []byte) (int, error) {
	return p.write(b, p.Timeout)
}

// WriteContext is Write bounded by the deadline of ctx instead of Timeout.
func (p *Port) WriteContext(ctx context.Context, b []byte) (int, error) {
	budget, err := p.budget(ctx)
	if err != nil {
		return 0, err
	}
	return p.write(b, budget)
}

func (p *Port) write(b []byte, budget uint32) (int, error) {
	if err := p.check(); err != nil {
		return 0, err
	}
	sent := 0
	for sent < len(b) {
		n := min(len(b)-sent, maxChunk)
		if err := p.U.Transmit(b[sent:sent+n], n, budget); err != nil {
			if err == ErrTimeout {
				sent += n - p.U.TxRemaining()
			}
			return sent, err
		}
		sent += n
	}
	return sent, nil
}

// Read implements io.Reader. It blocks until at least one byte arrives or
// the timeout expires, then takes whatever else is already waiting in the
// data register without blocking. It never returns io.EOF.
func (p *Port) Read(b []byte) (int, error) {
	return p.read(b, p.Timeout)
}

// ReadContext is Read bounded by the deadline of ctx instead of Timeout.
func (p *Port) ReadContext(ctx context.Context, b []byte) (int, error) {
	budget, err := p.budget(ctx)
	if err != nil {
		return 0, err
	}
	return p.read(b, budget)
}

func (p *Port) read(b []byte, budget uint32) (int, error) {
	if len(b) == 0 {
		return 0, nil
	}
	if err := p.check(); err != nil {
		return 0, err
	}
	if err := p.U.Receive(b[:1], 1, budget); err != nil {
		return 0, err
	}
	n := 1
	for n < len(b) && p.U.Flag(FlagRXNE) {
		if err := p.U.Receive(b[n:n+1], 1, 0); err != nil {
			break
		}
		n++
	}
	return n, nil
}

// ReadFull reads exactly len(b) bytes or fails with the first error.
func (p *Port) ReadFull(ctx context.Context, b []byte) (int, error) {
	read := 0
	for read < len(b) {
		n, err := p.ReadContext(ctx, b[read:])
		read += n
		if err != nil {
			return read, err
		}
	}
	return read, nil
}

// Flush waits until the transmitter reports the line idle (TC).
func (p *Port) Flush() error {
	if p.U == nil || p.U.Ticks == nil {
		return ErrParameter
	}
	if !p.U.waitFlag(FlagTC, p.U.Ticks.Ticks(), p.Timeout) {
		return ErrTimeout
	}
	return nil
}

// Buffered returns 1 when an element is waiting in the data register.
func (p *Port) Buffered() int {
	if p.U.Flag(FlagRXNE) {
		return 1
	}
	return 0
}

func (p *Port) check() error {
	if p.U == nil || p.U.Config().wide() {
		return ErrParameter
	}
	return nil
}

// budget converts the deadline of ctx into a millisecond budget.
func (p *Port) budget(ctx context.Context) (uint32, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	dl, ok := ctx.Deadline()
	if !ok {
		return p.Timeout, nil
	}
	d := time.Until(dl)
	if d <= 0 {
		return 0, context.DeadlineExceeded
	}
	return millis(d), nil
}

// millis converts d to a millisecond budget, rounding up and saturating
// below MaxDelay.
func millis(d time.Duration) uint32 {
	if d <= 0 {
		return 0
	}
	ms := (d + time.Millisecond - 1) / time.Millisecond
	if ms >= time.Duration(MaxDelay) {
		return MaxDelay - 1
	}
	return uint32(ms)
}
