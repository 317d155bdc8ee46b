// usart/usart.go

// Package usart is a transfer engine for the CH32V00x USART. It programs line
// parameters and moves 8- or 9-bit elements through the data register either
// synchronously (busy-polled, millisecond timeout) or asynchronously, with
// each element serviced by DispatchInterrupt from the peripheral interrupt.
//
// Ownership (async paths):
//   - A direction's buffer, offset and counters belong to the foreground until
//     its interrupt sources are enabled, and to DispatchInterrupt until its
//     state returns to Ready. Start* writes every field before enabling.
//   - No locks guard transfer fields; control register updates shared with
//     interrupt context go through Modify.
//
// There is no cancel primitive. To abort an async transfer, disable its
// interrupt sources and reconfigure.
package usart

import (
	"go.uber.org/atomic"
)

// State is the lifecycle state of a transfer direction.
type State uint32

const (
	StateReset   State = 0x00 // not yet configured
	StateReady   State = 0x20
	StateBusy    State = 0x24 // configuring
	StateBusyTx  State = 0x21
	StateBusyRx  State = 0x22
	StateTimeout State = 0xA0
	StateError   State = 0xE0
)

func (s State) String() string {
	switch s {
	case StateReset:
		return "reset"
	case StateReady:
		return "ready"
	case StateBusy:
		return "busy"
	case StateBusyTx:
		return "busy-tx"
	case StateBusyRx:
		return "busy-rx"
	case StateTimeout:
		return "timeout"
	case StateError:
		return "error"
	}
	return "<invalid state>"
}

// Callbacks receives transfer events. Methods run in interrupt context and
// must not block.
type Callbacks interface {
	// TxComplete runs once the last element has left the shift register.
	TxComplete(u *USART)
	// RxComplete runs once the requested element count has been stored.
	RxComplete(u *USART)
	// Error runs when the receive path records a hardware error; ErrorCode
	// holds the accumulated bits for the duration of the call.
	Error(u *USART)
}

// NopCallbacks ignores every event.
type NopCallbacks struct{}

func (NopCallbacks) TxComplete(*USART) {}
func (NopCallbacks) RxComplete(*USART) {}
func (NopCallbacks) Error(*USART)      {}

// transfer is one direction's in-flight buffer.
type transfer struct {
	buf   []byte
	off   int    // byte offset of the next element
	size  uint16 // elements requested
	count uint16 // elements remaining
}

// USART is the handle of one peripheral instance. The caller owns its
// lifetime; the engine never releases it.
type USART struct {
	Bus   Bus
	Clock ClockSource
	Ticks TickSource

	// Handler receives completion and error events. Nil means NopCallbacks.
	Handler Callbacks

	// Setup runs once, before the first Configure touches registers. It is
	// where pins and the peripheral clock are enabled.
	Setup func(u *USART)

	cfg Config
	tx  transfer
	rx  transfer

	gState  atomic.Uint32
	rxState atomic.Uint32
	errCode atomic.Uint32

	stats stats
}

// New returns an unconfigured handle.
func New(bus Bus, clock ClockSource, ticks TickSource) *USART {
	return &USART{Bus: bus, Clock: clock, Ticks: ticks}
}

// Configure validates cfg and programs the peripheral. It may be called again
// on a Ready handle to change line parameters; the peripheral is disabled
// while its fields are rewritten.
func (u *USART) Configure(cfg Config) error {
	if u == nil || u.Bus == nil || u.Clock == nil {
		return ErrParameter
	}
	if err := cfg.Validate(); err != nil {
		return err
	}
	clk := u.Clock.BusClockHz()
	if err := CheckDivisor(clk, cfg.BaudRate); err != nil {
		return err
	}

	if State(u.gState.Load()) == StateReset && u.Setup != nil {
		u.Setup(u)
	}
	u.gState.Store(uint32(StateBusy))
	u.cfg = cfg

	// 1) Disable while the frame format changes.
	ClearBits(u.Bus, CTLR1, CTLR1_UE)

	// 2) Stop bits, then word length / parity / mode, then flow control.
	// Each is a read-modify-write of its own field only.
	Modify(u.Bus, CTLR2, CTLR2_STOP, cfg.StopBits.bits())
	Modify(u.Bus, CTLR1, ctlr1ConfigMask, cfg.WordLength.bits()|cfg.Parity.bits()|cfg.Mode.bits())
	Modify(u.Bus, CTLR3, ctlr3ConfigMask, cfg.FlowControl.bits())

	// 3) Baud divisor from the bus clock.
	brr := Divisor(clk, cfg.BaudRate)
	u.Bus.Set(BRR, uint32(brr))

	// 4) Enable and publish Ready.
	SetBits(u.Bus, CTLR1, CTLR1_UE)

	u.errCode.Store(uint32(ErrorNone))
	u.gState.Store(uint32(StateReady))
	u.rxState.Store(uint32(StateReady))

	logf("usart: configured %s clk=%d brr=%#04x", cfg, clk, brr)
	return nil
}

// Config returns the active configuration.
func (u *USART) Config() Config { return u.cfg }

// State returns the global/transmit state.
func (u *USART) State() State { return State(u.gState.Load()) }

// RxState returns the receive state.
func (u *USART) RxState() State { return State(u.rxState.Load()) }

// ErrorCode returns the accumulated hardware error bits.
func (u *USART) ErrorCode() ErrorCode { return ErrorCode(u.errCode.Load()) }

// TxRemaining returns the elements left in the current transmit.
func (u *USART) TxRemaining() int { return int(u.tx.count) }

// RxRemaining returns the elements left in the current receive.
func (u *USART) RxRemaining() int { return int(u.rx.count) }

func (u *USART) handler() Callbacks {
	if u.Handler == nil {
		return NopCallbacks{}
	}
	return u.Handler
}

// prepare validates an element buffer against the active configuration.
func (u *USART) prepare(buf []byte, count int) (transfer, bool) {
	if buf == nil || count <= 0 || count > 0xFFFF {
		return transfer{}, false
	}
	if len(buf) < count*u.cfg.ElementWidth() {
		return transfer{}, false
	}
	return transfer{buf: buf, size: uint16(count), count: uint16(count)}, true
}

// put stores v at the current offset and advances by one element.
func (t *transfer) put(v uint16, wide bool) {
	if wide {
		t.buf[t.off] = byte(v)
		t.buf[t.off+1] = byte(v >> 8)
		t.off += 2
	} else {
		t.buf[t.off] = byte(v)
		t.off++
	}
	t.count--
}

// next loads the element at the current offset and advances.
func (t *transfer) next(wide bool) uint16 {
	var v uint16
	if wide {
		v = uint16(t.buf[t.off]) | uint16(t.buf[t.off+1])<<8
		t.off += 2
	} else {
		v = uint16(t.buf[t.off])
		t.off++
	}
	t.count--
	return v
}
