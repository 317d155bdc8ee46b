//go:build usartdebug

package usart

import "go.uber.org/atomic"

type stats struct {
	isr, spurious           atomic.Uint32
	txElements, txCompletes atomic.Uint32
	rxElements, rxCompletes atomic.Uint32
	errParity, errNoise     atomic.Uint32
	errFraming, errOverrun  atomic.Uint32
	busy, timeouts          atomic.Uint32
}

// Stats holds counters since the last reset.
type Stats struct {
	// Dispatcher
	ISRCount uint32 // DispatchInterrupt calls
	Spurious uint32 // calls that serviced nothing

	// Async continuations
	TxElements  uint32
	TxCompletes uint32 // TC continuations
	RxElements  uint32
	RxCompletes uint32

	// Error bits gated in by the dispatcher
	ErrParity  uint32
	ErrNoise   uint32
	ErrFraming uint32
	ErrOverrun uint32

	// Foreground
	Busy     uint32 // starts rejected with ErrBusy
	Timeouts uint32 // blocking transfers that timed out
}

func (u *USART) DebugReset() {
	for _, c := range []*atomic.Uint32{
		&u.stats.isr, &u.stats.spurious,
		&u.stats.txElements, &u.stats.txCompletes,
		&u.stats.rxElements, &u.stats.rxCompletes,
		&u.stats.errParity, &u.stats.errNoise,
		&u.stats.errFraming, &u.stats.errOverrun,
		&u.stats.busy, &u.stats.timeouts,
	} {
		c.Store(0)
	}
}

func (u *USART) DebugStats() Stats {
	return Stats{
		ISRCount: u.stats.isr.Load(),
		Spurious: u.stats.spurious.Load(),

		TxElements:  u.stats.txElements.Load(),
		TxCompletes: u.stats.txCompletes.Load(),
		RxElements:  u.stats.rxElements.Load(),
		RxCompletes: u.stats.rxCompletes.Load(),

		ErrParity:  u.stats.errParity.Load(),
		ErrNoise:   u.stats.errNoise.Load(),
		ErrFraming: u.stats.errFraming.Load(),
		ErrOverrun: u.stats.errOverrun.Load(),

		Busy:     u.stats.busy.Load(),
		Timeouts: u.stats.timeouts.Load(),
	}
}

// Regs is a snapshot of the USART registers. DATAR is omitted because
// reading it drains the receiver.
type Regs struct {
	STATR uint32
	BRR   uint32
	CTLR1 uint32
	CTLR2 uint32
	CTLR3 uint32
}

func (u *USART) DebugRegs() Regs {
	return Regs{
		STATR: u.Bus.Get(STATR),
		BRR:   u.Bus.Get(BRR),
		CTLR1: u.Bus.Get(CTLR1),
		CTLR2: u.Bus.Get(CTLR2),
		CTLR3: u.Bus.Get(CTLR3),
	}
}
