// internal/regsim/regsim.go

// Package regsim models one USART register block on the host. It
// implements usart.Bus with hardware-like flag behaviour, records every
// register access, and lets tests inject received elements and error flags.
//
// Modelled behaviour:
//   - STATR resets to TXE|TC. Writes clear the rc_w0 flags (RXNE, TC, LBD,
//     CTS) written as zero; other bits are read-only.
//   - Writing DATAR logs the element. With AutoTx set, TXE and TC stay
//     asserted; otherwise both drop until CompleteTx.
//   - Reading DATAR pops the receive FIFO, clears PE/FE/NE/ORE/IDLE, and
//     clears RXNE once the FIFO is empty.
//   - With Loopback set, transmitted elements are fed back to the receiver.
package regsim

import (
	"fmt"
	"sync"

	"github.com/jangala-dev/tinygo-usart/usart"
)

const numRegs = int(usart.CTLR3) + 1

const (
	flagErrors = usart.FlagPE | usart.FlagFE | usart.FlagNE | usart.FlagORE
	// Status flags cleared by writing zero.
	rcw0 = usart.FlagRXNE | usart.FlagTC | usart.FlagLBD | usart.FlagCTS
	// Status bits driven by the model rather than by writes.
	statusReset = usart.FlagTXE | usart.FlagTC
)

// Op is the kind of a recorded access.
type Op uint8

const (
	OpGet Op = iota
	OpSet
)

func (o Op) String() string {
	if o == OpSet {
		return "set"
	}
	return "get"
}

// Access is one recorded register access.
type Access struct {
	Op    Op
	Reg   usart.Reg
	Value uint32
}

func (a Access) String() string {
	return fmt.Sprintf("%s %s %#04x", a.Op, a.Reg, a.Value)
}

// Peripheral is a simulated USART register block. It is safe for concurrent
// use.
type Peripheral struct {
	mu   sync.Mutex
	regs [numRegs]uint32
	rx   fifo
	tx   []uint16
	log  []Access

	// AutoTx keeps TXE and TC asserted after DATAR writes.
	AutoTx bool
	// Loopback feeds every transmitted element back into the receive FIFO.
	Loopback bool
	// Record enables the access log.
	Record bool
}

// New returns a peripheral in its reset state with AutoTx and Record set.
func New() *Peripheral {
	p := &Peripheral{AutoTx: true, Record: true}
	p.regs[usart.STATR] = statusReset
	return p
}

// Get implements usart.Bus.
func (p *Peripheral) Get(r usart.Reg) uint32 {
	p.mu.Lock()
	defer p.mu.Unlock()

	var v uint32
	switch r {
	case usart.DATAR:
		v = p.readData()
	default:
		v = p.regs[r]
	}
	p.record(OpGet, r, v)
	return v
}

// Set implements usart.Bus.
func (p *Peripheral) Set(r usart.Reg, v uint32) {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.record(OpSet, r, v)
	switch r {
	case usart.STATR:
		p.regs[usart.STATR] &= v | ^rcw0
	case usart.DATAR:
		p.writeData(uint16(v & 0x1FF))
	case usart.BRR:
		p.regs[r] = v & 0xFFFF
	default:
		p.regs[r] = v
	}
}

// readData returns the latched element and latches the next one, if any.
func (p *Peripheral) readData() uint32 {
	cur := p.regs[usart.DATAR] & 0x1FF
	p.rx.get()
	p.regs[usart.STATR] &^= flagErrors | usart.FlagIDLE
	if next, more := p.rx.peek(); more {
		p.regs[usart.DATAR] = uint32(next)
	} else {
		p.regs[usart.STATR] &^= usart.FlagRXNE
	}
	return cur
}

func (p *Peripheral) writeData(v uint16) {
	p.tx = append(p.tx, v)
	if !p.AutoTx {
		p.regs[usart.STATR] &^= usart.FlagTXE | usart.FlagTC
	}
	if p.Loopback {
		p.push(v)
	}
}

// push queues v on the line. The FIFO head is always latched in DATAR while
// RXNE is set.
func (p *Peripheral) push(v uint16) {
	if !p.rx.put(v) {
		p.regs[usart.STATR] |= usart.FlagORE
		return
	}
	if p.regs[usart.STATR]&usart.FlagRXNE == 0 {
		p.regs[usart.DATAR] = uint32(v)
		p.regs[usart.STATR] |= usart.FlagRXNE
	}
}

func (p *Peripheral) record(op Op, r usart.Reg, v uint32) {
	if p.Record {
		p.log = append(p.log, Access{Op: op, Reg: r, Value: v})
	}
}

// Inject queues received elements and asserts RXNE. Elements beyond the
// FIFO capacity are dropped and raise ORE.
func (p *Peripheral) Inject(vals ...uint16) {
	p.mu.Lock()
	defer p.mu.Unlock()
	for _, v := range vals {
		p.push(v & 0x1FF)
	}
}

// InjectBytes queues one element per byte.
func (p *Peripheral) InjectBytes(b []byte) {
	vals := make([]uint16, len(b))
	for i, c := range b {
		vals[i] = uint16(c)
	}
	p.Inject(vals...)
}

// Waiting returns the number of elements not yet read from DATAR.
func (p *Peripheral) Waiting() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return int(p.rx.used())
}

// SetFlags asserts status bits directly, as the line would.
func (p *Peripheral) SetFlags(mask uint32) {
	p.mu.Lock()
	p.regs[usart.STATR] |= mask
	p.mu.Unlock()
}

// ClearFlags drops status bits directly.
func (p *Peripheral) ClearFlags(mask uint32) {
	p.mu.Lock()
	p.regs[usart.STATR] &^= mask
	p.mu.Unlock()
}

// CompleteTx asserts TXE and TC, as when the shifter drains.
func (p *Peripheral) CompleteTx() { p.SetFlags(usart.FlagTXE | usart.FlagTC) }

// Reg returns a register value without recording or side effects.
func (p *Peripheral) Reg(r usart.Reg) uint32 {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.regs[r]
}

// Poke writes a register without recording or side effects.
func (p *Peripheral) Poke(r usart.Reg, v uint32) {
	p.mu.Lock()
	p.regs[r] = v
	p.mu.Unlock()
}

// Transmitted returns a copy of every element written to DATAR.
func (p *Peripheral) Transmitted() []uint16 {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]uint16(nil), p.tx...)
}

// TransmittedBytes returns the low byte of every transmitted element.
func (p *Peripheral) TransmittedBytes() []byte {
	tx := p.Transmitted()
	b := make([]byte, len(tx))
	for i, v := range tx {
		b[i] = byte(v)
	}
	return b
}

// Log returns a copy of the access log.
func (p *Peripheral) Log() []Access {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]Access(nil), p.log...)
}

// Writes returns the recorded Set accesses only.
func (p *Peripheral) Writes() []Access {
	var w []Access
	for _, a := range p.Log() {
		if a.Op == OpSet {
			w = append(w, a)
		}
	}
	return w
}

// ClearLog empties the access log and transmit record.
func (p *Peripheral) ClearLog() {
	p.mu.Lock()
	p.log = nil
	p.tx = nil
	p.mu.Unlock()
}

// Reset returns every register, the FIFO and the logs to power-on state.
func (p *Peripheral) Reset() {
	p.mu.Lock()
	p.regs = [numRegs]uint32{}
	p.regs[usart.STATR] = statusReset
	p.rx.clear()
	p.tx = nil
	p.log = nil
	p.mu.Unlock()
}

// Pending reports whether the interrupt line would be asserted: some status
// condition is set together with an enable that routes it.
func (p *Peripheral) Pending() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	sr := p.regs[usart.STATR]
	cr1 := p.regs[usart.CTLR1]
	cr2 := p.regs[usart.CTLR2]
	cr3 := p.regs[usart.CTLR3]

	switch {
	case sr&usart.FlagRXNE != 0 && cr1&usart.CTLR1_RXNEIE != 0:
	case sr&usart.FlagORE != 0 && cr1&usart.CTLR1_RXNEIE != 0:
	case sr&usart.FlagTXE != 0 && cr1&usart.CTLR1_TXEIE != 0:
	case sr&usart.FlagTC != 0 && cr1&usart.CTLR1_TCIE != 0:
	case sr&usart.FlagPE != 0 && cr1&usart.CTLR1_PEIE != 0:
	case sr&usart.FlagIDLE != 0 && cr1&usart.CTLR1_IDLEIE != 0:
	case sr&usart.FlagLBD != 0 && cr2&usart.CTLR2_LBDIE != 0:
	case sr&usart.FlagCTS != 0 && cr3&usart.CTLR3_CTSIE != 0:
	case sr&(usart.FlagFE|usart.FlagNE|usart.FlagORE) != 0 && cr3&usart.CTLR3_EIE != 0:
	default:
		return false
	}
	return true
}

// Dispatcher is the interrupt entry point driven by Run.
type Dispatcher interface {
	DispatchInterrupt()
}

// Run calls d.DispatchInterrupt while the interrupt is pending, at most max
// times, and returns the number of calls made.
func (p *Peripheral) Run(d Dispatcher, max int) int {
	n := 0
	for n < max && p.Pending() {
		d.DispatchInterrupt()
		n++
	}
	return n
}
