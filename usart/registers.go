// usart/registers.go

package usart

// Reg selects one register of the USART block.
type Reg uint8

const (
	STATR Reg = iota // status
	DATAR            // data (read drains RX, write loads TX)
	BRR              // baud divisor: [15:4] integer, [3:0] fraction
	CTLR1            // word length, parity, mode, most interrupt enables
	CTLR2            // stop bits, LIN break detect
	CTLR3            // flow control, error interrupt

	numRegs
)

var regNames = [numRegs]string{
	STATR: "STATR",
	DATAR: "DATAR",
	BRR:   "BRR",
	CTLR1: "CTLR1",
	CTLR2: "CTLR2",
	CTLR3: "CTLR3",
}

func (r Reg) String() string {
	if r >= numRegs {
		return "REG?"
	}
	return regNames[r]
}

// Bus is the register interface of one USART instance. On hardware it is
// backed by memory-mapped volatile registers; on a host it is a simulator.
// Implementations must not cache: every Get is a fresh hardware read.
type Bus interface {
	Get(r Reg) uint32
	Set(r Reg, v uint32)
}

// STATR flags.
const (
	FlagPE   uint32 = 0x0001 // parity error
	FlagFE   uint32 = 0x0002 // framing error
	FlagNE   uint32 = 0x0004 // noise error
	FlagORE  uint32 = 0x0008 // overrun error
	FlagIDLE uint32 = 0x0010
	FlagRXNE uint32 = 0x0020 // receive data register not empty
	FlagTC   uint32 = 0x0040 // transmission complete
	FlagTXE  uint32 = 0x0080 // transmit data register empty
	FlagLBD  uint32 = 0x0100
	FlagCTS  uint32 = 0x0200

	flagErrors = FlagPE | FlagFE | FlagNE | FlagORE
)

// CTLR1 bits.
const (
	CTLR1_SBK    uint32 = 0x0001
	CTLR1_RWU    uint32 = 0x0002
	CTLR1_RE     uint32 = 0x0004
	CTLR1_TE     uint32 = 0x0008
	CTLR1_IDLEIE uint32 = 0x0010
	CTLR1_RXNEIE uint32 = 0x0020
	CTLR1_TCIE   uint32 = 0x0040
	CTLR1_TXEIE  uint32 = 0x0080
	CTLR1_PEIE   uint32 = 0x0100
	CTLR1_PS     uint32 = 0x0200
	CTLR1_PCE    uint32 = 0x0400
	CTLR1_WAKE   uint32 = 0x0800
	CTLR1_M      uint32 = 0x1000
	CTLR1_UE     uint32 = 0x2000

	// Fields owned by Configure: M, PCE, PS, TE, RE.
	ctlr1ConfigMask = CTLR1_M | CTLR1_PCE | CTLR1_PS | CTLR1_TE | CTLR1_RE
)

// CTLR2 bits.
const (
	CTLR2_LBDIE uint32 = 0x0040
	CTLR2_STOP  uint32 = 0x3000
)

// CTLR3 bits.
const (
	CTLR3_EIE   uint32 = 0x0001
	CTLR3_RTSE  uint32 = 0x0100
	CTLR3_CTSE  uint32 = 0x0200
	CTLR3_CTSIE uint32 = 0x0400

	ctlr3ConfigMask = CTLR3_RTSE | CTLR3_CTSE
)

// IRQSource names one interrupt enable of the peripheral.
type IRQSource uint8

const (
	IRQParity     IRQSource = iota // PEIE
	IRQTxEmpty                     // TXEIE
	IRQTxComplete                  // TCIE
	IRQRxNotEmpty                  // RXNEIE
	IRQIdle                        // IDLEIE
	IRQBreak                       // LBDIE
	IRQCTS                         // CTSIE
	IRQError                       // EIE: framing, noise, overrun

	numIRQSources
)

type irqBit struct {
	reg  Reg
	mask uint32
	name string
}

// irqSources maps each source to the control register and bit holding its
// enable.
var irqSources = [numIRQSources]irqBit{
	IRQParity:     {CTLR1, CTLR1_PEIE, "PE"},
	IRQTxEmpty:    {CTLR1, CTLR1_TXEIE, "TXE"},
	IRQTxComplete: {CTLR1, CTLR1_TCIE, "TC"},
	IRQRxNotEmpty: {CTLR1, CTLR1_RXNEIE, "RXNE"},
	IRQIdle:       {CTLR1, CTLR1_IDLEIE, "IDLE"},
	IRQBreak:      {CTLR2, CTLR2_LBDIE, "LBD"},
	IRQCTS:        {CTLR3, CTLR3_CTSIE, "CTS"},
	IRQError:      {CTLR3, CTLR3_EIE, "ERR"},
}

func (s IRQSource) String() string {
	if s >= numIRQSources {
		return "IRQ?"
	}
	return irqSources[s].name
}

// Location returns the register and enable mask for s.
func (s IRQSource) Location() (Reg, uint32) {
	b := irqSources[s]
	return b.reg, b.mask
}

// EnableIRQ sets the enable bit of src.
func (u *USART) EnableIRQ(src IRQSource) {
	b := irqSources[src]
	SetBits(u.Bus, b.reg, b.mask)
}

// DisableIRQ clears the enable bit of src.
func (u *USART) DisableIRQ(src IRQSource) {
	b := irqSources[src]
	ClearBits(u.Bus, b.reg, b.mask)
}

// IRQEnabled reports whether src is enabled.
func (u *USART) IRQEnabled(src IRQSource) bool {
	b := irqSources[src]
	return u.Bus.Get(b.reg)&b.mask != 0
}

// Flag reports whether all bits of flag are set in STATR.
func (u *USART) Flag(flag uint32) bool {
	return u.Bus.Get(STATR)&flag == flag
}

// ClearFlag clears flag by writing zero to it and one to every other bit,
// leaving other rc_w0 flags untouched.
func (u *USART) ClearFlag(flag uint32) {
	u.Bus.Set(STATR, ^flag&0xFFFF)
}
