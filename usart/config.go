// usart/config.go

package usart

import (
	"fmt"
	"strconv"
)

// WordLength is the number of data bits per frame, parity included.
type WordLength uint8

const (
	WordLength8 WordLength = iota
	WordLength9
)

// StopBits selects the stop-bit count.
type StopBits uint8

const (
	StopBits1 StopBits = iota
	StopBitsHalf
	StopBits2
	StopBits1Half
)

// Parity selects parity generation and checking. When enabled, the parity
// bit occupies the MSB of the word.
type Parity uint8

const (
	ParityNone Parity = iota
	ParityEven
	ParityOdd
)

// Mode selects the enabled directions.
type Mode uint8

const (
	ModeRX Mode = 1 << iota
	ModeTX
	ModeTxRx = ModeRX | ModeTX
)

// FlowControl selects hardware flow control.
type FlowControl uint8

const (
	FlowNone FlowControl = iota
	FlowRTS
	FlowCTS
	FlowRTSCTS
)

// Config holds the line parameters applied by Configure.
type Config struct {
	BaudRate    uint32
	WordLength  WordLength
	StopBits    StopBits
	Parity      Parity
	Mode        Mode
	FlowControl FlowControl
}

// DefaultConfig returns 115200 8N1, both directions, no flow control.
func DefaultConfig() Config {
	return Config{BaudRate: 115200, WordLength: WordLength8, StopBits: StopBits1, Parity: ParityNone, Mode: ModeTxRx}
}

// Validate checks every field against its domain. Failures wrap ErrParameter.
func (c Config) Validate() error {
	if c.BaudRate == 0 {
		return fmt.Errorf("%w: baud rate must be positive", ErrParameter)
	}
	if c.WordLength > WordLength9 {
		return fmt.Errorf("%w: word length %d", ErrParameter, c.WordLength)
	}
	if c.StopBits > StopBits1Half {
		return fmt.Errorf("%w: stop bits %d", ErrParameter, c.StopBits)
	}
	if c.Parity > ParityOdd {
		return fmt.Errorf("%w: parity %d", ErrParameter, c.Parity)
	}
	if c.Mode == 0 || c.Mode&^ModeTxRx != 0 {
		return fmt.Errorf("%w: mode %d", ErrParameter, c.Mode)
	}
	if c.FlowControl > FlowRTSCTS {
		return fmt.Errorf("%w: flow control %d", ErrParameter, c.FlowControl)
	}
	return nil
}

// wide reports whether elements are 16-bit (9-bit words without parity).
func (c Config) wide() bool {
	return c.WordLength == WordLength9 && c.Parity == ParityNone
}

// ElementWidth returns the number of buffer bytes per transferred element.
func (c Config) ElementWidth() int {
	if c.wide() {
		return 2
	}
	return 1
}

// rxMask is the mask applied to received elements.
func (c Config) rxMask() uint16 {
	switch {
	case c.wide():
		return 0x01FF
	case c.WordLength == WordLength8 && c.Parity != ParityNone:
		// parity bit consumed by hardware
		return 0x007F
	default:
		return 0x00FF
	}
}

// txMask is the mask applied to transmitted elements.
func (c Config) txMask() uint16 {
	if c.wide() {
		return 0x01FF
	}
	return 0x00FF
}

func (c Config) String() string {
	return strconv.FormatUint(uint64(c.BaudRate), 10) + " " +
		c.WordLength.String() + "/" + c.Parity.String() + "/" + c.StopBits.String() +
		" " + c.Mode.String() + " flow=" + c.FlowControl.String()
}

// Register encodings.

func (w WordLength) bits() uint32 {
	if w == WordLength9 {
		return CTLR1_M
	}
	return 0
}

func (s StopBits) bits() uint32 {
	return uint32(s) << 12 // 00=1, 01=0.5, 10=2, 11=1.5
}

func (p Parity) bits() uint32 {
	switch p {
	case ParityEven:
		return CTLR1_PCE
	case ParityOdd:
		return CTLR1_PCE | CTLR1_PS
	}
	return 0
}

func (m Mode) bits() uint32 {
	var v uint32
	if m&ModeRX != 0 {
		v |= CTLR1_RE
	}
	if m&ModeTX != 0 {
		v |= CTLR1_TE
	}
	return v
}

func (f FlowControl) bits() uint32 {
	switch f {
	case FlowRTS:
		return CTLR3_RTSE
	case FlowCTS:
		return CTLR3_CTSE
	case FlowRTSCTS:
		return CTLR3_RTSE | CTLR3_CTSE
	}
	return 0
}

// CheckDivisor reports an ErrParameter if baud cannot be reached from
// clockHz. The BRR mantissa is 12 bits and must be at least 1.
func CheckDivisor(clockHz, baud uint32) error {
	if baud == 0 {
		return fmt.Errorf("%w: baud rate must be positive", ErrParameter)
	}
	mantissa := uint64(clockHz) / (16 * uint64(baud))
	if mantissa == 0 || mantissa > 0xFFF {
		return fmt.Errorf("%w: baud %d unreachable from %d Hz", ErrParameter, baud, clockHz)
	}
	return nil
}

// Divisor computes the BRR value for the given bus clock and baud rate:
// a 12-bit mantissa in [15:4] and a rounded 4-bit fraction in [3:0].
// A rounded fraction of 16 is masked to 0 rather than carried. The result
// is only meaningful when CheckDivisor accepts the pair.
func Divisor(clockHz, baud uint32) uint16 {
	if baud == 0 {
		return 0
	}
	integer := (25 * uint64(clockHz)) / (4 * uint64(baud))
	whole := integer / 100
	fraction := integer - 100*whole
	frac := (((fraction * 16) + 50) / 100) & 0x0F
	return uint16(whole<<4 | frac)
}

// Text forms.

func (w WordLength) String() string {
	switch w {
	case WordLength8:
		return "8"
	case WordLength9:
		return "9"
	}
	return "<invalid word length>"
}

func (w *WordLength) UnmarshalText(b []byte) error {
	switch string(b) {
	case "8", "":
		*w = WordLength8
	case "9":
		*w = WordLength9
	default:
		return fmt.Errorf("%w: word length %q", ErrParameter, b)
	}
	return nil
}

func (s StopBits) String() string {
	switch s {
	case StopBits1:
		return "1"
	case StopBitsHalf:
		return "0.5"
	case StopBits2:
		return "2"
	case StopBits1Half:
		return "1.5"
	}
	return "<invalid stop bits>"
}

func (s *StopBits) UnmarshalText(b []byte) error {
	switch string(b) {
	case "1", "":
		*s = StopBits1
	case "0.5":
		*s = StopBitsHalf
	case "2":
		*s = StopBits2
	case "1.5":
		*s = StopBits1Half
	default:
		return fmt.Errorf("%w: stop bits %q", ErrParameter, b)
	}
	return nil
}

var parityNames = [...]string{
	ParityNone: "none",
	ParityEven: "even",
	ParityOdd:  "odd",
}

func (p Parity) String() string {
	if int(p) >= len(parityNames) {
		return "<invalid parity>"
	}
	return parityNames[p]
}

func (p *Parity) UnmarshalText(b []byte) error {
	if len(b) == 0 {
		*p = ParityNone
		return nil
	}
	for i, name := range parityNames {
		if name == string(b) {
			*p = Parity(i)
			return nil
		}
	}
	return fmt.Errorf("%w: parity %q", ErrParameter, b)
}

func (m Mode) String() string {
	switch m {
	case ModeRX:
		return "rx"
	case ModeTX:
		return "tx"
	case ModeTxRx:
		return "tx_rx"
	}
	return "<invalid mode>"
}

func (m *Mode) UnmarshalText(b []byte) error {
	switch string(b) {
	case "rx":
		*m = ModeRX
	case "tx":
		*m = ModeTX
	case "tx_rx", "":
		*m = ModeTxRx
	default:
		return fmt.Errorf("%w: mode %q", ErrParameter, b)
	}
	return nil
}

var flowNames = [...]string{
	FlowNone:   "none",
	FlowRTS:    "rts",
	FlowCTS:    "cts",
	FlowRTSCTS: "rts_cts",
}

func (f FlowControl) String() string {
	if int(f) >= len(flowNames) {
		return "<invalid flow control>"
	}
	return flowNames[f]
}

func (f *FlowControl) UnmarshalText(b []byte) error {
	if len(b) == 0 {
		*f = FlowNone
		return nil
	}
	for i, name := range flowNames {
		if name == string(b) {
			*f = FlowControl(i)
			return nil
		}
	}
	return fmt.Errorf("%w: flow control %q", ErrParameter, b)
}
