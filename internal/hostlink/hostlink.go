// internal/hostlink/hostlink.go

// Package hostlink drives a PC serial port against firmware running the
// engine in echo mode. It opens the port with a line profile and runs
// deterministic integrity exchanges: a preamble byte, then a generated
// pattern, each echoed back and checked byte for byte.
package hostlink

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/golang/glog"
	"go.bug.st/serial"

	"github.com/jangala-dev/tinygo-usart/internal/config"
	"github.com/jangala-dev/tinygo-usart/usart"
)

var (
	// ErrUnsupported reports line parameters a host serial port cannot
	// reproduce.
	ErrUnsupported = errors.New("hostlink: unsupported line parameters")

	// ErrMismatch reports an echoed byte that differs from the pattern.
	ErrMismatch = errors.New("hostlink: integrity mismatch")
)

// Tunables.
const (
	// PreambleByte is sent ahead of each pattern and skipped on receive, so a
	// first-byte artefact on the line does not fail the check.
	PreambleByte byte = 0x55

	sendChunk    = 192
	recvChunk    = 256
	readPoll     = 50 * time.Millisecond
	contextRange = 16
)

// openPort is replaced in tests.
var openPort = func(name string, mode *serial.Mode) (serial.Port, error) {
	return serial.Open(name, mode)
}

// Pattern generates the byte expected at offset i.
type Pattern func(i int) byte

// Deterministic patterns.
func PatternA(i int) byte { return byte((i*31 + 0x55) & 0xFF) }
func PatternB(i int) byte { return byte((i*17 + 0xA6) & 0xFF) }

// ModeFor maps a profile onto host port settings. An 8-bit word with parity
// carries 7 data bits; a 9-bit word with parity carries 8. Nine data bits,
// half stop bits and hardware flow control have no host equivalent.
func ModeFor(p config.Profile) (*serial.Mode, error) {
	mode := &serial.Mode{BaudRate: int(p.Baud)}

	switch {
	case p.WordLength == usart.WordLength9 && p.Parity == usart.ParityNone:
		return nil, fmt.Errorf("%w: 9 data bits", ErrUnsupported)
	case p.WordLength == usart.WordLength8 && p.Parity != usart.ParityNone:
		mode.DataBits = 7
	default:
		mode.DataBits = 8
	}

	switch p.Parity {
	case usart.ParityNone:
		mode.Parity = serial.NoParity
	case usart.ParityEven:
		mode.Parity = serial.EvenParity
	case usart.ParityOdd:
		mode.Parity = serial.OddParity
	}

	switch p.StopBits {
	case usart.StopBits1:
		mode.StopBits = serial.OneStopBit
	case usart.StopBits1Half:
		mode.StopBits = serial.OnePointFiveStopBits
	case usart.StopBits2:
		mode.StopBits = serial.TwoStopBits
	default:
		return nil, fmt.Errorf("%w: %s stop bits", ErrUnsupported, p.StopBits)
	}

	if p.FlowControl != usart.FlowNone {
		return nil, fmt.Errorf("%w: flow control %s", ErrUnsupported, p.FlowControl)
	}
	return mode, nil
}

// Link is an open host port.
type Link struct {
	port serial.Port
	mask byte
}

// Open opens the profile's port.
func Open(p config.Profile) (*Link, error) {
	if p.Port == "" {
		return nil, fmt.Errorf("hostlink: profile %q has no port", p.Name)
	}
	mode, err := ModeFor(p)
	if err != nil {
		return nil, err
	}
	port, err := openPort(p.Port, mode)
	if err != nil {
		return nil, fmt.Errorf("hostlink: open %s: %w", p.Port, err)
	}
	glog.V(1).Infof("opened %s: %d baud, %d data bits, parity %s", p.Port, mode.BaudRate, mode.DataBits, p.Parity)
	return NewLink(port, mode.DataBits)
}

// NewLink wraps an already open port. dataBits selects the comparison mask.
func NewLink(port serial.Port, dataBits int) (*Link, error) {
	if err := port.SetReadTimeout(readPoll); err != nil {
		port.Close()
		return nil, fmt.Errorf("hostlink: set read timeout: %w", err)
	}
	l := &Link{port: port, mask: 0xFF}
	if dataBits == 7 {
		l.mask = 0x7F
	}
	return l, nil
}

func (l *Link) Close() error { return l.port.Close() }

// Reset discards anything buffered in either direction.
func (l *Link) Reset() error {
	if err := l.port.ResetInputBuffer(); err != nil {
		return err
	}
	return l.port.ResetOutputBuffer()
}

// Result summarises one exchange.
type Result struct {
	Sent     int
	Received int
	Elapsed  time.Duration
}

// Rate returns the echoed payload rate in bytes per second.
func (r Result) Rate() float64 {
	if r.Elapsed <= 0 {
		return 0
	}
	return float64(r.Received) / r.Elapsed.Seconds()
}

// Exchange sends the preamble and n pattern bytes and checks the echo. It
// returns a *Mismatch on the first differing byte.
func (l *Link) Exchange(ctx context.Context, gen Pattern, n int) (Result, error) {
	start := time.Now()
	res := Result{}

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	sendErr := make(chan error, 1)
	go func() {
		sent, err := l.send(ctx, gen, n)
		res.Sent = sent
		sendErr <- err
	}()

	received, err := l.check(ctx, gen, n)
	res.Received = received
	if err != nil {
		cancel()
		<-sendErr
		res.Elapsed = time.Since(start)
		return res, err
	}
	if err := <-sendErr; err != nil {
		res.Elapsed = time.Since(start)
		return res, err
	}
	if err := l.port.Drain(); err != nil {
		glog.Warningf("drain: %v", err)
	}
	res.Elapsed = time.Since(start)
	glog.V(1).Infof("exchange %d bytes in %s", n, res.Elapsed)
	return res, nil
}

func (l *Link) send(ctx context.Context, gen Pattern, n int) (int, error) {
	if _, err := l.port.Write([]byte{PreambleByte}); err != nil {
		return 0, err
	}
	var buf [sendChunk]byte
	sent := 0
	for sent < n {
		if err := ctx.Err(); err != nil {
			return sent, err
		}
		k := min(n-sent, sendChunk)
		for j := 0; j < k; j++ {
			buf[j] = gen(sent+j) & l.mask
		}
		m, err := l.port.Write(buf[:k])
		sent += m
		if err != nil {
			return sent, err
		}
		glog.V(3).Infof("sent %d/%d", sent, n)
	}
	return sent, nil
}

// check reads the preamble and n echoed bytes.
func (l *Link) check(ctx context.Context, gen Pattern, n int) (int, error) {
	var buf [recvChunk]byte

	for skipped := false; !skipped; {
		m, err := l.read(ctx, buf[:1])
		if err != nil {
			return 0, fmt.Errorf("waiting for preamble: %w", err)
		}
		skipped = m > 0
	}

	received := 0
	for received < n {
		m, err := l.read(ctx, buf[:min(n-received, recvChunk)])
		if err != nil {
			return received, err
		}
		for i := 0; i < m; i++ {
			if want := gen(received+i) & l.mask; buf[i]&l.mask != want {
				return received + i, newMismatch(gen, l.mask, received+i, buf[:m], i)
			}
		}
		received += m
	}
	return received, nil
}

// read returns after at least one byte or ctx ending. The port read timeout
// bounds each poll.
func (l *Link) read(ctx context.Context, b []byte) (int, error) {
	for {
		if err := ctx.Err(); err != nil {
			return 0, err
		}
		m, err := l.port.Read(b)
		if err != nil {
			return 0, err
		}
		if m > 0 {
			return m, nil
		}
	}
}

// Mismatch describes the first differing byte with a window of context.
type Mismatch struct {
	Offset int
	Start  int    // offset of Want[0] and Got[0]
	Want   []byte // expected window
	Got    []byte // received window, zero where not yet read
}

func (m *Mismatch) Error() string {
	return fmt.Sprintf("%v at offset %d (want 0x%02x, got 0x%02x)", ErrMismatch, m.Offset,
		m.Want[m.Offset-m.Start], m.Got[m.Offset-m.Start])
}

func (m *Mismatch) Unwrap() error { return ErrMismatch }

func newMismatch(gen Pattern, mask byte, off int, chunk []byte, rel int) *Mismatch {
	start := max(off-contextRange, 0)
	end := off + contextRange + 1
	base := off - rel

	mm := &Mismatch{Offset: off, Start: start, Want: make([]byte, end-start), Got: make([]byte, end-start)}
	for i := range mm.Want {
		mm.Want[i] = gen(start+i) & mask
		if idx := start + i - base; idx >= 0 && idx < len(chunk) {
			mm.Got[i] = chunk[idx]
		}
	}
	return mm
}
