package hostlink

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.bug.st/serial"

	"github.com/jangala-dev/tinygo-usart/internal/config"
	"github.com/jangala-dev/tinygo-usart/usart"
)

// echoPort is a serial.Port that loops writes back to reads. corruptAt, if
// non-negative, flips the byte at that offset of the echoed stream.
type echoPort struct {
	mu        sync.Mutex
	buf       []byte
	echoed    int
	corruptAt int
	closed    bool
	mode      *serial.Mode
}

func newEchoPort() *echoPort { return &echoPort{corruptAt: -1} }

func (e *echoPort) Write(p []byte) (int, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	for _, b := range p {
		if e.echoed == e.corruptAt {
			b ^= 0xFF
		}
		e.buf = append(e.buf, b)
		e.echoed++
	}
	return len(p), nil
}

func (e *echoPort) Read(p []byte) (int, error) {
	e.mu.Lock()
	n := copy(p, e.buf)
	e.buf = e.buf[n:]
	e.mu.Unlock()
	if n == 0 {
		time.Sleep(time.Millisecond)
	}
	return n, nil
}

func (e *echoPort) SetMode(mode *serial.Mode) error                      { e.mode = mode; return nil }
func (e *echoPort) Drain() error                                         { return nil }
func (e *echoPort) ResetInputBuffer() error                              { return nil }
func (e *echoPort) ResetOutputBuffer() error                             { return nil }
func (e *echoPort) SetDTR(bool) error                                    { return nil }
func (e *echoPort) SetRTS(bool) error                                    { return nil }
func (e *echoPort) GetModemStatusBits() (*serial.ModemStatusBits, error) { return nil, nil }
func (e *echoPort) SetReadTimeout(time.Duration) error                   { return nil }
func (e *echoPort) Close() error                                         { e.closed = true; return nil }
func (e *echoPort) Break(time.Duration) error                            { return nil }

// silentPort never returns data.
type silentPort struct{ echoPort }

func (s *silentPort) Write(p []byte) (int, error) { return len(p), nil }

func TestModeFor(t *testing.T) {
	p := config.Default()
	mode, err := ModeFor(p)
	require.NoError(t, err)
	assert.Equal(t, &serial.Mode{BaudRate: 115200, DataBits: 8, Parity: serial.NoParity, StopBits: serial.OneStopBit}, mode)

	p.Parity = usart.ParityEven
	p.StopBits = usart.StopBits2
	mode, err = ModeFor(p)
	require.NoError(t, err)
	assert.Equal(t, 7, mode.DataBits)
	assert.Equal(t, serial.EvenParity, mode.Parity)
	assert.Equal(t, serial.TwoStopBits, mode.StopBits)

	p.WordLength = usart.WordLength9
	p.Parity = usart.ParityOdd
	p.StopBits = usart.StopBits1Half
	mode, err = ModeFor(p)
	require.NoError(t, err)
	assert.Equal(t, 8, mode.DataBits)
	assert.Equal(t, serial.OnePointFiveStopBits, mode.StopBits)
}

func TestModeFor_Unsupported(t *testing.T) {
	for _, mut := range []func(*config.Profile){
		func(p *config.Profile) { p.WordLength = usart.WordLength9 },
		func(p *config.Profile) { p.StopBits = usart.StopBitsHalf },
		func(p *config.Profile) { p.FlowControl = usart.FlowCTS },
	} {
		p := config.Default()
		mut(&p)
		_, err := ModeFor(p)
		assert.ErrorIs(t, err, ErrUnsupported)
	}
}

func TestOpen_UsesProfile(t *testing.T) {
	port := newEchoPort()
	var gotName string
	var gotMode *serial.Mode
	restore := openPort
	openPort = func(name string, mode *serial.Mode) (serial.Port, error) {
		gotName, gotMode = name, mode
		return port, nil
	}
	defer func() { openPort = restore }()

	p := config.Default()
	p.Port = "/dev/ttyTEST"
	p.Baud = 9600
	l, err := Open(p)
	require.NoError(t, err)
	assert.Equal(t, "/dev/ttyTEST", gotName)
	assert.Equal(t, 9600, gotMode.BaudRate)

	require.NoError(t, l.Close())
	assert.True(t, port.closed)

	p.Port = ""
	_, err = Open(p)
	assert.Error(t, err)
}

func TestOpen_PropagatesError(t *testing.T) {
	restore := openPort
	openPort = func(string, *serial.Mode) (serial.Port, error) { return nil, errors.New("busy") }
	defer func() { openPort = restore }()

	p := config.Default()
	p.Port = "/dev/ttyTEST"
	_, err := Open(p)
	assert.ErrorContains(t, err, "busy")
}

func TestExchange_Echo(t *testing.T) {
	l, err := NewLink(newEchoPort(), 8)
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	res, err := l.Exchange(ctx, PatternA, 1000)
	require.NoError(t, err)
	assert.Equal(t, 1000, res.Sent)
	assert.Equal(t, 1000, res.Received)
	assert.Positive(t, res.Rate())
}

func TestExchange_SevenBitMask(t *testing.T) {
	l, err := NewLink(newEchoPort(), 7)
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	_, err = l.Exchange(ctx, PatternB, 300)
	require.NoError(t, err)
}

func TestExchange_ReportsMismatch(t *testing.T) {
	port := newEchoPort()
	port.corruptAt = 1 + 40 // preamble, then payload offset 40
	l, err := NewLink(port, 8)
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	res, err := l.Exchange(ctx, PatternA, 100)
	require.ErrorIs(t, err, ErrMismatch)
	assert.Equal(t, 40, res.Received)

	var mm *Mismatch
	require.True(t, errors.As(err, &mm))
	assert.Equal(t, 40, mm.Offset)
	assert.Equal(t, 40-contextRange, mm.Start)
	assert.Equal(t, PatternA(40), mm.Want[mm.Offset-mm.Start])
	assert.Equal(t, PatternA(40)^0xFF, mm.Got[mm.Offset-mm.Start])
}

func TestExchange_Timeout(t *testing.T) {
	l, err := NewLink(&silentPort{}, 8)
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Millisecond)
	defer cancel()
	_, err = l.Exchange(ctx, PatternA, 10)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}
