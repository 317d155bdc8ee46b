package session

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jangala-dev/tinygo-usart/internal/config"
	"github.com/jangala-dev/tinygo-usart/usart"
)

func newSession(t *testing.T) *Session {
	t.Helper()
	s, err := New(8_000_000)
	require.NoError(t, err)
	return s
}

func TestConfigure_Fields(t *testing.T) {
	s := newSession(t)

	out, err := s.Configure([]string{"baud=9600", "word=9", "parity=even", "stop=2"})
	require.NoError(t, err)
	assert.Contains(t, out, "9600 9/even/2")

	cfg := s.USART.Config()
	assert.Equal(t, uint32(9600), cfg.BaudRate)
	assert.Equal(t, usart.WordLength9, cfg.WordLength)
	assert.Equal(t, usart.ParityEven, cfg.Parity)
	assert.Equal(t, usart.StopBits2, cfg.StopBits)

	_, err = s.Configure([]string{"baud=fast"})
	assert.ErrorIs(t, err, usart.ErrParameter)
	_, err = s.Configure([]string{"colour=red"})
	assert.ErrorIs(t, err, ErrUsage)
	_, err = s.Configure([]string{"parity=mark"})
	assert.ErrorIs(t, err, usart.ErrParameter)
}

func TestConfigure_Profiles(t *testing.T) {
	s := newSession(t)
	_, err := s.Configure([]string{"bench"})
	assert.ErrorIs(t, err, config.ErrNoProfile)

	f, err := config.Parse([]byte("profiles:\n  - name: bench\n    baud: 19200\n    timeout: 40ms\n" +
		"  - name: slow\n    baud: 600\n    clock_hz: 8000000\n"))
	require.NoError(t, err)
	s.UseProfiles(f)

	out, err := s.Configure([]string{"bench", "parity=odd"})
	require.NoError(t, err)
	assert.Equal(t, uint32(19200), s.USART.Config().BaudRate)
	assert.Equal(t, usart.ParityOdd, s.USART.Config().Parity)
	assert.Equal(t, uint32(40), s.Timeout)

	// The profile's default 48 MHz clock drives BRR, not the session's 8 MHz.
	assert.Contains(t, out, "clk=48000000")
	assert.Equal(t, uint32(usart.Divisor(48_000_000, 19200)), s.Sim.Reg(usart.BRR))
	assert.Equal(t, uint32(0x09C4), s.Sim.Reg(usart.BRR))

	// 600 baud is reachable from the slow profile's 8 MHz but not at 48 MHz.
	_, err = s.Configure([]string{"slow"})
	require.NoError(t, err)
	assert.Equal(t, uint32(usart.Divisor(8_000_000, 600)), s.Sim.Reg(usart.BRR))
	assert.Equal(t, usart.FixedClock(8_000_000), s.USART.Clock)

	_, err = s.Configure([]string{"bench", "baud=600"})
	assert.ErrorIs(t, err, usart.ErrParameter)
	assert.Equal(t, usart.FixedClock(8_000_000), s.USART.Clock, "a failed configure keeps the clock")
}

func TestBlockingRoundTrip(t *testing.T) {
	s := newSession(t)
	elems, err := ParseElements([]string{"hi"}, true)
	require.NoError(t, err)

	_, err = s.Send(elems)
	require.NoError(t, err)
	assert.Equal(t, `[0x68 0x69] "hi"`, s.Transmitted())

	s.Inject([]uint16{0x01, 0x41})
	out, err := s.Recv(2)
	require.NoError(t, err)
	assert.Equal(t, "[0x01 0x41]", out)

	_, err = s.Recv(1)
	assert.ErrorIs(t, err, usart.ErrTimeout)
}

func TestNineBitElements(t *testing.T) {
	s := newSession(t)
	_, err := s.Configure([]string{"word=9"})
	require.NoError(t, err)

	_, err = s.Send([]uint16{0x1FF, 0x100})
	require.NoError(t, err)
	assert.Equal(t, "[0x1ff 0x100]", s.Transmitted())

	s.Inject([]uint16{0x155})
	out, err := s.Recv(1)
	require.NoError(t, err)
	assert.Equal(t, "[0x155]", out)
}

func TestAsyncFlow(t *testing.T) {
	s := newSession(t)

	_, err := s.StartRx(3)
	require.NoError(t, err)
	_, err = s.StartTx([]uint16{'o', 'k'})
	require.NoError(t, err)
	assert.Equal(t, "no receive armed", (&Session{}).RxBuffer())

	s.Inject([]uint16{'a', 'b'})
	out := s.Run()
	assert.Contains(t, out, "tx=ready")
	assert.Contains(t, out, "events tx=1 rx=0")
	assert.Equal(t, `[0x61 0x62] "ab"`, s.RxBuffer())

	s.Inject([]uint16{'c'})
	s.Run()
	assert.Equal(t, `[0x61 0x62 0x63] "abc"`, s.RxBuffer())
	assert.Contains(t, s.Status(), "events tx=1 rx=1")
}

func TestFaults(t *testing.T) {
	s := newSession(t)
	_, err := s.StartRx(4)
	require.NoError(t, err)

	s.Inject([]uint16{'x'})
	_, err = s.Fault([]string{"ORE"})
	require.NoError(t, err)
	out := s.Dispatch()
	assert.Contains(t, out, "rx=ready err=overrun")
	assert.Contains(t, out, "errors=[overrun]")

	_, err = s.Fault([]string{"xx"})
	assert.ErrorIs(t, err, ErrUsage)
	_, err = s.Fault(nil)
	assert.ErrorIs(t, err, ErrUsage)
}

func TestOptionsAndDrain(t *testing.T) {
	s := newSession(t)
	_, err := s.SetOption("autotx", "off")
	require.NoError(t, err)

	_, err = s.StartTx([]uint16{'z'})
	require.NoError(t, err)
	s.Run()
	assert.Equal(t, usart.StateBusyTx, s.USART.State())

	assert.Contains(t, s.Drain(), "pending=true")
	s.Run()
	assert.Equal(t, usart.StateReady, s.USART.State())

	_, err = s.SetOption("loopback", "true")
	require.NoError(t, err)
	assert.True(t, s.Sim.Loopback)
	_, err = s.SetOption("turbo", "on")
	assert.ErrorIs(t, err, ErrUsage)
	_, err = s.SetOption("loopback", "maybe")
	assert.ErrorIs(t, err, ErrUsage)
}

func TestRegsAndLog(t *testing.T) {
	s := newSession(t)
	assert.Contains(t, s.Regs(), "BRR   0x0045")

	s.Sim.ClearLog()
	s.USART.EnableIRQ(usart.IRQIdle)
	log := s.AccessLog(true)
	assert.Contains(t, log, "get CTLR1")
	assert.Contains(t, log, "set CTLR1")
	assert.Empty(t, s.AccessLog(false))
}

func TestParseElements(t *testing.T) {
	got, err := ParseElements([]string{"0x1FF", "10", "0o7"}, false)
	require.NoError(t, err)
	assert.Equal(t, []uint16{0x1FF, 10, 7}, got)

	_, err = ParseElements([]string{"0x200"}, false)
	assert.ErrorIs(t, err, ErrUsage)
	_, err = ParseElements(nil, false)
	assert.ErrorIs(t, err, ErrUsage)

	got, err = ParseElements([]string{"a", "b"}, true)
	require.NoError(t, err)
	assert.Equal(t, []uint16{'a', ' ', 'b'}, got)
}
