package usart_test

import (
	"errors"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jangala-dev/tinygo-usart/internal/regsim"
	"github.com/jangala-dev/tinygo-usart/usart"
)

const testClock = usart.FixedClock(8_000_000)

// events records callbacks. Dispatch in these tests is synchronous, so no
// locking is needed.
type events struct {
	tx, rx int
	errs   []usart.ErrorCode
}

func (e *events) TxComplete(*usart.USART) { e.tx++ }
func (e *events) RxComplete(*usart.USART) { e.rx++ }
func (e *events) Error(u *usart.USART)    { e.errs = append(e.errs, u.ErrorCode()) }

// newSim returns a configured handle over a fresh simulator with a ticker
// advancing 1 ms per read. The access log starts empty.
func newSim(t *testing.T, cfg usart.Config) (*usart.USART, *regsim.Peripheral, *regsim.Ticker) {
	t.Helper()
	p := regsim.New()
	tk := regsim.NewTicker(0, 1)
	u := usart.New(p, testClock, tk)
	require.NoError(t, u.Configure(cfg))
	p.ClearLog()
	return u, p, tk
}

func cfg8N1() usart.Config { return usart.DefaultConfig() }

func cfg9(parity usart.Parity) usart.Config {
	c := usart.DefaultConfig()
	c.WordLength = usart.WordLength9
	c.Parity = parity
	return c
}

func TestDivisor_ReferenceValues(t *testing.T) {
	cases := []struct {
		clk, baud uint32
		want      uint16
	}{
		{8_000_000, 115200, 0x0045},
		{48_000_000, 9600, 0x1388},
		{48_000_000, 115200, 0x01A1},
		{24_000_000, 0, 0},
	}
	for _, c := range cases {
		assert.Equalf(t, c.want, usart.Divisor(c.clk, c.baud), "clk=%d baud=%d", c.clk, c.baud)
	}
}

func TestConfigure_ProgramsOwnedFieldsOnly(t *testing.T) {
	p := regsim.New()
	// Bits the engine does not own must survive.
	p.Poke(usart.CTLR1, usart.CTLR1_IDLEIE|usart.CTLR1_WAKE|usart.CTLR1_PS)
	p.Poke(usart.CTLR2, 0x000F)
	p.Poke(usart.CTLR3, 0x0008|usart.CTLR3_CTSE)

	setups := 0
	u := usart.New(p, testClock, regsim.NewTicker(0, 1))
	u.Setup = func(*usart.USART) { setups++ }

	cfg := usart.Config{
		BaudRate:    115200,
		WordLength:  usart.WordLength9,
		StopBits:    usart.StopBits2,
		Parity:      usart.ParityEven,
		Mode:        usart.ModeTxRx,
		FlowControl: usart.FlowRTS,
	}
	require.NoError(t, u.Configure(cfg))

	assert.Equal(t, usart.CTLR1_IDLEIE|usart.CTLR1_WAKE|usart.CTLR1_M|usart.CTLR1_PCE|
		usart.CTLR1_TE|usart.CTLR1_RE|usart.CTLR1_UE, p.Reg(usart.CTLR1))
	assert.Equal(t, uint32(0x000F|0x2000), p.Reg(usart.CTLR2))
	assert.Equal(t, uint32(0x0008)|usart.CTLR3_RTSE, p.Reg(usart.CTLR3))
	assert.Equal(t, uint32(0x0045), p.Reg(usart.BRR))

	assert.Equal(t, usart.StateReady, u.State())
	assert.Equal(t, usart.StateReady, u.RxState())
	assert.Equal(t, usart.ErrorNone, u.ErrorCode())
	assert.Equal(t, cfg, u.Config())

	// Reconfiguring a Ready handle does not rerun Setup.
	require.NoError(t, u.Configure(usart.DefaultConfig()))
	assert.Equal(t, 1, setups)
	assert.Equal(t, usart.CTLR1_IDLEIE|usart.CTLR1_WAKE|usart.CTLR1_TE|usart.CTLR1_RE|usart.CTLR1_UE,
		p.Reg(usart.CTLR1))
}

func TestConfigure_DisablesBeforeFormat(t *testing.T) {
	p := regsim.New()
	p.Poke(usart.CTLR1, usart.CTLR1_UE)
	u := usart.New(p, testClock, regsim.NewTicker(0, 1))
	require.NoError(t, u.Configure(cfg8N1()))

	var ctlr1 []uint32
	for _, a := range p.Writes() {
		if a.Reg == usart.CTLR1 {
			ctlr1 = append(ctlr1, a.Value)
		}
	}
	require.NotEmpty(t, ctlr1)
	assert.Zero(t, ctlr1[0]&usart.CTLR1_UE, "first CTLR1 write clears UE")
	assert.NotZero(t, ctlr1[len(ctlr1)-1]&usart.CTLR1_UE, "last CTLR1 write sets UE")
}

func TestConfigure_InvalidLeavesRegistersUntouched(t *testing.T) {
	bad := []usart.Config{
		{BaudRate: 0, Mode: usart.ModeTxRx},
		{BaudRate: 9600, Mode: 0},
		{BaudRate: 9600, Mode: usart.ModeTxRx, Parity: 7},
		{BaudRate: 9600, Mode: usart.ModeTxRx, WordLength: 2},
		{BaudRate: 9600, Mode: usart.ModeTxRx, StopBits: 4},
		{BaudRate: 9600, Mode: usart.ModeTxRx, FlowControl: 4},
	}
	for _, cfg := range bad {
		p := regsim.New()
		u := usart.New(p, testClock, regsim.NewTicker(0, 1))
		err := u.Configure(cfg)
		require.Truef(t, errors.Is(err, usart.ErrParameter), "cfg %+v: err=%v", cfg, err)
		assert.Empty(t, p.Writes())
		assert.Equal(t, usart.StateReset, u.State())
	}

	var nilHandle *usart.USART
	assert.ErrorIs(t, nilHandle.Configure(cfg8N1()), usart.ErrParameter)
	assert.ErrorIs(t, usart.New(nil, testClock, nil).Configure(cfg8N1()), usart.ErrParameter)
}

func TestConfigure_UnreachableBaudLeavesRegistersUntouched(t *testing.T) {
	cases := []struct {
		clk  usart.FixedClock
		baud uint32
	}{
		{48_000_000, 600},    // mantissa 5000 overflows 12 bits
		{8_000_000, 100},     // mantissa 5000
		{8_000_000, 1000000}, // mantissa 0
	}
	for _, c := range cases {
		p := regsim.New()
		u := usart.New(p, c.clk, regsim.NewTicker(0, 1))
		cfg := cfg8N1()
		cfg.BaudRate = c.baud

		err := u.Configure(cfg)
		assert.ErrorIsf(t, err, usart.ErrParameter, "clk=%d baud=%d", c.clk, c.baud)
		assert.Empty(t, p.Writes())
		assert.Equal(t, usart.StateReset, u.State())
	}

	assert.NoError(t, usart.CheckDivisor(48_000_000, 1200))
	assert.NoError(t, usart.CheckDivisor(8_000_000, 500000))
	assert.ErrorIs(t, usart.CheckDivisor(8_000_000, 0), usart.ErrParameter)
}

func TestNoopDispatch_WritesNothing(t *testing.T) {
	u, p, _ := newSim(t, cfg8N1())
	u.DispatchInterrupt()

	assert.Empty(t, p.Writes())
	assert.Equal(t, usart.StateReady, u.State())
	assert.Equal(t, usart.StateReady, u.RxState())
}

func TestIRQSources(t *testing.T) {
	u, p, _ := newSim(t, cfg8N1())

	u.EnableIRQ(usart.IRQBreak)
	u.EnableIRQ(usart.IRQError)
	assert.Equal(t, usart.CTLR2_LBDIE, p.Reg(usart.CTLR2)&usart.CTLR2_LBDIE)
	assert.True(t, u.IRQEnabled(usart.IRQError))
	assert.False(t, u.IRQEnabled(usart.IRQCTS))

	reg, mask := usart.IRQTxComplete.Location()
	assert.Equal(t, usart.CTLR1, reg)
	assert.Equal(t, usart.CTLR1_TCIE, mask)
	assert.Equal(t, "LBD", usart.IRQBreak.String())

	u.DisableIRQ(usart.IRQBreak)
	assert.False(t, u.IRQEnabled(usart.IRQBreak))
}

func TestClearFlag_LeavesOtherFlags(t *testing.T) {
	u, p, _ := newSim(t, cfg8N1())
	p.Inject('x')

	u.ClearFlag(usart.FlagTC)
	assert.False(t, u.Flag(usart.FlagTC))
	assert.True(t, u.Flag(usart.FlagRXNE|usart.FlagTXE))

	want := []regsim.Access{{Op: regsim.OpSet, Reg: usart.STATR, Value: 0xFFBF}}
	if diff := cmp.Diff(want, p.Writes()); diff != "" {
		t.Fatalf("writes (-want +got):\n%s", diff)
	}
}

func TestErrorCodeString(t *testing.T) {
	assert.Equal(t, "none", usart.ErrorNone.String())
	assert.Equal(t, "parity|overrun", (usart.ErrorParity | usart.ErrorOverrun).String())
	assert.Equal(t, "noise|framing|?", (usart.ErrorNoise | usart.ErrorFraming | 0x40).String())
	assert.True(t, usart.ErrorOverrun.Fatal())
	assert.False(t, (usart.ErrorParity | usart.ErrorFraming).Fatal())
	assert.True(t, (usart.ErrorParity | usart.ErrorNoise).Has(usart.ErrorNoise))
	assert.False(t, usart.ErrorParity.Has(usart.ErrorNone))
}

func TestStateString(t *testing.T) {
	assert.Equal(t, "busy-rx", usart.StateBusyRx.String())
	assert.Equal(t, "<invalid state>", usart.State(0x99).String())
}

func TestSetLogger(t *testing.T) {
	var lines []string
	usart.SetLogger(func(format string, v ...any) { lines = append(lines, format) })
	defer usart.SetLogger(nil)

	newSim(t, cfg8N1())
	require.Len(t, lines, 1)
	assert.Contains(t, lines[0], "configured")
}
