// internal/session/session.go

// Package session holds the state behind the interactive USART shell: one
// engine handle over a simulated register block, the last async receive
// buffer and a record of callback events. Every command returns its output
// as text so it can be driven from a shell or from tests.
package session

import (
	"bytes"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/jangala-dev/tinygo-usart/internal/config"
	"github.com/jangala-dev/tinygo-usart/internal/regsim"
	"github.com/jangala-dev/tinygo-usart/usart"
)

// ErrUsage reports malformed command arguments.
var ErrUsage = errors.New("usage")

// maxDispatch bounds one irq command.
const maxDispatch = 1 << 16

// Session is one simulated peripheral and its engine handle.
type Session struct {
	Sim    *regsim.Peripheral
	Ticks  *regsim.Ticker
	USART  *usart.USART
	Notify *usart.Notifier

	// Timeout is the blocking budget in ms.
	Timeout uint32

	profiles *config.File
	events   recorder
	rxBuf    []byte
	rxCount  int
}

// recorder counts callback events.
type recorder struct {
	tx, rx int
	errs   []usart.ErrorCode
}

func (r *recorder) TxComplete(*usart.USART) { r.tx++ }
func (r *recorder) RxComplete(*usart.USART) { r.rx++ }
func (r *recorder) Error(u *usart.USART)    { r.errs = append(r.errs, u.ErrorCode()) }

// New returns a session configured with the default profile.
func New(clockHz uint32) (*Session, error) {
	s := &Session{
		Sim:     regsim.New(),
		Ticks:   regsim.NewTicker(0, 1),
		Timeout: config.Default().TimeoutMillis(),
	}
	s.Notify = usart.NewNotifier(&s.events)
	s.USART = usart.New(s.Sim, usart.FixedClock(clockHz), s.Ticks)
	s.USART.Handler = s.Notify
	if err := s.USART.Configure(usart.DefaultConfig()); err != nil {
		return nil, err
	}
	return s, nil
}

// UseProfiles makes named profiles available to Configure.
func (s *Session) UseProfiles(f *config.File) { s.profiles = f }

// Configure applies a named profile or key=value overrides of the active
// configuration (baud, word, stop, parity, mode, flow). A profile also
// selects its bus clock.
func (s *Session) Configure(args []string) (string, error) {
	cfg := s.USART.Config()
	clock := s.USART.Clock
	for _, arg := range args {
		key, val, ok := strings.Cut(arg, "=")
		if !ok {
			p, err := s.profile(arg)
			if err != nil {
				return "", err
			}
			cfg = p.LineConfig()
			clock = usart.FixedClock(p.ClockHz)
			s.Timeout = p.TimeoutMillis()
			continue
		}
		if err := setField(&cfg, key, val); err != nil {
			return "", err
		}
	}
	prev := s.USART.Clock
	s.USART.Clock = clock
	if err := s.USART.Configure(cfg); err != nil {
		s.USART.Clock = prev
		return "", err
	}
	return fmt.Sprintf("%s clk=%d brr=0x%04x", cfg, clock.BusClockHz(), s.Sim.Reg(usart.BRR)), nil
}

func (s *Session) profile(name string) (config.Profile, error) {
	if s.profiles == nil {
		if name == "default" {
			return config.Default(), nil
		}
		return config.Profile{}, fmt.Errorf("%w: %q", config.ErrNoProfile, name)
	}
	return s.profiles.Lookup(name)
}

func setField(cfg *usart.Config, key, val string) error {
	b := []byte(val)
	switch key {
	case "baud":
		v, err := strconv.ParseUint(val, 10, 32)
		if err != nil {
			return fmt.Errorf("%w: baud %q", usart.ErrParameter, val)
		}
		cfg.BaudRate = uint32(v)
		return nil
	case "word":
		return cfg.WordLength.UnmarshalText(b)
	case "stop":
		return cfg.StopBits.UnmarshalText(b)
	case "parity":
		return cfg.Parity.UnmarshalText(b)
	case "mode":
		return cfg.Mode.UnmarshalText(b)
	case "flow":
		return cfg.FlowControl.UnmarshalText(b)
	}
	return fmt.Errorf("%w: unknown field %q", ErrUsage, key)
}

// Send transmits elements with the blocking path.
func (s *Session) Send(elems []uint16) (string, error) {
	buf := s.encode(elems)
	if err := s.USART.Transmit(buf, len(elems), s.Timeout); err != nil {
		return "", err
	}
	return fmt.Sprintf("sent %d", len(elems)), nil
}

// Recv receives n elements with the blocking path.
func (s *Session) Recv(n int) (string, error) {
	if n <= 0 {
		return "", fmt.Errorf("%w: recv N", ErrUsage)
	}
	buf := make([]byte, n*s.USART.Config().ElementWidth())
	if err := s.USART.Receive(buf, n, s.Timeout); err != nil {
		return "", err
	}
	return formatElements(s.decode(buf, n)), nil
}

// StartTx starts an async transmit.
func (s *Session) StartTx(elems []uint16) (string, error) {
	if err := s.USART.StartTransmit(s.encode(elems), len(elems)); err != nil {
		return "", err
	}
	return fmt.Sprintf("tx armed, %d elements", len(elems)), nil
}

// StartRx arms an async receive of n elements.
func (s *Session) StartRx(n int) (string, error) {
	if n <= 0 {
		return "", fmt.Errorf("%w: arx N", ErrUsage)
	}
	buf := make([]byte, n*s.USART.Config().ElementWidth())
	if err := s.USART.StartReceive(buf, n); err != nil {
		return "", err
	}
	s.rxBuf, s.rxCount = buf, n
	return fmt.Sprintf("rx armed, %d elements", n), nil
}

// RxBuffer shows the elements stored so far by the async receive.
func (s *Session) RxBuffer() string {
	if s.rxBuf == nil {
		return "no receive armed"
	}
	got := s.rxCount - s.USART.RxRemaining()
	return formatElements(s.decode(s.rxBuf, got))
}

// Inject queues elements on the simulated line.
func (s *Session) Inject(elems []uint16) string {
	s.Sim.Inject(elems...)
	return fmt.Sprintf("%d waiting", s.Sim.Waiting())
}

var faults = map[string]uint32{
	"pe":  usart.FlagPE,
	"fe":  usart.FlagFE,
	"ne":  usart.FlagNE,
	"ore": usart.FlagORE,
}

// Fault raises line error flags by name (pe, fe, ne, ore).
func (s *Session) Fault(names []string) (string, error) {
	if len(names) == 0 {
		return "", fmt.Errorf("%w: fault pe|fe|ne|ore...", ErrUsage)
	}
	var mask uint32
	for _, n := range names {
		f, ok := faults[strings.ToLower(n)]
		if !ok {
			return "", fmt.Errorf("%w: unknown fault %q", ErrUsage, n)
		}
		mask |= f
	}
	s.Sim.SetFlags(mask)
	return fmt.Sprintf("STATR=%#04x", s.Sim.Reg(usart.STATR)), nil
}

// Dispatch invokes the interrupt handler once, pending or not.
func (s *Session) Dispatch() string {
	s.USART.DispatchInterrupt()
	return s.Status()
}

// Run services the interrupt while it is pending.
func (s *Session) Run() string {
	n := s.Sim.Run(s.USART, maxDispatch)
	return fmt.Sprintf("%d dispatches\n%s", n, s.Status())
}

// Drain asserts TXE and TC, completing a stalled transmit.
func (s *Session) Drain() string {
	s.Sim.CompleteTx()
	return s.Status()
}

// Status summarises the handle and the callback record.
func (s *Session) Status() string {
	u := s.USART
	var w bytes.Buffer
	fmt.Fprintf(&w, "tx=%s rx=%s err=%s\n", u.State(), u.RxState(), u.ErrorCode())
	fmt.Fprintf(&w, "remaining tx=%d rx=%d pending=%t\n", u.TxRemaining(), u.RxRemaining(), s.Sim.Pending())
	fmt.Fprintf(&w, "events tx=%d rx=%d errors=%v", s.events.tx, s.events.rx, s.events.errs)
	return w.String()
}

// Regs dumps the register block without side effects.
func (s *Session) Regs() string {
	var w bytes.Buffer
	for _, r := range []usart.Reg{usart.STATR, usart.DATAR, usart.BRR, usart.CTLR1, usart.CTLR2, usart.CTLR3} {
		fmt.Fprintf(&w, "%-5s 0x%04x\n", r, s.Sim.Reg(r))
	}
	return strings.TrimRight(w.String(), "\n")
}

// Transmitted lists every element written to DATAR.
func (s *Session) Transmitted() string {
	return formatElements(s.Sim.Transmitted())
}

// AccessLog lists recorded register accesses and clears the record when
// reset is set.
func (s *Session) AccessLog(reset bool) string {
	log := s.Sim.Log()
	if reset {
		s.Sim.ClearLog()
	}
	lines := make([]string, len(log))
	for i, a := range log {
		lines[i] = a.String()
	}
	return strings.Join(lines, "\n")
}

// SetOption toggles simulator behaviour: loopback, autotx.
func (s *Session) SetOption(name, val string) (string, error) {
	on, err := strconv.ParseBool(val)
	if err != nil {
		switch val {
		case "on":
			on = true
		case "off":
			on = false
		default:
			return "", fmt.Errorf("%w: %s on|off", ErrUsage, name)
		}
	}
	switch name {
	case "loopback":
		s.Sim.Loopback = on
	case "autotx":
		s.Sim.AutoTx = on
	default:
		return "", fmt.Errorf("%w: unknown option %q", ErrUsage, name)
	}
	return fmt.Sprintf("%s=%t", name, on), nil
}

func (s *Session) encode(elems []uint16) []byte {
	if s.USART.Config().ElementWidth() == 1 {
		b := make([]byte, len(elems))
		for i, v := range elems {
			b[i] = byte(v)
		}
		return b
	}
	b := make([]byte, 2*len(elems))
	for i, v := range elems {
		b[2*i] = byte(v)
		b[2*i+1] = byte(v >> 8)
	}
	return b
}

func (s *Session) decode(b []byte, n int) []uint16 {
	out := make([]uint16, n)
	if s.USART.Config().ElementWidth() == 1 {
		for i := range out {
			out[i] = uint16(b[i])
		}
		return out
	}
	for i := range out {
		out[i] = uint16(b[2*i]) | uint16(b[2*i+1])<<8
	}
	return out
}

// ParseElements reads numeric arguments (0x prefixes accepted) or, with
// text set, the bytes of the space-joined arguments.
func ParseElements(args []string, text bool) ([]uint16, error) {
	if text {
		b := []byte(strings.Join(args, " "))
		out := make([]uint16, len(b))
		for i, c := range b {
			out[i] = uint16(c)
		}
		return out, nil
	}
	out := make([]uint16, 0, len(args))
	for _, a := range args {
		v, err := strconv.ParseUint(a, 0, 16)
		if err != nil || v > 0x1FF {
			return nil, fmt.Errorf("%w: element %q", ErrUsage, a)
		}
		out = append(out, uint16(v))
	}
	if len(out) == 0 {
		return nil, fmt.Errorf("%w: no elements", ErrUsage)
	}
	return out, nil
}

func formatElements(v []uint16) string {
	if len(v) == 0 {
		return "[]"
	}
	parts := make([]string, len(v))
	printable := true
	for i, e := range v {
		parts[i] = fmt.Sprintf("0x%02x", e)
		if e < 0x20 || e > 0x7E {
			printable = false
		}
	}
	out := "[" + strings.Join(parts, " ") + "]"
	if printable {
		b := make([]byte, len(v))
		for i, e := range v {
			b[i] = byte(e)
		}
		out += fmt.Sprintf(" %q", b)
	}
	return out
}
