// cmd/usart_shell/main.go
// Interactive driver for the USART engine over a simulated register block.
// Every engine operation is reachable: configure, blocking and async
// transfers, line injection, error faults and interrupt dispatch.
//
//	usart_shell                        interactive
//	usart_shell -e send hello          one command, then exit
//	usart_shell -profiles lines.yaml   named profiles for "config NAME"

package main

import (
	"flag"
	"fmt"
	"os"
	"strconv"

	"github.com/abiosoft/ishell"
	"github.com/golang/glog"

	"github.com/jangala-dev/tinygo-usart/internal/config"
	"github.com/jangala-dev/tinygo-usart/internal/session"
	"github.com/jangala-dev/tinygo-usart/usart"
)

const sessionKey = "$session"

var (
	evalOnly    bool
	profilePath string
	clockHz     uint
)

func init() {
	flag.BoolVar(&evalOnly, "e", evalOnly, "Evaluate the command line arguments and exit.")
	flag.StringVar(&profilePath, "profiles", "", "YAML file of line profiles.")
	flag.UintVar(&clockHz, "clock", config.DefaultClockHz, "Simulated bus clock in Hz.")
}

func sessionFrom(c *ishell.Context) *session.Session {
	return c.Get(sessionKey).(*session.Session)
}

// reply prints out or reports err.
func reply(c *ishell.Context, out string, err error) {
	if err != nil {
		c.Err(err)
		return
	}
	c.Println(out)
}

// elementsCmd builds a command taking element arguments; text selects raw
// text rather than numeric elements.
func elementsCmd(name, help string, text bool, fn func(*session.Session, []uint16) (string, error)) *ishell.Cmd {
	return &ishell.Cmd{
		Name: name,
		Help: help,
		Func: func(c *ishell.Context) {
			elems, err := session.ParseElements(c.Args, text)
			if err != nil {
				c.Err(err)
				return
			}
			out, err := fn(sessionFrom(c), elems)
			reply(c, out, err)
		},
	}
}

// countCmd builds a command taking one element count.
func countCmd(name, help string, fn func(*session.Session, int) (string, error)) *ishell.Cmd {
	return &ishell.Cmd{
		Name: name,
		Help: help,
		Func: func(c *ishell.Context) {
			if len(c.Args) != 1 {
				c.Err(fmt.Errorf("%w: %s N", session.ErrUsage, name))
				return
			}
			n, err := strconv.Atoi(c.Args[0])
			if err != nil {
				c.Err(fmt.Errorf("%w: count %q", session.ErrUsage, c.Args[0]))
				return
			}
			out, err := fn(sessionFrom(c), n)
			reply(c, out, err)
		},
	}
}

func textCmd(name, help string, fn func(*session.Session) string) *ishell.Cmd {
	return &ishell.Cmd{
		Name: name,
		Help: help,
		Func: func(c *ishell.Context) { c.Println(fn(sessionFrom(c))) },
	}
}

var commands = []*ishell.Cmd{
	{
		Name:    "config",
		Aliases: []string{"cfg"},
		Help:    "[PROFILE] [baud=N] [word=8|9] [stop=1|0.5|2|1.5] [parity=none|even|odd] [mode=rx|tx|tx_rx] [flow=none|rts|cts|rts_cts]",
		Func: func(c *ishell.Context) {
			out, err := sessionFrom(c).Configure(c.Args)
			reply(c, out, err)
		},
	},
	elementsCmd("send", "TEXT  blocking transmit", true, (*session.Session).Send),
	elementsCmd("sendw", "ELEM...  blocking transmit of numeric elements", false, (*session.Session).Send),
	countCmd("recv", "N  blocking receive", (*session.Session).Recv),
	elementsCmd("atx", "TEXT  start async transmit", true, (*session.Session).StartTx),
	elementsCmd("atxw", "ELEM...  start async transmit of numeric elements", false, (*session.Session).StartTx),
	countCmd("arx", "N  start async receive", (*session.Session).StartRx),
	elementsCmd("inject", "TEXT  queue received text on the line", true, func(s *session.Session, e []uint16) (string, error) {
		return s.Inject(e), nil
	}),
	elementsCmd("injectw", "ELEM...  queue received elements on the line", false, func(s *session.Session, e []uint16) (string, error) {
		return s.Inject(e), nil
	}),
	{
		Name: "fault",
		Help: "pe|fe|ne|ore...  raise line error flags",
		Func: func(c *ishell.Context) {
			out, err := sessionFrom(c).Fault(c.Args)
			reply(c, out, err)
		},
	},
	textCmd("irq", "service the interrupt while pending", (*session.Session).Run),
	textCmd("dispatch", "invoke the interrupt handler once", (*session.Session).Dispatch),
	textCmd("drain", "assert TXE and TC", (*session.Session).Drain),
	textCmd("state", "handle state and events", (*session.Session).Status),
	textCmd("regs", "register dump", (*session.Session).Regs),
	textCmd("rxbuf", "async receive buffer", (*session.Session).RxBuffer),
	textCmd("tx", "elements written to DATAR", (*session.Session).Transmitted),
	{
		Name: "log",
		Help: "[clear]  register access log",
		Func: func(c *ishell.Context) {
			s := sessionFrom(c)
			c.Println(s.AccessLog(len(c.Args) > 0 && c.Args[0] == "clear"))
		},
	},
	{
		Name: "set",
		Help: "loopback|autotx on|off",
		Func: func(c *ishell.Context) {
			if len(c.Args) != 2 {
				c.Err(fmt.Errorf("%w: set OPTION on|off", session.ErrUsage))
				return
			}
			out, err := sessionFrom(c).SetOption(c.Args[0], c.Args[1])
			reply(c, out, err)
		},
	},
}

func main() {
	flag.Parse()
	defer glog.Flush()

	usart.SetLogger(glog.Infof)

	s, err := session.New(uint32(clockHz))
	if err != nil {
		glog.Exitf("session: %v", err)
	}
	if profilePath != "" {
		f, err := config.Load(profilePath)
		if err != nil {
			glog.Exitf("%v", err)
		}
		s.UseProfiles(f)
		glog.Infof("loaded %d profiles from %s", len(f.Profiles), profilePath)
	}

	sh := ishell.New()
	sh.Set(sessionKey, s)
	sh.SetPrompt("usart > ")
	for _, cmd := range commands {
		sh.AddCmd(cmd)
	}

	if args := flag.Args(); len(args) > 0 {
		if err := sh.Process(args...); err != nil {
			glog.Errorf("%v", err)
			glog.Flush()
			os.Exit(1)
		}
		return
	}
	if evalOnly {
		glog.Exit("command expected")
	}
	sh.Run()
}
