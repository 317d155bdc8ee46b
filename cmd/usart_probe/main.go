//go:build tinygo && ch32v003 && usartdebug

// Diagnostic probe for USART1 with PD5 jumpered to PD6. Runs a blocking
// integrity phase, an async burst and a deliberate overrun, printing the
// engine counters and a register snapshot after each.

package main

import (
	"context"
	"time"

	"github.com/jangala-dev/tinygo-usart/usart"
)

const baud = 115200

func printStats(u *usart.USART, label string) {
	s := u.DebugStats()
	r := u.DebugRegs()
	println("==", label)
	println("ISR:    count=", s.ISRCount, " spurious=", s.Spurious)
	println("TX:     elements=", s.TxElements, " completes=", s.TxCompletes)
	println("RX:     elements=", s.RxElements, " completes=", s.RxCompletes)
	println("Errors: ORE=", s.ErrOverrun, " PE=", s.ErrParity, " FE=", s.ErrFraming, " NE=", s.ErrNoise)
	println("Fg:     busy=", s.Busy, " timeouts=", s.Timeouts)
	println("Regs:   STATR=", r.STATR, " BRR=", r.BRR, " CTLR1=", r.CTLR1,
		" CTLR2=", r.CTLR2, " CTLR3=", r.CTLR3)
}

func pattern(buf []byte) {
	var x uint32 = 0x12345678
	for i := range buf {
		x = 1664525*x + 1013904223
		buf[i] = byte(x >> 24)
	}
}

func main() {
	for i := 3; i > 0; i-- {
		println("probe starting in", i, "seconds")
		time.Sleep(time.Second)
	}

	u := usart.USART1
	n := usart.NewNotifier(nil)
	u.Handler = n

	cfg := usart.DefaultConfig()
	cfg.BaudRate = baud
	if err := u.Configure(cfg); err != nil {
		println("fatal:", err.Error())
		for {
			time.Sleep(time.Hour)
		}
	}
	u.DebugReset()

	// Phase 1: element-by-element blocking echo.
	println("\n[phase] blocking-256")
	src := make([]byte, 256)
	pattern(src)
	bad := 0
	var got [1]byte
	for i := range src {
		if err := u.Transmit(src[i:i+1], 1, 10); err != nil {
			println(" tx", i, err.Error())
			break
		}
		if err := u.Receive(got[:], 1, 10); err != nil {
			println(" rx", i, err.Error())
			break
		}
		if got[0] != src[i] {
			bad++
		}
	}
	println(" mismatches:", bad)
	printStats(u, "after blocking-256")

	// Phase 2: async burst with reception armed for the whole block.
	println("\n[phase] async-64")
	u.DebugReset()
	tx := src[:64]
	rx := make([]byte, len(tx))
	_ = u.StartReceive(rx, len(rx))
	_ = u.StartTransmit(tx, len(tx))
	ctx, cancel := context.WithTimeout(context.Background(), 200*time.Millisecond)
	errTx := n.WaitTx(ctx, u)
	errRx := n.WaitRx(ctx, u)
	cancel()
	switch {
	case errTx != nil || errRx != nil:
		println(" result: TIMEOUT rx remaining", u.RxRemaining())
	case string(rx) != string(tx):
		println(" result: MISMATCH")
	default:
		println(" result: OK")
	}
	printStats(u, "after async-64")

	// Phase 3: transmit two elements with nothing reading to force ORE.
	println("\n[phase] overrun")
	u.DebugReset()
	_ = u.Transmit(src[:2], 2, 10)
	_ = u.StartReceive(rx[:1], 1)
	time.Sleep(10 * time.Millisecond)
	println(" error:", u.ErrorCode().String(), " last:", n.LastError().String())
	printStats(u, "after overrun")

	println("\nprobe done")
	for {
		time.Sleep(time.Hour)
	}
}
