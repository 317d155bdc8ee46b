// cmd/usart_echo/main.go
//go:build tinygo && ch32v003

// Echo firmware for cmd/usart_hostcheck. USART1 (TX=PD5, RX=PD6) echoes
// every received byte using the async engine: reception is re-armed one
// element at a time from the Notifier, and queued bytes go out in async
// transmit bursts.

package main

import (
	"time"

	"github.com/jangala-dev/tinygo-usart/usart"
)

const (
	baud      = 115200
	queueSize = 256 // power of two
	burst     = 64
)

// queue holds received bytes waiting to be echoed.
type queue struct {
	buf        [queueSize]byte
	head, tail uint16
}

func (q *queue) used() int { return int(q.head - q.tail) }

func (q *queue) put(b byte) bool {
	if q.used() == queueSize {
		return false
	}
	q.buf[q.head%queueSize] = b
	q.head++
	return true
}

func (q *queue) take(dst []byte) int {
	n := 0
	for n < len(dst) && q.used() > 0 {
		dst[n] = q.buf[q.tail%queueSize]
		q.tail++
		n++
	}
	return n
}

func main() {
	time.Sleep(500 * time.Millisecond)
	println("usart echo, baud =", baud)

	u := usart.USART1
	n := usart.NewNotifier(nil)
	u.Handler = n

	cfg := usart.DefaultConfig()
	cfg.BaudRate = baud
	if err := u.Configure(cfg); err != nil {
		println("configure:", err.Error())
		for {
			time.Sleep(time.Hour)
		}
	}

	var (
		q       queue
		rx      [1]byte
		tx      [burst]byte
		dropped uint32
		errs    uint32
	)
	_ = u.StartReceive(rx[:], 1)

	for {
		select {
		case <-n.RxDone():
		case <-n.TxDone():
		case <-n.Errors():
			errs++
		case <-time.After(time.Second):
			if dropped > 0 || errs > 0 {
				println("dropped =", dropped, " errors =", errs)
			}
		}

		// Receive side: keep one element armed at all times.
		// An overrun can still have stored the element; RxRemaining tells.
		if u.RxState() == usart.StateReady {
			if u.RxRemaining() == 0 && !q.put(rx[0]) {
				dropped++
			}
			_ = u.StartReceive(rx[:], 1)
		}

		// Transmit side: one burst in flight.
		if u.State() == usart.StateReady && q.used() > 0 {
			k := q.take(tx[:])
			_ = u.StartTransmit(tx[:k], k)
		}
	}
}
