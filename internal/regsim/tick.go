// internal/regsim/tick.go

package regsim

import "go.uber.org/atomic"

// Ticker is a manually driven millisecond counter. Each Ticks call advances
// the count by Step after reading it, so busy-wait loops make progress
// without a real clock.
type Ticker struct {
	now  atomic.Uint32
	Step uint32
}

// NewTicker returns a ticker starting at start and advancing step per read.
func NewTicker(start, step uint32) *Ticker {
	t := &Ticker{Step: step}
	t.now.Store(start)
	return t
}

// Ticks implements usart.TickSource.
func (t *Ticker) Ticks() uint32 {
	return t.now.Add(t.Step) - t.Step
}

// Advance moves the counter forward by ms.
func (t *Ticker) Advance(ms uint32) { t.now.Add(ms) }

// Now returns the counter without advancing it.
func (t *Ticker) Now() uint32 { return t.now.Load() }
