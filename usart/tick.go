// usart/tick.go

package usart

import "time"

// MaxDelay makes a blocking transfer wait forever.
const MaxDelay uint32 = 0xFFFFFFFF

// TickSource is a free-running millisecond counter. It wraps at 2^32.
type TickSource interface {
	Ticks() uint32
}

// Expired reports whether more than budget ms have passed since start.
// The subtraction wraps, so a counter rollover between start and now is
// tolerated as long as the real elapsed time is below 2^32 ms.
func Expired(ts TickSource, start, budget uint32) bool {
	return ts.Ticks()-start > budget
}

// ClockSource reports the bus clock feeding the peripheral. It is read only
// while configuring.
type ClockSource interface {
	BusClockHz() uint32
}

// FixedClock is a ClockSource with a constant frequency.
type FixedClock uint32

func (f FixedClock) BusClockHz() uint32 { return uint32(f) }

// RuntimeTicks derives milliseconds from the runtime monotonic clock.
type RuntimeTicks struct {
	epoch time.Time
}

// NewRuntimeTicks returns a tick source counting from now.
func NewRuntimeTicks() *RuntimeTicks {
	return &RuntimeTicks{epoch: time.Now()}
}

func (r *RuntimeTicks) Ticks() uint32 {
	return uint32(time.Since(r.epoch) / time.Millisecond)
}
