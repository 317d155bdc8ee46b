// internal/regsim/fifo.go

package regsim

// fifoSize is a power of two so the wrapping indices stay consistent.
const fifoSize uint8 = 64

// fifo holds line elements waiting to be latched into DATAR. Indices wrap
// freely; used = head - tail. Callers hold the Peripheral lock.
type fifo struct {
	buf  [fifoSize]uint16
	head uint8
	tail uint8
}

func (f *fifo) used() uint8 { return f.head - f.tail }

// put appends v. It returns false when the FIFO is full.
func (f *fifo) put(v uint16) bool {
	if f.used() == fifoSize {
		return false
	}
	f.head++
	f.buf[f.head%fifoSize] = v
	return true
}

// peek returns the oldest element without consuming it.
func (f *fifo) peek() (uint16, bool) {
	if f.used() == 0 {
		return 0, false
	}
	return f.buf[(f.tail+1)%fifoSize], true
}

// get consumes the oldest element.
func (f *fifo) get() (uint16, bool) {
	v, ok := f.peek()
	if ok {
		f.tail++
	}
	return v, ok
}

func (f *fifo) clear() {
	f.head = 0
	f.tail = 0
}
