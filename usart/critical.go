// usart/critical.go

package usart

// Modify performs reg = (reg &^ clear) | set with interrupts masked, so a
// control register shared with interrupt context is never torn. It does not
// replace the ownership handoff of transfer fields; it only protects the
// register update itself.
func Modify(bus Bus, reg Reg, clear, set uint32) {
	state := lockIRQ()
	bus.Set(reg, (bus.Get(reg)&^clear)|set)
	unlockIRQ(state)
}

// SetBits atomically ORs mask into reg.
func SetBits(bus Bus, reg Reg, mask uint32) { Modify(bus, reg, 0, mask) }

// ClearBits atomically clears mask in reg.
func ClearBits(bus Bus, reg Reg, mask uint32) { Modify(bus, reg, mask, 0) }
