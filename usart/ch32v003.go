// usart/ch32v003.go
//go:build tinygo && ch32v003

package usart

import (
	"runtime/interrupt"
	"runtime/volatile"
	"unsafe"
)

// Peripheral addresses.
const (
	usart1Base   uintptr = 0x40013800
	rccAPB2PCENR uintptr = 0x40021018
	gpiodCFGLR   uintptr = 0x40011400

	rccAFIOEN   uint32 = 1 << 0
	rccIOPDEN   uint32 = 1 << 5
	rccUSART1EN uint32 = 1 << 14

	irqUSART1 = 32
)

// BusClock is the default PCLK2 (HSI with PLL, no prescaler).
var BusClock = FixedClock(48_000_000)

// mmio is the USART1 register block. Registers sit on 4-byte strides in
// Reg order.
type mmio struct {
	regs [numRegs]volatile.Register32
}

func (m *mmio) Get(r Reg) uint32    { return m.regs[r].Get() }
func (m *mmio) Set(r Reg, v uint32) { m.regs[r].Set(v) }

var (
	USART1  = &_USART1
	_USART1 = USART{
		Bus:   (*mmio)(unsafe.Pointer(usart1Base)),
		Clock: BusClock,
		Setup: setupUSART1,
	}

	// Interrupt is the USART1 vector, enabled by setupUSART1.
	Interrupt interrupt.Interrupt
)

func init() {
	USART1.Ticks = NewRuntimeTicks()
	Interrupt = interrupt.New(irqUSART1, func(interrupt.Interrupt) {
		USART1.DispatchInterrupt()
	})
}

// setupUSART1 clocks the peripheral and routes TX to PD5 and RX to PD6.
func setupUSART1(*USART) {
	rcc := (*volatile.Register32)(unsafe.Pointer(rccAPB2PCENR))
	rcc.SetBits(rccAFIOEN | rccIOPDEN | rccUSART1EN)

	cfg := (*volatile.Register32)(unsafe.Pointer(gpiodCFGLR))
	// PD5: alternate push-pull, 10 MHz. PD6: floating input.
	cfg.ReplaceBits(0x9, 0xF, 5*4)
	cfg.ReplaceBits(0x4, 0xF, 6*4)

	Interrupt.Enable()
}
