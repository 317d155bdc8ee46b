//go:build !usartdebug

package usart

type stats struct{}

type Stats struct{}

func (u *USART) DebugReset()       {}
func (u *USART) DebugStats() Stats { return Stats{} }

type Regs struct{}

func (u *USART) DebugRegs() Regs { return Regs{} }
