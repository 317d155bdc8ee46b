//go:build !tinygo

package usart

import "sync"

// Host shim: a process-wide mutex stands in for masking interrupts.
var irqMu sync.Mutex

type irqState struct{}

func lockIRQ() irqState {
	irqMu.Lock()
	return irqState{}
}

func unlockIRQ(irqState) { irqMu.Unlock() }
