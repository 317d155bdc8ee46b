//go:build tinygo

package usart

import "runtime/interrupt"

func lockIRQ() interrupt.State { return interrupt.Disable() }

func unlockIRQ(s interrupt.State) { interrupt.Restore(s) }
