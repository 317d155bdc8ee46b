// usart/irq.go

package usart

// DispatchInterrupt services the USART interrupt. Install it as the
// peripheral's handler; it must not be re-entered for the same instance.
//
// STATR and the enable bits are sampled once. At most one category is
// serviced per call, in priority order: clean receive, hardware error
// (with a receive drained in the same pass), transmit-empty, transmit
// complete. Any condition left asserted raises the interrupt again.
//
// Error policy: overrun ends the reception (sources disabled, RxState
// Ready, Error called, no RxComplete). Parity, noise and framing call Error,
// clear the error code and let reception continue.
func (u *USART) DispatchInterrupt() {
	sr := u.Bus.Get(STATR)
	cr1 := u.Bus.Get(CTLR1)
	cr3 := u.Bus.Get(CTLR3)
	u.dbgISR()

	rxReady := sr&FlagRXNE != 0 && cr1&CTLR1_RXNEIE != 0
	errFlags := sr & flagErrors

	if errFlags == 0 && rxReady {
		u.continueRx()
		return
	}

	if errFlags != 0 && (cr3&CTLR3_EIE != 0 || cr1&(CTLR1_RXNEIE|CTLR1_PEIE) != 0) {
		var code ErrorCode
		if sr&FlagPE != 0 && cr1&CTLR1_PEIE != 0 {
			code |= ErrorParity
		}
		if sr&FlagNE != 0 && cr3&CTLR3_EIE != 0 {
			code |= ErrorNoise
		}
		if sr&FlagFE != 0 && cr3&CTLR3_EIE != 0 {
			code |= ErrorFraming
		}
		if sr&FlagORE != 0 && (cr1&CTLR1_RXNEIE != 0 || cr3&CTLR3_EIE != 0) {
			code |= ErrorOverrun
		}
		u.dbgErrors(code)
		code |= u.ErrorCode()
		u.errCode.Store(uint32(code))

		switch {
		case code == ErrorNone:
		case code.Fatal():
			// The element latched with the overrun is kept, but this
			// reception ends here and never reports RxComplete.
			if rxReady {
				u.storeRx()
			}
			u.abortRx()
			u.handler().Error(u)
		default:
			if rxReady {
				u.continueRx()
			}
			u.handler().Error(u)
			u.errCode.Store(uint32(ErrorNone))
		}
		return
	}

	if sr&FlagTXE != 0 && cr1&CTLR1_TXEIE != 0 {
		u.continueTx()
		return
	}

	if sr&FlagTC != 0 && cr1&CTLR1_TCIE != 0 {
		u.endTx()
		return
	}

	u.dbgSpurious()
}
