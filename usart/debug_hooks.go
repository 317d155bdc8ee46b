//go:build usartdebug

package usart

// Called at dispatcher entry.
func (u *USART) dbgISR() { u.stats.isr.Inc() }

// Called when a dispatch matched no enabled condition.
func (u *USART) dbgSpurious() { u.stats.spurious.Inc() }

func (u *USART) dbgTxElement()  { u.stats.txElements.Inc() }
func (u *USART) dbgTxComplete() { u.stats.txCompletes.Inc() }
func (u *USART) dbgRxElement()  { u.stats.rxElements.Inc() }
func (u *USART) dbgRxComplete() { u.stats.rxCompletes.Inc() }
func (u *USART) dbgBusy()       { u.stats.busy.Inc() }
func (u *USART) dbgTimeout()    { u.stats.timeouts.Inc() }

// Called with the error bits gated in by one dispatch.
func (u *USART) dbgErrors(c ErrorCode) {
	if c&ErrorParity != 0 {
		u.stats.errParity.Inc()
	}
	if c&ErrorNoise != 0 {
		u.stats.errNoise.Inc()
	}
	if c&ErrorFraming != 0 {
		u.stats.errFraming.Inc()
	}
	if c&ErrorOverrun != 0 {
		u.stats.errOverrun.Inc()
	}
}
