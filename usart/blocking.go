// usart/blocking.go

package usart

// Transmit sends count elements from buf, polling TXE before each element
// and TC after the last one. timeout bounds the whole call in milliseconds;
// MaxDelay waits forever and 0 only checks once.
//
// With 9-bit words and no parity each element is two little-endian bytes
// masked to 9 bits; otherwise each element is one byte.
func (u *USART) Transmit(buf []byte, count int, timeout uint32) error {
	if u == nil || u.Ticks == nil {
		return ErrParameter
	}
	if u.State() != StateReady {
		u.dbgBusy()
		return ErrBusy
	}
	t, ok := u.prepare(buf, count)
	if !ok {
		return ErrParameter
	}

	u.errCode.Store(uint32(ErrorNone))
	u.gState.Store(uint32(StateBusyTx))
	start := u.Ticks.Ticks()

	u.tx = t
	wide := u.cfg.wide()
	mask := u.cfg.txMask()
	for u.tx.count > 0 {
		if !u.waitFlag(FlagTXE, start, timeout) {
			return u.txTimeout("TXE")
		}
		u.Bus.Set(DATAR, uint32(u.tx.next(wide)&mask))
	}
	if !u.waitFlag(FlagTC, start, timeout) {
		return u.txTimeout("TC")
	}

	u.gState.Store(uint32(StateReady))
	return nil
}

// Receive reads count elements into buf, polling RXNE before each element.
// Element width follows the same rule as Transmit; with 8-bit words and
// parity enabled the parity bit is stripped (7 data bits).
func (u *USART) Receive(buf []byte, count int, timeout uint32) error {
	if u == nil || u.Ticks == nil {
		return ErrParameter
	}
	if u.RxState() != StateReady {
		u.dbgBusy()
		return ErrBusy
	}
	r, ok := u.prepare(buf, count)
	if !ok {
		return ErrParameter
	}

	u.errCode.Store(uint32(ErrorNone))
	u.rxState.Store(uint32(StateBusyRx))
	start := u.Ticks.Ticks()

	u.rx = r
	wide := u.cfg.wide()
	mask := u.cfg.rxMask()
	for u.rx.count > 0 {
		if !u.waitFlag(FlagRXNE, start, timeout) {
			u.rxState.Store(uint32(StateReady))
			u.dbgTimeout()
			logf("usart: receive timeout, %d of %d elements left", u.rx.count, u.rx.size)
			return ErrTimeout
		}
		u.rx.put(uint16(u.Bus.Get(DATAR))&mask, wide)
	}

	u.rxState.Store(uint32(StateReady))
	return nil
}

func (u *USART) txTimeout(flag string) error {
	u.gState.Store(uint32(StateReady))
	u.dbgTimeout()
	logf("usart: transmit timeout waiting for %s, %d of %d elements left", flag, u.tx.count, u.tx.size)
	return ErrTimeout
}

// waitFlag spins until flag is set in STATR or the budget measured from
// start is exhausted.
func (u *USART) waitFlag(flag, start, timeout uint32) bool {
	for u.Bus.Get(STATR)&flag == 0 {
		if timeout == 0 {
			return false
		}
		if timeout != MaxDelay && Expired(u.Ticks, start, timeout) {
			return false
		}
	}
	return true
}
