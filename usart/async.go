// usart/async.go

package usart

// StartTransmit queues count elements from buf and returns immediately.
// DispatchInterrupt writes one element per TXE interrupt and calls
// Handler.TxComplete once TC reports the line idle. buf must not be touched
// until then.
func (u *USART) StartTransmit(buf []byte, count int) error {
	if u == nil {
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

	u.tx = t
	u.errCode.Store(uint32(ErrorNone))
	u.gState.Store(uint32(StateBusyTx))

	// Ownership passes to the interrupt path here.
	u.EnableIRQ(IRQTxEmpty)
	return nil
}

// StartReceive arms reception of count elements into buf and returns
// immediately. DispatchInterrupt stores one element per RXNE interrupt and
// calls Handler.RxComplete after the last; hardware errors are reported via
// Handler.Error only.
func (u *USART) StartReceive(buf []byte, count int) error {
	if u == nil {
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

	u.rx = r
	u.errCode.Store(uint32(ErrorNone))
	u.rxState.Store(uint32(StateBusyRx))

	if u.cfg.Parity != ParityNone {
		u.EnableIRQ(IRQParity)
	}
	u.EnableIRQ(IRQError)
	// Ownership passes to the interrupt path here.
	u.EnableIRQ(IRQRxNotEmpty)
	return nil
}

// continueTx writes the next element. After the last one it swaps TXE for
// TC so completion is reported only once the shifter drains.
func (u *USART) continueTx() {
	if u.State() != StateBusyTx {
		return
	}
	v := u.tx.next(u.cfg.wide()) & u.cfg.txMask()
	u.Bus.Set(DATAR, uint32(v))
	u.dbgTxElement()

	if u.tx.count == 0 {
		u.DisableIRQ(IRQTxEmpty)
		u.EnableIRQ(IRQTxComplete)
	}
}

// endTx finishes an async transmit on TC.
func (u *USART) endTx() {
	u.DisableIRQ(IRQTxComplete)
	u.gState.Store(uint32(StateReady))
	u.dbgTxComplete()
	u.handler().TxComplete(u)
}

// continueRx stores one element from DATAR. After the last one it disables
// every receive source and reports completion.
func (u *USART) continueRx() {
	if !u.storeRx() {
		return
	}
	if u.rx.count == 0 {
		u.disableRxIRQs()
		u.rxState.Store(uint32(StateReady))
		u.dbgRxComplete()
		u.handler().RxComplete(u)
	}
}

// storeRx moves one element from DATAR into the receive buffer. It reports
// false, leaving DATAR unread, when no reception is in flight.
func (u *USART) storeRx() bool {
	if u.RxState() != StateBusyRx || u.rx.count == 0 {
		return false
	}
	v := uint16(u.Bus.Get(DATAR)) & u.cfg.rxMask()
	u.rx.put(v, u.cfg.wide())
	u.dbgRxElement()
	return true
}

// abortRx ends reception after a fatal error without RxComplete.
func (u *USART) abortRx() {
	u.disableRxIRQs()
	u.rxState.Store(uint32(StateReady))
}

func (u *USART) disableRxIRQs() {
	ClearBits(u.Bus, CTLR1, CTLR1_RXNEIE|CTLR1_PEIE)
	ClearBits(u.Bus, CTLR3, CTLR3_EIE)
}
