//go:build !usartdebug

package usart

func (u *USART) dbgISR()             {}
func (u *USART) dbgSpurious()        {}
func (u *USART) dbgTxElement()       {}
func (u *USART) dbgTxComplete()      {}
func (u *USART) dbgRxElement()       {}
func (u *USART) dbgRxComplete()      {}
func (u *USART) dbgBusy()            {}
func (u *USART) dbgTimeout()         {}
func (u *USART) dbgErrors(ErrorCode) {}
