// usart/notify.go

package usart

import (
	"context"

	"go.uber.org/atomic"
)

// Notifier is a Callbacks implementation that turns completion events into
// coalesced channel notifications, so foreground code can select on them.
// An optional Next receives every event after the notification is posted.
//
// Channels are level-coalesced: one pending token per channel. Callers must
// re-check handle state after waking.
type Notifier struct {
	Next Callbacks

	txDone chan struct{}
	rxDone chan struct{}
	errs   chan struct{}

	// last error code seen by Error, kept because non-fatal codes are cleared
	// as soon as the callback returns.
	lastErr atomic.Uint32
}

// NewNotifier returns a Notifier that forwards to next (which may be nil).
func NewNotifier(next Callbacks) *Notifier {
	return &Notifier{
		Next:   next,
		txDone: make(chan struct{}, 1),
		rxDone: make(chan struct{}, 1),
		errs:   make(chan struct{}, 1),
	}
}

func (n *Notifier) TxComplete(u *USART) {
	post(n.txDone)
	if n.Next != nil {
		n.Next.TxComplete(u)
	}
}

func (n *Notifier) RxComplete(u *USART) {
	post(n.rxDone)
	if n.Next != nil {
		n.Next.RxComplete(u)
	}
}

func (n *Notifier) Error(u *USART) {
	n.lastErr.Store(uint32(u.ErrorCode()))
	post(n.errs)
	if n.Next != nil {
		n.Next.Error(u)
	}
}

// TxDone fires after an async transmit completes.
func (n *Notifier) TxDone() <-chan struct{} { return n.txDone }

// RxDone fires after an async receive completes.
func (n *Notifier) RxDone() <-chan struct{} { return n.rxDone }

// Errors fires after the receive path reports a hardware error.
func (n *Notifier) Errors() <-chan struct{} { return n.errs }

// LastError returns the error code captured by the most recent Error event.
func (n *Notifier) LastError() ErrorCode { return ErrorCode(n.lastErr.Load()) }

// WaitTx blocks until the async transmit on u has finished or ctx is done.
func (n *Notifier) WaitTx(ctx context.Context, u *USART) error {
	for {
		if u.State() == StateReady {
			return nil
		}
		select {
		case <-n.txDone:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

// WaitRx blocks until the async receive on u has ended or ctx is done. A
// reception ended by overrun also returns; check LastError to tell them
// apart.
func (n *Notifier) WaitRx(ctx context.Context, u *USART) error {
	for {
		if u.RxState() == StateReady {
			return nil
		}
		select {
		case <-n.rxDone:
		case <-n.errs:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

// post performs a non-blocking, coalescing send.
func post(ch chan struct{}) {
	select {
	case ch <- struct{}{}:
	default:
	}
}
