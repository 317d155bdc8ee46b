// usart/errors.go

package usart

import "errors"

var (
	// ErrParameter reports an invalid handle, buffer, count or configuration
	// value. Nothing was written to the peripheral.
	ErrParameter = errors.New("usart: invalid parameter")

	// ErrBusy reports that the requested direction is not Ready.
	ErrBusy = errors.New("usart: busy")

	// ErrTimeout reports that an awaited status flag did not assert within
	// the blocking budget.
	ErrTimeout = errors.New("usart: timeout")
)

// ErrorCode accumulates hardware errors seen by the interrupt receive path.
type ErrorCode uint32

const (
	ErrorNone    ErrorCode = 0
	ErrorParity  ErrorCode = 0x01
	ErrorNoise   ErrorCode = 0x02
	ErrorFraming ErrorCode = 0x04
	ErrorOverrun ErrorCode = 0x08
)

// Has reports whether all bits of e are set in c.
func (c ErrorCode) Has(e ErrorCode) bool { return c&e == e && e != 0 }

// Fatal reports whether c terminates the in-flight reception.
func (c ErrorCode) Fatal() bool { return c&ErrorOverrun != 0 }

func (c ErrorCode) String() string {
	if c == ErrorNone {
		return "none"
	}
	var buf [32]byte
	s := buf[:0]
	add := func(bit ErrorCode, name string) {
		if c&bit == 0 {
			return
		}
		if len(s) > 0 {
			s = append(s, '|')
		}
		s = append(s, name...)
	}
	add(ErrorParity, "parity")
	add(ErrorNoise, "noise")
	add(ErrorFraming, "framing")
	add(ErrorOverrun, "overrun")
	if c&^(ErrorParity|ErrorNoise|ErrorFraming|ErrorOverrun) != 0 {
		if len(s) > 0 {
			s = append(s, '|')
		}
		s = append(s, '?')
	}
	return string(s)
}
