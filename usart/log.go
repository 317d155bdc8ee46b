// usart/log.go

package usart

// logf is the package diagnostic logger. It discards by default and is only
// called from foreground paths, never from interrupt continuations.
var logf = func(string, ...any) {}

// SetLogger replaces the package logger. Passing nil mutes it.
func SetLogger(f func(format string, v ...any)) {
	if f == nil {
		logf = func(string, ...any) {}
		return
	}
	logf = f
}
