// Package monitoring holds the diagnostic logger shared by the simulation
// packages. Library code reports progress (baseline locks, sweep progress)
// through Logf; errors are always returned, never only logged.
package monitoring

import "log"

// Logf is the package-level diagnostic logger. It defaults to log.Printf but may
// be replaced by SetLogger. Tests or production code can redirect or mute it.
var Logf func(format string, v ...interface{}) = log.Printf

// SetLogger replaces the package logger. Passing nil will set a no-op logger.
func SetLogger(f func(format string, v ...interface{})) {
	if f == nil {
		Logf = func(string, ...interface{}) {}
		return
	}
	Logf = f
}

// Mute silences Logf and returns a function restoring the previous logger.
// Intended for tests and quiet CLI modes:
//
//	defer monitoring.Mute()()
func Mute() (restore func()) {
	prev := Logf
	SetLogger(nil)
	return func() { Logf = prev }
}

// WithPrefix returns a printf-style logger that prepends prefix to every
// message and forwards to the current Logf at call time.
func WithPrefix(prefix string) func(format string, v ...interface{}) {
	return func(format string, v ...interface{}) {
		Logf(prefix+format, v...)
	}
}
