// Package monitoring carries the process-wide diagnostic logger.
// Components log through Logf so a host (or a test) can redirect or
// silence diagnostics in one place.
package monitoring

import "log"

// Logf is the diagnostic log function. It defaults to log.Printf.
var Logf func(format string, v ...any) = log.Printf

// SetLogger replaces Logf. Passing nil installs a no-op logger, which
// tests use to keep state-machine diagnostics out of their output.
func SetLogger(f func(format string, v ...any)) {
	if f == nil {
		Logf = func(string, ...any) {}
		return
	}
	Logf = f
}
