package monitoring

import (
	"fmt"
	"testing"
)

func TestSetLoggerRedirects(t *testing.T) {
	defer SetLogger(nil)

	var captured string
	SetLogger(func(format string, v ...any) {
		captured = fmt.Sprintf(format, v...)
	})

	Logf("trial %d skipped", 3)
	if captured != "trial 3 skipped" {
		t.Errorf("captured = %q", captured)
	}
}

func TestSetLoggerNilMutes(t *testing.T) {
	SetLogger(nil)
	// Must not panic.
	Logf("dropped %s", "message")
	SetLogger(func(format string, v ...any) {})
}
