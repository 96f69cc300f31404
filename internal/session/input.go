// Package session drives the per-trial timing state machines and the
// fixed-frequency loop that steps them. It owns the active trial, the
// two sub-task machines, and the event-to-timestamp recording
// contract with the collector.
package session

import (
	"time"

	"github.com/percept-data/pursuit/internal/timeutil"
)

// Intent is a logical input event. The rendering surface translates
// raw key events into these three intents before they reach the
// engine.
type Intent string

const (
	// IntentConfirm advances interactive states (space on prompts).
	IntentConfirm Intent = "confirm"

	// IntentStop halts the moving point (space during motion).
	IntentStop Intent = "stop"

	// IntentCancel aborts the session, flushing partial data.
	IntentCancel Intent = "cancel"
)

// Debouncer suppresses duplicate key-repeat events so one physical
// press cannot register twice within the window.
type Debouncer struct {
	clock  timeutil.Clock
	window time.Duration
	last   map[Intent]time.Time
}

// NewDebouncer creates a Debouncer with the given suppression window.
func NewDebouncer(clock timeutil.Clock, window time.Duration) *Debouncer {
	return &Debouncer{
		clock:  clock,
		window: window,
		last:   map[Intent]time.Time{},
	}
}

// Allow reports whether the intent should be processed, recording it
// as seen if so.
func (d *Debouncer) Allow(in Intent) bool {
	now := d.clock.Now()
	if last, ok := d.last[in]; ok && now.Sub(last) < d.window {
		return false
	}
	d.last[in] = now
	return true
}
