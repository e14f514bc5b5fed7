// Package button turns falling edges on the push-button line into
// debounced press events for the controller.
//
// The edge side (Latch.Trigger) runs in interrupt context: it performs two
// atomic stores and nothing else. The controller side (Latch.Take and
// Debouncer) runs on the controller loop.
package button

import (
	"sync/atomic"
	"time"

	"github.com/hammamikhairi/talkbox/internal/domain"
)

// Latch holds the most recent unconsumed press.
type Latch struct {
	pressed atomic.Bool
	at      atomic.Int64
}

// Trigger records a falling edge at the given monotonic millisecond.
// Safe to call from the interrupt goroutine; it never blocks or allocates.
func (l *Latch) Trigger(at int64) {
	l.at.Store(at)
	l.pressed.Store(true)
}

// Take returns the pending press, if any, and clears the flag.
func (l *Latch) Take() (domain.ButtonEvent, bool) {
	if !l.pressed.Swap(false) {
		return domain.ButtonEvent{}, false
	}
	return domain.ButtonEvent{Pressed: true, At: l.at.Load()}, true
}

// Pending reports whether a press is latched without consuming it.
func (l *Latch) Pending() bool { return l.pressed.Load() }

// Debouncer enforces a minimum window between two accepted presses.
type Debouncer struct {
	window   int64
	last     int64
	accepted bool
}

// NewDebouncer creates a debouncer with the given window.
func NewDebouncer(window time.Duration) *Debouncer {
	return &Debouncer{window: window.Milliseconds()}
}

// Accept reports whether ev is far enough from the previously accepted
// press. Accepted presses become the new reference point.
func (d *Debouncer) Accept(ev domain.ButtonEvent) bool {
	if !ev.Pressed {
		return false
	}
	if d.accepted && ev.At-d.last < d.window {
		return false
	}
	d.accepted = true
	d.last = ev.At
	return true
}
