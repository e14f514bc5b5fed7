// Package led maps the UI state to a PWM animation on the status LED.
//
// The animator is a pure function of the current state and the monotonic
// clock: OnState resets the pattern, Tick advances it. Both are cheap
// enough to call from every tight loop (capture, upload, playback).
package led

import "github.com/hammamikhairi/talkbox/internal/domain"

// IdleLevel is the solid brightness shown while waiting for a press.
const IdleLevel = 30

// pattern describes one animation. A triangle pattern bounces level
// between lo and hi by step every interval; a blink pattern toggles
// between 0 and hi every interval.
type pattern struct {
	blink    bool
	start    int
	step     int // initial signed step for triangles
	lo, hi   int
	interval int64 // ms
}

var patterns = map[domain.State]pattern{
	domain.StateIdle:       {start: IdleLevel},
	domain.StateRecording:  {start: 255, step: -15, lo: 100, hi: 255, interval: 20},
	domain.StateProcessing: {start: 90, step: 10, lo: 50, hi: 180, interval: 50},
	domain.StatePlaying:    {start: 60, step: 5, lo: 30, hi: 120, interval: 100},
	domain.StateError:      {blink: true, hi: 255, interval: 100},
	domain.StateConnecting: {blink: true, hi: 128, interval: 500},
}

// Animator drives a PWM channel. It is not safe for concurrent use; only
// the controller loop touches it.
type Animator struct {
	pwm     domain.PWM
	state   domain.State
	p       pattern
	level   int
	dir     int
	last    int64
	written int // last duty sent, -1 before the first write
}

// New creates an animator in the INIT state with the LED off.
func New(pwm domain.PWM) *Animator {
	a := &Animator{pwm: pwm, written: -1}
	a.OnState(domain.StateInit, 0)
	return a
}

// OnState resets the animation for s.
func (a *Animator) OnState(s domain.State, now int64) {
	a.state = s
	a.p = patterns[s] // zero pattern (dark, static) for INIT
	a.level = a.p.start
	a.dir = a.p.step
	a.last = now
	a.write()
}

// Tick advances the current pattern to now.
func (a *Animator) Tick(now int64) {
	if a.p.interval == 0 || now-a.last < a.p.interval {
		return
	}
	a.last = now

	if a.p.blink {
		if a.level > 0 {
			a.level = 0
		} else {
			a.level = a.p.hi
		}
		a.write()
		return
	}

	a.level += a.dir
	if a.level >= a.p.hi {
		a.level = a.p.hi
		a.dir = -abs(a.p.step)
	}
	if a.level <= a.p.lo {
		a.level = a.p.lo
		a.dir = abs(a.p.step)
	}
	a.write()
}

// Level returns the current duty value.
func (a *Animator) Level() uint8 { return uint8(a.level) }

// State returns the state the animator is showing.
func (a *Animator) State() domain.State { return a.state }

func (a *Animator) write() {
	if a.level == a.written || a.pwm == nil {
		return
	}
	a.written = a.level
	_ = a.pwm.SetDuty(uint8(a.level))
}

func abs(n int) int {
	if n < 0 {
		return -n
	}
	return n
}
