// Package sim provides simulated hardware for running the controller on a
// host without a device: a manual clock, a microphone that produces audio
// in step with that clock, a button with a scripted hold, a toggleable
// network link and a timed playback engine.
//
// Everything here is driven by the single controller loop. Only the
// button latch is touched from other goroutines.
package sim

import (
	"encoding/binary"
	"sync"
	"time"

	"github.com/hammamikhairi/talkbox/internal/button"
	"github.com/hammamikhairi/talkbox/internal/domain"
)

// ── Clock ────────────────────────────────────────────────────────

// Clock is a manual monotonic clock. Sleep advances it instantly.
type Clock struct {
	mu  sync.Mutex
	now int64
}

// NewClock returns a clock starting at start ms.
func NewClock(start int64) *Clock { return &Clock{now: start} }

// Millis returns the current time.
func (c *Clock) Millis() int64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

// Sleep advances the clock by d.
func (c *Clock) Sleep(d time.Duration) { c.Advance(d.Milliseconds()) }

// Advance moves the clock forward by ms.
func (c *Clock) Advance(ms int64) {
	c.mu.Lock()
	c.now += ms
	c.mu.Unlock()
}

// ── Microphone ───────────────────────────────────────────────────

// Mic produces a constant sample value at the configured rate. Each read
// advances the clock by the audio duration it returns, like a blocking
// DMA read would.
type Mic struct {
	clock      *Clock
	sampleRate int
	Sample     int16
	MaxRead    int // bytes per DMA burst, 0 = whole request
	Zeroed     int // number of Zero calls
	Reads      int
}

// NewMic creates a mic bound to clock.
func NewMic(clock *Clock, sampleRate int, sample int16) *Mic {
	return &Mic{clock: clock, sampleRate: sampleRate, Sample: sample}
}

// Zero implements domain.AudioInput.
func (m *Mic) Zero() error {
	m.Zeroed++
	return nil
}

// Read implements domain.AudioInput. A request too small for one sample
// returns nothing after waiting out timeout, like an idle DMA ring.
func (m *Mic) Read(p []byte, timeout time.Duration) (int, error) {
	m.Reads++
	n := len(p)
	if m.MaxRead > 0 {
		n = min(n, m.MaxRead)
	}
	n &^= 1
	if n == 0 {
		m.clock.Sleep(timeout)
		return 0, nil
	}
	for i := 0; i < n; i += 2 {
		binary.LittleEndian.PutUint16(p[i:], uint16(m.Sample))
	}
	m.clock.Advance(int64(n) * 1000 / int64(m.sampleRate*2))
	return n, nil
}

// ── Button ───────────────────────────────────────────────────────

// Button is a push button whose level follows a scripted hold window.
type Button struct {
	clock     *Clock
	latch     *button.Latch
	mu        sync.Mutex
	pressAt   int64
	releaseAt int64
}

// NewButton creates a released button that reports edges into latch.
func NewButton(clock *Clock, latch *button.Latch) *Button {
	return &Button{clock: clock, latch: latch, pressAt: -1, releaseAt: -1}
}

// Press fires a falling edge now and holds the button for hold.
func (b *Button) Press(hold time.Duration) {
	now := b.clock.Millis()
	b.mu.Lock()
	b.pressAt = now
	b.releaseAt = now + hold.Milliseconds()
	b.mu.Unlock()
	b.latch.Trigger(now)
}

// Bounce fires a falling edge without changing the held window.
func (b *Button) Bounce() { b.latch.Trigger(b.clock.Millis()) }

// Pressed implements domain.ButtonLine.
func (b *Button) Pressed() bool {
	now := b.clock.Millis()
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.pressAt >= 0 && now >= b.pressAt && now < b.releaseAt
}

// ── Link ─────────────────────────────────────────────────────────

// Link is a network link that can be dropped and restored by a test. A
// join started while the link is joinable completes JoinDelay of clock
// time later.
type Link struct {
	clock     *Clock
	mu        sync.Mutex
	up        bool
	joinable  bool
	joining   bool
	joinAt    int64
	JoinDelay time.Duration
	Attempts  int
}

// NewLink returns a link in the given state.
func NewLink(clock *Clock, up bool) *Link { return &Link{clock: clock, up: up, joinable: true} }

// Set forces the association state and abandons any join in progress.
func (l *Link) Set(up bool) {
	l.mu.Lock()
	l.up = up
	l.joining = false
	l.mu.Unlock()
}

// SetJoinable controls whether a join can complete.
func (l *Link) SetJoinable(ok bool) {
	l.mu.Lock()
	l.joinable = ok
	l.mu.Unlock()
}

// Associated implements domain.Link.
func (l *Link) Associated() bool {
	now := l.clock.Millis()
	l.mu.Lock()
	defer l.mu.Unlock()
	if !l.up && l.joining && l.joinable && now >= l.joinAt {
		l.up = true
		l.joining = false
	}
	return l.up
}

// Join implements domain.Link.
func (l *Link) Join() error {
	now := l.clock.Millis()
	l.mu.Lock()
	defer l.mu.Unlock()
	l.Attempts++
	l.joining = true
	l.joinAt = now + l.JoinDelay.Milliseconds()
	return nil
}

// ── Player ───────────────────────────────────────────────────────

// Player pretends to play a file for a fixed duration of clock time.
type Player struct {
	clock    *Clock
	duration int64
	until    int64
	Refuse   error
	Started  []string
	Ticks    int
}

// NewPlayer creates a player whose streams last d.
func NewPlayer(clock *Clock, d time.Duration) *Player {
	return &Player{clock: clock, duration: d.Milliseconds(), until: -1}
}

// Start implements domain.Player.
func (p *Player) Start(path string) error {
	if p.Refuse != nil {
		return p.Refuse
	}
	p.Started = append(p.Started, path)
	p.until = p.clock.Millis() + p.duration
	return nil
}

// Running implements domain.Player.
func (p *Player) Running() bool { return p.until >= 0 && p.clock.Millis() < p.until }

// Tick implements domain.Player.
func (p *Player) Tick() { p.Ticks++ }

// Stop implements domain.Player.
func (p *Player) Stop() { p.until = -1 }

// ── PWM ──────────────────────────────────────────────────────────

// PWM records the duty values written to the LED.
type PWM struct {
	mu   sync.Mutex
	duty uint8
	n    int
}

// SetDuty implements domain.PWM.
func (p *PWM) SetDuty(d uint8) error {
	p.mu.Lock()
	p.duty = d
	p.n++
	p.mu.Unlock()
	return nil
}

// Writes returns how many times the duty was changed.
func (p *PWM) Writes() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.n
}

// Duty returns the last duty written.
func (p *PWM) Duty() uint8 {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.duty
}

// Compile-time interface checks.
var (
	_ domain.Clock      = (*Clock)(nil)
	_ domain.AudioInput = (*Mic)(nil)
	_ domain.ButtonLine = (*Button)(nil)
	_ domain.Link       = (*Link)(nil)
	_ domain.Player     = (*Player)(nil)
	_ domain.PWM        = (*PWM)(nil)
)
