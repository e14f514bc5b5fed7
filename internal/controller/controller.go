// Package controller implements the push-to-talk state machine. It runs
// on a single goroutine: every blocking phase (capture, upload, download)
// is a chunked loop that keeps the LED animated between chunks, and
// playback is observed by polling rather than waiting.
package controller

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/hammamikhairi/talkbox/internal/button"
	"github.com/hammamikhairi/talkbox/internal/capture"
	"github.com/hammamikhairi/talkbox/internal/domain"
	"github.com/hammamikhairi/talkbox/internal/led"
	"github.com/hammamikhairi/talkbox/internal/logger"
	"github.com/hammamikhairi/talkbox/internal/voiceclient"
)

// Voice is the server side of an interaction.
type Voice interface {
	Send(ctx context.Context, wav []byte, sessionIn string) (*voiceclient.Result, error)
	Probe(ctx context.Context) (*voiceclient.ServerStatus, error)
}

// Sessions is the cached conversation id.
type Sessions interface {
	Current() string
	Update(id string) (bool, error)
}

// Deps are the collaborators the controller drives.
type Deps struct {
	Clock    domain.Clock
	Latch    *button.Latch
	Button   domain.ButtonLine
	Mic      domain.AudioInput
	LED      *led.Animator
	Link     domain.Link
	Player   domain.Player
	Voice    Voice
	Sessions Sessions
}

// Settings are the tunables the controller reads.
type Settings struct {
	SampleRate  int
	MaxSeconds  int
	PSRAMBytes  int
	MicGain     int
	MinCapture  int
	Debounce    time.Duration
	ErrorDwell  time.Duration
	LinkTimeout time.Duration
	LinkRetry   time.Duration
	AudioLevels bool
	SkipProbe   bool
}

// DefaultSettings mirrors the values the hardware was tuned for.
func DefaultSettings() Settings {
	return Settings{
		SampleRate:  domain.DefaultSampleRate,
		MaxSeconds:  domain.DefaultMaxSeconds,
		PSRAMBytes:  8 << 20,
		MicGain:     domain.DefaultMicGain,
		MinCapture:  domain.MinCapture,
		Debounce:    domain.DebounceWindow,
		ErrorDwell:  2 * time.Second,
		LinkTimeout: 15 * time.Second,
		LinkRetry:   5 * time.Second,
	}
}

// Option configures the Controller.
type Option func(*Controller)

// WithObserver registers an observer for transitions and interactions.
func WithObserver(o domain.Observer) Option {
	return func(c *Controller) { c.observers = append(c.observers, o) }
}

// WithBuffer hands over a capture buffer reserved before the rest of the
// hardware came up, along with the reservation error if there was one.
// Without it Boot reserves the buffer itself.
func WithBuffer(buf *capture.Buffer, err error) Option {
	return func(c *Controller) {
		c.buf, c.bufErr, c.reserved = buf, err, true
	}
}

// Controller owns the UI state. All methods must be called from the
// goroutine running Run (or the test driving Step).
type Controller struct {
	d   Deps
	cfg Settings
	log *logger.Logger

	buf       *capture.Buffer
	bufErr    error
	reserved  bool
	recorder  *capture.Recorder
	debouncer *button.Debouncer
	observers []domain.Observer

	state       domain.State
	enteredAt   int64
	fatal       error
	lastAttempt int64
	attempted   bool
	joining     bool
	joinStarted int64
	probed      bool
	current     domain.Interaction
}

// New creates a controller in INIT. Call Boot before stepping it.
func New(d Deps, cfg Settings, log *logger.Logger, opts ...Option) *Controller {
	if cfg.ErrorDwell < domain.MinErrorDwell {
		cfg.ErrorDwell = domain.MinErrorDwell
	}
	c := &Controller{
		d:         d,
		cfg:       cfg,
		log:       log,
		debouncer: button.NewDebouncer(cfg.Debounce),
		state:     domain.StateInit,
		enteredAt: d.Clock.Millis(),
	}
	for _, opt := range opts {
		opt(c)
	}
	c.recorder = capture.NewRecorder(d.Mic, d.Button, d.Clock, log.With("audio"),
		capture.WithGain(cfg.MicGain),
		capture.WithMaxDuration(time.Duration(cfg.MaxSeconds)*time.Second),
		capture.WithLevelLogging(cfg.AudioLevels),
		capture.WithTick(c.Service),
	)
	return c
}

// Boot reserves the capture buffer (unless one was handed over) and moves
// to CONNECTING. An allocation failure leaves the controller in ERROR for
// good; the error is returned so the caller can report it. Run still has
// to be called afterwards to keep the error blink going.
func (c *Controller) Boot(ctx context.Context) error {
	buf, err := c.buf, c.bufErr
	if !c.reserved {
		buf, err = capture.NewBuffer(c.cfg.SampleRate, c.cfg.MaxSeconds, c.cfg.PSRAMBytes)
	}
	if err != nil {
		c.fatal = err
		c.log.Error("failed to allocate audio buffer: %v", err)
		c.enter(domain.StateError)
		return err
	}
	c.buf = buf
	c.log.Info("audio buffer: %d bytes (%d s max)", buf.Cap(), c.cfg.MaxSeconds)
	c.enter(domain.StateConnecting)
	return nil
}

// State returns the current UI state.
func (c *Controller) State() domain.State { return c.state }

// Fatal returns the boot error that pinned the controller in ERROR.
func (c *Controller) Fatal() error { return c.fatal }

// Service advances the LED animation. It runs between chunks of every
// blocking phase.
func (c *Controller) Service() { c.d.LED.Tick(c.d.Clock.Millis()) }

// Run steps the controller every LoopInterval until ctx is done. After a
// failed Boot each step only services the LED.
func (c *Controller) Run(ctx context.Context) error {
	for {
		c.Step(ctx)
		select {
		case <-ctx.Done():
			c.d.Player.Stop()
			return ctx.Err()
		default:
		}
		c.d.Clock.Sleep(domain.LoopInterval)
	}
}

// Step runs one pass of the main loop.
func (c *Controller) Step(ctx context.Context) {
	defer c.Service()

	if c.fatal != nil {
		return
	}

	if c.state != domain.StateInit && c.state != domain.StateConnecting && !c.d.Link.Associated() {
		c.log.Warn("network link lost")
		if c.state == domain.StatePlaying {
			c.d.Player.Stop()
		}
		c.enter(domain.StateConnecting)
	}

	// Presses latched while busy are dropped, not queued.
	if c.state != domain.StateIdle {
		if _, ok := c.d.Latch.Take(); ok {
			c.log.Debug("ignoring press while %s", c.state)
		}
	}

	switch c.state {
	case domain.StateInit:
		c.enter(domain.StateConnecting)
	case domain.StateConnecting:
		c.connect(ctx)
	case domain.StateIdle:
		if ev, ok := c.d.Latch.Take(); ok && c.debouncer.Accept(ev) {
			c.interact(ctx)
		}
	case domain.StatePlaying:
		c.d.Player.Tick()
		if !c.d.Player.Running() {
			c.d.Player.Tick()
			c.log.Info("playback complete")
			c.enter(domain.StateIdle)
		}
	case domain.StateError:
		if c.d.Clock.Millis()-c.enteredAt >= c.cfg.ErrorDwell.Milliseconds() {
			c.enter(domain.StateIdle)
		}
	}
}

// connect drives association without blocking the loop. A join attempt
// is given LinkTimeout while Step keeps the LED animated; a failed attempt
// is retried LinkRetry later. The server is probed the first time the
// link comes up.
func (c *Controller) connect(ctx context.Context) {
	now := c.d.Clock.Millis()
	if !c.d.Link.Associated() {
		switch {
		case c.joining:
			if now-c.joinStarted >= c.cfg.LinkTimeout.Milliseconds() {
				c.joining = false
				c.lastAttempt = now
				c.log.Warn("connection failed, retrying in %s", c.cfg.LinkRetry)
			}
		case !c.attempted || now-c.lastAttempt >= c.cfg.LinkRetry.Milliseconds():
			c.attempted = true
			c.lastAttempt = now
			c.log.Info("connecting to network...")
			if err := c.d.Link.Join(); err != nil {
				c.log.Warn("connection failed, retrying in %s: %v", c.cfg.LinkRetry, err)
				return
			}
			c.joining = true
			c.joinStarted = now
		}
		return
	}

	c.log.Info("network connected")
	c.attempted = false
	c.joining = false
	if !c.probed && !c.cfg.SkipProbe {
		c.probed = true
		c.probe(ctx)
	}
	c.enter(domain.StateIdle)
}

func (c *Controller) probe(ctx context.Context) {
	st, err := c.d.Voice.Probe(ctx)
	if err != nil {
		c.log.Warn("voice server not reachable: %v", err)
		return
	}
	if st.Decoded() {
		c.log.Info("voice server up (enabled=%t, stt=%s, tts=%s/%s, max %.0f MB)",
			st.Enabled, st.WhisperModel, st.TTSModel, st.TTSVoice, st.MaxAudioMB)
		return
	}
	c.log.Info("voice server up")
}

// interact runs one press-to-playback cycle up to the start of playback.
func (c *Controller) interact(ctx context.Context) {
	c.current = domain.Interaction{StartedAt: c.d.Clock.Millis()}
	c.enter(domain.StateRecording)
	c.log.Info("recording...")

	n := c.recorder.Capture(c.buf.Samples())
	c.current.CapturedBytes = n
	c.log.Info("recorded %d bytes (%.1f s)", n, float64(n)/float64(c.cfg.SampleRate*2))

	if n < c.cfg.MinCapture {
		c.log.Info("recording too short, ignoring")
		c.current.Discarded = true
		c.enter(domain.StateIdle)
		c.finish()
		return
	}

	c.enter(domain.StateProcessing)
	if err := c.process(ctx, c.buf.Frame(n)); err != nil {
		c.current.Err = err
		if errors.Is(err, domain.ErrLinkDown) {
			c.enter(domain.StateConnecting)
		} else {
			c.log.Error("interaction failed: %v", err)
			c.enter(domain.StateError)
		}
		c.finish()
		return
	}

	c.enter(domain.StatePlaying)
	c.finish()
}

// process uploads the framed WAV, records the session and starts playback.
func (c *Controller) process(ctx context.Context, wav []byte) error {
	if !c.d.Link.Associated() {
		return domain.ErrLinkDown
	}

	res, err := c.d.Voice.Send(ctx, wav, c.d.Sessions.Current())
	if err != nil {
		return err
	}
	c.current.SessionID = res.SessionID
	c.current.Transcription = res.Transcription
	c.current.AudioBytes = res.AudioBytes

	if _, err := c.d.Sessions.Update(res.SessionID); err != nil {
		c.log.Warn("session not persisted: %v", err)
	}

	if err := c.d.Player.Start(res.AudioPath); err != nil {
		return fmt.Errorf("start playback: %w", err)
	}
	return nil
}

func (c *Controller) finish() {
	c.current.FinishedAt = c.d.Clock.Millis()
	for _, o := range c.observers {
		o.OnInteraction(c.current)
	}
}

func (c *Controller) enter(s domain.State) {
	from := c.state
	now := c.d.Clock.Millis()
	c.state = s
	c.enteredAt = now
	c.d.LED.OnState(s, now)
	if from == s {
		return
	}
	c.log.Debug("state %s -> %s", from, s)
	for _, o := range c.observers {
		o.OnState(from, s)
	}
}
