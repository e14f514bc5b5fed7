// Package playback streams the downloaded MP3 reply to the speaker.
package playback

import (
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/ebitengine/oto/v3"
	"github.com/hajimehoshi/go-mp3"

	"github.com/hammamikhairi/talkbox/internal/domain"
	"github.com/hammamikhairi/talkbox/internal/logger"
)

// MaxVolume is the top of the amplifier volume scale.
const MaxVolume = 21

// Compile-time interface check.
var _ domain.Player = (*Engine)(nil)

// Option configures the Engine.
type Option func(*Engine)

// WithVolume sets the output level on the 0..21 scale.
func WithVolume(v int) Option {
	return func(e *Engine) {
		e.volume = float64(max(0, min(v, MaxVolume))) / MaxVolume
	}
}

// Engine decodes MP3 files with go-mp3 and plays them through oto. The
// audio context is opened with the sample rate of the first stream and
// kept for the life of the process.
type Engine struct {
	log    *logger.Logger
	volume float64

	ctx  *oto.Context
	rate int

	active *oto.Player
	file   *os.File
}

// New creates an idle engine. No audio device is touched until the first
// Start.
func New(log *logger.Logger, opts ...Option) *Engine {
	e := &Engine{log: log, volume: 15.0 / MaxVolume}
	for _, o := range opts {
		o(e)
	}
	return e
}

// Start opens path and begins playback. It refuses files that are
// missing, empty or not MP3, and streams whose sample rate differs from
// the one the output was opened with.
func (e *Engine) Start(path string) error {
	e.Stop()

	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("%w: %w", domain.ErrPlaybackRefused, err)
	}
	dec, err := mp3.NewDecoder(f)
	if err != nil {
		f.Close()
		return fmt.Errorf("%w: decode %s: %w", domain.ErrPlaybackRefused, path, err)
	}

	if err := e.ensureContext(dec.SampleRate()); err != nil {
		f.Close()
		return err
	}

	player := e.ctx.NewPlayer(dec)
	player.SetVolume(e.volume)
	player.Play()

	e.active = player
	e.file = f
	e.log.Info("playing %s (%d Hz, %d bytes decoded)", path, dec.SampleRate(), dec.Length())
	return nil
}

// Running reports whether audio is still being played.
func (e *Engine) Running() bool {
	return e.active != nil && e.active.IsPlaying()
}

// Tick releases the stream once it has drained. oto feeds the device from
// its own goroutine, so nothing else needs servicing here.
func (e *Engine) Tick() {
	if e.active == nil || e.active.IsPlaying() {
		return
	}
	if err := e.active.Err(); err != nil && !errors.Is(err, io.EOF) {
		e.log.Warn("playback ended with error: %v", err)
	}
	e.release()
	e.log.Info("playback finished")
}

// Stop interrupts the current stream, if any.
func (e *Engine) Stop() {
	if e.active == nil {
		return
	}
	e.active.Pause()
	e.release()
	e.log.Debug("playback interrupted")
}

func (e *Engine) release() {
	if err := e.active.Close(); err != nil {
		e.log.Debug("close player: %v", err)
	}
	e.file.Close()
	e.active = nil
	e.file = nil
}

// ensureContext opens the output at rate on first use. go-mp3 always
// produces 16-bit little-endian stereo.
func (e *Engine) ensureContext(rate int) error {
	if e.ctx != nil {
		if rate != e.rate {
			return fmt.Errorf("%w: stream is %d Hz, output opened at %d Hz", domain.ErrPlaybackRefused, rate, e.rate)
		}
		return nil
	}

	ctx, ready, err := oto.NewContext(&oto.NewContextOptions{
		SampleRate:   rate,
		ChannelCount: 2,
		Format:       oto.FormatSignedInt16LE,
	})
	if err != nil {
		return fmt.Errorf("%w: audio output: %w", domain.ErrPlaybackRefused, err)
	}
	<-ready

	e.ctx = ctx
	e.rate = rate
	e.log.Debug("audio output initialized (rate=%d, channels=2)", rate)
	return nil
}
